package bookdb_test

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/loanwell/lectern-go/internal/bookdb"
	"github.com/loanwell/lectern-go/internal/models"
	"github.com/loanwell/lectern-go/internal/testutil"
)

func newTestStore(t *testing.T) *bookdb.Store {
	t.Helper()
	return bookdb.New(testutil.SetupTestDB(t), t.TempDir())
}

func sampleEntry(id string) *models.Entry {
	return &models.Entry{
		ID:    id,
		Title: "Sample Book",
		Acquisitions: []models.Acquisition{
			{Relation: models.RelationBorrow, Href: "https://example.com/borrow/" + id},
		},
		Availability: models.AvailLoanable{},
	}
}

func TestCreateOrUpdateRoundTrip(t *testing.T) {
	store := newTestStore(t)
	entry := sampleEntry("urn:book:1")

	book, err := store.CreateOrUpdate("acct-1", entry)
	require.NoError(t, err)
	assert.Equal(t, models.MakeBookID("acct-1", "urn:book:1"), book.ID)
	assert.Equal(t, "acct-1", book.AccountID)
	assert.Equal(t, "Sample Book", book.Entry.Title)
	assert.IsType(t, models.AvailLoanable{}, book.Entry.Availability)

	// A second upsert with new availability refreshes the entry in place.
	until := time.Now().Add(14 * 24 * time.Hour).UTC()
	entry.Availability = models.AvailLoaned{EndDate: &until}
	updated, err := store.CreateOrUpdate("acct-1", entry)
	require.NoError(t, err)
	assert.Equal(t, book.ID, updated.ID)
	assert.IsType(t, models.AvailLoaned{}, updated.Entry.Availability)
}

func TestUpdateEntryMissingBook(t *testing.T) {
	store := newTestStore(t)
	_, err := store.UpdateEntry("no-such-book", sampleEntry("urn:book:2"))
	assert.ErrorIs(t, err, bookdb.ErrNotFound)
}

func TestFormatHandlesStoreAndDelete(t *testing.T) {
	store := newTestStore(t)
	book, err := store.CreateOrUpdate("acct-1", sampleEntry("urn:book:3"))
	require.NoError(t, err)

	src := testutil.CreateTestEPUB(t, t.TempDir(), "source.epub")

	handle, ok := store.FindHandleForContentType(book.ID, models.TypeEPUB)
	require.True(t, ok)
	epub := handle.(*bookdb.EPUBHandle)
	require.NoError(t, epub.CopyInBook(src))

	rights := &models.DRMRights{Issuer: "vendor", Returnable: true}
	require.NoError(t, epub.SetDRMRights(rights))

	loaded, err := store.Get(book.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Formats, 1)
	assert.Equal(t, models.TypeEPUB, loaded.Formats[0].ContentType)
	assert.FileExists(t, loaded.Formats[0].FilePath)
	require.NotNil(t, loaded.Formats[0].Rights)
	assert.True(t, loaded.Formats[0].Rights.Returnable)

	got, err := epub.Rights()
	require.NoError(t, err)
	assert.Equal(t, "vendor", got.Issuer)

	require.NoError(t, epub.SetDRMRights(nil))
	got, err = epub.Rights()
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestAudiobookHandleStoresManifestURI(t *testing.T) {
	store := newTestStore(t)
	book, err := store.CreateOrUpdate("acct-1", sampleEntry("urn:book:4"))
	require.NoError(t, err)

	handle, ok := store.FindHandleForContentType(book.ID, models.TypeAudiobook)
	require.True(t, ok)
	audio := handle.(*bookdb.AudiobookHandle)
	require.NoError(t, audio.CopyInManifestAndURI([]byte(`{"readingOrder":[]}`), "https://example.com/manifest.json"))

	loaded, err := store.Get(book.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Formats, 1)
	assert.Equal(t, "https://example.com/manifest.json", loaded.Formats[0].ManifestURI)
}

func TestFindHandleUnknownType(t *testing.T) {
	store := newTestStore(t)
	_, ok := store.FindHandleForContentType("book-x", "text/html")
	assert.False(t, ok)
}

func TestDeleteRemovesRowsAndFiles(t *testing.T) {
	store := newTestStore(t)
	book, err := store.CreateOrUpdate("acct-1", sampleEntry("urn:book:5"))
	require.NoError(t, err)

	src := testutil.CreateTestEPUB(t, t.TempDir(), "source.epub")
	handle, _ := store.FindHandleForContentType(book.ID, models.TypeEPUB)
	require.NoError(t, handle.(*bookdb.EPUBHandle).CopyInBook(src))

	dir := store.BookDir(book.ID)
	require.NoError(t, store.Delete(book.ID))

	_, err = store.Get(book.ID)
	assert.ErrorIs(t, err, bookdb.ErrNotFound)
	_, statErr := os.Stat(dir)
	assert.True(t, os.IsNotExist(statErr), "book directory should be removed")

	assert.ErrorIs(t, store.Delete(book.ID), bookdb.ErrNotFound)
}

func TestListExpiredLoans(t *testing.T) {
	store := newTestStore(t)

	past := time.Now().Add(-time.Hour)
	expired := sampleEntry("urn:book:6")
	expired.Availability = models.AvailLoaned{EndDate: &past}
	_, err := store.CreateOrUpdate("acct-1", expired)
	require.NoError(t, err)

	future := time.Now().Add(time.Hour)
	active := sampleEntry("urn:book:7")
	active.Availability = models.AvailLoaned{EndDate: &future}
	_, err = store.CreateOrUpdate("acct-1", active)
	require.NoError(t, err)

	// Books without a loan never show up, whatever their age.
	_, err = store.CreateOrUpdate("acct-1", sampleEntry("urn:book:8"))
	require.NoError(t, err)

	books, err := store.ListExpiredLoans(time.Now())
	require.NoError(t, err)
	require.Len(t, books, 1)
	assert.Equal(t, "urn:book:6", books[0].Entry.ID)
}
