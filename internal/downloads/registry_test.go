package downloads_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/loanwell/lectern-go/internal/downloads"
	"github.com/loanwell/lectern-go/internal/models"
)

type fakeCancellable struct {
	cancelled bool
}

func (f *fakeCancellable) Cancel() { f.cancelled = true }

func TestRegistrySingleEntryPerBook(t *testing.T) {
	reg := downloads.NewRegistry()
	id := models.BookID("book-1")

	require.NoError(t, reg.Put(id, &fakeCancellable{}))
	err := reg.Put(id, &fakeCancellable{})
	assert.ErrorIs(t, err, downloads.ErrAlreadyDownloading)

	reg.Remove(id)
	assert.NoError(t, reg.Put(id, &fakeCancellable{}))
}

func TestRegistryCancel(t *testing.T) {
	reg := downloads.NewRegistry()
	id := models.BookID("book-2")
	c := &fakeCancellable{}
	require.NoError(t, reg.Put(id, c))

	assert.True(t, reg.Cancel(id))
	assert.True(t, c.cancelled)

	// Cancel does not remove; the owner removes on terminal state.
	assert.Equal(t, 1, reg.Len())

	reg.Remove(id)
	assert.False(t, reg.Cancel(id))
	assert.Equal(t, 0, reg.Len())
}
