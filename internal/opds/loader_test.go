package opds_test

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/loanwell/lectern-go/internal/models"
	"github.com/loanwell/lectern-go/internal/opds"
)

func TestFetchFeedSingleEntry(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		w.Header().Set("Content-Type", "application/opds+json")
		w.Write([]byte(`{"publications":[{"id":"urn:book:1","title":"A Book"}]}`))
	}))
	defer srv.Close()

	loader := opds.NewHTTPLoader(srv.Client())
	feed, err := loader.FetchFeed(context.Background(), http.MethodPut, srv.URL, nil)
	require.NoError(t, err)

	entry, err := feed.SingleEntry()
	require.NoError(t, err)
	assert.Equal(t, "urn:book:1", entry.ID)
}

func TestFetchFeedAcceptsBareEntry(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"urn:book:2","title":"Bare Entry","availability":{"state":"loaned"}}`))
	}))
	defer srv.Close()

	loader := opds.NewHTTPLoader(srv.Client())
	feed, err := loader.FetchFeed(context.Background(), http.MethodPut, srv.URL, nil)
	require.NoError(t, err)

	entry, err := feed.SingleEntry()
	require.NoError(t, err)
	assert.Equal(t, "urn:book:2", entry.ID)
	assert.IsType(t, models.AvailLoaned{}, entry.Availability)
}

func TestFetchFeedSendsBasicAuthorization(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{"publications":[{"id":"urn:book:3"}]}`))
	}))
	defer srv.Close()

	loader := opds.NewHTTPLoader(srv.Client())
	_, err := loader.FetchFeed(context.Background(), http.MethodGet, srv.URL, models.BasicAuth("reader", "secret"))
	require.NoError(t, err)

	want := "Basic " + base64.StdEncoding.EncodeToString([]byte("reader:secret"))
	assert.Equal(t, want, gotAuth)
}

func TestFetchFeedHTTPErrorCarriesProblem(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", models.TypeProblemReport)
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"type":"http://example.com/loan-limit","title":"Loan limit reached"}`))
	}))
	defer srv.Close()

	loader := opds.NewHTTPLoader(srv.Client())
	_, err := loader.FetchFeed(context.Background(), http.MethodPut, srv.URL, nil)
	require.Error(t, err)

	var httpErr *opds.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusForbidden, httpErr.Status)
	require.NotNil(t, httpErr.Problem)
	assert.Equal(t, "Loan limit reached", httpErr.Problem.Title)
}

func TestSingleEntryRejectsMultiple(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"publications":[{"id":"urn:a"},{"id":"urn:b"}]}`))
	}))
	defer srv.Close()

	loader := opds.NewHTTPLoader(srv.Client())
	feed, err := loader.FetchFeed(context.Background(), http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	_, err = feed.SingleEntry()
	assert.ErrorIs(t, err, opds.ErrMultipleEntries)
}

func TestSingleEntryAcceptsGrouped(t *testing.T) {
	feedJSON := `{"groups":[{"title":"Featured","publications":[{"id":"urn:grouped"}]}]}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(feedJSON))
	}))
	defer srv.Close()

	loader := opds.NewHTTPLoader(srv.Client())
	feed, err := loader.FetchFeed(context.Background(), http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	entry, err := feed.SingleEntry()
	require.NoError(t, err)
	assert.Equal(t, "urn:grouped", entry.ID)

	// The ungrouped variant must refuse the same feed.
	_, err = feed.SingleUngroupedEntry()
	assert.ErrorIs(t, err, opds.ErrGroupedEntry)
}

func TestSingleEntryEmptyFeed(t *testing.T) {
	feed := &opds.Feed{}
	_, err := feed.SingleEntry()
	assert.ErrorIs(t, err, opds.ErrEmptyFeed)
}
