// Package opds is the boundary to the catalog protocol. Tasks only depend on
// the FeedLoader interface; the HTTP implementation speaks the JSON feed
// dialect the catalog serves.
package opds

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/loanwell/lectern-go/internal/models"
)

var (
	// ErrEmptyFeed is returned when a feed response contains no entries.
	ErrEmptyFeed = errors.New("feed contains no entries")
	// ErrCorruptEntry is returned when a feed entry cannot be decoded.
	ErrCorruptEntry = errors.New("feed entry is corrupt")
	// ErrGroupedEntry is returned when an entry arrives inside a group where
	// a groupless feed was required.
	ErrGroupedEntry = errors.New("feed entry is grouped")
	// ErrMultipleEntries is returned when a single-entry feed was required.
	ErrMultipleEntries = errors.New("feed contains more than one entry")
)

// HTTPError carries the status and optional problem report of a failed feed
// request.
type HTTPError struct {
	Status  int
	Problem *models.Problem
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("feed request failed with HTTP status %d", e.Status)
}

// Feed is a catalog feed response, possibly grouped.
type Feed struct {
	Publications []json.RawMessage `json:"publications"`
	Groups       []Group           `json:"groups"`
}

// Group is a titled sub-collection within a feed.
type Group struct {
	Title        string            `json:"title"`
	Publications []json.RawMessage `json:"publications"`
}

// SingleEntry requires the feed to contain exactly one entry, grouped or not,
// and decodes it.
func (f *Feed) SingleEntry() (*models.Entry, error) {
	raws := make([]json.RawMessage, 0, 1)
	raws = append(raws, f.Publications...)
	for _, g := range f.Groups {
		raws = append(raws, g.Publications...)
	}
	return decodeSingle(raws)
}

// SingleUngroupedEntry requires the feed to contain exactly one entry outside
// any group and decodes it.
func (f *Feed) SingleUngroupedEntry() (*models.Entry, error) {
	for _, g := range f.Groups {
		if len(g.Publications) > 0 {
			return nil, ErrGroupedEntry
		}
	}
	return decodeSingle(f.Publications)
}

func decodeSingle(raws []json.RawMessage) (*models.Entry, error) {
	switch len(raws) {
	case 0:
		return nil, ErrEmptyFeed
	case 1:
	default:
		return nil, ErrMultipleEntries
	}
	var entry models.Entry
	if err := json.Unmarshal(raws[0], &entry); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptEntry, err)
	}
	if entry.ID == "" {
		return nil, fmt.Errorf("%w: entry has no id", ErrCorruptEntry)
	}
	return &entry, nil
}

// FeedLoader fetches feeds from the catalog.
type FeedLoader interface {
	// FetchFeed issues method against uri with optional authorization and
	// decodes the response as a feed. The context bounds the whole
	// round-trip.
	FetchFeed(ctx context.Context, method, uri string, auth *models.Authorization) (*Feed, error)
}

// HTTPLoader is the production FeedLoader.
type HTTPLoader struct {
	client *http.Client
}

// NewHTTPLoader creates a loader on top of client; a nil client gets a
// default with sane keep-alive behavior. Timeouts are enforced per call via
// the context, not on the client.
func NewHTTPLoader(client *http.Client) *HTTPLoader {
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPLoader{client: client}
}

var _ FeedLoader = (*HTTPLoader)(nil)

// FetchFeed implements FeedLoader.
func (l *HTTPLoader) FetchFeed(ctx context.Context, method, uri string, auth *models.Authorization) (*Feed, error) {
	req, err := http.NewRequestWithContext(ctx, method, uri, nil)
	if err != nil {
		return nil, fmt.Errorf("could not build feed request: %w", err)
	}
	req.Header.Set("Accept", "application/opds+json")
	if auth != nil {
		req.Header.Set("Authorization", auth.HeaderValue())
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("feed request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, fmt.Errorf("could not read feed response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, &HTTPError{Status: resp.StatusCode, Problem: models.ParseProblem(body)}
	}

	var feed Feed
	if err := json.Unmarshal(body, &feed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptEntry, err)
	}
	if len(feed.Publications) == 0 && len(feed.Groups) == 0 {
		// Some servers respond to a borrow PUT with a bare entry rather
		// than a feed wrapper. Accept that too.
		var entry models.Entry
		if err := json.Unmarshal(body, &entry); err == nil && entry.ID != "" {
			return &Feed{Publications: []json.RawMessage{json.RawMessage(body)}}, nil
		}
	}
	return &feed, nil
}
