package models

import (
	"time"

	"github.com/google/uuid"
)

// BookID identifies a book within one account's library. It is derived from
// the catalog entry ID and the owning account so the same publication borrowed
// through two accounts yields two independent books.
type BookID string

// MakeBookID derives a stable identifier from an account and a catalog entry.
func MakeBookID(accountID, entryID string) BookID {
	return BookID(uuid.NewSHA1(uuid.NameSpaceURL, []byte(accountID+"|"+entryID)).String())
}

// Book is the local record of a borrowed (or borrowable) publication.
type Book struct {
	ID        BookID    `json:"id"`
	AccountID string    `json:"account_id"`
	Entry     *Entry    `json:"entry"`
	CoverPath string    `json:"cover_path,omitempty"`
	Formats   []Format  `json:"formats,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Format is one locally stored rendition of a book.
type Format struct {
	ContentType string     `json:"content_type"`
	FilePath    string     `json:"file_path,omitempty"`
	ManifestURI string     `json:"manifest_uri,omitempty"`
	Rights      *DRMRights `json:"rights,omitempty"`
}

// PlaceholderBook synthesizes an in-memory book for failure reporting when the
// database entry could not be created. It is never persisted.
func PlaceholderBook(accountID string, entry *Entry) *Book {
	now := time.Now()
	return &Book{
		ID:        MakeBookID(accountID, entry.ID),
		AccountID: accountID,
		Entry:     entry,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
