// To handle all book database interactions. This is the data access layer
// for locally held loans, keeping SQL queries separate from task logic.

package bookdb

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/loanwell/lectern-go/internal/models"
)

// ErrNotFound is returned when a book is not present in the database.
var ErrNotFound = errors.New("book not found")

// Store provides all functions to interact with the book database. Book rows
// live in SQLite; format payloads live on disk under the library path.
type Store struct {
	db          *sql.DB
	libraryPath string
}

// New creates a new Store instance.
func New(db *sql.DB, libraryPath string) *Store {
	return &Store{db: db, libraryPath: libraryPath}
}

// TempDir returns the directory downloads should stream into before being
// copied into a book's storage.
func (s *Store) TempDir() string {
	dir := filepath.Join(s.libraryPath, "tmp")
	os.MkdirAll(dir, 0o755)
	return dir
}

// BookDir returns the on-disk directory holding a book's format payloads.
func (s *Store) BookDir(id models.BookID) string {
	return filepath.Join(s.libraryPath, "books", string(id))
}

// CreateOrUpdate inserts the book for (accountID, entry) or refreshes its
// catalog entry if it already exists.
func (s *Store) CreateOrUpdate(accountID string, entry *models.Entry) (*models.Book, error) {
	id := models.MakeBookID(accountID, entry.ID)
	entryJSON, err := json.Marshal(entry)
	if err != nil {
		return nil, fmt.Errorf("could not serialize catalog entry: %w", err)
	}

	now := time.Now()
	availability, loanEnd := availabilityColumns(entry)
	_, err = s.db.Exec(`
        INSERT INTO books (id, account_id, title, entry_json, availability, loan_end, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET
            title = excluded.title,
            entry_json = excluded.entry_json,
            availability = excluded.availability,
            loan_end = excluded.loan_end,
            updated_at = excluded.updated_at
    `, string(id), accountID, entry.Title, string(entryJSON), availability, loanEnd, now, now)
	if err != nil {
		return nil, fmt.Errorf("could not upsert book: %w", err)
	}
	return s.Get(id)
}

// UpdateEntry replaces the stored catalog entry for an existing book.
func (s *Store) UpdateEntry(id models.BookID, entry *models.Entry) (*models.Book, error) {
	entryJSON, err := json.Marshal(entry)
	if err != nil {
		return nil, fmt.Errorf("could not serialize catalog entry: %w", err)
	}
	availability, loanEnd := availabilityColumns(entry)
	result, err := s.db.Exec(`
        UPDATE books SET title = ?, entry_json = ?, availability = ?, loan_end = ?, updated_at = ?
        WHERE id = ?
    `, entry.Title, string(entryJSON), availability, loanEnd, time.Now(), string(id))
	if err != nil {
		return nil, fmt.Errorf("could not update book entry: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, ErrNotFound
	}
	return s.Get(id)
}

// Get retrieves a book and its stored formats.
func (s *Store) Get(id models.BookID) (*models.Book, error) {
	row := s.db.QueryRow(`
        SELECT id, account_id, entry_json, cover_path, created_at, updated_at
        FROM books WHERE id = ?
    `, string(id))
	book, err := scanBook(row)
	if err != nil {
		return nil, err
	}
	formats, err := s.formats(id)
	if err != nil {
		return nil, err
	}
	book.Formats = formats
	return book, nil
}

// List retrieves every book in the database.
func (s *Store) List() ([]*models.Book, error) {
	rows, err := s.db.Query(`
        SELECT id, account_id, entry_json, cover_path, created_at, updated_at
        FROM books ORDER BY updated_at DESC
    `)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var books []*models.Book
	for rows.Next() {
		book, err := scanBook(rows)
		if err != nil {
			return nil, err
		}
		books = append(books, book)
	}
	for _, book := range books {
		formats, err := s.formats(book.ID)
		if err != nil {
			return nil, err
		}
		book.Formats = formats
	}
	return books, nil
}

// ListExpiredLoans retrieves loaned books whose loan end has passed.
func (s *Store) ListExpiredLoans(now time.Time) ([]*models.Book, error) {
	rows, err := s.db.Query(`
        SELECT id, account_id, entry_json, cover_path, created_at, updated_at
        FROM books WHERE availability = 'loaned' AND loan_end IS NOT NULL AND loan_end < ?
    `, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var books []*models.Book
	for rows.Next() {
		book, err := scanBook(rows)
		if err != nil {
			return nil, err
		}
		books = append(books, book)
	}
	return books, nil
}

// Delete removes the book's database rows and every on-disk payload.
func (s *Store) Delete(id models.BookID) error {
	result, err := s.db.Exec("DELETE FROM books WHERE id = ?", string(id))
	if err != nil {
		return fmt.Errorf("could not delete book: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	if err := os.RemoveAll(s.BookDir(id)); err != nil {
		return fmt.Errorf("could not delete book files: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanBook(row rowScanner) (*models.Book, error) {
	var book models.Book
	var id, entryJSON string
	var coverPath sql.NullString
	err := row.Scan(&id, &book.AccountID, &entryJSON, &coverPath, &book.CreatedAt, &book.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	book.ID = models.BookID(id)
	book.CoverPath = coverPath.String

	var entry models.Entry
	if err := json.Unmarshal([]byte(entryJSON), &entry); err != nil {
		return nil, fmt.Errorf("stored catalog entry is corrupt: %w", err)
	}
	book.Entry = &entry
	return &book, nil
}

func (s *Store) formats(id models.BookID) ([]models.Format, error) {
	rows, err := s.db.Query(`
        SELECT content_type, file_path, manifest_uri, rights_json
        FROM book_formats WHERE book_id = ?
    `, string(id))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var formats []models.Format
	for rows.Next() {
		var f models.Format
		var filePath, manifestURI, rightsJSON sql.NullString
		if err := rows.Scan(&f.ContentType, &filePath, &manifestURI, &rightsJSON); err != nil {
			return nil, err
		}
		f.FilePath = filePath.String
		f.ManifestURI = manifestURI.String
		if rightsJSON.Valid && rightsJSON.String != "" {
			var rights models.DRMRights
			if err := json.Unmarshal([]byte(rightsJSON.String), &rights); err != nil {
				return nil, fmt.Errorf("stored DRM rights are corrupt: %w", err)
			}
			f.Rights = &rights
		}
		formats = append(formats, f)
	}
	return formats, nil
}

func availabilityColumns(entry *models.Entry) (string, *time.Time) {
	if entry.Availability == nil {
		return "loanable", nil
	}
	state := models.AvailabilityState(entry.Availability)
	if loaned, ok := entry.Availability.(models.AvailLoaned); ok {
		return state, loaned.EndDate
	}
	return state, nil
}
