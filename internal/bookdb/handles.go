package bookdb

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/loanwell/lectern-go/internal/models"
)

// FormatHandle is the storage surface for one rendition of a book. The
// concrete type determines which copy-in operation applies: callers switch on
// *EPUBHandle, *PDFHandle and *AudiobookHandle.
type FormatHandle interface {
	ContentType() string
	// Delete removes the stored payload and the format row.
	Delete() error
}

// FindHandleForContentType returns the storage handle matching a negotiated
// content type, or false when the type has no local storage.
func (s *Store) FindHandleForContentType(id models.BookID, contentType string) (FormatHandle, bool) {
	base := formatBase{store: s, bookID: id, contentType: contentType}
	switch contentType {
	case models.TypeEPUB:
		return &EPUBHandle{formatBase: base}, true
	case models.TypePDF:
		return &PDFHandle{formatBase: base}, true
	case models.TypeAudiobook:
		return &AudiobookHandle{formatBase: base}, true
	default:
		return nil, false
	}
}

type formatBase struct {
	store       *Store
	bookID      models.BookID
	contentType string
}

func (f *formatBase) ContentType() string { return f.contentType }

func (f *formatBase) Delete() error {
	var filePath sql.NullString
	err := f.store.db.QueryRow(
		"SELECT file_path FROM book_formats WHERE book_id = ? AND content_type = ?",
		string(f.bookID), f.contentType,
	).Scan(&filePath)
	if err != nil && err != sql.ErrNoRows {
		return err
	}
	if _, err := f.store.db.Exec(
		"DELETE FROM book_formats WHERE book_id = ? AND content_type = ?",
		string(f.bookID), f.contentType,
	); err != nil {
		return err
	}
	if filePath.Valid && filePath.String != "" {
		if err := os.Remove(filePath.String); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

// copyInFile copies src into the book's directory under name and records the
// format row.
func (f *formatBase) copyInFile(src, name string) error {
	dir := f.store.BookDir(f.bookID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("could not create book directory: %w", err)
	}
	dst := filepath.Join(dir, name)

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("could not open source file: %w", err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("could not create stored file: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		os.Remove(dst)
		return fmt.Errorf("could not copy book data: %w", err)
	}

	_, err = f.store.db.Exec(`
        INSERT INTO book_formats (book_id, content_type, file_path)
        VALUES (?, ?, ?)
        ON CONFLICT(book_id, content_type) DO UPDATE SET file_path = excluded.file_path
    `, string(f.bookID), f.contentType, dst)
	return err
}

// EPUBHandle stores EPUB payloads and their DRM rights.
type EPUBHandle struct {
	formatBase
}

// CopyInBook copies the file at src into permanent storage.
func (h *EPUBHandle) CopyInBook(src string) error {
	return h.copyInFile(src, "book.epub")
}

// SetDRMRights attaches rights to the stored EPUB, or clears them when nil.
func (h *EPUBHandle) SetDRMRights(rights *models.DRMRights) error {
	var rightsJSON interface{}
	if rights != nil {
		data, err := json.Marshal(rights)
		if err != nil {
			return fmt.Errorf("could not serialize DRM rights: %w", err)
		}
		rightsJSON = string(data)
	}
	_, err := h.store.db.Exec(`
        INSERT INTO book_formats (book_id, content_type, rights_json)
        VALUES (?, ?, ?)
        ON CONFLICT(book_id, content_type) DO UPDATE SET rights_json = excluded.rights_json
    `, string(h.bookID), h.contentType, rightsJSON)
	return err
}

// Rights returns the rights currently attached to the stored EPUB, if any.
func (h *EPUBHandle) Rights() (*models.DRMRights, error) {
	var rightsJSON sql.NullString
	err := h.store.db.QueryRow(
		"SELECT rights_json FROM book_formats WHERE book_id = ? AND content_type = ?",
		string(h.bookID), h.contentType,
	).Scan(&rightsJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !rightsJSON.Valid || rightsJSON.String == "" {
		return nil, nil
	}
	var rights models.DRMRights
	if err := json.Unmarshal([]byte(rightsJSON.String), &rights); err != nil {
		return nil, fmt.Errorf("stored DRM rights are corrupt: %w", err)
	}
	return &rights, nil
}

// PDFHandle stores PDF payloads.
type PDFHandle struct {
	formatBase
}

// CopyInBook copies the file at src into permanent storage.
func (h *PDFHandle) CopyInBook(src string) error {
	return h.copyInFile(src, "book.pdf")
}

// AudiobookHandle stores audiobook manifests along with their origin URI.
type AudiobookHandle struct {
	formatBase
}

// CopyInManifestAndURI stores the manifest bytes and records where they came
// from so playback can resolve relative track links.
func (h *AudiobookHandle) CopyInManifestAndURI(manifest []byte, uri string) error {
	dir := h.store.BookDir(h.bookID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("could not create book directory: %w", err)
	}
	dst := filepath.Join(dir, "manifest.json")
	if err := os.WriteFile(dst, manifest, 0o644); err != nil {
		return fmt.Errorf("could not write audiobook manifest: %w", err)
	}

	_, err := h.store.db.Exec(`
        INSERT INTO book_formats (book_id, content_type, file_path, manifest_uri)
        VALUES (?, ?, ?, ?)
        ON CONFLICT(book_id, content_type) DO UPDATE SET
            file_path = excluded.file_path,
            manifest_uri = excluded.manifest_uri
    `, string(h.bookID), h.contentType, dst, uri)
	return err
}
