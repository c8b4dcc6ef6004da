package db_test

import (
	"testing"
	"time"

	"github.com/loanwell/lectern-go/internal/testutil"
)

func TestForeignKeyCascadeDelete(t *testing.T) {
	// Setup test database with migrations already applied
	db := testutil.SetupTestDB(t)

	// Test 1: Verify foreign keys are enabled
	var foreignKeysEnabled int
	err := db.QueryRow("PRAGMA foreign_keys").Scan(&foreignKeysEnabled)
	if err != nil {
		t.Fatalf("Failed to check foreign keys status: %v", err)
	}
	if foreignKeysEnabled != 1 {
		t.Errorf("Foreign keys should be enabled, got: %d", foreignKeysEnabled)
	}

	// Test 2: Create a book with a stored format
	now := time.Now()
	_, err = db.Exec(
		"INSERT INTO books (id, account_id, title, entry_json, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)",
		"book-1", "acct-1", "Cascade Test", "{}", now, now)
	if err != nil {
		t.Fatalf("Failed to create test book: %v", err)
	}
	_, err = db.Exec(
		"INSERT INTO book_formats (book_id, content_type, file_path) VALUES (?, ?, ?)",
		"book-1", "application/epub+zip", "/tmp/book.epub")
	if err != nil {
		t.Fatalf("Failed to create test format: %v", err)
	}

	// Test 3: Delete the book and verify its formats cascade
	_, err = db.Exec("DELETE FROM books WHERE id = 'book-1'")
	if err != nil {
		t.Fatalf("Failed to delete book: %v", err)
	}

	var count int
	err = db.QueryRow("SELECT COUNT(*) FROM book_formats WHERE book_id = 'book-1'").Scan(&count)
	if err != nil {
		t.Fatalf("Failed to check book_formats: %v", err)
	}
	if count != 0 {
		t.Errorf("Expected 0 records in book_formats after book deletion, got %d", count)
	}
}
