package testutil

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"
)

// CreateTestEPUB creates a minimal EPUB container in dir and returns its
// path. It's useful for tests that copy book payloads around.
func CreateTestEPUB(t *testing.T, dir, name string) string {
	t.Helper()
	filePath := filepath.Join(dir, name)
	file, err := os.Create(filePath)
	if err != nil {
		t.Fatalf("Failed to create temp epub file: %v", err)
	}
	t.Cleanup(func() { file.Close() }) // Ensure file is closed after test

	zipWriter := zip.NewWriter(file)
	defer zipWriter.Close()

	mimetype, err := zipWriter.Create("mimetype")
	if err != nil {
		t.Fatalf("Failed to create mimetype entry: %v", err)
	}
	if _, err := mimetype.Write([]byte("application/epub+zip")); err != nil {
		t.Fatalf("Failed to write mimetype entry: %v", err)
	}
	if _, err := zipWriter.Create("META-INF/container.xml"); err != nil {
		t.Fatalf("Failed to create container entry: %v", err)
	}
	return filePath
}
