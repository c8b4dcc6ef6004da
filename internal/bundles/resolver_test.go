package bundles_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/loanwell/lectern-go/internal/bundles"
)

func TestIsBundledURI(t *testing.T) {
	assert.True(t, bundles.IsBundledURI("bundled:sample.epub"))
	assert.True(t, bundles.IsBundledURI("bundled://sample.epub"))
	assert.False(t, bundles.IsBundledURI("https://example.com/sample.epub"))
	assert.False(t, bundles.IsBundledURI("sample.epub"))
}

func TestResolve(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sample.epub"), []byte("epub bytes"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "guide.pdf"), []byte("pdf bytes"), 0o644))

	r := bundles.NewResolver(dir)

	path, contentType, ok := r.Resolve("bundled:sample.epub")
	require.True(t, ok)
	assert.Equal(t, filepath.Join(dir, "sample.epub"), path)
	assert.Equal(t, "application/epub+zip", contentType)

	_, contentType, ok = r.Resolve("bundled:guide.pdf")
	require.True(t, ok)
	assert.Equal(t, "application/pdf", contentType)

	_, _, ok = r.Resolve("bundled:missing.epub")
	assert.False(t, ok)

	_, _, ok = r.Resolve("https://example.com/sample.epub")
	assert.False(t, ok)
}

func TestResolveMissingDirectory(t *testing.T) {
	r := bundles.NewResolver(filepath.Join(t.TempDir(), "does-not-exist"))
	_, _, ok := r.Resolve("bundled:sample.epub")
	assert.False(t, ok)
}

func TestWatchReindexes(t *testing.T) {
	dir := t.TempDir()
	r := bundles.NewResolver(dir)
	go r.Watch()
	// Give the watcher a moment to attach before mutating the directory.
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "late.epub"), []byte("epub bytes"), 0o644))

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, _, ok := r.Resolve("bundled:late.epub"); ok {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("Resolver did not pick up the new bundle file")
}
