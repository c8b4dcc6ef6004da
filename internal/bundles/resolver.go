// Package bundles resolves acquisition URIs that point at content shipped
// with the application instead of the network.
package bundles

import (
	"fmt"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Scheme marks an acquisition URI as bundled content.
const Scheme = "bundled"

// IsBundledURI reports whether uri addresses bundled content.
func IsBundledURI(uri string) bool {
	u, err := url.Parse(uri)
	return err == nil && u.Scheme == Scheme
}

// Resolver indexes a directory of bundled content files and resolves
// bundled:// URIs against it. The index refreshes when the directory
// changes.
type Resolver struct {
	dir string

	mu    sync.RWMutex
	index map[string]string
}

// NewResolver indexes dir. A missing directory yields an empty resolver
// rather than an error: most installations ship no bundled content.
func NewResolver(dir string) *Resolver {
	r := &Resolver{dir: dir, index: make(map[string]string)}
	r.reindex()
	return r
}

// Watch refreshes the index when the bundle directory changes. It blocks and
// is meant to run in its own goroutine; it returns when the watcher fails or
// the directory cannot be watched.
func (r *Resolver) Watch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("could not create bundle watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(r.dir); err != nil {
		return fmt.Errorf("could not watch bundle directory: %w", err)
	}

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Remove|fsnotify.Rename|fsnotify.Write) != 0 {
				log.Printf("Bundle directory changed (%s), reindexing...", event.Name)
				r.reindex()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Printf("Bundle watcher error: %v", err)
		}
	}
}

func (r *Resolver) reindex() {
	index := make(map[string]string)
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("Could not read bundle directory %s: %v", r.dir, err)
		}
		r.mu.Lock()
		r.index = index
		r.mu.Unlock()
		return
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		index[entry.Name()] = filepath.Join(r.dir, entry.Name())
	}
	r.mu.Lock()
	r.index = index
	r.mu.Unlock()
}

// Resolve maps a bundled URI to the file path and content type of the
// bundled payload.
func (r *Resolver) Resolve(uri string) (path, contentType string, ok bool) {
	u, err := url.Parse(uri)
	if err != nil || u.Scheme != Scheme {
		return "", "", false
	}
	name := strings.TrimPrefix(u.Opaque, "/")
	if name == "" {
		name = strings.TrimPrefix(u.Host+u.Path, "/")
	}

	r.mu.RLock()
	path, ok = r.index[name]
	r.mu.RUnlock()
	if !ok {
		return "", "", false
	}

	switch strings.ToLower(filepath.Ext(name)) {
	case ".epub":
		contentType = "application/epub+zip"
	case ".pdf":
		contentType = "application/pdf"
	case ".json":
		contentType = "application/audiobook+json"
	default:
		contentType = "application/octet-stream"
	}
	return path, contentType, true
}
