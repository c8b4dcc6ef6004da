package downloads

import (
	"errors"
	"sync"

	"github.com/loanwell/lectern-go/internal/models"
)

// Cancellable is anything the registry can interrupt: a real download handle
// or the synthetic placeholder the DRM bridge registers while the connector
// owns the transfer.
type Cancellable interface {
	Cancel()
}

// ErrAlreadyDownloading is returned when a second download is registered for
// a book that already has a live one.
var ErrAlreadyDownloading = errors.New("a download is already in flight for this book")

// Registry maps each book to its single in-flight cancellable download. It is
// the only state shared across task instances and is safe for concurrent use.
type Registry struct {
	mu      sync.Mutex
	entries map[models.BookID]Cancellable
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[models.BookID]Cancellable)}
}

// Put registers the in-flight download for a book. At most one live entry per
// book is permitted.
func (r *Registry) Put(id models.BookID, c Cancellable) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[id]; exists {
		return ErrAlreadyDownloading
	}
	r.entries[id] = c
	return nil
}

// Remove drops the entry for a book. Callers must remove on every terminal
// state: completion, failure, cancellation, timeout.
func (r *Registry) Remove(id models.BookID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, id)
}

// Cancel interrupts the in-flight download for a book, reporting whether one
// existed.
func (r *Registry) Cancel(id models.BookID) bool {
	r.mu.Lock()
	c, ok := r.entries[id]
	r.mu.Unlock()
	if ok {
		c.Cancel()
	}
	return ok
}

// Len reports the number of live entries.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
