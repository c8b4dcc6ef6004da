// Package status is the registry of observable book states. Tasks publish
// into it; the UI observes it over the websocket hub.
package status

import (
	"sync"
	"time"

	"github.com/loanwell/lectern-go/internal/models"
)

// Broadcaster fans a status event out to connected observers. The websocket
// hub satisfies this.
type Broadcaster interface {
	BroadcastJSON(v interface{})
}

// progressInterval is the minimum spacing between published progress updates
// for a single book. First and forced updates always go through.
const progressInterval = 100 * time.Millisecond

// Registry holds the latest status per book and broadcasts every published
// event. Progress events are throttled per book so rapid download callbacks
// do not overwhelm observers.
type Registry struct {
	mu           sync.Mutex
	latest       map[models.BookID]models.BookStatus
	lastProgress map[models.BookID]time.Time
	hub          Broadcaster
	now          func() time.Time
}

// NewRegistry creates a registry broadcasting through hub. A nil hub is
// allowed; events are then only retained for polling.
func NewRegistry(hub Broadcaster) *Registry {
	return &Registry{
		latest:       make(map[models.BookID]models.BookStatus),
		lastProgress: make(map[models.BookID]time.Time),
		hub:          hub,
		now:          time.Now,
	}
}

// Publish records st as the book's latest status and broadcasts it. Progress
// events within progressInterval of the last published progress for the same
// book are suppressed unless forced or first.
func (r *Registry) Publish(st models.BookStatus) {
	if st.Timestamp.IsZero() {
		st.Timestamp = r.now()
	}

	r.mu.Lock()
	if st.Kind == models.StatusDownloadInProgress && !st.Force {
		last, seen := r.lastProgress[st.BookID]
		if seen && r.now().Sub(last) < progressInterval {
			r.mu.Unlock()
			return
		}
	}
	if st.Kind == models.StatusDownloadInProgress {
		r.lastProgress[st.BookID] = r.now()
	} else {
		delete(r.lastProgress, st.BookID)
	}
	r.latest[st.BookID] = st
	hub := r.hub
	r.mu.Unlock()

	if hub != nil {
		hub.BroadcastJSON(st)
	}
}

// Get returns the latest status for a book.
func (r *Registry) Get(id models.BookID) (models.BookStatus, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.latest[id]
	return st, ok
}

// All returns the latest status of every known book.
func (r *Registry) All() []models.BookStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.BookStatus, 0, len(r.latest))
	for _, st := range r.latest {
		out = append(out, st)
	}
	return out
}

// Clear removes a book from the registry, e.g. after deletion.
func (r *Registry) Clear(id models.BookID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.latest, id)
	delete(r.lastProgress, id)
}
