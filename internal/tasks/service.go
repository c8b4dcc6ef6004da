package tasks

import (
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/loanwell/lectern-go/internal/accounts"
	"github.com/loanwell/lectern-go/internal/bookdb"
	"github.com/loanwell/lectern-go/internal/bundles"
	"github.com/loanwell/lectern-go/internal/config"
	"github.com/loanwell/lectern-go/internal/downloads"
	"github.com/loanwell/lectern-go/internal/drm"
	"github.com/loanwell/lectern-go/internal/models"
	"github.com/loanwell/lectern-go/internal/opds"
	"github.com/loanwell/lectern-go/internal/status"
	"github.com/loanwell/lectern-go/internal/taskrec"
)

// ErrTaskInFlight is returned when a borrow or revoke is submitted for a book
// that already has one running.
var ErrTaskInFlight = errors.New("a task is already running for this book")

// Service owns the borrow/revoke pipelines: it validates submissions, runs
// each task on its own worker slot, and fans results out to the status
// registry.
type Service struct {
	cfg      *config.Config
	accounts accounts.Registry
	books    *bookdb.Store
	status   *status.Registry
	registry *downloads.Registry
	engine   *downloads.Engine
	feeds    opds.FeedLoader
	bundles  *bundles.Resolver

	// drmBridge is nil when the application was built without DRM support.
	drmBridge *drm.Bridge

	sem      chan struct{}
	mu       sync.Mutex
	inflight map[models.BookID]string
}

// NewService wires the task pipelines. drmBridge may be nil; license
// fulfillment then fails with drm-unsupported.
func NewService(
	cfg *config.Config,
	accts accounts.Registry,
	books *bookdb.Store,
	statusReg *status.Registry,
	registry *downloads.Registry,
	engine *downloads.Engine,
	feeds opds.FeedLoader,
	bundleResolver *bundles.Resolver,
	drmBridge *drm.Bridge,
) *Service {
	workers := cfg.Download.Workers
	if workers <= 0 {
		workers = 1
	}
	return &Service{
		cfg:       cfg,
		accounts:  accts,
		books:     books,
		status:    statusReg,
		registry:  registry,
		engine:    engine,
		feeds:     feeds,
		bundles:   bundleResolver,
		drmBridge: drmBridge,
		sem:       make(chan struct{}, workers),
		inflight:  make(map[models.BookID]string),
	}
}

// DRMBridge exposes the bridge for device management endpoints. It is nil
// when DRM is unsupported.
func (s *Service) DRMBridge() *drm.Bridge { return s.drmBridge }

// Borrow submits a borrow task for the catalog entry and returns the ID the
// resulting book will have. The task runs asynchronously; progress and the
// final result are published to the status registry.
func (s *Service) Borrow(profileID, accountID string, entry *models.Entry) (models.BookID, error) {
	bookID := models.MakeBookID(accountID, entry.ID)
	if err := s.claim(bookID, "borrow"); err != nil {
		return bookID, err
	}
	go func() {
		defer s.release(bookID)
		s.RunBorrow(profileID, accountID, entry)
	}()
	return bookID, nil
}

// Revoke submits a revoke task for an existing book. The task runs
// asynchronously.
func (s *Service) Revoke(profileID, accountID string, bookID models.BookID) error {
	if err := s.claim(bookID, "revoke"); err != nil {
		return err
	}
	go func() {
		defer s.release(bookID)
		s.RunRevoke(profileID, accountID, bookID)
	}()
	return nil
}

// Cancel interrupts the in-flight download for a book, if any.
func (s *Service) Cancel(bookID models.BookID) bool {
	return s.registry.Cancel(bookID)
}

func (s *Service) claim(bookID models.BookID, kind string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.inflight[bookID]; ok {
		return fmt.Errorf("%w (%s)", ErrTaskInFlight, existing)
	}
	s.inflight[bookID] = kind
	return nil
}

func (s *Service) release(bookID models.BookID) {
	s.mu.Lock()
	delete(s.inflight, bookID)
	s.mu.Unlock()
}

// run executes fn inside a worker slot with panic containment, so a bug in
// one task can never take down the process or leak a worker.
func (s *Service) run(kind string, bookID models.BookID, fn func() taskrec.Result) (result taskrec.Result) {
	s.sem <- struct{}{}
	defer func() { <-s.sem }()
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Task %s for book %s panicked: %v", kind, bookID, r)
			rec := taskrec.NewRecorder()
			rec.CurrentStepFailed("The task terminated unexpectedly.", taskrec.ErrorValue{
				Code:    CodeUnexpectedException,
				Message: fmt.Sprintf("The task terminated unexpectedly: %v", r),
			}, fmt.Errorf("task panicked: %v", r))
			result = rec.FinishFailure()
		}
	}()
	return fn()
}
