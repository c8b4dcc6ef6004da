// Package downloads performs HTTP content downloads into temporary files and
// tracks the in-flight, cancellable transfer for each book.
package downloads

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/loanwell/lectern-go/internal/metrics"
	"github.com/loanwell/lectern-go/internal/models"
)

// ProgressFunc receives transfer progress. expected is -1 when the server did
// not declare a length. force marks updates that must be delivered to
// observers regardless of throttling (first byte, completion).
type ProgressFunc func(received, expected int64, force bool)

// Outcome is the closed set of terminal download states.
type Outcome interface {
	isOutcome()
}

// OutcomeOK is a completed download: the temporary file and the content type
// the server declared.
type OutcomeOK struct {
	File        string
	ContentType string
}

// OutcomeFailed is a download that ended in an HTTP or transport error.
type OutcomeFailed struct {
	Status  int
	Problem *models.Problem
	Err     error
}

// OutcomeCancelled is a download interrupted through its handle.
type OutcomeCancelled struct{}

func (OutcomeOK) isOutcome()        {}
func (OutcomeFailed) isOutcome()    {}
func (OutcomeCancelled) isOutcome() {}

// ErrTimedOut is returned by Await when the caller's deadline expires before
// the download settles.
var ErrTimedOut = errors.New("download timed out")

// Handle tracks one in-flight download. Cancel may be called from any
// goroutine; the terminal outcome then resolves to OutcomeCancelled.
type Handle struct {
	done    chan struct{}
	outcome Outcome
	cancel  context.CancelFunc
}

func newHandle(cancel context.CancelFunc) *Handle {
	return &Handle{done: make(chan struct{}), cancel: cancel}
}

// Cancel interrupts the transfer.
func (h *Handle) Cancel() {
	h.cancel()
}

// Await blocks until the download settles or ctx expires. On expiry it
// returns ErrTimedOut without cancelling; the caller owns that decision.
func (h *Handle) Await(ctx context.Context) (Outcome, error) {
	select {
	case <-h.done:
		return h.outcome, nil
	case <-ctx.Done():
		return nil, ErrTimedOut
	}
}

func (h *Handle) settle(o Outcome) {
	h.outcome = o
	close(h.done)
}

// Request describes one download.
type Request struct {
	URI           string
	Authorization *models.Authorization
	Progress      ProgressFunc
}

// Engine streams HTTP responses into temporary files.
type Engine struct {
	client *http.Client
	tmpDir string
}

// NewEngine creates an engine writing temporary files under tmpDir. A nil
// client gets a default; per-download deadlines come from contexts, not the
// client.
func NewEngine(client *http.Client, tmpDir string) *Engine {
	if client == nil {
		client = &http.Client{}
	}
	return &Engine{client: client, tmpDir: tmpDir}
}

// Download starts the transfer and returns immediately with its handle.
func (e *Engine) Download(ctx context.Context, req Request) *Handle {
	ctx, cancel := context.WithCancel(ctx)
	h := newHandle(cancel)
	go func() {
		defer cancel()
		h.settle(e.run(ctx, req))
	}()
	return h
}

func (e *Engine) run(ctx context.Context, req Request) Outcome {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URI, nil)
	if err != nil {
		return OutcomeFailed{Err: fmt.Errorf("could not build download request: %w", err)}
	}
	if req.Authorization != nil {
		httpReq.Header.Set("Authorization", req.Authorization.HeaderValue())
	}

	resp, err := e.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return OutcomeCancelled{}
		}
		return OutcomeFailed{Err: fmt.Errorf("download request failed: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		var problem *models.Problem
		if strings.Contains(resp.Header.Get("Content-Type"), "problem+json") {
			problem = models.ParseProblem(body)
		}
		metrics.DownloadEvents.WithLabelValues("failed").Inc()
		return OutcomeFailed{Status: resp.StatusCode, Problem: problem}
	}

	tmp, err := os.CreateTemp(e.tmpDir, "lectern-download-*")
	if err != nil {
		return OutcomeFailed{Err: fmt.Errorf("could not create temporary file: %w", err)}
	}
	defer tmp.Close()

	expected := resp.ContentLength
	progress := req.Progress
	if progress == nil {
		progress = func(int64, int64, bool) {}
	}
	progress(0, expected, true)

	var received int64
	buf := make([]byte, 64*1024)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if _, writeErr := tmp.Write(buf[:n]); writeErr != nil {
				os.Remove(tmp.Name())
				return OutcomeFailed{Err: fmt.Errorf("could not write download data: %w", writeErr)}
			}
			received += int64(n)
			metrics.DownloadBytes.Add(float64(n))
			progress(received, expected, false)
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			os.Remove(tmp.Name())
			if ctx.Err() != nil {
				metrics.DownloadEvents.WithLabelValues("cancelled").Inc()
				return OutcomeCancelled{}
			}
			metrics.DownloadEvents.WithLabelValues("failed").Inc()
			return OutcomeFailed{Err: fmt.Errorf("download interrupted: %w", readErr)}
		}
	}

	progress(received, expected, true)
	metrics.DownloadEvents.WithLabelValues("complete").Inc()

	contentType := resp.Header.Get("Content-Type")
	if i := strings.Index(contentType, ";"); i >= 0 {
		contentType = strings.TrimSpace(contentType[:i])
	}
	return OutcomeOK{File: tmp.Name(), ContentType: contentType}
}
