package drm

import (
	"context"
	"sync"

	"github.com/loanwell/lectern-go/internal/downloads"
	"github.com/loanwell/lectern-go/internal/metrics"
	"github.com/loanwell/lectern-go/internal/models"
)

// Bridge exposes the connector's callback protocol as blocking calls. Each
// operation settles a single-shot result channel from the connector's
// callback thread; the caller's context bounds the wait and converts an
// expiry into a connector cancel.
//
// The connector allows one command in flight across the whole process. The
// bridge's mutex preserves that: a second command never starts before the
// first settles.
type Bridge struct {
	conn     Connector
	registry *downloads.Registry
	mu       sync.Mutex
}

// NewBridge wraps a connector. The download registry is shared with the rest
// of the system so user-initiated cancels can reach an in-flight fulfillment.
func NewBridge(conn Connector, registry *downloads.Registry) *Bridge {
	return &Bridge{conn: conn, registry: registry}
}

type activateResult struct {
	activations []Activation
	err         error
}

type activationCollector struct {
	activations []Activation
	firstErr    error
	result      chan activateResult
}

func (c *activationCollector) OnActivation(index int, activation Activation, errCode string) {
	if errCode != "" {
		if c.firstErr == nil {
			c.firstErr = &ConnectorError{Code: errCode}
		}
		return
	}
	c.activations = append(c.activations, activation)
}

func (c *activationCollector) OnActivationsComplete() {
	switch {
	case c.firstErr != nil:
		c.result <- activateResult{err: c.firstErr}
	case len(c.activations) == 0:
		c.result <- activateResult{err: ErrNoActivations}
	default:
		c.result <- activateResult{activations: c.activations}
	}
}

// Activate activates this device with the vendor and returns the resulting
// credentials.
func (b *Bridge) Activate(ctx context.Context, vendorID, clientToken string) ([]Activation, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	collector := &activationCollector{result: make(chan activateResult, 1)}
	b.conn.Activate(vendorID, clientToken, collector)

	select {
	case res := <-collector.result:
		if res.err != nil {
			metrics.DRMOperations.WithLabelValues("activate", "error").Inc()
			return nil, res.err
		}
		metrics.DRMOperations.WithLabelValues("activate", "ok").Inc()
		return res.activations, nil
	case <-ctx.Done():
		b.conn.Cancel()
		metrics.DRMOperations.WithLabelValues("activate", "timeout").Inc()
		return nil, ctx.Err()
	}
}

type deactivationWaiter struct {
	result chan error
}

func (w *deactivationWaiter) OnDeactivationResult(errCode string) {
	if errCode != "" {
		w.result <- &ConnectorError{Code: errCode}
		return
	}
	w.result <- nil
}

// Deactivate releases this device's activation with the vendor.
func (b *Bridge) Deactivate(ctx context.Context, vendorID, userID, clientToken string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	waiter := &deactivationWaiter{result: make(chan error, 1)}
	b.conn.Deactivate(vendorID, userID, clientToken, waiter)

	select {
	case err := <-waiter.result:
		if err != nil {
			metrics.DRMOperations.WithLabelValues("deactivate", "error").Inc()
			return err
		}
		metrics.DRMOperations.WithLabelValues("deactivate", "ok").Inc()
		return nil
	case <-ctx.Done():
		b.conn.Cancel()
		metrics.DRMOperations.WithLabelValues("deactivate", "timeout").Inc()
		return ctx.Err()
	}
}

// Fulfillment is the product of a successful license fulfillment.
type Fulfillment struct {
	File   string
	Rights models.DRMRights
}

type fulfillmentWaiter struct {
	progress downloads.ProgressFunc
	result   chan fulfillResult
}

type fulfillResult struct {
	fulfillment Fulfillment
	err         error
}

func (w *fulfillmentWaiter) OnFulfillmentProgress(received, total int64) {
	if w.progress != nil {
		w.progress(received, total, false)
	}
}

func (w *fulfillmentWaiter) OnFulfillmentResult(file string, rights models.DRMRights, errCode string) {
	if errCode != "" {
		w.result <- fulfillResult{err: &ConnectorError{Code: errCode}}
		return
	}
	w.result <- fulfillResult{fulfillment: Fulfillment{File: file, Rights: rights}}
}

// connectorCancel lets the download registry interrupt the connector while it
// owns the transfer.
type connectorCancel struct {
	conn Connector
}

func (c connectorCancel) Cancel() { c.conn.Cancel() }

// Fulfill parses and validates the license, then drives the connector to
// produce the decrypted file and its rights. For the duration of the call a
// synthetic cancellable entry is registered for the book so a user cancel
// elsewhere in the system reaches the connector.
func (b *Bridge) Fulfill(ctx context.Context, bookID models.BookID, license []byte, outputPath string, progress downloads.ProgressFunc) (*Fulfillment, error) {
	doc, err := ParseLicense(license)
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.registry != nil {
		if err := b.registry.Put(bookID, connectorCancel{conn: b.conn}); err == nil {
			defer b.registry.Remove(bookID)
		}
	}

	waiter := &fulfillmentWaiter{progress: progress, result: make(chan fulfillResult, 1)}
	b.conn.Fulfill(doc.Raw, outputPath, waiter)

	select {
	case res := <-waiter.result:
		if res.err != nil {
			metrics.DRMOperations.WithLabelValues("fulfill", "error").Inc()
			return nil, res.err
		}
		metrics.DRMOperations.WithLabelValues("fulfill", "ok").Inc()
		return &res.fulfillment, nil
	case <-ctx.Done():
		b.conn.Cancel()
		metrics.DRMOperations.WithLabelValues("fulfill", "timeout").Inc()
		return nil, ctx.Err()
	}
}

type revocationWaiter struct {
	result chan error
}

func (w *revocationWaiter) OnRevocationResult(errCode string) {
	if errCode != "" {
		w.result <- &ConnectorError{Code: errCode}
		return
	}
	w.result <- nil
}

// Revoke returns the loan's rights to the vendor.
func (b *Bridge) Revoke(ctx context.Context, rights models.DRMRights, userID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	waiter := &revocationWaiter{result: make(chan error, 1)}
	b.conn.Revoke(rights, userID, waiter)

	select {
	case err := <-waiter.result:
		if err != nil {
			metrics.DRMOperations.WithLabelValues("revoke", "error").Inc()
			return err
		}
		metrics.DRMOperations.WithLabelValues("revoke", "ok").Inc()
		return nil
	case <-ctx.Done():
		b.conn.Cancel()
		metrics.DRMOperations.WithLabelValues("revoke", "timeout").Inc()
		return ctx.Err()
	}
}
