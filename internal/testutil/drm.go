package testutil

import (
	"sync"

	"github.com/loanwell/lectern-go/internal/drm"
	"github.com/loanwell/lectern-go/internal/models"
)

// FakeConnector is a scriptable drm.Connector. Every command runs its
// callbacks on a fresh goroutine, matching the real connector's behavior of
// reporting from its own thread.
type FakeConnector struct {
	Activations []drm.Activation
	ActivateErr string

	DeactivateErr string

	FulfillFile   string
	FulfillRights models.DRMRights
	FulfillErr    string

	RevokeErr string

	mu             sync.Mutex
	fulfillCalls   int
	revokeCalls    int
	cancelled      bool
	lastRevokeUser string
}

func (c *FakeConnector) Activate(vendorID, clientToken string, client drm.ActivationClient) {
	activations := c.Activations
	errCode := c.ActivateErr
	go func() {
		for i, a := range activations {
			client.OnActivation(i, a, "")
		}
		if errCode != "" {
			client.OnActivation(len(activations), drm.Activation{}, errCode)
		}
		client.OnActivationsComplete()
	}()
}

func (c *FakeConnector) Deactivate(vendorID, userID, clientToken string, client drm.DeactivationClient) {
	errCode := c.DeactivateErr
	go func() {
		client.OnDeactivationResult(errCode)
	}()
}

func (c *FakeConnector) Fulfill(license []byte, outputPath string, client drm.FulfillmentClient) {
	c.mu.Lock()
	c.fulfillCalls++
	file := c.FulfillFile
	rights := c.FulfillRights
	errCode := c.FulfillErr
	c.mu.Unlock()
	go func() {
		if errCode != "" {
			client.OnFulfillmentResult("", models.DRMRights{}, errCode)
			return
		}
		client.OnFulfillmentProgress(0, 100)
		client.OnFulfillmentProgress(100, 100)
		client.OnFulfillmentResult(file, rights, "")
	}()
}

func (c *FakeConnector) Revoke(rights models.DRMRights, userID string, client drm.RevocationClient) {
	c.mu.Lock()
	c.revokeCalls++
	c.lastRevokeUser = userID
	errCode := c.RevokeErr
	c.mu.Unlock()
	go func() {
		client.OnRevocationResult(errCode)
	}()
}

func (c *FakeConnector) Cancel() {
	c.mu.Lock()
	c.cancelled = true
	c.mu.Unlock()
}

func (c *FakeConnector) FulfillCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fulfillCalls
}

func (c *FakeConnector) RevokeCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.revokeCalls
}

func (c *FakeConnector) Cancelled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancelled
}
