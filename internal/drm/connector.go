// Package drm adapts the legacy callback-driven DRM connector into blocking
// calls the task pipelines can consume.
package drm

import (
	"errors"
	"fmt"

	"github.com/loanwell/lectern-go/internal/models"
)

// Activation is one device activation reported by the connector.
type Activation struct {
	Vendor   string `json:"vendor"`
	UserID   string `json:"user_id"`
	DeviceID string `json:"device_id"`
}

// ActivationClient receives activation results. An empty errCode means the
// activation succeeded.
type ActivationClient interface {
	OnActivation(index int, activation Activation, errCode string)
	OnActivationsComplete()
}

// DeactivationClient receives the result of a deactivation.
type DeactivationClient interface {
	OnDeactivationResult(errCode string)
}

// FulfillmentClient receives fulfillment progress and its terminal result.
type FulfillmentClient interface {
	OnFulfillmentProgress(received, total int64)
	OnFulfillmentResult(file string, rights models.DRMRights, errCode string)
}

// RevocationClient receives the result of a loan revocation.
type RevocationClient interface {
	OnRevocationResult(errCode string)
}

// Connector is the legacy DRM connector surface. It executes one command at a
// time on its own thread and reports every outcome through the supplied
// client object, never through return values. Calls return as soon as the
// command is queued.
type Connector interface {
	Activate(vendorID, clientToken string, client ActivationClient)
	Deactivate(vendorID, userID, clientToken string, client DeactivationClient)
	Fulfill(license []byte, outputPath string, client FulfillmentClient)
	Revoke(rights models.DRMRights, userID string, client RevocationClient)

	// Cancel interrupts whichever command is currently executing.
	Cancel()
}

// ConnectorError carries the raw error code string the connector reported.
type ConnectorError struct {
	Code string
}

func (e *ConnectorError) Error() string {
	return fmt.Sprintf("DRM connector error: %s", e.Code)
}

// ErrNoActivations is returned when an activation completes without
// activating any device.
var ErrNoActivations = errors.New("device activation reported no activations")
