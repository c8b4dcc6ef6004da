package tasks

import (
	"errors"
	"fmt"

	"github.com/loanwell/lectern-go/internal/taskrec"
)

// Stable task error codes surfaced to clients. These are the structured
// values attached to failed steps; Go error types only travel alongside them.
const (
	CodeProfileNotFound                = "profile-not-found"
	CodeAccountLookupFailed            = "account-lookup-failed"
	CodeNoUsableAcquisition            = "no-usable-acquisition"
	CodeBadBorrowFeed                  = "bad-borrow-feed"
	CodeUnsupportedAcquisitionRelation = "unsupported-acquisition-relation"
	CodeHTTPRequestFailed              = "http-request-failed"
	CodeFeedLoaderFailed               = "feed-loader-failed"
	CodeUnexpectedContentType          = "unexpected-content-type"
	CodeUnsupportedContentType         = "unsupported-content-type"
	CodeUnparseableBearerToken         = "unparseable-bearer-token"
	CodeDRMUnsupported                 = "drm-unsupported"
	CodeDRMDeviceNotActive             = "drm-device-not-active"
	CodeDRMUnparseableLicense          = "drm-unparseable-license"
	CodeDRMUnreadableLicense           = "drm-unreadable-license"
	CodeDRMConnectorFailure            = "drm-connector-failure"
	CodeTimedOut                       = "timed-out"
	CodeCancelled                      = "cancelled"
	CodeNotRevocable                   = "not-revocable"
	CodeBadRevokeFeed                  = "bad-revoke-feed"
	CodeUnexpectedException            = "unexpected-exception"
)

// errAlreadyHandled wraps failures that have been recorded as a failed step
// already, so the task base does not record them a second time.
var errAlreadyHandled = errors.New("task failed")

// failStep records the failure on the recorder's current step and returns the
// already-handled control-flow error the caller should propagate.
func failStep(rec *taskrec.Recorder, message, code string, attrs map[string]string, cause error) error {
	rec.CurrentStepFailed(message, taskrec.ErrorValue{
		Code:       code,
		Message:    message,
		Attributes: attrs,
	}, cause)
	return fmt.Errorf("%s: %w", message, errAlreadyHandled)
}
