package models

import (
	"time"

	"github.com/loanwell/lectern-go/internal/taskrec"
)

// BookStatusKind enumerates the observable states of a book as borrow and
// revoke tasks move it through its lifecycle.
type BookStatusKind string

const (
	StatusRequestingLoan     BookStatusKind = "requesting_loan"
	StatusRequestingDownload BookStatusKind = "requesting_download"
	StatusDownloadInProgress BookStatusKind = "download_in_progress"
	StatusDownloaded         BookStatusKind = "downloaded"
	StatusHoldable           BookStatusKind = "holdable"
	StatusHeld               BookStatusKind = "held"
	StatusHeldReady          BookStatusKind = "held_ready"
	StatusLoanable           BookStatusKind = "loanable"
	StatusLoaned             BookStatusKind = "loaned"
	StatusRequestingRevoke   BookStatusKind = "requesting_revoke"
	StatusRevoked            BookStatusKind = "revoked"
	StatusFailedLoan         BookStatusKind = "failed_loan"
	StatusFailedDownload     BookStatusKind = "failed_download"
	StatusFailedRevoke       BookStatusKind = "failed_revoke"
)

// BookStatus is one event published to the status registry and streamed to
// observers. Failure kinds carry the full task result for diagnostics.
type BookStatus struct {
	BookID        BookID          `json:"book_id"`
	Kind          BookStatusKind  `json:"kind"`
	Message       string          `json:"message,omitempty"`
	BytesReceived int64           `json:"bytes_received,omitempty"`
	BytesExpected int64           `json:"bytes_expected,omitempty"`
	EndDate       *time.Time      `json:"end_date,omitempty"`
	QueuePosition *int            `json:"queue_position,omitempty"`
	Result        *taskrec.Result `json:"result,omitempty"`
	Timestamp     time.Time       `json:"timestamp"`

	// Force marks a progress update that must be delivered even if it would
	// otherwise be throttled.
	Force bool `json:"-"`
}

// StatusForAvailability maps a catalog availability onto the status a client
// should observe for the book.
func StatusForAvailability(id BookID, a Availability) BookStatus {
	st := BookStatus{BookID: id, Timestamp: time.Now()}
	switch v := a.(type) {
	case AvailHoldable:
		st.Kind = StatusHoldable
	case AvailHeld:
		st.Kind = StatusHeld
		st.EndDate = v.EndDate
		st.QueuePosition = v.QueuePosition
	case AvailHeldReady:
		st.Kind = StatusHeldReady
		st.EndDate = v.EndDate
	case AvailLoanable:
		st.Kind = StatusLoanable
	case AvailLoaned:
		st.Kind = StatusLoaned
		st.EndDate = v.EndDate
	case AvailOpenAccess:
		st.Kind = StatusLoaned
	case AvailRevoked:
		st.Kind = StatusRevoked
	}
	return st
}
