package tasks

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/loanwell/lectern-go/internal/accounts"
	"github.com/loanwell/lectern-go/internal/bookdb"
	"github.com/loanwell/lectern-go/internal/drm"
	"github.com/loanwell/lectern-go/internal/metrics"
	"github.com/loanwell/lectern-go/internal/models"
	"github.com/loanwell/lectern-go/internal/taskrec"
)

type revokeTask struct {
	svc       *Service
	rec       *taskrec.Recorder
	accountID string
	account   *accounts.Account
	bookID    models.BookID
	book      *models.Book
}

// RunRevoke executes a revoke synchronously on a worker slot and returns the
// sealed result.
func (s *Service) RunRevoke(profileID, accountID string, bookID models.BookID) taskrec.Result {
	return s.run("revoke", bookID, func() taskrec.Result {
		rec := taskrec.NewRecorder()
		rec.AddAttribute("book_id", string(bookID))

		t := &revokeTask{
			svc:       s,
			rec:       rec,
			accountID: accountID,
			bookID:    bookID,
		}
		result := s.runTask(profileID, accountID, rec, t.run, t.publishFailure)
		if result.Succeeded {
			metrics.TaskOutcomes.WithLabelValues("revoke", "success").Inc()
		} else {
			metrics.TaskOutcomes.WithLabelValues("revoke", "failure").Inc()
		}
		return result
	})
}

func (t *revokeTask) run(account *accounts.Account) (interface{}, error) {
	t.account = account
	t.publish(models.BookStatus{Kind: models.StatusRequestingRevoke, Message: "Revoking the loan..."})

	t.rec.BeginNewStep("Loading the book...")
	book, err := t.svc.books.Get(t.bookID)
	if err != nil {
		return nil, failStep(t.rec, "Could not look up the book in the database.", CodeUnexpectedException, nil, err)
	}
	t.book = book
	t.rec.AddAttribute("title", book.Entry.Title)
	t.rec.CurrentStepSucceeded("Loaded the book.")

	if err := t.returnDRMLoan(); err != nil {
		return t.book, err
	}
	if err := t.notifyServer(); err != nil {
		return t.book, err
	}

	// The revoked status is published against the final persisted entry,
	// before the local copy goes away.
	if book, err := t.svc.books.Get(t.bookID); err == nil {
		t.book = book
	}
	t.publish(models.BookStatus{Kind: models.StatusRevoked, Message: "The loan was revoked."})

	t.rec.BeginNewStep("Removing the local book...")
	if err := t.svc.books.Delete(t.bookID); err != nil && !errors.Is(err, bookdb.ErrNotFound) {
		return t.book, failStep(t.rec, "Could not remove the local book.", CodeUnexpectedException, nil, err)
	}
	t.rec.CurrentStepSucceeded("Removed the local book.")
	return t.book, nil
}

// returnDRMLoan returns the stored rights to the DRM vendor when they demand
// it. Non-returnable rights, and builds without DRM support, only clear the
// stored rights; the vendor is never contacted for those.
func (t *revokeTask) returnDRMLoan() error {
	var epub *bookdb.EPUBHandle
	for _, format := range t.book.Formats {
		if format.ContentType == models.TypeEPUB && format.Rights != nil {
			handle, ok := t.svc.books.FindHandleForContentType(t.bookID, models.TypeEPUB)
			if ok {
				epub = handle.(*bookdb.EPUBHandle)
			}
			break
		}
	}
	if epub == nil {
		return nil
	}

	t.rec.BeginNewStep("Returning the DRM loan...")
	rights, err := epub.Rights()
	if err != nil {
		return failStep(t.rec, "Could not read the stored DRM rights.", CodeUnexpectedException, nil, err)
	}
	if rights == nil {
		t.rec.CurrentStepSucceeded("No DRM rights to return.")
		return nil
	}

	if rights.Returnable && t.svc.drmBridge != nil {
		if t.account.Device == nil {
			return failStep(t.rec, "The device has not been activated for DRM.", CodeDRMDeviceNotActive, nil, nil)
		}
		ctx, cancel := context.WithTimeout(context.Background(), t.svc.cfg.DownloadTimeout())
		defer cancel()

		if err := t.svc.drmBridge.Revoke(ctx, *rights, t.account.Device.UserID); err != nil {
			var connErr *drm.ConnectorError
			switch {
			case errors.As(err, &connErr):
				attrs := map[string]string{"drm_error_code": connErr.Code}
				t.rec.AddAttributes(attrs)
				return failStep(t.rec, fmt.Sprintf("The DRM connector failed: %s.", connErr.Code), CodeDRMConnectorFailure, attrs, err)
			case errors.Is(err, context.DeadlineExceeded):
				return failStep(t.rec, "The DRM return timed out.", CodeTimedOut, nil, err)
			default:
				return failStep(t.rec, "The DRM return failed.", CodeUnexpectedException, nil, err)
			}
		}
	}

	if err := epub.SetDRMRights(nil); err != nil {
		return failStep(t.rec, "Could not clear the stored DRM rights.", CodeUnexpectedException, nil, err)
	}
	t.rec.CurrentStepSucceeded("Returned the DRM loan.")
	return nil
}

// notifyServer tells the catalog about the revocation when the availability
// carries a revoke link. Availabilities without one revoke locally.
func (t *revokeTask) notifyServer() error {
	t.rec.BeginNewStep("Notifying the server of the revocation...")

	var revokeURI *string
	switch av := t.book.Entry.Availability.(type) {
	case models.AvailHeld:
		revokeURI = av.RevokeURI
	case models.AvailHeldReady:
		revokeURI = av.RevokeURI
	case models.AvailLoaned:
		revokeURI = av.RevokeURI
	case models.AvailOpenAccess:
		revokeURI = av.RevokeURI
	case models.AvailRevoked:
		revokeURI = &av.RevokeURI
	default:
		state := models.AvailabilityState(t.book.Entry.Availability)
		return failStep(t.rec,
			fmt.Sprintf("A book with availability %q has no loan to revoke.", state),
			CodeNotRevocable,
			map[string]string{"availability": state}, nil)
	}

	if revokeURI == nil {
		// Without a revoke link the server is never contacted; the entry
		// falls back to the state it would have after a server-side return.
		entry := *t.book.Entry
		entry.Availability = successorAvailability(t.book.Entry.Availability)
		if _, err := t.svc.books.UpdateEntry(t.bookID, &entry); err != nil && !errors.Is(err, bookdb.ErrNotFound) {
			return failStep(t.rec, "Could not persist the revoked entry.", CodeUnexpectedException, nil, err)
		}
		t.book.Entry = &entry
		t.rec.CurrentStepSucceeded("The loan has no revoke link; revoking locally.")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), t.svc.cfg.CatalogTimeout())
	defer cancel()

	feed, err := t.svc.feeds.FetchFeed(ctx, http.MethodPut, *revokeURI, catalogAuth(t.account))
	if err != nil {
		return failFeedFetch(t.rec, err)
	}
	entry, err := feed.SingleUngroupedEntry()
	if err != nil {
		return failStep(t.rec, fmt.Sprintf("The revoke feed is unusable: %v.", err), CodeBadRevokeFeed, nil, err)
	}
	if _, err := t.svc.books.UpdateEntry(t.bookID, entry); err != nil && !errors.Is(err, bookdb.ErrNotFound) {
		return failStep(t.rec, "Could not persist the revoked entry.", CodeUnexpectedException, nil, err)
	}
	t.book.Entry = entry
	t.rec.CurrentStepSucceeded("The server acknowledged the revocation.")
	return nil
}

// successorAvailability is the state a loan falls back to when it is revoked
// without a server round-trip. A revoked hold becomes holdable again; every
// other revocable loan returns to the shelf as loanable.
func successorAvailability(a models.Availability) models.Availability {
	if _, held := a.(models.AvailHeld); held {
		return models.AvailHoldable{}
	}
	return models.AvailLoanable{}
}

func (t *revokeTask) publish(st models.BookStatus) {
	st.BookID = t.bookID
	t.svc.status.Publish(st)
}

func (t *revokeTask) publishFailure(result taskrec.Result) {
	message := "The revocation failed."
	if ev := result.LastErrorValue(); ev != nil {
		message = ev.Message
	}
	t.publish(models.BookStatus{Kind: models.StatusFailedRevoke, Message: message, Result: &result})
}
