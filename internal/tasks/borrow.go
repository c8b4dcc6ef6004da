package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/loanwell/lectern-go/internal/accounts"
	"github.com/loanwell/lectern-go/internal/bookdb"
	"github.com/loanwell/lectern-go/internal/bundles"
	"github.com/loanwell/lectern-go/internal/downloads"
	"github.com/loanwell/lectern-go/internal/drm"
	"github.com/loanwell/lectern-go/internal/metrics"
	"github.com/loanwell/lectern-go/internal/models"
	"github.com/loanwell/lectern-go/internal/opds"
	"github.com/loanwell/lectern-go/internal/taskrec"
)

// maxIndirectionDepth bounds how many bearer-token indirections a single
// borrow will follow before giving up.
const maxIndirectionDepth = 3

// relationPriority orders acquisition relations from most to least preferred
// when a catalog entry offers several.
var relationPriority = map[models.AcquisitionRelation]int{
	models.RelationBorrow:     0,
	models.RelationOpenAccess: 1,
	models.RelationGeneric:    2,
	models.RelationBuy:        3,
	models.RelationSample:     4,
	models.RelationSubscribe:  5,
}

func preferredAcquisition(entry *models.Entry) (models.Acquisition, bool) {
	best := -1
	var chosen models.Acquisition
	for _, acq := range entry.Acquisitions {
		prio, known := relationPriority[acq.Relation]
		if !known {
			continue
		}
		if best == -1 || prio < best {
			best = prio
			chosen = acq
		}
	}
	return chosen, best != -1
}

// borrowTask carries the state accumulated across borrow steps. The book
// pointer stays nil until the database entry exists; status publication for
// failures falls back to a synthesized placeholder in that case.
type borrowTask struct {
	svc       *Service
	rec       *taskrec.Recorder
	profileID string
	accountID string
	account   *accounts.Account
	bookID    models.BookID
	entry     *models.Entry
	book      *models.Book

	// downloadPhase flips once the task has committed to fetching content,
	// which switches the failure status from failed-loan to failed-download.
	downloadPhase bool
}

// RunBorrow executes a borrow synchronously on a worker slot and returns the
// sealed result. Borrow is the asynchronous front door; this is the pipeline
// itself.
func (s *Service) RunBorrow(profileID, accountID string, entry *models.Entry) taskrec.Result {
	bookID := models.MakeBookID(accountID, entry.ID)
	return s.run("borrow", bookID, func() taskrec.Result {
		rec := taskrec.NewRecorder()
		rec.AddAttribute("book", entry.ID)
		rec.AddAttribute("title", entry.Title)

		t := &borrowTask{
			svc:       s,
			rec:       rec,
			profileID: profileID,
			accountID: accountID,
			bookID:    bookID,
			entry:     entry,
		}
		result := s.runTask(profileID, accountID, rec, t.run, t.publishFailure)
		if result.Succeeded {
			metrics.TaskOutcomes.WithLabelValues("borrow", "success").Inc()
		} else {
			metrics.TaskOutcomes.WithLabelValues("borrow", "failure").Inc()
		}
		return result
	})
}

func (t *borrowTask) run(account *accounts.Account) (interface{}, error) {
	t.account = account

	t.rec.BeginNewStep("Setting up the local book database entry...")
	book, err := t.svc.books.CreateOrUpdate(t.accountID, t.entry)
	if err != nil {
		return t.currentBook(), failStep(t.rec, "Could not create the local book database entry.", CodeUnexpectedException, nil, err)
	}
	t.book = book
	t.rec.CurrentStepSucceeded("Book database entry ready.")
	t.publish(models.BookStatus{Kind: models.StatusRequestingLoan, Message: "Requesting a loan..."})

	t.rec.BeginNewStep("Selecting an acquisition...")
	acq, ok := preferredAcquisition(t.entry)
	if !ok {
		return t.currentBook(), failStep(t.rec, "The catalog entry offers no usable acquisition.", CodeNoUsableAcquisition, nil, nil)
	}
	t.rec.CurrentStepSucceeded(fmt.Sprintf("Selected acquisition %s.", acq.Relation))

	// Content shipped with the application never touches the network.
	if t.svc.bundles != nil && bundles.IsBundledURI(acq.Href) {
		if err := t.copyFromBundle(acq); err != nil {
			return t.currentBook(), err
		}
		return t.currentBook(), nil
	}

	switch acq.Relation {
	case models.RelationBorrow:
		err = t.runBorrowFeed(acq)
	case models.RelationGeneric, models.RelationOpenAccess:
		t.downloadPhase = true
		t.publish(models.BookStatus{Kind: models.StatusRequestingDownload, Message: "Requesting download..."})
		err = t.fulfillEntry(t.entry)
	default:
		t.rec.BeginNewStep("Checking the acquisition relation...")
		err = failStep(t.rec,
			fmt.Sprintf("Acquisition relation %q is not supported for borrowing.", acq.Relation),
			CodeUnsupportedAcquisitionRelation,
			map[string]string{"relation": string(acq.Relation)}, nil)
	}
	if err != nil {
		return t.currentBook(), err
	}
	return t.currentBook(), nil
}

// runBorrowFeed performs the borrow round-trip: PUT the borrow link, require
// exactly one entry back, persist it, and branch on its availability.
func (t *borrowTask) runBorrowFeed(acq models.Acquisition) error {
	t.rec.BeginNewStep("Requesting a loan from the catalog...")

	ctx, cancel := context.WithTimeout(context.Background(), t.svc.cfg.CatalogTimeout())
	defer cancel()

	feed, err := t.svc.feeds.FetchFeed(ctx, http.MethodPut, acq.Href, catalogAuth(t.account))
	if err != nil {
		return failFeedFetch(t.rec, err)
	}

	entry, err := feed.SingleEntry()
	if err != nil {
		return failStep(t.rec, fmt.Sprintf("The borrow feed is unusable: %v.", err), CodeBadBorrowFeed, nil, err)
	}

	book, err := t.svc.books.UpdateEntry(t.bookID, entry)
	if err != nil {
		return failStep(t.rec, "Could not persist the loan entry.", CodeUnexpectedException, nil, err)
	}
	t.entry = entry
	t.book = book
	t.rec.CurrentStepSucceeded("Received the loan entry.")

	switch t.entry.Availability.(type) {
	case models.AvailHoldable, models.AvailHeld, models.AvailHeldReady:
		// The loan is queued; nothing to download yet.
		t.publish(models.StatusForAvailability(t.bookID, t.entry.Availability))
		return nil
	case models.AvailLoaned, models.AvailOpenAccess:
		t.downloadPhase = true
		t.publish(models.BookStatus{Kind: models.StatusRequestingDownload, Message: "Requesting download..."})
		return t.fulfillEntry(t.entry)
	default:
		// A correct server can never answer a borrow with loanable or
		// revoked.
		t.rec.BeginNewStep("Checking loan availability...")
		state := models.AvailabilityState(t.entry.Availability)
		return failStep(t.rec,
			fmt.Sprintf("The server responded to a borrow with impossible availability %q.", state),
			CodeBadBorrowFeed,
			map[string]string{"availability": state}, nil)
	}
}

// failFeedFetch maps a feed loader error onto the matching failure code:
// HTTP errors keep their status and problem details, context expiry becomes a
// timeout, and anything else is a loader failure.
func failFeedFetch(rec *taskrec.Recorder, err error) error {
	var httpErr *opds.HTTPError
	switch {
	case errors.As(err, &httpErr):
		attrs := map[string]string{"http_status": strconv.Itoa(httpErr.Status)}
		if httpErr.Problem != nil {
			attrs["problem"] = httpErr.Problem.Title
		}
		rec.AddAttributes(attrs)
		return failStep(rec,
			fmt.Sprintf("The catalog request failed with HTTP status %d.", httpErr.Status),
			CodeHTTPRequestFailed, attrs, err)
	case errors.Is(err, context.DeadlineExceeded):
		return failStep(rec, "The catalog request timed out.", CodeTimedOut, nil, err)
	default:
		return failStep(rec, "The catalog request failed.", CodeFeedLoaderFailed, nil, err)
	}
}

// fulfillEntry picks the fulfillment acquisition out of a loan entry and
// drives the download.
func (t *borrowTask) fulfillEntry(entry *models.Entry) error {
	t.rec.BeginNewStep("Selecting a fulfillment acquisition...")
	for _, acq := range entry.Acquisitions {
		if acq.Relation == models.RelationGeneric || acq.Relation == models.RelationOpenAccess {
			t.rec.CurrentStepSucceeded(fmt.Sprintf("Fulfilling via %s.", acq.Href))
			return t.downloadAndStore(acq, catalogAuth(t.account), 0)
		}
	}
	return failStep(t.rec, "The loan entry offers no usable fulfillment acquisition.", CodeNoUsableAcquisition, nil, nil)
}

// downloadAndStore fetches the acquisition target and dispatches on the
// negotiated content type. Bearer-token indirections recurse with the token
// as authorization.
func (t *borrowTask) downloadAndStore(acq models.Acquisition, auth *models.Authorization, depth int) error {
	outcome, err := t.performDownload(acq, auth)
	if err != nil {
		return err
	}
	defer func() {
		if err := os.Remove(outcome.File); err != nil && !os.IsNotExist(err) {
			log.Printf("Could not remove temporary download file %s: %v", outcome.File, err)
		}
	}()

	t.rec.BeginNewStep("Checking the downloaded content type...")
	expected := expectedTypesFor(acq)
	negotiated, err := negotiateContentType(outcome.ContentType, expected)
	if err != nil {
		attrs := map[string]string{
			"expected_types": strings.Join(expected, ", "),
			"received_type":  outcome.ContentType,
		}
		t.rec.AddAttributes(attrs)
		return failStep(t.rec, fmt.Sprintf("Unexpected content type: %v.", err), CodeUnexpectedContentType, attrs, err)
	}
	t.rec.CurrentStepSucceeded(fmt.Sprintf("Content type is %s.", negotiated))

	switch negotiated {
	case models.TypeAdobeLicense:
		return t.fulfillLicense(outcome.File)
	case models.TypeBearerToken:
		return t.redownloadWithBearerToken(outcome.File, depth)
	default:
		return t.storeContent(outcome.File, negotiated, acq)
	}
}

// performDownload runs the transfer under the download timeout with the
// handle registered for external cancellation.
func (t *borrowTask) performDownload(acq models.Acquisition, auth *models.Authorization) (downloads.OutcomeOK, error) {
	t.rec.BeginNewStep(fmt.Sprintf("Downloading %s...", acq.Href))

	handle := t.svc.engine.Download(context.Background(), downloads.Request{
		URI:           acq.Href,
		Authorization: auth,
		Progress:      t.progressFunc("Downloading..."),
	})
	if err := t.svc.registry.Put(t.bookID, handle); err != nil {
		handle.Cancel()
		return downloads.OutcomeOK{}, failStep(t.rec, "Another download is already running for this book.", CodeUnexpectedException, nil, err)
	}
	defer t.svc.registry.Remove(t.bookID)

	ctx, cancel := context.WithTimeout(context.Background(), t.svc.cfg.DownloadTimeout())
	defer cancel()

	outcome, err := handle.Await(ctx)
	if err != nil {
		handle.Cancel()
		return downloads.OutcomeOK{}, failStep(t.rec, "The download timed out.", CodeTimedOut, nil, err)
	}

	switch o := outcome.(type) {
	case downloads.OutcomeOK:
		t.rec.CurrentStepSucceeded("Download completed.")
		return o, nil
	case downloads.OutcomeCancelled:
		return downloads.OutcomeOK{}, failStep(t.rec, "The download was cancelled.", CodeCancelled, nil, nil)
	case downloads.OutcomeFailed:
		attrs := map[string]string{}
		if o.Status != 0 {
			attrs["http_status"] = strconv.Itoa(o.Status)
		}
		if o.Problem != nil {
			attrs["problem"] = o.Problem.Title
		}
		t.rec.AddAttributes(attrs)
		message := "The download failed."
		if o.Status != 0 {
			message = fmt.Sprintf("The download failed with HTTP status %d.", o.Status)
		}
		return downloads.OutcomeOK{}, failStep(t.rec, message, CodeHTTPRequestFailed, attrs, o.Err)
	default:
		return downloads.OutcomeOK{}, failStep(t.rec, "The download ended in an unknown state.", CodeUnexpectedException, nil, nil)
	}
}

// fulfillLicense hands a downloaded license document to the DRM bridge and
// stores the decrypted book with its rights.
func (t *borrowTask) fulfillLicense(licenseFile string) error {
	t.rec.BeginNewStep("Fulfilling the DRM license...")

	if t.svc.drmBridge == nil {
		return failStep(t.rec, "This application does not support DRM-protected loans.", CodeDRMUnsupported, nil, nil)
	}
	if t.account.Device == nil {
		return failStep(t.rec, "The device has not been activated for DRM.", CodeDRMDeviceNotActive, nil, nil)
	}

	licenseBytes, err := os.ReadFile(licenseFile)
	if err != nil {
		return failStep(t.rec, "Could not read the downloaded license document.", CodeDRMUnreadableLicense, nil, err)
	}

	outPath := filepath.Join(t.svc.books.TempDir(), string(t.bookID)+"-fulfilled.epub")
	ctx, cancel := context.WithTimeout(context.Background(), t.svc.cfg.DownloadTimeout())
	defer cancel()

	fulfillment, err := t.svc.drmBridge.Fulfill(ctx, t.bookID, licenseBytes, outPath, t.progressFunc("Fulfilling license..."))
	if err != nil {
		var connErr *drm.ConnectorError
		switch {
		case errors.Is(err, drm.ErrUnparseableLicense):
			return failStep(t.rec, "The license document could not be parsed.", CodeDRMUnparseableLicense, nil, err)
		case errors.Is(err, drm.ErrUnsupportedLicenseType):
			return failStep(t.rec, "The license document declares an unsupported content type.", CodeUnsupportedContentType, nil, err)
		case errors.As(err, &connErr):
			attrs := map[string]string{"drm_error_code": connErr.Code}
			t.rec.AddAttributes(attrs)
			return failStep(t.rec, fmt.Sprintf("The DRM connector failed: %s.", connErr.Code), CodeDRMConnectorFailure, attrs, err)
		case errors.Is(err, context.DeadlineExceeded):
			return failStep(t.rec, "DRM fulfillment timed out.", CodeTimedOut, nil, err)
		default:
			return failStep(t.rec, "DRM fulfillment failed.", CodeUnexpectedException, nil, err)
		}
	}
	t.rec.CurrentStepSucceeded("License fulfilled.")

	t.rec.BeginNewStep("Storing the fulfilled book...")
	handle, ok := t.svc.books.FindHandleForContentType(t.bookID, models.TypeEPUB)
	if !ok {
		return failStep(t.rec, "No storage is available for EPUB content.", CodeUnsupportedContentType, nil, nil)
	}
	epub := handle.(*bookdb.EPUBHandle)
	if err := epub.CopyInBook(fulfillment.File); err != nil {
		return failStep(t.rec, "Could not store the fulfilled book.", CodeUnexpectedException, nil, err)
	}
	if err := epub.SetDRMRights(&fulfillment.Rights); err != nil {
		return failStep(t.rec, "Could not store the DRM rights.", CodeUnexpectedException, nil, err)
	}
	// The decrypted temporary is only a copy now; losing the delete is not
	// worth failing a completed fulfillment over.
	if err := os.Remove(fulfillment.File); err != nil && !os.IsNotExist(err) {
		log.Printf("Could not remove temporary fulfilled file %s: %v", fulfillment.File, err)
	}
	t.rec.CurrentStepSucceeded("Stored the fulfilled book.")

	t.finishStored()
	return nil
}

// redownloadWithBearerToken parses a bearer-token document and re-issues the
// download against its target location.
func (t *borrowTask) redownloadWithBearerToken(tokenFile string, depth int) error {
	t.rec.BeginNewStep("Parsing the bearer token document...")

	if depth+1 >= maxIndirectionDepth {
		return failStep(t.rec, "Too many indirect downloads.", CodeUnparseableBearerToken, nil, nil)
	}

	data, err := os.ReadFile(tokenFile)
	if err != nil {
		return failStep(t.rec, "Could not read the bearer token document.", CodeUnparseableBearerToken, nil, err)
	}
	token, err := models.ParseBearerToken(data, time.Now())
	if err != nil {
		return failStep(t.rec, "The bearer token document could not be parsed.", CodeUnparseableBearerToken, nil, err)
	}
	t.rec.CurrentStepSucceeded("Parsed the bearer token document.")

	acq := models.Acquisition{Relation: models.RelationGeneric, Href: token.Location}
	return t.downloadAndStore(acq, models.BearerAuth(token.AccessToken), depth+1)
}

// storeContent writes a downloaded payload into the matching format handle.
func (t *borrowTask) storeContent(file, contentType string, acq models.Acquisition) error {
	t.rec.BeginNewStep("Storing the book...")

	handle, ok := t.svc.books.FindHandleForContentType(t.bookID, contentType)
	if !ok {
		return failStep(t.rec,
			fmt.Sprintf("No storage is available for content of type %q.", contentType),
			CodeUnsupportedContentType,
			map[string]string{"received_type": contentType}, nil)
	}

	var err error
	switch h := handle.(type) {
	case *bookdb.EPUBHandle:
		err = h.CopyInBook(file)
	case *bookdb.PDFHandle:
		err = h.CopyInBook(file)
	case *bookdb.AudiobookHandle:
		var manifest []byte
		manifest, err = os.ReadFile(file)
		if err == nil {
			err = h.CopyInManifestAndURI(manifest, acq.Href)
		}
	}
	if err != nil {
		return failStep(t.rec, "Could not store the book.", CodeUnexpectedException, nil, err)
	}
	t.rec.CurrentStepSucceeded("Stored the book.")

	t.finishStored()
	return nil
}

// copyFromBundle copies application-bundled content straight into storage,
// streaming with the same progress discipline as a network download.
func (t *borrowTask) copyFromBundle(acq models.Acquisition) error {
	t.downloadPhase = true
	t.rec.BeginNewStep("Copying bundled content...")

	src, contentType, ok := t.svc.bundles.Resolve(acq.Href)
	if !ok {
		return failStep(t.rec,
			fmt.Sprintf("Bundled content %q is not present in this build.", acq.Href),
			CodeNoUsableAcquisition, nil, nil)
	}

	tmp, err := os.CreateTemp(t.svc.books.TempDir(), "lectern-bundle-*")
	if err != nil {
		return failStep(t.rec, "Could not create a temporary file for bundled content.", CodeUnexpectedException, nil, err)
	}
	tmpPath := tmp.Name()
	defer func() {
		tmp.Close()
		if err := os.Remove(tmpPath); err != nil && !os.IsNotExist(err) {
			log.Printf("Could not remove temporary bundle file %s: %v", tmpPath, err)
		}
	}()

	if err := copyWithProgress(src, tmp, t.progressFunc("Copying bundled content...")); err != nil {
		return failStep(t.rec, "Could not copy the bundled content.", CodeUnexpectedException, nil, err)
	}
	t.rec.CurrentStepSucceeded("Copied bundled content.")

	return t.storeContent(tmpPath, contentType, acq)
}

func copyWithProgress(src string, dst *os.File, progress downloads.ProgressFunc) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}
	expected := info.Size()
	progress(0, expected, true)

	var copied int64
	buf := make([]byte, 64*1024)
	for {
		n, readErr := in.Read(buf)
		if n > 0 {
			if _, writeErr := dst.Write(buf[:n]); writeErr != nil {
				return writeErr
			}
			copied += int64(n)
			progress(copied, expected, false)
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return readErr
		}
	}
	progress(copied, expected, true)
	return nil
}

// finishStored refreshes the book from the database and publishes the final
// downloaded status.
func (t *borrowTask) finishStored() {
	if book, err := t.svc.books.Get(t.bookID); err == nil {
		t.book = book
	}
	st := models.BookStatus{Kind: models.StatusDownloaded, Message: "The book is ready."}
	if loaned, ok := t.entry.Availability.(models.AvailLoaned); ok {
		st.EndDate = loaned.EndDate
	}
	t.publish(st)
}

func (t *borrowTask) progressFunc(message string) downloads.ProgressFunc {
	return func(received, expected int64, force bool) {
		t.svc.status.Publish(models.BookStatus{
			BookID:        t.bookID,
			Kind:          models.StatusDownloadInProgress,
			Message:       message,
			BytesReceived: received,
			BytesExpected: expected,
			Force:         force,
		})
	}
}

func (t *borrowTask) publish(st models.BookStatus) {
	st.BookID = t.bookID
	t.svc.status.Publish(st)
}

// currentBook returns the real database entry when one exists, and a
// synthesized placeholder otherwise so failure statuses always reference a
// book value.
func (t *borrowTask) currentBook() *models.Book {
	if t.book != nil {
		return t.book
	}
	return models.PlaceholderBook(t.accountID, t.entry)
}

// publishFailure publishes the sealed failure result. Failures before the
// download phase surface as failed-loan, after it as failed-download.
func (t *borrowTask) publishFailure(result taskrec.Result) {
	kind := models.StatusFailedLoan
	if t.downloadPhase {
		kind = models.StatusFailedDownload
	}
	message := "The loan failed."
	if ev := result.LastErrorValue(); ev != nil {
		message = ev.Message
	}
	t.publish(models.BookStatus{Kind: kind, Message: message, Result: &result})
}

func catalogAuth(account *accounts.Account) *models.Authorization {
	if account.Basic == nil {
		return nil
	}
	return models.BasicAuth(account.Basic.Username, account.Basic.Password)
}
