package tasks

import (
	"errors"
	"fmt"

	"github.com/loanwell/lectern-go/internal/accounts"
	"github.com/loanwell/lectern-go/internal/taskrec"
)

// taskBody is the task-specific portion of a run: it receives the resolved
// account and either returns the task's value, or an error. Errors wrapping
// errAlreadyHandled have recorded their own failed step; anything else is
// treated as unexpected and gets a catch-all step.
type taskBody func(account *accounts.Account) (interface{}, error)

// runTask is the shared preamble of the borrow and revoke pipelines: resolve
// the profile, resolve the account, run the body, and on any failure seal the
// recorder and hand the result to onFailure before returning. The recorder
// is always left sealed.
func (s *Service) runTask(profileID, accountID string, rec *taskrec.Recorder, body taskBody, onFailure func(taskrec.Result)) taskrec.Result {
	fail := func() taskrec.Result {
		result := rec.FinishFailure()
		onFailure(result)
		return result
	}

	rec.BeginNewStep(fmt.Sprintf("Locating profile %s...", profileID))
	profile, err := s.accounts.Profile(profileID)
	if err != nil {
		failStep(rec, "Profile not found.", CodeProfileNotFound, nil, err)
		return fail()
	}
	rec.CurrentStepSucceeded("Located profile.")

	rec.BeginNewStep(fmt.Sprintf("Locating account %s...", accountID))
	account, err := profile.Account(accountID)
	if err != nil {
		failStep(rec, "Could not look up the account in the accounts database.", CodeAccountLookupFailed, nil, err)
		return fail()
	}
	rec.CurrentStepSucceeded("Located account.")

	value, err := body(account)
	if err == nil {
		return rec.FinishSuccess(value)
	}
	if !errors.Is(err, errAlreadyHandled) {
		// The body aborted without recording its failure. Record a
		// catch-all step so the result is still diagnosable.
		rec.CurrentStepFailedAppending("An unexpected error occurred.", taskrec.ErrorValue{
			Code:    CodeUnexpectedException,
			Message: "An unexpected error occurred.",
		}, err)
	}
	return fail()
}
