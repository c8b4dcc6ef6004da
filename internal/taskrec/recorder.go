// Package taskrec records the step-by-step progress of long-running book
// tasks so that a diagnosable result exists even when a task fails partway
// through mutating local state.
package taskrec

import "fmt"

// ErrorValue is a structured description of a task failure. Code is one of
// the stable error codes consumed by clients; Attributes carries extra
// diagnostics such as HTTP statuses or DRM error codes.
type ErrorValue struct {
	Code       string            `json:"code"`
	Message    string            `json:"message"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// Step is one recorded unit of work. Steps are append-only: only the most
// recent step may be amended, and only to resolve it.
type Step struct {
	Description string      `json:"description"`
	Resolution  string      `json:"resolution"`
	Failed      bool        `json:"failed"`
	ErrorValue  *ErrorValue `json:"error,omitempty"`
	Err         error       `json:"-"`
}

// Recorder accumulates steps and diagnostic attributes for a single task run.
// It performs no I/O and never panics; callers raise their own control-flow
// errors after recording.
type Recorder struct {
	steps []Step
	attrs map[string]string
}

// NewRecorder returns an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{attrs: make(map[string]string)}
}

// BeginNewStep appends a new pending step.
func (r *Recorder) BeginNewStep(description string) {
	r.steps = append(r.steps, Step{Description: description, Resolution: "in progress"})
}

// CurrentStepSucceeded resolves the latest step as successful.
func (r *Recorder) CurrentStepSucceeded(message string) {
	if len(r.steps) == 0 {
		r.BeginNewStep(message)
	}
	step := &r.steps[len(r.steps)-1]
	step.Resolution = message
	step.Failed = false
}

// CurrentStepFailed resolves the latest step as failed. If the step already
// carries an attached error, that first error is preserved so an earlier,
// more precise diagnosis is never overwritten by a later catch-all.
func (r *Recorder) CurrentStepFailed(message string, errValue ErrorValue, err error) {
	if len(r.steps) == 0 {
		r.BeginNewStep(message)
	}
	step := &r.steps[len(r.steps)-1]
	step.Resolution = message
	step.Failed = true
	step.ErrorValue = &errValue
	if step.Err == nil {
		step.Err = err
	}
}

// CurrentStepFailedAppending behaves like CurrentStepFailed, except that if
// the current step has already failed it appends a fresh step instead of
// amending, keeping the original failure intact.
func (r *Recorder) CurrentStepFailedAppending(message string, errValue ErrorValue, err error) {
	if len(r.steps) > 0 && r.steps[len(r.steps)-1].Failed {
		r.BeginNewStep(message)
	}
	r.CurrentStepFailed(message, errValue, err)
}

// AddAttribute records a diagnostic key/value for the whole task.
func (r *Recorder) AddAttribute(key, value string) {
	r.attrs[key] = value
}

// AddAttributes merges a set of diagnostic attributes.
func (r *Recorder) AddAttributes(attrs map[string]string) {
	for k, v := range attrs {
		r.attrs[k] = v
	}
}

// CurrentStep returns a copy of the latest step and whether one exists.
func (r *Recorder) CurrentStep() (Step, bool) {
	if len(r.steps) == 0 {
		return Step{}, false
	}
	return r.steps[len(r.steps)-1], true
}

// FinishSuccess seals the recorder into a successful result.
func (r *Recorder) FinishSuccess(value interface{}) Result {
	r.ensureStep()
	return Result{
		Succeeded:  true,
		Value:      value,
		Steps:      r.snapshotSteps(),
		Attributes: r.snapshotAttrs(),
	}
}

// FinishFailure seals the recorder into a failed result. The representative
// error is taken from the last failed step; if no step failed (a task aborted
// without recording, which is itself a bug) a generic failure is synthesized
// so the result invariants still hold.
func (r *Recorder) FinishFailure() Result {
	r.ensureStep()
	last := &r.steps[len(r.steps)-1]
	if !last.Failed {
		r.CurrentStepFailed("The task failed without recording a reason.", ErrorValue{
			Code:    "unexpected-exception",
			Message: "The task failed without recording a reason.",
		}, nil)
		last = &r.steps[len(r.steps)-1]
	}
	err := last.Err
	if err == nil {
		err = fmt.Errorf("%s", last.Resolution)
	}
	return Result{
		Succeeded:  false,
		Steps:      r.snapshotSteps(),
		Attributes: r.snapshotAttrs(),
		Error:      err,
	}
}

func (r *Recorder) ensureStep() {
	if len(r.steps) == 0 {
		r.BeginNewStep("Starting task...")
	}
}

func (r *Recorder) snapshotSteps() []Step {
	out := make([]Step, len(r.steps))
	copy(out, r.steps)
	return out
}

func (r *Recorder) snapshotAttrs() map[string]string {
	out := make(map[string]string, len(r.attrs))
	for k, v := range r.attrs {
		out[k] = v
	}
	return out
}
