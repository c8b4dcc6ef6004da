package taskrec

import (
	"errors"
	"testing"
)

func TestRecorderSuccess(t *testing.T) {
	rec := NewRecorder()
	rec.BeginNewStep("Doing the first thing...")
	rec.CurrentStepSucceeded("Did the first thing.")
	rec.BeginNewStep("Doing the second thing...")
	rec.CurrentStepSucceeded("Did the second thing.")
	rec.AddAttribute("book", "urn:example")

	result := rec.FinishSuccess("payload")
	if !result.Succeeded {
		t.Fatal("Expected a successful result")
	}
	if result.Value != "payload" {
		t.Errorf("Expected value to survive sealing, got %v", result.Value)
	}
	if len(result.Steps) != 2 {
		t.Fatalf("Expected 2 steps, got %d", len(result.Steps))
	}
	if result.Steps[0].Failed || result.Steps[1].Failed {
		t.Error("No step should be marked failed")
	}
	if result.Attributes["book"] != "urn:example" {
		t.Errorf("Expected attribute to survive sealing, got %v", result.Attributes)
	}
}

func TestRecorderFailurePreservesFirstError(t *testing.T) {
	rec := NewRecorder()
	rec.BeginNewStep("Downloading...")

	first := errors.New("connection reset")
	rec.CurrentStepFailed("The download failed.", ErrorValue{Code: "http-request-failed", Message: "The download failed."}, first)
	// A later catch-all must not clobber the original error.
	rec.CurrentStepFailed("Cleanup failed.", ErrorValue{Code: "unexpected-exception", Message: "Cleanup failed."}, errors.New("cleanup"))

	result := rec.FinishFailure()
	if result.Succeeded {
		t.Fatal("Expected a failed result")
	}
	if result.Error != first {
		t.Errorf("Expected the first error to be preserved, got %v", result.Error)
	}
	if result.LastStep().ErrorValue.Code != "unexpected-exception" {
		t.Errorf("Expected the error value to reflect the latest resolution, got %s", result.LastStep().ErrorValue.Code)
	}
}

func TestRecorderFailedAppendingKeepsOriginalStep(t *testing.T) {
	rec := NewRecorder()
	rec.BeginNewStep("Requesting a loan...")
	rec.CurrentStepFailed("The request failed.", ErrorValue{Code: "http-request-failed", Message: "The request failed."}, errors.New("boom"))

	rec.CurrentStepFailedAppending("An unexpected error occurred.", ErrorValue{Code: "unexpected-exception", Message: "An unexpected error occurred."}, errors.New("later"))

	result := rec.FinishFailure()
	if len(result.Steps) != 2 {
		t.Fatalf("Expected the catch-all to append a fresh step, got %d steps", len(result.Steps))
	}
	if result.Steps[0].ErrorValue.Code != "http-request-failed" {
		t.Errorf("Original failure was amended: %v", result.Steps[0].ErrorValue)
	}
}

func TestFinishFailureWithoutStepsSynthesizesOne(t *testing.T) {
	rec := NewRecorder()
	result := rec.FinishFailure()
	if len(result.Steps) != 1 {
		t.Fatalf("Expected a synthesized step, got %d", len(result.Steps))
	}
	if !result.LastStep().Failed {
		t.Error("Synthesized step should be failed")
	}
	if result.Error == nil {
		t.Error("A failed result must carry an error")
	}
}

func TestLastErrorValueSkipsSuccessfulTrailingSteps(t *testing.T) {
	rec := NewRecorder()
	rec.BeginNewStep("Failing...")
	rec.CurrentStepFailed("It failed.", ErrorValue{Code: "timed-out", Message: "It failed."}, nil)
	result := rec.FinishFailure()

	ev := result.LastErrorValue()
	if ev == nil || ev.Code != "timed-out" {
		t.Fatalf("Expected timed-out error value, got %v", ev)
	}
}
