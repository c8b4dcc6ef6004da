package taskrec

// Result is the immutable summary of a finished task. A result always holds
// at least one step; a failed result's last step always carries its error
// value.
type Result struct {
	Succeeded  bool              `json:"succeeded"`
	Value      interface{}       `json:"-"`
	Steps      []Step            `json:"steps"`
	Attributes map[string]string `json:"attributes,omitempty"`
	Error      error             `json:"-"`
}

// LastStep returns the final recorded step.
func (r Result) LastStep() Step {
	return r.Steps[len(r.Steps)-1]
}

// LastErrorValue returns the structured error of the last step, if any.
func (r Result) LastErrorValue() *ErrorValue {
	for i := len(r.Steps) - 1; i >= 0; i-- {
		if r.Steps[i].ErrorValue != nil {
			return r.Steps[i].ErrorValue
		}
	}
	return nil
}
