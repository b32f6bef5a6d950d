package core

import (
	"fmt"
	"time"
)

// Status describes the convergence of one SCF run.
// Iterations is nil when the solver never reported a cycle count.
type Status struct {
	Converged  bool `json:"converged"`
	Iterations *int `json:"iterations"`
}

// NewStatus returns a Status with a known iteration count.
func NewStatus(converged bool, iterations int) Status {
	return Status{Converged: converged, Iterations: &iterations}
}

// Equal reports whether two statuses carry the same fields.
func (s Status) Equal(other Status) bool {
	if s.Converged != other.Converged {
		return false
	}
	if s.Iterations == nil || other.Iterations == nil {
		return s.Iterations == nil && other.Iterations == nil
	}
	return *s.Iterations == *other.Iterations
}

func (s Status) String() string {
	iterations := "None"
	if s.Iterations != nil {
		iterations = fmt.Sprintf("%d", *s.Iterations)
	}
	return fmt.Sprintf("Status(converged=%t, iterations=%s)", s.Converged, iterations)
}

// Outcome is the result of building one molecule: either a success for Key
// or a failure carrying the molecule name and the cause.
type Outcome struct {
	Key       int
	Name      string
	Err       error
	Reference Status
	Duration  time.Duration
}

// Success returns an accepted outcome.
func Success(key int, name string, reference Status) Outcome {
	return Outcome{Key: key, Name: name, Reference: reference}
}

// Failure returns a rejected outcome.
func Failure(key int, name string, err error) Outcome {
	return Outcome{Key: key, Name: name, Err: err}
}

// OK reports whether the molecule was accepted.
func (o Outcome) OK() bool {
	return o.Err == nil
}
