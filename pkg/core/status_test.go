package core

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStatus_String(t *testing.T) {
	assert.Equal(t, "Status(converged=true, iterations=11)", NewStatus(true, 11).String())
	assert.Equal(t, "Status(converged=false, iterations=None)", Status{}.String())
}

func TestStatus_Equal(t *testing.T) {
	tests := []struct {
		name string
		a, b Status
		want bool
	}{
		{"same iterations", NewStatus(true, 3), NewStatus(true, 3), true},
		{"different iterations", NewStatus(true, 3), NewStatus(true, 4), false},
		{"different convergence", NewStatus(true, 3), NewStatus(false, 3), false},
		{"both unknown", Status{Converged: true}, Status{Converged: true}, true},
		{"one unknown", Status{Converged: true}, NewStatus(true, 0), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.a.Equal(tt.b))
			assert.Equal(t, tt.want, tt.b.Equal(tt.a))
		})
	}
}

func TestOutcome(t *testing.T) {
	ok := Success(4, "dsgdb9nsd_000004", NewStatus(true, 9))
	assert.True(t, ok.OK())

	failed := Failure(5, "dsgdb9nsd_000005", errors.New("boom"))
	assert.False(t, failed.OK())
	assert.Equal(t, "dsgdb9nsd_000005", failed.Name)
}

func TestAttemptFromOutcome(t *testing.T) {
	ok := Success(1, "a", NewStatus(true, 12))
	ok.Duration = 1500 * time.Millisecond

	a := AttemptFromOutcome("run-1", "train", ok)
	assert.Equal(t, AttemptStatusSuccess, a.Status)
	assert.True(t, a.Converged)
	assert.Equal(t, 12, *a.Iterations)
	assert.Equal(t, int64(1500), a.DurationMS)
	assert.Equal(t, "train", a.Subset)

	f := AttemptFromOutcome("run-1", "", Failure(2, "b", errors.New("did not converge")))
	assert.Equal(t, AttemptStatusFailed, f.Status)
	assert.Equal(t, "did not converge", f.Error)
	assert.Nil(t, f.Iterations)
}
