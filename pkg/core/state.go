package core

import "time"

// Store defines the interface for the build journal.
type Store interface {
	Open(path string) error
	Close() error
	InitSchema() error

	// Run operations
	CreateRun(dataset string, size int) (*Run, error)
	GetRun(id string) (*Run, error)
	CompleteRun(id string, status RunStatus, accepted int, errMsg string) error
	GetLatestRun(dataset string) (*Run, error)
	ListRuns(limit int) ([]*Run, error)

	// Attempt operations
	RecordAttempt(attempt *Attempt) error
	GetAttemptsForRun(runID string) ([]*Attempt, error)
}

// RunStatus represents the status of a build run.
type RunStatus string

// Run status constants.
const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// Run represents one invocation of a dataset build.
type Run struct {
	ID          string
	Dataset     string
	Size        int
	Accepted    int
	Status      RunStatus
	StartedAt   time.Time
	CompletedAt *time.Time
	Error       string
}

// AttemptStatus represents the status of a single molecule build.
type AttemptStatus string

// Attempt status constants.
const (
	AttemptStatusSuccess AttemptStatus = "success"
	AttemptStatusFailed  AttemptStatus = "failed"
)

// Attempt records the outcome of building one molecule within a run.
type Attempt struct {
	ID         string
	RunID      string
	Key        int
	Name       string
	Subset     string // train, val, test or empty for non-stratified builds
	Status     AttemptStatus
	Converged  bool
	Iterations *int
	Error      string
	DurationMS int64
	CreatedAt  time.Time
}

// AttemptFromOutcome converts a build outcome into a journal row.
func AttemptFromOutcome(runID, subset string, o Outcome) *Attempt {
	a := &Attempt{
		RunID:      runID,
		Key:        o.Key,
		Name:       o.Name,
		Subset:     subset,
		Status:     AttemptStatusSuccess,
		DurationMS: o.Duration.Milliseconds(),
	}
	if o.OK() {
		a.Converged = o.Reference.Converged
		a.Iterations = o.Reference.Iterations
	} else {
		a.Status = AttemptStatusFailed
		a.Error = o.Err.Error()
	}
	return a
}
