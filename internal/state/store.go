// Package state records dataset build runs in SQLite.
//
// A run is one invocation of a dataset build; an attempt is the outcome of
// building one molecule within it. The journal is informational: the
// dataset directory stays the source of truth for what was built.
package state

import "github.com/leapstack-labs/scfdata/pkg/core"

// Type aliases so callers can use the state package alone.
type (
	// Store is an alias for core.Store.
	Store = core.Store

	// RunStatus is an alias for core.RunStatus.
	RunStatus = core.RunStatus

	// Run is an alias for core.Run.
	Run = core.Run

	// Attempt is an alias for core.Attempt.
	Attempt = core.Attempt

	// AttemptStatus is an alias for core.AttemptStatus.
	AttemptStatus = core.AttemptStatus
)

// Re-exported status constants.
const (
	RunStatusRunning   = core.RunStatusRunning
	RunStatusCompleted = core.RunStatusCompleted
	RunStatusFailed    = core.RunStatusFailed
	RunStatusCancelled = core.RunStatusCancelled

	AttemptStatusSuccess = core.AttemptStatusSuccess
	AttemptStatusFailed  = core.AttemptStatusFailed
)
