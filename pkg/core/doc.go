// Package core defines the shared language of the scfdata system.
//
// This package contains:
//   - Domain values (Status, Outcome)
//   - Build journal entities (Run, Attempt)
//   - Service interfaces (Store)
//
// The Golden Rule: pkg/core imports ONLY stdlib.
// All other packages depend on core, not the reverse.
package core
