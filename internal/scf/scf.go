// Package scf is the boundary to the external SCF/DFT solver.
//
// The numerical work happens behind the Solver interface. A Backend turns a
// Molecule and a functional into a fresh Solver; solvers carry mutable
// convergence state and must not be reused across runs that are meant to
// be independent.
package scf

import (
	"context"
	"errors"
	"fmt"

	"github.com/leapstack-labs/scfdata/internal/basis"
	"github.com/leapstack-labs/scfdata/internal/sample"
	"github.com/leapstack-labs/scfdata/internal/xyz"
	"github.com/leapstack-labs/scfdata/pkg/core"
	"gonum.org/v1/gonum/mat"
)

// DefaultGuess is the initial guess scheme used for reference solutions.
const DefaultGuess = "minao"

// ErrNotConverged is returned when a reference solution does not converge.
var ErrNotConverged = errors.New("DFT calculation did not converge")

// Molecule is a fully specified system handed to a Backend.
type Molecule struct {
	Name    string     `json:"name"`
	Comment string     `json:"comment,omitempty"`
	Atoms   []xyz.Atom `json:"atoms"`
	Basis   basis.Set  `json:"basis"`
	Charge  int        `json:"charge"`
	Spin    int        `json:"spin"` // number of unpaired electrons
	Source  string     `json:"source,omitempty"`
}

// NumAtoms returns the number of atoms.
func (m *Molecule) NumAtoms() int {
	return len(m.Atoms)
}

// Multiplicity returns 2S+1.
func (m *Molecule) Multiplicity() int {
	return m.Spin + 1
}

// Restricted reports whether a closed-shell (restricted) method applies.
func (m *Molecule) Restricted() bool {
	return m.Multiplicity() == 1
}

// Solver is one stateful SCF calculation for a single molecule.
type Solver interface {
	// Overlap returns the overlap matrix S.
	Overlap(ctx context.Context) (*mat.Dense, error)
	// HCore returns the core Hamiltonian.
	HCore(ctx context.Context) (*mat.Dense, error)
	// InitGuess returns the initial density produced by scheme.
	InitGuess(ctx context.Context, scheme string) (*mat.Dense, error)
	// Fock builds the Fock matrix for dm, or for the current density if dm is nil.
	Fock(ctx context.Context, dm mat.Matrix) (*mat.Dense, error)
	// Density returns the current one-particle density matrix.
	Density(ctx context.Context) (*mat.Dense, error)
	// Run iterates to self-consistency starting from dm0, or from
	// DefaultGuess if dm0 is nil.
	Run(ctx context.Context, dm0 mat.Matrix) (core.Status, error)
	Close() error
}

// Backend creates solvers.
type Backend interface {
	NewSolver(ctx context.Context, mol *Molecule, functional string) (Solver, error)
}

// Solution is the state of a solver after a run.
type Solution struct {
	Overlap *mat.Dense
	HCore   *mat.Dense
	Density *mat.Dense
	Fock    *mat.Dense
	Status  core.Status
}

// Solve runs solver from guess (nil for DefaultGuess) and collects the
// resulting matrices. It can be used to score an arbitrary density matrix.
func Solve(ctx context.Context, solver Solver, guess mat.Matrix) (*Solution, error) {
	status, err := solver.Run(ctx, guess)
	if err != nil {
		return nil, fmt.Errorf("failed to run SCF: %w", err)
	}

	sol := &Solution{Status: status}
	if sol.Overlap, err = solver.Overlap(ctx); err != nil {
		return nil, fmt.Errorf("failed to get overlap: %w", err)
	}
	if sol.HCore, err = solver.HCore(ctx); err != nil {
		return nil, fmt.Errorf("failed to get core Hamiltonian: %w", err)
	}
	if sol.Density, err = solver.Density(ctx); err != nil {
		return nil, fmt.Errorf("failed to get density: %w", err)
	}
	if sol.Fock, err = solver.Fock(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to get Fock matrix: %w", err)
	}
	return sol, nil
}

// BuildSolution computes the reference solution and stores it at path.
// With requireConvergence set, a non-converged run returns ErrNotConverged
// and nothing is written.
func BuildSolution(ctx context.Context, path string, solver Solver, requireConvergence bool) (core.Status, error) {
	sol, err := Solve(ctx, solver, nil)
	if err != nil {
		return core.Status{}, err
	}
	if requireConvergence && !sol.Status.Converged {
		return sol.Status, ErrNotConverged
	}

	if err := sample.Save(path, sol.Overlap, sol.HCore, sol.Density, sol.Fock, sol.Status); err != nil {
		return sol.Status, err
	}
	return sol.Status, nil
}

// BuildGuess stores the initial guess of scheme at path. The stored density
// and Fock matrices are those of the guess itself; the status describes the
// SCF run started from it and is persisted whether or not it converged.
func BuildGuess(ctx context.Context, path string, solver Solver, scheme string) (core.Status, error) {
	overlap, err := solver.Overlap(ctx)
	if err != nil {
		return core.Status{}, fmt.Errorf("failed to get overlap: %w", err)
	}
	hcore, err := solver.HCore(ctx)
	if err != nil {
		return core.Status{}, fmt.Errorf("failed to get core Hamiltonian: %w", err)
	}
	density, err := solver.InitGuess(ctx, scheme)
	if err != nil {
		return core.Status{}, fmt.Errorf("failed to build %s guess: %w", scheme, err)
	}
	fock, err := solver.Fock(ctx, density)
	if err != nil {
		return core.Status{}, fmt.Errorf("failed to get Fock matrix for %s guess: %w", scheme, err)
	}

	status, err := solver.Run(ctx, density)
	if err != nil {
		return core.Status{}, fmt.Errorf("failed to run SCF from %s guess: %w", scheme, err)
	}

	if err := sample.Save(path, overlap, hcore, density, fock, status); err != nil {
		return status, err
	}
	return status, nil
}
