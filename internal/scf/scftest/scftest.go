// Package scftest provides an in-memory scf.Backend for tests.
package scftest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/leapstack-labs/scfdata/internal/scf"
	"github.com/leapstack-labs/scfdata/pkg/core"
	"gonum.org/v1/gonum/mat"
)

// ErrSolverFailed is returned for molecules listed in Backend.Fail.
var ErrSolverFailed = errors.New("solver failed")

// Backend produces deterministic solvers whose matrix size equals the
// number of atoms. Matrices depend only on the molecule, the scheme and
// the starting density, so repeated builds produce identical samples.
type Backend struct {
	// Fail lists molecule names whose solver construction fails.
	Fail map[string]bool
	// NotConverged lists molecule names whose default-guess run does not converge.
	NotConverged map[string]bool
	// GuessNotConverged lists schemes whose runs do not converge.
	GuessNotConverged map[string]bool
	// Iterations is the cycle count reported for converged runs. Zero means 7.
	Iterations int

	mu      sync.Mutex
	created int
	closed  int
}

// NewSolver implements scf.Backend.
func (b *Backend) NewSolver(_ context.Context, mol *scf.Molecule, functional string) (scf.Solver, error) {
	if b.Fail[mol.Name] {
		return nil, fmt.Errorf("%w: %s", ErrSolverFailed, mol.Name)
	}
	if mol.NumAtoms() == 0 {
		return nil, fmt.Errorf("molecule %s has no atoms", mol.Name)
	}

	b.mu.Lock()
	b.created++
	b.mu.Unlock()

	return &Solver{backend: b, mol: mol, functional: functional, n: mol.NumAtoms()}, nil
}

// Created returns the number of solvers handed out.
func (b *Backend) Created() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.created
}

// Closed returns the number of solvers closed.
func (b *Backend) Closed() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

func (b *Backend) iterations() int {
	if b.Iterations == 0 {
		return 7
	}
	return b.Iterations
}

// Solver is the fake solver returned by Backend.
type Solver struct {
	backend    *Backend
	mol        *scf.Molecule
	functional string
	n          int

	runs    int
	scheme  string
	density *mat.Dense
}

// Overlap is the identity.
func (s *Solver) Overlap(context.Context) (*mat.Dense, error) {
	m := mat.NewDense(s.n, s.n, nil)
	for i := 0; i < s.n; i++ {
		m.Set(i, i, 1)
	}
	return m, nil
}

// HCore is diagonal with entries -(i+1).
func (s *Solver) HCore(context.Context) (*mat.Dense, error) {
	m := mat.NewDense(s.n, s.n, nil)
	for i := 0; i < s.n; i++ {
		m.Set(i, i, -float64(i+1))
	}
	return m, nil
}

// InitGuess fills the matrix with a value derived from the scheme name.
// The scheme is remembered so a following Run reports its convergence.
func (s *Solver) InitGuess(_ context.Context, scheme string) (*mat.Dense, error) {
	if scheme == "" {
		return nil, errors.New("empty guess scheme")
	}
	s.scheme = scheme
	v := 0.0
	for _, r := range scheme {
		v += float64(r)
	}
	m := mat.NewDense(s.n, s.n, nil)
	for i := 0; i < s.n; i++ {
		for j := 0; j < s.n; j++ {
			m.Set(i, j, v/1000)
		}
	}
	return m, nil
}

// Fock returns HCore + dm.
func (s *Solver) Fock(ctx context.Context, dm mat.Matrix) (*mat.Dense, error) {
	if dm == nil {
		if s.density == nil {
			return nil, errors.New("no density: run the solver first")
		}
		dm = s.density
	}
	h, _ := s.HCore(ctx)
	var f mat.Dense
	f.Add(h, dm)
	return &f, nil
}

// Density returns the density of the last run.
func (s *Solver) Density(context.Context) (*mat.Dense, error) {
	if s.density == nil {
		return nil, errors.New("no density: run the solver first")
	}
	return mat.DenseCopyOf(s.density), nil
}

// Run converges to a diagonal density unless the molecule or scheme is
// configured not to.
func (s *Solver) Run(ctx context.Context, dm0 mat.Matrix) (core.Status, error) {
	if err := ctx.Err(); err != nil {
		return core.Status{}, err
	}
	s.runs++

	var converged bool
	if dm0 == nil {
		s.scheme = scf.DefaultGuess
		converged = !s.backend.NotConverged[s.mol.Name]
	} else {
		r, c := dm0.Dims()
		if r != s.n || c != s.n {
			return core.Status{}, fmt.Errorf("guess is %dx%d, want %dx%d", r, c, s.n, s.n)
		}
		converged = !s.backend.GuessNotConverged[s.scheme]
	}

	s.density = mat.NewDense(s.n, s.n, nil)
	for i := 0; i < s.n; i++ {
		s.density.Set(i, i, 2)
	}
	if !converged {
		return core.NewStatus(false, 50), nil
	}
	return core.NewStatus(true, s.backend.iterations()), nil
}

// Runs returns how many times Run was called on this solver.
func (s *Solver) Runs() int {
	return s.runs
}

// Close implements scf.Solver.
func (s *Solver) Close() error {
	s.backend.mu.Lock()
	s.backend.closed++
	s.backend.mu.Unlock()
	return nil
}

var _ scf.Backend = (*Backend)(nil)
var _ scf.Solver = (*Solver)(nil)
