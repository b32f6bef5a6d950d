package scf_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/leapstack-labs/scfdata/internal/sample"
	"github.com/leapstack-labs/scfdata/internal/scf"
	"github.com/leapstack-labs/scfdata/internal/scf/scftest"
	"github.com/leapstack-labs/scfdata/internal/xyz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func water() *scf.Molecule {
	return &scf.Molecule{
		Name: "water",
		Atoms: []xyz.Atom{
			{Symbol: "O", Coords: [3]float64{0, 0, 0.1173}},
			{Symbol: "H", Coords: [3]float64{0, 0.7572, -0.4692}},
			{Symbol: "H", Coords: [3]float64{0, -0.7572, -0.4692}},
		},
	}
}

func newSolver(t *testing.T, b *scftest.Backend) scf.Solver {
	t.Helper()
	s, err := b.NewSolver(context.Background(), water(), "B3LYPG")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestMolecule_Restricted(t *testing.T) {
	m := water()
	assert.True(t, m.Restricted())
	m.Spin = 1
	assert.False(t, m.Restricted())
	assert.Equal(t, 2, m.Multiplicity())
}

func TestSolve_DefaultGuess(t *testing.T) {
	s := newSolver(t, &scftest.Backend{Iterations: 11})

	sol, err := scf.Solve(context.Background(), s, nil)
	require.NoError(t, err)
	assert.True(t, sol.Status.Converged)
	assert.Equal(t, 11, *sol.Status.Iterations)

	r, c := sol.Density.Dims()
	assert.Equal(t, 3, r)
	assert.Equal(t, 3, c)
}

func TestSolve_CustomGuess(t *testing.T) {
	s := newSolver(t, &scftest.Backend{})

	guess := mat.NewDense(3, 3, []float64{1, 1, 1, 1, 1, 1, 1, 1, 1})
	sol, err := scf.Solve(context.Background(), s, guess)
	require.NoError(t, err)
	assert.True(t, sol.Status.Converged)
}

func TestSolve_GuessShapeMismatch(t *testing.T) {
	s := newSolver(t, &scftest.Backend{})

	_, err := scf.Solve(context.Background(), s, mat.NewDense(2, 2, nil))
	assert.Error(t, err)
}

func TestBuildSolution(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "0")
	s := newSolver(t, &scftest.Backend{})

	status, err := scf.BuildSolution(context.Background(), dir, s, true)
	require.NoError(t, err)
	assert.True(t, status.Converged)

	stored, err := sample.Open(dir).Status()
	require.NoError(t, err)
	assert.True(t, status.Equal(stored))
}

func TestBuildSolution_NotConverged(t *testing.T) {
	tests := []struct {
		name    string
		require bool
		wantErr bool
	}{
		{"required", true, true},
		{"not required", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := filepath.Join(t.TempDir(), "0")
			s := newSolver(t, &scftest.Backend{NotConverged: map[string]bool{"water": true}})

			status, err := scf.BuildSolution(context.Background(), dir, s, tt.require)
			assert.False(t, status.Converged)
			if tt.wantErr {
				assert.ErrorIs(t, err, scf.ErrNotConverged)
				assert.False(t, sample.Exists(dir))
				return
			}
			require.NoError(t, err)
			assert.True(t, sample.Exists(dir))
		})
	}
}

func TestBuildGuess(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "0", "sap")
	b := &scftest.Backend{GuessNotConverged: map[string]bool{"sap": true}}
	s := newSolver(t, b)

	status, err := scf.BuildGuess(context.Background(), dir, s, "sap")
	require.NoError(t, err)
	assert.False(t, status.Converged, "guess non-convergence is persisted, not an error")

	smp := sample.Open(dir)
	density, err := smp.Density()
	require.NoError(t, err)
	guess, err := s.InitGuess(context.Background(), "sap")
	require.NoError(t, err)
	assert.True(t, mat.Equal(guess, density), "stored density is the initial guess")

	stored, err := smp.Status()
	require.NoError(t, err)
	assert.False(t, stored.Converged)
}
