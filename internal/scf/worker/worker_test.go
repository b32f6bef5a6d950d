package worker

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"testing"

	"github.com/leapstack-labs/scfdata/internal/basis"
	"github.com/leapstack-labs/scfdata/internal/sample"
	"github.com/leapstack-labs/scfdata/internal/scf"
	"github.com/leapstack-labs/scfdata/internal/testutil"
	"github.com/leapstack-labs/scfdata/internal/xyz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

const helperEnv = "SCFDATA_WANT_HELPER_WORKER"

// TestHelperWorker is not a real test. It is the worker process started by
// the tests below.
func TestHelperWorker(_ *testing.T) {
	if os.Getenv(helperEnv) != "1" {
		return
	}
	os.Exit(fakeWorker())
}

func fakeWorker() int {
	in := bufio.NewScanner(os.Stdin)
	out := json.NewEncoder(os.Stdout)

	var mol *Molecule
	var density *mat.Dense
	n := 0
	reply := func(r Response) {
		_ = out.Encode(r)
	}
	fail := func(format string, args ...any) {
		reply(Response{Error: fmt.Sprintf(format, args...)})
	}
	write := func(path string, m mat.Matrix) {
		if err := sample.WriteMatrix(path, m); err != nil {
			fail("%v", err)
			return
		}
		reply(Response{OK: true})
	}
	filled := func(v float64) *mat.Dense {
		m := mat.NewDense(n, n, nil)
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				m.Set(i, j, v)
			}
		}
		return m
	}

	for in.Scan() {
		var req Request
		if err := json.Unmarshal(in.Bytes(), &req); err != nil {
			fail("bad request: %v", err)
			continue
		}

		switch req.Op {
		case OpInit:
			if req.Molecule == nil || len(req.Molecule.Atoms) == 0 {
				fail("no atoms")
				continue
			}
			if req.Molecule.Name == "broken" {
				fail("cannot build molecule %s", req.Molecule.Name)
				continue
			}
			mol = req.Molecule
			n = len(mol.Atoms)
			reply(Response{OK: true})
		case OpOverlap:
			write(req.Out, filled(1))
		case OpHCore:
			write(req.Out, filled(-1))
		case OpInitGuess:
			write(req.Out, filled(float64(len(req.Scheme))))
		case OpDensity:
			if density == nil {
				fail("not run")
				continue
			}
			write(req.Out, density)
		case OpFock:
			dm := density
			if req.DM != "" {
				m, err := sample.ReadMatrix(req.DM)
				if err != nil {
					fail("%v", err)
					continue
				}
				dm = m
			}
			if dm == nil {
				fail("no density")
				continue
			}
			var f mat.Dense
			f.Add(filled(-1), dm)
			write(req.Out, &f)
		case OpRun:
			cycles := 9
			if req.DM0 != "" {
				m, err := sample.ReadMatrix(req.DM0)
				if err != nil {
					fail("%v", err)
					continue
				}
				cycles = 4 + int(m.At(0, 0))
			} else if req.InitGuess != scf.DefaultGuess {
				fail("unexpected init guess %q", req.InitGuess)
				continue
			}
			density = filled(0.5)
			if mol.Name == "stubborn" {
				reply(Response{OK: true, Converged: false, Cycles: &cycles})
				continue
			}
			reply(Response{OK: true, Converged: true, Cycles: &cycles})
		case OpClose:
			return 0
		default:
			fail("unknown op %q", req.Op)
		}
	}
	return 0
}

func newBackend(t *testing.T) *Backend {
	t.Helper()
	b, err := New(Config{
		Command: []string{os.Args[0], "-test.run=^TestHelperWorker$"},
		Env:     []string{helperEnv + "=1"},
		Logger:  testutil.NewTestLogger(t),
	})
	require.NoError(t, err)
	return b
}

func molecule(name string) *scf.Molecule {
	return &scf.Molecule{
		Name: name,
		Atoms: []xyz.Atom{
			{Symbol: "H", Coords: [3]float64{0, 0, 0}},
			{Symbol: "H", Coords: [3]float64{0, 0, 0.74}},
		},
		Basis: basis.Set{Source: "sto-3g"},
	}
}

func TestNew_RequiresCommand(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestSolver_Solve(t *testing.T) {
	ctx := context.Background()
	s, err := newBackend(t).NewSolver(ctx, molecule("h2"), "B3LYPG")
	require.NoError(t, err)
	defer func() { assert.NoError(t, s.Close()) }()

	sol, err := scf.Solve(ctx, s, nil)
	require.NoError(t, err)
	assert.True(t, sol.Status.Converged)
	require.NotNil(t, sol.Status.Iterations)
	assert.Equal(t, 9, *sol.Status.Iterations)
	assert.Equal(t, 0.5, sol.Density.At(1, 1))
	assert.Equal(t, -0.5, sol.Fock.At(0, 1))
}

func TestSolver_BuildGuess(t *testing.T) {
	ctx := context.Background()
	s, err := newBackend(t).NewSolver(ctx, molecule("stubborn"), "B3LYPG")
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	dir := t.TempDir()
	status, err := scf.BuildGuess(ctx, dir, s, "sap")
	require.NoError(t, err)
	assert.False(t, status.Converged)
	assert.Equal(t, 7, *status.Iterations)

	density, err := sample.Open(dir).Density()
	require.NoError(t, err)
	assert.Equal(t, 3.0, density.At(0, 0))
}

func TestSolver_InitFailure(t *testing.T) {
	_, err := newBackend(t).NewSolver(context.Background(), molecule("broken"), "B3LYPG")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot build molecule broken")
}

func TestSolver_CloseTwice(t *testing.T) {
	s, err := newBackend(t).NewSolver(context.Background(), molecule("h2"), "B3LYPG")
	require.NoError(t, err)

	ws := s.(*Solver)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.NoDirExists(t, ws.dir)

	_, err = s.Overlap(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}

func TestToWire(t *testing.T) {
	mol := molecule("h2")
	mol.Basis = basis.Set{Source: "basis.gbs", Definitions: map[string]string{"H": "H 0\nS 1 1.00\n"}}

	w := toWire(mol)
	assert.Empty(t, w.BasisName)
	assert.Equal(t, "H 0\nS 1 1.00\n", w.Basis["H"])
	assert.Len(t, w.Atoms, 2)
	assert.Equal(t, 0.74, w.Atoms[1].Coords[2])
}
