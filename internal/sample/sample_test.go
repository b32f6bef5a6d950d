package sample

import (
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/leapstack-labs/scfdata/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func testMatrix(n int, offset float64) *mat.Dense {
	data := make([]float64, n*n)
	for i := range data {
		// irrational-ish values so a lossy encoding would show
		data[i] = math.Sqrt(float64(i)+offset) / 3
	}
	return mat.NewDense(n, n, data)
}

func TestSaveAndLoad_RoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "qm9", "3")

	overlap := testMatrix(4, 1)
	hcore := testMatrix(4, 2)
	density := testMatrix(4, 3)
	fock := testMatrix(4, 4)
	status := core.NewStatus(true, 11)

	require.NoError(t, Save(dir, overlap, hcore, density, fock, status))
	assert.True(t, Exists(dir))

	s := Open(dir)
	assert.Equal(t, dir, s.Path())

	checks := []struct {
		name string
		load func() (*mat.Dense, error)
		want *mat.Dense
	}{
		{"overlap", s.Overlap, overlap},
		{"hcore", s.HCore, hcore},
		{"density", s.Density, density},
		{"fock", s.Fock, fock},
	}
	for _, c := range checks {
		t.Run(c.name, func(t *testing.T) {
			got, err := c.load()
			require.NoError(t, err)
			assert.True(t, mat.Equal(c.want, got), "%s differs after round trip", c.name)
		})
	}

	gotStatus, err := s.Status()
	require.NoError(t, err)
	assert.True(t, status.Equal(gotStatus))
}

func TestSave_NonSquare(t *testing.T) {
	dir := t.TempDir()
	m := mat.NewDense(2, 3, []float64{1, 2, 3, 4, 5, 6})

	require.NoError(t, Save(dir, m, m, m, m, core.Status{}))

	got, err := Open(dir).Fock()
	require.NoError(t, err)
	r, c := got.Dims()
	assert.Equal(t, 2, r)
	assert.Equal(t, 3, c)
	assert.True(t, mat.Equal(m, got))
}

func TestSave_NilMatrix(t *testing.T) {
	m := testMatrix(2, 0)
	err := Save(t.TempDir(), m, nil, m, m, core.Status{})
	assert.Error(t, err)
}

func TestLoad_MissingArtifact(t *testing.T) {
	dir := t.TempDir()
	s := Open(filepath.Join(dir, "missing"))

	_, err := s.Overlap()
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, err, fs.ErrNotExist)

	_, err = s.Status()
	require.ErrorIs(t, err, ErrNotFound)
}

func TestLoad_FieldsAreIndependent(t *testing.T) {
	dir := t.TempDir()
	m := testMatrix(3, 0)
	require.NoError(t, Save(dir, m, m, m, m, core.NewStatus(false, 50)))

	require.NoError(t, os.Remove(filepath.Join(dir, FockFile)))
	assert.False(t, Exists(dir))

	s := Open(dir)
	_, err := s.Overlap()
	require.NoError(t, err)

	_, err = s.Fock()
	require.ErrorIs(t, err, ErrNotFound)
}

func TestLoad_IsCached(t *testing.T) {
	dir := t.TempDir()
	m := testMatrix(3, 0)
	require.NoError(t, Save(dir, m, m, m, m, core.NewStatus(true, 7)))

	s := Open(dir)
	first, err := s.Density()
	require.NoError(t, err)

	// the cached value survives removal of the backing file
	require.NoError(t, os.Remove(filepath.Join(dir, DensityFile)))
	second, err := s.Density()
	require.NoError(t, err)
	assert.Same(t, first, second)
}
