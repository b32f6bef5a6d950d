// Package sample persists and loads the result of one SCF computation.
//
// A sample is a directory holding four NumPy arrays (overlap, core
// Hamiltonian, density and Fock matrices) and a pickled status record:
//
//	<dir>/overlap.npy
//	<dir>/hcore.npy
//	<dir>/density.npy
//	<dir>/fock.npy
//	<dir>/status.pkl
//
// Samples are written once by the dataset builder and are read-only
// afterwards. Save is not atomic across the five files; a crash mid-save
// leaves a partial directory which the builder removes on failure.
package sample

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/leapstack-labs/scfdata/internal/memo"
	"github.com/leapstack-labs/scfdata/internal/pickle"
	"github.com/leapstack-labs/scfdata/pkg/core"
	"github.com/sbinet/npyio"
	"gonum.org/v1/gonum/mat"
)

// Artifact file names.
const (
	OverlapFile = "overlap.npy"
	HCoreFile   = "hcore.npy"
	DensityFile = "density.npy"
	FockFile    = "fock.npy"
	StatusFile  = "status.pkl"
)

// Files lists every artifact of a sample in write order.
var Files = []string{OverlapFile, HCoreFile, DensityFile, FockFile, StatusFile}

// ErrNotFound is returned when a sample artifact does not exist on disk.
var ErrNotFound = errors.New("sample artifact not found")

// Sample is a lazily loaded view of a stored sample.
// Each field is read from disk on first access and kept in memory.
type Sample struct {
	path string

	overlap memo.Cell[*mat.Dense]
	hcore   memo.Cell[*mat.Dense]
	density memo.Cell[*mat.Dense]
	fock    memo.Cell[*mat.Dense]
	status  memo.Cell[core.Status]
}

// Open returns a handle for the sample stored at path.
// Nothing is read until a field is accessed.
func Open(path string) *Sample {
	return &Sample{path: path}
}

// Path returns the sample directory.
func (s *Sample) Path() string {
	return s.path
}

// Overlap returns the overlap matrix S.
func (s *Sample) Overlap() (*mat.Dense, error) {
	return s.overlap.Get(func() (*mat.Dense, error) { return ReadMatrix(filepath.Join(s.path, OverlapFile)) })
}

// HCore returns the core Hamiltonian.
func (s *Sample) HCore() (*mat.Dense, error) {
	return s.hcore.Get(func() (*mat.Dense, error) { return ReadMatrix(filepath.Join(s.path, HCoreFile)) })
}

// Density returns the density matrix.
func (s *Sample) Density() (*mat.Dense, error) {
	return s.density.Get(func() (*mat.Dense, error) { return ReadMatrix(filepath.Join(s.path, DensityFile)) })
}

// Fock returns the Fock matrix.
func (s *Sample) Fock() (*mat.Dense, error) {
	return s.fock.Get(func() (*mat.Dense, error) { return ReadMatrix(filepath.Join(s.path, FockFile)) })
}

// Status returns the convergence status of the run that produced the sample.
func (s *Sample) Status() (core.Status, error) {
	return s.status.Get(func() (core.Status, error) {
		path := filepath.Join(s.path, StatusFile)
		st, err := pickle.ReadStatus(path)
		if err != nil {
			return core.Status{}, notFound(path, err)
		}
		return st, nil
	})
}

// Save writes the four matrices and the status into path, creating the
// directory (and parents) when needed.
func Save(path string, overlap, hcore, density, fock mat.Matrix, status core.Status) error {
	if err := os.MkdirAll(path, 0o750); err != nil {
		return fmt.Errorf("failed to create sample directory: %w", err)
	}

	matrices := []struct {
		name string
		m    mat.Matrix
	}{
		{OverlapFile, overlap},
		{HCoreFile, hcore},
		{DensityFile, density},
		{FockFile, fock},
	}
	for _, entry := range matrices {
		if entry.m == nil {
			return fmt.Errorf("failed to save %s: nil matrix", entry.name)
		}
		if err := WriteMatrix(filepath.Join(path, entry.name), entry.m); err != nil {
			return err
		}
	}

	if err := pickle.WriteStatus(filepath.Join(path, StatusFile), status); err != nil {
		return fmt.Errorf("failed to save status: %w", err)
	}
	return nil
}

// WriteMatrix stores m as a float64 NumPy array.
func WriteMatrix(path string, m mat.Matrix) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := npyio.Write(f, m); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}

// ReadMatrix loads a 2-D float64 NumPy array.
func ReadMatrix(path string) (*mat.Dense, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, notFound(path, err)
	}
	defer func() { _ = f.Close() }()

	var m mat.Dense
	if err := npyio.Read(f, &m); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return &m, nil
}

// Exists reports whether every artifact of the sample at path is present.
func Exists(path string) bool {
	for _, name := range Files {
		if _, err := os.Stat(filepath.Join(path, name)); err != nil {
			return false
		}
	}
	return true
}

func notFound(path string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s: %w", ErrNotFound, path, err)
	}
	return err
}
