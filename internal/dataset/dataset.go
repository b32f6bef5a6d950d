// Package dataset builds and serves SCF datasets.
//
// A Dataset lives in <data_dir>/<name>. The canonical molecule order is
// stored in names.pkl, the accepted keys in keys.pkl, and every accepted
// key has a reference sample in <key>/ plus one sample per guess scheme in
// <key>/<scheme>/. Everything a Dataset derives from disk is computed once
// and kept for the lifetime of the instance.
package dataset

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"sync"

	"github.com/leapstack-labs/scfdata/internal/basis"
	"github.com/leapstack-labs/scfdata/internal/memo"
	"github.com/leapstack-labs/scfdata/internal/pickle"
	"github.com/leapstack-labs/scfdata/internal/sample"
	"github.com/leapstack-labs/scfdata/internal/scf"
	"github.com/leapstack-labs/scfdata/internal/split"
	"github.com/leapstack-labs/scfdata/internal/xyz"
	"github.com/leapstack-labs/scfdata/pkg/core"
)

// Cache files inside the dataset directory.
const (
	NamesFile = "names.pkl"
	KeysFile  = "keys.pkl"
)

// Config holds the parameters of a Dataset. Zero-valued fields fall back
// to the variant or to the resource layout.
type Config struct {
	// DataDir is the data root; the dataset lives in DataDir/<name>.
	DataDir string
	// ResourcesDir holds <name>/xyz and <name>/basis.gbs.
	ResourcesDir string
	// GeometryDir overrides <ResourcesDir>/<name>/xyz.
	GeometryDir string
	// Basis is a basis name or .gbs path, overriding <ResourcesDir>/<name>/basis.gbs.
	Basis string

	Size  int
	Split split.Policy

	// Elements, Functional and Schemes override the variant.
	Elements   []string
	Functional string
	Schemes    []string

	// RemainderSeed seeds the shuffle of leftover candidates in stratified
	// builds. Nil leaves that order unseeded.
	RemainderSeed *uint64

	Backend scf.Backend
	// Journal records runs and attempts when set.
	Journal core.Store
	Logger  *slog.Logger
}

type subsets struct {
	train, val, test []int
}

// Dataset is the facade over one dataset directory.
type Dataset struct {
	variant Variant
	cfg     Config
	dir     string
	logger  *slog.Logger

	names   memo.Cell[[]string]
	keys    memo.Cell[[]int]
	sizes   memo.Cell[split.Sizes]
	subsets memo.Cell[subsets]
	basis   memo.Cell[basis.Set]

	mu      sync.Mutex
	samples map[string]*sample.Sample
}

// New returns a Dataset for variant. Nothing is read from disk.
func New(variant Variant, cfg Config) (*Dataset, error) {
	if variant == nil {
		return nil, errors.New("dataset variant is required")
	}
	if cfg.DataDir == "" {
		return nil, errors.New("data directory is required")
	}
	if cfg.Size < 0 {
		return nil, fmt.Errorf("%w: negative size %d", split.ErrInvalidSplit, cfg.Size)
	}
	if cfg.Split == nil {
		return nil, errors.New("split policy is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Dataset{
		variant: variant,
		cfg:     cfg,
		dir:     filepath.Join(cfg.DataDir, variant.Name()),
		logger:  logger.With("dataset", variant.Name()),
		samples: make(map[string]*sample.Sample),
	}, nil
}

// Open looks up a registered variant and fills unset size and split
// parameters from its defaults.
func Open(name string, cfg Config) (*Dataset, error) {
	entry, err := Lookup(name)
	if err != nil {
		return nil, err
	}
	if cfg.Size == 0 {
		cfg.Size = entry.Size
	}
	if cfg.Split == nil {
		cfg.Split = entry.Split
	}
	return New(entry.Variant, cfg)
}

// Name returns the dataset name.
func (d *Dataset) Name() string { return d.variant.Name() }

// Dir returns the dataset directory.
func (d *Dataset) Dir() string { return d.dir }

// Size returns the number of samples the dataset holds once built.
func (d *Dataset) Size() int { return d.cfg.Size }

// Policy returns the split policy.
func (d *Dataset) Policy() split.Policy { return d.cfg.Split }

// Stratified reports whether the dataset builds stratified splits.
func (d *Dataset) Stratified() bool { return IsStratified(d.variant) }

// GeometryDir returns the directory holding the .xyz inputs.
func (d *Dataset) GeometryDir() string {
	if d.cfg.GeometryDir != "" {
		return d.cfg.GeometryDir
	}
	return filepath.Join(d.cfg.ResourcesDir, d.variant.Name(), "xyz")
}

// BasisSource returns the basis name or file the dataset uses.
func (d *Dataset) BasisSource() string {
	if d.cfg.Basis != "" {
		return d.cfg.Basis
	}
	return filepath.Join(d.cfg.ResourcesDir, d.variant.Name(), "basis.gbs")
}

// Elements returns the element whitelist.
func (d *Dataset) Elements() []string {
	if len(d.cfg.Elements) > 0 {
		return slices.Clone(d.cfg.Elements)
	}
	return d.variant.Elements()
}

// Functional returns the DFT functional.
func (d *Dataset) Functional() string {
	if d.cfg.Functional != "" {
		return d.cfg.Functional
	}
	return d.variant.Functional()
}

// Schemes returns the guess schemes.
func (d *Dataset) Schemes() []string {
	if len(d.cfg.Schemes) > 0 {
		return slices.Clone(d.cfg.Schemes)
	}
	return d.variant.Schemes()
}

// Names returns the canonical molecule order. It is read from names.pkl
// when present; otherwise the geometry stems are permuted with the default
// seed and, if the dataset directory exists, written to names.pkl.
func (d *Dataset) Names() ([]string, error) {
	return d.names.Get(func() ([]string, error) {
		path := filepath.Join(d.dir, NamesFile)

		names, err := pickle.ReadStrings(path)
		if err == nil {
			return names, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load names: %w", err)
		}

		stems, err := xyz.Stems(d.GeometryDir())
		if err != nil {
			return nil, fmt.Errorf("failed to list geometries: %w", err)
		}
		if len(stems) == 0 {
			return nil, fmt.Errorf("no %s files in %s", xyz.Ext, d.GeometryDir())
		}
		names = split.Permute(stems, split.DefaultSeed)

		if info, err := os.Stat(d.dir); err == nil && info.IsDir() {
			if err := pickle.WriteStrings(path, names); err != nil {
				return nil, fmt.Errorf("failed to save names: %w", err)
			}
		}
		return names, nil
	})
}

// MoleculeName returns the molecule name for key.
func (d *Dataset) MoleculeName(key int) (string, error) {
	names, err := d.Names()
	if err != nil {
		return "", err
	}
	if key < 0 || key >= len(names) {
		return "", fmt.Errorf("key %d out of range [0, %d)", key, len(names))
	}
	return names[key], nil
}

// Keys returns the accepted keys from keys.pkl, truncated to Size.
func (d *Dataset) Keys() ([]int, error) {
	return d.keys.Get(func() ([]int, error) {
		keys, err := pickle.ReadInts(filepath.Join(d.dir, KeysFile))
		if err != nil {
			return nil, fmt.Errorf("failed to load keys (is %s built?): %w", d.Name(), err)
		}
		if len(keys) > d.cfg.Size {
			keys = keys[:d.cfg.Size:d.cfg.Size]
		}
		return keys, nil
	})
}

// Sizes returns the subset sizes for the configured size and policy.
func (d *Dataset) Sizes() (split.Sizes, error) {
	return d.sizes.Get(func() (split.Sizes, error) {
		return d.cfg.Split.Sizes(d.cfg.Size)
	})
}

func (d *Dataset) split() (subsets, error) {
	return d.subsets.Get(func() (subsets, error) {
		sizes, err := d.Sizes()
		if err != nil {
			return subsets{}, err
		}
		keys, err := d.Keys()
		if err != nil {
			return subsets{}, err
		}
		train, val, test, err := sizes.Apply(keys)
		if err != nil {
			return subsets{}, err
		}
		return subsets{train: train, val: val, test: test}, nil
	})
}

// TrainKeys returns the training keys.
func (d *Dataset) TrainKeys() ([]int, error) {
	s, err := d.split()
	return s.train, err
}

// ValKeys returns the validation keys.
func (d *Dataset) ValKeys() ([]int, error) {
	s, err := d.split()
	return s.val, err
}

// TestKeys returns the test keys.
func (d *Dataset) TestKeys() ([]int, error) {
	s, err := d.split()
	return s.test, err
}

// BasisSet returns the basis restricted to Elements.
func (d *Dataset) BasisSet() (basis.Set, error) {
	return d.basis.Get(func() (basis.Set, error) {
		return basis.Load(d.BasisSource(), d.Elements())
	})
}

// Molecule builds the molecule for key from its geometry file.
func (d *Dataset) Molecule(key int) (*scf.Molecule, error) {
	name, err := d.MoleculeName(key)
	if err != nil {
		return nil, err
	}

	path := xyz.Path(d.GeometryDir(), name)
	frame, err := xyz.ReadFirst(path)
	if err != nil {
		return nil, err
	}

	allowed := d.Elements()
	for _, el := range frame.Elements() {
		if !slices.Contains(allowed, el) {
			return nil, fmt.Errorf("molecule %s contains element %s outside %v", name, el, allowed)
		}
	}

	bs, err := d.BasisSet()
	if err != nil {
		return nil, fmt.Errorf("failed to load basis: %w", err)
	}

	mol, err := d.variant.Molecule(name, frame, bs)
	if err != nil {
		return nil, err
	}
	mol.Source = path
	return mol, nil
}

// Solver returns a fresh solver for key. Every call starts a new solver;
// the caller closes it.
func (d *Dataset) Solver(ctx context.Context, key int) (scf.Solver, error) {
	if d.cfg.Backend == nil {
		return nil, errors.New("no solver backend configured")
	}
	mol, err := d.Molecule(key)
	if err != nil {
		return nil, err
	}
	return d.cfg.Backend.NewSolver(ctx, mol, d.Functional())
}

// KeyDir returns the reference sample directory of key.
func (d *Dataset) KeyDir(key int) string {
	return filepath.Join(d.dir, strconv.Itoa(key))
}

// GuessDir returns the sample directory of key for scheme.
func (d *Dataset) GuessDir(key int, scheme string) string {
	return filepath.Join(d.KeyDir(key), scheme)
}

// Solution returns the reference sample of key.
func (d *Dataset) Solution(key int) *sample.Sample {
	return d.sample(d.KeyDir(key))
}

// Guesses returns one sample per guess scheme for key.
func (d *Dataset) Guesses(key int) map[string]*sample.Sample {
	schemes := d.Schemes()
	out := make(map[string]*sample.Sample, len(schemes))
	for _, s := range schemes {
		out[s] = d.sample(d.GuessDir(key, s))
	}
	return out
}

func (d *Dataset) sample(path string) *sample.Sample {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.samples[path]
	if !ok {
		s = sample.Open(path)
		d.samples[path] = s
	}
	return s
}
