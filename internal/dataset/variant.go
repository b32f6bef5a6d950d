package dataset

import (
	"errors"
	"fmt"
	"sort"

	"github.com/leapstack-labs/scfdata/internal/basis"
	"github.com/leapstack-labs/scfdata/internal/scf"
	"github.com/leapstack-labs/scfdata/internal/split"
	"github.com/leapstack-labs/scfdata/internal/xyz"
)

// ErrUnknownDataset is returned by Lookup for names that are not registered.
var ErrUnknownDataset = errors.New("unknown dataset")

// Variant describes one concrete dataset: its element whitelist, the DFT
// functional, the guess schemes and how a geometry becomes a molecule.
type Variant interface {
	Name() string
	Elements() []string
	Functional() string
	Schemes() []string
	Molecule(name string, frame *xyz.Frame, bs basis.Set) (*scf.Molecule, error)
}

// StratifiedVariant is implemented by variants that split by molecule size
// at build time instead of by canonical order.
type StratifiedVariant interface {
	Variant
	Stratified() bool
}

// IsStratified reports whether v builds stratified splits.
func IsStratified(v Variant) bool {
	sv, ok := v.(StratifiedVariant)
	return ok && sv.Stratified()
}

// Schemes used by every QM9 variant. Hückel guesses need ECPs and are
// not available for these bases.
var qm9Schemes = []string{"1e", "vsap", "sap", "minao"}

// qm9Variant covers QM9 and its derivatives: neutral closed-shell molecules
// computed with B3LYP.
type qm9Variant struct {
	name       string
	elements   []string
	stratified bool
}

func (v qm9Variant) Name() string { return v.name }
func (v qm9Variant) Elements() []string { return append([]string(nil), v.elements...) }
func (v qm9Variant) Functional() string { return "B3LYPG" }
func (v qm9Variant) Schemes() []string { return append([]string(nil), qm9Schemes...) }
func (v qm9Variant) Stratified() bool { return v.stratified }

// Molecule builds a neutral singlet. For the MD frames the molecules are
// assumed to stay neutral and closed-shell.
func (v qm9Variant) Molecule(name string, frame *xyz.Frame, bs basis.Set) (*scf.Molecule, error) {
	if frame.NumAtoms() == 0 {
		return nil, fmt.Errorf("molecule %s has no atoms", name)
	}
	return &scf.Molecule{
		Name:    name,
		Comment: frame.Comment,
		Atoms:   frame.Atoms,
		Basis:   bs,
		Charge:  0,
		Spin:    0,
	}, nil
}

// Entry is a registered variant with its default build parameters.
type Entry struct {
	Variant     Variant
	Size        int
	Split       split.Policy
	Description string
}

var registry = map[string]Entry{
	"qm9": {
		Variant:     qm9Variant{name: "qm9", elements: []string{"H", "C", "O", "N", "F"}, stratified: true},
		Size:        500,
		Split:       split.Proportional{Val: 0.1, Test: 0.1},
		Description: "QM9 molecules, splits stratified by atom count",
	},
	"qm9_isomeres": {
		Variant:     qm9Variant{name: "qm9_isomeres", elements: []string{"H", "C", "O"}},
		Size:        500,
		Split:       split.Ratio{Train: 0.8},
		Description: "C7H10O2 isomers from QM9",
	},
	"qm9_isomeres_md": {
		Variant:     qm9Variant{name: "qm9_isomeres_md", elements: []string{"H", "C", "O"}},
		Size:        500,
		Split:       split.Proportional{Val: 0.1, Test: 0.1},
		Description: "MD frames of QM9 isomers at 500 K",
	},
}

// Lookup returns the registered variant called name.
func Lookup(name string) (Entry, error) {
	e, ok := registry[name]
	if !ok {
		return Entry{}, fmt.Errorf("%w: %q (available: %v)", ErrUnknownDataset, name, Names())
	}
	return e, nil
}

// Names returns the registered dataset names, sorted.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Registered returns every registered entry ordered by name.
func Registered() []Entry {
	names := Names()
	out := make([]Entry, len(names))
	for i, name := range names {
		out[i] = registry[name]
	}
	return out
}
