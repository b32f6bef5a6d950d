package worker

import (
	"sort"

	"github.com/leapstack-labs/scfdata/internal/scf"
)

// Operation names understood by a worker.
const (
	OpInit      = "init"
	OpOverlap   = "overlap"
	OpHCore     = "hcore"
	OpDensity   = "density"
	OpInitGuess = "init_guess"
	OpFock      = "fock"
	OpRun       = "run"
	OpClose     = "close"
)

// Request is one line sent to the worker's stdin.
// Matrix arguments and results are paths to .npy files.
type Request struct {
	Op         string    `json:"op"`
	Molecule   *Molecule `json:"molecule,omitempty"`
	Functional string    `json:"functional,omitempty"`
	Scheme     string    `json:"scheme,omitempty"`
	DM         string    `json:"dm,omitempty"`
	InitGuess  string    `json:"init_guess,omitempty"`
	DM0        string    `json:"dm0,omitempty"`
	Out        string    `json:"out,omitempty"`
}

// Response is one line read from the worker's stdout.
type Response struct {
	OK        bool   `json:"ok"`
	Converged bool   `json:"converged,omitempty"`
	Cycles    *int   `json:"cycles,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Molecule is the wire form of scf.Molecule.
type Molecule struct {
	Name   string `json:"name"`
	Atoms  []Atom `json:"atoms"`
	Charge int    `json:"charge"`
	Spin   int    `json:"spin"`
	// BasisName is set for named bases, Basis for per-element definitions
	// in Gaussian94 format.
	BasisName string            `json:"basis_name,omitempty"`
	Basis     map[string]string `json:"basis,omitempty"`
}

// Atom is one atom in Angstrom.
type Atom struct {
	Symbol string     `json:"symbol"`
	Coords [3]float64 `json:"coords"`
}

func toWire(mol *scf.Molecule) *Molecule {
	w := &Molecule{
		Name:   mol.Name,
		Atoms:  make([]Atom, len(mol.Atoms)),
		Charge: mol.Charge,
		Spin:   mol.Spin,
	}
	for i, a := range mol.Atoms {
		w.Atoms[i] = Atom{Symbol: a.Symbol, Coords: a.Coords}
	}
	if mol.Basis.Named() {
		w.BasisName = mol.Basis.Source
	} else {
		w.Basis = make(map[string]string, len(mol.Basis.Definitions))
		els := mol.Basis.Elements()
		sort.Strings(els)
		for _, el := range els {
			w.Basis[el] = mol.Basis.Definitions[el]
		}
	}
	return w
}
