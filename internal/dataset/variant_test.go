package dataset

import (
	"testing"

	"github.com/leapstack-labs/scfdata/internal/basis"
	"github.com/leapstack-labs/scfdata/internal/split"
	"github.com/leapstack-labs/scfdata/internal/xyz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	assert.Equal(t, []string{"qm9", "qm9_isomeres", "qm9_isomeres_md"}, Names())

	tests := []struct {
		name       string
		elements   []string
		stratified bool
		split      split.Policy
	}{
		{"qm9", []string{"H", "C", "O", "N", "F"}, true, split.Proportional{Val: 0.1, Test: 0.1}},
		{"qm9_isomeres", []string{"H", "C", "O"}, false, split.Ratio{Train: 0.8}},
		{"qm9_isomeres_md", []string{"H", "C", "O"}, false, split.Proportional{Val: 0.1, Test: 0.1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := Lookup(tt.name)
			require.NoError(t, err)

			v := e.Variant
			assert.Equal(t, tt.name, v.Name())
			assert.Equal(t, tt.elements, v.Elements())
			assert.Equal(t, "B3LYPG", v.Functional())
			assert.Equal(t, []string{"1e", "vsap", "sap", "minao"}, v.Schemes())
			assert.Equal(t, tt.stratified, IsStratified(v))
			assert.Equal(t, tt.split, e.Split)
			assert.Equal(t, 500, e.Size)
		})
	}
}

func TestLookup_Unknown(t *testing.T) {
	_, err := Lookup("qm7")
	assert.ErrorIs(t, err, ErrUnknownDataset)
}

func TestVariant_ElementsAreCopies(t *testing.T) {
	e, err := Lookup("qm9")
	require.NoError(t, err)

	els := e.Variant.Elements()
	els[0] = "X"
	assert.Equal(t, "H", e.Variant.Elements()[0])
}

func TestVariant_Molecule(t *testing.T) {
	e, err := Lookup("qm9_isomeres")
	require.NoError(t, err)

	frame := &xyz.Frame{Comment: "gdb 1", Atoms: []xyz.Atom{{Symbol: "C"}, {Symbol: "H"}}}
	mol, err := e.Variant.Molecule("dsgdb9nsd_000001", frame, basis.Set{Source: "sto-3g"})
	require.NoError(t, err)
	assert.Equal(t, 0, mol.Charge)
	assert.True(t, mol.Restricted())
	assert.Equal(t, 2, mol.NumAtoms())

	_, err = e.Variant.Molecule("empty", &xyz.Frame{}, basis.Set{})
	assert.Error(t, err)
}

func TestOpen_Defaults(t *testing.T) {
	ds, err := Open("qm9", Config{DataDir: t.TempDir(), ResourcesDir: "/res"})
	require.NoError(t, err)
	assert.Equal(t, 500, ds.Size())
	assert.True(t, ds.Stratified())
	assert.Equal(t, "/res/qm9/xyz", ds.GeometryDir())
	assert.Equal(t, "/res/qm9/basis.gbs", ds.BasisSource())

	_, err = Open("nope", Config{DataDir: t.TempDir()})
	assert.ErrorIs(t, err, ErrUnknownDataset)
}
