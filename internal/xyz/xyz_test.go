package xyz

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const water = `3
water
O  0.000000  0.000000  0.117300
H  0.000000  0.757200 -0.469200
H  0.000000 -0.757200 -0.469200
`

// QM9 files carry a charge column, Mathematica exponents and trailing property lines.
const qm9Methane = `5
gdb 1	157.7118	157.70997	157.70699
C	-1.2698135645	 0.1085846127	 0.0080009152	-0.535689
H	 0.0021504159	-0.0060313176	 1.9761*^-6	 0.133921
H	 1.0117308433	 1.4637511618	 0.0002765823	 0.133922
H	-0.540815069	 1.4475266138	-0.8766437152	 0.133923
H	-0.5238136345	 1.4379326443	 0.9063972942	 0.133923
1341.307	1341.3284	1341.365	1562.6731	1562.7453	3038.3205	3151.6034	3151.6788	3151.7078
C	C
InChI=1S/CH4/h1H4	InChI=1S/CH4/h1H4
`

func TestRead_SingleFrame(t *testing.T) {
	frames, err := Read(strings.NewReader(water))
	require.NoError(t, err)
	require.Len(t, frames, 1)

	f := frames[0]
	assert.Equal(t, "water", f.Comment)
	assert.Equal(t, 3, f.NumAtoms())
	assert.Equal(t, []string{"O", "H"}, f.Elements())
	assert.InDelta(t, 0.7572, f.Atoms[1].Coords[1], 1e-12)
}

func TestRead_QM9(t *testing.T) {
	frames, err := Read(strings.NewReader(qm9Methane))
	require.NoError(t, err)
	require.Len(t, frames, 1)

	f := frames[0]
	assert.Equal(t, 5, f.NumAtoms())
	assert.Equal(t, []string{"C", "H"}, f.Elements())
	assert.InDelta(t, 1.9761e-6, f.Atoms[1].Coords[2], 1e-15)
}

func TestRead_MultiFrame(t *testing.T) {
	frames, err := Read(strings.NewReader(water + water + water))
	require.NoError(t, err)
	assert.Len(t, frames, 3)
}

func TestRead_Truncated(t *testing.T) {
	_, err := Read(strings.NewReader("3\ncomment\nO 0 0 0\n"))
	assert.Error(t, err)
}

func TestRead_BadCoordinate(t *testing.T) {
	_, err := Read(strings.NewReader("1\nc\nO 0 zero 0\n"))
	assert.Error(t, err)
}

func TestRead_CountOverflow(t *testing.T) {
	_, err := Read(strings.NewReader("99999999999999999999999\nc\nO 0 0 0\n"))
	require.ErrorIs(t, err, strconv.ErrRange)
}

func TestStems(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.xyz", "a.xyz", "c.txt", "c.xyz"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(water), 0o600))
	}

	stems, err := Stems(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, stems)
	assert.Equal(t, filepath.Join(dir, "a.xyz"), Path(dir, "a"))
}

func TestReadFirst(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "w.xyz")
	require.NoError(t, os.WriteFile(path, []byte(water+qm9Methane), 0o600))

	f, err := ReadFirst(path)
	require.NoError(t, err)
	assert.Equal(t, 3, f.NumAtoms())

	empty := filepath.Join(dir, "empty.xyz")
	require.NoError(t, os.WriteFile(empty, nil, 0o600))
	_, err = ReadFirst(empty)
	assert.Error(t, err)
}

func TestSplitFile(t *testing.T) {
	in := t.TempDir()
	out := filepath.Join(t.TempDir(), "xyz")
	path := filepath.Join(in, "C7H10O2.xyz")
	require.NoError(t, os.WriteFile(path, []byte(water+water), 0o600))

	n, err := SplitFile(path, out)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	stems, err := Stems(out)
	require.NoError(t, err)
	assert.Equal(t, []string{"C7H10O2_1", "C7H10O2_2"}, stems)

	frame, err := ReadFirst(Path(out, "C7H10O2_2"))
	require.NoError(t, err)
	assert.Equal(t, 3, frame.NumAtoms())
	assert.Equal(t, "water", frame.Comment)
}

func TestSplitDir(t *testing.T) {
	in := t.TempDir()
	out := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(in, "a.xyz"), []byte(water+water+water), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(in, "b.xyz"), []byte(water), 0o600))

	counts, err := SplitDir(in, out)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"a": 3, "b": 1}, counts)

	stems, err := Stems(out)
	require.NoError(t, err)
	assert.Len(t, stems, 4)
}
