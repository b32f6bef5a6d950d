package basis

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sto3g = `! STO-3G  EMSL  Basis Set Exchange Library
****
H     0
S   3   1.00
      3.42525091             0.15432897
      0.62391373             0.53532814
      0.16885540             0.44463454
****
C     0
S   3   1.00
     71.6168370              0.15432897
     13.0450960              0.53532814
      3.5305122              0.44463454
SP   3   1.00
      2.9412494             -0.09996723             0.15591627
      0.6834831              0.39951283             0.60768372
      0.2222899              0.70011547             0.39195739
****
O     0
S   3   1.00
    130.7093200              0.15432897
     23.8088610              0.53532814
      6.4436083              0.44463454
****
`

func writeBasis(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "basis.gbs")
	require.NoError(t, os.WriteFile(path, []byte(sto3g), 0o600))
	return path
}

func TestParse(t *testing.T) {
	blocks, err := Parse(strings.NewReader(sto3g))
	require.NoError(t, err)

	assert.Len(t, blocks, 3)
	assert.True(t, strings.HasPrefix(blocks["C"], "C     0\n"))
	assert.Contains(t, blocks["C"], "SP   3   1.00")
	assert.NotContains(t, blocks["H"], "****")
}

func TestParse_Empty(t *testing.T) {
	_, err := Parse(strings.NewReader("! only a comment\n"))
	assert.Error(t, err)
}

func TestLoad_FileRestrictsElements(t *testing.T) {
	path := writeBasis(t)

	set, err := Load(path, []string{"H", "C"})
	require.NoError(t, err)
	assert.False(t, set.Named())
	assert.Equal(t, path, set.Source)

	els := set.Elements()
	sort.Strings(els)
	assert.Equal(t, []string{"C", "H"}, els)
}

func TestLoad_MissingElement(t *testing.T) {
	_, err := Load(writeBasis(t), []string{"H", "F"})
	require.ErrorIs(t, err, ErrMissingElement)
}

func TestLoad_Named(t *testing.T) {
	set, err := Load("def2-svp", []string{"H", "C"})
	require.NoError(t, err)
	assert.True(t, set.Named())
	assert.Equal(t, "def2-svp", set.Source)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.gbs"), []string{"H"})
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoad_Empty(t *testing.T) {
	_, err := Load("", nil)
	assert.Error(t, err)
}
