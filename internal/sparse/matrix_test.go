package sparse

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFromRows_DropsZeros(t *testing.T) {
	rows := []map[int]float64{
		{0: 1, 2: 3, 5: 0},
		{},
		{1: 4},
	}
	m := NewFromRows(rows, 6)

	assert.Equal(t, 3, m.NRows)
	assert.Equal(t, []int{0, 2, 2, 3}, m.Indptr)
	assert.Equal(t, map[int]float64{0: 1, 2: 3}, m.Row(0))
	assert.Equal(t, map[int]float64{}, m.Row(1))
	assert.Equal(t, map[int]float64{1: 4}, m.Row(2))
}

func TestNormalizeL1Rows(t *testing.T) {
	m := NewFromRows([]map[int]float64{
		{0: 2, 1: 2},
		{0: 0, 1: 0},
	}, 2)

	norm := m.NormalizeL1Rows()
	assert.InDelta(t, 0.5, norm.Row(0)[0], 1e-9)
	assert.InDelta(t, 0.5, norm.Row(0)[1], 1e-9)
	assert.Empty(t, norm.Row(1))
}

func TestMulSparseTranspose_CollapsesColumns(t *testing.T) {
	// counts over a 3-term vocabulary: doc0 has term0=1,term1=2,term2=3
	counts := NewFromRows([]map[int]float64{{0: 1, 1: 2, 2: 3}}, 3)

	// collapse operator: reduced vocab has 2 rows.
	// row0 = identity on source col 0 (untouched term)
	// row1 = identity on source col 1, plus +1 at source col 2 (term2 merged into term1)
	op := NewFromRows([]map[int]float64{
		{0: 1},
		{1: 1, 2: 1},
	}, 3)

	collapsed := counts.MulSparseTranspose(op)
	assert.Equal(t, 1, collapsed.NRows)
	assert.Equal(t, 2, collapsed.NCols)
	row := collapsed.Row(0)
	assert.InDelta(t, 1, row[0], 1e-9)
	assert.InDelta(t, 5, row[1], 1e-9)
}

func TestMulDiag(t *testing.T) {
	m := NewFromRows([]map[int]float64{{0: 2, 1: 3}}, 2)
	scaled := m.MulDiag([]float64{10, 100})
	row := scaled.Row(0)
	assert.InDelta(t, 20, row[0], 1e-9)
	assert.InDelta(t, 300, row[1], 1e-9)
}

func TestVStack(t *testing.T) {
	a := NewFromRows([]map[int]float64{{0: 1}}, 3)
	b := NewFromRows([]map[int]float64{{1: 2}, {2: 3}}, 3)

	stacked := VStack(a, b)
	assert.Equal(t, 3, stacked.NRows)
	assert.Equal(t, map[int]float64{0: 1}, stacked.Row(0))
	assert.Equal(t, map[int]float64{1: 2}, stacked.Row(1))
	assert.Equal(t, map[int]float64{2: 3}, stacked.Row(2))
}

func TestDocumentFrequencies(t *testing.T) {
	m := NewFromRows([]map[int]float64{
		{0: 1, 1: 1},
		{0: 1},
		{1: 1},
	}, 2)

	df := m.DocumentFrequencies()
	assert.Equal(t, []int{2, 2}, df)
}

func TestSaveLoadNPZLike_RoundTrip(t *testing.T) {
	m := NewFromRows([]map[int]float64{
		{0: 1.5, 2: 2.25},
		{1: 3.0},
	}, 3)

	path := filepath.Join(t.TempDir(), "matrix.npz")
	require.NoError(t, SaveNPZLike(path, m))

	loaded, err := LoadNPZLike(path)
	require.NoError(t, err)
	assert.Equal(t, m.NRows, loaded.NRows)
	assert.Equal(t, m.NCols, loaded.NCols)
	assert.Equal(t, m.Indptr, loaded.Indptr)
	assert.Equal(t, m.Indices, loaded.Indices)
	assert.InDeltaSlice(t, m.Data, loaded.Data, 1e-12)
}
