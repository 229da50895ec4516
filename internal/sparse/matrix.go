// Package sparse implements a minimal CSR (compressed sparse row) matrix
// sufficient for the vectorization stage's count/TF/IDF algebra (spec.md
// §4.6, §9): row L1-normalization, right-multiply by a sparse operator's
// transpose (vocabulary collapse), right-multiply by a diagonal (IDF),
// vertical stacking and an npz-compatible on-disk format. No sparse-matrix
// library appears anywhere in the example corpus, so this is a deliberate
// stdlib-only package (see DESIGN.md).
package sparse

import (
	"archive/zip"
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
)

// Matrix is a row-major compressed sparse row matrix: row r's entries are
// indices[indptr[r]:indptr[r+1]] paired with data[indptr[r]:indptr[r+1]].
type Matrix struct {
	NRows, NCols int
	Indptr       []int
	Indices      []int
	Data         []float64
}

// NewFromRows builds a Matrix from dense per-row column->value maps,
// dropping zero entries and sorting each row's indices.
func NewFromRows(rows []map[int]float64, nCols int) *Matrix {
	m := &Matrix{NRows: len(rows), NCols: nCols, Indptr: make([]int, len(rows)+1)}
	for r, row := range rows {
		cols := make([]int, 0, len(row))
		for c, v := range row {
			if v != 0 {
				cols = append(cols, c)
			}
		}
		sort.Ints(cols)
		for _, c := range cols {
			m.Indices = append(m.Indices, c)
			m.Data = append(m.Data, row[c])
		}
		m.Indptr[r+1] = len(m.Indices)
	}
	return m
}

// Row returns row r as a column->value map.
func (m *Matrix) Row(r int) map[int]float64 {
	row := map[int]float64{}
	for i := m.Indptr[r]; i < m.Indptr[r+1]; i++ {
		row[m.Indices[i]] = m.Data[i]
	}
	return row
}

// NormalizeL1Rows returns a new matrix whose rows each sum (in absolute
// value) to 1, leaving all-zero rows untouched (term-frequency step of
// spec.md §4.6).
func (m *Matrix) NormalizeL1Rows() *Matrix {
	out := &Matrix{
		NRows: m.NRows, NCols: m.NCols,
		Indptr:  append([]int(nil), m.Indptr...),
		Indices: append([]int(nil), m.Indices...),
		Data:    make([]float64, len(m.Data)),
	}
	for r := 0; r < m.NRows; r++ {
		start, end := m.Indptr[r], m.Indptr[r+1]
		var sum float64
		for i := start; i < end; i++ {
			sum += math.Abs(m.Data[i])
		}
		if sum == 0 {
			copy(out.Data[start:end], m.Data[start:end])
			continue
		}
		for i := start; i < end; i++ {
			out.Data[i] = m.Data[i] / sum
		}
	}
	return out
}

// MulSparseTranspose computes m · opᵀ, where op has one row per target
// column and NCols(m) columns; the result has op.NRows columns.
// Used to apply the vocabulary-collapse operator and, with op square, an
// identity-preserving remap (spec.md §4.6 step 4).
func (m *Matrix) MulSparseTranspose(op *Matrix) *Matrix {
	opByCol := make(map[int][][2]int, op.NRows) // source col -> list of (target row, index into op.Data)
	for targetRow := 0; targetRow < op.NRows; targetRow++ {
		for i := op.Indptr[targetRow]; i < op.Indptr[targetRow+1]; i++ {
			sourceCol := op.Indices[i]
			opByCol[sourceCol] = append(opByCol[sourceCol], [2]int{targetRow, i})
		}
	}

	rows := make([]map[int]float64, m.NRows)
	for r := 0; r < m.NRows; r++ {
		acc := map[int]float64{}
		for i := m.Indptr[r]; i < m.Indptr[r+1]; i++ {
			col, val := m.Indices[i], m.Data[i]
			for _, target := range opByCol[col] {
				targetRow, opIdx := target[0], target[1]
				acc[targetRow] += val * op.Data[opIdx]
			}
		}
		rows[r] = acc
	}
	return NewFromRows(rows, op.NRows)
}

// MulDiag right-multiplies by a diagonal matrix with the given values,
// scaling column c by diag[c] (the IDF step of spec.md §4.6).
func (m *Matrix) MulDiag(diag []float64) *Matrix {
	out := &Matrix{
		NRows: m.NRows, NCols: m.NCols,
		Indptr:  append([]int(nil), m.Indptr...),
		Indices: append([]int(nil), m.Indices...),
		Data:    make([]float64, len(m.Data)),
	}
	for i, c := range m.Indices {
		out.Data[i] = m.Data[i] * diag[c]
	}
	return out
}

// VStack concatenates matrices row-wise; all must share NCols.
func VStack(parts ...*Matrix) *Matrix {
	if len(parts) == 0 {
		return &Matrix{}
	}
	out := &Matrix{NCols: parts[0].NCols}
	out.Indptr = []int{0}
	for _, p := range parts {
		for r := 0; r < p.NRows; r++ {
			start, end := p.Indptr[r], p.Indptr[r+1]
			out.Indices = append(out.Indices, p.Indices[start:end]...)
			out.Data = append(out.Data, p.Data[start:end]...)
			out.Indptr = append(out.Indptr, len(out.Indices))
		}
		out.NRows += p.NRows
	}
	return out
}

// DocumentFrequencies returns, per column, the count of rows with a
// strictly positive entry.
func (m *Matrix) DocumentFrequencies() []int {
	counts := make([]int, m.NCols)
	for i, c := range m.Indices {
		if m.Data[i] > 0 {
			counts[c]++
		}
	}
	return counts
}

// SaveNPZLike writes the matrix to a zip archive with the same member
// layout as scipy's `save_npz` (indptr.npy, indices.npy, data.npy, plus a
// shape record; no format member is written), using the minimal uncompressed `.npy` v1.0 header
// scipy itself emits for int64/float64 1-D arrays.
func SaveNPZLike(path string, m *Matrix) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	zw := zip.NewWriter(f)

	if err := writeNPYInts(zw, "indptr.npy", m.Indptr); err != nil {
		return err
	}
	if err := writeNPYInts(zw, "indices.npy", m.Indices); err != nil {
		return err
	}
	if err := writeNPYFloats(zw, "data.npy", m.Data); err != nil {
		return err
	}
	if err := writeNPYInts(zw, "shape.npy", []int{m.NRows, m.NCols}); err != nil {
		return err
	}
	return zw.Close()
}

// LoadNPZLike reads back a matrix written by SaveNPZLike.
func LoadNPZLike(path string) (*Matrix, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	members := map[string]*zip.File{}
	for _, f := range zr.File {
		members[f.Name] = f
	}

	indptr, err := readNPYInts(members["indptr.npy"])
	if err != nil {
		return nil, err
	}
	indices, err := readNPYInts(members["indices.npy"])
	if err != nil {
		return nil, err
	}
	data, err := readNPYFloats(members["data.npy"])
	if err != nil {
		return nil, err
	}
	shape, err := readNPYInts(members["shape.npy"])
	if err != nil {
		return nil, err
	}
	if len(shape) != 2 {
		return nil, fmt.Errorf("sparse: malformed shape.npy in %s", path)
	}
	return &Matrix{NRows: shape[0], NCols: shape[1], Indptr: indptr, Indices: indices, Data: data}, nil
}

func npyHeader(dtype string, n int) []byte {
	header := fmt.Sprintf("{'descr': '%s', 'fortran_order': False, 'shape': (%d,), }", dtype, n)
	// Pad so magic(6)+version(2)+headerlen(2)+header is a multiple of 64.
	total := 10 + len(header) + 1
	pad := (64 - total%64) % 64
	for i := 0; i < pad; i++ {
		header += " "
	}
	header += "\n"

	buf := make([]byte, 0, 10+len(header))
	buf = append(buf, 0x93, 'N', 'U', 'M', 'P', 'Y', 1, 0)
	var lenBytes [2]byte
	binary.LittleEndian.PutUint16(lenBytes[:], uint16(len(header)))
	buf = append(buf, lenBytes[:]...)
	buf = append(buf, []byte(header)...)
	return buf
}

func writeNPYInts(zw *zip.Writer, name string, values []int) error {
	w, err := zw.Create(name)
	if err != nil {
		return err
	}
	if _, err := w.Write(npyHeader("<i8", len(values))); err != nil {
		return err
	}
	buf := bufio.NewWriter(w)
	for _, v := range values {
		if err := binary.Write(buf, binary.LittleEndian, int64(v)); err != nil {
			return err
		}
	}
	return buf.Flush()
}

func writeNPYFloats(zw *zip.Writer, name string, values []float64) error {
	w, err := zw.Create(name)
	if err != nil {
		return err
	}
	if _, err := w.Write(npyHeader("<f8", len(values))); err != nil {
		return err
	}
	buf := bufio.NewWriter(w)
	for _, v := range values {
		if err := binary.Write(buf, binary.LittleEndian, v); err != nil {
			return err
		}
	}
	return buf.Flush()
}

func readNPYInts(f *zip.File) ([]int, error) {
	r, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer r.Close()
	body, err := skipNPYHeader(r)
	if err != nil {
		return nil, err
	}
	n := len(body) / 8
	values := make([]int, n)
	for i := 0; i < n; i++ {
		values[i] = int(int64(binary.LittleEndian.Uint64(body[i*8:])))
	}
	return values, nil
}

func readNPYFloats(f *zip.File) ([]float64, error) {
	r, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer r.Close()
	body, err := skipNPYHeader(r)
	if err != nil {
		return nil, err
	}
	n := len(body) / 8
	values := make([]float64, n)
	for i := 0; i < n; i++ {
		bits := binary.LittleEndian.Uint64(body[i*8:])
		values[i] = math.Float64frombits(bits)
	}
	return values, nil
}

func skipNPYHeader(r io.Reader) ([]byte, error) {
	prefix := make([]byte, 10)
	if _, err := io.ReadFull(r, prefix); err != nil {
		return nil, err
	}
	headerLen := int(binary.LittleEndian.Uint16(prefix[8:10]))
	if _, err := io.CopyN(io.Discard, r, int64(headerLen)); err != nil {
		return nil, err
	}
	return io.ReadAll(r)
}
