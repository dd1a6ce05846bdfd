package quadratic

import (
	"maps"
	"slices"

	"gonum.org/v1/gonum/mat"
)

// CSR is a square sparse matrix in compressed sparse row form.
type CSR struct {
	n      int
	rowPtr []int
	colInd []int
	values []float64
}

// builder accumulates entries row by row before compression.
type builder struct {
	rows []map[int]float64
}

func newBuilder(n int) *builder {
	b := &builder{rows: make([]map[int]float64, n)}
	for i := range b.rows {
		b.rows[i] = make(map[int]float64)
	}
	return b
}

// add accumulates v into (i, j).
func (b *builder) add(i, j int, v float64) {
	b.rows[i][j] += v
}

// compress freezes the builder into a CSR with ascending column order.
// Explicit zeros are dropped.
func (b *builder) compress() *CSR {
	n := len(b.rows)
	m := &CSR{n: n, rowPtr: make([]int, n+1)}
	for i, row := range b.rows {
		for _, j := range slices.Sorted(maps.Keys(row)) {
			if v := row[j]; v != 0 {
				m.colInd = append(m.colInd, j)
				m.values = append(m.values, v)
			}
		}
		m.rowPtr[i+1] = len(m.colInd)
	}
	return m
}

// Size returns the dimension of the matrix.
func (m *CSR) Size() int { return m.n }

// NonZeros returns the number of stored entries.
func (m *CSR) NonZeros() int { return len(m.values) }

// At returns the (i, j) entry.
func (m *CSR) At(i, j int) float64 {
	cols := m.colInd[m.rowPtr[i]:m.rowPtr[i+1]]
	if k, ok := slices.BinarySearch(cols, j); ok {
		return m.values[m.rowPtr[i]+k]
	}
	return 0
}

// MulVecTo computes dst = m * x.
func (m *CSR) MulVecTo(dst, x []float64) {
	for i := 0; i < m.n; i++ {
		sum := 0.0
		for k := m.rowPtr[i]; k < m.rowPtr[i+1]; k++ {
			sum += m.values[k] * x[m.colInd[k]]
		}
		dst[i] = sum
	}
}

// Diagonal returns the main diagonal.
func (m *CSR) Diagonal() []float64 {
	d := make([]float64, m.n)
	for i := range d {
		d[i] = m.At(i, i)
	}
	return d
}

// Symmetric reports whether m equals its transpose exactly.
func (m *CSR) Symmetric() bool {
	for i := 0; i < m.n; i++ {
		for k := m.rowPtr[i]; k < m.rowPtr[i+1]; k++ {
			if m.At(m.colInd[k], i) != m.values[k] {
				return false
			}
		}
	}
	return true
}

// SymDense expands the matrix into a dense symmetric gonum matrix. Only the
// upper triangle is read.
func (m *CSR) SymDense() *mat.SymDense {
	s := mat.NewSymDense(m.n, nil)
	for i := 0; i < m.n; i++ {
		for k := m.rowPtr[i]; k < m.rowPtr[i+1]; k++ {
			if j := m.colInd[k]; j >= i {
				s.SetSym(i, j, m.values[k])
			}
		}
	}
	return s
}
