/*package mat solves the small dense linear systems which map voxel positions
into a grain's principal-axis frame. Factor once with LU and reuse the
factors for every voxel in the grain's bounding box.
*/
package mat

import (
	"errors"
	"math"
)

// ErrSingular is returned when a matrix cannot be factored.
var ErrSingular = errors.New("mat: matrix is singular")

// pivotTol is the smallest scaled pivot accepted by LUFactorsAt.
const pivotTol = 1e-12

// Matrix represents a row-major square matrix of float64 values.
type Matrix struct {
	Vals          []float64
	Width, Height int
}

// LUFactors holds an LU decomposition with partial pivoting.
type LUFactors struct {
	lu    Matrix
	pivot []int
	d     float64
}

func NewMatrix(vals []float64, width, height int) *Matrix {
	if width <= 0 {
		panic("width must be positive.")
	} else if height <= 0 {
		panic("height must be positive.")
	} else if width*height != len(vals) {
		panic("height * width must equal len(vals).")
	}

	return &Matrix{Vals: vals, Width: width, Height: height}
}

func NewLUFactors(n int) *LUFactors {
	luf := new(LUFactors)

	luf.lu.Vals, luf.lu.Width, luf.lu.Height = make([]float64, n*n), n, n
	luf.pivot = make([]int, n)
	luf.d = 1

	return luf
}

// LU returns the LU factors of m, or ErrSingular.
func (m *Matrix) LU() (*LUFactors, error) {
	if m.Width != m.Height {
		panic("m is non-square.")
	}

	lu := NewLUFactors(m.Width)
	if err := m.LUFactorsAt(lu); err != nil {
		return nil, err
	}
	return lu, nil
}

// LUFactorsAt factors m into luf using Crout's method with implicit row
// scaling. A row of zeros or a pivot below pivotTol after scaling is
// reported as ErrSingular.
func (m *Matrix) LUFactorsAt(luf *LUFactors) error {
	if luf.lu.Width != m.Width || luf.lu.Height != m.Height {
		panic("luf has different dimenstions than m.")
	}

	n := m.Width
	var scaleBuf [4]float64
	scale := scaleBuf[:0]
	if n > len(scaleBuf) {
		scale = make([]float64, n)
	} else {
		scale = scaleBuf[:n]
	}
	lu := luf.lu.Vals
	luf.d = 1
	copy(lu, m.Vals)

	for i := 0; i < n; i++ {
		iOffset := i * n

		max := 0.0
		for j := 0; j < n; j++ {
			tmp := math.Abs(lu[iOffset+j])
			if tmp > max {
				max = tmp
			}
		}
		if max == 0 || math.IsNaN(max) || math.IsInf(max, 0) {
			return ErrSingular
		}
		scale[i] = 1 / max
	}

	for k := 0; k < n; k++ {
		max := 0.0
		maxi := k
		for i := k; i < n; i++ {
			tmp := scale[i] * math.Abs(lu[i*n+k])
			if tmp > max {
				max = tmp
				maxi = i
			}
		}
		if max < pivotTol {
			return ErrSingular
		}

		if k != maxi {
			kOffset, maxiOffset := n*k, n*maxi
			for j := 0; j < n; j++ {
				idx1, idx2 := kOffset+j, maxiOffset+j
				lu[idx1], lu[idx2] = lu[idx2], lu[idx1]
			}
			luf.d = -luf.d
			scale[maxi] = scale[k]
		}
		luf.pivot[k] = maxi

		kOffset := k * n
		for i := k + 1; i < n; i++ {
			iOffset := i * n
			lu[iOffset+k] /= lu[kOffset+k]
			tmp := lu[iOffset+k]
			for j := k + 1; j < n; j++ {
				lu[iOffset+j] -= tmp * lu[kOffset+j]
			}
		}
	}
	return nil
}

// SolveVector solves M * xs = bs for xs.
//
// bs and xs may point to the same physical memory.
func (luf *LUFactors) SolveVector(bs, xs []float64) {
	n := luf.lu.Width
	if n != len(bs) {
		panic("len(b) != luf.Width")
	} else if n != len(xs) {
		panic("len(x) != luf.Width")
	}

	copy(xs, bs)
	lu := luf.lu.Vals

	// Solve L * y = b for y.
	forwardSubst(n, luf.pivot, lu, xs)
	// Solve U * x = y for x.
	backSubst(n, lu, xs)
}

// Solves L * y = b for y in place, undoing the row pivots as it goes.
func forwardSubst(n int, pivot []int, lu, ys []float64) {
	for i := 0; i < n; i++ {
		piv := pivot[i]
		sum := ys[piv]
		ys[piv] = ys[i]

		iOffset := i * n
		for j := 0; j < i; j++ {
			sum -= lu[iOffset+j] * ys[j]
		}
		ys[i] = sum
	}
}

// Solves U * x = y for x in place.
func backSubst(n int, lu, xs []float64) {
	for i := n - 1; i >= 0; i-- {
		sum := xs[i]
		iOffset := n * i
		for j := i + 1; j < n; j++ {
			sum -= lu[iOffset+j] * xs[j]
		}
		xs[i] = sum / lu[iOffset+i]
	}
}

// Determinant returns the determinant of the factored matrix.
func (luf *LUFactors) Determinant() float64 {
	d := luf.d
	lu := luf.lu.Vals
	n := luf.lu.Width

	for i := 0; i < n; i++ {
		d *= lu[i*n+i]
	}
	return d
}
