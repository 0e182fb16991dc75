package geom

import (
	"math"

	"github.com/phil-mansfield/polycrys"
	"github.com/phil-mansfield/polycrys/mat"

	"gonum.org/v1/gonum/spatial/r3"
)

// Body is a shape placed in the domain: a center, a principal-axis frame and
// the semi-axis lengths along each axis. The axis system is factored once so
// that mapping a voxel into the body's frame is a single triangular solve.
type Body struct {
	Shape  Shape
	Center r3.Vec
	Axes   [3]r3.Vec
	Radii  [3]float64

	luf *mat.LUFactors
	buf [3]float64
}

// NewBody factors the axis system of a grain. A non-positive radius or a set
// of axes which do not span space is reported as a
// *polycrys.GeometryDegeneracyError.
func NewBody(
	id int, shape Shape, center r3.Vec, axes [3]r3.Vec, radii [3]float64,
) (*Body, error) {
	for i := 0; i < 3; i++ {
		if !(radii[i] > 0) || math.IsInf(radii[i], 0) {
			return nil, &polycrys.GeometryDegeneracyError{
				Grain: id, Reason: "non-positive semi-axis length",
			}
		}
	}

	// Columns are the axes, so M l = p - c gives the coordinates l of a
	// point along each axis.
	vals := make([]float64, 9)
	for j := 0; j < 3; j++ {
		a := axes[j]
		vals[0*3+j], vals[1*3+j], vals[2*3+j] = a.X, a.Y, a.Z
	}
	luf, err := mat.NewMatrix(vals, 3, 3).LU()
	if err != nil {
		return nil, &polycrys.GeometryDegeneracyError{
			Grain: id, Reason: "principal axes are coplanar",
		}
	}

	return &Body{
		Shape: shape, Center: center, Axes: axes, Radii: radii, luf: luf,
	}, nil
}

// Local returns the coordinates of p in the body frame in units of the
// semi-axes.
func (b *Body) Local(p r3.Vec) [3]float64 {
	d := r3.Sub(p, b.Center)
	b.buf = [3]float64{d.X, d.Y, d.Z}
	b.luf.SolveVector(b.buf[:], b.buf[:])
	return [3]float64{
		b.buf[0] / b.Radii[0], b.buf[1] / b.Radii[1], b.buf[2] / b.Radii[2],
	}
}

// Contains classifies p against the body. It is deterministic: the same body
// and point always give the same answer.
func (b *Body) Contains(p r3.Vec) Containment {
	return b.Shape.Classify(b.Local(p))
}

// Reach bounds the distance from the center to any point of the body, given
// orthonormal axes. Ellipsoids reach their largest semi-axis; the other shapes
// can reach the corner of the enclosing box.
func (b *Body) Reach() float64 {
	r := b.Radii
	if b.Shape.Class() == polycrys.Ellipsoid {
		return math.Max(r[0], math.Max(r[1], r[2]))
	}
	return math.Sqrt(r[0]*r[0] + r[1]*r[1] + r[2]*r[2])
}

// Volume returns the analytic volume of the body.
func (b *Body) Volume() float64 {
	return b.Shape.UnitVolume() * b.Radii[0] * b.Radii[1] * b.Radii[2]
}
