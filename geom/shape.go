package geom

import (
	"fmt"
	"math"

	"github.com/phil-mansfield/polycrys"
	"github.com/phil-mansfield/polycrys/math/special"
)

// Containment is the result of classifying a point against a shape.
type Containment bool

const (
	Outside Containment = false
	Inside  Containment = true
)

// Shape is the implicit surface of a grain in its scaled principal-axis frame,
// where the semi-axes have length one. The set of implementations is closed:
// Ellipsoid, Superellipsoid and RoundedCuboid.
type Shape interface {
	Class() polycrys.ShapeClass
	// Classify decides whether u, given in units of the semi-axes, lies inside.
	Classify(u [3]float64) Containment
	// UnitVolume is the volume of the shape when all semi-axes are one.
	UnitVolume() float64
}

// NewShape returns the shape for a class and exponent. The exponent is
// ignored by ellipsoids.
func NewShape(class polycrys.ShapeClass, n float64) (Shape, error) {
	switch class {
	case polycrys.Ellipsoid:
		return Ellipsoid{}, nil
	case polycrys.Superellipsoid:
		if !(n > 0) || math.IsInf(n, 0) {
			return nil, fmt.Errorf("superellipsoid exponent must be positive, got %g", n)
		}
		return Superellipsoid{N: n}, nil
	case polycrys.RoundedCuboid:
		if !(n >= 0 && n <= 2) {
			return nil, fmt.Errorf("rounded cuboid exponent must be in [0, 2], got %g", n)
		}
		return RoundedCuboid{N: n}, nil
	}
	return nil, fmt.Errorf("unknown shape class %v", class)
}

// Ellipsoid is the unit ball: sum u_i^2 <= 1.
type Ellipsoid struct{}

func (Ellipsoid) Class() polycrys.ShapeClass { return polycrys.Ellipsoid }

func (Ellipsoid) Classify(u [3]float64) Containment {
	return Containment(u[0]*u[0]+u[1]*u[1]+u[2]*u[2] <= 1)
}

func (Ellipsoid) UnitVolume() float64 { return 4 * math.Pi / 3 }

// Superellipsoid is sum |u_i|^N <= 1.
type Superellipsoid struct {
	N float64
}

func (Superellipsoid) Class() polycrys.ShapeClass { return polycrys.Superellipsoid }

func (s Superellipsoid) Classify(u [3]float64) Containment {
	sum := 0.0
	for i := 0; i < 3; i++ {
		a := math.Abs(u[i])
		if a > 1 {
			return Outside
		}
		sum += math.Pow(a, s.N)
	}
	return Containment(sum <= 1)
}

// UnitVolume is 8 Gamma(1/N)^3 / (3 N^2 Gamma(3/N)).
func (s Superellipsoid) UnitVolume() float64 {
	g1 := special.Gamma(1 / s.N)
	g3 := special.Gamma(3 / s.N)
	return 8 * g1 * g1 * g1 / (3 * s.N * s.N * g3)
}

// RoundedCuboid is the unit cube with its corners cut by the eight planes
// sum s_i u_i = 3 - N. N = 0 gives the cube and N = 2 the octahedron.
type RoundedCuboid struct {
	N float64
}

func (RoundedCuboid) Class() polycrys.ShapeClass { return polycrys.RoundedCuboid }

func (r RoundedCuboid) Classify(u [3]float64) Containment {
	a0, a1, a2 := math.Abs(u[0]), math.Abs(u[1]), math.Abs(u[2])
	if a0 > 1 || a1 > 1 || a2 > 1 {
		return Outside
	}
	return Containment(a0+a1+a2 <= 3-r.N)
}

// UnitVolume is (8/6) f(N), where f is 6 - N^3 while the cut planes only
// remove corners and 3 + 9N - 9N^2 + 2N^3 once they reach the edge midpoints.
func (r RoundedCuboid) UnitVolume() float64 {
	n := r.N
	var f float64
	if n <= 1 {
		f = 6 - n*n*n
	} else {
		f = 3 + 9*n - 9*n*n + 2*n*n*n
	}
	return 8.0 / 6.0 * f
}

// Radii returns the semi-axis lengths (a, a b/a, a c/a) of a shape with the
// given volume and axis ratios.
func Radii(s Shape, volume float64, ratios [3]float64) ([3]float64, error) {
	uv := s.UnitVolume()
	if !(uv > 0) || math.IsInf(uv, 0) {
		return [3]float64{}, fmt.Errorf("%v has unit volume %g", s.Class(), uv)
	}
	if !(ratios[1] > 0 && ratios[2] > 0) {
		return [3]float64{}, fmt.Errorf("axis ratios %v must be positive", ratios)
	}
	if !(volume > 0) {
		return [3]float64{}, fmt.Errorf("volume %g must be positive", volume)
	}
	a := math.Cbrt(volume / (uv * ratios[1] * ratios[2]))
	return [3]float64{a, a * ratios[1], a * ratios[2]}, nil
}
