package crystal

import (
	"math"

	"github.com/phil-mansfield/polycrys"

	"gonum.org/v1/gonum/num/quat"
)

// Orientation caches the quaternion of a grain's Euler angles.
type Orientation struct {
	Euler polycrys.Euler
	q     quat.Number
}

// NewOrientation returns the orientation for a Bunge Euler triple.
func NewOrientation(e polycrys.Euler) Orientation {
	return Orientation{Euler: e, q: EulerMatrix(e).Quat()}
}

// Misorientation returns the smallest rotation angle, in degrees, which takes
// orientation a onto orientation b under the structure's symmetry.
func (st Structure) Misorientation(a, b Orientation) float64 {
	dq := quat.Mul(a.q, quat.Conj(b.q))
	best := 0.0
	for _, s := range st.quats() {
		w := math.Abs(quat.Mul(s, dq).Real)
		if w > best {
			best = w
		}
	}
	return RotationAngle(quat.Number{Real: best}) * 180 / math.Pi
}

// MisorientationEuler is a convenience wrapper around Misorientation.
func (st Structure) MisorientationEuler(a, b polycrys.Euler) float64 {
	return st.Misorientation(NewOrientation(a), NewOrientation(b))
}

// MisorientationBin returns the histogram bin of an angle, where numBins
// equal-width bins span [0, MaxMisorientation]. Angles past the end fall in
// the last bin.
func (st Structure) MisorientationBin(angle float64, numBins int) int {
	bin := int(angle / st.MaxMisorientation() * float64(numBins))
	if bin < 0 {
		return 0
	} else if bin >= numBins {
		return numBins - 1
	}
	return bin
}

// Equivalents returns every orientation S g O which is equivalent to e under
// the crystal operators S and the sample operators O.
func (st Structure) Equivalents(e polycrys.Euler, sample []Matrix) []polycrys.Euler {
	if len(sample) == 0 {
		sample = []Matrix{Identity}
	}
	g := EulerMatrix(e)
	ops := st.Operators()
	out := make([]polycrys.Euler, 0, len(ops)*len(sample))
	for _, s := range ops {
		sg := s.Mul(g)
		for _, o := range sample {
			out = append(out, MatrixEuler(sg.Mul(o)))
		}
	}
	return out
}
