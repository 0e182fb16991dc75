/*package crystal handles orientations: Bunge Euler angles, their rotation
matrices and quaternions, crystal and sample symmetry, and the
misorientation angle between two grains.

Rotations are composed as matrices and converted to unit quaternions with
the same homomorphism, so q(A B) = q(A) q(B) up to sign.
*/
package crystal

import (
	"math"

	"github.com/phil-mansfield/polycrys"

	"gonum.org/v1/gonum/num/quat"
)

// Matrix is a row-major 3x3 rotation matrix.
type Matrix [3][3]float64

// Identity is the identity rotation.
var Identity = Matrix{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}

// Mul returns m * n.
func (m Matrix) Mul(n Matrix) Matrix {
	out := Matrix{}
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			for k := 0; k < 3; k++ {
				out[i][j] += m[i][k] * n[k][j]
			}
		}
	}
	return out
}

// T returns the transpose of m, which is its inverse for rotations.
func (m Matrix) T() Matrix {
	out := Matrix{}
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out[i][j] = m[j][i]
		}
	}
	return out
}

// Det returns the determinant of m.
func (m Matrix) Det() float64 {
	return m[0][0]*(m[1][1]*m[2][2]-m[1][2]*m[2][1]) -
		m[0][1]*(m[1][0]*m[2][2]-m[1][2]*m[2][0]) +
		m[0][2]*(m[1][0]*m[2][1]-m[1][1]*m[2][0])
}

// EulerMatrix returns the Bunge orientation matrix g(phi1, Phi, phi2), which
// takes sample coordinates to crystal coordinates.
func EulerMatrix(e polycrys.Euler) Matrix {
	s1, c1 := math.Sincos(e[0])
	s, c := math.Sincos(e[1])
	s2, c2 := math.Sincos(e[2])
	return Matrix{
		{c1*c2 - s1*s2*c, s1*c2 + c1*s2*c, s2 * s},
		{-c1*s2 - s1*c2*c, -s1*s2 + c1*c2*c, c2 * s},
		{s1 * s, -c1 * s, c},
	}
}

// MatrixEuler inverts EulerMatrix. Angles are returned with phi1 and phi2 in
// [0, 2 pi) and Phi in [0, pi]. When Phi is 0 or pi the rotation only fixes
// phi1 +/- phi2, and phi2 is reported as 0.
func MatrixEuler(g Matrix) polycrys.Euler {
	c := math.Max(-1, math.Min(1, g[2][2]))
	phi := math.Acos(c)
	var phi1, phi2 float64
	if math.Sin(phi) > 1e-8 {
		phi1 = math.Atan2(g[2][0], -g[2][1])
		phi2 = math.Atan2(g[0][2], g[1][2])
	} else {
		phi1 = math.Atan2(g[0][1], g[0][0])
	}
	return polycrys.Euler{wrap2Pi(phi1), phi, wrap2Pi(phi2)}
}

func wrap2Pi(x float64) float64 {
	x = math.Mod(x, 2*math.Pi)
	if x < 0 {
		x += 2 * math.Pi
	}
	if x >= 2*math.Pi {
		x = 0
	}
	return x
}

// Quat returns the unit quaternion of a rotation matrix with a
// non-negative real part, using Shepperd's method.
func (m Matrix) Quat() quat.Number {
	tr := m[0][0] + m[1][1] + m[2][2]
	var q quat.Number
	switch {
	case tr > 0:
		s := 2 * math.Sqrt(tr+1)
		q = quat.Number{
			Real: s / 4,
			Imag: (m[2][1] - m[1][2]) / s,
			Jmag: (m[0][2] - m[2][0]) / s,
			Kmag: (m[1][0] - m[0][1]) / s,
		}
	case m[0][0] > m[1][1] && m[0][0] > m[2][2]:
		s := 2 * math.Sqrt(1+m[0][0]-m[1][1]-m[2][2])
		q = quat.Number{
			Real: (m[2][1] - m[1][2]) / s,
			Imag: s / 4,
			Jmag: (m[0][1] + m[1][0]) / s,
			Kmag: (m[0][2] + m[2][0]) / s,
		}
	case m[1][1] > m[2][2]:
		s := 2 * math.Sqrt(1+m[1][1]-m[0][0]-m[2][2])
		q = quat.Number{
			Real: (m[0][2] - m[2][0]) / s,
			Imag: (m[0][1] + m[1][0]) / s,
			Jmag: s / 4,
			Kmag: (m[1][2] + m[2][1]) / s,
		}
	default:
		s := 2 * math.Sqrt(1+m[2][2]-m[0][0]-m[1][1])
		q = quat.Number{
			Real: (m[1][0] - m[0][1]) / s,
			Imag: (m[0][2] + m[2][0]) / s,
			Jmag: (m[1][2] + m[2][1]) / s,
			Kmag: s / 4,
		}
	}
	if q.Real < 0 {
		q = quat.Scale(-1, q)
	}
	return q
}

// RotationAngle returns the rotation angle of a unit quaternion in radians,
// in [0, pi].
func RotationAngle(q quat.Number) float64 {
	w := math.Min(1, math.Abs(q.Real))
	return 2 * math.Acos(w)
}
