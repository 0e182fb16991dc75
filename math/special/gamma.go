/*package special contains special functions which the shape solvers need.
*/
package special

import (
	"math"
)

// Overflow is returned by Gamma at poles and for arguments whose result
// would not fit in a float64.
const Overflow = 1e308

var gammaCoeffs = [25]float64{
	1.0,
	0.5772156649015329,
	-0.6558780715202538,
	-0.420026350340952e-1,
	0.1665386113822915,
	-0.421977345555443e-1,
	-0.9621971527877e-2,
	0.7218943246663e-2,
	-0.11651675918591e-2,
	-0.2152416741149e-3,
	0.1280502823882e-3,
	-0.201348547807e-4,
	-0.12504934821e-5,
	0.1133027232e-5,
	-0.2056338417e-6,
	0.6116095e-8,
	0.50020075e-8,
	-0.11812746e-8,
	0.1043427e-9,
	0.77823e-11,
	-0.36968e-11,
	0.51e-12,
	-0.206e-13,
	-0.54e-14,
	0.14e-14,
}

// Gamma evaluates the gamma function with a 25 term series for 1/Gamma(z)
// on |z| <= 1 and the recurrence relation elsewhere. Positive integers are
// computed exactly as factorials. Non-positive integers and x > 171 return
// Overflow.
func Gamma(x float64) float64 {
	if x > 171.0 {
		return Overflow
	}

	if x == math.Floor(x) {
		if x <= 0 {
			return Overflow
		}
		ga := 1.0
		for i := 2; i < int(x); i++ {
			ga *= float64(i)
		}
		return ga
	}

	z, r := x, 1.0
	if math.Abs(x) > 1 {
		z = math.Abs(x)
		m := int(z)
		for k := 1; k <= m; k++ {
			r *= z - float64(k)
		}
		z -= float64(m)
	}

	gr := gammaCoeffs[24]
	for k := 23; k >= 0; k-- {
		gr = gr*z + gammaCoeffs[k]
	}
	ga := 1.0 / (gr * z)

	if math.Abs(x) > 1 {
		ga *= r
		if x < 0 {
			ga = -math.Pi / (x * ga * math.Sin(math.Pi*x))
		}
	}
	return ga
}
