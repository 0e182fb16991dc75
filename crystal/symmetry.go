package crystal

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/num/quat"
)

// Structure is a crystal lattice symmetry class.
type Structure int

const (
	Cubic Structure = iota + 1
	Hexagonal
)

// ParseStructure converts a config string into a Structure.
func ParseStructure(s string) (Structure, error) {
	switch strings.ToLower(s) {
	case "cubic":
		return Cubic, nil
	case "hexagonal", "hex":
		return Hexagonal, nil
	}
	return 0, fmt.Errorf("unrecognized crystal structure '%s'", s)
}

func (st Structure) String() string {
	switch st {
	case Cubic:
		return "Cubic"
	case Hexagonal:
		return "Hexagonal"
	}
	return fmt.Sprintf("Structure(%d)", int(st))
}

var (
	cubicOps    = cubicOperators()
	hexOps      = hexagonalOperators()
	cubicQuats  = toQuats(cubicOps)
	hexQuats    = toQuats(hexOps)
	orthoSample = []Matrix{
		{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}},
		{{1, 0, 0}, {0, -1, 0}, {0, 0, -1}},
		{{-1, 0, 0}, {0, 1, 0}, {0, 0, -1}},
		{{-1, 0, 0}, {0, -1, 0}, {0, 0, 1}},
	}
)

// Operators returns the proper rotations of the crystal's point group.
func (st Structure) Operators() []Matrix {
	if st == Hexagonal {
		return hexOps
	}
	return cubicOps
}

func (st Structure) quats() []quat.Number {
	if st == Hexagonal {
		return hexQuats
	}
	return cubicQuats
}

// MaxMisorientation is the largest disorientation angle, in degrees, which
// two grains of this structure can have.
func (st Structure) MaxMisorientation() float64 {
	if st == Hexagonal {
		return 93.84
	}
	return 62.8
}

// OrthorhombicSample returns the four sample symmetry operators of rolled
// sheet: the identity and two-fold rotations about each sample axis.
func OrthorhombicSample() []Matrix { return orthoSample }

// cubicOperators generates the 24 signed permutation matrices with
// determinant +1.
func cubicOperators() []Matrix {
	perms := [][3]int{
		{0, 1, 2}, {0, 2, 1}, {1, 0, 2}, {1, 2, 0}, {2, 0, 1}, {2, 1, 0},
	}
	ops := make([]Matrix, 0, 24)
	for _, p := range perms {
		for signs := 0; signs < 8; signs++ {
			m := Matrix{}
			for row := 0; row < 3; row++ {
				s := 1.0
				if signs&(1<<uint(row)) != 0 {
					s = -1
				}
				m[row][p[row]] = s
			}
			if m.Det() > 0 {
				ops = append(ops, m)
			}
		}
	}
	return ops
}

// hexagonalOperators generates the six rotations about c and the six
// two-fold axes in the basal plane.
func hexagonalOperators() []Matrix {
	ops := make([]Matrix, 0, 12)
	for k := 0; k < 6; k++ {
		s, c := math.Sincos(float64(k) * math.Pi / 3)
		ops = append(ops, Matrix{{c, -s, 0}, {s, c, 0}, {0, 0, 1}})
	}
	for k := 0; k < 6; k++ {
		s, c := math.Sincos(float64(k) * math.Pi / 6)
		n := [3]float64{c, s, 0}
		m := Matrix{}
		for i := 0; i < 3; i++ {
			for j := 0; j < 3; j++ {
				m[i][j] = 2 * n[i] * n[j]
			}
			m[i][i] -= 1
		}
		ops = append(ops, m)
	}
	return ops
}

func toQuats(ops []Matrix) []quat.Number {
	qs := make([]quat.Number, len(ops))
	for i := range ops {
		qs[i] = ops[i].Quat()
	}
	return qs
}
