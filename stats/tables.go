package stats

import (
	"fmt"
	"math"

	"github.com/phil-mansfield/polycrys"
	"github.com/phil-mansfield/polycrys/crystal"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r3"
)

// Tables is the full set of statistics a run is driven by. The neighbor
// tables and the shape exponent table are optional: without NeighborCount
// and NeighborSize the packer skips its neighbor criteria, and ellipsoids
// never read ShapeExponent.
type Tables struct {
	Diameter      *Distribution
	BOverA        *Conditional
	COverA        *Conditional
	COverB        *Conditional
	ShapeExponent *Conditional

	// AxisOrientations are candidate principal-axis frames. A grain draws
	// one uniformly at random.
	AxisOrientations [][3]r3.Vec

	Euler *EulerHistogram

	NeighborCount *Conditional
	NeighborSize  *Conditional

	// Target histograms for annealing, normalized to sum to one.
	Misorientation []float64
	Microtexture   []float64
}

// MaxSizeBin returns the largest size bin the diameter table can produce.
func (t *Tables) MaxSizeBin() int {
	return SizeBin(t.Diameter.Bins[t.Diameter.Len()-1].Value)
}

// Validate checks that every table needed for the given shape class is
// present and that the target histograms are usable.
func (t *Tables) Validate(class polycrys.ShapeClass) error {
	required := []struct {
		name string
		ok   bool
	}{
		{"diameter", t.Diameter != nil},
		{"b/a", t.BOverA != nil},
		{"c/a", t.COverA != nil},
		{"c/b", t.COverB != nil},
		{"euler", t.Euler != nil},
		{"shape exponent", class == polycrys.Ellipsoid || t.ShapeExponent != nil},
	}
	for _, r := range required {
		if !r.ok {
			return &polycrys.InputStatisticsError{
				Table: r.name, Row: -1, Reason: "table is missing",
			}
		}
	}
	if (t.NeighborCount == nil) != (t.NeighborSize == nil) {
		return &polycrys.InputStatisticsError{
			Table: "neighbors", Row: -1,
			Reason: "neighbor count and neighbor size tables must be given together",
		}
	}
	for i, frame := range t.AxisOrientations {
		for _, v := range frame {
			if n := r3.Norm(v); !(n > 0) || math.IsInf(n, 0) {
				return &polycrys.InputStatisticsError{
					Table: "axis orientations", Row: i,
					Reason: "axis has zero length",
				}
			}
		}
	}
	return nil
}

// NormalizeHistogram validates and normalizes a target histogram.
func NormalizeHistogram(name string, probs []float64) ([]float64, error) {
	if len(probs) == 0 {
		return nil, &polycrys.InputStatisticsError{
			Table: name, Row: -1, Reason: "table is empty",
		}
	}
	for i, p := range probs {
		if !(p >= 0) || math.IsInf(p, 0) {
			return nil, &polycrys.InputStatisticsError{
				Table: name, Row: i,
				Reason: fmt.Sprintf("probability %g is invalid", p),
			}
		}
	}
	total := floats.Sum(probs)
	if !(total > 0) {
		return nil, &polycrys.InputStatisticsError{
			Table: name, Row: -1, Reason: "all probabilities are zero",
		}
	}
	out := append([]float64(nil), probs...)
	floats.Scale(1/total, out)
	return out, nil
}

// Paths lists the files a Tables is read from. Empty optional paths leave
// the corresponding table unset.
type Paths struct {
	Diameter, BOverA, COverA, COverB, ShapeExponent string
	AxisOrientations                                 string
	Euler                                            string
	NeighborCount, NeighborSize                      string
	Misorientation, Microtexture                     string
}

// Load reads every table named in p. Measured Euler angles are symmetrized
// with st and the orthorhombic sample operators. eulerDegrees selects the
// unit of the Euler file.
func Load(p *Paths, st crystal.Structure, eulerDegrees bool) (*Tables, error) {
	t := &Tables{}
	var err error

	if t.Diameter, err = ReadDistribution("diameter", p.Diameter); err != nil {
		return nil, err
	}
	conds := []struct {
		name, path string
		dst        **Conditional
	}{
		{"b/a", p.BOverA, &t.BOverA},
		{"c/a", p.COverA, &t.COverA},
		{"c/b", p.COverB, &t.COverB},
		{"shape exponent", p.ShapeExponent, &t.ShapeExponent},
		{"neighbor count", p.NeighborCount, &t.NeighborCount},
		{"neighbor size", p.NeighborSize, &t.NeighborSize},
	}
	for _, c := range conds {
		if c.path == "" {
			continue
		}
		if *c.dst, err = ReadConditional(c.name, c.path); err != nil {
			return nil, err
		}
	}

	if p.AxisOrientations != "" {
		if t.AxisOrientations, err = ReadAxisOrientations(p.AxisOrientations); err != nil {
			return nil, err
		}
	}

	measured, err := ReadEulers(p.Euler, eulerDegrees)
	if err != nil {
		return nil, err
	}
	if t.Euler, err = NewEulerHistogram(
		measured, st, crystal.OrthorhombicSample(),
	); err != nil {
		return nil, err
	}

	if p.Misorientation != "" {
		if t.Misorientation, err = ReadHistogram("misorientation", p.Misorientation); err != nil {
			return nil, err
		}
	}
	if p.Microtexture != "" {
		if t.Microtexture, err = ReadHistogram("microtexture", p.Microtexture); err != nil {
			return nil, err
		}
	}
	return t, nil
}
