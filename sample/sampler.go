/*package sample draws the grain population: sizes, shape ratios, principal
axes and shape exponents from the distribution tables, and then Euler angles
from the measured orientation histogram.
*/
package sample

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/phil-mansfield/polycrys"
	"github.com/phil-mansfield/polycrys/crystal"
	"github.com/phil-mansfield/polycrys/logging"
	"github.com/phil-mansfield/polycrys/math/rand"
	"github.com/phil-mansfield/polycrys/stats"

	"gonum.org/v1/gonum/spatial/r3"
)

// DefaultMaxShapeDraws bounds the shape-ratio rejection loop of one grain.
const DefaultMaxShapeDraws = 10000

// Sampler draws grains from a set of tables.
type Sampler struct {
	Tables *stats.Tables
	Class  polycrys.ShapeClass
	// MaxShapeDraws bounds the rejection loop for the axis ratios of a
	// single grain. Zero means DefaultMaxShapeDraws.
	MaxShapeDraws int

	gen *rand.Generator
	log *slog.Logger
}

// NewSampler checks that the tables support the shape class.
func NewSampler(
	t *stats.Tables, class polycrys.ShapeClass,
	gen *rand.Generator, log *slog.Logger,
) (*Sampler, error) {
	if err := t.Validate(class); err != nil {
		return nil, err
	}
	return &Sampler{
		Tables: t, Class: class, MaxShapeDraws: DefaultMaxShapeDraws,
		gen: gen, log: logging.Or(log),
	}, nil
}

// Sample draws n grains and returns them sorted from largest to smallest
// volume. Grain IDs are assigned in that order.
func (s *Sampler) Sample(ctx context.Context, n int) ([]polycrys.Grain, error) {
	if n <= 0 {
		return nil, fmt.Errorf("grain count must be positive, got %d", n)
	}

	grains := make([]polycrys.Grain, n)
	for i := range grains {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if err := s.sampleGrain(&grains[i]); err != nil {
			return nil, err
		}
	}

	sort.SliceStable(grains, func(i, j int) bool {
		return grains[i].Volume > grains[j].Volume
	})
	for i := range grains {
		grains[i].ID = i
	}

	s.log.Info("sampled grains", "n", n,
		"largest", grains[0].Diameter, "smallest", grains[n-1].Diameter)
	return grains, nil
}

func (s *Sampler) sampleGrain(g *polycrys.Grain) error {
	t := s.Tables

	g.Diameter = t.Diameter.Sample(s.gen.Uniform(0, 1))
	g.Volume = polycrys.SphereVolume(g.Diameter)
	g.SizeBin = stats.SizeBin(g.Diameter)

	ba, ca, err := s.sampleRatios(g.SizeBin)
	if err != nil {
		return err
	}
	g.Ratios = [3]float64{1, ba, ca}

	if len(t.AxisOrientations) > 0 {
		g.Axes = t.AxisOrientations[s.gen.UniformInt(0, len(t.AxisOrientations))]
	} else {
		g.Axes = randomAxes(s.gen)
	}

	if s.Class != polycrys.Ellipsoid {
		g.N = t.ShapeExponent.For(g.SizeBin).Sample(s.gen.Uniform(0, 1))
	}
	return nil
}

// sampleRatios draws b/a and c/a for a size bin. Draws with c > b or with a
// ratio outside (0, 1] are discarded; the rest are accepted with probability
// proportional to the c/b table.
func (s *Sampler) sampleRatios(sizeBin int) (ba, ca float64, err error) {
	t := s.Tables
	baDist, caDist := t.BOverA.For(sizeBin), t.COverA.For(sizeBin)
	cbDist := t.COverB.For(sizeBin)

	maxDraws := s.MaxShapeDraws
	if maxDraws <= 0 {
		maxDraws = DefaultMaxShapeDraws
	}

	for i := 0; i < maxDraws; i++ {
		ba = baDist.Sample(s.gen.Uniform(0, 1))
		ca = caDist.Sample(s.gen.Uniform(0, 1))
		if !(ba > 0 && ba <= 1 && ca > 0 && ca <= 1) {
			continue
		}
		cb := ca / ba
		if cb > 1 {
			continue
		}
		if s.gen.Uniform(0, 1)*cbDist.MaxProb() < cbDist.ProbOf(cb) {
			return ba, ca, nil
		}
	}

	return 0, 0, &polycrys.InputStatisticsError{
		Table: "b/a, c/a, c/b", Row: -1,
		Reason: fmt.Sprintf(
			"no acceptable axis ratios for size bin %d after %d draws",
			sizeBin, maxDraws,
		),
	}
}

// randomAxes returns the rows of a uniformly random rotation.
func randomAxes(gen *rand.Generator) [3]r3.Vec {
	e := polycrys.Euler{
		gen.Uniform(0, 2*math.Pi),
		math.Acos(gen.Uniform(-1, 1)),
		gen.Uniform(0, 2*math.Pi),
	}
	m := crystal.EulerMatrix(e)
	return [3]r3.Vec{
		{X: m[0][0], Y: m[0][1], Z: m[0][2]},
		{X: m[1][0], Y: m[1][1], Z: m[1][2]},
		{X: m[2][0], Y: m[2][1], Z: m[2][2]},
	}
}
