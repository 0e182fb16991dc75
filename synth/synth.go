/*package synth runs the full microstructure pipeline: sampling, orientation
assignment, packing, gap filling, neighbor derivation and annealing.
*/
package synth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/phil-mansfield/polycrys"
	"github.com/phil-mansfield/polycrys/anneal"
	"github.com/phil-mansfield/polycrys/crystal"
	"github.com/phil-mansfield/polycrys/fill"
	"github.com/phil-mansfield/polycrys/geom"
	"github.com/phil-mansfield/polycrys/logging"
	"github.com/phil-mansfield/polycrys/math/rand"
	"github.com/phil-mansfield/polycrys/pack"
	"github.com/phil-mansfield/polycrys/sample"
	"github.com/phil-mansfield/polycrys/stats"
	"github.com/phil-mansfield/polycrys/topology"

	"gonum.org/v1/gonum/stat"
)

const (
	DefaultCoarseRatio  = 4
	DefaultFillFraction = 0.9
)

// Config describes a single run.
type Config struct {
	NumGrains  int
	Class      polycrys.ShapeClass
	Structure  crystal.Structure
	Resolution [3]float64
	// CoarseRatio is the number of fine voxels along each side of a coarse
	// cell.
	CoarseRatio int
	// FillFraction scales the total sampled grain volume to get the domain
	// volume when Dims is not set.
	FillFraction float64
	// Dims fixes the number of fine voxels along each axis. If any entry is
	// zero the domain is sized from the sampled grains.
	Dims [3]int

	MaxShapeDraws int
	// MaxFillSweeps bounds gap filling. Zero means no bound.
	MaxFillSweeps int

	Pack   pack.Config
	Anneal anneal.Config

	// Generator selects the random number algorithm.
	Generator rand.GeneratorType
	// Seed seeds the random generator unless TimeSeed is set.
	Seed     uint64
	TimeSeed bool
}

// DefaultConfig returns a config for n ellipsoidal cubic grains.
func DefaultConfig(n int) Config {
	return Config{
		NumGrains:     n,
		Class:         polycrys.Ellipsoid,
		Structure:     crystal.Cubic,
		Resolution:    [3]float64{1, 1, 1},
		CoarseRatio:   DefaultCoarseRatio,
		FillFraction:  DefaultFillFraction,
		MaxShapeDraws: sample.DefaultMaxShapeDraws,
		Pack:          pack.DefaultConfig(polycrys.Ellipsoid),
		Anneal:        anneal.DefaultConfig(crystal.Cubic),
		TimeSeed:      true,
	}
}

// Valid returns an error if the config cannot be used.
func (c *Config) Valid() error {
	switch {
	case c.NumGrains <= 0:
		return fmt.Errorf("grain count must be positive, got %d", c.NumGrains)
	case c.CoarseRatio <= 0:
		return fmt.Errorf("coarse ratio must be positive, got %d", c.CoarseRatio)
	case !(c.FillFraction > 0):
		return fmt.Errorf("fill fraction must be positive, got %g", c.FillFraction)
	case c.MaxShapeDraws <= 0:
		return fmt.Errorf("shape draw budget must be positive, got %d", c.MaxShapeDraws)
	case c.MaxFillSweeps < 0:
		return fmt.Errorf("fill sweep cap must be non-negative, got %d", c.MaxFillSweeps)
	case c.Pack.Class != c.Class:
		return fmt.Errorf("packer shape class %v doesn't match %v",
			c.Pack.Class, c.Class)
	case c.Anneal.Structure != c.Structure:
		return fmt.Errorf("annealer structure %v doesn't match %v",
			c.Anneal.Structure, c.Structure)
	case c.Generator != rand.Xorshift && c.Generator != rand.Golang:
		return fmt.Errorf("unknown random generator %v", c.Generator)
	}
	for i := 0; i < 3; i++ {
		if !(c.Resolution[i] > 0) {
			return fmt.Errorf("resolution must be positive, got %v", c.Resolution)
		}
		if c.Dims[i] < 0 {
			return fmt.Errorf("domain dimensions must be non-negative, got %v", c.Dims)
		}
	}
	if err := c.Pack.Valid(); err != nil {
		return err
	}
	return c.Anneal.Valid()
}

// Summary holds realized statistics of a finished structure.
type Summary struct {
	Placed, Unplaced int
	SurfaceGrains    int

	// Diameters are sphere-equivalent diameters of grains with voxels.
	MeanDiameter, StdDiameter float64
	TargetMeanDiameter        float64
	// DiameterKS is the Kolmogorov-Smirnov distance between the realized
	// diameters and the diameter table.
	DiameterKS float64

	MeanNeighbors float64
}

// Result is a finished structure together with everything that went wrong
// on the way which was not fatal.
type Result struct {
	Seed   uint64
	Config Config
	Grid   *geom.MultiGrid
	// Grains is indexed by grid owner.
	Grains  []polycrys.PackedGrain
	Sampled []polycrys.Grain

	Assign    sample.AssignStats
	Fill      fill.Stats
	Residuals anneal.Residuals

	// Realized, normalized histograms. Nil if there was no target.
	Misorientation, Microtexture []float64

	Summary Summary
	// Warnings holds *polycrys.PackingExhaustionError,
	// *polycrys.CoverageError and *polycrys.ConvergenceWarning values.
	Warnings []error
}

// Run builds one structure. Fatal problems are returned as an error and a
// nil Result.
func Run(
	ctx context.Context, cfg Config, t *stats.Tables, log *slog.Logger,
) (*Result, error) {
	log = logging.Or(log)
	if err := cfg.Valid(); err != nil {
		return nil, err
	}
	if err := t.Validate(cfg.Class); err != nil {
		return nil, err
	}

	var gen *rand.Generator
	if cfg.TimeSeed {
		gen = rand.NewTimeSeed(cfg.Generator)
	} else {
		gen = rand.New(cfg.Generator, cfg.Seed)
	}
	res := &Result{Seed: gen.Seed(), Config: cfg}
	log.Info("starting run", "seed", res.Seed, "generator", cfg.Generator,
		"grains", cfg.NumGrains,
		"shape", cfg.Class, "structure", cfg.Structure)

	sampler, err := sample.NewSampler(t, cfg.Class, gen, log)
	if err != nil {
		return nil, err
	}
	sampler.MaxShapeDraws = cfg.MaxShapeDraws
	if res.Sampled, err = sampler.Sample(ctx, cfg.NumGrains); err != nil {
		return nil, err
	}
	if res.Assign, err = sample.AssignEulers(res.Sampled, t.Euler, gen); err != nil {
		return nil, err
	}

	dims := cfg.Dims
	if dims[0] == 0 || dims[1] == 0 || dims[2] == 0 {
		dims = DomainDims(res.Sampled, cfg)
	}
	if res.Grid, err = geom.NewMultiGrid(dims, cfg.CoarseRatio, cfg.Resolution); err != nil {
		return nil, err
	}
	log.Info("created domain", "dims", dims, "voxels", res.Grid.Len(),
		"memory", logging.MemString())

	packer, err := pack.NewPacker(res.Grid, t, cfg.Pack, gen, log)
	if err != nil {
		return nil, err
	}
	res.Grains, err = packer.Pack(ctx, res.Sampled)
	if err = res.warn(err); err != nil {
		return nil, err
	}

	res.Fill, err = fill.Fill(ctx, res.Grid, cfg.MaxFillSweeps, log)
	if err = res.warn(err); err != nil {
		return nil, err
	}

	if err = topology.Find(res.Grid, res.Grains); err != nil {
		return nil, err
	}

	ann, err := anneal.NewAnnealer(res.Grains, t.Misorientation,
		t.Microtexture, cfg.Anneal, gen, log)
	if err != nil {
		return nil, err
	}
	res.Residuals, err = ann.Run(ctx)
	if err = res.warn(err); err != nil {
		return nil, err
	}
	res.Misorientation, res.Microtexture = ann.Histograms()

	res.Summary = summarize(res, t)
	for _, w := range res.Warnings {
		log.Warn(w.Error())
	}
	return res, nil
}

// warn moves recoverable errors into the warning list and returns anything
// else.
func (res *Result) warn(err error) error {
	if err == nil {
		return nil
	}
	var (
		pe *polycrys.PackingExhaustionError
		ce *polycrys.CoverageError
		cw *polycrys.ConvergenceWarning
	)
	if errors.As(err, &pe) || errors.As(err, &ce) || errors.As(err, &cw) {
		res.Warnings = append(res.Warnings, err)
		return nil
	}
	return err
}

// DomainDims sizes a cubic domain whose volume is the total grain volume
// times the fill fraction. Each side is rounded down to a multiple of the
// coarse ratio, and is never smaller than one coarse cell.
func DomainDims(grains []polycrys.Grain, cfg Config) [3]int {
	total := 0.0
	for i := range grains {
		total += grains[i].Volume
	}
	side := math.Cbrt(total * cfg.FillFraction)

	dims := [3]int{}
	for i := range dims {
		n := int(side / cfg.Resolution[i])
		n -= n % cfg.CoarseRatio
		if n < cfg.CoarseRatio {
			n = cfg.CoarseRatio
		}
		dims[i] = n
	}
	return dims
}

func summarize(res *Result, t *stats.Tables) Summary {
	s := Summary{TargetMeanDiameter: t.Diameter.Mean()}
	vox := res.Grid.Res[0] * res.Grid.Res[1] * res.Grid.Res[2]

	diams, nbrs := []float64{}, []float64{}
	for i := range res.Grains {
		pg := &res.Grains[i]
		if pg.Placed {
			s.Placed++
		} else {
			s.Unplaced++
		}
		if pg.OnSurface {
			s.SurfaceGrains++
		}
		if pg.CurrentSize == 0 {
			continue
		}
		diams = append(diams,
			polycrys.EquivalentDiameter(float64(pg.CurrentSize)*vox))
		nbrs = append(nbrs, float64(len(pg.Neighbors)))
	}
	if len(diams) == 0 {
		return s
	}

	s.MeanDiameter, s.StdDiameter = stat.MeanStdDev(diams, nil)
	s.MeanNeighbors = stat.Mean(nbrs, nil)

	sort.Float64s(diams)
	values := make([]float64, t.Diameter.Len())
	for i := range values {
		values[i] = t.Diameter.Bins[i].Value
	}
	s.DiameterKS = stat.KolmogorovSmirnov(diams, nil, values, t.Diameter.Probs())
	return s
}
