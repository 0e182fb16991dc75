/*package pack places sampled grains into the voxel domain, largest first.

Each grain runs through the same cycle until it is committed or its seed
budget runs out: a seed is drawn from the untried available coarse cells, the
voxels inside the grain's shape are collected, and the placement is judged on
how much it overlaps earlier grains and on whether it moves the neighbor count
and neighbor size statistics of nearby grains towards their targets.
*/
package pack

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/phil-mansfield/polycrys"
	"github.com/phil-mansfield/polycrys/geom"
	"github.com/phil-mansfield/polycrys/logging"
	"github.com/phil-mansfield/polycrys/math/rand"
	"github.com/phil-mansfield/polycrys/stats"

	"gonum.org/v1/gonum/spatial/r3"
)

const (
	DefaultOverlapAllowed       = 0.1
	DefaultMaxSeedRetries       = 2000
	DefaultNeighborRadiusFactor = 0.7

	// initialNSError is the neighbor-size error of a grain with no
	// neighbors. It is large so that the first neighbor always improves it.
	initialNSError = 10
	// displaceLimit is the inverse of the largest fraction of its initial
	// size a grain may lose to later placements.
	displaceLimit = 5
)

// Config controls packing.
type Config struct {
	Class  polycrys.ShapeClass
	Policy polycrys.OverlapPolicy
	// OverlapAllowed is the largest fraction of a candidate's voxels which
	// may already belong to other grains.
	OverlapAllowed float64
	MaxSeedRetries int
	// NeighborRadiusFactor scales the sum of two grains' major semi-axes to
	// get the center distance below which they count as neighbors.
	NeighborRadiusFactor float64
}

// DefaultConfig returns the packing defaults for a shape class.
func DefaultConfig(class polycrys.ShapeClass) Config {
	return Config{
		Class:                class,
		Policy:               polycrys.RejectOnOverlap,
		OverlapAllowed:       DefaultOverlapAllowed,
		MaxSeedRetries:       DefaultMaxSeedRetries,
		NeighborRadiusFactor: DefaultNeighborRadiusFactor,
	}
}

// Valid returns an error if the config cannot be used.
func (c *Config) Valid() error {
	switch {
	case c.Policy != polycrys.RejectOnOverlap && c.Policy != polycrys.DisplaceMinority:
		return fmt.Errorf("unknown overlap policy %v", c.Policy)
	case !(c.OverlapAllowed >= 0 && c.OverlapAllowed <= 1):
		return fmt.Errorf("overlap allowance %g is outside [0, 1]", c.OverlapAllowed)
	case c.MaxSeedRetries <= 0:
		return fmt.Errorf("seed retry budget must be positive, got %d", c.MaxSeedRetries)
	case !(c.NeighborRadiusFactor > 0):
		return fmt.Errorf("neighbor radius factor must be positive, got %g",
			c.NeighborRadiusFactor)
	}
	return nil
}

// Packer owns the packing domain while grains are being placed.
type Packer struct {
	Config
	Grid   *geom.MultiGrid
	Tables *stats.Tables

	gen *rand.Generator
	log *slog.Logger

	grains      []polycrys.Grain
	packed      []polycrys.PackedGrain
	placed      []int
	numSizeBins int

	// Per-attempt scratch space.
	candidates []int
	removals   []int
	touched    []int
	neighbors  []int
}

// NewPacker creates a packer over an empty domain.
func NewPacker(
	grid *geom.MultiGrid, t *stats.Tables, cfg Config,
	gen *rand.Generator, log *slog.Logger,
) (*Packer, error) {
	if err := cfg.Valid(); err != nil {
		return nil, err
	}
	if grid.Free() != grid.Len() {
		return nil, fmt.Errorf("packing domain is not empty")
	}
	p := &Packer{
		Config: cfg, Grid: grid, Tables: t, gen: gen, log: logging.Or(log),
	}
	p.numSizeBins = t.MaxSizeBin() + 1
	return p, nil
}

// useNeighborStats is true if the neighbor acceptance criteria are active.
func (p *Packer) useNeighborStats() bool {
	return p.Tables.NeighborCount != nil && p.Tables.NeighborSize != nil
}

// Pack places grains in order. The returned slice is parallel to grains, and
// the owner of a voxel in the grid is the index of its grain in that slice.
//
// Grains which could not be placed are reported with a
// *polycrys.PackingExhaustionError together with the packed grains; any
// other error is fatal.
func (p *Packer) Pack(
	ctx context.Context, grains []polycrys.Grain,
) ([]polycrys.PackedGrain, error) {
	p.grains = grains
	p.packed = make([]polycrys.PackedGrain, len(grains))
	p.removals = make([]int, len(grains))
	p.placed = p.placed[:0]

	vox := p.Grid.Res[0] * p.Grid.Res[1] * p.Grid.Res[2]
	unplaced := []int{}
	reason := "seed budget exhausted"

	for i := range grains {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		g := &grains[i]
		pg := &p.packed[i]
		pg.ID = g.ID
		pg.Axes = g.Axes
		pg.N = g.N
		pg.Euler = g.Euler
		pg.TargetVoxels = g.Volume / vox
		pg.NSError = initialNSError
		pg.NeighborSizes = make([]float64, p.numSizeBins)

		if p.Grid.Free() == 0 {
			reason = "domain full"
			unplaced = append(unplaced, i)
			continue
		}

		ok, err := p.placeGrain(i)
		if err != nil {
			return nil, err
		}
		if !ok {
			unplaced = append(unplaced, i)
			p.log.Debug("grain not placed", "grain", i, "diameter", g.Diameter)
		}
	}

	p.recountSizes()
	p.log.Info("packed grains", "placed", len(p.placed),
		"unplaced", len(unplaced), "free voxels", p.Grid.Free())

	if len(unplaced) > 0 {
		return p.packed, &polycrys.PackingExhaustionError{
			Unplaced:         unplaced,
			UnfilledFraction: float64(p.Grid.Free()) / float64(p.Grid.Len()),
			Reason:           reason,
		}
	}
	return p.packed, nil
}

// placeGrain runs the seed/containment/acceptance cycle for grain i.
func (p *Packer) placeGrain(i int) (bool, error) {
	g := &p.grains[i]
	shape, err := geom.NewShape(p.Class, g.N)
	if err != nil {
		return false, &polycrys.GeometryDegeneracyError{Grain: g.ID, Reason: err.Error()}
	}
	radii, err := geom.Radii(shape, g.Volume, g.Ratios)
	if err != nil {
		return false, &polycrys.GeometryDegeneracyError{Grain: g.ID, Reason: err.Error()}
	}
	body, err := geom.NewBody(g.ID, shape, r3.Vec{}, g.Axes, radii)
	if err != nil {
		return false, err
	}
	p.packed[i].Radii = radii

	p.Grid.ResetTried()
	for try := 0; try < p.MaxSeedRetries; try++ {
		seed, ok := p.Grid.DrawSeed(p.gen)
		if !ok {
			return false, nil
		}
		body.Center = p.Grid.Center(seed)
		p.collect(body)

		if p.accept(i, body.Center) {
			p.commit(i, body.Center)
			p.log.Debug("placed grain", "grain", i, "tries", try+1,
				"voxels", p.packed[i].InitSize)
			return true, nil
		}
	}
	return false, nil
}

// collect gathers the voxels inside body into p.candidates.
func (p *Packer) collect(body *geom.Body) {
	p.candidates = p.candidates[:0]
	cb := p.Grid.BoundingBox(body.Center, body.Reach())
	if cb.Empty() {
		return
	}
	for z := cb.Origin[2]; z < cb.Origin[2]+cb.Width[2]; z++ {
		for y := cb.Origin[1]; y < cb.Origin[1]+cb.Width[1]; y++ {
			for x := cb.Origin[0]; x < cb.Origin[0]+cb.Width[0]; x++ {
				idx := p.Grid.Fine.Idx(x, y, z)
				if body.Contains(p.Grid.Center(idx)) {
					p.candidates = append(p.candidates, idx)
				}
			}
		}
	}
}

// displaces is true if grain i takes voxels from earlier grains.
func (p *Packer) displaces(i int) bool {
	return p.Policy == polycrys.DisplaceMinority && i%2 == 0
}

// accept evaluates the current candidates for grain i centered at c. It
// leaves the per-owner removal counts and the neighbor list in scratch space
// for commit.
func (p *Packer) accept(i int, c r3.Vec) bool {
	for _, d := range p.touched {
		p.removals[d] = 0
	}
	p.touched = p.touched[:0]

	inside := len(p.candidates)
	if inside == 0 {
		return false
	}

	bad := 0
	displace := p.displaces(i)
	for _, idx := range p.candidates {
		owner := p.Grid.Owner(idx)
		if owner == polycrys.Unassigned {
			continue
		}
		if displace {
			if p.removals[owner] == 0 {
				p.touched = append(p.touched, owner)
			}
			p.removals[owner]++
		} else {
			bad++
		}
	}
	if float64(bad)/float64(inside) > p.OverlapAllowed {
		return false
	}

	for _, d := range p.touched {
		pd := &p.packed[d]
		if (pd.Lost+p.removals[d])*displaceLimit > pd.InitSize {
			return false
		}
	}

	p.findNeighbors(i, c)
	if !p.useNeighborStats() {
		return true
	}
	return p.neighborStatsImprove(i)
}

// findNeighbors fills p.neighbors with the placed grains whose centers are
// close enough to c to count as neighbors of grain i.
func (p *Packer) findNeighbors(i int, c r3.Vec) {
	p.neighbors = p.neighbors[:0]
	r := p.packed[i].Radii[0]
	for _, n := range p.placed {
		pn := &p.packed[n]
		limit := p.NeighborRadiusFactor * (r + pn.Radii[0])
		if r3.Norm(r3.Sub(c, pn.Centroid)) < limit {
			p.neighbors = append(p.neighbors, n)
		}
	}
}

// neighborStatsImprove is true if adding grain i as a neighbor moves the
// neighbor count of nearby grains towards more probable values in total, and
// does not increase the summed error of their neighbor size histograms.
func (p *Packer) neighborStatsImprove(i int) bool {
	bin := p.sizeBin(i)
	uberIncrease, nsChange := 0, 0.0
	for _, n := range p.neighbors {
		pn := &p.packed[n]
		nbin := p.sizeBin(n)

		svn := p.Tables.NeighborCount.For(nbin)
		was := svn.ProbAt(float64(pn.NeighborCount))
		now := svn.ProbAt(float64(pn.NeighborCount + 1))
		if now > was {
			uberIncrease++
		} else if now < was {
			uberIncrease--
		}

		pn.NeighborSizes[bin]++
		nsChange += p.nsError(n) - pn.NSError
		pn.NeighborSizes[bin]--
	}
	return uberIncrease >= 0 && nsChange <= 0
}

// nsError is the squared error between grain n's neighbor size histogram and
// the target for its size bin.
func (p *Packer) nsError(n int) float64 {
	hist := p.packed[n].NeighborSizes
	total := 0.0
	for _, h := range hist {
		total += h
	}
	if total == 0 {
		return initialNSError
	}
	svs := p.Tables.NeighborSize.For(p.sizeBin(n))
	err := 0.0
	for r, h := range hist {
		d := svs.ProbAt(float64(r)) - h/total
		err += d * d
	}
	return err
}

func (p *Packer) sizeBin(i int) int {
	b := p.grains[i].SizeBin
	if b >= p.numSizeBins {
		b = p.numSizeBins - 1
	}
	return b
}

// commit claims the candidate voxels for grain i and updates the running
// statistics of its neighbors.
func (p *Packer) commit(i int, c r3.Vec) {
	pg := &p.packed[i]
	displace := p.displaces(i)

	size := 0
	for _, idx := range p.candidates {
		owner := p.Grid.Owner(idx)
		switch {
		case owner == polycrys.Unassigned:
		case displace:
			p.packed[owner].Lost++
			p.packed[owner].CurrentSize--
		default:
			continue
		}
		p.Grid.Claim(idx, i)
		size++
		if !pg.OnSurface && p.Grid.OnFace(idx) {
			pg.OnSurface = true
		}
	}
	for _, d := range p.touched {
		p.removals[d] = 0
	}
	p.touched = p.touched[:0]

	pg.Placed = true
	pg.Centroid = c
	pg.InitSize = size
	pg.CurrentSize = size

	bin := p.sizeBin(i)
	for _, n := range p.neighbors {
		pn := &p.packed[n]
		pn.NeighborCount++
		pn.NeighborSizes[bin]++
		pg.NeighborCount++
		pg.NeighborSizes[p.sizeBin(n)]++
		if p.useNeighborStats() {
			pn.NSError = p.nsError(n)
		}
	}
	if p.useNeighborStats() && pg.NeighborCount > 0 {
		pg.NSError = p.nsError(i)
	}

	p.placed = append(p.placed, i)
}

// recountSizes sets every grain's current size from the grid.
func (p *Packer) recountSizes() {
	for i := range p.packed {
		p.packed[i].CurrentSize = 0
	}
	for idx := 0; idx < p.Grid.Len(); idx++ {
		if o := p.Grid.Owner(idx); o != polycrys.Unassigned {
			p.packed[o].CurrentSize++
		}
	}
}
