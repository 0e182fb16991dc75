/*package anneal reassigns orientations between grains so that the realized
misorientation and microtexture histograms move towards their targets.

Grain shapes and positions are never touched: every move is a permutation of
the orientations already present, so the orientation texture assigned before
packing is preserved exactly.
*/
package anneal

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"math"
	"slices"

	"github.com/phil-mansfield/polycrys"
	"github.com/phil-mansfield/polycrys/crystal"
	"github.com/phil-mansfield/polycrys/logging"
	"github.com/phil-mansfield/polycrys/math/rand"
	"github.com/phil-mansfield/polycrys/stats"
)

const (
	DefaultMisorientationPasses = 10
	DefaultMisorientationMoves  = 250
	DefaultMicrotexturePasses   = 50
	DefaultMicrotextureMoves    = 25
	DefaultLowAngle             = 15.0
	DefaultFreezeFraction       = 0.85
	DefaultTailTolerance        = 0.15

	// zeroPenalty is added to a grain's rank for every neighbor with an
	// identical orientation.
	zeroPenalty = 100

	// Microtexture ranking weights. Neighbors whose low-angle fraction is
	// above clusterFraction count clusterWeight times as much, and a grain
	// with a low-angle link into such a neighbor above joinedFraction is
	// left alone.
	clusterFraction = 0.24
	clusterWeight   = 8
	joinedFraction  = 0.5
	// Grains with less than isolatedFraction of low-angle neighbors count
	// double.
	isolatedFraction = 0.4
)

// Config controls annealing.
type Config struct {
	Structure crystal.Structure

	MisorientationPasses, MisorientationMoves int
	MicrotexturePasses, MicrotextureMoves     int

	// LowAngle is the misorientation, in degrees, below which a boundary
	// counts as low-angle.
	LowAngle float64
	// FreezeFraction is the low-angle fraction above which a grain and its
	// low-angle neighbors stop moving.
	FreezeFraction float64
	// TailTolerance is the relative shortfall of the last microtexture bin
	// which counts as converged.
	TailTolerance float64
}

// DefaultConfig returns the annealing defaults for a crystal structure.
func DefaultConfig(st crystal.Structure) Config {
	return Config{
		Structure:            st,
		MisorientationPasses: DefaultMisorientationPasses,
		MisorientationMoves:  DefaultMisorientationMoves,
		MicrotexturePasses:   DefaultMicrotexturePasses,
		MicrotextureMoves:    DefaultMicrotextureMoves,
		LowAngle:             DefaultLowAngle,
		FreezeFraction:       DefaultFreezeFraction,
		TailTolerance:        DefaultTailTolerance,
	}
}

// Valid returns an error if the config cannot be used.
func (c *Config) Valid() error {
	switch {
	case c.Structure != crystal.Cubic && c.Structure != crystal.Hexagonal:
		return fmt.Errorf("unknown crystal structure %v", c.Structure)
	case c.MisorientationPasses < 0 || c.MicrotexturePasses < 0:
		return fmt.Errorf("pass counts must be non-negative")
	case c.MisorientationMoves < 0 || c.MicrotextureMoves < 0:
		return fmt.Errorf("move counts must be non-negative")
	case !(c.LowAngle > 0):
		return fmt.Errorf("low-angle threshold must be positive, got %g", c.LowAngle)
	case !(c.FreezeFraction > 0 && c.FreezeFraction <= 1):
		return fmt.Errorf("freeze fraction %g is outside (0, 1]", c.FreezeFraction)
	case !(c.TailTolerance >= 0):
		return fmt.Errorf("tail tolerance must be non-negative, got %g",
			c.TailTolerance)
	}
	return nil
}

// Residuals summarizes how far an annealed structure is from its targets.
type Residuals struct {
	// Misorientation is the L1 distance between the realized and target
	// misorientation histograms.
	Misorientation float64
	// Microtexture is the relative shortfall of the last microtexture bin.
	Microtexture float64

	MisorientationPasses, MicrotexturePasses int
	Moves                                    int
}

// Annealer owns the orientations of a set of packed grains while they are
// being reassigned. Grains must have their neighbor lists filled in.
type Annealer struct {
	Config
	MisorientationTarget, MicrotextureTarget []float64

	grains []polycrys.PackedGrain
	orient []crystal.Orientation
	// active holds the grains with at least one neighbor.
	active []int

	gen *rand.Generator
	log *slog.Logger

	misoHist, misoRank []float64
	microHist          []float64

	res       Residuals
	picked    []bool
	changed   []int
	affected  []bool
	prev      []crystal.Orientation
	candidate []int
}

// NewAnnealer measures the initial misorientations of grains. Either target
// may be nil, in which case the corresponding stage is skipped. Targets are
// normalized.
func NewAnnealer(
	grains []polycrys.PackedGrain, misoTarget, microTarget []float64,
	cfg Config, gen *rand.Generator, log *slog.Logger,
) (*Annealer, error) {
	if err := cfg.Valid(); err != nil {
		return nil, err
	}
	a := &Annealer{
		Config: cfg, grains: grains, gen: gen, log: logging.Or(log),
	}

	var err error
	if misoTarget != nil {
		a.MisorientationTarget, err = stats.NormalizeHistogram(
			"misorientation", misoTarget)
		if err != nil {
			return nil, err
		}
		a.misoHist = make([]float64, len(misoTarget))
		a.misoRank = make([]float64, len(misoTarget))
	}
	if microTarget != nil {
		a.MicrotextureTarget, err = stats.NormalizeHistogram(
			"microtexture", microTarget)
		if err != nil {
			return nil, err
		}
		a.microHist = make([]float64, len(microTarget))
	}

	a.orient = make([]crystal.Orientation, len(grains))
	a.picked = make([]bool, len(grains))
	a.affected = make([]bool, len(grains))
	for i := range grains {
		for _, n := range grains[i].Neighbors {
			if n < 0 || n >= len(grains) || n == i {
				return nil, fmt.Errorf("grain %d has invalid neighbor %d", i, n)
			}
		}
		a.orient[i] = crystal.NewOrientation(grains[i].Euler)
		if len(grains[i].Neighbors) > 0 {
			a.active = append(a.active, i)
		}
	}
	a.measure()
	return a, nil
}

// Run performs the misorientation passes, then microtexture passes until the
// tail bin converges or the budget runs out, then the misorientation passes
// again. If the microtexture stage does not converge the residuals are
// returned with a *polycrys.ConvergenceWarning.
func (a *Annealer) Run(ctx context.Context) (Residuals, error) {
	if err := a.misorientationStage(ctx); err != nil {
		return a.res, err
	}

	converged := true
	if a.MicrotextureTarget != nil {
		converged = false
		for p := 0; p < a.MicrotexturePasses; p++ {
			if err := ctx.Err(); err != nil {
				return a.res, err
			}
			if a.MicrotexturePass() {
				converged = true
				break
			}
		}
	}

	if err := a.misorientationStage(ctx); err != nil {
		return a.res, err
	}

	a.res.Misorientation = a.misorientationResidual()
	a.res.Microtexture = a.microtextureResidual()
	a.log.Info("annealed orientations",
		"moves", a.res.Moves,
		"misorientation residual", a.res.Misorientation,
		"microtexture residual", a.res.Microtexture)

	if !converged {
		return a.res, &polycrys.ConvergenceWarning{
			Stage:    "microtexture",
			Passes:   a.res.MicrotexturePasses,
			Residual: a.res.Microtexture,
		}
	}
	return a.res, nil
}

func (a *Annealer) misorientationStage(ctx context.Context) error {
	if a.MisorientationTarget == nil {
		return nil
	}
	for p := 0; p < a.MisorientationPasses; p++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		a.MisorientationPass()
	}
	return nil
}

// MisorientationPass ranks the misorientation bins, freezes converged
// neighborhoods, and permutes the orientations of the worst-ranked unfrozen
// grains among themselves.
func (a *Annealer) MisorientationPass() {
	a.res.MisorientationPasses++
	a.rankMisorientationBins()
	a.freeze()
	for _, i := range a.active {
		a.grains[i].Rank = a.misorientationRank(i)
	}

	worst := a.selectWorst(a.MisorientationMoves, false)
	a.permute(worst)
	a.rescore()
	a.log.Debug("misorientation pass", "pass", a.res.MisorientationPasses,
		"moved", len(worst))
}

// MicrotexturePass returns true if the last microtexture bin is already
// within tolerance of its target. Otherwise it freezes converged
// neighborhoods and swaps the orientations of the worst-ranked grains with
// those of the next-worst.
func (a *Annealer) MicrotexturePass() bool {
	a.res.MicrotexturePasses++
	a.microtextureHistogram()
	if a.microtextureResidual() < a.TailTolerance {
		return true
	}

	worst, donors := a.microtextureSets()
	for _, w := range worst {
		if len(donors) == 0 {
			break
		}
		k := a.gen.UniformInt(0, len(donors))
		d := donors[k]
		donors[k] = donors[len(donors)-1]
		donors = donors[:len(donors)-1]

		a.orient[w], a.orient[d] = a.orient[d], a.orient[w]
		a.setChanged(w)
		a.setChanged(d)
		a.res.Moves++
	}
	a.rescore()
	a.log.Debug("microtexture pass", "pass", a.res.MicrotexturePasses,
		"residual", a.microtextureResidual())
	return false
}

// microtextureSets refreshes the frozen flags and microtexture ranks and
// returns the worst-ranked unfrozen grains together with an equally sized,
// disjoint set of donors ranked just below them.
func (a *Annealer) microtextureSets() (worst, donors []int) {
	a.freeze()
	for _, i := range a.active {
		a.grains[i].Rank = a.microtextureRank(i)
	}
	worst = a.selectWorst(a.MicrotextureMoves, true)
	for _, i := range worst {
		a.picked[i] = true
	}
	donors = a.selectWorst(a.MicrotextureMoves, true)
	for _, i := range worst {
		a.picked[i] = false
	}
	return worst, donors
}

// measure computes every misorientation and low-angle fraction from scratch.
func (a *Annealer) measure() {
	for _, i := range a.active {
		g := &a.grains[i]
		g.Misorientations = make([]float64, len(g.Neighbors))
	}
	for _, i := range a.active {
		g := &a.grains[i]
		for k, n := range g.Neighbors {
			if n < i {
				continue
			}
			a.setMisorientation(i, k, n)
		}
	}
	for _, i := range a.active {
		a.lowAngleFraction(i)
	}
}

// setMisorientation updates the misorientation between grain i and its k-th
// neighbor n on both sides of the boundary.
func (a *Annealer) setMisorientation(i, k, n int) {
	m := a.Structure.Misorientation(a.orient[i], a.orient[n])
	a.grains[i].Misorientations[k] = m
	nbrs := a.grains[n].Neighbors
	if j, ok := slices.BinarySearch(nbrs, i); ok {
		a.grains[n].Misorientations[j] = m
	} else if j := slices.Index(nbrs, i); j >= 0 {
		a.grains[n].Misorientations[j] = m
	}
}

func (a *Annealer) lowAngleFraction(i int) {
	g := &a.grains[i]
	low := 0
	for _, m := range g.Misorientations {
		if m < a.LowAngle {
			low++
		}
	}
	g.LowAngleFraction = float64(low) / float64(len(g.Misorientations))
}

func (a *Annealer) setChanged(i int) {
	if !a.affected[i] {
		a.affected[i] = true
		a.changed = append(a.changed, i)
	}
}

// rescore recomputes the misorientations around grains whose orientation
// changed since the last call, then the low-angle fractions of those grains
// and their neighbors.
func (a *Annealer) rescore() {
	n := len(a.changed)
	for _, i := range a.changed[:n] {
		g := &a.grains[i]
		g.Euler = a.orient[i].Euler
		for k, nb := range g.Neighbors {
			a.setMisorientation(i, k, nb)
		}
	}
	for _, i := range a.changed[:n] {
		for _, nb := range a.grains[i].Neighbors {
			if !a.affected[nb] {
				a.affected[nb] = true
				a.changed = append(a.changed, nb)
			}
		}
	}
	for _, i := range a.changed {
		if len(a.grains[i].Neighbors) > 0 {
			a.lowAngleFraction(i)
		}
		a.affected[i] = false
	}
	a.changed = a.changed[:0]
}

// rankMisorientationBins orders bins by how far the realized count is from
// the target count. The furthest bin gets rank len(bins), the next
// len(bins)-1 and so on, negated for bins which are underpopulated.
func (a *Annealer) rankMisorientationBins() {
	count := a.misorientationHistogram()
	nb := len(a.misoHist)

	order := make([]int, nb)
	diff := make([]float64, nb)
	for b := range order {
		order[b] = b
		diff[b] = math.Abs(a.misoHist[b] - a.MisorientationTarget[b]*count)
	}
	slices.SortStableFunc(order, func(x, y int) int {
		return cmp.Compare(diff[y], diff[x])
	})
	for pos, b := range order {
		rank := float64(nb - pos)
		if a.misoHist[b] < a.MisorientationTarget[b]*count {
			rank = -rank
		}
		a.misoRank[b] = rank
	}
}

// misorientationHistogram bins every grain's misorientation list and returns
// the number of entries. Each boundary is counted from both sides.
func (a *Annealer) misorientationHistogram() float64 {
	clear(a.misoHist)
	count := 0.0
	for _, i := range a.active {
		for _, m := range a.grains[i].Misorientations {
			a.misoHist[a.Structure.MisorientationBin(m, len(a.misoHist))]++
			count++
		}
	}
	return count
}

func (a *Annealer) microtextureHistogram() {
	clear(a.microHist)
	nb := len(a.microHist)
	for _, i := range a.active {
		b := int(a.grains[i].LowAngleFraction * float64(nb))
		if b >= nb {
			b = nb - 1
		}
		a.microHist[b]++
	}
}

// freeze marks grains which have a large low-angle fraction, or which are
// joined by a low-angle boundary to a neighbor that does.
func (a *Annealer) freeze() {
	for _, i := range a.active {
		g := &a.grains[i]
		g.Frozen = g.LowAngleFraction > a.FreezeFraction
		for k, n := range g.Neighbors {
			if g.Frozen {
				break
			}
			if a.grains[n].LowAngleFraction > a.FreezeFraction &&
				g.Misorientations[k] < a.LowAngle {
				g.Frozen = true
			}
		}
	}
}

// misorientationRank is large for grains whose boundaries fall in
// overpopulated bins.
func (a *Annealer) misorientationRank(i int) float64 {
	rank := 0.0
	for _, m := range a.grains[i].Misorientations {
		rank += a.misoRank[a.Structure.MisorientationBin(m, len(a.misoRank))]
		if m == 0 {
			rank += zeroPenalty
		}
	}
	return rank
}

// microtextureRank is large for grains with high-angle boundaries to
// neighbors that sit in low-angle clusters.
func (a *Annealer) microtextureRank(i int) float64 {
	g := &a.grains[i]
	rank := 0.0
	for k, n := range g.Neighbors {
		w := a.grains[n].LowAngleFraction
		if w > clusterFraction {
			w *= clusterWeight
		}
		term := w
		if g.Misorientations[k] < a.LowAngle {
			term = 0
			if w > clusterWeight*joinedFraction {
				return 0
			}
		}
		if g.LowAngleFraction < isolatedFraction {
			term *= 2
		}
		rank += term
	}
	return rank
}

// selectWorst returns up to k unpicked, unfrozen active grains in order of
// decreasing rank. If positive is true only grains with a positive rank are
// eligible.
func (a *Annealer) selectWorst(k int, positive bool) []int {
	a.candidate = a.candidate[:0]
	for _, i := range a.active {
		g := &a.grains[i]
		if g.Frozen || a.picked[i] || (positive && !(g.Rank > 0)) {
			continue
		}
		a.candidate = append(a.candidate, i)
	}
	slices.SortStableFunc(a.candidate, func(x, y int) int {
		return cmp.Compare(a.grains[y].Rank, a.grains[x].Rank)
	})
	if k > len(a.candidate) {
		k = len(a.candidate)
	}
	return slices.Clone(a.candidate[:k])
}

// permute gives each grain in set the orientation of a random, distinct
// member of set. A grain drawing itself draws again while another choice
// remains.
func (a *Annealer) permute(set []int) {
	if len(set) < 2 {
		return
	}
	slices.Sort(set)
	a.prev = a.prev[:0]
	pool := make([]int, len(set))
	for k, i := range set {
		a.prev = append(a.prev, a.orient[i])
		pool[k] = k
	}

	for k, i := range set {
		r := a.gen.UniformInt(0, len(pool))
		if pool[r] == k && len(pool) > 1 {
			r = (r + 1) % len(pool)
		}
		j := pool[r]
		pool[r] = pool[len(pool)-1]
		pool = pool[:len(pool)-1]

		if j != k {
			a.orient[i] = a.prev[j]
			a.setChanged(i)
			a.res.Moves++
		}
	}
}

// Histograms returns the realized, normalized misorientation and
// microtexture histograms. A histogram without a target is nil.
func (a *Annealer) Histograms() (miso, micro []float64) {
	if a.misoHist != nil {
		count := a.misorientationHistogram()
		miso = normalized(a.misoHist, count)
	}
	if a.microHist != nil {
		a.microtextureHistogram()
		micro = normalized(a.microHist, float64(len(a.active)))
	}
	return miso, micro
}

func normalized(hist []float64, total float64) []float64 {
	out := make([]float64, len(hist))
	if total > 0 {
		for i, h := range hist {
			out[i] = h / total
		}
	}
	return out
}

func (a *Annealer) misorientationResidual() float64 {
	if a.MisorientationTarget == nil {
		return 0
	}
	count := a.misorientationHistogram()
	res := 0.0
	for b, h := range normalized(a.misoHist, count) {
		res += math.Abs(h - a.MisorientationTarget[b])
	}
	return res
}

// microtextureResidual is the relative shortfall of the last microtexture
// bin. A realized count above the target gives a negative residual.
func (a *Annealer) microtextureResidual() float64 {
	if a.MicrotextureTarget == nil {
		return 0
	}
	a.microtextureHistogram()
	nb := len(a.microHist)
	target := a.MicrotextureTarget[nb-1] * float64(len(a.active))
	if target == 0 {
		return 0
	}
	return (target - a.microHist[nb-1]) / target
}
