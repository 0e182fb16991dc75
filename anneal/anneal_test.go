package anneal

import (
	"context"
	"errors"
	"math"
	"slices"
	"testing"

	"github.com/phil-mansfield/polycrys"
	"github.com/phil-mansfield/polycrys/crystal"
	"github.com/phil-mansfield/polycrys/math/rand"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// lattice returns n^3 grains on a simple cubic lattice with face neighbors
// and random orientations. Grains with z < frozenLayers share one
// orientation.
func lattice(n, frozenLayers int, seed uint64) []polycrys.PackedGrain {
	gen := rand.New(rand.Xorshift, seed)
	idx := func(x, y, z int) int { return x + n*(y+n*z) }
	grains := make([]polycrys.PackedGrain, n*n*n)
	for z := 0; z < n; z++ {
		for y := 0; y < n; y++ {
			for x := 0; x < n; x++ {
				g := &grains[idx(x, y, z)]
				g.ID = idx(x, y, z)
				if z > 0 {
					g.Neighbors = append(g.Neighbors, idx(x, y, z-1))
				}
				if y > 0 {
					g.Neighbors = append(g.Neighbors, idx(x, y-1, z))
				}
				if x > 0 {
					g.Neighbors = append(g.Neighbors, idx(x-1, y, z))
				}
				if x < n-1 {
					g.Neighbors = append(g.Neighbors, idx(x+1, y, z))
				}
				if y < n-1 {
					g.Neighbors = append(g.Neighbors, idx(x, y+1, z))
				}
				if z < n-1 {
					g.Neighbors = append(g.Neighbors, idx(x, y, z+1))
				}

				if z < frozenLayers {
					g.Euler = polycrys.Euler{0.3, 0.4, 0.5}
				} else {
					g.Euler = polycrys.Euler{
						gen.Uniform(0, 2*math.Pi),
						gen.Uniform(0, math.Pi),
						gen.Uniform(0, 2*math.Pi),
					}
				}
			}
		}
	}
	return grains
}

func uniform(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 1
	}
	return out
}

func testConfig() Config {
	cfg := DefaultConfig(crystal.Cubic)
	cfg.MisorientationPasses = 3
	cfg.MisorientationMoves = 50
	cfg.MicrotexturePasses = 5
	cfg.MicrotextureMoves = 10
	return cfg
}

func eulers(grains []polycrys.PackedGrain) []polycrys.Euler {
	out := make([]polycrys.Euler, len(grains))
	for i := range grains {
		out[i] = grains[i].Euler
	}
	return out
}

func sortedEulers(grains []polycrys.PackedGrain) []polycrys.Euler {
	out := eulers(grains)
	slices.SortFunc(out, func(a, b polycrys.Euler) int {
		for k := 0; k < 3; k++ {
			if a[k] < b[k] {
				return -1
			} else if a[k] > b[k] {
				return 1
			}
		}
		return 0
	})
	return out
}

func assertMisorientations(t *testing.T, st crystal.Structure, grains []polycrys.PackedGrain) {
	for i := range grains {
		g := &grains[i]
		require.Len(t, g.Misorientations, len(g.Neighbors))
		low := 0
		for k, n := range g.Neighbors {
			want := st.MisorientationEuler(g.Euler, grains[n].Euler)
			assert.InDelta(t, want, g.Misorientations[k], 1e-9,
				"grain %d neighbor %d", i, n)
			if g.Misorientations[k] < DefaultLowAngle {
				low++
			}
		}
		assert.InDelta(t, float64(low)/float64(len(g.Neighbors)),
			g.LowAngleFraction, 1e-12)
	}
}

func TestMeasure(t *testing.T) {
	grains := lattice(4, 0, 1)
	_, err := NewAnnealer(grains, uniform(10), uniform(4), testConfig(),
		rand.New(rand.Xorshift, 2), nil)
	require.NoError(t, err)
	assertMisorientations(t, crystal.Cubic, grains)
}

func TestRankMisorientationBins(t *testing.T) {
	grains := []polycrys.PackedGrain{
		{Neighbors: []int{1}, Euler: polycrys.Euler{0, 0, 0}},
		{Neighbors: []int{0}, Euler: polycrys.Euler{30 * math.Pi / 180, 0, 0}},
	}
	a, err := NewAnnealer(grains, uniform(4), nil, testConfig(),
		rand.New(rand.Xorshift, 2), nil)
	require.NoError(t, err)

	// Both sides of the 30 degree boundary land in bin 1, which is
	// overpopulated; the rest are equally underpopulated.
	a.rankMisorientationBins()
	assert.Equal(t, []float64{-3, 4, -2, -1}, a.misoRank)
	assert.Equal(t, 4.0, a.misorientationRank(0))
}

func TestMisorientationPassFrozen(t *testing.T) {
	grains := lattice(6, 3, 5)
	before := sortedEulers(grains)
	a, err := NewAnnealer(grains, uniform(10), nil, testConfig(),
		rand.New(rand.Xorshift, 7), nil)
	require.NoError(t, err)

	for pass := 0; pass < 4; pass++ {
		prev := eulers(grains)
		a.MisorientationPass()

		frozen := 0
		for i := range grains {
			if grains[i].Frozen {
				frozen++
				assert.Equal(t, prev[i], grains[i].Euler, "grain %d", i)
			}
		}
		assert.True(t, frozen >= 6*6*3, "pass %d froze %d grains", pass, frozen)
	}

	assert.True(t, a.res.Moves > 0)
	assert.Equal(t, before, sortedEulers(grains))
	assertMisorientations(t, crystal.Cubic, grains)
}

func TestMicrotextureSets(t *testing.T) {
	grains := lattice(6, 3, 5)
	cfg := testConfig()
	a, err := NewAnnealer(grains, nil, []float64{0, 0, 0, 1}, cfg,
		rand.New(rand.Xorshift, 7), nil)
	require.NoError(t, err)

	worst, donors := a.microtextureSets()
	require.Len(t, worst, cfg.MicrotextureMoves)
	require.Len(t, donors, cfg.MicrotextureMoves)

	minWorst := math.Inf(1)
	inWorst := map[int]bool{}
	for _, i := range worst {
		inWorst[i] = true
		assert.False(t, grains[i].Frozen, "worst grain %d is frozen", i)
		assert.True(t, grains[i].Rank > 0)
		minWorst = math.Min(minWorst, grains[i].Rank)
	}
	for _, d := range donors {
		assert.False(t, inWorst[d], "grain %d is both worst and donor", d)
		assert.False(t, grains[d].Frozen, "donor grain %d is frozen", d)
		assert.True(t, grains[d].Rank > 0)
		assert.True(t, grains[d].Rank <= minWorst)
	}
	for i := range a.picked {
		assert.False(t, a.picked[i])
	}
}

func TestMicrotexturePassFreezes(t *testing.T) {
	grains := lattice(6, 3, 5)
	before := sortedEulers(grains)
	a, err := NewAnnealer(grains, nil, []float64{0, 0, 0, 1}, testConfig(),
		rand.New(rand.Xorshift, 7), nil)
	require.NoError(t, err)

	for pass := 0; pass < 4; pass++ {
		prev := eulers(grains)
		require.False(t, a.MicrotexturePass())

		frozen := 0
		for i := range grains {
			if grains[i].Frozen {
				frozen++
				assert.Equal(t, prev[i], grains[i].Euler, "grain %d", i)
			}
		}
		assert.True(t, frozen >= 6*6*3, "pass %d froze %d grains", pass, frozen)
	}

	assert.True(t, a.res.Moves > 0)
	assert.Equal(t, 0, a.res.MisorientationPasses)
	assert.Equal(t, before, sortedEulers(grains))
	assertMisorientations(t, crystal.Cubic, grains)
}

func TestMicrotextureConverged(t *testing.T) {
	grains := lattice(4, 0, 3)
	a, err := NewAnnealer(grains, nil, []float64{1, 1, 1, 0}, testConfig(),
		rand.New(rand.Xorshift, 2), nil)
	require.NoError(t, err)

	prev := eulers(grains)
	assert.True(t, a.MicrotexturePass())
	assert.Equal(t, prev, eulers(grains))

	res, err := a.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0.0, res.Microtexture)
}

func TestRunConvergenceWarning(t *testing.T) {
	grains := lattice(5, 0, 11)
	before := sortedEulers(grains)
	cfg := testConfig()
	a, err := NewAnnealer(grains, uniform(10), []float64{0, 0, 0, 1}, cfg,
		rand.New(rand.Xorshift, 2), nil)
	require.NoError(t, err)

	res, err := a.Run(context.Background())
	var cw *polycrys.ConvergenceWarning
	require.True(t, errors.As(err, &cw))
	assert.Equal(t, "microtexture", cw.Stage)
	assert.Equal(t, cfg.MicrotexturePasses, cw.Passes)
	assert.True(t, res.Microtexture > cfg.TailTolerance)
	assert.Equal(t, 2*cfg.MisorientationPasses, res.MisorientationPasses)
	assert.True(t, res.Misorientation >= 0 && res.Misorientation <= 2)

	assert.Equal(t, before, sortedEulers(grains))
	assertMisorientations(t, crystal.Cubic, grains)

	miso, micro := a.Histograms()
	assert.InDelta(t, 1, sum(miso), 1e-9)
	assert.InDelta(t, 1, sum(micro), 1e-9)
}

func TestRunDeterministic(t *testing.T) {
	run := func() []polycrys.Euler {
		grains := lattice(5, 1, 4)
		a, err := NewAnnealer(grains, uniform(10), uniform(4), testConfig(),
			rand.New(rand.Xorshift, 9), nil)
		require.NoError(t, err)
		_, _ = a.Run(context.Background())
		return eulers(grains)
	}
	assert.Equal(t, run(), run())
}

func TestRunNoTargets(t *testing.T) {
	grains := lattice(3, 0, 1)
	prev := eulers(grains)
	a, err := NewAnnealer(grains, nil, nil, testConfig(),
		rand.New(rand.Xorshift, 2), nil)
	require.NoError(t, err)
	res, err := a.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, res.MisorientationPasses+res.MicrotexturePasses)
	assert.Equal(t, prev, eulers(grains))
}

func TestRunCanceled(t *testing.T) {
	grains := lattice(3, 0, 1)
	a, err := NewAnnealer(grains, uniform(10), nil, testConfig(),
		rand.New(rand.Xorshift, 2), nil)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = a.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewAnnealerValidation(t *testing.T) {
	gen := rand.New(rand.Xorshift, 2)
	grains := lattice(2, 0, 1)

	_, err := NewAnnealer(grains, []float64{0, 0}, nil, testConfig(), gen, nil)
	assert.Error(t, err)

	cfg := testConfig()
	cfg.FreezeFraction = 0
	_, err = NewAnnealer(grains, nil, nil, cfg, gen, nil)
	assert.Error(t, err)

	grains[0].Neighbors = append(grains[0].Neighbors, 0)
	_, err = NewAnnealer(grains, nil, nil, testConfig(), gen, nil)
	assert.Error(t, err)
}

func sum(xs []float64) float64 {
	s := 0.0
	for _, x := range xs {
		s += x
	}
	return s
}
