package sample

import (
	"context"
	"errors"
	"math"
	"sort"
	"testing"

	"github.com/phil-mansfield/polycrys"
	"github.com/phil-mansfield/polycrys/crystal"
	"github.com/phil-mansfield/polycrys/math/rand"
	"github.com/phil-mansfield/polycrys/stats"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat"
)

func conditional(t *testing.T, name string, rows [][3]float64) *stats.Conditional {
	c, err := stats.NewConditional(name, rows)
	require.NoError(t, err)
	return c
}

func testTables(t *testing.T) *stats.Tables {
	diam, err := stats.NewDistribution("diameter", []stats.Bin{
		{Value: 4, Prob: 0.2}, {Value: 6, Prob: 0.5}, {Value: 8, Prob: 0.3},
	})
	require.NoError(t, err)
	h, err := stats.NewEulerHistogram(
		[]polycrys.Euler{{0.1, 0.2, 0.3}, {1.2, 0.5, 0.4}}, crystal.Cubic, nil,
	)
	require.NoError(t, err)

	return &stats.Tables{
		Diameter: diam,
		BOverA: conditional(t, "b/a", [][3]float64{
			{4, 0.7, 1}, {4, 0.9, 1}, {8, 0.8, 1},
		}),
		COverA: conditional(t, "c/a", [][3]float64{
			{4, 0.5, 1}, {4, 0.6, 1}, {8, 0.4, 1},
		}),
		COverB: conditional(t, "c/b", [][3]float64{
			{4, 0.5, 1}, {4, 0.9, 3},
		}),
		ShapeExponent: conditional(t, "n", [][3]float64{
			{4, 0.5, 1}, {4, 1.5, 1},
		}),
		Euler: h,
	}
}

func TestSampleSortedAndValid(t *testing.T) {
	tab := testTables(t)
	s, err := NewSampler(tab, polycrys.RoundedCuboid, rand.New(rand.Xorshift, 1), nil)
	require.NoError(t, err)

	grains, err := s.Sample(context.Background(), 500)
	require.NoError(t, err)
	require.Len(t, grains, 500)

	for i, g := range grains {
		assert.Equal(t, i, g.ID)
		if i > 0 {
			assert.True(t, grains[i-1].Volume >= g.Volume)
		}
		assert.InEpsilon(t, polycrys.SphereVolume(g.Diameter), g.Volume, 1e-12)
		assert.Equal(t, int(g.Diameter), g.SizeBin)

		assert.Equal(t, 1.0, g.Ratios[0])
		assert.True(t, g.Ratios[1] > 0 && g.Ratios[1] <= 1)
		assert.True(t, g.Ratios[2] > 0 && g.Ratios[2] <= g.Ratios[1])
		assert.Contains(t, []float64{0.5, 1.5}, g.N)

		for a := 0; a < 3; a++ {
			assert.InDelta(t, 1, r3.Norm(g.Axes[a]), 1e-12)
			for b := 0; b < a; b++ {
				assert.InDelta(t, 0, r3.Dot(g.Axes[a], g.Axes[b]), 1e-12)
			}
		}
	}
}

func TestSampleDeterministic(t *testing.T) {
	tab := testTables(t)
	s1, err := NewSampler(tab, polycrys.Ellipsoid, rand.New(rand.Xorshift, 9), nil)
	require.NoError(t, err)
	s2, err := NewSampler(tab, polycrys.Ellipsoid, rand.New(rand.Xorshift, 9), nil)
	require.NoError(t, err)

	g1, err := s1.Sample(context.Background(), 50)
	require.NoError(t, err)
	g2, err := s2.Sample(context.Background(), 50)
	require.NoError(t, err)
	assert.Equal(t, g1, g2)
	for _, g := range g1 {
		assert.Equal(t, 0.0, g.N)
	}
}

func TestDiameterFidelity(t *testing.T) {
	tab := testTables(t)
	s, err := NewSampler(tab, polycrys.Ellipsoid, rand.New(rand.Xorshift, 2024), nil)
	require.NoError(t, err)

	const n = 2000
	grains, err := s.Sample(context.Background(), n)
	require.NoError(t, err)

	xs := make([]float64, n)
	for i := range grains {
		xs[i] = grains[i].Diameter
	}
	sort.Float64s(xs)

	ys := make([]float64, tab.Diameter.Len())
	for i := range ys {
		ys[i] = tab.Diameter.Bins[i].Value
	}
	dist := stat.KolmogorovSmirnov(xs, nil, ys, tab.Diameter.Probs())
	assert.True(t, dist < 1.36/math.Sqrt(n)*1.5, "KS distance %g", dist)
}

func TestSampleRatioExhaustion(t *testing.T) {
	tab := testTables(t)
	tab.BOverA = conditional(t, "b/a", [][3]float64{{4, 1.5, 1}})
	s, err := NewSampler(tab, polycrys.Ellipsoid, rand.New(rand.Xorshift, 1), nil)
	require.NoError(t, err)
	s.MaxShapeDraws = 50

	_, err = s.Sample(context.Background(), 3)
	var ise *polycrys.InputStatisticsError
	require.True(t, errors.As(err, &ise))
	assert.Contains(t, ise.Reason, "50 draws")
}

func TestSampleValidation(t *testing.T) {
	tab := testTables(t)
	tab.ShapeExponent = nil
	_, err := NewSampler(tab, polycrys.Superellipsoid, rand.New(rand.Xorshift, 1), nil)
	assert.Error(t, err)

	s, err := NewSampler(tab, polycrys.Ellipsoid, rand.New(rand.Xorshift, 1), nil)
	require.NoError(t, err)
	_, err = s.Sample(context.Background(), 0)
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.Sample(ctx, 10)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSampleAxisTable(t *testing.T) {
	tab := testTables(t)
	frame := [3]r3.Vec{{Y: 1}, {Z: 1}, {X: 1}}
	tab.AxisOrientations = [][3]r3.Vec{frame}
	s, err := NewSampler(tab, polycrys.Ellipsoid, rand.New(rand.Xorshift, 1), nil)
	require.NoError(t, err)
	grains, err := s.Sample(context.Background(), 10)
	require.NoError(t, err)
	for _, g := range grains {
		assert.Equal(t, frame, g.Axes)
	}
}

func TestAssignEulersSingleCell(t *testing.T) {
	h := &stats.EulerHistogram{}
	h.Add(polycrys.Euler{0.2, 0.3, 0.4}, 5)

	grains := make([]polycrys.Grain, 37)
	st, err := AssignEulers(grains, h, rand.New(rand.Xorshift, 4))
	require.NoError(t, err)
	assert.Equal(t, 37, st.FromCells)
	assert.Equal(t, 0, st.FromShortfall+st.Uniform)

	w := stats.EulerBinWidth
	for _, g := range grains {
		assert.Equal(t, 2, int(g.Euler[0]/w))
		assert.Equal(t, 3, int(g.Euler[1]/w))
		assert.Equal(t, 4, int(g.Euler[2]/w))
	}
}

func TestAssignEulersShortfall(t *testing.T) {
	h := &stats.EulerHistogram{}
	// Three equal cells and ten grains: each rounds to 3, one is left over.
	h.Add(polycrys.Euler{0.01, 0.01, 0.01}, 1)
	h.Add(polycrys.Euler{0.5, 0.01, 0.01}, 1)
	h.Add(polycrys.Euler{1.0, 0.01, 0.01}, 1)

	grains := make([]polycrys.Grain, 10)
	st, err := AssignEulers(grains, h, rand.New(rand.Xorshift, 4))
	require.NoError(t, err)
	assert.Equal(t, 9, st.FromCells)
	assert.Equal(t, 1, st.FromShortfall)
	assert.Equal(t, 0, st.Uniform)

	counts := map[int]int{}
	for _, g := range grains {
		counts[int(g.Euler[0]/stats.EulerBinWidth)]++
	}
	assert.Equal(t, 10, counts[0]+counts[5]+counts[11])
	for _, c := range []int{0, 5, 11} {
		assert.True(t, counts[c] == 3 || counts[c] == 4)
	}
}

func TestAssignEulersBudget(t *testing.T) {
	h := &stats.EulerHistogram{}
	// Two cells which each round up: 0.5 -> 1 with one grain.
	h.Add(polycrys.Euler{0.01, 0.01, 0.01}, 1)
	h.Add(polycrys.Euler{0.5, 0.01, 0.01}, 1)
	grains := make([]polycrys.Grain, 1)
	st, err := AssignEulers(grains, h, rand.New(rand.Xorshift, 4))
	require.NoError(t, err)
	assert.Equal(t, 1, st.FromCells)

	_, err = AssignEulers(grains, &stats.EulerHistogram{}, rand.New(rand.Xorshift, 4))
	assert.Error(t, err)
}
