package fill

import (
	"context"
	"errors"
	"testing"

	"github.com/phil-mansfield/polycrys"
	"github.com/phil-mansfield/polycrys/geom"
	"github.com/phil-mansfield/polycrys/math/rand"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func newGrid(t *testing.T, dims [3]int, owners map[int]int) *geom.MultiGrid {
	mg, err := geom.NewMultiGrid(dims, 2, [3]float64{1, 1, 1})
	require.NoError(t, err)
	for idx, g := range owners {
		mg.Claim(idx, g)
	}
	return mg
}

func owners(mg *geom.MultiGrid) []int {
	out := make([]int, mg.Len())
	for i := range out {
		out[i] = mg.Owner(i)
	}
	return out
}

func TestFillSingleSeed(t *testing.T) {
	mg := newGrid(t, [3]int{5, 5, 5}, map[int]int{0: 3})
	st, err := Fill(context.Background(), mg, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, mg.Free())
	assert.Equal(t, 0, mg.Available())
	assert.Equal(t, 124, st.Reassigned)
	// The far corner is 12 face steps away.
	assert.Equal(t, 12, st.Sweeps)
	for _, o := range owners(mg) {
		assert.Equal(t, 3, o)
	}
}

func TestFillEmptyDomain(t *testing.T) {
	mg := newGrid(t, [3]int{4, 4, 4}, nil)
	st, err := Fill(context.Background(), mg, 0, nil)

	var ce *polycrys.CoverageError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, 64, ce.Unassigned)
	assert.Equal(t, 1.0, ce.Fraction)
	assert.Equal(t, 0, st.Reassigned)
}

func TestFillTieBreak(t *testing.T) {
	mg := newGrid(t, [3]int{3, 1, 1}, map[int]int{0: 7, 2: 4})
	_, err := Fill(context.Background(), mg, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, []int{7, 7, 4}, owners(mg))

	mg = newGrid(t, [3]int{3, 1, 1}, map[int]int{0: 4, 2: 7})
	_, err = Fill(context.Background(), mg, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, []int{4, 4, 7}, owners(mg))
}

func TestFillMajority(t *testing.T) {
	// The center of a 3x3 slab sees grain 0 at -x and grain 1 everywhere
	// else.
	mg := newGrid(t, [3]int{3, 3, 1}, map[int]int{3: 0, 5: 1, 1: 1, 7: 1})
	_, err := Fill(context.Background(), mg, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, mg.Owner(4))
	// Corner 0 ties between +x (grain 1) and +y (grain 0); +x is seen first.
	assert.Equal(t, 1, mg.Owner(0))
}

func TestFillSweepsDoNotCascade(t *testing.T) {
	mg := newGrid(t, [3]int{10, 1, 1}, map[int]int{0: 2})
	st, err := Fill(context.Background(), mg, 1, nil)

	var ce *polycrys.CoverageError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, 1, st.Sweeps)
	assert.Equal(t, 8, ce.Unassigned)
	assert.Equal(t, 2, mg.Owner(1))
	assert.Equal(t, polycrys.Unassigned, mg.Owner(2))

	// The first coarse cell is now full and has left the seed pool; the
	// others still hold free voxels.
	assert.Equal(t, 0, mg.CoarseFree(0))
	assert.Equal(t, 2, mg.CoarseFree(1))
	assert.Equal(t, 4, mg.Available())
	_, ok := mg.DrawSeed(rand.New(rand.Xorshift, 3))
	assert.True(t, ok)

	st, err = Fill(context.Background(), mg, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, 8, st.Sweeps)
	assert.Equal(t, 0, mg.Available())
	for c := 0; c < 5; c++ {
		assert.Equal(t, 0, mg.CoarseFree(c))
	}
	_, ok = mg.DrawSeed(rand.New(rand.Xorshift, 3))
	assert.False(t, ok)
}

func TestFillSphere(t *testing.T) {
	mg := newGrid(t, [3]int{10, 10, 10}, nil)
	center := r3.Vec{X: 5, Y: 5, Z: 5}
	for idx := 0; idx < mg.Len(); idx++ {
		if r3.Norm(r3.Sub(mg.Center(idx), center)) <= 4 {
			mg.Claim(idx, 0)
		}
	}
	require.NotZero(t, mg.Free())

	_, err := Fill(context.Background(), mg, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, mg.Free())
	for idx := 0; idx < mg.Len(); idx++ {
		assert.NotEqual(t, polycrys.Unassigned, mg.Owner(idx))
	}
}

func TestFillCanceled(t *testing.T) {
	mg := newGrid(t, [3]int{4, 4, 4}, map[int]int{0: 0})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Fill(ctx, mg, 0, nil)
	assert.ErrorIs(t, err, context.Canceled)
}
