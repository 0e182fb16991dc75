package geom

import (
	"errors"
	"math"
	"testing"

	"github.com/phil-mansfield/polycrys"
	"github.com/phil-mansfield/polycrys/math/rand"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

const genType = rand.Xorshift

var identity = [3]r3.Vec{{X: 1}, {Y: 1}, {Z: 1}}

func TestGridCoords(t *testing.T) {
	g := NewGrid([3]int{}, [3]int{3, 4, 5})
	for idx := 0; idx < g.Volume; idx++ {
		x, y, z := g.Coords(idx)
		require.Equal(t, idx, g.Idx(x, y, z))
		require.True(t, g.BoundsCheck(x, y, z))
	}
	_, ok := g.IdxCheck(3, 0, 0)
	assert.False(t, ok)

	assert.True(t, g.OnFace(0, 1, 1))
	assert.True(t, g.OnFace(1, 1, 4))
	assert.False(t, g.OnFace(1, 1, 1))
}

func TestGridClip(t *testing.T) {
	g := NewGrid([3]int{}, [3]int{10, 10, 10})
	cb := g.Clip(CellBounds{Origin: [3]int{-3, 8, 2}, Width: [3]int{5, 5, 3}})
	assert.Equal(t, [3]int{0, 8, 2}, cb.Origin)
	assert.Equal(t, [3]int{2, 2, 3}, cb.Width)

	cb = g.Clip(CellBounds{Origin: [3]int{20, 0, 0}, Width: [3]int{2, 2, 2}})
	assert.True(t, cb.Empty())
	assert.Equal(t, 0, cb.Volume())
}

func TestSphereContainment(t *testing.T) {
	mg, err := NewMultiGrid([3]int{10, 10, 10}, 1, [3]float64{1, 1, 1})
	require.NoError(t, err)

	center := r3.Vec{X: 5, Y: 5, Z: 5}
	radii := [3]float64{4, 4, 4}
	b, err := NewBody(0, Ellipsoid{}, center, identity, radii)
	require.NoError(t, err)

	inside := 0
	for idx := 0; idx < mg.Len(); idx++ {
		p := mg.Center(idx)
		want := r3.Norm(r3.Sub(p, center)) <= 4
		require.Equal(t, want, bool(b.Contains(p)), "voxel %d at %v", idx, p)
		if want {
			inside++
		}
		// Deterministic.
		require.Equal(t, b.Contains(p), b.Contains(p))
	}
	assert.InEpsilon(t, 4.0/3*math.Pi*64, float64(inside), 0.1)
}

func TestShapeClassify(t *testing.T) {
	table := []struct {
		shape Shape
		u     [3]float64
		want  Containment
	}{
		{Ellipsoid{}, [3]float64{0.5, 0.5, 0.5}, Inside},
		{Ellipsoid{}, [3]float64{0.6, 0.6, 0.6}, Outside},
		{Superellipsoid{N: 8}, [3]float64{0.8, 0.8, 0.8}, Inside},
		{Superellipsoid{N: 2}, [3]float64{0.6, 0.6, 0.6}, Outside},
		{Superellipsoid{N: 1}, [3]float64{0.3, 0.3, 0.3}, Inside},
		{RoundedCuboid{N: 0}, [3]float64{0.99, -0.99, 0.99}, Inside},
		{RoundedCuboid{N: 0}, [3]float64{1.01, 0, 0}, Outside},
		{RoundedCuboid{N: 1}, [3]float64{0.9, 0.9, 0.1}, Inside},
		{RoundedCuboid{N: 1}, [3]float64{0.9, 0.9, 0.3}, Outside},
		{RoundedCuboid{N: 2}, [3]float64{0.4, -0.3, 0.2}, Inside},
		{RoundedCuboid{N: 2}, [3]float64{0.4, -0.4, 0.3}, Outside},
	}
	for i, test := range table {
		assert.Equal(t, test.want, test.shape.Classify(test.u), "case %d", i)
	}
}

func TestNewShapeValidation(t *testing.T) {
	_, err := NewShape(polycrys.Superellipsoid, 0)
	assert.Error(t, err)
	_, err = NewShape(polycrys.RoundedCuboid, 2.5)
	assert.Error(t, err)
	_, err = NewShape(polycrys.ShapeClass(9), 1)
	assert.Error(t, err)

	s, err := NewShape(polycrys.Ellipsoid, math.NaN())
	require.NoError(t, err)
	assert.Equal(t, polycrys.Ellipsoid, s.Class())
}

func TestUnitVolumeLimits(t *testing.T) {
	assert.InEpsilon(t, 4*math.Pi/3, Superellipsoid{N: 2}.UnitVolume(), 1e-10)
	assert.InEpsilon(t, 8.0/6, Superellipsoid{N: 1}.UnitVolume(), 1e-10)
	assert.InEpsilon(t, 8.0, RoundedCuboid{N: 0}.UnitVolume(), 1e-12)
	assert.InEpsilon(t, 8.0/6, RoundedCuboid{N: 2}.UnitVolume(), 1e-12)
	// Both branches agree at N = 1.
	lo := RoundedCuboid{N: 1}.UnitVolume()
	hi := RoundedCuboid{N: 1 + 1e-9}.UnitVolume()
	assert.InDelta(t, lo, hi, 1e-6)
}

// voxelVolume counts the voxels of a body centered in a domain large enough
// to hold it.
func voxelVolume(t *testing.T, b *Body, side int) float64 {
	mg, err := NewMultiGrid([3]int{side, side, side}, 1, [3]float64{1, 1, 1})
	require.NoError(t, err)
	cb := mg.BoundingBox(b.Center, b.Reach())
	n := 0
	for z := cb.Origin[2]; z < cb.Origin[2]+cb.Width[2]; z++ {
		for y := cb.Origin[1]; y < cb.Origin[1]+cb.Width[1]; y++ {
			for x := cb.Origin[0]; x < cb.Origin[0]+cb.Width[0]; x++ {
				if b.Contains(mg.Center(mg.Fine.Idx(x, y, z))) {
					n++
				}
			}
		}
	}
	return float64(n)
}

func TestVolumeConservation(t *testing.T) {
	c, s := 1/math.Sqrt(2), 1/math.Sqrt(2)
	rotated := [3]r3.Vec{{X: c, Y: s}, {X: -s, Y: c}, {Z: 1}}

	table := []struct {
		class  polycrys.ShapeClass
		n      float64
		ratios [3]float64
		axes   [3]r3.Vec
	}{
		{polycrys.Ellipsoid, 0, [3]float64{1, 1, 1}, identity},
		{polycrys.Ellipsoid, 0, [3]float64{1, 0.7, 0.5}, rotated},
		{polycrys.Superellipsoid, 3, [3]float64{1, 0.8, 0.6}, identity},
		{polycrys.Superellipsoid, 1.5, [3]float64{1, 0.9, 0.9}, rotated},
		{polycrys.RoundedCuboid, 0.5, [3]float64{1, 0.8, 0.7}, identity},
		{polycrys.RoundedCuboid, 1.5, [3]float64{1, 1, 0.8}, rotated},
	}

	const vol = 3000.0
	for i, test := range table {
		shape, err := NewShape(test.class, test.n)
		require.NoError(t, err, "case %d", i)
		radii, err := Radii(shape, vol, test.ratios)
		require.NoError(t, err, "case %d", i)

		center := r3.Vec{X: 20.3, Y: 19.8, Z: 20.1}
		b, err := NewBody(i, shape, center, test.axes, radii)
		require.NoError(t, err, "case %d", i)
		assert.InEpsilon(t, vol, b.Volume(), 1e-9, "case %d", i)
		assert.InEpsilon(t, vol, voxelVolume(t, b, 40), 0.1, "case %d", i)
	}
}

func TestNewBodyDegenerate(t *testing.T) {
	coplanar := [3]r3.Vec{{X: 1}, {Y: 1}, {X: 1, Y: 1}}
	_, err := NewBody(7, Ellipsoid{}, r3.Vec{}, coplanar, [3]float64{1, 1, 1})
	var gde *polycrys.GeometryDegeneracyError
	require.True(t, errors.As(err, &gde))
	assert.Equal(t, 7, gde.Grain)

	_, err = NewBody(3, Ellipsoid{}, r3.Vec{}, identity, [3]float64{1, 0, 1})
	require.True(t, errors.As(err, &gde))
	assert.Equal(t, 3, gde.Grain)
}

func TestMultiGridIndexing(t *testing.T) {
	mg, err := NewMultiGrid([3]int{10, 8, 6}, 4, [3]float64{0.5, 0.5, 1})
	require.NoError(t, err)
	assert.Equal(t, [3]int{3, 2, 2}, mg.Coarse.Width)

	total := 0
	for c := 0; c < mg.Coarse.Volume; c++ {
		total += mg.CoarseFree(c)
		center := mg.CoarseCenter(c)
		assert.Equal(t, c, mg.CoarseIdx(center))
	}
	assert.Equal(t, mg.Len(), total)

	p := mg.Center(mg.Fine.Idx(1, 2, 3))
	assert.Equal(t, r3.Vec{X: 0.75, Y: 1.25, Z: 3.5}, p)
	assert.Equal(t, r3.Vec{X: 5, Y: 4, Z: 6}, mg.Extent())

	_, err = NewMultiGrid([3]int{10, 0, 6}, 4, [3]float64{1, 1, 1})
	assert.Error(t, err)
	_, err = NewMultiGrid([3]int{10, 10, 6}, 0, [3]float64{1, 1, 1})
	assert.Error(t, err)
}

func TestMultiGridSeedPool(t *testing.T) {
	mg, err := NewMultiGrid([3]int{4, 4, 4}, 2, [3]float64{1, 1, 1})
	require.NoError(t, err)
	gen := rand.New(genType, 11)

	seen := map[int]bool{}
	for {
		idx, ok := mg.DrawSeed(gen)
		if !ok {
			break
		}
		c := mg.CoarseIdx(idx)
		require.False(t, seen[c], "coarse cell %d drawn twice", c)
		seen[c] = true
	}
	assert.Len(t, seen, 8)

	// Fill coarse cell 0 completely.
	for idx := 0; idx < mg.Len(); idx++ {
		if mg.CoarseIdx(idx) == 0 {
			mg.Claim(idx, 5)
		}
	}
	assert.Equal(t, 0, mg.CoarseFree(0))
	assert.Equal(t, 7, mg.Available())
	assert.Equal(t, mg.Len()-8, mg.Free())

	mg.ResetTried()
	seen = map[int]bool{}
	for {
		idx, ok := mg.DrawSeed(gen)
		if !ok {
			break
		}
		seen[mg.CoarseIdx(idx)] = true
	}
	assert.Len(t, seen, 7)
	assert.False(t, seen[0])

	// Transfers keep the counts.
	mg.Claim(0, 6)
	assert.Equal(t, 6, mg.Owner(0))
	assert.Equal(t, mg.Len()-8, mg.Free())
}

func TestMultiGridClaimWhileDrawing(t *testing.T) {
	mg, err := NewMultiGrid([3]int{6, 6, 6}, 3, [3]float64{1, 1, 1})
	require.NoError(t, err)
	gen := rand.New(genType, 5)

	idx, ok := mg.DrawSeed(gen)
	require.True(t, ok)
	// Claim a cell that has not been tried yet.
	target := -1
	for c := 0; c < mg.Coarse.Volume; c++ {
		if c != mg.CoarseIdx(idx) {
			target = c
			break
		}
	}
	for i := 0; i < mg.Len(); i++ {
		if mg.CoarseIdx(i) == target {
			mg.Claim(i, 1)
		}
	}

	n := 1
	for {
		idx, ok := mg.DrawSeed(gen)
		if !ok {
			break
		}
		require.NotEqual(t, target, mg.CoarseIdx(idx))
		n++
	}
	assert.Equal(t, 7, n)
}

func BenchmarkContains(b *testing.B) {
	body, _ := NewBody(0, RoundedCuboid{N: 0.5}, r3.Vec{}, identity,
		[3]float64{3, 2, 1})
	p := r3.Vec{X: 0.3, Y: 0.2, Z: 0.1}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = body.Contains(p)
	}
}
