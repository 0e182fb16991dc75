package geom

import (
	"fmt"

	"github.com/phil-mansfield/polycrys"
	"github.com/phil-mansfield/polycrys/math/rand"

	"gonum.org/v1/gonum/spatial/r3"
)

// MultiGrid is the packing domain. It stores the owning grain of every fine
// voxel in a single buffer and tracks, for each coarse cell, how many of its
// fine voxels are still free. Coarse cells with at least one free voxel are
// available as seed locations.
//
// All arithmetic which converts between fine and coarse indices lives here.
type MultiGrid struct {
	Fine, Coarse Grid
	Ratio        int
	// Res is the physical size of a fine voxel along each axis.
	Res [3]float64

	owner      []int32
	coarseFree []int32
	free       int

	// pool holds the available coarse cells. pool[:active] are the cells
	// which have not yet been tried as a seed for the current grain.
	pool    []int32
	poolPos []int32
	active  int
}

// NewMultiGrid creates a domain with the given number of fine voxels along
// each axis. Coarse cells span ratio fine voxels per axis; when dims is not a
// multiple of ratio the last coarse cell along that axis is partial.
func NewMultiGrid(dims [3]int, ratio int, res [3]float64) (*MultiGrid, error) {
	if ratio <= 0 {
		return nil, fmt.Errorf("coarse ratio must be positive, got %d", ratio)
	}
	for i := 0; i < 3; i++ {
		if dims[i] <= 0 {
			return nil, fmt.Errorf("domain dimensions must be positive, got %v", dims)
		}
		if !(res[i] > 0) {
			return nil, fmt.Errorf("voxel resolution must be positive, got %v", res)
		}
	}

	mg := &MultiGrid{Ratio: ratio, Res: res}
	mg.Fine.Init([3]int{}, dims)
	cDims := [3]int{}
	for i := range cDims {
		cDims[i] = ceilDiv(dims[i], ratio)
	}
	mg.Coarse.Init([3]int{}, cDims)

	mg.owner = make([]int32, mg.Fine.Volume)
	for i := range mg.owner {
		mg.owner[i] = polycrys.Unassigned
	}
	mg.free = mg.Fine.Volume

	mg.coarseFree = make([]int32, mg.Coarse.Volume)
	for idx := range mg.owner {
		mg.coarseFree[mg.CoarseIdx(idx)]++
	}

	mg.pool = make([]int32, mg.Coarse.Volume)
	mg.poolPos = make([]int32, mg.Coarse.Volume)
	for i := range mg.pool {
		mg.pool[i] = int32(i)
		mg.poolPos[i] = int32(i)
	}
	mg.active = len(mg.pool)

	return mg, nil
}

// Len returns the number of fine voxels.
func (mg *MultiGrid) Len() int { return len(mg.owner) }

// Owner returns the grain which owns a fine voxel, or polycrys.Unassigned.
func (mg *MultiGrid) Owner(idx int) int { return int(mg.owner[idx]) }

// Free returns the number of unclaimed fine voxels.
func (mg *MultiGrid) Free() int { return mg.free }

// Available returns the number of coarse cells which still contain a free
// fine voxel.
func (mg *MultiGrid) Available() int { return len(mg.pool) }

// CoarseIdx returns the index of the coarse cell containing a fine voxel.
func (mg *MultiGrid) CoarseIdx(fineIdx int) int {
	x, y, z := mg.Fine.Coords(fineIdx)
	return mg.Coarse.Idx(x/mg.Ratio, y/mg.Ratio, z/mg.Ratio)
}

// CoarseCenter returns the fine voxel at the center of a coarse cell.
func (mg *MultiGrid) CoarseCenter(coarseIdx int) int {
	cx, cy, cz := mg.Coarse.Coords(coarseIdx)
	c := [3]int{cx, cy, cz}
	f := [3]int{}
	for i := 0; i < 3; i++ {
		lo := c[i] * mg.Ratio
		hi := lo + mg.Ratio
		if hi > mg.Fine.Width[i] {
			hi = mg.Fine.Width[i]
		}
		f[i] = (lo + hi) / 2
	}
	return mg.Fine.Idx(f[0], f[1], f[2])
}

// CoarseFree returns the number of free fine voxels in a coarse cell.
func (mg *MultiGrid) CoarseFree(coarseIdx int) int {
	return int(mg.coarseFree[coarseIdx])
}

// Center returns the physical position of a fine voxel's center.
func (mg *MultiGrid) Center(idx int) r3.Vec {
	x, y, z := mg.Fine.Coords(idx)
	return r3.Vec{
		X: (float64(x) + 0.5) * mg.Res[0],
		Y: (float64(y) + 0.5) * mg.Res[1],
		Z: (float64(z) + 0.5) * mg.Res[2],
	}
}

// Extent returns the physical size of the domain.
func (mg *MultiGrid) Extent() r3.Vec {
	return r3.Vec{
		X: float64(mg.Fine.Width[0]) * mg.Res[0],
		Y: float64(mg.Fine.Width[1]) * mg.Res[1],
		Z: float64(mg.Fine.Width[2]) * mg.Res[2],
	}
}

// OnFace returns true if a fine voxel lies on the domain boundary.
func (mg *MultiGrid) OnFace(idx int) bool {
	x, y, z := mg.Fine.Coords(idx)
	return mg.Fine.OnFace(x, y, z)
}

// BoundingBox returns the fine cells within halfWidth (physical units, plus
// one voxel of padding) of p, clipped to the domain.
func (mg *MultiGrid) BoundingBox(p r3.Vec, halfWidth float64) CellBounds {
	pos := [3]float64{p.X, p.Y, p.Z}
	cb := CellBounds{}
	for i := 0; i < 3; i++ {
		lo := int((pos[i]-halfWidth)/mg.Res[i]) - 1
		hi := int((pos[i]+halfWidth)/mg.Res[i]) + 2
		cb.Origin[i], cb.Width[i] = lo, hi-lo
	}
	return mg.Fine.Clip(cb)
}

// DrawSeed picks a uniformly random coarse cell which is available and has
// not been tried since the last ResetTried, marks it as tried, and returns its
// central fine voxel. ok is false once every available cell has been tried.
func (mg *MultiGrid) DrawSeed(gen *rand.Generator) (fineIdx int, ok bool) {
	if mg.active == 0 {
		return -1, false
	}
	k := gen.UniformInt(0, mg.active)
	c := int(mg.pool[k])
	mg.swapPool(k, mg.active-1)
	mg.active--
	return mg.CoarseCenter(c), true
}

// ResetTried makes every available coarse cell eligible as a seed again.
func (mg *MultiGrid) ResetTried() { mg.active = len(mg.pool) }

// Claim gives a fine voxel to a grain. Claiming a voxel that another grain
// already owns transfers it without changing the free counts. Packing and gap
// filling both claim through here, so a coarse cell stays in the seed pool
// exactly as long as one of its fine voxels is free.
func (mg *MultiGrid) Claim(idx, grain int) {
	if mg.owner[idx] == polycrys.Unassigned && grain != polycrys.Unassigned {
		c := mg.CoarseIdx(idx)
		mg.coarseFree[c]--
		mg.free--
		if mg.coarseFree[c] == 0 {
			mg.removeFromPool(c)
		}
	}
	mg.owner[idx] = int32(grain)
}

func (mg *MultiGrid) swapPool(i, j int) {
	ci, cj := mg.pool[i], mg.pool[j]
	mg.pool[i], mg.pool[j] = cj, ci
	mg.poolPos[cj], mg.poolPos[ci] = int32(i), int32(j)
}

func (mg *MultiGrid) removeFromPool(c int) {
	pos := int(mg.poolPos[c])
	if pos < 0 {
		return
	}
	if pos < mg.active {
		mg.swapPool(pos, mg.active-1)
		pos = mg.active - 1
		mg.active--
	}
	last := len(mg.pool) - 1
	mg.swapPool(pos, last)
	mg.pool = mg.pool[:last]
	mg.poolPos[c] = -1
}
