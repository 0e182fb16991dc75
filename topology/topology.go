/*package topology derives grain adjacency and per-grain voxel summaries from
a filled domain.
*/
package topology

import (
	"fmt"
	"slices"

	"github.com/phil-mansfield/polycrys"
	"github.com/phil-mansfield/polycrys/geom"

	"gonum.org/v1/gonum/spatial/r3"
)

// Find recomputes the voxel count, centroid, surface flag and face
// neighbor list of every grain from the grid. Grid owners must be indices
// into grains. Neighbor lists are sorted by index, and NeighborCount is set
// to their length. Grains which own no voxels keep their packing centroid.
func Find(grid *geom.MultiGrid, grains []polycrys.PackedGrain) error {
	sums := make([]r3.Vec, len(grains))
	for i := range grains {
		grains[i].CurrentSize = 0
		grains[i].OnSurface = false
	}

	g := &grid.Fine
	pairs := []uint64{}
	for idx := 0; idx < grid.Len(); idx++ {
		o := grid.Owner(idx)
		if o == polycrys.Unassigned {
			continue
		}
		if o < 0 || o >= len(grains) {
			return fmt.Errorf("voxel %d is owned by grain %d, but there are "+
				"only %d grains", idx, o, len(grains))
		}

		pg := &grains[o]
		pg.CurrentSize++
		sums[o] = r3.Add(sums[o], grid.Center(idx))

		x, y, z := g.Coords(idx)
		if !pg.OnSurface && g.OnFace(x, y, z) {
			pg.OnSurface = true
		}

		if x < g.Width[0]-1 {
			pairs = addPair(pairs, o, grid.Owner(idx+1))
		}
		if y < g.Width[1]-1 {
			pairs = addPair(pairs, o, grid.Owner(idx+g.Length))
		}
		if z < g.Width[2]-1 {
			pairs = addPair(pairs, o, grid.Owner(idx+g.Area))
		}
	}

	for i := range grains {
		pg := &grains[i]
		if pg.CurrentSize > 0 {
			pg.Centroid = r3.Scale(1/float64(pg.CurrentSize), sums[i])
		}
		pg.Neighbors = pg.Neighbors[:0]
	}

	slices.Sort(pairs)
	pairs = slices.Compact(pairs)
	for _, p := range pairs {
		a, b := int(p>>32), int(p&0xffffffff)
		grains[a].Neighbors = append(grains[a].Neighbors, b)
		grains[b].Neighbors = append(grains[b].Neighbors, a)
	}
	for i := range grains {
		slices.Sort(grains[i].Neighbors)
		grains[i].NeighborCount = len(grains[i].Neighbors)
	}
	return nil
}

// addPair records that grains a and b share a face. The key orders the pair
// so each adjacency is stored once.
func addPair(pairs []uint64, a, b int) []uint64 {
	if b == polycrys.Unassigned || a == b {
		return pairs
	}
	if a > b {
		a, b = b, a
	}
	return append(pairs, uint64(a)<<32|uint64(b))
}

