/*package fill assigns the voxels which packing left unclaimed by repeatedly
giving each one to the grain that owns most of its face neighbors.
*/
package fill

import (
	"context"
	"log/slog"

	"github.com/phil-mansfield/polycrys"
	"github.com/phil-mansfield/polycrys/geom"
	"github.com/phil-mansfield/polycrys/logging"
)

// Stats summarizes a fill.
type Stats struct {
	Sweeps     int
	Reassigned int
}

// Fill runs sweeps until one reassigns nothing. In each sweep every
// unassigned voxel looks at its face neighbors in the order -x, +x, -y, +y,
// -z, +z and votes for the grain owning the most of them, ties going to the
// grain seen first. Votes are applied together at the end of the sweep, so a
// voxel assigned in one sweep only influences its neighbors in the next.
//
// maxSweeps bounds the number of sweeps; zero means no bound. If voxels are
// still unassigned when filling stops, the grid is returned as far as it got
// together with a *polycrys.CoverageError.
func Fill(
	ctx context.Context, grid *geom.MultiGrid, maxSweeps int, log *slog.Logger,
) (Stats, error) {
	log = logging.Or(log)
	st := Stats{}

	pending := make([]int, 0, grid.Free())
	for idx := 0; idx < grid.Len(); idx++ {
		if grid.Owner(idx) == polycrys.Unassigned {
			pending = append(pending, idx)
		}
	}

	type vote struct{ idx, grain int }
	votes := make([]vote, 0, len(pending))
	var tally voteTally

	for len(pending) > 0 {
		if maxSweeps > 0 && st.Sweeps >= maxSweeps {
			break
		}
		if err := ctx.Err(); err != nil {
			return st, err
		}
		st.Sweeps++

		votes = votes[:0]
		for _, idx := range pending {
			tally.reset()
			forEachFaceNeighbor(grid, idx, func(n int) {
				if o := grid.Owner(n); o != polycrys.Unassigned {
					tally.add(o)
				}
			})
			if g, ok := tally.winner(); ok {
				votes = append(votes, vote{idx, g})
			}
		}
		if len(votes) == 0 {
			break
		}

		for _, v := range votes {
			grid.Claim(v.idx, v.grain)
		}
		st.Reassigned += len(votes)

		rest := pending[:0]
		for _, idx := range pending {
			if grid.Owner(idx) == polycrys.Unassigned {
				rest = append(rest, idx)
			}
		}
		pending = rest
		log.Debug("fill sweep", "sweep", st.Sweeps,
			"assigned", len(votes), "remaining", len(pending))
	}

	log.Info("filled gaps", "sweeps", st.Sweeps, "voxels", st.Reassigned)
	if len(pending) > 0 {
		return st, &polycrys.CoverageError{
			Unassigned: len(pending),
			Fraction:   float64(len(pending)) / float64(grid.Len()),
			Sweeps:     st.Sweeps,
		}
	}
	return st, nil
}

// forEachFaceNeighbor calls f on the face neighbors of idx which lie inside
// the grid, in the order -x, +x, -y, +y, -z, +z.
func forEachFaceNeighbor(grid *geom.MultiGrid, idx int, f func(n int)) {
	g := &grid.Fine
	x, y, z := g.Coords(idx)
	if x > 0 {
		f(idx - 1)
	}
	if x < g.Width[0]-1 {
		f(idx + 1)
	}
	if y > 0 {
		f(idx - g.Length)
	}
	if y < g.Width[1]-1 {
		f(idx + g.Length)
	}
	if z > 0 {
		f(idx - g.Area)
	}
	if z < g.Width[2]-1 {
		f(idx + g.Area)
	}
}

// voteTally counts at most six votes in the order they arrive.
type voteTally struct {
	grains [6]int
	counts [6]int
	n      int
}

func (t *voteTally) reset() { t.n = 0 }

func (t *voteTally) add(g int) {
	for i := 0; i < t.n; i++ {
		if t.grains[i] == g {
			t.counts[i]++
			return
		}
	}
	t.grains[t.n], t.counts[t.n] = g, 1
	t.n++
}

// winner returns the grain with the strictly largest count, preferring the
// one which arrived first.
func (t *voteTally) winner() (int, bool) {
	if t.n == 0 {
		return polycrys.Unassigned, false
	}
	best := 0
	for i := 1; i < t.n; i++ {
		if t.counts[i] > t.counts[best] {
			best = i
		}
	}
	return t.grains[best], true
}
