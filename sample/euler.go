package sample

import (
	"errors"
	"math"

	"github.com/phil-mansfield/polycrys"
	"github.com/phil-mansfield/polycrys/math/rand"
	"github.com/phil-mansfield/polycrys/stats"
)

// AssignStats reports how AssignEulers distributed orientations.
type AssignStats struct {
	// FromCells is the number of grains given an angle from their cell's
	// rounded share.
	FromCells int
	// FromShortfall is the number given an angle from the cell with the
	// largest unmet density.
	FromShortfall int
	// Uniform is the number given a uniformly random orientation.
	Uniform int
}

// AssignEulers gives every grain an orientation drawn from the histogram.
// Each populated cell, in raster order, receives round(n count / total)
// grains with angles jittered uniformly inside the cell. Rounding shortfall
// goes one grain at a time to the cell with the largest unmet density, and
// once no cell has unmet density the remaining grains get uniformly random
// orientations. Grains are visited in a random order so that orientation is
// not correlated with size.
func AssignEulers(
	grains []polycrys.Grain, h *stats.EulerHistogram, gen *rand.Generator,
) (AssignStats, error) {
	st := AssignStats{}
	if h == nil || !(h.Total > 0) {
		return st, errors.New("euler histogram is empty")
	}

	n := len(grains)
	order := gen.Perm(n)
	next := 0
	assign := func(e polycrys.Euler) {
		grains[order[next]].Euler = e
		next++
	}

	target := make([]float64, len(h.Counts))
	given := make([]int, len(h.Counts))
	for cell, count := range h.Counts {
		if count == 0 {
			continue
		}
		target[cell] = float64(n) * count / h.Total
		num := int(math.Round(target[cell]))
		for k := 0; k < num && next < n; k++ {
			assign(jitter(cell, gen))
			given[cell]++
			st.FromCells++
		}
	}

	for next < n {
		best, bestUnmet := -1, 0.0
		for cell := range target {
			if unmet := target[cell] - float64(given[cell]); unmet > bestUnmet {
				best, bestUnmet = cell, unmet
			}
		}
		if best < 0 {
			break
		}
		assign(jitter(best, gen))
		given[best]++
		st.FromShortfall++
	}

	for next < n {
		assign(polycrys.Euler{
			gen.Uniform(0, 2*math.Pi),
			gen.Uniform(0, math.Pi),
			gen.Uniform(0, 2*math.Pi),
		})
		st.Uniform++
	}
	return st, nil
}

// jitter returns a uniformly random angle triple inside a histogram cell.
func jitter(cell int, gen *rand.Generator) polycrys.Euler {
	i, j, k := stats.EulerCellCoords(cell)
	w := stats.EulerBinWidth
	e := polycrys.Euler{}
	gen.UniformAt(0, w, e[:])
	e[0] += float64(i) * w
	e[1] += float64(j) * w
	e[2] += float64(k) * w
	return e
}
