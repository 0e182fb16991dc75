package stats

import (
	"math"

	"github.com/phil-mansfield/polycrys"
	"github.com/phil-mansfield/polycrys/crystal"
)

const (
	// EulerBins is the number of bins along each Euler angle.
	EulerBins = 18
	// EulerBinWidth is the width of an Euler bin: 5 degrees.
	EulerBinWidth = math.Pi / 36
	eulerCells    = EulerBins * EulerBins * EulerBins
)

// EulerHistogram counts measured orientations in 18 x 18 x 18 cells
// covering [0, pi/2]^3 of Euler space.
type EulerHistogram struct {
	Counts [eulerCells]float64
	Total  float64
}

// EulerCell returns the raster index of a cell, with phi1 varying fastest.
func EulerCell(i, j, k int) int { return i + EulerBins*(j+EulerBins*k) }

// EulerCellCoords inverts EulerCell.
func EulerCellCoords(cell int) (i, j, k int) {
	return cell % EulerBins, (cell / EulerBins) % EulerBins, cell / (EulerBins * EulerBins)
}

// Add counts one orientation if it lies inside the histogram's domain.
func (h *EulerHistogram) Add(e polycrys.Euler, weight float64) bool {
	var idx [3]int
	for a := 0; a < 3; a++ {
		if e[a] < 0 || e[a] > math.Pi/2 {
			return false
		}
		idx[a] = int(e[a] / EulerBinWidth)
		if idx[a] == EulerBins {
			idx[a] = EulerBins - 1
		}
	}
	h.Counts[EulerCell(idx[0], idx[1], idx[2])] += weight
	h.Total += weight
	return true
}

// NewEulerHistogram symmetrizes measured orientations with the crystal's
// point group and the given sample symmetry operators, and bins every
// equivalent which falls in [0, pi/2]^3.
func NewEulerHistogram(
	measured []polycrys.Euler, st crystal.Structure, sample []crystal.Matrix,
) (*EulerHistogram, error) {
	h := &EulerHistogram{}
	for _, e := range measured {
		for _, eq := range st.Equivalents(e, sample) {
			h.Add(eq, 1)
		}
	}
	if h.Total == 0 {
		return nil, &polycrys.InputStatisticsError{
			Table: "euler", Row: -1,
			Reason: "no measured orientation has an equivalent in the binned region",
		}
	}
	return h, nil
}
