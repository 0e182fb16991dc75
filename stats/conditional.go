package stats

import (
	"fmt"
	"sort"

	"github.com/phil-mansfield/polycrys"
)

// SizeBin returns the size bin of a grain with the given equivalent diameter.
func SizeBin(diameter float64) int {
	if diameter < 0 {
		return 0
	}
	return int(diameter)
}

// Conditional is a family of distributions keyed by size bin.
type Conditional struct {
	Name     string
	SizeBins []int
	Dists    []*Distribution
}

// NewConditional builds a conditional table from (size bin, value,
// probability) rows. Rows may appear in any order, but the values within one
// size bin must be distinct.
func NewConditional(name string, rows [][3]float64) (*Conditional, error) {
	if len(rows) == 0 {
		return nil, &polycrys.InputStatisticsError{
			Table: name, Row: -1, Reason: "table is empty",
		}
	}

	bySize := map[int][]Bin{}
	for i, r := range rows {
		if r[0] < 0 || r[0] != float64(int(r[0])) {
			return nil, &polycrys.InputStatisticsError{
				Table: name, Row: i,
				Reason: fmt.Sprintf("size bin %g is not a non-negative integer", r[0]),
			}
		}
		sb := int(r[0])
		bySize[sb] = append(bySize[sb], Bin{Value: r[1], Prob: r[2]})
	}

	c := &Conditional{Name: name}
	for sb := range bySize {
		c.SizeBins = append(c.SizeBins, sb)
	}
	sort.Ints(c.SizeBins)

	for _, sb := range c.SizeBins {
		bins := bySize[sb]
		sort.SliceStable(bins, func(i, j int) bool {
			return bins[i].Value < bins[j].Value
		})
		d, err := NewDistribution(fmt.Sprintf("%s[size %d]", name, sb), bins)
		if err != nil {
			return nil, err
		}
		c.Dists = append(c.Dists, d)
	}
	return c, nil
}

// For returns the distribution of the given size bin, falling back to the
// nearest size bin in the table.
func (c *Conditional) For(sizeBin int) *Distribution {
	i := sort.SearchInts(c.SizeBins, sizeBin)
	switch {
	case i == len(c.SizeBins):
		return c.Dists[i-1]
	case c.SizeBins[i] == sizeBin || i == 0:
		return c.Dists[i]
	case sizeBin-c.SizeBins[i-1] <= c.SizeBins[i]-sizeBin:
		return c.Dists[i-1]
	}
	return c.Dists[i]
}
