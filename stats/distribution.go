/*package stats holds the distribution tables which drive synthesis and reads
them from whitespace-separated column files.

A Distribution is a list of (value, probability) bins. A Conditional is a set
of Distributions keyed by grain size bin, where the size bin of a grain is the
integer part of its equivalent diameter.
*/
package stats

import (
	"fmt"
	"math"
	"sort"

	"github.com/phil-mansfield/polycrys"

	"gonum.org/v1/gonum/floats"
)

// Bin is one row of a distribution table.
type Bin struct {
	Value, Prob float64
}

// Distribution is a normalized histogram over increasing bin values.
type Distribution struct {
	Name string
	Bins []Bin
	// lo[i] is the cumulative probability below bin i.
	lo      []float64
	maxProb float64
}

// NewDistribution validates and normalizes a table. Bin values must be
// finite and strictly increasing, probabilities must be non-negative, and at
// least one bin must have positive probability.
func NewDistribution(name string, bins []Bin) (*Distribution, error) {
	if len(bins) == 0 {
		return nil, &polycrys.InputStatisticsError{
			Table: name, Row: -1, Reason: "table is empty",
		}
	}

	probs := make([]float64, len(bins))
	for i, b := range bins {
		if math.IsNaN(b.Value) || math.IsInf(b.Value, 0) {
			return nil, &polycrys.InputStatisticsError{
				Table: name, Row: i, Reason: "bin value is not finite",
			}
		}
		if !(b.Prob >= 0) || math.IsInf(b.Prob, 0) {
			return nil, &polycrys.InputStatisticsError{
				Table: name, Row: i,
				Reason: fmt.Sprintf("probability %g is invalid", b.Prob),
			}
		}
		if i > 0 && !(b.Value > bins[i-1].Value) {
			return nil, &polycrys.InputStatisticsError{
				Table: name, Row: i, Reason: "bin has zero or negative width",
			}
		}
		probs[i] = b.Prob
	}

	total := floats.Sum(probs)
	if !(total > 0) {
		return nil, &polycrys.InputStatisticsError{
			Table: name, Row: -1, Reason: "all probabilities are zero",
		}
	}
	floats.Scale(1/total, probs)

	d := &Distribution{
		Name: name,
		Bins: make([]Bin, len(bins)),
		lo:   make([]float64, len(bins)),
	}
	cum := floats.CumSum(make([]float64, len(probs)), probs)
	for i := range bins {
		d.Bins[i] = Bin{Value: bins[i].Value, Prob: probs[i]}
		if i > 0 {
			d.lo[i] = cum[i-1]
		}
	}
	d.maxProb = floats.Max(probs)
	return d, nil
}

// Len returns the number of bins.
func (d *Distribution) Len() int { return len(d.Bins) }

// MaxProb returns the largest bin probability.
func (d *Distribution) MaxProb() float64 { return d.maxProb }

// SampleIndex maps a uniform draw u in [0, 1) to a bin: the last bin with
// non-zero probability whose cumulative probability below it is less than u.
func (d *Distribution) SampleIndex(u float64) int {
	idx := sort.Search(len(d.lo), func(i int) bool { return d.lo[i] >= u }) - 1
	if idx < 0 {
		idx = 0
	}
	for idx > 0 && d.Bins[idx].Prob == 0 {
		idx--
	}
	for idx < len(d.Bins)-1 && d.Bins[idx].Prob == 0 {
		idx++
	}
	return idx
}

// Sample maps a uniform draw to a bin value.
func (d *Distribution) Sample(u float64) float64 {
	return d.Bins[d.SampleIndex(u)].Value
}

// BinOf returns the last bin whose value is below x, or 0 if there is none.
func (d *Distribution) BinOf(x float64) int {
	idx := sort.Search(len(d.Bins), func(i int) bool {
		return d.Bins[i].Value >= x
	}) - 1
	if idx < 0 {
		return 0
	}
	return idx
}

// ProbOf returns the probability of the bin containing x.
func (d *Distribution) ProbOf(x float64) float64 {
	return d.Bins[d.BinOf(x)].Prob
}

// ProbAt returns the probability of the bin whose value is exactly v, or zero
// if no bin has that value. It is used for integer-valued tables.
func (d *Distribution) ProbAt(v float64) float64 {
	i := sort.Search(len(d.Bins), func(i int) bool {
		return d.Bins[i].Value >= v
	})
	if i < len(d.Bins) && d.Bins[i].Value == v {
		return d.Bins[i].Prob
	}
	return 0
}

// Mean returns the probability-weighted mean bin value.
func (d *Distribution) Mean() float64 {
	sum := 0.0
	for _, b := range d.Bins {
		sum += b.Value * b.Prob
	}
	return sum
}

// Probs returns the normalized probabilities in bin order.
func (d *Distribution) Probs() []float64 {
	out := make([]float64, len(d.Bins))
	for i := range d.Bins {
		out[i] = d.Bins[i].Prob
	}
	return out
}
