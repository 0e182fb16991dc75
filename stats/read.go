package stats

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/phil-mansfield/polycrys"

	"github.com/phil-mansfield/table"
	"gonum.org/v1/gonum/spatial/r3"
)

func readColumns(name, file string, colIdxs []int) ([][]float64, error) {
	if file == "" {
		return nil, &polycrys.InputStatisticsError{
			Table: name, Row: -1, Reason: "no file given",
		}
	}
	cols, err := table.ReadTable(file, colIdxs, nil)
	if err != nil {
		return nil, fmt.Errorf("reading %s table: %w", name, err)
	}
	if len(cols) != len(colIdxs) || len(cols[0]) == 0 {
		return nil, &polycrys.InputStatisticsError{
			Table: name, Row: -1,
			Reason: fmt.Sprintf("'%s' has no rows", file),
		}
	}
	return cols, nil
}

// ReadDistribution reads a (value, probability) table.
func ReadDistribution(name, file string) (*Distribution, error) {
	cols, err := readColumns(name, file, []int{0, 1})
	if err != nil {
		return nil, err
	}
	bins := make([]Bin, len(cols[0]))
	for i := range bins {
		bins[i] = Bin{Value: cols[0][i], Prob: cols[1][i]}
	}
	return NewDistribution(name, bins)
}

// ReadConditional reads a (size bin, value, probability) table.
func ReadConditional(name, file string) (*Conditional, error) {
	cols, err := readColumns(name, file, []int{0, 1, 2})
	if err != nil {
		return nil, err
	}
	rows := make([][3]float64, len(cols[0]))
	for i := range rows {
		rows[i] = [3]float64{cols[0][i], cols[1][i], cols[2][i]}
	}
	return NewConditional(name, rows)
}

// readCounted reads a file whose first line declares how many rows follow.
// Each row must have between minCols and maxCols fields. Blank lines and
// lines starting with '#' are skipped.
func readCounted(
	name, file string, minCols, maxCols int,
) ([][]float64, error) {
	if file == "" {
		return nil, &polycrys.InputStatisticsError{
			Table: name, Row: -1, Reason: "no file given",
		}
	}
	f, err := os.Open(file)
	if err != nil {
		return nil, fmt.Errorf("reading %s table: %w", name, err)
	}
	defer f.Close()

	declared := -1
	rows := [][]float64{}
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || line[0] == '#' {
			continue
		}
		fields := strings.Fields(line)

		if declared < 0 {
			n, err := strconv.Atoi(fields[0])
			if len(fields) != 1 || err != nil || n < 0 {
				return nil, &polycrys.InputStatisticsError{
					Table: name, Row: -1,
					Reason: fmt.Sprintf("expected a row count header, found '%s'", line),
				}
			}
			declared = n
			continue
		}

		if len(fields) < minCols || len(fields) > maxCols {
			return nil, &polycrys.InputStatisticsError{
				Table: name, Row: len(rows),
				Reason: fmt.Sprintf("%d columns, expected %s",
					len(fields), colRange(minCols, maxCols)),
			}
		}
		row := make([]float64, len(fields))
		for i := range fields {
			if row[i], err = strconv.ParseFloat(fields[i], 64); err != nil {
				return nil, &polycrys.InputStatisticsError{
					Table: name, Row: len(rows),
					Reason: fmt.Sprintf("column %d: %s", i, err.Error()),
				}
			}
		}
		rows = append(rows, row)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading %s table: %w", name, err)
	}

	switch {
	case declared < 0:
		return nil, &polycrys.InputStatisticsError{
			Table: name, Row: -1, Reason: fmt.Sprintf("'%s' is empty", file),
		}
	case declared != len(rows):
		return nil, &polycrys.InputStatisticsError{
			Table: name, Row: -1,
			Reason: fmt.Sprintf("header declares %d rows, found %d",
				declared, len(rows)),
		}
	case declared == 0:
		return nil, &polycrys.InputStatisticsError{
			Table: name, Row: -1, Reason: fmt.Sprintf("'%s' has no rows", file),
		}
	}
	return rows, nil
}

func colRange(lo, hi int) string {
	if lo == hi {
		return strconv.Itoa(lo)
	}
	return fmt.Sprintf("%d to %d", lo, hi)
}

// ReadAxisOrientations reads a row count followed by rows of nine direction
// cosines, three per principal axis. Each axis is normalized.
func ReadAxisOrientations(file string) ([][3]r3.Vec, error) {
	rows, err := readCounted("axis orientations", file, 9, 9)
	if err != nil {
		return nil, err
	}
	frames := make([][3]r3.Vec, len(rows))
	for i, row := range rows {
		for a := 0; a < 3; a++ {
			v := r3.Vec{X: row[3*a], Y: row[3*a+1], Z: row[3*a+2]}
			if r3.Norm(v) == 0 {
				return nil, &polycrys.InputStatisticsError{
					Table: "axis orientations", Row: i,
					Reason: "axis has zero length",
				}
			}
			frames[i][a] = r3.Unit(v)
		}
	}
	return frames, nil
}

// ReadEulers reads a row count followed by measured (phi1, Phi, phi2)
// triples.
func ReadEulers(file string, degrees bool) ([]polycrys.Euler, error) {
	rows, err := readCounted("euler", file, 3, 3)
	if err != nil {
		return nil, err
	}
	scale := 1.0
	if degrees {
		scale = math.Pi / 180
	}
	es := make([]polycrys.Euler, len(rows))
	for i, row := range rows {
		es[i] = polycrys.Euler{row[0] * scale, row[1] * scale, row[2] * scale}
	}
	return es, nil
}

// ReadHistogram reads a row count followed by one bin height per row and
// returns the normalized heights in file order. A row may lead with its bin
// index, in which case the height is the last column.
func ReadHistogram(name, file string) ([]float64, error) {
	rows, err := readCounted(name, file, 1, 2)
	if err != nil {
		return nil, err
	}
	heights := make([]float64, len(rows))
	for i, row := range rows {
		heights[i] = row[len(row)-1]
	}
	return NormalizeHistogram(name, heights)
}
