/*package io reads run configurations and writes the files describing a
finished structure.
*/
package io

import (
	"fmt"
	"io"
	"os"
	"path"

	"github.com/phil-mansfield/polycrys/stats"
	"github.com/phil-mansfield/polycrys/synth"
)

// WriteAll writes every output file named in con to con.Directory and
// queues histogram plots if con.PlotDir is set.
func WriteAll(con *OutputConfig, res *synth.Result, t *stats.Tables) error {
	if err := os.MkdirAll(con.Directory, 0755); err != nil {
		return err
	}

	report := NewReport(res, t)
	outputs := []struct {
		name  string
		write func(w io.Writer) error
	}{
		{con.VTKFile, func(w io.Writer) error {
			return WriteVTK(w, res.Grid, fmt.Sprintf("polycrys seed %d", res.Seed))
		}},
		{con.VolumeFile, func(w io.Writer) error {
			return WriteVolume(w, res.Grid, res.Grains)
		}},
		{con.GrainsFile, func(w io.Writer) error {
			return WriteGrains(w, res.Grains)
		}},
		{con.StatsFile, func(w io.Writer) error {
			return WriteGrainStats(w, res.Grains)
		}},
		{con.ReportFile, func(w io.Writer) error {
			return WriteReport(w, report)
		}},
	}

	for _, out := range outputs {
		if out.name == "" {
			continue
		}
		if err := writeFile(path.Join(con.Directory, out.name), out.write); err != nil {
			return err
		}
	}

	if con.ValidPlotDir() {
		if err := os.MkdirAll(con.PlotDir, 0755); err != nil {
			return err
		}
		PlotHistograms(con.PlotDir, report)
	}
	return nil
}

func writeFile(fname string, write func(w io.Writer) error) error {
	f, err := os.Create(fname)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", fname, err)
	}
	return f.Close()
}
