package io

import (
	"fmt"
	"io"
	"path"

	"github.com/gocarina/gocsv"
	plt "github.com/phil-mansfield/pyplot"
	"gopkg.in/yaml.v3"

	"github.com/phil-mansfield/polycrys"
	"github.com/phil-mansfield/polycrys/stats"
	"github.com/phil-mansfield/polycrys/synth"
)

// GrainRecord is one row of the per-grain statistics file.
type GrainRecord struct {
	ID               int     `csv:"id"`
	Placed           bool    `csv:"placed"`
	TargetVoxels     float64 `csv:"target_voxels"`
	InitVoxels       int     `csv:"init_voxels"`
	Voxels           int     `csv:"voxels"`
	Lost             int     `csv:"lost"`
	Radius1          float64 `csv:"radius1"`
	Radius2          float64 `csv:"radius2"`
	Radius3          float64 `csv:"radius3"`
	Neighbors        int     `csv:"neighbors"`
	LowAngleFraction float64 `csv:"low_angle_fraction"`
	Surface          bool    `csv:"surface"`
	Frozen           bool    `csv:"frozen"`
}

// GrainRecords converts packed grains into statistics rows.
func GrainRecords(grains []polycrys.PackedGrain) []*GrainRecord {
	out := make([]*GrainRecord, len(grains))
	for i := range grains {
		g := &grains[i]
		out[i] = &GrainRecord{
			ID:               FileID(i),
			Placed:           g.Placed,
			TargetVoxels:     g.TargetVoxels,
			InitVoxels:       g.InitSize,
			Voxels:           g.CurrentSize,
			Lost:             g.Lost,
			Radius1:          g.Radii[0],
			Radius2:          g.Radii[1],
			Radius3:          g.Radii[2],
			Neighbors:        len(g.Neighbors),
			LowAngleFraction: g.LowAngleFraction,
			Surface:          g.OnSurface,
			Frozen:           g.Frozen,
		}
	}
	return out
}

// WriteGrainStats writes per-grain statistics as CSV.
func WriteGrainStats(w io.Writer, grains []polycrys.PackedGrain) error {
	return gocsv.Marshal(GrainRecords(grains), w)
}

// Histogram pairs a realized histogram with its target.
type Histogram struct {
	Realized []float64 `yaml:"realized"`
	Target   []float64 `yaml:"target"`
}

// Report summarizes a run.
type Report struct {
	Seed      uint64 `yaml:"seed"`
	Generator string `yaml:"generator"`
	Shape     string `yaml:"shape"`
	Structure string `yaml:"structure"`
	Dims      [3]int `yaml:"dims,flow"`
	Voxels    int    `yaml:"voxels"`

	Grains        int `yaml:"grains"`
	Placed        int `yaml:"placed"`
	Unplaced      int `yaml:"unplaced"`
	SurfaceGrains int `yaml:"surface_grains"`

	Diameter struct {
		Mean       float64 `yaml:"mean"`
		Std        float64 `yaml:"std"`
		TargetMean float64 `yaml:"target_mean"`
		KS         float64 `yaml:"ks_distance"`
	} `yaml:"diameter"`
	MeanNeighbors float64 `yaml:"mean_neighbors"`

	Orientations struct {
		FromCells     int `yaml:"from_cells"`
		FromShortfall int `yaml:"from_shortfall"`
		Uniform       int `yaml:"uniform"`
	} `yaml:"orientations"`

	Fill struct {
		Sweeps   int `yaml:"sweeps"`
		Assigned int `yaml:"assigned"`
	} `yaml:"fill"`

	Anneal struct {
		MisorientationResidual float64 `yaml:"misorientation_residual"`
		MicrotextureResidual   float64 `yaml:"microtexture_residual"`
		MisorientationPasses   int     `yaml:"misorientation_passes"`
		MicrotexturePasses     int     `yaml:"microtexture_passes"`
		Moves                  int     `yaml:"moves"`
	} `yaml:"anneal"`

	Misorientation *Histogram `yaml:"misorientation,omitempty"`
	Microtexture   *Histogram `yaml:"microtexture,omitempty"`

	Warnings []string `yaml:"warnings,omitempty"`
}

// NewReport summarizes a finished run.
func NewReport(res *synth.Result, t *stats.Tables) *Report {
	r := &Report{
		Seed:      res.Seed,
		Generator: res.Config.Generator.String(),
		Shape:     res.Config.Class.String(),
		Structure: res.Config.Structure.String(),
		Dims:      res.Grid.Fine.Width,
		Voxels:    res.Grid.Len(),

		Grains:        len(res.Grains),
		Placed:        res.Summary.Placed,
		Unplaced:      res.Summary.Unplaced,
		SurfaceGrains: res.Summary.SurfaceGrains,
		MeanNeighbors: res.Summary.MeanNeighbors,
	}
	r.Diameter.Mean = res.Summary.MeanDiameter
	r.Diameter.Std = res.Summary.StdDiameter
	r.Diameter.TargetMean = res.Summary.TargetMeanDiameter
	r.Diameter.KS = res.Summary.DiameterKS

	r.Orientations.FromCells = res.Assign.FromCells
	r.Orientations.FromShortfall = res.Assign.FromShortfall
	r.Orientations.Uniform = res.Assign.Uniform

	r.Fill.Sweeps = res.Fill.Sweeps
	r.Fill.Assigned = res.Fill.Reassigned

	r.Anneal.MisorientationResidual = res.Residuals.Misorientation
	r.Anneal.MicrotextureResidual = res.Residuals.Microtexture
	r.Anneal.MisorientationPasses = res.Residuals.MisorientationPasses
	r.Anneal.MicrotexturePasses = res.Residuals.MicrotexturePasses
	r.Anneal.Moves = res.Residuals.Moves

	if res.Misorientation != nil {
		r.Misorientation = &Histogram{res.Misorientation, t.Misorientation}
	}
	if res.Microtexture != nil {
		r.Microtexture = &Histogram{res.Microtexture, t.Microtexture}
	}
	for _, w := range res.Warnings {
		r.Warnings = append(r.Warnings, w.Error())
	}
	return r
}

// WriteReport writes a report as YAML.
func WriteReport(w io.Writer, r *Report) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return err
	}
	return enc.Close()
}

// PlotHistograms queues plots of the realized and target histograms in a
// report. The plots are written when plt.Execute is called.
func PlotHistograms(dir string, r *Report) {
	hists := []struct {
		name, xlabel string
		h            *Histogram
	}{
		{"misorientation", `Misorientation bin`, r.Misorientation},
		{"microtexture", `Low-angle fraction bin`, r.Microtexture},
	}
	for _, hist := range hists {
		if hist.h == nil {
			continue
		}
		xs := make([]float64, len(hist.h.Target))
		for i := range xs {
			xs[i] = float64(i)
		}

		plt.Figure()
		plt.Plot(xs, hist.h.Target, "k", plt.LW(2))
		plt.Plot(xs, hist.h.Realized, "r", plt.LW(2))
		plt.Title(fmt.Sprintf("%s (seed %d): target (black), realized (red)",
			hist.name, r.Seed))
		plt.XLabel(hist.xlabel, plt.FontSize(16))
		plt.YLabel(`Fraction`, plt.FontSize(16))
		plt.SaveFig(path.Join(dir, hist.name+".png"))
	}
}
