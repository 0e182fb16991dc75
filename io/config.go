package io

import (
	"fmt"
	"strings"

	"gopkg.in/gcfg.v1"

	"github.com/phil-mansfield/polycrys"
	"github.com/phil-mansfield/polycrys/anneal"
	"github.com/phil-mansfield/polycrys/crystal"
	"github.com/phil-mansfield/polycrys/logging"
	"github.com/phil-mansfield/polycrys/math/rand"
	"github.com/phil-mansfield/polycrys/pack"
	"github.com/phil-mansfield/polycrys/sample"
	"github.com/phil-mansfield/polycrys/stats"
	"github.com/phil-mansfield/polycrys/synth"
)

const (
	ExampleSynthesisFile = `[Synthesis]

#######################
# Required Parameters #
#######################

# Number of grains to sample.
Grains = 1000

#######################
# Optional Parameters #
#######################

# Shape used for containment tests. Must be one of
# [ Ellipsoid | Superellipsoid | RoundedCuboid ]. Default is Ellipsoid.
# ShapeClass = Ellipsoid

# Crystal symmetry used for misorientations and for symmetrizing the measured
# Euler angles. Must be one of [ Cubic | Hexagonal ]. Default is Cubic.
# Structure = Cubic

# Physical size of a voxel. Default is 1.
# Resolution = 0.25

# Number of fine voxels along each side of a coarse seed cell. Default is 4.
# CoarseRatio = 4

# Largest fraction of a grain which may land on voxels owned by earlier
# grains. Default is 0.1.
# OverlapAllowed = 0.1

# What to do with overlapping voxels: [ Reject | Displace ]. Displace lets
# every other grain take voxels from earlier grains, but no grain gives up
# more than a fifth of itself. Default is Reject.
# OverlapPolicy = Reject

# Domain volume as a fraction of the total sampled grain volume. Ignored if
# the voxel counts below are set. Default is 0.9.
# FillFraction = 0.9

# Number of voxels along each axis.
# XVoxels = 128
# YVoxels = 128
# ZVoxels = 128

# Random seed. If not set, the wall clock is used and the seed is written to
# the report.
# Seed = 1234

# Random number algorithm: [ Xorshift | Golang ]. Golang uses the standard
# library's PCG source. Default is Xorshift.
# Generator = Xorshift

# Loop caps. MaxFillSweeps = 0 means no cap.
# MaxSeedRetries = 2000
# MaxShapeDraws = 10000
# MaxFillSweeps = 0

[Tables]

# Whitespace-delimited tables. Diameter, BOverA, COverA, COverB and Euler
# are required. ShapeExponent is required for non-ellipsoidal shapes.
# NeighborCount and NeighborSize must be given together. The Euler,
# AxisOrientations, Misorientation and Microtexture tables start with a line
# giving the number of rows which follow.
Diameter = path/to/diameter.txt
BOverA = path/to/b_over_a.txt
COverA = path/to/c_over_a.txt
COverB = path/to/c_over_b.txt
Euler = path/to/eulers.txt

# ShapeExponent = path/to/n.txt
# AxisOrientations = path/to/axes.txt
# NeighborCount = path/to/svn.txt
# NeighborSize = path/to/svs.txt
# Misorientation = path/to/misorientation.txt
# Microtexture = path/to/microtexture.txt

# Set if the Euler table is in degrees rather than radians.
# EulerDegrees = false

[Anneal]

# MisorientationPasses = 10
# MisorientationMoves = 250
# MicrotexturePasses = 50
# MicrotextureMoves = 25
# LowAngle = 15

[Output]

#######################
# Required Parameters #
#######################

# Directory which output files will be written to.
Directory = path/to/output/dir

#######################
# Optional Parameters #
#######################

# VolumeFile = volume.txt
# VTKFile = grains.vtk
# GrainsFile = grains.txt
# StatsFile = grains.csv
# ReportFile = report.yaml

# If set, histogram plots are written to this directory.
# PlotDir = path/to/plot/dir

# Output files which are useful for profiling and debugging. Generally, there
# isn't a reason to use these unless something goes wrong.
# ProfileFile = prof.out
# LogFile = log.out

# Must be one of [ Nil | Performance | Debug ].
# Verbosity = Performance`
)

type SynthesisConfig struct {
	// Required
	Grains int

	// Optional
	ShapeClass, Structure         string
	Resolution                    float64
	CoarseRatio                   int
	OverlapAllowed                float64
	OverlapPolicy                 string
	FillFraction                  float64
	XVoxels, YVoxels, ZVoxels     int
	Seed                          int64
	Generator                     string
	MaxSeedRetries, MaxShapeDraws int
	MaxFillSweeps                 int
}

type TablesConfig struct {
	// Required
	Diameter, BOverA, COverA, COverB, Euler string

	// Optional
	ShapeExponent, AxisOrientations string
	NeighborCount, NeighborSize     string
	Misorientation, Microtexture    string
	EulerDegrees                    bool
}

type AnnealConfig struct {
	MisorientationPasses, MisorientationMoves int
	MicrotexturePasses, MicrotextureMoves     int
	LowAngle                                  float64
}

type OutputConfig struct {
	// Required
	Directory string

	// Optional
	VolumeFile, VTKFile, GrainsFile string
	StatsFile, ReportFile           string
	PlotDir                         string
	LogFile, ProfileFile            string
	Verbosity                       string
}

type SynthesisWrapper struct {
	Synthesis SynthesisConfig
	Tables    TablesConfig
	Anneal    AnnealConfig
	Output    OutputConfig
}

// unsetSeed marks a config file which didn't give a seed.
const unsetSeed = -1

func DefaultSynthesisWrapper() *SynthesisWrapper {
	sc := SynthesisConfig{
		ShapeClass:     "Ellipsoid",
		Structure:      "Cubic",
		Resolution:     1,
		CoarseRatio:    synth.DefaultCoarseRatio,
		OverlapAllowed: pack.DefaultOverlapAllowed,
		OverlapPolicy:  "Reject",
		FillFraction:   synth.DefaultFillFraction,
		Seed:           unsetSeed,
		Generator:      "Xorshift",
		MaxSeedRetries: pack.DefaultMaxSeedRetries,
		MaxShapeDraws:  sample.DefaultMaxShapeDraws,
	}
	ac := AnnealConfig{
		MisorientationPasses: anneal.DefaultMisorientationPasses,
		MisorientationMoves:  anneal.DefaultMisorientationMoves,
		MicrotexturePasses:   anneal.DefaultMicrotexturePasses,
		MicrotextureMoves:    anneal.DefaultMicrotextureMoves,
		LowAngle:             anneal.DefaultLowAngle,
	}
	oc := OutputConfig{
		VolumeFile: "volume.txt",
		VTKFile:    "grains.vtk",
		GrainsFile: "grains.txt",
		StatsFile:  "grains.csv",
		ReportFile: "report.yaml",
		Verbosity:  "Performance",
	}
	return &SynthesisWrapper{Synthesis: sc, Anneal: ac, Output: oc}
}

// ReadSynthesisConfig reads a config file on top of the defaults.
func ReadSynthesisConfig(fname string) (*SynthesisWrapper, error) {
	wrap := DefaultSynthesisWrapper()
	if err := gcfg.ReadFileInto(wrap, fname); err != nil {
		return nil, err
	}
	return wrap, nil
}

// ParseSynthesisConfig is ReadSynthesisConfig for a config held in memory.
func ParseSynthesisConfig(text string) (*SynthesisWrapper, error) {
	wrap := DefaultSynthesisWrapper()
	if err := gcfg.ReadStringInto(wrap, text); err != nil {
		return nil, err
	}
	return wrap, nil
}

var (
	shapeClasses = map[string]polycrys.ShapeClass{
		"ellipsoid":      polycrys.Ellipsoid,
		"superellipsoid": polycrys.Superellipsoid,
		"roundedcuboid":  polycrys.RoundedCuboid,
	}
	overlapPolicies = map[string]polycrys.OverlapPolicy{
		"reject":   polycrys.RejectOnOverlap,
		"displace": polycrys.DisplaceMinority,
	}
)

func (con *SynthesisConfig) ValidGrains() bool {
	return con.Grains > 0
}
func (con *SynthesisConfig) ValidShapeClass() bool {
	_, ok := shapeClasses[strings.ToLower(con.ShapeClass)]
	return ok
}
func (con *SynthesisConfig) ValidStructure() bool {
	_, err := crystal.ParseStructure(con.Structure)
	return err == nil
}
func (con *SynthesisConfig) ValidResolution() bool {
	return con.Resolution > 0
}
func (con *SynthesisConfig) ValidCoarseRatio() bool {
	return con.CoarseRatio > 0
}
func (con *SynthesisConfig) ValidOverlapAllowed() bool {
	return con.OverlapAllowed >= 0 && con.OverlapAllowed <= 1
}
func (con *SynthesisConfig) ValidOverlapPolicy() bool {
	_, ok := overlapPolicies[strings.ToLower(con.OverlapPolicy)]
	return ok
}
func (con *SynthesisConfig) ValidFillFraction() bool {
	return con.FillFraction > 0
}

// ValidVoxels is true if either all or none of the voxel counts are set.
func (con *SynthesisConfig) ValidVoxels() bool {
	set := 0
	for _, n := range []int{con.XVoxels, con.YVoxels, con.ZVoxels} {
		if n < 0 {
			return false
		} else if n > 0 {
			set++
		}
	}
	return set == 0 || set == 3
}
func (con *SynthesisConfig) ValidGenerator() bool {
	_, err := rand.ParseGeneratorType(con.Generator)
	return err == nil
}
func (con *SynthesisConfig) ValidSeed() bool {
	return con.Seed >= 0
}
func (con *SynthesisConfig) ValidLoopCaps() bool {
	return con.MaxSeedRetries > 0 && con.MaxShapeDraws > 0 &&
		con.MaxFillSweeps >= 0
}

func (con *TablesConfig) ValidRequired() bool {
	return con.Diameter != "" && con.BOverA != "" && con.COverA != "" &&
		con.COverB != "" && con.Euler != ""
}
func (con *TablesConfig) ValidNeighbors() bool {
	return (con.NeighborCount == "") == (con.NeighborSize == "")
}

func (con *AnnealConfig) ValidPasses() bool {
	return con.MisorientationPasses >= 0 && con.MicrotexturePasses >= 0 &&
		con.MisorientationMoves >= 0 && con.MicrotextureMoves >= 0
}
func (con *AnnealConfig) ValidLowAngle() bool {
	return con.LowAngle > 0
}

func (con *OutputConfig) ValidDirectory() bool {
	return con.Directory != ""
}
func (con *OutputConfig) ValidPlotDir() bool {
	return con.PlotDir != ""
}
func (con *OutputConfig) ValidLogFile() bool {
	return con.LogFile != ""
}
func (con *OutputConfig) ValidProfileFile() bool {
	return con.ProfileFile != ""
}
func (con *OutputConfig) ValidVerbosity() bool {
	_, err := logging.ParseFlag(con.Verbosity)
	return err == nil
}

// Check runs every Valid method and reports the first failure.
func (wrap *SynthesisWrapper) Check() error {
	s, t, a, o := &wrap.Synthesis, &wrap.Tables, &wrap.Anneal, &wrap.Output
	checks := []struct {
		ok  bool
		msg string
	}{
		{s.ValidGrains(), "Invalid/non-existent 'Grains' value."},
		{s.ValidShapeClass(), "Invalid 'ShapeClass' value."},
		{s.ValidStructure(), "Invalid 'Structure' value."},
		{s.ValidResolution(), "Invalid 'Resolution' value."},
		{s.ValidCoarseRatio(), "Invalid 'CoarseRatio' value."},
		{s.ValidOverlapAllowed(), "Invalid 'OverlapAllowed' value."},
		{s.ValidOverlapPolicy(), "Invalid 'OverlapPolicy' value."},
		{s.ValidFillFraction(), "Invalid 'FillFraction' value."},
		{s.ValidVoxels(), "Either all or none of 'XVoxels', 'YVoxels' and " +
			"'ZVoxels' must be set."},
		{s.ValidGenerator(), "Invalid 'Generator' value."},
		{s.ValidLoopCaps(), "Invalid 'MaxSeedRetries', 'MaxShapeDraws' or " +
			"'MaxFillSweeps' value."},
		{t.ValidRequired(), "One of the required [Tables] paths is missing."},
		{t.ValidNeighbors(), "'NeighborCount' and 'NeighborSize' must be " +
			"set together."},
		{a.ValidPasses(), "Invalid [Anneal] pass or move count."},
		{a.ValidLowAngle(), "Invalid 'LowAngle' value."},
		{o.ValidDirectory(), "Invalid/non-existent 'Directory' value."},
		{o.ValidVerbosity(), "Invalid 'Verbosity' value."},
	}
	for _, c := range checks {
		if !c.ok {
			return fmt.Errorf("%s", c.msg)
		}
	}
	return nil
}

// Config converts a checked wrapper into a pipeline config.
func (wrap *SynthesisWrapper) Config() (synth.Config, error) {
	if err := wrap.Check(); err != nil {
		return synth.Config{}, err
	}
	s, a := &wrap.Synthesis, &wrap.Anneal

	st, err := crystal.ParseStructure(s.Structure)
	if err != nil {
		return synth.Config{}, err
	}
	class := shapeClasses[strings.ToLower(s.ShapeClass)]

	cfg := synth.DefaultConfig(s.Grains)
	cfg.Class, cfg.Structure = class, st
	cfg.Resolution = [3]float64{s.Resolution, s.Resolution, s.Resolution}
	cfg.CoarseRatio = s.CoarseRatio
	cfg.FillFraction = s.FillFraction
	cfg.Dims = [3]int{s.XVoxels, s.YVoxels, s.ZVoxels}
	cfg.MaxShapeDraws = s.MaxShapeDraws
	cfg.MaxFillSweeps = s.MaxFillSweeps
	if s.ValidSeed() {
		cfg.Seed, cfg.TimeSeed = uint64(s.Seed), false
	}
	if cfg.Generator, err = rand.ParseGeneratorType(s.Generator); err != nil {
		return synth.Config{}, err
	}

	cfg.Pack.Class = class
	cfg.Pack.Policy = overlapPolicies[strings.ToLower(s.OverlapPolicy)]
	cfg.Pack.OverlapAllowed = s.OverlapAllowed
	cfg.Pack.MaxSeedRetries = s.MaxSeedRetries

	cfg.Anneal.Structure = st
	cfg.Anneal.MisorientationPasses = a.MisorientationPasses
	cfg.Anneal.MisorientationMoves = a.MisorientationMoves
	cfg.Anneal.MicrotexturePasses = a.MicrotexturePasses
	cfg.Anneal.MicrotextureMoves = a.MicrotextureMoves
	cfg.Anneal.LowAngle = a.LowAngle

	return cfg, cfg.Valid()
}

// Paths returns the table locations.
func (con *TablesConfig) Paths() *stats.Paths {
	return &stats.Paths{
		Diameter:         con.Diameter,
		BOverA:           con.BOverA,
		COverA:           con.COverA,
		COverB:           con.COverB,
		ShapeExponent:    con.ShapeExponent,
		AxisOrientations: con.AxisOrientations,
		Euler:            con.Euler,
		NeighborCount:    con.NeighborCount,
		NeighborSize:     con.NeighborSize,
		Misorientation:   con.Misorientation,
		Microtexture:     con.Microtexture,
	}
}
