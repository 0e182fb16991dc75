package polycrys

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"
)

// Unassigned is the owner id of a voxel which has not been claimed by any
// grain.
const Unassigned = -1

// ShapeClass selects the implicit surface used to decide which voxels a grain
// contains.
type ShapeClass int

const (
	Ellipsoid ShapeClass = iota + 1
	Superellipsoid
	RoundedCuboid
)

func (sc ShapeClass) String() string {
	switch sc {
	case Ellipsoid:
		return "Ellipsoid"
	case Superellipsoid:
		return "Superellipsoid"
	case RoundedCuboid:
		return "RoundedCuboid"
	}
	return fmt.Sprintf("ShapeClass(%d)", int(sc))
}

// OverlapPolicy controls what happens when a new grain is placed on top of
// voxels that already belong to another grain.
type OverlapPolicy int

const (
	// RejectOnOverlap never displaces a previously placed grain. Claimed
	// voxels count towards the overlap budget.
	RejectOnOverlap OverlapPolicy = iota + 1
	// DisplaceMinority lets every other placement take voxels from earlier
	// grains, as long as no grain loses more than a fifth of its voxels.
	DisplaceMinority
)

func (op OverlapPolicy) String() string {
	switch op {
	case RejectOnOverlap:
		return "Reject"
	case DisplaceMinority:
		return "Displace"
	}
	return fmt.Sprintf("OverlapPolicy(%d)", int(op))
}

// Euler is a Bunge (phi1, Phi, phi2) triple in radians.
type Euler [3]float64

// Grain is a sampled grain before it has been placed in the domain.
type Grain struct {
	ID int
	// Volume is the target volume in physical units.
	Volume float64
	// Diameter is the sphere-equivalent diameter which Volume was built from.
	Diameter float64
	SizeBin  int
	// Ratios holds the semi-axis ratios (1, b/a, c/a).
	Ratios [3]float64
	// Axes are the unit principal axes of the grain.
	Axes [3]r3.Vec
	// N is the shape exponent. It is ignored by ellipsoids.
	N     float64
	Euler Euler
}

// PackedGrain is a grain which the packer has tried to place.
type PackedGrain struct {
	ID       int
	Placed   bool
	Centroid r3.Vec
	// Radii are the realized semi-axis lengths (radcur1..3).
	Radii [3]float64
	Axes  [3]r3.Vec
	N     float64

	TargetVoxels float64
	InitSize     int
	CurrentSize  int
	// Lost counts voxels relinquished to later placements.
	Lost int

	Euler Euler

	// Running neighbor statistics used while packing.
	NeighborCount int
	NeighborSizes []float64
	NSError       float64

	OnSurface bool

	// Filled in after gap filling.
	Neighbors        []int
	Misorientations  []float64
	LowAngleFraction float64
	Frozen           bool
	Rank             float64
}
