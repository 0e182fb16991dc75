/*package polycrys contains the data model shared by the stages which build a
synthetic polycrystal: grains sampled from distribution tables, their packed
counterparts, and the error types reported along the way.

The stages themselves live in subpackages:

	stats    - distribution tables and their loaders
	sample   - grain population sampling and Euler angle assignment
	pack     - geometric packing of grains into a voxel domain
	fill     - assignment of voxels left unclaimed by packing
	topology - grain neighbor lists derived from the voxel grid
	anneal   - orientation swaps which match misorientation statistics
	synth    - runs the whole pipeline

InputStatisticsError and GeometryDegeneracyError abort a run.
PackingExhaustionError, CoverageError and ConvergenceWarning are warnings
which are returned alongside a usable structure.
*/
package polycrys

import (
	"math"
)

// SphereVolume returns the volume of a sphere with diameter d.
func SphereVolume(d float64) float64 {
	r := d / 2
	return 4.0 / 3.0 * math.Pi * r * r * r
}

// EquivalentDiameter returns the diameter of a sphere with volume vol.
func EquivalentDiameter(vol float64) float64 {
	return 2 * math.Cbrt(vol*0.75/math.Pi)
}
