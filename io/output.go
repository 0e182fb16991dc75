package io

import (
	"bufio"
	"fmt"
	"io"

	"github.com/phil-mansfield/polycrys"
	"github.com/phil-mansfield/polycrys/geom"
)

// Grain ids are written one-based so that zero can mark a voxel which no
// grain owns.

// FileID converts a grid owner into the id written to output files.
func FileID(owner int) int {
	if owner == polycrys.Unassigned {
		return 0
	}
	return owner + 1
}

const vtkValuesPerLine = 20

// WriteVTK writes the grid's owners as a legacy VTK structured points file.
func WriteVTK(w io.Writer, grid *geom.MultiGrid, title string) error {
	bw := bufio.NewWriter(w)
	dims := grid.Fine.Width
	fmt.Fprintln(bw, "# vtk DataFile Version 2.0")
	fmt.Fprintln(bw, title)
	fmt.Fprintln(bw, "ASCII")
	fmt.Fprintln(bw, "DATASET STRUCTURED_POINTS")
	fmt.Fprintf(bw, "DIMENSIONS %d %d %d\n", dims[0], dims[1], dims[2])
	fmt.Fprintln(bw, "ORIGIN 0.0 0.0 0.0")
	fmt.Fprintf(bw, "SPACING %g %g %g\n", grid.Res[0], grid.Res[1], grid.Res[2])
	fmt.Fprintf(bw, "POINT_DATA %d\n", grid.Len())
	fmt.Fprintln(bw)
	fmt.Fprintln(bw)
	fmt.Fprintln(bw, "SCALARS GrainID int  1")
	fmt.Fprintln(bw, "LOOKUP_TABLE default")

	for idx := 0; idx < grid.Len(); idx++ {
		if idx%vtkValuesPerLine == 0 && idx > 0 {
			fmt.Fprintln(bw)
		}
		fmt.Fprintf(bw, "%8d", FileID(grid.Owner(idx)))
	}
	fmt.Fprintln(bw)
	return bw.Flush()
}

// WriteVolume writes one line per voxel in raster order:
//
//	id ea1 ea2 ea3 x y z ci
//
// where (x, y, z) is the voxel center and ci is the confidence, which is zero
// for unowned voxels.
func WriteVolume(
	w io.Writer, grid *geom.MultiGrid, grains []polycrys.PackedGrain,
) error {
	bw := bufio.NewWriter(w)
	for idx := 0; idx < grid.Len(); idx++ {
		o := grid.Owner(idx)
		e, ci := polycrys.Euler{}, 0.0
		if o != polycrys.Unassigned {
			e, ci = grains[o].Euler, 1
		}
		c := grid.Center(idx)
		fmt.Fprintf(bw, "%d %g %g %g %g  %g  %g  %g\n",
			FileID(o), e[0], e[1], e[2], c.X, c.Y, c.Z, ci)
	}
	return bw.Flush()
}

// WriteGrains writes the grain count followed by one line per grain:
//
//	id xc yc zc ea1 ea2 ea3 n nbr1 ... nbrn
func WriteGrains(w io.Writer, grains []polycrys.PackedGrain) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, len(grains))
	for i := range grains {
		g := &grains[i]
		fmt.Fprintf(bw, "%d  %g  %g  %g  %g %g %g %d",
			FileID(i), g.Centroid.X, g.Centroid.Y, g.Centroid.Z,
			g.Euler[0], g.Euler[1], g.Euler[2], len(g.Neighbors))
		for _, n := range g.Neighbors {
			fmt.Fprintf(bw, "  %d", FileID(n))
		}
		fmt.Fprintln(bw)
	}
	return bw.Flush()
}
