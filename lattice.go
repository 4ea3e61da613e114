/*
Copyright © 2019 the PSCF authors.
This file is part of PSCF.

PSCF is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

PSCF is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with PSCF.  If not, see <http://www.gnu.org/licenses/>.
*/

package pscf

import (
	"fmt"
	"math"

	"github.com/ctessum/geom"
	"github.com/ctessum/sparse"
)

// DefaultStep is the default lattice resolution [degrees].
const DefaultStep = 0.5

// boundaryTol absorbs floating point error when a coordinate lies on a
// cell edge, so that it always falls in the higher-index cell.
const boundaryTol = 1e-9

// LatticeConfig holds the bounds and resolution of a lattice [degrees].
type LatticeConfig struct {
	LonMin, LonMax float64
	LatMin, LatMax float64
	Step           float64
}

// Validate checks that the lattice is well formed.
func (c LatticeConfig) Validate() error {
	if !(c.Step > 0) {
		return configErrorf("Lattice.Step", "%g should be > 0", c.Step)
	}
	if !(c.LonMax >= c.LonMin) {
		return configErrorf("Lattice.LonMax", "%g is less than Lattice.LonMin=%g", c.LonMax, c.LonMin)
	}
	if !(c.LatMax >= c.LatMin) {
		return configErrorf("Lattice.LatMax", "%g is less than Lattice.LatMin=%g", c.LatMax, c.LatMin)
	}
	if c.LatMin < -90 || c.LatMax > 90 {
		return configErrorf("Lattice.LatMin", "latitudes must be within [-90, 90]; got [%g, %g]", c.LatMin, c.LatMax)
	}
	return nil
}

// Lattice is a regular longitude/latitude grid. Cell (i, j) covers
// [LonMin + i·Step, LonMin + (i+1)·Step) × [LatMin + j·Step, LatMin + (j+1)·Step).
// LonMax and LatMax are the lower edges of the last column and row.
// Grids aligned with a Lattice are *sparse.DenseArray values with
// shape (Ny, Nx), indexed as (j, i).
type Lattice struct {
	LonMin, LatMin float64
	Step           float64
	Nx, Ny         int
}

// NewLattice creates a lattice from c.
func NewLattice(c LatticeConfig) (*Lattice, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &Lattice{
		LonMin: c.LonMin,
		LatMin: c.LatMin,
		Step:   c.Step,
		Nx:     int(math.Floor((c.LonMax-c.LonMin)/c.Step+boundaryTol)) + 1,
		Ny:     int(math.Floor((c.LatMax-c.LatMin)/c.Step+boundaryTol)) + 1,
	}, nil
}

func (l *Lattice) String() string {
	return fmt.Sprintf("lattice %dx%d at %g° from (%g, %g)", l.Nx, l.Ny, l.Step, l.LonMin, l.LatMin)
}

// Bounds returns the geographic extent of the lattice.
func (l *Lattice) Bounds() *geom.Bounds {
	return &geom.Bounds{
		Min: geom.Point{X: l.LonMin, Y: l.LatMin},
		Max: geom.Point{X: l.LonMin + float64(l.Nx)*l.Step, Y: l.LatMin + float64(l.Ny)*l.Step},
	}
}

// floorIndex returns the index of the cell holding v along an axis
// starting at min. Edges belong to the higher-index cell.
func (l *Lattice) floorIndex(v, min float64) int {
	return int(math.Floor((v-min)/l.Step + boundaryTol))
}

// Index returns the column i and row j of the cell containing (lon, lat).
// ok is false when the point is outside of the lattice.
func (l *Lattice) Index(lon, lat float64) (i, j int, ok bool) {
	if math.IsNaN(lon) || math.IsNaN(lat) {
		return 0, 0, false
	}
	i = l.floorIndex(lon, l.LonMin)
	j = l.floorIndex(lat, l.LatMin)
	if i < 0 || j < 0 || i >= l.Nx || j >= l.Ny {
		return i, j, false
	}
	return i, j, true
}

// Floor normalizes (lon, lat) to the lower-left corner of the cell that
// contains it. It uses the same rule as the binning, so interactive
// lookups agree with the grids.
func (l *Lattice) Floor(lon, lat float64) (float64, float64) {
	i := l.floorIndex(lon, l.LonMin)
	j := l.floorIndex(lat, l.LatMin)
	return l.LonMin + float64(i)*l.Step, l.LatMin + float64(j)*l.Step
}

// Corner returns the lower-left corner of cell (i, j).
func (l *Lattice) Corner(i, j int) (lon, lat float64) {
	return l.LonMin + float64(i)*l.Step, l.LatMin + float64(j)*l.Step
}

// Center returns the center of cell (i, j).
func (l *Lattice) Center(i, j int) (lon, lat float64) {
	return l.LonMin + (float64(i)+0.5)*l.Step, l.LatMin + (float64(j)+0.5)*l.Step
}

// Cell returns the polygon of cell (i, j).
func (l *Lattice) Cell(i, j int) geom.Polygon {
	x, y := l.Corner(i, j)
	d := l.Step
	return geom.Polygon{{
		{X: x, Y: y}, {X: x + d, Y: y},
		{X: x + d, Y: y + d}, {X: x, Y: y + d}, {X: x, Y: y},
	}}
}

// NewGrid returns a zeroed grid aligned with l.
func (l *Lattice) NewGrid() *sparse.DenseArray {
	return sparse.ZerosDense(l.Ny, l.Nx)
}

// checkGrid returns an error if g is not aligned with l.
func (l *Lattice) checkGrid(name string, g *sparse.DenseArray) error {
	if g == nil {
		return fmt.Errorf("pscf: grid %s is nil", name)
	}
	if len(g.Shape) != 2 || g.Shape[0] != l.Ny || g.Shape[1] != l.Nx {
		return fmt.Errorf("pscf: grid %s has shape %v but the lattice is %dx%d", name, g.Shape, l.Ny, l.Nx)
	}
	return nil
}
