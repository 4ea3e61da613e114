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

	"github.com/ctessum/sparse"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// gridXYZ adapts a lattice-aligned grid to plotter.GridXYZ.
type gridXYZ struct {
	g *sparse.DenseArray
	l *Lattice
}

func (g gridXYZ) Dims() (c, r int)   { return g.l.Nx, g.l.Ny }
func (g gridXYZ) Z(c, r int) float64 { return g.g.Get(r, c) }
func (g gridXYZ) X(c int) float64 {
	x, _ := g.l.Center(c, 0)
	return x
}
func (g gridXYZ) Y(r int) float64 {
	_, y := g.l.Center(0, r)
	return y
}

// Plot creates a map of grid g, which must be aligned with the result
// lattice, with the receptor marked by a cross.
func (r *Result) Plot(g *sparse.DenseArray, title string) (*plot.Plot, error) {
	if err := r.Lattice.checkGrid(title, g); err != nil {
		return nil, err
	}
	p, err := plot.New()
	if err != nil {
		return nil, fmt.Errorf("pscf: creating plot: %v", err)
	}
	p.Title.Text = title
	p.X.Label.Text = "Longitude"
	p.Y.Label.Text = "Latitude"

	h := plotter.NewHeatMap(gridXYZ{g: g, l: r.Lattice}, palette.Heat(16, 1))
	if h.Max <= h.Min {
		// Uniform grids have no color range.
		h.Max = h.Min + 1
	}
	p.Add(h)

	rec, err := plotter.NewScatter(plotter.XYs{{X: r.ReceptorLon, Y: r.ReceptorLat}})
	if err != nil {
		return nil, fmt.Errorf("pscf: plotting receptor: %v", err)
	}
	rec.GlyphStyle.Shape = draw.CrossGlyph{}
	rec.GlyphStyle.Radius = vg.Points(4)
	p.Add(rec)
	return p, nil
}

// SavePlot saves a map of the PSCF field to path, using the smoothed
// field if there is one. The image format is taken from the file
// extension (e.g., .png, .svg, .pdf).
func (r *Result) SavePlot(path string) error {
	g, title := r.PSCF, "PSCF"
	if r.SmoothPSCF != nil {
		g, title = r.SmoothPSCF, "smoothed PSCF"
	}
	p, err := r.Plot(g, fmt.Sprintf("%s %s %s", r.Station, r.Species, title))
	if err != nil {
		return err
	}
	if err = p.Save(6*vg.Inch, 6*vg.Inch, path); err != nil {
		return fmt.Errorf("pscf: saving plot: %v", err)
	}
	return nil
}
