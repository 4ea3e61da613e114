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
	"os"
	"path/filepath"
	"strings"

	"github.com/ctessum/cdf"
	"github.com/ctessum/geom/encoding/shp"
	"github.com/ctessum/sparse"
	goshp "github.com/jonas-p/go-shp"
)

type outputVar struct {
	name, description, units string
	data                     *sparse.DenseArray
}

// gridVars returns the lattice-aligned grids of r in a fixed order.
func (r *Result) gridVars() []outputVar {
	v := []outputVar{
		{"TotalCount", "Number of trajectory positions in each cell", "count", r.Counts.Total},
		{"PollutedCount", "Number of polluted trajectory positions in each cell", "count", r.Counts.Polluted},
		{"Ratio", "Unweighted PSCF ratio", "fraction", r.Ratio},
		{"PSCF", "Weighted PSCF", "fraction", r.PSCF},
		{"Density", "log10 of the trajectory position count", "log10(count)", r.Density},
		{"Weight", "PSCF weighting function", "fraction", r.Weight},
	}
	if r.SmoothPSCF != nil {
		v = append(v,
			outputVar{"SmoothPSCF", "Gaussian-smoothed weighted PSCF", "fraction", r.SmoothPSCF},
			outputVar{"SmoothDensity", "Gaussian-smoothed trajectory density", "log10(count)", r.SmoothDensity},
		)
	}
	return v
}

// WriteNetCDF writes the grids and directional distribution of r to
// w in NetCDF format. Grids have dimensions (lat, lon); the lattice is
// described by the global attributes lon_min, lat_min, step, nx and ny.
func (r *Result) WriteNetCDF(w *os.File) error {
	vars := r.gridVars()
	h := cdf.NewHeader(
		[]string{"lat", "lon", "sector"},
		[]int{r.Lattice.Ny, r.Lattice.Nx, NumSectors})
	h.AddAttribute("", "comment", "PSCF output file")
	h.AddAttribute("", "run_id", r.ID)
	h.AddAttribute("", "station", r.Station)
	h.AddAttribute("", "species", r.Species)
	h.AddAttribute("", "lon_min", []float64{r.Lattice.LonMin})
	h.AddAttribute("", "lat_min", []float64{r.Lattice.LatMin})
	h.AddAttribute("", "step", []float64{r.Lattice.Step})
	h.AddAttribute("", "nx", []int32{int32(r.Lattice.Nx)})
	h.AddAttribute("", "ny", []int32{int32(r.Lattice.Ny)})
	h.AddAttribute("", "threshold", []float64{r.Threshold})
	h.AddAttribute("", "receptor_lon", []float64{r.ReceptorLon})
	h.AddAttribute("", "receptor_lat", []float64{r.ReceptorLat})

	for _, v := range vars {
		h.AddVariable(v.name, []string{"lat", "lon"}, []float32{0})
		h.AddAttribute(v.name, "description", v.description)
		h.AddAttribute(v.name, "units", v.units)
	}
	h.AddVariable("SectorStart", []string{"sector"}, []float32{0})
	h.AddAttribute("SectorStart", "description", "Lower bound of the bearing sector, counter-clockwise from East")
	h.AddAttribute("SectorStart", "units", "degrees")
	h.AddVariable("SectorPercent", []string{"sector"}, []float32{0})
	h.AddAttribute("SectorPercent", "description", "Share of polluted trajectory positions in the bearing sector")
	h.AddAttribute("SectorPercent", "units", "percent")
	h.Define()

	f, err := cdf.Create(w, h)
	if err != nil {
		return fmt.Errorf("pscf: creating netcdf file: %v", err)
	}
	for _, v := range vars {
		if err := r.Lattice.checkGrid(v.name, v.data); err != nil {
			return err
		}
		if err := writeNCF(f, v.name, v.data.Elements); err != nil {
			return fmt.Errorf("pscf: writing variable %s to netcdf file: %v", v.name, err)
		}
	}
	start := make([]float64, len(r.Directions))
	pct := make([]float64, len(r.Directions))
	for i, s := range r.Directions {
		start[i], pct[i] = s.Start, s.Percent
	}
	if err := writeNCF(f, "SectorStart", start); err != nil {
		return fmt.Errorf("pscf: writing variable SectorStart to netcdf file: %v", err)
	}
	if err := writeNCF(f, "SectorPercent", pct); err != nil {
		return fmt.Errorf("pscf: writing variable SectorPercent to netcdf file: %v", err)
	}
	return cdf.UpdateNumRecs(w)
}

func writeNCF(f *cdf.File, name string, data []float64) error {
	end := f.Header.Lengths(name)
	n := 1
	for _, v := range end {
		n *= v
	}
	if len(data) != n {
		return fmt.Errorf("dims are %d but array length is %d", n, len(data))
	}
	data32 := make([]float32, len(data))
	for i, e := range data {
		data32[i] = float32(e)
	}
	w := f.Writer(name, make([]int, len(end)), end)
	_, err := w.Write(data32)
	return err
}

// ReadNetCDFVar reads variable name from a file written by WriteNetCDF.
func ReadNetCDFVar(rw cdf.ReaderWriterAt, name string) (*sparse.DenseArray, error) {
	f, err := cdf.Open(rw)
	if err != nil {
		return nil, fmt.Errorf("pscf: opening netcdf file: %v", err)
	}
	dims := f.Header.Lengths(name)
	if len(dims) == 0 {
		return nil, fmt.Errorf("pscf: variable %s is not in netcdf file", name)
	}
	r := f.Reader(name, nil, nil)
	buf := r.Zero(-1)
	if _, err = r.Read(buf); err != nil {
		return nil, fmt.Errorf("pscf: reading netcdf variable %s: %v", name, err)
	}
	data := sparse.ZerosDense(dims...)
	for i, v := range buf.([]float32) {
		data.Elements[i] = float64(v)
	}
	return data, nil
}

// WriteShapefile writes one polygon per lattice cell to the shapefile at
// path, with the cell indices and the values of every grid as attributes.
// Existing files with the same name are overwritten.
func (r *Result) WriteShapefile(path string) error {
	base := strings.TrimSuffix(path, filepath.Ext(path))
	for _, ext := range []string{".shp", ".prj", ".dbf", ".shx"} {
		os.Remove(base + ext)
	}
	vars := r.gridVars()
	fields := []goshp.Field{
		goshp.NumberField("row", 10),
		goshp.NumberField("col", 10),
	}
	for _, v := range vars {
		// dBase field names are limited to 10 characters.
		name := v.name
		if len(name) > 10 {
			name = name[:10]
		}
		fields = append(fields, goshp.FloatField(name, 16, 6))
	}
	e, err := shp.NewEncoderFromFields(base+".shp", goshp.POLYGON, fields...)
	if err != nil {
		return fmt.Errorf("pscf: creating shapefile: %v", err)
	}
	for j := 0; j < r.Lattice.Ny; j++ {
		for i := 0; i < r.Lattice.Nx; i++ {
			data := []interface{}{j, i}
			for _, v := range vars {
				data = append(data, v.data.Get(j, i))
			}
			if err := e.EncodeFields(r.Lattice.Cell(i, j), data...); err != nil {
				e.Close()
				return fmt.Errorf("pscf: writing shapefile: %v", err)
			}
		}
	}
	e.Close()
	return nil
}
