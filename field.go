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

	"github.com/ctessum/sparse"
	"gonum.org/v1/gonum/floats"
)

// WeightMode selects the weighting function.
type WeightMode string

const (
	// WeightAuto weights each visited cell by
	// log(count) / log(max(count)).
	WeightAuto WeightMode = "auto"

	// WeightManual assigns one of four fixed weights depending on which
	// density band a cell falls in.
	WeightManual WeightMode = "manual"
)

// WeightConfig specifies the weighting function applied to the
// PSCF ratio to discount under-sampled cells.
type WeightConfig struct {
	Enabled bool
	Mode    WeightMode

	// Breakpoints are the three ascending band limits used in manual
	// mode, as fractions of the maximum density.
	Breakpoints []float64

	// Values are the four weights of the manual density bands, from the
	// least to the most visited. Cells with no trajectory positions are
	// not in any band and get weight 0, in both modes.
	Values []float64
}

// Validate checks the weighting parameters. Parameters are not checked
// when weighting is disabled.
func (c WeightConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	switch c.Mode {
	case WeightAuto:
	case WeightManual:
		if len(c.Breakpoints) != 3 {
			return configErrorf("Weight.Breakpoints", "manual weighting needs 3 breakpoints; got %d", len(c.Breakpoints))
		}
		if len(c.Values) != 4 {
			return configErrorf("Weight.Values", "manual weighting needs 4 values; got %d", len(c.Values))
		}
		for i, b := range c.Breakpoints {
			if math.IsNaN(b) || (i > 0 && b < c.Breakpoints[i-1]) {
				return configErrorf("Weight.Breakpoints", "%v are not in ascending order", c.Breakpoints)
			}
		}
		for _, v := range c.Values {
			if math.IsNaN(v) || v < 0 {
				return configErrorf("Weight.Values", "%v should all be >= 0", c.Values)
			}
		}
	default:
		return configErrorf("Weight.Mode", "%q is not one of %q or %q", c.Mode, WeightAuto, WeightManual)
	}
	return nil
}

// Field holds the grids derived from a CountGrid.
type Field struct {
	// Ratio is Polluted / Total, and 0 in unvisited cells.
	Ratio *sparse.DenseArray

	// PSCF is Ratio * Weight.
	PSCF *sparse.DenseArray

	// Density is log10(Total), and 0 in unvisited cells.
	Density *sparse.DenseArray

	// Weight is all ones when weighting is disabled. Otherwise it is 0 in
	// unvisited cells.
	Weight *sparse.DenseArray
}

// BuildField calculates the PSCF ratio, trajectory density and weight
// grids from c.
func BuildField(c *CountGrid, w WeightConfig) (*Field, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	if c == nil || c.Total == nil || c.Polluted == nil {
		return nil, fmt.Errorf("pscf: building field: missing counts")
	}
	if len(c.Total.Elements) != len(c.Polluted.Elements) {
		return nil, fmt.Errorf("pscf: building field: total and polluted grids have shapes %v and %v",
			c.Total.Shape, c.Polluted.Shape)
	}
	f := &Field{
		Ratio:   sparse.ZerosDense(c.Total.Shape...),
		Density: sparse.ZerosDense(c.Total.Shape...),
	}
	for k, n := range c.Total.Elements {
		if n > 0 {
			f.Ratio.Elements[k] = c.Polluted.Elements[k] / n
			f.Density.Elements[k] = math.Log10(n)
		}
	}

	switch {
	case !w.Enabled:
		f.Weight = ones(c.Total.Shape...)
	case w.Mode == WeightAuto:
		f.Weight = autoWeight(c.Total)
	default:
		f.Weight = manualWeight(c.Total, f.Density, w.Breakpoints, w.Values)
	}

	f.PSCF = f.Ratio.Copy()
	floats.Mul(f.PSCF.Elements, f.Weight.Elements)
	return f, nil
}

func ones(shape ...int) *sparse.DenseArray {
	a := sparse.ZerosDense(shape...)
	for i := range a.Elements {
		a.Elements[i] = 1
	}
	return a
}

// autoWeight returns log(n) / log(max(n)) for visited cells. When no cell
// was visited more than once, every visited cell gets weight 1.
func autoWeight(total *sparse.DenseArray) *sparse.DenseArray {
	w := sparse.ZerosDense(total.Shape...)
	max := floats.Max(total.Elements)
	if max <= 0 {
		return w
	}
	logMax := math.Log(max)
	for k, n := range total.Elements {
		switch {
		case n <= 0:
		case max == 1:
			w.Elements[k] = 1
		default:
			w.Elements[k] = math.Log(n) / logMax
		}
	}
	return w
}

// manualWeight assigns values[b] to each visited cell, where b is the
// density band of the cell:
//	density < breaks[0]·max          → values[0]
//	breaks[0]·max <= density < breaks[1]·max → values[1]
//	breaks[1]·max <= density < breaks[2]·max → values[2]
//	density >= breaks[2]·max         → values[3]
func manualWeight(total, density *sparse.DenseArray, breaks, values []float64) *sparse.DenseArray {
	w := sparse.ZerosDense(total.Shape...)
	max := floats.Max(density.Elements)
	for k, d := range density.Elements {
		if total.Elements[k] <= 0 {
			continue
		}
		band := 0
		for band < len(breaks) && d >= breaks[band]*max {
			band++
		}
		w.Elements[k] = values[band]
	}
	return w
}
