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

import "github.com/ctessum/sparse"

// CountGrid holds the number of trajectory positions in each lattice cell.
// Polluted only counts positions of trajectories whose concentration is
// at or above the critical concentration, so
// Polluted[j, i] <= Total[j, i] everywhere.
type CountGrid struct {
	Total    *sparse.DenseArray
	Polluted *sparse.DenseArray
}

// Bin counts the positions of runs in each cell of l. Positions outside
// of l are ignored. Positions are not deduplicated: a trajectory that
// stays in a cell for several steps is counted once per step, and
// overlapping trajectories from different offsets are all counted.
func Bin(runs []*BackTrajectory, l *Lattice, threshold float64) *CountGrid {
	c := &CountGrid{
		Total:    l.NewGrid(),
		Polluted: l.NewGrid(),
	}
	for _, r := range runs {
		polluted := r.Concentration >= threshold
		for _, p := range r.LineString {
			i, j, ok := l.Index(p.X, p.Y)
			if !ok {
				continue
			}
			c.Total.AddVal(1, j, i)
			if polluted {
				c.Polluted.AddVal(1, j, i)
			}
		}
	}
	return c
}

// Add adds the counts in o to c. Both must be aligned with the same
// lattice. It is used to reduce partial grids.
func (c *CountGrid) Add(o *CountGrid) {
	c.Total.AddDense(o.Total)
	c.Polluted.AddDense(o.Polluted)
}

// Sum returns the total number of counted and polluted positions.
func (c *CountGrid) Sum() (total, polluted float64) {
	return c.Total.Sum(), c.Polluted.Sum()
}

// Degenerate returns true if no position fell within the lattice.
func (c *CountGrid) Degenerate() bool {
	return c.Total.Max() == 0
}
