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
	"sort"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/index/rtree"
)

// TrajectoryIndex finds the back-trajectories passing through a
// lattice cell.
type TrajectoryIndex struct {
	lattice *Lattice
	tree    *rtree.Rtree
	n       int
}

// NewTrajectoryIndex indexes runs for lookups on l.
func NewTrajectoryIndex(runs []*BackTrajectory, l *Lattice) *TrajectoryIndex {
	idx := &TrajectoryIndex{
		lattice: l,
		tree:    rtree.NewTree(25, 50),
	}
	for _, r := range runs {
		if r.Len() == 0 {
			continue
		}
		idx.tree.Insert(r)
		idx.n++
	}
	return idx
}

// Len returns the number of indexed trajectories.
func (idx *TrajectoryIndex) Len() int { return idx.n }

// Lookup returns the trajectories with at least one position in the cell
// containing (lon, lat), using the same floor rule as Bin. The output is
// sorted by observation time and then offset. It returns nil when the
// point is outside of the lattice.
func (idx *TrajectoryIndex) Lookup(lon, lat float64) []*BackTrajectory {
	i, j, ok := idx.lattice.Index(lon, lat)
	if !ok {
		return nil
	}
	x, y := idx.lattice.Corner(i, j)
	// Positions just below the lower edges are floored into this cell.
	tol := boundaryTol * idx.lattice.Step
	b := &geom.Bounds{
		Min: geom.Point{X: x - tol, Y: y - tol},
		Max: geom.Point{X: x + idx.lattice.Step, Y: y + idx.lattice.Step},
	}
	var out []*BackTrajectory
	for _, g := range idx.tree.SearchIntersect(b) {
		r := g.(*BackTrajectory)
		if idx.visits(r, i, j) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(a, b int) bool {
		if !out[a].Observed.Equal(out[b].Observed) {
			return out[a].Observed.Before(out[b].Observed)
		}
		return out[a].Offset < out[b].Offset
	})
	return out
}

// LookupPolluted is like Lookup but only returns trajectories whose
// concentration is at or above threshold.
func (idx *TrajectoryIndex) LookupPolluted(lon, lat, threshold float64) []*BackTrajectory {
	all := idx.Lookup(lon, lat)
	out := all[:0]
	for _, r := range all {
		if r.Concentration >= threshold {
			out = append(out, r)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func (idx *TrajectoryIndex) visits(r *BackTrajectory, i, j int) bool {
	for _, p := range r.LineString {
		pi, pj, ok := idx.lattice.Index(p.X, p.Y)
		if ok && pi == i && pj == j {
			return true
		}
	}
	return false
}
