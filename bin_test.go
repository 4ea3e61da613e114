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
	"testing"

	"github.com/ctessum/geom"
	"github.com/google/go-cmp/cmp"
)

func TestBin(t *testing.T) {
	l, err := NewLattice(LatticeConfig{LonMin: 0, LonMax: 1, LatMin: 0, LatMax: 1, Step: 1})
	if err != nil {
		t.Fatal(err)
	}
	runs := []*BackTrajectory{
		{
			LineString:    geom.LineString{{X: 0.5, Y: 0.5}, {X: 0.6, Y: 0.6}, {X: 1, Y: 0}},
			Concentration: 10,
		},
		{
			// Same path from another offset; counted again.
			LineString:    geom.LineString{{X: 0.5, Y: 0.5}},
			Concentration: 10,
		},
		{
			LineString:    geom.LineString{{X: 1.5, Y: 1.5}, {X: 5, Y: 5}, {X: -0.1, Y: 0}},
			Concentration: 1,
		},
	}
	c := Bin(runs, l, 10)

	wantTotal := []float64{3, 1, 0, 1}
	wantPolluted := []float64{3, 1, 0, 0}
	if diff := cmp.Diff(wantTotal, c.Total.Elements); diff != "" {
		t.Errorf("total (-want +have):\n%s", diff)
	}
	if diff := cmp.Diff(wantPolluted, c.Polluted.Elements); diff != "" {
		t.Errorf("polluted (-want +have):\n%s", diff)
	}
	for k := range c.Total.Elements {
		if c.Polluted.Elements[k] > c.Total.Elements[k] {
			t.Errorf("cell %d: polluted %g > total %g", k, c.Polluted.Elements[k], c.Total.Elements[k])
		}
	}
	if c.Degenerate() {
		t.Error("grid should not be degenerate")
	}
	total, polluted := c.Sum()
	if total != 5 || polluted != 4 {
		t.Errorf("sum: have %g, %g", total, polluted)
	}
}

func TestBinDegenerate(t *testing.T) {
	l, err := NewLattice(LatticeConfig{LonMin: 0, LonMax: 1, LatMin: 0, LatMax: 1, Step: 0.5})
	if err != nil {
		t.Fatal(err)
	}
	runs := []*BackTrajectory{{LineString: geom.LineString{{X: 50, Y: 50}}}}
	c := Bin(runs, l, 0)
	if !c.Degenerate() {
		t.Error("grid should be degenerate")
	}
}

func TestCountGridAdd(t *testing.T) {
	a := &CountGrid{Total: grid(1, 2, 1, 2), Polluted: grid(1, 2, 0, 1)}
	b := &CountGrid{Total: grid(1, 2, 3, 0), Polluted: grid(1, 2, 3, 0)}
	a.Add(b)
	if diff := cmp.Diff([]float64{4, 2}, a.Total.Elements); diff != "" {
		t.Error(diff)
	}
	if diff := cmp.Diff([]float64{3, 1}, a.Polluted.Elements); diff != "" {
		t.Error(diff)
	}
}
