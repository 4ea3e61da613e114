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
	"math"
	"testing"
)

func TestBearing(t *testing.T) {
	tests := []struct {
		name     string
		lon, lat float64
		want     float64
		sector   int
	}{
		{"east", 10, 0, 0, 0},
		{"north", 0, 10, 90, 3},
		{"west", -10, 0, 180, 7},
		{"south", 0, -10, 270, 11},
		{"receptor", 0, 0, 90, 3},
		// The great circle to (10, 10) leaves the equator at a compass
		// bearing of atan(cos 10°).
		{"northeast", 10, 10, 90 - math.Atan(math.Cos(10*math.Pi/180))*180/math.Pi, 2},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			b := Bearing(0, 0, test.lon, test.lat)
			if math.Abs(b-test.want) > 1e-9 {
				t.Errorf("bearing: have %g, want %g", b, test.want)
			}
			if s := SectorIndex(b); s != test.sector {
				t.Errorf("sector: have %d, want %d", s, test.sector)
			}
		})
	}
	for _, p := range [][2]float64{{3, 7}, {-170, 80}, {179, -45}, {0.001, -0.001}} {
		if b := Bearing(12, 45, p[0], p[1]); b < 0 || b >= 360 {
			t.Errorf("bearing to %v is %g, outside of [0, 360)", p, b)
		}
	}
}

func TestSectorIndex(t *testing.T) {
	tests := []struct {
		b    float64
		want int
	}{
		{0, 0},
		{22.5, 0},
		{22.500001, 1},
		{45, 1},
		{337.5, 14},
		{337.6, 15},
		{359.99, 15},
	}
	for _, test := range tests {
		if s := SectorIndex(test.b); s != test.want {
			t.Errorf("SectorIndex(%g): have %d, want %d", test.b, s, test.want)
		}
	}
}

func TestAggregate(t *testing.T) {
	// A 3x3 lattice of 1° cells centered on the receptor.
	l, err := NewLattice(LatticeConfig{LonMin: -1.5, LonMax: 0.5, LatMin: -1.5, LatMax: 0.5, Step: 1})
	if err != nil {
		t.Fatal(err)
	}
	polluted := l.NewGrid()
	polluted.Set(3, 1, 2) // east
	polluted.Set(1, 2, 1) // north

	d, err := Aggregate(polluted, l, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(d) != NumSectors {
		t.Fatalf("have %d sectors", len(d))
	}
	if d[0].Percent != 75 || d[3].Percent != 25 {
		t.Errorf("have %+v", d)
	}
	if math.Abs(d.Total()-100) > 1e-9 {
		t.Errorf("total: have %g, want 100", d.Total())
	}
	for i, s := range d {
		if s.Start != float64(i)*SectorWidth {
			t.Errorf("sector %d starts at %g", i, s.Start)
		}
	}

	d, err = Aggregate(l.NewGrid(), l, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if d.Total() != 0 {
		t.Errorf("empty grid: total %g, want 0", d.Total())
	}

	if _, err = Aggregate(grid(2, 2), l, 0, 0); err == nil {
		t.Error("misaligned grid should be an error")
	}
}
