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
	"errors"
	"testing"
)

func TestNewLattice(t *testing.T) {
	l, err := NewLattice(LatticeConfig{LonMin: -10, LonMax: 30, LatMin: 30, LatMax: 60, Step: 0.5})
	if err != nil {
		t.Fatal(err)
	}
	if l.Nx != 81 || l.Ny != 61 {
		t.Errorf("size: have %dx%d, want 81x61", l.Nx, l.Ny)
	}
	g := l.NewGrid()
	if g.Shape[0] != l.Ny || g.Shape[1] != l.Nx {
		t.Errorf("grid shape: have %v", g.Shape)
	}
	b := l.Bounds()
	if b.Max.X != 30.5 || b.Max.Y != 60.5 {
		t.Errorf("bounds: have %+v", b)
	}
}

func TestLatticeValidate(t *testing.T) {
	tests := []struct {
		name  string
		c     LatticeConfig
		param string
	}{
		{"zero step", LatticeConfig{LonMax: 1, LatMax: 1}, "Lattice.Step"},
		{"lon reversed", LatticeConfig{LonMin: 2, LonMax: 1, LatMax: 1, Step: 1}, "Lattice.LonMax"},
		{"lat reversed", LatticeConfig{LonMax: 1, LatMin: 2, LatMax: 1, Step: 1}, "Lattice.LatMax"},
		{"lat range", LatticeConfig{LonMax: 1, LatMin: -95, LatMax: 1, Step: 1}, "Lattice.LatMin"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			err := test.c.Validate()
			if !errors.Is(err, ErrInvalidConfiguration) {
				t.Fatalf("have %v, want invalid configuration", err)
			}
			var ce *ConfigError
			if !errors.As(err, &ce) || ce.Param != test.param {
				t.Errorf("param: have %v, want %s", err, test.param)
			}
		})
	}
}

func TestLatticeIndex(t *testing.T) {
	l, err := NewLattice(LatticeConfig{LonMin: 0, LonMax: 2, LatMin: 10, LatMax: 12, Step: 0.5})
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		lon, lat float64
		i, j     int
		ok       bool
	}{
		{0, 10, 0, 0, true},
		{0.25, 10.25, 0, 0, true},
		{0.5, 10, 1, 0, true}, // boundary goes to the higher cell
		{0.1 + 0.2 + 0.2, 10.5, 1, 1, true},
		{1.5, 11.5, 3, 3, true},
		{2.49, 12.49, 4, 4, true},
		{2.5, 12, 5, 4, false},
		{-0.01, 11, -1, 2, false},
	}
	for _, test := range tests {
		i, j, ok := l.Index(test.lon, test.lat)
		if i != test.i || j != test.j || ok != test.ok {
			t.Errorf("Index(%g, %g): have (%d, %d, %v), want (%d, %d, %v)",
				test.lon, test.lat, i, j, ok, test.i, test.j, test.ok)
		}
	}

	x, y := l.Floor(0.5, 10.99)
	if x != 0.5 || y != 10.5 {
		t.Errorf("Floor: have (%g, %g), want (0.5, 10.5)", x, y)
	}
	x, y = l.Center(1, 2)
	if x != 0.75 || y != 11.25 {
		t.Errorf("Center: have (%g, %g)", x, y)
	}
	if c := l.Cell(1, 2); c.Bounds().Min.X != 0.5 || c.Bounds().Max.Y != 11.5 {
		t.Errorf("Cell: have %v", c)
	}
}
