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
	"context"
	"errors"
	"testing"
)

func TestCachedDecoder(t *testing.T) {
	d := newMapDecoder()
	d.add(date(0), Sample{Lon: 4, Lat: 5})
	c := NewCachedDecoder(d, 10)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		tr, err := c.Decode(ctx, "rec", date(0))
		if err != nil {
			t.Fatal(err)
		}
		if tr.Samples[0].Lon != 4 {
			t.Errorf("have %+v", tr)
		}
		_, err = c.Decode(ctx, "rec", date(1))
		if !errors.Is(err, ErrMissingTrajectory) {
			t.Errorf("have %v, want missing trajectory", err)
		}
	}
	if n := d.numCalls(date(0)); n != 1 {
		t.Errorf("decoded %d times, want 1", n)
	}
	if n := d.numCalls(date(1)); n != 1 {
		t.Errorf("missing trajectory looked up %d times, want 1", n)
	}

	// Different stations are cached separately.
	if _, err := c.Decode(ctx, "other", date(0)); err != nil {
		t.Fatal(err)
	}
	if n := d.numCalls(date(0)); n != 2 {
		t.Errorf("decoded %d times, want 2", n)
	}
}
