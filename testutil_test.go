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
	"fmt"
	"sync"
	"time"

	"github.com/ctessum/sparse"
	"github.com/sirupsen/logrus"
)

// mapDecoder serves trajectories from memory and counts calls.
type mapDecoder struct {
	mu    sync.Mutex
	trajs map[time.Time]*Trajectory
	calls map[time.Time]int
}

func newMapDecoder() *mapDecoder {
	return &mapDecoder{
		trajs: make(map[time.Time]*Trajectory),
		calls: make(map[time.Time]int),
	}
}

func (d *mapDecoder) add(t time.Time, s ...Sample) {
	d.trajs[t.UTC()] = &Trajectory{Samples: s}
}

func (d *mapDecoder) Decode(_ context.Context, station string, t time.Time) (*Trajectory, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls[t.UTC()]++
	tr, ok := d.trajs[t.UTC()]
	if !ok {
		return nil, fmt.Errorf("%w: %s %s", ErrMissingTrajectory, station, t.Format(time.RFC3339))
	}
	return tr, nil
}

func (d *mapDecoder) numCalls(t time.Time) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls[t.UTC()]
}

func date(h int) time.Time {
	return time.Date(2018, time.March, 1, h, 0, 0, 0, time.UTC)
}

func quietLog() logrus.FieldLogger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func grid(ny, nx int, vals ...float64) *sparse.DenseArray {
	g := sparse.ZerosDense(ny, nx)
	copy(g.Elements, vals)
	return g
}
