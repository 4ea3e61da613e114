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

// Package pscf calculates the Potential Source Contribution Function (PSCF)
// for a receptor station from a set of back-trajectories and a
// co-registered concentration time series.
package pscf

import (
	"context"
	"time"

	"github.com/ctessum/geom"
)

// Version gives the version number.
const Version = "0.3.0"

// Observation is a concentration measured at the receptor.
type Observation struct {
	Time          time.Time
	Concentration float64
}

// Sample is one position of a decoded back-trajectory.
type Sample struct {
	Lon, Lat float64
	// Height above ground [m].
	Height float64
	// Rain is the precipitation reported at this position [mm/h].
	Rain float64
}

// Trajectory is a decoded back-trajectory record, ordered from the
// receptor backward in time.
type Trajectory struct {
	Samples []Sample
}

// A Decoder retrieves the back-trajectory that started at the given station
// at time t. If there is no such trajectory, the returned error must wrap
// ErrMissingTrajectory. Any other error is treated as transient and may be
// retried.
type Decoder interface {
	Decode(ctx context.Context, station string, t time.Time) (*Trajectory, error)
}

// DecoderFunc adapts a function to the Decoder interface.
type DecoderFunc func(ctx context.Context, station string, t time.Time) (*Trajectory, error)

// Decode calls f.
func (f DecoderFunc) Decode(ctx context.Context, station string, t time.Time) (*Trajectory, error) {
	return f(ctx, station, t)
}

// BackTrajectory is a back-trajectory associated with a receptor
// observation. The embedded LineString holds the positions, with
// X = longitude and Y = latitude.
type BackTrajectory struct {
	geom.LineString

	// Observed is the time of the receptor observation.
	Observed time.Time

	// Source is the start time of the trajectory, which is
	// Observed + Offset hours.
	Source time.Time
	Offset float64

	// Concentration is inherited from the receptor observation.
	Concentration float64

	// ReachedPrecipitation is true if the trajectory was truncated
	// at the onset of rain.
	ReachedPrecipitation bool
}

// Len returns the number of positions in the trajectory.
func (b *BackTrajectory) Len() int { return len(b.LineString) }
