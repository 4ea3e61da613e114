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
	"fmt"
	"time"
)

var (
	// ErrInvalidConfiguration is returned when threshold, weighting or
	// lattice parameters are malformed or contradictory. Errors of this kind
	// are returned before any trajectory is read.
	ErrInvalidConfiguration = errors.New("pscf: invalid configuration")

	// ErrEmptyObservationWindow is returned when the date window selects
	// no observations, so no critical concentration can be derived.
	ErrEmptyObservationWindow = errors.New("pscf: empty observation window")

	// ErrMissingTrajectory is returned by a Decoder when there is no
	// trajectory for the requested station and time. The engine treats
	// it as a per-run skip.
	ErrMissingTrajectory = errors.New("pscf: missing trajectory")
)

// ConfigError describes an invalid configuration parameter.
// errors.Is(err, ErrInvalidConfiguration) is true for every ConfigError.
type ConfigError struct {
	// Param is the name of the offending parameter.
	Param string
	// Reason says what is wrong with it.
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("pscf: invalid configuration parameter %s: %s", e.Param, e.Reason)
}

// Is makes ConfigError match ErrInvalidConfiguration.
func (e *ConfigError) Is(target error) bool { return target == ErrInvalidConfiguration }

func configErrorf(param, format string, args ...interface{}) error {
	return &ConfigError{Param: param, Reason: fmt.Sprintf(format, args...)}
}

// MissingTrajectory records a trajectory that could not be decoded.
// It is not fatal: the corresponding run contributes no samples.
type MissingTrajectory struct {
	Station string
	// Observed is the time of the receptor observation.
	Observed time.Time
	// Source is the requested trajectory start time.
	Source time.Time
	// Offset is the hour offset that produced Source.
	Offset float64
	Err    error
}

func (m MissingTrajectory) String() string {
	return fmt.Sprintf("%s %s (offset %gh): %v", m.Station,
		m.Source.Format("2006-01-02 15:04"), m.Offset, m.Err)
}
