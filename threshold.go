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
	"sort"
)

// ThresholdMode selects how the critical concentration is derived.
type ThresholdMode string

const (
	// ThresholdPercentile uses a percentile of the observed concentrations.
	ThresholdPercentile ThresholdMode = "percentile"
	// ThresholdFixed uses a fixed concentration.
	ThresholdFixed ThresholdMode = "fixed"
)

// ThresholdConfig specifies the critical concentration separating
// "polluted" from "background" observations.
type ThresholdConfig struct {
	Mode ThresholdMode

	// Percentile is used when Mode is ThresholdPercentile. It must be
	// in (0, 100].
	Percentile float64

	// Value is used when Mode is ThresholdFixed.
	Value float64
}

// Validate checks that exactly one usable mode is configured.
func (c ThresholdConfig) Validate() error {
	switch c.Mode {
	case ThresholdPercentile:
		if !(c.Percentile > 0 && c.Percentile <= 100) {
			return configErrorf("Threshold.Percentile", "%g is outside of (0, 100]", c.Percentile)
		}
	case ThresholdFixed:
		if math.IsNaN(c.Value) || math.IsInf(c.Value, 0) {
			return configErrorf("Threshold.Value", "%g is not a finite number", c.Value)
		}
	case "":
		return configErrorf("Threshold.Mode", "neither a percentile nor a fixed threshold is specified")
	default:
		return configErrorf("Threshold.Mode", "%q is not one of %q or %q", c.Mode, ThresholdPercentile, ThresholdFixed)
	}
	return nil
}

// SelectThreshold returns the critical concentration for the given
// concentrations. ErrEmptyObservationWindow is returned when there are
// no concentrations, in either mode. The input is not modified.
func SelectThreshold(concentrations []float64, c ThresholdConfig) (float64, error) {
	if err := c.Validate(); err != nil {
		return math.NaN(), err
	}
	if len(concentrations) == 0 {
		return math.NaN(), ErrEmptyObservationWindow
	}
	if c.Mode == ThresholdFixed {
		return c.Value, nil
	}
	return Percentile(concentrations, c.Percentile), nil
}

// Percentile returns the p-th percentile (0 <= p <= 100) of values, linearly
// interpolating between the closest order statistics. For example,
// the 75th percentile of 1..10 is 7.75.
func Percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	index := p / 100 * float64(len(sorted)-1)
	lower := int(math.Floor(index))
	upper := int(math.Ceil(index))
	if lower < 0 {
		return sorted[0]
	}
	if upper >= len(sorted) {
		return sorted[len(sorted)-1]
	}
	if lower == upper {
		return sorted[lower]
	}
	w := index - float64(lower)
	return sorted[lower]*(1-w) + sorted[upper]*w
}
