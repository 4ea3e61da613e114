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

	"github.com/ctessum/sparse"
	"github.com/golang/geo/r3"
	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"
	"gonum.org/v1/gonum/floats"
)

const (
	// NumSectors is the number of bearing sectors.
	NumSectors = 16

	// SectorWidth is the width of each bearing sector [degrees].
	SectorWidth = 360.0 / NumSectors

	bearingPrecision = 1e9
)

// minBearingDistance is the separation below which a point is taken to be
// at the receptor.
var minBearingDistance = s1.Angle(1e-12)

// Sector is one bearing sector of a Distribution.
type Sector struct {
	// Start is the lower bound of the sector [degrees from East,
	// counter-clockwise].
	Start float64 `json:"start"`

	// Percent is the share of polluted trajectory positions in
	// the sector.
	Percent float64 `json:"percent"`
}

// Distribution is the directional distribution of polluted trajectory
// positions around the receptor. Percentages sum to 100, or to 0 when
// there are no polluted positions.
type Distribution []Sector

// Bearing returns the direction [degrees, in [0, 360)] from the receptor at
// (lon0, lat0) to the point (lon, lat), measured counter-clockwise from
// East, so that North is 90, West is 180 and South is 270.
//
// The direction is that of the great circle leaving the receptor towards
// the point, resolved into the local East and North unit vectors. A point
// at the receptor itself has bearing 90.
func Bearing(lon0, lat0, lon, lat float64) float64 {
	r := s2.LatLngFromDegrees(lat0, lon0)
	a := s2.PointFromLatLng(r)
	b := s2.PointFromLatLng(s2.LatLngFromDegrees(lat, lon))
	if a.Distance(b) < minBearingDistance {
		return 90
	}
	// Tangent at a of the great circle through a and b.
	t := b.Sub(a.Mul(a.Dot(b.Vector)))
	east := r3.Vector{X: -math.Sin(r.Lng.Radians()), Y: math.Cos(r.Lng.Radians())}
	north := a.Cross(east)
	bearing := s1.Angle(math.Atan2(t.Dot(north), t.Dot(east))).Degrees()
	// Round off conversion error so that bearings on sector edges
	// are classified consistently.
	bearing = math.Round(bearing*bearingPrecision) / bearingPrecision
	if bearing < 0 {
		bearing += 360
	}
	if bearing >= 360 {
		bearing -= 360
	}
	return bearing
}

// SectorIndex returns the sector containing bearing b. Sector 0 holds
// bearings <= SectorWidth, and sector i > 0 holds bearings in
// (i·SectorWidth, (i+1)·SectorWidth].
func SectorIndex(b float64) int {
	if b <= SectorWidth {
		return 0
	}
	i := int(math.Ceil(b/SectorWidth)) - 1
	if i >= NumSectors {
		i = NumSectors - 1
	}
	return i
}

// Aggregate sums the polluted counts of each lattice cell into the
// bearing sector of the cell center as seen from the receptor at
// (rlon, rlat), and normalizes the sums to percentages.
func Aggregate(polluted *sparse.DenseArray, l *Lattice, rlon, rlat float64) (Distribution, error) {
	if err := l.checkGrid("polluted", polluted); err != nil {
		return nil, err
	}
	sums := make([]float64, NumSectors)
	for j := 0; j < l.Ny; j++ {
		for i := 0; i < l.Nx; i++ {
			v := polluted.Get(j, i)
			if v == 0 {
				continue
			}
			lon, lat := l.Center(i, j)
			sums[SectorIndex(Bearing(rlon, rlat, lon, lat))] += v
		}
	}
	total := floats.Sum(sums)
	if total > 0 {
		floats.Scale(100/total, sums)
	}
	d := make(Distribution, NumSectors)
	for i := range d {
		d[i] = Sector{Start: float64(i) * SectorWidth, Percent: sums[i]}
	}
	return d, nil
}

// Total returns the sum of the sector percentages.
func (d Distribution) Total() float64 {
	var t float64
	for _, s := range d {
		t += s.Percent
	}
	return t
}
