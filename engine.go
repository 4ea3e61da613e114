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
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/ctessum/sparse"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// DefaultMaxSteps is the default number of positions kept from each
// back-trajectory.
const DefaultMaxSteps = 72

// Config holds the parameters of one PSCF run: one station, one
// species and one date window.
type Config struct {
	Station string

	// ReceptorLon and ReceptorLat give the receptor location [degrees].
	ReceptorLon, ReceptorLat float64

	// Species is informational; it is copied to the Result.
	Species string

	// Start and End bound the observations used, exclusively.
	// A zero value leaves that side unbounded.
	Start, End time.Time

	// Offsets are the trajectory start times relative to each
	// observation [hours].
	Offsets []float64

	// MaxSteps is the number of positions kept from each trajectory.
	// Zero keeps all of them.
	MaxSteps int

	// CutAtPrecipitation truncates trajectories at the onset of rain.
	CutAtPrecipitation bool

	Lattice   LatticeConfig
	Threshold ThresholdConfig
	Weight    WeightConfig

	// Smooth adds Gaussian-smoothed copies of the PSCF and density
	// grids to the Result. SmoothSigma is the kernel standard deviation
	// [cells]; zero means DefaultSmoothSigma.
	Smooth      bool
	SmoothSigma float64
}

// Validate checks c without doing any I/O. Errors are *ConfigError values.
func (c *Config) Validate() error {
	if c.Station == "" {
		return configErrorf("Station", "must be specified")
	}
	if math.IsNaN(c.ReceptorLat) || c.ReceptorLat < -90 || c.ReceptorLat > 90 {
		return configErrorf("ReceptorLat", "%g is outside of [-90, 90]", c.ReceptorLat)
	}
	if math.IsNaN(c.ReceptorLon) || c.ReceptorLon < -360 || c.ReceptorLon > 360 {
		return configErrorf("ReceptorLon", "%g is outside of [-360, 360]", c.ReceptorLon)
	}
	if !c.Start.IsZero() && !c.End.IsZero() && !c.End.After(c.Start) {
		return configErrorf("EndDate", "%s is not after StartDate %s",
			c.End.Format(time.RFC3339), c.Start.Format(time.RFC3339))
	}
	if len(c.Offsets) == 0 {
		return configErrorf("Offsets", "at least one hour offset is needed")
	}
	for _, o := range c.Offsets {
		if math.IsNaN(o) || math.IsInf(o, 0) {
			return configErrorf("Offsets", "%v contains a non-finite value", c.Offsets)
		}
	}
	if c.MaxSteps < 0 {
		return configErrorf("MaxSteps", "%d should be >= 0", c.MaxSteps)
	}
	if c.Smooth && c.SmoothSigma < 0 {
		return configErrorf("SmoothSigma", "%g should be >= 0", c.SmoothSigma)
	}
	if err := c.Lattice.Validate(); err != nil {
		return err
	}
	if err := c.Threshold.Validate(); err != nil {
		return err
	}
	return c.Weight.Validate()
}

// Window returns the observations strictly between start and end.
// A zero start or end leaves that side unbounded. The order of obs is kept.
func Window(obs []Observation, start, end time.Time) []Observation {
	out := make([]Observation, 0, len(obs))
	for _, o := range obs {
		if !start.IsZero() && !o.Time.After(start) {
			continue
		}
		if !end.IsZero() && !o.Time.Before(end) {
			continue
		}
		out = append(out, o)
	}
	return out
}

// Engine runs the PSCF pipeline. An Engine holds no per-run state and
// can be used for several runs at once.
type Engine struct {
	Decoder Decoder
	Log     logrus.FieldLogger

	// NumWorkers is the number of trajectories decoded concurrently.
	NumWorkers int

	// MaxRetries and RetryInterval configure retrying of failed decodes.
	MaxRetries    uint64
	RetryInterval time.Duration
}

// Result holds the output of a PSCF run. It should be treated as
// read-only.
type Result struct {
	// ID identifies the run in logs.
	ID string

	Station, Species         string
	ReceptorLon, ReceptorLat float64

	Lattice *Lattice

	// Threshold is the critical concentration.
	Threshold float64

	// Observations is the number of observations in the date window.
	Observations int

	// Runs are the assembled back-trajectories.
	Runs []*BackTrajectory

	// Missing lists the trajectories that could not be decoded.
	Missing []MissingTrajectory

	Counts *CountGrid
	*Field

	// SmoothPSCF and SmoothDensity are nil unless smoothing was
	// requested.
	SmoothPSCF, SmoothDensity *sparse.DenseArray

	Directions Distribution

	// Degenerate is true if no trajectory position fell within the
	// lattice. All grids are then zero.
	Degenerate bool

	indexOnce sync.Once
	index     *TrajectoryIndex
}

func (e *Engine) log() logrus.FieldLogger {
	if e.Log == nil {
		return logrus.StandardLogger()
	}
	return e.Log
}

// Run calculates the PSCF for the observations obs. Configuration errors
// are returned before any trajectory is decoded. ErrEmptyObservationWindow
// is returned if no observation falls in the date window. Missing
// trajectories and grids without any visited cell are not errors.
func (e *Engine) Run(ctx context.Context, c Config, obs []Observation) (*Result, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if e.Decoder == nil {
		return nil, errors.New("pscf: engine has no decoder")
	}
	lattice, err := NewLattice(c.Lattice)
	if err != nil {
		return nil, err
	}
	r := &Result{
		ID:          uuid.New().String(),
		Station:     c.Station,
		Species:     c.Species,
		ReceptorLon: c.ReceptorLon,
		ReceptorLat: c.ReceptorLat,
		Lattice:     lattice,
	}
	log := e.log().WithFields(logrus.Fields{
		"run_id":  r.ID,
		"station": c.Station,
		"species": c.Species,
	})

	windowed := Window(obs, c.Start, c.End)
	r.Observations = len(windowed)
	if len(windowed) == 0 {
		return nil, ErrEmptyObservationWindow
	}
	conc := make([]float64, len(windowed))
	for i, o := range windowed {
		conc[i] = o.Concentration
	}
	r.Threshold, err = SelectThreshold(conc, c.Threshold)
	if err != nil {
		return nil, err
	}
	log.WithFields(logrus.Fields{
		"observations": r.Observations,
		"threshold":    r.Threshold,
	}).Info("selected critical concentration")

	a := &Assembler{
		Decoder:            e.Decoder,
		Station:            c.Station,
		Offsets:            c.Offsets,
		MaxSteps:           c.MaxSteps,
		CutAtPrecipitation: c.CutAtPrecipitation,
		NumWorkers:         e.NumWorkers,
		MaxRetries:         e.MaxRetries,
		RetryInterval:      e.RetryInterval,
		Log:                log,
	}
	r.Runs, r.Missing, err = a.Assemble(ctx, windowed)
	if err != nil {
		return nil, fmt.Errorf("pscf: assembling trajectories: %w", err)
	}
	log.WithFields(logrus.Fields{
		"trajectories": len(r.Runs),
		"missing":      len(r.Missing),
	}).Info("assembled back-trajectories")

	r.Counts = Bin(r.Runs, lattice, r.Threshold)
	if r.Counts.Degenerate() {
		r.Degenerate = true
		log.WithField("lattice", lattice.String()).Warn("no trajectory positions fall within the lattice")
	}

	r.Field, err = BuildField(r.Counts, c.Weight)
	if err != nil {
		return nil, err
	}
	if c.Smooth {
		sigma := c.SmoothSigma
		if sigma == 0 {
			sigma = DefaultSmoothSigma
		}
		r.SmoothPSCF = GaussianFilter(r.PSCF, sigma)
		r.SmoothDensity = GaussianFilter(r.Density, sigma)
	}

	r.Directions, err = Aggregate(r.Counts.Polluted, lattice, c.ReceptorLon, c.ReceptorLat)
	if err != nil {
		return nil, err
	}
	r.index = NewTrajectoryIndex(r.Runs, lattice)
	return r, nil
}

// Lookup returns the back-trajectories passing through the cell that
// contains (lon, lat).
func (r *Result) Lookup(lon, lat float64) []*BackTrajectory {
	return r.trajectoryIndex().Lookup(lon, lat)
}

// LookupPolluted returns the back-trajectories passing through the cell
// that contains (lon, lat) whose concentration is at or above
// the critical concentration.
func (r *Result) LookupPolluted(lon, lat float64) []*BackTrajectory {
	return r.trajectoryIndex().LookupPolluted(lon, lat, r.Threshold)
}

// trajectoryIndex returns the index built by Engine.Run, or builds one
// for Results assembled by hand. It is safe for concurrent use.
func (r *Result) trajectoryIndex() *TrajectoryIndex {
	r.indexOnce.Do(func() {
		if r.index == nil {
			r.index = NewTrajectoryIndex(r.Runs, r.Lattice)
		}
	})
	return r.index
}

// Value returns the value of grid g for the cell containing (lon, lat).
// ok is false if the point is outside of the lattice.
func (r *Result) Value(g *sparse.DenseArray, lon, lat float64) (v float64, ok bool) {
	i, j, ok := r.Lattice.Index(lon, lat)
	if !ok {
		return 0, false
	}
	return g.Get(j, i), true
}
