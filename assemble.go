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
	"runtime"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/ctessum/geom"
	"github.com/sirupsen/logrus"
)

// Assembler retrieves the back-trajectories associated with a set of
// receptor observations.
type Assembler struct {
	Decoder Decoder
	Station string

	// Offsets are the trajectory start times relative to each
	// observation [hours]. Every offset produces one BackTrajectory per
	// observation, and all of them inherit the observation's
	// concentration.
	Offsets []float64

	// MaxSteps is the maximum number of positions kept from each
	// decoded trajectory. Zero means no limit.
	MaxSteps int

	// CutAtPrecipitation truncates each trajectory immediately before
	// the first position with non-zero precipitation.
	CutAtPrecipitation bool

	// NumWorkers is the number of trajectories decoded concurrently.
	// If < 1, runtime.GOMAXPROCS(0) is used.
	NumWorkers int

	// MaxRetries is the number of times a failed decode is retried
	// before the trajectory is considered missing. Missing trajectories
	// are never retried.
	MaxRetries uint64

	// RetryInterval is the wait between retries. If zero, an
	// exponential backoff is used.
	RetryInterval time.Duration

	Log logrus.FieldLogger
}

type assembleJob struct {
	k      int
	obs    Observation
	offset float64
}

// Assemble decodes one trajectory for every combination of observation
// and offset. Trajectories that cannot be decoded are reported in
// missing and otherwise ignored. An error is only returned if ctx is
// canceled. The output order follows the order of obs and then of
// a.Offsets.
func (a *Assembler) Assemble(ctx context.Context, obs []Observation) (runs []*BackTrajectory, missing []MissingTrajectory, err error) {
	if a.Decoder == nil {
		return nil, nil, errors.New("pscf: assembler has no decoder")
	}
	n := len(obs) * len(a.Offsets)
	// Each job owns one slot, so workers never write to the same element.
	runSlots := make([]*BackTrajectory, n)
	missSlots := make([]*MissingTrajectory, n)

	nprocs := a.NumWorkers
	if nprocs < 1 {
		nprocs = runtime.GOMAXPROCS(0)
	}
	jobs := make(chan assembleJob)
	var wg sync.WaitGroup
	wg.Add(nprocs)
	for p := 0; p < nprocs; p++ {
		go func() {
			defer wg.Done()
			for j := range jobs {
				runSlots[j.k], missSlots[j.k] = a.assembleOne(ctx, j.obs, j.offset)
			}
		}()
	}

	k := 0
send:
	for _, o := range obs {
		for _, offset := range a.Offsets {
			select {
			case jobs <- assembleJob{k: k, obs: o, offset: offset}:
			case <-ctx.Done():
				break send
			}
			k++
		}
	}
	close(jobs)
	wg.Wait()
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	runs = make([]*BackTrajectory, 0, n)
	for i := range runSlots {
		if runSlots[i] != nil {
			runs = append(runs, runSlots[i])
		}
		if missSlots[i] != nil {
			missing = append(missing, *missSlots[i])
		}
	}
	return runs, missing, nil
}

func (a *Assembler) log() logrus.FieldLogger {
	if a.Log == nil {
		return logrus.StandardLogger()
	}
	return a.Log
}

func (a *Assembler) assembleOne(ctx context.Context, o Observation, offset float64) (*BackTrajectory, *MissingTrajectory) {
	src := o.Time.Add(time.Duration(offset * float64(time.Hour)))
	tr, err := a.decode(ctx, src)
	if err != nil {
		if ctx.Err() != nil {
			return nil, nil
		}
		a.log().WithFields(logrus.Fields{
			"station":     a.Station,
			"source_time": src.Format(time.RFC3339),
			"offset_h":    offset,
		}).WithError(err).Warn("back-trajectory is missing")
		return nil, &MissingTrajectory{
			Station:  a.Station,
			Observed: o.Time,
			Source:   src,
			Offset:   offset,
			Err:      err,
		}
	}

	samples := tr.Samples
	if a.MaxSteps > 0 && len(samples) > a.MaxSteps {
		samples = samples[:a.MaxSteps]
	}
	bt := &BackTrajectory{
		Observed:      o.Time,
		Source:        src,
		Offset:        offset,
		Concentration: o.Concentration,
	}
	if a.CutAtPrecipitation {
		for i, s := range samples {
			if s.Rain != 0 {
				samples = samples[:i]
				bt.ReachedPrecipitation = true
				break
			}
		}
	}
	bt.LineString = make(geom.LineString, len(samples))
	for i, s := range samples {
		bt.LineString[i] = geom.Point{X: s.Lon, Y: s.Lat}
	}
	return bt, nil
}

// decode retrieves a trajectory, retrying transient failures.
// Errors wrapping ErrMissingTrajectory are returned immediately.
func (a *Assembler) decode(ctx context.Context, t time.Time) (*Trajectory, error) {
	var tr *Trajectory
	var notFound error
	op := func() error {
		var err error
		tr, err = a.Decoder.Decode(ctx, a.Station, t)
		if err != nil && errors.Is(err, ErrMissingTrajectory) {
			notFound = err
			return nil
		}
		return err
	}
	var b backoff.BackOff
	if a.RetryInterval > 0 {
		b = backoff.NewConstantBackOff(a.RetryInterval)
	} else {
		b = backoff.NewExponentialBackOff()
	}
	b = backoff.WithContext(backoff.WithMaxRetries(b, a.MaxRetries), ctx)
	err := backoff.RetryNotify(op, b, func(err error, d time.Duration) {
		a.log().WithFields(logrus.Fields{
			"station":     a.Station,
			"source_time": t.Format(time.RFC3339),
		}).WithError(err).Debugf("decoding failed; retrying in %v", d)
	})
	switch {
	case notFound != nil:
		return nil, notFound
	case err != nil:
		return nil, fmt.Errorf("pscf: decoding trajectory: %w", err)
	case tr == nil:
		return nil, fmt.Errorf("%w: decoder returned no trajectory", ErrMissingTrajectory)
	}
	return tr, nil
}
