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

package pscfutil

import (
	"bytes"
	"context"
	"errors"
	"io/ioutil"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/pscf"
	"github.com/spatialmodel/pscf/cloud"
)

func quietLog() *logrus.Logger {
	l := logrus.New()
	l.Out = ioutil.Discard
	return l
}

func TestCalculate(t *testing.T) {
	dir := tempTrajectories(t)
	defer os.RemoveAll(dir)

	results, err := Calculate(context.Background(), Cfg, quietLog())
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("have %d results, want 2", len(results))
	}
	tests := []struct {
		species                  string
		observations             int
		threshold                float64
		total, polluted, missing float64
	}{
		{species: "PM10", observations: 8, threshold: 6.25, total: 30, polluted: 8},
		{species: "SO4", observations: 4, threshold: 3.25, total: 14, polluted: 2},
	}
	for i, test := range tests {
		t.Run(test.species, func(t *testing.T) {
			r := results[i]
			if r.Species != test.species || r.Station != testStation {
				t.Errorf("have %s at %s", r.Species, r.Station)
			}
			if r.Observations != test.observations || len(r.Runs) != test.observations || len(r.Missing) != 0 {
				t.Errorf("have %d observations, %d runs, %d missing", r.Observations, len(r.Runs), len(r.Missing))
			}
			if math.Abs(r.Threshold-test.threshold) > 1e-12 {
				t.Errorf("threshold: have %g, want %g", r.Threshold, test.threshold)
			}
			total, polluted := r.Counts.Sum()
			if total != test.total || polluted != test.polluted {
				t.Errorf("counts: have %g and %g, want %g and %g", total, polluted, test.total, test.polluted)
			}
			if r.SmoothPSCF == nil {
				t.Error("missing smoothed field")
			}
		})
	}

	pm := results[0]
	if v, _ := pm.Value(pm.PSCF, 6.8, 45.3); math.Abs(v-math.Log(2)/math.Log(8)) > 1e-12 {
		t.Errorf("pscf east of the receptor: have %g", v)
	}
	if v, _ := pm.Value(pm.PSCF, 5.3, 46.3); v != 0 {
		t.Errorf("pscf north of the receptor: have %g", v)
	}
	// The first trajectory was cut by rain.
	if pm.Runs[0].Len() != 2 || !pm.Runs[0].ReachedPrecipitation {
		t.Errorf("first trajectory has %d positions", pm.Runs[0].Len())
	}
}

func TestCalculateInvalidConfig(t *testing.T) {
	tests := []struct {
		key   string
		value interface{}
		param string
	}{
		{"Species", []string{}, "Species"},
		{"Station", "", "Station"},
		{"StartDate", "last week", "StartDate"},
		{"Offsets", "a,b", "Offsets"},
		{"Threshold.Percentile", 0.0, "Threshold.Percentile"},
		{"Weight.Mode", "fancy", "Weight.Mode"},
		{"Lattice.Step", 0.0, "Lattice.Step"},
		{"Separator", "ab", "Separator"},
		{"ConcentrationFile", "", "ConcentrationFile"},
	}
	for _, test := range tests {
		t.Run(test.key, func(t *testing.T) {
			// Configuration errors are found before any file is read.
			setTestConfig("nonexistent.csv", "nonexistent")
			Cfg.Set(test.key, test.value)
			_, err := Calculate(context.Background(), Cfg, quietLog())
			var ce *pscf.ConfigError
			if !errors.As(err, &ce) || ce.Param != test.param {
				t.Errorf("have %v, want an error for %s", err, test.param)
			}
		})
	}
}

func TestCalculateEmptyWindow(t *testing.T) {
	dir := tempTrajectories(t)
	defer os.RemoveAll(dir)
	Cfg.Set("StartDate", "2019-01-01")
	_, err := Calculate(context.Background(), Cfg, quietLog())
	if !errors.Is(err, pscf.ErrEmptyObservationWindow) {
		t.Errorf("have %v, want %v", err, pscf.ErrEmptyObservationWindow)
	}
}

func TestRun(t *testing.T) {
	dir := tempTrajectories(t)
	defer os.RemoveAll(dir)
	Cfg.Set("OutputFile", filepath.Join(dir, "pscf_[SPECIES].ncf"))
	Cfg.Set("OutputShapefile", filepath.Join(dir, "cells.shp"))
	Cfg.Set("PlotFile", filepath.Join(dir, "map.png"))

	if _, err := Run(context.Background(), Cfg, quietLog()); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{
		"pscf_PM10.ncf", "pscf_SO4.ncf",
		"cells_PM10.shp", "cells_PM10.dbf", "cells_SO4.shp",
		"map_PM10.png", "map_SO4.png",
	} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("missing output: %v", err)
		}
	}

	f, err := os.Open(filepath.Join(dir, "pscf_PM10.ncf"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	polluted, err := pscf.ReadNetCDFVar(f, "PollutedCount")
	if err != nil {
		t.Fatal(err)
	}
	if polluted.Sum() != 8 {
		t.Errorf("polluted count: have %g, want 8", polluted.Sum())
	}
}

func TestRunNoOutput(t *testing.T) {
	setTestConfig("nonexistent.csv", "nonexistent")
	_, err := Run(context.Background(), Cfg, quietLog())
	var ce *pscf.ConfigError
	if !errors.As(err, &ce) || ce.Param != "OutputFile" {
		t.Errorf("have %v, want an OutputFile error", err)
	}
}

func TestRunBlob(t *testing.T) {
	dir := tempTrajectories(t)
	defer os.RemoveAll(dir)
	concFile := Cfg.GetString("ConcentrationFile")

	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err = os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(wd)
	if err = os.Mkdir("bucket", os.ModePerm); err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	if err = cloud.Upload(ctx, concFile, "file://bucket/conc.csv"); err != nil {
		t.Fatal(err)
	}
	files, err := filepath.Glob(filepath.Join(dir, "traj_*"))
	if err != nil {
		t.Fatal(err)
	}
	for _, f := range files {
		if err = cloud.Upload(ctx, f, "file://bucket/traj/"+filepath.Base(f)); err != nil {
			t.Fatal(err)
		}
	}

	Cfg.Set("Species", []string{"PM10"})
	Cfg.Set("ConcentrationFile", "file://bucket/conc.csv")
	Cfg.Set("TrajectoryDir", "file://bucket/traj")
	Cfg.Set("OutputFile", "file://bucket/out/pscf.ncf")
	Cfg.Set("OutputShapefile", "file://bucket/out/cells.shp")
	results, err := Run(ctx, Cfg, quietLog())
	if err != nil {
		t.Fatal(err)
	}
	if len(results[0].Runs) != 8 {
		t.Errorf("have %d runs, want 8", len(results[0].Runs))
	}
	for _, name := range []string{"pscf.ncf", "cells.shp", "cells.dbf", "cells.shx"} {
		if _, err := os.Stat(filepath.Join("bucket", "out", name)); err != nil {
			t.Errorf("missing upload: %v", err)
		}
	}
}

func TestCommands(t *testing.T) {
	dir := tempTrajectories(t)
	defer os.RemoveAll(dir)

	t.Run("version", func(t *testing.T) {
		buf := new(bytes.Buffer)
		Root.SetOutput(buf)
		Root.SetArgs([]string{"version"})
		if err := Root.Execute(); err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(buf.String(), "PSCF v"+pscf.Version) {
			t.Errorf("have %q", buf.String())
		}
	})

	t.Run("lookup", func(t *testing.T) {
		logrus.SetOutput(ioutil.Discard)
		defer logrus.SetOutput(os.Stderr)
		Cfg.Set("Species", []string{"PM10"})
		Cfg.Set("lon", 6.8)
		Cfg.Set("lat", 45.3)
		Cfg.Set("polluted", true)
		buf := new(bytes.Buffer)
		Root.SetOutput(buf)
		Root.SetArgs([]string{"lookup"})
		if err := Root.Execute(); err != nil {
			t.Fatal(err)
		}
		out := buf.String()
		if !strings.Contains(out, "TST PM10: 2 trajectories through cell (6.5, 45)") {
			t.Errorf("have %q", out)
		}
		if strings.Count(out, "observed 2018-03-02") != 2 {
			t.Errorf("have %q", out)
		}
	})

	t.Run("run", func(t *testing.T) {
		logrus.SetOutput(ioutil.Discard)
		defer logrus.SetOutput(os.Stderr)
		Cfg.Set("Species", []string{"PM10"})
		Cfg.Set("OutputFile", filepath.Join(dir, "out.ncf"))
		buf := new(bytes.Buffer)
		Root.SetOutput(buf)
		Root.SetArgs([]string{"run"})
		if err := Root.Execute(); err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(buf.String(), "TST PM10: threshold 6.25, 8 runs, 0 missing trajectories") {
			t.Errorf("have %q", buf.String())
		}
		// The log file goes next to the output file.
		if _, err := os.Stat(filepath.Join(dir, "out.log")); err != nil {
			t.Error(err)
		}
	})
}
