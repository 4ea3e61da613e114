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
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spatialmodel/pscf/hysplit"
)

const (
	testStation     = "TST"
	testReceptorLon = 5.25
	testReceptorLat = 45.25
)

// testTimes are the observation times in testdata/conc.csv.
func testTimes() []time.Time {
	t0 := time.Date(2018, time.March, 1, 0, 0, 0, 0, time.UTC)
	o := make([]time.Time, 8)
	for k := range o {
		o[k] = t0.Add(time.Duration(6*k) * time.Hour)
	}
	return o
}

// writeTrajectories writes one four-step trajectory file for each
// observation time into dir. The two most polluted PM10 observations
// come from the east and the others from the north. The first
// trajectory meets rain at its third position.
func writeTrajectories(t *testing.T, dir string) {
	for k, tt := range testTimes() {
		path := filepath.Join(dir, hysplit.FileName(hysplit.DefaultTemplate, testStation, tt))
		f, err := os.Create(path)
		if err != nil {
			t.Fatal(err)
		}
		fmt.Fprintf(f, "     1     1\n    GDAS1    18     3     1     0     0\n")
		fmt.Fprintf(f, "     1 BACKWARD OMEGA\n")
		fmt.Fprintf(f, "    18     3     1     0  %7.3f  %7.3f    500.0\n", testReceptorLat, testReceptorLon)
		fmt.Fprintf(f, "     2 PRESSURE RAINFALL\n")
		for s := 0; s < 4; s++ {
			lon, lat := testReceptorLon, testReceptorLat
			if k >= 6 {
				lon += 0.5 * float64(s)
			} else {
				lat += 0.5 * float64(s)
			}
			rain := 0.0
			if k == 0 && s == 2 {
				rain = 0.5
			}
			fmt.Fprintf(f, "     1     1    18     3     1     0     0     0 %6.1f %8.3f %8.3f %8.1f %8.1f %6.1f\n",
				float64(-s), lat, lon, 500.0-10*float64(s), 950.0, rain)
		}
		if err = f.Close(); err != nil {
			t.Fatal(err)
		}
	}
}

// setTestConfig configures a run over testdata/conc.csv with trajectories
// in trajDir.
func setTestConfig(concFile, trajDir string) {
	Cfg.Set("config", "")
	Cfg.Set("Station", testStation)
	Cfg.Set("ReceptorLon", testReceptorLon)
	Cfg.Set("ReceptorLat", testReceptorLat)
	Cfg.Set("Species", []string{"PM10", "SO4"})
	Cfg.Set("ConcentrationFile", concFile)
	Cfg.Set("ConcentrationSheet", "")
	Cfg.Set("Separator", ";")
	Cfg.Set("StartDate", "")
	Cfg.Set("EndDate", "")
	Cfg.Set("TrajectoryDir", trajDir)
	Cfg.Set("TrajectoryTemplate", hysplit.DefaultTemplate)
	Cfg.Set("Offsets", "0")
	Cfg.Set("MaxSteps", 72)
	Cfg.Set("CutWithRain", true)
	Cfg.Set("Lattice.LonMin", 0.0)
	Cfg.Set("Lattice.LonMax", 10.0)
	Cfg.Set("Lattice.LatMin", 40.0)
	Cfg.Set("Lattice.LatMax", 50.0)
	Cfg.Set("Lattice.Step", 0.5)
	Cfg.Set("Threshold.Mode", "percentile")
	Cfg.Set("Threshold.Percentile", 75.0)
	Cfg.Set("Weight.Enabled", true)
	Cfg.Set("Weight.Mode", "auto")
	Cfg.Set("Smooth", true)
	Cfg.Set("SmoothSigma", 1.0)
	Cfg.Set("OutputFile", "")
	Cfg.Set("OutputShapefile", "")
	Cfg.Set("PlotFile", "")
	Cfg.Set("LogFile", "")
	Cfg.Set("NumWorkers", 2)
	Cfg.Set("MaxRetries", 1)
}

// tempTrajectories writes the test trajectories into a new temporary
// directory and configures a run that uses them.
func tempTrajectories(t *testing.T) (dir string) {
	dir, err := ioutil.TempDir("", "pscfutil")
	if err != nil {
		t.Fatal(err)
	}
	writeTrajectories(t, dir)
	conc, err := filepath.Abs(filepath.Join("testdata", "conc.csv"))
	if err != nil {
		t.Fatal(err)
	}
	setTestConfig(conc, dir)
	return dir
}
