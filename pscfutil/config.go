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
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lnashier/viper"
	"github.com/spatialmodel/pscf"
	"github.com/spatialmodel/pscf/cloud"
	"github.com/spatialmodel/pscf/conc"
	"github.com/spf13/cast"
)

// speciesWildcard is replaced by the species name in output paths.
const speciesWildcard = "[SPECIES]"

// EngineConfig creates the configuration of the run for the given
// species from cfg, and checks that it is valid.
func EngineConfig(cfg *viper.Viper, species string) (pscf.Config, error) {
	c := pscf.Config{
		Station:            os.ExpandEnv(cfg.GetString("Station")),
		ReceptorLon:        cfg.GetFloat64("ReceptorLon"),
		ReceptorLat:        cfg.GetFloat64("ReceptorLat"),
		Species:            species,
		MaxSteps:           cfg.GetInt("MaxSteps"),
		CutAtPrecipitation: cfg.GetBool("CutWithRain"),
		Lattice: pscf.LatticeConfig{
			LonMin: cfg.GetFloat64("Lattice.LonMin"),
			LonMax: cfg.GetFloat64("Lattice.LonMax"),
			LatMin: cfg.GetFloat64("Lattice.LatMin"),
			LatMax: cfg.GetFloat64("Lattice.LatMax"),
			Step:   cfg.GetFloat64("Lattice.Step"),
		},
		Threshold: pscf.ThresholdConfig{
			Mode:       pscf.ThresholdMode(strings.ToLower(cfg.GetString("Threshold.Mode"))),
			Percentile: cfg.GetFloat64("Threshold.Percentile"),
			Value:      cfg.GetFloat64("Threshold.Value"),
		},
		Weight: pscf.WeightConfig{
			Enabled: cfg.GetBool("Weight.Enabled"),
			Mode:    pscf.WeightMode(strings.ToLower(cfg.GetString("Weight.Mode"))),
		},
		Smooth:      cfg.GetBool("Smooth"),
		SmoothSigma: cfg.GetFloat64("SmoothSigma"),
	}
	var err error
	if c.Start, err = parseDate("StartDate", cfg.GetString("StartDate")); err != nil {
		return c, err
	}
	if c.End, err = parseDate("EndDate", cfg.GetString("EndDate")); err != nil {
		return c, err
	}
	if c.Offsets, err = toFloat64SliceE(cfg.Get("Offsets")); err != nil {
		return c, &pscf.ConfigError{Param: "Offsets", Reason: err.Error()}
	}
	if c.Weight.Breakpoints, err = toFloat64SliceE(cfg.Get("Weight.Breakpoints")); err != nil {
		return c, &pscf.ConfigError{Param: "Weight.Breakpoints", Reason: err.Error()}
	}
	if c.Weight.Values, err = toFloat64SliceE(cfg.Get("Weight.Values")); err != nil {
		return c, &pscf.ConfigError{Param: "Weight.Values", Reason: err.Error()}
	}
	return c, c.Validate()
}

// parseDate parses an optional date window bound.
func parseDate(param, s string) (time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return time.Time{}, nil
	}
	t, err := conc.ParseTime(s)
	if err != nil {
		return time.Time{}, &pscf.ConfigError{Param: param, Reason: err.Error()}
	}
	return t, nil
}

// toFloat64SliceE converts a configuration value to a slice of floats.
// Command-line values arrive as strings, which may hold a comma separated
// list or a JSON array.
func toFloat64SliceE(i interface{}) ([]float64, error) {
	switch v := i.(type) {
	case nil:
		return nil, nil
	case []float64:
		return v, nil
	case string:
		v = strings.TrimSpace(v)
		if strings.HasPrefix(v, "[") {
			var o []float64
			if err := json.Unmarshal([]byte(v), &o); err != nil {
				return nil, err
			}
			return o, nil
		}
		if v == "" {
			return nil, nil
		}
		return toFloat64SliceE(strings.Split(v, ","))
	case []string:
		if len(v) == 1 && strings.HasPrefix(strings.TrimSpace(v[0]), "[") {
			return toFloat64SliceE(v[0])
		}
		o := make([]float64, len(v))
		for j, s := range v {
			f, err := cast.ToFloat64E(strings.TrimSpace(s))
			if err != nil {
				return nil, err
			}
			o[j] = f
		}
		return o, nil
	case []interface{}:
		o := make([]float64, len(v))
		for j, val := range v {
			f, err := cast.ToFloat64E(val)
			if err != nil {
				return nil, err
			}
			o[j] = f
		}
		return o, nil
	default:
		return nil, fmt.Errorf("invalid list of numbers %#v", i)
	}
}

// speciesList returns the configured species.
func speciesList(cfg *viper.Viper) ([]string, error) {
	s, err := cast.ToStringSliceE(cfg.Get("Species"))
	if err != nil {
		return nil, &pscf.ConfigError{Param: "Species", Reason: err.Error()}
	}
	var o []string
	for _, v := range s {
		for _, sp := range strings.Split(v, ",") {
			if sp = strings.TrimSpace(sp); sp != "" {
				o = append(o, sp)
			}
		}
	}
	if len(o) == 0 {
		return nil, &pscf.ConfigError{Param: "Species", Reason: "at least one species is required"}
	}
	return o, nil
}

// checkOutputFile makes sure that the directory of output file f exists,
// and expands any environment variables. Empty paths are allowed, as all
// outputs are optional.
func checkOutputFile(param, f string) (string, error) {
	if f == "" {
		return "", nil
	}
	f = os.ExpandEnv(f)
	if cloud.IsBlob(f) {
		if _, _, err := cloud.SplitURL(f); err != nil {
			return f, &pscf.ConfigError{Param: param, Reason: err.Error()}
		}
		return f, nil
	}
	outdir := filepath.Dir(f)
	if _, err := os.Stat(outdir); err != nil {
		return f, &pscf.ConfigError{Param: param, Reason: fmt.Sprintf("the output directory doesn't exist: %v", err)}
	}
	return f, nil
}

// checkLogFile returns logFile, or a log file next to outputFile if
// logFile is empty.
func checkLogFile(logFile, outputFile string) string {
	if logFile == "" && outputFile != "" {
		logFile = strings.TrimSuffix(outputFile, filepath.Ext(outputFile)) + ".log"
		logFile = strings.Replace(logFile, speciesWildcard, "all", -1)
	}
	return os.ExpandEnv(logFile)
}

// speciesPath returns the output path for one species. If there is more
// than one species and path has no [SPECIES] wildcard, the species name
// is added before the file extension.
func speciesPath(path, species string, numSpecies int) string {
	if path == "" {
		return ""
	}
	if strings.Contains(path, speciesWildcard) {
		return strings.Replace(path, speciesWildcard, species, -1)
	}
	if numSpecies == 1 {
		return path
	}
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + "_" + species + ext
}
