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

// Package pscfutil contains the command-line interface and configuration
// handling for the PSCF engine.
package pscfutil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/lnashier/viper"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/pscf"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Cfg holds configuration information.
var Cfg *viper.Viper

type option struct {
	name, usage, shorthand string
	defaultVal             interface{}
	flagsets               []*pflag.FlagSet
}

var options []option

func init() {
	// engineSets are the commands that run the full pipeline.
	engineSets := []*pflag.FlagSet{runCmd.Flags(), lookupCmd.Flags(), serveCmd.Flags()}

	// Options are the configuration options available to PSCF.
	options = []option{
		{
			name: "config",
			usage: `
              config specifies the configuration file location.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "Station",
			usage: `
              Station is the name of the receptor station. It replaces the
              [STATION] wildcard in TrajectoryTemplate.`,
			shorthand:  "s",
			defaultVal: "",
			flagsets:   engineSets,
		},
		{
			name: "ReceptorLon",
			usage: `
              ReceptorLon is the longitude of the receptor station [degrees].`,
			defaultVal: 0.0,
			flagsets:   engineSets,
		},
		{
			name: "ReceptorLat",
			usage: `
              ReceptorLat is the latitude of the receptor station [degrees].`,
			defaultVal: 0.0,
			flagsets:   engineSets,
		},
		{
			name: "Species",
			usage: `
              Species lists the concentration columns to calculate PSCF for.
              Each species is calculated independently.`,
			defaultVal: []string{},
			flagsets:   engineSets,
		},
		{
			name: "ConcentrationFile",
			usage: `
              ConcentrationFile is the path to the receptor concentrations.
              It can be a delimited text file or an Excel (.xlsx) workbook,
              with a 'date' column and one column per species. It can be a
              local path or a blob storage location (e.g., s3://bucket/conc.csv).`,
			shorthand:  "c",
			defaultVal: "",
			flagsets:   engineSets,
		},
		{
			name: "ConcentrationSheet",
			usage: `
              ConcentrationSheet is the worksheet to read from an Excel
              ConcentrationFile. The first sheet is used if it is empty.`,
			defaultVal: "",
			flagsets:   engineSets,
		},
		{
			name: "Separator",
			usage: `
              Separator is the field separator of a delimited text
              ConcentrationFile.`,
			defaultVal: ";",
			flagsets:   engineSets,
		},
		{
			name: "StartDate",
			usage: `
              StartDate is the beginning of the date window (exclusive),
              e.g. "2018-01-01 00:00". Leave empty for no lower bound.`,
			defaultVal: "",
			flagsets:   engineSets,
		},
		{
			name: "EndDate",
			usage: `
              EndDate is the end of the date window (exclusive).
              Leave empty for no upper bound.`,
			defaultVal: "",
			flagsets:   engineSets,
		},
		{
			name: "TrajectoryDir",
			usage: `
              TrajectoryDir is the directory holding the HYSPLIT trajectory
              files. It can be a blob storage location.`,
			defaultVal: ".",
			flagsets:   engineSets,
		},
		{
			name: "TrajectoryTemplate",
			usage: `
              TrajectoryTemplate is the trajectory file name template.
              [STATION] is replaced by the station name and [DATE] by the
              trajectory start time formatted as yymmddHH.`,
			defaultVal: "traj_[STATION]_[DATE]",
			flagsets:   engineSets,
		},
		{
			name: "Offsets",
			usage: `
              Offsets are the trajectory start times relative to each
              observation [hours]. One trajectory is used per offset.`,
			defaultVal: []float64{-3, 0, 3},
			flagsets:   engineSets,
		},
		{
			name: "MaxSteps",
			usage: `
              MaxSteps is the number of trajectory positions used, i.e. the
              number of hours in the past for hourly trajectories.
              Zero uses every position.`,
			defaultVal: pscf.DefaultMaxSteps,
			flagsets:   engineSets,
		},
		{
			name: "CutWithRain",
			usage: `
              CutWithRain specifies whether trajectories are truncated at
              the first position with precipitation.`,
			defaultVal: true,
			flagsets:   engineSets,
		},
		{
			name: "Lattice.LonMin",
			usage: `
              Lattice.LonMin is the western edge of the grid [degrees].`,
			defaultVal: -10.0,
			flagsets:   engineSets,
		},
		{
			name: "Lattice.LonMax",
			usage: `
              Lattice.LonMax is the western edge of the last grid column [degrees].`,
			defaultVal: 20.0,
			flagsets:   engineSets,
		},
		{
			name: "Lattice.LatMin",
			usage: `
              Lattice.LatMin is the southern edge of the grid [degrees].`,
			defaultVal: 37.5,
			flagsets:   engineSets,
		},
		{
			name: "Lattice.LatMax",
			usage: `
              Lattice.LatMax is the southern edge of the last grid row [degrees].`,
			defaultVal: 60.0,
			flagsets:   engineSets,
		},
		{
			name: "Lattice.Step",
			usage: `
              Lattice.Step is the grid cell size [degrees].`,
			defaultVal: pscf.DefaultStep,
			flagsets:   engineSets,
		},
		{
			name: "Threshold.Mode",
			usage: `
              Threshold.Mode is either "percentile", to use a percentile of
              the observed concentrations as the critical concentration,
              or "fixed".`,
			defaultVal: string(pscf.ThresholdPercentile),
			flagsets:   engineSets,
		},
		{
			name: "Threshold.Percentile",
			usage: `
              Threshold.Percentile is the percentile in (0, 100] used when
              Threshold.Mode is "percentile".`,
			defaultVal: 75.0,
			flagsets:   engineSets,
		},
		{
			name: "Threshold.Value",
			usage: `
              Threshold.Value is the critical concentration used when
              Threshold.Mode is "fixed".`,
			defaultVal: 0.0,
			flagsets:   engineSets,
		},
		{
			name: "Weight.Enabled",
			usage: `
              Weight.Enabled specifies whether cells with few trajectory
              positions are down-weighted.`,
			defaultVal: true,
			flagsets:   engineSets,
		},
		{
			name: "Weight.Mode",
			usage: `
              Weight.Mode is "auto" for a continuous weight based on the
              logarithm of the cell count, or "manual" for stepwise weights.`,
			defaultVal: string(pscf.WeightAuto),
			flagsets:   engineSets,
		},
		{
			name: "Weight.Breakpoints",
			usage: `
              Weight.Breakpoints are the 3 ascending fractions of the
              maximum log10 trajectory density separating the manual
              weight bands.`,
			defaultVal: []float64{0.3, 0.5, 0.85},
			flagsets:   engineSets,
		},
		{
			name: "Weight.Values",
			usage: `
              Weight.Values are the 4 manual weights, from the lowest to
              the highest density band.`,
			defaultVal: []float64{0.05, 0.15, 0.5, 1},
			flagsets:   engineSets,
		},
		{
			name: "Smooth",
			usage: `
              Smooth specifies whether Gaussian-smoothed PSCF and density
              fields are calculated.`,
			defaultVal: true,
			flagsets:   engineSets,
		},
		{
			name: "SmoothSigma",
			usage: `
              SmoothSigma is the standard deviation of the smoothing kernel
              [grid cells].`,
			defaultVal: pscf.DefaultSmoothSigma,
			flagsets:   engineSets,
		},
		{
			name: "OutputFile",
			usage: `
              OutputFile is the path to the NetCDF output file. [SPECIES] is
              replaced by the species name. It can be a blob storage location.`,
			shorthand:  "o",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "OutputShapefile",
			usage: `
              OutputShapefile is an optional path for a shapefile with one
              polygon per grid cell.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "PlotFile",
			usage: `
              PlotFile is an optional path for a map of the PSCF field.
              The format is taken from the extension (e.g., .png or .pdf).`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "LogFile",
			usage: `
              LogFile is the path to the desired logfile location. It can
              include environment variables. If LogFile is left blank, the
              logfile will be saved in the same location as the OutputFile.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "NumWorkers",
			usage: `
              NumWorkers is the number of trajectory files decoded
              concurrently. Zero uses one worker per processor.`,
			defaultVal: 0,
			flagsets:   engineSets,
		},
		{
			name: "MaxRetries",
			usage: `
              MaxRetries is the number of times reading a trajectory file
              is retried after a transient error.`,
			defaultVal: 3,
			flagsets:   engineSets,
		},
		{
			name: "CacheSize",
			usage: `
              CacheSize is the number of decoded trajectories kept in
              memory and shared between species.`,
			defaultVal: pscf.DefaultCacheSize,
			flagsets:   engineSets,
		},
		{
			name: "lon",
			usage: `
              lon is the longitude of the point to look up.`,
			defaultVal: 0.0,
			flagsets:   []*pflag.FlagSet{lookupCmd.Flags()},
		},
		{
			name: "lat",
			usage: `
              lat is the latitude of the point to look up.`,
			defaultVal: 0.0,
			flagsets:   []*pflag.FlagSet{lookupCmd.Flags()},
		},
		{
			name: "polluted",
			usage: `
              polluted limits the lookup to trajectories with concentrations
              at or above the critical concentration.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{lookupCmd.Flags()},
		},
		{
			name: "addr",
			usage: `
              addr is the address the query server listens on.`,
			defaultVal: ":8080",
			flagsets:   []*pflag.FlagSet{serveCmd.Flags()},
		},
	}

	Cfg = viper.New()

	// Set the prefix for configuration environment variables.
	Cfg.SetEnvPrefix("PSCF")
	Cfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	Cfg.AutomaticEnv()

	for _, option := range options {
		for i, set := range option.flagsets {
			if i != 0 { // We don't want to create the same flag twice.
				set.AddFlag(option.flagsets[0].Lookup(option.name))
				continue
			}
			switch v := option.defaultVal.(type) {
			case string:
				set.StringP(option.name, option.shorthand, v, option.usage)
			case []string:
				set.StringSliceP(option.name, option.shorthand, v, option.usage)
			case bool:
				set.BoolP(option.name, option.shorthand, v, option.usage)
			case int:
				set.IntP(option.name, option.shorthand, v, option.usage)
			case float64:
				set.Float64P(option.name, option.shorthand, v, option.usage)
			case []float64:
				s := make([]string, len(v))
				for i, f := range v {
					s[i] = strconv.FormatFloat(f, 'g', -1, 64)
				}
				set.StringSliceP(option.name, option.shorthand, s, option.usage)
			default:
				panic("invalid argument type")
			}
		}
		Cfg.BindPFlag(option.name, option.flagsets[0].Lookup(option.name))
	}
}

func init() {
	// Link the commands together.
	Root.AddCommand(versionCmd)
	Root.AddCommand(runCmd)
	Root.AddCommand(lookupCmd)
	Root.AddCommand(serveCmd)
}

// setConfig finds and reads in the configuration file, if there is one.
func setConfig() error {
	if cfgpath := Cfg.GetString("config"); cfgpath != "" {
		Cfg.SetConfigFile(cfgpath)
		if err := Cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("pscf: problem reading configuration file: %v", err)
		}
	}
	return nil
}

// configJSON returns the current value of every option as JSON.
func configJSON() ([]byte, error) {
	config := make(map[string]interface{})
	for _, option := range options {
		config[option.name] = Cfg.Get(option.name)
	}
	b := bytes.NewBuffer(nil)
	if err := json.NewEncoder(b).Encode(config); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

// Root is the main command.
var Root = &cobra.Command{
	Use:   "pscf",
	Short: "A Potential Source Contribution Function calculator.",
	Long: `pscf calculates the Potential Source Contribution Function (PSCF) for a
receptor station from HYSPLIT back-trajectories and a concentration time series.
Use the subcommands specified below to access the functionality.

Refer to the subcommand documentation for configuration options and default settings.
Configuration can be changed by using a configuration file (and providing the
path to the file using the --config flag), by using command-line arguments,
or by setting environment variables in the format 'PSCF_VAR' where 'VAR' is the
upper-case name of the variable to be set, with '.' replaced by '_'
(e.g., PSCF_LATTICE_STEP).
Refer to https://github.com/spf13/viper for additional configuration information.`,
	DisableAutoGenTag: true,
	PersistentPreRunE: func(*cobra.Command, []string) error { return setConfig() },
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  "version prints the version number of this version of PSCF.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("PSCF v%s\n", pscf.Version)
	},
	DisableAutoGenTag: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Calculate PSCF fields.",
	Long: `run calculates the PSCF field of every configured species and writes
them to OutputFile, and optionally to OutputShapefile and PlotFile.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		closeLog, err := setLogFile(cmd, Cfg)
		if err != nil {
			return err
		}
		defer closeLog()
		results, err := Run(context.Background(), Cfg, logrus.StandardLogger())
		if err != nil {
			return err
		}
		for _, r := range results {
			cmd.Printf("%s %s: threshold %g, %d runs, %d missing trajectories\n",
				r.Station, r.Species, r.Threshold, len(r.Runs), len(r.Missing))
		}
		return nil
	},
	DisableAutoGenTag: true,
}

var lookupCmd = &cobra.Command{
	Use:   "lookup",
	Short: "List the trajectories passing through a grid cell.",
	Long: `lookup calculates the PSCF fields and lists the back-trajectories that
pass through the grid cell holding the point (--lon, --lat).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		results, err := Calculate(context.Background(), Cfg, logrus.StandardLogger())
		if err != nil {
			return err
		}
		lon, lat := Cfg.GetFloat64("lon"), Cfg.GetFloat64("lat")
		for _, r := range results {
			printLookup(cmd, r, lon, lat, Cfg.GetBool("polluted"))
		}
		return nil
	},
	DisableAutoGenTag: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve PSCF queries over HTTP.",
	Long: `serve calculates the PSCF fields and starts an HTTP server answering
queries at /pscf, /lookup and /directions.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		log := logrus.StandardLogger()
		results, err := Calculate(context.Background(), Cfg, log)
		if err != nil {
			return err
		}
		addr := Cfg.GetString("addr")
		log.WithField("addr", addr).Info("starting query server")
		return NewServer(results, log).Run(addr)
	},
	DisableAutoGenTag: true,
}

// printLookup writes the trajectories of r passing through the cell
// holding (lon, lat).
func printLookup(cmd *cobra.Command, r *pscf.Result, lon, lat float64, polluted bool) {
	var runs []*pscf.BackTrajectory
	if polluted {
		runs = r.LookupPolluted(lon, lat)
	} else {
		runs = r.Lookup(lon, lat)
	}
	clon, clat := r.Lattice.Floor(lon, lat)
	cmd.Printf("%s %s: %d trajectories through cell (%g, %g)\n", r.Station, r.Species, len(runs), clon, clat)
	for _, b := range runs {
		cmd.Printf("  observed %s  start %s  offset %+gh  concentration %g  positions %d\n",
			b.Observed.Format("2006-01-02 15:04"), b.Source.Format("2006-01-02 15:04"),
			b.Offset, b.Concentration, b.Len())
	}
}
