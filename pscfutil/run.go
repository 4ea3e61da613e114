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
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/lnashier/viper"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/pscf"
	"github.com/spatialmodel/pscf/conc"
	"github.com/spatialmodel/pscf/hysplit"
	"github.com/spf13/cobra"
)

// separator returns the configured field separator of delimited
// concentration files.
func separator(cfg *viper.Viper) (rune, error) {
	s := []rune(cfg.GetString("Separator"))
	switch {
	case len(s) == 0:
		return conc.DefaultSeparator, nil
	case len(s) == 1:
		return s[0], nil
	case string(s) == `\t`:
		return '\t', nil
	default:
		return 0, &pscf.ConfigError{Param: "Separator", Reason: fmt.Sprintf("%q is not a single character", string(s))}
	}
}

// Calculate runs the PSCF pipeline for every species configured in cfg.
// The whole configuration is checked before any file is read. All species
// share one trajectory cache.
func Calculate(ctx context.Context, cfg *viper.Viper, log logrus.FieldLogger) ([]*pscf.Result, error) {
	species, err := speciesList(cfg)
	if err != nil {
		return nil, err
	}
	configs := make([]pscf.Config, len(species))
	for i, sp := range species {
		if configs[i], err = EngineConfig(cfg, sp); err != nil {
			return nil, err
		}
	}
	sep, err := separator(cfg)
	if err != nil {
		return nil, err
	}
	concFile := os.ExpandEnv(cfg.GetString("ConcentrationFile"))
	if concFile == "" {
		return nil, &pscf.ConfigError{Param: "ConcentrationFile", Reason: "a concentration file is required"}
	}

	tab, err := conc.ReadFile(ctx, concFile, cfg.GetString("ConcentrationSheet"), sep)
	if err != nil {
		return nil, err
	}
	log.WithFields(logrus.Fields{
		"file":         concFile,
		"observations": tab.Len(),
	}).Info("read concentrations")

	dec := hysplit.NewDecoder(os.ExpandEnv(cfg.GetString("TrajectoryDir")), cfg.GetString("TrajectoryTemplate"))
	e := &pscf.Engine{
		Decoder:       pscf.NewCachedDecoder(dec, cfg.GetInt("CacheSize")),
		Log:           log,
		NumWorkers:    cfg.GetInt("NumWorkers"),
		MaxRetries:    uint64(cfg.GetInt("MaxRetries")),
		RetryInterval: 500 * time.Millisecond,
	}

	results := make([]*pscf.Result, len(species))
	for i, c := range configs {
		obs, err := tab.Observations(c.Species)
		if err != nil {
			return nil, err
		}
		if results[i], err = e.Run(ctx, c, obs); err != nil {
			return nil, fmt.Errorf("pscf: species %s: %w", c.Species, err)
		}
	}
	return results, nil
}

// outputPaths are the output locations of one run.
type outputPaths struct {
	netCDF, shapefile, plot string
}

// outputs returns the checked output paths for each species.
func outputs(cfg *viper.Viper, species []string) ([]outputPaths, error) {
	var o outputPaths
	var err error
	if o.netCDF, err = checkOutputFile("OutputFile", cfg.GetString("OutputFile")); err != nil {
		return nil, err
	}
	if o.shapefile, err = checkOutputFile("OutputShapefile", cfg.GetString("OutputShapefile")); err != nil {
		return nil, err
	}
	if o.plot, err = checkOutputFile("PlotFile", cfg.GetString("PlotFile")); err != nil {
		return nil, err
	}
	if o.netCDF == "" && o.shapefile == "" && o.plot == "" {
		return nil, &pscf.ConfigError{Param: "OutputFile", Reason: "no output file is specified"}
	}
	paths := make([]outputPaths, len(species))
	for i, sp := range species {
		paths[i] = outputPaths{
			netCDF:    speciesPath(o.netCDF, sp, len(species)),
			shapefile: speciesPath(o.shapefile, sp, len(species)),
			plot:      speciesPath(o.plot, sp, len(species)),
		}
	}
	return paths, nil
}

// Run calculates the PSCF fields for every species configured in cfg
// and writes them to the configured outputs.
func Run(ctx context.Context, cfg *viper.Viper, log logrus.FieldLogger) ([]*pscf.Result, error) {
	species, err := speciesList(cfg)
	if err != nil {
		return nil, err
	}
	paths, err := outputs(cfg, species)
	if err != nil {
		return nil, err
	}
	results, err := Calculate(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	var upload uploader
	defer upload.cleanup()
	for i, r := range results {
		if err = writeOutputs(r, paths[i], &upload); err != nil {
			return nil, err
		}
		log.WithFields(logrus.Fields{
			"species": r.Species,
			"run_id":  r.ID,
			"output":  paths[i].netCDF,
		}).Info("wrote output")
	}
	if err = upload.uploadOutput(ctx); err != nil {
		return nil, err
	}
	return results, nil
}

func writeOutputs(r *pscf.Result, p outputPaths, upload *uploader) error {
	if p.netCDF != "" {
		f, err := os.Create(upload.maybeUpload(p.netCDF))
		if err != nil {
			return fmt.Errorf("pscf: creating output file: %v", err)
		}
		if err = r.WriteNetCDF(f); err != nil {
			f.Close()
			return err
		}
		if err = f.Close(); err != nil {
			return fmt.Errorf("pscf: closing output file: %v", err)
		}
	}
	if p.shapefile != "" {
		if err := r.WriteShapefile(upload.maybeUpload(p.shapefile)); err != nil {
			return err
		}
	}
	if p.plot != "" {
		if err := r.SavePlot(upload.maybeUpload(p.plot)); err != nil {
			return err
		}
	}
	return nil
}

// setLogFile adds the configured log file as an output of the standard
// logger. The returned function closes the log file and uploads it if
// it is a blob.
func setLogFile(cmd *cobra.Command, cfg *viper.Viper) (func(), error) {
	logFile := checkLogFile(cfg.GetString("LogFile"), cfg.GetString("OutputFile"))
	if logFile == "" {
		return func() {}, nil
	}
	var upload uploader
	f, err := os.Create(upload.maybeUpload(logFile))
	if err != nil {
		return nil, fmt.Errorf("pscf: problem creating log file: %v", err)
	}
	logrus.SetOutput(io.MultiWriter(cmd.OutOrStderr(), f))
	return func() {
		logrus.SetOutput(cmd.OutOrStderr())
		f.Close()
		if err := upload.uploadOutput(context.Background()); err != nil {
			logrus.WithError(err).Error("uploading log file")
		}
		upload.cleanup()
	}, nil
}
