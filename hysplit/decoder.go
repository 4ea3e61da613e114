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

package hysplit

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spatialmodel/pscf"
	"github.com/spatialmodel/pscf/cloud"
)

const (
	// DefaultTemplate is the default trajectory file name template.
	DefaultTemplate = "traj_[STATION]_[DATE]"

	// DateFormat is the format of the [DATE] wildcard (yymmddHH).
	DateFormat = "06010215"
)

// FileName returns the name of the trajectory file for station and time t
// by replacing the [STATION] and [DATE] wildcards in template.
func FileName(template, station string, t time.Time) string {
	r := strings.NewReplacer("[STATION]", station, "[DATE]", t.Format(DateFormat))
	return r.Replace(template)
}

// Decoder reads trajectory files from a directory. It implements
// pscf.Decoder.
type Decoder struct {
	// Dir is a local directory or a blob storage location such as
	// "s3://bucket/trajectories".
	Dir string

	// Template is the file name template. If empty, DefaultTemplate
	// is used.
	Template string
}

// NewDecoder returns a decoder for the files in dir.
func NewDecoder(dir, template string) *Decoder {
	return &Decoder{Dir: dir, Template: template}
}

// Path returns the location of the trajectory file for station and
// time t.
func (d *Decoder) Path(station string, t time.Time) string {
	template := d.Template
	if template == "" {
		template = DefaultTemplate
	}
	name := FileName(template, station, t)
	if cloud.IsBlob(d.Dir) {
		return strings.TrimSuffix(d.Dir, "/") + "/" + name
	}
	return filepath.Join(d.Dir, name)
}

func (d *Decoder) open(ctx context.Context, path string) (io.ReadCloser, error) {
	if cloud.IsBlob(path) {
		return cloud.Open(ctx, path)
	}
	return os.Open(path)
}

// Decode reads the trajectory that started at station at time t.
// Files that do not exist or cannot be parsed are reported as
// pscf.ErrMissingTrajectory. Other errors, for example from blob
// storage, may be transient.
func (d *Decoder) Decode(ctx context.Context, station string, t time.Time) (*pscf.Trajectory, error) {
	path := d.Path(station, t)
	f, err := d.open(ctx, path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s does not exist", pscf.ErrMissingTrajectory, path)
		}
		return nil, fmt.Errorf("hysplit: opening %s: %v", path, err)
	}
	defer f.Close()
	_, tr, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", pscf.ErrMissingTrajectory, path, err)
	}
	return tr, nil
}
