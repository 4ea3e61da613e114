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

// Package hysplit reads back-trajectories from HYSPLIT trajectory
// endpoint ("tdump") files.
package hysplit

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spatialmodel/pscf"
)

// Column positions of the fixed part of a data row.
const (
	colTraj   = 0
	colLat    = 9
	colLon    = 10
	colHeight = 11
	numFixed  = 12
)

// RainVar is the name of the diagnostic variable holding precipitation.
const RainVar = "RAINFALL"

// Header holds the header information of a trajectory file.
type Header struct {
	// MetGrids is the number of meteorological grids used.
	MetGrids int

	// Trajectories is the number of trajectories in the file.
	Trajectories int

	// Diagnostics are the names of the diagnostic variables that follow
	// the position in each data row.
	Diagnostics []string
}

// diagnosticIndex returns the column of diagnostic variable name,
// or -1 if it is not in the file.
func (h *Header) diagnosticIndex(name string) int {
	for i, n := range h.Diagnostics {
		if strings.EqualFold(n, name) {
			return numFixed + i
		}
	}
	return -1
}

type lineReader struct {
	s    *bufio.Scanner
	line int
}

func (r *lineReader) next() ([]string, error) {
	for r.s.Scan() {
		r.line++
		f := strings.Fields(r.s.Text())
		if len(f) > 0 {
			return f, nil
		}
	}
	if err := r.s.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}

func (r *lineReader) count(what string) (int, error) {
	f, err := r.next()
	if err != nil {
		return 0, fmt.Errorf("hysplit: reading number of %s: %v", what, err)
	}
	n, err := strconv.Atoi(f[0])
	if err != nil || n < 0 {
		return 0, fmt.Errorf("hysplit: line %d: invalid number of %s %q", r.line, what, f[0])
	}
	return n, nil
}

func (r *lineReader) skip(n int, what string) error {
	for i := 0; i < n; i++ {
		if _, err := r.next(); err != nil {
			return fmt.Errorf("hysplit: reading %s: %v", what, err)
		}
	}
	return nil
}

func (r *lineReader) header() (*Header, error) {
	h := new(Header)
	var err error
	if h.MetGrids, err = r.count("meteorological grids"); err != nil {
		return nil, err
	}
	if err = r.skip(h.MetGrids, "meteorological grids"); err != nil {
		return nil, err
	}
	if h.Trajectories, err = r.count("trajectories"); err != nil {
		return nil, err
	}
	if err = r.skip(h.Trajectories, "starting locations"); err != nil {
		return nil, err
	}
	f, err := r.next()
	if err != nil {
		return nil, fmt.Errorf("hysplit: reading diagnostic variables: %v", err)
	}
	n, err := strconv.Atoi(f[0])
	if err != nil || n != len(f)-1 {
		return nil, fmt.Errorf("hysplit: line %d: malformed diagnostic variable list", r.line)
	}
	h.Diagnostics = f[1:]
	return h, nil
}

// Read reads the header and the positions of trajectory number 1 from r.
// Positions are returned in file order, i.e., backward in time for
// back-trajectories. Precipitation is taken from the RAINFALL
// diagnostic, and is zero if the file does not have it.
func Read(r io.Reader) (*Header, *pscf.Trajectory, error) {
	lr := &lineReader{s: bufio.NewScanner(r)}
	h, err := lr.header()
	if err != nil {
		return nil, nil, err
	}
	rainCol := h.diagnosticIndex(RainVar)
	ncol := numFixed + len(h.Diagnostics)

	tr := new(pscf.Trajectory)
	for {
		f, err := lr.next()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, nil, fmt.Errorf("hysplit: %v", err)
		}
		if len(f) < ncol {
			return nil, nil, fmt.Errorf("hysplit: line %d: have %d columns, want %d", lr.line, len(f), ncol)
		}
		if n, err := strconv.Atoi(f[colTraj]); err != nil {
			return nil, nil, fmt.Errorf("hysplit: line %d: invalid trajectory number %q", lr.line, f[colTraj])
		} else if n != 1 {
			continue
		}
		var s pscf.Sample
		if s.Lat, err = parseFloat(f, colLat, lr.line); err != nil {
			return nil, nil, err
		}
		if s.Lon, err = parseFloat(f, colLon, lr.line); err != nil {
			return nil, nil, err
		}
		if s.Height, err = parseFloat(f, colHeight, lr.line); err != nil {
			return nil, nil, err
		}
		if rainCol >= 0 {
			if s.Rain, err = parseFloat(f, rainCol, lr.line); err != nil {
				return nil, nil, err
			}
		}
		tr.Samples = append(tr.Samples, s)
	}
	if len(tr.Samples) == 0 {
		return nil, nil, fmt.Errorf("hysplit: no positions for trajectory 1")
	}
	return h, tr, nil
}

func parseFloat(f []string, col, line int) (float64, error) {
	v, err := strconv.ParseFloat(f[col], 64)
	if err != nil {
		return 0, fmt.Errorf("hysplit: line %d, column %d: %v", line, col+1, err)
	}
	return v, nil
}
