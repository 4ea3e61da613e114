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

// Package conc reads receptor concentration time series from delimited
// text files and Excel workbooks.
package conc

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"io/ioutil"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spatialmodel/pscf"
	"github.com/spatialmodel/pscf/cloud"
	"github.com/tealeg/xlsx"
)

// DateColumn is the name of the column holding observation times.
const DateColumn = "date"

// DefaultSeparator is the default field separator of delimited text files.
const DefaultSeparator = ';'

// DateFormats are the accepted observation time formats, tried in order.
// Times without a zone are UTC.
var DateFormats = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	time.RFC3339,
	"2006-01-02",
	"02/01/2006 15:04",
}

// ParseTime parses an observation time in one of DateFormats.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, f := range DateFormats {
		if t, err := time.Parse(f, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("conc: unrecognized date %q", s)
}

// Table is a concentration time series table with one row per
// observation time and one column per species.
type Table struct {
	// Species holds the species column names in file order.
	Species []string

	times  []time.Time
	values map[string][]string
}

// newTable creates a table from a header and the data rows.
// parseDate converts the contents of the date column.
func newTable(header []string, rows [][]string, parseDate func(string) (time.Time, error)) (*Table, error) {
	dateCol := -1
	t := &Table{values: make(map[string][]string)}
	cols := make([]string, len(header))
	for i, h := range header {
		h = strings.TrimSpace(h)
		cols[i] = h
		if strings.EqualFold(h, DateColumn) {
			dateCol = i
		} else if h != "" {
			t.Species = append(t.Species, h)
		}
	}
	if dateCol < 0 {
		return nil, fmt.Errorf("conc: no %q column", DateColumn)
	}
	seen := make(map[time.Time]int)
	for r, row := range rows {
		if dateCol >= len(row) || strings.TrimSpace(row[dateCol]) == "" {
			continue
		}
		tt, err := parseDate(row[dateCol])
		if err != nil {
			return nil, fmt.Errorf("conc: row %d: %v", r+2, err)
		}
		if prev, ok := seen[tt]; ok {
			return nil, fmt.Errorf("conc: rows %d and %d both have time %s", prev+2, r+2, tt.Format(time.RFC3339))
		}
		seen[tt] = r
		t.times = append(t.times, tt)
		for i, c := range cols {
			if i == dateCol || c == "" {
				continue
			}
			var v string
			if i < len(row) {
				v = row[i]
			}
			t.values[c] = append(t.values[c], v)
		}
	}
	return t, nil
}

// Len returns the number of observation times in the table.
func (t *Table) Len() int { return len(t.times) }

// Observations returns the time series of the given species, sorted by
// time. Blank, NaN and negative values are skipped; negative values are
// used as missing-data sentinels.
func (t *Table) Observations(species string) ([]pscf.Observation, error) {
	vals, ok := t.values[species]
	if !ok {
		return nil, fmt.Errorf("conc: no column for species %q; available: %s", species, strings.Join(t.Species, ", "))
	}
	obs := make([]pscf.Observation, 0, len(vals))
	for i, s := range vals {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		v, err := strconv.ParseFloat(strings.Replace(s, ",", ".", 1), 64)
		if err != nil {
			return nil, fmt.Errorf("conc: %s at %s: %v", species, t.times[i].Format(time.RFC3339), err)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			continue
		}
		obs = append(obs, pscf.Observation{Time: t.times[i], Concentration: v})
	}
	sort.Slice(obs, func(i, j int) bool { return obs[i].Time.Before(obs[j].Time) })
	return obs, nil
}

// ReadCSV reads a delimited text table with a header row.
func ReadCSV(r io.Reader, sep rune) (*Table, error) {
	cr := csv.NewReader(r)
	cr.Comma = sep
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	recs, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("conc: reading delimited file: %v", err)
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("conc: delimited file is empty")
	}
	return newTable(recs[0], recs[1:], ParseTime)
}

// ReadXLSX reads a table from the given sheet of an Excel workbook,
// or from the first sheet if sheet is empty. The first row is the
// header. Dates may be text or Excel date numbers.
func ReadXLSX(b []byte, sheet string) (*Table, error) {
	f, err := xlsx.OpenBinary(b)
	if err != nil {
		return nil, fmt.Errorf("conc: opening xlsx file: %v", err)
	}
	var s *xlsx.Sheet
	if sheet == "" {
		if len(f.Sheets) == 0 {
			return nil, fmt.Errorf("conc: xlsx file has no sheets")
		}
		s = f.Sheets[0]
	} else {
		var ok bool
		if s, ok = f.Sheet[sheet]; !ok {
			return nil, fmt.Errorf("conc: reading xlsx file; no sheet %s", sheet)
		}
	}
	if s.MaxRow == 0 {
		return nil, fmt.Errorf("conc: sheet %s is empty", s.Name)
	}
	rows := make([][]string, s.MaxRow)
	for j := range rows {
		rows[j] = make([]string, s.MaxCol)
		for i := range rows[j] {
			rows[j][i] = strings.TrimSpace(s.Cell(j, i).Value)
		}
	}
	return newTable(rows[0], rows[1:], parseExcelTime)
}

// parseExcelTime parses text dates and Excel date numbers.
func parseExcelTime(s string) (time.Time, error) {
	if t, err := ParseTime(s); err == nil {
		return t, nil
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("conc: unrecognized date %q", s)
	}
	// Round to the second to remove floating point noise.
	return xlsx.TimeFromExcelTime(v, false).Round(time.Second).UTC(), nil
}

// ReadFile reads a concentration table from a local file or blob URL.
// Files with the .xlsx extension are read as Excel workbooks using sheet;
// other files are delimited text with separator sep.
func ReadFile(ctx context.Context, path, sheet string, sep rune) (*Table, error) {
	var r io.ReadCloser
	var err error
	if cloud.IsBlob(path) {
		r, err = cloud.Open(ctx, path)
	} else {
		r, err = os.Open(path)
	}
	if err != nil {
		return nil, fmt.Errorf("conc: opening concentration file: %v", err)
	}
	defer r.Close()
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		b, err := ioutil.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("conc: reading %s: %v", path, err)
		}
		return ReadXLSX(b, sheet)
	}
	if sep == 0 {
		sep = DefaultSeparator
	}
	return ReadCSV(r, sep)
}
