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
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/pscf"
)

// CellValues are the grid values of one lattice cell.
type CellValues struct {
	Species string  `json:"species"`
	Lon     float64 `json:"lon"`
	Lat     float64 `json:"lat"`

	Total    float64 `json:"total_count"`
	Polluted float64 `json:"polluted_count"`
	Ratio    float64 `json:"ratio"`
	PSCF     float64 `json:"pscf"`
	Density  float64 `json:"density"`
	Weight   float64 `json:"weight"`

	SmoothPSCF    *float64 `json:"smooth_pscf,omitempty"`
	SmoothDensity *float64 `json:"smooth_density,omitempty"`
}

// Trajectory describes a back-trajectory in query responses.
type Trajectory struct {
	Observed             time.Time    `json:"observed"`
	Source               time.Time    `json:"source"`
	Offset               float64      `json:"offset_h"`
	Concentration        float64      `json:"concentration"`
	ReachedPrecipitation bool         `json:"reached_precipitation"`
	Path                 [][2]float64 `json:"path"`
}

func newTrajectory(b *pscf.BackTrajectory) Trajectory {
	t := Trajectory{
		Observed:             b.Observed,
		Source:               b.Source,
		Offset:               b.Offset,
		Concentration:        b.Concentration,
		ReachedPrecipitation: b.ReachedPrecipitation,
		Path:                 make([][2]float64, len(b.LineString)),
	}
	for i, p := range b.LineString {
		t.Path[i] = [2]float64{p.X, p.Y}
	}
	return t
}

type server struct {
	results map[string]*pscf.Result
	order   []string
}

// NewServer returns an HTTP handler answering queries about results:
//
//	GET /species
//	GET /pscf?species=S&lon=X&lat=Y
//	GET /lookup?species=S&lon=X&lat=Y[&polluted=true]
//	GET /directions?species=S
//
// The species parameter may be omitted when there is only one result.
func NewServer(results []*pscf.Result, log logrus.FieldLogger) *gin.Engine {
	s := &server{results: make(map[string]*pscf.Result)}
	for _, r := range results {
		s.results[r.Species] = r
		s.order = append(s.order, r.Species)
	}
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(log))
	r.GET("/species", s.species)
	r.GET("/pscf", s.cell)
	r.GET("/lookup", s.lookup)
	r.GET("/directions", s.directions)
	return r
}

// requestLogger logs each request at debug level.
func requestLogger(log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.WithFields(logrus.Fields{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"duration": time.Since(start),
		}).Debug("request")
	}
}

func abort(c *gin.Context, code int, format string, args ...interface{}) {
	c.AbortWithStatusJSON(code, gin.H{"error": fmt.Sprintf(format, args...)})
}

// result returns the result for the requested species.
func (s *server) result(c *gin.Context) (*pscf.Result, bool) {
	sp := c.Query("species")
	if sp == "" && len(s.order) == 1 {
		sp = s.order[0]
	}
	r, ok := s.results[sp]
	if !ok {
		abort(c, http.StatusNotFound, "unknown species %q", sp)
		return nil, false
	}
	return r, true
}

// point parses the lon and lat query parameters and checks that they
// fall within the lattice.
func point(c *gin.Context, r *pscf.Result) (lon, lat float64, ok bool) {
	var err error
	if lon, err = strconv.ParseFloat(c.Query("lon"), 64); err != nil {
		abort(c, http.StatusBadRequest, "invalid lon %q", c.Query("lon"))
		return 0, 0, false
	}
	if lat, err = strconv.ParseFloat(c.Query("lat"), 64); err != nil {
		abort(c, http.StatusBadRequest, "invalid lat %q", c.Query("lat"))
		return 0, 0, false
	}
	if _, _, in := r.Lattice.Index(lon, lat); !in {
		abort(c, http.StatusNotFound, "(%g, %g) is outside of the %v", lon, lat, r.Lattice)
		return 0, 0, false
	}
	return lon, lat, true
}

func (s *server) species(c *gin.Context) {
	type summary struct {
		Species      string  `json:"species"`
		Station      string  `json:"station"`
		Threshold    float64 `json:"threshold"`
		Observations int     `json:"observations"`
		Runs         int     `json:"runs"`
		Missing      int     `json:"missing"`
		Degenerate   bool    `json:"degenerate"`
	}
	o := make([]summary, len(s.order))
	for i, sp := range s.order {
		r := s.results[sp]
		o[i] = summary{
			Species:      sp,
			Station:      r.Station,
			Threshold:    r.Threshold,
			Observations: r.Observations,
			Runs:         len(r.Runs),
			Missing:      len(r.Missing),
			Degenerate:   r.Degenerate,
		}
	}
	c.JSON(http.StatusOK, o)
}

func (s *server) cell(c *gin.Context) {
	r, ok := s.result(c)
	if !ok {
		return
	}
	lon, lat, ok := point(c, r)
	if !ok {
		return
	}
	v := CellValues{Species: r.Species}
	v.Lon, v.Lat = r.Lattice.Floor(lon, lat)
	v.Total, _ = r.Value(r.Counts.Total, lon, lat)
	v.Polluted, _ = r.Value(r.Counts.Polluted, lon, lat)
	v.Ratio, _ = r.Value(r.Ratio, lon, lat)
	v.PSCF, _ = r.Value(r.PSCF, lon, lat)
	v.Density, _ = r.Value(r.Density, lon, lat)
	v.Weight, _ = r.Value(r.Weight, lon, lat)
	if r.SmoothPSCF != nil {
		sp, _ := r.Value(r.SmoothPSCF, lon, lat)
		sd, _ := r.Value(r.SmoothDensity, lon, lat)
		v.SmoothPSCF, v.SmoothDensity = &sp, &sd
	}
	c.JSON(http.StatusOK, v)
}

func (s *server) lookup(c *gin.Context) {
	r, ok := s.result(c)
	if !ok {
		return
	}
	lon, lat, ok := point(c, r)
	if !ok {
		return
	}
	var runs []*pscf.BackTrajectory
	if polluted, _ := strconv.ParseBool(c.DefaultQuery("polluted", "false")); polluted {
		runs = r.LookupPolluted(lon, lat)
	} else {
		runs = r.Lookup(lon, lat)
	}
	o := make([]Trajectory, len(runs))
	for i, b := range runs {
		o[i] = newTrajectory(b)
	}
	c.JSON(http.StatusOK, o)
}

func (s *server) directions(c *gin.Context) {
	r, ok := s.result(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"species":      r.Species,
		"receptor_lon": r.ReceptorLon,
		"receptor_lat": r.ReceptorLat,
		"sectors":      r.Directions,
	})
}
