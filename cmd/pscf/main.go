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

// Command pscf calculates the Potential Source Contribution Function for a
// receptor station from HYSPLIT back-trajectories.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/pscf/pscfutil"
)

func init() {
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})
}

func main() {
	// Settings such as PSCF_TRAJECTORYDIR or AWS credentials may be
	// kept in a .env file.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logrus.WithError(err).Warn("could not read .env file")
	}

	if len(os.Args) == 1 { // Without a command, start the GUI server.
		pscfutil.StartWebServer()
		return
	}

	if err := pscfutil.Root.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(-1)
	}
}
