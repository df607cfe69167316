/*
Copyright © 2024 the ncagg authors.
This file is part of ncagg.

ncagg is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

ncagg is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with ncagg.  If not, see <http://www.gnu.org/licenses/>.
*/

package config

import (
	"fmt"
	"strings"
	"time"
)

// parseCFUnits parses a CF-convention time units string of the form
// "<unit> since <reference>", returning the number of seconds per unit and
// the reference time. Supported units are seconds, minutes, hours, and
// days, which cover every cadence this engine's UDC.ExpectedCadence
// expresses in Hz.
func parseCFUnits(units string) (scaleSeconds float64, reference time.Time, err error) {
	parts := strings.SplitN(units, " since ", 2)
	if len(parts) != 2 {
		return 0, time.Time{}, fmt.Errorf("units %q is not of the form '<unit> since <reference>'", units)
	}
	unit := strings.TrimSpace(parts[0])
	switch unit {
	case "second", "seconds", "s", "sec", "secs":
		scaleSeconds = 1
	case "minute", "minutes", "min", "mins":
		scaleSeconds = 60
	case "hour", "hours", "hr", "hrs", "h":
		scaleSeconds = 3600
	case "day", "days", "d":
		scaleSeconds = 86400
	default:
		return 0, time.Time{}, fmt.Errorf("unsupported time unit %q", unit)
	}

	ref := strings.TrimSpace(parts[1])
	for _, layout := range []string{
		"2006-01-02T15:04:05Z07:00",
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006-01-02",
	} {
		if t, err := time.Parse(layout, ref); err == nil {
			return scaleSeconds, t, nil
		}
	}
	return 0, time.Time{}, fmt.Errorf("could not parse reference time %q", ref)
}
