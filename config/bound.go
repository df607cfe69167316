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
	"time"

	"github.com/spf13/cast"
)

// dateComponent tracks which of a date expression's components were
// present, so that inferring a missing bound can increment the correct,
// least-significant one (spec section 3).
type dateComponent int

const (
	compYear dateComponent = iota
	compMonth
	compDay
	compHour
	compMinute
)

// Bound is one side (min or max) of a UDC aggregation bound. It is either a
// plain number in the same units as index_by, or a date expression of the
// form "TYYYY[MM[DD[HH[MM]]]]" that must be converted to index_by's units
// via a CF-style "<cadence unit> since <reference>" units string before it
// can be compared against projected index_by values.
type Bound struct {
	IsDate    bool
	Date      time.Time
	component dateComponent // precision of Date, only meaningful if IsDate

	Numeric float64 // only meaningful if !IsDate
}

// ParseBound accepts a JSON value for a UDC min/max field: either a JSON
// number (possibly unmarshalled as float64, int, or a numeric string), or a
// date expression string "TYYYY[MM[DD[HH[MM]]]]".
func ParseBound(raw interface{}) (*Bound, error) {
	s, isString := raw.(string)
	if isString && len(s) > 0 && s[0] == 'T' {
		return parseDateBound(s)
	}
	n, err := cast.ToFloat64E(raw)
	if err != nil {
		return nil, fmt.Errorf("bound %v is neither a number nor a date expression: %v", raw, err)
	}
	return &Bound{Numeric: n}, nil
}

func parseDateBound(s string) (*Bound, error) {
	digits := s[1:]
	layout, comp, err := dateLayoutFor(len(digits))
	if err != nil {
		return nil, err
	}
	t, err := time.Parse(layout, digits)
	if err != nil {
		return nil, fmt.Errorf("invalid date bound %q: %v", s, err)
	}
	return &Bound{IsDate: true, Date: t, component: comp}, nil
}

func dateLayoutFor(n int) (string, dateComponent, error) {
	switch n {
	case 4:
		return "2006", compYear, nil
	case 6:
		return "200601", compMonth, nil
	case 8:
		return "20060102", compDay, nil
	case 10:
		return "2006010215", compHour, nil
	case 12:
		return "200601021504", compMinute, nil
	default:
		return "", 0, fmt.Errorf("date expression must have 4, 6, 8, 10, or 12 digits after 'T', got %d", n)
	}
}

// infer derives the opposite bound from b by incrementing b's
// least-significant configured component by one, per spec section 3: "If
// only one is supplied, the other is inferred by incrementing the
// least-significant component of that date by one." It is only meaningful
// for date bounds; numeric bounds have no such inference rule and calling
// infer on one returns an error.
func (b *Bound) infer() (*Bound, error) {
	if !b.IsDate {
		return nil, fmt.Errorf("only one of min/max is set, and no inference rule exists for a numeric bound")
	}
	var next time.Time
	switch b.component {
	case compYear:
		next = b.Date.AddDate(1, 0, 0)
	case compMonth:
		next = b.Date.AddDate(0, 1, 0)
	case compDay:
		next = b.Date.AddDate(0, 0, 1)
	case compHour:
		next = b.Date.Add(time.Hour)
	case compMinute:
		next = b.Date.Add(time.Minute)
	}
	return &Bound{IsDate: true, Date: next, component: b.component}, nil
}

// ToNumeric converts b to a numeric value in the units described by
// unitsAttr, a CF-convention string of the form "<unit> since <reference>"
// (e.g. "seconds since 1970-01-01T00:00:00Z"). If b is already numeric,
// unitsAttr is ignored.
func (b *Bound) ToNumeric(unitsAttr string) (float64, error) {
	if !b.IsDate {
		return b.Numeric, nil
	}
	scale, ref, err := parseCFUnits(unitsAttr)
	if err != nil {
		return 0, fmt.Errorf("converting date bound to index_by units: %v", err)
	}
	return b.Date.Sub(ref).Seconds() / scale, nil
}
