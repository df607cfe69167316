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
	"bytes"
	"encoding/json"

	"github.com/ctessum/ncagg/errs"
	"fmt"
)

// jsonDoc mirrors the external configuration format of spec section 6.3:
// a top-level object with three ordered arrays. json.Unmarshal into a
// []T field preserves array order, which is all the ordering guarantee
// this format needs.
type jsonDoc struct {
	Dimensions       []jsonDimension       `json:"dimensions"`
	Variables        []jsonVariable        `json:"variables"`
	GlobalAttributes []jsonGlobalAttribute `json:"global attributes"`
	DateFormat       string                `json:"date_format,omitempty"`
}

type jsonDimension struct {
	Name            string                 `json:"name"`
	Size            *int                   `json:"size"` // null means unlimited
	IndexBy         string                 `json:"index_by,omitempty"`
	OtherDimIndices map[string]int         `json:"other_dim_indices,omitempty"`
	ExpectedCadence map[string]float64     `json:"expected_cadence,omitempty"`
	Min             interface{}            `json:"min,omitempty"`
	Max             interface{}            `json:"max,omitempty"`
	Flatten         bool                   `json:"flatten,omitempty"`
	TakeDimIndices  map[string]interface{} `json:"take_dim_indices,omitempty"`
}

type jsonVariable struct {
	Name       string                 `json:"name"`
	Dimensions []string               `json:"dimensions"`
	Datatype   string                 `json:"datatype"`
	Attributes map[string]interface{} `json:"attributes"`
	Chunksizes []int                  `json:"chunksizes"`
}

type jsonGlobalAttribute struct {
	Name     string      `json:"name"`
	Strategy string      `json:"strategy"`
	Value    interface{} `json:"value,omitempty"`
}

// Parse decodes the JSON configuration format of spec section 6.3 into a
// Config. It does not validate the result; call Validate separately (or
// use Load, which does both).
func Parse(data []byte) (*Config, error) {
	var doc jsonDoc
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		return nil, &errs.ConfigInvalidError{Reason: fmt.Sprintf("unknown or malformed field in configuration JSON: %v", err)}
	}

	c := &Config{DateFormat: doc.DateFormat}

	for _, jd := range doc.Dimensions {
		d := Dimension{Name: jd.Name}
		if jd.Size == nil {
			d.Unlimited = true
		} else {
			d.Size = *jd.Size
		}
		if jd.IndexBy != "" || len(jd.OtherDimIndices) > 0 || len(jd.ExpectedCadence) > 0 ||
			jd.Min != nil || jd.Max != nil || jd.Flatten || len(jd.TakeDimIndices) > 0 {
			if len(jd.TakeDimIndices) > 0 {
				return nil, &errs.ConfigInvalidError{Reason: fmt.Sprintf(
					"dimension %q sets take_dim_indices, which this engine does not implement (see DESIGN.md Open Questions)", jd.Name)}
			}
			udc := &UDC{
				IndexBy:         jd.IndexBy,
				OtherDimIndices: jd.OtherDimIndices,
				ExpectedCadence: jd.ExpectedCadence,
				Flatten:         jd.Flatten,
			}
			if jd.Min != nil {
				b, err := ParseBound(jd.Min)
				if err != nil {
					return nil, &errs.ConfigInvalidError{Reason: fmt.Sprintf("dimension %q min: %v", jd.Name, err)}
				}
				udc.Min = b
			}
			if jd.Max != nil {
				b, err := ParseBound(jd.Max)
				if err != nil {
					return nil, &errs.ConfigInvalidError{Reason: fmt.Sprintf("dimension %q max: %v", jd.Name, err)}
				}
				udc.Max = b
			}
			if udc.Min != nil && udc.Max == nil {
				b, err := udc.Min.infer()
				if err != nil {
					return nil, &errs.ConfigInvalidError{Reason: fmt.Sprintf("dimension %q: inferring max from min: %v", jd.Name, err)}
				}
				udc.Max = b
			} else if udc.Max != nil && udc.Min == nil {
				b, err := udc.Max.infer()
				if err != nil {
					return nil, &errs.ConfigInvalidError{Reason: fmt.Sprintf("dimension %q: inferring min from max: %v", jd.Name, err)}
				}
				udc.Min = b
			}
			d.UDC = udc
		}
		c.Dimensions = append(c.Dimensions, d)
	}

	for _, jv := range doc.Variables {
		dt := dtypeFromString(jv.Datatype)
		if dt == DTInvalid {
			return nil, &errs.ConfigInvalidError{Reason: fmt.Sprintf("variable %q has unknown datatype %q", jv.Name, jv.Datatype)}
		}
		c.Variables = append(c.Variables, Variable{
			Name:       jv.Name,
			Dims:       jv.Dimensions,
			Datatype:   dt,
			Attributes: jv.Attributes,
			ChunkSizes: jv.Chunksizes,
		})
	}

	for _, ja := range doc.GlobalAttributes {
		strat := Strategy(ja.Strategy)
		if !validStrategies[strat] {
			return nil, &errs.ConfigInvalidError{Reason: fmt.Sprintf("global attribute %q has unknown strategy %q", ja.Name, ja.Strategy)}
		}
		c.GlobalAttrs = append(c.GlobalAttrs, GlobalAttrSpec{
			Name:     ja.Name,
			Strategy: strat,
			Value:    ja.Value,
		})
	}

	return c, nil
}

// Load parses and validates the JSON configuration at data, returning a
// ready-to-use Config.
func Load(data []byte) (*Config, error) {
	c, err := Parse(data)
	if err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}
