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

// Package config holds the product configuration data model: dimensions
// (including unlimited-dimension sort/fill/bound configuration), variables,
// and global attribute reduction specs, together with the validator that
// checks a Config is internally consistent before any granule is opened.
package config

// DType is a variable's NetCDF classic datatype. It deliberately mirrors
// the six types github.com/ctessum/cdf supports (BYTE, CHAR, SHORT, INT,
// FLOAT, DOUBLE); enum-type and NetCDF-4 vlen strings are not part of this
// data model (see spec Non-goals).
type DType int

const (
	DTInvalid DType = iota
	DTByte
	DTChar
	DTShort
	DTInt
	DTFloat
	DTDouble
)

// String renders the datatype the way it appears in the JSON config grammar.
func (d DType) String() string {
	switch d {
	case DTByte:
		return "byte"
	case DTChar:
		return "char"
	case DTShort:
		return "short"
	case DTInt:
		return "int"
	case DTFloat:
		return "float"
	case DTDouble:
		return "double"
	}
	return "invalid"
}

func dtypeFromString(s string) DType {
	switch s {
	case "byte":
		return DTByte
	case "char":
		return DTChar
	case "short":
		return DTShort
	case "int":
		return DTInt
	case "float":
		return DTFloat
	case "double":
		return DTDouble
	}
	return DTInvalid
}

// Dimension is a NetCDF dimension: a name and either a fixed positive size
// or an unlimited marker. At most one Dimension in a Config may be
// unlimited, and if so it may carry a UDC.
type Dimension struct {
	Name      string
	Size      int // ignored when Unlimited is true
	Unlimited bool
	UDC       *UDC // only meaningful when Unlimited is true
}

// UDC is the Unlimited Dimension Configuration attached to an unlimited
// Dimension: the rules that drive sorting, deduplication, gap filling, and
// bound chopping along it (spec section 3, "Dimensions and unlimited-
// dimension configuration").
type UDC struct {
	// IndexBy names the variable whose values index this UDim. If empty,
	// the UDim is concatenated in filename-sorted order with no sort,
	// dedup, fill, or bound behavior.
	IndexBy string

	// OtherDimIndices maps each of IndexBy's other dimensions to the fixed
	// integer index used to obtain a 1-D projection for sorting, e.g.
	// {"samples_per_record": 0}.
	OtherDimIndices map[string]int

	// ExpectedCadence maps a dimension name to its expected sample rate in
	// Hz. The entry for the UDim itself governs gap/overlap/dedup
	// detection along that dimension; entries for IndexBy's other
	// dimensions govern inner fill-value lattice generation for
	// multidimensional time indexing.
	ExpectedCadence map[string]float64

	// Min and Max are the half-open aggregation bounds [Min, Max). Either
	// may be nil, meaning unbounded on that side, unless the other is set,
	// in which case the unset bound is inferred (see Bound.infer).
	Min, Max *Bound

	// Flatten, when true, ignores IndexBy for this UDim and left-justifies
	// each granule's records, padding narrower rows with _FillValue.
	Flatten bool
}

// Cadence returns the configured expected cadence (Hz) of the UDim itself,
// i.e. ExpectedCadence[dimName], or 0 if none is configured.
func (u *UDC) Cadence(dimName string) float64 {
	if u == nil || u.ExpectedCadence == nil {
		return 0
	}
	return u.ExpectedCadence[dimName]
}

// Variable is a NetCDF variable: its dimensions (outermost first), its
// datatype, its attributes (including _FillValue, valid_min, valid_max,
// units), and a chunk-size vector of equal length to Dims.
type Variable struct {
	Name       string
	Dims       []string
	Datatype   DType
	Attributes map[string]interface{}
	ChunkSizes []int
}

// UnlimitedDim returns the name of v's unlimited dimension given the set of
// Dimensions in a Config, or "" if v has none. Per the data model, a
// variable has at most one unlimited-backed dimension, and if present it
// must be v.Dims[0] (mirroring the NetCDF classic constraint that the
// record dimension is always outermost).
func (v *Variable) UnlimitedDim(dims map[string]Dimension) string {
	if len(v.Dims) == 0 {
		return ""
	}
	if d, ok := dims[v.Dims[0]]; ok && d.Unlimited {
		return v.Dims[0]
	}
	return ""
}

// FillValue returns the variable's configured _FillValue attribute, or nil
// if none is set.
func (v *Variable) FillValue() interface{} {
	if v.Attributes == nil {
		return nil
	}
	return v.Attributes["_FillValue"]
}

// Strategy names the closed set of global-attribute reduction strategies
// enumerated in spec section 4.6. The set is part of the external config
// grammar, so names are verbatim.
type Strategy string

const (
	StrategyStatic             Strategy = "static"
	StrategyFirst              Strategy = "first"
	StrategyLast               Strategy = "last"
	StrategyUniqueList         Strategy = "unique_list"
	StrategyIntSum             Strategy = "int_sum"
	StrategyFloatSum           Strategy = "float_sum"
	StrategyConstant           Strategy = "constant"
	StrategyDateCreated        Strategy = "date_created"
	StrategyTimeCoverageStart  Strategy = "time_coverage_start"
	StrategyTimeCoverageEnd    Strategy = "time_coverage_end"
	StrategyFilename           Strategy = "filename"
	StrategyFirstInputFilename Strategy = "first_input_filename"
	StrategyLastInputFilename  Strategy = "last_input_filename"
	StrategyInputCount         Strategy = "input_count"
	StrategyNcaggVersion       Strategy = "ncagg_version"
	StrategyRemove             Strategy = "remove"
)

// validStrategies is the closed set tested during Config validation.
var validStrategies = map[Strategy]bool{
	StrategyStatic:             true,
	StrategyFirst:              true,
	StrategyLast:               true,
	StrategyUniqueList:         true,
	StrategyIntSum:             true,
	StrategyFloatSum:           true,
	StrategyConstant:           true,
	StrategyDateCreated:        true,
	StrategyTimeCoverageStart:  true,
	StrategyTimeCoverageEnd:    true,
	StrategyFilename:           true,
	StrategyFirstInputFilename: true,
	StrategyLastInputFilename:  true,
	StrategyInputCount:         true,
	StrategyNcaggVersion:       true,
	StrategyRemove:             true,
}

// GlobalAttrSpec is one entry of the ordered "global attributes" array: a
// name, a reduction Strategy, and an optional static Value (used by the
// "static" strategy).
type GlobalAttrSpec struct {
	Name     string
	Strategy Strategy
	Value    interface{} // only used by StrategyStatic
}

// Config is the parsed, validated product configuration: the three
// order-significant arrays of the JSON grammar in spec section 6.3.
type Config struct {
	Dimensions  []Dimension
	Variables   []Variable
	GlobalAttrs []GlobalAttrSpec
	DateFormat  string // e.g. "20060102T150405Z"; default below

	// EngineVersion is injected by the caller rather than read from
	// ambient state (spec section 9).
	EngineVersion string
}

// DefaultDateFormat is used by date-producing attribute strategies when a
// Config does not specify one.
const DefaultDateFormat = "2006-01-02T15:04:05Z"

func (c *Config) dateFormat() string {
	if c.DateFormat != "" {
		return c.DateFormat
	}
	return DefaultDateFormat
}

// DimByName returns the Dimension named n and true, or the zero value and
// false if no such dimension exists.
func (c *Config) DimByName(n string) (Dimension, bool) {
	for _, d := range c.Dimensions {
		if d.Name == n {
			return d, true
		}
	}
	return Dimension{}, false
}

// DimMap returns the Dimensions indexed by name, for repeated lookups.
func (c *Config) DimMap() map[string]Dimension {
	m := make(map[string]Dimension, len(c.Dimensions))
	for _, d := range c.Dimensions {
		m[d.Name] = d
	}
	return m
}

// VarByName returns the Variable named n and true, or the zero value and
// false if no such variable exists.
func (c *Config) VarByName(n string) (*Variable, bool) {
	for i := range c.Variables {
		if c.Variables[i].Name == n {
			return &c.Variables[i], true
		}
	}
	return nil, false
}

// UnlimitedDims returns the names of the Config's unlimited dimensions, in
// declared order.
func (c *Config) UnlimitedDims() []string {
	var out []string
	for _, d := range c.Dimensions {
		if d.Unlimited {
			out = append(out, d.Name)
		}
	}
	return out
}
