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

// This file defines the external collaborator contracts of spec section 6:
// the granule reader (consumed, 6.1) and granule writer (produced, 6.2).
// They live in the config package, rather than in the core ncagg package or
// in the granule package, so that the granule descriptor (which inspects
// every input granule), the core ncagg package and netcdfio can all depend
// on them without a package cycle. The config package has no function that
// derives a default Config from a sample granule.
// A concrete implementation is provided by the sibling netcdfio package,
// grounded on github.com/ctessum/cdf; any other implementation satisfying
// these contracts works equally well, per spec section 1's scoping of the
// physical NetCDF reader/writer as an external collaborator.

// SchemaDim describes one dimension as reported by a granule's schema.
type SchemaDim struct {
	Size      int
	Unlimited bool
}

// Schema is what GranuleHandle.Schema reports about one open granule: its
// dimensions, the set of variable names it defines, and its global
// attribute values.
type Schema struct {
	Dims        map[string]SchemaDim
	Variables   map[string]bool
	GlobalAttrs map[string]interface{}
}

// GranuleReader opens granule files for inspection and reading. A single
// GranuleReader is re-entrant across granules (spec section 6.1).
type GranuleReader interface {
	Open(path string) (GranuleHandle, error)
}

// GranuleHandle is one opened, read-only granule.
type GranuleHandle interface {
	// Schema reports the handle's dimensions, variables, and global
	// attributes.
	Schema() (Schema, error)

	// ReadIndex reads and projects the named variable to a 1-D sequence,
	// fixing every dimension other than its outermost one to the integer
	// given by otherDimIndices. Used to obtain a UDC's index_by
	// projection (spec section 3, "Projection").
	ReadIndex(variable string, otherDimIndices map[string]int) ([]float64, error)

	// ReadSlice reads the named variable over the half-open per-dimension
	// index ranges [begin[i], end[i]), returning an array whose dynamic
	// type matches the variable's datatype (mirroring
	// github.com/ctessum/cdf's Reader: []int8, []int16, []int32,
	// []float32, []float64, or string). Cells with no backing data (e.g.
	// a variable declared in the Config but absent from this granule)
	// should be returned as the variable's _FillValue where the
	// implementation can arrange it; a legitimately NaN-valued float cell
	// on disk is also acceptable here. NaN-to-fill substitution is not
	// this contract's responsibility — the node layer (rawSlice.DataFor)
	// is the single place that rewrites NaN to _FillValue before data
	// reaches the evaluator, per spec section 4.3.
	ReadSlice(variable string, begin, end []int) (interface{}, error)

	// Close releases the handle.
	Close() error
}

// GranuleWriter creates and populates one output granule.
type GranuleWriter interface {
	// Create records the output's destination path and the dimensions,
	// variables, and global attribute specs taken from cfg. Implementations
	// may defer actually opening/writing path until FinalizeAndRename, since
	// a global attribute's value (set via SetGlobalAttr) is not known until
	// after every variable has been written, and some on-disk formats
	// require every attribute value to be fixed before the first byte of
	// variable data is written.
	Create(path string, cfg *Config) error

	// Write writes data (dynamically typed the same way ReadSlice's
	// result is) to the half-open per-dimension index range
	// [begin[i], end[i]) of the named variable. The engine writes
	// disjoint windows once each per variable; partial writes across
	// multiple calls are expected for unlimited-backed variables.
	Write(variable string, begin, end []int, data interface{}) error

	// SetGlobalAttr sets a finalized global attribute value. Called once
	// per non-"remove" GlobalAttrSpec, in Config order, after all
	// variable data has been written.
	SetGlobalAttr(name string, value interface{}) error

	// FinalizeAndRename atomically renames the (temp-named) output to
	// finalPath, completing the write.
	FinalizeAndRename(finalPath string) error

	// Close releases the handle without finalizing; used on the
	// cancellation/error path, where the caller is responsible for
	// discarding whatever was partially written.
	Close() error
}
