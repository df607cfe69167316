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

// Package ncagg implements the core of a NetCDF aggregation engine: a
// planner that computes an ordered aggregation plan from a set of input
// granule descriptors, and an evaluator that streams granule data into a
// single output file according to that plan.
package ncagg

// Version is the engine version, reported by the ncagg_version attribute
// strategy (see Strategy). It is a compile-time constant rather than
// ambient build info so that it can be threaded explicitly into a
// AttrContext instead of being read from global state.
const Version = "0.1.0"
