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

package ncagg

import "math"

// recordsBetween returns how many cadence periods separate a and b (a <= b),
// i.e. (b - a) * cadence rounded to the nearest integer; the number of
// cadence-spaced records strictly between a and b is one fewer. A cadence
// of zero means no rate is configured and the dimension is treated as
// having no gap/overlap/dedup arithmetic; recordsBetween then always
// returns 0.
//
// This file is the single place the gap-fill (step 5), dedup (step 4) and
// bound-chop (step 3) tolerance arithmetic described in spec section 4.4 is
// computed, so that every caller rounds and scales the same way.
func recordsBetween(a, b, cadence float64) int {
	if cadence <= 0 {
		return 0
	}
	return int(math.Round((b - a) * cadence))
}

// isDuplicate reports whether b is within dedup tolerance of a (b - a <
// 0.5/cadence), meaning b should be treated as a repeat of a rather than a
// distinct, later record. See spec section 4.4 step 4 and invariant 4.
func isDuplicate(a, b, cadence float64) bool {
	if cadence <= 0 {
		return false
	}
	return b-a < 0.5/cadence
}

// isGap reports whether the distance between two adjacent retained records
// a (earlier) and b (later) is large enough to warrant a FillSegment (delta
// > 1.5/cadence). See spec section 4.4 step 5.
func isGap(a, b, cadence float64) bool {
	if cadence <= 0 {
		return false
	}
	return b-a > 1.5/cadence
}

// withinLowerBound reports whether v is admissible at the leading edge of
// a half-open [min, max) bound: v >= min (closed at min). As with withinUpperBound,
// no cadence-scaled slack is applied: the invariant "no emitted non-fill
// record has projected v < min" (spec section 8.1) admits no exception for a
// record merely close to min, only one that actually reaches it.
func withinLowerBound(v, min, cadence float64) bool {
	return v >= min
}

// withinUpperBound reports whether v is admissible at the trailing edge of
// a half-open [min, max) bound: v < max, strictly. The bound is half-open at
// max by definition (spec invariant "no emitted non-fill record has
// projected v >= max"), so a record landing exactly on max, or beyond it,
// must always be dropped, never rescued by a cadence-scaled slack.
func withinUpperBound(v, max, cadence float64) bool {
	return v < max
}

// monotonicNonDecreasing reports whether vs is sorted ascending, allowing
// equal adjacent values. The planner does not call it: planIndexed sorts
// every granule's kept indices unconditionally.
func monotonicNonDecreasing(vs []float64) bool {
	for i := 1; i < len(vs); i++ {
		if vs[i] < vs[i-1] {
			return false
		}
	}
	return true
}
