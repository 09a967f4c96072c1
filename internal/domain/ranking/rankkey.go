// Package ranking folds the personal-best ordering into a single
// comparable scalar so that sorted-set style caches, which rank by one
// number, reproduce the same order as the durable store.
package ranking

import "math"

// Scale separates the score component from the clear-time tie-break.
// Score dominates as long as the clamped clear-time units stay below
// Scale, and score*Scale stays inside float64's exact-integer range
// for any plausible game score.
const Scale = 10_000_000

// Clear time participates at a resolution of tenths of a millisecond.
const unitsPerSecond = 10_000

// maxClearTimeUnits keeps the tie-break strictly below Scale so a slow
// clear can never borrow from the score component.
const maxClearTimeUnits = Scale - 1

// Key folds (score, clearTime) into one value where a numerically
// greater key means a better result.
func Key(score int64, clearTimeSeconds float64) float64 {
	units := math.Round(clearTimeSeconds * unitsPerSecond)
	if units < 0 || math.IsNaN(units) {
		units = 0
	}
	if units > maxClearTimeUnits {
		units = maxClearTimeUnits
	}
	return float64(score)*Scale - units
}

// ClearTimeUnits returns the clamped tenths-of-a-millisecond value used
// inside Key. The store compares clear times at this same resolution so
// the fallback path and the cache path agree on ties.
func ClearTimeUnits(clearTimeSeconds float64) int64 {
	units := math.Round(clearTimeSeconds * unitsPerSecond)
	if units < 0 || math.IsNaN(units) {
		return 0
	}
	if units > maxClearTimeUnits {
		return maxClearTimeUnits
	}
	return int64(units)
}

// Score recovers the score component of a folded key.
func Score(key float64) int64 {
	return int64(math.Ceil(key / Scale))
}
