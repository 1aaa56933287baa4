// Package changes derives sample-to-sample deltas and trailing cumulative change.
package changes

// Lags is the number of preceding deltas summed into the cumulative change.
const Lags = 3

// Diffs returns level[i]-level[i-1] with the first delta defined as zero.
func Diffs(levels []float64) []float64 {
	diffs := make([]float64, len(levels))
	for i := 1; i < len(levels); i++ {
		diffs[i] = levels[i] - levels[i-1]
	}
	return diffs
}

// Cumulative sums the lags deltas before each index, excluding the delta at
// the index itself. Lags before the start of the series count as zero.
func Cumulative(diffs []float64, lags int) []float64 {
	out := make([]float64, len(diffs))
	for i := range diffs {
		for k := 1; k <= lags && i-k >= 0; k++ {
			out[i] += diffs[i-k]
		}
	}
	return out
}
