// Package smoothing denoises tank level series with a centered rolling median.
//
// Each tank series goes through median, gap interpolation, median again, and
// finally falls back to the raw reading wherever a value is still missing.
// Missing values are NaN.
package smoothing

import (
	"math"
	"sort"

	"github.com/fuelguard/fuelguard/pkg/telemetry"
)

const DefaultWindow = 40

type Smoother struct {
	Window int
}

func New(window int) Smoother {
	if window < 1 {
		window = DefaultWindow
	}
	return Smoother{Window: window}
}

// Batch smooths the three tank series of samples and returns per-sample
// smoothed levels and their total.
func (s Smoother) Batch(samples []telemetry.RawSample) (levels [][3]float64, totals []float64) {
	levels = make([][3]float64, len(samples))
	totals = make([]float64, len(samples))

	series := make([]float64, len(samples))
	for tank := 0; tank < 3; tank++ {
		for i, sample := range samples {
			series[i] = sample.Levels()[tank]
		}
		for i, v := range s.Series(series) {
			levels[i][tank] = v
		}
	}

	for i, l := range levels {
		totals[i] = l[0] + l[1] + l[2]
	}
	return levels, totals
}

// Series smooths one series. The input is not modified. Interpolation fills
// every gap once one value is valid, so the raw fallback only applies to a
// series with no valid value.
func (s Smoother) Series(raw []float64) []float64 {
	out := RollingMedian(raw, s.Window)
	Interpolate(out)
	out = RollingMedian(out, s.Window)

	for i, v := range out {
		if math.IsNaN(v) {
			out[i] = raw[i]
		}
	}
	return out
}

// RollingMedian computes a centered median over window samples, ignoring NaN.
// The window for index i spans [i-window/2, i+(window-1)/2] clipped to the
// series; an all-NaN window yields NaN.
func RollingMedian(values []float64, window int) []float64 {
	n := len(values)
	out := make([]float64, n)
	if n == 0 {
		return out
	}
	if window < 1 {
		window = 1
	}

	before := window / 2
	after := window - before - 1

	var w sortedWindow
	lo, hi := 0, -1
	for i := range values {
		for hi < i+after && hi < n-1 {
			hi++
			w.insert(values[hi])
		}
		for lo < i-before {
			w.remove(values[lo])
			lo++
		}
		out[i] = w.median()
	}
	return out
}

// Interpolate fills NaN gaps in place: linearly between valid neighbours,
// and with the nearest valid value at the edges.
func Interpolate(values []float64) {
	prev := -1
	for i, v := range values {
		if math.IsNaN(v) {
			continue
		}
		switch {
		case prev == -1:
			for j := 0; j < i; j++ {
				values[j] = v
			}
		case i-prev > 1:
			step := (v - values[prev]) / float64(i-prev)
			for j := prev + 1; j < i; j++ {
				values[j] = values[prev] + step*float64(j-prev)
			}
		}
		prev = i
	}

	if prev == -1 {
		return
	}
	for j := prev + 1; j < len(values); j++ {
		values[j] = values[prev]
	}
}

// sortedWindow is a sorted multiset of the non-NaN values in the window.
type sortedWindow struct {
	sorted []float64
}

func (w *sortedWindow) insert(v float64) {
	if math.IsNaN(v) {
		return
	}
	i := sort.SearchFloat64s(w.sorted, v)
	w.sorted = append(w.sorted, 0)
	copy(w.sorted[i+1:], w.sorted[i:])
	w.sorted[i] = v
}

func (w *sortedWindow) remove(v float64) {
	if math.IsNaN(v) {
		return
	}
	i := sort.SearchFloat64s(w.sorted, v)
	if i < len(w.sorted) && w.sorted[i] == v {
		w.sorted = append(w.sorted[:i], w.sorted[i+1:]...)
	}
}

func (w *sortedWindow) median() float64 {
	n := len(w.sorted)
	switch {
	case n == 0:
		return math.NaN()
	case n%2 == 1:
		return w.sorted[n/2]
	default:
		return (w.sorted[n/2-1] + w.sorted[n/2]) / 2
	}
}
