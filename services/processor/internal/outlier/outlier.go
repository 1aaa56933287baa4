// Package outlier scores how unusual each value of a series is.
package outlier

import (
	"fmt"
	"math"
	"sort"
)

const (
	MethodMAD    = "mad"
	MethodZScore = "zscore"

	DefaultThreshold = 3.5
)

// madScale makes the median absolute deviation consistent with the standard
// deviation of a normal distribution.
const madScale = 0.6745

// Scorer returns one score per value. Larger magnitudes are more unusual.
type Scorer interface {
	Name() string
	Scores(values []float64) []float64
}

func New(method string) (Scorer, error) {
	switch method {
	case "", MethodMAD:
		return MAD{}, nil
	case MethodZScore:
		return ZScore{}, nil
	default:
		return nil, fmt.Errorf("unknown outlier method %q", method)
	}
}

// MAD is the modified z-score based on the median absolute deviation.
type MAD struct{}

func (MAD) Name() string { return MethodMAD }

func (MAD) Scores(values []float64) []float64 {
	scores := make([]float64, len(values))
	if len(values) == 0 {
		return scores
	}

	med := median(values)
	dev := make([]float64, len(values))
	for i, v := range values {
		dev[i] = math.Abs(v - med)
	}
	mad := median(dev)
	if mad == 0 {
		return scores
	}

	for i, v := range values {
		scores[i] = madScale * (v - med) / mad
	}
	return scores
}

// ZScore is the classic (x-mean)/stddev score.
type ZScore struct{}

func (ZScore) Name() string { return MethodZScore }

func (ZScore) Scores(values []float64) []float64 {
	scores := make([]float64, len(values))
	m, sd := meanStd(values)
	if sd == 0 {
		return scores
	}
	for i, v := range values {
		scores[i] = (v - m) / sd
	}
	return scores
}

// Flagged counts scores whose magnitude exceeds threshold.
func Flagged(scores []float64, threshold float64) int {
	n := 0
	for _, s := range scores {
		if math.Abs(s) > threshold {
			n++
		}
	}
	return n
}

func median(values []float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func meanStd(a []float64) (float64, float64) {
	if len(a) == 0 {
		return 0, 0
	}
	var sum float64
	for _, v := range a {
		sum += v
	}
	m := sum / float64(len(a))

	var s float64
	for _, v := range a {
		d := v - m
		s += d * d
	}
	return m, math.Sqrt(s / float64(len(a)))
}
