// Package pipeline turns a batch of raw samples into classified readings.
package pipeline

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/fuelguard/fuelguard/pkg/telemetry"
	"github.com/fuelguard/fuelguard/services/processor/internal/changes"
	"github.com/fuelguard/fuelguard/services/processor/internal/classify"
	"github.com/fuelguard/fuelguard/services/processor/internal/outlier"
	"github.com/fuelguard/fuelguard/services/processor/internal/smoothing"
)

var ErrClassificationInput = errors.New("classification input mismatch")

// Reading is a classified, smoothed sample.
type Reading struct {
	telemetry.RawSample

	Levels        [3]float64
	Total         float64
	Diff          float64
	Cumulative    float64
	OutlierScore  float64
	Significant   bool
	SensorFailure bool
	Category      classify.Category
	Severity      classify.Severity
}

func (r Reading) Time() time.Time {
	return time.Unix(r.UpdateTime, 0).UTC()
}

type Analyzer struct {
	smoother     smoothing.Smoother
	classifier   *classify.Classifier
	scorer       outlier.Scorer
	litreChange  float64
	outlierLimit float64
}

func NewAnalyzer(smoother smoothing.Smoother, classifier *classify.Classifier, scorer outlier.Scorer, litreChange, outlierLimit float64) *Analyzer {
	return &Analyzer{
		smoother:     smoother,
		classifier:   classifier,
		scorer:       scorer,
		litreChange:  litreChange,
		outlierLimit: outlierLimit,
	}
}

func (a *Analyzer) Classifier() *classify.Classifier {
	return a.classifier
}

// Analyze smooths, differences, scores and classifies the samples of one
// site, in arrival order.
func (a *Analyzer) Analyze(samples []telemetry.RawSample) ([]Reading, error) {
	levels, totals := a.smoother.Batch(samples)
	diffs := changes.Diffs(totals)
	cumulative := changes.Cumulative(diffs, changes.Lags)
	scores := a.scorer.Scores(cumulative)

	n := len(samples)
	if len(levels) != n || len(totals) != n || len(cumulative) != n || len(scores) != n {
		return nil, fmt.Errorf("%w: %d samples, %d levels, %d cumulative, %d scores",
			ErrClassificationInput, n, len(totals), len(cumulative), len(scores))
	}

	readings := make([]Reading, n)
	for i, s := range samples {
		cat, sev := a.classifier.Classify(totals[i], cumulative[i], s.PowerState)
		readings[i] = Reading{
			RawSample:     s,
			Levels:        levels[i],
			Total:         totals[i],
			Diff:          diffs[i],
			Cumulative:    cumulative[i],
			OutlierScore:  scores[i],
			Significant:   a.litreChange > 0 && math.Abs(cumulative[i]) >= a.litreChange,
			SensorFailure: cat == classify.CategorySensorFailure,
			Category:      cat,
			Severity:      sev,
		}
	}
	return readings, nil
}

// IsOutlier reports whether the reading's score exceeds the configured limit.
func (a *Analyzer) IsOutlier(r Reading) bool {
	return a.outlierLimit > 0 && math.Abs(r.OutlierScore) > a.outlierLimit
}

// SplitBySite groups samples by site, keeping arrival order within each group
// and ordering groups by first appearance.
func SplitBySite(samples []telemetry.RawSample) [][]telemetry.RawSample {
	index := map[string]int{}
	var groups [][]telemetry.RawSample
	for _, s := range samples {
		i, ok := index[s.SiteID]
		if !ok {
			i = len(groups)
			index[s.SiteID] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], s)
	}
	return groups
}
