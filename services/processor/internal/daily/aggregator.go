// Package daily accumulates classified readings into per-site, per-day
// consumption summaries.
package daily

import (
	"sort"
	"sync"
	"time"

	"github.com/fuelguard/fuelguard/pkg/storage"
	"github.com/fuelguard/fuelguard/services/processor/internal/classify"
	"github.com/fuelguard/fuelguard/services/processor/internal/pipeline"
)

type Key struct {
	SiteID string
	Day    time.Time
}

// Bucket holds the running totals of one site for one local day.
type Bucket struct {
	Key

	StartLevel float64
	EndLevel   float64
	DiffSum    float64
	CumSum     float64
	Generator  bool
	Samples    int
}

func (b *Bucket) add(r pipeline.Reading, generator bool) {
	if b.Samples == 0 {
		b.StartLevel = r.Total
	}
	b.EndLevel = r.Total
	b.DiffSum += r.Diff
	b.CumSum += r.Cumulative
	b.Generator = b.Generator || generator
	b.Samples++
}

// merge folds later, which holds samples that arrived after b's, into b.
func (b *Bucket) merge(later *Bucket) {
	if later.Samples == 0 {
		return
	}
	if b.Samples == 0 {
		b.StartLevel = later.StartLevel
	}
	b.EndLevel = later.EndLevel
	b.DiffSum += later.DiffSum
	b.CumSum += later.CumSum
	b.Generator = b.Generator || later.Generator
	b.Samples += later.Samples
}

// DefaultGrace is how long a written day keeps its totals for late samples.
const DefaultGrace = 48 * time.Hour

type Aggregator struct {
	offset     time.Duration
	grace      time.Duration
	classifier *classify.Classifier

	mu      sync.Mutex
	buckets map[Key]*Bucket
	// written holds the totals of flushed days until the grace horizon, so a
	// late sample reopens the full day instead of starting a partial one.
	written map[Key]*Bucket
	horizon time.Time
}

type Option func(*Aggregator)

// WithGrace sets how long written days accept late samples.
func WithGrace(d time.Duration) Option {
	return func(a *Aggregator) {
		if d > 0 {
			a.grace = d
		}
	}
}

// NewAggregator buckets readings by the local day of a site at a fixed UTC offset.
func NewAggregator(offset time.Duration, classifier *classify.Classifier, opts ...Option) *Aggregator {
	a := &Aggregator{
		offset:     offset,
		grace:      DefaultGrace,
		classifier: classifier,
		buckets:    map[Key]*Bucket{},
		written:    map[Key]*Bucket{},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// LocalDay returns the UTC instant of the local midnight that starts t's day.
func (a *Aggregator) LocalDay(t time.Time) time.Time {
	return storage.DayStart(t, a.offset)
}

// NextBoundary returns the next local midnight strictly after now.
func (a *Aggregator) NextBoundary(now time.Time) time.Time {
	return a.LocalDay(now).Add(24 * time.Hour)
}

// Add folds readings into their day buckets. A reading for a written day
// reopens that day with its totals. Readings for days past the grace horizon
// are dropped and counted.
func (a *Aggregator) Add(readings []pipeline.Reading) (dropped int) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, r := range readings {
		key := Key{SiteID: r.SiteID, Day: a.LocalDay(r.Time())}
		if key.Day.Before(a.horizon) {
			dropped++
			continue
		}

		b, ok := a.buckets[key]
		if !ok {
			if b, ok = a.written[key]; ok {
				delete(a.written, key)
			} else {
				b = &Bucket{Key: key}
			}
			a.buckets[key] = b
		}
		b.add(r, a.classifier.IsGenerator(r.PowerState))
	}
	return dropped
}

// Take removes and returns every bucket of a day before now's local day, and
// forgets written days that fell behind the grace horizon.
func (a *Aggregator) Take(now time.Time) []*Bucket {
	today := a.LocalDay(now)

	a.mu.Lock()
	var done []*Bucket
	for key, b := range a.buckets {
		if key.Day.Before(today) {
			done = append(done, b)
			delete(a.buckets, key)
		}
	}

	if horizon := a.LocalDay(today.Add(-a.grace)); horizon.After(a.horizon) {
		a.horizon = horizon
	}
	for key := range a.written {
		if key.Day.Before(a.horizon) {
			delete(a.written, key)
		}
	}
	a.mu.Unlock()

	sortBuckets(done)
	return done
}

// Retain keeps written buckets for late samples. Samples that arrived for the
// same key while the row was being written are merged after the retained ones
// and the day goes back to pending.
func (a *Aggregator) Retain(buckets []*Bucket) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, b := range buckets {
		if newer, ok := a.buckets[b.Key]; ok {
			b.merge(newer)
			a.buckets[b.Key] = b
			continue
		}
		if !b.Day.Before(a.horizon) {
			a.written[b.Key] = b
		}
	}
}

// Restore puts back buckets whose write failed. Samples that arrived for the
// same key in the meantime are merged after the restored ones.
func (a *Aggregator) Restore(buckets []*Bucket) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, b := range buckets {
		if newer, ok := a.buckets[b.Key]; ok {
			b.merge(newer)
		}
		a.buckets[b.Key] = b
	}
}

// Written returns the number of written days still accepting late samples.
func (a *Aggregator) Written() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.written)
}

// Pending returns a copy of the open buckets.
func (a *Aggregator) Pending() []Bucket {
	a.mu.Lock()
	out := make([]Bucket, 0, len(a.buckets))
	for _, b := range a.buckets {
		out = append(out, *b)
	}
	a.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return less(out[i].Key, out[j].Key) })
	return out
}

// Summarize computes the daily row of a bucket.
func (a *Aggregator) Summarize(b *Bucket, flushedAt time.Time) storage.DailyAggregate {
	theft := a.classifier.TheftLitres(b.CumSum)
	refill := a.classifier.RefillLitres(b.CumSum)

	return storage.DailyAggregate{
		SiteID:            b.SiteID,
		Day:               b.Day,
		UpdateTime:        b.Day.Add(24 * time.Hour),
		DayStartLevel:     b.StartLevel,
		DayEndLevel:       b.EndLevel,
		FuelDiff:          b.DiffSum,
		CumulativeChange:  b.CumSum,
		TheftLitres:       theft,
		RefillLitres:      refill,
		ConsumptionLitres: Consumption(b.StartLevel, b.EndLevel, theft, refill, b.Generator),
		GeneratorActivity: b.Generator,
		Time:              flushedAt,
	}
}

// Consumption is the fuel burnt over a day. It is only counted when the
// generator ran or fuel was stolen, and a level that rose without a refill
// reports nothing.
func Consumption(start, end, theft, refill float64, generator bool) float64 {
	if start-end < 0 && refill == 0 {
		return 0
	}
	if !generator && theft <= 0 {
		return 0
	}
	return (start + theft - refill) - end
}

func sortBuckets(b []*Bucket) {
	sort.Slice(b, func(i, j int) bool { return less(b[i].Key, b[j].Key) })
}

func less(a, b Key) bool {
	if !a.Day.Equal(b.Day) {
		return a.Day.Before(b.Day)
	}
	return a.SiteID < b.SiteID
}
