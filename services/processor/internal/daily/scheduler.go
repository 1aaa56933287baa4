package daily

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/fuelguard/fuelguard/pkg/storage"
	"github.com/fuelguard/fuelguard/services/processor/internal/metrics"
)

// Clock provides the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock uses time.Now.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

type Writer interface {
	UpsertDailyAggregate(ctx context.Context, row storage.DailyAggregate) error
}

type FlushResult struct {
	Written int `json:"written"`
	Failed  int `json:"failed"`
}

// Scheduler flushes completed days at every local midnight.
type Scheduler struct {
	agg    *Aggregator
	writer Writer
	clock  Clock
	log    zerolog.Logger
}

func NewScheduler(agg *Aggregator, writer Writer, clock Clock, log zerolog.Logger) *Scheduler {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Scheduler{agg: agg, writer: writer, clock: clock, log: log}
}

// Run waits for each local midnight and flushes. It returns when ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		now := s.clock.Now()
		wait := s.agg.NextBoundary(now).Sub(now)
		s.log.Debug().Dur("wait", wait).Msg("next daily flush scheduled")

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
			s.Flush(ctx)
		}
	}
}

// Flush writes every completed day. Rows that fail are kept for the next flush.
func (s *Scheduler) Flush(ctx context.Context) FlushResult {
	now := s.clock.Now()
	buckets := s.agg.Take(now)

	var result FlushResult
	var written, failed []*Bucket
	for _, b := range buckets {
		row := s.agg.Summarize(b, now.UTC())
		if err := s.writer.UpsertDailyAggregate(ctx, row); err != nil {
			s.log.Error().Err(err).Str("site_id", b.SiteID).Time("day", b.Day).Msg("write daily aggregate")
			failed = append(failed, b)
			continue
		}
		written = append(written, b)
	}

	s.agg.Retain(written)
	if len(failed) > 0 {
		s.agg.Restore(failed)
	}
	result.Written = len(written)
	result.Failed = len(failed)

	metrics.DailyRowsFlushed.WithLabelValues("ok").Add(float64(result.Written))
	metrics.DailyRowsFlushed.WithLabelValues("error").Add(float64(result.Failed))
	if len(buckets) > 0 {
		s.log.Info().Int("written", result.Written).Int("failed", result.Failed).Msg("daily aggregates flushed")
	}
	return result
}
