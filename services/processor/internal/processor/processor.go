package processor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/fuelguard/fuelguard/pkg/dispatch"
	"github.com/fuelguard/fuelguard/pkg/storage"
	"github.com/fuelguard/fuelguard/pkg/telemetry"
	"github.com/fuelguard/fuelguard/services/processor/internal/alerts"
	"github.com/fuelguard/fuelguard/services/processor/internal/config"
	"github.com/fuelguard/fuelguard/services/processor/internal/daily"
	"github.com/fuelguard/fuelguard/services/processor/internal/metrics"
	"github.com/fuelguard/fuelguard/services/processor/internal/pipeline"
)

type LatestWriter interface {
	UpsertLatestReading(ctx context.Context, r storage.LatestReading) error
}

type Deps struct {
	Analyzer *pipeline.Analyzer
	Alerts   *alerts.Manager
	Daily    *daily.Aggregator
	Latest   LatestWriter
}

// Processor consumes site batches and drives them through the pipeline and sinks.
type Processor struct {
	cfg        *config.Config
	nc         *nats.Conn
	deps       Deps
	dispatcher *dispatch.Dispatcher[[]telemetry.RawSample]
	log        zerolog.Logger
	sub        *nats.Subscription
	now        func() time.Time
}

func New(cfg *config.Config, nc *nats.Conn, deps Deps, log zerolog.Logger) *Processor {
	p := &Processor{
		cfg:  cfg,
		nc:   nc,
		deps: deps,
		log:  log,
		now:  time.Now,
	}
	p.dispatcher = dispatch.New(cfg.Workers, dispatch.DefaultQueueDepth, func(ctx context.Context, batch []telemetry.RawSample) {
		if err := p.HandleBatch(ctx, batch); err != nil {
			p.log.Error().Err(err).Str("site_id", batch[0].SiteID).Msg("batch skipped")
		}
	})
	return p
}

func (p *Processor) Start(ctx context.Context) error {
	p.dispatcher.Start(ctx)

	sub, err := p.nc.QueueSubscribe(p.cfg.NATS.SubjectBatches, p.cfg.NATS.QueueGroup, p.handleMsg)
	if err != nil {
		return err
	}
	p.sub = sub

	if err := p.nc.Flush(); err != nil {
		return err
	}

	p.log.Info().Str("subject", p.cfg.NATS.SubjectBatches).Str("queue", p.cfg.NATS.QueueGroup).Msg("subscribed to batches")
	return nil
}

// Close stops intake and waits for queued batches to finish.
func (p *Processor) Close() {
	if p.sub != nil {
		_ = p.sub.Unsubscribe()
	}
	p.dispatcher.Stop()
}

func (p *Processor) handleMsg(msg *nats.Msg) {
	p.Ingest(msg.Data)
}

// Ingest decodes a batch message and queues each site's samples on its worker.
func (p *Processor) Ingest(payload []byte) {
	var samples []telemetry.RawSample
	if err := json.Unmarshal(payload, &samples); err != nil {
		metrics.BatchesProcessed.WithLabelValues("parse_error").Inc()
		p.log.Warn().Err(fmt.Errorf("%w: %v", telemetry.ErrParse, err)).Msg("dropping batch")
		return
	}

	for _, group := range pipeline.SplitBySite(samples) {
		if !p.dispatcher.Dispatch(group[0].SiteID, group) {
			p.log.Warn().Str("site_id", group[0].SiteID).Msg("processor stopped, batch dropped")
		}
	}
}

// HandleBatch runs one site's samples through the pipeline, then feeds the
// latest-reading sink, the alert lifecycle and the daily aggregator.
func (p *Processor) HandleBatch(ctx context.Context, samples []telemetry.RawSample) error {
	if len(samples) == 0 {
		return nil
	}
	start := time.Now()
	defer func() { metrics.ProcessingLatency.Observe(time.Since(start).Seconds()) }()

	readings, err := p.deps.Analyzer.Analyze(samples)
	if err != nil {
		status := "error"
		if errors.Is(err, pipeline.ErrClassificationInput) {
			status = "classification_input"
		}
		metrics.BatchesProcessed.WithLabelValues(status).Inc()
		return err
	}

	p.observe(readings)

	last := readings[len(readings)-1]
	if err := p.deps.Latest.UpsertLatestReading(ctx, p.latest(last)); err != nil {
		p.log.Error().Err(err).Str("site_id", last.SiteID).Msg("upsert latest reading")
	}

	transitions, err := p.deps.Alerts.Process(ctx, readings)
	if err != nil {
		p.log.Error().Err(err).Str("site_id", last.SiteID).Msg("alert lifecycle skipped")
	}
	for _, tr := range transitions {
		metrics.AlertTransitions.WithLabelValues(string(tr.Record.Category), string(tr.Kind)).Inc()
	}

	if dropped := p.deps.Daily.Add(readings); dropped > 0 {
		metrics.DailyLateDropped.Add(float64(dropped))
		p.log.Warn().Str("site_id", last.SiteID).Int("dropped", dropped).Msg("readings past the daily grace horizon")
	}

	metrics.BatchesProcessed.WithLabelValues("ok").Inc()
	p.log.Debug().Str("site_id", last.SiteID).Int("samples", len(readings)).Int("transitions", len(transitions)).Msg("batch processed")
	return nil
}

func (p *Processor) observe(readings []pipeline.Reading) {
	for _, r := range readings {
		metrics.Readings.WithLabelValues(string(r.Category)).Inc()
		if r.Significant {
			metrics.SignificantChanges.Inc()
		}
		if p.deps.Analyzer.IsOutlier(r) {
			metrics.OutliersFlagged.Inc()
		}
	}
}

func (p *Processor) latest(r pipeline.Reading) storage.LatestReading {
	return storage.LatestReading{
		SiteID:            r.SiteID,
		UpdateTime:        r.Time(),
		PowerState:        r.PowerState,
		Gateway:           r.Gateway,
		HWCode:            r.HWCode,
		Level1:            r.Levels[0],
		Level2:            r.Levels[1],
		Level3:            r.Levels[2],
		TotalLevel:        r.Total,
		CumulativeChange:  r.Cumulative,
		SignificantChange: r.Significant,
		Time:              p.now().UTC(),
	}
}
