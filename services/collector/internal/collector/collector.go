package collector

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/fuelguard/fuelguard/pkg/dispatch"
	"github.com/fuelguard/fuelguard/pkg/telemetry"
	"github.com/fuelguard/fuelguard/services/collector/internal/buffer"
	"github.com/fuelguard/fuelguard/services/collector/internal/config"
	"github.com/fuelguard/fuelguard/services/collector/internal/metrics"
)

var errNotConnected = errors.New("nats not connected")

// Publisher is the outbound side of the collector. *nats.Conn satisfies it.
type Publisher interface {
	Publish(subject string, data []byte) error
}

type Collector struct {
	cfg        *config.Config
	nc         *nats.Conn
	pub        Publisher
	store      *buffer.Store
	dispatcher *dispatch.Dispatcher[*telemetry.Report]
	log        zerolog.Logger
	sub        *nats.Subscription
}

func New(cfg *config.Config, log zerolog.Logger) (*Collector, error) {
	nc, err := nats.Connect(cfg.NATS.URL, nats.Name(cfg.Service.Name))
	if err != nil {
		return nil, err
	}

	c := newCollector(cfg, nc, log)
	c.nc = nc
	return c, nil
}

func newCollector(cfg *config.Config, pub Publisher, log zerolog.Logger) *Collector {
	c := &Collector{
		cfg:   cfg,
		pub:   pub,
		store: buffer.NewStore(cfg.Buffer.Capacity),
		log:   log,
	}
	c.dispatcher = dispatch.New(cfg.Workers, dispatch.DefaultQueueDepth, func(_ context.Context, r *telemetry.Report) {
		c.HandleReport(r)
	})
	return c
}

// Start launches the workers and subscribes to the report subject.
func (c *Collector) Start(ctx context.Context) error {
	c.dispatcher.Start(ctx)

	sub, err := c.nc.Subscribe(c.cfg.NATS.SubjectReports, c.handleMsg)
	if err != nil {
		return err
	}
	c.sub = sub

	if err := c.nc.Flush(); err != nil {
		return err
	}

	c.log.Info().Str("subject", c.cfg.NATS.SubjectReports).Msg("subscribed to reports")
	return nil
}

// Close stops intake, drains the workers and the connection.
func (c *Collector) Close() {
	if c.sub != nil {
		_ = c.sub.Unsubscribe()
	}
	c.dispatcher.Stop()

	if c.nc != nil && !c.nc.IsClosed() {
		_ = c.nc.Drain()
	}
}

// Connected reports whether the NATS connection is usable.
func (c *Collector) Connected() error {
	if c.nc == nil || !c.nc.IsConnected() {
		return errNotConnected
	}
	return nil
}

func (c *Collector) Buffers() []buffer.SiteStats {
	return c.store.Stats()
}

func (c *Collector) handleMsg(msg *nats.Msg) {
	c.Ingest(msg.Data)
}

// Ingest decodes a raw payload and queues it on the worker owning its site.
func (c *Collector) Ingest(payload []byte) {
	report, err := telemetry.ParseReport(payload)
	if err != nil {
		status := "parse_error"
		if errors.Is(err, telemetry.ErrIdentifierMissing) {
			status = "identifier_missing"
		}
		metrics.ReportsReceived.WithLabelValues("unknown", status).Inc()
		c.log.Warn().Err(err).Msg("dropping report")
		return
	}

	if !c.dispatcher.Dispatch(report.SiteID, report) {
		c.log.Warn().Str("site_id", report.SiteID).Msg("collector stopped, report dropped")
	}
}

// HandleReport applies one report to its site state. Power-source reports
// update the cache; fuel reports are buffered and a full buffer is published.
func (c *Collector) HandleReport(report *telemetry.Report) {
	start := time.Now()
	defer func() { metrics.HandleLatency.Observe(time.Since(start).Seconds()) }()

	kind := report.Kind(c.cfg.Buffer.PowerSourceHardware, c.cfg.Buffer.FuelHardware)
	if kind == telemetry.KindOther {
		metrics.ReportsReceived.WithLabelValues(kind.String(), "ignored").Inc()
		return
	}
	state := c.store.GetOrCreate(report.SiteID)

	switch kind {
	case telemetry.KindPowerSource:
		powerState, ok := report.PowerState()
		if !ok {
			metrics.ReportsReceived.WithLabelValues(kind.String(), "no_powerstate").Inc()
			return
		}
		state.SetPowerState(powerState)
		c.log.Debug().Str("site_id", report.SiteID).Str("power_state", powerState).Msg("power state cached")

	case telemetry.KindFuel:
		batch, evicted := state.Add(report.FuelSample(state.PowerState()))
		if evicted {
			metrics.BufferEvictions.Inc()
		}
		if batch != nil {
			c.publish(report.SiteID, batch)
		}
	}

	metrics.ReportsReceived.WithLabelValues(kind.String(), "ok").Inc()
}

func (c *Collector) publish(siteID string, batch []telemetry.RawSample) {
	payload, err := json.Marshal(batch)
	if err != nil {
		metrics.BatchesEmitted.WithLabelValues("error").Inc()
		c.log.Error().Err(err).Str("site_id", siteID).Msg("encode batch")
		return
	}

	if err := c.pub.Publish(c.cfg.NATS.SubjectBatches, payload); err != nil {
		metrics.BatchesEmitted.WithLabelValues("error").Inc()
		c.log.Error().Err(err).Str("site_id", siteID).Msg("publish batch")
		return
	}

	metrics.BatchesEmitted.WithLabelValues("ok").Inc()
	c.log.Info().Str("site_id", siteID).Int("samples", len(batch)).Msg("batch published")
}
