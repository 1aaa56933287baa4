package storage

import (
	"context"
	"time"

	"github.com/fuelguard/fuelguard/pkg/storage"
	"github.com/fuelguard/fuelguard/services/api_gateway/internal/metrics"
)

// Storage wraps the read side of the result tables for the API Gateway
type Storage struct {
	store *storage.Storage
}

// New creates a new Storage instance
func New(postgresDSN string, tables storage.Tables) (*Storage, error) {
	store, err := storage.New(postgresDSN, tables)
	if err != nil {
		return nil, err
	}

	return &Storage{store: store}, nil
}

// Close closes the storage connection
func (s *Storage) Close() error {
	return s.store.Close()
}

func (s *Storage) Ping() error {
	return s.store.Ping()
}

func (s *Storage) GetLatestReading(ctx context.Context, siteID string) (storage.LatestReading, error) {
	defer observe("latest")()
	return s.store.GetLatestReading(ctx, siteID)
}

func (s *Storage) ListAlertEvents(ctx context.Context, siteID string, openOnly bool) ([]storage.AlertEvent, error) {
	defer observe("alert_events")()
	return s.store.ListAlertEvents(ctx, siteID, openOnly)
}

func (s *Storage) ListAlertStatus(ctx context.Context, siteID string) ([]storage.AlertStatus, error) {
	defer observe("alert_status")()
	return s.store.ListAlertStatus(ctx, siteID)
}

func (s *Storage) ListDailyAggregates(ctx context.Context, siteID string, from, to *time.Time) ([]storage.DailyAggregate, error) {
	defer observe("daily")()
	return s.store.ListDailyAggregates(ctx, siteID, from, to)
}

func observe(operation string) func() {
	start := time.Now()
	return func() {
		metrics.DatabaseQueryLatency.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}
}
