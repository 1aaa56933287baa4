package storage

import (
	"context"
	"fmt"

	"github.com/fuelguard/fuelguard/pkg/storage"
	"github.com/fuelguard/fuelguard/services/processor/internal/metrics"
)

// Storage wraps the result sinks. With writes disabled every call is a no-op.
type Storage struct {
	store *storage.Storage
}

type Config struct {
	PostgresDSN  string
	WriteResults bool
	Tables       storage.Tables
}

// New connects and validates the result tables when writes are enabled
func New(ctx context.Context, cfg Config) (*Storage, error) {
	if !cfg.WriteResults {
		return &Storage{}, nil
	}

	store, err := storage.New(cfg.PostgresDSN, cfg.Tables)
	if err != nil {
		return nil, err
	}

	if err := store.ValidateSchema(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("validate schema: %w", err)
	}

	return &Storage{store: store}, nil
}

func (s *Storage) Enabled() bool {
	return s.store != nil
}

// Ping reports the database health. Disabled storage is always healthy.
func (s *Storage) Ping() error {
	if s.store == nil {
		return nil
	}
	return s.store.Ping()
}

// Close closes the storage connection
func (s *Storage) Close() error {
	if s.store == nil {
		return nil
	}
	return s.store.Close()
}

func (s *Storage) UpsertLatestReading(ctx context.Context, r storage.LatestReading) error {
	if s.store == nil {
		return nil
	}
	return count("latest", s.store.UpsertLatestReading(ctx, r))
}

func (s *Storage) InsertAlertEvent(ctx context.Context, e storage.AlertEvent) error {
	if s.store == nil {
		return nil
	}
	return count("alert_events", s.store.InsertAlertEvent(ctx, e))
}

func (s *Storage) CloseAlertEvent(ctx context.Context, e storage.AlertEvent) error {
	if s.store == nil {
		return nil
	}
	return count("alert_events", s.store.CloseAlertEvent(ctx, e))
}

func (s *Storage) UpsertAlertStatus(ctx context.Context, st storage.AlertStatus) error {
	if s.store == nil {
		return nil
	}
	return count("alert_status", s.store.UpsertAlertStatus(ctx, st))
}

func (s *Storage) UpsertDailyAggregate(ctx context.Context, d storage.DailyAggregate) error {
	if s.store == nil {
		return nil
	}
	return count("daily", s.store.UpsertDailyAggregate(ctx, d))
}

func count(sink string, err error) error {
	if err != nil {
		metrics.SinkErrors.WithLabelValues(sink).Inc()
	}
	return err
}
