package alerts

//go:generate mockgen -destination=mock_sink.go -package=alerts github.com/fuelguard/fuelguard/services/processor/internal/alerts Sink

import (
	"context"

	"github.com/fuelguard/fuelguard/pkg/storage"
)

// LockStore holds one open-alert marker per (site, category) key.
type LockStore interface {
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// Sink persists alert events and the per-category status projection.
type Sink interface {
	InsertAlertEvent(ctx context.Context, event storage.AlertEvent) error
	CloseAlertEvent(ctx context.Context, event storage.AlertEvent) error
	UpsertAlertStatus(ctx context.Context, status storage.AlertStatus) error
}
