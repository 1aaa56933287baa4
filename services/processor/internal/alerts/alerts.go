// Package alerts tracks the open/closed lifecycle of fuel alerts per site and category.
//
// An alert is open while its marker exists in the lock store. The first
// non-normal reading of a category opens it; the next normal reading of the
// site closes every open category. Markers are read from the store at the
// start of every batch, so markers that expired or were removed by another
// processor are honoured.
package alerts

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/fuelguard/fuelguard/pkg/storage"
	"github.com/fuelguard/fuelguard/services/processor/internal/classify"
	"github.com/fuelguard/fuelguard/services/processor/internal/pipeline"
)

const (
	RecordType     = "alert"
	RecordProtocol = "mqtt"
)

// LockKey is the lock store key of a (site, category) pair. Bytes outside
// [A-Za-z0-9-] in the site id are written as _XX (hex), so distinct site ids
// never share a key.
func LockKey(siteID string, cat classify.Category) string {
	return "alert." + escapeKey(siteID) + "." + string(cat)
}

func escapeKey(s string) string {
	const hex = "0123456789ABCDEF"

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9', c == '-':
			b.WriteByte(c)
		default:
			b.WriteByte('_')
			b.WriteByte(hex[c>>4])
			b.WriteByte(hex[c&0x0f])
		}
	}
	return b.String()
}

// Record is the snapshot stored as the open marker.
type Record struct {
	ID         string            `json:"id"`
	SiteID     string            `json:"siteid"`
	Category   classify.Category `json:"displaypoint"`
	Gateway    string            `json:"gateway"`
	HWCode     string            `json:"hwcode"`
	OpenTime   time.Time         `json:"opentime"`
	CloseTime  *time.Time        `json:"closetime,omitempty"`
	StartLevel float64           `json:"start_fuellevel"`
	EndLevel   *float64          `json:"end_fuellevel,omitempty"`
	Severity   classify.Severity `json:"severity"`
}

func (r Record) Event(now time.Time) storage.AlertEvent {
	return storage.AlertEvent{
		ID:         r.ID,
		SiteID:     r.SiteID,
		Gateway:    r.Gateway,
		HWCode:     r.HWCode,
		Category:   string(r.Category),
		OpenTime:   r.OpenTime,
		CloseTime:  r.CloseTime,
		StartLevel: r.StartLevel,
		EndLevel:   r.EndLevel,
		Severity:   string(r.Severity),
		Type:       RecordType,
		Protocol:   RecordProtocol,
		Time:       now,
	}
}

type TransitionKind string

const (
	Opened TransitionKind = "opened"
	Closed TransitionKind = "closed"
)

type Transition struct {
	Kind   TransitionKind
	Record Record
}

type Manager struct {
	locks LockStore
	sink  Sink
	log   zerolog.Logger
	now   func() time.Time
}

func NewManager(locks LockStore, sink Sink, log zerolog.Logger) *Manager {
	return &Manager{
		locks: locks,
		sink:  sink,
		log:   log,
		now:   time.Now,
	}
}

// Process runs the lifecycle over the readings of one site, in order, and
// then projects the latest status of every alerting category seen.
// Sink failures are logged and skipped; a lock store failure while loading
// the site aborts the batch. The open set is read from the lock store per
// batch and then tracked in memory for the rest of the batch.
func (m *Manager) Process(ctx context.Context, readings []pipeline.Reading) ([]Transition, error) {
	if len(readings) == 0 {
		return nil, nil
	}
	siteID := readings[0].SiteID

	open, err := m.load(ctx, siteID)
	if err != nil {
		return nil, err
	}

	var transitions []Transition
	latest := map[classify.Category]pipeline.Reading{}

	for _, r := range readings {
		if r.Category == classify.CategoryNormal {
			for _, cat := range classify.Alerting {
				rec, ok := open[cat]
				if !ok {
					continue
				}
				if closed, ok := m.close(ctx, rec, r); ok {
					delete(open, cat)
					transitions = append(transitions, Transition{Kind: Closed, Record: closed})
				}
			}
			continue
		}

		latest[r.Category] = r
		if _, ok := open[r.Category]; ok {
			continue
		}
		if rec, ok := m.openAlert(ctx, r); ok {
			open[r.Category] = rec
			transitions = append(transitions, Transition{Kind: Opened, Record: rec})
		}
	}

	for _, cat := range classify.Alerting {
		r, ok := latest[cat]
		if !ok {
			continue
		}
		_, active := open[cat]
		if err := m.sink.UpsertAlertStatus(ctx, m.status(r, active)); err != nil {
			m.log.Error().Err(err).Str("site_id", siteID).Str("category", string(cat)).Msg("upsert alert status")
		}
	}

	return transitions, nil
}

// load reads the open markers of a site from the lock store.
func (m *Manager) load(ctx context.Context, siteID string) (map[classify.Category]Record, error) {
	open := map[classify.Category]Record{}
	for _, cat := range classify.Alerting {
		payload, found, err := m.locks.Get(ctx, LockKey(siteID, cat))
		if err != nil {
			return nil, fmt.Errorf("load open alerts for %s: %w", siteID, err)
		}
		if !found {
			continue
		}

		var rec Record
		if err := json.Unmarshal(payload, &rec); err != nil {
			m.log.Warn().Err(err).Str("site_id", siteID).Str("category", string(cat)).Msg("discarding unreadable alert marker")
			continue
		}
		open[cat] = rec
	}
	return open, nil
}

func (m *Manager) openAlert(ctx context.Context, r pipeline.Reading) (Record, bool) {
	rec := Record{
		ID:         uuid.NewString(),
		SiteID:     r.SiteID,
		Category:   r.Category,
		Gateway:    r.Gateway,
		HWCode:     r.HWCode,
		OpenTime:   r.Time(),
		StartLevel: r.Total,
		Severity:   r.Severity,
	}
	log := m.log.With().Str("site_id", rec.SiteID).Str("category", string(rec.Category)).Logger()

	// The marker is only written once the event is durable so a failed
	// insert is retried on the next non-normal reading.
	if err := m.sink.InsertAlertEvent(ctx, rec.Event(m.now())); err != nil {
		log.Error().Err(err).Msg("insert alert event")
		return Record{}, false
	}

	payload, err := json.Marshal(rec)
	if err != nil {
		log.Error().Err(err).Msg("encode alert marker")
		return rec, true
	}
	if err := m.locks.Put(ctx, LockKey(rec.SiteID, rec.Category), payload); err != nil {
		log.Error().Err(err).Msg("store alert marker")
	}

	log.Info().Time("open_time", rec.OpenTime).Float64("start_level", rec.StartLevel).Msg("alert opened")
	return rec, true
}

// close keeps the alert open when the event update fails so the next normal
// reading retries it.
func (m *Manager) close(ctx context.Context, rec Record, r pipeline.Reading) (Record, bool) {
	closeTime := r.Time()
	endLevel := r.Total
	rec.CloseTime = &closeTime
	rec.EndLevel = &endLevel

	log := m.log.With().Str("site_id", rec.SiteID).Str("category", string(rec.Category)).Logger()

	if err := m.sink.CloseAlertEvent(ctx, rec.Event(m.now())); err != nil {
		log.Error().Err(err).Msg("close alert event")
		return Record{}, false
	}
	if err := m.locks.Delete(ctx, LockKey(rec.SiteID, rec.Category)); err != nil {
		log.Error().Err(err).Msg("remove alert marker")
	}

	log.Info().Time("close_time", closeTime).Float64("end_level", endLevel).Msg("alert closed")
	return rec, true
}

func (m *Manager) status(r pipeline.Reading, active bool) storage.AlertStatus {
	return storage.AlertStatus{
		SiteID:     r.SiteID,
		Gateway:    r.Gateway,
		HWCode:     r.HWCode,
		Category:   string(r.Category),
		UpdateTime: r.Time(),
		Severity:   string(r.Severity),
		Active:     active,
		Type:       RecordType,
		Protocol:   RecordProtocol,
		Time:       m.now(),
	}
}
