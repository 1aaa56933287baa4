package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// Storage provides database operations for FuelGuard
type Storage struct {
	db     *sql.DB
	tables Tables
}

// New creates a new Storage instance
func New(dsn string, tables Tables) (*Storage, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Storage{db: db, tables: tables.WithDefaults()}, nil
}

// Close closes the database connection
func (s *Storage) Close() error {
	return s.db.Close()
}

// Ping checks the database connection with a short deadline.
func (s *Storage) Ping() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return s.db.PingContext(ctx)
}

// ValidateSchema checks that every result table exists with the declared columns.
func (s *Storage) ValidateSchema(ctx context.Context) error {
	var errs []error

	for _, table := range s.tables.schemas() {
		present, err := s.columns(ctx, table.name)
		if err != nil {
			return fmt.Errorf("inspect %s: %w", table.name, err)
		}
		if len(present) == 0 {
			errs = append(errs, fmt.Errorf("table %s does not exist", table.name))
			continue
		}
		for _, col := range table.columns {
			if _, ok := present[col]; !ok {
				errs = append(errs, fmt.Errorf("table %s is missing column %s", table.name, col))
			}
		}
	}

	return errors.Join(errs...)
}

func (s *Storage) columns(ctx context.Context, table string) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT column_name
		FROM information_schema.columns
		WHERE table_schema = current_schema() AND table_name = $1
	`, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols := map[string]struct{}{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		cols[name] = struct{}{}
	}
	return cols, rows.Err()
}

// UpsertLatestReading replaces the latest reading of a site
func (s *Storage) UpsertLatestReading(ctx context.Context, r LatestReading) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (siteid, updatetime, powerstate, gateway, hwcode,
			smoothed_fuellevel1, smoothed_fuellevel2, smoothed_fuellevel3,
			gentotalfuellevel, cumulative_change, significant_change, time)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (siteid) DO UPDATE
		SET updatetime = EXCLUDED.updatetime,
		    powerstate = EXCLUDED.powerstate,
		    gateway = EXCLUDED.gateway,
		    hwcode = EXCLUDED.hwcode,
		    smoothed_fuellevel1 = EXCLUDED.smoothed_fuellevel1,
		    smoothed_fuellevel2 = EXCLUDED.smoothed_fuellevel2,
		    smoothed_fuellevel3 = EXCLUDED.smoothed_fuellevel3,
		    gentotalfuellevel = EXCLUDED.gentotalfuellevel,
		    cumulative_change = EXCLUDED.cumulative_change,
		    significant_change = EXCLUDED.significant_change,
		    time = EXCLUDED.time
	`, pq.QuoteIdentifier(s.tables.Latest))

	_, err := s.db.ExecContext(ctx, query, r.SiteID, r.UpdateTime, r.PowerState, r.Gateway, r.HWCode,
		r.Level1, r.Level2, r.Level3, r.TotalLevel, r.CumulativeChange, r.SignificantChange, r.Time)
	return s.wrap(s.tables.Latest, "upsert", err)
}

// InsertAlertEvent appends an open alert. Replays of the same (site, category, open time) are ignored.
func (s *Storage) InsertAlertEvent(ctx context.Context, e AlertEvent) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (id, siteid, gateway, hwcode, displaypoint, opentime, closetime,
			start_fuellevel, end_fuellevel, severity, type, protocol, time)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (siteid, displaypoint, opentime) DO NOTHING
	`, pq.QuoteIdentifier(s.tables.AlertEvents))

	_, err := s.db.ExecContext(ctx, query, e.ID, e.SiteID, e.Gateway, e.HWCode, e.Category, e.OpenTime,
		nullTime(e.CloseTime), e.StartLevel, nullFloat(e.EndLevel), e.Severity, e.Type, e.Protocol, e.Time)
	return s.wrap(s.tables.AlertEvents, "insert", err)
}

// CloseAlertEvent sets close time and end level on the event keyed by (site, category, open time)
func (s *Storage) CloseAlertEvent(ctx context.Context, e AlertEvent) error {
	query := fmt.Sprintf(`
		UPDATE %s SET closetime = $1, end_fuellevel = $2, time = $3
		WHERE siteid = $4 AND displaypoint = $5 AND opentime = $6
	`, pq.QuoteIdentifier(s.tables.AlertEvents))

	res, err := s.db.ExecContext(ctx, query, nullTime(e.CloseTime), nullFloat(e.EndLevel), e.Time,
		e.SiteID, e.Category, e.OpenTime)
	if err != nil {
		return s.wrap(s.tables.AlertEvents, "close", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return s.wrap(s.tables.AlertEvents, "close", ErrNotFound)
	}
	return nil
}

// UpsertAlertStatus records the latest classification of a (site, category) pair
func (s *Storage) UpsertAlertStatus(ctx context.Context, st AlertStatus) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (siteid, gateway, hwcode, displaypoint, updatetime, severity, active, type, protocol, time)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (siteid, displaypoint) DO UPDATE
		SET gateway = EXCLUDED.gateway,
		    hwcode = EXCLUDED.hwcode,
		    updatetime = EXCLUDED.updatetime,
		    severity = EXCLUDED.severity,
		    active = EXCLUDED.active,
		    type = EXCLUDED.type,
		    protocol = EXCLUDED.protocol,
		    time = EXCLUDED.time
	`, pq.QuoteIdentifier(s.tables.AlertStatus))

	_, err := s.db.ExecContext(ctx, query, st.SiteID, st.Gateway, st.HWCode, st.Category, st.UpdateTime,
		st.Severity, st.Active, st.Type, st.Protocol, st.Time)
	return s.wrap(s.tables.AlertStatus, "upsert", err)
}

// UpsertDailyAggregate stores the summary of one (site, day)
func (s *Storage) UpsertDailyAggregate(ctx context.Context, d DailyAggregate) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (siteid, day, updatetime, day_start_fuellevel, day_end_fuellevel,
			fuel_diff, cumulative_change, theft_litre, refill_litre, consumption_litre,
			generator_activity, time)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (siteid, day) DO UPDATE
		SET updatetime = EXCLUDED.updatetime,
		    day_start_fuellevel = EXCLUDED.day_start_fuellevel,
		    day_end_fuellevel = EXCLUDED.day_end_fuellevel,
		    fuel_diff = EXCLUDED.fuel_diff,
		    cumulative_change = EXCLUDED.cumulative_change,
		    theft_litre = EXCLUDED.theft_litre,
		    refill_litre = EXCLUDED.refill_litre,
		    consumption_litre = EXCLUDED.consumption_litre,
		    generator_activity = EXCLUDED.generator_activity,
		    time = EXCLUDED.time
	`, pq.QuoteIdentifier(s.tables.Daily))

	_, err := s.db.ExecContext(ctx, query, d.SiteID, d.Day, d.UpdateTime, d.DayStartLevel, d.DayEndLevel,
		d.FuelDiff, d.CumulativeChange, d.TheftLitres, d.RefillLitres, d.ConsumptionLitres,
		d.GeneratorActivity, d.Time)
	return s.wrap(s.tables.Daily, "upsert", err)
}

// GetLatestReading returns the latest reading of a site
func (s *Storage) GetLatestReading(ctx context.Context, siteID string) (LatestReading, error) {
	query := fmt.Sprintf(`
		SELECT siteid, updatetime, powerstate, gateway, hwcode,
			smoothed_fuellevel1, smoothed_fuellevel2, smoothed_fuellevel3,
			gentotalfuellevel, cumulative_change, significant_change, time
		FROM %s
		WHERE siteid = $1
	`, pq.QuoteIdentifier(s.tables.Latest))

	var r LatestReading
	err := s.db.QueryRowContext(ctx, query, siteID).Scan(
		&r.SiteID, &r.UpdateTime, &r.PowerState, &r.Gateway, &r.HWCode,
		&r.Level1, &r.Level2, &r.Level3, &r.TotalLevel, &r.CumulativeChange, &r.SignificantChange, &r.Time,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return LatestReading{}, ErrNotFound
	}
	return r, err
}

// ListAlertEvents returns the alert history of a site, newest first
func (s *Storage) ListAlertEvents(ctx context.Context, siteID string, openOnly bool) ([]AlertEvent, error) {
	query := fmt.Sprintf(`
		SELECT id, siteid, gateway, hwcode, displaypoint, opentime, closetime,
			start_fuellevel, end_fuellevel, severity, type, protocol, time
		FROM %s
		WHERE siteid = $1 AND ($2 = false OR closetime IS NULL)
		ORDER BY opentime DESC
	`, pq.QuoteIdentifier(s.tables.AlertEvents))

	rows, err := s.db.QueryContext(ctx, query, siteID, openOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []AlertEvent
	for rows.Next() {
		var e AlertEvent
		var closeTime sql.NullTime
		var endLevel sql.NullFloat64
		if err := rows.Scan(&e.ID, &e.SiteID, &e.Gateway, &e.HWCode, &e.Category, &e.OpenTime, &closeTime,
			&e.StartLevel, &endLevel, &e.Severity, &e.Type, &e.Protocol, &e.Time); err != nil {
			return nil, err
		}
		if closeTime.Valid {
			e.CloseTime = &closeTime.Time
		}
		if endLevel.Valid {
			e.EndLevel = &endLevel.Float64
		}
		events = append(events, e)
	}

	return events, rows.Err()
}

// ListAlertStatus returns the current status rows of a site
func (s *Storage) ListAlertStatus(ctx context.Context, siteID string) ([]AlertStatus, error) {
	query := fmt.Sprintf(`
		SELECT siteid, gateway, hwcode, displaypoint, updatetime, severity, active, type, protocol, time
		FROM %s
		WHERE siteid = $1
		ORDER BY displaypoint
	`, pq.QuoteIdentifier(s.tables.AlertStatus))

	rows, err := s.db.QueryContext(ctx, query, siteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var statuses []AlertStatus
	for rows.Next() {
		var st AlertStatus
		if err := rows.Scan(&st.SiteID, &st.Gateway, &st.HWCode, &st.Category, &st.UpdateTime,
			&st.Severity, &st.Active, &st.Type, &st.Protocol, &st.Time); err != nil {
			return nil, err
		}
		statuses = append(statuses, st)
	}

	return statuses, rows.Err()
}

// ListDailyAggregates returns daily rows of a site within an optional day range
func (s *Storage) ListDailyAggregates(ctx context.Context, siteID string, from, to *time.Time) ([]DailyAggregate, error) {
	query := fmt.Sprintf(`
		SELECT siteid, day, updatetime, day_start_fuellevel, day_end_fuellevel,
			fuel_diff, cumulative_change, theft_litre, refill_litre, consumption_litre,
			generator_activity, time
		FROM %s
		WHERE siteid = $1
		  AND ($2::timestamptz IS NULL OR day >= $2)
		  AND ($3::timestamptz IS NULL OR day <= $3)
		ORDER BY day ASC
	`, pq.QuoteIdentifier(s.tables.Daily))

	rows, err := s.db.QueryContext(ctx, query, siteID, nullTime(from), nullTime(to))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var days []DailyAggregate
	for rows.Next() {
		var d DailyAggregate
		if err := rows.Scan(&d.SiteID, &d.Day, &d.UpdateTime, &d.DayStartLevel, &d.DayEndLevel,
			&d.FuelDiff, &d.CumulativeChange, &d.TheftLitres, &d.RefillLitres, &d.ConsumptionLitres,
			&d.GeneratorActivity, &d.Time); err != nil {
			return nil, err
		}
		days = append(days, d)
	}

	return days, rows.Err()
}

func (s *Storage) wrap(table, op string, err error) error {
	if err == nil {
		return nil
	}
	return &SinkWriteError{Table: table, Op: op, Err: err}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}
