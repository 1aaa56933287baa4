package storage

import (
	"errors"
	"fmt"
	"time"
)

var ErrNotFound = errors.New("not found")

// Tables names the four result tables. Names are validated by the service configs.
type Tables struct {
	Latest      string `yaml:"latest"`
	AlertEvents string `yaml:"alert_events"`
	AlertStatus string `yaml:"alert_status"`
	Daily       string `yaml:"daily"`
}

func DefaultTables() Tables {
	return Tables{
		Latest:      "fuel_latest",
		AlertEvents: "fuel_alert_events",
		AlertStatus: "fuel_alert_status",
		Daily:       "fuel_daily",
	}
}

// WithDefaults fills empty table names.
func (t Tables) WithDefaults() Tables {
	def := DefaultTables()
	if t.Latest == "" {
		t.Latest = def.Latest
	}
	if t.AlertEvents == "" {
		t.AlertEvents = def.AlertEvents
	}
	if t.AlertStatus == "" {
		t.AlertStatus = def.AlertStatus
	}
	if t.Daily == "" {
		t.Daily = def.Daily
	}
	return t
}

// Column sets per sink. The DDL lives in configs/sql/schema.sql; the service
// only checks that the columns exist.
var (
	latestColumns = []string{
		"siteid", "updatetime", "powerstate", "gateway", "hwcode",
		"smoothed_fuellevel1", "smoothed_fuellevel2", "smoothed_fuellevel3",
		"gentotalfuellevel", "cumulative_change", "significant_change", "time",
	}
	alertEventColumns = []string{
		"id", "siteid", "gateway", "hwcode", "displaypoint", "opentime", "closetime",
		"start_fuellevel", "end_fuellevel", "severity", "type", "protocol", "time",
	}
	alertStatusColumns = []string{
		"siteid", "gateway", "hwcode", "displaypoint", "updatetime", "severity",
		"active", "type", "protocol", "time",
	}
	dailyColumns = []string{
		"siteid", "day", "updatetime", "day_start_fuellevel", "day_end_fuellevel",
		"fuel_diff", "cumulative_change", "theft_litre", "refill_litre",
		"consumption_litre", "generator_activity", "time",
	}
)

type tableSchema struct {
	name    string
	columns []string
}

func (t Tables) schemas() []tableSchema {
	return []tableSchema{
		{name: t.Latest, columns: latestColumns},
		{name: t.AlertEvents, columns: alertEventColumns},
		{name: t.AlertStatus, columns: alertStatusColumns},
		{name: t.Daily, columns: dailyColumns},
	}
}

// LatestReading is the most recent smoothed reading of a site.
type LatestReading struct {
	SiteID            string
	UpdateTime        time.Time
	PowerState        string
	Gateway           string
	HWCode            string
	Level1            float64
	Level2            float64
	Level3            float64
	TotalLevel        float64
	CumulativeChange  float64
	SignificantChange bool
	Time              time.Time
}

// AlertEvent is one historical alert. CloseTime and EndLevel stay nil while open.
type AlertEvent struct {
	ID         string
	SiteID     string
	Gateway    string
	HWCode     string
	Category   string
	OpenTime   time.Time
	CloseTime  *time.Time
	StartLevel float64
	EndLevel   *float64
	Severity   string
	Type       string
	Protocol   string
	Time       time.Time
}

// AlertStatus is the latest classification of a (site, category) pair.
type AlertStatus struct {
	SiteID     string
	Gateway    string
	HWCode     string
	Category   string
	UpdateTime time.Time
	Severity   string
	Active     bool
	Type       string
	Protocol   string
	Time       time.Time
}

// DailyAggregate is the consumption summary of one site for one local day.
type DailyAggregate struct {
	SiteID            string
	Day               time.Time
	UpdateTime        time.Time
	DayStartLevel     float64
	DayEndLevel       float64
	FuelDiff          float64
	CumulativeChange  float64
	TheftLitres       float64
	RefillLitres      float64
	ConsumptionLitres float64
	GeneratorActivity bool
	Time              time.Time
}

// SinkWriteError reports a rejected write to one of the result tables.
type SinkWriteError struct {
	Table string
	Op    string
	Err   error
}

func (e *SinkWriteError) Error() string {
	return fmt.Sprintf("sink write %s on %s: %v", e.Op, e.Table, e.Err)
}

func (e *SinkWriteError) Unwrap() error {
	return e.Err
}
