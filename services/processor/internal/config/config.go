package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/fuelguard/fuelguard/pkg/logger"
	"github.com/fuelguard/fuelguard/pkg/storage"
)

type ServiceConfig struct {
	Name     string `yaml:"name"`
	HTTPAddr string `yaml:"http_addr"`
}

type NATSConfig struct {
	URL            string `yaml:"url"`
	SubjectBatches string `yaml:"subject_batches"`
	QueueGroup     string `yaml:"queue_group"`
}

type ThresholdsConfig struct {
	Refill      float64 `yaml:"refill"`
	Theft       float64 `yaml:"theft"`
	LitreChange float64 `yaml:"litre_change"`
}

type SmoothingConfig struct {
	Window int `yaml:"window"`
}

type ClassificationConfig struct {
	GeneratorPowerStates []string `yaml:"generator_power_states"`
	MinLevel             *float64 `yaml:"min_level"`
	MaxLevel             *float64 `yaml:"max_level"`
}

type OutlierConfig struct {
	Method    string  `yaml:"method"`
	Threshold float64 `yaml:"threshold"`
}

type DailyConfig struct {
	// UTCOffset is the fixed offset of site local time, e.g. "+08:00".
	UTCOffset string        `yaml:"utc_offset"`
	Offset    time.Duration `yaml:"-"`
	// Grace is how long a written day still accepts late samples.
	Grace     time.Duration `yaml:"grace"`
}

type LockStoreConfig struct {
	Kind   string        `yaml:"kind"`
	Bucket string        `yaml:"bucket"`
	TTL    time.Duration `yaml:"ttl"`
}

type StorageConfig struct {
	PostgresDSN  string         `yaml:"postgres_dsn"`
	WriteResults bool           `yaml:"write_results"`
	Tables       storage.Tables `yaml:"tables"`
}

type Config struct {
	ConfigVersion  int                  `yaml:"config_version"`
	Service        ServiceConfig        `yaml:"service"`
	Logging        logger.Config        `yaml:"logging"`
	NATS           NATSConfig           `yaml:"nats"`
	Thresholds     ThresholdsConfig     `yaml:"thresholds"`
	Smoothing      SmoothingConfig      `yaml:"smoothing"`
	Classification ClassificationConfig `yaml:"classification"`
	Outlier        OutlierConfig        `yaml:"outlier"`
	Daily          DailyConfig          `yaml:"daily"`
	LockStore      LockStoreConfig      `yaml:"lock_store"`
	Storage        StorageConfig        `yaml:"storage"`
	Workers        int                  `yaml:"workers"`
}

var tableName = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if cfg.Service.HTTPAddr == "" {
		return nil, fmt.Errorf("service.http_addr is required")
	}
	if cfg.Thresholds.Refill <= 0 || cfg.Thresholds.Theft <= 0 {
		return nil, fmt.Errorf("thresholds.refill and thresholds.theft must be positive")
	}
	if cfg.Thresholds.LitreChange < 0 {
		return nil, fmt.Errorf("thresholds.litre_change must not be negative")
	}
	if cfg.Storage.WriteResults && cfg.Storage.PostgresDSN == "" {
		return nil, fmt.Errorf("storage.postgres_dsn is required when write_results is enabled")
	}

	cfg.applyDefaults()

	offset, err := storage.ParseUTCOffset(cfg.Daily.UTCOffset)
	if err != nil {
		return nil, fmt.Errorf("daily.utc_offset: %w", err)
	}
	cfg.Daily.Offset = offset

	if cfg.LockStore.Kind != "memory" && cfg.LockStore.Kind != "nats" {
		return nil, fmt.Errorf("lock_store.kind must be memory or nats, got %q", cfg.LockStore.Kind)
	}
	if *cfg.Classification.MinLevel >= *cfg.Classification.MaxLevel {
		return nil, fmt.Errorf("classification.min_level must be below max_level")
	}
	for _, name := range []string{cfg.Storage.Tables.Latest, cfg.Storage.Tables.AlertEvents, cfg.Storage.Tables.AlertStatus, cfg.Storage.Tables.Daily} {
		if !tableName.MatchString(name) {
			return nil, fmt.Errorf("invalid table name %q", name)
		}
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Service.Name == "" {
		c.Service.Name = "processor"
	}
	if c.NATS.URL == "" {
		c.NATS.URL = "nats://localhost:4222"
	}
	if c.NATS.SubjectBatches == "" {
		c.NATS.SubjectBatches = "fuel.batches"
	}
	if c.NATS.QueueGroup == "" {
		c.NATS.QueueGroup = "fuel-processor"
	}
	if c.Smoothing.Window <= 0 {
		c.Smoothing.Window = 40
	}
	if c.Classification.MinLevel == nil {
		v := 0.0
		c.Classification.MinLevel = &v
	}
	if c.Classification.MaxLevel == nil {
		v := 3000.0
		c.Classification.MaxLevel = &v
	}
	if c.Outlier.Method == "" {
		c.Outlier.Method = "mad"
	}
	if c.Outlier.Threshold <= 0 {
		c.Outlier.Threshold = 3.5
	}
	if c.Daily.UTCOffset == "" {
		c.Daily.UTCOffset = "+00:00"
	}
	if c.Daily.Grace <= 0 {
		c.Daily.Grace = 48 * time.Hour
	}
	if c.LockStore.Kind == "" {
		c.LockStore.Kind = "nats"
	}
	if c.LockStore.Bucket == "" {
		c.LockStore.Bucket = "fuel_alerts"
	}
	c.Storage.Tables = c.Storage.Tables.WithDefaults()
	if c.Workers <= 0 {
		c.Workers = 4
	}
}
