package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/fuelguard/fuelguard/pkg/logger"
	"github.com/fuelguard/fuelguard/pkg/storage"
)

type ServiceConfig struct {
	Name     string `yaml:"name"`
	HTTPAddr string `yaml:"http_addr"`
}

type StorageConfig struct {
	PostgresDSN string         `yaml:"postgres_dsn"`
	Tables      storage.Tables `yaml:"tables"`
}

type DailyConfig struct {
	UTCOffset string        `yaml:"utc_offset"`
	Offset    time.Duration `yaml:"-"`
}

type Config struct {
	ConfigVersion int           `yaml:"config_version"`
	Service       ServiceConfig `yaml:"service"`
	Logging       logger.Config `yaml:"logging"`
	Storage       StorageConfig `yaml:"storage"`
	Daily         DailyConfig   `yaml:"daily"`
	Timeout       time.Duration `yaml:"-"`
}

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
	if cfg.Storage.PostgresDSN == "" {
		return nil, fmt.Errorf("storage.postgres_dsn is required")
	}

	if cfg.Service.Name == "" {
		cfg.Service.Name = "api_gateway"
	}
	if cfg.Daily.UTCOffset == "" {
		cfg.Daily.UTCOffset = "+00:00"
	}
	offset, err := storage.ParseUTCOffset(cfg.Daily.UTCOffset)
	if err != nil {
		return nil, fmt.Errorf("daily.utc_offset: %w", err)
	}
	cfg.Daily.Offset = offset

	cfg.Storage.Tables = cfg.Storage.Tables.WithDefaults()
	cfg.Timeout = 10 * time.Second

	return &cfg, nil
}
