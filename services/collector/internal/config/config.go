package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/fuelguard/fuelguard/pkg/logger"
	"github.com/fuelguard/fuelguard/pkg/telemetry"
)

type ServiceConfig struct {
	Name     string `yaml:"name"`
	HTTPAddr string `yaml:"http_addr"`
}

type NATSConfig struct {
	URL            string `yaml:"url"`
	SubjectReports string `yaml:"subject_reports"`
	SubjectBatches string `yaml:"subject_batches"`
}

type BufferConfig struct {
	Capacity            int    `yaml:"capacity"`
	PowerSourceHardware string `yaml:"power_source_hardware"`
	FuelHardware        string `yaml:"fuel_hardware"`
}

type Config struct {
	ConfigVersion int           `yaml:"config_version"`
	Service       ServiceConfig `yaml:"service"`
	Logging       logger.Config `yaml:"logging"`
	NATS          NATSConfig    `yaml:"nats"`
	Buffer        BufferConfig  `yaml:"buffer"`
	Workers       int           `yaml:"workers"`
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
	if cfg.Buffer.Capacity < 0 {
		return nil, fmt.Errorf("buffer.capacity must be positive")
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Service.Name == "" {
		c.Service.Name = "collector"
	}
	if c.NATS.URL == "" {
		c.NATS.URL = "nats://localhost:4222"
	}
	if c.NATS.SubjectReports == "" {
		c.NATS.SubjectReports = "channels.>"
	}
	if c.NATS.SubjectBatches == "" {
		c.NATS.SubjectBatches = "fuel.batches"
	}
	if c.Buffer.Capacity == 0 {
		c.Buffer.Capacity = 96
	}
	if c.Buffer.PowerSourceHardware == "" {
		c.Buffer.PowerSourceHardware = telemetry.DefaultPowerSourceHardware
	}
	if c.Buffer.FuelHardware == "" {
		c.Buffer.FuelHardware = telemetry.DefaultFuelHardware
	}
	if c.Workers <= 0 {
		c.Workers = 4
	}
}
