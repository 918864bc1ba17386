// Package config loads the YAML configuration shared by the aggregator and
// reconciler binaries.
package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds every setting the reporting binaries read.
type Config struct {
	MetricsPort  int      `yaml:"METRICS_PORT"`
	DBHost       string   `yaml:"DB_HOST"`
	DBPort       int      `yaml:"DB_PORT"`
	DBUser       string   `yaml:"DB_USER"`
	DBPassword   string   `yaml:"DB_PASSWORD"`
	DBName       string   `yaml:"DB_NAME"`
	DBSSLMode    string   `yaml:"DB_SSLMODE"`
	KafkaBrokers []string `yaml:"KAFKA_BROKERS"`
	Topic        string   `yaml:"TOPIC"`
	GroupID      string   `yaml:"GROUP_ID"`
	LookbackDays int      `yaml:"LOOKBACK_DAYS"`
	MaxRetries   uint64   `yaml:"MAX_RETRIES"`
}

// Load reads and parses the configuration file at path.
// TODO: some settings to env
func Load(path string) (*Config, error) {
	file, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := Config{
		MetricsPort:  9102,
		Topic:        "report-snapshots",
		GroupID:      "report-aggregator",
		LookbackDays: 365,
		MaxRetries:   5,
	}
	if err := yaml.Unmarshal(file, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
