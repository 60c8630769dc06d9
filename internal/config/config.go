package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Indexer  IndexerConfig  `yaml:"indexer"`
	Metadata MetadataConfig `yaml:"metadata"`
	Schedule ScheduleConfig `yaml:"schedule"`
	Server   ServerConfig   `yaml:"server"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// DatabaseConfig configures SQLite storage.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// IndexerConfig configures fact-file ingestion.
type IndexerConfig struct {
	DataDir       string `yaml:"data_dir"`
	BatchSize     int    `yaml:"batch_size"`
	HomePageLimit int    `yaml:"home_page_limit"`
}

// MetadataConfig configures the external metadata feeds.
type MetadataConfig struct {
	CatalogURL string `yaml:"catalog_url"`
	TitlesURL  string `yaml:"titles_url"`
	Timeout    string `yaml:"timeout"`
}

// ParseTimeout returns the feed fetch timeout as time.Duration.
func (m MetadataConfig) ParseTimeout() time.Duration {
	d, err := time.ParseDuration(m.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// ScheduleConfig configures the indexing interval.
type ScheduleConfig struct {
	IndexInterval string `yaml:"index_interval"`
}

// ParseIndexInterval returns the indexing interval as time.Duration.
func (s ScheduleConfig) ParseIndexInterval() time.Duration {
	d, err := time.ParseDuration(s.IndexInterval)
	if err != nil {
		return 6 * time.Hour
	}
	return d
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port     int    `yaml:"port"`
	CacheTTL string `yaml:"cache_ttl"`
}

// ParseCacheTTL returns the read-path cache TTL as time.Duration.
func (s ServerConfig) ParseCacheTTL() time.Duration {
	d, err := time.ParseDuration(s.CacheTTL)
	if err != nil {
		return 5 * time.Minute
	}
	return d
}

// LoggingConfig configures zerolog output.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	Console bool   `yaml:"console"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{Path: "./dlstats.db"},
		Indexer: IndexerConfig{
			DataDir:       "./data",
			BatchSize:     1000,
			HomePageLimit: 12,
		},
		Metadata: MetadataConfig{
			CatalogURL: "https://raw.githubusercontent.com/ghost-land/NX-Missing/refs/heads/main/data/working.json",
			TitlesURL:  "https://raw.githubusercontent.com/ghost-land/NX-Missing/refs/heads/main/data/titles_db.txt",
			Timeout:    "30s",
		},
		Schedule: ScheduleConfig{IndexInterval: "6h"},
		Server: ServerConfig{
			Port:     8080,
			CacheTTL: "5m",
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load reads configuration from a YAML file and applies env var overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// applyEnvOverrides overrides config values with environment variables.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DLSTATS_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("DLSTATS_DATA_DIR"); v != "" {
		cfg.Indexer.DataDir = v
	}
	if v := os.Getenv("DLSTATS_CATALOG_URL"); v != "" {
		cfg.Metadata.CatalogURL = v
	}
	if v := os.Getenv("DLSTATS_TITLES_URL"); v != "" {
		cfg.Metadata.TitlesURL = v
	}
	if v := os.Getenv("DLSTATS_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}
