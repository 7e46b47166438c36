package config

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Cache    CacheConfig    `yaml:"cache"`
	PVR      PVRConfig      `yaml:"pvr"`
	Verify   VerifyConfig   `yaml:"verify"`
}

type ServerConfig struct {
	HTTPPort    int `yaml:"http_port"`
	MetricsPort int `yaml:"metrics_port"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type CacheConfig struct {
	Path string `yaml:"path"`
}

type PVRConfig struct {
	BaseURL string `yaml:"base_url"`
	PIN     string `yaml:"pin"`
	Timeout int    `yaml:"timeout"` // seconds
}

type VerifyConfig struct {
	Concurrency      int     `yaml:"concurrency"`
	FetchTimeout     int     `yaml:"fetch_timeout"`      // seconds
	PassInterval     int     `yaml:"pass_interval"`      // seconds, 0 disables the background runner
	MinProbeSize     int64   `yaml:"min_probe_size"`     // bytes, smaller files are skipped
	MismatchRatio    float64 `yaml:"mismatch_ratio"`     // detected/expected below this is a mismatch
	CompleteFileRate int64   `yaml:"complete_file_rate"` // bytes/sec, above this a mismatch still looks complete
}

// DefaultConfig returns configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort:    4545,
			MetricsPort: 9145,
		},
		Database: DatabaseConfig{
			Path: "./data/hoarderwatch.db",
		},
		Cache: CacheConfig{
			Path: "./data/durations",
		},
		PVR: PVRConfig{
			BaseURL: "http://localhost:8866",
			Timeout: 30,
		},
		Verify: VerifyConfig{
			Concurrency:      4,
			FetchTimeout:     45,
			PassInterval:     900,
			MinProbeSize:     4 * 1024 * 1024,
			MismatchRatio:    0.9,
			CompleteFileRate: 200_000,
		},
	}
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil // Use defaults if no config file
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// EnsureDirectories creates required directories
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		filepath.Dir(c.Database.Path),
		c.Cache.Path,
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	return nil
}

// FetchTimeoutDuration returns the per-fetch timeout as a duration.
func (c *VerifyConfig) FetchTimeoutDuration() time.Duration {
	return time.Duration(c.FetchTimeout) * time.Second
}

// PassIntervalDuration returns the background pass interval as a duration.
func (c *VerifyConfig) PassIntervalDuration() time.Duration {
	return time.Duration(c.PassInterval) * time.Second
}
