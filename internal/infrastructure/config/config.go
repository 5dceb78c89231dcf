// Package config loads controller configuration: built-in defaults, an
// optional YAML file overlay, then environment variables. Environment wins.
package config

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all controller configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Browser   BrowserConfig   `yaml:"browser"`
	Store     StoreConfig     `yaml:"store"`
	Logging   LogConfig       `yaml:"logging"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// ServerConfig holds HTTP API server configuration.
type ServerConfig struct {
	Port string `yaml:"port" envconfig:"PORT"`
	Host string `yaml:"host" envconfig:"HOST"`
}

// BrowserConfig holds DevTools endpoint configuration.
type BrowserConfig struct {
	// DevToolsURL is the browser's remote debugging HTTP endpoint.
	DevToolsURL string `yaml:"devtools_url" envconfig:"DEVTOOLS_URL"`
}

// StoreConfig holds persistence configuration.
type StoreConfig struct {
	// Path is the SQLite database file; empty selects an in-memory store.
	Path string `yaml:"path" envconfig:"PATH"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `yaml:"level" envconfig:"LEVEL"`
	Development bool   `yaml:"development" envconfig:"DEVELOPMENT"`
}

// RateLimitConfig holds API rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `yaml:"requests_per_second" envconfig:"RPS"`
	Burst             int  `yaml:"burst" envconfig:"BURST"`
	Enabled           bool `yaml:"enabled" envconfig:"ENABLED"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server:    ServerConfig{Port: "8090", Host: "127.0.0.1"},
		Browser:   BrowserConfig{DevToolsURL: "http://127.0.0.1:9222"},
		Store:     StoreConfig{Path: "sessionvault.db"},
		Logging:   LogConfig{Level: "info", Development: false},
		RateLimit: RateLimitConfig{RequestsPerSecond: 50, Burst: 100, Enabled: true},
	}
}

// Load starts from Default, overlays the YAML file at path (skipped when
// path is empty or the file does not exist), then applies SESSIONVAULT_*
// environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// No file is fine; defaults and env cover everything.
		case err != nil:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	if err := envconfig.Process("SESSIONVAULT", cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}
