// Package config handles hive configuration from YAML files.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level hive configuration.
type Config struct {
	History           HistoryConfig `yaml:"history"`
	Sync              SyncConfig    `yaml:"sync"`
	Server            ServerConfig  `yaml:"server"`
	Browser           BrowserConfig `yaml:"browser"`
	Storage           StorageConfig `yaml:"storage"`
	Log               LogConfig     `yaml:"log"`
	SanitizeFragments bool          `yaml:"sanitize_fragments"`
}

// HistoryConfig bounds the undo history.
type HistoryConfig struct {
	Capacity int `yaml:"capacity"`
}

// SyncConfig controls snapshot syncing.
type SyncConfig struct {
	Window time.Duration `yaml:"window"`
}

// ServerConfig controls the HTTP API.
type ServerConfig struct {
	Addr    string `yaml:"addr"`
	MCP     bool   `yaml:"mcp"`      // serve MCP over HTTP at /mcp
	MaxBody int64  `yaml:"max_body"` // request body limit in bytes
}

// BrowserConfig controls the preview browser.
type BrowserConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Remote          string        `yaml:"remote"`
	Headful         bool          `yaml:"headful"`
	Stealth         bool          `yaml:"stealth"`
	Viewport        string        `yaml:"viewport"` // desktop | tablet | mobile
	BlockResources  []string      `yaml:"block_resources"` // images | fonts | media | stylesheets | scripts
	MemoryLimit     int64         `yaml:"memory_limit"`
	RecycleInterval time.Duration `yaml:"recycle_interval"`
}

// StorageConfig locates files written by the editor.
type StorageConfig struct {
	DownloadDir      string        `yaml:"download_dir"`
	TemplatesDB      string        `yaml:"templates_db"` // empty = built-in templates only
	TemplateCacheTTL time.Duration `yaml:"template_cache_ttl"`
}

// LogConfig controls logging. An empty File logs to stderr.
type LogConfig struct {
	Level      string `yaml:"level"` // debug | info | warn | error
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// Default returns the configuration used without a file.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

// LoadFile reads a YAML configuration file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes YAML configuration and applies defaults.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.History.Capacity <= 0 {
		c.History.Capacity = 20
	}
	if c.Sync.Window <= 0 {
		c.Sync.Window = 500 * time.Millisecond
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8420"
	}
	if c.Server.MaxBody <= 0 {
		c.Server.MaxBody = 8 << 20
	}
	if c.Browser.Viewport == "" {
		c.Browser.Viewport = "desktop"
	}
	if c.Browser.MemoryLimit <= 0 {
		c.Browser.MemoryLimit = 1 << 30
	}
	if c.Browser.RecycleInterval <= 0 {
		c.Browser.RecycleInterval = 4 * time.Hour
	}
	if c.Storage.DownloadDir == "" {
		c.Storage.DownloadDir = os.TempDir()
	}
	if c.Storage.TemplateCacheTTL <= 0 {
		c.Storage.TemplateCacheTTL = 5 * time.Minute
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.MaxSizeMB <= 0 {
		c.Log.MaxSizeMB = 50
	}
	if c.Log.MaxBackups <= 0 {
		c.Log.MaxBackups = 3
	}
	if c.Log.MaxAgeDays <= 0 {
		c.Log.MaxAgeDays = 28
	}
}
