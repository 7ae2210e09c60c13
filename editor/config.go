package editor

import "github.com/hazyhaar/hive/editor/internal/config"

// Config is the editor configuration. See LoadConfig for the file format.
type Config = config.Config

// DefaultConfig returns the configuration used without a file.
func DefaultConfig() *Config { return config.Default() }

// LoadConfig reads a YAML configuration file and applies defaults.
func LoadConfig(path string) (*Config, error) { return config.LoadFile(path) }

// ParseConfig decodes YAML configuration and applies defaults.
func ParseConfig(data []byte) (*Config, error) { return config.Parse(data) }
