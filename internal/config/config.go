package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the application configuration
type Config struct {
	Library LibraryConfig `toml:"library"`
	Scan    ScanConfig    `toml:"scan"`
	Logging LoggingConfig `toml:"logging"`
}

// LibraryConfig describes where the music lives and what counts as music
type LibraryConfig struct {
	Roots            []string `toml:"roots"`
	SupportedFormats []string `toml:"supported_formats"`
	CacheDir         string   `toml:"cache_dir"` // extracted embedded cover art goes here
}

// ScanConfig controls how the library scanner behaves
type ScanConfig struct {
	Workers               int  `toml:"workers"` // 0 means one per CPU
	FileTimeoutSeconds    int  `toml:"file_timeout_seconds"`
	ScanOnStartup         bool `toml:"scan_on_startup"`
	WatchForChanges       bool `toml:"watch_for_changes"`
	RescanIntervalMinutes int  `toml:"rescan_interval_minutes"` // 0 disables interval rescans
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
	File   string `toml:"file"`
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Library: LibraryConfig{
			Roots:            []string{"/media"},
			SupportedFormats: []string{".flac", ".mp3", ".wav", ".m4a", ".ogg"},
			CacheDir:         "./cache/artwork",
		},
		Scan: ScanConfig{
			Workers:               0,
			FileTimeoutSeconds:    10,
			ScanOnStartup:         true,
			WatchForChanges:       true,
			RescanIntervalMinutes: 0,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			File:   "",
		},
	}
}

// LoadConfig loads configuration from a TOML file
func LoadConfig(configPath string) (*Config, error) {
	// Start with defaults
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		// Config file doesn't exist, create it with defaults
		if err := cfg.SaveToFile(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config file: %w", err)
		}
		fmt.Printf("Created default configuration file at: %s\n", configPath)
		return cfg, nil
	}

	// Load from file
	if _, err := toml.DecodeFile(configPath, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// SaveToFile saves the configuration to a TOML file
func (c *Config) SaveToFile(configPath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Create or open file
	file, err := os.Create(configPath)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	// Write header comment
	header := `# Cadenza Music Resolver Configuration
# This file contains all configuration options for the cadenza library
# indexer and query resolver. Edit the values below to customize it.

`
	if _, err := file.WriteString(header); err != nil {
		return fmt.Errorf("failed to write config header: %w", err)
	}

	// Encode configuration to TOML
	encoder := toml.NewEncoder(file)
	if err := encoder.Encode(c); err != nil {
		return fmt.Errorf("failed to encode config to TOML: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate library config
	if len(c.Library.Roots) == 0 {
		return fmt.Errorf("at least one library root must be configured")
	}
	for _, root := range c.Library.Roots {
		if root == "" {
			return fmt.Errorf("library root cannot be an empty string")
		}
	}
	if len(c.Library.SupportedFormats) == 0 {
		return fmt.Errorf("at least one supported audio format must be specified")
	}

	// Validate scan config
	if c.Scan.Workers < 0 {
		return fmt.Errorf("scan workers cannot be negative")
	}
	if c.Scan.FileTimeoutSeconds < 1 {
		return fmt.Errorf("scan file timeout must be at least 1 second")
	}
	if c.Scan.RescanIntervalMinutes < 0 {
		return fmt.Errorf("rescan interval cannot be negative")
	}

	// Validate logging config
	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}

	validLogFormats := map[string]bool{
		"text": true, "json": true,
	}
	if !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("invalid log format: %s (must be text or json)", c.Logging.Format)
	}

	return nil
}

// IsFormatSupported checks if an audio format is supported
func (c *Config) IsFormatSupported(format string) bool {
	for _, supported := range c.Library.SupportedFormats {
		if supported == format {
			return true
		}
	}
	return false
}
