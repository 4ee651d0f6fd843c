package config

import (
	"fmt"
	"net/url"
	"runtime"
	"strings"
	"time"
)

// Supported report formats.
const (
	FormatXLSX = "xlsx"
	FormatCSV  = "csv"
	FormatJSON = "json"
)

// Config holds health-check configuration.
type Config struct {
	Roster          string        `koanf:"roster"`
	OutputDir       string        `koanf:"output_dir"`
	Formats         []string      `koanf:"formats"`
	Timeout         time.Duration `koanf:"timeout"` // 0 waits indefinitely
	SlowThreshold   time.Duration `koanf:"slow_threshold"`
	Workers         int           `koanf:"workers"`
	CacheSize       int           `koanf:"cache_size"` // 0 disables the result cache
	UserAgent       string        `koanf:"user_agent"`
	MaxRosterAge    time.Duration `koanf:"max_roster_age"`
	ContinueOnError bool          `koanf:"continue_on_error"`
	RunTimeout      time.Duration `koanf:"run_timeout"`
	UploadURL       string        `koanf:"upload_url"`
	UploadToken     string        `koanf:"upload_token"`
	MetricsAddr     string        `koanf:"metrics_addr"`
	Verbose         bool          `koanf:"verbose"`
}

// DefaultConfig returns the defaults used by the weekly run.
func DefaultConfig() *Config {
	return &Config{
		Roster:          "roster",
		OutputDir:       "output",
		Formats:         []string{FormatXLSX, FormatJSON},
		Timeout:         60 * time.Second,
		SlowThreshold:   10 * time.Second,
		Workers:         2 * runtime.NumCPU(),
		CacheSize:       1024,
		UserAgent:       "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/117.0.0.0 Safari/537.36",
		MaxRosterAge:    5 * 24 * time.Hour,
		ContinueOnError: true,
		RunTimeout:      0,
		Verbose:         false,
	}
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.Roster == "" {
		return fmt.Errorf("roster path cannot be empty")
	}
	if c.OutputDir == "" {
		return fmt.Errorf("output dir cannot be empty")
	}
	if len(c.Formats) == 0 {
		return fmt.Errorf("formats cannot be empty")
	}
	for _, format := range c.Formats {
		switch format {
		case FormatXLSX, FormatCSV, FormatJSON:
		default:
			return fmt.Errorf("formats: unsupported format %q (want xlsx, csv or json)", format)
		}
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout cannot be negative")
	}
	if c.SlowThreshold <= 0 {
		return fmt.Errorf("slow threshold must be positive")
	}
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive")
	}
	if c.CacheSize < 0 {
		return fmt.Errorf("cache size cannot be negative")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}
	if c.MaxRosterAge < 0 {
		return fmt.Errorf("max roster age cannot be negative")
	}
	if c.RunTimeout < 0 {
		return fmt.Errorf("run timeout cannot be negative")
	}
	if c.UploadURL != "" {
		parsed, err := url.Parse(c.UploadURL)
		if err != nil {
			return fmt.Errorf("invalid upload URL: %w", err)
		}
		if parsed.Host == "" {
			return fmt.Errorf("upload URL must include a host")
		}
		if !c.HasFormat(FormatJSON) {
			return fmt.Errorf("upload URL requires the json format")
		}
	}

	return nil
}

// HasFormat reports whether format is enabled.
func (c *Config) HasFormat(format string) bool {
	for _, f := range c.Formats {
		if f == format {
			return true
		}
	}
	return false
}

// ParseFormats splits a comma separated format list, lowercasing entries and
// dropping blanks.
func ParseFormats(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
