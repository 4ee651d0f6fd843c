package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	// EnvPrefix prefixes every environment override, e.g. N2C_TIMEOUT=30s.
	EnvPrefix = "N2C_"
	// EnvConfigFile names a YAML file to load when no path is given.
	EnvConfigFile = "N2C_CONFIG"
)

// Load builds a Config by layering, from low to high precedence:
//  1. DefaultConfig
//  2. the YAML file at path, or at $N2C_CONFIG when path is empty
//  3. N2C_* environment variables
//
// Durations are strings such as "60s" and formats a comma separated list.
// The result is not validated so callers can apply flag overrides first.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path == "" {
		path = os.Getenv(EnvConfigFile)
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	envProvider := env.Provider(EnvPrefix, ".", func(s string) string {
		if s == EnvConfigFile {
			return ""
		}
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := DefaultConfig()
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Formats = normalizeFormats(cfg.Formats)
	return cfg, nil
}

func normalizeFormats(formats []string) []string {
	var out []string
	for _, f := range formats {
		out = append(out, ParseFormats(f)...)
	}
	return out
}
