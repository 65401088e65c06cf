package config

import (
	"os"
	"strings"
)

// loadFromEnvWithSources overrides config from environment variables and
// updates source tracking. Values that do not parse are ignored.
func loadFromEnvWithSources(cfg *Config, sources map[string]ConfigSource) {
	for _, f := range fields {
		for _, name := range f.env {
			v := os.Getenv(name)
			if v == "" {
				continue
			}
			if err := setString(f.ptr(cfg), v); err != nil {
				continue
			}
			sources[f.key] = SourceEnv
			break
		}
	}
}

// boolFromString parses a boolean from a string.
func boolFromString(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "1" || s == "true" || s == "yes" || s == "on"
}
