package config

import (
	"fmt"
	"slices"
	"time"
)

// Validate checks that the selected backends have what they need.
func (c *Config) Validate() error {
	if !slices.Contains(Stores, c.Store) {
		return fmt.Errorf("invalid store %q, must be one of: %v", c.Store, Stores)
	}
	switch c.Store {
	case StoreGitHub:
		if c.GitHubPath == "" {
			return fmt.Errorf("store %q requires github_path (MDTASKS_GITHUB_PATH or GITHUB_PATH)", c.Store)
		}
	case StoreFile:
		if c.FilePath == "" {
			return fmt.Errorf("store %q requires file_path", c.Store)
		}
	case StoreRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("store %q requires redis_addr", c.Store)
		}
	case StoreAzureTable:
		if c.AzureConnectionString == "" {
			return fmt.Errorf("store %q requires azure_connection_string", c.Store)
		}
	}
	if c.SessionStore != StoreMemory && c.SessionStore != StoreRedis {
		return fmt.Errorf("invalid session_store %q, must be memory or redis", c.SessionStore)
	}
	if c.SessionStore == StoreRedis && c.RedisAddr == "" {
		return fmt.Errorf("session_store redis requires redis_addr")
	}
	if c.MaxAttempts < 1 {
		return fmt.Errorf("max_attempts must be at least 1, got %d", c.MaxAttempts)
	}
	if c.BackoffMS < 0 {
		return fmt.Errorf("backoff_ms must not be negative, got %d", c.BackoffMS)
	}
	if _, err := c.SessionTTLDuration(); err != nil {
		return err
	}
	if c.Timezone != "" {
		if _, err := time.LoadLocation(c.Timezone); err != nil {
			return fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
		}
	}
	return nil
}

// Backoff returns the linear backoff step between save attempts.
func (c *Config) Backoff() time.Duration {
	return time.Duration(c.BackoffMS) * time.Millisecond
}

// SessionTTLDuration parses session_ttl.
func (c *Config) SessionTTLDuration() (time.Duration, error) {
	d, err := time.ParseDuration(c.SessionTTL)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid session_ttl %q: must be a positive duration such as 30m", c.SessionTTL)
	}
	return d, nil
}
