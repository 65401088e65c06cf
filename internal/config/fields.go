package config

import (
	"fmt"
	"strconv"
)

// field describes one configuration key across every source.
type field struct {
	key   string   // TOML key, also the source-tracking name
	env   []string // environment variables, first set wins
	flag  string   // CLI flag name, empty if none
	usage string
	ptr   func(*Config) any // *string, *int or *bool
}

var fields = []field{
	{"store", []string{"MDTASKS_STORE"}, "store", "Document store (github, file, memory, redis, azuretable)", func(c *Config) any { return &c.Store }},
	{"github_path", []string{"MDTASKS_GITHUB_PATH", "GITHUB_PATH"}, "github-path", "GitHub blob URL of the task document", func(c *Config) any { return &c.GitHubPath }},
	{"github_token", []string{"MDTASKS_GITHUB_TOKEN", "GITHUB_TOKEN"}, "", "", func(c *Config) any { return &c.GitHubToken }},
	{"github_api_url", []string{"MDTASKS_GITHUB_API_URL"}, "github-api-url", "GitHub API base URL", func(c *Config) any { return &c.GitHubAPIURL }},
	{"file_path", []string{"MDTASKS_FILE"}, "file", "Task document path for the file store", func(c *Config) any { return &c.FilePath }},
	{"redis_addr", []string{"MDTASKS_REDIS_ADDR"}, "redis-addr", "Redis address (host:port or redis:// URL)", func(c *Config) any { return &c.RedisAddr }},
	{"redis_key_prefix", []string{"MDTASKS_REDIS_KEY_PREFIX"}, "redis-key-prefix", "Prefix for Redis keys", func(c *Config) any { return &c.RedisKeyPrefix }},
	{"azure_connection_string", []string{"MDTASKS_AZURE_CONNECTION_STRING"}, "", "", func(c *Config) any { return &c.AzureConnectionString }},
	{"azure_table", []string{"MDTASKS_AZURE_TABLE"}, "azure-table", "Azure table holding the document", func(c *Config) any { return &c.AzureTable }},
	{"azure_queue", []string{"MDTASKS_AZURE_QUEUE"}, "azure-queue", "Azure queue for change notifications", func(c *Config) any { return &c.AzureQueue }},
	{"timezone", []string{"MDTASKS_TIMEZONE"}, "timezone", "Timezone for newly created documents", func(c *Config) any { return &c.Timezone }},
	{"max_attempts", []string{"MDTASKS_MAX_ATTEMPTS"}, "max-attempts", "Save attempts before giving up", func(c *Config) any { return &c.MaxAttempts }},
	{"backoff_ms", []string{"MDTASKS_BACKOFF_MS"}, "backoff-ms", "Backoff step between save attempts (ms)", func(c *Config) any { return &c.BackoffMS }},
	{"listen_addr", []string{"MDTASKS_LISTEN_ADDR"}, "listen", "HTTP listen address", func(c *Config) any { return &c.ListenAddr }},
	{"session_ttl", []string{"MDTASKS_SESSION_TTL"}, "session-ttl", "Edit session lifetime", func(c *Config) any { return &c.SessionTTL }},
	{"session_store", []string{"MDTASKS_SESSION_STORE"}, "session-store", "Edit session store (memory, redis)", func(c *Config) any { return &c.SessionStore }},
	{"log_dir", []string{"MDTASKS_LOG_DIR"}, "log-dir", "Run log directory", func(c *Config) any { return &c.LogDir }},
	{"log_level", []string{"MDTASKS_LOG_LEVEL"}, "log-level", "Log level (debug, info, warn, error)", func(c *Config) any { return &c.LogLevel }},
	{"log_format", []string{"MDTASKS_LOG_FORMAT"}, "log-format", "Log format (text, json, logfmt)", func(c *Config) any { return &c.LogFormat }},
	{"log_timestamps", []string{"MDTASKS_LOG_TIMESTAMPS"}, "log-timestamps", "Show timestamps in logs", func(c *Config) any { return &c.LogTimestamps }},
	{"log_caller", []string{"MDTASKS_LOG_CALLER"}, "log-caller", "Show caller location in logs", func(c *Config) any { return &c.LogCaller }},
	{"log_file", []string{"MDTASKS_LOG_FILE"}, "log-file", "Also write logs to a per-run file under log_dir", func(c *Config) any { return &c.LogFile }},
}

// configFields returns the list of configurable field names for source tracking.
func configFields() []string {
	keys := make([]string, 0, len(fields))
	for _, f := range fields {
		keys = append(keys, f.key)
	}
	return keys
}

// setString assigns a textual value to a typed config field.
func setString(ptr any, v string) error {
	switch p := ptr.(type) {
	case *string:
		*p = v
	case *int:
		i, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid integer %q", v)
		}
		*p = i
	case *bool:
		*p = boolFromString(v)
	default:
		return fmt.Errorf("unsupported field type %T", ptr)
	}
	return nil
}

// Value returns the value of key rendered as text, and whether key exists.
func (c *Config) Value(key string) (string, bool) {
	for _, f := range fields {
		if f.key != key {
			continue
		}
		switch p := f.ptr(c).(type) {
		case *string:
			return *p, true
		case *int:
			return strconv.Itoa(*p), true
		case *bool:
			return strconv.FormatBool(*p), true
		}
	}
	return "", false
}

// Keys returns every configuration key in declaration order.
func Keys() []string {
	return configFields()
}
