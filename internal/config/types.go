package config

// ConfigSource represents where a configuration value came from.
type ConfigSource string

const (
	SourceDefault  ConfigSource = "default"
	SourceUserFile ConfigSource = "user file"
	SourceProjFile ConfigSource = "project file"
	SourceEnv      ConfigSource = "environment"
	SourceFlag     ConfigSource = "flag"
)

// ConfigWithSources holds configuration along with source information for each field.
type ConfigWithSources struct {
	Config  *Config
	Sources map[string]ConfigSource
	// Files lists the config files that were read, lowest priority first.
	Files []string
}

// Store backends.
const (
	StoreGitHub     = "github"
	StoreFile       = "file"
	StoreMemory     = "memory"
	StoreRedis      = "redis"
	StoreAzureTable = "azuretable"
)

// Stores lists the accepted values of the store key.
var Stores = []string{StoreGitHub, StoreFile, StoreMemory, StoreRedis, StoreAzureTable}

// Default values.
const (
	DefaultStore        = StoreFile
	DefaultFilePath     = "tasks.md"
	DefaultGitHubAPIURL = "https://api.github.com"
	DefaultRedisPrefix  = "mdtasks"
	DefaultAzureTable   = "mdtasks"
	DefaultMaxAttempts  = 3
	DefaultBackoffMS    = 1000
	DefaultListenAddr   = ":8080"
	DefaultSessionTTL   = "30m"
	DefaultSessionStore = StoreMemory
	DefaultLogDir       = "~/.mdtasks/logs"
)

// Config holds the full configuration for mdtasks.
type Config struct {
	// Document store
	Store string `toml:"store"`

	// GitHub store and webhook
	GitHubPath   string `toml:"github_path"`
	GitHubToken  string `toml:"github_token"`
	GitHubAPIURL string `toml:"github_api_url"`

	// Local file store
	FilePath string `toml:"file_path"`

	// Redis store and sessions
	RedisAddr      string `toml:"redis_addr"`
	RedisKeyPrefix string `toml:"redis_key_prefix"`

	// Azure Tables store and notification queue
	AzureConnectionString string `toml:"azure_connection_string"`
	AzureTable            string `toml:"azure_table"`
	AzureQueue            string `toml:"azure_queue"`

	// Timezone written into a newly created document
	Timezone string `toml:"timezone"`

	// Save retries
	MaxAttempts int `toml:"max_attempts"`
	BackoffMS   int `toml:"backoff_ms"`

	// HTTP server
	ListenAddr   string `toml:"listen_addr"`
	SessionTTL   string `toml:"session_ttl"`
	SessionStore string `toml:"session_store"`

	// Logging configuration
	LogDir        string `toml:"log_dir"`
	LogLevel      string `toml:"log_level"`
	LogFormat     string `toml:"log_format"`
	LogTimestamps bool   `toml:"log_timestamps"`
	LogCaller     bool   `toml:"log_caller"`
	LogFile       bool   `toml:"log_file"`
}
