package config

// ExampleConfig returns an example configuration showing all available options.
func ExampleConfig() string {
	return `# mdtasks configuration file
# Values can be overridden by environment variables (MDTASKS_*) or CLI flags

# Where the task document lives: github, file, memory, redis, azuretable
store = "file"

# GitHub store: browser URL of the document (the ref is the branch written to)
# github_path = "https://github.com/<owner>/<repo>/blob/main/tasks.md"
# github_token is best set via GITHUB_TOKEN
# github_api_url = "https://api.github.com"

# File store (relative to the working directory, supports ~ expansion)
file_path = "tasks.md"

# Redis store and shared edit sessions
# redis_addr = "localhost:6379"
redis_key_prefix = "mdtasks"

# Azure Tables store; azure_queue enables queued change notifications
# azure_connection_string = "UseDevelopmentStorage=true"
azure_table = "mdtasks"
# azure_queue = "mdtasks-changes"

# Timezone written into a newly created document
# timezone = "Europe/Berlin"

# Save retries on concurrent modification
max_attempts = 3
backoff_ms = 1000

# HTTP server (mdtasks serve)
listen_addr = ":8080"
session_ttl = "30m"
session_store = "memory"

# Logging
log_dir = "~/.mdtasks/logs"
log_level = "info"
log_format = "text"
log_timestamps = false
log_caller = false
log_file = false
`
}
