// Package config handles configuration loading and defaults.
//
// Configuration is loaded from multiple sources in priority order:
// 1. Built-in defaults
// 2. User config file (~/.mdtasks/mdtasks.toml or OS-specific config directory)
// 3. Project config file (mdtasks.toml or .mdtasks.toml in the working directory)
// 4. Environment variables (MDTASKS_*, plus GITHUB_TOKEN and GITHUB_PATH)
// 5. CLI flags
//
// Each level overrides the previous one, so CLI flags take precedence.
//
// User-level config locations:
// - ~/.mdtasks/mdtasks.toml (preferred)
// - Windows: %APPDATA%\mdtasks\mdtasks.toml
// - macOS: ~/Library/Application Support/mdtasks/mdtasks.toml
// - Linux/BSD: $XDG_CONFIG_HOME/mdtasks/mdtasks.toml or ~/.config/mdtasks/mdtasks.toml
package config
