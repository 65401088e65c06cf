package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/pflag"
)

// Load loads configuration from every source and validates it. fs holds
// flags registered with BindFlags and already parsed; it may be nil.
func Load(fs *pflag.FlagSet) (*Config, error) {
	cws, err := LoadWithSources(fs)
	if err != nil {
		return nil, err
	}
	return cws.Config, nil
}

// LoadWithSources loads configuration and tracks the source of each value.
func LoadWithSources(fs *pflag.FlagSet) (*ConfigWithSources, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("getting working directory: %w", err)
	}
	return loadWithSources(fs, wd)
}

func loadWithSources(fs *pflag.FlagSet, workDir string) (*ConfigWithSources, error) {
	sources := make(map[string]ConfigSource)
	cfg := &Config{}
	var files []string

	// 1. Defaults
	setDefaults(cfg)
	for _, key := range configFields() {
		sources[key] = SourceDefault
	}

	// 2. User config file
	if path := findUserConfigFile(); path != "" {
		if err := loadConfigFileWithSources(cfg, path, sources, SourceUserFile); err != nil {
			return nil, fmt.Errorf("loading user config file %s: %w", path, err)
		}
		files = append(files, path)
	}

	// 3. Project config file (overrides user config)
	if path := findProjectConfigFile(workDir); path != "" {
		if err := loadConfigFileWithSources(cfg, path, sources, SourceProjFile); err != nil {
			return nil, fmt.Errorf("loading project config file %s: %w", path, err)
		}
		files = append(files, path)
	}

	// 4. Environment
	loadFromEnvWithSources(cfg, sources)

	// 5. Flags
	if err := applyFlagsWithSources(cfg, fs, sources); err != nil {
		return nil, fmt.Errorf("parsing flags: %w", err)
	}

	// 6. Derived values
	if err := finalizeConfig(cfg, workDir); err != nil {
		return nil, fmt.Errorf("finalizing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &ConfigWithSources{Config: cfg, Sources: sources, Files: files}, nil
}

// loadConfigFileWithSources decodes path over cfg. Only keys present in the
// file change value or source; unknown keys are an error.
func loadConfigFileWithSources(cfg *Config, path string, sources map[string]ConfigSource, source ConfigSource) error {
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		sort.Strings(keys)
		return fmt.Errorf("unknown config keys: %s", strings.Join(keys, ", "))
	}
	for _, key := range configFields() {
		if md.IsDefined(key) {
			sources[key] = source
		}
	}
	return nil
}

// finalizeConfig computes derived values.
func finalizeConfig(cfg *Config, workDir string) error {
	cfg.LogDir = resolvePath(cfg.LogDir, workDir)
	cfg.FilePath = resolvePath(cfg.FilePath, workDir)
	cfg.Store = strings.ToLower(strings.TrimSpace(cfg.Store))
	cfg.SessionStore = strings.ToLower(strings.TrimSpace(cfg.SessionStore))
	return nil
}

// resolvePath expands $VAR references and a leading ~ in a local path
// setting, then anchors a relative result at workDir.
func resolvePath(p, workDir string) string {
	p = os.ExpandEnv(strings.TrimSpace(p))
	if p == "" {
		return ""
	}
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			p = filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	if !filepath.IsAbs(p) && workDir != "" {
		p = filepath.Join(workDir, p)
	}
	return p
}
