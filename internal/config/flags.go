package config

import (
	"fmt"

	"github.com/spf13/pflag"
)

// BindFlags registers a flag for every flag-enabled key on fs. Defaults
// shown in help are the built-in defaults; only flags the user actually set
// override other sources.
func BindFlags(fs *pflag.FlagSet) {
	defaults := &Config{}
	setDefaults(defaults)
	for _, f := range fields {
		if f.flag == "" || fs.Lookup(f.flag) != nil {
			continue
		}
		switch p := f.ptr(defaults).(type) {
		case *string:
			fs.String(f.flag, *p, f.usage)
		case *int:
			fs.Int(f.flag, *p, f.usage)
		case *bool:
			fs.Bool(f.flag, *p, f.usage)
		}
	}
}

// applyFlagsWithSources copies explicitly set flags into cfg.
func applyFlagsWithSources(cfg *Config, fs *pflag.FlagSet, sources map[string]ConfigSource) error {
	if fs == nil {
		return nil
	}
	for _, f := range fields {
		if f.flag == "" || fs.Lookup(f.flag) == nil || !fs.Changed(f.flag) {
			continue
		}
		var err error
		switch p := f.ptr(cfg).(type) {
		case *string:
			*p, err = fs.GetString(f.flag)
		case *int:
			*p, err = fs.GetInt(f.flag)
		case *bool:
			*p, err = fs.GetBool(f.flag)
		}
		if err != nil {
			return fmt.Errorf("flag --%s: %w", f.flag, err)
		}
		sources[f.key] = SourceFlag
	}
	return nil
}
