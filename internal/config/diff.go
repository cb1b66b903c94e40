package config

import (
	"reflect"
	"slices"
)

// ConfigDiff describes what changed between two configs. Log level changes
// apply live; everything else needs a restart and is only surfaced so the
// operator can be told.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// ChainsChanged lists the pipeline stages ("stt", "llm", "tts") whose
	// provider chain differs. Chains are rebuilt only at startup.
	ChainsChanged []string

	// StorageChanged is true when the storage backend or its connection
	// settings differ.
	StorageChanged bool
}

// HotApplicable reports whether the diff contains only changes that can be
// applied without a restart.
func (d ConfigDiff) HotApplicable() bool {
	return len(d.ChainsChanged) == 0 && !d.StorageChanged
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if !chainEqual(old.Providers.STT, new.Providers.STT) {
		d.ChainsChanged = append(d.ChainsChanged, "stt")
	}
	if !chainEqual(old.Providers.LLM, new.Providers.LLM) {
		d.ChainsChanged = append(d.ChainsChanged, "llm")
	}
	if !chainEqual(old.Providers.TTS, new.Providers.TTS) {
		d.ChainsChanged = append(d.ChainsChanged, "tts")
	}

	if old.Storage != new.Storage {
		d.StorageChanged = true
	}

	return d
}

// chainEqual compares two provider chains including their Options maps.
func chainEqual(a, b []ProviderEntry) bool {
	return slices.EqualFunc(a, b, func(x, y ProviderEntry) bool {
		return x.Name == y.Name &&
			x.APIKey == y.APIKey &&
			x.BaseURL == y.BaseURL &&
			x.Model == y.Model &&
			x.Region == y.Region &&
			reflect.DeepEqual(x.Options, y.Options)
	})
}
