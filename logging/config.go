package logging

import (
	"os"
	"strconv"
)

// MaxBufferSize bounds the number of retained entries.
const MaxBufferSize = 1000

type DebugConfig struct {
	Enabled            bool     `json:"enabled"`
	Level              LogLevel `json:"level"`
	IncludeTimestamps  bool     `json:"includeTimestamps"`
	IncludePerformance bool     `json:"includePerformance"`
	IncludeStackTraces bool     `json:"includeStackTraces"`
	LogToConsole       bool     `json:"logToConsole"`
	LogToFile          bool     `json:"logToFile"`
}

func DefaultConfig() DebugConfig {
	return DebugConfig{
		Enabled:            true,
		Level:              DEBUG,
		IncludeTimestamps:  true,
		IncludePerformance: true,
		IncludeStackTraces: true,
		LogToConsole:       true,
		LogToFile:          false,
	}
}

// ConfigPatch is a partial DebugConfig. Nil fields keep the current value.
type ConfigPatch struct {
	Enabled            *bool     `json:"enabled,omitempty"`
	Level              *LogLevel `json:"level,omitempty"`
	IncludeTimestamps  *bool     `json:"includeTimestamps,omitempty"`
	IncludePerformance *bool     `json:"includePerformance,omitempty"`
	IncludeStackTraces *bool     `json:"includeStackTraces,omitempty"`
	LogToConsole       *bool     `json:"logToConsole,omitempty"`
	LogToFile          *bool     `json:"logToFile,omitempty"`
}

// Apply returns c with every non-nil field of p copied over it.
func (p ConfigPatch) Apply(c DebugConfig) DebugConfig {
	if p.Enabled != nil {
		c.Enabled = *p.Enabled
	}
	if p.Level != nil && p.Level.Valid() {
		c.Level = *p.Level
	}
	if p.IncludeTimestamps != nil {
		c.IncludeTimestamps = *p.IncludeTimestamps
	}
	if p.IncludePerformance != nil {
		c.IncludePerformance = *p.IncludePerformance
	}
	if p.IncludeStackTraces != nil {
		c.IncludeStackTraces = *p.IncludeStackTraces
	}
	if p.LogToConsole != nil {
		c.LogToConsole = *p.LogToConsole
	}
	if p.LogToFile != nil {
		c.LogToFile = *p.LogToFile
	}
	return c
}

func (p ConfigPatch) Empty() bool {
	return p == ConfigPatch{}
}

// Ptr is a helper for building ConfigPatch literals.
func Ptr[T any](v T) *T { return &v }

// Logical setting names answered by a SettingSource.
const (
	SettingEnabled = "enabled"
	SettingLevel   = "level"
)

// SettingSource reads an optional string setting by logical name.
type SettingSource interface {
	Setting(name string) (string, bool)
}

const (
	EnvDebug      = "DEBUG"
	EnvDebugLevel = "DEBUG_LEVEL"
)

// EnvSource reads DEBUG and DEBUG_LEVEL from the process environment.
type EnvSource struct {
	// LookupEnv defaults to os.LookupEnv.
	LookupEnv func(key string) (string, bool)
}

func (s EnvSource) Setting(name string) (string, bool) {
	lookup := s.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}
	switch name {
	case SettingEnabled:
		return lookup(EnvDebug)
	case SettingLevel:
		return lookup(EnvDebugLevel)
	}
	return "", false
}

const (
	StoreKeyDebug      = "dianoia_debug"
	StoreKeyDebugLevel = "dianoia_debug_level"
)

type KeyValueStore interface {
	Get(key string) (string, bool, error)
}

// StoreSource reads settings from a persistent key/value store. Read
// failures are treated as missing settings.
type StoreSource struct {
	Store KeyValueStore
}

func (s StoreSource) Setting(name string) (string, bool) {
	if s.Store == nil {
		return "", false
	}
	var key string
	switch name {
	case SettingEnabled:
		key = StoreKeyDebug
	case SettingLevel:
		key = StoreKeyDebugLevel
	default:
		return "", false
	}
	value, ok, err := s.Store.Get(key)
	if err != nil || !ok {
		return "", false
	}
	return value, true
}

// resolveConfig applies sources in order; later sources win. Unparseable
// values are ignored.
func resolveConfig(base DebugConfig, sources []SettingSource) DebugConfig {
	cfg := base
	for _, src := range sources {
		if src == nil {
			continue
		}
		if raw, ok := src.Setting(SettingEnabled); ok {
			if enabled, err := strconv.ParseBool(raw); err == nil {
				cfg.Enabled = enabled
			}
		}
		if raw, ok := src.Setting(SettingLevel); ok {
			if level, ok := LookupLevel(raw); ok {
				cfg.Level = level
			}
		}
	}
	return cfg
}
