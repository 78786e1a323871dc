package config

import "time"

// Built-in values for fields no stats group sets.
const (
	DefaultGroup        = "default"
	DefaultMainTable    = "stats"
	DefaultHistoryTable = "stats_history"
	DefaultHitType      = "unique" // dedup type of a record with --client but no --type
)

// DefaultTypes returns the built-in dedup types: a "unique" visit lasts 30
// minutes; a "view" is counted every time.
func DefaultTypes() map[string]time.Duration {
	return map[string]time.Duration{
		DefaultHitType: 30 * time.Minute,
		"view":         0,
	}
}

// DefaultConfig returns a Config populated with all default values.
func DefaultConfig() *Config {
	enabled := true
	return &Config{
		Storage: StorageConfig{
			Driver:        "sqlite3",
			DSN:           "",
			Path:          "~/.config/tally",
			SQLiteFile:    "tally.db",
			BusyTimeoutMS: 5000,
		},
		Logging: LoggingConfig{
			Level:      "info",
			File:       "",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 7,
			Compress:   false,
		},
		Dedup: DedupConfig{
			Backend:    "memory",
			KeyPrefix:  "tally:",
			MemorySize: 10000,
			RedisAddr:  "127.0.0.1:6379",
			RedisDB:    0,
		},
		Metrics: MetricsConfig{
			Textfile: "",
		},
		Stats: map[string]GroupConfig{
			DefaultGroup: {
				MainTable:      DefaultMainTable,
				HistoryTable:   DefaultHistoryTable,
				HistoryEnabled: &enabled,
				Timezone:       "Local",
				Types:          DefaultTypes(),
			},
		},
	}
}
