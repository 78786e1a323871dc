package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Default config file path.
const DefaultConfigPath = "~/.config/tally/config.yaml"

// Config holds all tally configuration.
type Config struct {
	Storage StorageConfig          `yaml:"storage"`
	Logging LoggingConfig          `yaml:"logging"`
	Dedup   DedupConfig            `yaml:"dedup"`
	Metrics MetricsConfig          `yaml:"metrics"`
	Stats   map[string]GroupConfig `yaml:"stats"`
}

type StorageConfig struct {
	Driver        string `yaml:"driver"`
	DSN           string `yaml:"dsn"`
	Path          string `yaml:"path"`
	SQLiteFile    string `yaml:"sqlite_file"`
	BusyTimeoutMS int    `yaml:"busy_timeout_ms"`
}

type LoggingConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

type DedupConfig struct {
	Backend       string `yaml:"backend"` // none, memory or redis
	KeyPrefix     string `yaml:"key_prefix"`
	MemorySize    int    `yaml:"memory_size"`
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
}

type MetricsConfig struct {
	Textfile string `yaml:"textfile"`
}

// GroupConfig is one named stats group as written in the config file.
// Unset fields are inherited from Parent, then from the built-in defaults.
type GroupConfig struct {
	Parent         string                   `yaml:"parent,omitempty"`
	MainTable      string                   `yaml:"main_table,omitempty"`
	HistoryTable   string                   `yaml:"history_table,omitempty"`
	HistoryEnabled *bool                    `yaml:"history_enabled,omitempty"`
	Timezone       string                   `yaml:"timezone,omitempty"`
	Types          map[string]time.Duration `yaml:"types,omitempty"`
}

// SQLitePath returns the expanded path of the SQLite database file.
func (s StorageConfig) SQLitePath() (string, error) {
	return expandPath(filepath.Join(s.Path, s.SQLiteFile))
}

// LogPath returns the expanded log file path. A relative logging.file is
// placed under storage.path; an empty one disables file logging.
func (c *Config) LogPath() (string, error) {
	if c.Logging.File == "" {
		return "", nil
	}
	p, err := expandPath(c.Logging.File)
	if err != nil {
		return "", err
	}
	if filepath.IsAbs(p) {
		return p, nil
	}
	return expandPath(filepath.Join(c.Storage.Path, p))
}

// Load reads a YAML config file at path and merges it with defaults.
// Returns an error if the file cannot be read or contains invalid YAML.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Storage.Driver {
	case "sqlite3", "postgres":
	default:
		return fmt.Errorf("storage.driver: unsupported driver %q", c.Storage.Driver)
	}
	if c.Storage.Driver == "postgres" && c.Storage.DSN == "" {
		return fmt.Errorf("storage.dsn is required for postgres")
	}

	switch c.Dedup.Backend {
	case "none", "memory", "redis":
	default:
		return fmt.Errorf("dedup.backend: unsupported backend %q", c.Dedup.Backend)
	}

	for name := range c.Stats {
		if _, err := c.Group(name); err != nil {
			return err
		}
	}
	return nil
}

// expandPath replaces a leading ~ with the user's home directory.
func expandPath(path string) (string, error) {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolving home directory: %w", err)
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}

// LoadOrCreate loads the config from the default path. If the file does
// not exist, it creates the directory structure and writes defaults.
func LoadOrCreate() (*Config, error) {
	path, err := expandPath(DefaultConfigPath)
	if err != nil {
		return nil, err
	}
	return LoadOrCreateAt(path)
}

// LoadOrCreateAt loads the config from the given path. If the file does
// not exist, it creates the directory structure and writes defaults.
func LoadOrCreateAt(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := DefaultConfig()

		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating config directory: %w", err)
		}

		data, err := yaml.Marshal(cfg)
		if err != nil {
			return nil, fmt.Errorf("marshaling default config: %w", err)
		}

		if err := os.WriteFile(path, data, 0644); err != nil {
			return nil, fmt.Errorf("writing default config: %w", err)
		}

		return cfg, nil
	}

	return Load(path)
}
