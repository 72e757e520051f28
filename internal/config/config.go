package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/gompdf/examsheet/internal/storage"
)

// Config holds all application configuration
type Config struct {
	Log     LogConfig      `mapstructure:"log"`
	Store   StoreConfig    `mapstructure:"store"`
	Blob    storage.Config `mapstructure:"blob"`
	Layout  LayoutConfig   `mapstructure:"layout"`
	Session SessionConfig  `mapstructure:"session"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"` // empty disables the rotated file
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

type StoreConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

// LayoutConfig holds the print geometry shared by preview and PDF
type LayoutConfig struct {
	PageSize           string  `mapstructure:"page_size"`
	MarginMM           float64 `mapstructure:"margin_mm"`
	ColumnGap          float64 `mapstructure:"column_gap"`
	FallbackHeight     float64 `mapstructure:"fallback_height"`
	HeaderSpansColumns bool    `mapstructure:"header_spans_columns"`
	Debug              bool    `mapstructure:"debug"`
}

type SessionConfig struct {
	Debounce time.Duration `mapstructure:"debounce"`
}

// EnvPrefix is prepended to every environment override, e.g.
// EXAMSHEET_STORE_DSN for store.dsn
const EnvPrefix = "EXAMSHEET"

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size", 100)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age", 30)
	v.SetDefault("log.compress", true)

	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.dsn", "")

	v.SetDefault("blob.driver", "fs")
	v.SetDefault("blob.path", "./data/blobs")
	v.SetDefault("blob.minio_endpoint", "localhost:9000")
	v.SetDefault("blob.minio_access_key", "")
	v.SetDefault("blob.minio_secret_key", "")
	v.SetDefault("blob.minio_bucket", "examsheet")
	v.SetDefault("blob.minio_secure", false)

	v.SetDefault("layout.page_size", "A4")
	v.SetDefault("layout.margin_mm", 10.0)
	v.SetDefault("layout.column_gap", 36.0)
	v.SetDefault("layout.fallback_height", 150.0)
	v.SetDefault("layout.header_spans_columns", false)
	v.SetDefault("layout.debug", false)

	v.SetDefault("session.debounce", "150ms")
}

// Load reads config.yaml from path (a file or a directory; empty searches
// the working directory) and applies EXAMSHEET_* environment overrides. A
// missing config file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		v.SetConfigFile(path)
	} else {
		if path == "" {
			path = "."
		}
		v.AddConfigPath(path)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects values the renderers cannot work with
func (c *Config) Validate() error {
	if c.Layout.MarginMM < 0 {
		return fmt.Errorf("layout.margin_mm must not be negative: %v", c.Layout.MarginMM)
	}
	if c.Layout.ColumnGap < 0 {
		return fmt.Errorf("layout.column_gap must not be negative: %v", c.Layout.ColumnGap)
	}
	if c.Layout.FallbackHeight <= 0 {
		return fmt.Errorf("layout.fallback_height must be positive: %v", c.Layout.FallbackHeight)
	}
	if c.Session.Debounce < 0 {
		return fmt.Errorf("session.debounce must not be negative: %v", c.Session.Debounce)
	}
	return nil
}
