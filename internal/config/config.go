// Package config loads the library CLI configuration from config.yaml and
// LIBRARY_* environment variables.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/natefinch/atomic"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"home-library/library"
)

const (
	FileName  = "config.yaml"
	envPrefix = "LIBRARY"
)

// Config keys.
const (
	KeyDriver      = "database.driver"
	KeyDSN         = "database.dsn"
	KeyBusyTimeout = "database.busy_timeout"
	KeyLoanPeriod  = "loans.period_days"
	KeyReportLimit = "reports.limit"
	KeyLogLevel    = "log.level"
	KeyLogFormat   = "log.format"
)

var ErrInvalidConfig = errors.New("invalid config")

// Config is the resolved configuration.
type Config struct {
	Database Database `mapstructure:"database" yaml:"database"`
	Loans    Loans    `mapstructure:"loans" yaml:"loans"`
	Reports  Reports  `mapstructure:"reports" yaml:"reports"`
	Log      Log      `mapstructure:"log" yaml:"log"`
}

type Database struct {
	Driver string `mapstructure:"driver" yaml:"driver"`
	// DSN is a file path for the SQLite drivers and a connection URL for
	// PostgreSQL. Empty means library.db in the data directory.
	DSN           string `mapstructure:"dsn" yaml:"dsn"`
	BusyTimeoutMS int    `mapstructure:"busy_timeout" yaml:"busy_timeout"`
}

type Loans struct {
	PeriodDays int `mapstructure:"period_days" yaml:"period_days"`
}

type Reports struct {
	Limit int `mapstructure:"limit" yaml:"limit"`
}

type Log struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Database: Database{Driver: library.DriverSQLite3, BusyTimeoutMS: 5000},
		Loans:    Loans{PeriodDays: 14},
		Reports:  Reports{Limit: 10},
		Log:      Log{Level: "warn", Format: "text"},
	}
}

// Load reads config.yaml from dir, applies LIBRARY_* environment overrides
// (LIBRARY_DATABASE_DSN for database.dsn) and fills defaults. A missing file
// is not an error.
func Load(dir string) (*Config, error) {
	def := Default()
	v := viper.New()
	v.SetDefault(KeyDriver, def.Database.Driver)
	v.SetDefault(KeyDSN, def.Database.DSN)
	v.SetDefault(KeyBusyTimeout, def.Database.BusyTimeoutMS)
	v.SetDefault(KeyLoanPeriod, def.Loans.PeriodDays)
	v.SetDefault(KeyReportLimit, def.Reports.Limit)
	v.SetDefault(KeyLogLevel, def.Log.Level)
	v.SetDefault(KeyLogFormat, def.Log.Format)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(dir)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that would otherwise fail later with a less
// helpful message.
func (c Config) Validate() error {
	switch c.Database.Driver {
	case library.DriverSQLite3, library.DriverSQLite, library.DriverPgx, library.DriverPostgres:
	default:
		return fmt.Errorf("%w: %s %q (want sqlite3, sqlite, pgx or postgres)", ErrInvalidConfig, KeyDriver, c.Database.Driver)
	}
	if c.Loans.PeriodDays <= 0 {
		return fmt.Errorf("%w: %s must be positive", ErrInvalidConfig, KeyLoanPeriod)
	}
	if c.Reports.Limit <= 0 {
		return fmt.Errorf("%w: %s must be positive", ErrInvalidConfig, KeyReportLimit)
	}
	if c.Database.BusyTimeoutMS < 0 {
		return fmt.Errorf("%w: %s must not be negative", ErrInvalidConfig, KeyBusyTimeout)
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("%w: %s %q (want text or json)", ErrInvalidConfig, KeyLogFormat, c.Log.Format)
	}
	return nil
}

// IsPostgres reports whether the configured driver talks to PostgreSQL.
func (c Config) IsPostgres() bool {
	return c.Database.Driver == library.DriverPgx || c.Database.Driver == library.DriverPostgres
}

// ResolveDSN returns the DSN to open. An empty SQLite DSN becomes
// library.db in the data directory.
func (c Config) ResolveDSN() (string, error) {
	if c.Database.DSN != "" {
		return c.Database.DSN, nil
	}
	if c.IsPostgres() {
		return "", fmt.Errorf("%w: %s is required for driver %s", ErrInvalidConfig, KeyDSN, c.Database.Driver)
	}
	dir, err := DefaultDataDir()
	if err != nil {
		return "", fmt.Errorf("data dir: %w", err)
	}
	return filepath.Join(dir, "library.db"), nil
}

// LibraryOptions turns the configuration into store options.
func (c Config) LibraryOptions(logger library.Logger) []library.Option {
	opts := []library.Option{
		library.WithLoanPeriod(c.Loans.PeriodDays),
		library.WithBusyTimeout(c.Database.BusyTimeoutMS),
	}
	if logger != nil {
		opts = append(opts, library.WithLogger(logger))
	}
	return opts
}

// WriteDefault writes cfg to dir/config.yaml unless the file already exists.
// The write goes through a temp file and rename so a crash never leaves a
// half-written config behind.
func WriteDefault(dir string, cfg Config) (path string, created bool, err error) {
	path = filepath.Join(dir, FileName)
	if _, err := os.Stat(path); err == nil {
		return path, false, nil
	} else if !os.IsNotExist(err) {
		return path, false, fmt.Errorf("stat config file: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return path, false, fmt.Errorf("create config dir: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString("# home library configuration\n")
	buf.WriteString("# drivers: sqlite3 (cgo), sqlite (pure Go), pgx, postgres\n")
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return path, false, fmt.Errorf("marshal config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return path, false, fmt.Errorf("marshal config: %w", err)
	}
	if err := atomic.WriteFile(path, &buf); err != nil {
		return path, false, fmt.Errorf("write config: %w", err)
	}
	return path, true, nil
}
