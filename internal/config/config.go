// Package config loads the YAML process configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/paperdesk/creditledger/internal/util"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultConfigFile is the file name searched for when no path is given.
	DefaultConfigFile = "config.yaml"
	// ConfigPathEnv overrides the config file location.
	ConfigPathEnv = "CREDITLEDGER_CONFIG"
	// WritablePathEnv names a writable directory holding config.yaml.
	WritablePathEnv = "WRITABLE_PATH"
)

// AppConfig carries process-level inputs from the command line.
type AppConfig struct {
	ConfigPath string
}

// Config is the decoded config.yaml.
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Server    ServerConfig    `yaml:"server"`
	JWT       JWTConfig       `yaml:"jwt"`
	Webhook   WebhookConfig   `yaml:"webhook"`
	Ledger    LedgerConfig    `yaml:"ledger"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Redis     RedisConfig     `yaml:"redis"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// DatabaseConfig selects the database.
type DatabaseConfig struct {
	DSN          string `yaml:"dsn"`
	MaxOpenConns int    `yaml:"max_open_conns"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// JWTConfig configures bearer tokens.
type JWTConfig struct {
	Secret string        `yaml:"secret"`
	Expiry time.Duration `yaml:"expiry"`
}

// WebhookConfig configures the payment webhook.
type WebhookConfig struct {
	Token string `yaml:"token"`
}

// LedgerConfig configures the accounting engine.
type LedgerConfig struct {
	InitialBalance *int64         `yaml:"initial_balance"`
	DailyLimit     int64          `yaml:"daily_limit"`
	Timezone       string         `yaml:"timezone"`
	OpTimeout      time.Duration  `yaml:"op_timeout"`
	MaxRetries     *int           `yaml:"max_retries"`
	StrictReplay   bool           `yaml:"strict_replay"`
	location       *time.Location
}

// Location returns the parsed ledger timezone, UTC when unset.
func (c LedgerConfig) Location() *time.Location {
	if c.location == nil {
		return time.UTC
	}
	return c.location
}

// SchedulerConfig configures the daily reset loop.
type SchedulerConfig struct {
	Enabled  *bool         `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
}

// IsEnabled reports whether the scheduler runs inside serve. Defaults to true.
func (c SchedulerConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// RedisConfig locates the optional lock server.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// LoggingConfig configures logrus output.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// ResolveConfigPath picks the config file: explicit path, then CREDITLEDGER_CONFIG,
// then WRITABLE_PATH/config.yaml, then ./config.yaml.
func ResolveConfigPath(explicit string) string {
	if p := strings.TrimSpace(explicit); p != "" {
		return p
	}
	if p := strings.TrimSpace(os.Getenv(ConfigPathEnv)); p != "" {
		return p
	}
	if dir := util.WritablePath(); dir != "" {
		return filepath.Join(dir, DefaultConfigFile)
	}
	if wd, errWd := os.Getwd(); errWd == nil {
		return filepath.Join(wd, DefaultConfigFile)
	}
	return DefaultConfigFile
}

// Load reads and validates the config file at path.
func Load(path string) (*Config, error) {
	data, errRead := os.ReadFile(path)
	if errRead != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, errRead)
	}
	return Parse(data)
}

// Parse decodes YAML and applies defaults.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal != nil {
		return nil, fmt.Errorf("config: parse: %w", errUnmarshal)
	}
	if errApply := cfg.applyDefaults(); errApply != nil {
		return nil, errApply
	}
	return &cfg, nil
}

// LoadDatabaseDSN reads only the database DSN from path.
func LoadDatabaseDSN(path string) (string, error) {
	cfg, errLoad := Load(path)
	if errLoad != nil {
		return "", errLoad
	}
	return cfg.Database.DSN, nil
}

func (c *Config) applyDefaults() error {
	c.Database.DSN = strings.TrimSpace(c.Database.DSN)
	if c.Database.DSN == "" {
		return errors.New("config: database.dsn is required")
	}
	if strings.TrimSpace(c.Server.Addr) == "" {
		c.Server.Addr = ":8318"
	}
	if c.JWT.Expiry <= 0 {
		c.JWT.Expiry = 24 * time.Hour
	}
	if c.Ledger.InitialBalance == nil {
		initial := int64(500)
		c.Ledger.InitialBalance = &initial
	}
	if *c.Ledger.InitialBalance < 0 {
		return errors.New("config: ledger.initial_balance must be non-negative")
	}
	if c.Ledger.DailyLimit <= 0 {
		c.Ledger.DailyLimit = 500
	}
	if c.Ledger.OpTimeout <= 0 {
		c.Ledger.OpTimeout = 5 * time.Second
	}
	if c.Ledger.MaxRetries == nil {
		retries := 3
		c.Ledger.MaxRetries = &retries
	}
	tz := strings.TrimSpace(c.Ledger.Timezone)
	if tz == "" {
		tz = "UTC"
	}
	loc, errLoc := time.LoadLocation(tz)
	if errLoc != nil {
		return fmt.Errorf("config: ledger.timezone: %w", errLoc)
	}
	c.Ledger.Timezone = tz
	c.Ledger.location = loc
	if c.Scheduler.Interval <= 0 {
		c.Scheduler.Interval = 5 * time.Minute
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	return nil
}
