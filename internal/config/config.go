// Package config loads the caseflow service configuration from YAML with
// environment overrides, and hot-reloads it on file change.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full caseflow service configuration.
type Config struct {
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Temporal   TemporalConfig   `mapstructure:"temporal"`
	Extraction ExtractionConfig `mapstructure:"extraction"`
	SMTP       SMTPConfig       `mapstructure:"smtp"`
	IMAP       IMAPConfig       `mapstructure:"imap"`
	HTTP       HTTPConfig       `mapstructure:"http"`
	Identity   IdentityConfig   `mapstructure:"identity"`
	Tracing    TracingConfig    `mapstructure:"tracing"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"ssl_mode"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
}

type TemporalConfig struct {
	HostPort  string `mapstructure:"host_port"`
	Namespace string `mapstructure:"namespace"`
}

type ExtractionConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	TimeoutSeconds int           `mapstructure:"timeout_seconds"`
}

type SMTPConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
	FromAddress string `mapstructure:"from_address"`
}

type IMAPConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	Server          string `mapstructure:"server"`
	Port            int    `mapstructure:"port"`
	Username        string `mapstructure:"username"`
	Password        string `mapstructure:"password"`
	Mailbox         string `mapstructure:"mailbox"`
	IntervalSeconds int    `mapstructure:"interval_seconds"`
}

type HTTPConfig struct {
	AdminPort   int    `mapstructure:"admin_port"`
	MetricsPort int    `mapstructure:"metrics_port"`
	JWTSecret   string `mapstructure:"jwt_secret"`
}

type IdentityConfig struct {
	HashSalt         string `mapstructure:"hash_salt"`
	ContractSeedPath string `mapstructure:"contract_seed_path"`
}

type TracingConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Path returns the config file location, CONFIG_PATH or the default.
func Path() string {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	return "/app/config/caseflow.yaml"
}

// Load reads the config file and applies CASEFLOW_* env overrides
// (CASEFLOW_DATABASE_HOST overrides database.host).
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("CASEFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		// Missing file is fine, env and defaults carry the config.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "caseflow")
	v.SetDefault("database.name", "caseflow")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("extraction.base_url", "http://extraction-service:8000")
	v.SetDefault("extraction.timeout_seconds", 30)
	v.SetDefault("smtp.port", 587)
	v.SetDefault("imap.port", 993)
	v.SetDefault("imap.mailbox", "INBOX")
	v.SetDefault("imap.interval_seconds", 30)
	v.SetDefault("http.admin_port", 8081)
	v.SetDefault("http.metrics_port", 2112)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Validate rejects configurations that cannot possibly work.
func (c *Config) Validate() error {
	if c.Identity.HashSalt == "" {
		return fmt.Errorf("identity.hash_salt must be set")
	}
	if c.SMTP.Host == "" {
		return fmt.Errorf("smtp.host must be set")
	}
	if c.SMTP.FromAddress == "" {
		return fmt.Errorf("smtp.from_address must be set")
	}
	if c.IMAP.Enabled && c.IMAP.Server == "" {
		return fmt.Errorf("imap.server must be set when imap is enabled")
	}
	return nil
}

// ExtractionTimeout returns the extraction call timeout as a duration.
func (c *Config) ExtractionTimeout() time.Duration {
	return time.Duration(c.Extraction.TimeoutSeconds) * time.Second
}

// IMAPInterval returns the poll interval as a duration.
func (c *Config) IMAPInterval() time.Duration {
	return time.Duration(c.IMAP.IntervalSeconds) * time.Second
}
