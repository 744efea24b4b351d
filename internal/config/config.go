package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the lending service. Every section is
// read from flat environment variables.
type Config struct {
	Server    ServerConfig    `mapstructure:",squash"`
	Database  DatabaseConfig  `mapstructure:",squash"`
	Redis     RedisConfig     `mapstructure:",squash"`
	Scheduler SchedulerConfig `mapstructure:",squash"`
	Logging   LoggingConfig   `mapstructure:",squash"`
	Business  BusinessConfig  `mapstructure:",squash"`
	SMTP      SMTPConfig      `mapstructure:",squash"`
	Report    ReportConfig    `mapstructure:",squash"`
	Health    HealthConfig    `mapstructure:",squash"`
}

type ServerConfig struct {
	Port         string        `mapstructure:"SERVER_PORT"`
	Host         string        `mapstructure:"SERVER_HOST"`
	Env          string        `mapstructure:"ENV"`
	ReadTimeout  time.Duration `mapstructure:"SERVER_READ_TIMEOUT"`
	WriteTimeout time.Duration `mapstructure:"SERVER_WRITE_TIMEOUT"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"DATABASE_DRIVER"`
	URL             string        `mapstructure:"DATABASE_URL"`
	Host            string        `mapstructure:"DATABASE_HOST"`
	Port            string        `mapstructure:"DATABASE_PORT"`
	Name            string        `mapstructure:"DATABASE_NAME"`
	User            string        `mapstructure:"DATABASE_USER"`
	Password        string        `mapstructure:"DATABASE_PASSWORD"`
	SSLMode         string        `mapstructure:"DATABASE_SSLMODE"`
	MaxOpenConns    int           `mapstructure:"DATABASE_MAX_OPEN_CONNS"`
	MaxIdleConns    int           `mapstructure:"DATABASE_MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `mapstructure:"DATABASE_CONN_MAX_LIFETIME"`
	AutoMigrate     bool          `mapstructure:"DATABASE_AUTO_MIGRATE"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"REDIS_ENABLED"`
	Host     string `mapstructure:"REDIS_HOST"`
	Port     string `mapstructure:"REDIS_PORT"`
	Password string `mapstructure:"REDIS_PASSWORD"`
	DB       int    `mapstructure:"REDIS_DB"`
}

type SchedulerConfig struct {
	ReminderSpec string `mapstructure:"SCHEDULER_REMINDER_SPEC"`
	ExportSpec   string `mapstructure:"SCHEDULER_EXPORT_SPEC"`
	Timezone     string `mapstructure:"SCHEDULER_TIMEZONE"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"LOG_LEVEL"`
	Format string `mapstructure:"LOG_FORMAT"`
}

type BusinessConfig struct {
	DefaultTermMonths int           `mapstructure:"DEFAULT_TERM_MONTHS"`
	ReminderDaysAhead int           `mapstructure:"REMINDER_DAYS_AHEAD"`
	HistoryLimit      int           `mapstructure:"ANALYTICS_HISTORY_LIMIT"`
	PaymentLockTTL    time.Duration `mapstructure:"PAYMENT_LOCK_TTL"`
	IdempotencyTTL    time.Duration `mapstructure:"PAYMENT_IDEMPOTENCY_TTL"`
	DefaultPageSize   int           `mapstructure:"DEFAULT_PAGE_SIZE"`
}

type SMTPConfig struct {
	Enabled  bool   `mapstructure:"SMTP_ENABLED"`
	Host     string `mapstructure:"SMTP_HOST"`
	Port     int    `mapstructure:"SMTP_PORT"`
	Username string `mapstructure:"SMTP_USERNAME"`
	Password string `mapstructure:"SMTP_PASSWORD"`
	From     string `mapstructure:"SMTP_FROM"`
}

type ReportConfig struct {
	Dir string `mapstructure:"REPORT_DIR"`
}

type HealthConfig struct {
	Timeout time.Duration `mapstructure:"HEALTH_CHECK_TIMEOUT"`
}

var defaults = map[string]interface{}{
	"SERVER_PORT":                "8080",
	"SERVER_HOST":                "0.0.0.0",
	"ENV":                        "development",
	"SERVER_READ_TIMEOUT":        "15s",
	"SERVER_WRITE_TIMEOUT":       "15s",
	"DATABASE_DRIVER":            "postgres",
	"DATABASE_URL":               "",
	"DATABASE_HOST":              "localhost",
	"DATABASE_PORT":              "5432",
	"DATABASE_NAME":              "agriloan",
	"DATABASE_USER":              "postgres",
	"DATABASE_PASSWORD":          "",
	"DATABASE_SSLMODE":           "disable",
	"DATABASE_MAX_OPEN_CONNS":    25,
	"DATABASE_MAX_IDLE_CONNS":    5,
	"DATABASE_CONN_MAX_LIFETIME": "5m",
	"DATABASE_AUTO_MIGRATE":      true,
	"REDIS_ENABLED":              true,
	"REDIS_HOST":                 "localhost",
	"REDIS_PORT":                 "6379",
	"REDIS_PASSWORD":             "",
	"REDIS_DB":                   0,
	"SCHEDULER_REMINDER_SPEC":    "0 7 * * *",
	"SCHEDULER_EXPORT_SPEC":      "0 6 * * 1",
	"SCHEDULER_TIMEZONE":         "UTC",
	"LOG_LEVEL":                  "info",
	"LOG_FORMAT":                 "json",
	"DEFAULT_TERM_MONTHS":        12,
	"REMINDER_DAYS_AHEAD":        3,
	"ANALYTICS_HISTORY_LIMIT":    10,
	"PAYMENT_LOCK_TTL":           "30s",
	"PAYMENT_IDEMPOTENCY_TTL":    "24h",
	"DEFAULT_PAGE_SIZE":          20,
	"SMTP_ENABLED":               false,
	"SMTP_HOST":                  "localhost",
	"SMTP_PORT":                  587,
	"SMTP_USERNAME":              "",
	"SMTP_PASSWORD":              "",
	"SMTP_FROM":                  "no-reply@agriloan.local",
	"REPORT_DIR":                 "./reports",
	"HEALTH_CHECK_TIMEOUT":       "5s",
}

// Load reads configuration from environment variables and an optional .env file
func Load() (*Config, error) {
	// Existing environment variables win over .env entries
	_ = godotenv.Load(".env")
	_ = godotenv.Load("deployments/.env")

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("SERVER_PORT is required")
	}

	switch c.Database.Driver {
	case DriverPostgres:
		if c.Database.URL == "" && c.Database.Host == "" {
			return fmt.Errorf("DATABASE_URL or DATABASE_HOST is required")
		}
	case DriverSQLite:
		if c.Database.URL == "" && c.Database.Name == "" {
			return fmt.Errorf("DATABASE_URL or DATABASE_NAME is required for sqlite3")
		}
	default:
		return fmt.Errorf("DATABASE_DRIVER must be %q or %q", DriverPostgres, DriverSQLite)
	}

	if c.Business.DefaultTermMonths <= 0 {
		return fmt.Errorf("DEFAULT_TERM_MONTHS must be greater than 0")
	}

	if c.Business.ReminderDaysAhead < 0 {
		return fmt.Errorf("REMINDER_DAYS_AHEAD must not be negative")
	}

	if c.Business.HistoryLimit <= 0 {
		return fmt.Errorf("ANALYTICS_HISTORY_LIMIT must be greater than 0")
	}

	if c.Business.PaymentLockTTL <= 0 {
		return fmt.Errorf("PAYMENT_LOCK_TTL must be a positive duration")
	}

	if c.Business.IdempotencyTTL <= 0 {
		return fmt.Errorf("PAYMENT_IDEMPOTENCY_TTL must be a positive duration")
	}

	if _, err := time.LoadLocation(c.Scheduler.Timezone); err != nil {
		return fmt.Errorf("SCHEDULER_TIMEZONE must be a valid IANA zone: %w", err)
	}

	if c.SMTP.Enabled && (c.SMTP.Host == "" || c.SMTP.From == "") {
		return fmt.Errorf("SMTP_HOST and SMTP_FROM are required when SMTP_ENABLED is set")
	}

	return nil
}

// Supported database drivers
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

// DSN returns the connection string for the configured driver
func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	if d.Driver == DriverSQLite {
		return d.Name
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// Addr returns the redis host:port pair
func (r RedisConfig) Addr() string {
	return r.Host + ":" + r.Port
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development" || c.Server.Env == "dev"
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Server.Env, "production") || strings.EqualFold(c.Server.Env, "prod")
}

// Location returns the scheduler time zone, UTC when it cannot be loaded
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Scheduler.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
