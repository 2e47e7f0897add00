package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata" // history.timezone must resolve on hosts without zoneinfo

	"github.com/spf13/viper"
)

type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	DB        DBConfig        `mapstructure:"db"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Auth      AuthConfig      `mapstructure:"auth"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Accounts  AccountsConfig  `mapstructure:"accounts"`
	History   HistoryConfig   `mapstructure:"history"`
	Analytics AnalyticsConfig `mapstructure:"analytics"`
	Alerts    AlertsConfig    `mapstructure:"alerts"`
}

type AppConfig struct {
	Env string `mapstructure:"env"`
}

type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type DBConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

type RedisConfig struct {
	URL     string `mapstructure:"url"`
	Channel string `mapstructure:"channel"`
}

type AuthConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	JWTSecret string `mapstructure:"jwt_secret"`
	APIKey    string `mapstructure:"api_key"`
	APISecret string `mapstructure:"api_secret"`
	IngestKey string `mapstructure:"ingest_key"`
}

type RateLimitConfig struct {
	IngestPerMinute float64 `mapstructure:"ingest_per_minute"`
	ReadPerMinute   float64 `mapstructure:"read_per_minute"`
	AuthPerMinute   float64 `mapstructure:"auth_per_minute"`
}

type AccountsConfig struct {
	StaleAfter    time.Duration `mapstructure:"stale_after"`
	SweepSchedule string        `mapstructure:"sweep_schedule"`
}

type HistoryConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule"`
	Timezone string `mapstructure:"timezone"`
}

type AnalyticsConfig struct {
	MarginCritical float64 `mapstructure:"margin_critical"`
	MarginWarning  float64 `mapstructure:"margin_warning"`
}

type AlertsConfig struct {
	EquityBelow         float64 `mapstructure:"equity_below"`
	MarginPercentBelow  float64 `mapstructure:"margin_percent_below"`
	LossBeyond          float64 `mapstructure:"loss_beyond"`
	AutotradingDisabled bool    `mapstructure:"autotrading_disabled"`
}

// Load reads an optional YAML file and overlays the environment. Keys map to
// MT4_<SECTION>_<KEY>; DATABASE_URL and PORT are honoured as-is.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("MT4")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	_ = v.BindEnv("db.dsn", "MT4_DB_DSN", "DATABASE_URL")
	_ = v.BindEnv("server.port", "MT4_SERVER_PORT", "PORT")

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "development")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.max_body_bytes", 1<<20)
	v.SetDefault("server.shutdown_timeout", "5s")
	v.SetDefault("server.allowed_origins", []string{})
	v.SetDefault("log.level", "info")
	v.SetDefault("db.max_open_conns", 10)
	v.SetDefault("db.max_idle_conns", 5)
	v.SetDefault("db.conn_max_lifetime", "30m")
	v.SetDefault("db.auto_migrate", false)
	v.SetDefault("redis.url", "")
	v.SetDefault("redis.channel", "mt4:events")
	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.api_key", "")
	v.SetDefault("auth.api_secret", "")
	v.SetDefault("auth.ingest_key", "")
	v.SetDefault("rate_limit.ingest_per_minute", 120)
	v.SetDefault("rate_limit.read_per_minute", 600)
	v.SetDefault("rate_limit.auth_per_minute", 10)
	v.SetDefault("accounts.stale_after", "0s")
	v.SetDefault("accounts.sweep_schedule", "@every 1m")
	v.SetDefault("history.enabled", true)
	v.SetDefault("history.schedule", "0 0 0 * * *")
	v.SetDefault("history.timezone", "Asia/Beirut")
	v.SetDefault("analytics.margin_critical", 150)
	v.SetDefault("analytics.margin_warning", 300)
	v.SetDefault("alerts.equity_below", 0)
	v.SetDefault("alerts.margin_percent_below", 0)
	v.SetDefault("alerts.loss_beyond", 0)
	v.SetDefault("alerts.autotrading_disabled", false)
}

// Validate checks the settings every binary needs.
func (c Config) Validate() error {
	if strings.TrimSpace(c.DB.DSN) == "" {
		return errors.New("DATABASE_URL is required")
	}
	if c.Auth.Enabled {
		if c.Auth.JWTSecret == "" {
			return errors.New("auth.jwt_secret is required when auth is enabled")
		}
		if c.Auth.APIKey == "" || c.Auth.APISecret == "" {
			return errors.New("auth.api_key and auth.api_secret are required when auth is enabled")
		}
	}
	if _, err := c.History.Location(); err != nil {
		return fmt.Errorf("history.timezone: %w", err)
	}
	if c.Analytics.MarginCritical > c.Analytics.MarginWarning {
		return errors.New("analytics.margin_critical must not exceed analytics.margin_warning")
	}
	return nil
}

// Production reports whether the app runs with production logging.
func (c Config) Production() bool {
	return strings.EqualFold(c.App.Env, "production")
}

// Location resolves the capture timezone. An empty name means UTC.
func (h HistoryConfig) Location() (*time.Location, error) {
	if h.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(h.Timezone)
}
