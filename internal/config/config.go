package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// HTTPConfig controls the JSON API.
type HTTPConfig struct {
	Enabled    bool          `yaml:"enabled"`
	Addr       string        `yaml:"addr"`
	JWTSecret  string        `yaml:"jwt_secret"`
	RateLimit  int           `yaml:"rate_limit"`
	RateWindow time.Duration `yaml:"rate_window"`
}

// RedisConfig points at the rate limiter store. An empty Addr disables
// rate limiting.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// SMTPConfig enables e-mail reminders when Host is set.
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

// Config keeps runtime settings for the planner.
type Config struct {
	DatabaseURL      string        `yaml:"database_url"`
	TelegramToken    string        `yaml:"telegram_token"`
	Timezone         string        `yaml:"timezone"`
	LogLevel         string        `yaml:"log_level"`
	LogJSON          bool          `yaml:"log_json"`
	ReminderInterval time.Duration `yaml:"reminder_interval"`
	DailyReportAt    string        `yaml:"daily_report_at"`
	HTTP             HTTPConfig    `yaml:"http"`
	Redis            RedisConfig   `yaml:"redis"`
	SMTP             SMTPConfig    `yaml:"smtp"`

	location *time.Location
}

func defaults() Config {
	return Config{
		DatabaseURL:      "study_planner.db",
		LogLevel:         "info",
		ReminderInterval: time.Minute,
		DailyReportAt:    "08:00",
		HTTP: HTTPConfig{
			Enabled:    true,
			Addr:       ":8080",
			RateLimit:  120,
			RateWindow: time.Minute,
		},
		SMTP: SMTPConfig{Port: 587},
	}
}

// Load reads configuration with sane defaults. Values come from an optional
// .env file, then the YAML file named by CONFIG_FILE, then the environment;
// later sources win.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := defaults()
	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return cfg, err
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config file: %w", err)
	}
	defer f.Close()
	if err := yaml.NewDecoder(f).Decode(cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	setString(&cfg.DatabaseURL, "DATABASE_URL")
	setString(&cfg.TelegramToken, "TELEGRAM_TOKEN")
	setString(&cfg.Timezone, "TIMEZONE")
	setString(&cfg.LogLevel, "LOG_LEVEL")
	setString(&cfg.DailyReportAt, "DAILY_REPORT_AT")
	setString(&cfg.HTTP.Addr, "HTTP_ADDR")
	setString(&cfg.HTTP.JWTSecret, "JWT_SECRET")
	setString(&cfg.Redis.Addr, "REDIS_ADDR")
	setString(&cfg.Redis.Password, "REDIS_PASSWORD")
	setString(&cfg.SMTP.Host, "SMTP_HOST")
	setString(&cfg.SMTP.User, "SMTP_USER")
	setString(&cfg.SMTP.Password, "SMTP_PASSWORD")
	setString(&cfg.SMTP.From, "SMTP_FROM")

	var errs []error
	errs = append(errs,
		setBool(&cfg.LogJSON, "LOG_JSON"),
		setBool(&cfg.HTTP.Enabled, "HTTP_ENABLED"),
		setInt(&cfg.Redis.DB, "REDIS_DB"),
		setInt(&cfg.SMTP.Port, "SMTP_PORT"),
		setInt(&cfg.HTTP.RateLimit, "API_RATE_LIMIT"),
		setDuration(&cfg.ReminderInterval, "REMINDER_INTERVAL"),
		setDuration(&cfg.HTTP.RateWindow, "API_RATE_WINDOW"),
	)
	return errors.Join(errs...)
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL must not be empty")
	}
	if c.TelegramToken == "" && !c.HTTP.Enabled {
		return fmt.Errorf("nothing to run: set TELEGRAM_TOKEN or enable the HTTP API")
	}
	if c.HTTP.Enabled && c.HTTP.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required when the HTTP API is enabled")
	}
	if c.ReminderInterval < time.Second {
		return fmt.Errorf("REMINDER_INTERVAL must be at least 1s, got %s", c.ReminderInterval)
	}
	if c.HTTP.RateLimit < 0 || c.HTTP.RateWindow < 0 {
		return fmt.Errorf("API rate limit settings must not be negative")
	}

	loc := time.Local
	if c.Timezone != "" {
		var err error
		loc, err = time.LoadLocation(c.Timezone)
		if err != nil {
			return fmt.Errorf("TIMEZONE: %w", err)
		}
	}
	c.location = loc
	return nil
}

// Location is the time zone calendar days are counted in.
func (c Config) Location() *time.Location {
	if c.location == nil {
		return time.Local
	}
	return c.location
}

func setString(dst *string, key string) {
	if v, ok := lookup(key); ok {
		*dst = v
	}
}

func setBool(dst *bool, key string) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = v
	return nil
}

func setInt(dst *int, key string) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = v
	return nil
}

// setDuration accepts Go durations ("90s", "5m") and bare numbers of seconds.
func setDuration(dst *time.Duration, key string) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		*dst = time.Duration(secs) * time.Second
		return nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = v
	return nil
}

func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}
