package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked when no --config flag is given.
const DefaultConfigFile = "humidcast.yaml"

type Upstream struct {
	BaseURL  string        `yaml:"base_url"`
	Username string        `yaml:"username"`
	Password string        `yaml:"password"`
	Timeout  time.Duration `yaml:"timeout"`
}

type Refresh struct {
	WindowDays      int  `yaml:"window_days"`
	IntervalSeconds int  `yaml:"interval_seconds"`
	Workers         int  `yaml:"workers"`
	RunOnStart      bool `yaml:"run_on_start"`
}

// Interval is the sleep between the end of one cycle and the start of the next.
func (r Refresh) Interval() time.Duration {
	return time.Duration(r.IntervalSeconds) * time.Second
}

type Model struct {
	TestRatio   float64 `yaml:"test_ratio"`
	MinRows     int     `yaml:"min_rows"`
	Seed        uint64  `yaml:"seed"`
	RidgeLambda float64 `yaml:"ridge_lambda"`
}

type Server struct {
	Addr       string `yaml:"addr"`
	CORSOrigin string `yaml:"cors_origin"`
}

type Logging struct {
	Level   string `yaml:"level"`
	Service string `yaml:"service"`
}

type Redis struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Stream   string `yaml:"stream"`
	MaxLen   int64  `yaml:"max_len"`
	Group    string `yaml:"group"`
	Consumer string `yaml:"consumer"`
}

type Database struct {
	Enabled bool   `yaml:"enabled"`
	DSN     string `yaml:"dsn"`
}

// Config is the full humidcast configuration
type Config struct {
	Upstream Upstream `yaml:"upstream"`
	Refresh  Refresh  `yaml:"refresh"`
	Model    Model    `yaml:"model"`
	Server   Server   `yaml:"server"`
	Logging  Logging  `yaml:"logging"`
	Redis    Redis    `yaml:"redis"`
	Database Database `yaml:"database"`
}

// Defaults returns the configuration used when neither the file nor the
// environment sets a value.
func Defaults() Config {
	return Config{
		Upstream: Upstream{
			BaseURL: "http://localhost:3000",
			Timeout: 30 * time.Second,
		},
		Refresh: Refresh{
			WindowDays:      30,
			IntervalSeconds: 24 * 60 * 60,
			Workers:         4,
			RunOnStart:      true,
		},
		Model: Model{
			TestRatio:   0.2,
			MinRows:     5,
			Seed:        42,
			RidgeLambda: 1e-6,
		},
		Server: Server{
			Addr:       ":8080",
			CORSOrigin: "*",
		},
		Logging: Logging{
			Level:   "info",
			Service: "humidcast",
		},
		Redis: Redis{
			Addr:   "localhost:6379",
			Stream:   "humidity_forecasts",
			MaxLen:   500,
			Group:    "humidcast_archivers",
			Consumer: "archiver-1",
		},
	}
}

// Load builds a Config from defaults, then the YAML file at configPath (a
// missing file is not an error), then environment variables.
func Load(configPath string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(configPath)
	switch {
	case err == nil:
		if parseErr := yaml.Unmarshal(data, &cfg); parseErr != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", configPath, parseErr)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	loadEnv(&cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadEnv(cfg *Config) {
	setString(&cfg.Upstream.BaseURL, "HUMIDCAST_UPSTREAM_URL")
	setString(&cfg.Upstream.Username, "HUMIDCAST_USERNAME")
	setString(&cfg.Upstream.Password, "HUMIDCAST_PASSWORD")
	setDuration(&cfg.Upstream.Timeout, "HUMIDCAST_UPSTREAM_TIMEOUT")
	setInt(&cfg.Refresh.WindowDays, "HUMIDCAST_WINDOW_DAYS")
	setInt(&cfg.Refresh.IntervalSeconds, "HUMIDCAST_REFRESH_INTERVAL_SECONDS")
	setInt(&cfg.Refresh.Workers, "HUMIDCAST_WORKERS")
	setBool(&cfg.Refresh.RunOnStart, "HUMIDCAST_RUN_ON_START")
	setFloat64(&cfg.Model.TestRatio, "HUMIDCAST_TEST_RATIO")
	setInt(&cfg.Model.MinRows, "HUMIDCAST_MIN_ROWS")
	setUint64(&cfg.Model.Seed, "HUMIDCAST_SEED")
	setFloat64(&cfg.Model.RidgeLambda, "HUMIDCAST_RIDGE_LAMBDA")
	setString(&cfg.Server.Addr, "HUMIDCAST_ADDR")
	setString(&cfg.Server.CORSOrigin, "HUMIDCAST_CORS_ORIGIN")
	setString(&cfg.Logging.Level, "HUMIDCAST_LOG_LEVEL")
	setString(&cfg.Logging.Service, "HUMIDCAST_LOG_SERVICE")

	// Redis and MySQL share the variable names the rest of the stack uses.
	applyRedisEnv(&cfg.Redis)
	if dsn, ok := GetDatabaseDSN(); ok {
		cfg.Database.DSN = dsn
		cfg.Database.Enabled = true
	}
}

func (c *Config) validate() error {
	var errs []string
	if c.Upstream.BaseURL == "" {
		errs = append(errs, "upstream.base_url cannot be empty")
	}
	if c.Refresh.WindowDays <= 0 {
		errs = append(errs, "refresh.window_days must be positive")
	}
	if c.Refresh.IntervalSeconds <= 0 {
		errs = append(errs, "refresh.interval_seconds must be positive")
	}
	if c.Refresh.Workers <= 0 {
		errs = append(errs, "refresh.workers must be positive")
	}
	if c.Model.TestRatio <= 0 || c.Model.TestRatio >= 1 {
		errs = append(errs, "model.test_ratio must be between 0 and 1")
	}
	if c.Model.MinRows < 2 {
		errs = append(errs, "model.min_rows must be at least 2")
	}
	if c.Model.RidgeLambda < 0 {
		errs = append(errs, "model.ridge_lambda cannot be negative")
	}
	if c.Database.Enabled && c.Database.DSN == "" {
		errs = append(errs, "database.dsn is required when database.enabled is set")
	}
	if c.Redis.Enabled && c.Redis.Stream == "" {
		errs = append(errs, "redis.stream is required when redis.enabled is set")
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// RequireUpstream checks the settings needed to talk to the telemetry API.
// Load does not call it; only commands that reach the API do.
func (c *Config) RequireUpstream() error {
	if c.Upstream.Username == "" || c.Upstream.Password == "" {
		return fmt.Errorf("invalid config: upstream.username and upstream.password are required")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			*dst = parsed
		}
	}
}

func setUint64(dst *uint64, key string) {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseUint(v, 10, 64); err == nil {
			*dst = parsed
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = parsed
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			*dst = parsed
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			*dst = parsed
		}
	}
}
