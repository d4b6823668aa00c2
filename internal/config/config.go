package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/kirillkom/plagctl/internal/core/domain"
	"github.com/kirillkom/plagctl/internal/infrastructure/resilience"
)

const (
	StoreFile   = "file"
	StoreSQLite = "sqlite"
	StoreMemory = "memory"
)

type Config struct {
	APIURL        string `yaml:"api_url" validate:"omitempty,url"`
	DefaultAPIURL string `yaml:"default_api_url" validate:"required,url"`

	StoreBackend string `yaml:"store_backend" validate:"oneof=file sqlite memory"`
	StorePath    string `yaml:"store_path"`

	LogLevel  string `yaml:"log_level" validate:"oneof=debug info warn error"`
	LogFormat string `yaml:"log_format" validate:"oneof=text json"`

	HTTPTimeoutSeconds int     `yaml:"http_timeout_seconds" validate:"min=1"`
	RateLimitRPS       float64 `yaml:"rate_limit_rps" validate:"min=0"`
	RateLimitBurst     int     `yaml:"rate_limit_burst" validate:"min=0"`

	FeedPath         string   `yaml:"feed_path" validate:"required,startswith=/"`
	FeedGraceSeconds int      `yaml:"feed_grace_seconds" validate:"min=0"`
	StartMarkers     []string `yaml:"start_markers"`
	CompleteMarkers  []string `yaml:"complete_markers"`

	RetryMaxAttempts          int     `yaml:"retry_max_attempts" validate:"min=1,max=10"`
	BreakerEnabled            bool    `yaml:"breaker_enabled"`
	BreakerMinRequests        int     `yaml:"breaker_min_requests" validate:"min=1"`
	BreakerFailureRatio       float64 `yaml:"breaker_failure_ratio" validate:"gt=0,lte=1"`
	BreakerOpenTimeoutSeconds int     `yaml:"breaker_open_timeout_seconds" validate:"min=1"`

	MaxUploadMB     int    `yaml:"max_upload_mb" validate:"min=1"`
	DiscoverOnStart bool   `yaml:"discover_on_start"`
	MetricsAddr     string `yaml:"metrics_addr" validate:"omitempty,hostname_port"`
}

func Defaults() Config {
	markers := domain.DefaultMarkers()
	return Config{
		DefaultAPIURL: "http://localhost:8888",

		StoreBackend: StoreFile,

		LogLevel:  "warn",
		LogFormat: "text",

		HTTPTimeoutSeconds: 600,

		FeedPath:         "/ws/progress",
		FeedGraceSeconds: 30,
		StartMarkers:     markers.Start,
		CompleteMarkers:  markers.Complete,

		RetryMaxAttempts:          1,
		BreakerEnabled:            true,
		BreakerMinRequests:        5,
		BreakerFailureRatio:       0.6,
		BreakerOpenTimeoutSeconds: 30,

		MaxUploadMB:     50,
		DiscoverOnStart: true,
	}
}

// Load starts from defaults, applies the YAML file named by PLAG_CONFIG_FILE
// when set, then environment overrides.
func Load() (Config, error) {
	cfg := Defaults()
	if path := os.Getenv("PLAG_CONFIG_FILE"); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	cfg.APIURL = mustEnv("PLAG_API_URL", cfg.APIURL)
	cfg.DefaultAPIURL = mustEnv("PLAG_DEFAULT_API_URL", cfg.DefaultAPIURL)

	cfg.StoreBackend = strings.ToLower(mustEnv("PLAG_STORE_BACKEND", cfg.StoreBackend))
	cfg.StorePath = mustEnv("PLAG_STORE_PATH", cfg.StorePath)

	cfg.LogLevel = strings.ToLower(mustEnv("PLAG_LOG_LEVEL", cfg.LogLevel))
	cfg.LogFormat = strings.ToLower(mustEnv("PLAG_LOG_FORMAT", cfg.LogFormat))

	cfg.HTTPTimeoutSeconds = mustEnvInt("PLAG_HTTP_TIMEOUT_SECONDS", cfg.HTTPTimeoutSeconds)
	cfg.RateLimitRPS = mustEnvFloat("PLAG_RATE_LIMIT_RPS", cfg.RateLimitRPS)
	cfg.RateLimitBurst = mustEnvInt("PLAG_RATE_LIMIT_BURST", cfg.RateLimitBurst)

	cfg.FeedPath = mustEnv("PLAG_FEED_PATH", cfg.FeedPath)
	cfg.FeedGraceSeconds = mustEnvInt("PLAG_FEED_GRACE_SECONDS", cfg.FeedGraceSeconds)
	cfg.StartMarkers = mustEnvList("PLAG_START_MARKERS", cfg.StartMarkers)
	cfg.CompleteMarkers = mustEnvList("PLAG_COMPLETE_MARKERS", cfg.CompleteMarkers)

	cfg.RetryMaxAttempts = mustEnvInt("PLAG_RETRY_MAX_ATTEMPTS", cfg.RetryMaxAttempts)
	cfg.BreakerEnabled = mustEnvBool("PLAG_BREAKER_ENABLED", cfg.BreakerEnabled)
	cfg.BreakerMinRequests = mustEnvInt("PLAG_BREAKER_MIN_REQUESTS", cfg.BreakerMinRequests)
	cfg.BreakerFailureRatio = mustEnvFloat("PLAG_BREAKER_FAILURE_RATIO", cfg.BreakerFailureRatio)
	cfg.BreakerOpenTimeoutSeconds = mustEnvInt("PLAG_BREAKER_OPEN_TIMEOUT_SECONDS", cfg.BreakerOpenTimeoutSeconds)

	cfg.MaxUploadMB = mustEnvInt("PLAG_MAX_UPLOAD_MB", cfg.MaxUploadMB)
	cfg.DiscoverOnStart = mustEnvBool("PLAG_DISCOVER_ON_START", cfg.DiscoverOnStart)
	cfg.MetricsAddr = mustEnv("PLAG_METRICS_ADDR", cfg.MetricsAddr)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

var validate = validator.New()

func (c Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate config: %w", err)
	}
	details := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		details = append(details, fe.Field()+": "+formatValidationError(fe))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(details, "; "))
}

func formatValidationError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "url":
		return "must be an absolute URL"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "startswith":
		return "must start with " + fe.Param()
	case "hostname_port":
		return "must be host:port"
	default:
		return "invalid value"
	}
}

func (c Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutSeconds) * time.Second
}

func (c Config) FeedGracePeriod() time.Duration {
	return time.Duration(c.FeedGraceSeconds) * time.Second
}

func (c Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

func (c Config) Markers() domain.MarkerSet {
	return domain.MarkerSet{Start: c.StartMarkers, Complete: c.CompleteMarkers}
}

func (c Config) Resilience() resilience.Config {
	out := resilience.DefaultConfig()
	out.RetryMaxAttempts = c.RetryMaxAttempts
	out.BreakerEnabled = c.BreakerEnabled
	out.BreakerMinRequests = uint32(c.BreakerMinRequests)
	out.BreakerFailureRatio = c.BreakerFailureRatio
	out.BreakerOpenTimeout = time.Duration(c.BreakerOpenTimeoutSeconds) * time.Second
	return out
}

// ResolvedStorePath returns StorePath or a per-user default for the backend.
func (c Config) ResolvedStorePath() string {
	if c.StorePath != "" {
		return c.StorePath
	}
	name := "state.json"
	if c.StoreBackend == StoreSQLite {
		name = "state.db"
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "plagctl", name)
}

func loadFile(path string, cfg *Config) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func mustEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func mustEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func mustEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return n
}

func mustEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}

func mustEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
