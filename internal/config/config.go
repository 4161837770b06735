// Package config loads the poller configuration from an optional YAML file
// and environment variables.
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dwsmith1983/quaybridge/pkg/types"
)

// Defaults applied when neither the file nor the environment sets a value.
// The circuit breaker has no default threshold: it stays off unless
// breaker.failThreshold is positive.
const (
	DefaultQuayBaseURL      = "https://quay.io"
	DefaultTokenName        = "quay-build-lambda-api-token"
	DefaultEnvTokenName     = "QUAY_TOKEN"
	DefaultHTTPTimeout      = "30s"
	DefaultMaxRedirects     = 5
	DefaultBreakerCooldown  = "30s"
	DefaultLogLevel         = "info"
	DefaultServiceName      = "quaybridge"
	EnvConfigFile           = "BRIDGE_CONFIG_FILE"
	envQuayBaseURL          = "QUAY_BASE_URL"
	envTokenSource          = "QUAY_TOKEN_SOURCE"
	envTokenName            = "QUAY_TOKEN_NAME"
	envHTTPTimeout          = "HTTP_TIMEOUT"
	envMaxRedirects         = "QUAY_MAX_REDIRECTS"
	envBreakerFailThreshold = "BREAKER_FAIL_THRESHOLD"
	envBreakerCooldown      = "BREAKER_COOLDOWN"
	envLogLevel             = "LOG_LEVEL"
	envRegion               = "AWS_REGION"
	envOTLPEndpoint         = "OTEL_EXPORTER_OTLP_ENDPOINT"
	envServiceName          = "OTEL_SERVICE_NAME"
)

// Option adjusts how Load resolves the configuration.
type Option func(*loadOptions)

type loadOptions struct {
	defaultSource  types.TokenSource
	overrideSource types.TokenSource
}

// WithDefaultTokenSource sets the token source used when neither the file nor
// the environment names one.
func WithDefaultTokenSource(src types.TokenSource) Option {
	return func(o *loadOptions) { o.defaultSource = src }
}

// WithTokenSource forces the token source, taking precedence over the file
// and the environment. An empty src is ignored.
func WithTokenSource(src types.TokenSource) Option {
	return func(o *loadOptions) { o.overrideSource = src }
}

// Load reads the YAML file at path (skipped when path is empty), applies
// environment overrides and defaults, and validates the result.
func Load(path string, opts ...Option) (*types.BridgeConfig, error) {
	lo := loadOptions{defaultSource: types.TokenSourceSSM}
	for _, o := range opts {
		o(&lo)
	}

	var cfg types.BridgeConfig
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	if lo.overrideSource != "" {
		cfg.Token.Source = lo.overrideSource
	}
	if cfg.Token.Source == "" {
		cfg.Token.Source = lo.defaultSource
	}
	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &cfg, nil
}

// FromEnv loads the file named by BRIDGE_CONFIG_FILE, if any.
func FromEnv() (*types.BridgeConfig, error) {
	return Load(os.Getenv(EnvConfigFile))
}

func applyEnv(cfg *types.BridgeConfig) error {
	cfg.QuayBaseURL = envOrDefault(envQuayBaseURL, cfg.QuayBaseURL)
	cfg.Token.Source = types.TokenSource(envOrDefault(envTokenSource, string(cfg.Token.Source)))
	cfg.Token.Name = envOrDefault(envTokenName, cfg.Token.Name)
	cfg.HTTP.Timeout = envOrDefault(envHTTPTimeout, cfg.HTTP.Timeout)
	cfg.Breaker.Cooldown = envOrDefault(envBreakerCooldown, cfg.Breaker.Cooldown)
	cfg.LogLevel = envOrDefault(envLogLevel, cfg.LogLevel)
	cfg.Region = envOrDefault(envRegion, cfg.Region)
	cfg.OTLPEndpoint = envOrDefault(envOTLPEndpoint, cfg.OTLPEndpoint)
	cfg.ServiceName = envOrDefault(envServiceName, cfg.ServiceName)

	if v := os.Getenv(envMaxRedirects); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", envMaxRedirects, err)
		}
		cfg.HTTP.MaxRedirects = n
	}
	if v := os.Getenv(envBreakerFailThreshold); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", envBreakerFailThreshold, err)
		}
		cfg.Breaker.FailThreshold = n
	}
	return nil
}

func applyDefaults(cfg *types.BridgeConfig) {
	if cfg.QuayBaseURL == "" {
		cfg.QuayBaseURL = DefaultQuayBaseURL
	}
	if cfg.Token.Name == "" {
		if cfg.Token.Source == types.TokenSourceEnv {
			cfg.Token.Name = DefaultEnvTokenName
		} else {
			cfg.Token.Name = DefaultTokenName
		}
	}
	if cfg.HTTP.Timeout == "" {
		cfg.HTTP.Timeout = DefaultHTTPTimeout
	}
	// Redirects cannot be disabled from configuration; zero means the default.
	if cfg.HTTP.MaxRedirects == 0 {
		cfg.HTTP.MaxRedirects = DefaultMaxRedirects
	}
	if cfg.Breaker.Cooldown == "" {
		cfg.Breaker.Cooldown = DefaultBreakerCooldown
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = DefaultLogLevel
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = DefaultServiceName
	}
}

func validate(cfg *types.BridgeConfig) error {
	u, err := url.Parse(cfg.QuayBaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("quayBaseURL %q must be an absolute URL", cfg.QuayBaseURL)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return fmt.Errorf("quayBaseURL scheme %q is not supported", u.Scheme)
	}
	switch cfg.Token.Source {
	case types.TokenSourceSSM, types.TokenSourceSecretsManager, types.TokenSourceEnv:
	default:
		return fmt.Errorf("token.source %q is not one of ssm, secretsmanager, env", cfg.Token.Source)
	}
	if _, err := parsePositiveDuration(cfg.HTTP.Timeout); err != nil {
		return fmt.Errorf("http.timeout: %w", err)
	}
	if cfg.HTTP.MaxRedirects < 0 {
		return fmt.Errorf("http.maxRedirects must not be negative")
	}
	if cfg.Breaker.FailThreshold < 0 {
		return fmt.Errorf("breaker.failThreshold must not be negative")
	}
	if _, err := parsePositiveDuration(cfg.Breaker.Cooldown); err != nil {
		return fmt.Errorf("breaker.cooldown: %w", err)
	}
	if _, err := ParseLogLevel(cfg.LogLevel); err != nil {
		return err
	}
	return nil
}

// HTTPTimeout returns the per-hop request timeout of a validated config.
func HTTPTimeout(cfg *types.BridgeConfig) time.Duration {
	d, _ := parsePositiveDuration(cfg.HTTP.Timeout)
	return d
}

// BreakerEnabled reports whether fetches are guarded by a circuit breaker.
func BreakerEnabled(cfg *types.BridgeConfig) bool {
	return cfg.Breaker.FailThreshold > 0
}

// BreakerCooldown returns how long the circuit breaker stays open.
func BreakerCooldown(cfg *types.BridgeConfig) time.Duration {
	d, _ := parsePositiveDuration(cfg.Breaker.Cooldown)
	return d
}

// ParseLogLevel parses debug, info, warn or error (case-insensitive).
func ParseLogLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("logLevel %q: %w", s, err)
	}
	return level, nil
}

func parsePositiveDuration(s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("duration %q must be positive", s)
	}
	return d, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
