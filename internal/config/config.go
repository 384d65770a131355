package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/eugenenazirov/order-totals/internal/calculator"
	"github.com/eugenenazirov/order-totals/internal/logging"
	"github.com/eugenenazirov/order-totals/internal/storage"
)

const (
	defaultPort             = "8080"
	defaultRateLimitRPS     = 25.0
	defaultRateLimitBurst   = 50
	defaultMetricsNamespace = "order_totals"
)

// Config aggregates runtime configuration resolved from multiple sources.
// Precedence: CLI flags > YAML config > Environment variables > Defaults
type Config struct {
	Port                 string
	Pricing              calculator.Rules
	ShutdownGracePeriod  time.Duration
	ReadHeaderTimeout    time.Duration
	WriteTimeout         time.Duration
	IdleTimeout          time.Duration
	EnableRequestLogging bool
	LogLevel             string
	RateLimitRPS         float64
	RateLimitBurst       int
	TrustForwardedFor    bool
	MetricsEnabled       bool
	MetricsNamespace     string
}

// yamlConfig represents the YAML configuration file structure. Pointer fields
// distinguish an explicit zero from an omitted key.
type yamlConfig struct {
	Port                 string        `yaml:"port"`
	Pricing              yamlPricing   `yaml:"pricing"`
	ShutdownGracePeriod  string        `yaml:"shutdown_grace_period"`
	ReadHeaderTimeout    string        `yaml:"read_header_timeout"`
	WriteTimeout         string        `yaml:"write_timeout"`
	IdleTimeout          string        `yaml:"idle_timeout"`
	EnableRequestLogging *bool         `yaml:"enable_request_logging"`
	LogLevel             string        `yaml:"log_level"`
	RateLimit            yamlRateLimit `yaml:"rate_limit"`
	Metrics              yamlMetrics   `yaml:"metrics"`
}

// yamlPricing represents the pricing section in YAML.
type yamlPricing struct {
	TaxRate           *float64 `yaml:"tax_rate"`
	FreeShipThreshold *float64 `yaml:"free_ship_threshold"`
	ShipPerKg         *float64 `yaml:"ship_per_kg"`
}

// yamlRateLimit represents the rate limit section in YAML.
type yamlRateLimit struct {
	RPS               *float64 `yaml:"rps"`
	Burst             *int     `yaml:"burst"`
	TrustForwardedFor *bool    `yaml:"trust_forwarded_for"`
}

type yamlMetrics struct {
	Enabled   *bool  `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
}

// CLIOverrides holds command-line flag overrides.
type CLIOverrides struct {
	ConfigFile        string
	Port              *string
	LogLevel          *string
	TaxRate           *float64
	FreeShipThreshold *float64
	ShipPerKg         *float64
	RateLimitRPS      *float64
	RateLimitBurst    *int
	TrustForwardedFor *bool
}

// Load extracts configuration from multiple sources with precedence:
// CLI flags > YAML config > Environment variables > Defaults
func Load(overrides *CLIOverrides) (Config, error) {
	cfg := defaultConfig()

	// Environment variables sit just above defaults.
	if err := applyEnvConfig(&cfg); err != nil {
		return Config{}, err
	}

	if overrides != nil && overrides.ConfigFile != "" {
		yamlCfg, err := loadFromFile(overrides.ConfigFile)
		if err != nil {
			return Config{}, fmt.Errorf("load YAML config: %w", err)
		}
		if err := applyYAMLConfig(&cfg, yamlCfg); err != nil {
			return Config{}, fmt.Errorf("apply YAML config: %w", err)
		}
	}

	if overrides != nil {
		applyCLIOverrides(&cfg, overrides)
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// defaultConfig returns a Config with default values.
func defaultConfig() Config {
	return Config{
		Port:                 defaultPort,
		Pricing:              calculator.DefaultRules(),
		ShutdownGracePeriod:  10 * time.Second,
		ReadHeaderTimeout:    5 * time.Second,
		WriteTimeout:         15 * time.Second,
		IdleTimeout:          60 * time.Second,
		EnableRequestLogging: true,
		LogLevel:             logging.DefaultLevel,
		RateLimitRPS:         defaultRateLimitRPS,
		RateLimitBurst:       defaultRateLimitBurst,
		MetricsEnabled:       true,
		MetricsNamespace:     defaultMetricsNamespace,
	}
}

// loadFromFile loads configuration from a YAML file.
func loadFromFile(path string) (*yamlConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var yamlCfg yamlConfig
	if err := yaml.Unmarshal(data, &yamlCfg); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}

	return &yamlCfg, nil
}

// applyYAMLConfig applies YAML configuration to the Config struct.
func applyYAMLConfig(cfg *Config, yamlCfg *yamlConfig) error {
	if yamlCfg.Port != "" {
		cfg.Port = yamlCfg.Port
	}

	if yamlCfg.Pricing.TaxRate != nil {
		cfg.Pricing.TaxRate = *yamlCfg.Pricing.TaxRate
	}
	if yamlCfg.Pricing.FreeShipThreshold != nil {
		cfg.Pricing.FreeShipThreshold = *yamlCfg.Pricing.FreeShipThreshold
	}
	if yamlCfg.Pricing.ShipPerKg != nil {
		cfg.Pricing.ShipPerKg = *yamlCfg.Pricing.ShipPerKg
	}

	durations := []struct {
		raw    string
		target *time.Duration
		key    string
	}{
		{yamlCfg.ShutdownGracePeriod, &cfg.ShutdownGracePeriod, "shutdown_grace_period"},
		{yamlCfg.ReadHeaderTimeout, &cfg.ReadHeaderTimeout, "read_header_timeout"},
		{yamlCfg.WriteTimeout, &cfg.WriteTimeout, "write_timeout"},
		{yamlCfg.IdleTimeout, &cfg.IdleTimeout, "idle_timeout"},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("parse %s: %w", d.key, err)
		}
		*d.target = parsed
	}

	if yamlCfg.EnableRequestLogging != nil {
		cfg.EnableRequestLogging = *yamlCfg.EnableRequestLogging
	}

	if yamlCfg.LogLevel != "" {
		cfg.LogLevel = yamlCfg.LogLevel
	}

	if yamlCfg.RateLimit.RPS != nil {
		cfg.RateLimitRPS = *yamlCfg.RateLimit.RPS
	}

	if yamlCfg.RateLimit.Burst != nil {
		cfg.RateLimitBurst = *yamlCfg.RateLimit.Burst
	}

	if yamlCfg.RateLimit.TrustForwardedFor != nil {
		cfg.TrustForwardedFor = *yamlCfg.RateLimit.TrustForwardedFor
	}

	if yamlCfg.Metrics.Enabled != nil {
		cfg.MetricsEnabled = *yamlCfg.Metrics.Enabled
	}
	if yamlCfg.Metrics.Namespace != "" {
		cfg.MetricsNamespace = yamlCfg.Metrics.Namespace
	}

	return nil
}

// applyEnvConfig applies environment variable configuration.
func applyEnvConfig(cfg *Config) error {
	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		cfg.Port = port
	}

	if level := strings.TrimSpace(os.Getenv("LOG_LEVEL")); level != "" {
		cfg.LogLevel = level
	}

	floats := []struct {
		name   string
		target *float64
	}{
		{"TAX_RATE", &cfg.Pricing.TaxRate},
		{"FREE_SHIP_THRESHOLD", &cfg.Pricing.FreeShipThreshold},
		{"SHIP_PER_KG", &cfg.Pricing.ShipPerKg},
		{"RATE_LIMIT_RPS", &cfg.RateLimitRPS},
	}
	for _, f := range floats {
		raw := strings.TrimSpace(os.Getenv(f.name))
		if raw == "" {
			continue
		}
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return fmt.Errorf("parse %s: %w", f.name, err)
		}
		*f.target = value
	}

	if burst := strings.TrimSpace(os.Getenv("RATE_LIMIT_BURST")); burst != "" {
		value, err := strconv.Atoi(burst)
		if err != nil {
			return fmt.Errorf("parse RATE_LIMIT_BURST: %w", err)
		}
		cfg.RateLimitBurst = value
	}

	bools := []struct {
		name   string
		target *bool
	}{
		{"METRICS_ENABLED", &cfg.MetricsEnabled},
		{"TRUST_FORWARDED_FOR", &cfg.TrustForwardedFor},
	}
	for _, b := range bools {
		raw := strings.TrimSpace(os.Getenv(b.name))
		if raw == "" {
			continue
		}
		value, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("parse %s: %w", b.name, err)
		}
		*b.target = value
	}

	return nil
}

// applyCLIOverrides applies command-line flag overrides.
func applyCLIOverrides(cfg *Config, overrides *CLIOverrides) {
	if overrides.Port != nil && *overrides.Port != "" {
		cfg.Port = *overrides.Port
	}

	if overrides.LogLevel != nil && *overrides.LogLevel != "" {
		cfg.LogLevel = *overrides.LogLevel
	}

	if overrides.TaxRate != nil {
		cfg.Pricing.TaxRate = *overrides.TaxRate
	}

	if overrides.FreeShipThreshold != nil {
		cfg.Pricing.FreeShipThreshold = *overrides.FreeShipThreshold
	}

	if overrides.ShipPerKg != nil {
		cfg.Pricing.ShipPerKg = *overrides.ShipPerKg
	}

	if overrides.RateLimitRPS != nil && *overrides.RateLimitRPS >= 0 {
		cfg.RateLimitRPS = *overrides.RateLimitRPS
	}

	if overrides.RateLimitBurst != nil && *overrides.RateLimitBurst >= 0 {
		cfg.RateLimitBurst = *overrides.RateLimitBurst
	}

	if overrides.TrustForwardedFor != nil {
		cfg.TrustForwardedFor = *overrides.TrustForwardedFor
	}
}

// validateConfig validates the final configuration.
func validateConfig(cfg Config) error {
	if cfg.RateLimitRPS < 0 {
		return fmt.Errorf("RATE_LIMIT_RPS must be >= 0")
	}
	if cfg.RateLimitBurst < 0 {
		return fmt.Errorf("RATE_LIMIT_BURST must be >= 0")
	}
	if err := storage.ValidateRules(cfg.Pricing); err != nil {
		return fmt.Errorf("pricing rules: %w", err)
	}
	if _, err := logging.ParseLevel(cfg.LogLevel); err != nil {
		return err
	}
	return nil
}
