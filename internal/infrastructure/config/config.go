package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Version     string `koanf:"version"`
	Environment string `koanf:"environment"`
	LogLevel    string `koanf:"log_level"`

	Database  DatabaseConfig  `koanf:"database"`
	Redis     RedisConfig     `koanf:"redis"`
	Risk      RiskConfig      `koanf:"risk"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
}

// TelemetryConfig controls distributed tracing export.
type TelemetryConfig struct {
	Enabled      bool          `koanf:"enabled"`
	OTLPEndpoint string        `koanf:"otlp_endpoint"`
	SamplingRate float64       `koanf:"sampling_rate"`
	BatchTimeout time.Duration `koanf:"batch_timeout"`
}

type DatabaseConfig struct {
	URL             string        `koanf:"url"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
}

type RedisConfig struct {
	URL          string        `koanf:"url"`
	Password     string        `koanf:"password"`
	DB           int           `koanf:"db"`
	PoolSize     int           `koanf:"pool_size"`
	MinIdleConns int           `koanf:"min_idle_conns"`
	DialTimeout  time.Duration `koanf:"dial_timeout"`
	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
}

// RiskConfig holds every tunable constant of the assessment core. Values the
// rules and the decision maker read are configuration, never literals.
type RiskConfig struct {
	Thresholds ThresholdConfig `koanf:"thresholds"`

	// Location anomaly rule
	LocationMaxDistanceKm float64       `koanf:"location_max_distance_km"`
	LocationMaxElapsed    time.Duration `koanf:"location_max_elapsed"`

	// Time pattern rule, local hours [start, end)
	QuietHoursStart int `koanf:"quiet_hours_start"`
	QuietHoursEnd   int `koanf:"quiet_hours_end"`

	// Business-specific limits
	GamingDailyLimit      float64 `koanf:"gaming_daily_limit"`
	GamingRuleDailyLimit  float64 `koanf:"gaming_rule_daily_limit"`
	IoTMonthlyLimit       float64 `koanf:"iot_monthly_limit"`
	IoTRuleMonthlyLimit   float64 `koanf:"iot_rule_monthly_limit"`

	// Audit write deadline for the fire-and-forget sink
	AuditTimeout time.Duration `koanf:"audit_timeout"`
}

// ThresholdConfig maps scores to levels and actions.
type ThresholdConfig struct {
	Medium   int `koanf:"medium"`
	High     int `koanf:"high"`
	Critical int `koanf:"critical"`
}

func Load(path string) (*Config, error) {
	k := koanf.New(".")

	// Load defaults
	defaults := &Config{
		Version:     "dev",
		Environment: "development",
		LogLevel:    "info",
		Database: DatabaseConfig{
			URL:             "postgres://localhost:5432/helixpay?sslmode=disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Redis: RedisConfig{
			URL:          "localhost:6379",
			DB:           0,
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Risk: RiskConfig{
			Thresholds: ThresholdConfig{
				Medium:   40,
				High:     70,
				Critical: 85,
			},
			LocationMaxDistanceKm: 1000,
			LocationMaxElapsed:    time.Hour,
			QuietHoursStart:       2,
			QuietHoursEnd:         5,
			GamingDailyLimit:      200,
			GamingRuleDailyLimit:  500,
			IoTMonthlyLimit:       500,
			IoTRuleMonthlyLimit:   1000,
			AuditTimeout:          5 * time.Second,
		},
		Telemetry: TelemetryConfig{
			Enabled:      false,
			OTLPEndpoint: "localhost:4317",
			SamplingRate: 1.0,
			BatchTimeout: 5 * time.Second,
		},
	}

	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	// Load from config file if present; absence is fine
	if path == "" {
		path = "configs/config.yaml"
	}
	_ = k.Load(file.Provider(path), yaml.Parser())

	// Override with environment variables
	if err := k.Load(env.Provider("RISK_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(
			strings.TrimPrefix(s, "RISK_")), "_", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("loading environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Risk.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (r RiskConfig) validate() error {
	t := r.Thresholds
	if t.Medium <= 0 || t.High <= t.Medium || t.Critical <= t.High {
		return fmt.Errorf("risk thresholds must satisfy 0 < medium < high < critical, got %d/%d/%d",
			t.Medium, t.High, t.Critical)
	}
	if t.Critical > 100 {
		return fmt.Errorf("critical threshold cannot exceed 100, got %d", t.Critical)
	}
	if r.QuietHoursStart < 0 || r.QuietHoursEnd > 24 || r.QuietHoursStart >= r.QuietHoursEnd {
		return fmt.Errorf("quiet hours window [%d, %d) is invalid", r.QuietHoursStart, r.QuietHoursEnd)
	}
	return nil
}
