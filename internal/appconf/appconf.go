// Package appconf loads the tracker configuration from an optional YAML
// file, applies environment overrides and validates the result.
package appconf

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Environment string

const (
	Development Environment = "development"
	Test        Environment = "test"
	Production  Environment = "production"
)

// FeedConfig describes the broker connection for one position feed.
type FeedConfig struct {
	BrokerURL             string `yaml:"brokerURL" validate:"required,url"`
	Enabled               bool   `yaml:"enabled"`
	ClientIDPrefix        string `yaml:"clientIDPrefix" validate:"max=16"`
	KeepAliveSeconds      int    `yaml:"keepAliveSeconds" validate:"gte=0"`
	ConnectTimeoutSeconds int    `yaml:"connectTimeoutSeconds" validate:"gte=0"`
}

func (f FeedConfig) KeepAlive() time.Duration {
	return time.Duration(f.KeepAliveSeconds) * time.Second
}

func (f FeedConfig) ConnectTimeout() time.Duration {
	return time.Duration(f.ConnectTimeoutSeconds) * time.Second
}

// Config is the root configuration of the tracker service.
type Config struct {
	Port                      int         `yaml:"port" validate:"gt=0,lte=65535"`
	Env                       Environment `yaml:"env" validate:"oneof=development test production"`
	LogLevel                  string      `yaml:"logLevel" validate:"omitempty,oneof=debug info warn error"`
	LogFormat                 string      `yaml:"logFormat" validate:"omitempty,oneof=json text"`
	RateLimit                 int         `yaml:"rateLimit" validate:"gte=0"`
	ExemptClients             []string    `yaml:"exemptClients"`
	DatabasePath              string      `yaml:"databasePath"`
	TrailLength               int         `yaml:"trailLength" validate:"gte=0,lte=1000"`
	UnsubscribeTimeoutSeconds int         `yaml:"unsubscribeTimeoutSeconds" validate:"gte=0"`
	Digitraffic               FeedConfig  `yaml:"digitraffic"`
	HSL                       FeedConfig  `yaml:"hsl"`
	// HameenlinnaAsTampere enables the HL departure rule on the HSL feed.
	HameenlinnaAsTampere bool `yaml:"hameenlinnaAsTampere"`
}

func (c Config) UnsubscribeTimeout() time.Duration {
	return time.Duration(c.UnsubscribeTimeoutSeconds) * time.Second
}

// Default returns the configuration used when no file and no overrides are given.
func Default() Config {
	return Config{
		Port:                      4100,
		Env:                       Development,
		LogLevel:                  "info",
		LogFormat:                 "text",
		RateLimit:                 100,
		DatabasePath:              "tracker.db",
		TrailLength:               20,
		UnsubscribeTimeoutSeconds: 10,
		Digitraffic: FeedConfig{
			BrokerURL:             "wss://rata.digitraffic.fi:443/mqtt",
			Enabled:               true,
			ClientIDPrefix:        "junat-dt",
			KeepAliveSeconds:      30,
			ConnectTimeoutSeconds: 10,
		},
		HSL: FeedConfig{
			BrokerURL:             "wss://mqtt.hsl.fi:443/",
			Enabled:               true,
			ClientIDPrefix:        "junat-hsl",
			KeepAliveSeconds:      30,
			ConnectTimeoutSeconds: 10,
		},
	}
}

// Load reads path (if non-empty) over the defaults, applies environment
// overrides and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}

	applyEnv(&cfg)

	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks struct tags on the whole configuration.
func Validate(cfg Config) error {
	v := validator.New()
	if err := v.Struct(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.Port = getEnvInt("TRACKER_PORT", cfg.Port)
	cfg.Env = Environment(getEnv("TRACKER_ENV", string(cfg.Env)))
	cfg.LogLevel = getEnv("TRACKER_LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = getEnv("TRACKER_LOG_FORMAT", cfg.LogFormat)
	cfg.RateLimit = getEnvInt("TRACKER_RATE_LIMIT", cfg.RateLimit)
	cfg.DatabasePath = getEnv("TRACKER_DB_PATH", cfg.DatabasePath)
	cfg.TrailLength = getEnvInt("TRACKER_TRAIL_LENGTH", cfg.TrailLength)
	cfg.Digitraffic.BrokerURL = getEnv("DIGITRAFFIC_MQTT_URL", cfg.Digitraffic.BrokerURL)
	cfg.Digitraffic.Enabled = getEnvBool("DIGITRAFFIC_ENABLED", cfg.Digitraffic.Enabled)
	cfg.HSL.BrokerURL = getEnv("HSL_MQTT_URL", cfg.HSL.BrokerURL)
	cfg.HSL.Enabled = getEnvBool("HSL_ENABLED", cfg.HSL.Enabled)
	cfg.HameenlinnaAsTampere = getEnvBool("HSL_HAMEENLINNA_AS_TAMPERE", cfg.HameenlinnaAsTampere)

	if keys := os.Getenv("TRACKER_EXEMPT_CLIENTS"); keys != "" {
		cfg.ExemptClients = ParseList(keys)
	}
}

// ParseList splits a comma separated list, trimming blanks.
func ParseList(input string) []string {
	parts := strings.Split(input, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
