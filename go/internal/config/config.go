package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/mcdev12/poker-everest/go/internal/poker"
	"gopkg.in/yaml.v3"
)

// Config is the process configuration read from the environment.
type Config struct {
	Host             string
	Port             int
	Env              string
	LogLevel         string
	RedisURL         string
	NATSURL          string
	SentryDSN        string
	SentrySampleRate float64
	PolicyPath       string

	Policy poker.Config
}

// Policy is the optional YAML room policy file.
type Policy struct {
	MaxPlayers      int                 `yaml:"max_players"`
	MaxTimerSeconds int                 `yaml:"max_timer_seconds"`
	DefaultDeck     []string            `yaml:"default_deck"`
	DeckPresets     map[string][]string `yaml:"deck_presets"`
}

// Load reads the environment, and the policy file when POKER_CONFIG is set.
// Callers load .env first.
func Load() (*Config, error) {
	cfg := &Config{
		Host:             getEnv("HOST", "0.0.0.0"),
		Port:             getEnvAsInt("PORT", 3000),
		Env:              getEnv("APP_ENV", "development"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		RedisURL:         os.Getenv("REDIS_URL"),
		NATSURL:          os.Getenv("NATS_URL"),
		SentryDSN:        os.Getenv("SENTRY_DSN"),
		SentrySampleRate: getEnvAsFloat("SENTRY_SAMPLE_RATE", 1.0),
		PolicyPath:       os.Getenv("POKER_CONFIG"),
		Policy:           poker.DefaultConfig(),
	}

	if cfg.SentrySampleRate < 0 || cfg.SentrySampleRate > 1 {
		return nil, fmt.Errorf("SENTRY_SAMPLE_RATE must be within [0, 1], got %v", cfg.SentrySampleRate)
	}

	if cfg.PolicyPath != "" {
		policy, err := loadPolicy(cfg.PolicyPath)
		if err != nil {
			return nil, err
		}
		cfg.Policy = policy.apply(cfg.Policy)
	}

	return cfg, nil
}

// IsProduction reports whether APP_ENV names a production deployment.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// Addr is the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func loadPolicy(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}

	var policy Policy
	if err := yaml.Unmarshal(data, &policy); err != nil {
		return nil, fmt.Errorf("failed to parse policy file: %w", err)
	}

	if policy.MaxPlayers < 0 || policy.MaxTimerSeconds < 0 {
		return nil, fmt.Errorf("policy limits must not be negative")
	}
	return &policy, nil
}

// apply overlays the fields set in the file onto base.
func (p *Policy) apply(base poker.Config) poker.Config {
	if p.MaxPlayers > 0 {
		base.MaxPlayers = p.MaxPlayers
	}
	if p.MaxTimerSeconds > 0 {
		base.MaxTimerSeconds = p.MaxTimerSeconds
	}
	if len(p.DefaultDeck) > 0 {
		base.DefaultDeck = p.DefaultDeck
	}
	if len(p.DeckPresets) > 0 {
		presets := make(map[string][]string, len(base.DeckPresets)+len(p.DeckPresets))
		for name, deck := range base.DeckPresets {
			presets[name] = deck
		}
		for name, deck := range p.DeckPresets {
			presets[name] = deck
		}
		base.DeckPresets = presets
	}
	return base
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
