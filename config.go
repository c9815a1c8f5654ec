package usagegate

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the gate configuration: the tier policy table, the TTS rate
// window, and the fingerprint hashing secret.
type Config struct {
	// FingerprintSecret keys the client fingerprint hash. Required: raw
	// client identifiers must never reach storage keys.
	FingerprintSecret string `yaml:"fingerprint_secret"`

	Tiers map[Tier]TierLimits `yaml:"tiers"`

	TTSRate RateWindow `yaml:"tts_rate"`
}

// TierLimits are the configured ceilings for one tier. -1 means unlimited.
type TierLimits struct {
	MonthlyReadings  int64 `yaml:"monthly_readings"`
	MonthlyTTS       int64 `yaml:"monthly_tts"`
	APICallsPerMonth int64 `yaml:"api_calls_per_month"`
	APIAccess        bool  `yaml:"api_access"`
}

// RateWindow configures a fixed-window request-rate limit.
type RateWindow struct {
	WindowSeconds int64 `yaml:"window_seconds"`
	MaxRequests   int64 `yaml:"max_requests"`
}

// Duration returns the window length.
func (w RateWindow) Duration() time.Duration {
	return time.Duration(w.WindowSeconds) * time.Second
}

// DefaultConfig returns the product defaults. The fingerprint secret is not
// defaulted and must be supplied.
func DefaultConfig() Config {
	return Config{
		Tiers: map[Tier]TierLimits{
			TierFree: {MonthlyReadings: 5, MonthlyTTS: 20},
			TierPlus: {MonthlyReadings: 50, MonthlyTTS: 200},
			TierPro:  {MonthlyReadings: Unlimited, MonthlyTTS: 1000, APICallsPerMonth: 5000, APIAccess: true},
		},
		TTSRate: RateWindow{WindowSeconds: 60, MaxRequests: 30},
	}
}

// LoadConfig reads a YAML config file over the defaults.
// Environment variables in the format ${VAR} are expanded before parsing.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("usagegate: read config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	cfg := DefaultConfig()
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return Config{}, fmt.Errorf("usagegate: parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate checks the config for required fields and consistency.
func (c Config) Validate() error {
	if c.FingerprintSecret == "" {
		return fmt.Errorf("usagegate: config: fingerprint_secret is required")
	}
	if len(c.Tiers) == 0 {
		return fmt.Errorf("usagegate: config: at least one tier is required")
	}
	for tier, limits := range c.Tiers {
		if limits.MonthlyReadings < Unlimited {
			return fmt.Errorf("usagegate: config: tier %q: invalid monthly_readings %d", tier, limits.MonthlyReadings)
		}
		if limits.MonthlyTTS < Unlimited {
			return fmt.Errorf("usagegate: config: tier %q: invalid monthly_tts %d", tier, limits.MonthlyTTS)
		}
		if limits.APICallsPerMonth < Unlimited {
			return fmt.Errorf("usagegate: config: tier %q: invalid api_calls_per_month %d", tier, limits.APICallsPerMonth)
		}
	}
	if c.TTSRate.WindowSeconds <= 0 {
		return fmt.Errorf("usagegate: config: tts_rate.window_seconds must be positive")
	}
	if c.TTSRate.MaxRequests <= 0 {
		return fmt.Errorf("usagegate: config: tts_rate.max_requests must be positive")
	}
	return nil
}
