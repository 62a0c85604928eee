// Package config loads vizcheck configuration from a YAML file with
// environment-variable overrides for secrets.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"vizcheck/internal/capture"
	"vizcheck/internal/persona"
)

// Config holds all vizcheck configuration.
type Config struct {
	Name string `yaml:"name"`

	// Judge selects and configures the VLM provider.
	Judge JudgeConfig `yaml:"judge"`

	// Capture configures the browser session.
	Capture capture.Config `yaml:"capture"`

	// Temporal tunes note aggregation and the adaptive processor.
	Temporal TemporalConfig `yaml:"temporal"`

	// Cache configures the on-disk response cache.
	Cache CacheConfig `yaml:"cache"`

	// Logging controls log verbosity.
	Logging LoggingConfig `yaml:"logging"`

	// Personas are the simulated user types for persona testing.
	Personas []persona.Persona `yaml:"personas"`
}

// JudgeConfig configures the VLM judge.
type JudgeConfig struct {
	Provider string `yaml:"provider"` // gemini, openai, anthropic
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
	BaseURL  string `yaml:"base_url"`
}

// TemporalConfig tunes the aggregation engine.
type TemporalConfig struct {
	WindowSizeMs  int     `yaml:"window_size_ms"`
	DecayFactor   float64 `yaml:"decay_factor"`
	CacheMaxAgeMs int     `yaml:"cache_max_age_ms"`
	MaxNotes      int     `yaml:"max_notes"`
}

// WindowSize returns the window size as a duration.
func (t TemporalConfig) WindowSize() time.Duration {
	if t.WindowSizeMs <= 0 {
		return 10 * time.Second
	}
	return time.Duration(t.WindowSizeMs) * time.Millisecond
}

// CacheMaxAge returns the processor cache TTL as a duration.
func (t TemporalConfig) CacheMaxAge() time.Duration {
	if t.CacheMaxAgeMs <= 0 {
		return 5 * time.Second
	}
	return time.Duration(t.CacheMaxAgeMs) * time.Millisecond
}

// CacheConfig configures the response cache.
type CacheConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Path     string `yaml:"path"`
	TTLHours int    `yaml:"ttl_hours"`
}

// TTL returns the cache TTL as a duration.
func (c CacheConfig) TTL() time.Duration {
	if c.TTLHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.TTLHours) * time.Hour
}

// LoggingConfig controls logging.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// Default returns the baseline configuration.
func Default() Config {
	return Config{
		Name:    "vizcheck",
		Judge:   JudgeConfig{Provider: "gemini"},
		Capture: capture.DefaultConfig(),
		Temporal: TemporalConfig{
			WindowSizeMs:  10000,
			DecayFactor:   0.9,
			CacheMaxAgeMs: 5000,
			MaxNotes:      100,
		},
		Cache:   CacheConfig{Enabled: true, Path: ".vizcheck/cache.db", TTLHours: 24},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load reads the YAML file at path, layered over Default(). A missing file
// is not an error; defaults plus env overrides apply. API keys from the
// environment always win over the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg.applyEnvOverrides()

	if cfg.Temporal.DecayFactor <= 0 || cfg.Temporal.DecayFactor >= 1 {
		return nil, fmt.Errorf("config: temporal.decay_factor must be in (0,1), got %v", cfg.Temporal.DecayFactor)
	}
	return &cfg, nil
}

// applyEnvOverrides lets the environment supply or replace secrets and the
// provider selection.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("VIZCHECK_PROVIDER"); v != "" {
		c.Judge.Provider = v
	}
	if v := os.Getenv("VIZCHECK_MODEL"); v != "" {
		c.Judge.Model = v
	}

	switch c.Judge.Provider {
	case "gemini":
		if v := os.Getenv("GEMINI_API_KEY"); v != "" {
			c.Judge.APIKey = v
		}
	case "openai":
		if v := os.Getenv("OPENAI_API_KEY"); v != "" {
			c.Judge.APIKey = v
		}
	case "anthropic":
		if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
			c.Judge.APIKey = v
		}
	}
}
