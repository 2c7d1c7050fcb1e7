// Package config loads judge and engine settings from an optional YAML file
// and MEDSCORE_-prefixed environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// JudgeConfig holds connection settings for the semantic judge's completion
// provider. An empty APIKey disables the provider; grading then relies on the
// deterministic fallback judge alone.
type JudgeConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	APIKey         string `mapstructure:"api_key"`
	Model          string `mapstructure:"model"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	CacheSize      int    `mapstructure:"cache_size"`
}

// Timeout returns the judge call ceiling as a duration.
func (c JudgeConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// EngineConfig holds scoring engine tuning.
type EngineConfig struct {
	DefaultThreshold float64 `mapstructure:"default_threshold"`
	ContextWindow    int     `mapstructure:"context_window"`
	Concurrency      int     `mapstructure:"concurrency"`
	SkipAsked        bool    `mapstructure:"skip_asked"`
}

// Config is the full application configuration.
type Config struct {
	Judge  JudgeConfig  `mapstructure:"judge"`
	Engine EngineConfig `mapstructure:"engine"`
}

// Load reads configuration from the given file path (optional, YAML) with
// environment variables taking precedence over file values.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("MEDSCORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("judge.base_url", "https://api.openai.com/v1")
	v.SetDefault("judge.api_key", "")
	v.SetDefault("judge.model", "gpt-4o-mini")
	v.SetDefault("judge.timeout_seconds", 20)
	v.SetDefault("judge.cache_size", 4096)

	v.SetDefault("engine.default_threshold", 60.0)
	v.SetDefault("engine.context_window", 5)
	v.SetDefault("engine.concurrency", 4)
	v.SetDefault("engine.skip_asked", false)
}
