package config

import (
	"fmt"
	"time"
)

// ConfigError represents a configuration error.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s", e.Message)
}

const (
	DefaultProvider      = "openai"
	DefaultModel         = "gpt-4o-mini"
	DefaultMaxToolRounds = 10
	DefaultModelTimeout  = 60 * time.Second
	DefaultToolTimeout   = 20 * time.Second
	DefaultGatewayPort   = 18790
)

// Defaults returns a Config with sensible defaults applied.
func Defaults() Config {
	cfg := Config{}
	applyDefaults(&cfg)
	return cfg
}

var defaultModels = map[string]string{
	"openai":    DefaultModel,
	"anthropic": "claude-3-5-haiku-latest",
	"ollama":    "llama3.1",
}

// DefaultModelFor returns the model used when a provider is configured
// without an explicit model name.
func DefaultModelFor(provider string) string {
	if m, ok := defaultModels[provider]; ok {
		return m
	}
	return DefaultModel
}
