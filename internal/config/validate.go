package config

import (
	"fmt"
	"slices"
)

// ValidationIssue describes a problem with a config value.
type ValidationIssue struct {
	Path    string
	Message string
}

func (v ValidationIssue) String() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

var (
	validProviders   = []string{"openai", "anthropic", "ollama"}
	validPersonas    = []string{"support", "assistant", "research"}
	validLogLevels   = []string{"silent", "fatal", "error", "warn", "info", "debug", "trace"}
	validLogFormats  = []string{"pretty", "json"}
	validBinds       = []string{"loopback", "lan"}
	validAuthModes   = []string{"token", "password"}
	validScopes      = []string{"per-sender", "global"}
	validDrivers     = []string{"sqlite", "memory"}
	validSearchProvs = []string{"duckduckgo", "brave"}
)

// Validate checks a Config for issues. Returns nil if valid.
func Validate(cfg *Config) []ValidationIssue {
	var issues []ValidationIssue
	add := func(path, format string, args ...any) {
		issues = append(issues, ValidationIssue{Path: path, Message: fmt.Sprintf(format, args...)})
	}
	oneOf := func(path, value string, valid []string) {
		if value != "" && !slices.Contains(valid, value) {
			add(path, "must be one of %v, got %q", valid, value)
		}
	}

	// Model validation
	oneOf("model.provider", cfg.Model.Provider, validProviders)
	if cfg.Model.Timeout < 0 {
		add("model.timeout", "must not be negative")
	}
	if cfg.Model.Temperature != nil && (*cfg.Model.Temperature < 0 || *cfg.Model.Temperature > 2) {
		add("model.temperature", "must be between 0 and 2, got %v", *cfg.Model.Temperature)
	}
	for i, fb := range cfg.Model.Fallbacks {
		path := fmt.Sprintf("model.fallbacks[%d]", i)
		if fb.Provider == "" {
			add(path+".provider", "provider is required")
		}
		oneOf(path+".provider", fb.Provider, validProviders)
	}
	if cfg.Model.Breaker.Threshold < 0 {
		add("model.breaker.threshold", "must not be negative")
	}

	// Agent validation
	if cfg.Agent.SystemPrompt == "" {
		oneOf("agent.persona", cfg.Agent.Persona, validPersonas)
	}
	if cfg.Agent.MaxToolRounds < 0 {
		add("agent.maxToolRounds", "must not be negative, got %d", cfg.Agent.MaxToolRounds)
	}

	// Tools validation
	if cfg.Tools.Timeout < 0 {
		add("tools.timeout", "must not be negative")
	}
	oneOf("tools.search.provider", cfg.Tools.Search.Provider, validSearchProvs)
	if cfg.Tools.Search.Provider == "brave" && cfg.Tools.Search.APIKey == "" {
		add("tools.search.apiKey", "required when provider is brave")
	}

	oneOf("store.driver", cfg.Store.Driver, validDrivers)
	oneOf("session.scope", cfg.Session.Scope, validScopes)

	// Gateway validation
	if cfg.Gateway.Port < 0 || cfg.Gateway.Port > 65535 {
		add("gateway.port", "port must be 0-65535, got %d", cfg.Gateway.Port)
	}
	oneOf("gateway.bind", cfg.Gateway.Bind, validBinds)
	oneOf("gateway.auth.mode", cfg.Gateway.Auth.Mode, validAuthModes)

	// Logging validation
	oneOf("logging.level", cfg.Logging.Level, validLogLevels)
	oneOf("logging.format", cfg.Logging.Format, validLogFormats)

	// IRC validation (only if configured)
	if irc := cfg.Channels.IRC; irc != nil {
		if irc.Server == "" {
			add("channels.irc.server", "server is required")
		}
		if irc.Nick == "" {
			add("channels.irc.nick", "nick is required")
		}
		if irc.Port < 0 || irc.Port > 65535 {
			add("channels.irc.port", "port must be 0-65535, got %d", irc.Port)
		}
		if irc.SASL && irc.Password == "" {
			add("channels.irc.sasl", "SASL requires a password to be set")
		}
	}

	return issues
}
