package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func issuePaths(issues []ValidationIssue) []string {
	var paths []string
	for _, i := range issues {
		paths = append(paths, i.Path)
	}
	return paths
}

func TestValidate_ValidDefaults(t *testing.T) {
	cfg := Defaults()
	assert.Empty(t, Validate(&cfg))
}

func TestValidate_SingleField(t *testing.T) {
	hot := 3.5
	tests := []struct {
		name   string
		mutate func(*Config)
		path   string
	}{
		{"bad provider", func(c *Config) { c.Model.Provider = "gemini" }, "model.provider"},
		{"negative model timeout", func(c *Config) { c.Model.Timeout = -1 }, "model.timeout"},
		{"temperature too high", func(c *Config) { c.Model.Temperature = &hot }, "model.temperature"},
		{"fallback without provider", func(c *Config) { c.Model.Fallbacks = []ModelEndpoint{{Name: "x"}} }, "model.fallbacks[0].provider"},
		{"negative breaker threshold", func(c *Config) { c.Model.Breaker.Threshold = -2 }, "model.breaker.threshold"},
		{"bad persona", func(c *Config) { c.Agent.Persona = "pirate" }, "agent.persona"},
		{"negative rounds", func(c *Config) { c.Agent.MaxToolRounds = -1 }, "agent.maxToolRounds"},
		{"negative tool timeout", func(c *Config) { c.Tools.Timeout = -1 }, "tools.timeout"},
		{"bad search provider", func(c *Config) { c.Tools.Search.Provider = "bing" }, "tools.search.provider"},
		{"brave without key", func(c *Config) { c.Tools.Search.Provider = "brave" }, "tools.search.apiKey"},
		{"bad store driver", func(c *Config) { c.Store.Driver = "postgres" }, "store.driver"},
		{"bad scope", func(c *Config) { c.Session.Scope = "per-channel" }, "session.scope"},
		{"bad port", func(c *Config) { c.Gateway.Port = 99999 }, "gateway.port"},
		{"bad bind", func(c *Config) { c.Gateway.Bind = "tailnet" }, "gateway.bind"},
		{"bad auth mode", func(c *Config) { c.Gateway.Auth.Mode = "oauth" }, "gateway.auth.mode"},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }, "logging.level"},
		{"bad log format", func(c *Config) { c.Logging.Format = "compact" }, "logging.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			issues := Validate(&cfg)
			require.Len(t, issues, 1, "%v", issues)
			assert.Equal(t, tt.path, issues[0].Path)
		})
	}
}

func TestValidate_CustomPromptSkipsPersonaCheck(t *testing.T) {
	cfg := Defaults()
	cfg.Agent.Persona = "custom"
	cfg.Agent.SystemPrompt = "You are a pirate."
	assert.Empty(t, Validate(&cfg))
}

func TestValidate_IRC(t *testing.T) {
	cfg := Defaults()
	cfg.Channels.IRC = &IRCConfig{Port: 70000, SASL: true}

	paths := issuePaths(Validate(&cfg))
	assert.Contains(t, paths, "channels.irc.server")
	assert.Contains(t, paths, "channels.irc.nick")
	assert.Contains(t, paths, "channels.irc.port")
	assert.Contains(t, paths, "channels.irc.sasl")
}

func TestValidate_IRCValidConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Channels.IRC = &IRCConfig{
		Server:   "irc.libera.chat",
		Port:     6697,
		Nick:     "olabot",
		Password: "pw",
		SASL:     true,
		Channels: []string{"#olasquare"},
	}
	assert.Empty(t, Validate(&cfg))
}

func TestValidate_MultipleIssues(t *testing.T) {
	cfg := Defaults()
	cfg.Gateway.Port = -1
	cfg.Logging.Level = "loud"
	cfg.Model.Provider = "nope"
	assert.Len(t, Validate(&cfg), 3)
}

func TestValidationIssueString(t *testing.T) {
	issue := ValidationIssue{Path: "agent.persona", Message: "bad"}
	assert.Equal(t, "agent.persona: bad", issue.String())
}
