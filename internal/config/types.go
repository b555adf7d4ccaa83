package config

import "time"

// Config is the root configuration for olasquare.
type Config struct {
	Model    ModelConfig    `yaml:"model,omitempty"`
	Agent    AgentConfig    `yaml:"agent,omitempty"`
	Tools    ToolsConfig    `yaml:"tools,omitempty"`
	Store    StoreConfig    `yaml:"store,omitempty"`
	Session  SessionConfig  `yaml:"session,omitempty"`
	Gateway  GatewayConfig  `yaml:"gateway,omitempty"`
	Channels ChannelsConfig `yaml:"channels,omitempty"`
	Logging  LoggingConfig  `yaml:"logging,omitempty"`
	Hooks    HooksConfig    `yaml:"hooks,omitempty"`
}

// ModelEndpoint identifies one model on one provider.
type ModelEndpoint struct {
	Provider string `yaml:"provider,omitempty"` // "openai" | "anthropic" | "ollama"
	Name     string `yaml:"name,omitempty"`
	APIKey   string `yaml:"apiKey,omitempty"`
	BaseURL  string `yaml:"baseUrl,omitempty"`
}

// ModelConfig selects the primary model and its fallbacks.
type ModelConfig struct {
	ModelEndpoint `yaml:",inline"`

	Timeout     time.Duration     `yaml:"timeout,omitempty"`
	MaxTokens   int               `yaml:"maxTokens,omitempty"`
	Temperature *float64          `yaml:"temperature,omitempty"`
	Fallbacks   []ModelEndpoint   `yaml:"fallbacks,omitempty"`
	Aliases     map[string]string `yaml:"aliases,omitempty"` // short name -> model name
	Breaker     BreakerConfig     `yaml:"breaker,omitempty"`
}

// BreakerConfig tunes the per-provider circuit breaker.
// A zero threshold disables the breaker.
type BreakerConfig struct {
	Threshold int           `yaml:"threshold,omitempty"`
	Cooldown  time.Duration `yaml:"cooldown,omitempty"`
}

// AgentConfig controls the dispatch loop.
type AgentConfig struct {
	Persona       string `yaml:"persona,omitempty"`      // "support" | "assistant" | "research"
	SystemPrompt  string `yaml:"systemPrompt,omitempty"` // replaces the persona text when set
	MaxToolRounds int    `yaml:"maxToolRounds,omitempty"`
	ParallelTools bool   `yaml:"parallelTools,omitempty"`
}

// ToolsConfig configures the built-in tools.
type ToolsConfig struct {
	Timeout    time.Duration    `yaml:"timeout,omitempty"`
	Enabled    []string         `yaml:"enabled,omitempty"` // empty means all built-ins
	Weather    WeatherConfig    `yaml:"weather,omitempty"`
	Search     SearchConfig     `yaml:"search,omitempty"`
	Dictionary DictionaryConfig `yaml:"dictionary,omitempty"`
}

// WeatherConfig configures the OpenWeatherMap tool.
type WeatherConfig struct {
	APIKey  string `yaml:"apiKey,omitempty"`
	BaseURL string `yaml:"baseUrl,omitempty"`
}

// SearchConfig configures the web search tool.
type SearchConfig struct {
	Provider   string `yaml:"provider,omitempty"` // "duckduckgo" | "brave"
	APIKey     string `yaml:"apiKey,omitempty"`
	MaxResults int    `yaml:"maxResults,omitempty"`
}

// DictionaryConfig adds terms to the built-in glossary.
type DictionaryConfig struct {
	Extra map[string]string `yaml:"extra,omitempty"`
}

// StoreConfig selects the conversation store backend.
type StoreConfig struct {
	Driver string `yaml:"driver,omitempty"` // "sqlite" | "memory"
	Path   string `yaml:"path,omitempty"`   // defaults to <base>/data/olasquare.db
}

// SessionConfig defines how channel conversations map to threads.
type SessionConfig struct {
	Scope string `yaml:"scope,omitempty"` // "per-sender" | "global"
}

// GatewayConfig controls the gateway HTTP/WebSocket server.
type GatewayConfig struct {
	Port           int         `yaml:"port,omitempty"`
	Bind           string      `yaml:"bind,omitempty"` // "loopback" | "lan"
	Auth           GatewayAuth `yaml:"auth,omitempty"`
	AllowedOrigins []string    `yaml:"allowedOrigins,omitempty"`
}

// GatewayAuth configures gateway authentication.
type GatewayAuth struct {
	Mode     string `yaml:"mode,omitempty"` // "token" | "password"
	Token    string `yaml:"token,omitempty"`
	Password string `yaml:"password,omitempty"`
}

// ChannelsConfig defines channel-specific configurations.
type ChannelsConfig struct {
	IRC *IRCConfig `yaml:"irc,omitempty"`
}

// IRCConfig defines IRC channel settings.
type IRCConfig struct {
	Server   string   `yaml:"server"`
	Port     int      `yaml:"port,omitempty"`
	Nick     string   `yaml:"nick"`
	Password string   `yaml:"password,omitempty"`
	Channels []string `yaml:"channels"`
	UseTLS   bool     `yaml:"useTLS,omitempty"`
	SASL     bool     `yaml:"sasl,omitempty"`
	Owner    string   `yaml:"owner,omitempty"` // only accept messages from this nick when set
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `yaml:"level,omitempty"`  // "silent" | "fatal" | "error" | "warn" | "info" | "debug" | "trace"
	Format string `yaml:"format,omitempty"` // "pretty" | "json"
	File   string `yaml:"file,omitempty"`
}

// HooksConfig binds shell commands to lifecycle events.
type HooksConfig struct {
	TurnStart    []HookEntry `yaml:"turnStart,omitempty"`
	ToolCall     []HookEntry `yaml:"toolCall,omitempty"`
	TurnEnd      []HookEntry `yaml:"turnEnd,omitempty"`
	TurnError    []HookEntry `yaml:"turnError,omitempty"`
	GatewayStart []HookEntry `yaml:"gatewayStart,omitempty"`
	GatewayStop  []HookEntry `yaml:"gatewayStop,omitempty"`
}

// HookEntry defines a single hook action.
type HookEntry struct {
	Command string `yaml:"command"`
	Timeout int    `yaml:"timeout,omitempty"` // milliseconds
}
