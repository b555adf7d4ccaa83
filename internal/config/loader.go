package config

import (
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// envVarPattern matches ${VAR_NAME} patterns in strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnvVars replaces ${VAR} patterns with environment variable values.
// Unset variables are left unchanged.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		if val, ok := os.LookupEnv(varName); ok {
			return val
		}
		return match
	})
}

// expandSensitiveFields processes environment variable references in
// credential fields so API keys and passwords can be stored as ${ENV_VAR}.
func expandSensitiveFields(cfg *Config) {
	cfg.Model.APIKey = expandEnvVars(cfg.Model.APIKey)
	cfg.Model.BaseURL = expandEnvVars(cfg.Model.BaseURL)
	for i := range cfg.Model.Fallbacks {
		cfg.Model.Fallbacks[i].APIKey = expandEnvVars(cfg.Model.Fallbacks[i].APIKey)
		cfg.Model.Fallbacks[i].BaseURL = expandEnvVars(cfg.Model.Fallbacks[i].BaseURL)
	}
	cfg.Tools.Weather.APIKey = expandEnvVars(cfg.Tools.Weather.APIKey)
	cfg.Tools.Search.APIKey = expandEnvVars(cfg.Tools.Search.APIKey)
	cfg.Gateway.Auth.Token = expandEnvVars(cfg.Gateway.Auth.Token)
	cfg.Gateway.Auth.Password = expandEnvVars(cfg.Gateway.Auth.Password)
	if cfg.Channels.IRC != nil {
		cfg.Channels.IRC.Password = expandEnvVars(cfg.Channels.IRC.Password)
	}
}

// Load reads the config file, applies environment overrides, and returns
// a merged Config. Missing files produce defaults only.
func Load(path string) (Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyDefaults(&cfg)
			applyEnvOverrides(&cfg)
			return cfg, nil
		}
		return cfg, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, &ConfigError{Message: "failed to parse config: " + err.Error()}
	}

	applyDefaults(&cfg)
	expandSensitiveFields(&cfg)
	applyEnvOverrides(&cfg)
	return cfg, nil
}

// LoadRaw reads the config file into a generic map for path-based access.
func LoadRaw(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]any{}, nil
		}
		return nil, err
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &ConfigError{Message: "failed to parse config: " + err.Error()}
	}
	return raw, nil
}

// SaveRaw writes a generic map back to a YAML config file, creating the
// parent directory if needed.
func SaveRaw(path string, raw map[string]any) error {
	data, err := yaml.Marshal(raw)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// applyDefaults fills zero-value fields with sensible defaults.
func applyDefaults(cfg *Config) {
	if cfg.Model.Provider == "" {
		cfg.Model.Provider = DefaultProvider
	}
	if cfg.Model.Name == "" {
		cfg.Model.Name = DefaultModelFor(cfg.Model.Provider)
	}
	for i := range cfg.Model.Fallbacks {
		if cfg.Model.Fallbacks[i].Name == "" {
			cfg.Model.Fallbacks[i].Name = DefaultModelFor(cfg.Model.Fallbacks[i].Provider)
		}
	}
	if cfg.Model.Timeout == 0 {
		cfg.Model.Timeout = DefaultModelTimeout
	}
	if cfg.Model.Breaker.Threshold > 0 && cfg.Model.Breaker.Cooldown == 0 {
		cfg.Model.Breaker.Cooldown = 30 * time.Second
	}
	if cfg.Agent.Persona == "" {
		cfg.Agent.Persona = "assistant"
	}
	if cfg.Agent.MaxToolRounds == 0 {
		cfg.Agent.MaxToolRounds = DefaultMaxToolRounds
	}
	if cfg.Tools.Timeout == 0 {
		cfg.Tools.Timeout = DefaultToolTimeout
	}
	if cfg.Tools.Search.Provider == "" {
		cfg.Tools.Search.Provider = "duckduckgo"
	}
	if cfg.Tools.Search.MaxResults == 0 {
		cfg.Tools.Search.MaxResults = 5
	}
	if cfg.Store.Driver == "" {
		cfg.Store.Driver = "sqlite"
	}
	if cfg.Session.Scope == "" {
		cfg.Session.Scope = "per-sender"
	}
	if cfg.Gateway.Port == 0 {
		cfg.Gateway.Port = DefaultGatewayPort
	}
	if cfg.Gateway.Bind == "" {
		cfg.Gateway.Bind = "loopback"
	}
	if cfg.Gateway.Auth.Mode == "" {
		cfg.Gateway.Auth.Mode = "token"
	}
	if cfg.Channels.IRC != nil && cfg.Channels.IRC.Port == 0 {
		cfg.Channels.IRC.Port = 6667
		if cfg.Channels.IRC.UseTLS {
			cfg.Channels.IRC.Port = 6697
		}
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "pretty"
	}
}

// applyEnvOverrides reads OLASQUARE_* environment variables and overrides
// config values, then falls back to the conventional provider key variables
// for credentials that are still empty.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("OLASQUARE_PROVIDER"); v != "" {
		prev := cfg.Model.Provider
		cfg.Model.Provider = strings.ToLower(v)
		if cfg.Model.Name == DefaultModelFor(prev) {
			cfg.Model.Name = DefaultModelFor(cfg.Model.Provider)
		}
	}
	if v := os.Getenv("OLASQUARE_MODEL"); v != "" {
		cfg.Model.Name = v
	}
	if v := os.Getenv("OLASQUARE_API_KEY"); v != "" {
		cfg.Model.APIKey = v
	}
	if v := os.Getenv("OLASQUARE_PERSONA"); v != "" {
		cfg.Agent.Persona = strings.ToLower(v)
	}
	if v := os.Getenv("OLASQUARE_MAX_TOOL_ROUNDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Agent.MaxToolRounds = n
		}
	}
	if v := os.Getenv("OLASQUARE_GATEWAY_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Gateway.Port = port
		}
	}
	if v := os.Getenv("OLASQUARE_GATEWAY_TOKEN"); v != "" {
		cfg.Gateway.Auth.Token = v
	}
	if v := os.Getenv("OLASQUARE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}

	if cfg.Model.APIKey == "" {
		if name := providerKeyEnv[cfg.Model.Provider]; name != "" {
			cfg.Model.APIKey = os.Getenv(name)
		}
	}
	for i := range cfg.Model.Fallbacks {
		fb := &cfg.Model.Fallbacks[i]
		if fb.APIKey == "" {
			if name := providerKeyEnv[fb.Provider]; name != "" {
				fb.APIKey = os.Getenv(name)
			}
		}
	}
	if cfg.Tools.Weather.APIKey == "" {
		cfg.Tools.Weather.APIKey = os.Getenv("WEATHER_KEY")
	}
	if cfg.Tools.Search.APIKey == "" {
		cfg.Tools.Search.APIKey = os.Getenv("BRAVE_API_KEY")
	}
}

var providerKeyEnv = map[string]string{
	"openai":    "OPENAI_API_KEY",
	"anthropic": "ANTHROPIC_API_KEY",
}
