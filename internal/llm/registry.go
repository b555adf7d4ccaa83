package llm

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/olasquare/olasquare/internal/config"
	"github.com/olasquare/olasquare/internal/logging"
)

// Registry manages provider clients and resolves model references to them.
type Registry struct {
	mu       sync.RWMutex
	clients  map[string]Client // endpoint key → client
	aliases  map[string]string // model name or alias → endpoint key
	chain    []string          // failover order
	fallback string            // default endpoint key
	log      *logging.Logger
}

// NewRegistry creates an empty provider registry.
func NewRegistry(log *logging.Logger) *Registry {
	return &Registry{
		clients: make(map[string]Client),
		aliases: make(map[string]string),
		log:     log.Sub("llm.registry"),
	}
}

// Register adds a client under the given key.
func (r *Registry) Register(key string, client Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[key] = client
	r.log.Info().Str("key", key).Str("provider", client.Name()).Msg("registered model provider")
}

// Alias maps a model name or short alias to a registered key.
func (r *Registry) Alias(model, key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.aliases[model] = key
}

// SetFallback sets the key used when no exact or alias match is found.
func (r *Registry) SetFallback(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback = key
}

// AddToChain appends a key to the failover order.
func (r *Registry) AddToChain(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chain = append(r.chain, key)
}

// Resolve returns the Client for the given model reference.
// Resolution order: exact key → alias → fallback.
func (r *Registry) Resolve(model string) (Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	key, err := r.resolveKey(model)
	if err != nil {
		return nil, err
	}
	return r.clients[key], nil
}

func (r *Registry) resolveKey(model string) (string, error) {
	if _, ok := r.clients[model]; ok {
		return model, nil
	}
	if key, ok := r.aliases[model]; ok {
		if _, ok := r.clients[key]; ok {
			return key, nil
		}
	}
	if r.fallback != "" {
		if _, ok := r.clients[r.fallback]; ok {
			return r.fallback, nil
		}
	}
	return "", fmt.Errorf("no LLM provider for model %q", model)
}

// Chain returns the client for model followed by the remaining failover
// chain. A single client is returned unwrapped.
func (r *Registry) Chain(model string) (Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	key, err := r.resolveKey(model)
	if err != nil {
		return nil, err
	}
	primary := r.clients[key]

	var rest []Client
	for _, k := range r.chain {
		if k != key {
			rest = append(rest, r.clients[k])
		}
	}
	if len(rest) == 0 {
		return primary, nil
	}
	return NewFailoverClient(r.log, primary, rest...), nil
}

// List returns all registered keys, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.clients))
	for n := range r.clients {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// EndpointKey is the registry key for a configured endpoint.
func EndpointKey(ep config.ModelEndpoint) string {
	return ep.Provider + "/" + ep.Name
}

// NewClient builds the HTTP client for a single configured endpoint.
func NewClient(ep config.ModelEndpoint, timeout time.Duration) (Client, error) {
	switch ep.Provider {
	case "openai":
		if ep.APIKey == "" && ep.BaseURL == "" {
			return nil, &ProviderError{Provider: ep.Provider, Code: 401, Message: "API key not configured (set model.apiKey or OPENAI_API_KEY)"}
		}
		return NewOpenAIClient(ep.APIKey, ep.BaseURL, ep.Name, timeout), nil
	case "anthropic":
		if ep.APIKey == "" {
			return nil, &ProviderError{Provider: ep.Provider, Code: 401, Message: "API key not configured (set model.apiKey or ANTHROPIC_API_KEY)"}
		}
		return NewClaudeAPIClient(ep.APIKey, ep.BaseURL, ep.Name, timeout), nil
	case "ollama":
		return NewOllamaAPIClient(ep.BaseURL, ep.Name, timeout), nil
	default:
		return nil, fmt.Errorf("unknown model provider %q", ep.Provider)
	}
}

// NewRegistryFromConfig builds a Registry holding the primary model, its
// fallbacks and any aliased models. Every endpoint is wrapped in a circuit
// breaker when model.breaker.threshold is set. The primary is the fallback
// for unknown model names.
func NewRegistryFromConfig(cfg config.ModelConfig, log *logging.Logger) (*Registry, error) {
	reg := NewRegistry(log)

	add := func(ep config.ModelEndpoint, inChain bool) (string, error) {
		key := EndpointKey(ep)
		if _, exists := reg.clients[key]; exists {
			return key, nil
		}
		client, err := NewClient(ep, cfg.Timeout)
		if err != nil {
			return "", err
		}
		if cfg.Breaker.Threshold > 0 {
			client = NewBreakerClient(client, cfg.Breaker.Threshold, cfg.Breaker.Cooldown, log)
		}
		reg.Register(key, client)
		reg.Alias(ep.Name, key)
		if _, taken := reg.aliases[ep.Provider]; !taken {
			reg.Alias(ep.Provider, key)
		}
		if inChain {
			reg.AddToChain(key)
		}
		return key, nil
	}

	primary, err := add(cfg.ModelEndpoint, true)
	if err != nil {
		return nil, err
	}
	reg.SetFallback(primary)

	for _, fb := range cfg.Fallbacks {
		if _, err := add(fb, true); err != nil {
			// A broken fallback must not take down the primary.
			reg.log.Warn().Str("provider", fb.Provider).Str("model", fb.Name).Err(err).Msg("skipping fallback model")
		}
	}

	aliases := make([]string, 0, len(cfg.Aliases))
	for a := range cfg.Aliases {
		aliases = append(aliases, a)
	}
	sort.Strings(aliases)
	for _, alias := range aliases {
		target := cfg.Aliases[alias]
		key, ok := reg.aliases[target]
		if !ok {
			ep := cfg.ModelEndpoint
			ep.Name = target
			if key, err = add(ep, false); err != nil {
				return nil, err
			}
		}
		reg.Alias(alias, key)
	}

	return reg, nil
}
