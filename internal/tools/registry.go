// Package tools holds the tool registry the dispatcher executes model tool
// calls through, and the built-in tools.
package tools

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/olasquare/olasquare/internal/llm"
	"github.com/olasquare/olasquare/internal/logging"
)

// ErrToolNotFound is returned by Resolve for names that were never registered.
var ErrToolNotFound = errors.New("tool not found")

// Handler executes a tool. Arguments arrive exactly as the model produced them.
type Handler func(ctx context.Context, args map[string]any) (string, error)

// Spec declares a tool: its name, what it does, a JSON Schema object for its
// arguments, and the handler that runs it.
type Spec struct {
	Name        string
	Description string
	Parameters  map[string]any
	Handler     Handler
}

// Registry maps tool names to specs. It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	specs   map[string]Spec
	timeout time.Duration
	log     *logging.Logger
}

// NewRegistry creates an empty registry. A positive timeout bounds every
// invocation.
func NewRegistry(timeout time.Duration, log *logging.Logger) *Registry {
	return &Registry{
		specs:   make(map[string]Spec),
		timeout: timeout,
		log:     log.Sub("tools"),
	}
}

// Register adds a tool. Names must be non-empty and unique.
func (r *Registry) Register(spec Spec) error {
	if spec.Name == "" {
		return errors.New("tool name is required")
	}
	if spec.Handler == nil {
		return fmt.Errorf("tool %q has no handler", spec.Name)
	}
	if spec.Parameters == nil {
		spec.Parameters = Object(nil)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.specs[spec.Name]; exists {
		return fmt.Errorf("tool %q already registered", spec.Name)
	}
	r.specs[spec.Name] = spec
	r.log.Debug().Str("tool", spec.Name).Msg("registered tool")
	return nil
}

// Resolve looks up a tool by name.
func (r *Registry) Resolve(name string) (Spec, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	spec, ok := r.specs[name]
	if !ok {
		return Spec{}, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}
	return spec, nil
}

// Names returns registered tool names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.specs))
	for n := range r.specs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Definitions returns the declarations sent to the model, sorted by name.
func (r *Registry) Definitions() []llm.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]llm.ToolDefinition, 0, len(r.specs))
	for _, s := range r.specs {
		defs = append(defs, llm.ToolDefinition{Name: s.Name, Description: s.Description, Parameters: s.Parameters})
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// Invoke runs a tool and always returns text for the model. Unknown tools,
// handler errors, panics and timeouts are all reported as "Error: ..." strings.
func (r *Registry) Invoke(ctx context.Context, name string, args map[string]any) string {
	spec, err := r.Resolve(name)
	if err != nil {
		r.log.Warn().Str("tool", name).Msg("model requested unknown tool")
		return fmt.Sprintf("Error: no such tool: %s", name)
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	type outcome struct {
		text string
		err  error
	}
	done := make(chan outcome, 1)
	start := time.Now()

	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- outcome{err: fmt.Errorf("panic: %v", p)}
			}
		}()
		text, err := spec.Handler(ctx, args)
		done <- outcome{text: text, err: err}
	}()

	var out outcome
	select {
	case out = <-done:
	case <-ctx.Done():
		out.err = ctx.Err()
		if errors.Is(out.err, context.DeadlineExceeded) {
			out.err = fmt.Errorf("timed out after %s", r.timeout)
		}
	}

	if out.err != nil {
		r.log.Warn().Str("tool", name).Dur("elapsed", time.Since(start)).Err(out.err).Msg("tool failed")
		return fmt.Sprintf("Error: %s failed: %v", name, out.err)
	}
	r.log.Debug().Str("tool", name).Dur("elapsed", time.Since(start)).Int("bytes", len(out.text)).Msg("tool completed")
	return out.text
}
