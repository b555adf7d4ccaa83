// Package agent runs the tool-dispatch loop: a user message goes into a
// thread, the model is called with the thread and the tool set, requested
// tools run, and the loop ends on the model's final answer.
package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/olasquare/olasquare/internal/config"
	"github.com/olasquare/olasquare/internal/domain"
	"github.com/olasquare/olasquare/internal/hooks"
	"github.com/olasquare/olasquare/internal/llm"
	"github.com/olasquare/olasquare/internal/logging"
	"github.com/olasquare/olasquare/internal/tools"
)

// maxParallelTools bounds concurrent tool calls within one round.
const maxParallelTools = 8

// Options configures a Dispatcher.
type Options struct {
	Persona       Persona
	MaxToolRounds int
	ParallelTools bool
	MaxTokens     int
	Temperature   *float64
}

// OptionsFromConfig builds dispatcher options from the agent and model
// sections. A configured system prompt replaces the persona's prompt.
func OptionsFromConfig(agentCfg config.AgentConfig, modelCfg config.ModelConfig) (Options, error) {
	persona, err := LookupPersona(agentCfg.Persona)
	if err != nil {
		return Options{}, err
	}
	if agentCfg.SystemPrompt != "" {
		persona.Prompt = agentCfg.SystemPrompt
	}
	return Options{
		Persona:       persona,
		MaxToolRounds: agentCfg.MaxToolRounds,
		ParallelTools: agentCfg.ParallelTools,
		MaxTokens:     modelCfg.MaxTokens,
		Temperature:   modelCfg.Temperature,
	}, nil
}

// TurnResult is the outcome of one Send.
type TurnResult struct {
	ThreadID  string        `json:"threadId"`
	Response  string        `json:"response"`
	Rounds    int           `json:"rounds"`
	ToolCalls int           `json:"toolCalls"`
	Model     string        `json:"model,omitempty"`
	Usage     llm.Usage     `json:"usage"`
	Duration  time.Duration `json:"duration"`
}

// Dispatcher is the agent loop. Turns on the same thread are serialised;
// turns on different threads run concurrently.
type Dispatcher struct {
	opts   Options
	client llm.Client
	tools  *tools.Registry
	store  ThreadStore
	hooks  *hooks.Manager
	log    *logging.Logger
	now    func() time.Time

	mu    sync.Mutex
	locks map[string]*threadLock
}

type threadLock struct {
	ch   chan struct{}
	refs int
}

// NewDispatcher creates a dispatcher. A zero MaxToolRounds uses the default.
func NewDispatcher(opts Options, client llm.Client, reg *tools.Registry, store ThreadStore, log *logging.Logger) *Dispatcher {
	if opts.MaxToolRounds <= 0 {
		opts.MaxToolRounds = config.DefaultMaxToolRounds
	}
	if opts.Persona.Name == "" {
		opts.Persona = personas["assistant"]
	}
	return &Dispatcher{
		opts:   opts,
		client: client,
		tools:  reg,
		store:  store,
		log:    log.Sub("agent"),
		now:    time.Now,
		locks:  make(map[string]*threadLock),
	}
}

// SetHooks attaches a hook manager for turn lifecycle events.
func (d *Dispatcher) SetHooks(m *hooks.Manager) {
	d.hooks = m
}

// Store returns the conversation store the dispatcher appends to.
func (d *Dispatcher) Store() ThreadStore {
	return d.store
}

// Persona returns the active persona.
func (d *Dispatcher) Persona() Persona {
	return d.opts.Persona
}

// ToolDefinitions returns the tool declarations offered to the model.
func (d *Dispatcher) ToolDefinitions() []llm.ToolDefinition {
	if d.tools == nil {
		return nil
	}
	var defs []llm.ToolDefinition
	for _, def := range d.tools.Definitions() {
		if d.opts.Persona.Allows(def.Name) {
			defs = append(defs, def)
		}
	}
	return defs
}

// Send runs one user turn on threadID and returns the final answer.
//
// Errors are *GatewayError when the model call fails and *TurnLimitError
// (matching ErrTurnLimitExceeded) when the model keeps asking for tools.
// Tool failures never abort the turn; they reach the model as "Error: ..."
// results. Nothing appended before a failure is rolled back.
func (d *Dispatcher) Send(ctx context.Context, threadID, text string) (*TurnResult, error) {
	if strings.TrimSpace(threadID) == "" {
		return nil, errors.New("thread id is required")
	}
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("message is empty")
	}

	unlock, err := d.lock(ctx, threadID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	start := time.Now()
	log := d.log.With("threadId", threadID)
	d.hooks.Emit(ctx, hooks.EventTurnStart, map[string]any{"threadId": threadID, "message": text})

	result, err := d.run(ctx, threadID, text, log)
	if err != nil {
		log.Warn().Err(err).Dur("duration", time.Since(start)).Msg("turn failed")
		d.hooks.Emit(ctx, hooks.EventTurnError, map[string]any{"threadId": threadID, "error": err.Error()})
		return nil, err
	}

	result.Duration = time.Since(start)
	log.Info().
		Int("rounds", result.Rounds).
		Int("toolCalls", result.ToolCalls).
		Str("model", result.Model).
		Int("inputTokens", result.Usage.InputTokens).
		Int("outputTokens", result.Usage.OutputTokens).
		Dur("duration", result.Duration).
		Msg("turn complete")
	d.hooks.Emit(ctx, hooks.EventTurnEnd, map[string]any{
		"threadId": threadID,
		"response": result.Response,
		"rounds":   result.Rounds,
		"model":    result.Model,
	})
	return result, nil
}

func (d *Dispatcher) run(ctx context.Context, threadID, text string, log *logging.Logger) (*TurnResult, error) {
	if err := d.store.Append(ctx, threadID, domain.UserMessage(text)); err != nil {
		return nil, fmt.Errorf("storing user message: %w", err)
	}

	system := BuildSystemPrompt(d.opts.Persona, d.now())
	defs := d.ToolDefinitions()
	result := &TurnResult{ThreadID: threadID}

	for {
		history, err := d.store.History(ctx, threadID)
		if err != nil {
			return nil, fmt.Errorf("loading history: %w", err)
		}

		log.Debug().Int("historyLen", len(history)).Int("round", result.Rounds).Msg("calling model")
		resp, err := d.client.Complete(ctx, llm.CompletionRequest{
			System:      system,
			Messages:    history,
			Tools:       defs,
			MaxTokens:   d.opts.MaxTokens,
			Temperature: d.opts.Temperature,
		})
		if err != nil {
			return nil, &GatewayError{Provider: d.client.Name(), Err: err}
		}
		result.Usage.Add(resp.Usage)
		if resp.Model != "" {
			result.Model = resp.Model
		}

		turn := resp.Turn()
		if turn.Kind == llm.TurnFinal {
			if err := d.store.Append(ctx, threadID, domain.AssistantMessage(turn.Text, nil)); err != nil {
				return nil, fmt.Errorf("storing answer: %w", err)
			}
			result.Response = turn.Text
			return result, nil
		}

		if result.Rounds >= d.opts.MaxToolRounds {
			return nil, &TurnLimitError{Rounds: result.Rounds}
		}

		log.Info().Int("toolCalls", len(turn.Calls)).Int("round", result.Rounds+1).Msg("executing tool calls")
		if err := d.store.Append(ctx, threadID, domain.AssistantMessage(turn.Text, turn.Calls)); err != nil {
			return nil, fmt.Errorf("storing tool request: %w", err)
		}

		outputs, runErr := d.runTools(ctx, threadID, turn.Calls)
		msgs := make([]domain.Message, 0, len(turn.Calls))
		for i, call := range turn.Calls {
			msgs = append(msgs, domain.ToolMessage(call.ID, outputs[i]))
		}
		// Results are stored even for a cancelled turn so every request keeps its answer.
		if err := d.store.Append(context.WithoutCancel(ctx), threadID, msgs...); err != nil {
			return nil, fmt.Errorf("storing tool results: %w", err)
		}
		if runErr != nil {
			return nil, runErr
		}

		result.Rounds++
		result.ToolCalls += len(turn.Calls)
	}
}

// runTools executes calls and returns their outputs in request order. The
// error is non-nil only when ctx ended while the tools ran.
func (d *Dispatcher) runTools(ctx context.Context, threadID string, calls []domain.ToolCallRequest) ([]string, error) {
	outputs := make([]string, len(calls))
	invoke := func(i int) error {
		call := calls[i]
		out := d.invoke(ctx, call)
		outputs[i] = out
		d.hooks.Emit(ctx, hooks.EventToolCall, map[string]any{
			"threadId":  threadID,
			"tool":      call.Name,
			"arguments": call.Arguments,
			"failed":    strings.HasPrefix(out, "Error: "),
		})
		return ctx.Err()
	}

	if !d.opts.ParallelTools || len(calls) == 1 {
		var err error
		for i := range calls {
			if e := invoke(i); e != nil && err == nil {
				err = e
			}
		}
		return outputs, err
	}

	var g errgroup.Group
	g.SetLimit(maxParallelTools)
	for i := range calls {
		i := i
		g.Go(func() error { return invoke(i) })
	}
	return outputs, g.Wait()
}

func (d *Dispatcher) invoke(ctx context.Context, call domain.ToolCallRequest) string {
	if d.tools == nil || !d.opts.Persona.Allows(call.Name) {
		return fmt.Sprintf("Error: no such tool: %s", call.Name)
	}
	return d.tools.Invoke(ctx, call.Name, call.Arguments)
}

// lock acquires the per-thread lock, giving up when ctx is done.
func (d *Dispatcher) lock(ctx context.Context, threadID string) (func(), error) {
	d.mu.Lock()
	l, ok := d.locks[threadID]
	if !ok {
		l = &threadLock{ch: make(chan struct{}, 1)}
		d.locks[threadID] = l
	}
	l.refs++
	d.mu.Unlock()

	release := func() {
		d.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(d.locks, threadID)
		}
		d.mu.Unlock()
	}

	select {
	case l.ch <- struct{}{}:
		return func() {
			<-l.ch
			release()
		}, nil
	case <-ctx.Done():
		release()
		return nil, ctx.Err()
	}
}
