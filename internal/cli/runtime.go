package cli

import (
	"errors"
	"fmt"

	"github.com/olasquare/olasquare/internal/agent"
	"github.com/olasquare/olasquare/internal/config"
	"github.com/olasquare/olasquare/internal/hooks"
	"github.com/olasquare/olasquare/internal/llm"
	"github.com/olasquare/olasquare/internal/logging"
	"github.com/olasquare/olasquare/internal/store"
	"github.com/olasquare/olasquare/internal/tools"
)

// newModelClient builds the model gateway: the primary model, its
// fallbacks and circuit breakers. Tests swap it for a scripted client.
var newModelClient = func(mc config.ModelConfig, log *logging.Logger) (llm.Client, error) {
	reg, err := llm.NewRegistryFromConfig(mc, log)
	if err != nil {
		return nil, err
	}
	return reg.Chain(mc.Name)
}

// runtime is the set of components a command works with.
type runtime struct {
	db         *store.DB
	threads    agent.ThreadStore
	knowledge  *store.KnowledgeStore
	tools      *tools.Registry
	hooks      *hooks.Manager
	dispatcher *agent.Dispatcher
}

type runtimeOptions struct {
	persona string // overrides agent.persona when set
	model   bool   // build the model gateway and dispatcher
}

// openRuntime wires stores, tools, hooks and (optionally) the dispatcher
// from the loaded config.
func openRuntime(opts runtimeOptions) (*runtime, error) {
	rt := &runtime{}

	switch cfg.Store.Driver {
	case "memory":
		rt.threads = agent.NewMemoryThreadStore()
		log.Debug().Msg("using in-memory thread store")
	default:
		dbPath := paths.Database(cfg.Store)
		db, err := store.Open(dbPath, log)
		if err != nil {
			return nil, fmt.Errorf("opening database: %w", err)
		}
		rt.db = db
		rt.threads = store.NewSQLiteThreadStore(db)
		rt.knowledge = store.NewKnowledgeStore(db)
		log.Debug().Str("path", dbPath).Msg("using SQLite thread store")
	}

	rt.tools = tools.NewRegistry(cfg.Tools.Timeout, log)
	var kb tools.KnowledgeBase
	if rt.knowledge != nil {
		kb = rt.knowledge
	}
	if err := tools.RegisterBuiltins(rt.tools, cfg.Tools, kb); err != nil {
		rt.Close()
		return nil, err
	}

	rt.hooks = hooks.NewManager(log)
	if n := rt.hooks.RegisterConfig(cfg.Hooks); n > 0 {
		log.Info().Int("hooks", n).Msg("registered config hooks")
	}

	if !opts.model {
		return rt, nil
	}

	agentCfg := cfg.Agent
	if opts.persona != "" {
		agentCfg.Persona = opts.persona
		agentCfg.SystemPrompt = ""
	}
	dopts, err := agent.OptionsFromConfig(agentCfg, cfg.Model)
	if err != nil {
		rt.Close()
		return nil, err
	}
	client, err := newModelClient(cfg.Model, log)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("model gateway: %w", err)
	}
	rt.dispatcher = agent.NewDispatcher(dopts, client, rt.tools, rt.threads, log)
	rt.dispatcher.SetHooks(rt.hooks)
	return rt, nil
}

// requireKnowledge fails when the knowledge base is unavailable.
func (rt *runtime) requireKnowledge() error {
	if rt.knowledge == nil {
		return errors.New("the knowledge base needs store.driver: sqlite")
	}
	return nil
}

// Close releases the database, if one was opened.
func (rt *runtime) Close() error {
	if rt.db != nil {
		return rt.db.Close()
	}
	return nil
}
