package tools

import (
	"fmt"
	"slices"

	"github.com/olasquare/olasquare/internal/config"
)

// Builtin tool names.
const (
	ToolWeather    = "check_weather"
	ToolDictionary = "check_dictionary"
	ToolWebSearch  = "web_search"
	ToolKnowledge  = "search_knowledge"
)

// BuiltinNames lists every built-in tool.
var BuiltinNames = []string{ToolDictionary, ToolWeather, ToolKnowledge, ToolWebSearch}

// RegisterBuiltins registers the built-in tools allowed by cfg.Enabled (all
// of them when the list is empty). search_knowledge is skipped when kb is nil.
func RegisterBuiltins(reg *Registry, cfg config.ToolsConfig, kb KnowledgeBase) error {
	for _, name := range cfg.Enabled {
		if !slices.Contains(BuiltinNames, name) {
			return fmt.Errorf("unknown built-in tool %q", name)
		}
	}
	enabled := func(name string) bool {
		return len(cfg.Enabled) == 0 || slices.Contains(cfg.Enabled, name)
	}

	var specs []Spec
	if enabled(ToolWeather) {
		specs = append(specs, NewWeather(cfg.Weather).Spec())
	}
	if enabled(ToolDictionary) {
		specs = append(specs, NewDictionary(cfg.Dictionary.Extra).Spec())
	}
	if enabled(ToolWebSearch) {
		searcher, err := NewSearcher(cfg.Search)
		if err != nil {
			return err
		}
		specs = append(specs, NewWebSearch(searcher, cfg.Search.MaxResults).Spec())
	}
	if enabled(ToolKnowledge) && kb != nil {
		specs = append(specs, NewKnowledge(kb).Spec())
	}

	for _, spec := range specs {
		if err := reg.Register(spec); err != nil {
			return err
		}
	}
	return nil
}
