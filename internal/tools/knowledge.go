package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/olasquare/olasquare/internal/store"
)

// KnowledgeBase is the subset of store.KnowledgeStore the tool needs.
type KnowledgeBase interface {
	Search(ctx context.Context, query string, limit int) ([]store.KnowledgeChunk, error)
}

// Knowledge exposes the local knowledge base to the model.
type Knowledge struct {
	kb KnowledgeBase
}

// NewKnowledge creates the search_knowledge tool.
func NewKnowledge(kb KnowledgeBase) *Knowledge {
	return &Knowledge{kb: kb}
}

// Spec declares search_knowledge.
func (k *Knowledge) Spec() Spec {
	return Spec{
		Name:        "search_knowledge",
		Description: "Search the local knowledge base for passages relevant to a question. Prefer this over web_search for computer-science topics.",
		Parameters: Object(map[string]any{
			"query": String("What to look for"),
			"limit": Integer("Maximum number of passages to return (default 3)"),
		}, "query"),
		Handler: k.handle,
	}
}

func (k *Knowledge) handle(ctx context.Context, raw map[string]any) (string, error) {
	var args struct {
		Query string `mapstructure:"query"`
		Limit int    `mapstructure:"limit"`
	}
	if err := DecodeArgs(raw, &args); err != nil {
		return "", err
	}
	query, err := requireString("query", args.Query)
	if err != nil {
		return "", err
	}
	limit := args.Limit
	if limit <= 0 {
		limit = 3
	}
	if limit > 10 {
		limit = 10
	}

	chunks, err := k.kb.Search(ctx, query, limit)
	if err != nil {
		return "", err
	}
	if len(chunks) == 0 {
		return "No relevant passages found in the knowledge base", nil
	}

	var b strings.Builder
	for i, c := range chunks {
		if i > 0 {
			b.WriteString("\n\n")
		}
		title := orDefault(c.Title, "Untitled")
		fmt.Fprintf(&b, "[%d] %s", i+1, title)
		if c.Source != "" {
			fmt.Fprintf(&b, " (%s)", c.Source)
		}
		b.WriteString("\n")
		b.WriteString(c.Content)
	}
	return b.String(), nil
}
