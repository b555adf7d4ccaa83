package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/olasquare/olasquare/internal/config"
)

// SearchResult is a single web search hit.
type SearchResult struct {
	Title   string
	URL     string
	Snippet string
}

// Searcher runs a web query.
type Searcher interface {
	Search(ctx context.Context, query string, max int) ([]SearchResult, error)
}

// NewSearcher picks the backend named by cfg.Provider.
func NewSearcher(cfg config.SearchConfig) (Searcher, error) {
	switch cfg.Provider {
	case "", "duckduckgo":
		return NewDuckDuckGo(), nil
	case "brave":
		return NewBrave(cfg.APIKey), nil
	default:
		return nil, fmt.Errorf("unknown search provider %q", cfg.Provider)
	}
}

// WebSearch exposes a Searcher to the model.
type WebSearch struct {
	searcher   Searcher
	maxResults int
}

// NewWebSearch creates the web_search tool. maxResults is the default when
// the model does not ask for a specific count.
func NewWebSearch(s Searcher, maxResults int) *WebSearch {
	if maxResults <= 0 {
		maxResults = 5
	}
	return &WebSearch{searcher: s, maxResults: maxResults}
}

// Spec declares web_search.
func (w *WebSearch) Spec() Spec {
	return Spec{
		Name:        "web_search",
		Description: "Search the web for information on a given query. Returns a summary of results (title, snippet and link).",
		Parameters: Object(map[string]any{
			"query":       String("Search query"),
			"max_results": Integer(fmt.Sprintf("Maximum number of results to return (default %d)", w.maxResults)),
		}, "query"),
		Handler: w.handle,
	}
}

func (w *WebSearch) handle(ctx context.Context, raw map[string]any) (string, error) {
	var args struct {
		Query      string `mapstructure:"query"`
		MaxResults int    `mapstructure:"max_results"`
	}
	if err := DecodeArgs(raw, &args); err != nil {
		return "", err
	}
	query, err := requireString("query", args.Query)
	if err != nil {
		return "", err
	}
	limit := args.MaxResults
	if limit <= 0 {
		limit = w.maxResults
	}
	if limit > 20 {
		limit = 20
	}

	results, err := w.searcher.Search(ctx, query, limit)
	if err != nil {
		return "", err
	}
	return FormatResults(results, limit), nil
}

// FormatResults renders hits as a numbered list, or "No result found".
func FormatResults(results []SearchResult, limit int) string {
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	if len(results) == 0 {
		return "No result found"
	}

	parts := make([]string, 0, len(results))
	for i, r := range results {
		title := orDefault(r.Title, "No title")
		snippet := orDefault(r.Snippet, "No description")
		link := orDefault(r.URL, "No link")
		parts = append(parts, fmt.Sprintf("%d.%s\n  %s\n  Source:%s", i+1, title, snippet, link))
	}
	return strings.Join(parts, "\n\n")
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
