// Package websearch implements the web_search tool adapter over Serper or
// Brave, producing discovery leads for the collection engine.
package websearch

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/radarhq/radar/config"
	"github.com/radarhq/radar/internal/tools"
)

// ToolName is the registry name of this adapter.
const ToolName = "web_search"

type searcher interface {
	discover(ctx context.Context, q string, k int) ([]tools.Lead, error)
}

// Adapter is the web_search tool.
type Adapter struct {
	cfg      config.WebSearchConfig
	provider searcher
}

// New builds the adapter for the configured provider.
func New(cfg config.WebSearchConfig) (*Adapter, error) {
	client := &http.Client{Timeout: cfg.Timeout}
	if cfg.Timeout == 0 {
		client.Timeout = 30 * time.Second
	}
	var s searcher
	switch cfg.Provider {
	case "", "serper":
		if cfg.SerperAPIKey == "" {
			return nil, fmt.Errorf("serper api key not configured")
		}
		s = &serperSearch{apiKey: cfg.SerperAPIKey, client: client}
	case "brave":
		if cfg.BraveAPIKey == "" {
			return nil, fmt.Errorf("brave api key not configured")
		}
		s = &braveSearch{apiKey: cfg.BraveAPIKey, client: client}
	default:
		return nil, fmt.Errorf("unsupported web search provider: %s", cfg.Provider)
	}
	return &Adapter{cfg: cfg, provider: s}, nil
}

func (a *Adapter) Name() string { return ToolName }

func (a *Adapter) Description() string {
	return "Generic web search. Use to find articles recommending creators or discussing a topic; returns leads (title, url, snippet), not platform content."
}

func (a *Adapter) Defaults() map[string]interface{} {
	limit := a.cfg.MaxResults
	if limit <= 0 {
		limit = 20
	}
	return map[string]interface{}{"limit": limit}
}

// Invoke runs one search. Args: query (required), limit.
func (a *Adapter) Invoke(ctx context.Context, args map[string]interface{}) (tools.Result, error) {
	query, _ := args["query"].(string)
	if query == "" {
		return tools.Result{Tool: ToolName}, tools.NewError(ToolName, tools.ErrMalformed, fmt.Errorf("missing query argument"))
	}
	limit := intArg(args, "limit", 20)

	leads, err := a.provider.discover(ctx, query, limit)
	if err != nil {
		return tools.Result{Tool: ToolName}, err
	}
	return tools.Result{
		Tool:    ToolName,
		Leads:   leads,
		Summary: fmt.Sprintf("web_search %q returned %d leads", query, len(leads)),
	}, nil
}

func intArg(args map[string]interface{}, key string, def int) int {
	switch v := args[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return def
}
