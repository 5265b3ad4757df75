// Package webpage implements the fetch_page tool adapter: it downloads an
// article and extracts readable text so entity discovery has more than a
// search snippet to work with.
package webpage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"
	"github.com/radarhq/radar/config"
	"github.com/radarhq/radar/internal/tools"
)

// ToolName is the registry name of this adapter.
const ToolName = "fetch_page"

// Adapter is the fetch_page tool.
type Adapter struct {
	cfg    config.WebpageConfig
	client *http.Client
}

// New builds the adapter.
func New(cfg config.WebpageConfig) *Adapter {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 20 * time.Second
	}
	return &Adapter{cfg: cfg, client: &http.Client{Timeout: timeout}}
}

func (a *Adapter) Name() string { return ToolName }

func (a *Adapter) Description() string {
	return "Fetch one web page and extract its readable article text. Use on a promising lead URL before creator extraction when the search snippet is too thin."
}

func (a *Adapter) Defaults() map[string]interface{} { return map[string]interface{}{} }

// Invoke fetches one page. Args: url (required).
func (a *Adapter) Invoke(ctx context.Context, args map[string]interface{}) (tools.Result, error) {
	rawURL, _ := args["url"].(string)
	if rawURL == "" {
		return tools.Result{Tool: ToolName}, tools.NewError(ToolName, tools.ErrMalformed, fmt.Errorf("missing url argument"))
	}
	pageURL, err := url.Parse(rawURL)
	if err != nil {
		return tools.Result{Tool: ToolName}, tools.NewError(ToolName, tools.ErrMalformed, fmt.Errorf("bad url %q: %w", rawURL, err))
	}

	req, err := http.NewRequestWithContext(ctx, "GET", rawURL, nil)
	if err != nil {
		return tools.Result{Tool: ToolName}, tools.NewError(ToolName, tools.ErrNetwork, err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; radar/1.0)")

	resp, err := a.client.Do(req)
	if err != nil {
		return tools.Result{Tool: ToolName}, tools.NewError(ToolName, tools.ErrNetwork, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return tools.Result{Tool: ToolName}, tools.NewError(ToolName, tools.ErrNotFound, fmt.Errorf("fetch status %d", resp.StatusCode))
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return tools.Result{Tool: ToolName}, tools.NewError(ToolName, tools.ErrRateLimited, fmt.Errorf("fetch status %d", resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK {
		return tools.Result{Tool: ToolName}, tools.NewError(ToolName, tools.ErrNetwork, fmt.Errorf("fetch status %d", resp.StatusCode))
	}

	maxBytes := a.cfg.MaxBytes
	if maxBytes <= 0 {
		maxBytes = 2 << 20
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBytes))
	if err != nil {
		return tools.Result{Tool: ToolName}, tools.NewError(ToolName, tools.ErrNetwork, err)
	}

	article, err := readability.FromReader(strings.NewReader(string(body)), pageURL)
	if err != nil {
		return tools.Result{Tool: ToolName}, tools.NewError(ToolName, tools.ErrMalformed, fmt.Errorf("readability: %w", err))
	}

	lead := tools.Lead{
		Title:   article.Title,
		URL:     rawURL,
		Snippet: trimText(article.TextContent, 2000),
		Source:  ToolName,
	}
	return tools.Result{
		Tool:    ToolName,
		Leads:   []tools.Lead{lead},
		Summary: fmt.Sprintf("fetch_page extracted %d chars from %s", len(lead.Snippet), tools.Domain(rawURL)),
	}, nil
}

func trimText(s string, max int) string {
	s = strings.TrimSpace(s)
	if len(s) <= max {
		return s
	}
	return s[:max]
}
