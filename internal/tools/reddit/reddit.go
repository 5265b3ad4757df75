// Package reddit implements the reddit_search tool adapter over the public
// Reddit JSON search API.
package reddit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/radarhq/radar/config"
	"github.com/radarhq/radar/internal/tools"
)

// ToolName is the registry name of this adapter.
const ToolName = "reddit_search"

// Adapter is the reddit_search tool.
type Adapter struct {
	cfg     config.RedditConfig
	client  *http.Client
	baseURL string // test override
}

// New builds the adapter.
func New(cfg config.RedditConfig) *Adapter {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Adapter{cfg: cfg, client: &http.Client{Timeout: timeout}}
}

func (a *Adapter) Name() string { return ToolName }

func (a *Adapter) Description() string {
	return "Search Reddit for posts by keyword, optionally within one subreddit. Returns titles, authors, upvotes and comment counts. Use for community discussion and text content, not video platforms."
}

func (a *Adapter) Defaults() map[string]interface{} {
	limit := a.cfg.MaxResults
	if limit <= 0 {
		limit = 15
	}
	return map[string]interface{}{"limit": limit, "days": 7, "sort": "hot", "subreddit": "all"}
}

// Invoke runs one search. Args: query (required), limit, days, subreddit, sort.
func (a *Adapter) Invoke(ctx context.Context, args map[string]interface{}) (tools.Result, error) {
	query, _ := args["query"].(string)
	if query == "" {
		return tools.Result{Tool: ToolName}, tools.NewError(ToolName, tools.ErrMalformed, fmt.Errorf("missing query argument"))
	}
	limit := intArg(args, "limit", 15)
	days := intArg(args, "days", 7)
	subreddit, _ := args["subreddit"].(string)
	sort, _ := args["sort"].(string)

	base := a.baseURL
	if base == "" {
		base = "https://www.reddit.com"
	}
	path := "/search.json"
	params := url.Values{}
	params.Set("q", query)
	params.Set("limit", fmt.Sprintf("%d", limit))
	params.Set("t", timeBucket(days))
	if sort != "" {
		params.Set("sort", sort)
	}
	if subreddit != "" && subreddit != "all" {
		path = "/r/" + url.PathEscape(subreddit) + "/search.json"
		params.Set("restrict_sr", "1")
	}

	req, err := http.NewRequestWithContext(ctx, "GET", base+path+"?"+params.Encode(), nil)
	if err != nil {
		return tools.Result{Tool: ToolName}, tools.NewError(ToolName, tools.ErrNetwork, err)
	}
	// Reddit throttles the default Go user agent aggressively.
	ua := a.cfg.UserAgent
	if ua == "" {
		ua = "radar/1.0"
	}
	req.Header.Set("User-Agent", ua)

	resp, err := a.client.Do(req)
	if err != nil {
		return tools.Result{Tool: ToolName}, tools.NewError(ToolName, tools.ErrNetwork, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusTooManyRequests {
		return tools.Result{Tool: ToolName}, tools.NewError(ToolName, tools.ErrRateLimited, fmt.Errorf("reddit status %d", resp.StatusCode))
	}
	if resp.StatusCode == http.StatusNotFound {
		return tools.Result{Tool: ToolName}, tools.NewError(ToolName, tools.ErrNotFound, fmt.Errorf("reddit status %d", resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK {
		return tools.Result{Tool: ToolName}, tools.NewError(ToolName, tools.ErrNetwork, fmt.Errorf("reddit status %d", resp.StatusCode))
	}

	var raw struct {
		Data struct {
			Children []struct {
				Data struct {
					Title       string  `json:"title"`
					Permalink   string  `json:"permalink"`
					Author      string  `json:"author"`
					Subreddit   string  `json:"subreddit"`
					Ups         int64   `json:"ups"`
					NumComments int64   `json:"num_comments"`
					CreatedUTC  float64 `json:"created_utc"`
				} `json:"data"`
			} `json:"children"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return tools.Result{Tool: ToolName}, tools.NewError(ToolName, tools.ErrMalformed, err)
	}

	items := make([]tools.Item, 0, limit)
	for i, child := range raw.Data.Children {
		if i >= limit {
			break
		}
		p := child.Data
		var published time.Time
		if p.CreatedUTC > 0 {
			published = time.Unix(int64(p.CreatedUTC), 0)
		}
		items = append(items, tools.Item{
			Platform:     "reddit",
			SourceTool:   ToolName,
			Title:        p.Title,
			URL:          "https://www.reddit.com" + p.Permalink,
			AuthorName:   p.Author,
			AuthorID:     p.Author,
			PublishedAt:  published,
			// Reddit exposes no view counts; posts compete on engagement.
			Interactions: p.Ups + p.NumComments,
			Raw:          map[string]interface{}{"subreddit": p.Subreddit},
		})
	}

	return tools.Result{
		Tool:    ToolName,
		Items:   items,
		Summary: fmt.Sprintf("reddit_search %q returned %d posts", query, len(items)),
	}, nil
}

// timeBucket maps a day span onto reddit's coarse "t" filter.
func timeBucket(days int) string {
	switch {
	case days <= 1:
		return "day"
	case days <= 7:
		return "week"
	case days <= 31:
		return "month"
	case days <= 365:
		return "year"
	default:
		return "all"
	}
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
