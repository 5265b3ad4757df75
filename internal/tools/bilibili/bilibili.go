// Package bilibili implements the bilibili_search tool adapter over the
// Bilibili web search API.
package bilibili

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/radarhq/radar/config"
	"github.com/radarhq/radar/internal/tools"
)

// ToolName is the registry name of this adapter.
const ToolName = "bilibili_search"

// Adapter is the bilibili_search tool.
type Adapter struct {
	cfg     config.BilibiliConfig
	client  *http.Client
	baseURL string // test override
}

// New builds the adapter.
func New(cfg config.BilibiliConfig) *Adapter {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Adapter{cfg: cfg, client: &http.Client{Timeout: timeout}}
}

func (a *Adapter) Name() string { return ToolName }

func (a *Adapter) Description() string {
	return "Search Bilibili for videos by keyword. Returns titles, uploaders, play counts, favorites and duration. Use for collecting Chinese-language platform content."
}

func (a *Adapter) Defaults() map[string]interface{} {
	limit := a.cfg.MaxResults
	if limit <= 0 {
		limit = 15
	}
	return map[string]interface{}{"limit": limit, "order": "totalrank"}
}

// Invoke runs one search. Args: query (required), limit, order.
func (a *Adapter) Invoke(ctx context.Context, args map[string]interface{}) (tools.Result, error) {
	query, _ := args["query"].(string)
	if query == "" {
		return tools.Result{Tool: ToolName}, tools.NewError(ToolName, tools.ErrMalformed, fmt.Errorf("missing query argument"))
	}
	limit := intArg(args, "limit", 15)
	order, _ := args["order"].(string)

	base := a.baseURL
	if base == "" {
		base = "https://api.bilibili.com"
	}
	params := url.Values{}
	params.Set("search_type", "video")
	params.Set("keyword", query)
	if order != "" {
		params.Set("order", order)
	}

	req, err := http.NewRequestWithContext(ctx, "GET", base+"/x/web-interface/search/type?"+params.Encode(), nil)
	if err != nil {
		return tools.Result{Tool: ToolName}, tools.NewError(ToolName, tools.ErrNetwork, err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")
	req.Header.Set("Referer", "https://www.bilibili.com")
	if a.cfg.Cookie != "" {
		req.Header.Set("Cookie", a.cfg.Cookie)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return tools.Result{Tool: ToolName}, tools.NewError(ToolName, tools.ErrNetwork, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusPreconditionFailed || resp.StatusCode == http.StatusTooManyRequests {
		// 412 is bilibili's anti-crawl throttle
		return tools.Result{Tool: ToolName}, tools.NewError(ToolName, tools.ErrRateLimited, fmt.Errorf("bilibili status %d", resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK {
		return tools.Result{Tool: ToolName}, tools.NewError(ToolName, tools.ErrNetwork, fmt.Errorf("bilibili status %d", resp.StatusCode))
	}

	var raw struct {
		Code int `json:"code"`
		Data struct {
			Result []struct {
				Title       string `json:"title"`
				ArcURL      string `json:"arcurl"`
				Author      string `json:"author"`
				Mid         int64  `json:"mid"`
				Play        int64  `json:"play"`
				VideoReview int64  `json:"video_review"`
				Favorites   int64  `json:"favorites"`
				Pubdate     int64  `json:"pubdate"`
				Duration    string `json:"duration"`
			} `json:"result"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return tools.Result{Tool: ToolName}, tools.NewError(ToolName, tools.ErrMalformed, err)
	}
	if raw.Code != 0 {
		return tools.Result{Tool: ToolName}, tools.NewError(ToolName, tools.ErrMalformed, fmt.Errorf("bilibili api code %d", raw.Code))
	}

	items := make([]tools.Item, 0, limit)
	for i, v := range raw.Data.Result {
		if i >= limit {
			break
		}
		// A missing pubdate must stay the zero time, not the 1970 epoch.
		var published time.Time
		if v.Pubdate > 0 {
			published = time.Unix(v.Pubdate, 0)
		}
		items = append(items, tools.Item{
			Platform:     "bilibili",
			SourceTool:   ToolName,
			Title:        stripEm(v.Title),
			URL:          v.ArcURL,
			AuthorName:   v.Author,
			AuthorID:     strconv.FormatInt(v.Mid, 10),
			PublishedAt:  published,
			Views:        v.Play,
			Interactions: v.Favorites + v.VideoReview,
			DurationSec:  parseClock(v.Duration),
		})
	}

	return tools.Result{
		Tool:    ToolName,
		Items:   items,
		Summary: fmt.Sprintf("bilibili_search %q returned %d videos", query, len(items)),
	}, nil
}

// stripEm removes the <em> highlight markup bilibili wraps around matched
// keywords in result titles.
func stripEm(s string) string {
	s = strings.ReplaceAll(s, `<em class="keyword">`, "")
	s = strings.ReplaceAll(s, "<em>", "")
	s = strings.ReplaceAll(s, "</em>", "")
	return s
}

// parseClock converts "mm:ss" or "hh:mm:ss" to seconds.
func parseClock(s string) int {
	parts := strings.Split(s, ":")
	total := 0
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return 0
		}
		total = total*60 + n
	}
	return total
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
