// Package youtube implements the youtube_search tool adapter over the
// YouTube Data API v3.
package youtube

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
const ToolName = "youtube_search"

// Adapter is the youtube_search tool.
type Adapter struct {
	cfg     config.YouTubeConfig
	client  *http.Client
	baseURL string // test override
}

// New builds the adapter.
func New(cfg config.YouTubeConfig) (*Adapter, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("youtube api key not configured")
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Adapter{cfg: cfg, client: &http.Client{Timeout: timeout}}, nil
}

func (a *Adapter) Name() string { return ToolName }

func (a *Adapter) Description() string {
	return "Search YouTube for videos by keyword. Returns titles, channels, view counts, engagement and duration. Use for collecting platform content, not for discovering creators."
}

func (a *Adapter) Defaults() map[string]interface{} {
	limit := a.cfg.MaxResults
	if limit <= 0 {
		limit = 15
	}
	return map[string]interface{}{"limit": limit, "days": 60}
}

// Invoke runs one search. Args: query (required), limit, days, channel_id.
func (a *Adapter) Invoke(ctx context.Context, args map[string]interface{}) (tools.Result, error) {
	query, _ := args["query"].(string)
	channelID, _ := args["channel_id"].(string)
	if query == "" && channelID == "" {
		return tools.Result{Tool: ToolName}, tools.NewError(ToolName, tools.ErrMalformed, fmt.Errorf("missing query or channel_id argument"))
	}
	limit := intArg(args, "limit", 15)
	days := intArg(args, "days", 60)

	ids, err := a.searchIDs(ctx, query, channelID, limit, days)
	if err != nil {
		return tools.Result{Tool: ToolName}, err
	}
	if len(ids) == 0 {
		return tools.Result{Tool: ToolName, Summary: fmt.Sprintf("youtube_search %q returned 0 videos", query)}, nil
	}

	items, err := a.hydrate(ctx, ids)
	if err != nil {
		return tools.Result{Tool: ToolName}, err
	}
	return tools.Result{
		Tool:    ToolName,
		Items:   items,
		Summary: fmt.Sprintf("youtube_search %q returned %d videos", query, len(items)),
	}, nil
}

func (a *Adapter) endpoint(path string) string {
	base := a.baseURL
	if base == "" {
		base = "https://www.googleapis.com/youtube/v3"
	}
	return base + path
}

func (a *Adapter) searchIDs(ctx context.Context, query, channelID string, limit, days int) ([]string, error) {
	params := url.Values{}
	params.Set("part", "id")
	params.Set("type", "video")
	params.Set("maxResults", strconv.Itoa(limit))
	params.Set("key", a.cfg.APIKey)
	if query != "" {
		params.Set("q", query)
	}
	if channelID != "" {
		params.Set("channelId", channelID)
		params.Set("order", "date")
	}
	if days > 0 {
		after := time.Now().AddDate(0, 0, -days).UTC().Format(time.RFC3339)
		params.Set("publishedAfter", after)
	}

	var out struct {
		Items []struct {
			ID struct {
				VideoID string `json:"videoId"`
			} `json:"id"`
		} `json:"items"`
	}
	if err := a.get(ctx, a.endpoint("/search")+"?"+params.Encode(), &out); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(out.Items))
	for _, it := range out.Items {
		if it.ID.VideoID != "" {
			ids = append(ids, it.ID.VideoID)
		}
	}
	return ids, nil
}

func (a *Adapter) hydrate(ctx context.Context, ids []string) ([]tools.Item, error) {
	params := url.Values{}
	params.Set("part", "snippet,statistics,contentDetails")
	params.Set("id", strings.Join(ids, ","))
	params.Set("key", a.cfg.APIKey)

	var out struct {
		Items []struct {
			ID      string `json:"id"`
			Snippet struct {
				Title        string    `json:"title"`
				ChannelID    string    `json:"channelId"`
				ChannelTitle string    `json:"channelTitle"`
				PublishedAt  time.Time `json:"publishedAt"`
			} `json:"snippet"`
			Statistics struct {
				ViewCount    string `json:"viewCount"`
				LikeCount    string `json:"likeCount"`
				CommentCount string `json:"commentCount"`
			} `json:"statistics"`
			ContentDetails struct {
				Duration string `json:"duration"`
			} `json:"contentDetails"`
		} `json:"items"`
	}
	if err := a.get(ctx, a.endpoint("/videos")+"?"+params.Encode(), &out); err != nil {
		return nil, err
	}

	items := make([]tools.Item, 0, len(out.Items))
	for _, v := range out.Items {
		views := parseCount(v.Statistics.ViewCount)
		likes := parseCount(v.Statistics.LikeCount)
		comments := parseCount(v.Statistics.CommentCount)
		items = append(items, tools.Item{
			Platform:     "youtube",
			SourceTool:   ToolName,
			Title:        v.Snippet.Title,
			URL:          "https://www.youtube.com/watch?v=" + v.ID,
			AuthorName:   v.Snippet.ChannelTitle,
			AuthorID:     v.Snippet.ChannelID,
			PublishedAt:  v.Snippet.PublishedAt,
			Views:        views,
			Interactions: likes + comments,
			DurationSec:  parseISODuration(v.ContentDetails.Duration),
		})
	}
	return items, nil
}

func (a *Adapter) get(ctx context.Context, u string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return tools.NewError(ToolName, tools.ErrNetwork, err)
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return tools.NewError(ToolName, tools.ErrNetwork, err)
	}
	defer resp.Body.Close()
	switch {
	case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests:
		// Data API signals quota exhaustion with 403
		return tools.NewError(ToolName, tools.ErrRateLimited, fmt.Errorf("youtube status %d", resp.StatusCode))
	case resp.StatusCode == http.StatusNotFound:
		return tools.NewError(ToolName, tools.ErrNotFound, fmt.Errorf("youtube status %d", resp.StatusCode))
	case resp.StatusCode != http.StatusOK:
		return tools.NewError(ToolName, tools.ErrNetwork, fmt.Errorf("youtube status %d", resp.StatusCode))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return tools.NewError(ToolName, tools.ErrMalformed, err)
	}
	return nil
}

func parseCount(s string) int64 {
	n, _ := strconv.ParseInt(s, 10, 64)
	return n
}

// parseISODuration converts the API's ISO-8601 duration (PT#H#M#S) to seconds.
func parseISODuration(s string) int {
	s = strings.TrimPrefix(s, "PT")
	var total, cur int
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			cur = cur*10 + int(r-'0')
		case r == 'H':
			total += cur * 3600
			cur = 0
		case r == 'M':
			total += cur * 60
			cur = 0
		case r == 'S':
			total += cur
			cur = 0
		default:
			cur = 0
		}
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
