package websearch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/radarhq/radar/internal/tools"
)

type braveSearch struct {
	apiKey  string
	client  *http.Client
	baseURL string // test override
}

func (s *braveSearch) discover(ctx context.Context, q string, k int) ([]tools.Lead, error) {
	// https://api.search.brave.com/app/documentation/web-search
	endpoint := s.baseURL
	if endpoint == "" {
		endpoint = "https://api.search.brave.com/res/v1/web/search"
	}
	u := fmt.Sprintf("%s?q=%s&count=%d", endpoint, url.QueryEscape(q), k)
	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return nil, tools.NewError(ToolName, tools.ErrNetwork, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, tools.NewError(ToolName, tools.ErrNetwork, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, tools.NewError(ToolName, tools.ErrRateLimited, fmt.Errorf("brave status %d", resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, tools.NewError(ToolName, tools.ErrNetwork, fmt.Errorf("brave status %d", resp.StatusCode))
	}

	var raw struct {
		Web struct {
			Results []struct {
				Title   string `json:"title"`
				URL     string `json:"url"`
				Snippet string `json:"description"`
			} `json:"results"`
		} `json:"web"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, tools.NewError(ToolName, tools.ErrMalformed, err)
	}

	var out []tools.Lead
	for i, r := range raw.Web.Results {
		if i >= k {
			break
		}
		out = append(out, tools.Lead{Title: r.Title, URL: r.URL, Snippet: r.Snippet, Source: "brave"})
	}
	return out, nil
}
