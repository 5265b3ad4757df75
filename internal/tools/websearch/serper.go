package websearch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/radarhq/radar/internal/tools"
)

type serperSearch struct {
	apiKey  string
	client  *http.Client
	baseURL string // test override
}

func (s *serperSearch) discover(ctx context.Context, q string, k int) ([]tools.Lead, error) {
	// https://serper.dev/ docs
	payload := map[string]any{"q": q, "num": k}
	body, _ := json.Marshal(payload)

	endpoint := s.baseURL
	if endpoint == "" {
		endpoint = "https://google.serper.dev/search"
	}
	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, strings.NewReader(string(body)))
	if err != nil {
		return nil, tools.NewError(ToolName, tools.ErrNetwork, err)
	}
	req.Header.Set("X-API-KEY", s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, tools.NewError(ToolName, tools.ErrNetwork, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, tools.NewError(ToolName, tools.ErrRateLimited, fmt.Errorf("serper status %d", resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, tools.NewError(ToolName, tools.ErrNetwork, fmt.Errorf("serper status %d", resp.StatusCode))
	}

	var raw struct {
		Organic []struct {
			Title   string `json:"title"`
			Link    string `json:"link"`
			Snippet string `json:"snippet"`
		} `json:"organic"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, tools.NewError(ToolName, tools.ErrMalformed, err)
	}

	var out []tools.Lead
	for i, r := range raw.Organic {
		if i >= k {
			break
		}
		out = append(out, tools.Lead{Title: r.Title, URL: r.Link, Snippet: r.Snippet, Source: "serper"})
	}
	return out, nil
}
