package reddit

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/radarhq/radar/config"
	"github.com/radarhq/radar/internal/tools"
)

func TestTimeBucket(t *testing.T) {
	cases := []struct {
		days int
		want string
	}{
		{1, "day"},
		{7, "week"},
		{30, "month"},
		{90, "year"},
		{1000, "all"},
	}
	for _, c := range cases {
		if got := timeBucket(c.days); got != c.want {
			t.Errorf("timeBucket(%d) = %q, want %q", c.days, got, c.want)
		}
	}
}

func TestInvokeRequiresQuery(t *testing.T) {
	a := New(config.RedditConfig{})
	_, err := a.Invoke(context.Background(), map[string]interface{}{})
	var te *tools.Error
	if !errors.As(err, &te) || te.Kind != tools.ErrMalformed {
		t.Fatalf("expected malformed, got %v", err)
	}
}

func TestInvokeParsesPosts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search.json" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("q") != "AI generated video" {
			t.Errorf("query not forwarded: %s", r.URL.RawQuery)
		}
		if r.URL.Query().Get("t") != "week" {
			t.Errorf("time filter not applied: %s", r.URL.RawQuery)
		}
		w.Write([]byte(`{"data": {"children": [{"data": {
			"title": "Best AI generated shorts this week",
			"permalink": "/r/StableDiffusion/comments/abc/best/",
			"author": "pixel_fan",
			"subreddit": "StableDiffusion",
			"ups": 340,
			"num_comments": 65,
			"created_utc": 1756000000
		}}]}}`))
	}))
	defer srv.Close()

	a := &Adapter{client: srv.Client(), baseURL: srv.URL}
	res, err := a.Invoke(context.Background(), map[string]interface{}{"query": "AI generated video", "days": 7})
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if len(res.Items) != 1 {
		t.Fatalf("items = %d", len(res.Items))
	}
	it := res.Items[0]
	if it.Platform != "reddit" || it.URL != "https://www.reddit.com/r/StableDiffusion/comments/abc/best/" {
		t.Fatalf("unexpected item: %+v", it)
	}
	if it.Views != 0 || it.Interactions != 405 {
		t.Fatalf("engagement wrong: views=%d interactions=%d", it.Views, it.Interactions)
	}
	if it.PublishedAt.IsZero() {
		t.Fatalf("published time lost")
	}
}

func TestInvokeSubredditRestrictsSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/r/MachineLearning/search.json" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("restrict_sr") != "1" {
			t.Errorf("restrict_sr missing: %s", r.URL.RawQuery)
		}
		w.Write([]byte(`{"data": {"children": []}}`))
	}))
	defer srv.Close()

	a := &Adapter{client: srv.Client(), baseURL: srv.URL}
	_, err := a.Invoke(context.Background(), map[string]interface{}{
		"query": "diffusion", "subreddit": "MachineLearning",
	})
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
}

func TestInvokeRateLimitTyped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	a := &Adapter{client: srv.Client(), baseURL: srv.URL}
	_, err := a.Invoke(context.Background(), map[string]interface{}{"query": "q"})
	var te *tools.Error
	if !errors.As(err, &te) || te.Kind != tools.ErrRateLimited {
		t.Fatalf("429 must map to rate_limited, got %v", err)
	}
}

func TestInvokeMissingTimestampZeroTime(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data": {"children": [{"data": {"title": "a", "permalink": "/r/x/1", "ups": 5}}]}}`))
	}))
	defer srv.Close()

	a := &Adapter{client: srv.Client(), baseURL: srv.URL}
	res, err := a.Invoke(context.Background(), map[string]interface{}{"query": "q"})
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if !res.Items[0].PublishedAt.IsZero() {
		t.Fatalf("missing created_utc must stay zero time, got %v", res.Items[0].PublishedAt)
	}
}
