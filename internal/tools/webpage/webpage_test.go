package webpage

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/radarhq/radar/config"
	"github.com/radarhq/radar/internal/tools"
)

func TestInvokeRequiresURL(t *testing.T) {
	a := New(config.WebpageConfig{})
	_, err := a.Invoke(context.Background(), map[string]interface{}{})
	var te *tools.Error
	if !errors.As(err, &te) || te.Kind != tools.ErrMalformed {
		t.Fatalf("expected malformed, got %v", err)
	}
}

func TestInvokeExtractsArticle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><head><title>Best AI video creators</title></head><body>
			<article>
				<h1>Best AI video creators</h1>
				<p>Our favourite channel this month is Pixel Dreams, found at
				youtube.com/@pixeldreams. They post AI generated short films weekly
				and their latest piece crossed a million views in three days.</p>
				<p>Also worth following is @sora_films for experimental work.</p>
			</article>
		</body></html>`))
	}))
	defer srv.Close()

	a := New(config.WebpageConfig{})
	a.client = srv.Client()
	res, err := a.Invoke(context.Background(), map[string]interface{}{"url": srv.URL + "/article"})
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if len(res.Leads) != 1 {
		t.Fatalf("leads = %d", len(res.Leads))
	}
	lead := res.Leads[0]
	if lead.Source != ToolName {
		t.Fatalf("source = %q", lead.Source)
	}
	if !strings.Contains(lead.Snippet, "pixeldreams") {
		t.Fatalf("handle lost in extraction: %q", lead.Snippet)
	}
}

func TestInvokeNotFoundTyped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	a := New(config.WebpageConfig{})
	a.client = srv.Client()
	_, err := a.Invoke(context.Background(), map[string]interface{}{"url": srv.URL + "/gone"})
	var te *tools.Error
	if !errors.As(err, &te) || te.Kind != tools.ErrNotFound {
		t.Fatalf("expected not_found, got %v", err)
	}
}

func TestInvokeRateLimitTyped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	a := New(config.WebpageConfig{})
	a.client = srv.Client()
	_, err := a.Invoke(context.Background(), map[string]interface{}{"url": srv.URL})
	var te *tools.Error
	if !errors.As(err, &te) || te.Kind != tools.ErrRateLimited {
		t.Fatalf("expected rate_limited, got %v", err)
	}
}

func TestTrimText(t *testing.T) {
	if got := trimText("  hello  ", 100); got != "hello" {
		t.Fatalf("trim = %q", got)
	}
	long := strings.Repeat("x", 3000)
	if got := trimText(long, 2000); len(got) != 2000 {
		t.Fatalf("len = %d", len(got))
	}
}
