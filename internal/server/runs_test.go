package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/radarhq/radar/internal/engine"
	"github.com/radarhq/radar/internal/store"
)

type fakeRunner struct {
	result engine.RunResult
	err    error
}

func (f *fakeRunner) RunWithID(ctx context.Context, runID, keyword string) (*engine.RunResult, error) {
	r := f.result
	r.RunID = runID
	r.Keyword = keyword
	return &r, f.err
}

type memPersister struct {
	mu   sync.Mutex
	runs map[string]engine.RunResult
}

func newMemPersister() *memPersister {
	return &memPersister{runs: map[string]engine.RunResult{}}
}

func (m *memPersister) SaveRun(ctx context.Context, result *engine.RunResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[result.RunID] = *result
	return nil
}

func (m *memPersister) GetRun(ctx context.Context, runID string) (engine.RunResult, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[runID]
	return r, ok, nil
}

func (m *memPersister) ListRuns(ctx context.Context, limit int) ([]store.RunSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []store.RunSummary
	for _, r := range m.runs {
		out = append(out, store.RunSummary{RunID: r.RunID, Keyword: r.Keyword, FinishedAt: r.FinishedAt})
	}
	return out, nil
}

func newTestApp(runner Runner, persister Persister) (*echo.Echo, *RunsHandler) {
	e := echo.New()
	h := NewRunsHandler(runner, persister)
	h.Register(e.Group("/api/runs"))
	return e, h
}

func TestStartRunRequiresKeyword(t *testing.T) {
	e, _ := newTestApp(&fakeRunner{}, newMemPersister())

	req := httptest.NewRequest(http.MethodPost, "/api/runs", strings.NewReader(`{}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestStartRunAndFetchResult(t *testing.T) {
	persister := newMemPersister()
	runner := &fakeRunner{result: engine.RunResult{
		Reason:         engine.StopOracleComplete,
		ItemsCollected: 3,
	}}
	e, _ := newTestApp(runner, persister)

	req := httptest.NewRequest(http.MethodPost, "/api/runs",
		strings.NewReader(`{"keyword": "AI generated video"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	var ticket runTicket
	if err := json.Unmarshal(rec.Body.Bytes(), &ticket); err != nil {
		t.Fatalf("bad ticket payload: %v", err)
	}
	if ticket.RunID == "" || ticket.Keyword != "AI generated video" {
		t.Fatalf("unexpected ticket: %+v", ticket)
	}

	// run executes asynchronously; poll until it lands in the store
	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, ok, _ := persister.GetRun(context.Background(), ticket.RunID); ok {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("run never persisted")
		}
		time.Sleep(10 * time.Millisecond)
	}

	getReq := httptest.NewRequest(http.MethodGet, "/api/runs/"+ticket.RunID, nil)
	getRec := httptest.NewRecorder()
	e.ServeHTTP(getRec, getReq)
	if getRec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", getRec.Code)
	}
	var result engine.RunResult
	if err := json.Unmarshal(getRec.Body.Bytes(), &result); err != nil {
		t.Fatalf("bad result payload: %v", err)
	}
	if result.ItemsCollected != 3 || result.Reason != engine.StopOracleComplete {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestShortlistUnknownRun(t *testing.T) {
	e, _ := newTestApp(&fakeRunner{}, newMemPersister())

	req := httptest.NewRequest(http.MethodGet, "/api/runs/nope/shortlist", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestAuthMiddleware(t *testing.T) {
	secret := []byte("test-secret")
	e := echo.New()
	g := e.Group("/private")
	g.Use(authMiddleware(secret))
	g.GET("", func(c echo.Context) error {
		return c.String(http.StatusOK, c.Get("user_id").(string))
	})

	req := httptest.NewRequest(http.MethodGet, "/private", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing token should be rejected, got %d", rec.Code)
	}

	token, err := signJWT("user-42", secret, time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	req = httptest.NewRequest(http.MethodGet, "/private", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Body.String() != "user-42" {
		t.Fatalf("valid token rejected: %d %s", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/private", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("garbage token should be rejected, got %d", rec.Code)
	}
}

// blockingRunner holds every run open until release is closed.
type blockingRunner struct {
	release chan struct{}
	started chan string
}

func (r *blockingRunner) RunWithID(ctx context.Context, runID, keyword string) (*engine.RunResult, error) {
	r.started <- runID
	<-r.release
	return &engine.RunResult{RunID: runID, Keyword: keyword, Reason: engine.StopOracleComplete, FinishedAt: time.Now()}, nil
}

func TestSchedulerSkipsInFlightKeyword(t *testing.T) {
	persister := newMemPersister()
	// A run finished two hours ago makes the keyword due under @hourly.
	persister.SaveRun(context.Background(), &engine.RunResult{
		RunID:      "seed",
		Keyword:    "AI generated video",
		FinishedAt: time.Now().Add(-2 * time.Hour),
	})

	runner := &blockingRunner{release: make(chan struct{}), started: make(chan string, 4)}
	h := NewRunsHandler(runner, persister)
	s := NewScheduler("@hourly", persister, h)

	s.tick()
	select {
	case <-runner.started:
	case <-time.After(2 * time.Second):
		t.Fatalf("due keyword never started")
	}

	// Further ticks while the run is still going must not queue duplicates.
	s.tick()
	s.tick()

	h.mu.Lock()
	active := 0
	for _, ticket := range h.tickets {
		if ticket.Status == runStatusQueued || ticket.Status == runStatusRunning {
			active++
		}
	}
	h.mu.Unlock()
	if active != 1 {
		t.Fatalf("expected a single in-flight run, got %d", active)
	}

	close(runner.release)
}

func TestScheduleDue(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		spec string
		last time.Time
		want bool
	}{
		{"@hourly", now.Add(-30 * time.Minute), false},
		{"@hourly", now.Add(-2 * time.Hour), true},
		{"@daily", now.Add(-25 * time.Hour), true},
		{"0 * * * *", now.Add(-90 * time.Minute), true},
		{"0 0 * * *", now.Add(-time.Minute), false},
	}
	for _, c := range cases {
		if got := due(c.spec, c.last, now); got != c.want {
			t.Fatalf("due(%q, last=%v): got %v, want %v", c.spec, c.last, got, c.want)
		}
	}
}
