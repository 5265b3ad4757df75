package server

import (
	"context"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/radarhq/radar/internal/engine"
	"github.com/radarhq/radar/internal/store"
)

// Runner is the engine surface the server needs.
type Runner interface {
	RunWithID(ctx context.Context, runID, keyword string) (*engine.RunResult, error)
}

// Persister is the slice of the store the runs handler uses; split out so
// tests can run without Postgres.
type Persister interface {
	SaveRun(ctx context.Context, result *engine.RunResult) error
	GetRun(ctx context.Context, runID string) (engine.RunResult, bool, error)
	ListRuns(ctx context.Context, limit int) ([]store.RunSummary, error)
}

const (
	runStatusQueued   = "queued"
	runStatusRunning  = "running"
	runStatusFinished = "finished"
	runStatusFailed   = "failed"

	runTimeout = 15 * time.Minute
)

type runTicket struct {
	RunID     string    `json:"run_id"`
	Keyword   string    `json:"keyword"`
	Status    string    `json:"status"`
	Error     string    `json:"error,omitempty"`
	StartedAt time.Time `json:"started_at"`
}

// RunsHandler owns the in-process run registry. Runs execute one at a time
// per engine instance; extra requests queue on the semaphore.
type RunsHandler struct {
	engine Runner
	store  Persister

	mu      sync.Mutex
	tickets map[string]*runTicket
	sem     chan struct{}
	logger  *log.Logger
}

func NewRunsHandler(runner Runner, persister Persister) *RunsHandler {
	return &RunsHandler{
		engine:  runner,
		store:   persister,
		tickets: map[string]*runTicket{},
		sem:     make(chan struct{}, 1),
		logger:  log.New(log.Writer(), "[RUNS] ", log.LstdFlags),
	}
}

func (h *RunsHandler) Register(g *echo.Group) {
	g.POST("", h.start)
	g.GET("", h.list)
	g.GET("/:id", h.get)
	g.GET("/:id/shortlist", h.shortlist)
}

type startRequest struct {
	Keyword string `json:"keyword"`
}

func (h *RunsHandler) start(c echo.Context) error {
	var req startRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	keyword := strings.TrimSpace(req.Keyword)
	if keyword == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "keyword is required")
	}

	ticket := &runTicket{
		RunID:     uuid.New().String(),
		Keyword:   keyword,
		Status:    runStatusQueued,
		StartedAt: time.Now(),
	}
	h.mu.Lock()
	h.tickets[ticket.RunID] = ticket
	h.mu.Unlock()

	go h.execute(ticket)

	return c.JSON(http.StatusAccepted, ticket)
}

// StartKeyword queues a run outside an HTTP request (used by the
// scheduler). Returns the run ID.
func (h *RunsHandler) StartKeyword(keyword string) string {
	ticket := &runTicket{
		RunID:     uuid.New().String(),
		Keyword:   keyword,
		Status:    runStatusQueued,
		StartedAt: time.Now(),
	}
	h.mu.Lock()
	h.tickets[ticket.RunID] = ticket
	h.mu.Unlock()
	go h.execute(ticket)
	return ticket.RunID
}

func (h *RunsHandler) execute(ticket *runTicket) {
	h.sem <- struct{}{}
	defer func() { <-h.sem }()

	h.setStatus(ticket.RunID, runStatusRunning, "")
	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	result, err := h.engine.RunWithID(ctx, ticket.RunID, ticket.Keyword)
	if err != nil {
		h.logger.Printf("run %s failed: %v", ticket.RunID, err)
		h.setStatus(ticket.RunID, runStatusFailed, err.Error())
	} else {
		h.setStatus(ticket.RunID, runStatusFinished, "")
	}
	if result != nil {
		if serr := h.store.SaveRun(context.Background(), result); serr != nil {
			h.logger.Printf("persist run %s: %v", ticket.RunID, serr)
		}
	}
}

func (h *RunsHandler) setStatus(runID, status, errMsg string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if t, ok := h.tickets[runID]; ok {
		t.Status = status
		t.Error = errMsg
	}
}

// inFlight reports whether a run for keyword is already queued or running.
// The scheduler consults this before queuing, so a slow run cannot pile up
// duplicates behind itself on the semaphore.
func (h *RunsHandler) inFlight(keyword string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, t := range h.tickets {
		if t.Keyword == keyword && (t.Status == runStatusQueued || t.Status == runStatusRunning) {
			return true
		}
	}
	return false
}

func (h *RunsHandler) ticket(runID string) (runTicket, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	t, ok := h.tickets[runID]
	if !ok {
		return runTicket{}, false
	}
	return *t, true
}

func (h *RunsHandler) get(c echo.Context) error {
	id := c.Param("id")

	if result, ok, err := h.store.GetRun(c.Request().Context(), id); err == nil && ok {
		return c.JSON(http.StatusOK, result)
	} else if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if t, ok := h.ticket(id); ok {
		return c.JSON(http.StatusOK, t)
	}
	return echo.NewHTTPError(http.StatusNotFound, "run not found")
}

func (h *RunsHandler) shortlist(c echo.Context) error {
	id := c.Param("id")

	result, ok, err := h.store.GetRun(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if !ok {
		if t, live := h.ticket(id); live {
			return echo.NewHTTPError(http.StatusConflict, "run still "+t.Status)
		}
		return echo.NewHTTPError(http.StatusNotFound, "run not found")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"run_id":    result.RunID,
		"keyword":   result.Keyword,
		"shortlist": result.Shortlist,
		"entities":  result.Entities,
	})
}

func (h *RunsHandler) list(c echo.Context) error {
	summaries, err := h.store.ListRuns(c.Request().Context(), 50)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, summaries)
}
