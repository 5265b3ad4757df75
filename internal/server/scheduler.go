package server

import (
	"context"
	"log"
	"time"

	"github.com/gorhill/cronexpr"
)

// Scheduler re-collects every tracked keyword on a cron schedule. A keyword
// is tracked when it has at least one stored run; its last finished run
// decides whether the next cron slot has passed.
type Scheduler struct {
	spec   string
	store  Persister
	runs   *RunsHandler
	stop   chan struct{}
	logger *log.Logger
}

func NewScheduler(spec string, st Persister, runs *RunsHandler) *Scheduler {
	return &Scheduler{
		spec:   spec,
		store:  st,
		runs:   runs,
		stop:   make(chan struct{}),
		logger: log.New(log.Writer(), "[SCHED] ", log.LstdFlags),
	}
}

func (s *Scheduler) Start() {
	ticker := time.NewTicker(time.Minute)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-s.stop:
				return
			case <-ticker.C:
				s.tick()
			}
		}
	}()
	s.logger.Printf("schedule %q active", s.spec)
}

func (s *Scheduler) StopNow() {
	close(s.stop)
}

func (s *Scheduler) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	summaries, err := s.store.ListRuns(ctx, 200)
	if err != nil {
		s.logger.Printf("listing runs: %v", err)
		return
	}

	// First summary per keyword is its latest run (list is newest-first).
	latest := map[string]time.Time{}
	for _, r := range summaries {
		if _, seen := latest[r.Keyword]; !seen {
			latest[r.Keyword] = r.FinishedAt
		}
	}

	for keyword, last := range latest {
		if !due(s.spec, last, time.Now()) {
			continue
		}
		// Runs only persist on completion, and the ticker keeps firing
		// while one is still going; skip keywords with a run in flight.
		if s.runs.inFlight(keyword) {
			continue
		}
		runID := s.runs.StartKeyword(keyword)
		s.logger.Printf("scheduled run %s for %q", runID, keyword)
	}
}

// due reports whether the next cron slot after the last run has passed.
// "@hourly" and "@daily" shortcuts are accepted alongside 5-field specs; an
// unparseable spec falls back to daily.
func due(spec string, last, now time.Time) bool {
	switch spec {
	case "@hourly":
		return now.Sub(last) >= time.Hour
	case "@daily":
		return now.Sub(last) >= 24*time.Hour
	}
	expr, err := cronexpr.Parse(spec)
	if err != nil {
		return now.Sub(last) >= 24*time.Hour
	}
	return !expr.Next(last).After(now)
}
