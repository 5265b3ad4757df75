// Package engine drives one collection run: a sequential plan → execute →
// gate → merge loop over the tool registry, steered by the reasoning oracle
// and bounded by the run budget.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/radarhq/radar/config"
	"github.com/radarhq/radar/internal/discovery"
	"github.com/radarhq/radar/internal/gate"
	"github.com/radarhq/radar/internal/oracle"
	"github.com/radarhq/radar/internal/ranking"
	"github.com/radarhq/radar/internal/telemetry"
	"github.com/radarhq/radar/internal/tools"
)

const (
	defaultToolTimeout   = 60 * time.Second
	defaultOracleTimeout = 45 * time.Second
)

// EntityExtractor is the discovery step the priority override invokes.
type EntityExtractor interface {
	Extract(ctx context.Context, keyword string, leads []tools.Lead) []discovery.Entity
}

// Engine owns the collection loop. One Engine serves sequential runs; each
// run gets its own CollectionState, so separate Engines may run concurrently
// in one process.
type Engine struct {
	budget        config.BudgetConfig
	registry      *tools.Registry
	oracle        oracle.Oracle
	extractor     EntityExtractor
	telem         *telemetry.Telemetry
	toolTimeout   time.Duration
	oracleTimeout time.Duration
	logger        *log.Logger
}

// New wires an engine from its collaborators. telem may be nil.
func New(cfg *config.Config, registry *tools.Registry, o oracle.Oracle, extractor EntityExtractor, telem *telemetry.Telemetry) *Engine {
	toolTimeout := cfg.General.ToolTimeout
	if toolTimeout == 0 {
		toolTimeout = defaultToolTimeout
	}
	oracleTimeout := cfg.General.OracleTimeout
	if oracleTimeout == 0 {
		oracleTimeout = defaultOracleTimeout
	}
	return &Engine{
		budget:        cfg.Budget,
		registry:      registry,
		oracle:        o,
		extractor:     extractor,
		telem:         telem,
		toolTimeout:   toolTimeout,
		oracleTimeout: oracleTimeout,
		logger:        log.New(log.Writer(), "[ENGINE] ", log.LstdFlags),
	}
}

// Run executes one collection run to completion. It always terminates
// within the action budget; cancellation is honored cooperatively at each
// planning transition. The returned result is valid even when err is not
// nil — it describes whatever was collected before the stop.
func (e *Engine) Run(ctx context.Context, keyword string) (*RunResult, error) {
	return e.RunWithID(ctx, uuid.New().String(), keyword)
}

// RunWithID is Run with a caller-chosen run ID, for callers that need the ID
// before the run finishes.
func (e *Engine) RunWithID(ctx context.Context, runID, keyword string) (*RunResult, error) {
	st := newState(runID, keyword)
	g := gate.New(e.oracle, keyword, gate.WithJudgeTimeout(e.oracleTimeout))
	e.logger.Printf("run %s started for %q", st.RunID, keyword)
	st.logf("run started for %q", keyword)

	var (
		reason        StopReason
		lowConfidence bool
		confidence    float64
		runErr        error
	)

loop:
	for {
		if err := ctx.Err(); err != nil {
			reason, runErr = StopCancelled, err
			break
		}

		// Budget stops come first: they override an oracle completion or
		// continuation signal in the same cycle.
		if st.ActionsUsed >= e.budget.MaxActions {
			st.logf("action budget reached (%d)", e.budget.MaxActions)
			reason = StopBudgetActions
			break
		}
		if st.Shortlist.Len() >= e.budget.MaxItems {
			st.logf("item budget reached (%d)", e.budget.MaxItems)
			reason = StopBudgetItems
			break
		}

		// Priority override: unprocessed leads force the extraction step
		// before the oracle is consulted again.
		if st.pendingLeads() {
			e.extract(ctx, st)
			continue
		}

		proposal, err := e.plan(ctx, st)
		switch {
		case errors.Is(err, oracle.ErrMalformedPlan):
			st.logf("planning output unusable after clarifying re-prompt, finishing")
			reason, lowConfidence = StopMalformedPlan, true
			break loop
		case err != nil && ctx.Err() != nil:
			reason, runErr = StopCancelled, ctx.Err()
			break loop
		case err != nil:
			st.logf("planning unavailable after retry (%v), finishing with what was collected", err)
			reason, lowConfidence = StopPlanningFailed, true
			break loop
		}
		if proposal.Clarified {
			st.logf("plan accepted after clarifying re-prompt")
		}
		if proposal.Thought != "" {
			st.logf("plan: %s", proposal.Thought)
		}
		if proposal.Complete {
			st.logf("oracle declared completion (confidence %.2f)", proposal.Confidence)
			reason, confidence = StopOracleComplete, proposal.Confidence
			break
		}

		st.Phase = PhaseExecuting
		for _, action := range proposal.Actions {
			if st.ActionsUsed >= e.budget.MaxActions {
				break
			}
			e.execute(ctx, st, g, action)
		}
		st.Phase = PhasePlanning
	}

	st.Phase = PhaseFinished
	finished := time.Now()
	result := &RunResult{
		RunID:          st.RunID,
		Keyword:        st.Keyword,
		StartedAt:      st.StartedAt,
		FinishedAt:     finished,
		Reason:         reason,
		LowConfidence:  lowConfidence,
		Confidence:     confidence,
		ActionsUsed:    st.ActionsUsed,
		ItemsCollected: st.Shortlist.Len(),
		Shortlist:      st.Shortlist.Top(e.budget.TopN),
		Entities:       st.Entities,
		Log:            st.Log,
	}
	e.telem.RecordRun(string(reason), finished.Sub(st.StartedAt), result.ItemsCollected)
	e.logger.Printf("run %s finished (%s): %d items, %d actions, %d entities",
		st.RunID, reason, result.ItemsCollected, result.ActionsUsed, len(result.Entities))
	return result, runErr
}

// plan consults the oracle under the planning timeout. A transport failure
// (oracle unreachable, call timed out) gets one immediate retry; malformed
// output already carries its clarifying re-prompt inside the oracle, so it
// passes through untouched.
func (e *Engine) plan(ctx context.Context, st *CollectionState) (oracle.Proposal, error) {
	input := e.planInput(st)

	pctx, cancel := context.WithTimeout(ctx, e.oracleTimeout)
	proposal, err := e.oracle.Plan(pctx, input)
	cancel()
	if err == nil || errors.Is(err, oracle.ErrMalformedPlan) || ctx.Err() != nil {
		return proposal, err
	}

	st.logf("planning call failed (%v), retrying once", err)
	pctx, cancel = context.WithTimeout(ctx, e.oracleTimeout)
	proposal, err = e.oracle.Plan(pctx, input)
	cancel()
	return proposal, err
}

// execute runs one proposed action through the adapter and the gate,
// following the verdict's retry/adjust/abort discipline. Every attempt
// spends one unit of the action budget, so the inner loop is bounded.
func (e *Engine) execute(ctx context.Context, st *CollectionState, g *gate.Gate, action oracle.Invocation) {
	inv := gate.Invocation{Tool: action.Tool, Args: action.Args, Expectation: action.Reason}
	if inv.Expectation == "" {
		inv.Expectation = fmt.Sprintf("results relevant to %q", st.Keyword)
	}

	for {
		sig := actionSignature(inv.Tool, inv.Args)
		st.ActionsUsed++
		e.telem.RecordAction(inv.Tool)
		attempt := st.retries[sig] + 1

		tctx, cancel := context.WithTimeout(ctx, e.toolTimeout)
		result, err := e.registry.Invoke(tctx, inv.Tool, inv.Args)
		cancel()
		if err != nil {
			if kind, ok := tools.KindOf(err); ok {
				st.logf("%s attempt %d failed (%s): %v", inv.Tool, attempt, kind, err)
			} else {
				st.logf("%s attempt %d failed: %v", inv.Tool, attempt, err)
			}
		}

		verdict := g.Evaluate(ctx, inv, result, err, attempt, st.issueLog[sig])
		e.telem.RecordVerdict(verdict.Action, verdict.Degraded)
		if len(verdict.Issues) > 0 {
			st.issueLog[sig] = append(st.issueLog[sig], verdict.Issues...)
		}

		if verdict.Passed || verdict.Action == oracle.ActionAccept {
			e.merge(st, result, verdict)
			return
		}

		switch verdict.Action {
		case oracle.ActionAbortAction:
			st.lastIssues = verdict.Issues
			st.logf("%s aborted: %s", inv.Tool, strings.Join(verdict.Issues, "; "))
			return
		case oracle.ActionAdjustParameters:
			if st.retries[sig] >= e.budget.MaxRetriesPerAction {
				st.lastIssues = verdict.Issues
				st.logf("%s retry budget exhausted, back to planning", inv.Tool)
				return
			}
			st.retries[sig]++
			inv.Args = mergeArgs(inv.Args, verdict.Adjustment)
			st.logf("%s adjusting parameters after attempt %d", inv.Tool, attempt)
		case oracle.ActionRetrySame:
			if st.retries[sig] >= e.budget.MaxRetriesPerAction {
				st.lastIssues = verdict.Issues
				st.logf("%s retry budget exhausted, back to planning", inv.Tool)
				return
			}
			st.retries[sig]++
			st.logf("%s retrying, attempt %d", inv.Tool, attempt+1)
		default:
			return
		}

		if st.ActionsUsed >= e.budget.MaxActions || ctx.Err() != nil {
			return
		}
	}
}

// merge moves an accepted result into collection state: items are scored
// relative to their own batch and deduplicated into the shortlist, leads
// queue up for the discovery override.
func (e *Engine) merge(st *CollectionState, result tools.Result, verdict oracle.Verdict) {
	ranked := ranking.ScoreBatch(result.Items, st.Keyword, ranking.Params{
		ReferenceWindowDays: e.budget.ReferenceWindowDays,
	})
	added := st.Shortlist.AddAll(ranked)
	st.RawLeads = append(st.RawLeads, result.Leads...)
	st.lastIssues = nil
	st.logf("%s accepted (score %.2f): %d items, %d new after dedup, %d leads",
		result.Tool, verdict.Score, len(result.Items), added, len(result.Leads))
}

// extract is the dedicated discovery step. It reprocesses the full lead set
// (the extractor deduplicates) and marks the current leads as seen so the
// override does not re-fire until new leads arrive.
func (e *Engine) extract(ctx context.Context, st *CollectionState) {
	st.logf("discovery: extracting creators from %d leads", len(st.RawLeads))
	st.Entities = e.extractor.Extract(ctx, st.Keyword, st.RawLeads)
	st.leadsExtracted = len(st.RawLeads)
	st.logf("discovery: %d entities known", len(st.Entities))
}

func (e *Engine) planInput(st *CollectionState) oracle.PlanInput {
	var titles []string
	for _, item := range st.Shortlist.Top(5) {
		titles = append(titles, item.Item.Title)
	}
	var entities []string
	for _, ent := range st.Entities {
		platform := ent.Platform
		if platform == "" {
			platform = "unknown platform"
		}
		entities = append(entities, fmt.Sprintf("%s (%s, %s confidence)", ent.Name, platform, ent.Confidence))
	}
	recent := st.Log
	if len(recent) > 6 {
		recent = recent[len(recent)-6:]
	}
	return oracle.PlanInput{
		Keyword:           st.Keyword,
		Catalog:           e.registry.Catalog(),
		CollectedCount:    st.Shortlist.Len(),
		ShortlistTitles:   titles,
		LeadCount:         len(st.RawLeads) - st.leadsExtracted,
		EntitiesExtracted: st.leadsExtracted > 0,
		Entities:          entities,
		ActionsUsed:       st.ActionsUsed,
		ActionsRemaining:  e.budget.MaxActions - st.ActionsUsed,
		ItemsRemaining:    e.budget.MaxItems - st.Shortlist.Len(),
		RecentLog:         recent,
		LastIssues:        st.lastIssues,
	}
}

func mergeArgs(base, overrides map[string]interface{}) map[string]interface{} {
	merged := make(map[string]interface{}, len(base)+len(overrides))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range overrides {
		merged[k] = v
	}
	return merged
}
