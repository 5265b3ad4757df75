package engine

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/radarhq/radar/internal/discovery"
	"github.com/radarhq/radar/internal/ranking"
	"github.com/radarhq/radar/internal/tools"
)

// Phase is the loop's current position in the run state machine.
type Phase string

const (
	PhasePlanning  Phase = "planning"
	PhaseExecuting Phase = "executing"
	PhaseFinished  Phase = "finished"
)

// StopReason explains why a run reached the finished phase.
type StopReason string

const (
	StopOracleComplete StopReason = "oracle_complete"
	StopBudgetItems    StopReason = "budget_items"
	StopBudgetActions  StopReason = "budget_actions"
	StopMalformedPlan  StopReason = "malformed_plan"
	StopPlanningFailed StopReason = "planning_failed"
	StopCancelled      StopReason = "cancelled"
)

// CollectionState is the single mutable object of a run. It is owned by the
// loop; everything else sees snapshots or immutable values derived from it.
type CollectionState struct {
	RunID     string
	Keyword   string
	Phase     Phase
	StartedAt time.Time

	Shortlist *ranking.Shortlist
	RawLeads  []tools.Lead
	Entities  []discovery.Entity

	// leadsExtracted counts how many of RawLeads have been through the
	// discovery step; the priority override fires while it trails the
	// lead count.
	leadsExtracted int

	ActionsUsed int
	retries     map[string]int
	issueLog    map[string][]string
	lastIssues  []string

	Log []string
}

func newState(runID, keyword string) *CollectionState {
	return &CollectionState{
		RunID:     runID,
		Keyword:   keyword,
		Phase:     PhasePlanning,
		StartedAt: time.Now(),
		Shortlist: ranking.NewShortlist(),
		retries:   map[string]int{},
		issueLog:  map[string][]string{},
	}
}

func (st *CollectionState) logf(format string, args ...interface{}) {
	st.Log = append(st.Log, fmt.Sprintf("[%s] %s",
		time.Now().Format("15:04:05"), fmt.Sprintf(format, args...)))
}

// pendingLeads reports whether leads have arrived that discovery has not
// seen yet.
func (st *CollectionState) pendingLeads() bool {
	return len(st.RawLeads) > st.leadsExtracted
}

// actionSignature identifies one tool call with one exact argument set, for
// the per-signature retry counters. Map keys marshal in sorted order, so the
// signature is stable.
func actionSignature(tool string, args map[string]interface{}) string {
	raw, err := json.Marshal(args)
	if err != nil {
		return tool
	}
	return tool + " " + string(raw)
}

// RunResult is what a finished run hands to persistence and callers.
type RunResult struct {
	RunID      string              `json:"run_id"`
	Keyword    string              `json:"keyword"`
	StartedAt  time.Time           `json:"started_at"`
	FinishedAt time.Time           `json:"finished_at"`
	Reason     StopReason          `json:"reason"`
	// LowConfidence marks runs that ended because planning stayed unusable
	// or unreachable after its one recovery attempt.
	LowConfidence  bool                 `json:"low_confidence,omitempty"`
	Confidence     float64              `json:"confidence,omitempty"`
	ActionsUsed    int                  `json:"actions_used"`
	ItemsCollected int                  `json:"items_collected"`
	Shortlist      []ranking.RankedItem `json:"shortlist"`
	Entities       []discovery.Entity   `json:"entities,omitempty"`
	Log            []string             `json:"log,omitempty"`
}
