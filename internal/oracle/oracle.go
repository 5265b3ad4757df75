package oracle

import (
	"context"
	"errors"

	"github.com/radarhq/radar/internal/tools"
)

// Verdict actions the judgment call site may return. Anything else is
// normalized away by the quality gate.
const (
	ActionAccept           = "accept"
	ActionAdjustParameters = "adjust_parameters"
	ActionRetrySame        = "retry_same"
	ActionAbortAction      = "abort_action"
)

// ErrMalformedPlan means the model did not produce a usable plan even after
// the clarifying re-prompt. ErrMalformedVerdict is the judgment equivalent;
// the quality gate converts it into a degraded pass.
var (
	ErrMalformedPlan    = errors.New("oracle: malformed plan response")
	ErrMalformedVerdict = errors.New("oracle: malformed verdict response")
)

// Invocation is one tool call proposed by the planner.
type Invocation struct {
	Tool   string                 `json:"tool"`
	Args   map[string]interface{} `json:"args,omitempty"`
	Reason string                 `json:"reason,omitempty"`
}

// Proposal is the planner's answer: either a set of next actions, or a
// completion claim with a confidence attached.
type Proposal struct {
	Thought    string
	Actions    []Invocation
	Complete   bool
	Confidence float64
	// Clarified is set when the first response was unparseable and the plan
	// only came through on the clarifying re-prompt.
	Clarified bool
}

// Verdict is the quality judgment for one executed action.
type Verdict struct {
	Passed     bool                   `json:"passed"`
	Score      float64                `json:"score"`
	Confidence float64                `json:"confidence"`
	Issues     []string               `json:"issues,omitempty"`
	Action     string                 `json:"action"`
	Adjustment map[string]interface{} `json:"adjustment,omitempty"`
	// Degraded marks a verdict synthesized locally because the oracle was
	// unavailable or unintelligible.
	Degraded bool `json:"degraded,omitempty"`
}

// PlanInput is everything the planner sees about the run so far.
type PlanInput struct {
	Keyword           string
	Catalog           []tools.Card
	CollectedCount    int
	ShortlistTitles   []string
	LeadCount         int
	EntitiesExtracted bool
	// Entities lists discovered creators as "name (platform)" strings; the
	// planner may turn them into follow-up actions.
	Entities         []string
	ActionsUsed      int
	ActionsRemaining int
	ItemsRemaining   int
	RecentLog        []string
	LastIssues       []string
}

// JudgeInput describes one executed action for judgment. Summary is the
// bounded digest of the result, never the raw payload.
type JudgeInput struct {
	Keyword     string
	Expectation string
	Tool        string
	Args        map[string]interface{}
	Summary     string
	ItemCount   int
	Attempt     int
	PriorIssues []string
}

// Oracle is the reasoning backend of the collection loop: it proposes the
// next actions and judges the results.
type Oracle interface {
	Plan(ctx context.Context, input PlanInput) (Proposal, error)
	Judge(ctx context.Context, input JudgeInput) (Verdict, error)
}

// KnownAction reports whether the verdict action is one of the defined ones.
func KnownAction(action string) bool {
	switch action {
	case ActionAccept, ActionAdjustParameters, ActionRetrySame, ActionAbortAction:
		return true
	}
	return false
}
