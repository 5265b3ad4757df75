// Package gate checks every tool result before it enters collection state.
// Judgment is delegated to the reasoning oracle; when the oracle is slow,
// down, or unintelligible the gate degrades to an optimistic pass so a
// single judgment failure never stalls a run.
package gate

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/radarhq/radar/internal/oracle"
	"github.com/radarhq/radar/internal/tools"
)

const (
	// degradedScore is the score attached to a verdict the gate synthesized
	// itself. Chosen above typical accept thresholds on purpose.
	degradedScore = 0.7

	defaultSummaryChars = 800
	defaultJudgeTimeout = 30 * time.Second
	maxSummaryTitles    = 3
)

// Invocation is the immutable description of one tool call: what was called,
// with which arguments, and what the planner expected to get back.
type Invocation struct {
	Tool        string
	Args        map[string]interface{}
	Expectation string
}

// Gate evaluates tool results through the oracle's judgment model.
type Gate struct {
	oracle       oracle.Oracle
	keyword      string
	summaryChars int
	judgeTimeout time.Duration
	logger       *log.Logger
}

// Option tweaks gate tunables.
type Option func(*Gate)

// WithSummaryBudget bounds the result digest handed to the oracle.
func WithSummaryBudget(chars int) Option {
	return func(g *Gate) {
		if chars > 0 {
			g.summaryChars = chars
		}
	}
}

// WithJudgeTimeout bounds a single judgment call.
func WithJudgeTimeout(d time.Duration) Option {
	return func(g *Gate) {
		if d > 0 {
			g.judgeTimeout = d
		}
	}
}

// New creates a gate for one collection run.
func New(o oracle.Oracle, keyword string, opts ...Option) *Gate {
	g := &Gate{
		oracle:       o,
		keyword:      keyword,
		summaryChars: defaultSummaryChars,
		judgeTimeout: defaultJudgeTimeout,
		logger:       log.New(log.Writer(), "[GATE] ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Evaluate judges one executed invocation. It never returns an error: an
// empty result, an error payload, and an unreachable oracle all produce a
// verdict the loop can act on. attempt counts executions of this exact
// invocation, priorIssues carries issues from its earlier attempts.
func (g *Gate) Evaluate(ctx context.Context, inv Invocation, result tools.Result, resultErr error, attempt int, priorIssues []string) oracle.Verdict {
	summary := g.summarize(result, resultErr)

	jctx, cancel := context.WithTimeout(ctx, g.judgeTimeout)
	defer cancel()

	raw, err := g.oracle.Judge(jctx, oracle.JudgeInput{
		Keyword:     g.keyword,
		Expectation: inv.Expectation,
		Tool:        inv.Tool,
		Args:        inv.Args,
		Summary:     summary,
		ItemCount:   result.Count(),
		Attempt:     attempt,
		PriorIssues: priorIssues,
	})
	if err != nil {
		g.logger.Printf("judgment unavailable for %s (%v), degrading to optimistic pass", inv.Tool, err)
		return degradedVerdict(err)
	}

	v, ok := normalize(raw)
	if !ok {
		g.logger.Printf("judgment for %s malformed, degrading to optimistic pass", inv.Tool)
		return degradedVerdict(oracle.ErrMalformedVerdict)
	}

	// A failed attempt that keeps hitting the same wall is a dead end, not
	// a retry candidate.
	if !v.Passed && v.Action == oracle.ActionRetrySame && repeatedIssue(priorIssues, v.Issues) {
		v.Action = oracle.ActionAbortAction
		v.Issues = append(v.Issues, "same issue persisted across attempts")
	}
	return v
}

// summarize builds the bounded digest the oracle judges from. Raw payloads
// never cross this boundary.
func (g *Gate) summarize(result tools.Result, resultErr error) string {
	var b strings.Builder

	if resultErr != nil {
		if kind, ok := tools.KindOf(resultErr); ok {
			fmt.Fprintf(&b, "tool error (%s): %v. ", kind, resultErr)
		} else {
			fmt.Fprintf(&b, "tool error: %v. ", resultErr)
		}
	}

	fmt.Fprintf(&b, "%d items", len(result.Items))
	if n := len(result.Leads); n > 0 {
		fmt.Fprintf(&b, ", %d leads", n)
	}
	if len(result.Items) > 0 {
		b.WriteString(". Sample titles: ")
		for i, it := range result.Items {
			if i >= maxSummaryTitles {
				fmt.Fprintf(&b, " (and %d more)", len(result.Items)-maxSummaryTitles)
				break
			}
			if i > 0 {
				b.WriteString("; ")
			}
			fmt.Fprintf(&b, "%q", it.Title)
		}
	}
	if result.Summary != "" {
		b.WriteString(". ")
		b.WriteString(result.Summary)
	}

	s := b.String()
	if len(s) > g.summaryChars {
		// Cut on a rune boundary; titles are routinely CJK.
		cut := g.summaryChars
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		s = s[:cut] + "..."
	}
	return s
}

// normalize clamps the numeric fields and rejects verdicts whose action is
// not one of the enumerated values. An adjustment request without an
// adjustment plan is downgraded to a plain retry.
func normalize(v oracle.Verdict) (oracle.Verdict, bool) {
	if !oracle.KnownAction(v.Action) {
		return oracle.Verdict{}, false
	}
	if v.Score < 0 {
		v.Score = 0
	} else if v.Score > 1 {
		v.Score = 1
	}
	if v.Confidence < 0 {
		v.Confidence = 0
	} else if v.Confidence > 1 {
		v.Confidence = 1
	}
	if v.Action == oracle.ActionAdjustParameters && len(v.Adjustment) == 0 {
		v.Action = oracle.ActionRetrySame
		v.Issues = append(v.Issues, "adjustment requested without an adjustment plan")
	}
	return v, true
}

func degradedVerdict(cause error) oracle.Verdict {
	return oracle.Verdict{
		Passed:     true,
		Score:      degradedScore,
		Confidence: 0.3,
		Issues:     []string{fmt.Sprintf("quality judgment degraded: %v", cause)},
		Action:     oracle.ActionAccept,
		Degraded:   true,
	}
}

// repeatedIssue reports whether any current issue already appeared on an
// earlier attempt of the same invocation.
func repeatedIssue(prior, current []string) bool {
	if len(prior) == 0 || len(current) == 0 {
		return false
	}
	seen := make(map[string]struct{}, len(prior))
	for _, issue := range prior {
		seen[strings.ToLower(strings.TrimSpace(issue))] = struct{}{}
	}
	for _, issue := range current {
		if _, ok := seen[strings.ToLower(strings.TrimSpace(issue))]; ok {
			return true
		}
	}
	return false
}
