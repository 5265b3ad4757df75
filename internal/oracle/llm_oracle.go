package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/radarhq/radar/config"
	"github.com/radarhq/radar/internal/llm"
)

// LLMOracle implements Oracle on top of a chat-completion provider. Planning
// and judgment route to separately configured models so the frequent
// judgment calls can use a cheaper one.
type LLMOracle struct {
	provider llm.Provider
	routing  config.LLMRoutingConfig
	logger   *log.Logger
}

func NewLLMOracle(provider llm.Provider, routing config.LLMRoutingConfig) *LLMOracle {
	return &LLMOracle{
		provider: provider,
		routing:  routing,
		logger:   log.New(log.Writer(), "[ORACLE] ", log.LstdFlags),
	}
}

// Plan asks the planning model for the next actions. A response without
// usable JSON gets exactly one clarifying re-prompt; if that also fails the
// caller receives ErrMalformedPlan and decides how to wind the run down.
func (o *LLMOracle) Plan(ctx context.Context, input PlanInput) (Proposal, error) {
	prompt := o.planPrompt(input)

	response, err := o.provider.Generate(ctx, prompt, o.routing.Planning, map[string]interface{}{
		"temperature": 0.3,
		"max_tokens":  1500,
	})
	if err != nil {
		return Proposal{}, fmt.Errorf("planning call failed: %w", err)
	}

	proposal, perr := parseProposal(response)
	if perr == nil {
		return proposal, nil
	}

	o.logger.Printf("plan response unparseable (%v), issuing clarifying re-prompt", perr)
	clarify := prompt + "\n\nYour previous response could not be parsed. " +
		"Reply with ONLY the JSON object described above, no prose, no code fences."
	response, err = o.provider.Generate(ctx, clarify, o.routing.Planning, map[string]interface{}{
		"temperature": 0.1,
		"max_tokens":  1500,
	})
	if err != nil {
		return Proposal{}, fmt.Errorf("clarifying planning call failed: %w", err)
	}
	proposal, perr = parseProposal(response)
	if perr != nil {
		return Proposal{}, ErrMalformedPlan
	}
	proposal.Clarified = true
	return proposal, nil
}

// Judge asks the judgment model to grade one executed action. Malformed
// output surfaces as ErrMalformedVerdict; the transport error of a failed
// call is returned as-is. Both are handled upstream by the quality gate.
func (o *LLMOracle) Judge(ctx context.Context, input JudgeInput) (Verdict, error) {
	model := o.routing.Judgment
	if model == "" {
		model = o.routing.Fallback
	}

	response, err := o.provider.Generate(ctx, o.judgePrompt(input), model, map[string]interface{}{
		"temperature": 0.2,
		"max_tokens":  600,
	})
	if err != nil {
		return Verdict{}, fmt.Errorf("judgment call failed: %w", err)
	}

	jsonStr := extractJSON(response)
	if jsonStr == "" {
		return Verdict{}, ErrMalformedVerdict
	}
	var v Verdict
	if err := json.Unmarshal([]byte(jsonStr), &v); err != nil {
		return Verdict{}, ErrMalformedVerdict
	}
	return v, nil
}

func (o *LLMOracle) planPrompt(input PlanInput) string {
	var b strings.Builder
	fmt.Fprintf(&b, `You are the planning brain of a trend-collection agent. Your goal is to
find currently-viral content for the topic below using the available tools,
within a strict budget.

TOPIC: %s

AVAILABLE TOOLS:
`, input.Keyword)
	for _, card := range input.Catalog {
		fmt.Fprintf(&b, "- %s: %s\n", card.Name, card.Description)
	}

	fmt.Fprintf(&b, `
RUN STATE:
- Items collected: %d (budget remaining: %d)
- Actions used: %d (remaining: %d)
- Raw leads waiting for creator extraction: %d
- Creator entities extracted: %v
`, input.CollectedCount, input.ItemsRemaining, input.ActionsUsed, input.ActionsRemaining,
		input.LeadCount, input.EntitiesExtracted)

	if len(input.Entities) > 0 {
		b.WriteString("\nDISCOVERED CREATORS (worth pursuing on their platforms):\n")
		for _, ent := range input.Entities {
			fmt.Fprintf(&b, "- %s\n", ent)
		}
	}
	if len(input.ShortlistTitles) > 0 {
		b.WriteString("\nBEST TITLES SO FAR:\n")
		for _, t := range input.ShortlistTitles {
			fmt.Fprintf(&b, "- %s\n", t)
		}
	}
	if len(input.RecentLog) > 0 {
		b.WriteString("\nRECENT ACTIONS:\n")
		for _, line := range input.RecentLog {
			fmt.Fprintf(&b, "- %s\n", line)
		}
	}
	if len(input.LastIssues) > 0 {
		b.WriteString("\nISSUES FROM THE LAST QUALITY CHECK:\n")
		for _, issue := range input.LastIssues {
			fmt.Fprintf(&b, "- %s\n", issue)
		}
	}

	b.WriteString(`
PLANNING RULES:
1. Propose 1-3 tool calls that best advance the collection, or declare the
   run complete when coverage is good enough.
2. Vary queries and platforms across iterations instead of repeating a call
   that already ran.
3. Prefer breadth early (search several platforms), depth later (fetch pages
   for promising leads).
4. Never propose a tool that is not in the catalog.

OUTPUT FORMAT (JSON only):
{
  "thought": "one or two sentences of reasoning",
  "complete": false,
  "confidence": 0.0,
  "actions": [
    {"tool": "tool_name", "args": {"query": "..."}, "reason": "why"}
  ]
}

When declaring completion set "complete": true, leave "actions" empty, and
set "confidence" to how sure you are that coverage is sufficient.`)
	return b.String()
}

func (o *LLMOracle) judgePrompt(input JudgeInput) string {
	var b strings.Builder
	fmt.Fprintf(&b, `You are the quality judge of a trend-collection agent working on the topic
%q. Grade the outcome of one tool call.

TOOL: %s
ARGS: %s
CALLER EXPECTED: %s
ATTEMPT: %d
RESULT (%d items): %s
`, input.Keyword, input.Tool, compactArgs(input.Args), input.Expectation, input.Attempt, input.ItemCount, input.Summary)

	if len(input.PriorIssues) > 0 {
		b.WriteString("\nISSUES RAISED ON EARLIER ATTEMPTS OF THIS ACTION:\n")
		for _, issue := range input.PriorIssues {
			fmt.Fprintf(&b, "- %s\n", issue)
		}
		b.WriteString("If the same issues persist, do not ask for another identical retry.\n")
	}

	b.WriteString(`
Judge relevance to the topic, result volume, and signs of noise or
off-topic drift. Then choose exactly one follow-up action:
- "accept": results are usable as-is
- "adjust_parameters": usable approach, but the args need changing; put the
  new args in "adjustment"
- "retry_same": transient-looking failure, same call is worth one more try
- "abort_action": this call is a dead end for the topic

OUTPUT FORMAT (JSON only):
{
  "passed": true,
  "score": 0.0,
  "confidence": 0.0,
  "issues": ["..."],
  "action": "accept",
  "adjustment": {}
}

"score" and "confidence" are in [0,1].`)
	return b.String()
}

func compactArgs(args map[string]interface{}) string {
	if len(args) == 0 {
		return "{}"
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return "{}"
	}
	return string(raw)
}

// parseProposal extracts and decodes the planner JSON.
func parseProposal(response string) (Proposal, error) {
	jsonStr := extractJSON(response)
	if jsonStr == "" {
		return Proposal{}, fmt.Errorf("no JSON found in response")
	}

	var raw struct {
		Thought    string       `json:"thought"`
		Complete   bool         `json:"complete"`
		Confidence float64      `json:"confidence"`
		Actions    []Invocation `json:"actions"`
	}
	if err := json.Unmarshal([]byte(jsonStr), &raw); err != nil {
		return Proposal{}, fmt.Errorf("failed to parse JSON: %w", err)
	}

	actions := make([]Invocation, 0, len(raw.Actions))
	for _, a := range raw.Actions {
		if strings.TrimSpace(a.Tool) == "" {
			continue
		}
		if a.Args == nil {
			a.Args = map[string]interface{}{}
		}
		actions = append(actions, a)
	}
	if !raw.Complete && len(actions) == 0 {
		return Proposal{}, fmt.Errorf("plan proposes no actions and does not declare completion")
	}

	return Proposal{
		Thought:    raw.Thought,
		Actions:    actions,
		Complete:   raw.Complete,
		Confidence: clamp01(raw.Confidence),
	}, nil
}

// extractJSON returns the first balanced top-level JSON object in s, or "".
func extractJSON(s string) string {
	start := -1
	depth := 0
	inString := false
	escaped := false
	for i, ch := range s {
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			if depth > 0 {
				inString = true
			}
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth > 0 {
				depth--
				if depth == 0 && start != -1 {
					return s[start : i+1]
				}
			}
		}
	}
	return ""
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
