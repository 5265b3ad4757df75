package oracle

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/radarhq/radar/config"
	"github.com/radarhq/radar/internal/llm"
	"github.com/radarhq/radar/internal/tools"
)

// stubProvider replays canned responses in order.
type stubProvider struct {
	responses []string
	err       error
	calls     int
	prompts   []string
}

func (s *stubProvider) Generate(ctx context.Context, prompt, model string, options map[string]interface{}) (string, error) {
	s.prompts = append(s.prompts, prompt)
	if s.err != nil {
		return "", s.err
	}
	if s.calls >= len(s.responses) {
		return "", fmt.Errorf("no more canned responses")
	}
	resp := s.responses[s.calls]
	s.calls++
	return resp, nil
}

func (s *stubProvider) GenerateWithTokens(ctx context.Context, prompt, model string, options map[string]interface{}) (string, int64, int64, error) {
	resp, err := s.Generate(ctx, prompt, model, options)
	return resp, 0, 0, err
}

func (s *stubProvider) GetModelInfo(model string) (llm.ModelInfo, error) {
	return llm.ModelInfo{Name: model}, nil
}

func (s *stubProvider) CalculateCost(in, out int64, model string) float64 { return 0 }

var testRouting = config.LLMRoutingConfig{Planning: "planner", Judgment: "judge", Fallback: "fallback"}

func testPlanInput() PlanInput {
	return PlanInput{
		Keyword: "AI generated video",
		Catalog: []tools.Card{
			{Name: "youtube_search", Description: "search YouTube"},
			{Name: "web_search", Description: "search the web"},
		},
		ActionsRemaining: 10,
		ItemsRemaining:   50,
	}
}

func TestPlanParsesActions(t *testing.T) {
	stub := &stubProvider{responses: []string{
		`Here is my plan:
{"thought": "start broad", "complete": false, "confidence": 0.6,
 "actions": [{"tool": "youtube_search", "args": {"query": "AI generated video"}, "reason": "primary platform"}]}`,
	}}
	o := NewLLMOracle(stub, testRouting)

	p, err := o.Plan(context.Background(), testPlanInput())
	if err != nil {
		t.Fatalf("plan failed: %v", err)
	}
	if len(p.Actions) != 1 || p.Actions[0].Tool != "youtube_search" {
		t.Fatalf("unexpected actions: %+v", p.Actions)
	}
	if p.Complete || p.Clarified {
		t.Fatalf("unexpected flags: %+v", p)
	}
	if q, ok := p.Actions[0].Args["query"].(string); !ok || q != "AI generated video" {
		t.Fatalf("args not carried through: %+v", p.Actions[0].Args)
	}
}

func TestPlanCompletionClaim(t *testing.T) {
	stub := &stubProvider{responses: []string{
		`{"thought": "coverage is good", "complete": true, "confidence": 0.9, "actions": []}`,
	}}
	o := NewLLMOracle(stub, testRouting)

	p, err := o.Plan(context.Background(), testPlanInput())
	if err != nil {
		t.Fatalf("plan failed: %v", err)
	}
	if !p.Complete || p.Confidence != 0.9 {
		t.Fatalf("expected completion claim, got %+v", p)
	}
}

func TestPlanClarifyingRepromptRecovers(t *testing.T) {
	stub := &stubProvider{responses: []string{
		"I think we should search YouTube first.",
		`{"thought": "ok", "complete": false, "confidence": 0.5,
		  "actions": [{"tool": "web_search", "args": {"query": "q"}}]}`,
	}}
	o := NewLLMOracle(stub, testRouting)

	p, err := o.Plan(context.Background(), testPlanInput())
	if err != nil {
		t.Fatalf("plan failed: %v", err)
	}
	if !p.Clarified {
		t.Fatalf("expected Clarified to be set after re-prompt")
	}
	if stub.calls != 2 {
		t.Fatalf("expected exactly 2 provider calls, got %d", stub.calls)
	}
}

func TestPlanMalformedTwiceFails(t *testing.T) {
	stub := &stubProvider{responses: []string{"still prose", "more prose"}}
	o := NewLLMOracle(stub, testRouting)

	_, err := o.Plan(context.Background(), testPlanInput())
	if !errors.Is(err, ErrMalformedPlan) {
		t.Fatalf("expected ErrMalformedPlan, got %v", err)
	}
	if stub.calls != 2 {
		t.Fatalf("expected exactly one re-prompt, got %d calls", stub.calls)
	}
}

func TestPlanEmptyWithoutCompletionIsMalformed(t *testing.T) {
	stub := &stubProvider{responses: []string{
		`{"thought": "hm", "complete": false, "actions": []}`,
		`{"thought": "hm", "complete": false, "actions": []}`,
	}}
	o := NewLLMOracle(stub, testRouting)

	if _, err := o.Plan(context.Background(), testPlanInput()); !errors.Is(err, ErrMalformedPlan) {
		t.Fatalf("expected ErrMalformedPlan for empty non-complete plan, got %v", err)
	}
}

func TestJudgeParsesVerdict(t *testing.T) {
	stub := &stubProvider{responses: []string{
		`{"passed": false, "score": 0.3, "confidence": 0.8,
		  "issues": ["results are off-topic"], "action": "adjust_parameters",
		  "adjustment": {"query": "AI generated short film"}}`,
	}}
	o := NewLLMOracle(stub, testRouting)

	v, err := o.Judge(context.Background(), JudgeInput{Keyword: "AI generated video", Tool: "web_search"})
	if err != nil {
		t.Fatalf("judge failed: %v", err)
	}
	if v.Passed || v.Score != 0.3 || v.Action != ActionAdjustParameters {
		t.Fatalf("unexpected verdict: %+v", v)
	}
	if v.Adjustment["query"] != "AI generated short film" {
		t.Fatalf("adjustment not carried through: %+v", v.Adjustment)
	}
}

func TestJudgeMalformedResponse(t *testing.T) {
	stub := &stubProvider{responses: []string{"looks fine to me"}}
	o := NewLLMOracle(stub, testRouting)

	if _, err := o.Judge(context.Background(), JudgeInput{Tool: "web_search"}); !errors.Is(err, ErrMalformedVerdict) {
		t.Fatalf("expected ErrMalformedVerdict, got %v", err)
	}
}

func TestJudgeProviderErrorPassesThrough(t *testing.T) {
	boom := errors.New("connection refused")
	stub := &stubProvider{err: boom}
	o := NewLLMOracle(stub, testRouting)

	if _, err := o.Judge(context.Background(), JudgeInput{Tool: "web_search"}); !errors.Is(err, boom) {
		t.Fatalf("expected provider error to pass through, got %v", err)
	}
}

func TestExtractJSONIgnoresBracesInStrings(t *testing.T) {
	in := `prefix {"a": "value with } brace", "b": {"c": 1}} suffix`
	got := extractJSON(in)
	want := `{"a": "value with } brace", "b": {"c": 1}}`
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestExtractJSONNoObject(t *testing.T) {
	if got := extractJSON("nothing here"); got != "" {
		t.Fatalf("expected empty, got %q", got)
	}
}
