// Package discovery extracts secondary creator entities from the raw leads
// a run accumulates, so the planner can pursue them as follow-up actions.
package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"regexp"
	"sort"
	"strings"

	"github.com/radarhq/radar/config"
	"github.com/radarhq/radar/internal/llm"
	"github.com/radarhq/radar/internal/tools"
)

// Confidence tags how certain the extraction is about an entity.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Entity is one discovered creator or channel worth a follow-up action.
type Entity struct {
	Name       string     `json:"name"`
	Platform   string     `json:"platform,omitempty"`
	Handle     string     `json:"handle,omitempty"`
	Confidence Confidence `json:"confidence"`
	Mentions   int        `json:"mentions"`
	Sources    []string   `json:"sources,omitempty"`
}

// Extractor turns leads into entities. The LLM does the heavy lifting when
// available; a pattern scan over the lead text backs it up, and also runs
// alone when the model call fails, so extraction itself never fails a run.
type Extractor struct {
	provider llm.Provider
	model    string
	logger   *log.Logger
}

func NewExtractor(provider llm.Provider, routing config.LLMRoutingConfig) *Extractor {
	model := routing.Extraction
	if model == "" {
		model = routing.Fallback
	}
	return &Extractor{
		provider: provider,
		model:    model,
		logger:   log.New(log.Writer(), "[DISCOVERY] ", log.LstdFlags),
	}
}

// Extract returns the deduplicated discovery set for the given leads.
func (e *Extractor) Extract(ctx context.Context, keyword string, leads []tools.Lead) []Entity {
	if len(leads) == 0 {
		return nil
	}

	merged := map[string]*Entity{}
	for _, ent := range e.scanLeads(leads) {
		upsert(merged, ent)
	}

	if e.provider != nil {
		llmEntities, err := e.llmExtract(ctx, keyword, leads)
		if err != nil {
			e.logger.Printf("model extraction failed (%v), keeping pattern-scan results", err)
		}
		for _, ent := range llmEntities {
			ent.Mentions, ent.Sources = countMentions(ent, leads)
			upsert(merged, ent)
		}
	}

	out := make([]Entity, 0, len(merged))
	for _, ent := range merged {
		ent.Confidence = grade(*ent)
		out = append(out, *ent)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Mentions != out[j].Mentions {
			return out[i].Mentions > out[j].Mentions
		}
		return entityKey(out[i]) < entityKey(out[j])
	})
	return out
}

var (
	handlePattern   = regexp.MustCompile(`@([A-Za-z0-9][A-Za-z0-9_.\-]{1,40})`)
	youtubePattern  = regexp.MustCompile(`youtube\.com/(?:@|channel/|c/|user/)([A-Za-z0-9_.\-]{2,60})`)
	bilibiliPattern = regexp.MustCompile(`space\.bilibili\.com/(\d{1,16})`)
)

// scanLeads finds explicitly-written identifiers: @handles, channel URLs,
// bilibili space pages.
func (e *Extractor) scanLeads(leads []tools.Lead) []Entity {
	type hit struct {
		platform string
		sources  map[string]struct{}
	}
	hits := map[string]*hit{}

	record := func(handle, platform, source string) {
		key := strings.ToLower(handle)
		h, ok := hits[key]
		if !ok {
			h = &hit{platform: platform, sources: map[string]struct{}{}}
			hits[key] = h
		}
		if h.platform == "" {
			h.platform = platform
		}
		h.sources[source] = struct{}{}
	}

	for _, lead := range leads {
		text := lead.Title + " " + lead.Snippet + " " + lead.URL
		for _, m := range youtubePattern.FindAllStringSubmatch(text, -1) {
			record(m[1], "youtube", lead.URL)
		}
		for _, m := range bilibiliPattern.FindAllStringSubmatch(text, -1) {
			record(m[1], "bilibili", lead.URL)
		}
		for _, m := range handlePattern.FindAllStringSubmatch(lead.Title+" "+lead.Snippet, -1) {
			record(m[1], "", lead.URL)
		}
	}

	out := make([]Entity, 0, len(hits))
	for handle, h := range hits {
		sources := make([]string, 0, len(h.sources))
		for s := range h.sources {
			sources = append(sources, s)
		}
		sort.Strings(sources)
		out = append(out, Entity{
			Name:     handle,
			Platform: h.platform,
			Handle:   handle,
			Mentions: len(sources),
			Sources:  sources,
		})
	}
	return out
}

func (e *Extractor) llmExtract(ctx context.Context, keyword string, leads []tools.Lead) ([]Entity, error) {
	var b strings.Builder
	fmt.Fprintf(&b, `Extract the content creators, channels, and accounts mentioned in the
article leads below. The collection topic is %q; only extract entities that
produce content, not companies or products.

LEADS:
`, keyword)
	for i, lead := range leads {
		if i >= 20 {
			break
		}
		snippet := lead.Snippet
		if len(snippet) > 300 {
			snippet = snippet[:300] + "..."
		}
		fmt.Fprintf(&b, "%d. %s — %s\n", i+1, lead.Title, snippet)
	}
	b.WriteString(`
OUTPUT FORMAT (JSON array only):
[{"name": "creator name", "platform": "youtube|bilibili|tiktok|web|", "handle": "@handle or id if stated"}]

Return [] when no creators are mentioned.`)

	response, err := e.provider.Generate(ctx, b.String(), e.model, map[string]interface{}{
		"temperature": 0.2,
		"max_tokens":  800,
	})
	if err != nil {
		return nil, err
	}

	jsonStr := extractJSONArray(response)
	if jsonStr == "" {
		return nil, fmt.Errorf("no JSON array in response")
	}
	var raw []Entity
	if err := json.Unmarshal([]byte(jsonStr), &raw); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}

	out := raw[:0]
	for _, ent := range raw {
		ent.Name = strings.TrimSpace(ent.Name)
		ent.Handle = strings.TrimSpace(strings.TrimPrefix(ent.Handle, "@"))
		if ent.Name == "" && ent.Handle == "" {
			continue
		}
		out = append(out, ent)
	}
	return out, nil
}

// countMentions counts the distinct leads whose text contains the entity's
// name or handle.
func countMentions(ent Entity, leads []tools.Lead) (int, []string) {
	name := strings.ToLower(ent.Name)
	handle := strings.ToLower(ent.Handle)
	var sources []string
	for _, lead := range leads {
		text := strings.ToLower(lead.Title + " " + lead.Snippet + " " + lead.URL)
		if (name != "" && strings.Contains(text, name)) ||
			(handle != "" && strings.Contains(text, handle)) {
			sources = append(sources, lead.URL)
		}
	}
	return len(sources), sources
}

// grade derives the confidence tag: explicit identifiers and independent
// corroboration each count for one level.
func grade(ent Entity) Confidence {
	explicit := ent.Handle != ""
	corroborated := ent.Mentions >= 2
	switch {
	case explicit && corroborated:
		return ConfidenceHigh
	case explicit || corroborated:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

func entityKey(ent Entity) string {
	if ent.Handle != "" {
		return strings.ToLower(ent.Handle)
	}
	return strings.ToLower(ent.Name)
}

func upsert(merged map[string]*Entity, ent Entity) {
	key := entityKey(ent)
	if key == "" {
		return
	}
	existing, ok := merged[key]
	if !ok {
		e := ent
		merged[key] = &e
		return
	}
	if existing.Name == "" || existing.Name == existing.Handle {
		existing.Name = ent.Name
	}
	if existing.Platform == "" {
		existing.Platform = ent.Platform
	}
	if existing.Handle == "" {
		existing.Handle = ent.Handle
	}
	if ent.Mentions > existing.Mentions {
		existing.Mentions = ent.Mentions
		existing.Sources = ent.Sources
	}
}

// extractJSONArray returns the first balanced top-level JSON array in s.
func extractJSONArray(s string) string {
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
		case '[':
			if depth == 0 {
				start = i
			}
			depth++
		case ']':
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
