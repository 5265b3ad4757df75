// Package tools defines the uniform contract the collection engine uses to
// call data-collection adapters, plus the registry the planner picks from.
package tools

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Item is one collected piece of platform content, normalized across adapters.
type Item struct {
	Platform     string                 `json:"platform"` // youtube, bilibili, reddit, web
	SourceTool   string                 `json:"source_tool"`
	Title        string                 `json:"title"`
	URL          string                 `json:"url"`
	AuthorName   string                 `json:"author_name,omitempty"`
	AuthorID     string                 `json:"author_id,omitempty"`
	AuthorFans   int64                  `json:"author_fans,omitempty"`
	PublishedAt  time.Time              `json:"published_at,omitempty"`
	Views        int64                  `json:"views"`
	Interactions int64                  `json:"interactions"` // likes + comments + favorites
	DurationSec  int                    `json:"duration_sec,omitempty"`
	Raw          map[string]interface{} `json:"raw,omitempty"`
}

// IdentityKey returns the stable dedup key for an item: the canonical URL
// when present, otherwise platform plus title.
func (it Item) IdentityKey() string {
	if it.URL != "" {
		return canonicalURL(it.URL)
	}
	return fmt.Sprintf("%s:%s", it.Platform, normalizeKey(it.Title))
}

// Lead is a lightweight clue from generic web search, input to entity discovery.
type Lead struct {
	Title   string   `json:"title"`
	URL     string   `json:"url"`
	Snippet string   `json:"snippet,omitempty"`
	Source  string   `json:"source"`
	Tags    []string `json:"tags,omitempty"`
}

// Result is what one tool invocation returns. It may carry platform items,
// discovery leads, both, or neither; callers judge usefulness via the gate.
type Result struct {
	Tool    string                 `json:"tool"`
	Items   []Item                 `json:"items,omitempty"`
	Leads   []Lead                 `json:"leads,omitempty"`
	Summary string                 `json:"summary,omitempty"`
	Meta    map[string]interface{} `json:"meta,omitempty"`
}

// Count returns how many usable records the result carries.
func (r Result) Count() int { return len(r.Items) + len(r.Leads) }

// ErrorKind classifies adapter failures so callers can branch without
// inspecting error strings.
type ErrorKind string

const (
	ErrNetwork     ErrorKind = "network"
	ErrRateLimited ErrorKind = "rate_limited"
	ErrMalformed   ErrorKind = "malformed"
	ErrNotFound    ErrorKind = "not_found"
)

// Error is the typed failure adapters return across the tool boundary.
type Error struct {
	Kind ErrorKind
	Tool string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Tool, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Tool, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError wraps err as a typed tool failure.
func NewError(tool string, kind ErrorKind, err error) *Error {
	return &Error{Kind: kind, Tool: tool, Err: err}
}

// KindOf extracts the error kind; context timeouts map to network failures so
// they route through the same retry path as any other transient fault.
func KindOf(err error) (ErrorKind, bool) {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind, true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrNetwork, true
	}
	return "", false
}

// Invoker executes one named data-collection action.
type Invoker interface {
	Name() string
	Description() string
	// Defaults returns argument defaults merged under caller arguments
	// before each invocation.
	Defaults() map[string]interface{}
	Invoke(ctx context.Context, args map[string]interface{}) (Result, error)
}

// Card describes a registered tool for the planning prompt.
type Card struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Registry holds the available tool adapters for a run.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Invoker
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Invoker)}
}

// Register adds or replaces a tool adapter.
func (r *Registry) Register(inv Invoker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[inv.Name()] = inv
}

// Get returns the adapter registered under name.
func (r *Registry) Get(name string) (Invoker, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	inv, ok := r.tools[name]
	return inv, ok
}

// Catalog lists registered tools in stable order for the planning prompt.
func (r *Registry) Catalog() []Card {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cards := make([]Card, 0, len(r.tools))
	for _, inv := range r.tools {
		cards = append(cards, Card{Name: inv.Name(), Description: inv.Description()})
	}
	sort.Slice(cards, func(i, j int) bool { return cards[i].Name < cards[j].Name })
	return cards
}

// Invoke runs the named tool with the adapter's defaults merged under args.
// Unknown tools return a not_found error rather than panicking, so a planner
// hallucinating a tool name stays on the normal failure path.
func (r *Registry) Invoke(ctx context.Context, name string, args map[string]interface{}) (Result, error) {
	inv, ok := r.Get(name)
	if !ok {
		return Result{Tool: name}, NewError(name, ErrNotFound, fmt.Errorf("tool not registered"))
	}
	merged := make(map[string]interface{})
	for k, v := range inv.Defaults() {
		merged[k] = v
	}
	for k, v := range args {
		merged[k] = v
	}
	return inv.Invoke(ctx, merged)
}
