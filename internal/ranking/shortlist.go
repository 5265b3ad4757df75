package ranking

import "sort"

// Shortlist accumulates scored items across batches, deduplicated by identity
// key. When the same key arrives twice the higher-scoring instance wins and
// replaces the other wholesale; a lower-scoring duplicate never displaces an
// existing entry.
type Shortlist struct {
	byKey map[string]RankedItem
}

// NewShortlist creates an empty shortlist.
func NewShortlist() *Shortlist {
	return &Shortlist{byKey: make(map[string]RankedItem)}
}

// Add merges one scored item and reports whether it was stored (new key or
// higher score than the existing entry).
func (s *Shortlist) Add(item RankedItem) bool {
	existing, ok := s.byKey[item.Key]
	if ok && existing.ViralScore >= item.ViralScore {
		return false
	}
	s.byKey[item.Key] = item
	return true
}

// AddAll merges a scored batch and returns how many entries were stored.
func (s *Shortlist) AddAll(items []RankedItem) int {
	stored := 0
	for _, it := range items {
		if s.Add(it) {
			stored++
		}
	}
	return stored
}

// Len returns the number of distinct keys held.
func (s *Shortlist) Len() int { return len(s.byKey) }

// Get returns the stored entry for a key.
func (s *Shortlist) Get(key string) (RankedItem, bool) {
	it, ok := s.byKey[key]
	return it, ok
}

// Top returns up to n entries sorted by descending viral score. Ties break on
// key so the ordering is stable across runs.
func (s *Shortlist) Top(n int) []RankedItem {
	out := make([]RankedItem, 0, len(s.byKey))
	for _, it := range s.byKey {
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ViralScore != out[j].ViralScore {
			return out[i].ViralScore > out[j].ViralScore
		}
		return out[i].Key < out[j].Key
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}
