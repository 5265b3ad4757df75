// Package ranking turns raw collected items into comparable quality scores
// and maintains the deduplicated shortlist the run exports.
package ranking

import (
	"math"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/radarhq/radar/internal/tools"
)

// RankedItem is a scored snapshot of one collected item. It is never mutated
// in place; rescoring replaces it wholesale.
type RankedItem struct {
	Item tools.Item `json:"item"`
	Key  string     `json:"key"`

	ViralScore      float64 `json:"viral_score"`
	ViewRatio       float64 `json:"view_ratio"`
	Freshness       float64 `json:"freshness"`
	EngagementRate  float64 `json:"engagement_rate"`
	DurationWeight  float64 `json:"duration_weight"`
	RelevanceWeight float64 `json:"relevance_weight"`
}

// Params are the scoring tunables for one run.
type Params struct {
	ReferenceWindowDays int
	// Now overrides the wall clock in tests.
	Now time.Time
}

func (p Params) now() time.Time {
	if p.Now.IsZero() {
		return time.Now()
	}
	return p.Now
}

func (p Params) window() float64 {
	if p.ReferenceWindowDays <= 0 {
		return 30
	}
	return float64(p.ReferenceWindowDays)
}

const (
	freshnessPeak  = 1.5 // brand-new items get a boost
	freshnessFloor = 0.3 // items past the window keep a small floor, never zero

	viewPercentile = 0.90
)

// ScoreBatch scores every item of one collection batch. The view ratio is
// relative to a high percentile of the batch itself, so the formula rewards
// outliers within their cohort rather than absolute popularity.
func ScoreBatch(items []tools.Item, queryKeyword string, params Params) []RankedItem {
	if len(items) == 0 {
		return nil
	}
	ref := referenceViews(items)
	ranked := make([]RankedItem, 0, len(items))
	for _, it := range items {
		ranked = append(ranked, scoreOne(it, queryKeyword, ref, params))
	}
	return ranked
}

func scoreOne(it tools.Item, queryKeyword string, refViews float64, params Params) RankedItem {
	// Platforms without view counts (reddit, plain posts) stay neutral on
	// the ratio axis and compete on engagement and relevance instead.
	viewRatio := 1.0
	if it.Views > 0 {
		viewRatio = float64(it.Views) / math.Max(refViews, 1)
	}
	freshness := Freshness(ageDays(it.PublishedAt, params.now()), params.window())
	engagement := EngagementRate(it.Views, it.Interactions)
	duration := DurationWeight(it.DurationSec)
	relevance := RelevanceWeight(it.Title, queryKeyword)

	return RankedItem{
		Item:            it,
		Key:             it.IdentityKey(),
		ViewRatio:       viewRatio,
		Freshness:       freshness,
		EngagementRate:  engagement,
		DurationWeight:  duration,
		RelevanceWeight: relevance,
		ViralScore:      viewRatio * freshness * engagement * duration * relevance,
	}
}

// referenceViews returns the high-percentile view count of the batch.
func referenceViews(items []tools.Item) float64 {
	views := make([]float64, 0, len(items))
	for _, it := range items {
		if it.Views > 0 {
			views = append(views, float64(it.Views))
		}
	}
	if len(views) == 0 {
		return 1
	}
	sort.Float64s(views)
	idx := int(math.Ceil(viewPercentile*float64(len(views)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(views) {
		idx = len(views) - 1
	}
	return views[idx]
}

func ageDays(published, now time.Time) float64 {
	if published.IsZero() {
		return 0
	}
	d := now.Sub(published).Hours() / 24
	if d < 0 {
		return 0
	}
	return d
}

// Freshness decays linearly from the peak at age zero down to the floor at
// the reference window, and stays at the floor beyond it. Monotonically
// non-increasing in age; never zero, so very high engagement can still
// surface an older item.
func Freshness(ageDays, windowDays float64) float64 {
	if windowDays <= 0 {
		windowDays = 30
	}
	if ageDays <= 0 {
		return freshnessPeak
	}
	if ageDays >= windowDays {
		return freshnessFloor
	}
	return freshnessPeak - (freshnessPeak-freshnessFloor)*(ageDays/windowDays)
}

// EngagementRate maps interactions-per-view to a multiplier >= 1. Items with
// no views stay neutral rather than dividing by zero.
func EngagementRate(views, interactions int64) float64 {
	if views <= 0 || interactions <= 0 {
		return 1.0
	}
	return 1.0 + float64(interactions)/float64(views)*10
}

// DurationWeight rewards the 3-20 minute band and penalizes extremes.
// Unknown durations (articles, posts) stay neutral.
func DurationWeight(durationSec int) float64 {
	if durationSec <= 0 {
		return 1.0
	}
	minutes := float64(durationSec) / 60
	switch {
	case minutes >= 3 && minutes <= 20:
		return 1.2
	case minutes < 1:
		return 0.5
	case minutes > 60:
		return 0.8
	default:
		return 1.0
	}
}

// stopWords covers English function words, generic media filler, and the
// Chinese particles that show up in bilingual queries. Year and bare number
// tokens are stripped separately.
var stopWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "but": {},
	"in": {}, "on": {}, "at": {}, "to": {}, "for": {}, "of": {},
	"with": {}, "by": {}, "from": {}, "is": {}, "are": {}, "how": {},
	"best": {}, "top": {}, "new": {}, "latest": {}, "official": {},
	"video": {}, "videos": {}, "shorts": {}, "content": {},
	"的": {}, "了": {}, "是": {}, "和": {},
}

var numberToken = regexp.MustCompile(`^[0-9]+$`)

// queryTerms splits the query into scoring terms: lowercased, stop words and
// year/number tokens removed, single characters dropped.
func queryTerms(query string) []string {
	var terms []string
	for _, raw := range strings.Fields(strings.ToLower(query)) {
		term := strings.Trim(raw, `.,!?:;"'()[]`)
		if len([]rune(term)) <= 1 {
			continue
		}
		if _, ok := stopWords[term]; ok {
			continue
		}
		if numberToken.MatchString(term) {
			continue
		}
		terms = append(terms, term)
	}
	return terms
}

// RelevanceWeight maps the share of query terms found in the title to a step
// weight in [0.2, 2.0]. Boundaries are inclusive lower bounds: a ratio
// exactly at a threshold takes the higher bucket. A query with no usable
// terms is neutral.
func RelevanceWeight(title, query string) float64 {
	if title == "" || query == "" {
		return 1.0
	}
	terms := queryTerms(query)
	if len(terms) == 0 {
		return 1.0
	}
	titleLower := strings.ToLower(title)
	matched := 0
	for _, term := range terms {
		if strings.Contains(titleLower, term) {
			matched++
		}
	}
	ratio := float64(matched) / float64(len(terms))
	switch {
	case ratio >= 0.8:
		return 2.0
	case ratio >= 0.5:
		return 1.5
	case ratio >= 0.3:
		return 1.0
	case ratio >= 0.1:
		return 0.5
	default:
		return 0.2
	}
}
