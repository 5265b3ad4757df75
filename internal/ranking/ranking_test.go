package ranking

import (
	"testing"
	"time"

	"github.com/radarhq/radar/internal/tools"
)

func TestRelevanceWeightHighMatch(t *testing.T) {
	w := RelevanceWeight("AI Generated Short Film Tutorial", "AI generated video tutorial")
	if w != 2.0 {
		t.Fatalf("expected weight 2.0 for on-topic title, got %v", w)
	}
}

func TestRelevanceWeightOffTopic(t *testing.T) {
	w := RelevanceWeight("Huge Tornado Forming Caught on Camera", "AI generated video tutorial")
	if w != 0.2 {
		t.Fatalf("expected weight 0.2 for off-topic title, got %v", w)
	}
}

func TestRelevanceWeightBoundaryTakesHigherBucket(t *testing.T) {
	// two of four terms match: ratio exactly 0.5 must land in the 1.5 bucket
	w := RelevanceWeight("rust compiler deep dive", "rust compiler embedded firmware")
	if w != 1.5 {
		t.Fatalf("expected 1.5 at the 0.5 boundary, got %v", w)
	}
}

func TestRelevanceWeightNeutralWithoutTerms(t *testing.T) {
	for _, query := range []string{"", "the of 2024", "a to 10"} {
		if w := RelevanceWeight("anything", query); w != 1.0 {
			t.Fatalf("query %q: expected neutral weight 1.0, got %v", query, w)
		}
	}
}

func TestRelevanceWeightBoundsAndMonotonic(t *testing.T) {
	titles := []string{
		"nothing matches here at all",
		"quantum match only",
		"quantum computing partly",
		"quantum computing error correction explained",
	}
	query := "quantum computing error correction"
	prev := 0.0
	for i, title := range titles {
		w := RelevanceWeight(title, query)
		if w < 0.2 || w > 2.0 {
			t.Fatalf("weight %v out of [0.2, 2.0] for title %q", w, title)
		}
		if w < prev {
			t.Fatalf("weight not monotonic at step %d: %v < %v", i, w, prev)
		}
		prev = w
	}
	if prev != 2.0 {
		t.Fatalf("full match should reach 2.0, got %v", prev)
	}
}

func TestFreshnessMonotoneWithFloor(t *testing.T) {
	window := 30.0
	prev := Freshness(0, window)
	if prev != freshnessPeak {
		t.Fatalf("age 0 should hit the peak, got %v", prev)
	}
	for age := 1.0; age <= 90; age++ {
		f := Freshness(age, window)
		if f > prev {
			t.Fatalf("freshness increased at age %v: %v > %v", age, f, prev)
		}
		if f <= 0 {
			t.Fatalf("freshness must stay positive, got %v at age %v", f, age)
		}
		prev = f
	}
	if got := Freshness(365, window); got != freshnessFloor {
		t.Fatalf("old item should sit at the floor, got %v", got)
	}
}

func TestDurationWeightBands(t *testing.T) {
	cases := []struct {
		sec  int
		want float64
	}{
		{0, 1.0},       // unknown
		{30, 0.5},      // too short
		{5 * 60, 1.2},  // golden band
		{40 * 60, 1.0}, // long but acceptable
		{90 * 60, 0.8}, // too long
	}
	for _, c := range cases {
		if got := DurationWeight(c.sec); got != c.want {
			t.Fatalf("duration %ds: expected %v, got %v", c.sec, c.want, got)
		}
	}
}

func TestEngagementRateNeutralOnZeroViews(t *testing.T) {
	if got := EngagementRate(0, 100); got != 1.0 {
		t.Fatalf("expected neutral rate for zero views, got %v", got)
	}
	if got := EngagementRate(1000, 0); got != 1.0 {
		t.Fatalf("expected neutral rate for zero interactions, got %v", got)
	}
	if got := EngagementRate(1000, 50); got <= 1.0 {
		t.Fatalf("expected boosted rate, got %v", got)
	}
}

func TestScoreBatchViewlessPlatformStaysNeutral(t *testing.T) {
	now := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	items := []tools.Item{
		{
			Platform: "reddit", Title: "AI generated tutorial megathread",
			URL: "https://www.reddit.com/r/StableDiffusion/comments/abc",
			Interactions: 400, PublishedAt: now.Add(-24 * time.Hour),
		},
		{
			Platform: "youtube", Title: "AI generated tutorial",
			URL:   "https://youtube.com/watch?v=1",
			Views: 100000, Interactions: 500, DurationSec: 300,
			PublishedAt: now.Add(-24 * time.Hour),
		},
	}
	ranked := ScoreBatch(items, "AI generated tutorial", Params{ReferenceWindowDays: 30, Now: now})
	if ranked[0].ViewRatio != 1.0 {
		t.Fatalf("view-less item must keep a neutral ratio, got %v", ranked[0].ViewRatio)
	}
	if ranked[0].ViralScore <= 0 {
		t.Fatalf("view-less item must not collapse to zero, got %v", ranked[0].ViralScore)
	}
}

func TestShortlistHigherScoreWins(t *testing.T) {
	for _, order := range [][]float64{{4.8, 7.2}, {7.2, 4.8}} {
		s := NewShortlist()
		for _, score := range order {
			s.Add(RankedItem{Key: "video:123", ViralScore: score})
		}
		got, ok := s.Get("video:123")
		if !ok {
			t.Fatalf("entry missing")
		}
		if got.ViralScore != 7.2 {
			t.Fatalf("order %v: expected stored score 7.2, got %v", order, got.ViralScore)
		}
		if s.Len() != 1 {
			t.Fatalf("duplicate key stored twice")
		}
	}
}

func TestShortlistLowerDuplicateRejected(t *testing.T) {
	s := NewShortlist()
	if !s.Add(RankedItem{Key: "k", ViralScore: 5}) {
		t.Fatalf("first insert should store")
	}
	if s.Add(RankedItem{Key: "k", ViralScore: 3}) {
		t.Fatalf("lower-scoring duplicate must not replace the entry")
	}
	got, _ := s.Get("k")
	if got.ViralScore != 5 {
		t.Fatalf("expected 5, got %v", got.ViralScore)
	}
}

func TestShortlistTopOrderAndTruncation(t *testing.T) {
	s := NewShortlist()
	s.Add(RankedItem{Key: "a", ViralScore: 1})
	s.Add(RankedItem{Key: "b", ViralScore: 3})
	s.Add(RankedItem{Key: "c", ViralScore: 2})
	top := s.Top(2)
	if len(top) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(top))
	}
	if top[0].Key != "b" || top[1].Key != "c" {
		t.Fatalf("unexpected order: %s, %s", top[0].Key, top[1].Key)
	}
}

func TestScoreBatchOffTopicDrops(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	recent := now.AddDate(0, 0, -2)
	batch := []tools.Item{
		{
			Platform: "youtube", Title: "Huge Tornado Forming Caught on Camera",
			URL: "https://youtube.com/watch?v=t1", Views: 900000, Interactions: 2000,
			DurationSec: 300, PublishedAt: recent,
		},
		{
			Platform: "youtube", Title: "AI Generated Short Film Tutorial",
			URL: "https://youtube.com/watch?v=t2", Views: 120000, Interactions: 4000,
			DurationSec: 420, PublishedAt: recent,
		},
	}
	ranked := ScoreBatch(batch, "AI generated video tutorial", Params{ReferenceWindowDays: 30, Now: now})
	if len(ranked) != 2 {
		t.Fatalf("expected 2 ranked items, got %d", len(ranked))
	}
	var tornado, tutorial RankedItem
	for _, r := range ranked {
		if r.Item.Title == "AI Generated Short Film Tutorial" {
			tutorial = r
		} else {
			tornado = r
		}
	}
	if tornado.RelevanceWeight != 0.2 {
		t.Fatalf("tornado relevance should be 0.2, got %v", tornado.RelevanceWeight)
	}
	if tutorial.ViralScore <= tornado.ViralScore {
		t.Fatalf("on-topic item should outrank the off-topic viral one: %v vs %v",
			tutorial.ViralScore, tornado.ViralScore)
	}
}

func TestScoreBatchEmpty(t *testing.T) {
	if got := ScoreBatch(nil, "q", Params{}); got != nil {
		t.Fatalf("expected nil for empty batch, got %v", got)
	}
}
