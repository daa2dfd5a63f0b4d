package rank

import (
	"testing"
	"time"

	"listingminer/proxypool/model"
)

func record(addr string, latency time.Duration, anon model.Anonymity, https bool) *model.ProxyRecord {
	return &model.ProxyRecord{
		ProxyCandidate: model.ProxyCandidate{Address: addr, HTTPS: https},
		Reachable:      true,
		Latency:        latency,
		Anonymity:      anon,
	}
}

func TestScore_Bounds(t *testing.T) {
	cases := []struct {
		name string
		r    *model.ProxyRecord
		want int
	}{
		{"best", record("a:1", 300*time.Millisecond, model.AnonymityElite, true), 100},
		{"worst", record("b:1", 10*time.Second, model.AnonymityTransparent, false), 10},
		{"mid_latency_anon", record("c:1", 1500*time.Millisecond, model.AnonymityAnonymous, false), 50},
		{"slow_elite_https", record("d:1", 4*time.Second, model.AnonymityElite, true), 60},
		{"sub_second", record("e:1", 900*time.Millisecond, model.AnonymityTransparent, false), 50},
	}

	for _, tc := range cases {
		got := Score(tc.r)
		if got != tc.want {
			t.Errorf("%s: Score() = %d, want %d", tc.name, got, tc.want)
		}
		if got < 10 || got > 100 {
			t.Errorf("%s: Score() = %d, outside [10,100]", tc.name, got)
		}
	}
}

func TestScore_Deterministic(t *testing.T) {
	r := record("a:1", 700*time.Millisecond, model.AnonymityElite, true)
	first := Score(r)
	for i := 0; i < 5; i++ {
		if got := Score(r); got != first {
			t.Fatalf("Score() not deterministic: got %d then %d", first, got)
		}
	}
}

func TestSelectBest_OrderingAndCount(t *testing.T) {
	records := []*model.ProxyRecord{
		record("slow:1", 4*time.Second, model.AnonymityTransparent, false),   // 10+10 = 20
		record("fast:1", 300*time.Millisecond, model.AnonymityElite, true),   // 100
		record("tie_a:1", 1200*time.Millisecond, model.AnonymityElite, false), // 30+30 = 60
		record("tie_b:1", 1800*time.Millisecond, model.AnonymityElite, false), // 30+30 = 60
	}

	best := SelectBest(records, 3)
	if len(best) != 3 {
		t.Fatalf("SelectBest returned %d records, want 3", len(best))
	}
	if best[0].Address != "fast:1" {
		t.Errorf("Expected 'fast:1' first, got '%s'", best[0].Address)
	}
	// Equal scores resolve by lower latency.
	if best[1].Address != "tie_a:1" || best[2].Address != "tie_b:1" {
		t.Errorf("Tie not broken by latency: got %s then %s", best[1].Address, best[2].Address)
	}
	for i := 1; i < len(best); i++ {
		if best[i-1].Score < best[i].Score {
			t.Errorf("Scores not non-increasing at %d: %d < %d", i, best[i-1].Score, best[i].Score)
		}
	}
}

func TestSelectBest_CountExceedsInput(t *testing.T) {
	records := []*model.ProxyRecord{
		record("a:1", time.Second, model.AnonymityAnonymous, false),
	}
	best := SelectBest(records, 10)
	if len(best) != 1 {
		t.Fatalf("SelectBest returned %d records, want 1", len(best))
	}
}

// Scenario from the ranking policy: a fast elite https proxy must beat a
// slow transparent plain one outright.
func TestSelectBest_FastEliteBeatsSlowTransparent(t *testing.T) {
	a := record("a:1", 300*time.Millisecond, model.AnonymityElite, true)
	b := record("b:1", 4*time.Second, model.AnonymityTransparent, false)

	best := SelectBest([]*model.ProxyRecord{b, a}, 1)
	if len(best) != 1 || best[0].Address != "a:1" {
		t.Fatalf("Expected 'a:1' to win, got %+v", best)
	}
	if best[0].Score != 100 {
		t.Errorf("Expected winner score 100, got %d", best[0].Score)
	}
	if Score(b) != 20 {
		t.Errorf("Expected loser score 20, got %d", Score(b))
	}
}
