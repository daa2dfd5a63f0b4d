package rank

import (
	"sort"
	"time"

	"listingminer/proxypool/model"
)

// Score rates a record on the weighted additive policy: latency band
// (max 50), anonymity class (max 30), encrypted transport (+20). The
// result is always within [10, 100] and depends on nothing but the
// record's latency, anonymity, and HTTPS capability.
func Score(r *model.ProxyRecord) int {
	score := latencyPoints(r.Latency)

	switch r.Anonymity {
	case model.AnonymityElite:
		score += 30
	case model.AnonymityAnonymous:
		score += 20
	default:
		score += 10
	}

	if r.HTTPS {
		score += 20
	}
	return score
}

func latencyPoints(latency time.Duration) int {
	switch {
	case latency < 500*time.Millisecond:
		return 50
	case latency < time.Second:
		return 40
	case latency < 2*time.Second:
		return 30
	case latency < 3*time.Second:
		return 20
	default:
		return 10
	}
}

// SelectBest scores the records, orders them by score descending with
// lower latency breaking ties, and returns the top count. The input slice
// is not reordered; records come back with Score filled in.
func SelectBest(records []*model.ProxyRecord, count int) []*model.ProxyRecord {
	ranked := make([]*model.ProxyRecord, len(records))
	copy(ranked, records)

	for _, r := range ranked {
		r.Score = Score(r)
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].Latency < ranked[j].Latency
	})

	if count < 0 {
		count = 0
	}
	if count < len(ranked) {
		ranked = ranked[:count]
	}
	return ranked
}
