package scraper

import (
	"sync"

	"listingminer/internal/shared/logger"
	"listingminer/proxypool/model"
)

// Scraper pulls raw candidates out of one proxy source feed.
// Implementations only fetch and parse; they never validate.
type Scraper interface {
	// Scrape fetches the feed and returns the candidates it could parse.
	// A partially readable feed returns what it has; schema drift is not
	// an error, it just yields fewer candidates.
	Scrape() ([]*model.ProxyCandidate, error)

	// Name returns the scraper name, used for logging and Source tags.
	Name() string
}

// HarvestOptions bound the output of a harvest cycle.
type HarvestOptions struct {
	// Country keeps only candidates tagged with this country code.
	// "ALL" disables the filter; untagged candidates always pass.
	Country string

	// MaxPerSource caps how many candidates one source may contribute,
	// so a misbehaving feed cannot flood the tester.
	MaxPerSource int
}

// Harvest runs every scraper concurrently and merges the results into one
// deduplicated candidate list. A source that errors contributes nothing;
// the harvest itself never fails.
func Harvest(scrapers []Scraper, opts HarvestOptions) []*model.ProxyCandidate {
	l := logger.WithComponent("ProxyPool/Harvest")
	l.Info().Int("sources", len(scrapers)).Msg("Starting harvest cycle...")

	var wg sync.WaitGroup
	scrapedChan := make(chan []*model.ProxyCandidate, len(scrapers))

	for _, s := range scrapers {
		wg.Add(1)
		go func(sc Scraper) {
			defer wg.Done()
			candidates, err := sc.Scrape()
			if err != nil {
				l.Warn().Err(err).Str("source", sc.Name()).Msg("Scraper failed.")
				return
			}
			if opts.MaxPerSource > 0 && len(candidates) > opts.MaxPerSource {
				candidates = candidates[:opts.MaxPerSource]
			}
			if len(candidates) > 0 {
				scrapedChan <- candidates
			}
		}(s)
	}

	wg.Wait()
	close(scrapedChan)

	// Dedupe on address across all sources, first seen wins. Channel order
	// follows completion, so ties between sources are arbitrary but the
	// invariant (one candidate per address) holds.
	seen := make(map[string]struct{})
	merged := make([]*model.ProxyCandidate, 0)
	for candidates := range scrapedChan {
		for _, c := range candidates {
			if opts.Country != "" && opts.Country != "ALL" && c.Country != "" && c.Country != opts.Country {
				continue
			}
			if _, dup := seen[c.Address]; dup {
				continue
			}
			seen[c.Address] = struct{}{}
			merged = append(merged, c)
		}
	}

	l.Info().Int("count", len(merged)).Msg("Harvest cycle finished.")
	return merged
}
