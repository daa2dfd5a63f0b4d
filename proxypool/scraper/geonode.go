package scraper

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"listingminer/internal/shared/logger"
	"listingminer/proxypool/model"
)

const defaultGeonodeURL = "https://proxylist.geonode.com/api/proxy-list?limit=200&protocols=http%2Chttps"

// Plausible key names per field, tried in order. JSON proxy APIs disagree
// on naming, so extraction is best-effort rather than schema-bound.
var (
	ipKeys      = []string{"ip", "addr", "host", "address"}
	portKeys    = []string{"port"}
	countryKeys = []string{"country", "country_code", "countryCode", "geo"}
	httpsKeys   = []string{"https", "ssl", "tls"}
)

// GeonodeScraper pulls candidates from a JSON proxy-list API. The payload
// may be a bare array or an object wrapping the array under a known key.
type GeonodeScraper struct {
	url    string
	name   string
	client *http.Client
}

// NewGeonodeScraper creates the scraper. An empty url uses the live API.
func NewGeonodeScraper(url string) Scraper {
	if url == "" {
		url = defaultGeonodeURL
	}
	return &GeonodeScraper{
		url:  url,
		name: "geonode.com",
		client: &http.Client{
			Timeout: 20 * time.Second,
		},
	}
}

func (s *GeonodeScraper) Name() string {
	return s.name
}

func (s *GeonodeScraper) Scrape() ([]*model.ProxyCandidate, error) {
	l := logger.WithComponent("ProxyPool/Scraper")
	l.Info().Str("source", s.Name()).Msg("Starting scrape...")

	resp, err := s.client.Get(s.url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", s.Name(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return nil, fmt.Errorf("received non-200 status code (%d) from %s", resp.StatusCode, s.Name())
	}

	var raw json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode JSON from %s: %w", s.Name(), err)
	}

	entries := extractEntries(raw)
	var candidates []*model.ProxyCandidate
	for _, entry := range entries {
		ip, ok := stringField(entry, ipKeys)
		if !ok {
			continue
		}
		port, ok := stringField(entry, portKeys)
		if !ok {
			continue
		}
		cand, err := model.NewCandidate(ip, port, s.Name())
		if err != nil {
			l.Debug().Err(err).Str("source", s.Name()).Msg("Skipping malformed entry.")
			continue
		}
		if country, ok := stringField(entry, countryKeys); ok {
			cand.Country = strings.ToUpper(country)
		}
		cand.HTTPS = boolField(entry, httpsKeys) || protocolsHaveHTTPS(entry)
		candidates = append(candidates, cand)
	}

	l.Info().Int("count", len(candidates)).Str("source", s.Name()).Msg("Scrape finished.")
	return candidates, nil
}

// extractEntries accepts either a bare JSON array of objects or an object
// wrapping the array under one of the usual keys.
func extractEntries(raw json.RawMessage) []map[string]any {
	var entries []map[string]any
	if err := json.Unmarshal(raw, &entries); err == nil {
		return entries
	}

	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal(raw, &wrapper); err != nil {
		return nil
	}
	for _, key := range []string{"data", "proxies", "list", "results"} {
		inner, ok := wrapper[key]
		if !ok {
			continue
		}
		if err := json.Unmarshal(inner, &entries); err == nil {
			return entries
		}
	}
	return nil
}

func stringField(entry map[string]any, keys []string) (string, bool) {
	for _, key := range keys {
		v, ok := entry[key]
		if !ok {
			continue
		}
		switch val := v.(type) {
		case string:
			if val != "" {
				return val, true
			}
		case float64:
			return strconv.Itoa(int(val)), true
		}
	}
	return "", false
}

func boolField(entry map[string]any, keys []string) bool {
	for _, key := range keys {
		switch val := entry[key].(type) {
		case bool:
			return val
		case string:
			return strings.EqualFold(val, "yes") || strings.EqualFold(val, "true")
		}
	}
	return false
}

func protocolsHaveHTTPS(entry map[string]any) bool {
	protos, ok := entry["protocols"].([]any)
	if !ok {
		return false
	}
	for _, p := range protos {
		if s, ok := p.(string); ok && strings.EqualFold(s, "https") {
			return true
		}
	}
	return false
}
