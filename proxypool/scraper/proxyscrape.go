package scraper

import (
	"bufio"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"listingminer/internal/shared/logger"
	"listingminer/proxypool/model"
)

const defaultProxyScrapeURL = "https://api.proxyscrape.com/v2/?request=displayproxies&protocol=http"

var (
	addrPattern    = regexp.MustCompile(`(\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}):(\d{2,5})`)
	countryPattern = regexp.MustCompile(`^[A-Z]{2}$`)
)

// ProxyScrapeScraper reads a line-oriented plain-text feed of ip:port
// pairs. Blank lines and comments are skipped; any other tokens on a line
// are sniffed for a two-letter country code.
type ProxyScrapeScraper struct {
	url    string
	name   string
	client *http.Client
}

// NewProxyScrapeScraper creates the scraper. An empty url uses the live API.
func NewProxyScrapeScraper(url string) Scraper {
	if url == "" {
		url = defaultProxyScrapeURL
	}
	return &ProxyScrapeScraper{
		url:  url,
		name: "proxyscrape.com",
		client: &http.Client{
			Timeout: 20 * time.Second,
		},
	}
}

func (s *ProxyScrapeScraper) Name() string {
	return s.name
}

func (s *ProxyScrapeScraper) Scrape() ([]*model.ProxyCandidate, error) {
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

	var candidates []*model.ProxyCandidate
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		match := addrPattern.FindStringSubmatch(line)
		if match == nil {
			continue
		}

		cand, err := model.NewCandidate(match[1], match[2], s.Name())
		if err != nil {
			continue
		}
		cand.Country = sniffCountry(line, match[0])
		candidates = append(candidates, cand)
	}
	if err := scanner.Err(); err != nil {
		return candidates, fmt.Errorf("read error from %s: %w", s.Name(), err)
	}

	l.Info().Int("count", len(candidates)).Str("source", s.Name()).Msg("Scrape finished.")
	return candidates, nil
}

// sniffCountry looks for a bare two-letter uppercase token near the
// address, the convention plain-text feeds use for country tags.
func sniffCountry(line, addr string) string {
	rest := strings.Replace(line, addr, "", 1)
	for _, token := range strings.FieldsFunc(rest, func(r rune) bool {
		return r == ' ' || r == '\t' || r == ',' || r == ';' || r == '|'
	}) {
		if countryPattern.MatchString(token) {
			return token
		}
	}
	return ""
}
