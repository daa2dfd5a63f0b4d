package scraper

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"listingminer/internal/shared/logger"
	"listingminer/proxypool/model"
)

const defaultFreeProxyListURL = "https://free-proxy-list.net/"

// minTableColumns is the column count of the proxy table this family of
// sites renders: ip, port, country code, country, anonymity, google,
// https, last checked.
const minTableColumns = 8

// FreeProxyListScraper scrapes the column-positional proxy table used by
// free-proxy-list.net and its sibling sites (us-proxy.org, sslproxies.org).
type FreeProxyListScraper struct {
	url    string
	name   string
	client *http.Client
}

// NewFreeProxyListScraper creates a scraper for one site of the family.
// An empty url falls back to free-proxy-list.net.
func NewFreeProxyListScraper(name, url string) Scraper {
	if url == "" {
		url = defaultFreeProxyListURL
	}
	return &FreeProxyListScraper{
		url:  url,
		name: name,
		client: &http.Client{
			Timeout: 20 * time.Second,
		},
	}
}

func (s *FreeProxyListScraper) Name() string {
	return s.name
}

// Scrape fetches the page and walks the table rows positionally. A page
// without the expected table, or rows with too few columns, contribute
// nothing rather than failing the harvest.
func (s *FreeProxyListScraper) Scrape() ([]*model.ProxyCandidate, error) {
	l := logger.WithComponent("ProxyPool/Scraper")
	l.Info().Str("source", s.Name()).Msg("Starting scrape...")

	req, err := http.NewRequest("GET", s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request for %s: %w", s.Name(), err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/108.0.0.0 Safari/537.36")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch page for %s: %w", s.Name(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return nil, fmt.Errorf("received non-200 status code (%d) from %s", resp.StatusCode, s.Name())
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML for %s: %w", s.Name(), err)
	}

	table := doc.Find("table#proxylisttable")
	if table.Length() == 0 {
		table = doc.Find("table.table").First()
	}
	if table.Length() == 0 {
		l.Warn().Str("source", s.Name()).Msg("No proxy table found on page.")
		return nil, nil
	}

	var candidates []*model.ProxyCandidate
	table.Find("tbody tr").Each(func(i int, sel *goquery.Selection) {
		cols := sel.Find("td")
		if cols.Length() < minTableColumns {
			return
		}
		ip := strings.TrimSpace(cols.Eq(0).Text())
		port := strings.TrimSpace(cols.Eq(1).Text())
		country := strings.TrimSpace(cols.Eq(2).Text())
		https := strings.EqualFold(strings.TrimSpace(cols.Eq(6).Text()), "yes")

		c, err := model.NewCandidate(ip, port, s.Name())
		if err != nil {
			l.Debug().Err(err).Str("source", s.Name()).Msg("Skipping malformed row.")
			return
		}
		c.Country = country
		c.HTTPS = https
		candidates = append(candidates, c)
	})

	l.Info().Int("count", len(candidates)).Str("source", s.Name()).Msg("Scrape finished.")
	return candidates, nil
}
