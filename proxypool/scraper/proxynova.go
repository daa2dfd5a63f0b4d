package scraper

import (
	"strings"
	"time"

	"github.com/gocolly/colly/v2"

	"listingminer/internal/shared/logger"
	"listingminer/proxypool/model"
)

const defaultProxyNovaURL = "https://www.proxynova.com/proxy-server-list/"

// ProxyNovaScraper crawls a paged listing-style proxy site. Unlike the
// table family this shape has no stable column count, so rows are matched
// by cell position within the listing markup.
type ProxyNovaScraper struct {
	url  string
	name string
}

// NewProxyNovaScraper creates the scraper. An empty url uses the live site.
func NewProxyNovaScraper(url string) Scraper {
	if url == "" {
		url = defaultProxyNovaURL
	}
	return &ProxyNovaScraper{url: url, name: "proxynova.com"}
}

func (s *ProxyNovaScraper) Name() string {
	return s.name
}

func (s *ProxyNovaScraper) Scrape() ([]*model.ProxyCandidate, error) {
	l := logger.WithComponent("ProxyPool/Scraper")
	l.Info().Str("source", s.Name()).Msg("Starting scrape...")

	var candidates []*model.ProxyCandidate

	c := colly.NewCollector(
		colly.UserAgent("Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/108.0.0.0 Safari/537.36"),
		colly.IgnoreRobotsTxt(),
	)
	c.SetRequestTimeout(20 * time.Second)

	c.OnHTML("table#tbl_proxy_list tbody tr", func(e *colly.HTMLElement) {
		ip := strings.TrimSpace(e.ChildText("td:nth-child(1)"))
		port := strings.TrimSpace(e.ChildText("td:nth-child(2)"))
		country := strings.TrimSpace(e.ChildAttr("td:nth-child(6) img", "alt"))
		if country == "" {
			country = strings.TrimSpace(e.ChildText("td:nth-child(6)"))
		}

		cand, err := model.NewCandidate(ip, port, s.Name())
		if err != nil {
			l.Debug().Err(err).Str("source", s.Name()).Msg("Skipping malformed row.")
			return
		}
		cand.Country = country
		candidates = append(candidates, cand)
	})

	if err := c.Visit(s.url); err != nil {
		return nil, err
	}

	l.Info().Int("count", len(candidates)).Str("source", s.Name()).Msg("Scrape finished.")
	return candidates, nil
}
