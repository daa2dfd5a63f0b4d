package defense

import (
	"net/url"
	"strings"
)

// Kind classifies an observed failure within a single scrape attempt.
type Kind string

const (
	KindCaptcha      Kind = "captcha"
	KindRateLimit    Kind = "rate_limit"
	KindTimeout      Kind = "timeout"
	KindNetworkError Kind = "network_error"
	KindOffTarget    Kind = "off_target"
)

// Signal is a transient classification of a failed page state. It lives
// only for the attempt that produced it and is never persisted.
type Signal struct {
	Kind       Kind
	RetryCount int
}

// PageState is what the scrape loop observed after a navigation. It is a
// plain value so the detector never touches the browser driver itself.
type PageState struct {
	URL        string
	StatusCode int    // 0 when unknown
	BodyText   string // visible page text, lowercased matching

	TimedOut     bool
	NetworkError bool

	ResultsPresent  bool
	NoResultsMarker bool // page explicitly says the query had no results
	ExpectResults   bool // a results container should render on this page
}

var captchaMarkers = []string{
	"captcha",
	"recaptcha",
	"unusual traffic",
	"suspicious activity",
}

var rateLimitMarkers = []string{
	"rate limit",
	"too many requests",
	"temporarily blocked",
	"access denied",
}

var blockingStatusCodes = map[int]bool{429: true, 403: true, 503: true}

// Detector inspects observed page states for defenses put up by the
// target site.
type Detector struct {
	targetDomain string
}

func NewDetector(targetDomain string) *Detector {
	return &Detector{targetDomain: targetDomain}
}

// Classify runs the detection rules in order and returns the first match,
// or nil for a clean page. Ambiguous silence, a results container that
// should exist but does not, counts as a block rather than an empty
// result, so a defended page never masquerades as "no listings".
func (d *Detector) Classify(state PageState) *Signal {
	body := strings.ToLower(state.BodyText)

	for _, marker := range captchaMarkers {
		if strings.Contains(body, marker) {
			return &Signal{Kind: KindCaptcha}
		}
	}

	if blockingStatusCodes[state.StatusCode] {
		return &Signal{Kind: KindRateLimit}
	}
	for _, marker := range rateLimitMarkers {
		if strings.Contains(body, marker) {
			return &Signal{Kind: KindRateLimit}
		}
	}

	if d.offTarget(state.URL) {
		return &Signal{Kind: KindOffTarget}
	}

	if state.TimedOut {
		return &Signal{Kind: KindTimeout}
	}
	if state.NetworkError {
		return &Signal{Kind: KindNetworkError}
	}

	if state.ExpectResults && !state.ResultsPresent && !state.NoResultsMarker {
		return &Signal{Kind: KindRateLimit}
	}

	return nil
}

// offTarget reports whether a navigation landed outside the expected
// domain. Unparseable URLs count as off-target.
func (d *Detector) offTarget(rawURL string) bool {
	if d.targetDomain == "" || rawURL == "" {
		return false
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return true
	}
	host := strings.ToLower(u.Host)
	domain := strings.ToLower(d.targetDomain)
	return host != domain && !strings.HasSuffix(host, "."+domain)
}
