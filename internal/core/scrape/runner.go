package scrape

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"listingminer/internal/core/defense"
	"listingminer/internal/shared/logger"
	"listingminer/proxypool/model"
)

// ErrAttemptsExhausted means every proxy attempt for a URL was burned by
// defenses before an extraction succeeded.
var ErrAttemptsExhausted = errors.New("all proxy attempts exhausted")

const defaultMaxProxySwitches = 5

// Pool is the slice of the pool manager the runner consumes.
type Pool interface {
	NextProxy() (*model.ProxyRecord, error)
	ReportSuccess(r *model.ProxyRecord)
	ReportFailure(r *model.ProxyRecord)
}

// Runner drives one scrape loop: take a proxy, open a session, navigate,
// let the detector judge the page, and either extract or act on the
// defense signal. Exactly one success or failure is reported per proxy
// use.
type Runner struct {
	pool       Pool
	detector   *defense.Detector
	controller *defense.Controller
	factory    DriverFactory

	// ResultsSelector, when set, marks pages that must render a results
	// container; its absence without a no-results marker is a block.
	ResultsSelector string
	// MaxProxySwitches bounds how many proxies one URL may consume.
	MaxProxySwitches int

	errorCount int // rolling error pressure fed to the cooldown valve
}

func NewRunner(pool Pool, detector *defense.Detector, controller *defense.Controller, factory DriverFactory) *Runner {
	return &Runner{
		pool:             pool,
		detector:         detector,
		controller:       controller,
		factory:          factory,
		MaxProxySwitches: defaultMaxProxySwitches,
	}
}

// Scrape loads the URL through rotating proxies until extract runs once
// successfully. Pool exhaustion or an exhausted retry budget surface as
// errors, never as a silent empty result.
func (r *Runner) Scrape(url string, extract func(Driver) error) error {
	l := logger.WithComponent("Scrape/Runner")

	for attempt := 0; attempt < r.MaxProxySwitches; attempt++ {
		proxy, err := r.pool.NextProxy()
		if err != nil {
			return fmt.Errorf("cannot scrape %s: %w", url, err)
		}

		sessionID := uuid.NewString()
		sl := l.With().Str("session_id", sessionID).Logger()
		if proxy.Direct() {
			sl.Info().Msg("Opening direct browser session.")
		} else {
			sl.Info().Str("proxy", proxy.Address).Msg("Opening browser session through proxy.")
		}

		session, err := r.factory.NewSession(proxy)
		if err != nil {
			sl.Warn().Err(err).Msg("Failed to open session, rotating proxy.")
			r.pool.ReportFailure(proxy)
			r.bumpPressure()
			continue
		}

		done, err := r.runSession(session, proxy, url, extract)
		session.Close()
		if done {
			return err
		}
		// Proxy burned; cool down if pressure is building, then rotate.
		r.bumpPressure()
	}

	return fmt.Errorf("scraping %s: %w", url, ErrAttemptsExhausted)
}

// runSession navigates and handles defenses on a single proxy. The first
// return value reports whether the overall scrape is finished, success or
// not; false means rotate to the next proxy.
func (r *Runner) runSession(session Driver, proxy *model.ProxyRecord, url string, extract func(Driver) error) (bool, error) {
	retries := 0
	for {
		ok := session.Navigate(url)
		state := r.observe(session, ok, url)

		sig := r.detector.Classify(state)
		if sig == nil {
			if err := extract(session); err != nil {
				r.pool.ReportFailure(proxy)
				return false, nil
			}
			r.pool.ReportSuccess(proxy)
			return true, nil
		}

		sig.RetryCount = retries
		switch r.controller.Handle(sig, proxy) {
		case defense.ActionRotate:
			return false, nil
		case defense.ActionBackoffRetry:
			retries++
		case defense.ActionAbort:
			return true, fmt.Errorf("aborting %s after %d retries (%s)", url, retries, sig.Kind)
		}
	}
}

// observe assembles the page state the detector judges. Status codes are
// not visible through a browser session, so detection leans on markers,
// the landed URL, and container presence.
func (r *Runner) observe(session Driver, navigated bool, requestedURL string) defense.PageState {
	state := defense.PageState{TimedOut: !navigated}
	if !navigated {
		return state
	}

	if currentURL, err := session.ExecuteScript("return window.location.href"); err == nil && currentURL != "" {
		state.URL = currentURL
	} else {
		state.URL = requestedURL
	}

	if body, err := session.GetText("body"); err == nil {
		state.BodyText = body
		state.NoResultsMarker = strings.Contains(strings.ToLower(body), "no results found")
	}

	if r.ResultsSelector != "" {
		state.ExpectResults = true
		if _, err := session.FindElement(r.ResultsSelector); err == nil {
			state.ResultsPresent = true
		}
	}

	return state
}

func (r *Runner) bumpPressure() {
	r.errorCount++
	r.controller.CoolDown(r.errorCount)
}

// ResetPressure clears the rolling error counter, typically between
// queries once scraping is healthy again.
func (r *Runner) ResetPressure() {
	r.errorCount = 0
}
