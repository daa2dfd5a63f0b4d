package defense

import (
	"time"

	"listingminer/internal/shared/logger"
	"listingminer/proxypool/model"
)

// Action tells the scrape loop how to proceed after a defense signal.
type Action int

const (
	// ActionRotate means the current proxy is burned; report it and move on.
	ActionRotate Action = iota
	// ActionBackoffRetry means wait out the backoff, then retry the same
	// URL on the same proxy.
	ActionBackoffRetry
	// ActionAbort means retries are exhausted; give up on this URL.
	ActionAbort
)

// FailureReporter receives proxy-use outcomes. The pool manager satisfies
// this; tests substitute a mock.
type FailureReporter interface {
	ReportFailure(r *model.ProxyRecord)
	ReportSuccess(r *model.ProxyRecord)
}

// Controller decides between rotation, backoff retry and abort, and owns
// the cumulative cooldown valve. Sleeps are synchronous.
type Controller struct {
	reporter   FailureReporter
	maxRetries int
	sleep      func(time.Duration)
}

func NewController(reporter FailureReporter, maxRetries int) *Controller {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &Controller{
		reporter:   reporter,
		maxRetries: maxRetries,
		sleep:      time.Sleep,
	}
}

// SetSleepFunc replaces the backoff sleeper. Tests use this to observe
// waits without actually sleeping.
func (c *Controller) SetSleepFunc(fn func(time.Duration)) {
	if fn != nil {
		c.sleep = fn
	}
}

// Handle maps a signal to the next action. A captcha, rate limit, off
// target landing or network error burns the proxy immediately: one
// failure report, one rotation, never a same-proxy retry. Timeouts back
// off exponentially (2^retry seconds) and only report the proxy once,
// when the retry budget is exhausted.
func (c *Controller) Handle(sig *Signal, current *model.ProxyRecord) Action {
	l := logger.WithComponent("Defense/Controller")
	if sig == nil {
		return ActionBackoffRetry
	}

	switch sig.Kind {
	case KindCaptcha, KindRateLimit, KindOffTarget, KindNetworkError:
		l.Warn().Str("signal", string(sig.Kind)).Msg("Defense detected, rotating proxy.")
		c.reporter.ReportFailure(current)
		return ActionRotate

	case KindTimeout:
		if sig.RetryCount >= c.maxRetries {
			l.Warn().Int("max_retries", c.maxRetries).Msg("Retry budget exhausted, aborting URL.")
			c.reporter.ReportFailure(current)
			return ActionAbort
		}
		wait := time.Duration(1<<uint(sig.RetryCount)) * time.Second
		l.Info().Dur("wait", wait).Int("attempt", sig.RetryCount+1).Int("max_retries", c.maxRetries).Msg("Timeout, backing off before retry.")
		c.sleep(wait)
		return ActionBackoffRetry

	default:
		l.Warn().Str("signal", string(sig.Kind)).Msg("Unknown signal kind, rotating proxy.")
		c.reporter.ReportFailure(current)
		return ActionRotate
	}
}

// CoolDown is the cumulative pressure valve: once more than two errors
// accumulate in the recent window, sleep min(30, 5*2^(errors-2)) seconds
// before the next action. Independent of per-timeout backoff.
func (c *Controller) CoolDown(errorCount int) {
	if errorCount <= 2 {
		return
	}
	delay := CoolDownDelay(errorCount)
	cl := logger.WithComponent("Defense/Controller")
	cl.Info().Int("errors", errorCount).Dur("delay", delay).
		Msg("Sustained errors, cooling down request rate.")
	c.sleep(delay)
}

// CoolDownDelay computes the cooldown for a given rolling error count.
func CoolDownDelay(errorCount int) time.Duration {
	if errorCount <= 2 {
		return 0
	}
	seconds := 5 * (1 << uint(errorCount-2))
	if seconds > 30 {
		seconds = 30
	}
	return time.Duration(seconds) * time.Second
}
