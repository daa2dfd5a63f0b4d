package model

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
)

// Anonymity classifies how well a proxy hides the caller's origin address.
type Anonymity string

const (
	AnonymityElite       Anonymity = "elite"
	AnonymityAnonymous   Anonymity = "anonymous"
	AnonymityTransparent Anonymity = "transparent"
)

// Speed buckets a proxy by observed probe latency.
type Speed string

const (
	SpeedFast   Speed = "fast"   // < 1s
	SpeedMedium Speed = "medium" // < 3s
	SpeedSlow   Speed = "slow"
)

// ProxyCandidate is an untested endpoint pulled from a source feed.
// Identity is Address; everything else is advisory metadata.
type ProxyCandidate struct {
	Address string `json:"address"` // host:port
	HTTPS   bool   `json:"https"`   // source claims TLS capability
	Source  string `json:"source"`  // feed the candidate came from
	Country string `json:"country,omitempty"`
}

// NewCandidate validates ip and port and builds a candidate. Sources hand
// over whatever text their feed contained, so validation lives here rather
// than at every use site.
func NewCandidate(ip, port, source string) (*ProxyCandidate, error) {
	ip = strings.TrimSpace(ip)
	port = strings.TrimSpace(port)
	if net.ParseIP(ip) == nil {
		return nil, fmt.Errorf("invalid ip %q", ip)
	}
	n, err := strconv.Atoi(port)
	if err != nil || n < 1 || n > 65535 {
		return nil, fmt.Errorf("invalid port %q", port)
	}
	return &ProxyCandidate{
		Address: net.JoinHostPort(ip, port),
		Source:  source,
	}, nil
}

// Host returns the ip part of the candidate address.
func (c *ProxyCandidate) Host() string {
	host, _, err := net.SplitHostPort(c.Address)
	if err != nil {
		return c.Address
	}
	return host
}

// URL returns the candidate formatted as a forward-proxy URL.
func (c *ProxyCandidate) URL() string {
	return "http://" + c.Address
}

// ProxyRecord is a candidate that survived a health probe. Created by the
// validator, scored by the ranker, owned by the pool manager afterwards.
type ProxyRecord struct {
	ProxyCandidate

	Reachable   bool          `json:"reachable"`
	Latency     time.Duration `json:"latency"`
	ReturnedIP  string        `json:"returned_ip"` // origin address the echo endpoint observed
	Anonymity   Anonymity     `json:"anonymity"`
	Speed       Speed         `json:"speed"`
	Score       int           `json:"score"`
	LastChecked time.Time     `json:"last_checked"`
}

// Direct is true for the direct-connection sentinel.
func (r *ProxyRecord) Direct() bool {
	return r != nil && r.Address == ""
}

// DirectConnection returns the sentinel record meaning "use no proxy".
// It is never pooled, blacklisted, or persisted.
func DirectConnection() *ProxyRecord {
	return &ProxyRecord{Reachable: true}
}

// ClassifySpeed maps a probe latency onto the fixed speed buckets.
func ClassifySpeed(latency time.Duration) Speed {
	switch {
	case latency < time.Second:
		return SpeedFast
	case latency < 3*time.Second:
		return SpeedMedium
	default:
		return SpeedSlow
	}
}

// ClassifyAnonymity derives the anonymity class from the origin address an
// echo endpoint reported back through the proxy. If the echoed address is
// the proxy itself the chain is visible but the caller is not (anonymous);
// an unparseable or unrelated address means the caller leaked nothing the
// endpoint could resolve (elite); anything else exposed the caller
// (transparent).
func ClassifyAnonymity(proxyHost, returnedIP string) Anonymity {
	returned := strings.TrimSpace(returnedIP)
	if returned == proxyHost {
		return AnonymityAnonymous
	}
	if net.ParseIP(returned) == nil {
		return AnonymityElite
	}
	return AnonymityTransparent
}
