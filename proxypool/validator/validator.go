package validator

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"io"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/corpix/uarand"

	"listingminer/internal/shared/logger"
	"listingminer/proxypool/model"
)

// Echo endpoints return the caller's apparent origin address. A random one
// is picked per probe so no single endpoint sees the whole batch.
var defaultEchoEndpoints = []string{
	"http://httpbin.org/ip",
	"http://icanhazip.com",
	"http://api.ipify.org",
}

const progressInterval = 10

// Validator health-tests candidates by issuing one GET through each as a
// forward proxy. A single trial is definitive at this layer; the pool
// manager judges transient versus permanent later.
type Validator struct {
	timeout       time.Duration
	concurrency   int
	echoEndpoints []string
}

func NewValidator(timeout time.Duration, concurrency int) *Validator {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if concurrency <= 0 {
		concurrency = 20
	}
	return &Validator{
		timeout:       timeout,
		concurrency:   concurrency,
		echoEndpoints: defaultEchoEndpoints,
	}
}

// SetEchoEndpoints replaces the echo endpoint set. Used by tests and by
// deployments that run their own echo service.
func (v *Validator) SetEchoEndpoints(urls []string) {
	if len(urls) > 0 {
		v.echoEndpoints = urls
	}
}

// Test probes a single candidate. The bool reports whether the candidate
// is usable; failed candidates yield no record.
func (v *Validator) Test(c *model.ProxyCandidate) (*model.ProxyRecord, bool) {
	endpoint := v.echoEndpoints[rand.Intn(len(v.echoEndpoints))]

	proxyURL, err := url.Parse(c.URL())
	if err != nil {
		return nil, false
	}

	dialer := &net.Dialer{
		Timeout:   v.timeout,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		Proxy: http.ProxyURL(proxyURL),
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			return dialer.DialContext(ctx, network, addr)
		},
		TLSClientConfig:     &tls.Config{InsecureSkipVerify: true},
		IdleConnTimeout:     v.timeout,
		TLSHandshakeTimeout: v.timeout / 2,
		DisableKeepAlives:   true,
	}
	client := &http.Client{
		Transport: transport,
		Timeout:   v.timeout,
	}

	req, err := http.NewRequest("GET", endpoint, nil)
	if err != nil {
		return nil, false
	}
	// A fresh identity per attempt keeps the probe fleet from sharing a
	// fingerprint across candidates.
	req.Header.Set("User-Agent", uarand.GetRandom())

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return nil, false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, false
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return nil, false
	}
	latency := time.Since(start)
	returnedIP := parseEchoBody(body)

	record := &model.ProxyRecord{
		ProxyCandidate: *c,
		Reachable:      true,
		Latency:        latency,
		ReturnedIP:     returnedIP,
		Anonymity:      model.ClassifyAnonymity(c.Host(), returnedIP),
		Speed:          model.ClassifySpeed(latency),
		LastChecked:    time.Now(),
	}
	return record, true
}

// TestBatch drains the candidate list through a fixed-size worker pool.
// Result order is not meaningful; only the set of working records is.
func (v *Validator) TestBatch(candidates []*model.ProxyCandidate) []*model.ProxyRecord {
	l := logger.WithComponent("ProxyPool/Validator")
	if len(candidates) == 0 {
		return nil
	}

	l.Info().Int("count", len(candidates)).Int("concurrency", v.concurrency).Msg("Starting validation batch...")

	jobs := make(chan *model.ProxyCandidate)
	var wg sync.WaitGroup

	var mu sync.Mutex
	var records []*model.ProxyRecord
	tested := 0

	for i := 0; i < v.concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for c := range jobs {
				record, ok := v.Test(c)

				mu.Lock()
				tested++
				if ok {
					records = append(records, record)
					l.Debug().
						Str("proxy", record.Address).
						Dur("latency", record.Latency).
						Str("anonymity", string(record.Anonymity)).
						Msg("Found working proxy.")
				}
				if tested%progressInterval == 0 || tested == len(candidates) {
					l.Info().Int("tested", tested).Int("total", len(candidates)).Int("working", len(records)).Msg("Validation progress.")
				}
				mu.Unlock()
			}
		}()
	}

	for _, c := range candidates {
		jobs <- c
	}
	close(jobs)
	wg.Wait()

	l.Info().Int("working", len(records)).Int("total", len(candidates)).Msg("Validation batch finished.")
	return records
}

// parseEchoBody extracts the origin address from an echo response. Known
// JSON shapes are tried first, then the trimmed body itself; proxies that
// append their own address after a comma keep only the first entry.
func parseEchoBody(body []byte) string {
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err == nil {
		for _, key := range []string{"origin", "ip", "address"} {
			if s, ok := payload[key].(string); ok && s != "" {
				return firstAddr(s)
			}
		}
	}
	return firstAddr(strings.TrimSpace(string(body)))
}

func firstAddr(s string) string {
	if i := strings.IndexByte(s, ','); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
