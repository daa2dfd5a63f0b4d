package manager

import (
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"listingminer/internal/shared/logger"
	"listingminer/internal/shared/types"
	"listingminer/proxypool/model"
	"listingminer/proxypool/storage"
)

// ErrPoolExhausted means no working proxies remain and direct connections
// are disallowed. The current scrape attempt cannot continue.
var ErrPoolExhausted = errors.New("no usable proxies in pool")

// HarvestFunc runs the full harvest, test and rank pipeline and returns
// the new working set. Injected so the manager never depends on the
// scraping stack directly.
type HarvestFunc func() []*model.ProxyRecord

// Manager owns the live rotation state: the ordered working sequence, the
// blacklist, the rotation cursor and the consecutive-failure counter. All
// state lives behind one mutex so multiple scrape loops can share it.
type Manager struct {
	cfg     types.PoolConf
	storage storage.Storage
	harvest HarvestFunc

	mu          sync.Mutex
	working     []*model.ProxyRecord
	blacklisted map[string]*model.ProxyRecord
	cursor      int
	failures    int // consecutive reported failures

	refreshGroup singleflight.Group
}

// New creates a pool manager with injected persistence and harvesting
// collaborators. Callers hold the handle; there is no package singleton.
func New(cfg types.PoolConf, store storage.Storage, harvest HarvestFunc) *Manager {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 3
	}
	if cfg.FreshnessHours <= 0 {
		cfg.FreshnessHours = 24
	}
	return &Manager{
		cfg:         cfg,
		storage:     store,
		harvest:     harvest,
		blacklisted: make(map[string]*model.ProxyRecord),
	}
}

// Load restores pool state from the persisted snapshot. It returns false,
// leaving the pool empty, when the snapshot is missing, malformed, stale,
// or has no working proxies; the caller then harvests fresh.
func (m *Manager) Load() bool {
	l := logger.WithComponent("ProxyPool/Manager")

	snap, err := m.storage.Load()
	if err != nil {
		l.Warn().Err(err).Msg("Failed to load snapshot, will harvest fresh.")
		return false
	}
	if snap == nil {
		return false
	}

	maxAge := time.Duration(m.cfg.FreshnessHours) * time.Hour
	if age := time.Since(snap.Timestamp); age > maxAge {
		l.Info().Dur("age", age).Dur("max_age", maxAge).Msg("Snapshot is stale, will harvest fresh.")
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.blacklisted = make(map[string]*model.ProxyRecord, len(snap.Blacklisted))
	for _, r := range snap.Blacklisted {
		m.blacklisted[r.Address] = r
	}

	// An older snapshot may list an address on both sides; the blacklist
	// wins so the disjointness invariant holds from the first rotation.
	m.working = m.working[:0]
	for _, r := range snap.Working {
		if _, banned := m.blacklisted[r.Address]; banned {
			continue
		}
		m.working = append(m.working, r)
	}
	m.cursor = 0

	l.Info().Int("working", len(m.working)).Int("blacklisted", len(m.blacklisted)).Msg("Pool state restored from snapshot.")
	return len(m.working) > 0
}

// NextProxy returns the proxy at the rotation cursor and advances it,
// wrapping at the end of the sequence. Once the consecutive-failure
// threshold is reached (and direct connections are allowed) it returns the
// direct-connection sentinel instead of burning through more proxies. An
// empty pool triggers one synchronous refresh; concurrent callers share a
// single refresh run.
func (m *Manager) NextProxy() (*model.ProxyRecord, error) {
	l := logger.WithComponent("ProxyPool/Manager")

	m.mu.Lock()
	if m.failures >= m.cfg.MaxFailures && m.cfg.AllowDirect {
		failures := m.failures
		m.mu.Unlock()
		l.Info().Int("consecutive_failures", failures).Msg("Failure threshold reached, using direct connection.")
		return model.DirectConnection(), nil
	}

	if len(m.working) == 0 {
		m.mu.Unlock()
		m.refreshShared()
		m.mu.Lock()
	}

	if len(m.working) == 0 {
		m.mu.Unlock()
		if m.cfg.AllowDirect {
			l.Warn().Msg("No working proxies available, using direct connection.")
			return model.DirectConnection(), nil
		}
		return nil, ErrPoolExhausted
	}

	if m.cursor >= len(m.working) {
		m.cursor = 0
	}
	record := m.working[m.cursor]
	m.cursor++
	if m.cursor >= len(m.working) {
		m.cursor = 0
	}
	m.mu.Unlock()

	return record, nil
}

// ReportSuccess resets the consecutive-failure counter. Idempotent.
func (m *Manager) ReportSuccess(r *model.ProxyRecord) {
	m.mu.Lock()
	m.failures = 0
	m.mu.Unlock()
}

// ReportFailure counts the failure and moves the record from the working
// sequence to the blacklist, persisting the updated state before it
// returns. Blacklisting the direct sentinel or an already-blacklisted
// record only bumps the counter.
func (m *Manager) ReportFailure(r *model.ProxyRecord) {
	l := logger.WithComponent("ProxyPool/Manager")

	m.mu.Lock()
	m.failures++

	if r == nil || r.Direct() {
		m.mu.Unlock()
		return
	}
	if _, banned := m.blacklisted[r.Address]; banned {
		m.mu.Unlock()
		return
	}

	m.blacklisted[r.Address] = r
	for i, w := range m.working {
		if w.Address == r.Address {
			m.working = append(m.working[:i], m.working[i+1:]...)
			// Keep the cursor on the element that followed the removed one.
			if m.cursor > i {
				m.cursor--
			}
			break
		}
	}
	if len(m.working) == 0 {
		m.cursor = 0
	} else if m.cursor >= len(m.working) {
		m.cursor = 0
	}
	snap := m.snapshotLocked()
	m.mu.Unlock()

	l.Info().Str("proxy", r.Address).Int("remaining", len(snap.Working)).Msg("Proxy blacklisted after reported failure.")
	if err := m.storage.Save(snap); err != nil {
		// Non-fatal: rotation continues on in-memory state, a later
		// restart simply re-harvests.
		l.Error().Err(err).Msg("Failed to persist pool state after blacklist.")
	}
}

// Refresh runs the injected harvest pipeline and replaces the working
// sequence, resetting the rotation cursor. Addresses that come back from a
// fresh harvest are a new generation and leave the blacklist.
func (m *Manager) Refresh() bool {
	l := logger.WithComponent("ProxyPool/Manager")
	l.Info().Msg("Refreshing proxy pool...")

	records := m.harvest()
	if len(records) == 0 {
		l.Warn().Msg("Refresh produced no working proxies.")
		return false
	}

	// Own a copy: rotation removals must never mutate the harvester's slice.
	working := make([]*model.ProxyRecord, len(records))
	copy(working, records)

	m.mu.Lock()
	m.working = working
	m.cursor = 0
	for _, r := range records {
		delete(m.blacklisted, r.Address)
	}
	snap := m.snapshotLocked()
	m.mu.Unlock()

	if err := m.storage.Save(snap); err != nil {
		l.Error().Err(err).Msg("Failed to persist pool state after refresh.")
	}

	l.Info().Int("working", len(records)).Msg("Proxy pool refreshed.")
	return true
}

// Working returns a copy of the current rotation sequence.
func (m *Manager) Working() []*model.ProxyRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*model.ProxyRecord, len(m.working))
	copy(out, m.working)
	return out
}

// Blacklisted returns a copy of the blacklist, order unspecified.
func (m *Manager) Blacklisted() []*model.ProxyRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*model.ProxyRecord, 0, len(m.blacklisted))
	for _, r := range m.blacklisted {
		out = append(out, r)
	}
	return out
}

// refreshShared collapses concurrent empty-pool refreshes into one run.
func (m *Manager) refreshShared() {
	m.refreshGroup.Do("refresh", func() (interface{}, error) {
		return m.Refresh(), nil
	})
}

// snapshotLocked builds a Snapshot from current state. Callers hold m.mu.
func (m *Manager) snapshotLocked() *storage.Snapshot {
	working := make([]*model.ProxyRecord, len(m.working))
	copy(working, m.working)
	blacklisted := make([]*model.ProxyRecord, 0, len(m.blacklisted))
	for _, r := range m.blacklisted {
		blacklisted = append(blacklisted, r)
	}
	return &storage.Snapshot{
		Working:     working,
		Blacklisted: blacklisted,
		Timestamp:   time.Now(),
	}
}
