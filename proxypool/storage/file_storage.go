package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"listingminer/internal/shared/logger"
	"listingminer/proxypool/model"
)

// Snapshot is the persisted pool state. Blacklisted records ride along for
// audit; they never re-enter rotation through a load.
type Snapshot struct {
	Working     []*model.ProxyRecord `json:"working_proxies"`
	Blacklisted []*model.ProxyRecord `json:"blacklisted_proxies"`
	Timestamp   time.Time            `json:"timestamp"`
	Country     string               `json:"country,omitempty"`
}

// Storage persists pool snapshots.
type Storage interface {
	Load() (*Snapshot, error)
	Save(snap *Snapshot) error
}

// FileStorage keeps the snapshot as one JSON file. Saves write a temp file
// and rename it into place, so a crash mid-write leaves the previous
// snapshot intact.
type FileStorage struct {
	filePath string
	mu       sync.Mutex
}

// NewFileStorage creates storage backed by the given file path. The parent
// directory is created on first save.
func NewFileStorage(filePath string) *FileStorage {
	return &FileStorage{filePath: filePath}
}

// Load reads the snapshot. A missing file is not an error; it returns a
// nil snapshot and the caller falls back to a fresh harvest.
func (fs *FileStorage) Load() (*Snapshot, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	l := logger.WithComponent("ProxyPool/Storage")

	data, err := os.ReadFile(fs.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			l.Info().Str("path", fs.filePath).Msg("Snapshot file not found, starting with an empty pool.")
			return nil, nil
		}
		return nil, err
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("malformed snapshot %s: %w", fs.filePath, err)
	}

	l.Info().
		Int("working", len(snap.Working)).
		Int("blacklisted", len(snap.Blacklisted)).
		Msg("Successfully loaded snapshot from file.")
	return &snap, nil
}

// Save replaces the snapshot on disk as a whole.
func (fs *FileStorage) Save(snap *Snapshot) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	l := logger.WithComponent("ProxyPool/Storage")

	if err := os.MkdirAll(filepath.Dir(fs.filePath), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	tmpPath := fs.filePath + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, fs.filePath); err != nil {
		os.Remove(tmpPath)
		return err
	}

	l.Info().
		Int("working", len(snap.Working)).
		Int("blacklisted", len(snap.Blacklisted)).
		Msg("Successfully saved snapshot to file.")
	return nil
}

// ExportCSV writes the working set to a CSV file for operator inspection.
// Failure to export never affects the pool itself.
func ExportCSV(filePath string, records []*model.ProxyRecord) error {
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return err
	}
	f, err := os.Create(filePath)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"address", "country", "https", "anonymity", "speed", "latency_ms", "score", "returned_ip", "source"}); err != nil {
		return err
	}
	for _, r := range records {
		row := []string{
			r.Address,
			r.Country,
			strconv.FormatBool(r.HTTPS),
			string(r.Anonymity),
			string(r.Speed),
			strconv.FormatInt(r.Latency.Milliseconds(), 10),
			strconv.Itoa(r.Score),
			r.ReturnedIP,
			r.Source,
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
