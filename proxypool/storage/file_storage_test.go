package storage

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"listingminer/proxypool/model"
)

func sampleRecord(addr string) *model.ProxyRecord {
	return &model.ProxyRecord{
		ProxyCandidate: model.ProxyCandidate{Address: addr, HTTPS: true, Source: "test", Country: "US"},
		Reachable:      true,
		Latency:        740 * time.Millisecond,
		ReturnedIP:     "198.51.100.7",
		Anonymity:      model.AnonymityElite,
		Speed:          model.SpeedFast,
		Score:          90,
		LastChecked:    time.Now().UTC().Truncate(time.Second),
	}
}

func TestFileStorage_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "proxy_state.json")
	fs := NewFileStorage(path)

	snap := &Snapshot{
		Working:     []*model.ProxyRecord{sampleRecord("192.0.2.10:8080"), sampleRecord("192.0.2.11:3128")},
		Blacklisted: []*model.ProxyRecord{sampleRecord("192.0.2.12:80")},
		Timestamp:   time.Now().UTC().Truncate(time.Second),
		Country:     "US",
	}
	if err := fs.Save(snap); err != nil {
		t.Fatalf("Save() returned error: %v", err)
	}

	loaded, err := fs.Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if loaded == nil {
		t.Fatal("Load() returned nil for an existing snapshot")
	}
	if len(loaded.Working) != 2 || len(loaded.Blacklisted) != 1 {
		t.Fatalf("Round trip lost records: %d working, %d blacklisted", len(loaded.Working), len(loaded.Blacklisted))
	}
	for i, r := range loaded.Working {
		orig := snap.Working[i]
		if r.Address != orig.Address || r.Latency != orig.Latency ||
			r.Anonymity != orig.Anonymity || r.Speed != orig.Speed || r.Score != orig.Score {
			t.Errorf("Record %d did not round-trip: got %+v, want %+v", i, r, orig)
		}
	}
	if !loaded.Timestamp.Equal(snap.Timestamp) {
		t.Errorf("Timestamp did not round-trip: %v vs %v", loaded.Timestamp, snap.Timestamp)
	}
}

func TestFileStorage_MissingFile(t *testing.T) {
	fs := NewFileStorage(filepath.Join(t.TempDir(), "nope.json"))
	snap, err := fs.Load()
	if err != nil {
		t.Fatalf("Load() on missing file returned error: %v", err)
	}
	if snap != nil {
		t.Fatal("Load() on missing file returned a snapshot")
	}
}

func TestFileStorage_MalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "proxy_state.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}
	fs := NewFileStorage(path)
	if _, err := fs.Load(); err == nil {
		t.Fatal("Load() accepted a malformed snapshot")
	}
}

func TestFileStorage_SaveLeavesNoTempFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "proxy_state.json")
	fs := NewFileStorage(path)

	if err := fs.Save(&Snapshot{Timestamp: time.Now()}); err != nil {
		t.Fatalf("Save() returned error: %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("Save() left its temp file behind")
	}
}

func TestExportCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "working_proxies.csv")
	records := []*model.ProxyRecord{sampleRecord("192.0.2.10:8080")}

	if err := ExportCSV(path, records); err != nil {
		t.Fatalf("ExportCSV returned error: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("Exported CSV unreadable: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("Expected header + 1 row, got %d rows", len(rows))
	}
	if rows[1][0] != "192.0.2.10:8080" {
		t.Errorf("Address column = %q", rows[1][0])
	}
}
