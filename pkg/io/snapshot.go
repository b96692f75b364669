package io

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/kennygrant/sanitize"
	"github.com/shopspring/decimal"

	"github.com/eupendra/simple-price-alert/pkg/scraper"
)

const snapshotDirLayout = "2006-01-02T15-04-05Z-0700"

type Snapshot struct {
	Product    string           `json:"product"`
	URL        string           `json:"url"`
	AlertPrice decimal.Decimal  `json:"alert_price"`
	Price      *decimal.Decimal `json:"price"`
	Timestamp  time.Time        `json:"timestamp"`
	Alert      bool             `json:"alert"`
	RunID      string           `json:"run_id"`
}

type SnapshotWithPath struct {
	Snapshot
	Path string
}

// SnapshotStore writes one JSON file per observation into a directory named
// after the run date.
type SnapshotStore struct {
	dir string
}

func NewSnapshotStore(baseDir string, runDate time.Time) *SnapshotStore {
	return &SnapshotStore{dir: filepath.Join(baseDir, runDate.Format(snapshotDirLayout))}
}

func (s *SnapshotStore) Dir() string {
	return s.dir
}

func (s *SnapshotStore) Append(ctx context.Context, set scraper.ObservationSet) error {
	if set.Len() == 0 {
		return nil
	}
	if err := os.MkdirAll(s.dir, os.ModeDir|0o755); err != nil {
		return err
	}

	used := make(map[string]int)
	for _, o := range set.Items() {
		if err := ctx.Err(); err != nil {
			return err
		}

		name := sanitize.BaseName(o.Product.Name)
		if name == "" {
			name = "product"
		}
		used[name]++
		if n := used[name]; n > 1 {
			name = fmt.Sprintf("%s-%d", name, n)
		}

		if err := writeSnapshot(filepath.Join(s.dir, name+".json"), toSnapshot(o)); err != nil {
			return err
		}
	}
	return nil
}

func toSnapshot(o scraper.Observation) Snapshot {
	snap := Snapshot{
		Product:    o.Product.Name,
		URL:        o.Product.URL,
		AlertPrice: o.Product.AlertPrice,
		Timestamp:  o.Timestamp,
		Alert:      o.AlertTriggered,
		RunID:      o.RunID.String(),
	}
	if o.Price.Valid {
		amount := o.Price.Amount
		snap.Price = &amount
	}
	return snap
}

func writeSnapshot(path string, snap Snapshot) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := json.NewEncoder(f)
	if err := encoder.Encode(snap); err != nil {
		return err
	}
	return nil
}

// LoadSnapshots reads every snapshot below dir.
func LoadSnapshots(dir string) ([]SnapshotWithPath, error) {
	var ss []SnapshotWithPath
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() || filepath.Ext(path) != ".json" {
			return nil
		}

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()

		dec := json.NewDecoder(f)
		var s Snapshot
		if err := dec.Decode(&s); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		ss = append(ss, SnapshotWithPath{Snapshot: s, Path: path})
		return nil
	})

	if err != nil {
		return ss, err
	}
	return ss, nil
}

// LatestSnapshotDir returns the newest run directory below baseDir.
func LatestSnapshotDir(baseDir string) (string, error) {
	entries, err := os.ReadDir(baseDir)
	if err != nil {
		return "", err
	}

	var (
		latest     string
		latestTime time.Time
	)
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		t, err := time.Parse(snapshotDirLayout, e.Name())
		if err != nil {
			continue
		}
		if latest == "" || t.After(latestTime) {
			latest, latestTime = e.Name(), t
		}
	}
	if latest == "" {
		return "", fmt.Errorf("no runs in %s: %w", baseDir, fs.ErrNotExist)
	}
	return filepath.Join(baseDir, latest), nil
}
