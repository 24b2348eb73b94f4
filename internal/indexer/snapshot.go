package indexer

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/robert-at-pretension-io/netconn/internal/facts"
	"github.com/robert-at-pretension-io/netconn/internal/hierarchy"
)

const (
	snapshotVersion = 2
	snapshotFile    = "fact_tables.json"
)

// runSnapshot is the published tables of the last run over a library,
// kept so the next run can report what changed.
type runSnapshot struct {
	Version int          `json:"version"`
	Engine  string       `json:"engine"`
	Library string       `json:"library"`
	Session string       `json:"session"`
	SavedAt time.Time    `json:"saved_at"`
	Tables  facts.Tables `json:"tables"`
}

// loadSnapshot returns the last snapshot of library. Snapshots of another
// library, format or engine version are a miss; only unreadable files
// are errors.
func loadSnapshot(dir, library string) (*runSnapshot, error) {
	data, err := os.ReadFile(filepath.Join(dir, snapshotFile))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read run snapshot: %w", err)
	}
	var snap runSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("parse run snapshot: %w", err)
	}
	if snap.Version != snapshotVersion || snap.Engine != hierarchy.EngineVersion || snap.Library != library {
		return nil, nil
	}
	return &snap, nil
}

func saveSnapshot(dir string, snap runSnapshot) error {
	snap.Version = snapshotVersion
	snap.Engine = hierarchy.EngineVersion
	if snap.SavedAt.IsZero() {
		snap.SavedAt = time.Now().UTC()
	}
	if err := writeJSONAtomic(filepath.Join(dir, snapshotFile), snap); err != nil {
		return fmt.Errorf("write run snapshot: %w", err)
	}
	return nil
}
