package status

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// SnapshotPath returns the file a run's snapshot is mirrored to.
func SnapshotPath(dir string, songID int64) string {
	return filepath.Join(dir, fmt.Sprintf("song-%d.yaml", songID))
}

// WriteSnapshot writes snap to its file under dir atomically (write to a
// temp file, then rename).
func WriteSnapshot(dir string, snap Snapshot) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create status dir: %w", err)
	}

	data, err := yaml.Marshal(&snap)
	if err != nil {
		return fmt.Errorf("failed to marshal status: %w", err)
	}

	fullPath := SnapshotPath(dir, snap.SongID)
	tmpPath := fullPath + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write status: %w", err)
	}

	if err := os.Rename(tmpPath, fullPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write status: %w", err)
	}
	return nil
}

// ReadSnapshot reads the mirrored snapshot of a run.
func ReadSnapshot(dir string, songID int64) (Snapshot, error) {
	data, err := os.ReadFile(SnapshotPath(dir, songID))
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to read status: %w", err)
	}

	var snap Snapshot
	if err := yaml.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("failed to read status: %w", err)
	}
	if !snap.Status.IsValid() {
		return Snapshot{}, fmt.Errorf("invalid status in %s: %q", SnapshotPath(dir, songID), snap.Status)
	}
	return snap, nil
}
