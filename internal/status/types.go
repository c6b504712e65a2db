// Package status tracks the progress of generation runs.
//
// The status package provides [Tracker], an in-memory registry of progress
// [Snapshot] values keyed by song id, optionally mirrored to YAML files so
// other processes can follow a run.
//
// Key types:
//   - [Status] represents a run's lifecycle state (queued, generating, etc.)
//   - [Snapshot] is one consistent view of a run's progress
//   - [Tracker] applies updates and hands out copies of snapshots
//
// Snapshots are immutable once published: every update builds a new value
// and swaps it in, so readers never observe a half-applied update.
package status

import "time"

// Status represents the lifecycle state of a generation run.
type Status string

// Status constants define the valid run states.
const (
	StatusQueued     Status = "queued"
	StatusGenerating Status = "generating"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// IsValid reports whether s is one of the defined statuses.
func (s Status) IsValid() bool {
	switch s {
	case StatusQueued, StatusGenerating, StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether s ends a run. Terminal snapshots accept no
// further updates.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// LogEntry is one progress message of a run.
type LogEntry struct {
	Time    time.Time `yaml:"time" json:"time"`
	Message string    `yaml:"message" json:"message"`
	Percent int       `yaml:"percent" json:"percent"`
}

// Snapshot is a consistent view of a run's progress.
type Snapshot struct {
	SongID       int64      `yaml:"song_id" json:"song_id"`
	SessionID    string     `yaml:"session_id" json:"session_id"`
	Status       Status     `yaml:"status" json:"status"`
	Progress     int        `yaml:"progress" json:"progress"`
	CurrentStage string     `yaml:"current_stage" json:"current_stage"`
	Logs         []LogEntry `yaml:"logs" json:"logs"`
	Error        string     `yaml:"error,omitempty" json:"error,omitempty"`
	UpdatedAt    time.Time  `yaml:"updated_at" json:"updated_at"`
}

// clone returns a deep copy of s.
func (s Snapshot) clone() Snapshot {
	s.Logs = append([]LogEntry(nil), s.Logs...)
	return s
}
