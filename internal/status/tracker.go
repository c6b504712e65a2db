package status

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrUnknownRun is returned for song ids the tracker has never seen.
var ErrUnknownRun = errors.New("unknown generation run")

// Tracker holds the latest snapshot of every run.
//
// Tracker is safe for concurrent use. When created with a directory, every
// published snapshot is also written there with [WriteSnapshot]; write
// failures are logged and never block progress.
type Tracker struct {
	mu     sync.RWMutex
	runs   map[int64]Snapshot
	fileMu sync.Mutex
	dir    string
	now    func() time.Time
	logger *slog.Logger
}

// NewTracker creates a Tracker. An empty dir keeps snapshots in memory only.
func NewTracker(dir string, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Tracker{
		runs:   make(map[int64]Snapshot),
		dir:    dir,
		now:    time.Now,
		logger: logger,
	}
}

// Begin registers a run in the queued state, replacing any earlier run for
// the same song.
func (t *Tracker) Begin(songID int64, sessionID string) Snapshot {
	snap := Snapshot{
		SongID:    songID,
		SessionID: sessionID,
		Status:    StatusQueued,
		Logs:      []LogEntry{},
		UpdatedAt: t.now(),
	}

	t.mu.Lock()
	t.runs[songID] = snap
	t.mu.Unlock()

	t.persist(songID)
	return snap.clone()
}

// Log appends a progress message and marks the run generating. A negative
// percent leaves the progress value unchanged.
func (t *Tracker) Log(songID int64, message string, percent int) error {
	return t.update(songID, func(s *Snapshot) {
		now := t.now()
		if s.Status == StatusQueued {
			s.Status = StatusGenerating
		}
		entry := LogEntry{Time: now, Message: message, Percent: percent}
		if percent >= 0 {
			s.Progress = percent
		} else {
			entry.Percent = s.Progress
		}
		s.Logs = append(s.Logs, entry)
	})
}

// SetStage records the stage a run is executing.
func (t *Tracker) SetStage(songID int64, stage string) error {
	return t.update(songID, func(s *Snapshot) {
		if s.Status == StatusQueued {
			s.Status = StatusGenerating
		}
		s.CurrentStage = stage
	})
}

// Finish moves a run to a terminal status. errMsg is recorded for failed and
// cancelled runs.
func (t *Tracker) Finish(songID int64, final Status, errMsg string) error {
	if !final.IsTerminal() {
		return fmt.Errorf("invalid final status: %s", final)
	}
	return t.update(songID, func(s *Snapshot) {
		s.Status = final
		s.CurrentStage = string(final)
		if final == StatusCompleted {
			s.Progress = 100
		} else {
			s.Error = errMsg
		}
	})
}

// Get returns a copy of the latest snapshot for songID.
func (t *Tracker) Get(songID int64) (Snapshot, bool) {
	t.mu.RLock()
	snap, ok := t.runs[songID]
	t.mu.RUnlock()
	if !ok {
		return Snapshot{}, false
	}
	return snap.clone(), true
}

// Active returns the ids of runs that have not reached a terminal status.
func (t *Tracker) Active() []int64 {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var ids []int64
	for id, snap := range t.runs {
		if !snap.Status.IsTerminal() {
			ids = append(ids, id)
		}
	}
	return ids
}

// Forget drops a run from the tracker.
func (t *Tracker) Forget(songID int64) {
	t.mu.Lock()
	delete(t.runs, songID)
	t.mu.Unlock()
}

// update applies fn to a copy of the run's snapshot and publishes the copy.
// Terminal snapshots are left untouched.
func (t *Tracker) update(songID int64, fn func(*Snapshot)) error {
	t.mu.Lock()
	current, ok := t.runs[songID]
	if !ok {
		t.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrUnknownRun, songID)
	}
	if current.Status.IsTerminal() {
		t.mu.Unlock()
		return nil
	}

	next := current.clone()
	fn(&next)
	next.UpdatedAt = t.now()
	t.runs[songID] = next
	t.mu.Unlock()

	t.persist(songID)
	return nil
}

// persist mirrors the latest snapshot of a run. Writes are serialized and
// always read the current snapshot, so the file never moves backwards.
func (t *Tracker) persist(songID int64) {
	if t.dir == "" {
		return
	}

	t.fileMu.Lock()
	defer t.fileMu.Unlock()

	snap, ok := t.Get(songID)
	if !ok {
		return
	}
	if err := WriteSnapshot(t.dir, snap); err != nil {
		t.logger.Warn("failed to write status snapshot", "song_id", songID, "error", err)
	}
}
