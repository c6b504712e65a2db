package status

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatus_IsValid(t *testing.T) {
	tests := []struct {
		status   Status
		valid    bool
		terminal bool
	}{
		{StatusQueued, true, false},
		{StatusGenerating, true, false},
		{StatusCompleted, true, true},
		{StatusFailed, true, true},
		{StatusCancelled, true, true},
		{Status("paused"), false, false},
		{Status(""), false, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.valid, tt.status.IsValid())
			assert.Equal(t, tt.terminal, tt.status.IsTerminal())
		})
	}
}

func TestTracker_Lifecycle(t *testing.T) {
	tracker := NewTracker("", nil)

	snap := tracker.Begin(7, "session-1")
	assert.Equal(t, StatusQueued, snap.Status)
	assert.Equal(t, "session-1", snap.SessionID)

	require.NoError(t, tracker.Log(7, "Starting pipeline", 5))
	require.NoError(t, tracker.SetStage(7, "draft"))
	require.NoError(t, tracker.Log(7, "Draft generated", 25))
	require.NoError(t, tracker.Log(7, "note without percent", -1))

	got, ok := tracker.Get(7)
	require.True(t, ok)
	assert.Equal(t, StatusGenerating, got.Status)
	assert.Equal(t, 25, got.Progress)
	assert.Equal(t, "draft", got.CurrentStage)
	require.Len(t, got.Logs, 3)
	assert.Equal(t, "Starting pipeline", got.Logs[0].Message)
	assert.Equal(t, 25, got.Logs[2].Percent)

	require.NoError(t, tracker.Finish(7, StatusCompleted, ""))
	got, _ = tracker.Get(7)
	assert.Equal(t, StatusCompleted, got.Status)
	assert.Equal(t, 100, got.Progress)
	assert.Empty(t, tracker.Active())
}

func TestTracker_TerminalIsFinal(t *testing.T) {
	tracker := NewTracker("", nil)
	tracker.Begin(1, "s")

	require.NoError(t, tracker.Finish(1, StatusCancelled, "generation cancelled"))
	require.NoError(t, tracker.Log(1, "Song saved to x", 95))
	require.NoError(t, tracker.Finish(1, StatusCompleted, ""))

	got, _ := tracker.Get(1)
	assert.Equal(t, StatusCancelled, got.Status)
	assert.Equal(t, "generation cancelled", got.Error)
	assert.Empty(t, got.Logs)
}

func TestTracker_FinishRejectsNonTerminal(t *testing.T) {
	tracker := NewTracker("", nil)
	tracker.Begin(1, "s")

	err := tracker.Finish(1, StatusGenerating, "")

	assert.Error(t, err)
}

func TestTracker_UnknownRun(t *testing.T) {
	tracker := NewTracker("", nil)

	err := tracker.Log(99, "x", 1)

	assert.True(t, errors.Is(err, ErrUnknownRun))
	_, ok := tracker.Get(99)
	assert.False(t, ok)
}

func TestTracker_GetReturnsCopy(t *testing.T) {
	tracker := NewTracker("", nil)
	tracker.Begin(1, "s")
	require.NoError(t, tracker.Log(1, "first", 10))

	got, _ := tracker.Get(1)
	got.Logs[0].Message = "mutated"
	got.Progress = 99

	again, _ := tracker.Get(1)
	assert.Equal(t, "first", again.Logs[0].Message)
	assert.Equal(t, 10, again.Progress)
}

func TestTracker_ConcurrentUpdates(t *testing.T) {
	tracker := NewTracker("", nil)
	tracker.Begin(1, "s")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = tracker.Log(1, "tick", 50)
		}()
		go func() {
			defer wg.Done()
			snap, ok := tracker.Get(1)
			if ok {
				// Progress and log length move together.
				if len(snap.Logs) > 0 {
					assert.Equal(t, 50, snap.Progress)
				}
			}
		}()
	}
	wg.Wait()

	got, _ := tracker.Get(1)
	assert.Len(t, got.Logs, 50)
}

func TestTracker_ActiveAndForget(t *testing.T) {
	tracker := NewTracker("", nil)
	tracker.Begin(1, "a")
	tracker.Begin(2, "b")
	require.NoError(t, tracker.Finish(2, StatusFailed, "boom"))

	assert.Equal(t, []int64{1}, tracker.Active())

	tracker.Forget(1)
	_, ok := tracker.Get(1)
	assert.False(t, ok)
}

func TestTracker_MirrorsToDir(t *testing.T) {
	dir := t.TempDir()
	tracker := NewTracker(dir, nil)
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	tracker.now = func() time.Time { return fixed }

	tracker.Begin(3, "sess")
	require.NoError(t, tracker.Log(3, "Draft generated", 25))
	require.NoError(t, tracker.Finish(3, StatusFailed, "draft: completion failed: 401"))

	snap, err := ReadSnapshot(dir, 3)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, snap.Status)
	assert.Equal(t, "sess", snap.SessionID)
	assert.Equal(t, "draft: completion failed: 401", snap.Error)
	require.Len(t, snap.Logs, 1)
	assert.True(t, fixed.Equal(snap.Logs[0].Time))

	_, err = os.Stat(SnapshotPath(dir, 3) + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestReadSnapshot_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := ReadSnapshot(dir, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read status")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "song-2.yaml"), []byte("status: [nope"), 0644))
	_, err = ReadSnapshot(dir, 2)
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "song-3.yaml"), []byte("status: paused\n"), 0644))
	_, err = ReadSnapshot(dir, 3)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid status")
}

func TestSnapshotPath(t *testing.T) {
	assert.Equal(t, filepath.Join("runs", "song-42.yaml"), SnapshotPath("runs", 42))
}
