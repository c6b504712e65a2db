// Package generation runs song generations in the background.
//
// A [Manager] records each request in the song library, launches the
// pipeline on its own goroutine, publishes progress through a
// [status.Tracker], and stores the result when the run ends. Runs are
// independent: they share only the completer source and the library.
package generation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"songsmith/internal/config"
	"songsmith/internal/lifecycle"
	"songsmith/internal/router"
	"songsmith/internal/song"
	"songsmith/internal/status"
	"songsmith/internal/store"
	"songsmith/internal/workflow"
)

// ErrUnknownSong is returned for song ids the manager did not start, or
// whose finished run has been evicted.
var ErrUnknownSong = errors.New("unknown song")

const defaultRetain = 64

// Library is the persistence the manager needs. The [store.Store] type
// implements this interface.
type Library interface {
	CreateSong(p store.NewSongParams) (int64, error)
	StartGeneration(songID int64, sessionID string) error
	UpdateSession(sessionID, stage string, progress int, logsJSON string) error
	CompleteSong(songID int64, sessionID string, p store.CompletionParams) error
	EndGeneration(songID int64, sessionID, final, message, logsJSON string) error
}

// Options configures a [Manager]. Config, Completers and Resources are
// required; the rest may be nil.
type Options struct {
	Config     *config.Config
	Completers lifecycle.CompleterSource
	Resources  lifecycle.ResourceProvider
	Art        workflow.ArtGenerator
	Sink       workflow.SongSink

	// Library records songs and sessions. When nil, song ids are assigned
	// in memory and nothing is persisted.
	Library Library

	// Tracker receives progress. When nil, an in-memory tracker is used.
	Tracker *status.Tracker

	// Retain caps how many finished runs stay queryable in memory. Older
	// runs are answered from the Library only. Default: 64
	Retain int

	Logger *slog.Logger
}

type run struct {
	sessionID string
	cancel    context.CancelFunc
	done      chan struct{}
	state     *song.State
	err       error
}

// Manager starts, observes and cancels generation runs.
//
// Manager is safe for concurrent use. Create with [NewManager] and call
// [Manager.Shutdown] before exit.
type Manager struct {
	opts    Options
	tracker *status.Tracker
	logger  *slog.Logger

	mu       sync.Mutex
	runs     map[int64]*run
	finished []int64 // oldest first
	nextID   int64
	wg       sync.WaitGroup
}

// NewManager creates a Manager.
func NewManager(opts Options) *Manager {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	tracker := opts.Tracker
	if tracker == nil {
		tracker = status.NewTracker("", logger)
	}
	if opts.Retain < 1 {
		opts.Retain = defaultRetain
	}
	return &Manager{
		opts:    opts,
		tracker: tracker,
		logger:  logger,
		runs:    make(map[int64]*run),
	}
}

// Start records a new song and launches its generation. It returns once the
// run is registered; the pipeline continues after ctx is done, until it
// finishes or [Manager.Cancel] stops it.
func (m *Manager) Start(ctx context.Context, req lifecycle.Request) (int64, error) {
	songID, err := m.createSong(req)
	if err != nil {
		return 0, err
	}

	sessionID := uuid.NewString()
	if m.opts.Library != nil {
		if err := m.opts.Library.StartGeneration(songID, sessionID); err != nil {
			err = fmt.Errorf("start generation: %w", err)
			if eerr := m.opts.Library.EndGeneration(songID, sessionID, store.StatusFailed, err.Error(), "[]"); eerr != nil {
				m.logger.Error("failed to record generation end", "song_id", songID, "error", eerr)
			}
			return 0, err
		}
	}
	m.tracker.Begin(songID, sessionID)

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	r := &run{sessionID: sessionID, cancel: cancel, done: make(chan struct{})}

	m.mu.Lock()
	m.runs[songID] = r
	m.mu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer cancel()
		m.execute(runCtx, songID, r, req)
	}()

	return songID, nil
}

func (m *Manager) createSong(req lifecycle.Request) (int64, error) {
	if m.opts.Library == nil {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.nextID++
		return m.nextID, nil
	}

	id, err := m.opts.Library.CreateSong(store.NewSongParams{
		Title:      req.SongName,
		UserPrompt: req.UserInput,
		Persona:    req.Persona,
		Style:      req.Style,
		UseLocal:   req.UseLocal,
	})
	if err != nil {
		return 0, fmt.Errorf("create song: %w", err)
	}
	return id, nil
}

func (m *Manager) execute(ctx context.Context, songID int64, r *run, req lifecycle.Request) {
	logger := m.logger.With("song_id", songID, "session_id", r.sessionID)
	defer close(r.done)
	defer m.retire(songID)

	progress := func(message string, percent int) {
		if err := m.tracker.Log(songID, message, percent); err != nil {
			logger.Warn("progress update failed", "error", err)
			return
		}
		m.persistProgress(logger, songID, r.sessionID)
	}

	progress("Starting pipeline", 5)

	executor := lifecycle.NewExecutor(m.opts.Completers, m.opts.Resources, m.opts.Config, m.opts.Art, m.opts.Sink, logger)
	executor.SetProgressCallback(progress)
	executor.SetStageCallback(func(stage router.Stage) {
		_ = m.tracker.SetStage(songID, string(stage))
	})

	state, err := executor.Execute(ctx, req)
	if err == nil {
		progress("Finalizing results", 95)
		err = m.complete(songID, r.sessionID, state)
	}

	m.mu.Lock()
	r.state = state
	r.err = err
	m.mu.Unlock()

	if err != nil {
		m.fail(logger, songID, r.sessionID, err)
		return
	}

	progress("Generation completed", 100)
	_ = m.tracker.Finish(songID, status.StatusCompleted, "")
	logger.Info("generation completed", "title", state.Title(), "score", state.Score, "rounds", state.Round)
}

// retire queues a finished run and evicts the oldest finished runs past
// the retention cap, along with their tracker snapshots.
func (m *Manager) retire(songID int64) {
	m.mu.Lock()
	m.finished = append(m.finished, songID)
	var evicted []int64
	for len(m.finished) > m.opts.Retain {
		id := m.finished[0]
		m.finished = m.finished[1:]
		delete(m.runs, id)
		evicted = append(evicted, id)
	}
	m.mu.Unlock()

	for _, id := range evicted {
		m.tracker.Forget(id)
	}
}

func (m *Manager) complete(songID int64, sessionID string, s *song.State) error {
	if m.opts.Library == nil {
		return nil
	}

	logs, _ := m.logsJSON(songID)
	err := m.opts.Library.CompleteSong(songID, sessionID, store.CompletionParams{
		Title:    s.Title(),
		Lyrics:   s.Lyrics,
		Metadata: s.Metadata,
		AlbumArt: s.AlbumArt,
		Score:    s.Score,
		Filename: s.Filename,
		LogsJSON: logs,
	})
	if err != nil {
		return fmt.Errorf("store result: %w", err)
	}
	return nil
}

func (m *Manager) fail(logger *slog.Logger, songID int64, sessionID string, err error) {
	final := status.StatusFailed
	if errors.Is(err, lifecycle.ErrCancelled) {
		final = status.StatusCancelled
	}

	_ = m.tracker.Log(songID, "Error: "+err.Error(), -1)
	_ = m.tracker.Finish(songID, final, err.Error())

	if m.opts.Library != nil {
		logs, _ := m.logsJSON(songID)
		if serr := m.opts.Library.EndGeneration(songID, sessionID, string(final), err.Error(), logs); serr != nil {
			logger.Error("failed to record generation end", "error", serr)
		}
	}

	if final == status.StatusCancelled {
		logger.Info("generation cancelled")
		return
	}
	logger.Error("generation failed", "error", err)
}

func (m *Manager) persistProgress(logger *slog.Logger, songID int64, sessionID string) {
	if m.opts.Library == nil {
		return
	}
	snap, ok := m.tracker.Get(songID)
	if !ok {
		return
	}
	logs, err := json.Marshal(snap.Logs)
	if err != nil {
		return
	}
	if err := m.opts.Library.UpdateSession(sessionID, snap.CurrentStage, snap.Progress, string(logs)); err != nil {
		logger.Warn("failed to persist progress", "error", err)
	}
}

func (m *Manager) logsJSON(songID int64) (string, error) {
	snap, ok := m.tracker.Get(songID)
	if !ok {
		return "[]", nil
	}
	data, err := json.Marshal(snap.Logs)
	if err != nil {
		return "[]", err
	}
	return string(data), nil
}

// Status returns the latest progress snapshot of a run.
func (m *Manager) Status(songID int64) (status.Snapshot, bool) {
	return m.tracker.Get(songID)
}

// Wait blocks until the run ends or ctx is done and returns the final
// snapshot.
func (m *Manager) Wait(ctx context.Context, songID int64) (status.Snapshot, error) {
	m.mu.Lock()
	r, ok := m.runs[songID]
	m.mu.Unlock()
	if !ok {
		return status.Snapshot{}, fmt.Errorf("%w: %d", ErrUnknownSong, songID)
	}

	select {
	case <-r.done:
	case <-ctx.Done():
		return status.Snapshot{}, ctx.Err()
	}

	snap, _ := m.tracker.Get(songID)
	return snap, nil
}

// Result returns the terminal state of a finished run, or the error that
// ended it. It returns an error while the run is still in flight.
func (m *Manager) Result(songID int64) (*song.State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.runs[songID]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownSong, songID)
	}
	select {
	case <-r.done:
	default:
		return nil, fmt.Errorf("song %d is still generating", songID)
	}
	return r.state, r.err
}

// Cancel stops an in-flight run. It reports whether a run was cancelled.
func (m *Manager) Cancel(songID int64) bool {
	m.mu.Lock()
	r, ok := m.runs[songID]
	m.mu.Unlock()
	if !ok {
		return false
	}

	select {
	case <-r.done:
		return false
	default:
	}
	r.cancel()
	return true
}

// Shutdown cancels every in-flight run and waits for them to record their
// final status, or for ctx to be done.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	for _, r := range m.runs {
		r.cancel()
	}
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
