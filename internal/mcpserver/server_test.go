package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"songsmith/internal/lifecycle"
	"songsmith/internal/song"
	"songsmith/internal/status"
	"songsmith/internal/store"
)

// MockGenerator records requests and serves canned snapshots.
type MockGenerator struct {
	mu        sync.Mutex
	Requests  []lifecycle.Request
	StartErr  error
	Snapshots map[int64]status.Snapshot
	Running   map[int64]bool
}

func (m *MockGenerator) Start(ctx context.Context, req lifecycle.Request) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.StartErr != nil {
		return 0, m.StartErr
	}
	m.Requests = append(m.Requests, req)
	return int64(len(m.Requests)), nil
}

func (m *MockGenerator) Status(songID int64) (status.Snapshot, bool) {
	snap, ok := m.Snapshots[songID]
	return snap, ok
}

func (m *MockGenerator) Cancel(songID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.Running[songID] {
		return false
	}
	m.Running[songID] = false
	return true
}

func newRequest(args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

// getResultText extracts the text content from a CallToolResult.
func getResultText(result *mcp.CallToolResult) string {
	if result == nil {
		return ""
	}
	for _, c := range result.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func newLibrary(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestNew_RegistersTools(t *testing.T) {
	s := New(Deps{Generator: &MockGenerator{}, Library: newLibrary(t), PersonasDir: t.TempDir()})
	assert.NotNil(t, s)
}

func TestToolDefinitions(t *testing.T) {
	gen := &MockGenerator{}
	lib := newLibrary(t)

	names := []string{
		NewGenerateTool(gen).Definition().Name,
		NewStatusTool(gen, lib).Definition().Name,
		NewCancelTool(gen).Definition().Name,
		NewGetSongTool(lib).Definition().Name,
		NewListSongsTool(lib).Definition().Name,
		NewListPersonasTool("").Definition().Name,
	}
	assert.Equal(t, []string{
		"generate_song", "song_status", "cancel_generation", "get_song", "list_songs", "list_personas",
	}, names)
}

func TestGenerateTool_Handle(t *testing.T) {
	gen := &MockGenerator{}
	tool := NewGenerateTool(gen)

	result, err := tool.Handle(context.Background(), newRequest(map[string]any{
		"prompt":    "a song about rain persona:night_owl",
		"song_name": " Rain ",
		"style":     "lo-fi",
		"use_local": true,
	}))
	require.NoError(t, err)
	require.False(t, result.IsError, getResultText(result))

	assert.Contains(t, getResultText(result), "**Song ID:** 1")
	require.Len(t, gen.Requests, 1)
	assert.Equal(t, lifecycle.Request{
		UserInput: "a song about rain persona:night_owl",
		SongName:  "Rain",
		Style:     "lo-fi",
		UseLocal:  true,
	}, gen.Requests[0])
}

func TestGenerateTool_Handle_Errors(t *testing.T) {
	t.Run("missing prompt", func(t *testing.T) {
		gen := &MockGenerator{}
		result, err := NewGenerateTool(gen).Handle(context.Background(), newRequest(map[string]any{"prompt": "  "}))
		require.NoError(t, err)
		assert.True(t, result.IsError)
		assert.Empty(t, gen.Requests)
	})

	t.Run("start failure", func(t *testing.T) {
		gen := &MockGenerator{StartErr: errors.New("disk full")}
		result, err := NewGenerateTool(gen).Handle(context.Background(), newRequest(map[string]any{"prompt": "x"}))
		require.NoError(t, err)
		assert.True(t, result.IsError)
		assert.Contains(t, getResultText(result), "disk full")
	})
}

func TestStatusTool_Handle_Live(t *testing.T) {
	gen := &MockGenerator{Snapshots: map[int64]status.Snapshot{
		4: {
			SongID:       4,
			Status:       status.StatusGenerating,
			Progress:     40,
			CurrentStage: "review",
			Logs:         []status.LogEntry{{Message: "Draft generated", Percent: 25}},
		},
	}}

	result, err := NewStatusTool(gen, nil).Handle(context.Background(), newRequest(map[string]any{"song_id": float64(4)}))
	require.NoError(t, err)

	text := getResultText(result)
	assert.Contains(t, text, "**Status:** generating")
	assert.Contains(t, text, "**Progress:** 40%")
	assert.Contains(t, text, "**Stage:** review")
	assert.Contains(t, text, "- [25%] Draft generated")
}

func TestStatusTool_Handle_FromLibrary(t *testing.T) {
	lib := newLibrary(t)
	id, err := lib.CreateSong(store.NewSongParams{Title: "Old", UserPrompt: "old run"})
	require.NoError(t, err)
	require.NoError(t, lib.StartGeneration(id, "sess-1"))
	require.NoError(t, lib.UpdateSession("sess-1", "critic", 55, "[]"))

	result, err := NewStatusTool(&MockGenerator{}, lib).Handle(context.Background(), newRequest(map[string]any{"song_id": float64(id)}))
	require.NoError(t, err)
	require.False(t, result.IsError, getResultText(result))

	var sess store.Session
	require.NoError(t, json.Unmarshal([]byte(getResultText(result)), &sess))
	assert.Equal(t, "sess-1", sess.SessionID)
	assert.Equal(t, "critic", sess.CurrentStage)
	assert.Equal(t, 55, sess.ProgressPercentage)
}

func TestStatusTool_Handle_Unknown(t *testing.T) {
	tests := []struct {
		name string
		lib  Library
		args map[string]any
	}{
		{name: "missing id", args: map[string]any{}},
		{name: "not tracked without library", args: map[string]any{"song_id": float64(9)}},
		{name: "not in library", lib: newLibrary(t), args: map[string]any{"song_id": float64(9)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := NewStatusTool(&MockGenerator{}, tt.lib).Handle(context.Background(), newRequest(tt.args))
			require.NoError(t, err)
			assert.True(t, result.IsError)
		})
	}
}

func TestCancelTool_Handle(t *testing.T) {
	gen := &MockGenerator{Running: map[int64]bool{2: true}}
	tool := NewCancelTool(gen)

	result, err := tool.Handle(context.Background(), newRequest(map[string]any{"song_id": float64(2)}))
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Contains(t, getResultText(result), "song 2")

	result, err = tool.Handle(context.Background(), newRequest(map[string]any{"song_id": float64(2)}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, getResultText(result), "not generating")
}

func TestGetSongTool_Handle(t *testing.T) {
	lib := newLibrary(t)
	id, err := lib.CreateSong(store.NewSongParams{Title: "Tide", UserPrompt: "the sea"})
	require.NoError(t, err)
	require.NoError(t, lib.StartGeneration(id, "sess"))
	require.NoError(t, lib.CompleteSong(id, "sess", store.CompletionParams{
		Title:    "Tide",
		Lyrics:   "[Verse]\nwaves",
		Metadata: song.Metadata{Description: "About the sea."},
		Score:    8.7,
		LogsJSON: "[]",
	}))

	tool := NewGetSongTool(lib)
	result, err := tool.Handle(context.Background(), newRequest(map[string]any{"song_id": float64(id)}))
	require.NoError(t, err)
	require.False(t, result.IsError, getResultText(result))

	var got store.Song
	require.NoError(t, json.Unmarshal([]byte(getResultText(result)), &got))
	assert.Equal(t, "Tide", got.Title)
	assert.Equal(t, "waves", got.CleanLyrics)
	assert.Equal(t, store.StatusCompleted, got.Status)

	result, err = tool.Handle(context.Background(), newRequest(map[string]any{"song_id": float64(id + 100)}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestListSongsTool_Handle(t *testing.T) {
	lib := newLibrary(t)
	tool := NewListSongsTool(lib)

	result, err := tool.Handle(context.Background(), newRequest(map[string]any{}))
	require.NoError(t, err)
	assert.Equal(t, "No songs found.", getResultText(result))

	for _, title := range []string{"One", "Two"} {
		_, err := lib.CreateSong(store.NewSongParams{Title: title, UserPrompt: title})
		require.NoError(t, err)
	}

	result, err = tool.Handle(context.Background(), newRequest(map[string]any{"limit": float64(1)}))
	require.NoError(t, err)
	text := getResultText(result)
	assert.Contains(t, text, "Two")
	assert.NotContains(t, text, "One")

	result, err = tool.Handle(context.Background(), newRequest(map[string]any{"status": store.StatusCompleted}))
	require.NoError(t, err)
	assert.Equal(t, "No songs found.", getResultText(result))
}

func TestListPersonasTool_Handle(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"night_owl.md", "captain.md", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("Persona styles: x"), 0o644))
	}

	result, err := NewListPersonasTool(dir).Handle(context.Background(), newRequest(nil))
	require.NoError(t, err)
	assert.Equal(t, "captain\nnight_owl", getResultText(result))

	result, err = NewListPersonasTool(filepath.Join(dir, "missing")).Handle(context.Background(), newRequest(nil))
	require.NoError(t, err)
	assert.Equal(t, "No personas found.", getResultText(result))
}
