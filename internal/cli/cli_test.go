package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"songsmith/internal/config"
	"songsmith/internal/library"
	"songsmith/internal/song"
	"songsmith/internal/status"
	"songsmith/internal/store"
	"songsmith/internal/workflow/workflowtest"
)

func TestGenerateCommand_Completes(t *testing.T) {
	env := newTestEnv(t, &workflowtest.Script{})

	err := env.run(context.Background(), "generate", "a song about rain")
	require.NoError(t, err)

	out := env.out.String()
	assert.Contains(t, out, "Starting pipeline")
	assert.Contains(t, out, "Draft generated")
	assert.Contains(t, out, "Generation completed")
	assert.Contains(t, out, "Song 1 generated")
	assert.Contains(t, out, "Test Song")
	assert.Contains(t, out, "revised line")

	row, err := env.lib.GetSong(1)
	require.NoError(t, err)
	assert.Equal(t, store.StatusCompleted, row.Status)
	assert.Equal(t, "a song about rain", row.UserPrompt)

	entries, err := os.ReadDir(env.songs)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestGenerateCommand_Flags(t *testing.T) {
	var draftPrompt string
	var mu sync.Mutex
	script := &workflowtest.Script{Draft: func(prompt string) (string, error) {
		mu.Lock()
		draftPrompt = prompt
		mu.Unlock()
		return workflowtest.DraftLyrics, nil
	}}
	env := newTestEnv(t, script)

	promptFile := filepath.Join(t.TempDir(), "idea.txt")
	require.NoError(t, os.WriteFile(promptFile, []byte("  lighthouse keeper  \n"), 0o644))

	err := env.run(context.Background(), "generate",
		"--prompt-file", promptFile, "--name", "Beacon", "--style", "sea shanty", "--persona", "captain")
	require.NoError(t, err)

	row, err := env.lib.GetSong(1)
	require.NoError(t, err)
	assert.Equal(t, "lighthouse keeper", row.UserPrompt)
	assert.Equal(t, "captain", row.Persona)
	assert.Equal(t, "sea shanty", row.Style)

	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, draftPrompt, "Beacon")
	assert.Contains(t, draftPrompt, "sea shanty")
	assert.Contains(t, draftPrompt, "lighthouse keeper")
}

func TestGenerateCommand_DryRun(t *testing.T) {
	script := &workflowtest.Script{}
	env := newTestEnv(t, script)

	err := env.run(context.Background(), "generate", "--dry-run", "--local", "anything")
	require.NoError(t, err)

	out := env.out.String()
	assert.Contains(t, out, "Planned steps")
	assert.Contains(t, out, "Generating initial song draft (local LLM)")
	assert.Contains(t, out, "Skipping album artwork (local mode)")
	assert.Equal(t, 0, script.Count(config.PromptDraft))

	songs, err := env.lib.ListSongs("", 0)
	require.NoError(t, err)
	assert.Empty(t, songs)
}

func TestGenerateCommand_PromptErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "no prompt", args: []string{"generate"}, want: "a prompt is required"},
		{name: "blank prompt", args: []string{"generate", "   "}, want: "a prompt is required"},
		{name: "missing file", args: []string{"generate", "--prompt-file", "/no/such/file"}, want: "failed to read prompt file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, &workflowtest.Script{})
			err := env.run(context.Background(), tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
			_, isExit := IsExitError(err)
			assert.False(t, isExit)
		})
	}
}

func TestGenerateCommand_Failure(t *testing.T) {
	script := &workflowtest.Script{Draft: func(string) (string, error) {
		return "", errors.New("model unavailable")
	}}
	env := newTestEnv(t, script)

	err := env.run(context.Background(), "generate", "x")

	require.Error(t, err)
	code, ok := IsExitError(err)
	require.True(t, ok, "error should be an ExitError")
	assert.Equal(t, ExitFailure, code)
	assert.Contains(t, env.out.String(), "model unavailable")

	row, err := env.lib.GetSong(1)
	require.NoError(t, err)
	assert.Equal(t, store.StatusFailed, row.Status)
}

// cancelSignal closes Cancelled when the wrapped generator cancels a run.
type cancelSignal struct {
	Generator
	once      sync.Once
	Cancelled chan struct{}
}

func (c *cancelSignal) Cancel(songID int64) bool {
	ok := c.Generator.Cancel(songID)
	c.once.Do(func() { close(c.Cancelled) })
	return ok
}

func TestGenerateCommand_InterruptCancels(t *testing.T) {
	entered := make(chan struct{})
	signal := &cancelSignal{Cancelled: make(chan struct{})}
	script := &workflowtest.Script{Critic: func(string) (string, error) {
		close(entered)
		<-signal.Cancelled
		return workflowtest.CriticAnswer, nil
	}}
	env := newTestEnv(t, script)
	signal.Generator = env.app.Generator
	env.app.Generator = signal

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- env.run(ctx, "generate", "x") }()

	<-entered
	cancel()

	var err error
	select {
	case err = <-errCh:
	case <-time.After(10 * time.Second):
		t.Fatal("generate did not return after interrupt")
	}

	code, ok := IsExitError(err)
	require.True(t, ok)
	assert.Equal(t, ExitCancelled, code)
	assert.Contains(t, env.out.String(), "cancelled")
	assert.Equal(t, 0, script.Count(config.PromptPreflight))

	row, err := env.lib.GetSong(1)
	require.NoError(t, err)
	assert.Equal(t, store.StatusCancelled, row.Status)
}

func TestHistoryAndShow(t *testing.T) {
	env := newTestEnv(t, &workflowtest.Script{})

	require.NoError(t, env.run(context.Background(), "history"))
	assert.Contains(t, env.out.String(), "No songs yet.")

	require.NoError(t, env.run(context.Background(), "generate", "a song about rain"))
	env.out.Reset()

	require.NoError(t, env.run(context.Background(), "history", "--status", "completed"))
	assert.Contains(t, env.out.String(), "Test Song")
	env.out.Reset()

	require.NoError(t, env.run(context.Background(), "show", "1"))
	out := env.out.String()
	assert.Contains(t, out, "Test Song")
	assert.Contains(t, out, "A song about testing.")
	assert.Contains(t, out, "lyrics: ")
}

func TestShowCommand_Errors(t *testing.T) {
	env := newTestEnv(t, &workflowtest.Script{})

	err := env.run(context.Background(), "show", "abc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid song id")

	err = env.run(context.Background(), "show", "42")
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestStatusCommand(t *testing.T) {
	t.Run("mirrored snapshot", func(t *testing.T) {
		env := newTestEnv(t, &workflowtest.Script{})
		require.NoError(t, status.WriteSnapshot(env.app.StatusDir, status.Snapshot{
			SongID:       7,
			Status:       status.StatusGenerating,
			Progress:     55,
			CurrentStage: "critic",
			Logs:         []status.LogEntry{{Message: "Critic feedback applied", Percent: 55}},
		}))

		require.NoError(t, env.run(context.Background(), "status", "7"))
		out := env.out.String()
		assert.Contains(t, out, "generating")
		assert.Contains(t, out, "55%")
		assert.Contains(t, out, "Critic feedback applied")
	})

	t.Run("library session", func(t *testing.T) {
		env := newTestEnv(t, &workflowtest.Script{})
		id, err := env.lib.CreateSong(store.NewSongParams{Title: "Old", UserPrompt: "old"})
		require.NoError(t, err)
		require.NoError(t, env.lib.StartGeneration(id, "sess"))
		require.NoError(t, env.lib.EndGeneration(id, "sess", store.StatusFailed, "draft: boom",
			`[{"message":"Error: draft: boom","percent":-1}]`))

		require.NoError(t, env.run(context.Background(), "status", "1"))
		out := env.out.String()
		assert.Contains(t, out, "failed")
		assert.Contains(t, out, "draft: boom")
	})

	t.Run("unknown", func(t *testing.T) {
		env := newTestEnv(t, &workflowtest.Script{})
		err := env.run(context.Background(), "status", "3")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no generation found for song 3")
	})
}

func writeSongFile(t *testing.T) string {
	t.Helper()
	sink := library.NewFileSink(t.TempDir())
	path, err := sink.Save("Night Drive", "neon highway at 3am", "[Verse]\nlights", song.Params{}, song.Metadata{})
	require.NoError(t, err)
	return path
}

func TestRegenCoverCommand(t *testing.T) {
	env := newTestEnv(t, &workflowtest.Script{})
	artGen := &MockArtGenerator{Path: "/covers/Night_Drive_cover.png"}
	env.app.Art = artGen

	id, err := env.lib.CreateSong(store.NewSongParams{Title: "Night Drive", UserPrompt: "neon"})
	require.NoError(t, err)

	err = env.run(context.Background(), "regen-cover", writeSongFile(t), "--song-id", "1")
	require.NoError(t, err)

	require.Len(t, artGen.Calls, 1)
	assert.Equal(t, "Night Drive", artGen.Calls[0].Title)
	assert.Equal(t, "neon highway at 3am", artGen.Calls[0].Theme)
	assert.Contains(t, env.out.String(), "Album artwork saved to /covers/Night_Drive_cover.png")

	row, err := env.lib.GetSong(id)
	require.NoError(t, err)
	assert.Equal(t, "/covers/Night_Drive_cover.png", row.AlbumArt)
}

func TestRegenCoverCommand_Errors(t *testing.T) {
	t.Run("artwork unavailable", func(t *testing.T) {
		env := newTestEnv(t, &workflowtest.Script{})
		err := env.run(context.Background(), "regen-cover", writeSongFile(t))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "album artwork is unavailable")
	})

	t.Run("missing file", func(t *testing.T) {
		env := newTestEnv(t, &workflowtest.Script{})
		env.app.Art = &MockArtGenerator{}
		err := env.run(context.Background(), "regen-cover", "/no/such/song.md")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "song file not found")
	})

	t.Run("generation fails", func(t *testing.T) {
		env := newTestEnv(t, &workflowtest.Script{})
		env.app.Art = &MockArtGenerator{Err: errors.New("quota")}
		err := env.run(context.Background(), "regen-cover", writeSongFile(t))
		code, ok := IsExitError(err)
		require.True(t, ok)
		assert.Equal(t, ExitFailure, code)
		assert.Contains(t, env.out.String(), "Failed to regenerate artwork")
	})
}

func TestPersonasCommand(t *testing.T) {
	env := newTestEnv(t, &workflowtest.Script{})

	require.NoError(t, env.run(context.Background(), "personas"))
	assert.Contains(t, env.out.String(), "No personas found")

	dir := env.app.Config.Paths.Personas
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "night_owl.md"), []byte("Persona styles: dark"), 0o644))
	env.out.Reset()

	require.NoError(t, env.run(context.Background(), "personas"))
	assert.Contains(t, env.out.String(), "1. night_owl")
}

func TestServeCommand_ServesTools(t *testing.T) {
	orig := serveStdio
	t.Cleanup(func() { serveStdio = orig })

	called := false
	serveStdio = func(s *server.MCPServer) error {
		called = true
		assert.NotNil(t, s)
		return nil
	}

	env := newTestEnv(t, &workflowtest.Script{})
	require.NoError(t, env.run(context.Background(), "serve"))
	assert.True(t, called)
}

func TestIsExitError(t *testing.T) {
	code, ok := IsExitError(NewExitError(130))
	assert.True(t, ok)
	assert.Equal(t, 130, code)

	code, ok = IsExitError(fmt.Errorf("wrapped: %w", NewExitError(2)))
	assert.True(t, ok)
	assert.Equal(t, 2, code)

	_, ok = IsExitError(errors.New("plain"))
	assert.False(t, ok)
	_, ok = IsExitError(nil)
	assert.False(t, ok)

	assert.Equal(t, "exit status 1", NewExitError(1).Error())
}
