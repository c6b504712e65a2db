package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"songsmith/internal/config"
	"songsmith/internal/generation"
	"songsmith/internal/library"
	"songsmith/internal/llm"
	"songsmith/internal/logging"
	"songsmith/internal/output"
	"songsmith/internal/song"
	"songsmith/internal/status"
	"songsmith/internal/store"
	"songsmith/internal/workflow/workflowtest"
)

// MockCompleterSource hands every run the same completer.
type MockCompleterSource struct {
	Completer llm.Completer
}

func (m *MockCompleterSource) For(useLocal bool) (llm.Completer, error) {
	return m.Completer, nil
}

// MockResourceProvider returns a fixed resource snapshot.
type MockResourceProvider struct{}

func (m *MockResourceProvider) Load(personaName string) (song.Resources, error) {
	return song.Resources{
		Styles:        map[string]string{"core_styles": "indie rock"},
		Tags:          map[string]string{"sections.txt": "[Verse] [Chorus]"},
		PersonaStyles: "gritty, anthemic",
		DefaultParams: song.Params{Genre: "rock", Tempo: "120", Key: "C"},
	}, nil
}

// MockArtGenerator records artwork requests.
type MockArtGenerator struct {
	Path  string
	Err   error
	Calls []struct{ Title, Theme string }
}

func (m *MockArtGenerator) Generate(ctx context.Context, title, theme string) (string, error) {
	m.Calls = append(m.Calls, struct{ Title, Theme string }{title, theme})
	if m.Err != nil {
		return "", m.Err
	}
	return m.Path, nil
}

// testEnv is an App wired to a real manager, library and file sink in
// temporary directories, with a scripted completer.
type testEnv struct {
	app   *App
	lib   *store.Store
	out   *bytes.Buffer
	songs string
}

func newTestEnv(t *testing.T, script *workflowtest.Script) *testEnv {
	t.Helper()

	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Paths.DataDir = filepath.Join(dir, "data")
	cfg.Paths.Songs = filepath.Join(dir, "songs")
	cfg.Paths.Personas = filepath.Join(dir, "personas")

	lib, err := store.New(cfg.Paths.DataDir)
	require.NoError(t, err)
	t.Cleanup(func() { lib.Close() })

	statusDir := filepath.Join(cfg.Paths.DataDir, "status")
	manager := generation.NewManager(generation.Options{
		Config:     cfg,
		Completers: &MockCompleterSource{Completer: script.Completer()},
		Resources:  &MockResourceProvider{},
		Sink:       library.NewFileSink(cfg.Paths.Songs),
		Library:    lib,
		Tracker:    status.NewTracker(statusDir, logging.Nop()),
		Logger:     logging.Nop(),
	})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = manager.Shutdown(ctx)
	})

	out := &bytes.Buffer{}
	app := &App{
		Config:       cfg,
		Printer:      output.NewPrinterWithWriter(out),
		Logger:       logging.Nop(),
		Generator:    manager,
		Library:      lib,
		StatusDir:    statusDir,
		PollInterval: 5 * time.Millisecond,
	}

	return &testEnv{app: app, lib: lib, out: out, songs: cfg.Paths.Songs}
}

// run executes the root command with args and returns the error.
func (e *testEnv) run(ctx context.Context, args ...string) error {
	rootCmd := NewRootCommand(e.app)
	buf := &bytes.Buffer{}
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	return rootCmd.ExecuteContext(ctx)
}
