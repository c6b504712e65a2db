// Package cli provides songsmith's command-line interface.
//
// Commands are built on cobra and share an [App], which holds every
// dependency a command needs. Tests construct an App with test doubles and
// drive commands through [NewRootCommand]; production code uses [Execute].
package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"songsmith/internal/art"
	"songsmith/internal/config"
	"songsmith/internal/generation"
	"songsmith/internal/library"
	"songsmith/internal/lifecycle"
	"songsmith/internal/llm"
	"songsmith/internal/logging"
	"songsmith/internal/output"
	"songsmith/internal/resources"
	"songsmith/internal/song"
	"songsmith/internal/status"
	"songsmith/internal/store"
	"songsmith/internal/workflow"
)

// Generator runs songs in the background. The [generation.Manager] type
// implements this interface.
type Generator interface {
	Start(ctx context.Context, req lifecycle.Request) (int64, error)
	Status(songID int64) (status.Snapshot, bool)
	Wait(ctx context.Context, songID int64) (status.Snapshot, error)
	Result(songID int64) (*song.State, error)
	Cancel(songID int64) bool
	Shutdown(ctx context.Context) error
}

// Library is the song library the commands read and update. The
// [store.Store] type implements this interface.
type Library interface {
	GetSong(id int64) (*store.Song, error)
	ListSongs(status string, limit int) ([]store.Song, error)
	GetSession(songID int64) (*store.Session, error)
	SongFiles(songID int64) ([]store.SongFile, error)
	UpdateAlbumArt(songID int64, path string) error
}

// App holds the dependencies shared by all commands.
type App struct {
	Config    *config.Config
	Printer   *output.Printer
	Logger    *slog.Logger
	Generator Generator
	Library   Library

	// Art generates cover images. Nil when artwork is disabled or no API
	// key is configured.
	Art workflow.ArtGenerator

	// StatusDir holds the progress snapshots mirrored by running
	// generations.
	StatusDir string

	// PollInterval is how often generate refreshes progress. Zero means
	// 250ms.
	PollInterval time.Duration
}

// NewApp wires the production dependencies for cfg. The returned cleanup
// stops in-flight generations and closes the library; it is always non-nil.
func NewApp(cfg *config.Config) (*App, func(), error) {
	logger := logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)

	lib, err := store.New(cfg.Paths.DataDir)
	if err != nil {
		return nil, func() {}, err
	}

	var artGen workflow.ArtGenerator
	if cfg.Art.Enabled {
		gen, err := art.NewGenerator(cfg.Art, cfg.LLM, cfg.Paths.Songs)
		switch {
		case err == nil:
			artGen = gen
		case errors.Is(err, art.ErrNoAPIKey):
			logger.Info("album artwork disabled", "reason", err)
		default:
			lib.Close()
			return nil, func() {}, err
		}
	}

	statusDir := filepath.Join(cfg.Paths.DataDir, "status")
	manager := generation.NewManager(generation.Options{
		Config:     cfg,
		Completers: llm.NewSelector(cfg.LLM),
		Resources:  resources.NewProvider(cfg.Paths, cfg.Defaults),
		Art:        artGen,
		Sink:       library.NewFileSink(cfg.Paths.Songs),
		Library:    lib,
		Tracker:    status.NewTracker(statusDir, logger),
		Logger:     logger,
	})

	printer := output.NewPrinter()
	printer.SetMarkdown(cfg.Output.Markdown)

	app := &App{
		Config:    cfg,
		Printer:   printer,
		Logger:    logger,
		Generator: manager,
		Library:   lib,
		Art:       artGen,
		StatusDir: statusDir,
	}

	cleanup := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := manager.Shutdown(ctx); err != nil {
			logger.Warn("generations still running at exit", "error", err)
		}
		if err := lib.Close(); err != nil {
			logger.Warn("failed to close library", "error", err)
		}
	}
	return app, cleanup, nil
}

func (a *App) pollInterval() time.Duration {
	if a.PollInterval > 0 {
		return a.PollInterval
	}
	return 250 * time.Millisecond
}

// NewRootCommand creates the root command with every subcommand attached.
func NewRootCommand(app *App) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "songsmith",
		Short: "Write songs with a draft, review and preflight pipeline",
		Long: `songsmith drafts song lyrics with a language model, refines them through
parallel review rounds, a critic pass and preflight checks, then writes the
song with Suno-ready metadata and optional album artwork.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		newGenerateCommand(app),
		newRegenCoverCommand(app),
		newHistoryCommand(app),
		newShowCommand(app),
		newStatusCommand(app),
		newPersonasCommand(app),
		newServeCommand(app),
	)

	return rootCmd
}

// ExecuteResult is the outcome of a CLI run.
type ExecuteResult struct {
	ExitCode int
	Err      error
}

// RunWithConfig runs the CLI with cfg and os.Args.
func RunWithConfig(cfg *config.Config) ExecuteResult {
	app, cleanup, err := NewApp(cfg)
	if err != nil {
		return ExecuteResult{ExitCode: ExitFailure, Err: err}
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCommand(app).ExecuteContext(ctx); err != nil {
		if code, ok := IsExitError(err); ok {
			return ExecuteResult{ExitCode: code, Err: err}
		}
		return ExecuteResult{ExitCode: ExitFailure, Err: err}
	}
	return ExecuteResult{}
}

// Execute loads configuration, runs the CLI and exits the process.
func Execute() {
	cfg, err := config.NewLoader().Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(ExitFailure)
	}

	result := RunWithConfig(cfg)
	if result.Err != nil {
		if _, ok := IsExitError(result.Err); !ok {
			fmt.Fprintf(os.Stderr, "Error: %v\n", result.Err)
		}
	}
	os.Exit(result.ExitCode)
}
