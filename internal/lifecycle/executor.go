// Package lifecycle orchestrates one song generation run from request to
// saved song.
//
// The lifecycle package provides [Executor], which loads the run's resources,
// builds the pipeline state and walks the router's transition table, running
// each stage through a [workflow.Runner] until the table reaches its end.
//
// Key concepts:
//   - Stage order is decided by [router.Next]; the executor never picks a
//     successor itself
//   - Each finished stage reports progress via [ProgressCallback]
//   - Cancelling the context stops the run before the next model call and
//     yields [ErrCancelled]
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"songsmith/internal/config"
	"songsmith/internal/llm"
	"songsmith/internal/router"
	"songsmith/internal/song"
	"songsmith/internal/workflow"
)

// ErrCancelled is returned when the host cancels a run.
var ErrCancelled = errors.New("generation cancelled")

// CompleterSource resolves the completer for a run.
//
// For is called once per run with the request's local flag. The
// [llm.Selector] type implements this interface.
type CompleterSource interface {
	For(useLocal bool) (llm.Completer, error)
}

// ResourceProvider loads the immutable resource snapshot for a run.
//
// Load returns a *[resources.ResourceError] when the style catalog is
// missing. The [resources.Provider] type implements this interface.
type ResourceProvider interface {
	Load(personaName string) (song.Resources, error)
}

// ProgressCallback receives a message and a completion percentage after each
// stage finishes. A negative percent means the message carries none.
type ProgressCallback func(message string, percent int)

// StageCallback is invoked before each stage begins execution.
type StageCallback func(stage router.Stage)

// Request describes one generation run.
type Request struct {
	UserInput string

	// SongName, when set, is the song title and is prefixed to the draft
	// prompt.
	SongName string

	// Persona names the persona whose styles feed the run. When empty, a
	// "persona:<name>" token in UserInput is used.
	Persona string

	// Style is an optional style hint appended to the draft prompt.
	Style string

	// UseLocal routes completions to the local endpoint and skips artwork.
	UseLocal bool
}

// Executor runs generation requests through the pipeline.
//
// Executor uses dependency injection for testability: [CompleterSource]
// supplies the completer, [ResourceProvider] the resources, and the art
// generator and sink are passed through to the [workflow.Runner]. Use
// [NewExecutor] to create an instance and [Executor.Execute] to run a
// request.
type Executor struct {
	completers       CompleterSource
	resources        ResourceProvider
	cfg              *config.Config
	art              workflow.ArtGenerator
	sink             workflow.SongSink
	logger           *slog.Logger
	progressCallback ProgressCallback
	stageCallback    StageCallback
}

// NewExecutor creates a new Executor with the required dependencies. art and
// sink may be nil.
//
// Callbacks are not set by default; use [Executor.SetProgressCallback] and
// [Executor.SetStageCallback] to observe a run.
func NewExecutor(completers CompleterSource, resources ResourceProvider, cfg *config.Config, art workflow.ArtGenerator, sink workflow.SongSink, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Executor{
		completers: completers,
		resources:  resources,
		cfg:        cfg,
		art:        art,
		sink:       sink,
		logger:     logger,
	}
}

// SetProgressCallback configures an optional progress callback.
func (e *Executor) SetProgressCallback(cb ProgressCallback) {
	e.progressCallback = cb
}

// SetStageCallback configures an optional callback invoked as each stage
// starts.
func (e *Executor) SetStageCallback(cb StageCallback) {
	e.stageCallback = cb
}

// Execute runs a request to completion and returns the terminal state.
//
// Resources are loaded and the completer selected before any model call, so
// a missing style catalog fails with no completion issued. Execute is
// fail-fast: the first stage error ends the run and no state is returned.
// When ctx is cancelled the error wraps [ErrCancelled].
func (e *Executor) Execute(ctx context.Context, req Request) (*song.State, error) {
	persona := song.ParsePersona(req.UserInput, req.Persona)

	res, err := e.resources.Load(persona)
	if err != nil {
		return nil, err
	}

	completer, err := e.completers.For(req.UseLocal)
	if err != nil {
		return nil, fmt.Errorf("select completer: %w", err)
	}

	s := &song.State{
		UserInput:      req.UserInput,
		SongName:       req.SongName,
		PersonaName:    persona,
		Style:          req.Style,
		UseLocal:       req.UseLocal,
		Resources:      res,
		MaxRounds:      e.cfg.Review.MaxRounds,
		ScoreThreshold: e.cfg.Review.ScoreThreshold,
	}

	runner := workflow.NewRunner(completer, e.cfg, e.art, e.sink, e.logger)
	if err := e.run(ctx, runner, s); err != nil {
		return nil, err
	}
	return s, nil
}

// maxTransitions bounds the interpreter loop. Every round-consuming stage
// is followed by at most a critic and a preflight pass, so a run that goes
// past this has a broken transition table.
func maxTransitions(maxRounds int) int {
	return 4*maxRounds + 8
}

func (e *Executor) run(ctx context.Context, runner *workflow.Runner, s *song.State) error {
	limit := maxTransitions(s.MaxRounds)
	stage := router.Start

	for steps := 0; stage != router.StageEnd; steps++ {
		if steps >= limit {
			return fmt.Errorf("pipeline exceeded %d transitions at %s", limit, stage)
		}
		if ctx.Err() != nil {
			return fmt.Errorf("%w before %s", ErrCancelled, stage)
		}

		if e.stageCallback != nil {
			e.stageCallback(stage)
		}
		if stage == router.StageDraft {
			e.notify("Generating initial draft", 20)
		}

		p, err := runner.RunStage(ctx, stage, s)
		if err != nil {
			if ctx.Err() != nil {
				return fmt.Errorf("%w during %s", ErrCancelled, stage)
			}
			return err
		}
		e.notify(p.Message, p.Percent)

		next, route, err := router.Next(stage, s)
		if err != nil {
			return err
		}
		e.logger.Debug("stage finished",
			"stage", stage,
			"route", route,
			"next", next,
			"round", s.Round,
			"score", s.Score)
		stage = next
	}
	return nil
}

func (e *Executor) notify(message string, percent int) {
	if e.progressCallback != nil {
		e.progressCallback(message, percent)
	}
}
