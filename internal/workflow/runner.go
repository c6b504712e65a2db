// Package workflow implements the stages of the song pipeline.
//
// Each stage reads a [song.State], makes one or more calls to an
// [llm.Completer], and writes its results back to the state only after every
// call succeeded. Stages never pick their successor; that is the router's job.
//
// Key types:
//   - [Runner] executes stages for one run
//   - [ArtGenerator] and [SongSink] are the finalize collaborators
//   - [ParseStructured] and [ParseOrFallback] handle JSON answers from the
//     scoring, triage and metadata stages
package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"songsmith/internal/config"
	"songsmith/internal/llm"
	"songsmith/internal/router"
	"songsmith/internal/song"
)

// ArtGenerator produces album artwork for a finished song.
//
// Generate returns the location of the image. Errors never abort a run; the
// album art stage degrades to "no artwork".
type ArtGenerator interface {
	Generate(ctx context.Context, title, theme string) (string, error)
}

// SongSink persists a finished song and returns where it was stored.
type SongSink interface {
	Save(title, userInput, lyrics string, params song.Params, metadata song.Metadata) (string, error)
}

// Progress is the notification a stage reports when it finishes.
type Progress struct {
	Message string

	// Percent is the overall completion estimate, or -1 for none.
	Percent int
}

// Runner executes pipeline stages against one completer.
//
// A Runner holds no per-run state and is safe to share between runs that use
// the same completer. Create with [NewRunner].
type Runner struct {
	completer llm.Completer
	cfg       *config.Config
	art       ArtGenerator
	sink      SongSink
	logger    *slog.Logger
}

// NewRunner creates a Runner. art and sink may be nil: a nil art generator
// skips artwork and a nil sink skips saving.
func NewRunner(completer llm.Completer, cfg *config.Config, art ArtGenerator, sink SongSink, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Runner{
		completer: completer,
		cfg:       cfg,
		art:       art,
		sink:      sink,
		logger:    logger,
	}
}

// RunStage executes one stage and returns its progress report.
//
// Errors are wrapped with the stage name, so a completion failure during a
// review round reads "review: completion failed: ..." and still matches
// *[llm.CompletionError] through errors.As.
func (r *Runner) RunStage(ctx context.Context, stage router.Stage, s *song.State) (Progress, error) {
	var (
		p   Progress
		err error
	)

	switch stage {
	case router.StageDraft:
		p, err = r.Draft(ctx, s)
	case router.StageReview:
		p, err = r.Review(ctx, s)
	case router.StageCritic:
		p, err = r.Critic(ctx, s)
	case router.StagePreflight:
		p, err = r.Preflight(ctx, s)
	case router.StageTargetedRevise:
		p, err = r.TargetedRevise(ctx, s)
	case router.StageMetadata:
		p, err = r.Metadata(ctx, s)
	case router.StageAlbumArt:
		p, err = r.AlbumArt(ctx, s)
	case router.StageSave:
		p, err = r.Save(ctx, s)
	default:
		return Progress{}, fmt.Errorf("%w: %q", router.ErrUnknownStage, stage)
	}

	if err != nil {
		return Progress{}, fmt.Errorf("%s: %w", stage, err)
	}
	return p, nil
}

// complete expands the named prompt and sends it to the completer.
func (r *Runner) complete(ctx context.Context, name string, data config.PromptData) (string, error) {
	prompt, err := r.cfg.GetPrompt(name, data)
	if err != nil {
		return "", err
	}

	start := time.Now()
	text, err := r.completer.Complete(ctx, prompt)
	if err != nil {
		return "", err
	}

	r.logger.Debug("completion finished",
		"prompt", name,
		"prompt_chars", len(prompt),
		"response_chars", len(text),
		"duration", time.Since(start))
	return text, nil
}

// revise folds feedback into lyrics with one call. Review, critic and
// targeted fixes all share it.
func (r *Runner) revise(ctx context.Context, lyrics, feedback string) (string, error) {
	return r.complete(ctx, config.PromptRevise, config.PromptData{
		Lyrics:   lyrics,
		Feedback: feedback,
	})
}
