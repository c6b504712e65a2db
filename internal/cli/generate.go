package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"songsmith/internal/config"
	"songsmith/internal/lifecycle"
	"songsmith/internal/status"
)

type generateOptions struct {
	promptFile string
	songName   string
	persona    string
	style      string
	useLocal   bool
	dryRun     bool
}

func newGenerateCommand(app *App) *cobra.Command {
	opts := &generateOptions{}

	cmd := &cobra.Command{
		Use:   "generate [prompt]",
		Short: "Generate a song from a prompt",
		Long: `Generate a song: draft, parallel review rounds, critic, preflight checks,
metadata, album artwork and save. Progress is printed as each stage finishes.

The prompt may name a persona with persona:<name>. Press Ctrl-C to cancel.

Examples:
  songsmith generate "a song about leaving a small town"
  songsmith generate --persona night_owl --style "dark synthwave" "city lights"
  songsmith generate --prompt-file idea.txt --local`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt, err := readPrompt(args, opts.promptFile)
			if err != nil {
				return err
			}

			if opts.dryRun {
				app.Printer.Header("Planned steps")
				app.Printer.Steps(lifecycle.PlannedSteps(opts.useLocal, app.Config.Review.MaxRounds))
				return nil
			}

			return runGenerate(cmd.Context(), app, lifecycle.Request{
				UserInput: prompt,
				SongName:  opts.songName,
				Persona:   opts.persona,
				Style:     opts.style,
				UseLocal:  opts.useLocal,
			})
		},
	}

	cmd.Flags().StringVarP(&opts.promptFile, "prompt-file", "f", "", "read the prompt from a file")
	cmd.Flags().StringVarP(&opts.songName, "name", "n", "", "song title to use")
	cmd.Flags().StringVarP(&opts.persona, "persona", "p", "", "persona name or persona file path")
	cmd.Flags().StringVarP(&opts.style, "style", "s", "", "style hint for the draft")
	cmd.Flags().BoolVar(&opts.useLocal, "local", false, "use the local model endpoint and skip artwork")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "print the planned steps without generating")

	return cmd
}

// readPrompt returns the prompt from the argument or the prompt file. The
// file wins when both are given.
func readPrompt(args []string, promptFile string) (string, error) {
	if promptFile != "" {
		data, err := os.ReadFile(config.ExpandHome(promptFile))
		if err != nil {
			return "", fmt.Errorf("failed to read prompt file: %w", err)
		}
		if prompt := strings.TrimSpace(string(data)); prompt != "" {
			return prompt, nil
		}
		return "", fmt.Errorf("prompt file %s is empty", promptFile)
	}
	if len(args) == 1 && strings.TrimSpace(args[0]) != "" {
		return strings.TrimSpace(args[0]), nil
	}
	return "", fmt.Errorf("a prompt is required: pass it as an argument or with --prompt-file")
}

func runGenerate(ctx context.Context, app *App, req lifecycle.Request) error {
	id, err := app.Generator.Start(ctx, req)
	if err != nil {
		return err
	}
	app.Logger.Debug("generation started", "song_id", id)

	snap, err := follow(ctx, app, id)
	if err != nil {
		return err
	}

	switch snap.Status {
	case status.StatusCompleted:
		state, err := app.Generator.Result(id)
		if err != nil {
			return err
		}
		app.Printer.Success(fmt.Sprintf("Song %d generated", id))
		app.Printer.SongSummary(state)
		app.Printer.Lyrics(state.Lyrics)
		return nil
	case status.StatusCancelled:
		app.Printer.Warning(fmt.Sprintf("Song %d cancelled", id))
		return NewExitError(ExitCancelled)
	default:
		app.Printer.Error(fmt.Sprintf("Song %d failed: %s", id, snap.Error))
		return NewExitError(ExitFailure)
	}
}

// follow prints new progress lines until the run ends. When ctx is done the
// run is cancelled and follow keeps waiting for its final status.
func follow(ctx context.Context, app *App, id int64) (status.Snapshot, error) {
	type waitResult struct {
		snap status.Snapshot
		err  error
	}
	done := make(chan waitResult, 1)
	go func() {
		snap, err := app.Generator.Wait(context.WithoutCancel(ctx), id)
		done <- waitResult{snap, err}
	}()

	printed := 0
	flush := func() {
		snap, ok := app.Generator.Status(id)
		if !ok {
			return
		}
		for _, entry := range snap.Logs[min(printed, len(snap.Logs)):] {
			app.Printer.Progress(entry.Message, entry.Percent)
		}
		printed = len(snap.Logs)
	}

	ticker := time.NewTicker(app.pollInterval())
	defer ticker.Stop()

	interrupted := ctx.Done()
	for {
		select {
		case res := <-done:
			flush()
			return res.snap, res.err
		case <-ticker.C:
			flush()
		case <-interrupted:
			interrupted = nil
			if app.Generator.Cancel(id) {
				app.Printer.Warning("Cancelling generation...")
			}
		}
	}
}
