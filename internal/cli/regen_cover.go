package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"songsmith/internal/library"
)

func newRegenCoverCommand(app *App) *cobra.Command {
	var songID int64

	cmd := &cobra.Command{
		Use:   "regen-cover <song-file>",
		Short: "Regenerate album artwork for a saved song",
		Long: `Regenerate album artwork from a saved song file. The title and the
original user prompt are read back from the file.

Example:
  songsmith regen-cover songs/20260101_Night_Drive.md --song-id 12`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if app.Art == nil {
				return errors.New("album artwork is unavailable: enable art and set llm.api_key")
			}

			title, prompt, err := library.ArtDetails(args[0])
			if err != nil {
				return err
			}
			if prompt == "" {
				prompt = title
			}

			path, err := app.Art.Generate(cmd.Context(), title, prompt)
			if err != nil {
				app.Printer.Error(fmt.Sprintf("Failed to regenerate artwork for %q", title))
				return NewExitError(ExitFailure)
			}

			if songID > 0 {
				if err := app.Library.UpdateAlbumArt(songID, path); err != nil {
					return err
				}
			}
			app.Printer.Success("Album artwork saved to " + path)
			return nil
		},
	}

	cmd.Flags().Int64Var(&songID, "song-id", 0, "library song to attach the new artwork to")
	return cmd
}
