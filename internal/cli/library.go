package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"songsmith/internal/resources"
	"songsmith/internal/status"
	"songsmith/internal/store"
)

func newHistoryCommand(app *App) *cobra.Command {
	var (
		filter string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List generated songs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			songs, err := app.Library.ListSongs(filter, limit)
			if err != nil {
				return err
			}
			app.Printer.History(songs)
			return nil
		},
	}

	cmd.Flags().StringVar(&filter, "status", "", "only songs with this status (pending, generating, completed, failed, cancelled)")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of songs")
	return cmd
}

func newShowCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show <song-id>",
		Short: "Show a song's lyrics, metadata and files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseSongID(args[0])
			if err != nil {
				return err
			}

			s, err := app.Library.GetSong(id)
			if err != nil {
				return err
			}
			app.Printer.Song(s)

			files, err := app.Library.SongFiles(id)
			if err != nil {
				return err
			}
			for _, f := range files {
				app.Printer.Progress(fmt.Sprintf("%s: %s", f.FileType, f.FilePath), -1)
			}
			return nil
		},
	}
}

func newStatusCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "status <song-id>",
		Short: "Show the progress of a generation",
		Long: `Show the progress of a generation, including one running in another
songsmith process.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseSongID(args[0])
			if err != nil {
				return err
			}

			snap, err := lookupSnapshot(app, id)
			if err != nil {
				return err
			}
			app.Printer.Snapshot(snap)
			return nil
		},
	}
}

// lookupSnapshot finds a run's progress: live runs of this process first,
// then the mirrored snapshot file, then the library's session record.
func lookupSnapshot(app *App, id int64) (status.Snapshot, error) {
	if snap, ok := app.Generator.Status(id); ok {
		return snap, nil
	}
	if snap, err := status.ReadSnapshot(app.StatusDir, id); err == nil {
		return snap, nil
	}

	sess, err := app.Library.GetSession(id)
	if errors.Is(err, store.ErrNotFound) {
		return status.Snapshot{}, fmt.Errorf("no generation found for song %d", id)
	}
	if err != nil {
		return status.Snapshot{}, err
	}
	s, err := app.Library.GetSong(id)
	if err != nil {
		return status.Snapshot{}, err
	}
	return sessionSnapshot(s, sess), nil
}

func sessionSnapshot(s *store.Song, sess *store.Session) status.Snapshot {
	snap := status.Snapshot{
		SongID:       s.ID,
		SessionID:    sess.SessionID,
		Status:       status.Status(s.Status),
		Progress:     sess.ProgressPercentage,
		CurrentStage: sess.CurrentStage,
		Error:        s.ErrorMessage,
	}
	if s.Status == store.StatusPending {
		snap.Status = status.StatusQueued
	}
	// Logs are best effort; a malformed record still reports the status.
	_ = json.Unmarshal([]byte(sess.LogsJSON), &snap.Logs)
	return snap
}

func newPersonasCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "personas",
		Short: "List available personas",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			names, err := resources.ListPersonas(app.Config.Paths.Personas)
			if err != nil {
				return err
			}
			if len(names) == 0 {
				app.Printer.Warning("No personas found in " + app.Config.Paths.Personas)
				return nil
			}
			app.Printer.Steps(names)
			return nil
		},
	}
}

func parseSongID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid song id %q", arg)
	}
	return id, nil
}
