package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"songsmith/internal/resources"
	"songsmith/internal/status"
	"songsmith/internal/store"
)

// StatusTool handles the song_status MCP tool.
//
// Live runs are answered from the generator; runs started by an earlier
// process are answered from the library's session record.
type StatusTool struct {
	gen     Generator
	library Library
}

// NewStatusTool creates a StatusTool. library may be nil.
func NewStatusTool(gen Generator, library Library) *StatusTool {
	return &StatusTool{gen: gen, library: library}
}

// Definition returns the MCP tool definition for registration.
func (t *StatusTool) Definition() mcp.Tool {
	return mcp.NewTool("song_status",
		mcp.WithDescription("Report progress of a song generation: status, percent, current stage and log lines."),
		mcp.WithNumber("song_id",
			mcp.Required(),
			mcp.Description("Song id returned by generate_song"),
		),
	)
}

// Handle processes the song_status tool call.
func (t *StatusTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, bad := songIDArg(req)
	if bad != nil {
		return bad, nil
	}

	if snap, ok := t.gen.Status(id); ok {
		return mcp.NewToolResultText(formatSnapshot(snap)), nil
	}

	if t.library == nil {
		return mcp.NewToolResultError(fmt.Sprintf("unknown song %d", id)), nil
	}
	sess, err := t.library.GetSession(id)
	if errors.Is(err, store.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("unknown song %d", id)), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to load session: %v", err)), nil
	}
	return jsonResult(sess)
}

func formatSnapshot(snap status.Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Song %d\n\n", snap.SongID)
	fmt.Fprintf(&b, "**Status:** %s\n", snap.Status)
	fmt.Fprintf(&b, "**Progress:** %d%%\n", snap.Progress)
	if snap.CurrentStage != "" {
		fmt.Fprintf(&b, "**Stage:** %s\n", snap.CurrentStage)
	}
	if snap.Error != "" {
		fmt.Fprintf(&b, "**Error:** %s\n", snap.Error)
	}
	if len(snap.Logs) > 0 {
		b.WriteString("\n## Log\n\n")
		for _, entry := range snap.Logs {
			fmt.Fprintf(&b, "- [%d%%] %s\n", entry.Percent, entry.Message)
		}
	}
	return b.String()
}

// GetSongTool handles the get_song MCP tool.
type GetSongTool struct {
	library Library
}

// NewGetSongTool creates a GetSongTool.
func NewGetSongTool(library Library) *GetSongTool {
	return &GetSongTool{library: library}
}

// Definition returns the MCP tool definition for registration.
func (t *GetSongTool) Definition() mcp.Tool {
	return mcp.NewTool("get_song",
		mcp.WithDescription("Fetch a song from the library: lyrics, clean lyrics, metadata, score and artwork path."),
		mcp.WithNumber("song_id",
			mcp.Required(),
			mcp.Description("Song id"),
		),
	)
}

// Handle processes the get_song tool call.
func (t *GetSongTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, bad := songIDArg(req)
	if bad != nil {
		return bad, nil
	}

	s, err := t.library.GetSong(id)
	if errors.Is(err, store.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("unknown song %d", id)), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to load song: %v", err)), nil
	}
	return jsonResult(s)
}

// ListSongsTool handles the list_songs MCP tool.
type ListSongsTool struct {
	library Library
}

// NewListSongsTool creates a ListSongsTool.
func NewListSongsTool(library Library) *ListSongsTool {
	return &ListSongsTool{library: library}
}

// Definition returns the MCP tool definition for registration.
func (t *ListSongsTool) Definition() mcp.Tool {
	return mcp.NewTool("list_songs",
		mcp.WithDescription("List songs in the library, newest first."),
		mcp.WithString("status",
			mcp.Description("Filter by status: pending, generating, completed, failed, cancelled."),
			mcp.Enum(store.StatusPending, store.StatusGenerating, store.StatusCompleted, store.StatusFailed, store.StatusCancelled),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of songs (default 20)"),
		),
	)
}

// Handle processes the list_songs tool call.
func (t *ListSongsTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	songs, err := t.library.ListSongs(req.GetString("status", ""), intArg(req, "limit", 0))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list songs: %v", err)), nil
	}
	if len(songs) == 0 {
		return mcp.NewToolResultText("No songs found."), nil
	}

	var b strings.Builder
	for _, s := range songs {
		score := "-"
		if s.Score != nil {
			score = fmt.Sprint(*s.Score)
		}
		fmt.Fprintf(&b, "- %d: %s [%s] score %s\n", s.ID, s.Title, s.Status, score)
	}
	return mcp.NewToolResultText(b.String()), nil
}

// ListPersonasTool handles the list_personas MCP tool.
type ListPersonasTool struct {
	dir string
}

// NewListPersonasTool creates a ListPersonasTool reading dir.
func NewListPersonasTool(dir string) *ListPersonasTool {
	return &ListPersonasTool{dir: dir}
}

// Definition returns the MCP tool definition for registration.
func (t *ListPersonasTool) Definition() mcp.Tool {
	return mcp.NewTool("list_personas",
		mcp.WithDescription("List the personas available to generate_song."),
	)
}

// Handle processes the list_personas tool call.
func (t *ListPersonasTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	names, err := resources.ListPersonas(t.dir)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(names) == 0 {
		return mcp.NewToolResultText("No personas found."), nil
	}
	return mcp.NewToolResultText(strings.Join(names, "\n")), nil
}
