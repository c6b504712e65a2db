// Package mcpserver exposes song generation as MCP tools.
//
// The server is a thin composition root: each tool depends on the narrow
// [Generator] and [Library] interfaces and renders plain text or JSON
// results. Generations run in the background; clients poll song_status.
package mcpserver

import (
	"context"

	"github.com/mark3labs/mcp-go/server"

	"songsmith/internal/lifecycle"
	"songsmith/internal/status"
	"songsmith/internal/store"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Generator starts and observes background generations. The
// [generation.Manager] type implements this interface.
type Generator interface {
	Start(ctx context.Context, req lifecycle.Request) (int64, error)
	Status(songID int64) (status.Snapshot, bool)
	Cancel(songID int64) bool
}

// Library reads the song library. The [store.Store] type implements this
// interface.
type Library interface {
	GetSong(id int64) (*store.Song, error)
	ListSongs(status string, limit int) ([]store.Song, error)
	GetSession(songID int64) (*store.Session, error)
}

// Deps are the components the tools are built from. Library may be nil, in
// which case only in-memory progress is available.
type Deps struct {
	Generator   Generator
	Library     Library
	PersonasDir string
}

// New creates the MCP server with every tool registered.
func New(deps Deps) *server.MCPServer {
	s := server.NewMCPServer(
		"songsmith",
		Version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(serverInstructions()),
	)

	generate := NewGenerateTool(deps.Generator)
	s.AddTool(generate.Definition(), generate.Handle)

	statusTool := NewStatusTool(deps.Generator, deps.Library)
	s.AddTool(statusTool.Definition(), statusTool.Handle)

	cancel := NewCancelTool(deps.Generator)
	s.AddTool(cancel.Definition(), cancel.Handle)

	if deps.Library != nil {
		get := NewGetSongTool(deps.Library)
		s.AddTool(get.Definition(), get.Handle)

		list := NewListSongsTool(deps.Library)
		s.AddTool(list.Definition(), list.Handle)
	}

	personas := NewListPersonasTool(deps.PersonasDir)
	s.AddTool(personas.Definition(), personas.Handle)

	return s
}

func serverInstructions() string {
	return "songsmith writes song lyrics through a draft, review, critic and preflight pipeline. " +
		"Call generate_song to start a run; it returns a song id immediately. " +
		"Poll song_status with that id until the status is completed, failed or cancelled, " +
		"then call get_song for the lyrics and metadata."
}
