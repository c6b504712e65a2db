package cli

import (
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"songsmith/internal/mcpserver"
)

// serveStdio is replaced in tests.
var serveStdio = func(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

func newServeCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve songsmith as MCP tools over stdio",
		Long: `Start an MCP server on stdin/stdout exposing generate_song, song_status,
get_song, list_songs, cancel_generation and list_personas.

Logs go to stderr; stdout carries only the protocol.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s := mcpserver.New(mcpserver.Deps{
				Generator:   app.Generator,
				Library:     app.Library,
				PersonasDir: app.Config.Paths.Personas,
			})
			app.Logger.Info("mcp server listening on stdio")
			return serveStdio(s)
		},
	}
}
