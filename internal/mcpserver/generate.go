package mcpserver

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"songsmith/internal/lifecycle"
)

// GenerateTool handles the generate_song MCP tool.
type GenerateTool struct {
	gen Generator
}

// NewGenerateTool creates a GenerateTool.
func NewGenerateTool(gen Generator) *GenerateTool {
	return &GenerateTool{gen: gen}
}

// Definition returns the MCP tool definition for registration.
func (t *GenerateTool) Definition() mcp.Tool {
	return mcp.NewTool("generate_song",
		mcp.WithDescription(
			"Start generating a song from a prompt. Returns the song id at once; "+
				"the pipeline runs in the background. Poll song_status for progress.",
		),
		mcp.WithString("prompt",
			mcp.Required(),
			mcp.Description("What the song should be about. May contain persona:<name>."),
		),
		mcp.WithString("song_name",
			mcp.Description("Title to use instead of the one the draft invents."),
		),
		mcp.WithString("persona",
			mcp.Description("Persona whose styles shape the song. See list_personas."),
		),
		mcp.WithString("style",
			mcp.Description("Optional style hint, e.g. 'dark synthwave'."),
		),
		mcp.WithBoolean("use_local",
			mcp.Description("Use the local model endpoint. Skips album artwork."),
		),
	)
}

// Handle processes the generate_song tool call.
func (t *GenerateTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	prompt := req.GetString("prompt", "")
	if strings.TrimSpace(prompt) == "" {
		return mcp.NewToolResultError("'prompt' is required: describe the song"), nil
	}

	id, err := t.gen.Start(ctx, lifecycle.Request{
		UserInput: prompt,
		SongName:  strings.TrimSpace(req.GetString("song_name", "")),
		Persona:   strings.TrimSpace(req.GetString("persona", "")),
		Style:     strings.TrimSpace(req.GetString("style", "")),
		UseLocal:  boolArg(req, "use_local", false),
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to start generation: %v", err)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf(
		"Generation started.\n\n**Song ID:** %d\n\nCall song_status with song_id %d to follow progress.", id, id,
	)), nil
}

// CancelTool handles the cancel_generation MCP tool.
type CancelTool struct {
	gen Generator
}

// NewCancelTool creates a CancelTool.
func NewCancelTool(gen Generator) *CancelTool {
	return &CancelTool{gen: gen}
}

// Definition returns the MCP tool definition for registration.
func (t *CancelTool) Definition() mcp.Tool {
	return mcp.NewTool("cancel_generation",
		mcp.WithDescription("Cancel an in-flight song generation."),
		mcp.WithNumber("song_id",
			mcp.Required(),
			mcp.Description("Song id returned by generate_song"),
		),
	)
}

// Handle processes the cancel_generation tool call.
func (t *CancelTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, bad := songIDArg(req)
	if bad != nil {
		return bad, nil
	}
	if !t.gen.Cancel(id) {
		return mcp.NewToolResultError(fmt.Sprintf("song %d is not generating", id)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Cancellation requested for song %d", id)), nil
}
