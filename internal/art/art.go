// Package art generates album artwork with an OpenAI-compatible image API.
package art

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	openai "github.com/sashabaranov/go-openai"

	"songsmith/internal/config"
	"songsmith/internal/library"
)

// ErrNoAPIKey is returned when artwork is enabled but no OpenAI key is set.
var ErrNoAPIKey = errors.New("album art requires OPENAI_API_KEY")

// Prompt returns the image prompt for a song.
func Prompt(title, theme string) string {
	return fmt.Sprintf("Album cover for song '%s' with theme %s. "+
		"Do not include any text, lettering, or typography on the image.", title, theme)
}

// Generator writes album covers into a directory.
type Generator struct {
	client *openai.Client
	dir    string
	model  string
	size   string
}

// NewGenerator creates a Generator that saves covers into dir.
//
// Image calls go to the OpenAI endpoint configured in llm (APIKey and
// BaseURL); OpenRouter keys are not used since OpenRouter serves no image
// models.
func NewGenerator(cfg config.ArtConfig, llm config.LLMConfig, dir string) (*Generator, error) {
	if llm.APIKey == "" {
		return nil, ErrNoAPIKey
	}

	clientCfg := openai.DefaultConfig(llm.APIKey)
	if llm.BaseURL != "" {
		clientCfg.BaseURL = llm.BaseURL
	}

	return &Generator{
		client: openai.NewClientWithConfig(clientCfg),
		dir:    dir,
		model:  cfg.Model,
		size:   cfg.Size,
	}, nil
}

// Generate requests one image for the song and writes it as
// <dir>/<Title_With_Underscores>_cover.png, returning that path.
func (g *Generator) Generate(ctx context.Context, title, theme string) (string, error) {
	resp, err := g.client.CreateImage(ctx, openai.ImageRequest{
		Prompt:         Prompt(title, theme),
		Model:          g.model,
		N:              1,
		Size:           g.size,
		ResponseFormat: openai.CreateImageResponseFormatB64JSON,
	})
	if err != nil {
		return "", fmt.Errorf("image request failed: %w", err)
	}
	if len(resp.Data) == 0 || resp.Data[0].B64JSON == "" {
		return "", errors.New("image response carried no data")
	}

	img, err := base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
	if err != nil {
		return "", fmt.Errorf("failed to decode image: %w", err)
	}

	if err := os.MkdirAll(g.dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create artwork dir: %w", err)
	}
	path := filepath.Join(g.dir, library.CoverName(title))
	if err := os.WriteFile(path, img, 0644); err != nil {
		return "", fmt.Errorf("failed to write artwork: %w", err)
	}
	return path, nil
}
