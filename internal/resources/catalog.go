// Package resources loads the on-disk inputs of a generation run: the style
// catalog, tag files, and persona descriptions.
//
// The style catalog (default styles/styles.json) may be written in JSON or
// YAML. Its list-valued categories are joined line by line:
//
//	artist_styles:   ["Artist A: ...", "Artist B: ..."]
//	core_styles:     ["anthemic rock", "dream pop"]
//	example_styles:  ["..."]
//	suno_genres:     {"rock": ["indie rock", "garage"], ...}
//
// suno_genres is kept as compact JSON so the model sees the original
// structure.
package resources

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Catalog categories joined line by line into [Catalog.Styles].
var listCategories = []string{"artist_styles", "core_styles", "example_styles"}

const genresCategory = "suno_genres"

// Catalog is a parsed style catalog.
type Catalog struct {
	// Styles maps each category to the text handed to the model.
	Styles map[string]string
}

// ReadCatalogFromFile reads and parses a style catalog file.
func ReadCatalogFromFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read style catalog: %w", err)
	}

	return ReadCatalogFromBytes(data)
}

// ReadCatalogFromBytes parses a style catalog from JSON or YAML bytes.
func ReadCatalogFromBytes(data []byte) (*Catalog, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse style catalog: %w", err)
	}

	styles := make(map[string]string, len(listCategories)+1)
	for _, key := range listCategories {
		styles[key] = joinEntries(raw[key])
	}

	genres := raw[genresCategory]
	if genres == nil {
		genres = map[string]any{}
	}
	encoded, err := json.Marshal(genres)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", genresCategory, err)
	}
	styles[genresCategory] = string(encoded)

	return &Catalog{Styles: styles}, nil
}

func joinEntries(v any) string {
	switch entries := v.(type) {
	case nil:
		return ""
	case []any:
		lines := make([]string, 0, len(entries))
		for _, e := range entries {
			lines = append(lines, fmt.Sprint(e))
		}
		return strings.Join(lines, "\n")
	default:
		return fmt.Sprint(entries)
	}
}
