package resources

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"songsmith/internal/config"
	"songsmith/internal/song"
)

// ResourceError reports a mandatory resource that could not be loaded.
// A run that hits it stops before any completion call.
type ResourceError struct {
	Path string
	Err  error
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("resource %s: %v", e.Path, e.Err)
}

func (e *ResourceError) Unwrap() error {
	return e.Err
}

// Provider loads a [song.Resources] bundle from the filesystem.
//
// Create with [NewProvider]. The style catalog is mandatory; a missing tags
// directory or persona file yields empty values.
type Provider struct {
	stylesPath  string
	tagsDir     string
	personasDir string
	defaults    song.Params
}

// NewProvider creates a Provider rooted at the configured resource paths.
func NewProvider(paths config.PathsConfig, defaults config.SongDefaults) *Provider {
	return &Provider{
		stylesPath:  paths.Styles,
		tagsDir:     paths.Tags,
		personasDir: paths.Personas,
		defaults: song.Params{
			Genre:       defaults.Genre,
			Persona:     defaults.Persona,
			Tempo:       defaults.Tempo,
			Key:         defaults.Key,
			Instruments: defaults.Instruments,
			Mood:        defaults.Mood,
		},
	}
}

// Load builds the resource bundle for one run.
//
// personaName may be empty, a persona slug ("Midnight Crooner" resolves to
// personas/midnight_crooner.md), or a path to a persona file. Returns a
// *[ResourceError] when the style catalog cannot be read.
func (p *Provider) Load(personaName string) (song.Resources, error) {
	catalog, err := ReadCatalogFromFile(p.stylesPath)
	if err != nil {
		return song.Resources{}, &ResourceError{Path: p.stylesPath, Err: err}
	}

	tags, err := ReadTags(p.tagsDir)
	if err != nil {
		return song.Resources{}, &ResourceError{Path: p.tagsDir, Err: err}
	}

	var personaStyles string
	if personaName != "" {
		if file := ResolvePersonaFile(p.personasDir, personaName); file != "" {
			personaStyles, err = ReadPersonaStyles(file)
			if err != nil {
				return song.Resources{}, &ResourceError{Path: file, Err: err}
			}
		}
	}

	return song.Resources{
		Styles:        catalog.Styles,
		Tags:          tags,
		PersonaStyles: personaStyles,
		DefaultParams: p.defaults,
	}, nil
}

// ReadTags reads every *.txt file in dir into a map keyed by file name.
// A missing directory yields an empty map.
func ReadTags(dir string) (map[string]string, error) {
	tags := make(map[string]string)

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return tags, nil
		}
		return nil, fmt.Errorf("failed to list tags: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".txt") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read tag file %s: %w", entry.Name(), err)
		}
		tags[entry.Name()] = string(data)
	}

	return tags, nil
}

// ResolvePersonaFile maps a persona name or path to an existing file.
//
// Direct paths (with optional "~" expansion) are used as-is. Inputs that
// look like paths but do not exist resolve to "". Anything else is turned
// into a slug under dir. Returns "" when nothing matches.
func ResolvePersonaFile(dir, persona string) string {
	if persona == "" {
		return ""
	}

	expanded := config.ExpandHome(persona)
	if isFile(expanded) {
		return expanded
	}
	if filepath.IsAbs(expanded) || strings.ContainsRune(persona, os.PathSeparator) {
		return ""
	}

	slug := strings.ReplaceAll(strings.ToLower(persona), " ", "_") + ".md"
	candidate := filepath.Join(dir, slug)
	if isFile(candidate) {
		return candidate
	}
	return ""
}

// ReadPersonaStyles returns the text following the "Persona styles" heading
// up to the next blank line. Files without the heading yield "".
func ReadPersonaStyles(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read persona: %w", err)
	}

	return ExtractPersonaStyles(string(data)), nil
}

// ExtractPersonaStyles pulls the persona styles block out of a persona
// description.
func ExtractPersonaStyles(content string) string {
	const marker = "Persona styles"

	idx := strings.Index(content, marker)
	if idx < 0 {
		return ""
	}

	rest := content[idx+len(marker):]
	if end := strings.Index(rest, "\n\n"); end >= 0 {
		rest = rest[:end]
	}
	rest = strings.TrimSpace(rest)
	return strings.TrimSpace(strings.TrimPrefix(rest, ":"))
}

// ListPersonas returns the persona slugs available in dir, sorted.
func ListPersonas(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list personas: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".md" {
			continue
		}
		names = append(names, strings.TrimSuffix(entry.Name(), ".md"))
	}
	sort.Strings(names)
	return names, nil
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
