// Package library writes finished songs to Markdown files and reads them
// back.
//
// A song file carries the title, the metadata a Suno render needs, the
// default song parameters and the user's original prompt, followed by the
// lyrics. Files are named <YYYYMMDD>_<Title_With_Underscores>.md.
package library

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"
	"time"

	"songsmith/internal/config"
	"songsmith/internal/song"
)

const (
	userPromptMarker = "- **User Prompt**:"
	lyricsHeader     = "### Song Lyrics"
)

var songTemplate = template.Must(template.New("song").Parse(`
## {{.Title}}
### {{.Description}}

## Suno Styles
{{.Styles}}

## Suno Exclude-styles
{{.ExcludeStyles}}

## Additional Metadata
- **Emotional Arc**: {{.Params.Mood}}
- **Target Audience**: {{.TargetAudience}}
- **Commercial Potential**: {{.CommercialPotential}}
- **Technical Notes**: BPM: {{.Params.Tempo}}, Key: {{.Params.Key}}, Instruments: {{.Params.Instruments}}
- **User Prompt**: {{.UserInput}}

### Song Lyrics:
{{.Lyrics}}
`))

type songView struct {
	Title               string
	Description         string
	Styles              string
	ExcludeStyles       string
	TargetAudience      string
	CommercialPotential string
	Params              song.Params
	UserInput           string
	Lyrics              string
}

// Render formats a song as Markdown.
func Render(title, userInput, lyrics string, params song.Params, metadata song.Metadata) (string, error) {
	exclude := strings.Join(metadata.SunoExcludeStyles, ", ")
	if exclude == "" {
		exclude = "None"
	}

	var buf bytes.Buffer
	err := songTemplate.Execute(&buf, songView{
		Title:               title,
		Description:         metadata.Description,
		Styles:              strings.Join(metadata.SunoStyles, ", "),
		ExcludeStyles:       exclude,
		TargetAudience:      metadata.TargetAudience,
		CommercialPotential: metadata.CommercialPotential,
		Params:              params,
		UserInput:           userInput,
		Lyrics:              lyrics,
	})
	if err != nil {
		return "", fmt.Errorf("failed to render song: %w", err)
	}
	return buf.String(), nil
}

// FileName returns the file name for a song saved on date.
func FileName(title string, date time.Time) string {
	return date.Format("20060102") + "_" + slug(title) + ".md"
}

// CoverName returns the artwork file name for a song title.
func CoverName(title string) string {
	return slug(title) + "_cover.png"
}

func slug(title string) string {
	s := strings.ReplaceAll(strings.TrimSpace(title), " ", "_")
	return strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == 0 {
			return '-'
		}
		return r
	}, s)
}

// FileSink saves songs as Markdown files in a directory.
type FileSink struct {
	dir string
	now func() time.Time
}

// NewFileSink creates a sink writing into dir, creating it on first save.
func NewFileSink(dir string) *FileSink {
	return &FileSink{dir: dir, now: time.Now}
}

// Dir returns the directory the sink writes to.
func (f *FileSink) Dir() string {
	return f.dir
}

// Save renders the song and writes it, returning the file path. A song
// saved twice on the same day overwrites the earlier file.
func (f *FileSink) Save(title, userInput, lyrics string, params song.Params, metadata song.Metadata) (string, error) {
	content, err := Render(title, userInput, lyrics, params, metadata)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(f.dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create songs dir: %w", err)
	}

	path := filepath.Join(f.dir, FileName(title, f.now()))
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return "", fmt.Errorf("failed to write song: %w", err)
	}
	return path, nil
}

// ArtDetails reads the title and user prompt back from a saved song file.
//
// The title is the first "## " heading. The prompt is the text after the
// User Prompt marker up to the lyrics header, with whitespace collapsed; it is
// empty when the marker is missing.
func ArtDetails(path string) (title, userPrompt string, err error) {
	expanded := config.ExpandHome(path)
	data, err := os.ReadFile(expanded)
	if err != nil {
		if os.IsNotExist(err) {
			return "", "", fmt.Errorf("song file not found: %s", path)
		}
		return "", "", fmt.Errorf("failed to read song file: %w", err)
	}
	content := string(data)

	for _, line := range strings.Split(content, "\n") {
		if strings.HasPrefix(line, "## ") {
			title = strings.TrimSpace(line[3:])
			break
		}
	}
	if title == "" {
		return "", "", fmt.Errorf("could not extract song title from %s", path)
	}

	if idx := strings.Index(content, userPromptMarker); idx >= 0 {
		rest := content[idx+len(userPromptMarker):]
		end := strings.Index(rest, lyricsHeader)
		if end < 0 {
			end = strings.Index(rest, "\n##")
		}
		if end < 0 {
			end = len(rest)
		}
		userPrompt = strings.Join(strings.Fields(rest[:end]), " ")
	}

	return title, userPrompt, nil
}
