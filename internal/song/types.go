// Package song holds the pipeline state for one song generation run and the
// pure text helpers the stages share.
//
// Nothing in this package performs I/O. [State] is owned by exactly one
// orchestrator invocation; [Resources] is a read-only snapshot built before
// the first stage runs.
package song

import (
	"encoding/json"
	"sort"
	"strings"
)

// FallbackTitle is used when neither an explicit song name nor a title marker
// in the lyrics is available.
const FallbackTitle = "Unknown Song"

// Params are the baseline song parameters handed to the draft and metadata
// stages.
type Params struct {
	Genre       string `json:"genre"`
	Persona     string `json:"persona"`
	Tempo       string `json:"tempo"`
	Key         string `json:"key"`
	Instruments string `json:"instruments"`
	Mood        string `json:"mood"`
}

// String renders the parameters as compact JSON with a fixed key order.
func (p Params) String() string {
	data, err := json.Marshal(p)
	if err != nil {
		return ""
	}
	return string(data)
}

// Resources is the immutable per-run snapshot of styles, tags, persona
// styles and default parameters.
type Resources struct {
	// Styles maps a catalog category (e.g. "core_styles") to its text blob.
	Styles map[string]string

	// Tags maps a tag file name to its contents.
	Tags map[string]string

	// PersonaStyles is the persona's style text, empty when no persona applies.
	PersonaStyles string

	DefaultParams Params
}

// StylesText renders Styles for prompt inclusion with keys in sorted order.
func (r Resources) StylesText() string {
	return formatSorted(r.Styles)
}

// TagsText renders Tags for prompt inclusion with keys in sorted order.
func (r Resources) TagsText() string {
	return formatSorted(r.Tags)
}

func formatSorted(m map[string]string) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(k)
		b.WriteString(":\n")
		b.WriteString(m[k])
	}
	return b.String()
}

// Metadata is the render metadata produced by the metadata stage.
type Metadata struct {
	Description         string   `json:"description"`
	SunoStyles          []string `json:"suno_styles"`
	SunoExcludeStyles   []string `json:"suno_exclude_styles"`
	TargetAudience      string   `json:"target_audience"`
	CommercialPotential string   `json:"commercial_potential"`
}

// State is the record threaded through every stage of one run.
//
// Inputs are set once by the orchestrator. Round never decreases; Score is
// meaningful only after the first review round.
type State struct {
	UserInput   string
	SongName    string
	PersonaName string
	Style       string
	UseLocal    bool

	Resources Resources

	Lyrics   string
	Feedback string

	Score          float64
	Round          int
	MaxRounds      int
	ScoreThreshold float64

	PreflightPassed bool
	PreflightIssues []string

	Metadata Metadata

	Filename string
	AlbumArt string
}

// Title returns the song title for finalize stages.
func (s *State) Title() string {
	return ExtractTitle(s.Lyrics, s.SongName)
}
