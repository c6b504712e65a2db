package song

import (
	"regexp"
	"strings"
)

const titleMarker = "## Song Title"

// EnhanceInput prefixes the user's request with the song title and appends
// the optional style hint.
func EnhanceInput(userInput, songName, style string) string {
	enhanced := userInput
	if songName != "" {
		enhanced = "Song Title: " + songName + "\n\n" + enhanced
	}
	if style != "" {
		enhanced += "\n\nStyle: " + style
	}
	return enhanced
}

// ExtractTitle picks the title for a finished song.
//
// An explicit songName wins. Otherwise the text after the first
// "## Song Title" marker is used (a leading colon is dropped, and the next
// non-empty line is taken when the marker line carries nothing). When no
// title can be found, [FallbackTitle] is returned.
func ExtractTitle(lyrics, songName string) string {
	if name := strings.TrimSpace(songName); name != "" {
		return name
	}

	idx := strings.Index(lyrics, titleMarker)
	if idx < 0 {
		return FallbackTitle
	}

	rest := lyrics[idx+len(titleMarker):]
	line, remainder, _ := strings.Cut(rest, "\n")
	title := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), ":"))
	if title != "" {
		return title
	}

	for _, next := range strings.Split(remainder, "\n") {
		next = strings.TrimSpace(next)
		if next == "" {
			continue
		}
		if strings.HasPrefix(next, "#") || strings.HasPrefix(next, "[") {
			break
		}
		return next
	}
	return FallbackTitle
}

// ParsePersona resolves the persona name for a run.
//
// An explicit persona wins. Otherwise a "persona:<name>" token anywhere in
// the user input (case-insensitive marker) supplies it. Returns "" when
// neither is present.
func ParsePersona(userInput, explicit string) string {
	if explicit != "" {
		return explicit
	}

	idx := strings.Index(strings.ToLower(userInput), "persona:")
	if idx < 0 {
		return ""
	}

	rest := strings.TrimLeft(userInput[idx+len("persona:"):], " \t")
	if end := strings.IndexAny(rest, " \t\n"); end >= 0 {
		rest = rest[:end]
	}
	return strings.TrimSpace(rest)
}

// PersonaTokens splits persona style text on newlines and commas into
// trimmed tokens, dropping empty ones.
func PersonaTokens(personaStyles string) []string {
	var tokens []string
	for _, line := range strings.Split(personaStyles, "\n") {
		for _, part := range strings.Split(line, ",") {
			if token := strings.TrimSpace(part); token != "" {
				tokens = append(tokens, token)
			}
		}
	}
	return tokens
}

// MergeUnique concatenates lists, keeping the first occurrence of each
// value and dropping empty strings.
func MergeUnique(lists ...[]string) []string {
	seen := make(map[string]bool)
	merged := []string{}
	for _, list := range lists {
		for _, v := range list {
			if v == "" || seen[v] {
				continue
			}
			seen[v] = true
			merged = append(merged, v)
		}
	}
	return merged
}

var (
	styleTagPattern  = regexp.MustCompile(`\[[^\]\n]*\]`)
	blankRunsPattern = regexp.MustCompile(`\n{3,}`)
)

// StripStyleTags removes bracketed section and style tags such as
// "[Verse 1]" or "[whispered]" and collapses the blank lines they leave.
func StripStyleTags(lyrics string) string {
	stripped := styleTagPattern.ReplaceAllString(lyrics, "")

	lines := strings.Split(stripped, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}

	cleaned := strings.Join(lines, "\n")
	cleaned = blankRunsPattern.ReplaceAllString(cleaned, "\n\n")
	return strings.TrimSpace(cleaned)
}
