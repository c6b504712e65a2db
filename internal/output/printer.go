// Package output renders songsmith's human-facing terminal output.
//
// [Printer] formats progress lines, run summaries and the song library with
// lipgloss, and renders lyrics as markdown with glamour when enabled.
// Diagnostics go to the slog logger, never through Printer.
package output

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"songsmith/internal/config"
	"songsmith/internal/song"
	"songsmith/internal/status"
	"songsmith/internal/store"
)

// Printer writes formatted output to a writer.
type Printer struct {
	out      io.Writer
	markdown config.MarkdownConfig
}

// NewPrinter creates a Printer writing to stdout with markdown rendering
// disabled.
func NewPrinter() *Printer {
	return NewPrinterWithWriter(os.Stdout)
}

// NewPrinterWithWriter creates a Printer writing to w.
func NewPrinterWithWriter(w io.Writer) *Printer {
	return &Printer{out: w}
}

// SetMarkdown configures lyrics rendering.
func (p *Printer) SetMarkdown(cfg config.MarkdownConfig) {
	p.markdown = cfg
}

// Header prints a section header.
func (p *Printer) Header(title string) {
	fmt.Fprintln(p.out, headerStyle.Render(title))
}

// Steps prints a numbered plan.
func (p *Printer) Steps(steps []string) {
	for i, s := range steps {
		fmt.Fprintf(p.out, "%s %s\n", stepStyle.Render(fmt.Sprintf("%d.", i+1)), s)
	}
}

// Progress prints one progress line. A negative percent prints the message
// alone.
func (p *Printer) Progress(message string, percent int) {
	if percent < 0 {
		fmt.Fprintf(p.out, "       %s\n", message)
		return
	}
	fmt.Fprintf(p.out, "%s %s\n", percentStyle.Render(fmt.Sprintf("[%3d%%]", percent)), message)
}

// Success prints a success line.
func (p *Printer) Success(message string) {
	fmt.Fprintln(p.out, successStyle.Render("✓ "+message))
}

// Error prints an error line.
func (p *Printer) Error(message string) {
	fmt.Fprintln(p.out, errorStyle.Render("✗ "+message))
}

// Warning prints a warning line.
func (p *Printer) Warning(message string) {
	fmt.Fprintln(p.out, warnStyle.Render("! "+message))
}

// SongSummary prints the outcome of a finished run.
func (p *Printer) SongSummary(s *song.State) {
	rows := []string{
		field("Title", s.Title()),
		field("Score", fmt.Sprintf("%.2f", s.Score)),
		field("Rounds", fmt.Sprintf("%d/%d", s.Round, s.MaxRounds)),
		field("Preflight", preflightText(s)),
	}
	if len(s.Metadata.SunoStyles) > 0 {
		rows = append(rows, field("Styles", strings.Join(s.Metadata.SunoStyles, ", ")))
	}
	if s.Filename != "" {
		rows = append(rows, field("Saved", s.Filename))
	}
	if s.AlbumArt != "" {
		rows = append(rows, field("Artwork", s.AlbumArt))
	}
	fmt.Fprintln(p.out, summaryStyle.Render(strings.Join(rows, "\n")))
}

func preflightText(s *song.State) string {
	if s.PreflightPassed {
		return "passed"
	}
	return fmt.Sprintf("%d issue(s)", len(s.PreflightIssues))
}

func field(label, value string) string {
	return labelStyle.Render(label) + value
}

// Snapshot prints a progress snapshot of a run.
func (p *Printer) Snapshot(snap status.Snapshot) {
	fmt.Fprintln(p.out, field("Song", strconv.FormatInt(snap.SongID, 10)))
	fmt.Fprintln(p.out, field("Status", statusStyle(string(snap.Status)).Render(string(snap.Status))))
	fmt.Fprintln(p.out, field("Progress", fmt.Sprintf("%d%%", snap.Progress)))
	if snap.CurrentStage != "" {
		fmt.Fprintln(p.out, field("Stage", snap.CurrentStage))
	}
	if snap.Error != "" {
		fmt.Fprintln(p.out, field("Error", snap.Error))
	}
	for _, entry := range snap.Logs {
		p.Progress(entry.Message, entry.Percent)
	}
}

// History prints the song library as a table.
func (p *Printer) History(songs []store.Song) {
	if len(songs) == 0 {
		fmt.Fprintln(p.out, "No songs yet.")
		return
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("ID", "TITLE", "STATUS", "SCORE", "CREATED")
	for _, s := range songs {
		score := "-"
		if s.Score != nil {
			score = strconv.Itoa(*s.Score)
		}
		t.Row(strconv.FormatInt(s.ID, 10), s.Title, s.Status, score, s.CreatedAt)
	}
	fmt.Fprintln(p.out, t.Render())
}

// Song prints a stored song with its metadata and lyrics.
func (p *Printer) Song(s *store.Song) {
	p.Header(s.Title)
	fmt.Fprintln(p.out, field("Status", statusStyle(s.Status).Render(s.Status)))
	if s.Score != nil {
		fmt.Fprintln(p.out, field("Score", strconv.Itoa(*s.Score)))
	}
	if s.Persona != "" {
		fmt.Fprintln(p.out, field("Persona", s.Persona))
	}
	if s.ErrorMessage != "" {
		fmt.Fprintln(p.out, field("Error", s.ErrorMessage))
	}
	if md, err := s.Metadata(); err == nil && md.Description != "" {
		fmt.Fprintln(p.out, field("About", md.Description))
		if len(md.SunoStyles) > 0 {
			fmt.Fprintln(p.out, field("Styles", strings.Join(md.SunoStyles, ", ")))
		}
	}
	if s.AlbumArt != "" {
		fmt.Fprintln(p.out, field("Artwork", s.AlbumArt))
	}
	if s.Lyrics != "" {
		fmt.Fprintln(p.out)
		p.Lyrics(s.Lyrics)
	}
}

// Lyrics prints lyrics, rendered as markdown when enabled. Rendering
// failures fall back to the plain text.
func (p *Printer) Lyrics(lyrics string) {
	if !p.markdown.Enabled {
		fmt.Fprintln(p.out, lyrics)
		return
	}

	rendered, err := p.renderMarkdown(lyricsMarkdown(lyrics))
	if err != nil {
		fmt.Fprintln(p.out, lyrics)
		return
	}
	fmt.Fprint(p.out, rendered)
}

func (p *Printer) renderMarkdown(md string) (string, error) {
	style := p.markdown.Style
	if style == "" {
		style = "dark"
	}
	opts := []glamour.TermRendererOption{glamour.WithStandardStyle(style)}
	if p.markdown.WordWrap > 0 {
		opts = append(opts, glamour.WithWordWrap(p.markdown.WordWrap))
	}

	r, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return "", err
	}
	return r.Render(md)
}

// lyricsMarkdown keeps lyric lines apart: markdown would otherwise join
// consecutive lines into one paragraph.
func lyricsMarkdown(lyrics string) string {
	lines := strings.Split(lyrics, "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		lines[i] = strings.TrimRight(line, " ") + "  "
	}
	return strings.Join(lines, "\n")
}
