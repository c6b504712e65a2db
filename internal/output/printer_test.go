package output

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"songsmith/internal/config"
	"songsmith/internal/song"
	"songsmith/internal/status"
	"songsmith/internal/store"
)

func newTestPrinter() (*Printer, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	return NewPrinterWithWriter(buf), buf
}

func TestPrinter_Progress(t *testing.T) {
	p, buf := newTestPrinter()

	p.Progress("Draft generated", 25)
	p.Progress("Error: draft: boom", -1)

	out := buf.String()
	assert.Contains(t, out, "[ 25%] Draft generated")
	assert.Contains(t, out, "Error: draft: boom")
	assert.NotContains(t, out, "-1%")
}

func TestPrinter_Steps(t *testing.T) {
	p, buf := newTestPrinter()

	p.Steps([]string{"first", "second"})

	assert.Contains(t, buf.String(), "1. first")
	assert.Contains(t, buf.String(), "2. second")
}

func TestPrinter_SongSummary(t *testing.T) {
	p, buf := newTestPrinter()

	p.SongSummary(&song.State{
		Lyrics:          "## Song Title: Night Drive\n[Verse]\nline",
		Score:           8.5,
		Round:           2,
		MaxRounds:       3,
		PreflightIssues: []string{"a", "b"},
		Metadata:        song.Metadata{SunoStyles: []string{"synthwave", "retro"}},
		Filename:        "songs/20260101_Night_Drive.md",
	})

	out := buf.String()
	assert.Contains(t, out, "Night Drive")
	assert.Contains(t, out, "8.50")
	assert.Contains(t, out, "2/3")
	assert.Contains(t, out, "2 issue(s)")
	assert.Contains(t, out, "synthwave, retro")
	assert.Contains(t, out, "songs/20260101_Night_Drive.md")
	assert.NotContains(t, out, "Artwork")
}

func TestPrinter_Snapshot(t *testing.T) {
	p, buf := newTestPrinter()

	p.Snapshot(status.Snapshot{
		SongID:       7,
		Status:       status.StatusFailed,
		Progress:     40,
		CurrentStage: "review",
		Error:        "review: boom",
		Logs:         []status.LogEntry{{Message: "Draft generated", Percent: 25}},
	})

	out := buf.String()
	assert.Contains(t, out, "7")
	assert.Contains(t, out, "failed")
	assert.Contains(t, out, "40%")
	assert.Contains(t, out, "review: boom")
	assert.Contains(t, out, "Draft generated")
}

func TestPrinter_History(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		p, buf := newTestPrinter()
		p.History(nil)
		assert.Contains(t, buf.String(), "No songs yet.")
	})

	t.Run("rows", func(t *testing.T) {
		p, buf := newTestPrinter()
		score := 9
		p.History([]store.Song{
			{ID: 2, Title: "Second", Status: "completed", Score: &score, CreatedAt: "2026-01-02"},
			{ID: 1, Title: "First", Status: "failed", CreatedAt: "2026-01-01"},
		})

		out := buf.String()
		assert.Contains(t, out, "TITLE")
		assert.Contains(t, out, "Second")
		assert.Contains(t, out, "First")
		assert.Contains(t, out, "9")
		assert.Contains(t, out, "-")
	})
}

func TestPrinter_Song(t *testing.T) {
	p, buf := newTestPrinter()
	score := 8

	p.Song(&store.Song{
		ID:           3,
		Title:        "Harbor Lights",
		Status:       "completed",
		Score:        &score,
		Persona:      "captain",
		MetadataJSON: `{"description":"A song about coming home.","suno_styles":["folk"]}`,
		Lyrics:       "[Chorus]\nharbor lights",
	})

	out := buf.String()
	assert.Contains(t, out, "Harbor Lights")
	assert.Contains(t, out, "captain")
	assert.Contains(t, out, "A song about coming home.")
	assert.Contains(t, out, "folk")
	assert.Contains(t, out, "harbor lights")
}

func TestPrinter_Lyrics(t *testing.T) {
	t.Run("plain when markdown disabled", func(t *testing.T) {
		p, buf := newTestPrinter()
		p.Lyrics("[Verse]\nfirst line\nsecond line")
		assert.Equal(t, "[Verse]\nfirst line\nsecond line\n", buf.String())
	})

	t.Run("rendered when enabled", func(t *testing.T) {
		p, buf := newTestPrinter()
		p.SetMarkdown(config.MarkdownConfig{Enabled: true, Style: "notty", WordWrap: 80})
		p.Lyrics("## Song Title: Tide\n[Verse]\nfirst\nsecond")

		out := buf.String()
		assert.Contains(t, out, "Tide")
		assert.Contains(t, out, "first")
		assert.Contains(t, out, "second")
	})

	t.Run("unknown style falls back to plain", func(t *testing.T) {
		p, buf := newTestPrinter()
		p.SetMarkdown(config.MarkdownConfig{Enabled: true, Style: "no-such-style"})
		p.Lyrics("plain line")
		assert.Equal(t, "plain line\n", buf.String())
	})
}

func TestLyricsMarkdown(t *testing.T) {
	got := lyricsMarkdown("## Song Title: X\n[Verse]\nline one \n\nline two")
	assert.Equal(t, "## Song Title: X\n[Verse]  \nline one  \n\nline two  ", got)
}
