package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"songsmith/internal/config"
	"songsmith/internal/song"
)

// Fallback values for unparseable structured answers.
const (
	// TriageFallbackIssue is the single issue reported when preflight
	// feedback cannot be triaged.
	TriageFallbackIssue = "Preflight feedback could not be parsed. Review manually."

	fallbackDescription         = "Short description of the song's theme and style."
	fallbackTargetAudience      = "Suggested demographic"
	fallbackCommercialPotential = "Assessment"
	fallbackGenre               = "rock"
)

// Draft writes the first version of the lyrics.
func (r *Runner) Draft(ctx context.Context, s *song.State) (Progress, error) {
	lyrics, err := r.complete(ctx, config.PromptDraft, config.PromptData{
		UserInput:     song.EnhanceInput(s.UserInput, s.SongName, s.Style),
		Styles:        s.Resources.StylesText(),
		Tags:          s.Resources.TagsText(),
		PersonaStyles: s.Resources.PersonaStyles,
		DefaultParams: s.Resources.DefaultParams.String(),
	})
	if err != nil {
		return Progress{}, err
	}

	s.Lyrics = lyrics
	return Progress{Message: "Draft generated", Percent: 25}, nil
}

// Review runs one review round: parallel reviewers, a revision folding in
// their merged feedback, and a score of the revised lyrics. It consumes one
// round of the budget.
func (r *Runner) Review(ctx context.Context, s *song.State) (Progress, error) {
	feedbacks, err := r.reviewAll(ctx, s.Lyrics)
	if err != nil {
		return Progress{}, err
	}
	feedback := MergeFeedback(feedbacks)

	revised, err := r.revise(ctx, s.Lyrics, feedback)
	if err != nil {
		return Progress{}, err
	}

	score, err := r.score(ctx, revised)
	if err != nil {
		return Progress{}, err
	}

	s.Lyrics = revised
	s.Feedback = feedback
	s.Score = score
	s.Round++

	return Progress{
		Message: fmt.Sprintf("Review round %d complete (score %.2f)", s.Round, score),
		Percent: 40 + min(s.Round*5, 10),
	}, nil
}

type scoreAnswer struct {
	Score     *float64 `json:"score"`
	Rationale string   `json:"rationale"`
}

// score rates lyrics from 0 to 10. Answers that are not a JSON object with
// an in-range score count as 0.
func (r *Runner) score(ctx context.Context, lyrics string) (float64, error) {
	text, err := r.complete(ctx, config.PromptScore, config.PromptData{Lyrics: lyrics})
	if err != nil {
		return 0, err
	}

	answer := ParseOrFallback(r.logger, "score", text, scoreAnswer{}, func(a *scoreAnswer) error {
		if a.Score == nil {
			return nil
		}
		if *a.Score < 0 || *a.Score > 10 {
			return fmt.Errorf("score %v outside [0,10]", *a.Score)
		}
		return nil
	})
	if answer.Score == nil {
		return 0, nil
	}
	return *answer.Score, nil
}

// Critic applies one round of holistic critique to the lyrics.
func (r *Runner) Critic(ctx context.Context, s *song.State) (Progress, error) {
	feedback, err := r.complete(ctx, config.PromptCritic, config.PromptData{Lyrics: s.Lyrics})
	if err != nil {
		return Progress{}, err
	}

	revised, err := r.revise(ctx, s.Lyrics, feedback)
	if err != nil {
		return Progress{}, err
	}

	s.Lyrics = revised
	s.Feedback = feedback
	return Progress{Message: "Critic feedback applied", Percent: 55}, nil
}

// TriageResult is the pass/fail reduction of preflight feedback.
type TriageResult struct {
	Pass   bool     `json:"pass"`
	Issues []string `json:"issues"`
}

// TriageFallback is returned whenever preflight feedback cannot be triaged.
func TriageFallback() TriageResult {
	return TriageResult{Pass: false, Issues: []string{TriageFallbackIssue}}
}

type triageAnswer struct {
	Pass   bool       `json:"pass"`
	Issues stringList `json:"issues"`
}

// Preflight validates the lyrics against the catalog and triages the
// feedback into a pass flag and an issue list.
func (r *Runner) Preflight(ctx context.Context, s *song.State) (Progress, error) {
	raw, err := r.complete(ctx, config.PromptPreflight, config.PromptData{
		Lyrics: s.Lyrics,
		Styles: s.Resources.StylesText(),
		Tags:   s.Resources.TagsText(),
	})
	if err != nil {
		return Progress{}, err
	}

	result, err := r.Triage(ctx, raw)
	if err != nil {
		return Progress{}, err
	}

	s.Feedback = raw
	s.PreflightPassed = result.Pass
	s.PreflightIssues = result.Issues

	msg := "Preflight checks completed"
	if !result.Pass {
		msg += fmt.Sprintf(" with %d issue(s) flagged", len(result.Issues))
	}
	return Progress{Message: msg, Percent: 65}, nil
}

// Triage reduces free-text preflight feedback to a [TriageResult].
//
// Empty feedback returns [TriageFallback] without a model call, and so does
// any answer that is not a JSON object. Only completion failures are
// returned as errors.
func (r *Runner) Triage(ctx context.Context, preflightOutput string) (TriageResult, error) {
	if strings.TrimSpace(preflightOutput) == "" {
		r.logger.Warn("using fallback for empty preflight feedback", "stage", "triage")
		return TriageFallback(), nil
	}

	text, err := r.complete(ctx, config.PromptTriage, config.PromptData{PreflightOutput: preflightOutput})
	if err != nil {
		return TriageResult{}, err
	}

	fallback := triageAnswer{Pass: false, Issues: stringList{TriageFallbackIssue}}
	answer := ParseOrFallback(r.logger, "triage", text, fallback, nil)

	issues := []string(answer.Issues)
	if issues == nil {
		issues = []string{}
	}
	return TriageResult{Pass: answer.Pass, Issues: issues}, nil
}

// TargetedRevise fixes the issues preflight flagged. It consumes one round
// of the budget and hands the lyrics back to review.
func (r *Runner) TargetedRevise(ctx context.Context, s *song.State) (Progress, error) {
	feedback := FixFeedback(s.PreflightIssues)

	revised, err := r.revise(ctx, s.Lyrics, feedback)
	if err != nil {
		return Progress{}, err
	}

	s.Lyrics = revised
	s.Feedback = feedback
	s.Round++
	return Progress{Message: "Applied targeted fixes from preflight", Percent: 50}, nil
}

// FixFeedback renders preflight issues as revision feedback.
func FixFeedback(issues []string) string {
	var b strings.Builder
	b.WriteString("Fix these preflight issues:\n")
	for i, issue := range issues {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString("- ")
		b.WriteString(issue)
	}
	return b.String()
}

type metadataAnswer struct {
	Description         string     `json:"description"`
	SunoStyles          stringList `json:"suno_styles"`
	SunoExcludeStyles   stringList `json:"suno_exclude_styles"`
	TargetAudience      string     `json:"target_audience"`
	CommercialPotential string     `json:"commercial_potential"`
}

// Metadata produces the render metadata for the finished lyrics.
func (r *Runner) Metadata(ctx context.Context, s *song.State) (Progress, error) {
	personaStyles := s.Resources.PersonaStyles
	if personaStyles == "" {
		personaStyles = "None provided"
	}

	text, err := r.complete(ctx, config.PromptMetadata, config.PromptData{
		Lyrics:        s.Lyrics,
		UserInput:     s.UserInput,
		DefaultParams: s.Resources.DefaultParams.String(),
		PersonaStyles: personaStyles,
	})
	if err != nil {
		return Progress{}, err
	}

	s.Metadata = BuildMetadata(r.logger, text, s.Resources)
	return Progress{Message: "Metadata summary generated", Percent: 75}, nil
}

// MetadataFallback is the metadata used when the model's answer cannot be
// parsed: the default genre followed by the persona's style tokens.
func MetadataFallback(res song.Resources) song.Metadata {
	genre := res.DefaultParams.Genre
	if genre == "" {
		genre = fallbackGenre
	}
	return song.Metadata{
		Description:         fallbackDescription,
		SunoStyles:          song.MergeUnique([]string{genre}, song.PersonaTokens(res.PersonaStyles)),
		SunoExcludeStyles:   []string{},
		TargetAudience:      fallbackTargetAudience,
		CommercialPotential: fallbackCommercialPotential,
	}
}

// BuildMetadata turns a metadata answer into [song.Metadata].
//
// An unparseable answer yields [MetadataFallback]. Otherwise missing fields
// take their fallback value individually. Persona style tokens are always
// merged into SunoStyles without duplicates.
func BuildMetadata(logger *slog.Logger, text string, res song.Resources) song.Metadata {
	fallback := MetadataFallback(res)

	answer := ParseOrFallback(logger, "metadata", text, metadataAnswer{
		Description:         fallback.Description,
		SunoStyles:          fallback.SunoStyles,
		SunoExcludeStyles:   fallback.SunoExcludeStyles,
		TargetAudience:      fallback.TargetAudience,
		CommercialPotential: fallback.CommercialPotential,
	}, nil)

	m := song.Metadata{
		Description:         answer.Description,
		SunoStyles:          answer.SunoStyles,
		SunoExcludeStyles:   answer.SunoExcludeStyles,
		TargetAudience:      answer.TargetAudience,
		CommercialPotential: answer.CommercialPotential,
	}
	if m.Description == "" {
		m.Description = fallback.Description
	}
	if len(m.SunoStyles) == 0 {
		m.SunoStyles = fallback.SunoStyles
	}
	m.SunoStyles = song.MergeUnique(m.SunoStyles, song.PersonaTokens(res.PersonaStyles))
	if len(m.SunoExcludeStyles) == 0 {
		m.SunoExcludeStyles = []string{}
	}
	if m.TargetAudience == "" {
		m.TargetAudience = fallback.TargetAudience
	}
	if m.CommercialPotential == "" {
		m.CommercialPotential = fallback.CommercialPotential
	}
	return m
}

// AlbumArt generates cover artwork. Local runs and runs without an art
// generator skip it; generator failures leave the song without artwork.
func (r *Runner) AlbumArt(ctx context.Context, s *song.State) (Progress, error) {
	if s.UseLocal {
		s.AlbumArt = ""
		return Progress{Message: "Album artwork skipped (local mode)", Percent: 80}, nil
	}
	if r.art == nil {
		s.AlbumArt = ""
		return Progress{Message: "Album artwork skipped (disabled)", Percent: 80}, nil
	}

	path, err := r.art.Generate(ctx, s.Title(), s.UserInput)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return Progress{}, err
		}
		r.logger.Warn("album artwork failed", "error", err)
		s.AlbumArt = ""
		return Progress{Message: "Album artwork unavailable", Percent: 85}, nil
	}

	s.AlbumArt = path
	return Progress{Message: "Album artwork generated: " + path, Percent: 85}, nil
}

// Save hands the finished song to the sink.
func (r *Runner) Save(_ context.Context, s *song.State) (Progress, error) {
	if r.sink == nil {
		return Progress{Message: "Song not saved (no sink)", Percent: 95}, nil
	}

	location, err := r.sink.Save(s.Title(), s.UserInput, s.Lyrics, s.Resources.DefaultParams, s.Metadata)
	if err != nil {
		return Progress{}, err
	}

	s.Filename = location
	return Progress{Message: "Song saved to " + location, Percent: 95}, nil
}
