// Package workflowtest provides scripted completers for pipeline tests.
//
// A [Script] answers each stage prompt with a per-stage function, so tests
// can drive the review loop, preflight triage and metadata parsing
// deterministically. Stages are recognised by the built-in instructions that
// open every default prompt.
package workflowtest

import (
	"strings"
	"sync"

	"songsmith/internal/config"
	"songsmith/internal/llm"
)

// Default answers used when a Script leaves a stage unset.
const (
	DraftLyrics    = "## Song Title: Test Song\n[Verse]\nfirst draft"
	RevisedLyrics  = "## Song Title: Test Song\n[Verse]\nrevised line"
	ReviewAnswer   = "Tighten the second verse."
	CriticAnswer   = "The hook needs more lift."
	PreflightOK    = "All checks passed. No action needed."
	ScoreAnswer    = `{"score": 9.0, "rationale": "solid"}`
	TriageAnswer   = `{"pass": true, "issues": []}`
	MetadataAnswer = `{"description": "A song about testing.", "suno_styles": ["indie rock"], "suno_exclude_styles": ["polka"], "target_audience": "developers", "commercial_potential": "niche"}`
)

// Responder answers one prompt.
type Responder func(prompt string) (string, error)

// Script holds one responder per stage prompt. Nil responders use the
// package defaults.
type Script struct {
	Draft     Responder
	Review    Responder
	Critic    Responder
	Preflight Responder
	Revise    Responder
	Score     Responder
	Metadata  Responder
	Triage    Responder

	mu     sync.Mutex
	counts map[string]int
}

// Completer returns a mock completer that dispatches to the script.
func (s *Script) Completer() *llm.MockCompleter {
	return &llm.MockCompleter{Respond: s.respond}
}

// Count returns how many prompts of the named stage were answered.
func (s *Script) Count(stage string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[stage]
}

func (s *Script) respond(prompt string) (string, error) {
	stage := StageOf(prompt)

	s.mu.Lock()
	if s.counts == nil {
		s.counts = make(map[string]int)
	}
	s.counts[stage]++
	s.mu.Unlock()

	if r := s.responder(stage); r != nil {
		return r(prompt)
	}
	return defaultAnswer(stage), nil
}

func (s *Script) responder(stage string) Responder {
	switch stage {
	case config.PromptDraft:
		return s.Draft
	case config.PromptReview:
		return s.Review
	case config.PromptCritic:
		return s.Critic
	case config.PromptPreflight:
		return s.Preflight
	case config.PromptRevise:
		return s.Revise
	case config.PromptScore:
		return s.Score
	case config.PromptMetadata:
		return s.Metadata
	case config.PromptTriage:
		return s.Triage
	}
	return nil
}

func defaultAnswer(stage string) string {
	switch stage {
	case config.PromptDraft:
		return DraftLyrics
	case config.PromptReview:
		return ReviewAnswer
	case config.PromptCritic:
		return CriticAnswer
	case config.PromptPreflight:
		return PreflightOK
	case config.PromptRevise:
		return RevisedLyrics
	case config.PromptScore:
		return ScoreAnswer
	case config.PromptMetadata:
		return MetadataAnswer
	case config.PromptTriage:
		return TriageAnswer
	}
	return ""
}

// Fixed returns a responder that always answers text.
func Fixed(text string) Responder {
	return func(string) (string, error) { return text, nil }
}

// Sequence returns a responder that answers with each text in turn and
// repeats the last one once exhausted.
func Sequence(texts ...string) Responder {
	var mu sync.Mutex
	i := 0
	return func(string) (string, error) {
		mu.Lock()
		defer mu.Unlock()
		text := texts[min(i, len(texts)-1)]
		i++
		return text, nil
	}
}

var stagePrefixes = func() map[string]string {
	prefixes := make(map[string]string)
	for name, p := range config.DefaultConfig().Prompts {
		line, _, _ := strings.Cut(p.Instructions, "\n")
		prefixes[name] = line
	}
	return prefixes
}()

// StageOf returns the prompt name whose built-in instructions open prompt,
// or "" when none match.
func StageOf(prompt string) string {
	for name, prefix := range stagePrefixes {
		if prefix != "" && strings.HasPrefix(prompt, prefix) {
			return name
		}
	}
	return ""
}
