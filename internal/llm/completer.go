// Package llm provides the completion port every pipeline stage calls.
//
// A [Completer] turns prompt text into response text. Implementations must be
// safe for concurrent use: the review fan-out and concurrent generation runs
// share one instance.
//
// Key types:
//   - [Completer]: the port itself
//   - [OpenAI]: OpenAI-compatible HTTP endpoints (OpenAI, OpenRouter, LM Studio)
//   - [ClaudeCLI]: the Claude CLI in stream-json mode
//   - [Selector]: builds the remote and local completers once per process
//   - [MockCompleter]: scripted responses for tests
package llm

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"songsmith/internal/config"
)

// Completer submits a prompt and returns the model's text.
//
// Every failure at the provider boundary is returned as a *[CompletionError].
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// CompletionError reports a transport, authentication or provider failure.
// It is fatal to the run that receives it.
type CompletionError struct {
	Message string
	Err     error
}

func (e *CompletionError) Error() string {
	if e.Err == nil {
		return "completion failed: " + e.Message
	}
	return fmt.Sprintf("completion failed: %s: %v", e.Message, e.Err)
}

func (e *CompletionError) Unwrap() error {
	return e.Err
}

// placeholderKey is the value shipped in example .env files.
const placeholderKey = "your_openrouter_api_key_here"

func usableKey(key string) bool {
	key = strings.TrimSpace(key)
	return key != "" && key != placeholderKey
}

// Selector hands out the completer for a run's mode.
//
// The remote and local completers are each built at most once and then
// shared by every run in the process. Construct with [NewSelector].
type Selector struct {
	cfg config.LLMConfig

	remoteOnce sync.Once
	remote     Completer
	remoteErr  error

	localOnce sync.Once
	local     Completer
}

// NewSelector creates a Selector for the given provider settings.
func NewSelector(cfg config.LLMConfig) *Selector {
	return &Selector{cfg: cfg}
}

// For returns the completer for local or remote runs.
//
// Local runs use the OpenAI-compatible endpoint at LocalBaseURL. Remote runs
// use the configured provider; with the "openai" provider an OpenRouter key
// takes precedence over an OpenAI key. Returns an error when no remote
// credentials are configured.
func (s *Selector) For(useLocal bool) (Completer, error) {
	if useLocal {
		s.localOnce.Do(func() {
			s.local = s.newLocal()
		})
		return s.local, nil
	}

	s.remoteOnce.Do(func() {
		s.remote, s.remoteErr = s.newRemote()
	})
	return s.remote, s.remoteErr
}

func (s *Selector) newLocal() Completer {
	key := s.cfg.LocalAPIKey
	if !usableKey(key) {
		key = "lm-studio"
	}
	return NewOpenAI(OpenAIOptions{
		APIKey:              key,
		BaseURL:             s.cfg.LocalBaseURL,
		Model:               s.cfg.LocalModel,
		Temperature:         s.cfg.Temperature,
		MaxTokens:           s.cfg.MaxTokens,
		Timeout:             s.cfg.RequestTimeout,
		CompletionsFallback: true,
	})
}

func (s *Selector) newRemote() (Completer, error) {
	switch s.cfg.Provider {
	case "claude-cli":
		return NewClaudeCLI(s.cfg.ClaudeBinary, s.cfg.RequestTimeout), nil
	case "openai", "":
	default:
		return nil, fmt.Errorf("unknown llm provider %q", s.cfg.Provider)
	}

	opts := OpenAIOptions{
		Model:       s.cfg.Model,
		Temperature: s.cfg.Temperature,
		MaxTokens:   s.cfg.MaxTokens,
		Timeout:     s.cfg.RequestTimeout,
	}

	switch {
	case usableKey(s.cfg.OpenRouterAPIKey):
		opts.APIKey = s.cfg.OpenRouterAPIKey
		opts.BaseURL = s.cfg.OpenRouterBaseURL
	case usableKey(s.cfg.APIKey):
		opts.APIKey = s.cfg.APIKey
		opts.BaseURL = s.cfg.BaseURL
	default:
		return nil, fmt.Errorf("neither OPENROUTER_API_KEY nor OPENAI_API_KEY is set")
	}

	return NewOpenAI(opts), nil
}
