package llm

import (
	"context"
	"errors"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIOptions configures an [OpenAI] completer.
type OpenAIOptions struct {
	APIKey string

	// BaseURL overrides the endpoint. Empty means api.openai.com.
	BaseURL string

	Model       string
	Temperature float64
	MaxTokens   int

	// Timeout bounds each call. Zero disables it.
	Timeout time.Duration

	// CompletionsFallback retries a failed chat call once on the legacy
	// completions endpoint. Some local servers only implement one of the two.
	CompletionsFallback bool
}

// OpenAI is a [Completer] for OpenAI-compatible HTTP endpoints.
type OpenAI struct {
	client *openai.Client
	opts   OpenAIOptions
}

// NewOpenAI creates an OpenAI completer.
func NewOpenAI(opts OpenAIOptions) *OpenAI {
	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}
	return &OpenAI{
		client: openai.NewClientWithConfig(cfg),
		opts:   opts,
	}
}

// Complete sends prompt as a single user message.
func (o *OpenAI) Complete(ctx context.Context, prompt string) (string, error) {
	if o.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.opts.Timeout)
		defer cancel()
	}

	text, chatErr := o.chat(ctx, prompt)
	if chatErr == nil {
		return text, nil
	}
	if !o.opts.CompletionsFallback || ctx.Err() != nil {
		return "", chatErr
	}

	text, err := o.completion(ctx, prompt)
	if err != nil {
		return "", &CompletionError{
			Message: "chat and completions endpoints both failed",
			Err:     errors.Join(chatErr, err),
		}
	}
	return text, nil
}

func (o *OpenAI) chat(ctx context.Context, prompt string) (string, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.opts.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens:   o.opts.MaxTokens,
		Temperature: float32(o.opts.Temperature),
	})
	if err != nil {
		return "", &CompletionError{Message: "chat completion request", Err: err}
	}
	if len(resp.Choices) == 0 {
		return "", &CompletionError{Message: "chat completion returned no choices"}
	}
	return resp.Choices[0].Message.Content, nil
}

func (o *OpenAI) completion(ctx context.Context, prompt string) (string, error) {
	resp, err := o.client.CreateCompletion(ctx, openai.CompletionRequest{
		Model:       o.opts.Model,
		Prompt:      prompt,
		MaxTokens:   o.opts.MaxTokens,
		Temperature: float32(o.opts.Temperature),
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("completion returned no choices")
	}
	return resp.Choices[0].Text, nil
}
