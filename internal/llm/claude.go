package llm

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os/exec"
	"strings"
	"time"
)

// ClaudeCLI is a [Completer] that runs the Claude CLI in print mode:
//
//	claude -p --output-format stream-json --verbose < prompt
//
// The prompt goes through stdin; draft prompts embed every style and tag file
// and can outgrow a single argv entry.
// The answer is the result event's text, or the concatenated assistant text
// when the stream ends without one.
type ClaudeCLI struct {
	binary  string
	timeout time.Duration
	parser  *StreamParser
}

// NewClaudeCLI creates a Claude CLI completer. An empty binary means "claude"
// on PATH.
func NewClaudeCLI(binary string, timeout time.Duration) *ClaudeCLI {
	if binary == "" {
		binary = "claude"
	}
	return &ClaudeCLI{
		binary:  binary,
		timeout: timeout,
		parser:  NewStreamParser(),
	}
}

// Complete runs one CLI session for prompt.
func (c *ClaudeCLI) Complete(ctx context.Context, prompt string) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, c.binary, "-p", "--output-format", "stream-json", "--verbose")
	cmd.Stdin = strings.NewReader(prompt)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", &CompletionError{Message: "claude stdout pipe", Err: err}
	}
	if err := cmd.Start(); err != nil {
		return "", &CompletionError{Message: "start " + c.binary, Err: err}
	}

	var text strings.Builder
	var result *Event
	for event := range c.parser.Parse(stdout) {
		switch {
		case event.SessionComplete:
			e := event
			result = &e
		case event.IsText():
			text.WriteString(event.Text)
		}
	}
	// The parser stops early on an oversized line; the CLI must not block
	// on a full pipe.
	_, _ = io.Copy(io.Discard, stdout)

	if err := cmd.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", &CompletionError{Message: "claude cancelled", Err: ctxErr}
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = "claude exited with an error"
		}
		return "", &CompletionError{Message: msg, Err: err}
	}

	if result != nil {
		if result.IsError {
			return "", &CompletionError{Message: "claude session failed", Err: errors.New(result.Result)}
		}
		if result.Result != "" {
			return result.Result, nil
		}
	}
	if text.Len() == 0 {
		return "", &CompletionError{Message: "claude produced no output"}
	}
	return text.String(), nil
}
