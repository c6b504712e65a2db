package llm

import (
	"context"
	"sync"
)

// MockCompleter is a [Completer] with scripted responses, for tests.
//
// Respond computes the answer for each prompt; when nil, every call returns
// an empty string. Calls are recorded in order and are safe from concurrent
// goroutines.
type MockCompleter struct {
	Respond func(prompt string) (string, error)

	mu      sync.Mutex
	prompts []string
}

// Complete records prompt and returns Respond's answer. A cancelled context
// fails the call without consulting Respond.
func (m *MockCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", &CompletionError{Message: "request cancelled", Err: err}
	}

	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	m.mu.Unlock()

	if m.Respond == nil {
		return "", nil
	}
	return m.Respond(prompt)
}

// Prompts returns a copy of every prompt received so far.
func (m *MockCompleter) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.prompts...)
}

// Calls returns the number of Complete calls made so far.
func (m *MockCompleter) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prompts)
}
