package workflow

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"songsmith/internal/logging"
)

type sample struct {
	Name  string     `json:"name"`
	Count int        `json:"count"`
	Tags  stringList `json:"tags"`
}

func TestParseStructured(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		want    sample
		wantErr bool
	}{
		{name: "plain", text: `{"name": "a", "count": 2}`, want: sample{Name: "a", Count: 2}},
		{name: "json fence", text: "```json\n{\"name\": \"b\"}\n```", want: sample{Name: "b"}},
		{name: "bare fence", text: "```\n{\"name\": \"c\"}\n```", want: sample{Name: "c"}},
		{name: "leading prose", text: "Sure! {\"count\": 3}", want: sample{Count: 3}},
		{name: "trailing prose", text: "{\"count\": 4}\nHope that helps.", want: sample{Count: 4}},
		{name: "nested braces", text: `{"name": "{x}"}`, want: sample{Name: "{x}"}},
		{name: "string tags", text: `{"tags": "solo"}`, want: sample{Tags: stringList{"solo"}}},
		{name: "list tags", text: `{"tags": ["a", null, "", false, 0, 2, true]}`, want: sample{Tags: stringList{"a", "2", "true"}}},
		{name: "null tags", text: `{"tags": null}`, want: sample{Tags: stringList{}}},
		{name: "empty", text: "", wantErr: true},
		{name: "no object", text: "no json here", wantErr: true},
		{name: "truncated", text: `{"name": "a"`, wantErr: true},
		{name: "wrong type", text: `{"count": "many"}`, wantErr: true},
		{name: "object tags", text: `{"tags": {"a": 1}}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseStructured[sample](tt.text)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrStructuredOutput))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseOrFallback(t *testing.T) {
	fallback := sample{Name: "fallback"}

	t.Run("valid answer", func(t *testing.T) {
		got := ParseOrFallback(logging.Nop(), "test", `{"name": "ok"}`, fallback, nil)
		assert.Equal(t, "ok", got.Name)
	})

	t.Run("parse failure logs and falls back", func(t *testing.T) {
		var buf bytes.Buffer
		logger := logging.New(&buf, logging.LevelWarn, logging.FormatText)

		got := ParseOrFallback(logger, "test", "nonsense", fallback, nil)

		assert.Equal(t, fallback, got)
		assert.Contains(t, buf.String(), "level=WARN")
		assert.Contains(t, buf.String(), "stage=test")
	})

	t.Run("check failure falls back", func(t *testing.T) {
		got := ParseOrFallback(logging.Nop(), "test", `{"count": 99}`, fallback, func(s *sample) error {
			if s.Count > 10 {
				return errors.New("too many")
			}
			return nil
		})
		assert.Equal(t, fallback, got)
	})

	t.Run("check may normalize", func(t *testing.T) {
		got := ParseOrFallback(logging.Nop(), "test", `{"name": ""}`, fallback, func(s *sample) error {
			if s.Name == "" {
				s.Name = "filled"
			}
			return nil
		})
		assert.Equal(t, "filled", got.Name)
	})
}
