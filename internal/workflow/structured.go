package workflow

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// ErrStructuredOutput marks a model answer that is not the JSON object a
// stage asked for. Stages map it to their fallback value; it never ends a run.
var ErrStructuredOutput = errors.New("malformed structured output")

// ParseStructured decodes a JSON object answer into T.
//
// Surrounding whitespace, Markdown code fences and any prose before the first
// "{" or after the last "}" are ignored. Every failure wraps
// [ErrStructuredOutput].
func ParseStructured[T any](text string) (T, error) {
	var out T

	body := extractObject(text)
	if body == "" {
		return out, fmt.Errorf("%w: no JSON object in response", ErrStructuredOutput)
	}
	if err := json.Unmarshal([]byte(body), &out); err != nil {
		return out, fmt.Errorf("%w: %v", ErrStructuredOutput, err)
	}
	return out, nil
}

// ParseOrFallback decodes text into T and applies check to the result. Any
// parse or check failure is logged at warn level and yields fallback.
//
// check may normalize the value in place; a nil check accepts anything that
// decodes.
func ParseOrFallback[T any](logger *slog.Logger, stage, text string, fallback T, check func(*T) error) T {
	out, err := ParseStructured[T](text)
	if err == nil && check != nil {
		if cerr := check(&out); cerr != nil {
			err = fmt.Errorf("%w: %v", ErrStructuredOutput, cerr)
		}
	}
	if err != nil {
		logger.Warn("using fallback for unparseable answer", "stage", stage, "error", err)
		return fallback
	}
	return out
}

func extractObject(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if nl := strings.IndexByte(text, '\n'); nl >= 0 {
			text = text[nl+1:]
		}
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	}

	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end < start {
		return ""
	}
	return text[start : end+1]
}

// stringList decodes either a JSON string or a list into a slice, dropping
// empty and null entries.
type stringList []string

func (l *stringList) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	var items []any
	switch v := raw.(type) {
	case nil:
		*l = stringList{}
		return nil
	case string:
		items = []any{v}
	case []any:
		items = v
	default:
		return fmt.Errorf("expected string or list, got %T", raw)
	}

	out := stringList{}
	for _, item := range items {
		switch v := item.(type) {
		case nil:
		case string:
			if s := strings.TrimSpace(v); s != "" {
				out = append(out, s)
			}
		case bool:
			if v {
				out = append(out, "true")
			}
		case float64:
			if v != 0 {
				out = append(out, fmt.Sprint(v))
			}
		default:
			return fmt.Errorf("unsupported list entry %T", item)
		}
	}
	*l = out
	return nil
}
