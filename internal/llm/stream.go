package llm

import (
	"bufio"
	"encoding/json"
	"io"
)

// StreamEvent is one line of the Claude CLI's stream-json output.
type StreamEvent struct {
	Type    string          `json:"type"`
	Subtype string          `json:"subtype,omitempty"`
	Message *MessageContent `json:"message,omitempty"`
	Result  string          `json:"result,omitempty"`
	IsError bool            `json:"is_error,omitempty"`
}

// MessageContent is the message body of an assistant event.
type MessageContent struct {
	Content []ContentBlock `json:"content,omitempty"`
}

// ContentBlock is a single block of an assistant message. Only "text"
// blocks carry completion output; tool blocks are ignored.
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// EventType is the type of a stream event.
type EventType string

const (
	EventTypeSystem    EventType = "system"
	EventTypeAssistant EventType = "assistant"
	EventTypeUser      EventType = "user"
	EventTypeResult    EventType = "result"
)

// Event is a parsed [StreamEvent].
type Event struct {
	Type EventType

	// Text joins the text blocks of an assistant event.
	Text string

	// Result is the final answer carried by the result event.
	Result string

	// IsError is set on result events reporting a failed session.
	IsError bool

	// SessionComplete is true for result events.
	SessionComplete bool
}

// NewEventFromStream converts a raw [StreamEvent] into an [Event].
func NewEventFromStream(raw *StreamEvent) Event {
	e := Event{Type: EventType(raw.Type)}

	switch e.Type {
	case EventTypeAssistant:
		if raw.Message != nil {
			for _, block := range raw.Message.Content {
				if block.Type == "text" {
					e.Text += block.Text
				}
			}
		}
	case EventTypeResult:
		e.SessionComplete = true
		e.Result = raw.Result
		e.IsError = raw.IsError
	}

	return e
}

// IsText returns true if this event carries assistant text.
func (e Event) IsText() bool {
	return e.Type == EventTypeAssistant && e.Text != ""
}

// StreamParser reads stream-json output line by line.
//
// Malformed lines are skipped so partial output does not abort a read.
type StreamParser struct {
	// BufferSize is the maximum size in bytes for a single JSON line.
	// Defaults to 10MB if not set or <= 0.
	BufferSize int
}

// NewStreamParser creates a [StreamParser] with a 10MB line limit.
func NewStreamParser() *StreamParser {
	return &StreamParser{BufferSize: 10 * 1024 * 1024}
}

// Parse emits one [Event] per parseable line. The channel is closed at EOF
// or on a read error.
func (p *StreamParser) Parse(reader io.Reader) <-chan Event {
	events := make(chan Event)

	go func() {
		defer close(events)

		scanner := bufio.NewScanner(reader)
		bufSize := p.BufferSize
		if bufSize <= 0 {
			bufSize = 10 * 1024 * 1024
		}
		scanner.Buffer(make([]byte, 0, 64*1024), bufSize)

		for scanner.Scan() {
			line := scanner.Bytes()
			if len(line) == 0 {
				continue
			}

			var raw StreamEvent
			if err := json.Unmarshal(line, &raw); err != nil {
				continue
			}
			events <- NewEventFromStream(&raw)
		}
	}()

	return events
}

// ParseSingle parses one stream-json line.
func ParseSingle(line string) (Event, error) {
	var raw StreamEvent
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		return Event{}, err
	}
	return NewEventFromStream(&raw), nil
}
