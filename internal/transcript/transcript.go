// Package transcript interprets the JSON messages sent back by the
// transcription service and keeps the text that is currently displayed.
package transcript

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"
)

// Kind distinguishes provisional updates from committed sentences
type Kind int

const (
	// KindRealtime is a provisional update, replaced by the next event
	KindRealtime Kind = iota + 1
	// KindFullSentence marks a completed utterance
	KindFullSentence
)

// Wire values of the "type" field
const (
	TypeRealtime     = "realtime"
	TypeFullSentence = "fullSentence"
)

func (k Kind) String() string {
	switch k {
	case KindRealtime:
		return TypeRealtime
	case KindFullSentence:
		return TypeFullSentence
	}
	return "unknown"
}

// Event is one transcript update
type Event struct {
	Kind Kind
	Text string
}

// Message is the inbound JSON shape
type Message struct {
	Type string  `json:"type"`
	Text *string `json:"text"`
}

// ParseEvent interprets one inbound message. It reports false for anything
// that is not a realtime or fullSentence message with a string text field.
func ParseEvent(data []byte) (Event, bool) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return Event{}, false
	}
	if msg.Text == nil {
		return Event{}, false
	}

	switch msg.Type {
	case TypeRealtime:
		return Event{Kind: KindRealtime, Text: *msg.Text}, true
	case TypeFullSentence:
		return Event{Kind: KindFullSentence, Text: *msg.Text}, true
	}
	return Event{}, false
}

// MarshalEvent encodes an event in the inbound wire shape.
func MarshalEvent(e Event) ([]byte, error) {
	text := e.Text
	return json.Marshal(Message{Type: e.Kind.String(), Text: &text})
}

// Commit is a completed sentence
type Commit struct {
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

// Sink holds the text currently displayed and the sentences committed so far.
type Sink struct {
	mu      sync.RWMutex
	current string
	commits []Commit

	display func(string)
	logger  *slog.Logger
	now     func() time.Time
}

// NewSink creates a sink. display receives the displayed text after every
// update and may be nil.
func NewSink(display func(string), logger *slog.Logger) *Sink {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sink{
		display: display,
		logger:  logger,
		now:     time.Now,
	}
}

// Handle applies one event
func (s *Sink) Handle(e Event) {
	s.mu.Lock()
	switch e.Kind {
	case KindRealtime:
		s.current = e.Text
	case KindFullSentence:
		s.current = e.Text
		s.commits = append(s.commits, Commit{Text: e.Text, At: s.now()})
	default:
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	if e.Kind == KindFullSentence {
		s.logger.Info("Full sentence", "text", e.Text)
	} else {
		s.logger.Debug("Realtime transcript", "text", e.Text)
	}

	if s.display != nil {
		s.display(e.Text)
	}
}

// Current returns the displayed text
func (s *Sink) Current() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Commits returns a copy of the committed sentences in arrival order.
func (s *Sink) Commits() []Commit {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Commit, len(s.commits))
	copy(out, s.commits)
	return out
}
