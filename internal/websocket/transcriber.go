package websocket

import (
	"fmt"
	"sync"

	"github.com/raihanakbr/realtime-stream-client/internal/audio"
	"github.com/raihanakbr/realtime-stream-client/internal/transcript"
)

// Transcriber turns received audio frames into transcript events
type Transcriber interface {
	Feed(frame audio.Frame) []transcript.Event
}

// TranscriberFactory creates one Transcriber per client connection
type TranscriberFactory func() Transcriber

// EchoTranscriber does no recognition. It reports how much audio it has
// received as realtime text and commits a full sentence every SentenceEvery
// frames.
type EchoTranscriber struct {
	SentenceEvery int

	mu       sync.Mutex
	frames   int
	sentence int
	received float64
}

// NewEchoTranscriber returns a Transcriber that commits every n frames
func NewEchoTranscriber(n int) *EchoTranscriber {
	if n <= 0 {
		n = DefaultSentenceEvery
	}
	return &EchoTranscriber{SentenceEvery: n}
}

// Feed implements Transcriber
func (e *EchoTranscriber) Feed(frame audio.Frame) []transcript.Event {
	e.mu.Lock()
	defer e.mu.Unlock()

	every := e.SentenceEvery
	if every <= 0 {
		every = DefaultSentenceEvery
	}

	e.frames++
	e.received += frame.Duration().Seconds()

	text := fmt.Sprintf("received %.2fs of audio at %d Hz", e.received, frame.SampleRate)
	events := []transcript.Event{{Kind: transcript.KindRealtime, Text: text}}

	if e.frames%every == 0 {
		e.sentence++
		events = append(events, transcript.Event{
			Kind: transcript.KindFullSentence,
			Text: fmt.Sprintf("sentence %d: %d frames, %.2fs of audio", e.sentence, every, e.received),
		})
	}
	return events
}
