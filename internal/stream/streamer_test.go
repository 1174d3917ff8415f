package stream

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/raihanakbr/realtime-stream-client/internal/capture"
	"github.com/raihanakbr/realtime-stream-client/internal/protocol"
	"github.com/raihanakbr/realtime-stream-client/internal/transcript"
	"github.com/raihanakbr/realtime-stream-client/internal/websocket"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recordingSender struct {
	mu   sync.Mutex
	open bool
	sent [][]byte
	drop int
}

func (r *recordingSender) Send(msg []byte) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.open {
		r.drop++
		return false
	}
	r.sent = append(r.sent, msg)
	return true
}

func (r *recordingSender) messages() [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]byte(nil), r.sent...)
}

type stubStream struct {
	mu     sync.Mutex
	closed bool
}

func (s *stubStream) Start() error    { return nil }
func (s *stubStream) Stop() error     { return nil }
func (s *stubStream) SampleRate() int { return 16000 }
func (s *stubStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *stubStream) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

type stubDevice struct {
	err      error
	stream   *stubStream
	callback func([]float32)
}

func (d *stubDevice) Open(rate, frames int, cb func([]float32)) (capture.Stream, error) {
	if d.err != nil {
		return nil, d.err
	}
	d.stream = &stubStream{}
	d.callback = cb
	return d.stream, nil
}

type statusLog struct {
	mu    sync.Mutex
	lines []string
}

func (l *statusLog) add(s string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, s)
}

func (l *statusLog) has(s string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, line := range l.lines {
		if line == s {
			return true
		}
	}
	return false
}

func (l *statusLog) waitFor(t *testing.T, s string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !l.has(s) {
		if time.Now().After(deadline) {
			t.Fatalf("status %q never published; got %v", s, l.lines)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func noSleep(ctx context.Context, d time.Duration) error { return ctx.Err() }

func TestMicrophoneFramesAreEncodedAndSent(t *testing.T) {
	conn := &recordingSender{open: true}
	dev := &stubDevice{}
	statuses := &statusLog{}
	s := New(Options{Conn: conn, Device: dev, Logger: discardLogger(), OnStatus: statuses.add})

	if err := s.StartMicrophone(context.Background()); err != nil {
		t.Fatalf("StartMicrophone: %v", err)
	}
	if s.Status() != StatusMicStreaming {
		t.Errorf("status = %q", s.Status())
	}

	dev.callback([]float32{0.5, -0.5})
	msgs := conn.messages()
	if len(msgs) != 1 {
		t.Fatalf("sent %d messages, want 1", len(msgs))
	}
	meta, payload, err := protocol.Decode(msgs[0])
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if meta.SampleRate != 16000 || len(payload) != 4 {
		t.Errorf("metadata %+v payload %d bytes", meta, len(payload))
	}

	if err := s.StopMicrophone(); err != nil {
		t.Fatalf("StopMicrophone: %v", err)
	}
	if !dev.stream.isClosed() || s.Status() != StatusMicStopped {
		t.Errorf("mic not released, status %q", s.Status())
	}
	if err := s.StopMicrophone(); err != nil {
		t.Errorf("second StopMicrophone: %v", err)
	}
}

func TestFramesDroppedWhileDisconnected(t *testing.T) {
	conn := &recordingSender{}
	dev := &stubDevice{}
	s := New(Options{Conn: conn, Device: dev, Logger: discardLogger()})

	s.StartMicrophone(context.Background())
	dev.callback(make([]float32, 2048))
	dev.callback(make([]float32, 2048))

	if len(conn.messages()) != 0 || conn.drop != 2 {
		t.Errorf("sent %d dropped %d, want 0 and 2", len(conn.messages()), conn.drop)
	}
	s.Close()
}

func TestMicrophoneAcquireError(t *testing.T) {
	s := New(Options{
		Conn:   &recordingSender{open: true},
		Device: &stubDevice{err: errors.New("permission denied")},
		Logger: discardLogger(),
	})
	if err := s.StartMicrophone(context.Background()); !errors.Is(err, capture.ErrAcquire) {
		t.Errorf("StartMicrophone error = %v, want ErrAcquire", err)
	}
}

func TestStreamFileStopsMicrophone(t *testing.T) {
	conn := &recordingSender{open: true}
	dev := &stubDevice{}
	statuses := &statusLog{}
	s := New(Options{
		Conn:     conn,
		Device:   dev,
		Logger:   discardLogger(),
		OnStatus: statuses.add,
		Decode: func(string) ([]float32, int, error) {
			return make([]float32, 5000), 16000, nil
		},
		Sleep: noSleep,
	})

	if err := s.StartMicrophone(context.Background()); err != nil {
		t.Fatalf("StartMicrophone: %v", err)
	}
	if err := s.StreamFile(context.Background(), "speech.wav"); err != nil {
		t.Fatalf("StreamFile: %v", err)
	}
	if !dev.stream.isClosed() {
		t.Error("microphone should be stopped before file streaming")
	}
	if !statuses.has(StatusMicStopped) {
		t.Error("missing microphone stopped status")
	}

	if err := s.Wait(context.Background()); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	statuses.waitFor(t, StatusFileFinished)

	if n := len(conn.messages()); n != 3 {
		t.Errorf("sent %d messages, want 3", n)
	}
	for i, msg := range conn.messages() {
		meta, _, err := protocol.Decode(msg)
		if err != nil || meta.SampleRate != 16000 {
			t.Errorf("message %d: %+v %v", i, meta, err)
		}
	}
}

func TestStreamFileDecodeError(t *testing.T) {
	s := New(Options{
		Conn:   &recordingSender{open: true},
		Logger: discardLogger(),
		Decode: func(string) ([]float32, int, error) { return nil, 0, errors.New("corrupt") },
	})
	if err := s.StreamFile(context.Background(), "bad.mp3"); !errors.Is(err, capture.ErrDecode) {
		t.Errorf("StreamFile error = %v, want ErrDecode", err)
	}
	if got := s.Status(); got != StatusFileError {
		t.Errorf("status after decode error = %q, want %q", got, StatusFileError)
	}
	if err := s.Wait(context.Background()); err != nil {
		t.Errorf("Wait with no stream: %v", err)
	}
}

func TestHandleState(t *testing.T) {
	tests := []struct {
		name   string
		states []websocket.State
		want   []string
	}{
		{
			"connect",
			[]websocket.State{websocket.StateConnecting, websocket.StateOpen},
			[]string{StatusConnected},
		},
		{
			"drop and reconnect",
			[]websocket.State{websocket.StateConnecting, websocket.StateOpen, websocket.StateDisconnected, websocket.StateConnecting, websocket.StateOpen},
			[]string{StatusConnected, StatusReconnecting, StatusConnected},
		},
		{
			"failed dial",
			[]websocket.State{websocket.StateConnecting, websocket.StateDisconnected},
			[]string{StatusReconnecting},
		},
		{
			"deliberate close",
			[]websocket.State{websocket.StateConnecting, websocket.StateOpen, websocket.StateClosing, websocket.StateDisconnected},
			[]string{StatusConnected},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			statuses := &statusLog{}
			s := New(Options{Logger: discardLogger(), OnStatus: statuses.add})
			for _, st := range tt.states {
				s.HandleState(st)
			}
			if len(statuses.lines) != len(tt.want) {
				t.Fatalf("statuses = %v, want %v", statuses.lines, tt.want)
			}
			for i := range tt.want {
				if statuses.lines[i] != tt.want[i] {
					t.Errorf("status %d = %q, want %q", i, statuses.lines[i], tt.want[i])
				}
			}
		})
	}
}

func TestHandleEventUpdatesSink(t *testing.T) {
	var shown []string
	sink := transcript.NewSink(func(s string) { shown = append(shown, s) }, discardLogger())
	s := New(Options{Sink: sink, Logger: discardLogger()})

	s.HandleEvent(transcript.Event{Kind: transcript.KindRealtime, Text: "hel"})
	s.HandleEvent(transcript.Event{Kind: transcript.KindFullSentence, Text: "hello"})

	if sink.Current() != "hello" || len(sink.Commits()) != 1 || len(shown) != 2 {
		t.Errorf("sink current %q commits %d shown %v", sink.Current(), len(sink.Commits()), shown)
	}
}
