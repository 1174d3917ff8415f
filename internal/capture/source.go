// Package capture produces PCM16 audio frames from a live microphone or a
// decoded file. At most one source is active at a time; see Switch.
package capture

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/raihanakbr/realtime-stream-client/internal/audio"
)

var (
	// ErrAcquire wraps failures to open or start an input device
	ErrAcquire = errors.New("failed to acquire audio input")
	// ErrDecode wraps failures to read or decode an audio file
	ErrDecode = errors.New("failed to decode audio file")
	// ErrUnsupportedFormat is returned for files that are neither WAV nor MP3
	ErrUnsupportedFormat = errors.New("unsupported audio format")
	// ErrAlreadyStarted is returned by Start on a running source
	ErrAlreadyStarted = errors.New("source already started")
)

// FrameHandler receives frames in capture order. It is called from the
// source's own goroutine, one frame at a time.
type FrameHandler func(audio.Frame)

// Source is a capture source
type Source interface {
	Start(ctx context.Context, handler FrameHandler) error
	// Stop releases the source. It is safe to call in any state.
	Stop() error
	Name() string
}

// finisher is implemented by sources that end on their own
type finisher interface {
	Done() <-chan struct{}
}

// Switch keeps at most one Source active
type Switch struct {
	mu     sync.Mutex
	active Source
	logger *slog.Logger
}

// NewSwitch creates an empty switch
func NewSwitch(logger *slog.Logger) *Switch {
	if logger == nil {
		logger = slog.Default()
	}
	return &Switch{logger: logger}
}

// Activate stops the active source, if any, and then starts src. When src
// fails to start, no source is active afterwards.
func (s *Switch) Activate(ctx context.Context, src Source, handler FrameHandler) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active != nil {
		s.logger.Info("Stopping active source", "source", s.active.Name(), "next", src.Name())
		if err := s.active.Stop(); err != nil {
			s.logger.Warn("Failed to stop source", "source", s.active.Name(), "error", err)
		}
		s.active = nil
	}

	if err := src.Start(ctx, handler); err != nil {
		return err
	}
	s.active = src

	if f, ok := src.(finisher); ok {
		go func() {
			<-f.Done()
			s.mu.Lock()
			if s.active == src {
				s.active = nil
			}
			s.mu.Unlock()
		}()
	}
	return nil
}

// Stop stops the active source, if any
func (s *Switch) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active == nil {
		return nil
	}
	err := s.active.Stop()
	s.active = nil
	return err
}

// Deactivate stops src only if it is the active source
func (s *Switch) Deactivate(src Source) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active != src {
		return nil
	}
	err := s.active.Stop()
	s.active = nil
	return err
}

// Active returns the active source or nil
func (s *Switch) Active() Source {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}
