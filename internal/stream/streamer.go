// Package stream wires capture sources to the connection: every captured
// frame is encoded and sent, and transcript events go to the sink.
package stream

import (
	"context"
	"log/slog"
	"sync"

	"github.com/raihanakbr/realtime-stream-client/internal/audio"
	"github.com/raihanakbr/realtime-stream-client/internal/capture"
	"github.com/raihanakbr/realtime-stream-client/internal/protocol"
	"github.com/raihanakbr/realtime-stream-client/internal/transcript"
	"github.com/raihanakbr/realtime-stream-client/internal/websocket"
)

// Status lines shown to the user
const (
	StatusConnected     = "Connected. Ready to stream."
	StatusReconnecting  = "Disconnected. Trying to reconnect..."
	StatusMicStreaming  = "Streaming from microphone..."
	StatusMicStopped    = "Microphone stopped."
	StatusFileStreaming = "Processing and streaming file..."
	StatusFileFinished  = "File streaming finished."
	StatusFileError     = "Error processing file."
)

// Sender delivers encoded messages. *websocket.Manager implements it.
type Sender interface {
	Send(msg []byte) bool
}

// Options configures a Streamer
type Options struct {
	Conn       Sender
	Device     capture.Device
	Sink       *transcript.Sink
	ChunkSize  int
	SampleRate int
	Logger     *slog.Logger
	OnStatus   func(string)

	// Decode and Sleep override file decoding and pacing
	Decode capture.DecodeFunc
	Sleep  capture.SleepFunc
}

// Streamer is the client controller
type Streamer struct {
	conn       Sender
	device     capture.Device
	sink       *transcript.Sink
	sw         *capture.Switch
	chunkSize  int
	sampleRate int
	logger     *slog.Logger
	decode     capture.DecodeFunc
	sleep      capture.SleepFunc

	statusMu  sync.Mutex
	onStatus  func(string)
	status    string
	connState websocket.State

	mu   sync.Mutex
	mic  *capture.MicSource
	file *capture.FileSource
}

// New creates a Streamer
func New(opts Options) *Streamer {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = audio.DefaultChunkSize
	}
	if opts.SampleRate <= 0 {
		opts.SampleRate = audio.DefaultSampleRate
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Streamer{
		conn:       opts.Conn,
		device:     opts.Device,
		sink:       opts.Sink,
		sw:         capture.NewSwitch(opts.Logger),
		chunkSize:  opts.ChunkSize,
		sampleRate: opts.SampleRate,
		logger:     opts.Logger,
		decode:     opts.Decode,
		sleep:      opts.Sleep,
		onStatus:   opts.OnStatus,
	}
}

// SetConn replaces the connection frames are sent on. It must be called
// before any source is started.
func (s *Streamer) SetConn(conn Sender) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn = conn
}

func (s *Streamer) setStatus(status string) {
	s.statusMu.Lock()
	s.status = status
	fn := s.onStatus
	s.statusMu.Unlock()

	s.logger.Info(status)
	if fn != nil {
		fn(status)
	}
}

// Status returns the last published status line
func (s *Streamer) Status() string {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	return s.status
}

// HandleState publishes connection status. It is meant to be installed as
// the Manager's state hook and does not call back into the Manager.
func (s *Streamer) HandleState(state websocket.State) {
	s.statusMu.Lock()
	prev := s.connState
	s.connState = state
	s.statusMu.Unlock()

	switch state {
	case websocket.StateOpen:
		s.setStatus(StatusConnected)
	case websocket.StateDisconnected:
		// a deliberate Close passes through Closing and does not reconnect
		if prev != websocket.StateClosing {
			s.setStatus(StatusReconnecting)
		}
	}
}

// HandleEvent forwards a transcript event to the sink
func (s *Streamer) HandleEvent(e transcript.Event) {
	if s.sink != nil {
		s.sink.Handle(e)
	}
}

// send encodes and sends one frame. Frames are dropped while disconnected.
func (s *Streamer) send(f audio.Frame) {
	msg, err := protocol.EncodeFrame(f)
	if err != nil {
		s.logger.Error("Failed to encode frame", "error", err)
		return
	}
	if s.conn == nil || !s.conn.Send(msg) {
		s.logger.Debug("Frame dropped", "samples", len(f.Samples))
	}
}

// StartMicrophone starts streaming from the input device, stopping any
// file stream first.
func (s *Streamer) StartMicrophone(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.mic != nil && s.sw.Active() == s.mic {
		return nil
	}

	mic := capture.NewMicSource(s.device, s.sampleRate, s.chunkSize, s.logger)
	if err := s.sw.Activate(ctx, mic, s.send); err != nil {
		s.logger.Error("Error accessing microphone", "error", err)
		return err
	}
	s.mic = mic
	s.file = nil
	s.setStatus(StatusMicStreaming)
	return nil
}

// StopMicrophone stops the microphone if it is streaming
func (s *Streamer) StopMicrophone() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopMicLocked()
}

func (s *Streamer) stopMicLocked() error {
	if s.mic == nil {
		return nil
	}
	mic := s.mic
	s.mic = nil
	err := s.sw.Deactivate(mic)
	s.setStatus(StatusMicStopped)
	return err
}

// StreamFile decodes path and streams it paced at real time. The
// microphone is stopped first. Decode errors are returned; streaming
// continues in the background, see Wait.
func (s *Streamer) StreamFile(ctx context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.stopMicLocked(); err != nil {
		s.logger.Warn("Failed to stop microphone", "error", err)
	}

	file := capture.NewFileSource(path, s.chunkSize, s.logger)
	if s.decode != nil {
		file.Decode = s.decode
	}
	if s.sleep != nil {
		file.Sleep = s.sleep
	}

	s.setStatus(StatusFileStreaming)
	if err := s.sw.Activate(ctx, file, s.send); err != nil {
		s.logger.Error("Error processing file", "error", err)
		s.setStatus(StatusFileError)
		return err
	}
	s.file = file

	go func() {
		<-file.Done()
		s.mu.Lock()
		current := s.file == file
		s.mu.Unlock()
		if current && file.Err() == nil {
			s.setStatus(StatusFileFinished)
		}
	}()
	return nil
}

// Wait blocks until the current file stream ends or ctx is done
func (s *Streamer) Wait(ctx context.Context) error {
	s.mu.Lock()
	file := s.file
	s.mu.Unlock()

	if file == nil {
		return nil
	}
	select {
	case <-file.Done():
		return file.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops whichever source is active
func (s *Streamer) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mic = nil
	s.file = nil
	return s.sw.Stop()
}
