package capture

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/raihanakbr/realtime-stream-client/internal/audio"
)

// Stream is an open input stream that pushes blocks to a callback
type Stream interface {
	Start() error
	Stop() error
	Close() error
	// SampleRate is the rate the device actually runs at
	SampleRate() int
}

// Device opens mono float32 input streams. The callback is invoked once
// per block of framesPerBuffer samples; the slice is reused between calls.
type Device interface {
	Open(sampleRate, framesPerBuffer int, callback func(in []float32)) (Stream, error)
}

// MicSource streams live microphone input
type MicSource struct {
	device     Device
	sampleRate int
	chunkSize  int
	logger     *slog.Logger

	mu      sync.Mutex
	stream  Stream
	running atomic.Bool
}

// NewMicSource creates a microphone source on device. Non-positive rate and
// chunk size select the defaults.
func NewMicSource(device Device, sampleRate, chunkSize int, logger *slog.Logger) *MicSource {
	if sampleRate <= 0 {
		sampleRate = audio.DefaultSampleRate
	}
	if chunkSize <= 0 {
		chunkSize = audio.DefaultChunkSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &MicSource{
		device:     device,
		sampleRate: sampleRate,
		chunkSize:  chunkSize,
		logger:     logger,
	}
}

// Name implements Source
func (m *MicSource) Name() string { return "microphone" }

// Start opens and starts the input stream. Errors wrap ErrAcquire and leave
// nothing open.
func (m *MicSource) Start(ctx context.Context, handler FrameHandler) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stream != nil {
		return ErrAlreadyStarted
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrAcquire, err)
	}

	var rate atomic.Int64
	rate.Store(int64(m.sampleRate))

	stream, err := m.device.Open(m.sampleRate, m.chunkSize, func(in []float32) {
		if !m.running.Load() {
			return
		}
		samples := audio.Float32ToPCM16(in)
		for chunk := range audio.Chunks(samples, m.chunkSize) {
			handler(audio.Frame{Samples: chunk, SampleRate: int(rate.Load())})
		}
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAcquire, err)
	}
	if r := stream.SampleRate(); r > 0 {
		rate.Store(int64(r))
	}

	m.running.Store(true)
	if err := stream.Start(); err != nil {
		m.running.Store(false)
		if cerr := stream.Close(); cerr != nil {
			m.logger.Warn("Failed to close input stream", "error", cerr)
		}
		return fmt.Errorf("%w: %v", ErrAcquire, err)
	}

	m.stream = stream
	m.logger.Info("Microphone started", "sample_rate", rate.Load(), "frames_per_buffer", m.chunkSize)
	return nil
}

// Stop stops and releases the input stream. No frame is delivered after
// Stop returns.
func (m *MicSource) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stream == nil {
		return nil
	}
	m.running.Store(false)

	stream := m.stream
	m.stream = nil

	err := stream.Stop()
	if cerr := stream.Close(); err == nil {
		err = cerr
	}
	m.logger.Info("Microphone stopped")
	return err
}
