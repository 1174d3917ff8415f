package capture

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/raihanakbr/realtime-stream-client/internal/audio"
)

// DecodeFunc decodes a file into mono float samples and their sample rate
type DecodeFunc func(path string) ([]float32, int, error)

// SleepFunc waits for d or until ctx is done
type SleepFunc func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// FileSource streams a decoded file paced at real time. After every chunk
// except the last it waits len(chunk)/sampleRate.
type FileSource struct {
	path      string
	chunkSize int
	logger    *slog.Logger

	// Decode and Sleep may be replaced before Start
	Decode DecodeFunc
	Sleep  SleepFunc

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	err    error
	frames int
}

// NewFileSource creates a source for path
func NewFileSource(path string, chunkSize int, logger *slog.Logger) *FileSource {
	if chunkSize <= 0 {
		chunkSize = audio.DefaultChunkSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FileSource{
		path:      path,
		chunkSize: chunkSize,
		logger:    logger.With("file", path),
		Decode:    Decode,
		Sleep:     sleepContext,
	}
}

// Name implements Source
func (f *FileSource) Name() string { return "file" }

// Start decodes the whole file, then streams it in the background.
// Decode failures are returned wrapped in ErrDecode. A Stop that arrives
// during the decode prevents streaming from starting.
func (f *FileSource) Start(ctx context.Context, handler FrameHandler) error {
	f.mu.Lock()
	if f.done != nil {
		f.mu.Unlock()
		return ErrAlreadyStarted
	}
	f.done = make(chan struct{})
	ctx, f.cancel = context.WithCancel(ctx)
	f.mu.Unlock()

	samples, rate, err := f.Decode(f.path)
	if err == nil && rate <= 0 {
		err = fmt.Errorf("invalid sample rate %d", rate)
	}
	if err != nil {
		err = fmt.Errorf("%w: %s: %v", ErrDecode, f.path, err)
		f.finish(err)
		return err
	}

	if ctx.Err() != nil {
		f.logger.Info("File streaming stopped before start")
		f.finish(nil)
		return nil
	}

	f.logger.Info("Processing and streaming file", "samples", len(samples), "sample_rate", rate,
		"duration", audio.SamplesDuration(len(samples), rate))

	go f.run(ctx, samples, rate, handler)
	return nil
}

func (f *FileSource) run(ctx context.Context, samples []float32, rate int, handler FrameHandler) {
	chunker := audio.Chunker{Size: f.chunkSize, SampleRate: rate}
	total := audio.NumChunks(len(samples), f.chunkSize)

	var err error
	sent := 0
	for frame := range chunker.Frames(samples) {
		if err = ctx.Err(); err != nil {
			break
		}
		handler(frame)
		sent++

		if sent == total {
			break
		}
		if err = f.Sleep(ctx, frame.Duration()); err != nil {
			break
		}
	}

	f.mu.Lock()
	f.frames = sent
	f.mu.Unlock()

	if err != nil {
		f.logger.Info("File streaming stopped", "frames", sent, "total", total)
	} else {
		f.logger.Info("File streaming finished", "frames", sent)
	}
	f.finish(nil)
}

func (f *FileSource) finish(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
	if f.cancel != nil {
		f.cancel()
	}
	close(f.done)
}

// Done is closed when streaming ends, fails or is stopped. It is nil before
// Start.
func (f *FileSource) Done() <-chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.done
}

// Err reports a decode failure once Done is closed
func (f *FileSource) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

// Frames reports how many frames were delivered once Done is closed
func (f *FileSource) Frames() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.frames
}

// Stop cancels streaming and waits for the pacing goroutine to exit. When
// called during the decode it waits for the decode only; no frame is sent.
func (f *FileSource) Stop() error {
	f.mu.Lock()
	cancel, done := f.cancel, f.done
	f.mu.Unlock()

	if done == nil {
		return nil
	}
	cancel()
	<-done
	return nil
}
