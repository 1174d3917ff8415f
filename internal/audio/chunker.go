package audio

import (
	"iter"
	"time"
)

// DefaultChunkSize is the number of samples per chunk sent over the wire
const DefaultChunkSize = 2048

// DefaultSampleRate is the capture rate requested from input devices
const DefaultSampleRate = 16000

// Frame is one chunk of PCM16 samples bound to the rate it was captured at.
// Frames are not modified after they are produced.
type Frame struct {
	Samples    []int16
	SampleRate int
}

// Duration returns the playback length of the frame
func (f Frame) Duration() time.Duration {
	return SamplesDuration(len(f.Samples), f.SampleRate)
}

// SamplesDuration returns how long n samples last at sampleRate.
func SamplesDuration(n, sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second / time.Duration(sampleRate)
}

// Chunks splits samples into contiguous, non-overlapping slices of size
// samples each. The final slice is shorter when len(samples) is not a
// multiple of size; nothing is padded. A non-positive size falls back to
// DefaultChunkSize. The yielded slices alias samples.
func Chunks[S ~[]E, E any](samples S, size int) iter.Seq[S] {
	if size <= 0 {
		size = DefaultChunkSize
	}
	return func(yield func(S) bool) {
		for start := 0; start < len(samples); start += size {
			end := min(start+size, len(samples))
			if !yield(samples[start:end:end]) {
				return
			}
		}
	}
}

// NumChunks reports how many slices Chunks yields for n samples.
func NumChunks(n, size int) int {
	if size <= 0 {
		size = DefaultChunkSize
	}
	return (n + size - 1) / size
}

// Chunker frames sample blocks at a fixed rate. It is stateless between
// calls: every block is chunked on its own and nothing is carried over.
type Chunker struct {
	Size       int
	SampleRate int
}

// Frames converts float samples and yields them as frames in order.
func (c Chunker) Frames(samples []float32) iter.Seq[Frame] {
	return func(yield func(Frame) bool) {
		for chunk := range Chunks(samples, c.Size) {
			if !yield(Frame{Samples: Float32ToPCM16(chunk), SampleRate: c.SampleRate}) {
				return
			}
		}
	}
}
