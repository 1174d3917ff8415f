package audio

import (
	"encoding/binary"
	"math"
	"slices"
	"testing"
	"time"
)

func TestFloatToPCM16(t *testing.T) {
	tests := []struct {
		name string
		in   float64
		want int16
	}{
		{"zero", 0, 0},
		{"full scale positive", 1.0, 32767},
		{"full scale negative", -1.0, -32767},
		{"half positive", 0.5, 16384},
		{"half negative", -0.5, -16384},
		{"above range clamps", 1.5, 32767},
		{"below range clamps", -2.0, -32768},
		{"nan is silence", math.NaN(), 0},
		{"positive infinity", math.Inf(1), 32767},
		{"negative infinity", math.Inf(-1), -32768},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FloatToPCM16(tt.in); got != tt.want {
				t.Errorf("FloatToPCM16(%v) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestFloatToPCM16QuantizationBound(t *testing.T) {
	const steps = 20001
	for i := 0; i < steps; i++ {
		x := -1 + 2*float64(i)/float64(steps-1)
		got := PCM16ToFloat(FloatToPCM16(x))
		if diff := math.Abs(got - x); diff > 1.0/PCM16Scale {
			t.Fatalf("x=%v: |%v - x| = %v exceeds 1/32767", x, got, diff)
		}
	}
}

func TestFloat32ToPCM16(t *testing.T) {
	in := []float32{0.5, -0.5, 1.0, -1.0}
	got := Float32ToPCM16(in)
	want := []int16{16384, -16384, 32767, -32767}
	if !slices.Equal(got, want) {
		t.Errorf("Float32ToPCM16 = %v, want %v", got, want)
	}
	if out := Float32ToPCM16(nil); len(out) != 0 {
		t.Errorf("expected empty output, got %v", out)
	}
}

func TestPCM16Bytes(t *testing.T) {
	samples := []int16{1, -1, 32767, -32768}
	b := PCM16Bytes(samples)
	if len(b) != len(samples)*BytesPerSample {
		t.Fatalf("expected %d bytes, got %d", len(samples)*BytesPerSample, len(b))
	}
	for i, s := range samples {
		if got := int16(binary.LittleEndian.Uint16(b[i*2:])); got != s {
			t.Errorf("sample %d: got %d, want %d", i, got, s)
		}
	}
	if b[0] != 0x01 || b[1] != 0x00 {
		t.Errorf("expected little-endian layout, got % x", b[:2])
	}
}

func TestChunks(t *testing.T) {
	tests := []struct {
		name    string
		n       int
		size    int
		wantLen []int
	}{
		{"empty", 0, 4, nil},
		{"exact multiple", 8, 4, []int{4, 4}},
		{"short tail", 10, 4, []int{4, 4, 2}},
		{"smaller than chunk", 3, 4, []int{3}},
		{"size one", 3, 1, []int{1, 1, 1}},
		{"default size", 5000, 0, []int{2048, 2048, 904}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			samples := make([]int16, tt.n)
			for i := range samples {
				samples[i] = int16(i)
			}

			var lens []int
			var joined []int16
			for chunk := range Chunks(samples, tt.size) {
				lens = append(lens, len(chunk))
				joined = append(joined, chunk...)
			}

			if !slices.Equal(lens, tt.wantLen) {
				t.Errorf("chunk lengths = %v, want %v", lens, tt.wantLen)
			}
			if !slices.Equal(joined, samples) {
				t.Errorf("concatenated chunks do not reproduce input")
			}
			if got := NumChunks(tt.n, tt.size); got != len(tt.wantLen) {
				t.Errorf("NumChunks = %d, want %d", got, len(tt.wantLen))
			}
		})
	}
}

func TestChunksRestartable(t *testing.T) {
	samples := []int16{1, 2, 3, 4, 5}
	seq := Chunks(samples, 2)

	var first, second [][]int16
	for c := range seq {
		first = append(first, c)
	}
	for c := range seq {
		second = append(second, c)
	}
	if len(first) != 3 || len(second) != 3 {
		t.Fatalf("expected 3 chunks on both passes, got %d and %d", len(first), len(second))
	}
	for i := range first {
		if !slices.Equal(first[i], second[i]) {
			t.Errorf("pass mismatch at chunk %d: %v vs %v", i, first[i], second[i])
		}
	}
}

func TestChunksEarlyBreak(t *testing.T) {
	count := 0
	for range Chunks(make([]int16, 100), 10) {
		count++
		if count == 3 {
			break
		}
	}
	if count != 3 {
		t.Errorf("expected to stop after 3 chunks, got %d", count)
	}
}

func TestChunksDoNotOverlap(t *testing.T) {
	samples := []int16{1, 2, 3, 4, 5}
	var chunks [][]int16
	for c := range Chunks(samples, 2) {
		chunks = append(chunks, c)
	}
	// appending to a chunk must not clobber the next one
	_ = append(chunks[0], 99)
	if chunks[1][0] != 3 {
		t.Errorf("append on a chunk overwrote its neighbour: %v", chunks[1])
	}
}

func TestChunkerFrames(t *testing.T) {
	c := Chunker{Size: 2, SampleRate: 16000}
	var frames []Frame
	for f := range c.Frames([]float32{0.5, -0.5, 1.0, -1.0}) {
		frames = append(frames, f)
	}
	if len(frames) != 2 {
		t.Fatalf("expected 2 frames, got %d", len(frames))
	}
	if !slices.Equal(frames[0].Samples, []int16{16384, -16384}) {
		t.Errorf("frame 0 = %v", frames[0].Samples)
	}
	if !slices.Equal(frames[1].Samples, []int16{32767, -32767}) {
		t.Errorf("frame 1 = %v", frames[1].Samples)
	}
	for i, f := range frames {
		if f.SampleRate != 16000 {
			t.Errorf("frame %d sample rate = %d", i, f.SampleRate)
		}
	}
}

func TestFrameDuration(t *testing.T) {
	f := Frame{Samples: make([]int16, 2048), SampleRate: 16000}
	if got, want := f.Duration(), 128*time.Millisecond; got != want {
		t.Errorf("Duration = %v, want %v", got, want)
	}
	if got := (Frame{Samples: make([]int16, 10)}).Duration(); got != 0 {
		t.Errorf("expected zero duration without a sample rate, got %v", got)
	}
}
