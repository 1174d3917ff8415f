package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/raihanakbr/realtime-stream-client/internal/audio"
)

func TestEncodeLayout(t *testing.T) {
	msg, err := Encode([]int16{16384, -16384}, 16000)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	meta := []byte(`{"sampleRate":16000}`)
	if got := binary.LittleEndian.Uint32(msg[:4]); got != uint32(len(meta)) {
		t.Fatalf("length prefix = %d, want %d", got, len(meta))
	}
	if !bytes.Equal(msg[4:4+len(meta)], meta) {
		t.Fatalf("metadata = %q, want %q", msg[4:4+len(meta)], meta)
	}

	payload := msg[4+len(meta):]
	want := []byte{0x00, 0x40, 0x00, 0xC0}
	if !bytes.Equal(payload, want) {
		t.Errorf("payload = % x, want % x", payload, want)
	}
}

func TestEncodeScenario(t *testing.T) {
	// [0.5, -0.5, 1.0, -1.0] at C=2, R=16000 -> two messages
	c := audio.Chunker{Size: 2, SampleRate: 16000}
	want := [][]int16{{16384, -16384}, {32767, -32767}}

	i := 0
	for f := range c.Frames([]float32{0.5, -0.5, 1.0, -1.0}) {
		msg, err := EncodeFrame(f)
		if err != nil {
			t.Fatalf("EncodeFrame: %v", err)
		}
		meta, payload, err := Decode(msg)
		if err != nil {
			t.Fatalf("Decode: %v", err)
		}
		if meta.SampleRate != 16000 {
			t.Errorf("message %d sample rate = %d", i, meta.SampleRate)
		}
		samples, err := DecodeSamples(payload)
		if err != nil {
			t.Fatalf("DecodeSamples: %v", err)
		}
		if !slices.Equal(samples, want[i]) {
			t.Errorf("message %d samples = %v, want %v", i, samples, want[i])
		}
		i++
	}
	if i != 2 {
		t.Fatalf("expected 2 messages, got %d", i)
	}
}

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		name       string
		samples    []int16
		sampleRate int
	}{
		{"empty payload", nil, 16000},
		{"single sample", []int16{-1}, 8000},
		{"extremes", []int16{32767, -32768, 0, 1, -1}, 44100},
		{"full chunk", make([]int16, audio.DefaultChunkSize), 48000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := Encode(tt.samples, tt.sampleRate)
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}

			meta, payload, err := Decode(msg)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if meta.SampleRate != tt.sampleRate {
				t.Errorf("sample rate = %d, want %d", meta.SampleRate, tt.sampleRate)
			}
			if !bytes.Equal(payload, audio.PCM16Bytes(tt.samples)) {
				t.Errorf("payload is not byte-equal to the input samples")
			}

			f, err := DecodeFrame(msg)
			if err != nil {
				t.Fatalf("DecodeFrame: %v", err)
			}
			if len(f.Samples) != len(tt.samples) || !slices.Equal(f.Samples, append([]int16{}, tt.samples...)) {
				t.Errorf("frame samples = %v, want %v", f.Samples, tt.samples)
			}
		})
	}
}

func TestEncodeErrors(t *testing.T) {
	if _, err := Encode([]int16{1}, 0); !errors.Is(err, ErrInvalidSampleRate) {
		t.Errorf("expected ErrInvalidSampleRate, got %v", err)
	}
	if _, err := Encode([]int16{1}, -16000); !errors.Is(err, ErrInvalidSampleRate) {
		t.Errorf("expected ErrInvalidSampleRate, got %v", err)
	}
}

func TestEncodeMetadataTooLarge(t *testing.T) {
	saved := maxMetadataLen
	maxMetadataLen = 4
	defer func() { maxMetadataLen = saved }()

	if _, err := Encode([]int16{1}, 16000); !errors.Is(err, ErrMetadataTooLarge) {
		t.Errorf("expected ErrMetadataTooLarge, got %v", err)
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		wantErr  error
		errorMsg string
	}{
		{
			name:    "empty",
			data:    []byte{},
			wantErr: ErrShortMessage,
		},
		{
			name:    "partial header",
			data:    []byte{0x01, 0x00},
			wantErr: ErrShortMessage,
		},
		{
			name:    "length past end",
			data:    []byte{0x10, 0x00, 0x00, 0x00, '{', '}'},
			wantErr: ErrTruncatedMetadata,
		},
		{
			name:    "max length",
			data:    []byte{0xFF, 0xFF, 0xFF, 0xFF},
			wantErr: ErrTruncatedMetadata,
		},
		{
			name:     "bad json",
			data:     []byte{0x02, 0x00, 0x00, 0x00, '{', 'x'},
			errorMsg: "failed to parse metadata",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Decode(tt.data)
			if err == nil {
				t.Fatal("expected error but got none")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
			if tt.errorMsg != "" && !strings.Contains(err.Error(), tt.errorMsg) {
				t.Errorf("expected error to contain %q, got %q", tt.errorMsg, err.Error())
			}
		})
	}
}

func TestDecodeSamplesOddPayload(t *testing.T) {
	if _, err := DecodeSamples([]byte{0x01, 0x02, 0x03}); !errors.Is(err, ErrOddPayload) {
		t.Errorf("expected ErrOddPayload, got %v", err)
	}
}

func TestDecodeEmptyMetadataKeepsPayload(t *testing.T) {
	msg := []byte{0x02, 0x00, 0x00, 0x00, '{', '}', 0x01, 0x00}
	meta, payload, err := Decode(msg)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if meta.SampleRate != 0 {
		t.Errorf("expected zero sample rate, got %d", meta.SampleRate)
	}
	if !bytes.Equal(payload, []byte{0x01, 0x00}) {
		t.Errorf("payload = % x", payload)
	}
}
