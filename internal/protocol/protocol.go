// Package protocol implements the binary message sent once per audio chunk:
//
//	[uint32 LE metadata length][JSON metadata][PCM16 LE payload]
//
// The length covers the JSON metadata only, so a receiver reads 4 bytes,
// then exactly that many bytes of JSON, and treats the rest as samples.
package protocol

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/raihanakbr/realtime-stream-client/internal/audio"
)

// HeaderSize is the size of the metadata length prefix
const HeaderSize = 4

var (
	// ErrInvalidSampleRate is returned when encoding a frame without a positive rate.
	ErrInvalidSampleRate = errors.New("sample rate must be positive")

	// ErrMetadataTooLarge is returned when the metadata length does not fit the header.
	ErrMetadataTooLarge = errors.New("metadata exceeds 4-byte length prefix")

	// ErrShortMessage is returned when a message is smaller than the header.
	ErrShortMessage = errors.New("message shorter than header")

	// ErrTruncatedMetadata is returned when the header points past the end of the message.
	ErrTruncatedMetadata = errors.New("metadata length exceeds message size")

	// ErrOddPayload is returned when a payload is not a whole number of samples.
	ErrOddPayload = errors.New("payload is not a whole number of PCM16 samples")
)

// Metadata describes the payload that follows it
type Metadata struct {
	SampleRate int `json:"sampleRate"`
}

// maxMetadataLen is a variable so the overflow branch can be tested
var maxMetadataLen uint64 = math.MaxUint32

// Encode builds one wire message for samples captured at sampleRate.
func Encode(samples []int16, sampleRate int) ([]byte, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("%w, got %d", ErrInvalidSampleRate, sampleRate)
	}

	meta, err := json.Marshal(Metadata{SampleRate: sampleRate})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal metadata: %w", err)
	}
	if uint64(len(meta)) > maxMetadataLen {
		return nil, fmt.Errorf("%w: %d bytes", ErrMetadataTooLarge, len(meta))
	}

	msg := make([]byte, HeaderSize+len(meta)+len(samples)*audio.BytesPerSample)
	binary.LittleEndian.PutUint32(msg, uint32(len(meta)))
	copy(msg[HeaderSize:], meta)

	payload := msg[HeaderSize+len(meta):]
	for i, s := range samples {
		binary.LittleEndian.PutUint16(payload[i*audio.BytesPerSample:], uint16(s))
	}

	return msg, nil
}

// EncodeFrame is Encode for a captured frame
func EncodeFrame(f audio.Frame) ([]byte, error) {
	return Encode(f.Samples, f.SampleRate)
}

// Decode splits a wire message into its metadata and raw payload bytes. The
// payload aliases msg.
func Decode(msg []byte) (Metadata, []byte, error) {
	var meta Metadata

	if len(msg) < HeaderSize {
		return meta, nil, fmt.Errorf("%w: got %d bytes", ErrShortMessage, len(msg))
	}

	n := uint64(binary.LittleEndian.Uint32(msg))
	if n > uint64(len(msg)-HeaderSize) {
		return meta, nil, fmt.Errorf("%w: header says %d, have %d", ErrTruncatedMetadata, n, len(msg)-HeaderSize)
	}

	end := HeaderSize + int(n)
	if err := json.Unmarshal(msg[HeaderSize:end], &meta); err != nil {
		return meta, nil, fmt.Errorf("failed to parse metadata: %w", err)
	}

	return meta, msg[end:], nil
}

// DecodeSamples converts a little-endian PCM16 payload into samples.
func DecodeSamples(payload []byte) ([]int16, error) {
	if len(payload)%audio.BytesPerSample != 0 {
		return nil, fmt.Errorf("%w: %d bytes", ErrOddPayload, len(payload))
	}
	samples := make([]int16, len(payload)/audio.BytesPerSample)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(payload[i*audio.BytesPerSample:]))
	}
	return samples, nil
}

// DecodeFrame decodes a wire message back into a frame.
func DecodeFrame(msg []byte) (audio.Frame, error) {
	meta, payload, err := Decode(msg)
	if err != nil {
		return audio.Frame{}, err
	}
	samples, err := DecodeSamples(payload)
	if err != nil {
		return audio.Frame{}, err
	}
	return audio.Frame{Samples: samples, SampleRate: meta.SampleRate}, nil
}
