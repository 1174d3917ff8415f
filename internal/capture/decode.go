package capture

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
)

// wav format tags accepted as integer PCM
const (
	wavFormatPCM        = 1
	wavFormatExtensible = 0xFFFE
)

// Decode reads a WAV or MP3 file into mono float samples in [-1, 1] and
// returns them with the file's native sample rate. Multi-channel audio is
// reduced to its first channel. No resampling is done.
func Decode(path string) ([]float32, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	switch detectFormat(f, path) {
	case "wav":
		return decodeWAV(f)
	case "mp3":
		return decodeMP3(f)
	}
	return nil, 0, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Base(path))
}

// detectFormat sniffs the header and falls back to the file extension
func detectFormat(r io.ReadSeeker, path string) string {
	head := make([]byte, 12)
	n, _ := io.ReadFull(r, head)
	head = head[:n]
	r.Seek(0, io.SeekStart)

	switch {
	case len(head) >= 12 && bytes.Equal(head[:4], []byte("RIFF")) && bytes.Equal(head[8:12], []byte("WAVE")):
		return "wav"
	case len(head) >= 3 && bytes.Equal(head[:3], []byte("ID3")):
		return "mp3"
	case len(head) >= 2 && head[0] == 0xFF && head[1]&0xE0 == 0xE0:
		return "mp3"
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav", ".wave":
		return "wav"
	case ".mp3":
		return "mp3"
	}
	return ""
}

func decodeWAV(r io.ReadSeeker) ([]float32, int, error) {
	d := wav.NewDecoder(r)
	if !d.IsValidFile() {
		if err := d.Err(); err != nil {
			return nil, 0, err
		}
		return nil, 0, fmt.Errorf("invalid wav file")
	}
	if d.WavAudioFormat != wavFormatPCM && d.WavAudioFormat != wavFormatExtensible {
		return nil, 0, fmt.Errorf("%w: wav format tag %d", ErrUnsupportedFormat, d.WavAudioFormat)
	}

	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, 0, err
	}

	channels := int(d.NumChans)
	if channels < 1 {
		channels = 1
	}
	depth := int(d.BitDepth)
	if depth <= 0 || depth > 32 {
		return nil, 0, fmt.Errorf("%w: %d-bit wav", ErrUnsupportedFormat, depth)
	}

	scale := float64(int64(1) << (depth - 1))
	frames := len(buf.Data) / channels
	out := make([]float32, frames)
	for i := range out {
		v := float64(buf.Data[i*channels])
		if depth == 8 {
			// 8-bit wav is unsigned
			v -= 128
		}
		out[i] = float32(clamp(v / scale))
	}
	return out, int(d.SampleRate), nil
}

func decodeMP3(r io.Reader) ([]float32, int, error) {
	d, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, 0, err
	}

	// go-mp3 always produces interleaved stereo int16 little endian
	pcm, err := io.ReadAll(d)
	if err != nil {
		return nil, 0, err
	}

	const frameBytes = 4
	out := make([]float32, len(pcm)/frameBytes)
	for i := range out {
		left := int16(uint16(pcm[i*frameBytes]) | uint16(pcm[i*frameBytes+1])<<8)
		out[i] = float32(float64(left) / 32768)
	}
	return out, d.SampleRate(), nil
}

func clamp(x float64) float64 {
	if x > 1 {
		return 1
	}
	if x < -1 {
		return -1
	}
	return x
}
