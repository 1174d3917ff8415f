// Package audio holds the PCM primitives shared by every capture source:
// float to PCM16 conversion, fixed-size chunking and the Frame type handed
// to the wire encoder.
package audio

import (
	"encoding/binary"
	"math"
)

// PCM16 scale and bounds
const (
	PCM16Scale = 32767
	PCM16Min   = math.MinInt16
	PCM16Max   = math.MaxInt16

	// BytesPerSample is the size of one mono PCM16 sample
	BytesPerSample = 2
)

// FloatToPCM16 converts one sample nominally in [-1, 1] to signed 16-bit PCM.
// Out-of-range input saturates instead of wrapping; NaN maps to silence.
func FloatToPCM16(x float64) int16 {
	if math.IsNaN(x) {
		return 0
	}
	v := math.Round(x * PCM16Scale)
	if v > PCM16Max {
		return PCM16Max
	}
	if v < PCM16Min {
		return PCM16Min
	}
	return int16(v)
}

// Float32ToPCM16 converts a block of float samples element-wise.
func Float32ToPCM16(samples []float32) []int16 {
	out := make([]int16, len(samples))
	for i, s := range samples {
		out[i] = FloatToPCM16(float64(s))
	}
	return out
}

// PCM16ToFloat maps a PCM16 sample back to [-1, 1] using the same scale.
func PCM16ToFloat(s int16) float64 {
	return float64(s) / PCM16Scale
}

// PCM16Bytes returns the little-endian byte representation of samples.
func PCM16Bytes(samples []int16) []byte {
	buf := make([]byte, len(samples)*BytesPerSample)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*BytesPerSample:], uint16(s))
	}
	return buf
}
