// Package portaudio implements capture.Device on the system's default
// input device via PortAudio.
package portaudio

import (
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"

	"github.com/raihanakbr/realtime-stream-client/internal/capture"
)

// Device opens mono input streams on the default input device
type Device struct{}

var _ capture.Device = Device{}

// Open initializes PortAudio and opens a callback stream. The library is
// terminated again when the stream is closed or when opening fails.
func (Device) Open(sampleRate, framesPerBuffer int, callback func(in []float32)) (capture.Stream, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio init failed: %w", err)
	}

	stream, err := portaudio.OpenDefaultStream(1, 0, float64(sampleRate), framesPerBuffer, func(in []float32) {
		callback(in)
	})
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("open stream failed: %w", err)
	}

	rate := sampleRate
	if info := stream.Info(); info != nil && info.SampleRate > 0 {
		rate = int(info.SampleRate)
	}
	return &inputStream{stream: stream, rate: rate}, nil
}

type inputStream struct {
	stream *portaudio.Stream
	rate   int
	once   sync.Once
}

func (s *inputStream) Start() error { return s.stream.Start() }

func (s *inputStream) Stop() error { return s.stream.Stop() }

func (s *inputStream) SampleRate() int { return s.rate }

// Close closes the stream and terminates PortAudio once
func (s *inputStream) Close() error {
	var err error
	s.once.Do(func() {
		err = s.stream.Close()
		if terr := portaudio.Terminate(); err == nil {
			err = terr
		}
	})
	return err
}

// DeviceInfo describes an input-capable device
type DeviceInfo struct {
	Name              string
	HostAPI           string
	MaxInputChannels  int
	DefaultSampleRate float64
	Default           bool
}

// ListDevices returns all devices with at least one input channel
func ListDevices() ([]DeviceInfo, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio init failed: %w", err)
	}
	defer portaudio.Terminate()

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}

	var defaultName string
	if d, err := portaudio.DefaultInputDevice(); err == nil && d != nil {
		defaultName = d.Name
	}

	var out []DeviceInfo
	for _, d := range devices {
		if d.MaxInputChannels < 1 {
			continue
		}
		info := DeviceInfo{
			Name:              d.Name,
			MaxInputChannels:  d.MaxInputChannels,
			DefaultSampleRate: d.DefaultSampleRate,
			Default:           d.Name == defaultName,
		}
		if d.HostApi != nil {
			info.HostAPI = d.HostApi.Name
		}
		out = append(out, info)
	}
	return out, nil
}
