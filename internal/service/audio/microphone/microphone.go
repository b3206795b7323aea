// Package microphone captures audio from the default input device with
// PortAudio. It is kept apart from package audio so that only binaries that
// record from a device link against the native library.
package microphone

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
)

// Source is an audio.Source backed by the default input device. Frames are
// mono 16-bit little-endian PCM at the device's default sample rate.
type Source struct {
	stream *portaudio.Stream
	buffer []int16
	rate   int
	device string

	closeOnce sync.Once
	closeErr  error
}

// Open initializes PortAudio, opens the default input device at its native
// rate and starts capture. frameSize is the number of samples per Read.
func Open(frameSize int) (*Source, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("initialize portaudio: %w", err)
	}

	device, err := portaudio.DefaultInputDevice()
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("default input device: %w", err)
	}

	params := portaudio.LowLatencyParameters(device, nil)
	params.Input.Channels = 1
	params.SampleRate = device.DefaultSampleRate
	params.FramesPerBuffer = frameSize

	buffer := make([]int16, frameSize)
	stream, err := portaudio.OpenStream(params, buffer)
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("open input stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return nil, fmt.Errorf("start input stream: %w", err)
	}

	return &Source{
		stream: stream,
		buffer: buffer,
		rate:   int(device.DefaultSampleRate),
		device: device.Name,
	}, nil
}

// Device returns the name of the capture device.
func (s *Source) Device() string {
	return s.device
}

// SampleRate implements audio.Source.
func (s *Source) SampleRate() int {
	return s.rate
}

// Read blocks for one buffer of samples. An input overflow is not treated
// as fatal; the samples that were captured are returned.
func (s *Source) Read() ([]byte, error) {
	if err := s.stream.Read(); err != nil && err != portaudio.InputOverflowed {
		return nil, fmt.Errorf("read input stream: %w", err)
	}
	return encodePCM(s.buffer), nil
}

// Close stops and closes the stream and releases PortAudio.
func (s *Source) Close() error {
	s.closeOnce.Do(func() {
		if err := s.stream.Stop(); err != nil {
			s.closeErr = err
		}
		if err := s.stream.Close(); err != nil && s.closeErr == nil {
			s.closeErr = err
		}
		if err := portaudio.Terminate(); err != nil && s.closeErr == nil {
			s.closeErr = err
		}
	})
	return s.closeErr
}

// encodePCM converts samples to little-endian bytes.
func encodePCM(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, v := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(v))
	}
	return out
}
