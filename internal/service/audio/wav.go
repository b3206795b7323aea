package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"time"
)

// WAV header is 44 bytes for standard PCM files
const wavHeaderSize = 44

// ErrUnsupportedWAV is returned for files that are not 16-bit mono PCM.
var ErrUnsupportedWAV = errors.New("audio: unsupported WAV format")

// WAVFormat describes the fmt chunk of a PCM WAV file.
type WAVFormat struct {
	AudioFormat   uint16
	Channels      uint16
	SampleRate    uint32
	BitsPerSample uint16
}

// ParseWAVHeader reads and validates the 44-byte canonical header.
func ParseWAVHeader(r io.Reader) (WAVFormat, error) {
	header := make([]byte, wavHeaderSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return WAVFormat{}, fmt.Errorf("read WAV header: %w", err)
	}

	if string(header[0:4]) != "RIFF" || string(header[8:12]) != "WAVE" {
		return WAVFormat{}, fmt.Errorf("%w: not a RIFF/WAVE file", ErrUnsupportedWAV)
	}

	f := WAVFormat{
		AudioFormat:   binary.LittleEndian.Uint16(header[20:22]),
		Channels:      binary.LittleEndian.Uint16(header[22:24]),
		SampleRate:    binary.LittleEndian.Uint32(header[24:28]),
		BitsPerSample: binary.LittleEndian.Uint16(header[34:36]),
	}
	if f.AudioFormat != 1 || f.Channels != 1 || f.BitsPerSample != 16 || f.SampleRate == 0 {
		return f, fmt.Errorf("%w: format=%d channels=%d bits=%d rate=%d",
			ErrUnsupportedWAV, f.AudioFormat, f.Channels, f.BitsPerSample, f.SampleRate)
	}
	return f, nil
}

// WAVSource replays a 16-bit mono PCM WAV file frame by frame.
type WAVSource struct {
	r         io.ReadCloser
	format    WAVFormat
	frame     []byte
	interval  time.Duration
	lastFrame time.Time
}

// OpenWAV opens a WAV file as a Source. When realtime is set, Read is paced
// to the file's sample rate the way a capture device would be.
func OpenWAV(path string, frameSize int, realtime bool) (*WAVSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open WAV file: %w", err)
	}
	src, err := NewWAVSource(f, frameSize, realtime)
	if err != nil {
		f.Close()
		return nil, err
	}
	return src, nil
}

// NewWAVSource wraps an open WAV stream.
func NewWAVSource(r io.ReadCloser, frameSize int, realtime bool) (*WAVSource, error) {
	format, err := ParseWAVHeader(r)
	if err != nil {
		return nil, err
	}

	s := &WAVSource{
		r:      r,
		format: format,
		frame:  make([]byte, frameSize*2),
	}
	if realtime {
		s.interval = time.Duration(frameSize) * time.Second / time.Duration(format.SampleRate)
	}
	return s, nil
}

// Format returns the parsed header.
func (s *WAVSource) Format() WAVFormat {
	return s.format
}

// SampleRate implements Source.
func (s *WAVSource) SampleRate() int {
	return int(s.format.SampleRate)
}

// Read implements Source. The final frame may be shorter than the frame
// size.
func (s *WAVSource) Read() ([]byte, error) {
	if s.interval > 0 && !s.lastFrame.IsZero() {
		if wait := s.interval - time.Since(s.lastFrame); wait > 0 {
			time.Sleep(wait)
		}
	}

	n, err := io.ReadFull(s.r, s.frame)
	if errors.Is(err, io.ErrUnexpectedEOF) {
		err = nil
	}
	if n == 0 && err == nil {
		err = io.EOF
	}
	if err != nil {
		return nil, err
	}
	s.lastFrame = time.Now()

	out := make([]byte, n)
	copy(out, s.frame[:n])
	return out, nil
}

// Close implements Source.
func (s *WAVSource) Close() error {
	return s.r.Close()
}
