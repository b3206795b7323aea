// Package audio reads fixed-size PCM frames from a capture source and
// forwards them to the recognizer.
package audio

import "context"

// Source yields 16-bit little-endian mono PCM frames.
type Source interface {
	// SampleRate is the native rate of the source in Hz.
	SampleRate() int

	// Read blocks until one frame is available. It returns io.EOF when the
	// source is exhausted.
	Read() ([]byte, error)

	// Close stops capture and releases the device or file.
	Close() error
}

// Sender receives audio frames. stt.Adapter satisfies it.
type Sender interface {
	SendAudio(ctx context.Context, audio []byte) error
}
