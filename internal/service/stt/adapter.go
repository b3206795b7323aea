// Package stt defines the interface for Speech-to-Text adapters.
package stt

import (
	"context"
	"errors"
)

// ErrNotConnected is returned when audio is sent before Start succeeded or
// after Close.
var ErrNotConnected = errors.New("stt: not connected")

// Callback receives transcript results from the STT provider. Calls are
// made from a single receive goroutine in arrival order.
type Callback interface {
	// OnPartial is called when an interim transcript is received.
	OnPartial(text string)

	// OnFinal is called when a final transcript is received.
	OnFinal(text string, confidence float64)

	// OnError is called for connection errors and undecodable messages.
	// It never ends the session by itself.
	OnError(err error)

	// OnClosed is called once when the receive loop ends, whether the
	// remote closed the connection or Close was called.
	OnClosed()
}

// StartOptions describes the audio that will be streamed.
type StartOptions struct {
	SampleRateHz int
}

// Adapter defines the interface for STT providers (Watson, Google, mock).
type Adapter interface {
	// Name identifies the provider in logs and metrics.
	Name() string

	// Start opens the connection, sends the start directive and begins
	// delivering results to cb.
	Start(ctx context.Context, opts StartOptions, cb Callback) error

	// SendAudio sends one frame of raw PCM audio.
	SendAudio(ctx context.Context, audio []byte) error

	// Close sends the stop directive, waits for trailing results and
	// releases the connection. It returns after the receive loop has
	// ended. Idempotent.
	Close() error
}
