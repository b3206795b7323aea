// Package mock provides a mock STT adapter for running the service without
// cloud credentials. Each audio frame advances a scripted utterance: one
// interim result per frame, then exactly one final result.
package mock

import (
	"context"
	"sync"
	"time"

	"live-transcription-service/internal/service/stt"
)

// SimulatedUtterance represents a mock utterance with progressive transcripts.
type SimulatedUtterance struct {
	Partials   []string // Progressive interim transcripts
	Final      string   // Final transcript text
	Confidence float64  // Confidence score for final
}

// DefaultUtterances provides sample utterances for simulation.
var DefaultUtterances = []SimulatedUtterance{
	{
		Partials:   []string{"test", "test one"},
		Final:      "test one",
		Confidence: 0.95,
	},
	{
		Partials:   []string{"the quick", "the quick brown", "the quick brown fox"},
		Final:      "the quick brown fox jumps over the lazy dog",
		Confidence: 0.92,
	},
	{
		Partials:   []string{"please", "please write", "please write this down"},
		Final:      "please write this down",
		Confidence: 0.9,
	},
	{
		Partials:   []string{"one two", "one two three"},
		Final:      "one two three",
		Confidence: 0.97,
	},
}

type result struct {
	text       string
	confidence float64
	final      bool
}

// Adapter implements stt.Adapter with scripted responses. Results are
// delivered from a single goroutine, in order, after Delay.
type Adapter struct {
	// Delay simulates recognizer latency per result.
	Delay      time.Duration
	utterances []SimulatedUtterance

	mu        sync.Mutex
	cb        stt.Callback
	results   chan result
	done      chan struct{}
	current   int // index into utterances
	partial   int // next partial of the current utterance
	frames    int
	started   bool
	closed    bool
	closeOnce sync.Once
}

// New creates a mock adapter cycling through DefaultUtterances.
func New() *Adapter {
	return NewWithUtterances(DefaultUtterances)
}

// NewWithUtterances creates a mock adapter that plays the given script.
func NewWithUtterances(utterances []SimulatedUtterance) *Adapter {
	return &Adapter{
		Delay:      20 * time.Millisecond,
		utterances: utterances,
	}
}

// Name implements stt.Adapter.
func (a *Adapter) Name() string {
	return "mock"
}

// Start begins a mock recognition session.
func (a *Adapter) Start(ctx context.Context, opts stt.StartOptions, cb stt.Callback) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.cb = cb
	a.results = make(chan result, 64)
	a.done = make(chan struct{})
	a.started = true

	go a.deliver(a.results, a.done)
	return nil
}

// SendAudio advances the script by one step.
func (a *Adapter) SendAudio(ctx context.Context, audio []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.started || a.closed {
		return stt.ErrNotConnected
	}
	if len(a.utterances) == 0 {
		return nil
	}
	a.frames++

	utt := a.utterances[a.current%len(a.utterances)]
	if a.partial < len(utt.Partials) {
		a.results <- result{text: utt.Partials[a.partial]}
		a.partial++
		return nil
	}

	a.results <- result{text: utt.Final, confidence: utt.Confidence, final: true}
	a.current++
	a.partial = 0
	return nil
}

// FramesReceived returns the number of audio frames accepted.
func (a *Adapter) FramesReceived() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.frames
}

// Close finalizes an utterance in progress, then waits for every pending
// result and OnClosed to be delivered.
func (a *Adapter) Close() error {
	a.closeOnce.Do(func() {
		a.mu.Lock()
		if !a.started {
			a.closed = true
			a.mu.Unlock()
			return
		}
		if a.partial > 0 {
			utt := a.utterances[a.current%len(a.utterances)]
			a.results <- result{text: utt.Final, confidence: utt.Confidence, final: true}
			a.current++
			a.partial = 0
		}
		a.closed = true
		close(a.results)
		done := a.done
		a.mu.Unlock()

		<-done
	})
	return nil
}

func (a *Adapter) deliver(results <-chan result, done chan<- struct{}) {
	defer close(done)
	defer a.cb.OnClosed()

	for r := range results {
		if a.Delay > 0 {
			time.Sleep(a.Delay)
		}
		if r.final {
			a.cb.OnFinal(r.text, r.confidence)
		} else {
			a.cb.OnPartial(r.text)
		}
	}
}
