// Package session owns the state of one live transcription session and the
// coordinator that starts, stops and winds it down.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"live-transcription-service/internal/models"
	"live-transcription-service/internal/observability/metrics"
	"live-transcription-service/internal/service/stt"
	"live-transcription-service/internal/service/transcript"
)

const publishTimeout = 5 * time.Second

// FragmentPublisher forwards fragments to downstream consumers.
// *events.Publisher satisfies it.
type FragmentPublisher interface {
	PublishFragment(ctx context.Context, sessionID string, seq int64, frag models.Fragment) error
}

// Session is one live transcription. The session context is the active
// signal: it is cancelled by Stop or when the recognizer closes the
// connection. Session implements stt.Callback.
type Session struct {
	id         string
	provider   string
	sampleRate int
	startedAt  time.Time

	ctx       context.Context
	cancel    context.CancelFunc
	lifecycle *Lifecycle
	queue     *transcript.Queue
	sink      *transcript.Sink
	seq       atomic.Int64
	done      chan struct{}

	publisher FragmentPublisher
	metrics   *metrics.Metrics
	logger    zerolog.Logger
}

func newSession(id, provider string, sampleRate int, publisher FragmentPublisher, m *metrics.Metrics, logger zerolog.Logger) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		id:         id,
		provider:   provider,
		sampleRate: sampleRate,
		startedAt:  time.Now(),
		ctx:        ctx,
		cancel:     cancel,
		lifecycle:  NewLifecycle(logger),
		queue:      transcript.NewQueue(),
		sink:       transcript.NewSink(),
		done:       make(chan struct{}),
		publisher:  publisher,
		metrics:    m,
		logger:     logger,
	}
}

// ID returns the session id.
func (s *Session) ID() string {
	return s.id
}

// SampleRate returns the audio source rate the recognizer was started with.
func (s *Session) SampleRate() int {
	return s.sampleRate
}

// State returns the connection lifecycle state.
func (s *Session) State() State {
	return s.lifecycle.State()
}

// Active reports whether the session has not been stopped.
func (s *Session) Active() bool {
	return s.ctx.Err() == nil
}

// Context is cancelled when the session stops being active.
func (s *Session) Context() context.Context {
	return s.ctx
}

// Done is closed once the socket is closed and the transcript flushed.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Next waits up to timeout for the next fragment text.
func (s *Session) Next(ctx context.Context, timeout time.Duration) (string, bool) {
	return s.queue.Dequeue(ctx, timeout)
}

// Pending returns the number of fragments not yet consumed.
func (s *Session) Pending() int {
	return s.queue.Len()
}

// FinalText returns the finals accumulated so far, space separated.
func (s *Session) FinalText() string {
	return s.sink.Text()
}

// Stop clears the active signal. It does not close the socket or wait for
// the session to wind down; see Done. Idempotent.
func (s *Session) Stop() {
	if s.lifecycle.Stop() {
		s.logger.Info().Msg("Session stop requested")
	}
	s.cancel()
}

// --- stt.Callback implementation ---

// OnPartial queues an interim transcript for streaming.
func (s *Session) OnPartial(text string) {
	s.queue.Enqueue(text)
	s.metrics.RecordPartialTranscript()
	s.publish(models.Fragment{Text: text})

	s.logger.Debug().Str("text", text).Msg("Interim transcript")
}

// OnFinal queues a final transcript for streaming and appends it to the
// session transcript.
func (s *Session) OnFinal(text string, confidence float64) {
	s.queue.Enqueue(text)
	s.sink.Append(text)
	s.metrics.RecordFinalTranscript()
	s.publish(models.Fragment{Text: text, IsFinal: true, Confidence: confidence})

	s.logger.Info().
		Str("text", text).
		Float64("confidence", confidence).
		Msg("Final transcript")
}

// OnError logs recognizer errors. Errors never change session state.
func (s *Session) OnError(err error) {
	s.metrics.RecordSTTError(s.provider, errorType(err))
	s.logger.Warn().Err(err).Msg("Recognizer error")
}

// OnClosed clears the active signal when the receive loop ends.
func (s *Session) OnClosed() {
	s.logger.Info().Msg("Recognizer connection closed")
	s.Stop()
}

func (s *Session) publish(frag models.Fragment) {
	if s.publisher == nil {
		return
	}
	seq := s.seq.Add(1)

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := s.publisher.PublishFragment(ctx, s.id, seq, frag); err != nil {
		s.logger.Warn().Err(err).Int64("sequence", seq).Bool("final", frag.IsFinal).Msg("Failed to publish fragment")
	}
}

func errorType(err error) string {
	switch {
	case errors.Is(err, stt.ErrNotConnected):
		return "not_connected"
	case errors.As(err, new(*json.SyntaxError)):
		return "decode"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "recognizer"
	}
}
