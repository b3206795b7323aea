package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"live-transcription-service/internal/observability/logging"
	"live-transcription-service/internal/observability/metrics"
	"live-transcription-service/internal/service/audio"
	"live-transcription-service/internal/service/stt"
	"live-transcription-service/internal/service/transcript"
)

// ErrSessionActive is returned by Start while another session is live.
var ErrSessionActive = errors.New("session: transcription already active")

// AdapterFactory creates a recognizer adapter for a new session.
type AdapterFactory func(ctx context.Context) (stt.Adapter, error)

// SourceFactory opens the audio source for a new session.
type SourceFactory func() (audio.Source, error)

// Config wires a Coordinator.
type Config struct {
	NewAdapter AdapterFactory
	OpenSource SourceFactory
	Store      *transcript.Store
	Publisher  FragmentPublisher // optional
	Metrics    *metrics.Metrics  // nil uses the default metrics
}

// Coordinator runs at most one live session at a time.
type Coordinator struct {
	cfg      Config
	gen      *Generator
	producer *audio.Producer
	metrics  *metrics.Metrics
	logger   zerolog.Logger

	mu       sync.Mutex
	current  *Session
	wg       sync.WaitGroup
	shutdown bool
}

// NewCoordinator creates a coordinator.
func NewCoordinator(cfg Config) *Coordinator {
	m := cfg.Metrics
	if m == nil {
		m = metrics.DefaultMetrics
	}
	logger := logging.WithComponent("session")
	return &Coordinator{
		cfg:      cfg,
		gen:      NewGenerator(),
		producer: audio.NewProducer(m, logger),
		metrics:  m,
		logger:   logger,
	}
}

// Start opens the audio source, creates the session and connects the
// recognizer in the background. It returns without waiting for the
// connection. A second Start while a session is live returns
// ErrSessionActive.
func (c *Coordinator) Start(ctx context.Context) (*Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.shutdown {
		return nil, errors.New("session: coordinator is shut down")
	}
	if c.current != nil && !isDone(c.current) {
		c.metrics.RecordSessionRejected()
		return nil, ErrSessionActive
	}

	// The source is opened first so its native rate is known before the
	// start directive is built.
	src, err := c.cfg.OpenSource()
	if err != nil {
		c.metrics.RecordSessionFailed()
		return nil, fmt.Errorf("open audio source: %w", err)
	}

	adapter, err := c.cfg.NewAdapter(ctx)
	if err != nil {
		src.Close()
		c.metrics.RecordSessionFailed()
		return nil, fmt.Errorf("create recognizer adapter: %w", err)
	}

	id := c.gen.Next()
	logger := logging.WithStream(id, adapter.Name())
	s := newSession(id, adapter.Name(), src.SampleRate(), c.cfg.Publisher, c.metrics, logger)
	c.current = s
	c.metrics.RecordSessionStart()

	logger.Info().
		Int("sampleRateHz", s.sampleRate).
		Msg("Session started")

	c.wg.Add(1)
	go c.run(s, adapter, src)
	return s, nil
}

// Stop clears the active signal of the current session. It does not wait
// for wind-down. No-op when no session is live.
func (c *Coordinator) Stop() {
	if s := c.Current(); s != nil {
		s.Stop()
	}
}

// Current returns the most recent session, live or finished, or nil.
func (c *Coordinator) Current() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Active reports whether a session is live.
func (c *Coordinator) Active() bool {
	s := c.Current()
	return s != nil && s.Active()
}

// Wait blocks until every session has wound down or ctx is done.
func (c *Coordinator) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown refuses new sessions, stops the current one and waits for its
// transcript to be flushed.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	c.shutdown = true
	c.mu.Unlock()

	c.Stop()
	return c.Wait(ctx)
}

// run connects the recognizer, streams audio until the session stops and
// then winds down in order: producer exits, adapter closes (stop directive,
// grace period, socket close, receive loop exit), transcript flush.
func (c *Coordinator) run(s *Session, adapter stt.Adapter, src audio.Source) {
	defer c.wg.Done()
	defer close(s.done)

	dialStart := time.Now()
	err := adapter.Start(s.ctx, stt.StartOptions{SampleRateHz: src.SampleRate()}, s)
	if err != nil {
		s.logger.Error().Err(err).Msg("Recognizer connection failed")
		c.metrics.RecordSessionFailed()
		c.metrics.RecordSTTError(adapter.Name(), "connect")

		s.Stop()
		if cerr := src.Close(); cerr != nil {
			s.logger.Warn().Err(cerr).Msg("Failed to close audio source")
		}
		adapter.Close()
		s.lifecycle.Closed()
		c.metrics.RecordSessionEnd(time.Since(s.startedAt).Seconds())
		return
	}
	c.metrics.RecordSTTConnect(adapter.Name(), time.Since(dialStart).Seconds())

	if err := s.lifecycle.Opened(); err != nil {
		// Stopped while connecting: skip streaming and wind down.
		if cerr := src.Close(); cerr != nil {
			s.logger.Warn().Err(cerr).Msg("Failed to close audio source")
		}
	} else {
		if err := c.producer.Run(s.ctx, src, adapter); err != nil {
			s.logger.Error().Err(err).Msg("Audio producer failed")
		}
	}

	s.Stop()
	if err := adapter.Close(); err != nil {
		s.logger.Warn().Err(err).Msg("Error closing recognizer connection")
	}

	err = s.sink.Flush(c.cfg.Store)
	c.metrics.RecordFlush(err)
	if err != nil {
		s.logger.Error().Err(err).Str("path", c.cfg.Store.Path()).Msg("Failed to write transcript")
	} else {
		s.logger.Info().Str("path", c.cfg.Store.Path()).Msg("Transcript written")
	}

	s.lifecycle.Closed()
	c.metrics.RecordSessionEnd(time.Since(s.startedAt).Seconds())
	s.logger.Info().
		Dur("duration", time.Since(s.startedAt)).
		Msg("Session closed")
}

func isDone(s *Session) bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}
