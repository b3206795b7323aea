package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"live-transcription-service/internal/config"
	"live-transcription-service/internal/events"
	"live-transcription-service/internal/observability/logging"
	"live-transcription-service/internal/observability/metrics"
	"live-transcription-service/internal/service/audio"
	"live-transcription-service/internal/service/session"
	"live-transcription-service/internal/service/stt"
	"live-transcription-service/internal/service/stt/google"
	"live-transcription-service/internal/service/stt/mock"
	"live-transcription-service/internal/service/stt/watson"
	"live-transcription-service/internal/service/transcript"
)

// Application holds process-wide state for the service.
type Application struct {
	StartupTime time.Time
	Logger      zerolog.Logger
	Cfg         *config.Configuration

	Metrics     *metrics.Metrics
	Store       *transcript.Store
	Publisher   *events.Publisher
	Coordinator *session.Coordinator
}

// New constructs a new Application from the provided configuration.
// openMicrophone opens the capture device when AUDIO_SOURCE is
// "microphone"; it is injected so that only the server binary links the
// native audio library.
func New(cfg *config.Configuration, openMicrophone session.SourceFactory) *Application {
	a := &Application{
		Cfg:     cfg,
		Metrics: metrics.DefaultMetrics,
	}
	a.setupLogger()

	a.Store = transcript.NewStore(cfg.Session.TranscriptPath)
	a.Publisher = events.New(&events.Config{
		Enabled:      cfg.Kafka.Enabled,
		Brokers:      cfg.Kafka.Brokers,
		TopicPartial: cfg.Kafka.TopicPartial,
		TopicFinal:   cfg.Kafka.TopicFinal,
		Principal:    cfg.Kafka.Principal,
		Metrics:      a.Metrics,
	})
	a.Coordinator = session.NewCoordinator(session.Config{
		NewAdapter: a.NewAdapter,
		OpenSource: a.sourceFactory(openMicrophone),
		Store:      a.Store,
		Publisher:  a.Publisher,
		Metrics:    a.Metrics,
	})

	appLogger := a.Logger.With().
		Str("component", "application").
		Str("method", "New").
		Logger()

	appLogger.Info().
		Str("sttProvider", cfg.STT.Provider).
		Str("audioSource", cfg.Audio.Source).
		Str("transcriptPath", cfg.Session.TranscriptPath).
		Msg("Live transcription service application created")
	return a
}

// setupLogger configures zerolog for the service.
func (a *Application) setupLogger() {
	format := a.Cfg.Observability.LogFormat
	if a.Cfg.Service.Env == "dev" {
		format = "console"
	}
	logging.Init(logging.Config{
		Level:  a.Cfg.Observability.LogLevel,
		Format: format,
	})

	a.Logger = log.With().
		Str("service", "live-transcription-service").
		Str("component", "application").
		Logger()

	a.Logger.Info().
		Str("logLevel", zerolog.GlobalLevel().String()).
		Str("environment", a.Cfg.Service.Env).
		Msg("Logger setup completed")
}

// NewAdapter creates a recognizer adapter for the configured provider.
func (a *Application) NewAdapter(ctx context.Context) (stt.Adapter, error) {
	c := a.Cfg
	switch c.STT.Provider {
	case "watson":
		wc := watson.DefaultConfig()
		wc.APIKey = c.Watson.APIKey
		wc.Region = c.Watson.Region
		wc.InstanceID = c.Watson.InstanceID
		wc.Model = c.Watson.Model
		wc.URL = c.Watson.URL
		wc.InterimResults = c.STT.InterimResults
		wc.WordConfidence = c.STT.WordConfidence
		wc.Timestamps = c.STT.Timestamps
		wc.MaxAlternatives = c.STT.MaxAlternatives
		wc.GracePeriod = c.Session.GracePeriod
		return watson.New(wc), nil
	case "google":
		gc := google.DefaultConfig()
		gc.LanguageCode = c.STT.LanguageCode
		gc.InterimResults = c.STT.InterimResults
		gc.MaxAlternatives = c.STT.MaxAlternatives
		gc.WordConfidence = c.STT.WordConfidence
		gc.Timestamps = c.STT.Timestamps
		gc.CredentialsFile = c.STT.CredentialsFile
		gc.GracePeriod = c.Session.GracePeriod
		return google.New(ctx, gc)
	case "mock":
		return mock.New(), nil
	default:
		return nil, fmt.Errorf("unknown STT provider %q", c.STT.Provider)
	}
}

func (a *Application) sourceFactory(openMicrophone session.SourceFactory) session.SourceFactory {
	return func() (audio.Source, error) {
		switch a.Cfg.Audio.Source {
		case "wav":
			return audio.OpenWAV(a.Cfg.Audio.WAVPath, a.Cfg.Audio.FrameSize, true)
		case "microphone":
			if openMicrophone == nil {
				return nil, errors.New("microphone capture is not available in this binary")
			}
			return openMicrophone()
		default:
			return nil, fmt.Errorf("unknown audio source %q", a.Cfg.Audio.Source)
		}
	}
}

// Validate checks the settings the selected provider and source need.
func (a *Application) Validate() error {
	c := a.Cfg
	switch c.STT.Provider {
	case "watson":
		if c.Watson.APIKey == "" {
			return errors.New("WATSON_API_KEY is required for the watson provider")
		}
		if c.Watson.URL == "" {
			if _, err := (watson.Config{Region: c.Watson.Region, InstanceID: c.Watson.InstanceID}).Endpoint(); err != nil {
				return err
			}
		}
	case "google", "mock":
	default:
		return fmt.Errorf("unknown STT provider %q", c.STT.Provider)
	}

	switch c.Audio.Source {
	case "microphone":
	case "wav":
		if _, err := os.Stat(c.Audio.WAVPath); err != nil {
			return fmt.Errorf("AUDIO_WAV_PATH: %w", err)
		}
	default:
		return fmt.Errorf("unknown audio source %q", c.Audio.Source)
	}
	if c.Audio.FrameSize <= 0 {
		return fmt.Errorf("AUDIO_FRAME_SIZE must be positive, got %d", c.Audio.FrameSize)
	}
	return nil
}

// Start performs any startup work required before serving traffic.
func (a *Application) Start() error {
	startLogger := a.Logger.With().
		Str("method", "Start").
		Logger()

	if err := a.Validate(); err != nil {
		startLogger.Error().Err(err).Msg("Invalid configuration")
		return err
	}

	a.StartupTime = time.Now().UTC()
	startLogger.Info().
		Time("startupTime", a.StartupTime).
		Bool("kafkaEnabled", a.Publisher.Enabled()).
		Msg("Live transcription service starting")

	return nil
}

// Ready reports whether a new session can be started.
func (a *Application) Ready() bool {
	return !a.StartupTime.IsZero() && !a.Coordinator.Active()
}

// Shutdown stops the live session, waits for its transcript to be written
// and closes the publisher.
func (a *Application) Shutdown(ctx context.Context) {
	shutdownLogger := a.Logger.With().
		Str("method", "Shutdown").
		Logger()

	shutdownLogger.Info().Msg("Live transcription service shutting down")

	if err := a.Coordinator.Shutdown(ctx); err != nil {
		shutdownLogger.Warn().Err(err).Msg("Session did not finish before shutdown deadline")
	}
	if err := a.Publisher.Close(); err != nil {
		shutdownLogger.Warn().Err(err).Msg("Failed to close publisher")
	}
}
