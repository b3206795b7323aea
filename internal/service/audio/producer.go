package audio

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"live-transcription-service/internal/observability/metrics"
)

// Producer forwards frames from a Source to a Sender until the context is
// cancelled, the source is exhausted or a send fails.
type Producer struct {
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// NewProducer creates a producer. A nil m uses the default metrics.
func NewProducer(m *metrics.Metrics, logger zerolog.Logger) *Producer {
	if m == nil {
		m = metrics.DefaultMetrics
	}
	return &Producer{metrics: m, logger: logger}
}

// Run reads and sends frames. The source is closed before Run returns.
// Cancellation is checked between frames, so Run returns at most one frame
// read after ctx is done. A clean end of the source returns nil.
func (p *Producer) Run(ctx context.Context, src Source, sender Sender) (err error) {
	var frames, bytes int64
	defer func() {
		if cerr := src.Close(); cerr != nil {
			p.logger.Warn().Err(cerr).Msg("Failed to close audio source")
		}
		p.logger.Info().
			Int64("frames", frames).
			Int64("bytes", bytes).
			Err(err).
			Msg("Audio producer stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		frame, rerr := src.Read()
		if errors.Is(rerr, io.EOF) {
			return nil
		}
		if rerr != nil {
			return fmt.Errorf("read audio frame: %w", rerr)
		}

		// Stop may have landed while the read was blocked.
		if ctx.Err() != nil {
			return nil
		}

		if serr := sender.SendAudio(ctx, frame); serr != nil {
			return fmt.Errorf("send audio frame: %w", serr)
		}
		frames++
		bytes += int64(len(frame))
		p.metrics.RecordAudioSent(len(frame))
	}
}
