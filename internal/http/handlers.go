package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"live-transcription-service/internal/observability/metrics"
	"live-transcription-service/internal/service/session"
	"live-transcription-service/internal/service/transcript"
)

type handlers struct {
	coord          *session.Coordinator
	store          *transcript.Store
	metrics        *metrics.Metrics
	dequeueTimeout time.Duration
	logger         zerolog.Logger
}

func (h *handlers) index(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(indexHTML)
}

// startTranscription starts a session and streams its fragments as
// server-sent events until the session stops or the client goes away.
func (h *handlers) startTranscription(w http.ResponseWriter, r *http.Request) {
	logger := h.logger.With().
		Str("requestId", middleware.GetReqID(r.Context())).
		Logger()

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "streaming unsupported"})
		return
	}

	// The session outlives this request; a disconnecting client only ends
	// the stream.
	s, err := h.coord.Start(context.WithoutCancel(r.Context()))
	if errors.Is(err, session.ErrSessionActive) {
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		return
	}
	if err != nil {
		logger.Error().Err(err).Msg("Failed to start transcription")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	h.metrics.RecordStreamClient(1)
	defer h.metrics.RecordStreamClient(-1)

	logger = logger.With().Str("sessionId", s.ID()).Logger()
	logger.Info().Msg("Event stream opened")

	ctx := r.Context()
	sent := 0
	for s.Active() {
		text, ok := s.Next(ctx, h.dequeueTimeout)
		if ctx.Err() != nil {
			logger.Info().Int("fragments", sent).Msg("Event stream client disconnected")
			return
		}
		if !ok {
			continue
		}
		if err := h.send(w, flusher, text); err != nil {
			logger.Warn().Err(err).Msg("Event stream write failed")
			return
		}
		sent++
	}

	// Fragments queued before the stop are still delivered.
	for {
		text, ok := s.Next(ctx, 0)
		if !ok {
			break
		}
		if err := h.send(w, flusher, text); err != nil {
			return
		}
		sent++
	}

	logger.Info().Int("fragments", sent).Msg("Event stream closed")
}

func (h *handlers) send(w io.Writer, flusher http.Flusher, text string) error {
	if err := writeEvent(w, text); err != nil {
		return err
	}
	flusher.Flush()
	h.metrics.RecordFragmentStreamed()
	return nil
}

func (h *handlers) stopTranscription(w http.ResponseWriter, _ *http.Request) {
	h.coord.Stop()
	writeJSON(w, http.StatusOK, map[string]string{"status": "Transcription stopped"})
}

func (h *handlers) getFinalTranscript(w http.ResponseWriter, _ *http.Request) {
	text, err := h.store.Load()
	if err != nil {
		h.logger.Error().Err(err).Str("path", h.store.Path()).Msg("Failed to read transcript")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to read transcript"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"transcript": text})
}

// writeEvent writes one server-sent event. Each line of text becomes its
// own data field so embedded newlines survive the framing.
func writeEvent(w io.Writer, text string) error {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var b strings.Builder
	for _, line := range strings.Split(text, "\n") {
		fmt.Fprintf(&b, "data: %s\n", line)
	}
	b.WriteString("\n")
	_, err := io.WriteString(w, b.String())
	return err
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
