package http

import (
	_ "embed"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"live-transcription-service/internal/app"
	"live-transcription-service/internal/observability/logging"
)

//go:embed static/index.html
var indexHTML []byte

// NewRouter constructs the HTTP router for the service.
func NewRouter(application *app.Application) http.Handler {
	h := &handlers{
		coord:          application.Coordinator,
		store:          application.Store,
		metrics:        application.Metrics,
		dequeueTimeout: application.Cfg.Session.DequeueTimeout,
		logger:         logging.WithComponent("http"),
	}

	r := chi.NewRouter()

	// Basic middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	// Health endpoints
	r.Get("/v1/liveness", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/v1/readiness", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	// Transcription routes
	r.Get("/", h.index)
	r.Get("/start_transcription", h.startTranscription)
	r.Get("/stop_transcription", h.stopTranscription)
	r.Get("/get_final_transcript", h.getFinalTranscript)

	return r
}
