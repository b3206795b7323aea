package http

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"live-transcription-service/internal/app"
	"live-transcription-service/internal/config"
	"live-transcription-service/internal/observability/metrics"
	"live-transcription-service/internal/service/audio"
	"live-transcription-service/internal/service/session"
	"live-transcription-service/internal/service/stt"
	"live-transcription-service/internal/service/stt/mock"
	"live-transcription-service/internal/service/transcript"
)

// paceSource yields silent frames every few milliseconds, like a device.
type paceSource struct{}

func (paceSource) SampleRate() int { return 16000 }

func (paceSource) Read() ([]byte, error) {
	time.Sleep(5 * time.Millisecond)
	return make([]byte, 2048), nil
}

func (paceSource) Close() error { return nil }

func newTestApp(t *testing.T) *app.Application {
	t.Helper()
	cfg := config.Load()
	cfg.Session.DequeueTimeout = 20 * time.Millisecond

	m := metrics.NewMetrics(nil)
	store := transcript.NewStore(filepath.Join(t.TempDir(), "transcript.txt"))
	script := []mock.SimulatedUtterance{
		{Partials: []string{"test"}, Final: "test one", Confidence: 0.9},
	}
	coord := session.NewCoordinator(session.Config{
		NewAdapter: func(context.Context) (stt.Adapter, error) {
			a := mock.NewWithUtterances(script)
			a.Delay = 0
			return a, nil
		},
		OpenSource: func() (audio.Source, error) { return paceSource{}, nil },
		Store:      store,
		Metrics:    m,
	})

	return &app.Application{
		Cfg:         cfg,
		Metrics:     m,
		Store:       store,
		Coordinator: coord,
	}
}

func TestRouter_HealthEndpoints(t *testing.T) {
	srv := httptest.NewServer(NewRouter(newTestApp(t)))
	defer srv.Close()

	for path, want := range map[string]string{"/v1/liveness": "ok", "/v1/readiness": "ready"} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("%s: %v", path, err)
		}
		body := make([]byte, 16)
		n, _ := resp.Body.Read(body)
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK || string(body[:n]) != want {
			t.Errorf("%s: expected 200 %q, got %d %q", path, want, resp.StatusCode, body[:n])
		}
	}
}

func TestRouter_Index(t *testing.T) {
	rec := httptest.NewRecorder()
	NewRouter(newTestApp(t)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Header().Get("Content-Type"), "text/html") {
		t.Errorf("unexpected content type %q", rec.Header().Get("Content-Type"))
	}
	if !strings.Contains(rec.Body.String(), "/start_transcription") {
		t.Error("expected control page to reference the stream endpoint")
	}
}

func TestRouter_GetFinalTranscript_NoFile(t *testing.T) {
	rec := httptest.NewRecorder()
	NewRouter(newTestApp(t)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/get_final_transcript", nil))

	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["transcript"] != "No transcript available." {
		t.Errorf("expected placeholder, got %q", body["transcript"])
	}
}

func TestRouter_GetFinalTranscript_FromFile(t *testing.T) {
	a := newTestApp(t)
	if err := os.WriteFile(a.Store.Path(), []byte("hello world"), 0o644); err != nil {
		t.Fatal(err)
	}

	rec := httptest.NewRecorder()
	NewRouter(a).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/get_final_transcript", nil))

	var body map[string]string
	json.NewDecoder(rec.Body).Decode(&body)
	if body["transcript"] != "hello world" {
		t.Errorf("expected 'hello world', got %q", body["transcript"])
	}
}

func TestRouter_StopWithoutSession(t *testing.T) {
	rec := httptest.NewRecorder()
	NewRouter(newTestApp(t)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stop_transcription", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]string
	json.NewDecoder(rec.Body).Decode(&body)
	if body["status"] != "Transcription stopped" {
		t.Errorf("unexpected body %v", body)
	}
}

func TestRouter_StreamStopAndQuery(t *testing.T) {
	a := newTestApp(t)
	srv := httptest.NewServer(NewRouter(a))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/start_transcription")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("expected text/event-stream, got %q", ct)
	}

	// A second start while the first is live is rejected.
	dup, err := http.Get(srv.URL + "/start_transcription")
	if err != nil {
		t.Fatalf("duplicate start: %v", err)
	}
	dup.Body.Close()
	if dup.StatusCode != http.StatusConflict {
		t.Errorf("expected 409 for duplicate start, got %d", dup.StatusCode)
	}

	reader := bufio.NewReader(resp.Body)
	var events []string
	for len(events) < 2 {
		line, err := reader.ReadString('\n')
		if err != nil {
			t.Fatalf("read stream: %v (events so far %v)", err, events)
		}
		if strings.HasPrefix(line, "data: ") {
			events = append(events, strings.TrimSuffix(strings.TrimPrefix(line, "data: "), "\n"))
		}
	}
	if events[0] != "test" || events[1] != "test one" {
		t.Errorf("expected [test, test one], got %v", events)
	}

	stop, err := http.Get(srv.URL + "/stop_transcription")
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	stop.Body.Close()

	s := a.Coordinator.Current()
	select {
	case <-s.Done():
	case <-time.After(3 * time.Second):
		t.Fatal("session did not finish")
	}

	q, err := http.Get(srv.URL + "/get_final_transcript")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	defer q.Body.Close()
	var body map[string]string
	json.NewDecoder(q.Body).Decode(&body)
	if !strings.HasPrefix(body["transcript"], "test one") {
		t.Errorf("expected transcript starting with 'test one', got %q", body["transcript"])
	}
}

func TestWriteEvent(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"single line", "hello world", "data: hello world\n\n"},
		{"empty", "", "data: \n\n"},
		{"multi line", "one\ntwo", "data: one\ndata: two\n\n"},
		{"crlf", "one\r\ntwo", "data: one\ndata: two\n\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var b strings.Builder
			if err := writeEvent(&b, tt.text); err != nil {
				t.Fatal(err)
			}
			if b.String() != tt.want {
				t.Errorf("expected %q, got %q", tt.want, b.String())
			}
		})
	}
}
