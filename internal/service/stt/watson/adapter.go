// Package watson provides an IBM Watson Speech to Text adapter over the
// service's WebSocket recognize interface.
package watson

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"live-transcription-service/internal/observability/logging"
	"live-transcription-service/internal/service/stt"
)

// RegionHosts maps a service region to its Speech to Text host.
var RegionHosts = map[string]string{
	"us-east":  "us-east.speech-to-text.watson.cloud.ibm.com",
	"us-south": "us-south.speech-to-text.watson.cloud.ibm.com",
	"eu-gb":    "eu-gb.speech-to-text.watson.cloud.ibm.com",
	"eu-de":    "eu-de.speech-to-text.watson.cloud.ibm.com",
	"au-syd":   "au-syd.speech-to-text.watson.cloud.ibm.com",
	"jp-tok":   "jp-tok.speech-to-text.watson.cloud.ibm.com",
}

// Config holds Watson connection and recognition settings.
type Config struct {
	APIKey     string
	Region     string
	InstanceID string
	Model      string
	URL        string // full ws(s) URL, overrides Region/InstanceID/Model

	InterimResults  bool
	WordConfidence  bool
	Timestamps      bool
	MaxAlternatives int

	// GracePeriod is how long Close waits after the stop directive for
	// trailing results before closing the socket.
	GracePeriod      time.Duration
	HandshakeTimeout time.Duration
}

// DefaultConfig returns the recognition settings the service uses.
func DefaultConfig() Config {
	return Config{
		Region:           "us-south",
		Model:            "en-US_BroadbandModel",
		InterimResults:   true,
		WordConfidence:   true,
		Timestamps:       true,
		MaxAlternatives:  3,
		GracePeriod:      time.Second,
		HandshakeTimeout: 10 * time.Second,
	}
}

// Endpoint returns the recognize URL.
func (c Config) Endpoint() (string, error) {
	if c.URL != "" {
		return c.URL, nil
	}
	host, ok := RegionHosts[c.Region]
	if !ok {
		return "", fmt.Errorf("watson: unknown region %q", c.Region)
	}
	if c.InstanceID == "" {
		return "", errors.New("watson: instance id is required")
	}
	u := url.URL{
		Scheme:   "wss",
		Host:     "api." + host,
		Path:     "/instances/" + c.InstanceID + "/v1/recognize",
		RawQuery: url.Values{"model": {c.Model}}.Encode(),
	}
	return u.String(), nil
}

// Adapter implements stt.Adapter for one recognize connection.
type Adapter struct {
	cfg    Config
	dialer *websocket.Dialer
	logger zerolog.Logger

	mu      sync.Mutex
	conn    *websocket.Conn
	cb      stt.Callback
	done    chan struct{}
	closing bool

	writeMu   sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

// New creates a Watson adapter. It does not connect until Start.
func New(cfg Config) *Adapter {
	return &Adapter{
		cfg: cfg,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: cfg.HandshakeTimeout,
		},
		logger: logging.WithComponent("stt.watson"),
	}
}

// Name implements stt.Adapter.
func (a *Adapter) Name() string {
	return "watson"
}

// Start dials the recognizer, sends the start directive for the given
// sample rate and starts the receive loop.
func (a *Adapter) Start(ctx context.Context, opts stt.StartOptions, cb stt.Callback) error {
	endpoint, err := a.cfg.Endpoint()
	if err != nil {
		return err
	}

	header := http.Header{}
	header.Set("Authorization", BasicAuth(a.cfg.APIKey))

	conn, resp, err := a.dialer.DialContext(ctx, endpoint, header)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("watson: dial: %w (status %d)", err, resp.StatusCode)
		}
		return fmt.Errorf("watson: dial: %w", err)
	}

	a.mu.Lock()
	a.conn = conn
	a.cb = cb
	a.done = make(chan struct{})
	a.mu.Unlock()

	if err := a.writeJSON(newStartDirective(a.cfg, opts.SampleRateHz)); err != nil {
		conn.Close()
		close(a.done)
		a.mu.Lock()
		a.conn = nil
		a.mu.Unlock()
		return fmt.Errorf("watson: send start directive: %w", err)
	}

	a.logger.Info().
		Int("sampleRateHz", opts.SampleRateHz).
		Str("contentType", ContentType(opts.SampleRateHz)).
		Msg("Recognize connection opened")

	go a.listen(conn)
	return nil
}

// SendAudio sends one binary frame of PCM audio.
func (a *Adapter) SendAudio(ctx context.Context, audio []byte) error {
	a.mu.Lock()
	conn, closing := a.conn, a.closing
	a.mu.Unlock()

	if conn == nil || closing {
		return stt.ErrNotConnected
	}

	a.writeMu.Lock()
	defer a.writeMu.Unlock()
	return conn.WriteMessage(websocket.BinaryMessage, audio)
}

// Close sends the stop directive, waits the grace period (or until the
// remote closes), then closes the socket and waits for the receive loop.
func (a *Adapter) Close() error {
	a.closeOnce.Do(func() {
		a.mu.Lock()
		a.closing = true
		conn, done := a.conn, a.done
		a.mu.Unlock()

		if conn == nil {
			return
		}

		if err := a.writeJSON(stopDirective{Action: "stop"}); err != nil {
			a.logger.Debug().Err(err).Msg("Stop directive not sent")
		}

		select {
		case <-time.After(a.cfg.GracePeriod):
		case <-done:
		}

		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))

		if err := conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			a.closeErr = err
		}
		<-done

		a.logger.Info().Msg("Recognize connection closed")
	})
	return a.closeErr
}

func (a *Adapter) listen(conn *websocket.Conn) {
	defer close(a.done)
	defer a.cb.OnClosed()

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if !a.isClosing() && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				a.cb.OnError(fmt.Errorf("watson: read: %w", err))
			}
			return
		}

		frag, ok, err := Decode(payload)
		if err != nil {
			a.cb.OnError(err)
			continue
		}
		if !ok {
			a.logger.Debug().RawJSON("message", payload).Msg("Recognizer notification")
			continue
		}

		if frag.IsFinal {
			a.cb.OnFinal(frag.Text, frag.Confidence)
		} else {
			a.cb.OnPartial(frag.Text)
		}
	}
}

func (a *Adapter) writeJSON(v any) error {
	a.mu.Lock()
	conn := a.conn
	a.mu.Unlock()
	if conn == nil {
		return stt.ErrNotConnected
	}

	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}

	a.writeMu.Lock()
	defer a.writeMu.Unlock()
	return conn.WriteMessage(websocket.TextMessage, payload)
}

func (a *Adapter) isClosing() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.closing
}
