// Package google provides a Google Cloud Speech-to-Text adapter.
package google

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"

	"live-transcription-service/internal/observability/logging"
	"live-transcription-service/internal/service/stt"
)

// Config holds Google STT settings.
type Config struct {
	LanguageCode    string
	SampleRateHz    int // used when Start is given no rate
	InterimResults  bool
	AudioEncoding   string
	MaxAlternatives int
	WordConfidence  bool
	Timestamps      bool
	CredentialsFile string // empty means application default credentials

	// GracePeriod bounds how long Close waits for trailing results after
	// half-closing the stream.
	GracePeriod time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		LanguageCode:    "en-US",
		SampleRateHz:    8000,
		InterimResults:  true,
		AudioEncoding:   "LINEAR16",
		MaxAlternatives: 1,
		GracePeriod:     time.Second,
	}
}

// Adapter implements stt.Adapter using Google Cloud Speech-to-Text.
type Adapter struct {
	cfg    Config
	client *speech.Client
	logger zerolog.Logger

	mu        sync.Mutex
	stream    speechpb.Speech_StreamingRecognizeClient
	cancel    context.CancelFunc
	cb        stt.Callback
	done      chan struct{}
	closing   bool
	closeOnce sync.Once
	closeErr  error
}

// New creates a new Google STT adapter. Credentials come from
// cfg.CredentialsFile or GOOGLE_APPLICATION_CREDENTIALS.
func New(ctx context.Context, cfg Config) (*Adapter, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	c, err := speech.NewClient(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return &Adapter{
		cfg:    cfg,
		client: c,
		logger: logging.WithComponent("stt.google"),
	}, nil
}

// Name implements stt.Adapter.
func (a *Adapter) Name() string {
	return "google"
}

// Start opens a streaming recognition session, sends the config and starts
// the receive loop.
func (a *Adapter) Start(ctx context.Context, opts stt.StartOptions, cb stt.Callback) error {
	rate := opts.SampleRateHz
	if rate == 0 {
		rate = a.cfg.SampleRateHz
	}

	// The stream outlives session cancellation so trailing results can
	// still arrive during Close.
	streamCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stream, err := a.client.StreamingRecognize(streamCtx)
	if err != nil {
		cancel()
		return err
	}

	err = stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: &speechpb.StreamingRecognitionConfig{
				Config: &speechpb.RecognitionConfig{
					Encoding:              parseAudioEncoding(a.cfg.AudioEncoding),
					SampleRateHertz:       int32(rate),
					LanguageCode:          a.cfg.LanguageCode,
					MaxAlternatives:       int32(a.cfg.MaxAlternatives),
					EnableWordConfidence:  a.cfg.WordConfidence,
					EnableWordTimeOffsets: a.cfg.Timestamps,
				},
				InterimResults: a.cfg.InterimResults,
			},
		},
	})
	if err != nil {
		cancel()
		return err
	}

	a.mu.Lock()
	a.stream = stream
	a.cancel = cancel
	a.cb = cb
	a.done = make(chan struct{})
	a.mu.Unlock()

	go a.listen(stream)
	return nil
}

// SendAudio sends audio bytes to Google Speech-to-Text.
func (a *Adapter) SendAudio(ctx context.Context, audio []byte) error {
	a.mu.Lock()
	stream, closing := a.stream, a.closing
	a.mu.Unlock()

	if stream == nil || closing {
		return stt.ErrNotConnected
	}
	return stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{
			AudioContent: audio,
		},
	})
}

// Close half-closes the stream, waits for trailing results and releases
// the client.
func (a *Adapter) Close() error {
	a.closeOnce.Do(func() {
		a.mu.Lock()
		a.closing = true
		stream, done, cancel := a.stream, a.done, a.cancel
		a.mu.Unlock()

		if stream != nil {
			if err := stream.CloseSend(); err != nil {
				a.logger.Debug().Err(err).Msg("CloseSend failed")
			}
			select {
			case <-done:
			case <-time.After(a.cfg.GracePeriod):
				a.logger.Warn().Msg("Timed out waiting for trailing results")
			}
			cancel()
			<-done
		}
		a.closeErr = a.client.Close()
	})
	return a.closeErr
}

func (a *Adapter) listen(stream speechpb.Speech_StreamingRecognizeClient) {
	defer close(a.done)
	defer a.cb.OnClosed()

	for {
		resp, err := stream.Recv()
		if err != nil {
			if !errors.Is(err, io.EOF) && !a.isClosing() {
				a.cb.OnError(err)
			}
			return
		}

		for _, r := range resp.Results {
			if len(r.Alternatives) == 0 {
				continue
			}
			alt := r.Alternatives[0]
			if r.IsFinal {
				a.cb.OnFinal(alt.Transcript, float64(alt.Confidence))
			} else {
				a.cb.OnPartial(alt.Transcript)
			}
		}
	}
}

func (a *Adapter) isClosing() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.closing
}

// parseAudioEncoding maps an encoding name to the API enum. Unknown names
// fall back to LINEAR16.
func parseAudioEncoding(name string) speechpb.RecognitionConfig_AudioEncoding {
	v, ok := speechpb.RecognitionConfig_AudioEncoding_value[name]
	if !ok || v == int32(speechpb.RecognitionConfig_ENCODING_UNSPECIFIED) {
		return speechpb.RecognitionConfig_LINEAR16
	}
	return speechpb.RecognitionConfig_AudioEncoding(v)
}
