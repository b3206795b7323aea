// Command audioclient transcribes a WAV file through a recognizer adapter
// and prints interim and final results as they arrive.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"live-transcription-service/internal/app"
	"live-transcription-service/internal/config"
	"live-transcription-service/internal/service/audio"
	"live-transcription-service/internal/service/stt"
)

// printer implements stt.Callback by writing to stdout.
type printer struct {
	closed chan struct{}
}

func (p *printer) OnPartial(text string) {
	fmt.Printf("  ... %s\n", text)
}

func (p *printer) OnFinal(text string, confidence float64) {
	fmt.Printf("FINAL %s (confidence=%.2f)\n", text, confidence)
}

func (p *printer) OnError(err error) {
	log.Warn().Err(err).Msg("Recognizer error")
}

func (p *printer) OnClosed() {
	close(p.closed)
}

func main() {
	audioFile := flag.String("audio", "testdata/sample.wav", "Path to WAV file (16-bit mono PCM)")
	provider := flag.String("provider", "", "STT provider override (watson, google, mock)")
	realtime := flag.Bool("realtime", true, "Pace frames at the file's sample rate")
	timeout := flag.Duration("timeout", 5*time.Minute, "Overall timeout")
	flag.Parse()

	cfg := config.Load()
	if *provider != "" {
		cfg.STT.Provider = *provider
	}
	cfg.Audio.Source = "wav"
	cfg.Audio.WAVPath = *audioFile

	application := app.New(cfg, nil)
	if err := application.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	src, err := audio.OpenWAV(*audioFile, cfg.Audio.FrameSize, *realtime)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open audio file")
	}
	format := src.Format()
	log.Info().
		Str("file", *audioFile).
		Uint32("sampleRate", format.SampleRate).
		Uint16("bitsPerSample", format.BitsPerSample).
		Msg("WAV file opened")

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	adapter, err := application.NewAdapter(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create recognizer adapter")
	}

	p := &printer{closed: make(chan struct{})}
	if err := adapter.Start(ctx, stt.StartOptions{SampleRateHz: src.SampleRate()}, p); err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to recognizer")
	}

	start := time.Now()
	producer := audio.NewProducer(application.Metrics, log.Logger)
	if err := producer.Run(ctx, src, adapter); err != nil {
		log.Error().Err(err).Msg("Streaming stopped early")
	}

	log.Info().Dur("elapsed", time.Since(start)).Msg("Finished streaming, waiting for final transcripts")
	if err := adapter.Close(); err != nil {
		log.Warn().Err(err).Msg("Error closing recognizer connection")
	}
	<-p.closed
}
