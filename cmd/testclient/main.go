// Command testclient starts a transcription, prints the event stream for a
// while, stops it and prints the saved transcript.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

func main() {
	server := flag.String("server", "http://localhost:8080", "Service base URL")
	duration := flag.Duration("duration", 10*time.Second, "How long to transcribe before stopping")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, *server+"/start_transcription", nil)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build request")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Fatal().Int("status", resp.StatusCode).Msg("start rejected")
	}
	log.Info().Str("server", *server).Msg("Connected to event stream")

	streamDone := make(chan struct{})
	go func() {
		defer close(streamDone)
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			if text, ok := strings.CutPrefix(scanner.Text(), "data: "); ok {
				log.Info().Str("fragment", text).Msg("Received")
			}
		}
	}()

	select {
	case <-time.After(*duration):
	case <-streamDone:
		log.Info().Msg("Stream ended by server")
	}

	if err := getJSON(*server+"/stop_transcription", nil); err != nil {
		log.Fatal().Err(err).Msg("failed to stop")
	}
	log.Info().Msg("Transcription stopped")

	select {
	case <-streamDone:
	case <-time.After(5 * time.Second):
		cancel()
	}

	// Give the service its grace period to flush the transcript.
	time.Sleep(2 * time.Second)

	var final struct {
		Transcript string `json:"transcript"`
	}
	if err := getJSON(*server+"/get_final_transcript", &final); err != nil {
		log.Fatal().Err(err).Msg("failed to fetch transcript")
	}
	log.Info().Str("transcript", final.Transcript).Msg("Final transcript")
}

func getJSON(url string, v any) error {
	resp, err := http.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if v == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(v)
}
