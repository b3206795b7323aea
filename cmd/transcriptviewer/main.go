// Command transcriptviewer consumes the transcript event topics and shows
// the events live in a browser over a WebSocket.
package main

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"flag"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"live-transcription-service/internal/config"
	"live-transcription-service/internal/observability/logging"
)

//go:embed static/*
var staticFiles embed.FS

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // local tool
	},
}

func wsHandler(h *hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warn().Err(err).Msg("WebSocket upgrade failed")
			return
		}
		h.add(conn)

		// Reads only detect the disconnect.
		go func() {
			defer h.remove(conn)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()
	}
}

// consume reads one topic from the given lookback and broadcasts every
// decodable event.
func consume(ctx context.Context, h *hub, brokers []string, topic string, lookback time.Duration) {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:   brokers,
		Topic:     topic,
		Partition: 0,
		MinBytes:  1,
		MaxBytes:  10e6,
	})
	defer reader.Close()

	if err := reader.SetOffsetAt(ctx, time.Now().Add(-lookback)); err != nil {
		log.Warn().Err(err).Str("topic", topic).Msg("Failed to seek, reading from the start")
	}
	log.Info().Str("topic", topic).Dur("lookback", lookback).Msg("Consuming transcript events")

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Warn().Err(err).Str("topic", topic).Msg("Kafka read error")
			time.Sleep(time.Second)
			continue
		}

		ev, err := decodeEvent(msg.Value)
		if err != nil {
			log.Warn().Err(err).Str("topic", topic).Msg("Skipping undecodable event")
			continue
		}
		log.Debug().
			Str("eventType", ev.EventType).
			Str("sessionId", ev.SessionID).
			Int64("sequence", ev.Sequence).
			Msg("Received")
		h.broadcast(ev)
	}
}

func decodeEvent(payload []byte) (viewerEvent, error) {
	var ev viewerEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return ev, err
	}
	if ev.EventType == "" || ev.SessionID == "" {
		return ev, errors.New("missing eventType or sessionId")
	}
	return ev, nil
}

func main() {
	cfg := config.Load()
	port := flag.String("port", "8081", "HTTP server port")
	brokers := flag.String("brokers", strings.Join(cfg.Kafka.Brokers, ","), "Kafka brokers (comma-separated)")
	lookback := flag.Duration("lookback", time.Hour, "How far back to start reading")
	flag.Parse()

	logging.Init(logging.Config{Level: cfg.Observability.LogLevel, Format: "console"})

	brokerList := strings.Split(*brokers, ",")
	if *brokers == "" {
		brokerList = []string{"localhost:9092"}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	h := newHub()
	go consume(ctx, h, brokerList, cfg.Kafka.TopicPartial, *lookback)
	go consume(ctx, h, brokerList, cfg.Kafka.TopicFinal, *lookback)

	staticFS, _ := fs.Sub(staticFiles, "static")
	mux := http.NewServeMux()
	mux.Handle("/", http.FileServer(http.FS(staticFS)))
	mux.HandleFunc("/ws", wsHandler(h))

	srv := &http.Server{Addr: ":" + *port, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Info().
		Str("addr", "http://localhost:"+*port).
		Strs("brokers", brokerList).
		Str("topicPartial", cfg.Kafka.TopicPartial).
		Str("topicFinal", cfg.Kafka.TopicFinal).
		Msg("Transcript viewer starting")

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("Server error")
	}
}
