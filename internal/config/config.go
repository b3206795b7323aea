// Package config loads service configuration from environment variables.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Configuration is the full service configuration.
type Configuration struct {
	Service       ServiceConfig
	STT           STTConfig
	Watson        WatsonConfig
	Audio         AudioConfig
	Session       SessionConfig
	Kafka         KafkaConfig
	Observability ObservabilityConfig
}

// ServiceConfig holds listener and identity settings.
type ServiceConfig struct {
	Principal string
	HTTPPort  string
	GRPCPort  string
	Env       string
}

// STTConfig selects and tunes the recognizer provider.
type STTConfig struct {
	Provider        string // watson, google, mock
	LanguageCode    string
	InterimResults  bool
	MaxAlternatives int
	WordConfidence  bool
	Timestamps      bool
	CredentialsFile string
}

// WatsonConfig holds IBM Watson Speech to Text connection settings.
type WatsonConfig struct {
	APIKey     string
	Region     string
	InstanceID string
	Model      string
	URL        string // overrides Region/InstanceID/Model when set
}

// AudioConfig configures the capture source.
type AudioConfig struct {
	Source    string // microphone, wav
	WAVPath   string
	FrameSize int
}

// SessionConfig configures session wind-down and transcript persistence.
type SessionConfig struct {
	GracePeriod    time.Duration
	DequeueTimeout time.Duration
	TranscriptPath string
}

// KafkaConfig configures transcript event publishing.
type KafkaConfig struct {
	Enabled      bool
	Brokers      []string
	TopicPartial string
	TopicFinal   string
	Principal    string
}

// ObservabilityConfig configures logging and the metrics listener.
type ObservabilityConfig struct {
	LogLevel    string
	LogFormat   string
	MetricsAddr string
}

// Load reads the configuration from the environment, falling back to
// defaults for unset or unparsable values.
func Load() *Configuration {
	principal := envOrDefault("SERVICE_PRINCIPAL", "svc-live-transcription")

	return &Configuration{
		Service: ServiceConfig{
			Principal: principal,
			HTTPPort:  envOrDefault("HTTP_PORT", "8080"),
			GRPCPort:  envOrDefault("GRPC_PORT", "50051"),
			Env:       envOrDefault("ENV", "prod"),
		},
		STT: STTConfig{
			Provider:        envOrDefault("STT_PROVIDER", "watson"),
			LanguageCode:    envOrDefault("STT_LANGUAGE_CODE", "en-US"),
			InterimResults:  envOrDefaultBool("STT_INTERIM_RESULTS", true),
			MaxAlternatives: envOrDefaultInt("STT_MAX_ALTERNATIVES", 3),
			WordConfidence:  envOrDefaultBool("STT_WORD_CONFIDENCE", true),
			Timestamps:      envOrDefaultBool("STT_TIMESTAMPS", true),
			CredentialsFile: envOrDefault("GOOGLE_APPLICATION_CREDENTIALS", ""),
		},
		Watson: WatsonConfig{
			APIKey:     envOrDefault("WATSON_API_KEY", ""),
			Region:     envOrDefault("WATSON_REGION", "us-south"),
			InstanceID: envOrDefault("WATSON_INSTANCE_ID", ""),
			Model:      envOrDefault("WATSON_MODEL", "en-US_BroadbandModel"),
			URL:        envOrDefault("WATSON_URL", ""),
		},
		Audio: AudioConfig{
			Source:    envOrDefault("AUDIO_SOURCE", "microphone"),
			WAVPath:   envOrDefault("AUDIO_WAV_PATH", ""),
			FrameSize: envOrDefaultInt("AUDIO_FRAME_SIZE", 1024),
		},
		Session: SessionConfig{
			GracePeriod:    envOrDefaultDuration("SESSION_GRACE_PERIOD", time.Second),
			DequeueTimeout: envOrDefaultDuration("SESSION_DEQUEUE_TIMEOUT", time.Second),
			TranscriptPath: envOrDefault("TRANSCRIPT_PATH", "transcript.txt"),
		},
		Kafka: KafkaConfig{
			Enabled:      envOrDefaultBool("KAFKA_ENABLED", false),
			Brokers:      envOrDefaultList("KAFKA_BROKERS", nil),
			TopicPartial: envOrDefault("KAFKA_TOPIC_PARTIAL", "transcription.transcript.partial"),
			TopicFinal:   envOrDefault("KAFKA_TOPIC_FINAL", "transcription.transcript.final"),
			Principal:    envOrDefault("KAFKA_PRINCIPAL", principal),
		},
		Observability: ObservabilityConfig{
			LogLevel:    envOrDefault("LOG_LEVEL", "info"),
			LogFormat:   envOrDefault("LOG_FORMAT", "json"),
			MetricsAddr: envOrDefault("METRICS_ADDR", ":9090"),
		},
	}
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envOrDefaultInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envOrDefaultDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

// envOrDefaultList parses a comma-separated list, dropping empty entries.
func envOrDefaultList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
