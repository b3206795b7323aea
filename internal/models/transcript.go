// Package models defines transcript fragments and the events derived from them.
package models

const (
	EventTypePartial = "transcription.transcript.partial"
	EventTypeFinal   = "transcription.transcript.final"
)

// Fragment is one unit of text decoded from a recognizer message.
type Fragment struct {
	Text       string
	IsFinal    bool
	Confidence float64
}

// TranscriptPartial represents an interim transcript result.
type TranscriptPartial struct {
	EventType string `json:"eventType"`
	SessionID string `json:"sessionId"`
	Timestamp int64  `json:"timestamp"`
	Sequence  int64  `json:"sequence"`
	Text      string `json:"text"`
}

// TranscriptFinal represents a final transcript result with confidence score.
type TranscriptFinal struct {
	EventType  string  `json:"eventType"`
	SessionID  string  `json:"sessionId"`
	Timestamp  int64   `json:"timestamp"`
	Sequence   int64   `json:"sequence"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}
