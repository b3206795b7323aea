package watson

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"live-transcription-service/internal/models"
)

// ErrRecognizer wraps error messages reported by the service itself.
var ErrRecognizer = errors.New("watson: recognizer error")

type startDirective struct {
	Action          string `json:"action"`
	ContentType     string `json:"content-type"`
	Continuous      bool   `json:"continuous"`
	InterimResults  bool   `json:"interim_results"`
	WordConfidence  bool   `json:"word_confidence"`
	Timestamps      bool   `json:"timestamps"`
	MaxAlternatives int    `json:"max_alternatives"`
}

type stopDirective struct {
	Action string `json:"action"`
}

type recognizeResult struct {
	Alternatives []struct {
		Transcript string  `json:"transcript"`
		Confidence float64 `json:"confidence"`
	} `json:"alternatives"`
	Final bool `json:"final"`
}

type recognizeMessage struct {
	Results     []recognizeResult `json:"results"`
	ResultIndex int               `json:"result_index"`
	State       string            `json:"state"`
	Error       string            `json:"error"`
	Warnings    []string          `json:"warnings"`
}

// ContentType returns the audio content type for 16-bit PCM at rate.
func ContentType(rateHz int) string {
	return fmt.Sprintf("audio/l16;rate=%d", rateHz)
}

// BasicAuth returns the Authorization header value for an API key.
func BasicAuth(apiKey string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte("apikey:"+apiKey))
}

func newStartDirective(cfg Config, rateHz int) startDirective {
	return startDirective{
		Action:          "start",
		ContentType:     ContentType(rateHz),
		Continuous:      true,
		InterimResults:  cfg.InterimResults,
		WordConfidence:  cfg.WordConfidence,
		Timestamps:      cfg.Timestamps,
		MaxAlternatives: cfg.MaxAlternatives,
	}
}

// Decode parses one inbound message. It reports ok=false for messages that
// carry no transcript, such as state notifications or an empty results
// array. Only the first alternative of the first result is used.
func Decode(payload []byte) (models.Fragment, bool, error) {
	var msg recognizeMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return models.Fragment{}, false, fmt.Errorf("decode recognizer message: %w", err)
	}
	if msg.Error != "" {
		return models.Fragment{}, false, fmt.Errorf("%w: %s", ErrRecognizer, msg.Error)
	}
	if len(msg.Results) == 0 {
		return models.Fragment{}, false, nil
	}

	result := msg.Results[0]
	if len(result.Alternatives) == 0 {
		return models.Fragment{}, false, nil
	}
	alt := result.Alternatives[0]
	return models.Fragment{
		Text:       alt.Transcript,
		IsFinal:    result.Final,
		Confidence: alt.Confidence,
	}, true, nil
}
