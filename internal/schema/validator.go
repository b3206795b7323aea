// Package schema checks transcript events before they leave the service.
package schema

import (
	"errors"
	"fmt"

	"live-transcription-service/internal/models"
)

var ErrInvalidEvent = errors.New("invalid transcript event")

type Validator struct{}

func New() *Validator {
	return &Validator{}
}

// Validate rejects events missing the fields downstream consumers key on.
// Empty text is allowed: recognizers emit empty interim results.
func (v *Validator) Validate(event any) error {
	switch ev := event.(type) {
	case models.TranscriptPartial:
		return checkEnvelope(ev.EventType, models.EventTypePartial, ev.SessionID, ev.Timestamp)
	case *models.TranscriptPartial:
		return checkEnvelope(ev.EventType, models.EventTypePartial, ev.SessionID, ev.Timestamp)
	case models.TranscriptFinal:
		if err := checkEnvelope(ev.EventType, models.EventTypeFinal, ev.SessionID, ev.Timestamp); err != nil {
			return err
		}
		return checkConfidence(ev.Confidence)
	case *models.TranscriptFinal:
		if err := checkEnvelope(ev.EventType, models.EventTypeFinal, ev.SessionID, ev.Timestamp); err != nil {
			return err
		}
		return checkConfidence(ev.Confidence)
	default:
		return fmt.Errorf("%w: unsupported type %T", ErrInvalidEvent, event)
	}
}

func checkEnvelope(eventType, want, sessionID string, ts int64) error {
	if eventType != want {
		return fmt.Errorf("%w: eventType %q, want %q", ErrInvalidEvent, eventType, want)
	}
	if sessionID == "" {
		return fmt.Errorf("%w: missing sessionId", ErrInvalidEvent)
	}
	if ts <= 0 {
		return fmt.Errorf("%w: missing timestamp", ErrInvalidEvent)
	}
	return nil
}

func checkConfidence(c float64) error {
	if c < 0 || c > 1 {
		return fmt.Errorf("%w: confidence %v out of range", ErrInvalidEvent, c)
	}
	return nil
}
