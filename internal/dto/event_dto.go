package dto

import (
	"encoding/json"
	"time"
)

// Realtime event types.
const (
	EventSubmissionUploaded = "submission.uploaded"
	EventSubmissionGraded   = "submission.graded"
	EventCompetitionUpdated = "competition.updated"
)

// Event is a message pushed to realtime subscribers.
type Event struct {
	Type       string          `json:"type"`
	Payload    json.RawMessage `json:"payload"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// NewEvent marshals payload into an event of the given type.
func NewEvent(eventType string, payload interface{}) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{Type: eventType, Payload: raw, OccurredAt: time.Now().UTC()}, nil
}
