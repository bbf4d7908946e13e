package eventing

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/emlakofis/emlak-backend/pkg/enums"
)

// EnvelopeVersion is bumped when the envelope shape changes incompatibly.
const EnvelopeVersion = 1

// ActorRef identifies who caused the event.
type ActorRef struct {
	PersonnelID uuid.UUID `json:"personnelId"`
	Source      string    `json:"source,omitempty"`
}

// Envelope is the stable message body published on the trigger topic.
type Envelope struct {
	Version    int                    `json:"version"`
	EventID    string                 `json:"eventId"`
	EventType  enums.TriggerEventType `json:"eventType"`
	OccurredAt time.Time              `json:"occurredAt"`
	Actor      *ActorRef              `json:"actor,omitempty"`
	Data       json.RawMessage        `json:"data"`
}

// NewEnvelope wraps payload under a fresh event id.
func NewEnvelope(eventType enums.TriggerEventType, actor *ActorRef, payload any, occurredAt time.Time) (Envelope, error) {
	if !eventType.IsValid() {
		return Envelope{}, fmt.Errorf("unsupported event type %q", eventType)
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s payload: %w", eventType, err)
	}
	return Envelope{
		Version:    EnvelopeVersion,
		EventID:    uuid.NewString(),
		EventType:  eventType,
		OccurredAt: occurredAt.UTC(),
		Actor:      actor,
		Data:       data,
	}, nil
}

// ParseEnvelope decodes a message body and validates the event id.
func ParseEnvelope(body []byte) (Envelope, uuid.UUID, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Envelope{}, uuid.Nil, fmt.Errorf("decode envelope: %w", err)
	}
	id, err := uuid.Parse(env.EventID)
	if err != nil {
		return Envelope{}, uuid.Nil, fmt.Errorf("invalid event id: %w", err)
	}
	return env, id, nil
}

// Decode unmarshals the payload into dst. A missing payload is an error.
func (e Envelope) Decode(dst any) error {
	trimmed := bytes.TrimSpace(e.Data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return errors.New("payload missing for " + string(e.EventType))
	}
	if err := json.Unmarshal(trimmed, dst); err != nil {
		return fmt.Errorf("decode %s payload: %w", e.EventType, err)
	}
	return nil
}
