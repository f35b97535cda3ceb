package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// New wraps a payload into a v1 envelope. Marshal failures panic: every
// payload type in this package is marshalable by construction.
func New(eventType, producer, traceID, correlationID string, payload any) Envelope {
	b, err := json.Marshal(payload)
	if err != nil {
		panic(err)
	}
	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      producer,
		TraceID:       traceID,
		CorrelationID: correlationID,
		Payload:       b,
	}
}

// Unwrap decodes the payload of a specific event type.
func Unwrap[T any](payload json.RawMessage) (T, error) {
	var t T
	if err := json.Unmarshal(payload, &t); err != nil {
		return t, fmt.Errorf("decode payload: %w", err)
	}
	return t, nil
}
