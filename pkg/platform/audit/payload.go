package audit

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	id "eap/pkg/domain"
)

// outboxPayload is the JSON structure published to Kafka.
type outboxPayload struct {
	ID        string `json:"id"`
	Category  string `json:"category"`
	Timestamp string `json:"timestamp"`
	PersonID  string `json:"person_id,omitempty"`
	Subject   string `json:"subject,omitempty"`
	Action    string `json:"action"`
	Reason    string `json:"reason,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	ActorID   string `json:"actor_id,omitempty"`
}

// NewOutboxEntry renders event as an outbox row. The category is always
// derived from the action.
func NewOutboxEntry(event Event, now time.Time) (OutboxEntry, error) {
	eventID := uuid.New()
	category := AuditEvent(event.Action).Category()
	if event.Timestamp.IsZero() {
		event.Timestamp = now
	}

	payload := outboxPayload{
		ID:        eventID.String(),
		Category:  string(category),
		Timestamp: event.Timestamp.Format(time.RFC3339Nano),
		Subject:   event.Subject,
		Action:    event.Action,
		Reason:    event.Reason,
		RequestID: event.RequestID,
		ActorID:   event.ActorID,
	}
	aggregateType, aggregateID := "audit", eventID.String()
	if !event.PersonID.IsNil() {
		payload.PersonID = event.PersonID.String()
		aggregateType, aggregateID = "person", event.PersonID.String()
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return OutboxEntry{}, fmt.Errorf("marshal audit payload: %w", err)
	}
	return OutboxEntry{
		ID:            uuid.NewString(),
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     event.Action,
		Payload:       raw,
		CreatedAt:     now,
	}, nil
}

// DecodePayload reads an outbox payload back into an Event.
func DecodePayload(raw []byte) (Event, error) {
	var p outboxPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return Event{}, fmt.Errorf("decode audit payload: %w", err)
	}
	ts, err := time.Parse(time.RFC3339Nano, p.Timestamp)
	if err != nil {
		return Event{}, fmt.Errorf("decode audit timestamp: %w", err)
	}
	event := Event{
		Category:  EventCategory(p.Category),
		Timestamp: ts,
		Subject:   p.Subject,
		Action:    p.Action,
		Reason:    p.Reason,
		RequestID: p.RequestID,
		ActorID:   p.ActorID,
	}
	if p.PersonID != "" {
		pid, err := uuid.Parse(p.PersonID)
		if err != nil {
			return Event{}, fmt.Errorf("decode audit person id: %w", err)
		}
		event.PersonID = id.PersonID(pid)
	}
	return event, nil
}
