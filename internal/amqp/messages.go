package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventType names what happened to a record.
type EventType string

const (
	EventRecordCreated EventType = "record.created"
	EventRecordUpdated EventType = "record.updated"
	EventRecordDeleted EventType = "record.deleted"
)

func (t EventType) IsValid() bool {
	switch t {
	case EventRecordCreated, EventRecordUpdated, EventRecordDeleted:
		return true
	default:
		return false
	}
}

// RecordEvent is a lightweight notification about a record mutation.
// It carries only the id; consumers fetch the current row from storage.
type RecordEvent struct {
	Type      EventType `json:"type"`
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
}

// NewRecordEvent creates an event stamped with the current time.
func NewRecordEvent(eventType EventType, id string) *RecordEvent {
	return &RecordEvent{
		Type:      eventType,
		ID:        id,
		Timestamp: time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *RecordEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// RecordEventFromJSON decodes and validates an event.
func RecordEventFromJSON(data []byte) (*RecordEvent, error) {
	var msg RecordEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if !msg.Type.IsValid() {
		return nil, fmt.Errorf("unknown event type %q", msg.Type)
	}
	if msg.ID == "" {
		return nil, fmt.Errorf("event without record id")
	}
	return &msg, nil
}
