package model

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventRecord is the JSON envelope written to the event log.
type EventRecord struct {
	ID        string          `json:"id"`
	Seq       uint64          `json:"seq"`
	PoolID    PoolID          `json:"pool_id"`
	EventName string          `json:"event_name"`
	Timestamp uint64          `json:"timestamp"`
	Decoded   json.RawMessage `json:"decoded"`
}

// NewEventRecord wraps an event into an envelope.
func NewEventRecord(seq uint64, ev Event, at time.Time) (EventRecord, error) {
	decoded, err := json.Marshal(ev)
	if err != nil {
		return EventRecord{}, fmt.Errorf("marshal %s: %w", ev.EventName(), err)
	}
	return EventRecord{
		ID:        uuid.NewString(),
		Seq:       seq,
		PoolID:    ev.EventPool(),
		EventName: ev.EventName(),
		Timestamp: uint64(at.Unix()),
		Decoded:   decoded,
	}, nil
}
