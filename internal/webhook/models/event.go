package models

import (
	"encoding/json"
	"time"
)

// ProcessedEvent records an external event the reconciler has accepted.
// The unique event id is the idempotency key: inserting a duplicate fails
// on the database constraint, which is the only dedup mechanism.
type ProcessedEvent struct {
	EventID     string          `json:"event_id"`
	EventType   string          `json:"event_type"`
	ReceivedAt  time.Time       `json:"received_at"`
	ProcessedAt *time.Time      `json:"processed_at,omitempty"`
	Payload     json.RawMessage `json:"payload,omitempty"`
}
