package models

import "time"

// Event types carried on the attribution_events and unwrap_commands topics.
const (
	EventTypeEntityAssigned = "entity_assigned"
	EventTypeRunCompleted   = "run_completed"
	EventTypeUnwrapMessage  = "unwrap_message"
)

// EventEnvelope is the wire format for all broker traffic.
type EventEnvelope struct {
	ID        string                 `json:"id"`
	Source    string                 `json:"source"`
	Type      string                 `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Payload   map[string]interface{} `json:"payload"`
	Metadata  Metadata               `json:"metadata"`
}

type Metadata struct {
	TraceID string `json:"trace_id,omitempty"`
	RunID   string `json:"run_id,omitempty"`
}
