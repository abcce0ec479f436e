package attribution

import (
	"time"
)

// Options control a single orchestrator run.
type Options struct {
	BatchSize   int  `json:"batch_size"`
	UnwrapLinks bool `json:"unwrap_links"`
}

// Summary is the operator-facing result of one run. Counts, never stack
// traces.
type Summary struct {
	RunID           string         `json:"run_id"`
	Processed       int            `json:"processed"`
	Assigned        int            `json:"assigned"`
	Unassigned      int            `json:"unassigned"`
	Skipped         int            `json:"skipped"`
	Failed          int            `json:"failed"`
	LinksResolved   int            `json:"links_resolved"`
	DeadlineSkipped int            `json:"deadline_skipped"`
	ByMethod        map[string]int `json:"by_method"`
	ByPattern       map[string]int `json:"by_pattern"`
	StartedAt       time.Time      `json:"started_at"`
	Duration        time.Duration  `json:"duration_ms"`
}

// Per-message terminal states. "unassigned" is a valid outcome, not a
// failure.
const (
	statusAssigned   = "assigned"
	statusUnassigned = "unassigned"
	statusSkipped    = "skipped"
	statusFailed     = "failed"
)

// MessageResult is the outcome of attributing a single message on demand.
// Patterns holds the reporting-only link classification counts; they never
// influence the assignment itself.
type MessageResult struct {
	MessageID     string         `json:"message_id"`
	Status        string         `json:"status"`
	EntityID      string         `json:"entity_id,omitempty"`
	Method        string         `json:"method,omitempty"`
	LinksResolved int            `json:"links_resolved"`
	Patterns      map[string]int `json:"patterns,omitempty"`
}

// RunRecord is the audit document persisted per run.
type RunRecord struct {
	RunID           string         `bson:"run_id" json:"run_id"`
	Processed       int            `bson:"processed" json:"processed"`
	Assigned        int            `bson:"assigned" json:"assigned"`
	Unassigned      int            `bson:"unassigned" json:"unassigned"`
	Skipped         int            `bson:"skipped" json:"skipped"`
	Failed          int            `bson:"failed" json:"failed"`
	LinksResolved   int            `bson:"links_resolved" json:"links_resolved"`
	DeadlineSkipped int            `bson:"deadline_skipped" json:"deadline_skipped"`
	UnwrapLinks     bool           `bson:"unwrap_links" json:"unwrap_links"`
	ByPattern       map[string]int `bson:"by_pattern,omitempty" json:"by_pattern,omitempty"`
	StartedAt       time.Time      `bson:"started_at" json:"started_at"`
	DurationMS      int64          `bson:"duration_ms" json:"duration_ms"`
}

func (s *Summary) toRecord(unwrap bool) RunRecord {
	return RunRecord{
		RunID:           s.RunID,
		Processed:       s.Processed,
		Assigned:        s.Assigned,
		Unassigned:      s.Unassigned,
		Skipped:         s.Skipped,
		Failed:          s.Failed,
		LinksResolved:   s.LinksResolved,
		DeadlineSkipped: s.DeadlineSkipped,
		UnwrapLinks:     unwrap,
		ByPattern:       s.ByPattern,
		StartedAt:       s.StartedAt,
		DurationMS:      s.Duration.Milliseconds(),
	}
}
