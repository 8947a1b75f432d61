package events

import "time"

// RunEvent is the wire form of a sync run lifecycle notification.
// Progress and completion events carry the counter snapshot under stats.
type RunEvent struct {
	Type      string    `json:"type"` // "run.started", "run.progress", "run.completed" or "run.failed"
	RunID     string    `json:"run_id"`
	Processed int       `json:"processed,omitempty"`
	Total     int       `json:"total,omitempty"`
	Workers   int       `json:"workers,omitempty"`
	Stats     any       `json:"stats,omitempty"`
	Error     string    `json:"error,omitempty"`
	At        time.Time `json:"at"`
}
