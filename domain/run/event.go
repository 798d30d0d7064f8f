package run

import (
	"time"

	"exocompare/domain/core"
)

// EventKind classifies a progress event
type EventKind string

const (
	EventStageStarted  EventKind = "stage_started"
	EventStageFinished EventKind = "stage_finished"
	EventRunFinished   EventKind = "run_finished"
	EventRunFailed     EventKind = "run_failed"
)

// Event reports pipeline progress to subscribers such as the SSE stream
type Event struct {
	RunID     core.RunID `json:"run_id"`
	Kind      EventKind  `json:"kind"`
	Stage     string     `json:"stage,omitempty"`
	Message   string     `json:"message,omitempty"`
	Elapsed   float64    `json:"elapsed_seconds,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}
