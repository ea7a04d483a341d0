package model

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// Execution status constants.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
	StatusCanceled  = "canceled"
)

// validTransitions maps each status to the set of statuses it may transition to.
var validTransitions = map[string]map[string]bool{
	StatusPending: {
		StatusRunning:  true,
		StatusFailed:   true,
		StatusCanceled: true,
	},
	StatusRunning: {
		StatusSucceeded: true,
		StatusFailed:    true,
		StatusCanceled:  true,
	},
}

// ValidTransition reports whether transitioning from one status to another is allowed.
func ValidTransition(from, to string) bool {
	targets, ok := validTransitions[from]
	if !ok {
		return false
	}
	return targets[to]
}

// Execution is the service-side record of one operator execution: a single
// submission to the remote compute service tracked from payload construction
// through terminal state. It holds no durable state; records live only for
// the lifetime of the process.
type Execution struct {
	ID           string     `json:"id"`
	TaskID       string     `json:"task_id"`
	ConnectionID string     `json:"connection_id"`
	Status       string     `json:"status"`
	RunID        string     `json:"run_id,omitempty"`
	RunPageURL   string     `json:"run_page_url,omitempty"`
	RunState     *RunState  `json:"run_state,omitempty"`
	Error        string     `json:"error,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
}

// NewID generates a new ULID string for use as an execution identifier.
func NewID() string {
	return ulid.Make().String()
}
