// Package track keeps in-memory records of operator executions for the HTTP
// service. Records live only for the lifetime of the process; durable run
// history is deliberately out of scope.
package track

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/seantiz/brickrun/internal/model"
)

// ErrNotFound is returned when no execution exists for the given id.
var ErrNotFound = errors.New("execution not found")

// ErrInvalidTransition is returned when an execution status transition is not allowed.
var ErrInvalidTransition = errors.New("invalid status transition")

// Stats holds aggregate execution statistics.
type Stats struct {
	Total            int            `json:"total"`
	CountByStatus    map[string]int `json:"count_by_status"`
	CountByConn      map[string]int `json:"count_by_connection"`
	AvgRunDurationMS float64        `json:"avg_run_duration_ms"`
}

// Tracker is an in-memory execution registry. Safe for concurrent use.
type Tracker struct {
	mu         sync.RWMutex
	executions map[string]*model.Execution
	order      []string
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		executions: make(map[string]*model.Execution),
	}
}

// Create registers a new execution record. The id must be unused.
func (t *Tracker) Create(e *model.Execution) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.executions[e.ID]; ok {
		return fmt.Errorf("execution %s already exists", e.ID)
	}
	cp := *e
	t.executions[e.ID] = &cp
	t.order = append(t.order, e.ID)
	return nil
}

// Get returns a copy of the execution with the given id.
func (t *Tracker) Get(id string) (*model.Execution, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	e, ok := t.executions[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *e
	return &cp, nil
}

// List returns executions newest-first along with the total count.
func (t *Tracker) List(limit, offset int) ([]*model.Execution, int) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	total := len(t.order)
	out := make([]*model.Execution, 0, limit)
	for i := total - 1 - offset; i >= 0 && len(out) < limit; i-- {
		cp := *t.executions[t.order[i]]
		out = append(out, &cp)
	}
	return out, total
}

// MarkRunning transitions the execution to running and stamps StartedAt.
func (t *Tracker) MarkRunning(id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.executions[id]
	if !ok {
		return ErrNotFound
	}
	if !model.ValidTransition(e.Status, model.StatusRunning) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, e.Status, model.StatusRunning)
	}
	now := time.Now().UTC()
	e.Status = model.StatusRunning
	e.StartedAt = &now
	return nil
}

// SetRunInfo records the remote run id and run page URL once submission succeeds.
func (t *Tracker) SetRunInfo(id, runID, runPageURL string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.executions[id]
	if !ok {
		return ErrNotFound
	}
	e.RunID = runID
	e.RunPageURL = runPageURL
	return nil
}

// SetRunState records the most recently polled remote run state.
func (t *Tracker) SetRunState(id string, rs model.RunState) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.executions[id]
	if !ok {
		return ErrNotFound
	}
	cp := rs
	e.RunState = &cp
	return nil
}

// Finish transitions the execution to a terminal status, stamping FinishedAt
// and recording the failure message, if any.
func (t *Tracker) Finish(id, status, errMsg string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.executions[id]
	if !ok {
		return ErrNotFound
	}
	if !model.ValidTransition(e.Status, status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, e.Status, status)
	}
	now := time.Now().UTC()
	e.Status = status
	e.Error = errMsg
	e.FinishedAt = &now
	return nil
}

// Stats aggregates counts and the average duration of finished executions.
func (t *Tracker) Stats() Stats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s := Stats{
		Total:         len(t.executions),
		CountByStatus: make(map[string]int),
		CountByConn:   make(map[string]int),
	}

	var durSum float64
	var durCount int
	for _, e := range t.executions {
		s.CountByStatus[e.Status]++
		s.CountByConn[e.ConnectionID]++
		if e.StartedAt != nil && e.FinishedAt != nil {
			durSum += float64(e.FinishedAt.Sub(*e.StartedAt).Milliseconds())
			durCount++
		}
	}
	if durCount > 0 {
		s.AvgRunDurationMS = durSum / float64(durCount)
	}
	return s
}
