package operator

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/seantiz/brickrun/internal/databricks"
	"github.com/seantiz/brickrun/internal/model"
	"github.com/seantiz/brickrun/internal/payload"
)

// Defaults applied when the corresponding Config field is zero.
const (
	DefaultPollingPeriod = 30 * time.Second
	DefaultRetryLimit    = 3
)

// ClientFactory constructs a client for a named connection with a bounded
// transient-retry limit. *databricks.Registry satisfies this interface.
type ClientFactory interface {
	Construct(connectionID string, retryLimit int) (databricks.Client, error)
}

// Config describes one operator execution.
type Config struct {
	// TaskID identifies the unit of work. It doubles as the default run_name.
	TaskID string
	// ConnectionID names the registered connection. Defaults to
	// databricks.DefaultConnectionID.
	ConnectionID string
	// PollingPeriod is the fixed interval between run state polls.
	PollingPeriod time.Duration
	// RetryLimit bounds the client's transient retries per call.
	RetryLimit int

	// Spec is the submission configuration to merge and coerce.
	Spec payload.Spec
	// Renderer and RenderContext drive the template pass over the merged
	// document. A nil Renderer skips rendering.
	Renderer      payload.RenderFunc
	RenderContext map[string]string

	Factory ClientFactory
	Logger  *slog.Logger

	// OnSubmitted, if set, is invoked once after submission succeeds.
	OnSubmitted func(runID, runPageURL string)
	// OnPoll, if set, is invoked with every polled run state.
	OnPoll func(state model.RunState)
}

// Operator drives a single run from submission to terminal state. Each
// execution gets its own Operator; instances share no state, so no locking
// is needed beyond the set-once run id cell read by OnKill.
type Operator struct {
	taskID        string
	connectionID  string
	pollingPeriod time.Duration
	retryLimit    int
	factory       ClientFactory
	logger        *slog.Logger
	onSubmitted   func(runID, runPageURL string)
	onPoll        func(state model.RunState)

	payload map[string]any
	runID   atomic.Pointer[string]
}

// New builds the operator and its canonical payload. The merge, template and
// coercion passes all run here, eagerly, so malformed configuration is
// rejected before a run ever starts.
func New(cfg Config) (*Operator, error) {
	if cfg.TaskID == "" {
		return nil, &payload.ConfigurationError{Reason: "task id must not be empty"}
	}
	if cfg.Factory == nil {
		return nil, fmt.Errorf("operator %s: no client factory configured", cfg.TaskID)
	}

	if cfg.ConnectionID == "" {
		cfg.ConnectionID = databricks.DefaultConnectionID
	}
	if cfg.PollingPeriod <= 0 {
		cfg.PollingPeriod = DefaultPollingPeriod
	}
	if cfg.RetryLimit <= 0 {
		cfg.RetryLimit = DefaultRetryLimit
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	merged, err := payload.Build(cfg.Spec, cfg.TaskID)
	if err != nil {
		return nil, err
	}
	rendered, err := payload.Render(merged, cfg.Renderer, cfg.RenderContext)
	if err != nil {
		return nil, fmt.Errorf("render payload for task %s: %w", cfg.TaskID, err)
	}
	coerced, err := payload.Coerce(rendered)
	if err != nil {
		return nil, err
	}

	doc, ok := coerced.(map[string]any)
	if !ok {
		return nil, &payload.ConfigurationError{Reason: "coerced payload is not a mapping"}
	}

	return &Operator{
		taskID:        cfg.TaskID,
		connectionID:  cfg.ConnectionID,
		pollingPeriod: cfg.PollingPeriod,
		retryLimit:    cfg.RetryLimit,
		factory:       cfg.Factory,
		logger:        cfg.Logger.With("task_id", cfg.TaskID),
		onSubmitted:   cfg.OnSubmitted,
		onPoll:        cfg.OnPoll,
		payload:       doc,
	}, nil
}

// Payload returns the merged, rendered, coerced submission document.
// Immutable once built; callers must not modify it.
func (o *Operator) Payload() map[string]any {
	return o.payload
}

// RunID returns the remote run id, or "" if submission has not happened yet.
// Safe to call concurrently with Execute.
func (o *Operator) RunID() string {
	if p := o.runID.Load(); p != nil {
		return *p
	}
	return ""
}

// Execute submits the payload and polls the run until it reaches a terminal
// state. Returns nil when the run succeeds; a *RunFailureError when the run
// ends in any non-success terminal state; the underlying error when
// submission or polling fails outright.
func (o *Operator) Execute(ctx context.Context) error {
	client, err := o.factory.Construct(o.connectionID, o.retryLimit)
	if err != nil {
		return fmt.Errorf("construct client for connection %q: %w", o.connectionID, err)
	}

	runID, err := client.Submit(ctx, o.payload)
	if err != nil {
		return fmt.Errorf("submit run for task %s: %w", o.taskID, err)
	}
	o.runID.Store(&runID)
	submissionsTotal.Inc()
	start := time.Now()

	pageURL, err := client.GetRunPageURL(ctx, runID)
	if err != nil {
		return fmt.Errorf("get run page url for run %s: %w", runID, err)
	}

	o.logger.Info("run submitted", "run_id", runID, "run_page_url", pageURL)
	if o.onSubmitted != nil {
		o.onSubmitted(runID, pageURL)
	}

	for {
		state, err := client.GetRunState(ctx, runID)
		if err != nil {
			return fmt.Errorf("get state of run %s: %w", runID, err)
		}
		pollsTotal.Inc()
		if o.onPoll != nil {
			o.onPoll(state)
		}

		if state.IsTerminal() {
			runDuration.Observe(time.Since(start).Seconds())
			if state.IsSuccessful() {
				runsTotal.WithLabelValues(outcomeSuccess).Inc()
				o.logger.Info("run completed successfully", "run_id", runID)
				return nil
			}
			runsTotal.WithLabelValues(outcomeFailure).Inc()
			return &RunFailureError{TaskID: o.taskID, State: state, RunPageURL: pageURL}
		}

		o.logger.Info("run in progress",
			"run_id", runID,
			"life_cycle_state", state.LifeCycleState,
			"run_page_url", pageURL,
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(o.pollingPeriod):
		}
	}
}

// OnKill cancels the remote run if one was submitted. It is safe to call
// concurrently with Execute and is a no-op when no run id exists yet, so a
// cancellation racing submission cannot crash.
func (o *Operator) OnKill(ctx context.Context) error {
	runID := o.RunID()
	if runID == "" {
		return nil
	}

	client, err := o.factory.Construct(o.connectionID, o.retryLimit)
	if err != nil {
		return fmt.Errorf("construct client for connection %q: %w", o.connectionID, err)
	}
	if err := client.CancelRun(ctx, runID); err != nil {
		return fmt.Errorf("cancel run %s: %w", runID, err)
	}

	cancellationsTotal.Inc()
	o.logger.Info("run cancellation requested", "run_id", runID)
	return nil
}
