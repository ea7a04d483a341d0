package runner

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/seantiz/brickrun/internal/databricks"
	"github.com/seantiz/brickrun/internal/model"
	"github.com/seantiz/brickrun/internal/operator"
	"github.com/seantiz/brickrun/internal/payload"
	"github.com/seantiz/brickrun/internal/track"
)

// ErrNotRunning is returned by Kill when the execution exists but is no
// longer in flight.
var ErrNotRunning = errors.New("execution is not running")

// Defaults are applied to submissions that do not specify their own values.
type Defaults struct {
	PollingPeriod time.Duration
	RetryLimit    int
	Renderer      payload.RenderFunc
}

// Request describes one execution to launch.
type Request struct {
	TaskID        string
	ConnectionID  string
	Spec          payload.Spec
	PollingPeriod time.Duration
	RetryLimit    int
	RenderContext map[string]string
}

// Runner launches operator executions in goroutines and records their
// progress in the tracker.
type Runner struct {
	tracker  *track.Tracker
	factory  operator.ClientFactory
	defaults Defaults
	logger   *slog.Logger
	broker   *StateBroker
	wg       sync.WaitGroup

	// baseCtx is the parent of every execution's poll loop; Shutdown
	// cancels it so Wait cannot block on long-running remote runs.
	baseCtx context.Context
	stop    context.CancelFunc

	mu   sync.Mutex
	live map[string]*operator.Operator
}

// NewRunner creates a new execution runner.
func NewRunner(tr *track.Tracker, factory operator.ClientFactory, defaults Defaults, logger *slog.Logger) *Runner {
	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		tracker:  tr,
		factory:  factory,
		defaults: defaults,
		logger:   logger,
		broker:   NewStateBroker(),
		baseCtx:  ctx,
		stop:     cancel,
		live:     make(map[string]*operator.Operator),
	}
}

// Broker returns the runner's state broker for SSE subscription.
func (r *Runner) Broker() *StateBroker {
	return r.broker
}

// Wait blocks until all in-flight execution goroutines complete.
func (r *Runner) Wait() {
	r.wg.Wait()
}

// Shutdown cancels every in-flight poll loop so Wait returns promptly. The
// remote runs themselves are left running; use Kill to cancel one remotely.
func (r *Runner) Shutdown() {
	r.stop()
}

// Submit builds the operator for the request and launches it asynchronously.
// Payload construction happens here, synchronously, so configuration errors
// reach the caller before any record is created. The execution is tracked
// with status "pending" before this returns.
func (r *Runner) Submit(req Request) (*model.Execution, error) {
	connID := req.ConnectionID
	if connID == "" {
		connID = databricks.DefaultConnectionID
	}
	period := req.PollingPeriod
	if period <= 0 {
		period = r.defaults.PollingPeriod
	}
	retryLimit := req.RetryLimit
	if retryLimit <= 0 {
		retryLimit = r.defaults.RetryLimit
	}

	exec := &model.Execution{
		ID:           model.NewID(),
		TaskID:       req.TaskID,
		ConnectionID: connID,
		Status:       model.StatusPending,
		CreatedAt:    time.Now().UTC(),
	}

	op, err := operator.New(operator.Config{
		TaskID:        req.TaskID,
		ConnectionID:  connID,
		PollingPeriod: period,
		RetryLimit:    retryLimit,
		Spec:          req.Spec,
		Renderer:      r.defaults.Renderer,
		RenderContext: req.RenderContext,
		Factory:       r.factory,
		Logger:        r.logger.With("execution_id", exec.ID),
		OnSubmitted: func(runID, runPageURL string) {
			if err := r.tracker.SetRunInfo(exec.ID, runID, runPageURL); err != nil {
				r.logger.Error("record run info", "execution_id", exec.ID, "error", err)
			}
			r.broker.Publish(exec.ID, Event{RunID: runID, RunPageURL: runPageURL, Time: time.Now().UTC()})
		},
		OnPoll: func(state model.RunState) {
			if err := r.tracker.SetRunState(exec.ID, state); err != nil {
				r.logger.Error("record run state", "execution_id", exec.ID, "error", err)
			}
			r.broker.Publish(exec.ID, Event{State: &state, Time: time.Now().UTC()})
		},
	})
	if err != nil {
		return nil, err
	}

	if err := r.tracker.Create(exec); err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.live[exec.ID] = op
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.execute(exec.ID, op)
	}()

	return exec, nil
}

// execute runs one operator to its terminal state and records the outcome.
func (r *Runner) execute(execID string, op *operator.Operator) {
	defer r.broker.Close(execID)
	defer func() {
		r.mu.Lock()
		delete(r.live, execID)
		r.mu.Unlock()
	}()

	if err := r.tracker.MarkRunning(execID); err != nil {
		r.logger.Error("failed to transition to running", "execution_id", execID, "error", err)
		return
	}

	err := op.Execute(r.baseCtx)
	if err == nil {
		if err := r.tracker.Finish(execID, model.StatusSucceeded, ""); err != nil {
			r.logger.Error("record success", "execution_id", execID, "error", err)
		}
		return
	}

	// A remote CANCELED result means the kill path won the run, and a
	// cancelled base context means the service is shutting down; everything
	// else is a plain failure.
	status := model.StatusFailed
	var failure *operator.RunFailureError
	switch {
	case errors.As(err, &failure) && failure.State.ResultState == model.ResultCanceled:
		status = model.StatusCanceled
	case errors.Is(err, context.Canceled):
		status = model.StatusCanceled
	}

	if ferr := r.tracker.Finish(execID, status, err.Error()); ferr != nil {
		r.logger.Error("record failure", "execution_id", execID, "error", ferr)
	}
	r.logger.Error("execution finished unsuccessfully", "execution_id", execID, "status", status, "error", err)
}

// Kill forwards a cancellation to the operator owning the execution. The
// execution is marked canceled once the remote service reports the run
// canceled; Kill itself only issues the request.
func (r *Runner) Kill(ctx context.Context, execID string) error {
	r.mu.Lock()
	op, ok := r.live[execID]
	r.mu.Unlock()

	if !ok {
		if _, err := r.tracker.Get(execID); err != nil {
			return err
		}
		return ErrNotRunning
	}
	return op.OnKill(ctx)
}
