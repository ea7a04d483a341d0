package databricks

import (
	"context"

	"github.com/seantiz/brickrun/internal/model"
)

// DefaultConnectionID is the connection used when the caller does not name one.
const DefaultConnectionID = "databricks_default"

// Client is the interface to the remote runs API that the lifecycle operator
// consumes. Implementations own their transient-fault retry policy; callers
// see only the final outcome of each call.
type Client interface {
	// Submit submits a fully coerced payload and returns the remote run id.
	Submit(ctx context.Context, payload map[string]any) (string, error)

	// GetRunState returns the current state of the given run.
	GetRunState(ctx context.Context, runID string) (model.RunState, error)

	// GetRunPageURL returns the human-facing run detail page URL, used for
	// diagnostics only.
	GetRunPageURL(ctx context.Context, runID string) (string, error)

	// CancelRun asks the remote service to cancel the given run.
	CancelRun(ctx context.Context, runID string) error
}
