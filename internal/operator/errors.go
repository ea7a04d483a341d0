package operator

import (
	"fmt"

	"github.com/seantiz/brickrun/internal/model"
)

// RunFailureError reports a run that reached a terminal state with a
// non-success result. The message embeds enough state to diagnose the
// failure without re-querying the remote service.
type RunFailureError struct {
	TaskID     string
	State      model.RunState
	RunPageURL string
}

func (e *RunFailureError) Error() string {
	return fmt.Sprintf("task %s failed with terminal state %s (result state: %s): %s; run page: %s",
		e.TaskID, e.State.LifeCycleState, e.State.ResultState, e.State.StateMessage, e.RunPageURL)
}
