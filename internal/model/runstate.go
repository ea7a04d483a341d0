package model

// Life-cycle states reported by the remote runs API. PENDING, RUNNING and
// TERMINATING describe a run that is still in flight; TERMINATED, SKIPPED
// and INTERNAL_ERROR are terminal.
const (
	LifeCyclePending       = "PENDING"
	LifeCycleRunning       = "RUNNING"
	LifeCycleTerminating   = "TERMINATING"
	LifeCycleTerminated    = "TERMINATED"
	LifeCycleSkipped       = "SKIPPED"
	LifeCycleInternalError = "INTERNAL_ERROR"
)

// Result states. Meaningful only once a run's life-cycle state is terminal.
const (
	ResultSuccess  = "SUCCESS"
	ResultFailed   = "FAILED"
	ResultTimedOut = "TIMEDOUT"
	ResultCanceled = "CANCELED"
)

// RunState is the tri-state descriptor of a remote run as reported by the
// runs API: coarse execution phase, outcome classification, and a free-text
// diagnostic message.
type RunState struct {
	LifeCycleState string `json:"life_cycle_state"`
	ResultState    string `json:"result_state,omitempty"`
	StateMessage   string `json:"state_message,omitempty"`
}

// IsTerminal reports whether the run has finished, successfully or not.
// INTERNAL_ERROR counts as terminal: the remote service will not progress
// such a run any further.
func (rs RunState) IsTerminal() bool {
	switch rs.LifeCycleState {
	case LifeCycleTerminated, LifeCycleSkipped, LifeCycleInternalError:
		return true
	}
	return false
}

// IsSuccessful reports whether the run finished with a SUCCESS result.
func (rs RunState) IsSuccessful() bool {
	return rs.IsTerminal() && rs.ResultState == ResultSuccess
}
