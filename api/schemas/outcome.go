package schemas

import "time"

// Failure reasons reported by the run coordinator before any task runs.
const (
	ReasonNoTasks        = "no tasks"
	ReasonNoActiveTarget = "no active target"
	ReasonRunInProgress  = "run already in progress"
)

// MessageAllTasksProcessed is the message of a run that reached its end.
const MessageAllTasksProcessed = "All tasks processed."

// TaskFailure records a delegated task that did not succeed. Failures never
// stop a run; they are attached to its outcome.
type TaskFailure struct {
	Index    int        `json:"index"`
	Action   ActionKind `json:"action"`
	Selector string     `json:"selector,omitempty"`
	Reason   string     `json:"reason"`
}

// RunOutcome is the single aggregate result of one run.
type RunOutcome struct {
	RunID      string        `json:"runId,omitempty"`
	Status     Status        `json:"status"`
	Message    string        `json:"message,omitempty"`
	Completed  int           `json:"completed"`
	Failures   []TaskFailure `json:"failures,omitempty"`
	StartedAt  time.Time     `json:"startedAt"`
	FinishedAt time.Time     `json:"finishedAt"`
}

// Succeeded reports whether the run reached its end.
func (o RunOutcome) Succeeded() bool { return o.Status == StatusSuccess }

// RunFailed builds an outcome for a run that could not start or was abandoned.
func RunFailed(runID, reason string) RunOutcome {
	now := time.Now().UTC()
	return RunOutcome{
		RunID:      runID,
		Status:     StatusError,
		Message:    reason,
		StartedAt:  now,
		FinishedAt: now,
	}
}
