package domain

import "time"

type CheckState string

const (
	CheckQueueEmpty CheckState = "queue_empty"
	CheckReady      CheckState = "ready"
	CheckRunning    CheckState = "running"
	CheckCompleted  CheckState = "completed"
	CheckFailed     CheckState = "failed"
)

func (s CheckState) Terminal() bool {
	return s == CheckCompleted || s == CheckFailed
}

// CheckSnapshot is a point-in-time copy of an orchestrator run.
type CheckSnapshot struct {
	RunID      string
	State      CheckState
	Scope      ResultType
	Log        []ProgressEvent
	Warnings   []string
	Progress   float64
	Result     *CheckResult
	Err        error
	StartedAt  time.Time
	FinishedAt time.Time
}

// CheckUpdate is pushed to orchestrator subscribers on every change.
type CheckUpdate struct {
	Snapshot CheckSnapshot
	// Event is set when the update was caused by a feed message.
	Event *ProgressEvent
}
