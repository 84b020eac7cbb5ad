package api

import "fmt"

// TaskStatus is the lifecycle state of an asynchronous generation task.
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
	TaskStatusCancelled TaskStatus = "cancelled"
)

// Terminal reports whether no further transitions are possible from s.
func (s TaskStatus) Terminal() bool {
	switch s {
	case TaskStatusCompleted, TaskStatusFailed, TaskStatusCancelled:
		return true
	}
	return false
}

// ValidateTaskTransition checks whether a task status transition is valid.
// An empty "from" status represents a task that has not been registered yet.
// Terminal states (completed, failed, cancelled) do not allow outgoing transitions.
func ValidateTaskTransition(from, to TaskStatus) *APIError {
	valid := map[TaskStatus][]TaskStatus{
		"":                {TaskStatusPending},
		TaskStatusPending: {TaskStatusRunning, TaskStatusCancelled},
		TaskStatusRunning: {TaskStatusCompleted, TaskStatusFailed, TaskStatusCancelled},
	}

	for _, s := range valid[from] {
		if s == to {
			return nil
		}
	}

	return NewInvalidRequestError("status",
		fmt.Sprintf("invalid transition from %s to %s", from, to))
}

// StageStatus is the state of one pipeline stage inside a generation.
type StageStatus string

const (
	StageNotStarted StageStatus = "not_started"
	StageInProgress StageStatus = "in_progress"
	StageCompleted  StageStatus = "completed"
	StageFailed     StageStatus = "failed"
)
