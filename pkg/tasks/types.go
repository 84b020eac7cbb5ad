package tasks

import (
	"context"
	"errors"
	"maps"
	"time"

	"github.com/rhuss/slidewright/pkg/api"
)

// Status messages attached to each transition.
const (
	MessagePending   = "Task pending execution"
	MessageRunning   = "Task running"
	MessageCompleted = "Task completed successfully"
	MessageCancelled = "Task cancelled"
	MessageFailed    = "Task failed with an error"
	MessageShutdown  = "Task cancelled due to shutdown"
)

var (
	// ErrNotRunning is returned by Submit before Start or after Stop.
	ErrNotRunning = errors.New("task manager is not running")

	// ErrQueueFull is returned by Submit when no queue slot is free.
	ErrQueueFull = errors.New("task queue is full")

	// ErrNotFound is returned for unknown task IDs.
	ErrNotFound = errors.New("task not found")

	// ErrFinished is returned when cancelling a task that already ended.
	ErrFinished = errors.New("task already finished")

	// ErrDuplicateID is returned when Options.ID is already taken.
	ErrDuplicateID = errors.New("task id already exists")
)

// Func is the work performed by a task. It should return promptly once ctx
// is cancelled and report progress through t.Update.
type Func func(ctx context.Context, t *Task) (any, error)

// ProgressFunc observes progress updates of one task.
type ProgressFunc func(taskID string, progress float64, message string)

// Options customize a submission.
type Options struct {
	// ID overrides the generated UUID.
	ID       string
	Metadata map[string]any
}

// Result is a snapshot of a task.
type Result struct {
	TaskID      string         `json:"task_id"`
	Status      api.TaskStatus `json:"status"`
	CreatedAt   time.Time      `json:"created_at"`
	StartedAt   *time.Time     `json:"started_at,omitempty"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	Progress    float64        `json:"progress"`
	Message     string         `json:"message"`
	Result      any            `json:"result,omitempty"`
	Error       string         `json:"error,omitempty"`
	Stack       string         `json:"stack,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// StatusResponse converts the snapshot to the client view.
func (r Result) StatusResponse() api.TaskStatusResponse {
	return api.TaskStatusResponse{
		TaskID:      r.TaskID,
		Status:      r.Status,
		Progress:    r.Progress,
		Message:     r.Message,
		CreatedAt:   r.CreatedAt,
		StartedAt:   r.StartedAt,
		CompletedAt: r.CompletedAt,
		Error:       r.Error,
	}
}

func (r Result) clone() Result {
	out := r
	if r.StartedAt != nil {
		t := *r.StartedAt
		out.StartedAt = &t
	}
	if r.CompletedAt != nil {
		t := *r.CompletedAt
		out.CompletedAt = &t
	}
	out.Metadata = maps.Clone(r.Metadata)
	return out
}

// Task is the handle passed to a running Func.
type Task struct {
	id string
	m  *Manager
}

// ID returns the task ID.
func (t *Task) ID() string { return t.id }

// Update records progress, clamped to [0, 1]. An empty message keeps the
// previous one. Updates after the task ended are ignored.
func (t *Task) Update(progress float64, message string) {
	t.m.update(t.id, progress, message)
}
