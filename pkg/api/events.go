package api

// TaskEventType names a progress event pushed to SSE and WebSocket clients.
type TaskEventType string

const (
	// EventStatus carries a status snapshot. Sent on every change and on each poll tick.
	EventStatus TaskEventType = "status"

	// EventComplete is sent once when the task reaches a terminal status.
	EventComplete TaskEventType = "complete"

	// EventError is sent when the task disappears while being watched.
	EventError TaskEventType = "error"
)

// TaskEventData is the payload of a progress event.
type TaskEventData struct {
	TaskID   string     `json:"task_id,omitempty"`
	Status   TaskStatus `json:"status,omitempty"`
	Progress *float64   `json:"progress,omitempty"`
	Message  string     `json:"message"`
}

// TaskEvent is a single progress event.
type TaskEvent struct {
	Event TaskEventType `json:"event"`
	Data  TaskEventData `json:"data"`
}

// StatusEvent builds an EventStatus from a task snapshot.
func StatusEvent(s TaskStatusResponse) TaskEvent {
	p := s.Progress
	return TaskEvent{
		Event: EventStatus,
		Data: TaskEventData{
			TaskID:   s.TaskID,
			Status:   s.Status,
			Progress: &p,
			Message:  s.Message,
		},
	}
}

// CompleteEvent builds the terminal EventComplete from a task snapshot.
func CompleteEvent(s TaskStatusResponse) TaskEvent {
	return TaskEvent{
		Event: EventComplete,
		Data: TaskEventData{
			TaskID:  s.TaskID,
			Status:  s.Status,
			Message: s.Message,
		},
	}
}

// ErrorEvent builds an EventError with the given message.
func ErrorEvent(message string) TaskEvent {
	return TaskEvent{Event: EventError, Data: TaskEventData{Message: message}}
}
