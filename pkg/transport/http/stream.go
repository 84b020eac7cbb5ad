package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/rhuss/slidewright/pkg/api"
	"github.com/rhuss/slidewright/pkg/tasks"
	"github.com/rhuss/slidewright/pkg/transport"
)

// errStreamClosed is returned by stream writers after a terminal event.
var errStreamClosed = errors.New("stream is closed")

// eventWriter delivers progress events to one client.
type eventWriter interface {
	WriteEvent(ev api.TaskEvent) error
}

// terminalEvent reports whether ev ends a progress stream.
func terminalEvent(ev api.TaskEvent) bool {
	return ev.Event == api.EventComplete || ev.Event == api.EventError
}

// watchTask streams the progress of task id to out until the task ends,
// the task disappears or ctx is cancelled. A status event is sent on every
// change and on every tick of interval.
func watchTask(ctx context.Context, m *tasks.Manager, id string, interval time.Duration, out eventWriter) error {
	updates, unsubscribe, err := m.Subscribe(id)
	if errors.Is(err, tasks.ErrNotFound) {
		return out.WriteEvent(taskGoneEvent(id))
	}
	if err != nil {
		return err
	}
	defer unsubscribe()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// emit sends the status snapshot and, for finished tasks, the closing
	// complete event. It reports whether the stream is done.
	emit := func(res tasks.Result) (bool, error) {
		status := res.StatusResponse()
		if err := out.WriteEvent(api.StatusEvent(status)); err != nil {
			return true, err
		}
		if !res.Status.Terminal() {
			return false, nil
		}
		return true, out.WriteEvent(api.CompleteEvent(status))
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case res, ok := <-updates:
			if !ok {
				// Closed without a terminal snapshot; keep polling.
				updates = nil
				continue
			}
			if done, err := emit(res); done {
				return err
			}
		case <-ticker.C:
			res, ok := m.Get(id)
			if !ok {
				return out.WriteEvent(taskGoneEvent(id))
			}
			if done, err := emit(res); done {
				return err
			}
		}
	}
}

func taskGoneEvent(id string) api.TaskEvent {
	return api.ErrorEvent(fmt.Sprintf("Task %s no longer exists", id))
}

// trackStream registers a stream for shutdown and returns its context and
// a release function.
func (a *Adapter) trackStream(parent context.Context) (context.Context, func()) {
	ctx, cancel := context.WithCancel(parent)
	key := uuid.NewString()
	a.streams.Register(key, cancel)
	return ctx, func() {
		a.streams.Remove(key)
		cancel()
	}
}

// sseWriter writes progress events as server-sent events:
//
//	event: {type}\n
//	data: {json}\n
//	\n
type sseWriter struct {
	w  http.ResponseWriter
	rc *http.ResponseController

	mu     sync.Mutex
	closed bool
}

var _ eventWriter = (*sseWriter)(nil)

func newSSEWriter(w http.ResponseWriter) *sseWriter {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	return &sseWriter{w: w, rc: http.NewResponseController(w)}
}

// WriteEvent sends one event and flushes it. Writes after a terminal
// event fail with errStreamClosed.
func (s *sseWriter) WriteEvent(ev api.TaskEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errStreamClosed
	}

	data, err := json.Marshal(ev.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", ev.Event, data); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}
	if err := s.rc.Flush(); err != nil {
		return fmt.Errorf("failed to flush: %w", err)
	}

	if terminalEvent(ev) {
		s.closed = true
	}
	return nil
}

// handleTaskEvents handles GET /api/generation/{id}/events.
func (a *Adapter) handleTaskEvents(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, ok := a.deps.Tasks.Get(id); !ok {
		transport.WriteAPIError(w, taskNotFound(id))
		return
	}

	ctx, release := a.trackStream(r.Context())
	defer release()

	sw := newSSEWriter(w)
	w.WriteHeader(http.StatusOK)
	if err := watchTask(ctx, a.deps.Tasks, id, a.config.PollInterval, sw); err != nil && !errors.Is(err, errStreamClosed) {
		slog.Debug("event stream ended", "task_id", id, "error", err)
	}
}

const wsWriteTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

// wsWriter sends progress events as JSON text frames.
type wsWriter struct {
	conn *websocket.Conn

	mu     sync.Mutex
	closed bool
}

var _ eventWriter = (*wsWriter)(nil)

func (s *wsWriter) WriteEvent(ev api.TaskEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errStreamClosed
	}
	s.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	if err := s.conn.WriteJSON(ev); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	if terminalEvent(ev) {
		s.closed = true
	}
	return nil
}

// close sends a normal closure frame.
func (s *wsWriter) close(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
	s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(wsWriteTimeout))
}

// handleTaskWebSocket handles GET /api/generation/{id}/ws.
func (a *Adapter) handleTaskWebSocket(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, ok := a.deps.Tasks.Get(id); !ok {
		transport.WriteAPIError(w, taskNotFound(id))
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader already wrote the error response.
		slog.Debug("websocket upgrade failed", "task_id", id, "error", err)
		return
	}
	defer conn.Close()

	ctx, release := a.trackStream(r.Context())
	defer release()

	// Drain client frames so that control frames are processed and a
	// client hang-up ends the stream.
	go func() {
		defer release()
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	ws := &wsWriter{conn: conn}
	err = watchTask(ctx, a.deps.Tasks, id, a.config.PollInterval, ws)
	if err != nil && !errors.Is(err, errStreamClosed) {
		slog.Debug("websocket stream ended", "task_id", id, "error", err)
		return
	}
	ws.close("stream finished")
}
