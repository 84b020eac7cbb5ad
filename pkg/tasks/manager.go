package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rhuss/slidewright/pkg/api"
	"github.com/rhuss/slidewright/pkg/observability"
)

// Defaults applied by New.
const (
	DefaultWorkers   = 5
	DefaultQueueSize = 100
	DefaultRetention = time.Hour
)

// Config configures a Manager.
type Config struct {
	Workers   int
	QueueSize int

	// Retention is how long finished tasks are kept. PurgeInterval enables
	// a background sweep when positive.
	Retention     time.Duration
	PurgeInterval time.Duration

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
	if c.QueueSize <= 0 {
		c.QueueSize = DefaultQueueSize
	}
	if c.Retention <= 0 {
		c.Retention = DefaultRetention
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

type record struct {
	res       Result
	fn        Func
	ctx       context.Context
	cancel    context.CancelFunc
	callbacks []ProgressFunc
	subs      []chan Result
}

// Manager owns the worker pool and the task table. All methods are safe
// for concurrent use.
type Manager struct {
	cfg    Config
	logger *slog.Logger
	now    func() time.Time

	mu      sync.Mutex
	tasks   map[string]*record
	queue   chan *record
	running bool
	runCtx  context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates a stopped Manager.
func New(cfg Config) *Manager {
	cfg.defaults()
	return &Manager{
		cfg:    cfg,
		logger: cfg.Logger,
		now:    time.Now,
		tasks:  make(map[string]*record),
	}
}

// Start launches the workers. Task contexts inherit the values of ctx but
// not its cancellation; only Stop shuts the manager down.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return errors.New("task manager already running")
	}

	m.runCtx, m.cancel = context.WithCancel(context.WithoutCancel(ctx))
	m.queue = make(chan *record, m.cfg.QueueSize)
	m.running = true

	m.wg.Add(m.cfg.Workers)
	for i := 0; i < m.cfg.Workers; i++ {
		go m.worker(m.runCtx, m.queue)
	}
	if m.cfg.PurgeInterval > 0 {
		m.wg.Add(1)
		go m.purgeLoop(m.runCtx)
	}

	m.logger.Info("task manager started", "workers", m.cfg.Workers, "queue_size", m.cfg.QueueSize)
	return nil
}

// Stop cancels every pending and running task, then waits for the workers
// to return or ctx to expire.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return nil
	}
	m.running = false
	cancelled := 0
	for _, rec := range m.tasks {
		if !rec.res.Status.Terminal() && m.transition(rec, api.TaskStatusCancelled, MessageShutdown) {
			cancelled++
		}
	}
	cancel := m.cancel
	m.mu.Unlock()

	cancel()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.logger.Info("task manager stopped", "cancelled", cancelled)
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for task workers: %w", ctx.Err())
	}
}

// Running reports whether the manager accepts submissions.
func (m *Manager) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Workers returns the size of the worker pool.
func (m *Manager) Workers() int { return m.cfg.Workers }

// Submit queues fn and returns the task ID.
func (m *Manager) Submit(fn Func, opts Options) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return "", ErrNotRunning
	}

	id := opts.ID
	if id == "" {
		id = uuid.NewString()
	}
	if _, exists := m.tasks[id]; exists {
		return "", fmt.Errorf("%w: %s", ErrDuplicateID, id)
	}

	ctx, cancel := context.WithCancel(m.runCtx)
	rec := &record{
		res: Result{
			TaskID:    id,
			CreatedAt: m.now(),
			Metadata:  maps.Clone(opts.Metadata),
		},
		fn:     fn,
		ctx:    ctx,
		cancel: cancel,
	}
	if !m.transition(rec, api.TaskStatusPending, MessagePending) {
		cancel()
		return "", fmt.Errorf("register task %s", id)
	}

	select {
	case m.queue <- rec:
	default:
		cancel()
		observability.TasksActive.Dec()
		return "", ErrQueueFull
	}

	m.tasks[id] = rec
	m.logger.Info("task submitted", "task_id", id)
	return id, nil
}

// Get returns a snapshot of the task.
func (m *Manager) Get(id string) (Result, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.tasks[id]
	if !ok {
		return Result{}, false
	}
	return rec.res.clone(), true
}

// All returns every known task ordered by creation time.
func (m *Manager) All() []Result {
	return m.list(func(api.TaskStatus) bool { return true })
}

// Active returns pending and running tasks ordered by creation time.
func (m *Manager) Active() []Result {
	return m.list(func(s api.TaskStatus) bool { return !s.Terminal() })
}

func (m *Manager) list(keep func(api.TaskStatus) bool) []Result {
	m.mu.Lock()
	out := make([]Result, 0, len(m.tasks))
	for _, rec := range m.tasks {
		if keep(rec.res.Status) {
			out = append(out, rec.res.clone())
		}
	}
	m.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].TaskID < out[j].TaskID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Cancel stops a pending or running task.
func (m *Manager) Cancel(id string) (Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.tasks[id]
	if !ok {
		return Result{}, ErrNotFound
	}
	if rec.res.Status.Terminal() {
		return rec.res.clone(), ErrFinished
	}
	m.transition(rec, api.TaskStatusCancelled, MessageCancelled)
	m.logger.Info("task cancelled", "task_id", id)
	return rec.res.clone(), nil
}

// AddProgressCallback registers fn for progress updates of the task.
// Callbacks run on the worker goroutine and must not block.
func (m *Manager) AddProgressCallback(id string, fn ProgressFunc) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.tasks[id]
	if !ok {
		return ErrNotFound
	}
	rec.callbacks = append(rec.callbacks, fn)
	return nil
}

// Subscribe returns a channel that receives status snapshots of the task.
// Slow readers only see the latest snapshot. The channel is closed after
// the terminal snapshot or when unsubscribe is called.
func (m *Manager) Subscribe(id string) (<-chan Result, func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.tasks[id]
	if !ok {
		return nil, nil, ErrNotFound
	}

	ch := make(chan Result, 1)
	ch <- rec.res.clone()
	if rec.res.Status.Terminal() {
		close(ch)
		return ch, func() {}, nil
	}
	rec.subs = append(rec.subs, ch)

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			for i, c := range rec.subs {
				if c == ch {
					rec.subs = append(rec.subs[:i], rec.subs[i+1:]...)
					close(ch)
					return
				}
			}
		})
	}
	return ch, unsubscribe, nil
}

// PurgeCompleted removes finished tasks that ended more than maxAge ago.
// A maxAge of zero or less uses the configured retention.
func (m *Manager) PurgeCompleted(maxAge time.Duration) int {
	if maxAge <= 0 {
		maxAge = m.cfg.Retention
	}
	cutoff := m.now().Add(-maxAge)

	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for id, rec := range m.tasks {
		if rec.res.Status.Terminal() && rec.res.CompletedAt != nil && rec.res.CompletedAt.Before(cutoff) {
			delete(m.tasks, id)
			removed++
		}
	}
	return removed
}

func (m *Manager) worker(ctx context.Context, queue <-chan *record) {
	defer m.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case rec := <-queue:
			m.execute(rec)
		}
	}
}

func (m *Manager) purgeLoop(ctx context.Context) {
	defer m.wg.Done()
	ticker := time.NewTicker(m.cfg.PurgeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.PurgeCompleted(0); n > 0 {
				m.logger.Debug("purged finished tasks", "count", n)
			}
		}
	}
}

func (m *Manager) execute(rec *record) {
	m.mu.Lock()
	if rec.res.Status != api.TaskStatusPending {
		// Cancelled while queued.
		m.mu.Unlock()
		return
	}
	m.transition(rec, api.TaskStatusRunning, MessageRunning)
	id := rec.res.TaskID
	m.mu.Unlock()

	logger := m.logger.With("task_id", id)
	logger.Debug("task started")

	value, stack, err := m.call(rec)

	m.mu.Lock()
	defer m.mu.Unlock()
	defer rec.cancel()

	if rec.res.Status.Terminal() {
		return
	}
	switch {
	case err == nil:
		rec.res.Result = value
		m.transition(rec, api.TaskStatusCompleted, MessageCompleted)
		logger.Info("task completed")
	case rec.ctx.Err() != nil:
		m.transition(rec, api.TaskStatusCancelled, MessageCancelled)
		logger.Info("task cancelled")
	default:
		rec.res.Error = err.Error()
		rec.res.Stack = stack
		m.transition(rec, api.TaskStatusFailed, MessageFailed)
		logger.Error("task failed", "error", err)
	}
}

// call runs the task function, converting a panic into an error.
func (m *Manager) call(rec *record) (value any, stack string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
			stack = string(debug.Stack())
		}
	}()
	value, err = rec.fn(rec.ctx, &Task{id: rec.res.TaskID, m: m})
	return value, "", err
}

// transition moves rec to status `to`. The caller holds m.mu.
func (m *Manager) transition(rec *record, to api.TaskStatus, message string) bool {
	from := rec.res.Status
	if err := api.ValidateTaskTransition(from, to); err != nil {
		m.logger.Warn("rejected task transition", "task_id", rec.res.TaskID, "error", err.Message)
		return false
	}

	now := m.now()
	rec.res.Status = to
	rec.res.Message = message

	switch to {
	case api.TaskStatusPending:
		observability.TasksActive.Inc()
	case api.TaskStatusRunning:
		rec.res.StartedAt = &now
	default:
		rec.res.CompletedAt = &now
		if to == api.TaskStatusCompleted {
			rec.res.Progress = 1
		}
		if rec.cancel != nil {
			rec.cancel()
		}
		observability.TasksActive.Dec()
		observability.TasksTotal.WithLabelValues(string(to)).Inc()
		if rec.res.StartedAt != nil {
			observability.TaskDuration.Observe(now.Sub(*rec.res.StartedAt).Seconds())
		}
	}

	m.publish(rec)
	return true
}

// publish delivers the current snapshot to subscribers. The caller holds m.mu.
func (m *Manager) publish(rec *record) {
	snap := rec.res.clone()
	for _, ch := range rec.subs {
		select {
		case ch <- snap:
		default:
			// Replace the unread snapshot with the newer one.
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
	if snap.Status.Terminal() {
		for _, ch := range rec.subs {
			close(ch)
		}
		rec.subs = nil
	}
}

func (m *Manager) update(id string, progress float64, message string) {
	progress = max(0, min(1, progress))

	m.mu.Lock()
	rec, ok := m.tasks[id]
	if !ok || rec.res.Status.Terminal() {
		m.mu.Unlock()
		return
	}
	rec.res.Progress = progress
	if message != "" {
		rec.res.Message = message
	}
	m.publish(rec)
	callbacks := append([]ProgressFunc(nil), rec.callbacks...)
	m.mu.Unlock()

	for _, fn := range callbacks {
		m.runCallback(id, fn, progress, message)
	}
}

func (m *Manager) runCallback(id string, fn ProgressFunc, progress float64, message string) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("progress callback panicked", "task_id", id, "panic", r)
		}
	}()
	fn(id, progress, message)
}
