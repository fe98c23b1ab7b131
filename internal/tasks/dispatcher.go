package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// Reported task states.
const (
	StatePending = "pending"
	StateStarted = "started"
	StateRetry   = "retry"
	StateSuccess = "success"
	StateFailure = "failure"
)

var (
	// ErrUnknownTask is returned for a task id the queue does not know.
	ErrUnknownTask = errors.New("unknown task")
	// ErrWaitTimeout is returned when a task did not finish within the wait.
	ErrWaitTimeout = errors.New("timed out waiting for task")
)

// Enqueuer submits tasks to the queue.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Inspector reads queue state.
type Inspector interface {
	GetTaskInfo(queue, id string) (*asynq.TaskInfo, error)
	GetQueueInfo(queue string) (*asynq.QueueInfo, error)
	Servers() ([]*asynq.ServerInfo, error)
}

// Pinger checks broker connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Submitted describes a newly enqueued task.
type Submitted struct {
	TaskID      string `json:"task_id"`
	Type        string `json:"task_type"`
	Status      string `json:"status"`
	CheckStatus string `json:"check_status"`
}

// TaskStatus is the externally visible state of a task.
type TaskStatus struct {
	TaskID string          `json:"task_id"`
	Type   string          `json:"task_type,omitempty"`
	Status string          `json:"status"`
	Ready  bool            `json:"ready"`
	Result json.RawMessage `json:"result"`
	Error  string          `json:"error,omitempty"`
}

// QueueStats describes one queue.
type QueueStats struct {
	Length    int  `json:"length"`
	Pending   int  `json:"pending"`
	Active    int  `json:"active"`
	Scheduled int  `json:"scheduled"`
	Retry     int  `json:"retry"`
	Archived  int  `json:"archived"`
	Completed int  `json:"completed"`
	Paused    bool `json:"paused"`
}

// WorkerStats describes the running worker servers.
type WorkerStats struct {
	Count      int      `json:"count"`
	Busy       int      `json:"busy"`
	Active     []string `json:"active"`
	Registered []string `json:"registered"`
}

// BrokerStats describes broker connectivity.
type BrokerStats struct {
	Connected bool   `json:"connected"`
	Addr      string `json:"broker_addr"`
	Error     string `json:"error,omitempty"`
}

// QueueReport is the queue and worker overview.
type QueueReport struct {
	Queues  map[string]QueueStats `json:"queues"`
	Workers WorkerStats           `json:"workers"`
	Redis   BrokerStats           `json:"redis"`
}

// Dispatcher triggers tasks and reports on them from the API process.
type Dispatcher struct {
	client    Enqueuer
	inspector Inspector
	broker    Pinger
	addr      string
	opts      Options
	poll      time.Duration
	logger    *slog.Logger
	newID     func() string
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithPollInterval sets how often RunHealth checks for completion.
func WithPollInterval(d time.Duration) DispatcherOption {
	return func(dp *Dispatcher) {
		dp.poll = d
	}
}

// WithDispatcherLogger sets the logger.
func WithDispatcherLogger(logger *slog.Logger) DispatcherOption {
	return func(dp *Dispatcher) {
		dp.logger = logger
	}
}

// WithTaskOptions sets the enqueue options.
func WithTaskOptions(opts Options) DispatcherOption {
	return func(dp *Dispatcher) {
		dp.opts = opts
	}
}

// NewDispatcher creates a Dispatcher. addr is reported in QueueInfo.
func NewDispatcher(client Enqueuer, inspector Inspector, broker Pinger, addr string, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		client:    client,
		inspector: inspector,
		broker:    broker,
		addr:      addr,
		opts:      DefaultOptions(),
		poll:      250 * time.Millisecond,
		logger:    slog.Default(),
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// TriggerFetch enqueues a fetch run.
func (d *Dispatcher) TriggerFetch(ctx context.Context) (Submitted, error) {
	return d.submit(ctx, NewFetchTask())
}

// TriggerCleanup enqueues a cleanup run. days <= 0 uses the worker default.
func (d *Dispatcher) TriggerCleanup(ctx context.Context, days int) (Submitted, error) {
	task, err := NewCleanupTask(days)
	if err != nil {
		return Submitted{}, err
	}
	return d.submit(ctx, task)
}

func (d *Dispatcher) submit(ctx context.Context, task *asynq.Task) (Submitted, error) {
	id := d.newID()
	opts, err := d.opts.enqueueOptions(task.Type(), asynq.TaskID(id))
	if err != nil {
		return Submitted{}, err
	}

	info, err := d.client.EnqueueContext(ctx, task, opts...)
	if err != nil {
		return Submitted{}, fmt.Errorf("enqueue %s: %w", task.Type(), err)
	}
	d.logger.Info("task enqueued", "task_id", info.ID, "type", info.Type, "queue", info.Queue)

	return Submitted{
		TaskID:      info.ID,
		Type:        info.Type,
		Status:      StatePending,
		CheckStatus: "/v1/tasks/" + info.ID,
	}, nil
}

// Status looks a task up in every known queue.
func (d *Dispatcher) Status(ctx context.Context, id string) (TaskStatus, error) {
	for _, def := range Definitions {
		if err := ctx.Err(); err != nil {
			return TaskStatus{}, err
		}
		info, err := d.inspector.GetTaskInfo(def.Queue, id)
		if err != nil {
			if errors.Is(err, asynq.ErrTaskNotFound) || errors.Is(err, asynq.ErrQueueNotFound) {
				continue
			}
			return TaskStatus{}, fmt.Errorf("inspect task %s: %w", id, err)
		}
		return statusFromInfo(info), nil
	}
	return TaskStatus{}, fmt.Errorf("%w: %s", ErrUnknownTask, id)
}

func statusFromInfo(info *asynq.TaskInfo) TaskStatus {
	s := TaskStatus{TaskID: info.ID, Type: info.Type}
	switch info.State {
	case asynq.TaskStateActive:
		s.Status = StateStarted
	case asynq.TaskStateRetry:
		s.Status = StateRetry
		s.Error = info.LastErr
	case asynq.TaskStateCompleted:
		s.Status = StateSuccess
		s.Ready = true
		if json.Valid(info.Result) {
			s.Result = json.RawMessage(info.Result)
		}
	case asynq.TaskStateArchived:
		s.Status = StateFailure
		s.Ready = true
		s.Error = info.LastErr
	default:
		s.Status = StatePending
	}
	return s
}

// RunHealth enqueues a health check and waits up to wait for it to finish.
// When the wait expires the error wraps ErrWaitTimeout and the returned
// status carries the task id.
func (d *Dispatcher) RunHealth(ctx context.Context, wait time.Duration) (TaskStatus, error) {
	sub, err := d.submit(ctx, NewHealthTask())
	if err != nil {
		return TaskStatus{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	ticker := time.NewTicker(d.poll)
	defer ticker.Stop()

	last := TaskStatus{TaskID: sub.TaskID, Type: sub.Type, Status: StatePending}
	for {
		st, err := d.Status(ctx, sub.TaskID)
		switch {
		case err == nil:
			last = st
			if st.Ready {
				return st, nil
			}
		case errors.Is(err, ErrUnknownTask):
			// not visible yet
		case ctx.Err() == nil:
			return last, err
		}

		select {
		case <-ctx.Done():
			return last, fmt.Errorf("%w %s after %s", ErrWaitTimeout, sub.TaskID, wait)
		case <-ticker.C:
		}
	}
}

// QueueInfo reports broker connectivity, queue sizes and workers. A broker
// outage is reported in the result, not as an error.
func (d *Dispatcher) QueueInfo(ctx context.Context) (QueueReport, error) {
	report := QueueReport{
		Queues: make(map[string]QueueStats, len(Definitions)),
		Workers: WorkerStats{
			Active:     []string{},
			Registered: Names(),
		},
		Redis: BrokerStats{Addr: d.addr},
	}

	if err := d.broker.Ping(ctx); err != nil {
		report.Redis.Error = err.Error()
		return report, nil
	}
	report.Redis.Connected = true

	for _, def := range Definitions {
		q, err := d.inspector.GetQueueInfo(def.Queue)
		if errors.Is(err, asynq.ErrQueueNotFound) {
			report.Queues[def.Queue] = QueueStats{}
			continue
		}
		if err != nil {
			return QueueReport{}, fmt.Errorf("inspect queue %s: %w", def.Queue, err)
		}
		report.Queues[def.Queue] = QueueStats{
			Length:    q.Size,
			Pending:   q.Pending,
			Active:    q.Active,
			Scheduled: q.Scheduled,
			Retry:     q.Retry,
			Archived:  q.Archived,
			Completed: q.Completed,
			Paused:    q.Paused,
		}
	}

	servers, err := d.inspector.Servers()
	if err != nil {
		return QueueReport{}, fmt.Errorf("list workers: %w", err)
	}
	for _, s := range servers {
		report.Workers.Active = append(report.Workers.Active, fmt.Sprintf("%s:%d", s.Host, s.PID))
		report.Workers.Busy += len(s.ActiveWorkers)
	}
	sort.Strings(report.Workers.Active)
	report.Workers.Count = len(servers)

	return report, nil
}
