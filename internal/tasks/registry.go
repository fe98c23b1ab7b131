package tasks

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

// Task type names.
const (
	TypeFetchPrices = "fetch_prices_task"
	TypeHealthCheck = "health_check_task"
	TypeCleanup     = "cleanup_old_prices_task"
)

// Queue names.
const (
	QueuePrices      = "prices"
	QueueMonitoring  = "monitoring"
	QueueMaintenance = "maintenance"
)

// Definition binds a task type to the queue it runs on.
type Definition struct {
	Type   string
	Queue  string
	Weight int // relative share of worker slots for the queue
}

// Definitions is the static task table.
var Definitions = []Definition{
	{Type: TypeFetchPrices, Queue: QueuePrices, Weight: 6},
	{Type: TypeHealthCheck, Queue: QueueMonitoring, Weight: 3},
	{Type: TypeCleanup, Queue: QueueMaintenance, Weight: 1},
}

// Lookup returns the definition for a task type.
func Lookup(typ string) (Definition, bool) {
	for _, d := range Definitions {
		if d.Type == typ {
			return d, true
		}
	}
	return Definition{}, false
}

// Names returns every registered task type.
func Names() []string {
	names := make([]string, len(Definitions))
	for i, d := range Definitions {
		names[i] = d.Type
	}
	return names
}

// Queues returns the queue weights for the worker server.
func Queues() map[string]int {
	q := make(map[string]int, len(Definitions))
	for _, d := range Definitions {
		q[d.Queue] = d.Weight
	}
	return q
}

// Options are enqueue options shared by every task.
type Options struct {
	MaxRetry  int
	Timeout   time.Duration
	Retention time.Duration // how long completed results stay inspectable
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{
		MaxRetry:  3,
		Timeout:   5 * time.Minute,
		Retention: time.Hour,
	}
}

// enqueueOptions builds the options for typ. It fails for unknown types.
func (o Options) enqueueOptions(typ string, extra ...asynq.Option) ([]asynq.Option, error) {
	def, ok := Lookup(typ)
	if !ok {
		return nil, fmt.Errorf("unknown task type %q", typ)
	}
	opts := []asynq.Option{
		asynq.Queue(def.Queue),
		asynq.MaxRetry(o.MaxRetry),
	}
	if o.Timeout > 0 {
		opts = append(opts, asynq.Timeout(o.Timeout))
	}
	if o.Retention > 0 {
		opts = append(opts, asynq.Retention(o.Retention))
	}
	return append(opts, extra...), nil
}

// CleanupPayload is the payload of a cleanup task.
type CleanupPayload struct {
	DaysToKeep int `json:"days_to_keep"`
}

// NewFetchTask creates a fetch task.
func NewFetchTask() *asynq.Task {
	return asynq.NewTask(TypeFetchPrices, nil)
}

// NewHealthTask creates a health check task.
func NewHealthTask() *asynq.Task {
	return asynq.NewTask(TypeHealthCheck, nil)
}

// NewCleanupTask creates a cleanup task. days <= 0 uses the worker default.
func NewCleanupTask(days int) (*asynq.Task, error) {
	payload, err := json.Marshal(CleanupPayload{DaysToKeep: days})
	if err != nil {
		return nil, fmt.Errorf("encode cleanup payload: %w", err)
	}
	return asynq.NewTask(TypeCleanup, payload), nil
}
