package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/rickgao/deribit-prices/internal/pipeline"
)

// FetchRunner runs one fetch cycle.
type FetchRunner interface {
	Run(ctx context.Context, runID string) pipeline.FetchSummary
}

// HealthRunner runs one health check.
type HealthRunner interface {
	Run(ctx context.Context, runID string) pipeline.HealthReport
}

// CleanupRunner runs one retention cleanup.
type CleanupRunner interface {
	Run(ctx context.Context, days int) pipeline.CleanupSummary
}

// Handlers adapts the pipelines to task handlers. Every handler stores the
// run summary as the task result and returns nil whatever the run outcome.
type Handlers struct {
	Fetch   FetchRunner
	Health  HealthRunner
	Cleanup CleanupRunner
	Logger  *slog.Logger

	writeResult func(t *asynq.Task, data []byte) error
}

// NewMux builds the task router. Every type in Definitions must have a
// handler.
func NewMux(h *Handlers) (*asynq.ServeMux, error) {
	if h.Logger == nil {
		h.Logger = slog.Default()
	}
	if h.writeResult == nil {
		h.writeResult = writeTaskResult
	}

	routes := map[string]func(context.Context, *asynq.Task) error{}
	if h.Fetch != nil {
		routes[TypeFetchPrices] = h.handleFetch
	}
	if h.Health != nil {
		routes[TypeHealthCheck] = h.handleHealth
	}
	if h.Cleanup != nil {
		routes[TypeCleanup] = h.handleCleanup
	}

	mux := asynq.NewServeMux()
	for _, d := range Definitions {
		fn, ok := routes[d.Type]
		if !ok {
			return nil, fmt.Errorf("no handler for task type %q", d.Type)
		}
		mux.HandleFunc(d.Type, fn)
	}
	return mux, nil
}

func (h *Handlers) handleFetch(ctx context.Context, t *asynq.Task) error {
	id := taskID(ctx, t)
	h.Logger.Info("starting fetch task", "task_id", id)

	summary := h.Fetch.Run(ctx, id)
	return h.store(t, id, summary)
}

func (h *Handlers) handleHealth(ctx context.Context, t *asynq.Task) error {
	id := taskID(ctx, t)
	h.Logger.Info("starting health check task", "task_id", id)

	report := h.Health.Run(ctx, id)
	return h.store(t, id, report)
}

func (h *Handlers) handleCleanup(ctx context.Context, t *asynq.Task) error {
	id := taskID(ctx, t)

	var p CleanupPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &p); err != nil {
			return fmt.Errorf("decode cleanup payload: %v: %w", err, asynq.SkipRetry)
		}
	}
	h.Logger.Info("starting cleanup task", "task_id", id, "days_to_keep", p.DaysToKeep)

	summary := h.Cleanup.Run(ctx, p.DaysToKeep)
	return h.store(t, id, summary)
}

// store writes v as the task result. A failed write is logged only, since
// retrying would repeat the run.
func (h *Handlers) store(t *asynq.Task, id string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		h.Logger.Error("encode task result", "task_id", id, "error", err)
		return nil
	}
	if err := h.writeResult(t, data); err != nil {
		h.Logger.Error("write task result", "task_id", id, "error", err)
	}
	return nil
}

func writeTaskResult(t *asynq.Task, data []byte) error {
	rw := t.ResultWriter()
	if rw == nil {
		return nil
	}
	_, err := rw.Write(data)
	return err
}

// taskID returns the queue's id for the running task. Outside a worker it
// generates one.
func taskID(ctx context.Context, t *asynq.Task) string {
	if id, ok := asynq.GetTaskID(ctx); ok {
		return id
	}
	if rw := t.ResultWriter(); rw != nil {
		return rw.TaskID()
	}
	return uuid.NewString()
}
