package tasks

import (
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/rickgao/deribit-prices/internal/config"
)

// Registrar accepts periodic task registrations.
type Registrar interface {
	Register(cronspec string, task *asynq.Task, opts ...asynq.Option) (string, error)
}

// Periodic is one periodic trigger.
type Periodic struct {
	Spec string
	Task *asynq.Task
}

// PeriodicTasks returns the periodic triggers for cfg. An empty or "off"
// schedule disables its task.
func PeriodicTasks(cfg config.WorkerConfig) ([]Periodic, error) {
	cleanup, err := NewCleanupTask(cfg.RetentionDays)
	if err != nil {
		return nil, err
	}
	all := []Periodic{
		{Spec: cfg.FetchSchedule, Task: NewFetchTask()},
		{Spec: cfg.HealthSchedule, Task: NewHealthTask()},
		{Spec: cfg.CleanupSchedule, Task: cleanup},
	}

	var out []Periodic
	for _, p := range all {
		if p.Spec != "" && p.Spec != config.ScheduleOff {
			out = append(out, p)
		}
	}
	return out, nil
}

// RegisterPeriodic registers every periodic trigger with r and returns the
// entry ids.
func RegisterPeriodic(r Registrar, cfg config.WorkerConfig, opts Options) ([]string, error) {
	periodic, err := PeriodicTasks(cfg)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(periodic))
	for _, p := range periodic {
		taskOpts, err := opts.enqueueOptions(p.Task.Type())
		if err != nil {
			return nil, err
		}
		id, err := r.Register(p.Spec, p.Task, taskOpts...)
		if err != nil {
			return nil, fmt.Errorf("register %s (%q): %w", p.Task.Type(), p.Spec, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// OptionsFromConfig maps worker settings to enqueue options.
func OptionsFromConfig(cfg config.WorkerConfig) Options {
	opts := DefaultOptions()
	if cfg.TaskMaxRetry >= 0 {
		opts.MaxRetry = cfg.TaskMaxRetry
	}
	if cfg.TaskTimeout > 0 {
		opts.Timeout = cfg.TaskTimeout
	}
	if cfg.ResultRetention > 0 {
		opts.Retention = cfg.ResultRetention
	}
	return opts
}

// NewScheduler creates the periodic scheduler. Cron specs are evaluated in
// UTC.
func NewScheduler(conn asynq.RedisConnOpt, logger *zap.SugaredLogger, level asynq.LogLevel) *asynq.Scheduler {
	return asynq.NewScheduler(conn, &asynq.SchedulerOpts{
		Logger:   logger,
		LogLevel: level,
		Location: time.UTC,
	})
}

// NewServer creates the task worker server.
func NewServer(conn asynq.RedisConnOpt, cfg config.WorkerConfig, logger *zap.SugaredLogger, level asynq.LogLevel) *asynq.Server {
	return asynq.NewServer(conn, asynq.Config{
		Concurrency:     cfg.Concurrency,
		Queues:          Queues(),
		Logger:          logger,
		LogLevel:        level,
		ShutdownTimeout: cfg.ShutdownTimeout,
	})
}

// LogLevel maps a configured level name to the task runtime's level.
func LogLevel(name string) asynq.LogLevel {
	switch name {
	case "debug":
		return asynq.DebugLevel
	case "warn", "warning":
		return asynq.WarnLevel
	case "error":
		return asynq.ErrorLevel
	default:
		return asynq.InfoLevel
	}
}
