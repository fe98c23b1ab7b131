package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rickgao/deribit-prices/internal/deribit"
	"github.com/rickgao/deribit-prices/internal/metrics"
)

// Health verdicts.
const (
	HealthHealthy   = "healthy"
	HealthUnhealthy = "unhealthy"
	HealthError     = "error"
)

// Component names reported by the health pipeline.
const (
	ComponentExchange = "deribit_api"
	ComponentDatabase = "database"
	ComponentRedis    = "redis"
)

// Pinger checks that a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingerFunc is a function adapter for Pinger.
type PingerFunc func(ctx context.Context) error

func (f PingerFunc) Ping(ctx context.Context) error {
	return f(ctx)
}

// CheckResult is one component's health.
type CheckResult struct {
	Available bool   `json:"available"`
	Status    string `json:"status"` // ok or error
	Error     string `json:"error,omitempty"`
	LatencyMS int64  `json:"latency_ms"`
}

// HealthReport is the composite verdict of one health run.
type HealthReport struct {
	TaskID    string                 `json:"task_id"`
	Timestamp int64                  `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks"`
	Status    string                 `json:"status"`
	Error     string                 `json:"error,omitempty"`
}

// HealthPipeline checks the exchange, the store and the broker.
type HealthPipeline struct {
	client  *deribit.Client
	db      Pinger
	broker  Pinger
	timeout time.Duration
	logger  *slog.Logger
}

// NewHealthPipeline creates a HealthPipeline. timeout bounds each check.
func NewHealthPipeline(client *deribit.Client, db, broker Pinger, timeout time.Duration, logger *slog.Logger) *HealthPipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HealthPipeline{
		client:  client,
		db:      db,
		broker:  broker,
		timeout: timeout,
		logger:  logger,
	}
}

// Run checks every component concurrently. A panic in one check is
// recovered and does not stop the others.
func (h *HealthPipeline) Run(ctx context.Context, runID string) HealthReport {
	report := HealthReport{
		TaskID:    runID,
		Timestamp: time.Now().UnixMilli(),
		Checks:    make(map[string]CheckResult, 3),
	}

	checks := map[string]func(context.Context) error{
		ComponentExchange: h.checkExchange,
		ComponentDatabase: pingCheck(h.db),
		ComponentRedis:    pingCheck(h.broker),
	}

	var (
		mu     sync.Mutex
		panics []error
	)
	g, gctx := errgroup.WithContext(ctx)
	for name, check := range checks {
		g.Go(func() error {
			result, panicErr := h.runCheck(gctx, name, check)

			mu.Lock()
			defer mu.Unlock()
			report.Checks[name] = result
			if panicErr != nil {
				panics = append(panics, panicErr)
			}
			return nil
		})
	}
	_ = g.Wait()

	report.Status = HealthHealthy
	for _, c := range report.Checks {
		if !c.Available {
			report.Status = HealthUnhealthy
		}
	}
	if len(panics) > 0 {
		report.Status = HealthError
		report.Error = errors.Join(panics...).Error()
	}

	h.logger.Info("health check complete",
		"task_id", runID,
		"status", report.Status,
	)
	return report
}

// runCheck runs one check with a timeout and converts a panic into an
// error result.
func (h *HealthPipeline) runCheck(ctx context.Context, name string, check func(context.Context) error) (result CheckResult, panicErr error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			panicErr = fmt.Errorf("%s check panicked: %v", name, r)
			result = CheckResult{Status: "error", Error: panicErr.Error()}
			h.logger.Error("health check panicked", "component", name, "panic", r)
		}
		result.LatencyMS = time.Since(start).Milliseconds()
		metrics.HealthStatus.WithLabelValues(name).Set(metrics.BoolGauge(result.Available))
		metrics.HealthLatency.WithLabelValues(name).Observe(time.Since(start).Seconds())
	}()

	cctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	if err := check(cctx); err != nil {
		h.logger.Warn("health check failed", "component", name, "error", err)
		return CheckResult{Status: "error", Error: err.Error()}, nil
	}
	return CheckResult{Available: true, Status: "ok"}, nil
}

func (h *HealthPipeline) checkExchange(ctx context.Context) error {
	if h.client == nil {
		return errors.New("not configured")
	}
	session := h.client.Open()
	defer session.Close()

	if session.CheckReachable(ctx) {
		return nil
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return errors.New("API timeout")
	}
	return errors.New("API unreachable")
}

func pingCheck(p Pinger) func(context.Context) error {
	return func(ctx context.Context) error {
		if p == nil {
			return errors.New("not configured")
		}
		return p.Ping(ctx)
	}
}
