package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/rickgao/deribit-prices/internal/metrics"
)

// DayMillis is the length of a retention day in milliseconds.
const DayMillis = 86_400_000

// Cleaner removes observations older than a cutoff.
type Cleaner interface {
	DeleteOlderThan(ctx context.Context, cutoffMillis int64) (int64, error)
}

// CleanupSummary is the outcome of one retention run.
type CleanupSummary struct {
	Task         string `json:"task"`
	Status       string `json:"status"` // success or error
	DaysToKeep   int    `json:"days_to_keep"`
	DeletedCount int64  `json:"deleted_count"`
	Timestamp    int64  `json:"timestamp"`
	Error        string `json:"error,omitempty"`
}

// CleanupPipeline deletes observations past the retention horizon.
type CleanupPipeline struct {
	store       Cleaner
	defaultDays int
	logger      *slog.Logger
	now         func() time.Time
}

// NewCleanupPipeline creates a CleanupPipeline. defaultDays applies when
// Run is called with days <= 0.
func NewCleanupPipeline(store Cleaner, defaultDays int, logger *slog.Logger) *CleanupPipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if defaultDays <= 0 {
		defaultDays = 30
	}
	return &CleanupPipeline{
		store:       store,
		defaultDays: defaultDays,
		logger:      logger,
		now:         time.Now,
	}
}

// Run deletes every observation older than now - days. The delete is a
// single statement, so a failure leaves the store untouched. Failures are
// reported in the summary and not retried.
func (c *CleanupPipeline) Run(ctx context.Context, days int) CleanupSummary {
	if days <= 0 {
		days = c.defaultDays
	}
	now := c.now().UnixMilli()
	summary := CleanupSummary{
		Task:       "cleanup_old_prices",
		Status:     "success",
		DaysToKeep: days,
		Timestamp:  now,
	}

	cutoff := now - int64(days)*DayMillis
	deleted, err := c.store.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		summary.Status = "error"
		summary.Error = err.Error()
		c.logger.Error("cleanup of old prices failed",
			"days_to_keep", days,
			"error", err,
		)
		return summary
	}

	summary.DeletedCount = deleted
	metrics.CleanupDeleted.Add(float64(deleted))
	c.logger.Info("cleanup of old prices complete",
		"days_to_keep", days,
		"cutoff", cutoff,
		"deleted", deleted,
	)
	return summary
}
