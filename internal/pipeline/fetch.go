package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rickgao/deribit-prices/internal/deribit"
	"github.com/rickgao/deribit-prices/internal/metrics"
	"github.com/rickgao/deribit-prices/internal/model"
	"github.com/rickgao/deribit-prices/internal/store"
)

// Outcome classifies a fetch run.
type Outcome string

const (
	OutcomeSuccess         Outcome = "success"
	OutcomePartialSuccess  Outcome = "partial_success"
	OutcomeError           Outcome = "error"
	OutcomeNoData          Outcome = "no_data"
	OutcomeAPIError        Outcome = "api_error"
	OutcomeConnectionError Outcome = "connection_error"
)

// PriceWriter persists a run's observations.
type PriceWriter interface {
	InsertEach(ctx context.Context, obs []model.NewObservation) ([]store.InsertResult, error)
}

// FetchConfig holds fetch pipeline settings.
type FetchConfig struct {
	Symbols    []string      // Index names to fetch (default: btc_usd, eth_usd)
	Attempts   int           // Whole-batch attempts on API/connection errors (default: 3)
	RetryDelay time.Duration // Fixed delay between batch attempts (default: 100ms)
}

// DefaultFetchConfig returns sensible defaults.
func DefaultFetchConfig() FetchConfig {
	return FetchConfig{
		Symbols:    append([]string(nil), deribit.Symbols...),
		Attempts:   3,
		RetryDelay: 100 * time.Millisecond,
	}
}

func (c FetchConfig) withDefaults() FetchConfig {
	defaults := DefaultFetchConfig()
	c.Symbols = uniqueSymbols(c.Symbols)
	if len(c.Symbols) == 0 {
		c.Symbols = defaults.Symbols
	}
	if c.Attempts < 1 {
		c.Attempts = defaults.Attempts
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = defaults.RetryDelay
	}
	return c
}

// PriceDetail is the per-ticker entry of a FetchSummary.
type PriceDetail struct {
	Price     decimal.Decimal `json:"price"`
	Timestamp int64           `json:"timestamp"`
}

// FetchSummary is the machine-readable outcome of one fetch run.
type FetchSummary struct {
	TaskID        string                 `json:"task_id"`
	Status        Outcome                `json:"status"`
	PricesFetched int                    `json:"prices_fetched"`
	PricesSaved   int                    `json:"prices_saved"`
	Details       map[string]PriceDetail `json:"details"`
	Errors        []string               `json:"errors"`
	Timestamp     int64                  `json:"timestamp"` // run's logical time, ms
}

// FetchPipeline turns a live price snapshot into stored observations.
type FetchPipeline struct {
	cfg    FetchConfig
	client *deribit.Client
	store  PriceWriter
	logger *slog.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewFetchPipeline creates a FetchPipeline.
func NewFetchPipeline(cfg FetchConfig, client *deribit.Client, store PriceWriter, logger *slog.Logger) *FetchPipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &FetchPipeline{
		cfg:    cfg.withDefaults(),
		client: client,
		store:  store,
		logger: logger,
		now:    time.Now,
		sleep:  deribit.SleepContext,
	}
}

// Run performs one fetch-and-store cycle.
func (p *FetchPipeline) Run(ctx context.Context, runID string) FetchSummary {
	start := p.now()
	summary := FetchSummary{
		TaskID:    runID,
		Details:   map[string]PriceDetail{},
		Errors:    []string{},
		Timestamp: start.UnixMilli(),
	}
	defer func() {
		metrics.FetchRuns.WithLabelValues(string(summary.Status)).Inc()
		p.logger.Info("fetch run complete",
			"task_id", runID,
			"status", summary.Status,
			"fetched", summary.PricesFetched,
			"saved", summary.PricesSaved,
			"errors", len(summary.Errors),
			"duration", time.Since(start),
		)
	}()

	session := p.client.Open()
	defer session.Close()

	results, err := p.fetchWithRetry(ctx, session)
	if err != nil {
		summary.Status, summary.Errors = classifyFetchError(err)
		return summary
	}

	obs := p.normalize(results, summary.Timestamp, &summary)
	summary.PricesFetched = len(obs)
	metrics.PricesFetched.Add(float64(len(obs)))
	if len(obs) == 0 {
		summary.Status = OutcomeNoData
		p.logger.Warn("no price data received", "task_id", runID)
		return summary
	}

	inserted, err := p.store.InsertEach(ctx, obs)
	if err != nil {
		summary.Errors = append(summary.Errors, fmt.Sprintf("save prices: %v", err))
	}
	for _, r := range inserted {
		if r.Err != nil {
			summary.Errors = append(summary.Errors, fmt.Sprintf("save price: %v", r.Err))
			continue
		}
		summary.PricesSaved++
		price, _ := r.Observation.Price.Float64()
		metrics.LastPrice.WithLabelValues(r.Observation.Ticker).Set(price)
	}
	metrics.PricesSaved.Add(float64(summary.PricesSaved))

	summary.Status = classifySaved(summary.PricesFetched, summary.PricesSaved)
	return summary
}

// fetchWithRetry retries the whole batch on API and connection errors. The
// client already retries each call; this layer covers a fully exhausted
// inner retry.
func (p *FetchPipeline) fetchWithRetry(ctx context.Context, session *deribit.Session) (map[string]deribit.Result, error) {
	var lastErr error
	for attempt := 1; attempt <= p.cfg.Attempts; attempt++ {
		results, err := session.FetchMultiple(ctx, p.cfg.Symbols)
		if err == nil {
			return results, nil
		}
		if !retryableFetchError(err) {
			return nil, err
		}
		lastErr = err

		p.logger.Warn("price fetch attempt failed",
			"attempt", attempt,
			"max_attempts", p.cfg.Attempts,
			"error", err,
		)
		if attempt < p.cfg.Attempts {
			if err := p.sleep(ctx, p.cfg.RetryDelay); err != nil {
				return nil, &deribit.ConnectionError{Attempts: attempt, Err: err}
			}
		}
	}
	return nil, lastErr
}

// normalize keeps symbols with a price and stamps them with the run's
// logical time.
func (p *FetchPipeline) normalize(results map[string]deribit.Result, ts int64, summary *FetchSummary) []model.NewObservation {
	var obs []model.NewObservation
	for _, symbol := range p.cfg.Symbols {
		r, ok := results[symbol]
		if !ok {
			continue
		}
		if r.Err != nil {
			summary.Errors = append(summary.Errors, fmt.Sprintf("%s: %v", symbol, r.Err))
			continue
		}
		if r.Price == nil || r.Price.IndexPrice == nil {
			p.logger.Warn("index price missing from response", "symbol", symbol)
			continue
		}

		price := decimal.NewFromFloat(*r.Price.IndexPrice).Round(model.PriceScale)
		source := r.Price.ServerTimeMicros
		if source <= 0 {
			source = p.now().UnixMicro()
		}

		obs = append(obs, model.NewObservation{
			Ticker:          model.NormalizeTicker(symbol),
			Price:           price,
			Timestamp:       ts,
			SourceTimestamp: &source,
		})
		summary.Details[model.NormalizeTicker(symbol)] = PriceDetail{Price: price, Timestamp: ts}
	}
	return obs
}

// uniqueSymbols returns symbols lowercased with repeats dropped, keeping
// first-seen order.
func uniqueSymbols(symbols []string) []string {
	seen := make(map[string]bool, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		s = model.NormalizeTicker(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

func retryableFetchError(err error) bool {
	var apiErr *deribit.APIError
	var connErr *deribit.ConnectionError
	return errors.As(err, &apiErr) || errors.As(err, &connErr)
}

func classifyFetchError(err error) (Outcome, []string) {
	var apiErr *deribit.APIError
	var connErr *deribit.ConnectionError
	switch {
	case errors.As(err, &apiErr):
		return OutcomeAPIError, []string{fmt.Sprintf("api error: %v", err)}
	case errors.As(err, &connErr):
		return OutcomeConnectionError, []string{fmt.Sprintf("connection error: %v", err)}
	default:
		return OutcomeError, []string{fmt.Sprintf("unexpected error: %v", err)}
	}
}

func classifySaved(fetched, saved int) Outcome {
	switch {
	case fetched == 0:
		return OutcomeNoData
	case saved == fetched:
		return OutcomeSuccess
	case saved > 0:
		return OutcomePartialSuccess
	default:
		return OutcomeError
	}
}
