package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/rickgao/deribit-prices/internal/model"
)

// Pagination bounds for List.
const (
	DefaultLimit = 100
	MaxLimit     = 1000
)

// ErrNotFound is returned when a lookup matches no rows.
var ErrNotFound = errors.New("not found")

// Querier is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// InsertResult is the outcome of one row in InsertEach.
type InsertResult struct {
	Observation *model.PriceObservation
	Err         error
}

// PriceStore reads and writes the prices table.
type PriceStore struct {
	db     Querier
	logger *slog.Logger
}

// New creates a PriceStore.
func New(db Querier, logger *slog.Logger) *PriceStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &PriceStore{db: db, logger: logger}
}

const selectColumns = `id, ticker, price::text, "timestamp", source_timestamp, created_at`

const insertSQL = `
	INSERT INTO prices (ticker, price, "timestamp", source_timestamp)
	VALUES ($1, $2::numeric, $3, $4)
	RETURNING ` + selectColumns

// Insert validates and stores one observation.
func (s *PriceStore) Insert(ctx context.Context, obs model.NewObservation) (*model.PriceObservation, error) {
	n, err := obs.Normalize()
	if err != nil {
		return nil, err
	}
	return insertRow(ctx, s.db, n)
}

// InsertEach stores every observation in one transaction. Each row runs in
// its own savepoint; a row that fails validation or insertion is reported
// in its InsertResult and does not affect the others. The returned error is
// set only when the transaction itself could not begin or commit, in which
// case nothing was stored.
func (s *PriceStore) InsertEach(ctx context.Context, obs []model.NewObservation) ([]InsertResult, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	results := make([]InsertResult, len(obs))
	for i, o := range obs {
		n, err := o.Normalize()
		if err != nil {
			results[i].Err = err
			continue
		}

		sp, err := tx.Begin(ctx)
		if err != nil {
			return nil, fmt.Errorf("begin savepoint: %w", err)
		}

		row, err := insertRow(ctx, sp, n)
		if err != nil {
			if rbErr := sp.Rollback(ctx); rbErr != nil {
				return nil, fmt.Errorf("rollback savepoint: %w", rbErr)
			}
			s.logger.Warn("price insert failed",
				"ticker", n.Ticker,
				"error", err,
			)
			results[i].Err = err
			continue
		}
		if err := sp.Commit(ctx); err != nil {
			return nil, fmt.Errorf("release savepoint: %w", err)
		}
		results[i].Observation = row
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return results, nil
}

func insertRow(ctx context.Context, db Querier, n model.NewObservation) (*model.PriceObservation, error) {
	row := db.QueryRow(ctx, insertSQL, n.Ticker, n.Price.String(), n.Timestamp, n.SourceTimestamp)
	p, err := scanObservation(row)
	if err != nil {
		return nil, fmt.Errorf("insert price: %w", err)
	}
	return &p, nil
}

// List returns a page of observations for ticker, newest first.
func (s *PriceStore) List(ctx context.Context, ticker string, offset, limit int) ([]model.PriceObservation, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+selectColumns+`
		FROM prices
		WHERE ticker = $1
		ORDER BY "timestamp" DESC, id DESC
		OFFSET $2 LIMIT $3
	`, model.NormalizeTicker(ticker), max(offset, 0), ClampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list prices: %w", err)
	}
	return collectObservations(rows)
}

// Latest returns the newest observation for ticker, or ErrNotFound.
func (s *PriceStore) Latest(ctx context.Context, ticker string) (*model.PriceObservation, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+selectColumns+`
		FROM prices
		WHERE ticker = $1
		ORDER BY "timestamp" DESC, id DESC
		LIMIT 1
	`, model.NormalizeTicker(ticker))

	p, err := scanObservation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("latest price: %w", err)
	}
	return &p, nil
}

// Range returns observations for ticker with start <= timestamp <= end,
// newest first. A nil bound is open on that side.
func (s *PriceStore) Range(ctx context.Context, ticker string, start, end *int64) ([]model.PriceObservation, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+selectColumns+`
		FROM prices
		WHERE ticker = $1
		  AND ($2::bigint IS NULL OR "timestamp" >= $2)
		  AND ($3::bigint IS NULL OR "timestamp" <= $3)
		ORDER BY "timestamp" DESC, id DESC
	`, model.NormalizeTicker(ticker), start, end)
	if err != nil {
		return nil, fmt.Errorf("range prices: %w", err)
	}
	return collectObservations(rows)
}

// Stats aggregates every observation for ticker.
func (s *PriceStore) Stats(ctx context.Context, ticker string) (*model.PriceStats, error) {
	ticker = model.NormalizeTicker(ticker)

	var (
		st                      = model.PriceStats{Ticker: ticker}
		minPrice, maxPrice, avg *string
	)
	err := s.db.QueryRow(ctx, `
		SELECT count(*), min(price)::text, max(price)::text, avg(price)::text,
		       min("timestamp"), max("timestamp")
		FROM prices
		WHERE ticker = $1
	`, ticker).Scan(&st.Count, &minPrice, &maxPrice, &avg, &st.FirstTimestamp, &st.LastTimestamp)
	if err != nil {
		return nil, fmt.Errorf("price stats: %w", err)
	}
	if st.Count == 0 {
		return &st, nil
	}

	if st.MinPrice, err = parseDecimal(minPrice); err != nil {
		return nil, err
	}
	if st.MaxPrice, err = parseDecimal(maxPrice); err != nil {
		return nil, err
	}
	if st.AvgPrice, err = parseDecimal(avg); err != nil {
		return nil, err
	}
	if st.AvgPrice != nil {
		rounded := st.AvgPrice.Round(model.PriceScale)
		st.AvgPrice = &rounded
	}
	return &st, nil
}

// Tickers returns every ticker with at least one row, ascending.
func (s *PriceStore) Tickers(ctx context.Context) ([]string, error) {
	rows, err := s.db.Query(ctx, `SELECT DISTINCT ticker FROM prices ORDER BY ticker`)
	if err != nil {
		return nil, fmt.Errorf("list tickers: %w", err)
	}
	tickers, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan tickers: %w", err)
	}
	return tickers, nil
}

// DeleteOlderThan removes every row with timestamp < cutoffMillis in a
// single statement and returns the number removed.
func (s *PriceStore) DeleteOlderThan(ctx context.Context, cutoffMillis int64) (int64, error) {
	ct, err := s.db.Exec(ctx, `DELETE FROM prices WHERE "timestamp" < $1`, cutoffMillis)
	if err != nil {
		return 0, fmt.Errorf("delete old prices: %w", err)
	}
	return ct.RowsAffected(), nil
}

// Ping runs a trivial query.
func (s *PriceStore) Ping(ctx context.Context) error {
	var one int
	if err := s.db.QueryRow(ctx, `SELECT 1`).Scan(&one); err != nil {
		return fmt.Errorf("ping store: %w", err)
	}
	return nil
}

// ClampLimit bounds a page size to 1..MaxLimit, using DefaultLimit for
// non-positive values.
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	default:
		return limit
	}
}

func scanObservation(row pgx.Row) (model.PriceObservation, error) {
	var (
		p     model.PriceObservation
		price string
	)
	if err := row.Scan(&p.ID, &p.Ticker, &price, &p.Timestamp, &p.SourceTimestamp, &p.CreatedAt); err != nil {
		return p, err
	}
	d, err := decimal.NewFromString(price)
	if err != nil {
		return p, fmt.Errorf("parse price %q: %w", price, err)
	}
	p.Price = d
	return p, nil
}

func collectObservations(rows pgx.Rows) ([]model.PriceObservation, error) {
	out, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (model.PriceObservation, error) {
		return scanObservation(r)
	})
	if err != nil {
		return nil, fmt.Errorf("scan prices: %w", err)
	}
	return out, nil
}

func parseDecimal(s *string) (*decimal.Decimal, error) {
	if s == nil {
		return nil, nil
	}
	d, err := decimal.NewFromString(*s)
	if err != nil {
		return nil, fmt.Errorf("parse decimal %q: %w", *s, err)
	}
	return &d, nil
}
