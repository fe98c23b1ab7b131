package store

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/rickgao/deribit-prices/internal/model"
)

type fakeRow struct {
	scan func(dest ...any) error
}

func (r fakeRow) Scan(dest ...any) error { return r.scan(dest...) }

// fakeDB records calls. Methods that a test does not configure fail.
type fakeDB struct {
	calls    int
	lastSQL  string
	lastArgs []any

	execTag  pgconn.CommandTag
	execErr  error
	row      pgx.Row
	beginErr error
}

func (f *fakeDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.calls++
	f.lastSQL, f.lastArgs = sql, args
	return f.execTag, f.execErr
}

func (f *fakeDB) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	f.calls++
	f.lastSQL, f.lastArgs = sql, args
	return nil, errors.New("query not configured")
}

func (f *fakeDB) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	f.calls++
	f.lastSQL, f.lastArgs = sql, args
	if f.row == nil {
		return fakeRow{scan: func(...any) error { return errors.New("row not configured") }}
	}
	return f.row
}

func (f *fakeDB) Begin(context.Context) (pgx.Tx, error) {
	f.calls++
	if f.beginErr != nil {
		return nil, f.beginErr
	}
	return nil, errors.New("begin not configured")
}

func TestClampLimit(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{-5, DefaultLimit},
		{0, DefaultLimit},
		{1, 1},
		{250, 250},
		{1000, 1000},
		{1001, MaxLimit},
	}
	for _, tt := range tests {
		if got := ClampLimit(tt.in); got != tt.want {
			t.Errorf("ClampLimit(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestInsertValidatesBeforeDatabase(t *testing.T) {
	db := &fakeDB{}
	s := New(db, nil)

	_, err := s.Insert(context.Background(), model.NewObservation{
		Ticker: "ada_usd",
		Price:  decimal.NewFromInt(1),
	})
	var ve *model.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("error = %v, want *model.ValidationError", err)
	}
	if db.calls != 0 {
		t.Errorf("database calls = %d, want 0", db.calls)
	}
}

func TestInsertNormalizesArguments(t *testing.T) {
	db := &fakeDB{row: fakeRow{scan: func(dest ...any) error {
		*dest[0].(*int64) = 9
		*dest[1].(*string) = "btc_usd"
		*dest[2].(*string) = "43210.12345679"
		*dest[3].(*int64) = 1705321845000
		return nil
	}}}
	s := New(db, nil)

	p, err := s.Insert(context.Background(), model.NewObservation{
		Ticker:    "BTC_USD",
		Price:     decimal.RequireFromString("43210.123456789"),
		Timestamp: 1705321845000,
	})
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if db.lastArgs[0] != "btc_usd" {
		t.Errorf("ticker arg = %v, want btc_usd", db.lastArgs[0])
	}
	if db.lastArgs[1] != "43210.12345679" {
		t.Errorf("price arg = %v, want 43210.12345679", db.lastArgs[1])
	}
	if p.ID != 9 || !p.Price.Equal(decimal.RequireFromString("43210.12345679")) {
		t.Errorf("Insert() = %+v", p)
	}
}

func TestInsertEachBeginFailure(t *testing.T) {
	db := &fakeDB{beginErr: errors.New("pool closed")}
	s := New(db, nil)

	results, err := s.InsertEach(context.Background(), []model.NewObservation{
		{Ticker: "btc_usd", Price: decimal.NewFromInt(1)},
	})
	if err == nil || !strings.Contains(err.Error(), "begin transaction") {
		t.Fatalf("error = %v, want begin transaction failure", err)
	}
	if results != nil {
		t.Errorf("results = %v, want nil", results)
	}
}

func TestLatestNotFound(t *testing.T) {
	db := &fakeDB{row: fakeRow{scan: func(...any) error { return pgx.ErrNoRows }}}
	s := New(db, nil)

	_, err := s.Latest(context.Background(), "ETH_USD")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
	if db.lastArgs[0] != "eth_usd" {
		t.Errorf("ticker arg = %v, want eth_usd", db.lastArgs[0])
	}
}

func TestStatsEmpty(t *testing.T) {
	db := &fakeDB{row: fakeRow{scan: func(dest ...any) error {
		*dest[0].(*int64) = 0
		return nil
	}}}
	s := New(db, nil)

	st, err := s.Stats(context.Background(), "btc_usd")
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if st.Count != 0 || st.MinPrice != nil || st.MaxPrice != nil || st.AvgPrice != nil ||
		st.FirstTimestamp != nil || st.LastTimestamp != nil {
		t.Errorf("Stats() = %+v, want count 0 and nil fields", st)
	}
	if st.Ticker != "btc_usd" {
		t.Errorf("Ticker = %q, want btc_usd", st.Ticker)
	}
}

func TestStatsRoundsAverage(t *testing.T) {
	lo, hi, avg := "100.00000000", "200.00000000", "133.33333333333333333333"
	first, last := int64(1000), int64(3000)
	db := &fakeDB{row: fakeRow{scan: func(dest ...any) error {
		*dest[0].(*int64) = 3
		*dest[1].(**string) = &lo
		*dest[2].(**string) = &hi
		*dest[3].(**string) = &avg
		*dest[4].(**int64) = &first
		*dest[5].(**int64) = &last
		return nil
	}}}
	s := New(db, nil)

	st, err := s.Stats(context.Background(), "btc_usd")
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if !st.AvgPrice.Equal(decimal.RequireFromString("133.33333333")) {
		t.Errorf("AvgPrice = %s, want 133.33333333", st.AvgPrice)
	}
	if !st.MinPrice.Equal(decimal.NewFromInt(100)) || !st.MaxPrice.Equal(decimal.NewFromInt(200)) {
		t.Errorf("Min/Max = %s/%s, want 100/200", st.MinPrice, st.MaxPrice)
	}
	if *st.FirstTimestamp != 1000 || *st.LastTimestamp != 3000 {
		t.Errorf("timestamps = %d..%d, want 1000..3000", *st.FirstTimestamp, *st.LastTimestamp)
	}
}

func TestDeleteOlderThan(t *testing.T) {
	db := &fakeDB{execTag: pgconn.NewCommandTag("DELETE 3")}
	s := New(db, nil)

	n, err := s.DeleteOlderThan(context.Background(), 1705321845000)
	if err != nil {
		t.Fatalf("DeleteOlderThan failed: %v", err)
	}
	if n != 3 {
		t.Errorf("deleted = %d, want 3", n)
	}
	if db.lastArgs[0] != int64(1705321845000) {
		t.Errorf("cutoff arg = %v, want 1705321845000", db.lastArgs[0])
	}
}

func TestPing(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		db := &fakeDB{row: fakeRow{scan: func(dest ...any) error {
			*dest[0].(*int) = 1
			return nil
		}}}
		if err := New(db, nil).Ping(context.Background()); err != nil {
			t.Errorf("Ping failed: %v", err)
		}
		if db.lastSQL != "SELECT 1" {
			t.Errorf("sql = %q, want SELECT 1", db.lastSQL)
		}
	})

	t.Run("error", func(t *testing.T) {
		db := &fakeDB{row: fakeRow{scan: func(...any) error { return errors.New("connection reset") }}}
		err := New(db, nil).Ping(context.Background())
		if err == nil || !strings.Contains(err.Error(), "connection reset") {
			t.Errorf("Ping() error = %v, want connection reset", err)
		}
	})
}
