package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/rickgao/deribit-prices/internal/model"
	"github.com/rickgao/deribit-prices/internal/store"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// rpcHandler answers JSON-RPC requests with respond(method, params).
// respond returns either a result or an error envelope code/message.
func rpcHandler(respond func(method, symbol string) (result any, code int, msg string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     int64             `json:"id"`
			Method string            `json:"method"`
			Params map[string]string `json:"params"`
		}
		json.NewDecoder(r.Body).Decode(&req)

		result, code, msg := respond(req.Method, req.Params["index_name"])
		body := map[string]any{"jsonrpc": "2.0", "id": req.ID, "usOut": 1705321845123456}
		if code != 0 {
			body["error"] = map[string]any{"code": code, "message": msg}
		} else {
			body["result"] = result
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(body)
	}
}

// fakeWriter records InsertEach calls and fails the configured tickers.
type fakeWriter struct {
	mu      sync.Mutex
	calls   int
	got     []model.NewObservation
	failFor map[string]bool
	callErr error
}

func (f *fakeWriter) InsertEach(_ context.Context, obs []model.NewObservation) ([]store.InsertResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.got = append(f.got, obs...)
	if f.callErr != nil {
		return nil, f.callErr
	}

	results := make([]store.InsertResult, len(obs))
	for i, o := range obs {
		if f.failFor[o.Ticker] {
			results[i].Err = errors.New("insert " + o.Ticker + ": connection reset")
			continue
		}
		results[i].Observation = &model.PriceObservation{
			ID:              int64(i + 1),
			Ticker:          o.Ticker,
			Price:           o.Price,
			Timestamp:       o.Timestamp,
			SourceTimestamp: o.SourceTimestamp,
			CreatedAt:       time.Now(),
		}
	}
	return results, nil
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func noSleep(sleeps *int) func(context.Context, time.Duration) error {
	return func(ctx context.Context, _ time.Duration) error {
		*sleeps++
		return ctx.Err()
	}
}
