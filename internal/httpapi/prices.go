package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"

	"github.com/rickgao/deribit-prices/internal/model"
	"github.com/rickgao/deribit-prices/internal/store"
)

const minTickerLength = 3

// paramError is a malformed query parameter.
type paramError struct {
	name string
	msg  string
}

func (e *paramError) Error() string {
	return fmt.Sprintf("query parameter %q %s", e.name, e.msg)
}

func tickerParam(q url.Values) (string, error) {
	ticker := model.NormalizeTicker(q.Get("ticker"))
	if ticker == "" {
		return "", &paramError{name: "ticker", msg: "is required"}
	}
	if len(ticker) < minTickerLength {
		return "", &paramError{name: "ticker", msg: fmt.Sprintf("must be at least %d characters", minTickerLength)}
	}
	return ticker, nil
}

// intParam parses name, returning def when absent. The value must lie in
// [lo, hi].
func intParam(q url.Values, name string, def, lo, hi int) (int, error) {
	raw := q.Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &paramError{name: name, msg: "must be an integer"}
	}
	if v < lo || v > hi {
		return 0, &paramError{name: name, msg: fmt.Sprintf("must be between %d and %d", lo, hi)}
	}
	return v, nil
}

// millisParam parses an optional non-negative millisecond timestamp.
func millisParam(q url.Values, name string) (*int64, error) {
	raw := q.Get(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, &paramError{name: name, msg: "must be an integer timestamp in milliseconds"}
	}
	if v < 0 {
		return nil, &paramError{name: name, msg: "must be >= 0"}
	}
	return &v, nil
}

func (s *server) listPrices(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ticker, err := tickerParam(q)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	skip, err := intParam(q, "skip", 0, 0, math.MaxInt32)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	limit, err := intParam(q, "limit", store.DefaultLimit, 1, store.MaxLimit)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	prices, err := s.prices.List(r.Context(), ticker, skip, limit)
	if err != nil {
		s.internalError(w, r, "failed to list prices", err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(prices))
}

func (s *server) latestPrice(w http.ResponseWriter, r *http.Request) {
	ticker, err := tickerParam(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	p, err := s.prices.Latest(r.Context(), ticker)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, fmt.Sprintf("no prices found for ticker %q", ticker))
		return
	}
	if err != nil {
		s.internalError(w, r, "failed to get latest price", err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *server) filterPrices(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ticker, err := tickerParam(q)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	start, err := millisParam(q, "start")
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	end, err := millisParam(q, "end")
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if start != nil && end != nil && *start > *end {
		writeError(w, http.StatusBadRequest, "start must not be after end")
		return
	}

	prices, err := s.prices.Range(r.Context(), ticker, start, end)
	if err != nil {
		s.internalError(w, r, "failed to filter prices", err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(prices))
}

func (s *server) priceStats(w http.ResponseWriter, r *http.Request) {
	ticker, err := tickerParam(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	stats, err := s.prices.Stats(r.Context(), ticker)
	if err != nil {
		s.internalError(w, r, "failed to get price stats", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *server) availableTickers(w http.ResponseWriter, r *http.Request) {
	tickers, err := s.prices.Tickers(r.Context())
	if err != nil {
		s.internalError(w, r, "failed to list tickers", err)
		return
	}
	if tickers == nil {
		tickers = []string{}
	}
	writeJSON(w, http.StatusOK, tickers)
}

func (s *server) createPrice(w http.ResponseWriter, r *http.Request) {
	var in model.ObservationInput
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&in); err != nil {
		writeError(w, http.StatusUnprocessableEntity, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	var verr *model.ValidationError
	obs, err := in.Observation()
	if errors.As(err, &verr) {
		writeError(w, http.StatusUnprocessableEntity, verr.Error())
		return
	}

	p, err := s.prices.Insert(r.Context(), obs)
	if errors.As(err, &verr) {
		writeError(w, http.StatusUnprocessableEntity, verr.Error())
		return
	}
	if err != nil {
		s.internalError(w, r, "failed to create price", err)
		return
	}
	s.logger.Info("price created", "id", p.ID, "ticker", p.Ticker)
	writeJSON(w, http.StatusCreated, p)
}

func (s *server) internalError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	s.logger.Error(msg, "path", r.URL.Path, "error", err)
	writeError(w, http.StatusInternalServerError, fmt.Sprintf("%s: %v", msg, err))
}

func nonNil(p []model.PriceObservation) []model.PriceObservation {
	if p == nil {
		return []model.PriceObservation{}
	}
	return p
}
