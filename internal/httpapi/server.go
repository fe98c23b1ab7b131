package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/rickgao/deribit-prices/internal/metrics"
	"github.com/rickgao/deribit-prices/internal/model"
	"github.com/rickgao/deribit-prices/internal/tasks"
)

// PriceReader is the store as seen by the query API.
type PriceReader interface {
	List(ctx context.Context, ticker string, offset, limit int) ([]model.PriceObservation, error)
	Latest(ctx context.Context, ticker string) (*model.PriceObservation, error)
	Range(ctx context.Context, ticker string, start, end *int64) ([]model.PriceObservation, error)
	Stats(ctx context.Context, ticker string) (*model.PriceStats, error)
	Tickers(ctx context.Context) ([]string, error)
	Insert(ctx context.Context, obs model.NewObservation) (*model.PriceObservation, error)
}

// TaskControl triggers and inspects background tasks.
type TaskControl interface {
	TriggerFetch(ctx context.Context) (tasks.Submitted, error)
	TriggerCleanup(ctx context.Context, days int) (tasks.Submitted, error)
	Status(ctx context.Context, id string) (tasks.TaskStatus, error)
	RunHealth(ctx context.Context, wait time.Duration) (tasks.TaskStatus, error)
	QueueInfo(ctx context.Context) (tasks.QueueReport, error)
}

// ServiceInfo is reported by the root route.
type ServiceInfo struct {
	Name        string
	Version     string
	Environment string
}

// Deps are the router's collaborators.
type Deps struct {
	Prices      PriceReader
	Tasks       TaskControl
	Info        ServiceInfo
	HealthWait  time.Duration
	MetricsPath string
	Logger      *slog.Logger
}

type server struct {
	prices     PriceReader
	tasks      TaskControl
	info       ServiceInfo
	healthWait time.Duration
	logger     *slog.Logger
}

// NewRouter builds the HTTP handler.
func NewRouter(d Deps) http.Handler {
	s := &server{
		prices:     d.Prices,
		tasks:      d.Tasks,
		info:       d.Info,
		healthWait: d.HealthWait,
		logger:     d.Logger,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.healthWait <= 0 {
		s.healthWait = 10 * time.Second
	}
	metricsPath := d.MetricsPath
	if metricsPath == "" {
		metricsPath = "/metrics"
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.instrument)
	r.Use(s.recoverer)

	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleLiveness)
	r.Method(http.MethodGet, metricsPath, metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Route("/prices", func(r chi.Router) {
			r.Get("/", s.listPrices)
			r.Post("/", s.createPrice)
			r.Get("/latest", s.latestPrice)
			r.Get("/filter", s.filterPrices)
			r.Get("/stats", s.priceStats)
			r.Get("/available-tickers", s.availableTickers)
		})

		r.Post("/trigger-fetch-prices", s.triggerFetch)
		r.Post("/trigger-cleanup", s.triggerCleanup)
		r.Get("/tasks/{id}", s.taskStatus)
		r.Get("/health", s.healthSnapshot)
		r.Get("/queues", s.queues)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	return r
}

func (s *server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message":     s.info.Name + " API",
		"version":     s.info.Version,
		"environment": s.info.Environment,
	})
}

func (s *server) handleLiveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": s.info.Name,
	})
}

// recoverer turns a handler panic into a 500 without exposing the stack.
func (s *server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			s.logger.Error("handler panic",
				"method", r.Method,
				"path", r.URL.Path,
				"request_id", middleware.GetReqID(r.Context()),
				"panic", fmt.Sprint(rec),
			)
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("internal error: %v", rec))
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = "unmatched"
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		elapsed := time.Since(start)

		metrics.HTTPRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
		metrics.HTTPDuration.WithLabelValues(route).Observe(elapsed.Seconds())

		s.logger.Debug("http request",
			"method", r.Method,
			"route", route,
			"status", status,
			"duration", elapsed,
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

type errorBody struct {
	Detail string `json:"detail"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorBody{Detail: detail})
}
