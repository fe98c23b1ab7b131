package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/rickgao/deribit-prices/internal/tasks"
)

func (s *server) triggerFetch(w http.ResponseWriter, r *http.Request) {
	sub, err := s.tasks.TriggerFetch(r.Context())
	if err != nil {
		s.internalError(w, r, "failed to enqueue fetch", err)
		return
	}
	writeJSON(w, http.StatusAccepted, sub)
}

func (s *server) triggerCleanup(w http.ResponseWriter, r *http.Request) {
	days := 0
	if raw := r.URL.Query().Get("days"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			writeError(w, http.StatusUnprocessableEntity, `query parameter "days" must be a positive integer`)
			return
		}
		days = v
	}

	sub, err := s.tasks.TriggerCleanup(r.Context(), days)
	if err != nil {
		s.internalError(w, r, "failed to enqueue cleanup", err)
		return
	}
	writeJSON(w, http.StatusAccepted, sub)
}

func (s *server) taskStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	st, err := s.tasks.Status(r.Context(), id)
	if errors.Is(err, tasks.ErrUnknownTask) {
		writeError(w, http.StatusNotFound, fmt.Sprintf("task %q not found", id))
		return
	}
	if err != nil {
		s.internalError(w, r, "failed to get task status", err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

type healthSnapshot struct {
	TaskID string `json:"task_id"`
	Status string `json:"status"`
	Result any    `json:"result"`
	Error  string `json:"error,omitempty"`
}

func (s *server) healthSnapshot(w http.ResponseWriter, r *http.Request) {
	st, err := s.tasks.RunHealth(r.Context(), s.healthWait)
	if errors.Is(err, tasks.ErrWaitTimeout) {
		s.logger.Warn("health check timed out", "task_id", st.TaskID, "wait", s.healthWait)
		writeError(w, http.StatusGatewayTimeout, fmt.Sprintf("health check %s did not finish within %s", st.TaskID, s.healthWait))
		return
	}
	if err != nil {
		s.internalError(w, r, "failed to run health check", err)
		return
	}

	snap := healthSnapshot{TaskID: st.TaskID, Status: st.Status, Error: st.Error}
	if st.Result != nil {
		snap.Result = st.Result
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *server) queues(w http.ResponseWriter, r *http.Request) {
	report, err := s.tasks.QueueInfo(r.Context())
	if err != nil {
		s.internalError(w, r, "failed to inspect queues", err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
