package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/seantiz/brickrun/internal/model"
	"github.com/seantiz/brickrun/internal/payload"
	"github.com/seantiz/brickrun/internal/runner"
	"github.com/seantiz/brickrun/internal/track"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
	maxBodySize      = 1 << 20 // 1 MB
)

// submitRunRequest is the JSON body for POST /v1/runs. The json field and
// the named override fields mirror the operator's submission spec; named
// fields replace matching top-level keys of json wholesale.
type submitRunRequest struct {
	TaskID       string `json:"task_id"`
	ConnectionID string `json:"connection_id"`

	JSON              map[string]any `json:"json"`
	NewCluster        map[string]any `json:"new_cluster"`
	ExistingClusterID string         `json:"existing_cluster_id"`
	NotebookTask      map[string]any `json:"notebook_task"`
	SparkJarTask      map[string]any `json:"spark_jar_task"`
	SparkSubmitTask   map[string]any `json:"spark_submit_task"`
	RunName           string         `json:"run_name"`
	Libraries         []any          `json:"libraries"`
	TimeoutSeconds    int            `json:"timeout_seconds"`

	PollingPeriodS int               `json:"polling_period_seconds"`
	RetryLimit     int               `json:"retry_limit"`
	RenderContext  map[string]string `json:"render_context"`

	// Idempotent requests a generated idempotency token so resubmitting the
	// same payload cannot double-launch the run remotely.
	Idempotent bool `json:"idempotent"`
}

// listRunsResponse wraps the paginated list response.
type listRunsResponse struct {
	Runs   []*model.Execution `json:"runs"`
	Total  int                `json:"total"`
	Limit  int                `json:"limit"`
	Offset int                `json:"offset"`
}

func (s *Server) handleSubmitRun(w http.ResponseWriter, r *http.Request) {
	var req submitRunRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	dec := json.NewDecoder(r.Body)
	// Keep integers as json.Number inside the generic config mappings; a
	// float64 round-trip would coerce 1 to "1.0" on the wire.
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if req.TaskID == "" {
		s.writeError(w, http.StatusBadRequest, "task_id is required")
		return
	}

	spec := payload.Spec{
		Raw:               req.JSON,
		NewCluster:        req.NewCluster,
		ExistingClusterID: req.ExistingClusterID,
		NotebookTask:      req.NotebookTask,
		SparkJarTask:      req.SparkJarTask,
		SparkSubmitTask:   req.SparkSubmitTask,
		RunName:           req.RunName,
		Libraries:         req.Libraries,
		TimeoutSeconds:    req.TimeoutSeconds,
	}
	if req.Idempotent {
		spec.IdempotencyToken = payload.NewIdempotencyToken()
	}

	exec, err := s.runner.Submit(runner.Request{
		TaskID:        req.TaskID,
		ConnectionID:  req.ConnectionID,
		Spec:          spec,
		PollingPeriod: time.Duration(req.PollingPeriodS) * time.Second,
		RetryLimit:    req.RetryLimit,
		RenderContext: req.RenderContext,
	})
	if err != nil {
		var cfgErr *payload.ConfigurationError
		if errors.As(err, &cfgErr) {
			s.writeError(w, http.StatusBadRequest, cfgErr.Error())
			return
		}
		s.logger.Error("submit run", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to submit run")
		return
	}

	s.writeJSON(w, http.StatusAccepted, exec)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	exec, err := s.tracker.Get(id)
	if errors.Is(err, track.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		s.logger.Error("get run", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get run")
		return
	}

	s.writeJSON(w, http.StatusOK, exec)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := parseIntQuery(r, "limit", defaultListLimit)
	offset := parseIntQuery(r, "offset", 0)

	if limit <= 0 || limit > maxListLimit {
		limit = defaultListLimit
	}
	if offset < 0 {
		offset = 0
	}

	runs, total := s.tracker.List(limit, offset)
	if runs == nil {
		runs = []*model.Execution{}
	}

	s.writeJSON(w, http.StatusOK, listRunsResponse{
		Runs:   runs,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	})
}

func (s *Server) handleKillRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	err := s.runner.Kill(r.Context(), id)
	switch {
	case errors.Is(err, track.ErrNotFound):
		s.writeError(w, http.StatusNotFound, "run not found")
		return
	case errors.Is(err, runner.ErrNotRunning):
		s.writeError(w, http.StatusConflict, "run is not in flight")
		return
	case err != nil:
		s.logger.Error("kill run", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to cancel run")
		return
	}

	exec, err := s.tracker.Get(id)
	if err != nil {
		s.logger.Error("get killed run", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to retrieve run")
		return
	}

	s.writeJSON(w, http.StatusAccepted, exec)
}

// writeJSON writes a JSON response with the given status code.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encode response", "error", err)
	}
}

// writeError writes a JSON error response.
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

// parseIntQuery parses an integer query parameter with a default value.
func parseIntQuery(r *http.Request, key string, defaultVal int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return n
}
