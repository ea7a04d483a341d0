// mockbricks serves a stub of the Databricks Runs 2.0 API for local and E2E
// testing. Usage: go run ./cmd/mockbricks
//
// Runs progress PENDING -> RUNNING -> TERMINATED, advancing one step per
// state poll; MOCKBRICKS_POLLS sets how many polls a run spends in flight.
// A submission whose run_name starts with "fail-" terminates with FAILED,
// everything else with SUCCESS. Cancelled runs terminate with CANCELED.
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/seantiz/brickrun/internal/model"
)

type mockRun struct {
	runName  string
	polls    int
	canceled bool
}

type mockServer struct {
	logger *slog.Logger

	mu        sync.Mutex
	nextRunID int64
	runs      map[int64]*mockRun

	pollsInFlight int
}

func newMockServer(logger *slog.Logger, pollsInFlight int) *mockServer {
	return &mockServer{
		logger:        logger,
		nextRunID:     1,
		runs:          map[int64]*mockRun{},
		pollsInFlight: pollsInFlight,
	}
}

func (s *mockServer) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var payload map[string]any
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "malformed submission", http.StatusBadRequest)
		return
	}
	runName, _ := payload["run_name"].(string)

	s.mu.Lock()
	runID := s.nextRunID
	s.nextRunID++
	s.runs[runID] = &mockRun{runName: runName}
	s.mu.Unlock()

	s.logger.Info("run submitted", "run_id", runID, "run_name", runName)
	writeJSON(w, map[string]any{"run_id": runID})
}

func (s *mockServer) handleGet(w http.ResponseWriter, r *http.Request) {
	runID, err := strconv.ParseInt(r.URL.Query().Get("run_id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid run_id", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	run, ok := s.runs[runID]
	if ok {
		run.polls++
	}
	s.mu.Unlock()
	if !ok {
		http.Error(w, fmt.Sprintf("run %d does not exist", runID), http.StatusBadRequest)
		return
	}

	writeJSON(w, map[string]any{
		"run_id":       runID,
		"run_page_url": fmt.Sprintf("http://localhost/#job/0/run/%d", runID),
		"state":        s.stateOf(run),
	})
}

func (s *mockServer) stateOf(run *mockRun) model.RunState {
	s.mu.Lock()
	defer s.mu.Unlock()

	if run.canceled {
		return model.RunState{
			LifeCycleState: model.LifeCycleTerminated,
			ResultState:    model.ResultCanceled,
			StateMessage:   "Run cancelled by user",
		}
	}
	switch {
	case run.polls <= 1:
		return model.RunState{LifeCycleState: model.LifeCyclePending, StateMessage: "Waiting for cluster"}
	case run.polls <= s.pollsInFlight:
		return model.RunState{LifeCycleState: model.LifeCycleRunning, StateMessage: "In run"}
	}

	result := model.ResultSuccess
	if strings.HasPrefix(run.runName, "fail-") {
		result = model.ResultFailed
	}
	return model.RunState{
		LifeCycleState: model.LifeCycleTerminated,
		ResultState:    result,
	}
}

func (s *mockServer) handleCancel(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RunID int64 `json:"run_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "malformed cancellation", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	run, ok := s.runs[body.RunID]
	if ok {
		run.canceled = true
	}
	s.mu.Unlock()
	if !ok {
		http.Error(w, fmt.Sprintf("run %d does not exist", body.RunID), http.StatusBadRequest)
		return
	}

	s.logger.Info("run canceled", "run_id", body.RunID)
	writeJSON(w, map[string]any{})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func main() {
	addr := ":9090"
	if v := os.Getenv("MOCKBRICKS_LISTEN_ADDR"); v != "" {
		addr = v
	}
	pollsInFlight := 3
	if v := os.Getenv("MOCKBRICKS_POLLS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			pollsInFlight = n
		}
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	srv := newMockServer(logger, pollsInFlight)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Post("/api/2.0/jobs/runs/submit", srv.handleSubmit)
	r.Get("/api/2.0/jobs/runs/get", srv.handleGet)
	r.Post("/api/2.0/jobs/runs/cancel", srv.handleCancel)

	logger.Info("mockbricks: starting", "addr", addr, "polls_in_flight", pollsInFlight)
	if err := http.ListenAndServe(addr, r); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
