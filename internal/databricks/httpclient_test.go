package databricks

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/seantiz/brickrun/internal/model"
)

func newTestClient(t *testing.T, handler http.Handler, retryLimit int) *HTTPClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewHTTPClient(Connection{Host: srv.URL, Token: "test-token"}, retryLimit)
}

func TestSubmitRun(t *testing.T) {
	var gotAuth string
	var gotBody map[string]any

	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/2.0/jobs/runs/submit" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request body: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{"run_id": 1})
	}), 1)

	runID, err := c.Submit(context.Background(), map[string]any{"run_name": "nightly"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if runID != "1" {
		t.Errorf("run id = %q, want %q", runID, "1")
	}
	if gotAuth != "Bearer test-token" {
		t.Errorf("Authorization = %q, want bearer token", gotAuth)
	}
	if gotBody["run_name"] != "nightly" {
		t.Errorf("submitted run_name = %v, want %q", gotBody["run_name"], "nightly")
	}
}

func TestGetRunState(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/2.0/jobs/runs/get" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("run_id"); got != "42" {
			t.Errorf("run_id query = %q, want %q", got, "42")
		}
		json.NewEncoder(w).Encode(map[string]any{
			"state": map[string]any{
				"life_cycle_state": "TERMINATED",
				"result_state":     "SUCCESS",
				"state_message":    "",
			},
			"run_page_url": "https://workspace/#job/1/run/42",
		})
	}), 1)

	state, err := c.GetRunState(context.Background(), "42")
	if err != nil {
		t.Fatalf("GetRunState: %v", err)
	}
	want := model.RunState{LifeCycleState: "TERMINATED", ResultState: "SUCCESS"}
	if state != want {
		t.Errorf("state = %+v, want %+v", state, want)
	}
}

func TestGetRunPageURL(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"state":        map[string]any{"life_cycle_state": "RUNNING"},
			"run_page_url": "https://workspace/#job/1/run/42",
		})
	}), 1)

	url, err := c.GetRunPageURL(context.Background(), "42")
	if err != nil {
		t.Fatalf("GetRunPageURL: %v", err)
	}
	if url != "https://workspace/#job/1/run/42" {
		t.Errorf("url = %q", url)
	}
}

func TestCancelRun(t *testing.T) {
	var gotBody map[string]any
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/2.0/jobs/runs/cancel" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}), 1)

	if err := c.CancelRun(context.Background(), "42"); err != nil {
		t.Fatalf("CancelRun: %v", err)
	}
	// JSON numbers decode to float64.
	if gotBody["run_id"] != float64(42) {
		t.Errorf("cancel body run_id = %v, want 42", gotBody["run_id"])
	}
}

func TestCancelRunInvalidID(t *testing.T) {
	c := NewHTTPClient(Connection{Host: "http://unreachable.invalid"}, 1)
	if err := c.CancelRun(context.Background(), "not-a-number"); err == nil {
		t.Error("CancelRun accepted a non-numeric run id")
	}
}

func TestRetryOnServerError(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "temporarily unavailable", http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"run_id": 7})
	}), 3)

	runID, err := c.Submit(context.Background(), map[string]any{"run_name": "retry"})
	if err != nil {
		t.Fatalf("Submit after retries: %v", err)
	}
	if runID != "7" {
		t.Errorf("run id = %q, want %q", runID, "7")
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("attempts = %d, want 3", got)
	}
}

func TestRetryExhausted(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, "boom", http.StatusInternalServerError)
	}), 2)

	_, err := c.Submit(context.Background(), map[string]any{"run_name": "doomed"})
	if err == nil {
		t.Fatal("Submit succeeded against a permanently failing server")
	}
	if !strings.Contains(err.Error(), "after 2 attempts") {
		t.Errorf("error %q does not report attempt count", err)
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("attempts = %d, want 2 (bounded by retry limit)", got)
	}
}

func TestClientErrorIsPermanent(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, "invalid payload", http.StatusBadRequest)
	}), 3)

	_, err := c.Submit(context.Background(), map[string]any{"run_name": "bad"})
	if err == nil {
		t.Fatal("Submit succeeded on a 400 response")
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("attempts = %d, want 1 (no retry on 4xx)", got)
	}
}

func TestRegistryConstruct(t *testing.T) {
	reg := NewRegistry()
	reg.Register(DefaultConnectionID, Connection{Host: "https://workspace.example.com", Token: "t"})

	c, err := reg.Construct(DefaultConnectionID, 3)
	if err != nil {
		t.Fatalf("Construct: %v", err)
	}
	if c == nil {
		t.Fatal("Construct returned nil client")
	}
}

func TestRegistryConstructUnknownConnection(t *testing.T) {
	reg := NewRegistry()
	if _, err := reg.Construct("missing", 3); err == nil {
		t.Error("Construct succeeded for an unregistered connection")
	}
}

func TestRegistryConstructMissingHost(t *testing.T) {
	reg := NewRegistry()
	reg.Register("hostless", Connection{Token: "t"})
	if _, err := reg.Construct("hostless", 3); err == nil {
		t.Error("Construct succeeded for a connection with no host")
	}
}
