package databricks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/seantiz/brickrun/internal/model"
)

const (
	submitRunPath = "/api/2.0/jobs/runs/submit"
	getRunPath    = "/api/2.0/jobs/runs/get"
	cancelRunPath = "/api/2.0/jobs/runs/cancel"

	requestTimeout = 30 * time.Second
	retryDelay     = 1 * time.Second
)

// HTTPClient talks to the Runs 2.0 REST API of a single workspace. Calls
// that fail with a transport error, a 429, or a 5xx are retried up to the
// configured retry limit with a fixed delay; any other non-2xx response is
// permanent.
type HTTPClient struct {
	host       string
	token      string
	retryLimit int
	httpc      *http.Client
}

// NewHTTPClient creates a client for the given connection. A retryLimit
// below 1 is treated as 1 (a single attempt).
func NewHTTPClient(conn Connection, retryLimit int) *HTTPClient {
	if retryLimit < 1 {
		retryLimit = 1
	}
	return &HTTPClient{
		host:       strings.TrimRight(conn.Host, "/"),
		token:      conn.Token,
		retryLimit: retryLimit,
		httpc:      &http.Client{Timeout: requestTimeout},
	}
}

type submitRunResponse struct {
	RunID int64 `json:"run_id"`
}

type getRunResponse struct {
	State      model.RunState `json:"state"`
	RunPageURL string         `json:"run_page_url"`
}

// Submit submits the payload and returns the remote run id.
func (c *HTTPClient) Submit(ctx context.Context, payload map[string]any) (string, error) {
	body, err := c.do(ctx, http.MethodPost, c.host+submitRunPath, payload)
	if err != nil {
		return "", fmt.Errorf("submit run: %w", err)
	}

	var resp submitRunResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("submit run: decode response: %w", err)
	}
	return strconv.FormatInt(resp.RunID, 10), nil
}

// GetRunState returns the current state of the given run.
func (c *HTTPClient) GetRunState(ctx context.Context, runID string) (model.RunState, error) {
	resp, err := c.getRun(ctx, runID)
	if err != nil {
		return model.RunState{}, fmt.Errorf("get run state: %w", err)
	}
	return resp.State, nil
}

// GetRunPageURL returns the run detail page URL for the given run.
func (c *HTTPClient) GetRunPageURL(ctx context.Context, runID string) (string, error) {
	resp, err := c.getRun(ctx, runID)
	if err != nil {
		return "", fmt.Errorf("get run page url: %w", err)
	}
	return resp.RunPageURL, nil
}

// CancelRun asks the workspace to cancel the given run.
func (c *HTTPClient) CancelRun(ctx context.Context, runID string) error {
	id, err := strconv.ParseInt(runID, 10, 64)
	if err != nil {
		return fmt.Errorf("cancel run: invalid run id %q", runID)
	}
	if _, err := c.do(ctx, http.MethodPost, c.host+cancelRunPath, map[string]any{"run_id": id}); err != nil {
		return fmt.Errorf("cancel run: %w", err)
	}
	return nil
}

func (c *HTTPClient) getRun(ctx context.Context, runID string) (*getRunResponse, error) {
	q := url.Values{"run_id": []string{runID}}
	body, err := c.do(ctx, http.MethodGet, c.host+getRunPath+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	var resp getRunResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &resp, nil
}

// do performs one API call with bounded retries. The request body is
// re-marshaled once and replayed on each attempt.
func (c *HTTPClient) do(ctx context.Context, method, rawURL string, reqBody any) ([]byte, error) {
	var encoded []byte
	if reqBody != nil {
		var err error
		encoded, err = json.Marshal(reqBody)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
	}

	var lastErr error
	for attempt := 1; attempt <= c.retryLimit; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(retryDelay):
			}
		}

		body, retryable, err := c.attempt(ctx, method, rawURL, encoded)
		if err == nil {
			return body, nil
		}
		if !retryable {
			return nil, err
		}
		lastErr = err
	}

	return nil, fmt.Errorf("after %d attempts: %w", c.retryLimit, lastErr)
}

func (c *HTTPClient) attempt(ctx context.Context, method, rawURL string, encoded []byte) (respBody []byte, retryable bool, err error) {
	var reader io.Reader
	if encoded != nil {
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return nil, false, err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if encoded != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		// Transport-level failures are transient unless the context is done.
		return nil, ctx.Err() == nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return body, false, nil
	}

	apiErr := fmt.Errorf("%s %s: status %d: %s", method, rawURL, resp.StatusCode, strings.TrimSpace(string(body)))
	retryable = resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
	return nil, retryable, apiErr
}
