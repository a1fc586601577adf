package runtime

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultTimeout is the timeout applied to single request/response calls.
// The stream connection is long-lived and managed separately.
const DefaultTimeout = 30 * time.Second

// ClientOptions configures the runtime client.
type ClientOptions struct {
	Timeout time.Duration
	APIKey  string
}

// Client talks to the remote pipeline-execution runtime. It is pure
// request/response plumbing; all monitoring state lives in MonitorSession.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	stream  *http.Client // no overall timeout; used for the long-lived watch stream
}

// NewClient creates a client for the runtime at baseURL.
func NewClient(baseURL string, opts *ClientOptions) *Client {
	timeout := DefaultTimeout
	apiKey := ""
	if opts != nil {
		if opts.Timeout > 0 {
			timeout = opts.Timeout
		}
		apiKey = opts.APIKey
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
		stream:  &http.Client{},
	}
}

// createRunResponse is the wire shape of a successful run creation.
type createRunResponse struct {
	RunID string `json:"runId"`
}

// CreateRun asks the runtime to create a new pipeline run for the given idea
// and returns the runtime-assigned run identifier. Any failure to obtain a
// usable identifier is an InitiationError: fatal, and not retried here;
// retries belong to the transport, not the protocol logic.
func (c *Client) CreateRun(ctx context.Context, idea, projectName string) (string, error) {
	body := map[string]string{"idea": idea}
	if projectName != "" {
		body["projectName"] = projectName
	}

	data, status, err := c.post(ctx, "/createRun", body)
	if err != nil {
		return "", &InitiationError{Message: "createRun request failed", Cause: err}
	}
	if status < 200 || status >= 300 {
		return "", &InitiationError{Message: fmt.Sprintf("createRun returned HTTP %d", status)}
	}

	var resp createRunResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", &InitiationError{Message: "malformed createRun response", Cause: err}
	}
	if resp.RunID == "" {
		return "", &InitiationError{Message: "createRun response has no run id"}
	}
	return resp.RunID, nil
}

// StartAsync kicks off asynchronous execution of a created run.
func (c *Client) StartAsync(ctx context.Context, runID string, input map[string]any) error {
	body := map[string]any{
		"runId":     runID,
		"inputData": input,
	}
	_, status, err := c.post(ctx, "/start-async", body)
	if err != nil {
		return &InitiationError{Message: "start-async request failed", Cause: err}
	}
	if status < 200 || status >= 300 {
		return &InitiationError{Message: fmt.Sprintf("start-async returned HTTP %d", status)}
	}
	return nil
}

// FetchSnapshot performs one poll of the watch endpoint.
func (c *Client) FetchSnapshot(ctx context.Context, runID string) (*WatchSnapshot, error) {
	data, err := c.get(ctx, "/watch?runId="+url.QueryEscape(runID), "application/json")
	if err != nil {
		return nil, &ChannelError{Channel: "poll", Message: "watch request failed", Cause: err}
	}
	var snap WatchSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, &ChannelError{Channel: "poll", Message: "malformed watch snapshot", Cause: err}
	}
	return &snap, nil
}

// FetchRun retrieves the full run record, including per-step outputs.
func (c *Client) FetchRun(ctx context.Context, runID string) (*RunRecord, error) {
	data, err := c.get(ctx, "/runs?runId="+url.QueryEscape(runID), "application/json")
	if err != nil {
		return nil, err
	}
	var rec RunRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("malformed run record: %w", err)
	}
	return &rec, nil
}

// FetchStepOutput retrieves one step's structured output via the run record.
// Returns nil output (no error) when the step exists but has produced none.
func (c *Client) FetchStepOutput(ctx context.Context, runID, stepID string) (json.RawMessage, error) {
	rec, err := c.FetchRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	step, ok := rec.Steps[stepID]
	if !ok {
		return nil, fmt.Errorf("run %s has no step %q", runID, stepID)
	}
	return step.Output, nil
}

func (c *Client) get(ctx context.Context, path, accept string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", accept)
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("runtime returned HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	return data, nil
}

func (c *Client) post(ctx context.Context, path string, body any) ([]byte, int, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return data, resp.StatusCode, nil
}

func (c *Client) authorize(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}
