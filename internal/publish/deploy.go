package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// Deployment statuses reported by the deploy service.
const (
	DeployPending = "pending"
	DeployLive    = "live"
	DeployFailed  = "failed"
)

// Deployment is the deploy service's view of one triggered deployment.
type Deployment struct {
	ID     string `json:"id"`
	Slug   string `json:"slug"`
	Status string `json:"status"`
	URL    string `json:"url,omitempty"`
}

// DeployClient talks to the deployment service.
type DeployClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewDeployClient creates a deploy client for the given base URL.
func NewDeployClient(baseURL, apiKey string) *DeployClient {
	return &DeployClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: DefaultClientTimeout},
	}
}

// TriggerDeployment asks the service to deploy the extracted project. dir is
// the local path the service has been given access to.
func (c *DeployClient) TriggerDeployment(ctx context.Context, slug, dir string) (*Deployment, error) {
	payload := map[string]string{"slug": slug, "sourceDir": dir}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &Error{Service: "deploy", Message: "encoding request", Cause: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/deployments", bytes.NewReader(body))
	if err != nil {
		return nil, &Error{Service: "deploy", Message: "building request", Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	return c.do(req)
}

// GetDeployment fetches the current state of a deployment.
func (c *DeployClient) GetDeployment(ctx context.Context, id string) (*Deployment, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/deployments/"+id, nil)
	if err != nil {
		return nil, &Error{Service: "deploy", Message: "building request", Cause: err}
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	return c.do(req)
}

func (c *DeployClient) do(req *http.Request) (*Deployment, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &Error{Service: "deploy", Message: "request failed", Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Service: "deploy", Message: "reading response", Cause: err}
	}
	if resp.StatusCode >= 400 {
		return nil, &Error{Service: "deploy", Message: fmt.Sprintf("service returned %d: %s", resp.StatusCode, string(respBody))}
	}

	var dep Deployment
	if err := json.Unmarshal(respBody, &dep); err != nil {
		return nil, &Error{Service: "deploy", Message: "parsing response", Cause: err}
	}
	return &dep, nil
}
