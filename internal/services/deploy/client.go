// Package deploy publishes generated project targets to a deployment
// service over HTTP and records the URLs it returns.
package deploy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"loom/internal/services"
)

// Config captures deployment settings.
type Config struct {
	Endpoint       string
	APIToken       string
	TimeoutSeconds int
}

// Result is the URL reported for one deployed target.
type Result struct {
	Target string `json:"target"`
	URL    string `json:"url"`
}

// Client deploys project targets via HTTP POST.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// NewClient constructs a deployment client.
func NewClient(cfg Config) *Client {
	timeout := 300 * time.Second
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// WithHTTPClient overrides the HTTP client (for testing).
func (c *Client) WithHTTPClient(client *http.Client) {
	if client != nil {
		c.httpClient = client
	}
}

type deployRequest struct {
	ProjectPath string `json:"project_path"`
	Target      string `json:"target"`
}

type deployResponse struct {
	URL   string `json:"url"`
	Error string `json:"error"`
}

// Deploy publishes one target of the project and returns the serving URL.
func (c *Client) Deploy(ctx context.Context, projectDir, target string) (Result, error) {
	if strings.TrimSpace(c.cfg.Endpoint) == "" {
		return Result{}, services.Wrap(services.ErrConfiguration, "deploying", "deploy", "endpoint not configured", nil)
	}

	encoded, err := json.Marshal(deployRequest{ProjectPath: projectDir, Target: target})
	if err != nil {
		return Result{}, services.Wrap(services.ErrDeployment, "deploying", "deploy", "encode request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(encoded))
	if err != nil {
		return Result{}, services.Wrap(services.ErrDeployment, "deploying", "deploy", "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, services.Wrap(services.ErrTimeout, "deploying", "deploy", "deployment interrupted", ctx.Err())
		}
		return Result{}, services.Wrap(services.ErrDeployment, "deploying", "deploy",
			fmt.Sprintf("post %s target", target), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, services.Wrap(services.ErrDeployment, "deploying", "deploy", "read response", err)
	}

	var decoded deployResponse
	if resp.StatusCode >= http.StatusMultipleChoices {
		detail := strings.TrimSpace(string(body))
		if json.Unmarshal(body, &decoded) == nil && decoded.Error != "" {
			detail = decoded.Error
		}
		return Result{}, services.Wrap(services.ErrDeployment, "deploying", "deploy",
			fmt.Sprintf("deploy %s: http %d: %s", target, resp.StatusCode, detail), nil)
	}

	if err := json.Unmarshal(body, &decoded); err != nil {
		return Result{}, services.Wrap(services.ErrDeployment, "deploying", "deploy", "decode response", err)
	}
	if strings.TrimSpace(decoded.URL) == "" {
		return Result{}, services.Wrap(services.ErrDeployment, "deploying", "deploy",
			fmt.Sprintf("deploy %s: response missing url", target), nil)
	}

	return Result{Target: target, URL: strings.TrimSpace(decoded.URL)}, nil
}
