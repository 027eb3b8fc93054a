package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cloudship/deploy-gateway/pkg/logger"
)

const defaultAPIURL = "https://api.github.com"

// Client handles HTTP communication with the GitHub Actions REST API
type Client struct {
	apiURL       string
	owner        string
	repo         string
	workflowFile string
	ref          string
	token        string
	httpClient   *http.Client
	logger       *logger.Logger
}

// workflowRun mirrors the fields of a GitHub Actions run this gateway needs
type workflowRun struct {
	ID         int64     `json:"id"`
	Status     string    `json:"status"`
	Conclusion string    `json:"conclusion"`
	LogsURL    string    `json:"logs_url"`
	CreatedAt  time.Time `json:"created_at"`
}

// NewClient creates a new GitHub Actions API client
func NewClient(cfg *Config, log *logger.Logger) *Client {
	apiURL := cfg.APIURL
	if apiURL == "" {
		apiURL = defaultAPIURL
	}
	return &Client{
		apiURL:       apiURL,
		owner:        cfg.Owner,
		repo:         cfg.Repo,
		workflowFile: cfg.WorkflowFile,
		ref:          cfg.Ref,
		token:        cfg.Token,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		logger:       log,
	}
}

// doRequest performs an authenticated request against the GitHub API
func (c *Client) doRequest(ctx context.Context, method, url string, body io.Reader) (*http.Response, error) {
	c.logger.Debug("provider: http request",
		"method", method,
		"url", url)

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		c.logger.Error("provider: failed to create request", "error", err)
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("provider: http request failed",
			"method", method,
			"url", url,
			"error", err)
		return nil, err
	}

	c.logger.Debug("provider: http response",
		"method", method,
		"url", url,
		"status", resp.StatusCode)

	return resp, nil
}

// DispatchWorkflow triggers a workflow_dispatch run. The response carries no
// run identifier; GitHub acknowledges with 204 and creates the run
// asynchronously.
func (c *Client) DispatchWorkflow(ctx context.Context, inputs map[string]string) error {
	url := fmt.Sprintf("%s/repos/%s/%s/actions/workflows/%s/dispatches",
		c.apiURL, c.owner, c.repo, c.workflowFile)

	payload := struct {
		Ref    string            `json:"ref"`
		Inputs map[string]string `json:"inputs"`
	}{
		Ref:    c.ref,
		Inputs: inputs,
	}

	jsonBody, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal dispatch payload: %w", err)
	}

	resp, err := c.doRequest(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return parseDispatchError(resp)
	}

	return nil
}

// ListWorkflowRuns returns recent runs of the workflow, most recent first
func (c *Client) ListWorkflowRuns(ctx context.Context, limit int) ([]workflowRun, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/actions/workflows/%s/runs?per_page=%d",
		c.apiURL, c.owner, c.repo, c.workflowFile, limit)

	resp, err := c.doRequest(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, parseError(resp)
	}

	var listing struct {
		WorkflowRuns []workflowRun `json:"workflow_runs"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		return nil, fmt.Errorf("decode runs listing: %w", err)
	}

	return listing.WorkflowRuns, nil
}

// GetWorkflowRun retrieves one run by id
func (c *Client) GetWorkflowRun(ctx context.Context, runID int64) (*workflowRun, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/actions/runs/%d", c.apiURL, c.owner, c.repo, runID)

	resp, err := c.doRequest(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, parseError(resp)
	}

	var run workflowRun
	if err := json.NewDecoder(resp.Body).Decode(&run); err != nil {
		return nil, fmt.Errorf("decode run: %w", err)
	}

	return &run, nil
}

// DownloadRunLogs fetches the run's compressed log archive. GitHub answers
// with a redirect to blob storage, which the HTTP client follows. A 404 means
// the archive is not ready yet and is reported via ready=false, not an error.
func (c *Client) DownloadRunLogs(ctx context.Context, logsURL string) (archive []byte, ready bool, err error) {
	resp, err := c.doRequest(ctx, http.MethodGet, logsURL, nil)
	if err != nil {
		return nil, false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, false, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, false, parseError(resp)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, false, fmt.Errorf("read log archive: %w", err)
	}

	return data, true, nil
}
