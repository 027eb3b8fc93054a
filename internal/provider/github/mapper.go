package github

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/cloudship/deploy-gateway/internal/models"
	"github.com/cloudship/deploy-gateway/internal/provider"
)

// mapRunToStatus converts a GitHub workflow run to a generic RunStatus
func mapRunToStatus(run *workflowRun) *models.RunStatus {
	return &models.RunStatus{
		Lifecycle:  mapLifecycle(run.Status),
		Conclusion: models.Conclusion(run.Conclusion),
		LogsURL:    run.LogsURL,
	}
}

// mapLifecycle converts a GitHub run status to a generic Lifecycle
func mapLifecycle(status string) models.Lifecycle {
	switch status {
	case "queued", "waiting", "pending", "requested":
		return models.LifecycleQueued
	case "in_progress":
		return models.LifecycleRunning
	case "completed":
		return models.LifecycleCompleted
	default:
		return models.LifecycleUnknown
	}
}

// parseDispatchError converts a failed workflow_dispatch response to a
// DispatchError carrying the upstream status code
func parseDispatchError(resp *http.Response) error {
	return &provider.DispatchError{
		StatusCode: resp.StatusCode,
		Message:    readErrorMessage(resp),
	}
}

// parseError converts HTTP error responses to provider errors
func parseError(resp *http.Response) error {
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return provider.ErrRunNotFound
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return &provider.ProviderError{
			Code:    resp.StatusCode,
			Message: readErrorMessage(resp),
			Err:     provider.ErrUnauthorized,
		}
	case resp.StatusCode >= 500:
		return &provider.ProviderError{
			Code:    resp.StatusCode,
			Message: readErrorMessage(resp),
			Err:     provider.ErrProviderUnavailable,
		}
	default:
		return &provider.ProviderError{
			Code:    resp.StatusCode,
			Message: readErrorMessage(resp),
		}
	}
}

// readErrorMessage extracts GitHub's error message from a response body
func readErrorMessage(resp *http.Response) string {
	body, _ := io.ReadAll(resp.Body)

	var errResp struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &errResp) == nil && errResp.Message != "" {
		return errResp.Message
	}
	return string(body)
}
