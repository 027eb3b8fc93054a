package provider

import (
	"context"

	"github.com/cloudship/deploy-gateway/internal/models"
)

// Provider abstracts the remote CI system running the provisioning workflow
type Provider interface {
	// Dispatch triggers a new workflow run with the given string-typed inputs.
	// The dispatch call is fire-and-forget: no run identifier is returned.
	Dispatch(ctx context.Context, inputs map[string]string) error

	// LatestRun returns the identifier of the most recently created run of
	// the workflow. Used to discover the run a Dispatch call just caused.
	LatestRun(ctx context.Context) (string, error)

	// ListRuns returns up to limit recent runs, most recent first
	ListRuns(ctx context.Context, limit int) ([]models.RunSummary, error)

	// GetRun retrieves the current status of a run
	GetRun(ctx context.Context, runID string) (*models.RunStatus, error)

	// FetchLogs retrieves the run's log archive from logsURL and flattens it
	// to plaintext. ready is false when the archive does not exist yet, which
	// is not an error for an early-lifecycle run.
	FetchLogs(ctx context.Context, logsURL string) (text string, ready bool, err error)

	// HasCredentials reports whether an access credential for the remote
	// system is configured
	HasCredentials() bool
}
