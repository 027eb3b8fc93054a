package github

import (
	"context"
	"fmt"
	"strconv"

	"github.com/cloudship/deploy-gateway/internal/logs"
	"github.com/cloudship/deploy-gateway/internal/models"
	"github.com/cloudship/deploy-gateway/internal/provider"
	"github.com/cloudship/deploy-gateway/pkg/logger"
)

// Adapter implements the Provider interface for GitHub Actions
type Adapter struct {
	client *Client
	config *Config
	logger *logger.Logger
}

// Config contains GitHub Actions connection settings
type Config struct {
	APIURL       string
	Owner        string
	Repo         string
	WorkflowFile string
	Ref          string
	Token        string
}

// NewAdapter creates a new GitHub Actions adapter
func NewAdapter(cfg *Config, log *logger.Logger) (*Adapter, error) {
	if cfg.Owner == "" || cfg.Repo == "" {
		return nil, fmt.Errorf("github owner and repo are required")
	}
	if cfg.WorkflowFile == "" {
		return nil, fmt.Errorf("github workflow file is required")
	}
	if cfg.Ref == "" {
		cfg.Ref = "main"
	}

	return &Adapter{
		client: NewClient(cfg, log),
		config: cfg,
		logger: log,
	}, nil
}

// Dispatch implements Provider.Dispatch
func (a *Adapter) Dispatch(ctx context.Context, inputs map[string]string) error {
	log := logger.FromContext(ctx, a.logger)

	log.Debug("provider: dispatching workflow",
		"workflow", a.config.WorkflowFile,
		"ref", a.config.Ref,
		"input_count", len(inputs))

	if err := a.client.DispatchWorkflow(ctx, inputs); err != nil {
		log.Error("provider: workflow dispatch failed",
			"workflow", a.config.WorkflowFile,
			"error", err)
		return err
	}

	log.Info("provider: workflow dispatched",
		"workflow", a.config.WorkflowFile,
		"ref", a.config.Ref)
	return nil
}

// LatestRun implements Provider.LatestRun
func (a *Adapter) LatestRun(ctx context.Context) (string, error) {
	log := logger.FromContext(ctx, a.logger)

	runs, err := a.client.ListWorkflowRuns(ctx, 1)
	if err != nil {
		log.Error("provider: failed to list workflow runs", "error", err)
		return "", err
	}
	if len(runs) == 0 {
		log.Debug("provider: no workflow runs found", "workflow", a.config.WorkflowFile)
		return "", provider.ErrRunNotFound
	}

	runID := strconv.FormatInt(runs[0].ID, 10)
	log.Debug("provider: latest run discovered", "run_id", runID)
	return runID, nil
}

// ListRuns implements Provider.ListRuns
func (a *Adapter) ListRuns(ctx context.Context, limit int) ([]models.RunSummary, error) {
	runs, err := a.client.ListWorkflowRuns(ctx, limit)
	if err != nil {
		return nil, err
	}

	summaries := make([]models.RunSummary, 0, len(runs))
	for _, r := range runs {
		summaries = append(summaries, models.RunSummary{
			RunID:      strconv.FormatInt(r.ID, 10),
			Lifecycle:  mapLifecycle(r.Status),
			Conclusion: models.Conclusion(r.Conclusion),
			CreatedAt:  r.CreatedAt,
		})
	}
	return summaries, nil
}

// GetRun implements Provider.GetRun
func (a *Adapter) GetRun(ctx context.Context, runID string) (*models.RunStatus, error) {
	log := logger.FromContext(ctx, a.logger)

	id, err := strconv.ParseInt(runID, 10, 64)
	if err != nil {
		log.Debug("provider: invalid run id", "run_id", runID)
		return nil, provider.ErrRunNotFound
	}

	run, err := a.client.GetWorkflowRun(ctx, id)
	if err != nil {
		return nil, err
	}

	status := mapRunToStatus(run)
	log.Debug("provider: run status retrieved",
		"run_id", runID,
		"status", status.Lifecycle,
		"conclusion", status.Conclusion)
	return status, nil
}

// FetchLogs implements Provider.FetchLogs
func (a *Adapter) FetchLogs(ctx context.Context, logsURL string) (string, bool, error) {
	archive, ready, err := a.client.DownloadRunLogs(ctx, logsURL)
	if err != nil || !ready {
		return "", false, err
	}

	text, err := logs.Flatten(archive)
	if err != nil {
		return "", false, err
	}
	return text, true, nil
}

// HasCredentials implements Provider.HasCredentials
func (a *Adapter) HasCredentials() bool {
	return a.config.Token != ""
}
