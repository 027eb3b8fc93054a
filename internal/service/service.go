package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cloudship/deploy-gateway/internal/models"
	"github.com/cloudship/deploy-gateway/internal/provider"
	"github.com/cloudship/deploy-gateway/internal/stream"
	"github.com/cloudship/deploy-gateway/pkg/logger"
)

var (
	// ErrUserIDRequired indicates the deployment request is missing its user
	// identifier. No dispatch is attempted.
	ErrUserIDRequired = errors.New("userId is required")

	// ErrRunNotFound indicates the requested run doesn't exist
	ErrRunNotFound = errors.New("run not found")
)

// Options tunes dispatch discovery and streaming
type Options struct {
	Stream stream.Config

	// DiscoveryAttempts bounds how many times the recent-runs listing is
	// queried after a dispatch before giving up. The run often appears a
	// moment after GitHub acknowledges the dispatch.
	DiscoveryAttempts int

	// DiscoveryDelay is the pause between discovery attempts
	DiscoveryDelay time.Duration
}

// Service coordinates business logic between API and provider layers
type Service struct {
	provider provider.Provider
	logger   *logger.Logger
	opts     Options

	mu      sync.Mutex
	handles map[string]*models.RunHandle
}

// NewService creates a new service instance
func NewService(prov provider.Provider, log *logger.Logger, opts Options) *Service {
	if opts.DiscoveryAttempts <= 0 {
		opts.DiscoveryAttempts = 3
	}
	if opts.DiscoveryDelay <= 0 {
		opts.DiscoveryDelay = time.Second
	}

	return &Service{
		provider: prov,
		logger:   log,
		opts:     opts,
		handles:  make(map[string]*models.RunHandle),
	}
}

// Dispatch triggers the provisioning workflow for the request and discovers
// the run it caused. The dispatch API is fire-and-forget, so the run id is
// recovered by listing recent runs and taking the newest entry. This is racy
// when unrelated dispatches land concurrently; see DESIGN.md.
func (s *Service) Dispatch(ctx context.Context, req models.DeploymentRequest) (*models.RunHandle, error) {
	log := logger.FromContext(ctx, s.logger)

	if strings.TrimSpace(req.UserID) == "" {
		log.Debug("service: rejected deployment without userId")
		return nil, ErrUserIDRequired
	}

	log.Debug("service: dispatching deployment",
		"user_id", req.UserID,
		"create_s3", req.CreateS3,
		"create_rds", req.CreateRDS,
		"create_eks", req.CreateEKS)

	if err := s.provider.Dispatch(ctx, buildInputs(req)); err != nil {
		log.Error("service: workflow dispatch failed", "user_id", req.UserID, "error", err)
		return nil, fmt.Errorf("dispatch workflow: %w", err)
	}

	runID, err := s.discoverRun(ctx)
	if err != nil {
		log.Error("service: run discovery failed", "user_id", req.UserID, "error", err)
		return nil, err
	}

	handle := &models.RunHandle{
		RunID:     runID,
		UserID:    req.UserID,
		Requested: req.Flags(),
	}

	s.mu.Lock()
	s.handles[runID] = handle
	s.mu.Unlock()

	log.Info("service: deployment dispatched",
		"run_id", runID,
		"user_id", req.UserID)
	return handle, nil
}

// discoverRun queries the recent-runs listing until a run shows up or the
// attempt budget is spent
func (s *Service) discoverRun(ctx context.Context) (string, error) {
	var lastErr error
	for attempt := 0; attempt < s.opts.DiscoveryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(s.opts.DiscoveryDelay):
			}
		}

		runID, err := s.provider.LatestRun(ctx)
		if err == nil {
			return runID, nil
		}
		if !errors.Is(err, provider.ErrRunNotFound) {
			return "", fmt.Errorf("discover run: %w", err)
		}
		lastErr = err
	}
	return "", fmt.Errorf("discover run: %w", lastErr)
}

// Handle returns the run handle registered at dispatch time, if this process
// dispatched the run
func (s *Service) Handle(runID string) *models.RunHandle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handles[runID]
}

// StreamRun relays one run's progress into the sink until a terminal state.
// This is a blocking call for the lifetime of the client connection.
func (s *Service) StreamRun(ctx context.Context, runID string, sink stream.Sink) stream.Terminal {
	log := logger.FromContext(ctx, s.logger)

	sess := stream.New(s.provider, sink, runID, s.Handle(runID), s.opts.Stream, log)
	term := sess.Run(ctx)

	log.Info("service: stream finished", "run_id", runID, "terminal", term)
	return term
}

// GetRun retrieves the status of a run
func (s *Service) GetRun(ctx context.Context, runID string) (*models.RunStatus, error) {
	log := logger.FromContext(ctx, s.logger)

	status, err := s.provider.GetRun(ctx, runID)
	if err != nil {
		if errors.Is(err, provider.ErrRunNotFound) {
			log.Debug("service: run not found", "run_id", runID)
			return nil, ErrRunNotFound
		}
		log.Error("service: provider get run failed", "run_id", runID, "error", err)
		return nil, err
	}

	log.Debug("service: run status retrieved",
		"run_id", runID,
		"status", status.Lifecycle)
	return status, nil
}

// ListRuns returns recent workflow runs, most recent first
func (s *Service) ListRuns(ctx context.Context, limit int) ([]models.RunSummary, error) {
	log := logger.FromContext(ctx, s.logger)

	runs, err := s.provider.ListRuns(ctx, limit)
	if err != nil {
		log.Error("service: failed to list runs", "error", err)
		return nil, fmt.Errorf("list runs: %w", err)
	}

	log.Debug("service: runs listed", "count", len(runs))
	return runs, nil
}

// HasCredentials reports whether the provider credential is configured
func (s *Service) HasCredentials() bool {
	return s.provider.HasCredentials()
}

// buildInputs coerces the request to the string-typed input schema the
// workflow_dispatch API expects
func buildInputs(req models.DeploymentRequest) map[string]string {
	inputs := map[string]string{
		"userId":       req.UserID,
		"createS3":     strconv.FormatBool(req.CreateS3),
		"createRDS":    strconv.FormatBool(req.CreateRDS),
		"createEKS":    strconv.FormatBool(req.CreateEKS),
		"s3BucketName": req.S3BucketName,
	}

	// The workflow provisions at most one database.
	if req.CreateRDS && len(req.Databases) > 0 {
		db := req.Databases[0]
		inputs["dbName"] = db.Name
		inputs["dbUsername"] = db.Username
		inputs["dbPassword"] = db.Password
	}

	return inputs
}
