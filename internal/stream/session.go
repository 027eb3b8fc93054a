package stream

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/cloudship/deploy-gateway/internal/logs"
	"github.com/cloudship/deploy-gateway/internal/models"
	"github.com/cloudship/deploy-gateway/internal/provider"
	"github.com/cloudship/deploy-gateway/pkg/logger"
)

// Terminal is the state a session ends in
type Terminal string

const (
	TerminalCompleted    Terminal = "completed"
	TerminalFailed       Terminal = "failed"
	TerminalTimedOut     Terminal = "timed_out"
	TerminalDisconnected Terminal = "disconnected"
)

// Config bounds a session's poll loop
type Config struct {
	// PollInterval is the fixed delay between poll cycles
	PollInterval time.Duration

	// MaxAttempts caps the number of poll cycles before the session gives up
	MaxAttempts int
}

const (
	defaultPollInterval = 3 * time.Second
	defaultMaxAttempts  = 20
)

// Session relays one run's remote progress to one client. It owns the log
// baseline, the last-emitted status pair, and the poll timer; nothing is
// shared with other sessions.
type Session struct {
	runID    string
	handle   *models.RunHandle
	provider provider.Provider
	sink     Sink
	cfg      Config
	logger   *logger.Logger

	differ         logs.Differ
	lastLifecycle  models.Lifecycle
	lastConclusion models.Conclusion
	statusEmitted  bool
}

// New builds a session for runID. handle may be nil when the run was not
// dispatched by this process; the stream still works, but no outputs can be
// attributed on completion.
func New(prov provider.Provider, sink Sink, runID string, handle *models.RunHandle, cfg Config, log *logger.Logger) *Session {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}

	return &Session{
		runID:    runID,
		handle:   handle,
		provider: prov,
		sink:     sink,
		cfg:      cfg,
		logger:   log.With("session_id", uuid.NewString(), "run_id", runID),
	}
}

// Run drives the poll loop until a terminal state is reached. Exactly one
// poll cycle is in flight at a time; the next cycle starts only after the
// previous one fully completed. The sink is closed on every return path.
func (s *Session) Run(ctx context.Context) Terminal {
	defer s.sink.Close()

	timer := time.NewTimer(s.cfg.PollInterval)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	s.logger.Info("session: started",
		"poll_interval", s.cfg.PollInterval,
		"max_attempts", s.cfg.MaxAttempts)

	for attempt := 0; ; attempt++ {
		if attempt >= s.cfg.MaxAttempts {
			s.emit(models.ErrorEvent{Message: "Polling timeout reached."})
			s.logger.Warn("session: polling timeout reached", "attempts", attempt)
			return TerminalTimedOut
		}

		if term, done := s.cycle(ctx); done {
			return term
		}

		timer.Reset(s.cfg.PollInterval)
		select {
		case <-ctx.Done():
			s.logger.Info("session: client disconnected")
			return TerminalDisconnected
		case <-timer.C:
		}
	}
}

// cycle runs one poll iteration. done is false when the loop should schedule
// another cycle after the poll interval.
func (s *Session) cycle(ctx context.Context) (term Terminal, done bool) {
	status, err := s.provider.GetRun(ctx, s.runID)
	if err != nil {
		return s.handlePollError(ctx, err)
	}

	if !s.emitStatusIfChanged(status) {
		return TerminalDisconnected, true
	}

	if status.LogsURL != "" {
		if !s.relayLogs(ctx, status.LogsURL) {
			return TerminalDisconnected, true
		}
	}

	if status.Finished() {
		return s.finish(status), true
	}

	return "", false
}

// handlePollError classifies a status-poll failure. Transient provider
// outages are retried on the next cycle; everything else ends the session.
func (s *Session) handlePollError(ctx context.Context, err error) (Terminal, bool) {
	switch {
	case ctx.Err() != nil:
		s.logger.Info("session: client disconnected during poll")
		return TerminalDisconnected, true

	case errors.Is(err, provider.ErrProviderUnavailable):
		s.logger.Warn("session: transient provider error, will retry", "error", err)
		return "", false

	case errors.Is(err, provider.ErrRunNotFound):
		s.emit(models.ErrorEvent{Message: fmt.Sprintf("Run %s not found.", s.runID)})
		s.logger.Warn("session: run not found")
		return TerminalFailed, true

	default:
		var perr *provider.ProviderError
		if errors.As(err, &perr) {
			s.emit(models.ErrorEvent{Message: fmt.Sprintf("Provider API error: %d", perr.Code)})
		} else {
			s.emit(models.ErrorEvent{Message: fmt.Sprintf("Polling failed: %v", err)})
		}
		s.logger.Error("session: poll failed", "error", err)
		return TerminalFailed, true
	}
}

// emitStatusIfChanged sends a status event when the (lifecycle, conclusion)
// pair moved since the last emission. Returns false if the client is gone.
func (s *Session) emitStatusIfChanged(status *models.RunStatus) bool {
	if s.statusEmitted && status.Lifecycle == s.lastLifecycle && status.Conclusion == s.lastConclusion {
		return true
	}

	if !s.emit(models.StatusEvent{Status: status.Lifecycle, Conclusion: status.Conclusion}) {
		return false
	}
	s.lastLifecycle = status.Lifecycle
	s.lastConclusion = status.Conclusion
	s.statusEmitted = true
	return true
}

// relayLogs fetches the log archive and forwards whatever is new. Log-fetch
// failures are best effort and never end an otherwise healthy session.
// Returns false only if the client is gone.
func (s *Session) relayLogs(ctx context.Context, logsURL string) bool {
	text, ready, err := s.provider.FetchLogs(ctx, logsURL)
	if err != nil {
		s.logger.Warn("session: log fetch failed", "error", err)
		return true
	}
	if !ready {
		return true
	}

	chunk, replace, ok := s.differ.Next(text)
	if !ok {
		return true
	}
	return s.emit(models.LogEvent{Lines: chunk, Replace: replace})
}

// finish re-emits the terminal status so the client always sees it, then the
// outputs payload for an attributable successful run, then the done marker.
func (s *Session) finish(status *models.RunStatus) Terminal {
	if !s.emit(models.StatusEvent{Status: status.Lifecycle, Conclusion: status.Conclusion}) {
		return TerminalDisconnected
	}

	if status.Conclusion == models.ConclusionSuccess && s.handle != nil {
		outputs := logs.ExtractOutputs(s.differ.Baseline(), s.handle.Requested)
		ev := models.OutputsEvent{
			RunID:     s.handle.RunID,
			UserID:    s.handle.UserID,
			Requested: s.handle.Requested,
			Outputs:   outputs,
		}
		if !s.emit(ev) {
			return TerminalDisconnected
		}
	}

	if !s.emit(models.DoneEvent{Message: "Workflow completed."}) {
		return TerminalDisconnected
	}

	s.logger.Info("session: completed", "conclusion", status.Conclusion)
	return TerminalCompleted
}

// emit sends one event, reporting false when the sink rejected it
func (s *Session) emit(ev models.Event) bool {
	if err := s.sink.Send(ev); err != nil {
		s.logger.Warn("session: event delivery failed", "event", ev.Name(), "error", err)
		return false
	}
	return true
}
