// Package gateway provides a reusable deploy-gateway library that can be
// embedded into other Go applications.
package gateway

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/cloudship/deploy-gateway/internal/api"
	"github.com/cloudship/deploy-gateway/internal/config"
	"github.com/cloudship/deploy-gateway/internal/provider/github"
	"github.com/cloudship/deploy-gateway/internal/service"
	"github.com/cloudship/deploy-gateway/internal/stream"
	"github.com/cloudship/deploy-gateway/pkg/logger"
)

// Gateway represents a deploy-gateway instance that can be embedded in
// applications
type Gateway struct {
	config  *Config
	service *service.Service
	router  http.Handler
	server  *http.Server
	logger  *logger.Logger
}

// Config holds the configuration for the Gateway
type Config struct {
	// Server configuration
	Server ServerConfig

	// GitHub Actions connection settings
	GitHub GitHubConfig

	// Polling and discovery settings
	Stream StreamConfig

	// Logger configuration
	Logging LoggingConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// GitHubConfig holds GitHub Actions specific configuration
type GitHubConfig struct {
	APIURL       string
	Owner        string
	Repo         string
	WorkflowFile string
	Ref          string
	Token        string
}

// StreamConfig holds polling and discovery configuration
type StreamConfig struct {
	PollInterval      time.Duration
	MaxAttempts       int
	DiscoveryAttempts int
	DiscoveryDelay    time.Duration
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string // debug, info, warn, error
	Format string // json or text
}

// New creates a new Gateway instance with the provided configuration
func New(cfg *Config) (*Gateway, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	// Initialize logger
	appLogger := logger.New(cfg.Logging.Level, cfg.Logging.Format)

	// Initialize provider
	prov, err := github.NewAdapter(&github.Config{
		APIURL:       cfg.GitHub.APIURL,
		Owner:        cfg.GitHub.Owner,
		Repo:         cfg.GitHub.Repo,
		WorkflowFile: cfg.GitHub.WorkflowFile,
		Ref:          cfg.GitHub.Ref,
		Token:        cfg.GitHub.Token,
	}, appLogger)
	if err != nil {
		return nil, fmt.Errorf("initialize github provider: %w", err)
	}
	appLogger.Info("initialized github provider",
		"owner", cfg.GitHub.Owner,
		"repo", cfg.GitHub.Repo,
		"workflow", cfg.GitHub.WorkflowFile)

	// Initialize service layer
	svc := service.NewService(prov, appLogger, service.Options{
		Stream: stream.Config{
			PollInterval: cfg.Stream.PollInterval,
			MaxAttempts:  cfg.Stream.MaxAttempts,
		},
		DiscoveryAttempts: cfg.Stream.DiscoveryAttempts,
		DiscoveryDelay:    cfg.Stream.DiscoveryDelay,
	})

	// Initialize API layer
	handlers := api.NewHandlers(svc, appLogger)
	loggingMiddleware := api.NewLoggingMiddleware(appLogger)
	router := api.NewRouter(handlers, loggingMiddleware)

	// Create HTTP server. WriteTimeout stays zero unless configured: event
	// streams must not be cut off by a fixed write deadline.
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return &Gateway{
		config:  cfg,
		service: svc,
		router:  router,
		server:  srv,
		logger:  appLogger,
	}, nil
}

// Start starts the HTTP server
// This is a blocking call that will run until the context is canceled or an
// error occurs
func (g *Gateway) Start(ctx context.Context) error {
	serverErrors := make(chan error, 1)

	// Start server in goroutine
	go func() {
		g.logger.Info("starting http server", "port", g.config.Server.Port)
		serverErrors <- g.server.ListenAndServe()
	}()

	// Wait for context cancellation or server error
	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil

	case <-ctx.Done():
		g.logger.Info("shutdown signal received")

		// Graceful shutdown with 30s timeout
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := g.server.Shutdown(shutdownCtx); err != nil {
			g.server.Close()
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}

		g.logger.Info("server stopped gracefully")
		return nil
	}
}

// Handler returns the http.Handler for the gateway
// Use this if you want to integrate the gateway into an existing HTTP server
func (g *Gateway) Handler() http.Handler {
	return g.router
}

// Service returns the underlying service layer
// Use this for direct programmatic access to gateway functionality
func (g *Gateway) Service() *service.Service {
	return g.service
}

// NewFromEnv creates a Gateway instance from environment variables, or from
// the YAML config file named by configFile when it is non-empty
func NewFromEnv(configFile string) (*Gateway, error) {
	var cfg *config.Config
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	} else {
		cfg = config.FromEnv()
	}

	return New(&Config{
		Server: ServerConfig{
			Port:         cfg.Server.Port,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		},
		GitHub: GitHubConfig{
			APIURL:       cfg.GitHub.APIURL,
			Owner:        cfg.GitHub.Owner,
			Repo:         cfg.GitHub.Repo,
			WorkflowFile: cfg.GitHub.WorkflowFile,
			Ref:          cfg.GitHub.Ref,
			Token:        cfg.GitHub.Token,
		},
		Stream: StreamConfig{
			PollInterval:      cfg.Stream.PollInterval,
			MaxAttempts:       cfg.Stream.MaxAttempts,
			DiscoveryAttempts: cfg.Stream.DiscoveryAttempts,
			DiscoveryDelay:    cfg.Stream.DiscoveryDelay,
		},
		Logging: LoggingConfig{
			Level:  cfg.Logging.Level,
			Format: cfg.Logging.Format,
		},
	})
}
