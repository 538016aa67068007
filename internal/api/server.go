// Package api provides the read-only operations HTTP API.
//
// It exposes health, instance status and the tenant/hub mapping for
// monitoring and debugging. Nothing here mutates state; the registries
// are synchronized exclusively through the bus and the polling
// scheduler.
//
// The server follows the same lifecycle pattern as the other
// infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/twinbridge/twinbridge-core/internal/infrastructure/config"
	"github.com/twinbridge/twinbridge-core/internal/infrastructure/logging"
	"github.com/twinbridge/twinbridge-core/internal/tenant"
	"github.com/twinbridge/twinbridge-core/internal/twin"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight
// requests to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// HealthChecker reports the health of one infrastructure dependency.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// PollStatus exposes the attribute scheduler's last run. Implemented by
// twin.Scheduler.
type PollStatus interface {
	LastRun() twin.RunInfo
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config     config.APIConfig
	Logger     *logging.Logger
	Directory  *tenant.Directory
	Scheduler  PollStatus
	InstanceID string
	Version    string

	// Health targets, keyed by the name reported in /health.
	Health map[string]HealthChecker
}

// Server is the operations HTTP server.
type Server struct {
	cfg        config.APIConfig
	logger     *logging.Logger
	directory  *tenant.Directory
	scheduler  PollStatus
	instanceID string
	version    string
	health     map[string]HealthChecker
	started    time.Time
	server     *http.Server
}

// New creates the API server. It is not started until Start() is called.
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Directory == nil {
		return nil, fmt.Errorf("tenant directory is required")
	}

	return &Server{
		cfg:        deps.Config,
		logger:     deps.Logger.With("component", "api"),
		directory:  deps.Directory,
		scheduler:  deps.Scheduler,
		instanceID: deps.InstanceID,
		version:    deps.Version,
		health:     deps.Health,
	}, nil
}

// Start begins listening for HTTP connections in a background goroutine.
// The server is stopped with Close().
func (s *Server) Start(_ context.Context) error {
	s.started = time.Now()

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		s.logger.Info("API server starting", "address", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server, waiting for in-flight
// requests up to gracefulShutdownTimeout.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}
