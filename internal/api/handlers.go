package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/twinbridge/twinbridge-core/internal/twin"
)

// healthCheckTimeout bounds each dependency probe in /health.
const healthCheckTimeout = 3 * time.Second

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/status", s.handleStatus)
		r.Get("/tenants", s.handleTenants)
	})

	return r
}

// healthResponse is the /health payload.
type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// handleHealth probes every registered dependency. Any failing probe
// degrades the overall status and the response code to 503.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status: "ok",
		Checks: make(map[string]string, len(s.health)),
	}

	for name, checker := range s.health {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		err := checker.HealthCheck(ctx)
		cancel()

		if err != nil {
			resp.Status = "degraded"
			resp.Checks[name] = err.Error()
			continue
		}
		resp.Checks[name] = "ok"
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

// statusResponse is the /status payload.
type statusResponse struct {
	InstanceID    string       `json:"instance_id"`
	Version       string       `json:"version"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	LastPoll      twin.RunInfo `json:"last_poll"`
}

// handleStatus reports instance identity and scheduler progress.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	resp := statusResponse{
		InstanceID:    s.instanceID,
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.started).Seconds()),
	}
	if s.scheduler != nil {
		resp.LastPoll = s.scheduler.LastRun()
	}
	writeJSON(w, http.StatusOK, resp)
}

// tenantResponse is one entry of the /tenants payload. Connection
// strings and other credentials deliberately never appear here.
type tenantResponse struct {
	Tenant     string `json:"tenant"`
	Hub        string `json:"hub"`
	LocalToHub bool   `json:"local_to_hub"`
	HubToLocal bool   `json:"hub_to_local"`
}

// handleTenants lists the tenant/hub mapping with credentials redacted.
func (s *Server) handleTenants(w http.ResponseWriter, _ *http.Request) {
	names := s.directory.Tenants()
	resp := make([]tenantResponse, 0, len(names))

	for _, name := range names {
		cfg, ok := s.directory.ConfigFor(name)
		if !ok {
			continue
		}
		resp = append(resp, tenantResponse{
			Tenant:     name,
			Hub:        cfg.Name,
			LocalToHub: cfg.LocalToHub,
			HubToLocal: cfg.HubToLocal,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}
