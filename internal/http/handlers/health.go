// Package handlers provides HTTP API handlers for ffmpegfarmd.
package handlers

import (
	"context"
	"runtime"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"gorm.io/gorm"
)

// HealthHandler handles health, liveness and readiness check endpoints.
type HealthHandler struct {
	version   string
	startTime time.Time
	db        *gorm.DB
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(version string) *HealthHandler {
	return &HealthHandler{
		version:   version,
		startTime: time.Now(),
	}
}

// WithDB sets the database connection used for readiness and health checks.
func (h *HealthHandler) WithDB(db *gorm.DB) *HealthHandler {
	h.db = db
	return h
}

// Register registers the health routes with the API.
func (h *HealthHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "getHealth",
		Method:      "GET",
		Path:        "/health",
		Summary:     "Health check",
		Description: "Returns detailed health status of the service, including database connectivity.",
		Tags:        []string{"System"},
	}, h.GetHealth)

	huma.Register(api, huma.Operation{
		OperationID: "getLivez",
		Method:      "GET",
		Path:        "/livez",
		Summary:     "Liveness probe",
		Description: "Returns ok as long as the process is running and handling requests.",
		Tags:        []string{"System"},
	}, h.GetLivez)

	huma.Register(api, huma.Operation{
		OperationID: "getReadyz",
		Method:      "GET",
		Path:        "/readyz",
		Summary:     "Readiness probe",
		Description: "Returns ready once the database is reachable and the dispatcher can serve jobs.",
		Tags:        []string{"System"},
	}, h.GetReadyz)
}

// HealthInput is the input for the health check endpoint.
type HealthInput struct{}

// HealthOutput is the output for the health check endpoint.
type HealthOutput struct {
	Body HealthResponse
}

// HealthResponse describes the overall health of the service.
type HealthResponse struct {
	Status        string           `json:"status" example:"healthy"`
	Timestamp     string           `json:"timestamp"`
	Version       string           `json:"version"`
	Uptime        string           `json:"uptime"`
	UptimeSeconds float64          `json:"uptime_seconds"`
	CPUInfo       CPUInfo          `json:"cpu"`
	Components    HealthComponents `json:"components"`
}

// CPUInfo reports the number of cores available to the process.
type CPUInfo struct {
	Cores int `json:"cores"`
}

// HealthComponents reports the status of the service's direct dependencies.
type HealthComponents struct {
	Database  DatabaseHealth  `json:"database"`
	Scheduler SchedulerHealth `json:"scheduler"`
}

// DatabaseHealth reports database connectivity and responsiveness.
type DatabaseHealth struct {
	Status         string  `json:"status" example:"ok"`
	ResponseTimeMS float64 `json:"response_time_ms"`
}

// SchedulerHealth reports dispatcher availability. The dispatcher has no
// background goroutines of its own (claims happen on request), so this is
// "ok" whenever the process is serving requests at all.
type SchedulerHealth struct {
	Status string `json:"status" example:"ok"`
}

// GetHealth returns the detailed health status of the service.
func (h *HealthHandler) GetHealth(ctx context.Context, input *HealthInput) (*HealthOutput, error) {
	now := time.Now()
	uptime := now.Sub(h.startTime)

	return &HealthOutput{
		Body: HealthResponse{
			Status:        "healthy",
			Timestamp:     now.UTC().Format(time.RFC3339),
			Version:       h.version,
			Uptime:        uptime.Round(time.Second).String(),
			UptimeSeconds: uptime.Seconds(),
			CPUInfo:       CPUInfo{Cores: runtime.NumCPU()},
			Components: HealthComponents{
				Database:  h.getDatabaseHealth(ctx),
				Scheduler: SchedulerHealth{Status: "ok"},
			},
		},
	}, nil
}

// LivezInput is the input for the liveness probe.
type LivezInput struct{}

// LivezOutput is the output for the liveness probe.
type LivezOutput struct {
	Body LivezResponse
}

// LivezResponse is a minimal liveness signal.
type LivezResponse struct {
	Status string `json:"status" example:"ok"`
}

// GetLivez reports liveness. It never depends on the database: a stuck DB
// connection should surface via GetReadyz, not take the process out of
// rotation entirely.
func (h *HealthHandler) GetLivez(ctx context.Context, input *LivezInput) (*LivezOutput, error) {
	return &LivezOutput{Body: LivezResponse{Status: "ok"}}, nil
}

// ReadyzInput is the input for the readiness probe.
type ReadyzInput struct{}

// ReadyzOutput is the output for the readiness probe.
type ReadyzOutput struct {
	Body ReadyzResponse
}

// ReadyzResponse reports whether the service is ready to accept traffic.
type ReadyzResponse struct {
	Status     string            `json:"status" example:"ready"`
	Components map[string]string `json:"components"`
}

// GetReadyz reports readiness: not_ready until a database has been wired in
// and responds to a ping.
func (h *HealthHandler) GetReadyz(ctx context.Context, input *ReadyzInput) (*ReadyzOutput, error) {
	components := map[string]string{"scheduler": "ok"}
	status := "ready"

	if h.db == nil {
		components["database"] = "not_configured"
		status = "not_ready"
	} else if sqlDB, err := h.db.DB(); err != nil || sqlDB.PingContext(ctx) != nil {
		components["database"] = "error"
		status = "not_ready"
	} else {
		components["database"] = "ok"
	}

	return &ReadyzOutput{Body: ReadyzResponse{Status: status, Components: components}}, nil
}

// getDatabaseHealth pings the database and reports its responsiveness.
func (h *HealthHandler) getDatabaseHealth(ctx context.Context) DatabaseHealth {
	if h.db == nil {
		return DatabaseHealth{Status: "unknown"}
	}

	sqlDB, err := h.db.DB()
	if err != nil {
		return DatabaseHealth{Status: "error"}
	}

	start := time.Now()
	err = sqlDB.PingContext(ctx)
	responseMS := float64(time.Since(start).Microseconds()) / 1000

	status := "ok"
	if err != nil {
		status = "error"
	}

	return DatabaseHealth{Status: status, ResponseTimeMS: responseMS}
}
