// Package handler provides HTTP handlers for the histocast API.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/histocast/histocast/internal/api/models"
	"github.com/histocast/histocast/internal/api/response"
	"github.com/histocast/histocast/internal/provider/resilience"
	"github.com/histocast/histocast/internal/weather"
)

// readinessTimeout bounds each dependency check.
const readinessTimeout = 2 * time.Second

// DependencyCheck probes one dependency for readiness.
type DependencyCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// OpsConfig holds the dependencies of the ops endpoints. All fields except
// the build info are optional.
type OpsConfig struct {
	Version    string
	BuildTime  string
	Registry   *resilience.Registry
	Checks     []DependencyCheck
	CacheStats func() weather.CacheStats
}

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	cfg OpsConfig
	now func() time.Time
}

// NewOpsHandler creates a new OpsHandler.
func NewOpsHandler(cfg OpsConfig) *OpsHandler {
	return &OpsHandler{cfg: cfg, now: time.Now}
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(h.now()),
		Details: map[string]any{
			"version":   h.cfg.Version,
			"buildTime": h.cfg.BuildTime,
		},
	})
}

// ReadinessCheck handles GET /v1/ops/ready. It returns 503 when any
// dependency check fails.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	subsystems := h.checkDependencies(r.Context())

	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(h.now()),
	}
	status := http.StatusOK
	for _, s := range subsystems {
		if s.Status != models.HealthStatusOK {
			if health.Details == nil {
				health.Details = make(map[string]any)
			}
			health.Details[s.Name] = *s.Detail
			health.Status = models.HealthStatusFail
			status = http.StatusServiceUnavailable
		}
	}
	response.JSON(w, r, status, health)
}

// SystemStatus handles GET /v1/ops/status - subsystem, upstream provider and
// history cache status.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	status := models.SystemStatus{
		Status:     models.HealthStatusOK,
		Time:       models.Timestamp(h.now()),
		Subsystems: h.checkDependencies(r.Context()),
		Providers:  []models.ProviderStatus{},
	}

	for _, s := range status.Subsystems {
		status.Status = worst(status.Status, s.Status)
	}

	if h.cfg.Registry != nil {
		for _, ph := range h.cfg.Registry.AllHealth() {
			ps := models.ProviderStatus{
				Provider:            ph.Name,
				Status:              providerStatus(ph.Status()),
				CircuitState:        ph.CircuitState.String(),
				ConsecutiveFailures: ph.Counts.ConsecutiveFailures,
			}
			if ph.LastSuccessAt != nil {
				ps.LastSuccessAt = models.TimestampPtr(*ph.LastSuccessAt)
			}
			if ph.LastFailureAt != nil {
				ps.LastFailureAt = models.TimestampPtr(*ph.LastFailureAt)
			}
			if ph.LastError != "" {
				msg := ph.LastError
				ps.Message = &msg
			}
			status.Providers = append(status.Providers, ps)
			status.Status = worst(status.Status, ps.Status)
		}
	}

	if h.cfg.CacheStats != nil {
		stats := h.cfg.CacheStats()
		status.Cache = &models.CacheStatus{
			Provider: stats.Provider,
			Hits:     stats.Hits,
			Misses:   stats.Misses,
			Stale:    stats.Stale,
		}
	}

	response.JSON(w, r, http.StatusOK, status)
}

func (h *OpsHandler) checkDependencies(ctx context.Context) []models.SubsystemStatus {
	subsystems := make([]models.SubsystemStatus, 0, len(h.cfg.Checks))
	for _, c := range h.cfg.Checks {
		checkCtx, cancel := context.WithTimeout(ctx, readinessTimeout)
		err := c.Check(checkCtx)
		cancel()

		s := models.SubsystemStatus{Name: c.Name, Status: models.HealthStatusOK}
		if err != nil {
			detail := err.Error()
			s.Status = models.HealthStatusFail
			s.Detail = &detail
		}
		subsystems = append(subsystems, s)
	}
	return subsystems
}

func providerStatus(s resilience.Status) models.HealthStatus {
	switch s {
	case resilience.StatusUnhealthy:
		return models.HealthStatusFail
	case resilience.StatusDegraded:
		return models.HealthStatusDegraded
	default:
		return models.HealthStatusOK
	}
}

func worst(a, b models.HealthStatus) models.HealthStatus {
	rank := map[models.HealthStatus]int{
		models.HealthStatusOK:       0,
		models.HealthStatusDegraded: 1,
		models.HealthStatusFail:     2,
	}
	if rank[b] > rank[a] {
		return b
	}
	return a
}
