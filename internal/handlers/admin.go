package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HealthChecker reports whether a dependency is reachable
type HealthChecker interface {
	Health(ctx context.Context) error
}

// AdminHandler serves health and metrics endpoints
type AdminHandler struct {
	checks   map[string]HealthChecker
	gatherer prometheus.Gatherer
	timeout  time.Duration
}

// NewAdminHandler creates a new admin handler. A nil gatherer falls back to
// the default prometheus registry.
func NewAdminHandler(gatherer prometheus.Gatherer, checks map[string]HealthChecker) *AdminHandler {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return &AdminHandler{checks: checks, gatherer: gatherer, timeout: 5 * time.Second}
}

// HealthResponse is the body of GET /health
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// Health handles GET /health
func (h *AdminHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	resp := HealthResponse{Status: "ok", Checks: make(map[string]string, len(h.checks))}
	for name, checker := range h.checks {
		if err := checker.Health(ctx); err != nil {
			slog.Warn("Health check failed", "check", name, "error", err)
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
	c.JSON(status, resp)
}

// Metrics returns the prometheus scrape handler
func (h *AdminHandler) Metrics() gin.HandlerFunc {
	return gin.WrapH(promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))
}
