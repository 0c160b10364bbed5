package handlers

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
)

// PingFunc reports whether one backing service is reachable.
type PingFunc func(ctx context.Context) error

type HealthHandler struct {
	checks  map[string]PingFunc
	timeout time.Duration
}

// create a new instance of the health handler
func NewHealthHandler(checks map[string]PingFunc) *HealthHandler {
	return &HealthHandler{checks: checks, timeout: time.Second}
}

func (h *HealthHandler) Healthz(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Readyz pings every dependency; one failure makes the service not ready.
func (h *HealthHandler) Readyz(ctx *gin.Context) {
	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	results := gin.H{}
	ready := true

	for _, name := range names {
		cctx, cancel := context.WithTimeout(ctx.Request.Context(), h.timeout)
		err := h.checks[name](cctx)
		cancel()

		if err != nil {
			ready = false
			results[name] = "down"
			continue
		}
		results[name] = "up"
	}

	if !ready {
		ctx.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "checks": results})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"status": "ready", "checks": results})
}
