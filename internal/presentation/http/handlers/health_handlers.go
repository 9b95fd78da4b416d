package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/openpulse/openpulse-go/internal/infrastructure/observability/performance"
	"github.com/openpulse/openpulse-go/internal/infrastructure/persistence/columnar"
	"github.com/openpulse/openpulse-go/internal/infrastructure/persistence/database"
)

// HealthHandlers exposes liveness and readiness probes.
type HealthHandlers struct {
	db        *database.DB
	columnar  *columnar.Store
	perf      *performance.Tracker
	startedAt time.Time
}

// NewHealthHandlers creates health handlers with injected dependencies
func NewHealthHandlers(db *database.DB, store *columnar.Store, perf *performance.Tracker) *HealthHandlers {
	return &HealthHandlers{
		db:        db,
		columnar:  store,
		perf:      perf,
		startedAt: time.Now(),
	}
}

// GetHealth handles GET /health - reports connectivity of both stores.
func (h *HealthHandlers) GetHealth(c *gin.Context) {
	status := http.StatusOK

	dbStatus := "ok"
	if err := h.db.Ping(); err != nil {
		status = http.StatusServiceUnavailable
		dbStatus = err.Error()
	}

	columnarStatus := "ok"
	if err := h.columnar.Ping(c.Request.Context()); err != nil {
		status = http.StatusServiceUnavailable
		columnarStatus = err.Error()
	}

	c.JSON(status, gin.H{
		"status":           statusWord(status),
		"database":         dbStatus,
		"columnar":         columnarStatus,
		"uptime":           time.Since(h.startedAt).Round(time.Second).String(),
		"recentOperations": len(h.perf.GetRecentMetrics(5 * time.Minute)),
	})
}

func statusWord(status int) string {
	if status == http.StatusOK {
		return "healthy"
	}
	return "degraded"
}
