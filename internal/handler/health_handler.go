package handler

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
)

// HealthHandler reports liveness and readiness. Readiness covers the two
// stores the mapping pipeline cannot run without: the jobs database and the
// snapshot directory.
type HealthHandler struct {
	db          *sqlx.DB
	snapshotDir string
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(db *sqlx.DB, snapshotDir string) *HealthHandler {
	return &HealthHandler{db: db, snapshotDir: snapshotDir}
}

// Liveness handles GET /healthz
func (h *HealthHandler) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Readiness handles GET /readyz
func (h *HealthHandler) Readiness(c *gin.Context) {
	if err := h.checkSnapshotDir(); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": "snapshot store not writable"})
		return
	}
	if err := h.db.PingContext(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": "database not reachable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// checkSnapshotDir verifies the snapshot directory exists and accepts writes,
// since page and bundle snapshots land there on every mapping run.
func (h *HealthHandler) checkSnapshotDir() error {
	if err := os.MkdirAll(h.snapshotDir, 0o755); err != nil {
		return err
	}
	marker := filepath.Join(h.snapshotDir, ".readyz")
	if err := os.WriteFile(marker, []byte("ok"), 0o644); err != nil {
		return err
	}
	return os.Remove(marker)
}
