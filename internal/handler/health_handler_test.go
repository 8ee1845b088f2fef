package handler_test

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"policonv/internal/handler"
)

func TestHealthHandler_Liveness(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := handler.NewHealthHandler(nil, t.TempDir())
	r.GET("/healthz", h.Liveness)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}

func TestHealthHandler_ReadinessUnwritableSnapshotDir(t *testing.T) {
	gin.SetMode(gin.TestMode)

	// A regular file in place of the snapshot directory makes MkdirAll fail,
	// which must report unavailable before the database is ever touched.
	blocker := filepath.Join(t.TempDir(), "snapshots")
	require.NoError(t, os.WriteFile(blocker, []byte("not a dir"), 0o644))

	r := gin.New()
	h := handler.NewHealthHandler(nil, blocker)
	r.GET("/readyz", h.Readiness)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "snapshot store not writable")
}
