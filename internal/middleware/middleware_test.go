package middleware_test

import (
	"bytes"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"policonv/internal/middleware"
)

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	orig := log.Writer()
	log.SetOutput(&buf)
	t.Cleanup(func() { log.SetOutput(orig) })
	return &buf
}

func setupLoggedRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.RequestID(), middleware.Logger())
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/api/v1/jobs", func(c *gin.Context) { c.String(http.StatusOK, "[]") })
	return r
}

func TestRequestID_GeneratesWhenAbsent(t *testing.T) {
	r := setupLoggedRouter()

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/jobs", nil))

	id := w.Header().Get("X-Request-ID")
	require.NotEmpty(t, id)
	_, err := uuid.Parse(id)
	assert.NoError(t, err)
}

func TestRequestID_EchoesCallerValue(t *testing.T) {
	r := setupLoggedRouter()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs", nil)
	req.Header.Set("X-Request-ID", "caller-supplied-id")
	r.ServeHTTP(w, req)

	assert.Equal(t, "caller-supplied-id", w.Header().Get("X-Request-ID"))
}

func TestLogger_RecordsJobTraffic(t *testing.T) {
	buf := captureLog(t)
	r := setupLoggedRouter()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs", nil)
	req.Header.Set("X-Request-ID", "req-1")
	r.ServeHTTP(w, req)

	assert.Contains(t, buf.String(), "[req-1] GET /api/v1/jobs 200")
}

func TestLogger_SkipsHealthPolling(t *testing.T) {
	buf := captureLog(t)
	r := setupLoggedRouter()

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, buf.String())
}
