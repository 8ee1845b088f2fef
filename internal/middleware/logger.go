package middleware

import (
	"log"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RequestID injects an X-Request-ID header into the request and response.
// Handlers read it back via the "request_id" context key when logging
// mapping failures.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set("request_id", requestID)
		c.Header("X-Request-ID", requestID)
		c.Next()
	}
}

// healthPaths are polled by orchestrators every few seconds; logging them
// would drown out the job and mapping traffic.
var healthPaths = map[string]bool{
	"/healthz": true,
	"/readyz":  true,
}

// Logger logs each request with method, path, status, size, and latency.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if healthPaths[c.Request.URL.Path] {
			return
		}
		latency := time.Since(start)

		requestID, _ := c.Get("request_id")
		log.Printf("[%s] %s %s %d %dB %s",
			requestID,
			c.Request.Method,
			c.Request.URL.Path,
			c.Writer.Status(),
			c.Writer.Size(),
			latency,
		)
		for _, ginErr := range c.Errors {
			log.Printf("[%s] handler error: %v", requestID, ginErr.Err)
		}
	}
}

// Recovery recovers from panics and returns a 500 error.
func Recovery() gin.HandlerFunc {
	return gin.Recovery()
}
