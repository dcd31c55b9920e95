package middleware

import (
	"log"
	"time"

	"github.com/gin-gonic/gin"
)

// Logger writes one line per request. Search responses also carry their cache outcome.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		cacheState := c.Writer.Header().Get("X-Cache")
		if cacheState == "" {
			cacheState = "-"
		}

		log.Printf("[HTTP] request_id=%s method=%s route=%s path=%s status=%d latency_ms=%.3f cache=%s role=%s ip=%s",
			GetRequestID(c),
			c.Request.Method,
			route,
			c.Request.URL.Path,
			c.Writer.Status(),
			float64(latency.Microseconds())/1000.0,
			cacheState,
			c.GetString(userRoleKey),
			c.ClientIP(),
		)
	}
}
