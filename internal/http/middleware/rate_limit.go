package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
)

// RateLimit allows perWindow requests per client IP in each fixed window.
// perWindow <= 0 disables the limiter.
func RateLimit(perWindow int, window time.Duration) gin.HandlerFunc {
	if perWindow <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	counters := cache.New(window, 2*window)

	return func(c *gin.Context) {
		key := c.ClientIP()
		if err := counters.Add(key, 1, window); err == nil {
			c.Next()
			return
		}
		n, err := counters.IncrementInt(key, 1)
		if err != nil {
			// window rolled over between Add and Increment
			counters.Set(key, 1, window)
			n = 1
		}
		if n > perWindow {
			c.Header("Retry-After", strconv.Itoa(int(window.Seconds())))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":      "too many requests, please try again later",
				"code":       "rate_limited",
				"request_id": GetRequestID(c),
			})
			return
		}
		c.Next()
	}
}
