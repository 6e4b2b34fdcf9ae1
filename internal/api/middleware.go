package api

import (
	"net/http"
	"sync"
	"time"

	"studykit-worker/internal/logger"

	"github.com/gin-gonic/gin"
)

// SecurityHeadersMiddleware sets the usual security headers plus CORS.
func SecurityHeadersMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, X-User-ID")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// RequestLogger logs each request once it completes.
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []interface{}{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
			"client_ip", c.ClientIP(),
		}
		if c.Writer.Status() >= 500 {
			log.Error("Request failed", fields...)
		} else if c.Writer.Status() >= 400 {
			log.Warn("Request rejected", fields...)
		} else {
			log.Info("Request handled", fields...)
		}
	}
}

// RateLimitMiddleware applies a per-IP sliding-window limit. State is
// in-process only; a multi-instance deployment needs the limit at the
// gateway instead.
func RateLimitMiddleware(requestsPerMinute int) gin.HandlerFunc {
	var mu sync.Mutex
	clients := make(map[string][]time.Time)

	return func(c *gin.Context) {
		clientIP := c.ClientIP()
		now := time.Now()

		mu.Lock()
		valid := clients[clientIP][:0]
		for _, ts := range clients[clientIP] {
			if now.Sub(ts) < time.Minute {
				valid = append(valid, ts)
			}
		}
		clients[clientIP] = valid
		limited := len(valid) >= requestsPerMinute
		if !limited {
			clients[clientIP] = append(clients[clientIP], now)
		}
		mu.Unlock()

		if limited {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":       "Rate limit exceeded",
				"retry_after": "60 seconds",
			})
			c.Abort()
			return
		}
		c.Next()
	}
}
