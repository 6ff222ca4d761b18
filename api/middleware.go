package api

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// RateLimiter admits or rejects a request for a key
type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// RequestLogger logs every request with its status and latency
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := log.WithFields(log.Fields{
			"method":   c.Request.Method,
			"path":     c.FullPath(),
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
		})
		if c.Writer.Status() >= http.StatusInternalServerError {
			entry.Error("Request failed")
			return
		}
		entry.Debug("Request served")
	}
}

// AdminAuth guards operator endpoints with a static bearer key.
// An empty key disables the endpoints entirely.
func AdminAuth(apiKey string) gin.HandlerFunc {
	expected := []byte(apiKey)

	return func(c *gin.Context) {
		token, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if apiKey == "" || !ok || subtle.ConstantTimeCompare([]byte(token), expected) != 1 {
			abortWithError(c, http.StatusUnauthorized, CodeUnauthorized, "missing or invalid operator credentials")
			return
		}
		c.Next()
	}
}

// RateLimit throttles requests per client. Client IPs are hashed with the salt so raw
// addresses never reach the limiter's store. A nil limiter disables throttling.
func RateLimit(limiter RateLimiter, salt string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}

		allowed, err := limiter.Allow(c.Request.Context(), clientKey(salt, c.ClientIP()))
		if err != nil {
			// Fail open: the store's unique index still enforces one entry per participant
			log.WithError(err).Warn("Rate limiter unavailable, admitting request")
			c.Next()
			return
		}
		if !allowed {
			abortWithError(c, http.StatusTooManyRequests, CodeRateLimited, "too many submissions, try again later")
			return
		}
		c.Next()
	}
}

func clientKey(salt, ip string) string {
	sum := sha256.Sum256([]byte(salt + "|" + ip))
	return hex.EncodeToString(sum[:16])
}
