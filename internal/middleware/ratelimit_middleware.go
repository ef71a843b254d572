package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

type ipLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimitPerIP applies a token bucket per client IP. Buckets idle for longer
// than ten minutes are dropped.
func RateLimitPerIP(rps rate.Limit, burst int) gin.HandlerFunc {
	var (
		mu        sync.Mutex
		buckets   = make(map[string]*ipLimiter)
		lastSweep = time.Now()
	)
	const idle = 10 * time.Minute

	return func(c *gin.Context) {
		ip := c.ClientIP()
		now := time.Now()

		mu.Lock()
		if now.Sub(lastSweep) > idle {
			for k, b := range buckets {
				if now.Sub(b.lastSeen) > idle {
					delete(buckets, k)
				}
			}
			lastSweep = now
		}
		b, ok := buckets[ip]
		if !ok {
			b = &ipLimiter{limiter: rate.NewLimiter(rps, burst)}
			buckets[ip] = b
		}
		b.lastSeen = now
		allowed := b.limiter.Allow()
		mu.Unlock()

		if !allowed {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, ErrorResponse{Error: "Too many requests"})
			return
		}
		c.Next()
	}
}
