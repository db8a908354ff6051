package middleware

import (
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const limiterIdleTTL = 10 * time.Minute

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// ipRateLimiter keeps one token bucket per client IP
type ipRateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	limit    rate.Limit
	burst    int
	lastGC   time.Time
}

func newIPRateLimiter(requestsPerMinute int) *ipRateLimiter {
	return &ipRateLimiter{
		visitors: make(map[string]*visitor),
		limit:    rate.Every(time.Minute / time.Duration(requestsPerMinute)),
		burst:    requestsPerMinute,
		lastGC:   time.Now(),
	}
}

func (l *ipRateLimiter) get(ip string, now time.Time) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastGC) > limiterIdleTTL {
		for key, v := range l.visitors {
			if now.Sub(v.lastSeen) > limiterIdleTTL {
				delete(l.visitors, key)
			}
		}
		l.lastGC = now
	}

	v, ok := l.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[ip] = v
	}
	v.lastSeen = now
	return v.limiter
}

// GlobalRateLimiter limits every client IP to requestsPerMinute requests
func GlobalRateLimiter(requestsPerMinute int) gin.HandlerFunc {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 100
	}
	limiter := newIPRateLimiter(requestsPerMinute)

	return func(c *gin.Context) {
		now := time.Now()
		reservation := limiter.get(c.ClientIP(), now).ReserveN(now, 1)
		if !reservation.OK() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded"})
			return
		}

		if delay := reservation.DelayFrom(now); delay > 0 {
			reservation.CancelAt(now)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":            "Rate limit exceeded",
				"limit":            requestsPerMinute,
				"per_minute":       1,
				"retry_after_secs": int(math.Ceil(delay.Seconds())),
			})
			return
		}

		c.Next()
	}
}
