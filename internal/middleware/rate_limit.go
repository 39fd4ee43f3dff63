// internal/middleware/rate_limit.go
package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/shareview/insights-backend/internal/utils"
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// KeyFunc picks the bucket a request is counted against.
type KeyFunc func(c *gin.Context) string

type RateLimiter struct {
	visitors map[string]*visitor
	mtx      sync.Mutex
	rate     rate.Limit
	burst    int
	key      KeyFunc
}

func NewRateLimiter(r rate.Limit, b int, key KeyFunc) *RateLimiter {
	if key == nil {
		key = ClientIP
	}
	rl := &RateLimiter{
		visitors: make(map[string]*visitor),
		rate:     r,
		burst:    b,
		key:      key,
	}

	go rl.cleanupVisitors()

	return rl
}

func ClientIP(c *gin.Context) string {
	return c.ClientIP()
}

// ClientIPAndToken counts each guest token separately per client.
func ClientIPAndToken(c *gin.Context) string {
	return c.ClientIP() + "|" + utils.HashString(c.Param("token"))
}

func (rl *RateLimiter) cleanupVisitors() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		rl.mtx.Lock()
		for key, v := range rl.visitors {
			if time.Since(v.lastSeen) > 3*time.Minute {
				delete(rl.visitors, key)
			}
		}
		rl.mtx.Unlock()
	}
}

func (rl *RateLimiter) getVisitor(key string) *rate.Limiter {
	rl.mtx.Lock()
	defer rl.mtx.Unlock()

	v, exists := rl.visitors[key]
	if !exists {
		limiter := rate.NewLimiter(rl.rate, rl.burst)
		rl.visitors[key] = &visitor{limiter, time.Now()}
		return limiter
	}

	v.lastSeen = time.Now()
	return v.limiter
}

func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.getVisitor(rl.key(c)).Allow() {
			utils.ErrorResponse(c, http.StatusTooManyRequests, "RATE_LIMITED", "Rate limit exceeded. Please try again later.", nil)
			c.Abort()
			return
		}
		c.Next()
	}
}

var (
	generalLimiter = NewRateLimiter(rate.Every(100*time.Millisecond), 20, ClientIP)
	guestLimiter   = NewRateLimiter(rate.Every(time.Second), 10, ClientIP)
	unlockLimiter  = NewRateLimiter(rate.Every(time.Minute), 5, ClientIPAndToken)
)

func GeneralRateLimit() gin.HandlerFunc {
	return generalLimiter.Middleware()
}

// GuestRateLimit throttles the unauthenticated token read paths.
func GuestRateLimit() gin.HandlerFunc {
	return guestLimiter.Middleware()
}

// UnlockRateLimit throttles password attempts per client and token.
func UnlockRateLimit() gin.HandlerFunc {
	return unlockLimiter.Middleware()
}
