package server

import (
	"net/http"
	"runtime/debug"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	headerRequestID = "X-Request-ID"
	ctxRequestID    = "request_id"
	ctxUserID       = "user_id"
)

// RequestID propagates the caller's X-Request-ID or assigns a new one.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(headerRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(ctxRequestID, id)
		c.Header(headerRequestID, id)
		c.Next()
	}
}

// Logging logs one line per request.
func Logging(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info("request",
			zap.String("id", c.GetString(ctxRequestID)),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("remote", c.ClientIP()),
		)
	}
}

// Recovery logs panics and answers 500.
func Recovery(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				log.Error("panic recovered", zap.Any("panic", rec), zap.ByteString("stack", debug.Stack()))
				abortError(c, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
			}
		}()
		c.Next()
	}
}

const (
	visitorIdle   = 10 * time.Minute
	sweepInterval = 5 * time.Minute
)

type visitor struct {
	limiter *rate.Limiter
	last    time.Time
}

type ipLimiter struct {
	rps   rate.Limit
	burst int

	mu        sync.Mutex
	visitors  map[string]*visitor
	lastSweep time.Time
}

func (l *ipLimiter) allow(ip string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastSweep) > sweepInterval {
		for k, v := range l.visitors {
			if now.Sub(v.last) > visitorIdle {
				delete(l.visitors, k)
			}
		}
		l.lastSweep = now
	}

	v, ok := l.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.visitors[ip] = v
	}
	v.last = now
	return v.limiter.AllowN(now, 1)
}

// RateLimit applies a per-IP token bucket. Idle visitors are swept on
// access.
func RateLimit(rps float64, burst int) gin.HandlerFunc {
	l := &ipLimiter{
		rps:       rate.Limit(rps),
		burst:     burst,
		visitors:  map[string]*visitor{},
		lastSweep: time.Now(),
	}
	return func(c *gin.Context) {
		if !l.allow(c.ClientIP(), time.Now()) {
			abortError(c, http.StatusTooManyRequests, http.StatusText(http.StatusTooManyRequests))
			return
		}
		c.Next()
	}
}
