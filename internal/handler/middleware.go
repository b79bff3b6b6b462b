package handler

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/BloggingApp/currents-service/internal/dto"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

func (h *Handler) loggerMiddleware(c *gin.Context) {
	start := time.Now()
	c.Next()

	fields := []zap.Field{
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.Int("status", c.Writer.Status()),
		zap.Duration("latency", time.Since(start)),
		zap.String("client_ip", c.ClientIP()),
	}
	if len(c.Errors) > 0 {
		fields = append(fields, zap.String("errors", c.Errors.String()))
	}

	if c.Writer.Status() >= 500 {
		h.logger.Error("request failed", fields...)
		return
	}
	h.logger.Info("request", fields...)
}

func (h *Handler) metricsMiddleware(c *gin.Context) {
	start := time.Now()
	c.Next()

	route := c.FullPath()
	if route == "" {
		route = "unmatched"
	}
	h.metrics.ObserveHTTP(route, c.Request.Method, strconv.Itoa(c.Writer.Status()), time.Since(start))
}

type limiterEntry struct {
	l        *rate.Limiter
	lastSeen time.Time
}

// limiterPool keeps one token bucket per key. Idle buckets are swept on
// access once per sweepEvery.
type limiterPool struct {
	mu         sync.Mutex
	m          map[string]*limiterEntry
	rps        float64
	burst      int
	ttl        time.Duration
	sweepEvery time.Duration
	lastSweep  time.Time
}

func newLimiterPool(rps float64, burst int) *limiterPool {
	if rps <= 0 {
		rps = 5
	}
	if burst <= 0 {
		burst = 10
	}
	return &limiterPool{
		m:          make(map[string]*limiterEntry),
		rps:        rps,
		burst:      burst,
		ttl:        10 * time.Minute,
		sweepEvery: time.Minute,
		lastSweep:  time.Now(),
	}
}

func (p *limiterPool) Allow(key string) bool {
	now := time.Now()

	p.mu.Lock()
	if now.Sub(p.lastSweep) >= p.sweepEvery {
		for k, e := range p.m {
			if now.Sub(e.lastSeen) > p.ttl {
				delete(p.m, k)
			}
		}
		p.lastSweep = now
	}

	e, ok := p.m[key]
	if !ok {
		e = &limiterEntry{l: rate.NewLimiter(rate.Limit(p.rps), p.burst)}
		p.m[key] = e
	}
	e.lastSeen = now
	p.mu.Unlock()

	return e.l.Allow()
}

// rateLimitMiddleware must run after authMiddleware.
func (h *Handler) rateLimitMiddleware(c *gin.Context) {
	key := c.ClientIP()
	if user := h.getCachedUserFromRequest(c); user != nil {
		key = user.ID.String()
	}

	if !h.limiter.Allow(key) {
		c.AbortWithStatusJSON(http.StatusTooManyRequests, dto.NewErrorResponse(errTooManyRequests.Error()))
		return
	}

	c.Next()
}
