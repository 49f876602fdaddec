package middleware

import (
	"math"
	"net/http"
	"strconv"
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

// limiterStore keeps one token bucket per client key.
type limiterStore struct {
	mu        sync.Mutex
	visitors  map[string]*visitor
	limit     rate.Limit
	burst     int
	lastSweep time.Time
}

func newLimiterStore(limit rate.Limit, burst int) *limiterStore {
	return &limiterStore{
		visitors:  make(map[string]*visitor),
		limit:     limit,
		burst:     burst,
		lastSweep: time.Now(),
	}
}

func (s *limiterStore) get(key string, now time.Time) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	if now.Sub(s.lastSweep) > limiterIdleTTL {
		for k, v := range s.visitors {
			if now.Sub(v.lastSeen) > limiterIdleTTL {
				delete(s.visitors, k)
			}
		}
		s.lastSweep = now
	}

	v, ok := s.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(s.limit, s.burst)}
		s.visitors[key] = v
	}
	v.lastSeen = now
	return v.limiter
}

// RateLimit applies a per-client-IP token bucket.
func RateLimit(requestsPerSecond float64, burst int) gin.HandlerFunc {
	return limit(newLimiterStore(rate.Limit(requestsPerSecond), burst), strconv.FormatFloat(requestsPerSecond, 'f', -1, 64))
}

// AuthRateLimit is the stricter per-IP limit for credential endpoints.
func AuthRateLimit(perMinute int) gin.HandlerFunc {
	if perMinute <= 0 {
		perMinute = 1
	}
	store := newLimiterStore(rate.Every(time.Minute/time.Duration(perMinute)), perMinute)
	return limit(store, strconv.Itoa(perMinute)+"/min")
}

func limit(store *limiterStore, header string) gin.HandlerFunc {
	return func(c *gin.Context) {
		now := time.Now()
		lim := store.get(c.ClientIP(), now)
		c.Header("X-RateLimit-Limit", header)

		r := lim.ReserveN(now, 1)
		if !r.OK() {
			c.Header("Retry-After", "60")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		if delay := r.DelayFrom(now); delay > 0 {
			r.CancelAt(now)
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(delay.Seconds()))))
			c.Header("X-RateLimit-Remaining", "0")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
