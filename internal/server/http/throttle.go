package httpserver

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const throttleIdle = 10 * time.Minute

// ipThrottle keeps one token bucket per client address.
type ipThrottle struct {
	rps   rate.Limit
	burst int
	now   func() time.Time

	mu       sync.Mutex
	buckets  map[string]*bucket
	lastScan time.Time
}

type bucket struct {
	lim  *rate.Limiter
	seen time.Time
}

func newIPThrottle(rps float64, burst int) *ipThrottle {
	return &ipThrottle{rps: rate.Limit(rps), burst: max(burst, 1), now: time.Now, buckets: map[string]*bucket{}}
}

func (t *ipThrottle) allow(ip string) bool {
	now := t.now()
	t.mu.Lock()
	defer t.mu.Unlock()

	if now.Sub(t.lastScan) > throttleIdle {
		for k, b := range t.buckets {
			if now.Sub(b.seen) > throttleIdle {
				delete(t.buckets, k)
			}
		}
		t.lastScan = now
	}

	b, ok := t.buckets[ip]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(t.rps, t.burst)}
		t.buckets[ip] = b
	}
	b.seen = now
	return b.lim.AllowN(now, 1)
}

// Throttle returns a middleware that answers 429 once a client address exceeds rps
// requests per second beyond burst.
func Throttle(rps float64, burst int) gin.HandlerFunc {
	t := newIPThrottle(rps, burst)
	return t.handle
}

func (t *ipThrottle) handle(c *gin.Context) {
	// ClientIP only honours forwarding headers from trusted proxies
	if !t.allow(c.ClientIP()) {
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
		return
	}
	c.Next()
}
