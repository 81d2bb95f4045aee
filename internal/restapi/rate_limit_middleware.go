package restapi

import (
	"net"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"tracker.junat.live/internal/app"
	"tracker.junat.live/internal/clock"
)

const (
	limiterSweepInterval = 5 * time.Minute
	limiterIdleTimeout   = 10 * time.Minute
)

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen atomic.Int64 // unix nanoseconds
}

// RateLimitMiddleware applies a token bucket per client. Clients are
// identified by app.ClientKey, falling back to the remote address.
type RateLimitMiddleware struct {
	mu       sync.RWMutex
	clients  map[string]*clientLimiter
	limit    rate.Limit
	burst    int
	isExempt func(key string) bool
	clock    clock.Clock

	ticker   *time.Ticker
	stop     chan struct{}
	stopOnce sync.Once
}

// NewRateLimitMiddleware allows perInterval requests per interval for each
// client. A negative value disables limiting; zero rejects everything.
func NewRateLimitMiddleware(perInterval int, interval time.Duration, isExempt func(string) bool, c clock.Clock) *RateLimitMiddleware {
	var limit rate.Limit
	switch {
	case perInterval < 0:
		limit = rate.Inf
	case perInterval == 0:
		limit = 0
	default:
		limit = rate.Every(interval / time.Duration(perInterval))
	}
	if isExempt == nil {
		isExempt = func(string) bool { return false }
	}
	if c == nil {
		c = clock.RealClock{}
	}

	rl := &RateLimitMiddleware{
		clients:  make(map[string]*clientLimiter),
		limit:    limit,
		burst:    perInterval,
		isExempt: isExempt,
		clock:    c,
		ticker:   time.NewTicker(limiterSweepInterval),
		stop:     make(chan struct{}),
	}
	go rl.sweepLoop()
	return rl
}

func (rl *RateLimitMiddleware) Handler() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := app.ClientKey(r)
			if key != "" && rl.isExempt(key) {
				next.ServeHTTP(w, r)
				return
			}
			if key == "" {
				key = "addr:" + remoteHost(r)
			}
			if !rl.limiterFor(key).Allow() {
				rl.reject(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (rl *RateLimitMiddleware) limiterFor(key string) *rate.Limiter {
	now := rl.clock.Now().UnixNano()

	rl.mu.RLock()
	c, ok := rl.clients[key]
	rl.mu.RUnlock()
	if ok {
		c.lastSeen.Store(now)
		return c.limiter
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if c, ok := rl.clients[key]; ok {
		c.lastSeen.Store(now)
		return c.limiter
	}
	c = &clientLimiter{limiter: rate.NewLimiter(rl.limit, rl.burst)}
	c.lastSeen.Store(now)
	rl.clients[key] = c
	return c.limiter
}

func (rl *RateLimitMiddleware) reject(w http.ResponseWriter) {
	retryAfter := time.Hour
	if rl.limit > 0 {
		retryAfter = max(time.Second, time.Duration(float64(time.Second)/float64(rl.limit)))
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter.Seconds())))
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.burst))
	w.Header().Set("X-RateLimit-Remaining", "0")
	w.WriteHeader(http.StatusTooManyRequests)
	_, _ = w.Write([]byte(`{"code":429,"currentTime":` + strconv.FormatInt(rl.clock.NowUnixMilli(), 10) +
		`,"text":"rate limit exceeded","version":2}` + "\n"))
}

// sweep drops limiters of clients idle for longer than limiterIdleTimeout.
func (rl *RateLimitMiddleware) sweep() {
	cutoff := rl.clock.Now().Add(-limiterIdleTimeout).UnixNano()

	rl.mu.Lock()
	defer rl.mu.Unlock()
	for key, c := range rl.clients {
		if c.lastSeen.Load() < cutoff {
			delete(rl.clients, key)
		}
	}
}

func (rl *RateLimitMiddleware) sweepLoop() {
	for {
		select {
		case <-rl.ticker.C:
			rl.sweep()
		case <-rl.stop:
			return
		}
	}
}

// Stop ends the sweep goroutine. Safe to call more than once.
func (rl *RateLimitMiddleware) Stop() {
	rl.stopOnce.Do(func() {
		close(rl.stop)
		rl.ticker.Stop()
	})
}

func (rl *RateLimitMiddleware) clientCount() int {
	rl.mu.RLock()
	defer rl.mu.RUnlock()
	return len(rl.clients)
}
