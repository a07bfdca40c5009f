package serv

import (
	"context"
	"net"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

type ctxKey int

const requestIDKey ctxKey = iota

const requestIDHeader = "X-Request-Id"

// requestID tags every request with an id, reusing a valid incoming
// X-Request-Id.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		ctx := context.WithValue(r.Context(), requestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// rateLimiter keeps one token bucket per client ip
type rateLimiter struct {
	conf     RateLimiter
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func newRateLimiter(conf RateLimiter) *rateLimiter {
	return &rateLimiter{conf: conf, limiters: make(map[string]*rate.Limiter)}
}

func (rl *rateLimiter) limiter(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	l, ok := rl.limiters[ip]
	if !ok {
		l = rate.NewLimiter(rate.Limit(rl.conf.Rate), rl.conf.Bucket)
		rl.limiters[ip] = l
	}
	return l
}

func (rl *rateLimiter) clientIP(r *http.Request) string {
	if rl.conf.IPHeader != "" {
		if v := r.Header.Get(rl.conf.IPHeader); v != "" {
			ip, _, _ := strings.Cut(v, ",")
			return strings.TrimSpace(ip)
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (rl *rateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.limiter(rl.clientIP(r)).Allow() {
			writeJSONError(w, http.StatusTooManyRequests, http.StatusText(http.StatusTooManyRequests))
			return
		}
		next.ServeHTTP(w, r)
	})
}
