package server

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// responseWriter captures the status code for request logging.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// loggingMiddleware logs request metadata after each handled request.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		s.logger.LogRequest(r.Method, r.URL.Path, clientIP(r), rw.statusCode, time.Since(start))
	})
}

// ipLimiters hands out one token bucket per client IP. Buckets idle for longer
// than staleAfter are dropped on the next sweep.
type ipLimiters struct {
	mu       sync.Mutex
	limiters map[string]*ipLimiter
	rps      rate.Limit
	burst    int

	lastSweep time.Time
}

type ipLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

const staleAfter = 10 * time.Minute

func newIPLimiters(rps float64, burst int) *ipLimiters {
	return &ipLimiters{
		limiters:  make(map[string]*ipLimiter),
		rps:       rate.Limit(rps),
		burst:     burst,
		lastSweep: time.Now(),
	}
}

func (l *ipLimiters) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if now.Sub(l.lastSweep) > staleAfter {
		for k, v := range l.limiters {
			if now.Sub(v.lastSeen) > staleAfter {
				delete(l.limiters, k)
			}
		}
		l.lastSweep = now
	}

	lim, ok := l.limiters[ip]
	if !ok {
		lim = &ipLimiter{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.limiters[ip] = lim
	}
	lim.lastSeen = now
	return lim.limiter.Allow()
}

// rateLimitMiddleware enforces the configured per-IP request rate on the API
// routes. Disabled limits pass everything through.
func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	if !s.config.Server.RateLimit.Enabled {
		return next
	}

	limiters := newIPLimiters(s.config.Server.RateLimit.RPS, s.config.Server.RateLimit.Burst)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiters.allow(clientIP(r)) {
			w.Header().Set("Retry-After", "1")
			s.writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP extracts the client address, honoring proxy headers.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return xff
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
