package server

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// loginLimiter throttles login attempts per client IP.
type loginLimiter struct {
	limit rate.Limit
	burst int

	mu      sync.Mutex
	clients map[string]*rate.Limiter
}

// newLoginLimiter allows perMinute attempts per IP with the given burst.
// A non-positive perMinute disables limiting.
func newLoginLimiter(perMinute, burst int) *loginLimiter {
	l := &loginLimiter{limit: rate.Inf, clients: make(map[string]*rate.Limiter)}
	if perMinute > 0 {
		l.limit = rate.Every(time.Minute / time.Duration(perMinute))
		if burst <= 0 {
			burst = 1
		}
		l.burst = burst
	}
	return l
}

func (l *loginLimiter) allow(ip string) bool {
	if l.limit == rate.Inf {
		return true
	}
	l.mu.Lock()
	lim, ok := l.clients[ip]
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
		l.clients[ip] = lim
	}
	l.mu.Unlock()
	return lim.Allow()
}

// prune drops clients whose bucket has refilled. A fresh limiter would treat them
// the same, so nothing is forgotten.
func (l *loginLimiter) prune() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for ip, lim := range l.clients {
		if lim.Tokens() >= float64(l.burst) {
			delete(l.clients, ip)
			n++
		}
	}
	return n
}

func (l *loginLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.allow(clientIP(r)) {
			w.Header().Set("Retry-After", "60")
			respondLogin(w, http.StatusTooManyRequests, loginResponse{Message: "too many login attempts, try again later"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP returns the request's client address without a port.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
