package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

// RateLimit allows limit requests per window for each client IP, with a
// burst of limit. Idle limiters are evicted after a few windows.
func RateLimit(limit int, per time.Duration) func(http.Handler) http.Handler {
	if limit <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	every := rate.Every(per / time.Duration(limit))
	idle := 3 * per
	limiters := gocache.New(idle, idle)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIPForRateLimit(r)
			lim := limiterFor(limiters, ip, every, limit)
			limiters.Set(ip, lim, gocache.DefaultExpiration)
			if !lim.Allow() {
				w.Header().Set("Retry-After", strconv.Itoa(int(per/time.Second)))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"error":"too many requests","details":{"code":"rate_limited"}}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func limiterFor(limiters *gocache.Cache, ip string, every rate.Limit, burst int) *rate.Limiter {
	if v, ok := limiters.Get(ip); ok {
		if lim, ok := v.(*rate.Limiter); ok {
			return lim
		}
	}
	lim := rate.NewLimiter(every, burst)
	if err := limiters.Add(ip, lim, gocache.DefaultExpiration); err != nil {
		// Lost the race; use the stored one.
		if v, ok := limiters.Get(ip); ok {
			if existing, ok := v.(*rate.Limiter); ok {
				return existing
			}
		}
	}
	return lim
}

func clientIPForRateLimit(r *http.Request) string {
	if xf := r.Header.Get("X-Forwarded-For"); xf != "" {
		for _, part := range strings.Split(xf, ",") {
			ip := strings.TrimSpace(part)
			if ip == "" {
				continue
			}
			if net.ParseIP(ip) != nil {
				return ip
			}
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		if net.ParseIP(host) != nil {
			return host
		}
	} else if net.ParseIP(r.RemoteAddr) != nil {
		return r.RemoteAddr
	}

	return r.RemoteAddr
}
