package http

import (
	"net"
	stdhttp "net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// handshakeLimiter is a per-IP token bucket for live connection handshakes.
type handshakeLimiter struct {
	mu     sync.Mutex
	limits map[string]*rate.Limiter
	r      rate.Limit
	b      int
}

func newHandshakeLimiter(perSecond float64, burst int) *handshakeLimiter {
	if perSecond <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	return &handshakeLimiter{
		limits: make(map[string]*rate.Limiter),
		r:      rate.Limit(perSecond),
		b:      burst,
	}
}

func (l *handshakeLimiter) allow(r *stdhttp.Request) bool {
	if l == nil {
		return true
	}
	return l.limiter(clientIP(r)).Allow()
}

func (l *handshakeLimiter) limiter(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	lim, ok := l.limits[ip]
	if !ok {
		lim = rate.NewLimiter(l.r, l.b)
		l.limits[ip] = lim
	}
	return lim
}

// startCleanup drops buckets that refilled completely, until stop is closed.
func (l *handshakeLimiter) startCleanup(every time.Duration, stop <-chan struct{}) {
	if l == nil {
		return
	}
	go func() {
		ticker := time.NewTicker(every)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				l.sweep(time.Now())
			case <-stop:
				return
			}
		}
	}()
}

func (l *handshakeLimiter) sweep(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for ip, lim := range l.limits {
		if lim.TokensAt(now) >= float64(lim.Burst()) {
			delete(l.limits, ip)
			removed++
		}
	}
	return removed
}

func clientIP(r *stdhttp.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		ip = r.RemoteAddr
	}
	if ip == "" {
		ip = "unknown"
	}
	return ip
}
