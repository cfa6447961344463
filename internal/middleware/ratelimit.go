package middleware

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultGeneralRPM = 100
	defaultAuthRPM    = 10

	limiterSweepThreshold = 1000
	limiterIdleTTL        = 10 * time.Minute
)

// Credential endpoints share the strict bucket: every guess at a password
// or reset code costs from it.
var strictPrefixes = []string{
	"/api/v1/auth/login",
	"/api/v1/auth/signup",
	"/api/v1/auth/password-reset",
}

type clientBuckets struct {
	general  *rate.Limiter
	strict   *rate.Limiter
	lastSeen time.Time
}

type RateLimitMiddleware struct {
	generalRPM int
	authRPM    int
	// trustedProxies may set X-Forwarded-For and X-Real-IP. Headers from any
	// other peer are ignored.
	trustedProxies []netip.Prefix
	now            func() time.Time

	mu      sync.Mutex
	clients map[string]*clientBuckets
}

func NewRateLimitMiddleware(generalRPM int, authRPM int, trustedProxies []netip.Prefix) *RateLimitMiddleware {
	if generalRPM == 0 {
		generalRPM = defaultGeneralRPM
	}
	if authRPM <= 0 {
		authRPM = defaultAuthRPM
	}

	return &RateLimitMiddleware{
		generalRPM:     generalRPM,
		authRPM:        authRPM,
		trustedProxies: trustedProxies,
		now:            time.Now,
		clients:        map[string]*clientBuckets{},
	}
}

func (m *RateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buckets := m.buckets(m.clientIP(r))

		limiter := buckets.general
		if isStrictPath(r.URL.Path) {
			limiter = buckets.strict
		}

		if limiter != nil && !limiter.Allow() {
			w.Header().Set("Retry-After", "60")
			writeErrorEnvelope(w, http.StatusTooManyRequests, "RATE_LIMITED", "Too many requests")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func isStrictPath(path string) bool {
	path = strings.ToLower(path)
	for _, prefix := range strictPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

func (m *RateLimitMiddleware) buckets(clientIP string) *clientBuckets {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if existing, ok := m.clients[clientIP]; ok {
		existing.lastSeen = now
		m.sweepLocked(now)
		return existing
	}

	created := &clientBuckets{
		general:  newMinuteLimiter(m.generalRPM),
		strict:   newMinuteLimiter(m.authRPM),
		lastSeen: now,
	}
	m.clients[clientIP] = created
	m.sweepLocked(now)

	return created
}

// newMinuteLimiter returns nil for a negative rpm, which disables limiting.
func newMinuteLimiter(rpm int) *rate.Limiter {
	if rpm < 0 {
		return nil
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), rpm)
}

func (m *RateLimitMiddleware) sweepLocked(now time.Time) {
	if len(m.clients) < limiterSweepThreshold {
		return
	}

	cutoff := now.Add(-limiterIdleTTL)
	for ip, buckets := range m.clients {
		if buckets.lastSeen.Before(cutoff) {
			delete(m.clients, ip)
		}
	}
}

// clientIP is the peer address unless the peer is a trusted proxy. Behind
// trusted proxies X-Forwarded-For is read right to left and the first hop
// that is not itself a trusted proxy is the client.
func (m *RateLimitMiddleware) clientIP(r *http.Request) string {
	peer := peerIP(r)
	if !m.trusted(peer) {
		return peer
	}

	if forwarded := r.Header.Values("X-Forwarded-For"); len(forwarded) > 0 {
		hops := strings.Split(strings.Join(forwarded, ","), ",")
		for i := len(hops) - 1; i >= 0; i-- {
			hop := strings.TrimSpace(hops[i])
			addr, err := netip.ParseAddr(hop)
			if err != nil {
				return peer
			}
			if i == 0 || !m.trusted(addr.String()) {
				return addr.String()
			}
		}
	}

	if realIP, err := netip.ParseAddr(strings.TrimSpace(r.Header.Get("X-Real-IP"))); err == nil {
		return realIP.String()
	}
	return peer
}

func (m *RateLimitMiddleware) trusted(ip string) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, prefix := range m.trustedProxies {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

// peerIP is the host part of the connection's remote address.
func peerIP(r *http.Request) string {
	remote := strings.TrimSpace(r.RemoteAddr)
	if host, _, err := net.SplitHostPort(remote); err == nil && host != "" {
		return host
	}
	if remote == "" {
		return "unknown"
	}
	return remote
}
