package api

import (
	"crypto/subtle"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cuemby/tabwarden/pkg/log"
	"golang.org/x/time/rate"
)

// MiddlewareConfig controls access, CORS and rate limiting for the API
type MiddlewareConfig struct {
	// AllowedIPs lists client IPs or CIDRs allowed to call the API. Empty
	// allows everyone.
	AllowedIPs []string

	// AllowedOrigins lists CORS origins. "*" allows any origin.
	AllowedOrigins []string

	// RequestsPerSecond and Burst limit each client. Zero disables the limit.
	RequestsPerSecond float64
	Burst             int

	// AgentToken, when set, must accompany every request that carries an
	// Origin header. Only the injected tab agents know it; web pages and
	// other local origins do not.
	AgentToken string
}

// DefaultMiddlewareConfig allows loopback callers from any page origin
func DefaultMiddlewareConfig() MiddlewareConfig {
	return MiddlewareConfig{
		AllowedIPs:        []string{"127.0.0.0/8", "::1"},
		AllowedOrigins:    []string{"*"},
		RequestsPerSecond: 20,
		Burst:             40,
	}
}

// Middleware wraps API handlers with access control, CORS, rate limiting and
// request logging
type Middleware struct {
	cfg MiddlewareConfig

	rateLimiters map[string]*limiterEntry
	mu           sync.Mutex
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewMiddleware creates a middleware chain
func NewMiddleware(cfg MiddlewareConfig) *Middleware {
	return &Middleware{
		cfg:          cfg,
		rateLimiters: make(map[string]*limiterEntry),
	}
}

// Wrap applies the middleware to next
func (m *Middleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		if ok, reason := m.CheckAccessControl(r); !ok {
			http.Error(w, reason, http.StatusForbidden)
			return
		}

		m.applyCORS(w, r)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		if ok, reason := m.CheckAgentToken(r); !ok {
			http.Error(w, reason, http.StatusForbidden)
			return
		}

		if !m.CheckRateLimit(r) {
			http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
			return
		}

		next.ServeHTTP(w, r)

		log.Logger.Debug().
			Str("component", "api").
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("client", clientKey(r)).
			Dur("took", time.Since(start)).
			Msg("Request served")
	})
}

// CheckAccessControl checks the client IP against the allow list
func (m *Middleware) CheckAccessControl(r *http.Request) (bool, string) {
	if len(m.cfg.AllowedIPs) == 0 {
		return true, ""
	}

	clientIP := getClientIP(r)
	ip := net.ParseIP(clientIP)
	if ip == nil {
		log.Logger.Warn().Str("client_ip", clientIP).Msg("Invalid client IP")
		return false, "Invalid client IP"
	}

	for _, cidr := range m.cfg.AllowedIPs {
		if matchCIDR(ip, cidr) {
			return true, ""
		}
	}

	log.Logger.Warn().Str("client_ip", clientIP).Msg("Access denied (not in allow list)")
	return false, "Access denied by IP filter"
}

// CheckAgentToken rejects browser-originated requests that do not present
// the agent token. Requests without an Origin header come from the CLI or
// other local tools and pass.
func (m *Middleware) CheckAgentToken(r *http.Request) (bool, string) {
	if m.cfg.AgentToken == "" || r.Header.Get("Origin") == "" {
		return true, ""
	}

	got := r.Header.Get(AgentTokenHeader)
	if subtle.ConstantTimeCompare([]byte(got), []byte(m.cfg.AgentToken)) == 1 {
		return true, ""
	}

	log.Logger.Warn().
		Str("origin", r.Header.Get("Origin")).
		Str("path", r.URL.Path).
		Msg("Browser request without a valid agent token")
	return false, "Missing or invalid agent token"
}

// CheckRateLimit reports whether the client may make another request.
// Clients are keyed by sender tab when the request names one, else by IP.
func (m *Middleware) CheckRateLimit(r *http.Request) bool {
	if m.cfg.RequestsPerSecond <= 0 {
		return true
	}

	key := clientKey(r)

	m.mu.Lock()
	entry, exists := m.rateLimiters[key]
	if !exists {
		burst := m.cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		entry = &limiterEntry{limiter: rate.NewLimiter(rate.Limit(m.cfg.RequestsPerSecond), burst)}
		m.rateLimiters[key] = entry
	}
	entry.lastSeen = time.Now()
	m.mu.Unlock()

	allowed := entry.limiter.Allow()
	if !allowed {
		log.Logger.Warn().Str("client", key).Msg("Rate limit exceeded")
	}
	return allowed
}

// CleanupRateLimiters drops limiters idle for longer than maxIdle
func (m *Middleware) CleanupRateLimiters(maxIdle time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-maxIdle)
	removed := 0
	for key, entry := range m.rateLimiters {
		if entry.lastSeen.Before(cutoff) {
			delete(m.rateLimiters, key)
			removed++
		}
	}
	return removed
}

func (m *Middleware) applyCORS(w http.ResponseWriter, r *http.Request) {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return
	}

	allowed := ""
	for _, o := range m.cfg.AllowedOrigins {
		if o == "*" || o == origin {
			allowed = origin
			break
		}
	}
	if allowed == "" {
		return
	}

	h := w.Header()
	h.Set("Access-Control-Allow-Origin", allowed)
	h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	h.Set("Access-Control-Allow-Headers", "Content-Type, "+TabIDHeader+", "+AgentTokenHeader)
	h.Add("Vary", "Origin")
}

// Helper functions

func clientKey(r *http.Request) string {
	if tab := r.Header.Get(TabIDHeader); tab != "" {
		return "tab:" + tab
	}
	return "ip:" + getClientIP(r)
}

// getClientIP extracts the client IP from the request. Forwarding headers
// are ignored; the API is not meant to sit behind a proxy.
func getClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// matchCIDR checks if an IP matches a CIDR range or a single address
func matchCIDR(ip net.IP, cidr string) bool {
	if !strings.Contains(cidr, "/") {
		parsedIP := net.ParseIP(cidr)
		if parsedIP == nil {
			return false
		}
		return ip.Equal(parsedIP)
	}

	_, ipNet, err := net.ParseCIDR(cidr)
	if err != nil {
		log.Logger.Warn().Str("cidr", cidr).Msg("Invalid CIDR")
		return false
	}
	return ipNet.Contains(ip)
}
