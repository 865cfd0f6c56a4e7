// Package ratelimit provides per-client-address request limiting and an
// IP blocklist. Both are process-wide state: initialized once at
// startup, injected into the HTTP layer, no teardown required.
package ratelimit

import (
	"encoding/json"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"

	"golang.org/x/time/rate"
)

// Class names an endpoint group with its own limit.
type Class string

const (
	ClassCreateGame  Class = "create_game"
	ClassSubmitScore Class = "submit_score"
	ClassLeaderboard Class = "get_leaderboard"
	ClassPlayerStats Class = "player_stats"
	ClassDefault     Class = "default"
)

// ClassLimit is a token-bucket definition for one class.
type ClassLimit struct {
	Limit rate.Limit
	Burst int
}

// PerMinute builds a limit of n requests per minute with burst n.
func PerMinute(n int) ClassLimit {
	return ClassLimit{Limit: rate.Limit(float64(n) / 60.0), Burst: n}
}

// PerHour builds a limit of n requests per hour with burst n.
func PerHour(n int) ClassLimit {
	return ClassLimit{Limit: rate.Limit(float64(n) / 3600.0), Burst: n}
}

// Limiter tracks one token bucket per (class, client address).
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*rate.Limiter
	limits  map[Class]ClassLimit
	enabled bool
	logger  *slog.Logger
}

// OnRateLimited is invoked whenever a request is rejected; wired to a
// metrics counter at startup. Nil-safe.
var OnRateLimited func()

// NewLimiter creates a limiter with the given per-class limits. Classes
// without an explicit limit fall back to ClassDefault.
func NewLimiter(limits map[Class]ClassLimit, enabled bool, logger *slog.Logger) *Limiter {
	return &Limiter{
		buckets: make(map[string]*rate.Limiter),
		limits:  limits,
		enabled: enabled,
		logger:  logger,
	}
}

func (l *Limiter) classLimit(class Class) ClassLimit {
	if cl, ok := l.limits[class]; ok {
		return cl
	}
	if cl, ok := l.limits[ClassDefault]; ok {
		return cl
	}
	return PerMinute(100)
}

func (l *Limiter) bucket(class Class, addr string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := string(class) + "|" + addr
	if b, ok := l.buckets[key]; ok {
		return b
	}
	cl := l.classLimit(class)
	b := rate.NewLimiter(cl.Limit, cl.Burst)
	l.buckets[key] = b
	return b
}

// Allow reports whether a request from addr is admitted for class.
func (l *Limiter) Allow(class Class, addr string) bool {
	if !l.enabled {
		return true
	}
	return l.bucket(class, addr).Allow()
}

// Middleware enforces the class limit keyed by the client address.
// Rejected requests get 429 with a Retry-After hint.
func (l *Limiter) Middleware(class Class) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			addr := clientAddr(r)
			if !l.Allow(class, addr) {
				if OnRateLimited != nil {
					OnRateLimited()
				}
				l.logger.Warn("rate limit exceeded", "class", string(class), "addr", addr)
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(l.classLimit(class))))
				w.WriteHeader(http.StatusTooManyRequests)
				json.NewEncoder(w).Encode(map[string]string{
					"error": "rate limit exceeded, please try again later",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// retryAfterSeconds estimates how long until one token refills, rounded
// up to a whole second.
func retryAfterSeconds(cl ClassLimit) int {
	if cl.Limit <= 0 {
		return 1
	}
	secs := int(math.Ceil(1 / float64(cl.Limit)))
	if secs < 1 {
		secs = 1
	}
	return secs
}

// Blocklist is a fixed set of denied client addresses, loaded from
// configuration at startup.
type Blocklist struct {
	addrs map[string]struct{}
}

// NewBlocklist builds a blocklist from address strings.
func NewBlocklist(addrs []string) *Blocklist {
	set := make(map[string]struct{}, len(addrs))
	for _, a := range addrs {
		set[a] = struct{}{}
	}
	return &Blocklist{addrs: set}
}

// Blocked reports whether addr is denied.
func (b *Blocklist) Blocked(addr string) bool {
	_, ok := b.addrs[addr]
	return ok
}

// Middleware rejects blocklisted clients with 403 before any other
// processing.
func (b *Blocklist) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if b.Blocked(clientAddr(r)) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			json.NewEncoder(w).Encode(map[string]string{"error": "access denied"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientAddr strips the port from RemoteAddr. chi's RealIP middleware
// runs earlier and rewrites RemoteAddr from forwarding headers.
func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
