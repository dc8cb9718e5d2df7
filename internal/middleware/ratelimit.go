// AngelaMos | 2026
// ratelimit.go

package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"net"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"

	redis_rate "github.com/go-redis/redis_rate/v10"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/carterperez-dev/templates/vip-backend/internal/core"
)

const CodeRateLimited = "RATE_LIMITED"

type RateLimitConfig struct {
	Limit   redis_rate.Limit
	KeyFunc func(*http.Request) string
	// FailClosed answers 503 when Redis errors. Otherwise the request is
	// counted against the in-process bucket instead.
	FailClosed bool
	BypassFunc func(*http.Request) bool
}

// RateLimiter counts requests per key in Redis when a client is given and
// in process otherwise.
type RateLimiter struct {
	shared *redis_rate.Limiter
	local  *localLimiter
	config RateLimitConfig
}

func NewRateLimiter(rdb *redis.Client, cfg RateLimitConfig) *RateLimiter {
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = KeyByIP
	}

	rl := &RateLimiter{
		local:  newLocalLimiter(time.Now),
		config: cfg,
	}
	if rdb != nil {
		rl.shared = redis_rate.NewLimiter(rdb)
	}
	return rl
}

func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rl.config.BypassFunc != nil && rl.config.BypassFunc(r) {
			next.ServeHTTP(w, r)
			return
		}

		res, err := rl.allow(r.Context(), rl.config.KeyFunc(r))
		if err != nil {
			core.JSONError(w, core.UnavailableError())
			return
		}

		writeLimitHeaders(w.Header(), res)

		if res.Allowed == 0 {
			writeLimited(w, res)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimiter) allow(
	ctx context.Context,
	key string,
) (*redis_rate.Result, error) {
	if rl.shared == nil {
		return rl.local.allow(key, rl.config.Limit), nil
	}

	res, err := rl.shared.Allow(ctx, key, rl.config.Limit)
	if err == nil {
		return res, nil
	}

	if rl.config.FailClosed {
		slog.ErrorContext(ctx, "rate limit store failed", "error", err)
		return nil, fmt.Errorf("rate limit: %w: %w", core.ErrUnavailable, err)
	}

	slog.WarnContext(ctx, "rate limit store failed, counting locally",
		"error", err,
	)
	return rl.local.allow(key, rl.config.Limit), nil
}

// KeyByIP keys on the address of the direct peer. Forwarding headers are
// ignored; use ClientIP when a trusted proxy sits in front.
func KeyByIP(r *http.Request) string {
	return "ratelimit:ip:" + peerAddr(r).String()
}

// ClientIP resolves the caller's address, honouring X-Forwarded-For and
// X-Real-IP only when the direct peer is a trusted proxy.
type ClientIP struct {
	trusted []netip.Prefix
}

// NewClientIP accepts addresses or CIDR prefixes. An empty list trusts no
// proxy.
func NewClientIP(trustedProxies []string) (*ClientIP, error) {
	c := &ClientIP{}
	for _, raw := range trustedProxies {
		p, err := ParseProxyPrefix(raw)
		if err != nil {
			return nil, err
		}
		c.trusted = append(c.trusted, p)
	}
	return c, nil
}

// ParseProxyPrefix reads "10.0.0.0/8" or a single address such as
// "10.0.0.7".
func ParseProxyPrefix(raw string) (netip.Prefix, error) {
	raw = strings.TrimSpace(raw)
	if strings.Contains(raw, "/") {
		p, err := netip.ParsePrefix(raw)
		if err != nil {
			return netip.Prefix{}, fmt.Errorf("trusted proxy %q: %w", raw, err)
		}
		return p.Masked(), nil
	}

	addr, err := netip.ParseAddr(raw)
	if err != nil {
		return netip.Prefix{}, fmt.Errorf("trusted proxy %q: %w", raw, err)
	}
	addr = addr.Unmap()
	return netip.PrefixFrom(addr, addr.BitLen()), nil
}

func (c *ClientIP) isTrusted(addr netip.Addr) bool {
	for _, p := range c.trusted {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// Resolve walks X-Forwarded-For from the right, skipping trusted hops, so
// entries a client prepends never win.
func (c *ClientIP) Resolve(r *http.Request) netip.Addr {
	peer := peerAddr(r)
	if !peer.IsValid() || !c.isTrusted(peer) {
		return peer
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		hops := strings.Split(xff, ",")
		for i := len(hops) - 1; i >= 0; i-- {
			addr, err := netip.ParseAddr(strings.TrimSpace(hops[i]))
			if err != nil {
				return peer
			}
			addr = addr.Unmap()
			if !c.isTrusted(addr) {
				return addr
			}
		}
	}

	if xri, err := netip.ParseAddr(strings.TrimSpace(r.Header.Get("X-Real-IP"))); err == nil {
		return xri.Unmap()
	}

	return peer
}

// KeyByEndpoint keys on the resolved client and the normalised path, so
// each route gets its own budget.
func (c *ClientIP) KeyByEndpoint(r *http.Request) string {
	return fmt.Sprintf("ratelimit:ip:%s:endpoint:%s",
		c.Resolve(r), normalizeEndpoint(r.URL.Path))
}

func peerAddr(r *http.Request) netip.Addr {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}

	addr, err := netip.ParseAddr(host)
	if err != nil {
		return netip.Addr{}
	}
	return addr.Unmap()
}

func normalizeEndpoint(path string) string {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	for i, seg := range segments {
		if looksLikeID(seg) {
			segments[i] = "{id}"
		}
	}
	return "/" + strings.Join(segments, "/")
}

func looksLikeID(seg string) bool {
	if seg == "" {
		return false
	}
	if _, err := strconv.ParseUint(seg, 10, 64); err == nil {
		return true
	}
	return len(seg) == 36 &&
		seg[8] == '-' && seg[13] == '-' && seg[18] == '-' && seg[23] == '-'
}

func writeLimitHeaders(h http.Header, res *redis_rate.Result) {
	h.Set("X-RateLimit-Limit", strconv.Itoa(res.Limit.Rate))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(
		time.Now().Add(res.ResetAfter).Unix(), 10))
	h.Set("RateLimit-Policy", fmt.Sprintf("%d;w=%d",
		res.Limit.Rate, int(res.Limit.Period.Seconds())))
}

func writeLimited(w http.ResponseWriter, res *redis_rate.Result) {
	retryAfter := max(int(math.Ceil(res.RetryAfter.Seconds())), 1)

	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)

	//nolint:errcheck // best-effort response write
	_ = json.NewEncoder(w).Encode(core.ErrorResponse{
		Error: fmt.Sprintf("rate limit exceeded, retry after %d seconds", retryAfter),
		Code:  CodeRateLimited,
	})
}

const (
	localSweepEvery = 5 * time.Minute
	localIdleTTL    = 10 * time.Minute
)

type bucket struct {
	limiter *rate.Limiter
	seen    time.Time
}

// localLimiter is a token bucket per key. Idle buckets are dropped on a
// later call rather than by a background goroutine.
type localLimiter struct {
	mu        sync.Mutex
	buckets   map[string]*bucket
	lastSweep time.Time
	now       func() time.Time
}

func newLocalLimiter(now func() time.Time) *localLimiter {
	return &localLimiter{
		buckets:   make(map[string]*bucket),
		lastSweep: now(),
		now:       now,
	}
}

func (l *localLimiter) allow(key string, limit redis_rate.Limit) *redis_rate.Result {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) >= localSweepEvery {
		for k, b := range l.buckets {
			if now.Sub(b.seen) >= localIdleTTL {
				delete(l.buckets, k)
			}
		}
		l.lastSweep = now
	}

	interval := limit.Period / time.Duration(max(limit.Rate, 1))

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(rate.Every(interval), limit.Burst)}
		l.buckets[key] = b
	}
	b.seen = now

	allowed := b.limiter.AllowN(now, 1)
	tokens := b.limiter.TokensAt(now)

	res := &redis_rate.Result{
		Limit:      limit,
		Remaining:  max(int(tokens), 0),
		RetryAfter: -1,
		ResetAfter: time.Duration((float64(limit.Burst) - tokens) * float64(interval)),
	}
	if allowed {
		res.Allowed = 1
	} else {
		res.RetryAfter = time.Duration((1 - tokens) * float64(interval))
	}
	return res
}

func Per(rate, burst int, period time.Duration) redis_rate.Limit {
	return redis_rate.Limit{
		Rate:   rate,
		Burst:  burst,
		Period: period,
	}
}
