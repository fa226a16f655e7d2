package middleware

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

// ForwardedForKey carries the browser address on calls relayed by the
// in-process gRPC-Web bridge.
const ForwardedForKey = "x-forwarded-for"

const (
	staleAfter  = 3 * time.Minute
	sweepEvery  = time.Minute
	unknownPeer = "unknown"
)

type client struct {
	lim  *rate.Limiter
	seen time.Time
}

// RateLimiter keeps one token bucket per client address.
type RateLimiter struct {
	mu      sync.Mutex
	clients map[string]*client
	r       rate.Limit
	burst   int
	done    chan struct{}
	once    sync.Once
}

func NewRateLimiter(rps float64, burst int) *RateLimiter {
	rl := &RateLimiter{
		clients: make(map[string]*client),
		r:       rate.Limit(rps),
		burst:   burst,
		done:    make(chan struct{}),
	}
	go rl.sweep()
	return rl
}

func (rl *RateLimiter) sweep() {
	t := time.NewTicker(sweepEvery)
	defer t.Stop()
	for {
		select {
		case <-rl.done:
			return
		case <-t.C:
			rl.mu.Lock()
			for ip, c := range rl.clients {
				if time.Since(c.seen) > staleAfter {
					delete(rl.clients, ip)
				}
			}
			rl.mu.Unlock()
		}
	}
}

// Stop ends the background sweep.
func (rl *RateLimiter) Stop() {
	rl.once.Do(func() { close(rl.done) })
}

func (rl *RateLimiter) get(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if c, ok := rl.clients[ip]; ok {
		c.seen = time.Now()
		return c.lim
	}
	l := rate.NewLimiter(rl.r, rl.burst)
	rl.clients[ip] = &client{lim: l, seen: time.Now()}
	return l
}

func (rl *RateLimiter) Allow(ip string) bool {
	return rl.get(ip).Allow()
}

func hostOnly(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}

// RateLimit rejects callers over their budget with 429. Pair it with
// chi's RealIP when running behind a proxy.
func RateLimit(rl *RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !rl.Allow(hostOnly(r.RemoteAddr)) {
				writeError(w, http.StatusTooManyRequests, "too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// UnaryRateLimit limits only the listed gRPC methods.
func UnaryRateLimit(rl *RateLimiter, limited map[string]bool) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (any, error) {
		if !limited[info.FullMethod] {
			return next(ctx, req)
		}
		ip := peerIP(ctx)
		if !rl.Allow(ip) {
			return nil, status.Error(codes.ResourceExhausted, "too many requests")
		}
		return next(ctx, req)
	}
}

// peerIP keys a gRPC call. Loopback peers are the local bridge, so the
// forwarded address wins for them; remote peers cannot spoof it.
func peerIP(ctx context.Context) string {
	ip := unknownPeer
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		ip = hostOnly(p.Addr.String())
	}
	if parsed := net.ParseIP(ip); parsed == nil || !parsed.IsLoopback() {
		return ip
	}
	md, _ := metadata.FromIncomingContext(ctx)
	if fwd := md.Get(ForwardedForKey); len(fwd) > 0 && fwd[0] != "" {
		return fwd[0]
	}
	return ip
}
