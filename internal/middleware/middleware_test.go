package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"clinic-booking/internal/auth"
	"clinic-booking/internal/model"
	"clinic-booking/pkg/logging"
)

func newAuthenticator(t *testing.T) (*Authenticator, *auth.Issuer, *auth.MemoryRevoker) {
	t.Helper()
	iss := auth.NewIssuer("test-secret", time.Hour)
	rev := auth.NewMemoryRevoker()
	return NewAuthenticator(iss, rev), iss, rev
}

func okHandler(t *testing.T, wantRole model.Role) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, ok := ClaimsFrom(r.Context())
		require.True(t, ok)
		assert.Equal(t, wantRole, c.Role)
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestAuthHTTP(t *testing.T) {
	a, iss, rev := newAuthenticator(t)
	tok, err := iss.MakeToken("doc-1", model.RoleDoctor)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"no header", "", http.StatusUnauthorized},
		{"not bearer", "Basic abc", http.StatusUnauthorized},
		{"garbage", "Bearer nope", http.StatusUnauthorized},
		{"valid", "Bearer " + tok, http.StatusNoContent},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			a.HTTP(okHandler(t, model.RoleDoctor)).ServeHTTP(rec, req)
			assert.Equal(t, tc.want, rec.Code)
		})
	}

	claims, err := iss.ParseToken(tok)
	require.NoError(t, err)
	require.NoError(t, rev.Revoke(context.Background(), claims.ID, claims.ExpiresAt.Time))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	a.HTTP(okHandler(t, model.RoleDoctor)).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "unauthorized", body["message"])
}

func TestRequireRole(t *testing.T) {
	a, iss, _ := newAuthenticator(t)
	docTok, _ := iss.MakeToken("doc-1", model.RoleDoctor)
	adminTok, _ := iss.MakeToken("adm-1", model.RoleAdmin)

	h := a.HTTP(RequireRole(model.RoleAdmin)(okHandler(t, model.RoleAdmin)))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+docTok)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+adminTok)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	// without the auth middleware in front
	rec = httptest.NewRecorder()
	RequireRole(model.RoleAdmin)(okHandler(t, model.RoleAdmin)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUnaryAuth(t *testing.T) {
	a, iss, _ := newAuthenticator(t)
	tok, _ := iss.MakeToken("doc-1", model.RoleDoctor)
	interceptor := a.UnaryAuth(map[string]bool{"/open": true})

	var seen *auth.Claims
	next := func(ctx context.Context, req any) (any, error) {
		seen, _ = ClaimsFrom(ctx)
		return "ok", nil
	}

	_, err := interceptor(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: "/open"}, next)
	require.NoError(t, err)
	assert.Nil(t, seen)

	_, err = interceptor(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: "/closed"}, next)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs("authorization", "Bearer "+tok))
	_, err = interceptor(ctx, nil, &grpc.UnaryServerInfo{FullMethod: "/closed"}, next)
	require.NoError(t, err)
	require.NotNil(t, seen)
	assert.Equal(t, "doc-1", seen.UserID)
}

func TestRateLimitHTTP(t *testing.T) {
	rl := NewRateLimiter(0.001, 2)
	defer rl.Stop()
	h := RateLimit(rl)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	got := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/appointments", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		got = append(got, rec.Code)
	}
	assert.Equal(t, []int{200, 200, 429}, got)

	// a different client has its own bucket
	req := httptest.NewRequest(http.MethodPost, "/api/appointments", nil)
	req.RemoteAddr = "10.0.0.2:5555"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUnaryRateLimit(t *testing.T) {
	rl := NewRateLimiter(0.001, 1)
	defer rl.Stop()
	interceptor := UnaryRateLimit(rl, map[string]bool{"/limited": true})
	next := func(ctx context.Context, req any) (any, error) { return nil, nil }
	ctx := peer.NewContext(context.Background(), &peer.Peer{Addr: &net.TCPAddr{IP: net.IPv4(10, 0, 0, 9), Port: 1}})

	for i := 0; i < 3; i++ {
		_, err := interceptor(ctx, nil, &grpc.UnaryServerInfo{FullMethod: "/free"}, next)
		require.NoError(t, err)
	}
	_, err := interceptor(ctx, nil, &grpc.UnaryServerInfo{FullMethod: "/limited"}, next)
	require.NoError(t, err)
	_, err = interceptor(ctx, nil, &grpc.UnaryServerInfo{FullMethod: "/limited"}, next)
	assert.Equal(t, codes.ResourceExhausted, status.Code(err))
}

func TestUnaryRateLimitKeysBridgedCallsByForwardedAddress(t *testing.T) {
	rl := NewRateLimiter(0.001, 1)
	defer rl.Stop()
	interceptor := UnaryRateLimit(rl, map[string]bool{"/limited": true})
	next := func(ctx context.Context, req any) (any, error) { return nil, nil }
	info := &grpc.UnaryServerInfo{FullMethod: "/limited"}

	from := func(peerIP net.IP, forwarded string) context.Context {
		ctx := peer.NewContext(context.Background(), &peer.Peer{Addr: &net.TCPAddr{IP: peerIP, Port: 5000}})
		return metadata.NewIncomingContext(ctx, metadata.Pairs(ForwardedForKey, forwarded))
	}
	loopback := net.IPv4(127, 0, 0, 1)

	_, err := interceptor(from(loopback, "10.0.0.1"), nil, info, next)
	require.NoError(t, err)
	_, err = interceptor(from(loopback, "10.0.0.2"), nil, info, next)
	require.NoError(t, err, "second browser must get its own bucket")
	_, err = interceptor(from(loopback, "10.0.0.1"), nil, info, next)
	assert.Equal(t, codes.ResourceExhausted, status.Code(err))

	// a remote peer cannot pick its own bucket through the header
	remote := net.IPv4(192, 168, 1, 7)
	_, err = interceptor(from(remote, "10.0.0.3"), nil, info, next)
	require.NoError(t, err)
	_, err = interceptor(from(remote, "10.0.0.4"), nil, info, next)
	assert.Equal(t, codes.ResourceExhausted, status.Code(err))
}

func TestCORS(t *testing.T) {
	h := CORS([]string{"https://clinic.example"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://clinic.example")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "https://clinic.example", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	log := logging.NewWithOutput("info", &buf)
	h := RequestLogger(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "req-42")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "req-42", rec.Header().Get(RequestIDHeader))
	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "req-42", line["request_id"])
	assert.Equal(t, float64(http.StatusTeapot), line["status"])
	assert.Equal(t, "/health", line["path"])
}
