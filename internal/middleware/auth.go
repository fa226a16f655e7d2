package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"clinic-booking/internal/auth"
	"clinic-booking/internal/model"
)

type ctxKey string

const claimsKey ctxKey = "claims"

// Authenticator validates bearer tokens and rejects revoked ones.
type Authenticator struct {
	issuer  *auth.Issuer
	revoker auth.Revoker
}

func NewAuthenticator(issuer *auth.Issuer, revoker auth.Revoker) *Authenticator {
	if revoker == nil {
		revoker = auth.NewMemoryRevoker()
	}
	return &Authenticator{issuer: issuer, revoker: revoker}
}

func bearer(header string) string {
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

// Verify parses raw and checks it has not been logged out.
func (a *Authenticator) Verify(ctx context.Context, raw string) (*auth.Claims, error) {
	if raw == "" {
		return nil, auth.ErrBadToken
	}
	claims, err := a.issuer.ParseToken(raw)
	if err != nil {
		return nil, auth.ErrBadToken
	}
	revoked, err := a.revoker.Revoked(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, auth.ErrBadToken
	}
	return claims, nil
}

// HTTP requires a valid bearer token and stores its claims on the context.
func (a *Authenticator) HTTP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := a.Verify(r.Context(), bearer(r.Header.Get("Authorization")))
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
	})
}

// RequireRole must run after HTTP.
func RequireRole(roles ...model.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFrom(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			for _, role := range roles {
				if claims.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeError(w, http.StatusForbidden, "forbidden")
		})
	}
}

func WithClaims(ctx context.Context, c *auth.Claims) context.Context {
	return context.WithValue(ctx, claimsKey, c)
}

func ClaimsFrom(ctx context.Context) (*auth.Claims, bool) {
	c, ok := ctx.Value(claimsKey).(*auth.Claims)
	return c, ok && c != nil
}

// UnaryAuth is the gRPC counterpart of HTTP. Methods in open skip it.
func (a *Authenticator) UnaryAuth(open map[string]bool) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (any, error) {
		if open[info.FullMethod] {
			return next(ctx, req)
		}

		md, ok := metadata.FromIncomingContext(ctx)
		if !ok {
			return nil, status.Error(codes.Unauthenticated, "missing metadata")
		}
		raw := ""
		if vals := md.Get("authorization"); len(vals) > 0 {
			raw = bearer(vals[0])
		}
		if raw == "" {
			return nil, status.Error(codes.Unauthenticated, "no token")
		}

		claims, err := a.Verify(ctx, raw)
		if err != nil {
			return nil, status.Error(codes.Unauthenticated, "bad token")
		}
		return next(WithClaims(ctx, claims), req)
	}
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"message": msg})
}
