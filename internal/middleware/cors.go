package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

// CORS allows the listed browser origins; "*" allows any. With no origins
// it is a no-op.
func CORS(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", "X-Grpc-Web", "X-User-Agent"},
		ExposedHeaders: []string{"X-Request-ID", "Grpc-Status", "Grpc-Message"},
		MaxAge:         300,
	})
}
