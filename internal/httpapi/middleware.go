package httpapi

import (
	"context"
	"crypto/subtle"
	"net/http"
)

type contextKey string

// IdentityKey carries the authenticated API key through the request
// context; it doubles as the rate-limit identity.
const IdentityKey contextKey = "identity"

// RequireAPIKey rejects requests whose X-API-Key header does not match
// one of the configured keys.
func RequireAPIKey(keys []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key == "" {
				writeError(w, http.StatusUnauthorized, "missing API key")
				return
			}
			for _, k := range keys {
				if subtle.ConstantTimeCompare([]byte(k), []byte(key)) == 1 {
					ctx := context.WithValue(r.Context(), IdentityKey, key)
					next.ServeHTTP(w, r.WithContext(ctx))
					return
				}
			}
			writeError(w, http.StatusUnauthorized, "invalid API key")
		})
	}
}

func identity(ctx context.Context) string {
	if id, ok := ctx.Value(IdentityKey).(string); ok {
		return id
	}
	return "anonymous"
}
