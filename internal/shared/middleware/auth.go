package middleware

import (
	"crypto/sha256"
	"crypto/subtle"
	"net/http"
	"strings"
	"sync"

	"finlink/internal/shared/auth"
)

// APIToken requires "Authorization: Bearer <token>" matching the bcrypt
// tokenHash. The SHA-256 digest of the last accepted token is cached.
func APIToken(tokenHash string) func(http.Handler) http.Handler {
	var (
		mu       sync.RWMutex
		accepted []byte
	)

	verify := func(token string) bool {
		sum := sha256.Sum256([]byte(token))

		mu.RLock()
		hit := accepted != nil && subtle.ConstantTimeCompare(accepted, sum[:]) == 1
		mu.RUnlock()
		if hit {
			return true
		}

		if auth.VerifyToken(tokenHash, token) != nil {
			return false
		}
		mu.Lock()
		accepted = sum[:]
		mu.Unlock()
		return true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "Authentication required", http.StatusUnauthorized)
				return
			}
			scheme, token, ok := strings.Cut(authHeader, " ")
			if !ok || scheme != "Bearer" || token == "" {
				http.Error(w, "Invalid authorization header format", http.StatusUnauthorized)
				return
			}

			if !verify(token) {
				http.Error(w, "Invalid API token", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
