package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// TokenVerifier verifies a raw bearer token.
type TokenVerifier interface {
	VerifyToken(token string) (*Claims, error)
}

type claimsKey struct{}

// ErrorWriter writes an authentication failure. The cloud transport supplies
// one that emits a JSON-RPC error body.
type ErrorWriter func(w http.ResponseWriter, status int, message string)

// Middleware rejects requests without a valid bearer token.
type Middleware struct {
	verifier  TokenVerifier
	skipPaths map[string]bool
	onError   ErrorWriter
}

// NewMiddleware creates a middleware. Requests for skipPaths pass through unchecked.
func NewMiddleware(verifier TokenVerifier, onError ErrorWriter, skipPaths ...string) *Middleware {
	skip := make(map[string]bool, len(skipPaths))
	for _, p := range skipPaths {
		skip[p] = true
	}
	if onError == nil {
		onError = func(w http.ResponseWriter, status int, message string) {
			http.Error(w, message, status)
		}
	}
	return &Middleware{
		verifier:  verifier,
		skipPaths: skip,
		onError:   onError,
	}
}

// RequireAuth wraps next with bearer-token verification.
func (m *Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.skipPaths[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}

		token, err := extractBearerToken(r)
		if err != nil {
			m.onError(w, http.StatusUnauthorized, "Authentication required")
			return
		}

		claims, err := m.verifier.VerifyToken(token)
		if err != nil {
			m.onError(w, http.StatusUnauthorized, "Invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), claimsKey{}, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ClaimsFromContext returns the claims stored by RequireAuth.
func ClaimsFromContext(ctx context.Context) *Claims {
	claims, ok := ctx.Value(claimsKey{}).(*Claims)
	if !ok {
		return nil
	}
	return claims
}

func extractBearerToken(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", fmt.Errorf("missing Authorization header")
	}

	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", fmt.Errorf("invalid Authorization header format")
	}

	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == "" {
		return "", fmt.Errorf("empty token")
	}
	return token, nil
}
