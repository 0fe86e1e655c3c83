package middleware

import (
	"context"
	"net/http"
	"strings"

	"nearby-guide/internal/auth"

	"go.uber.org/zap"
)

type AuthMiddleware struct {
	jwt  *auth.JWTManager
	logr *zap.Logger
}

type contextKey string

const (
	ContextSubjectKey contextKey = "subject"
	ContextTokenIDKey contextKey = "jti"
)

// NewAuthMiddleware creates the admin guard. A nil manager rejects every request.
func NewAuthMiddleware(jwtMgr *auth.JWTManager, logr *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		jwt:  jwtMgr,
		logr: logr,
	}
}

// AdminAuth validates the bearer token and attaches its subject to the request context
func (m *AuthMiddleware) AdminAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.jwt == nil {
			http.Error(w, "admin endpoints are disabled", http.StatusServiceUnavailable)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "missing authorization header", http.StatusUnauthorized)
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			http.Error(w, "invalid token format", http.StatusUnauthorized)
			return
		}

		claims, err := m.jwt.VerifyAdmin(tokenString)
		if err != nil {
			m.logr.Warn("admin token rejected", zap.Error(err))
			http.Error(w, "invalid or expired token", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), ContextSubjectKey, claims.Subject)
		ctx = context.WithValue(ctx, ContextTokenIDKey, claims.JTI)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Subject returns the admin subject attached by AdminAuth.
func Subject(ctx context.Context) string {
	s, _ := ctx.Value(ContextSubjectKey).(string)
	return s
}
