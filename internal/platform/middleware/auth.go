package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"gatepass/pkg/domain"
	"gatepass/pkg/requestcontext"
)

// JWTValidator validates bearer tokens presented by the mobile and scanner
// clients.
type JWTValidator interface {
	ValidateToken(tokenString string) (*JWTClaims, error)
}

// JWTClaims carries the claims the middleware propagates into the context.
type JWTClaims struct {
	UserID string
	Name   string
}

// GetUserID retrieves the authenticated user id from the context.
func GetUserID(ctx context.Context) domain.UserID {
	return requestcontext.UserID(ctx)
}

// RequireAuth rejects requests without a valid bearer token and injects the
// authenticated user id into the context.
func RequireAuth(validator JWTValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", GetRequestID(ctx),
				)
				writeUnauthorized(w, "Missing or invalid Authorization header")
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", GetRequestID(ctx),
				)
				writeUnauthorized(w, "Invalid or expired token")
				return
			}

			ctx = requestcontext.WithUserID(ctx, domain.UserID(claims.UserID))
			ctx = requestcontext.WithUserName(ctx, claims.Name)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"` + description + `"}`))
}
