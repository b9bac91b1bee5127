package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/dynaprizes/waitlist/internal/http/response"
	"github.com/dynaprizes/waitlist/pkg/auth"
	"github.com/dynaprizes/waitlist/pkg/logger"
)

type ctxKey string

const CtxClaims ctxKey = "claims"

// RequireAdmin accepts only HS256 bearer tokens signed with secret and
// carrying the admin role.
func RequireAdmin(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authz := r.Header.Get("Authorization")
			if !strings.HasPrefix(authz, "Bearer ") {
				response.Unauthorized(w, "Missing or invalid authorization header")
				return
			}
			claims, err := auth.Parse(strings.TrimPrefix(authz, "Bearer "), secret)
			if err != nil {
				response.WriteError(w, http.StatusUnauthorized, "Invalid token", response.CodeInvalidToken)
				return
			}
			if claims.Role != auth.RoleAdmin {
				response.Forbidden(w, "Insufficient permissions")
				return
			}

			ctx := context.WithValue(r.Context(), CtxClaims, claims)
			ctx = context.WithValue(ctx, logger.UserIDKey, claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func Claims(r *http.Request) *auth.Claims {
	if c, ok := r.Context().Value(CtxClaims).(*auth.Claims); ok {
		return c
	}
	return nil
}
