package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"medvault/pkg/domain"
)

// TokenValidator validates a bearer token from the identity service and
// returns the actor claims it carries. The core trusts these claims and never
// re-derives role or verification status from request bodies.
type TokenValidator interface {
	ValidateToken(tokenString string) (*ActorClaims, error)
}

// ActorClaims is the identity context attached to every authenticated call.
type ActorClaims struct {
	ActorID            domain.ActorID
	Role               domain.Role
	VerificationStatus domain.VerificationStatus
}

type contextKeyIdentity struct{}

// ContextKeyIdentity is exported so tests can seed an identity directly.
var ContextKeyIdentity = contextKeyIdentity{}

// GetIdentity retrieves the authenticated caller from the context. The zero
// Identity means the request did not pass RequireAuth.
func GetIdentity(ctx context.Context) (domain.Identity, bool) {
	ident, ok := ctx.Value(ContextKeyIdentity).(domain.Identity)
	return ident, ok
}

// WithIdentity is the test-side counterpart of RequireAuth.
func WithIdentity(ctx context.Context, ident domain.Identity) context.Context {
	return context.WithValue(ctx, ContextKeyIdentity, ident)
}

// RequireAuth authenticates the bearer token and stores the caller's identity
// in the request context.
func RequireAuth(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			authHeader := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok {
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

			ident := domain.Identity{
				ActorID:            claims.ActorID,
				Role:               claims.Role,
				VerificationStatus: claims.VerificationStatus,
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(ctx, ident)))
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"` + description + `"}`))
}
