package middleware

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	id "accessd/pkg/domain"
	"accessd/pkg/requestcontext"

	"accessd/internal/token"
)

// TokenValidator validates access tokens presented on admin requests.
type TokenValidator interface {
	ValidateToken(tokenString string) (*token.Claims, error)
}

// Authorizer answers permission checks against the published role snapshot.
type Authorizer interface {
	HasPermission(ctx context.Context, roleIDs []id.RoleID, permissionName string) bool
}

type (
	contextKeyRoleIDs   struct{}
	contextKeyBootstrap struct{}
)

// Context keys exported for tests that build contexts by hand.
var (
	ContextKeyRoleIDs   = contextKeyRoleIDs{}
	ContextKeyBootstrap = contextKeyBootstrap{}
)

// RoleIDs retrieves the authenticated subject's role IDs from the context.
func RoleIDs(ctx context.Context) []id.RoleID {
	if roleIDs, ok := ctx.Value(ContextKeyRoleIDs).([]id.RoleID); ok {
		return roleIDs
	}
	return nil
}

// IsBootstrap reports whether the request authenticated with the static
// bootstrap credential rather than a token.
func IsBootstrap(ctx context.Context) bool {
	ok, _ := ctx.Value(ContextKeyBootstrap).(bool)
	return ok
}

// RequireAuth rejects requests without a valid bearer token and injects the
// token's actor and role IDs into the request context. A non-empty
// adminToken is accepted via the X-Admin-Token header as a bootstrap
// credential, so the first role can be configured before any actor holds
// the management permission. Role IDs that fail to parse are dropped rather
// than failing the request; they would never resolve in the snapshot anyway.
func RequireAuth(validator TokenValidator, adminToken string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := requestcontext.RequestID(ctx)

			if adminToken != "" {
				presented := r.Header.Get("X-Admin-Token")
				if presented != "" && subtle.ConstantTimeCompare([]byte(presented), []byte(adminToken)) == 1 {
					ctx = requestcontext.WithActor(ctx, "bootstrap-admin")
					ctx = context.WithValue(ctx, ContextKeyBootstrap, true)
					next.ServeHTTP(w, r.WithContext(ctx))
					return
				}
			}

			authHeader := r.Header.Get("Authorization")
			const bearerPrefix = "Bearer "
			raw, ok := strings.CutPrefix(authHeader, bearerPrefix)
			if !ok {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestID,
				)
				writeUnauthorized(w, "Missing or invalid Authorization header")
				return
			}

			claims, err := validator.ValidateToken(raw)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestID,
				)
				writeUnauthorized(w, "Invalid or expired token")
				return
			}

			roleIDs := make([]id.RoleID, 0, len(claims.RoleIDs))
			for _, rawID := range claims.RoleIDs {
				roleID, err := id.ParseRoleID(rawID)
				if err != nil {
					continue
				}
				roleIDs = append(roleIDs, roleID)
			}

			ctx = requestcontext.WithActor(ctx, claims.Actor)
			ctx = context.WithValue(ctx, ContextKeyRoleIDs, roleIDs)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequirePermission gates a route on the snapshot resolving the given
// permission for the authenticated subject's roles. The engine authorizes
// its own admin surface this way. Bootstrap-authenticated requests pass
// unconditionally.
func RequirePermission(authorizer Authorizer, permissionName string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			if IsBootstrap(ctx) {
				next.ServeHTTP(w, r)
				return
			}

			if !authorizer.HasPermission(ctx, RoleIDs(ctx), permissionName) {
				logger.WarnContext(ctx, "forbidden access",
					"request_id", requestcontext.RequestID(ctx),
					"actor", requestcontext.Actor(ctx),
					"permission", permissionName,
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusForbidden)
				_, _ = w.Write([]byte(`{"error":"forbidden","error_description":"Insufficient permissions"}`))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"` + description + `"}`))
}
