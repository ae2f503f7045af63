package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/tillpoint/api/internal/auth"
	"github.com/tillpoint/api/internal/enum"
)

type contextKey string

const (
	claimsKey contextKey = "claims"
	tenantKey contextKey = "tenant"
)

// Authenticate validates the Bearer token and stores the claims in the
// request context.
func Authenticate(jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing authorization header")
				return
			}
			tokenStr, ok := strings.CutPrefix(header, "Bearer ")
			if !ok {
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authorization header must be a bearer token")
				return
			}

			claims, err := auth.ValidateToken(jwtSecret, tokenStr)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid or expired token")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

// RequireTenant resolves the acting tenant for the request. The tenant
// comes from the X-Tenant-ID header and must match the token's tenant;
// OWNER tokens may act on any tenant.
func RequireTenant(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := ClaimsFromContext(r.Context())
		if claims == nil {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing claims")
			return
		}

		header := r.Header.Get("X-Tenant-ID")
		if header == "" {
			writeError(w, http.StatusBadRequest, "TENANT_REQUIRED", "X-Tenant-ID header is required")
			return
		}
		tenantID, err := uuid.Parse(header)
		if err != nil {
			writeError(w, http.StatusBadRequest, "TENANT_REQUIRED", "X-Tenant-ID must be a UUID")
			return
		}
		if tenantID != claims.TenantID && claims.Role != enum.UserRoleOwner {
			writeError(w, http.StatusForbidden, "TENANT_FORBIDDEN", "token is not valid for this tenant")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithTenant(r.Context(), tenantID)))
	})
}

// WithClaims returns a context carrying the given claims.
func WithClaims(ctx context.Context, claims *auth.Claims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

// WithTenant returns a context carrying the acting tenant.
func WithTenant(ctx context.Context, tenantID uuid.UUID) context.Context {
	return context.WithValue(ctx, tenantKey, tenantID)
}

// ClaimsFromContext returns the authenticated claims, or nil.
func ClaimsFromContext(ctx context.Context) *auth.Claims {
	claims, _ := ctx.Value(claimsKey).(*auth.Claims)
	return claims
}

// TenantFromContext returns the acting tenant set by RequireTenant.
func TenantFromContext(ctx context.Context) (uuid.UUID, bool) {
	tenantID, ok := ctx.Value(tenantKey).(uuid.UUID)
	return tenantID, ok
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
		"error": map[string]any{"code": code, "message": message},
	})
}
