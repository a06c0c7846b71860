package auth

import (
	"log/slog"
	"net/http"
	"strings"

	httperr "github.com/blackdoglabs/pulse/internal/core/errors"
	"github.com/gin-gonic/gin"
)

// Middleware authenticates every request through the verifier and injects
// the resulting identity into the request context. Requests without a
// resolvable tenant never reach a handler.
func Middleware(verifier Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			c.Header("WWW-Authenticate", "Bearer")
			c.AbortWithStatusJSON(http.StatusUnauthorized, httperr.ErrorResponse{
				ErrorType: httperr.HttpUnauthorizedError,
				Message:   "Missing or invalid authorization header",
			})
			return
		}

		id, err := verifier.Verify(c.Request.Context(), raw)
		if err != nil {
			slog.Warn("Credential verification failed", "path", c.Request.URL.Path)
			c.AbortWithStatusJSON(http.StatusUnauthorized, httperr.ErrorResponse{
				ErrorType: httperr.HttpUnauthorizedError,
				Message:   "Invalid credential",
			})
			return
		}

		c.Request = c.Request.WithContext(WithIdentity(c.Request.Context(), id))
		c.Next()
	}
}

// TenantGuard rejects requests that name a tenant other than the
// authenticated one. Tenant identity is never client-suppliable, so any
// org_id parameter is either redundant or a cross-tenant probe; a mismatch
// is Forbidden. Defense in depth on top of the store-level tenant filter.
func TenantGuard() gin.HandlerFunc {
	return func(c *gin.Context) {
		claimed := c.Query("org_id")
		if claimed == "" {
			c.Next()
			return
		}

		id, ok := FromContext(c.Request.Context())
		if !ok || claimed != id.TenantID {
			slog.Warn("Cross-tenant access rejected",
				"authenticated_org", id.TenantID,
				"claimed_org", claimed)
			c.AbortWithStatusJSON(http.StatusForbidden, httperr.ErrorResponse{
				ErrorType: httperr.HttpForbiddenError,
				Message:   "Resource belongs to a different organization",
			})
			return
		}
		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	if token == "" {
		return "", false
	}
	return token, true
}
