package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	httperr "github.com/blackdoglabs/pulse/internal/core/errors"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func validClaims() jwt.MapClaims {
	return jwt.MapClaims{
		"org_id": "org1",
		"sub":    "u1",
		"exp":    time.Now().Add(time.Hour).Unix(),
	}
}

func TestJWTVerifier_ValidToken(t *testing.T) {
	v, err := NewJWTVerifier(testSecret, "", "", 0)
	require.NoError(t, err)

	id, err := v.Verify(context.Background(), signToken(t, testSecret, validClaims()))
	require.NoError(t, err)
	require.Equal(t, Identity{TenantID: "org1", UserID: "u1"}, id)
}

func TestJWTVerifier_RejectsBadTokens(t *testing.T) {
	v, err := NewJWTVerifier(testSecret, "pulse", "", 0)
	require.NoError(t, err)

	expired := validClaims()
	expired["iss"] = "pulse"
	expired["exp"] = time.Now().Add(-time.Hour).Unix()

	noExp := jwt.MapClaims{"org_id": "org1", "sub": "u1", "iss": "pulse"}

	noOrg := jwt.MapClaims{
		"sub": "u1",
		"iss": "pulse",
		"exp": time.Now().Add(time.Hour).Unix(),
	}

	wrongIssuer := validClaims()
	wrongIssuer["iss"] = "someone-else"

	good := validClaims()
	good["iss"] = "pulse"

	tests := []struct {
		name  string
		token string
	}{
		{name: "empty", token: ""},
		{name: "garbage", token: "not.a.jwt"},
		{name: "wrong secret", token: signToken(t, "another-secret-another-secret!!", good)},
		{name: "expired", token: signToken(t, testSecret, expired)},
		{name: "missing exp", token: signToken(t, testSecret, noExp)},
		{name: "missing org_id", token: signToken(t, testSecret, noOrg)},
		{name: "wrong issuer", token: signToken(t, testSecret, wrongIssuer)},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := v.Verify(context.Background(), tc.token)
			require.ErrorIs(t, err, ErrInvalidCredential)
		})
	}
}

func TestJWTVerifier_ClockSkewLeeway(t *testing.T) {
	v, err := NewJWTVerifier(testSecret, "", "", 2*time.Minute)
	require.NoError(t, err)

	claims := validClaims()
	claims["exp"] = time.Now().Add(-time.Minute).Unix()

	_, err = v.Verify(context.Background(), signToken(t, testSecret, claims))
	require.NoError(t, err)
}

func TestJWTVerifier_RequiresSecret(t *testing.T) {
	_, err := NewJWTVerifier("  ", "", "", 0)
	require.Error(t, err)
}

func TestAPIKeyVerifier(t *testing.T) {
	v, err := NewAPIKeyVerifier("org1:key-one, org2:key-two")
	require.NoError(t, err)

	id, err := v.Verify(context.Background(), "key-one")
	require.NoError(t, err)
	require.Equal(t, "org1", id.TenantID)

	id, err = v.Verify(context.Background(), "key-two")
	require.NoError(t, err)
	require.Equal(t, "org2", id.TenantID)

	_, err = v.Verify(context.Background(), "key-three")
	require.ErrorIs(t, err, ErrInvalidCredential)
}

func TestAPIKeyVerifier_RejectsMalformedSpecs(t *testing.T) {
	for _, spec := range []string{"", "org1", "org1:", ":key"} {
		_, err := NewAPIKeyVerifier(spec)
		require.Error(t, err, "spec %q", spec)
	}
}

func newAuthRouter(t *testing.T, verifier Verifier) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(Middleware(verifier), TenantGuard())
	router.GET("/whoami", func(c *gin.Context) {
		id, _ := FromContext(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{"org_id": id.TenantID, "user_id": id.UserID})
	})
	return router
}

func TestMiddleware_InjectsIdentity(t *testing.T) {
	v, err := NewAPIKeyVerifier("org1:key-one")
	require.NoError(t, err)
	router := newAuthRouter(t, v)

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer key-one")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "org1", body["org_id"])
}

func TestMiddleware_RejectsMissingOrBadCredentials(t *testing.T) {
	v, err := NewAPIKeyVerifier("org1:key-one")
	require.NoError(t, err)
	router := newAuthRouter(t, v)

	tests := []struct {
		name   string
		header string
	}{
		{name: "no header", header: ""},
		{name: "wrong scheme", header: "Basic key-one"},
		{name: "empty bearer", header: "Bearer "},
		{name: "unknown key", header: "Bearer nope"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			require.Equal(t, http.StatusUnauthorized, rec.Code)
			var body httperr.ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			require.Equal(t, httperr.HttpUnauthorizedError, body.ErrorType)
		})
	}
}

func TestTenantGuard(t *testing.T) {
	v, err := NewAPIKeyVerifier("org1:key-one")
	require.NoError(t, err)
	router := newAuthRouter(t, v)

	t.Run("matching org_id passes", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/whoami?org_id=org1", nil)
		req.Header.Set("Authorization", "Bearer key-one")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("foreign org_id is forbidden", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/whoami?org_id=org2", nil)
		req.Header.Set("Authorization", "Bearer key-one")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusForbidden, rec.Code)
		var body httperr.ErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		require.Equal(t, httperr.HttpForbiddenError, body.ErrorType)
	})
}
