package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// JWTVerifier validates HMAC-signed bearer tokens and extracts the tenant
// and subject claims. Issuer and audience checks are enforced when
// configured.
type JWTVerifier struct {
	secret []byte
	parser *jwt.Parser
}

// NewJWTVerifier builds a verifier for HS256 tokens signed with the given
// shared secret.
func NewJWTVerifier(secret, issuer, audience string, clockSkew time.Duration) (*JWTVerifier, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}
	if clockSkew < 0 {
		clockSkew = 0
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(clockSkew),
	}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	if audience != "" {
		opts = append(opts, jwt.WithAudience(audience))
	}

	return &JWTVerifier{
		secret: []byte(secret),
		parser: jwt.NewParser(opts...),
	}, nil
}

// Verify parses and validates the token, returning the identity carried in
// the org_id and sub claims.
func (v *JWTVerifier) Verify(ctx context.Context, rawCredential string) (Identity, error) {
	rawCredential = strings.TrimSpace(rawCredential)
	if rawCredential == "" {
		return Identity{}, ErrInvalidCredential
	}

	claims := jwt.MapClaims{}
	_, err := v.parser.ParseWithClaims(rawCredential, claims, func(token *jwt.Token) (interface{}, error) {
		return v.secret, nil
	})
	if err != nil {
		return Identity{}, ErrInvalidCredential
	}

	orgID, _ := claims["org_id"].(string)
	orgID = strings.TrimSpace(orgID)
	if orgID == "" {
		return Identity{}, ErrInvalidCredential
	}

	subject, _ := claims["sub"].(string)

	return Identity{
		TenantID: orgID,
		UserID:   strings.TrimSpace(subject),
	}, nil
}
