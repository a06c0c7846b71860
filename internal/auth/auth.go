// Package auth is the tenant-scoping gate. It turns a raw bearer
// credential into an Identity and injects it into the request context; the
// tenant a request acts on comes from here and only from here, never from
// the request body or query string.
package auth

import (
	"context"
	"errors"
)

// ErrInvalidCredential is returned by verifiers for any credential that
// does not resolve to a tenant.
var ErrInvalidCredential = errors.New("invalid credential")

// Identity is the authenticated caller: the owning tenant plus the
// principal acting on its behalf.
type Identity struct {
	TenantID string
	UserID   string
}

// Verifier consumes a raw credential and yields the caller's identity.
// Token internals (signatures, expiry, claims layout) are the verifier's
// concern; the rest of the service only ever sees the Identity.
type Verifier interface {
	Verify(ctx context.Context, rawCredential string) (Identity, error)
}

type contextKey struct{}

// WithIdentity attaches the authenticated identity to the context.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// FromContext returns the authenticated identity, if any.
func FromContext(ctx context.Context) (Identity, bool) {
	if v := ctx.Value(contextKey{}); v != nil {
		if id, ok := v.(Identity); ok {
			return id, true
		}
	}
	return Identity{}, false
}
