package auth

import (
	"context"
	"fmt"
	"strings"
)

// APIKeyVerifier maps opaque API keys to tenants. Meant for development
// and service-to-service callers that hold long-lived keys instead of
// JWTs.
type APIKeyVerifier struct {
	keys map[string]Identity
}

// NewAPIKeyVerifier parses a "tenant:key,tenant:key" spec, the same shape
// the service reads from configuration.
func NewAPIKeyVerifier(spec string) (*APIKeyVerifier, error) {
	keys := make(map[string]Identity)

	for _, pair := range strings.Split(spec, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		parts := strings.SplitN(pair, ":", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf(`api keys must be "tenant:key,tenant:key"`)
		}
		tenant := strings.TrimSpace(parts[0])
		key := strings.TrimSpace(parts[1])
		if tenant == "" || key == "" {
			return nil, fmt.Errorf(`api keys must be "tenant:key,tenant:key"`)
		}
		keys[key] = Identity{TenantID: tenant, UserID: "apikey:" + tenant}
	}

	if len(keys) == 0 {
		return nil, fmt.Errorf("at least one api key is required")
	}

	return &APIKeyVerifier{keys: keys}, nil
}

func (v *APIKeyVerifier) Verify(ctx context.Context, rawCredential string) (Identity, error) {
	id, ok := v.keys[strings.TrimSpace(rawCredential)]
	if !ok {
		return Identity{}, ErrInvalidCredential
	}
	return id, nil
}
