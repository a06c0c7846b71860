package redis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewLedger_RejectsShortTTL(t *testing.T) {
	_, err := NewLedger("localhost:6379", 0, time.Hour)
	require.Error(t, err)
	require.Contains(t, err.Error(), "retention floor")
}

func TestLedgerKey_IsTenantScoped(t *testing.T) {
	require.Equal(t, "pulse:idem:org1:k1", ledgerKey("org1", "k1"))
	require.NotEqual(t, ledgerKey("org1", "k1"), ledgerKey("org2", "k1"))
}
