package middleware

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRateLimiterBudget(t *testing.T) {
	rl := NewRateLimiter(5)

	for i := 0; i < 5; i++ {
		require.True(t, rl.Allow("user-1"), "request %d should pass", i)
	}
	require.False(t, rl.Allow("user-1"))
}

func TestRateLimiterKeysAreIndependent(t *testing.T) {
	rl := NewRateLimiter(2)

	require.True(t, rl.Allow("user-1"))
	require.True(t, rl.Allow("user-1"))
	require.False(t, rl.Allow("user-1"))

	// A different user still has a full budget.
	require.True(t, rl.Allow("user-2"))
}
