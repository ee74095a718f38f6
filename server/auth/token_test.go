package auth

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	token, err := GenerateAccessToken(42, "test-secret")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	userID, err := ParseAccessToken(token, "test-secret")
	require.NoError(t, err)
	require.EqualValues(t, 42, userID)
}

func TestAccessTokenWrongSecret(t *testing.T) {
	token, err := GenerateAccessToken(42, "test-secret")
	require.NoError(t, err)

	_, err = ParseAccessToken(token, "other-secret")
	require.Error(t, err)
}

func TestAccessTokenGarbage(t *testing.T) {
	_, err := ParseAccessToken("not.a.token", "test-secret")
	require.Error(t, err)

	_, err = ParseAccessToken("", "test-secret")
	require.Error(t, err)
}
