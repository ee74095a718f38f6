package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChatErrorWrapping(t *testing.T) {
	cause := errors.New("connection refused")
	err := UpstreamUnavailable("model provider unavailable", cause)

	require.ErrorIs(t, err, cause)
	require.Contains(t, err.Error(), "UPSTREAM_UNAVAILABLE")
	require.True(t, IsCode(err, ErrCodeUpstreamUnavailable))
	require.False(t, IsCode(err, ErrCodeNotFound))
}

func TestInvalidArgumentCarriesField(t *testing.T) {
	err := InvalidArgument("title", "must not be empty")
	require.Equal(t, "title", err.Context["field"])
	require.True(t, IsCode(err, ErrCodeInvalidArgument))
}

func TestGetCodeFromError(t *testing.T) {
	require.Equal(t, ErrCodeNotFound, GetCodeFromError(NotFound("gone"), ErrCodeStorageError))
	require.Equal(t, ErrCodeStorageError, GetCodeFromError(errors.New("plain"), ErrCodeStorageError))
}
