package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUnsignedTokenRoundTrip(t *testing.T) {
	t.Parallel()

	token, err := BuildUnsignedToken(DevClaims("dev-user-1", "dev@example.com", "Dev User"))
	require.NoError(t, err)

	claims, err := UnsignedTokenVerifier()(context.Background(), token)
	require.NoError(t, err)

	creds, err := DefaultCredentialExtractor(claims)
	require.NoError(t, err)
	require.Equal(t, "dev-user-1", creds.ID)
	require.Equal(t, "dev@example.com", creds.Email)
	require.True(t, creds.EmailVerified)
	require.NotNil(t, creds.Name)
	require.Equal(t, "Dev User", *creds.Name)
}

func TestUnsignedTokenWithoutPrincipalRejected(t *testing.T) {
	t.Parallel()

	token, err := BuildUnsignedToken(map[string]interface{}{"email": "nobody@example.com"})
	require.NoError(t, err)

	claims, err := UnsignedTokenVerifier()(context.Background(), token)
	require.NoError(t, err)

	_, err = DefaultCredentialExtractor(claims)
	require.Error(t, err)
}

func TestUnsignedVerifierRejectsGarbage(t *testing.T) {
	t.Parallel()

	_, err := UnsignedTokenVerifier()(context.Background(), "not-a-jwt")
	require.Error(t, err)
}
