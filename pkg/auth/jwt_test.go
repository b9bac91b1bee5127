package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAccessToken_RoundTrip(t *testing.T) {
	tok, err := NewAccessToken("ops-1", "ops@dynaprizes.com", RoleAdmin, "secret", time.Minute)
	require.NoError(t, err)

	claims, err := Parse(tok, "secret")
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, claims.Role)
	assert.Equal(t, "ops-1", claims.Subject)
}

func TestParse_Rejects(t *testing.T) {
	tok, err := NewAccessToken("ops-1", "ops@dynaprizes.com", RoleAdmin, "secret", time.Minute)
	require.NoError(t, err)
	_, err = Parse(tok, "other-secret")
	assert.Error(t, err)

	expired, err := NewAccessToken("ops-1", "ops@dynaprizes.com", RoleAdmin, "secret", -time.Minute)
	require.NoError(t, err)
	_, err = Parse(expired, "secret")
	assert.Error(t, err)
}
