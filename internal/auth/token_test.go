package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndParseToken(t *testing.T) {
	tm := NewTokenManager("test-secret", 30)

	token, expiresAt, err := tm.GenerateToken("ops")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	assert.WithinDuration(t, time.Now().Add(30*time.Minute), expiresAt, 5*time.Second)

	claims, err := tm.ParseToken(token)
	require.NoError(t, err)
	assert.True(t, claims.Admin)
	assert.Equal(t, "ops", claims.Subject)
}

func TestParseTokenRejectsWrongSecret(t *testing.T) {
	token, _, err := NewTokenManager("secret-a", 30).GenerateToken("ops")
	require.NoError(t, err)

	_, err = NewTokenManager("secret-b", 30).ParseToken(token)
	assert.Error(t, err)
}

func TestParseTokenRejectsGarbage(t *testing.T) {
	_, err := NewTokenManager("test-secret", 30).ParseToken("not.a.jwt")
	assert.Error(t, err)
}
