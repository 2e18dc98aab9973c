package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTokens(t *testing.T, cfg Config) *Tokens {
	t.Helper()
	if cfg.Secret == "" {
		cfg.Secret = "test-secret"
	}
	tokens, err := NewTokens(cfg)
	require.NoError(t, err)
	return tokens
}

func TestGenerateAndValidateToken(t *testing.T) {
	tokens := newTokens(t, Config{})
	token, err := tokens.GenerateToken("u-1", "alice", "Client", []string{"recA"})
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := tokens.ValidateToken(token)
	require.NoError(t, err)
	require.Equal(t, "u-1", claims.UserID)
	require.Equal(t, "alice", claims.Name)
	require.Equal(t, "Client", claims.Role)
	require.Equal(t, []string{"recA"}, claims.ClientIDs)
}

func TestValidateToken_Invalid(t *testing.T) {
	tokens := newTokens(t, Config{})
	_, err := tokens.ValidateToken("invalid.token")
	require.Error(t, err)
}

func TestValidateToken_WrongAudienceOrSecret(t *testing.T) {
	issuer := newTokens(t, Config{Audience: "other"})
	token, err := issuer.GenerateToken("u-1", "alice", "Admin", nil)
	require.NoError(t, err)

	_, err = newTokens(t, Config{}).ValidateToken(token)
	require.Error(t, err)

	_, err = newTokens(t, Config{Secret: "different", Audience: "other"}).ValidateToken(token)
	require.Error(t, err)
}

func TestValidateToken_Expired(t *testing.T) {
	tokens := newTokens(t, Config{TTL: time.Nanosecond})
	token, err := tokens.GenerateToken("u-1", "alice", "Admin", nil)
	require.NoError(t, err)
	time.Sleep(1100 * time.Millisecond)
	_, err = tokens.ValidateToken(token)
	require.Error(t, err)
}

func TestNewTokensRequiresSecret(t *testing.T) {
	_, err := NewTokens(Config{})
	require.Error(t, err)
}

func TestVerifyPassword(t *testing.T) {
	hash, err := HashPassword("s3cret")
	require.NoError(t, err)
	require.True(t, VerifyPassword(hash, "s3cret"))
	require.False(t, VerifyPassword(hash, "wrong"))

	require.True(t, VerifyPassword("plain", "plain"))
	require.False(t, VerifyPassword("plain", "Plain"))
	require.False(t, VerifyPassword("", ""))
}
