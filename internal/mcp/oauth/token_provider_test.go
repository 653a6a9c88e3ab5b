package oauth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func TestTokenProvider_ByAccount(t *testing.T) {
	store := NewStore()
	provider := NewTokenProvider(store)
	require.NotNil(t, provider)

	token := &oauth2.Token{
		AccessToken:  "test-access-token",
		RefreshToken: "test-refresh-token",
		TokenType:    "Bearer",
		Expiry:       time.Now().Add(time.Hour),
	}
	require.NoError(t, store.SaveGoogleToken("default", token))

	retrieved, err := provider.GetTokenForAccount(context.Background(), "default")
	require.NoError(t, err)
	assert.Equal(t, token.AccessToken, retrieved.AccessToken)
	assert.Equal(t, token.RefreshToken, retrieved.RefreshToken)
	assert.Equal(t, token.TokenType, retrieved.TokenType)
}

func TestTokenProvider_ContextUserPriority(t *testing.T) {
	store := NewStore()
	provider := NewTokenProvider(store)

	userToken := &oauth2.Token{
		AccessToken: "user-token",
		Expiry:      time.Now().Add(time.Hour),
	}
	accountToken := &oauth2.Token{
		AccessToken: "account-token",
		Expiry:      time.Now().Add(time.Hour),
	}
	require.NoError(t, store.SaveGoogleToken("user@example.com", userToken))
	require.NoError(t, store.SaveGoogleToken("default", accountToken))

	// An authenticated user in the context wins over the account name
	ctx := context.WithValue(context.Background(), userContextKey, &GoogleUserInfo{Email: "user@example.com"})
	retrieved, err := provider.GetTokenForAccount(ctx, "default")
	require.NoError(t, err)
	assert.Equal(t, "user-token", retrieved.AccessToken)

	// Without a user in the context the account token is used
	retrieved, err = provider.GetTokenForAccount(context.Background(), "default")
	require.NoError(t, err)
	assert.Equal(t, "account-token", retrieved.AccessToken)
}

func TestTokenProvider_ContextUserFallsBackToAccount(t *testing.T) {
	store := NewStore()
	provider := NewTokenProvider(store)

	accountToken := &oauth2.Token{
		AccessToken: "account-token",
		Expiry:      time.Now().Add(time.Hour),
	}
	require.NoError(t, store.SaveGoogleToken("default", accountToken))

	// The context user has no stored token, so the account lookup applies
	ctx := context.WithValue(context.Background(), userContextKey, &GoogleUserInfo{Email: "unknown@example.com"})
	retrieved, err := provider.GetTokenForAccount(ctx, "default")
	require.NoError(t, err)
	assert.Equal(t, "account-token", retrieved.AccessToken)
}

func TestTokenProvider_NonExistentUser(t *testing.T) {
	provider := NewTokenProvider(NewStore())

	_, err := provider.GetTokenForAccount(context.Background(), "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no Google OAuth token found")
}

func TestTokenProvider_HasTokenForAccount(t *testing.T) {
	store := NewStore()
	provider := NewTokenProvider(store)

	assert.False(t, provider.HasTokenForAccount("default"))

	token := &oauth2.Token{
		AccessToken: "test-access-token",
		Expiry:      time.Now().Add(time.Hour),
	}
	require.NoError(t, store.SaveGoogleToken("default", token))

	assert.True(t, provider.HasTokenForAccount("default"))
}

func TestTokenProvider_ExpiredToken(t *testing.T) {
	store := NewStore()
	provider := NewTokenProvider(store)

	expired := &oauth2.Token{
		AccessToken: "expired-token",
		Expiry:      time.Now().Add(-time.Minute),
	}
	require.NoError(t, store.SaveGoogleToken("default", expired))

	_, err := provider.GetTokenForAccount(context.Background(), "default")
	require.Error(t, err)
	assert.False(t, provider.HasTokenForAccount("default"))
}

func TestGetUserFromContext_Empty(t *testing.T) {
	user, ok := GetUserFromContext(context.Background())
	assert.False(t, ok)
	assert.Nil(t, user)
}
