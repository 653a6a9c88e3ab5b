package oauth

import (
	"testing"
	"time"

	"golang.org/x/oauth2"
)

func TestNewStore(t *testing.T) {
	store := NewStore()
	if store == nil {
		t.Fatal("NewStore() returned nil")
	}

	stats := store.Stats()
	if stats["google_tokens"] != 0 {
		t.Errorf("New store should have 0 google_tokens, got %d", stats["google_tokens"])
	}
	if stats["refresh_tokens"] != 0 {
		t.Errorf("New store should have 0 refresh_tokens, got %d", stats["refresh_tokens"])
	}
}

func TestStore_SaveAndGetGoogleToken(t *testing.T) {
	store := NewStore()

	token := &oauth2.Token{
		AccessToken: "google-access-token",
		TokenType:   "Bearer",
		Expiry:      time.Now().Add(1 * time.Hour),
	}

	// Save Google token
	if err := store.SaveGoogleToken("user@example.com", token); err != nil {
		t.Fatalf("SaveGoogleToken() error = %v", err)
	}

	// Get Google token
	retrieved, err := store.GetGoogleToken("user@example.com")
	if err != nil {
		t.Fatalf("GetGoogleToken() error = %v", err)
	}

	if retrieved.AccessToken != token.AccessToken {
		t.Errorf("GetGoogleToken() AccessToken = %s, want %s", retrieved.AccessToken, token.AccessToken)
	}
}

func TestStore_SaveGoogleTokenEmptyEmail(t *testing.T) {
	store := NewStore()

	token := &oauth2.Token{
		AccessToken: "google-access-token",
	}

	err := store.SaveGoogleToken("", token)
	if err == nil {
		t.Error("SaveGoogleToken() with empty email should return error")
	}
}

func TestStore_SaveGoogleTokenNil(t *testing.T) {
	store := NewStore()

	err := store.SaveGoogleToken("user@example.com", nil)
	if err == nil {
		t.Error("SaveGoogleToken() with nil token should return error")
	}
}

func TestStore_GetGoogleTokenNotFound(t *testing.T) {
	store := NewStore()

	_, err := store.GetGoogleToken("nonexistent@example.com")
	if err == nil {
		t.Error("GetGoogleToken() for non-existent user should return error")
	}
}

func TestStore_GetGoogleTokenExpired(t *testing.T) {
	store := NewStore()

	token := &oauth2.Token{
		AccessToken: "google-access-token",
		TokenType:   "Bearer",
		Expiry:      time.Now().Add(-1 * time.Hour), // Expired
	}

	if err := store.SaveGoogleToken("user@example.com", token); err != nil {
		t.Fatalf("SaveGoogleToken() error = %v", err)
	}

	_, err := store.GetGoogleToken("user@example.com")
	if err == nil {
		t.Error("GetGoogleToken() for expired token should return error")
	}
}

func TestStore_DeleteGoogleToken(t *testing.T) {
	store := NewStore()

	token := &oauth2.Token{
		AccessToken: "google-access-token",
		TokenType:   "Bearer",
		Expiry:      time.Now().Add(1 * time.Hour),
	}

	if err := store.SaveGoogleToken("user@example.com", token); err != nil {
		t.Fatalf("SaveGoogleToken() error = %v", err)
	}

	if err := store.DeleteGoogleToken("user@example.com"); err != nil {
		t.Fatalf("DeleteGoogleToken() error = %v", err)
	}

	_, err := store.GetGoogleToken("user@example.com")
	if err == nil {
		t.Error("GetGoogleToken() after DeleteGoogleToken() should return error")
	}
}

func TestStore_DeleteGoogleTokenCascadesRefreshTokens(t *testing.T) {
	store := NewStore()

	token := &oauth2.Token{
		AccessToken: "google-access-token",
		Expiry:      time.Now().Add(1 * time.Hour),
	}

	if err := store.SaveGoogleToken("user@example.com", token); err != nil {
		t.Fatalf("SaveGoogleToken() error = %v", err)
	}
	expiresAt := time.Now().Add(DefaultRefreshTokenTTL).Unix()
	if err := store.SaveRefreshToken("refresh-abc", "user@example.com", expiresAt); err != nil {
		t.Fatalf("SaveRefreshToken() error = %v", err)
	}

	if err := store.DeleteGoogleToken("user@example.com"); err != nil {
		t.Fatalf("DeleteGoogleToken() error = %v", err)
	}

	// Refresh tokens for the user should be gone too
	_, err := store.GetRefreshToken("refresh-abc")
	if err == nil {
		t.Error("GetRefreshToken() after DeleteGoogleToken() should return error")
	}
}

func TestStore_SaveAndGetRefreshToken(t *testing.T) {
	store := NewStore()

	expiresAt := time.Now().Add(DefaultRefreshTokenTTL).Unix()
	if err := store.SaveRefreshToken("refresh-token", "user@example.com", expiresAt); err != nil {
		t.Fatalf("SaveRefreshToken() error = %v", err)
	}

	email, err := store.GetRefreshToken("refresh-token")
	if err != nil {
		t.Fatalf("GetRefreshToken() error = %v", err)
	}
	if email != "user@example.com" {
		t.Errorf("GetRefreshToken() email = %s, want user@example.com", email)
	}
}

func TestStore_SaveRefreshTokenValidation(t *testing.T) {
	store := NewStore()
	expiresAt := time.Now().Add(time.Hour).Unix()

	if err := store.SaveRefreshToken("", "user@example.com", expiresAt); err == nil {
		t.Error("SaveRefreshToken() with empty token should return error")
	}
	if err := store.SaveRefreshToken("refresh-token", "", expiresAt); err == nil {
		t.Error("SaveRefreshToken() with empty email should return error")
	}
}

func TestStore_GetExpiredRefreshToken(t *testing.T) {
	store := NewStore()

	expiresAt := time.Now().Add(-1 * time.Minute).Unix()
	if err := store.SaveRefreshToken("expired-refresh", "user@example.com", expiresAt); err != nil {
		t.Fatalf("SaveRefreshToken() error = %v", err)
	}

	_, err := store.GetRefreshToken("expired-refresh")
	if err == nil {
		t.Error("GetRefreshToken() for expired token should return error")
	}
}

func TestStore_DeleteRefreshToken(t *testing.T) {
	store := NewStore()

	expiresAt := time.Now().Add(time.Hour).Unix()
	if err := store.SaveRefreshToken("refresh-token", "user@example.com", expiresAt); err != nil {
		t.Fatalf("SaveRefreshToken() error = %v", err)
	}

	if err := store.DeleteRefreshToken("refresh-token"); err != nil {
		t.Fatalf("DeleteRefreshToken() error = %v", err)
	}

	_, err := store.GetRefreshToken("refresh-token")
	if err == nil {
		t.Error("GetRefreshToken() after DeleteRefreshToken() should return error")
	}
}

func TestStore_SaveTokenWithEmailMapping(t *testing.T) {
	store := NewStore()

	token := &oauth2.Token{
		AccessToken: "google-access-token",
		Expiry:      time.Now().Add(1 * time.Hour),
	}

	if err := store.SaveTokenWithEmailMapping("user@example.com", "proxy-access-token", token); err != nil {
		t.Fatalf("SaveTokenWithEmailMapping() error = %v", err)
	}

	// Retrievable by email (canonical) and by access token (Bearer lookup)
	byEmail, err := store.GetGoogleToken("user@example.com")
	if err != nil {
		t.Fatalf("GetGoogleToken() by email error = %v", err)
	}
	byToken, err := store.GetGoogleToken("proxy-access-token")
	if err != nil {
		t.Fatalf("GetGoogleToken() by access token error = %v", err)
	}

	if byEmail.AccessToken != token.AccessToken || byToken.AccessToken != token.AccessToken {
		t.Error("both lookups should return the saved Google token")
	}

	stats := store.Stats()
	if stats["token_email_mappings"] != 1 {
		t.Errorf("Stats() token_email_mappings = %d, want 1", stats["token_email_mappings"])
	}
}

func TestStore_SaveTokenWithEmailMappingValidation(t *testing.T) {
	store := NewStore()
	token := &oauth2.Token{AccessToken: "t", Expiry: time.Now().Add(time.Hour)}

	if err := store.SaveTokenWithEmailMapping("", "access", token); err == nil {
		t.Error("empty email should return error")
	}
	if err := store.SaveTokenWithEmailMapping("user@example.com", "", token); err == nil {
		t.Error("empty access token should return error")
	}
	if err := store.SaveTokenWithEmailMapping("user@example.com", "access", nil); err == nil {
		t.Error("nil token should return error")
	}
}

func TestStore_Stats(t *testing.T) {
	store := NewStore()

	token := &oauth2.Token{
		AccessToken: "google-access-token",
		Expiry:      time.Now().Add(1 * time.Hour),
	}
	if err := store.SaveGoogleToken("user@example.com", token); err != nil {
		t.Fatalf("SaveGoogleToken() error = %v", err)
	}
	if err := store.SaveRefreshToken("refresh-token", "user@example.com", time.Now().Add(time.Hour).Unix()); err != nil {
		t.Fatalf("SaveRefreshToken() error = %v", err)
	}

	stats := store.Stats()
	if stats["google_tokens"] != 1 {
		t.Errorf("Stats() google_tokens = %d, want 1", stats["google_tokens"])
	}
	if stats["refresh_tokens"] != 1 {
		t.Errorf("Stats() refresh_tokens = %d, want 1", stats["refresh_tokens"])
	}
}

func TestStore_SaveAndGetGoogleUserInfo(t *testing.T) {
	store := NewStore()

	userInfo := &GoogleUserInfo{
		Sub:           "12345",
		Email:         "user@example.com",
		EmailVerified: true,
		Name:          "Test User",
	}

	// Save user info
	if err := store.SaveGoogleUserInfo("user@example.com", userInfo); err != nil {
		t.Fatalf("SaveGoogleUserInfo() error = %v", err)
	}

	// Get user info
	retrieved, err := store.GetGoogleUserInfo("user@example.com")
	if err != nil {
		t.Fatalf("GetGoogleUserInfo() error = %v", err)
	}

	if retrieved.Email != userInfo.Email {
		t.Errorf("GetGoogleUserInfo() Email = %s, want %s", retrieved.Email, userInfo.Email)
	}
	if retrieved.Name != userInfo.Name {
		t.Errorf("GetGoogleUserInfo() Name = %s, want %s", retrieved.Name, userInfo.Name)
	}
}

func TestStore_SaveGoogleUserInfoEmptyEmail(t *testing.T) {
	store := NewStore()

	userInfo := &GoogleUserInfo{
		Sub:   "12345",
		Email: "user@example.com",
	}

	err := store.SaveGoogleUserInfo("", userInfo)
	if err == nil {
		t.Error("SaveGoogleUserInfo() with empty email should return error")
	}
}

func TestStore_SaveGoogleUserInfoNil(t *testing.T) {
	store := NewStore()

	err := store.SaveGoogleUserInfo("user@example.com", nil)
	if err == nil {
		t.Error("SaveGoogleUserInfo() with nil userInfo should return error")
	}
}

func TestStore_GetGoogleUserInfoNotFound(t *testing.T) {
	store := NewStore()

	_, err := store.GetGoogleUserInfo("nonexistent@example.com")
	if err == nil {
		t.Error("GetGoogleUserInfo() for non-existent user should return error")
	}
}
