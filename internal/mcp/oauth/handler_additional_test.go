package oauth

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/oauth2"
)

// stubRoundTripper answers every request with 200 OK so tests never
// reach Google's revocation endpoint.
type stubRoundTripper struct{}

func (stubRoundTripper) RoundTrip(r *http.Request) (*http.Response, error) {
	return &http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(strings.NewReader("{}")),
		Header:     make(http.Header),
		Request:    r,
	}, nil
}

func newOfflineHandler(t *testing.T) *Handler {
	t.Helper()
	handler, err := NewHandler(&Config{
		Resource:   "https://mcp.example.com",
		HTTPClient: &http.Client{Transport: stubRoundTripper{}},
	})
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}
	return handler
}

func TestNewHandler_WithGoogleCredentials(t *testing.T) {
	handler, err := NewHandler(&Config{
		Resource: "https://mcp.example.com",
		GoogleAuth: GoogleAuthConfig{
			ClientID:     "test-client-id",
			ClientSecret: "test-client-secret",
		},
		SupportedScopes: []string{
			"https://www.googleapis.com/auth/gmail.readonly",
		},
	})
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}

	if !handler.CanRefreshTokens() {
		t.Error("Expected handler to support token refresh with Google credentials")
	}
}

func TestNewHandler_WithoutGoogleCredentials(t *testing.T) {
	handler, err := NewHandler(&Config{
		Resource: "https://mcp.example.com",
	})
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}

	if handler.CanRefreshTokens() {
		t.Error("Expected handler to not support token refresh without Google credentials")
	}
}

func TestNewHandler_WithRateLimiting(t *testing.T) {
	handler, err := NewHandler(&Config{
		Resource: "https://mcp.example.com",
		RateLimit: RateLimitConfig{
			Rate:            10,
			Burst:           20,
			CleanupInterval: 5 * time.Minute,
		},
		CleanupInterval: 1 * time.Minute,
	})
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}

	if handler.rateLimiter == nil {
		t.Error("Expected rate limiter to be initialized")
	}
}

func TestNewHandler_NoRateLimiting(t *testing.T) {
	handler, err := NewHandler(&Config{
		Resource: "https://mcp.example.com",
	})
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}

	if handler.rateLimiter != nil {
		t.Error("Expected no rate limiter with zero rate")
	}
}

func TestNewHandler_DefaultScopes(t *testing.T) {
	handler, err := NewHandler(&Config{
		Resource: "https://mcp.example.com",
	})
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}

	cfg := handler.GetConfig()
	if len(cfg.SupportedScopes) == 0 {
		t.Fatal("Expected default scopes to be set")
	}

	hasGmail := false
	hasEmail := false
	for _, scope := range cfg.SupportedScopes {
		if scope == "https://www.googleapis.com/auth/gmail.modify" {
			hasGmail = true
		}
		if scope == "https://www.googleapis.com/auth/userinfo.email" {
			hasEmail = true
		}
	}

	if !hasGmail {
		t.Error("Expected default scopes to include Gmail modify")
	}
	if !hasEmail {
		t.Error("Expected default scopes to include the user email scope")
	}
}

func TestNewHandler_CustomLogger(t *testing.T) {
	var buf bytes.Buffer
	customLogger := slog.New(slog.NewTextHandler(&buf, nil))

	handler, err := NewHandler(&Config{
		Resource: "https://mcp.example.com",
		Logger:   customLogger,
	})
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}

	if handler.logger != customLogger {
		t.Error("Expected handler to use custom logger")
	}
}

func TestHandler_RevokeToken(t *testing.T) {
	handler := newOfflineHandler(t)

	store := handler.GetStore()
	err := store.SaveGoogleToken("test@example.com", &oauth2.Token{
		AccessToken: "test-token",
		Expiry:      time.Now().Add(1 * time.Hour),
	})
	if err != nil {
		t.Fatalf("Failed to save token: %v", err)
	}

	if err := handler.RevokeToken("test@example.com"); err != nil {
		t.Errorf("RevokeToken() error = %v", err)
	}

	if _, err := store.GetGoogleToken("test@example.com"); err == nil {
		t.Error("Expected error when getting revoked token")
	}
}

func TestHandler_ServeRevoke(t *testing.T) {
	handler := newOfflineHandler(t)

	store := handler.GetStore()
	err := store.SaveGoogleToken("test@example.com", &oauth2.Token{
		AccessToken: "test-token",
		Expiry:      time.Now().Add(1 * time.Hour),
	})
	if err != nil {
		t.Fatalf("Failed to save token: %v", err)
	}

	t.Run("successful revocation", func(t *testing.T) {
		body, _ := json.Marshal(map[string]string{"email": "test@example.com"})
		req := httptest.NewRequest(http.MethodPost, "/oauth/revoke", bytes.NewReader(body))
		w := httptest.NewRecorder()

		handler.ServeRevoke(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("ServeRevoke() status = %d, want %d", w.Code, http.StatusOK)
		}
	})

	t.Run("method not allowed", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/oauth/revoke", nil)
		w := httptest.NewRecorder()

		handler.ServeRevoke(w, req)

		if w.Code != http.StatusMethodNotAllowed {
			t.Errorf("ServeRevoke() status = %d, want %d", w.Code, http.StatusMethodNotAllowed)
		}
	})

	t.Run("invalid request body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/oauth/revoke", bytes.NewReader([]byte("invalid json")))
		w := httptest.NewRecorder()

		handler.ServeRevoke(w, req)

		if w.Code != http.StatusBadRequest {
			t.Errorf("ServeRevoke() status = %d, want %d", w.Code, http.StatusBadRequest)
		}
	})

	t.Run("missing email", func(t *testing.T) {
		body, _ := json.Marshal(map[string]string{"email": ""})
		req := httptest.NewRequest(http.MethodPost, "/oauth/revoke", bytes.NewReader(body))
		w := httptest.NewRecorder()

		handler.ServeRevoke(w, req)

		if w.Code != http.StatusBadRequest {
			t.Errorf("ServeRevoke() status = %d, want %d", w.Code, http.StatusBadRequest)
		}
	})

	t.Run("unknown user still succeeds", func(t *testing.T) {
		body, _ := json.Marshal(map[string]string{"email": "unknown@example.com"})
		req := httptest.NewRequest(http.MethodPost, "/oauth/revoke", bytes.NewReader(body))
		w := httptest.NewRecorder()

		handler.ServeRevoke(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("ServeRevoke() status = %d, want %d", w.Code, http.StatusOK)
		}
	})
}

func TestHandler_CanRefreshTokens(t *testing.T) {
	t.Run("with credentials", func(t *testing.T) {
		handler, _ := NewHandler(&Config{
			Resource: "https://mcp.example.com",
			GoogleAuth: GoogleAuthConfig{
				ClientID:     "test-id",
				ClientSecret: "test-secret",
			},
		})

		if !handler.CanRefreshTokens() {
			t.Error("Expected CanRefreshTokens() = true with credentials")
		}
	})

	t.Run("without credentials", func(t *testing.T) {
		handler, _ := NewHandler(&Config{
			Resource: "https://mcp.example.com",
		})

		if handler.CanRefreshTokens() {
			t.Error("Expected CanRefreshTokens() = false without credentials")
		}
	})

	t.Run("with partial credentials", func(t *testing.T) {
		handler, _ := NewHandler(&Config{
			Resource: "https://mcp.example.com",
			GoogleAuth: GoogleAuthConfig{
				ClientID: "test-id",
			},
		})

		if handler.CanRefreshTokens() {
			t.Error("Expected CanRefreshTokens() = false with partial credentials")
		}
	})
}
