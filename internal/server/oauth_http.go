package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/satwhiz/inboxtriage/internal/google"
	"github.com/satwhiz/inboxtriage/internal/instrumentation"
	"github.com/satwhiz/inboxtriage/internal/mcp/oauth"
)

// OAuthHTTPServer wraps an MCP server with OAuth 2.1 authentication
// It implements RFC 9728 Protected Resource Metadata for MCP clients to discover
// the authorization server
type OAuthHTTPServer struct {
	mcpServer    *mcpserver.MCPServer
	oauthHandler *oauth.Handler
	httpServer   *http.Server
	serverType   string // "sse" or "streamable-http"
	metrics      *instrumentation.Metrics
	health       *HealthChecker
	logger       *slog.Logger
}

// OAuthConfig holds the settings for the OAuth-enabled HTTP server.
type OAuthConfig struct {
	// BaseURL is the public URL where the server is reachable. It becomes
	// the OAuth resource identifier (RFC 8707).
	BaseURL string

	// Google OAuth client credentials used for the proxy flow to Google.
	GoogleClientID     string
	GoogleClientSecret string

	// Security settings forwarded to the OAuth handler.
	AllowPublicClientRegistration bool
	RegistrationAccessToken       string
	AllowInsecureAuthWithoutState bool
	MaxClientsPerIP               int
	EncryptionKey                 []byte

	// AllowedCustomSchemes restricts the custom redirect URI schemes
	// accepted during client registration (regex patterns). Empty means
	// the handler default.
	AllowedCustomSchemes []string

	// Logger for OAuth handler logging (optional).
	Logger *slog.Logger
}

// NewOAuthHTTPServer creates a new OAuth-enabled HTTP server for MCP
func NewOAuthHTTPServer(mcpServer *mcpserver.MCPServer, serverType string, cfg OAuthConfig) (*OAuthHTTPServer, error) {
	oauthConfig := &oauth.Config{
		Resource:        cfg.BaseURL,
		SupportedScopes: google.GmailOAuthScopes,
		GoogleAuth: oauth.GoogleAuthConfig{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
		},
		RateLimit: oauth.RateLimitConfig{
			Rate:  10, // 10 requests per second per IP
			Burst: 20, // Allow burst of 20 requests
		},
		Security: oauth.SecurityConfig{
			AllowPublicClientRegistration: cfg.AllowPublicClientRegistration,
			RegistrationAccessToken:       cfg.RegistrationAccessToken,
			AllowInsecureAuthWithoutState: cfg.AllowInsecureAuthWithoutState,
			MaxClientsPerIP:               cfg.MaxClientsPerIP,
			EncryptionKey:                 cfg.EncryptionKey,
			AllowCustomRedirectSchemes:    len(cfg.AllowedCustomSchemes) > 0,
			AllowedCustomSchemes:          cfg.AllowedCustomSchemes,
		},
		CleanupInterval: 1 * time.Minute, // Cleanup expired tokens every minute
		Logger:          cfg.Logger,
	}

	oauthHandler, err := oauth.NewHandler(oauthConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create OAuth handler: %w", err)
	}

	return &OAuthHTTPServer{
		mcpServer:    mcpServer,
		oauthHandler: oauthHandler,
		serverType:   serverType,
		logger:       cfg.Logger,
	}, nil
}

// SetMetrics sets the metrics recorder for HTTP request instrumentation.
func (s *OAuthHTTPServer) SetMetrics(metrics *instrumentation.Metrics) {
	s.metrics = metrics
}

// SetHealthChecker sets the health checker whose endpoints are registered
// alongside the MCP and OAuth endpoints.
func (s *OAuthHTTPServer) SetHealthChecker(health *HealthChecker) {
	s.health = health
}

// Start starts the OAuth-enabled HTTP server
func (s *OAuthHTTPServer) Start(addr string) error {
	// Validate HTTPS requirement for OAuth 2.1
	// Exception: localhost is allowed to use HTTP for development
	config := s.oauthHandler.GetConfig()
	baseURL := config.Resource
	if err := validateHTTPSRequirement(baseURL); err != nil {
		return err
	}

	mux := http.NewServeMux()

	// Protected Resource Metadata endpoint (RFC 9728)
	// This tells MCP clients where to find the authorization server
	s.handleOAuth(mux, "/.well-known/oauth-protected-resource", s.oauthHandler.ServeProtectedResourceMetadata)

	// Authorization Server Metadata endpoint (RFC 8414)
	s.handleOAuth(mux, "/.well-known/oauth-authorization-server", s.oauthHandler.ServeAuthorizationServerMetadata)

	// Dynamic Client Registration endpoint (RFC 7591)
	s.handleOAuth(mux, "/oauth/register", s.oauthHandler.ServeDynamicClientRegistration)

	// Authorization endpoint (proxies to Google with PKCE)
	s.handleOAuth(mux, "/oauth/authorize", s.oauthHandler.ServeAuthorization)

	// Callback endpoint for the Google redirect (matches the default
	// redirect URL the handler registers with Google)
	s.handleOAuth(mux, "/oauth/google/callback", s.oauthHandler.ServeGoogleCallback)

	// Token endpoint (authorization_code and refresh_token grants)
	s.handleOAuth(mux, "/oauth/token", s.oauthHandler.ServeToken)

	// Client-authenticated Token Revocation endpoint (RFC 7009)
	s.handleOAuth(mux, "/oauth/revoke", s.oauthHandler.ServeTokenRevocation)

	// Administrative revocation by user email, used by operators to force
	// re-authentication for an account
	s.handleOAuth(mux, "/oauth/revoke/user", s.oauthHandler.ServeRevoke)

	// Health check endpoints (unauthenticated)
	if s.health != nil {
		s.health.RegisterHealthEndpoints(mux)
	}

	// Register MCP endpoints based on server type
	switch s.serverType {
	case "sse":
		sseServer := mcpserver.NewSSEServer(s.mcpServer,
			mcpserver.WithSSEEndpoint("/sse"),
			mcpserver.WithMessageEndpoint("/message"),
		)

		mux.Handle("/sse", s.protect(sseServer))
		mux.Handle("/message", s.protect(sseServer))

	case "streamable-http":
		httpServer := mcpserver.NewStreamableHTTPServer(s.mcpServer,
			mcpserver.WithEndpointPath("/mcp"),
		)

		mux.Handle("/mcp", s.protect(httpServer))

	default:
		return fmt.Errorf("unsupported server type: %s", s.serverType)
	}

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	return s.httpServer.ListenAndServe()
}

// handleOAuth registers an OAuth endpoint with rate limiting and instrumentation.
func (s *OAuthHTTPServer) handleOAuth(mux *http.ServeMux, pattern string, handler http.HandlerFunc) {
	mux.Handle(pattern, s.instrumentationMiddleware(
		s.oauthHandler.RateLimitMiddleware(s.oauthInstrumentationWrapper(handler))))
}

// protect wraps an MCP handler with rate limiting, token validation, SSO
// token forwarding, and instrumentation. The SSO middleware sits inside
// token validation because it needs the authenticated user from the context.
func (s *OAuthHTTPServer) protect(next http.Handler) http.Handler {
	var ssoMetrics oauth.SSOMetricsRecorder
	if s.metrics != nil {
		ssoMetrics = s.metrics
	}
	return s.instrumentationMiddleware(
		s.oauthHandler.RateLimitMiddleware(
			s.oauthHandler.ValidateGoogleToken(
				oauth.WrapWithSSOAccessTokenAndMetrics(next, s.oauthHandler.GetStore(), s.logger, ssoMetrics))))
}

// instrumentationMiddleware records HTTP request metrics for each request.
func (s *OAuthHTTPServer) instrumentationMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.metrics == nil {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		rw := newResponseWriter(w)
		next.ServeHTTP(rw, r)
		s.metrics.RecordHTTPRequest(r.Context(), r.Method, r.URL.Path, rw.statusCode, time.Since(start))
	})
}

// oauthInstrumentationWrapper records OAuth authentication outcomes for
// requests to OAuth endpoints.
func (s *OAuthHTTPServer) oauthInstrumentationWrapper(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.metrics == nil {
			next.ServeHTTP(w, r)
			return
		}

		rw := newResponseWriter(w)
		next.ServeHTTP(rw, r)

		if strings.HasPrefix(r.URL.Path, "/oauth/") {
			result := instrumentation.OAuthResultSuccess
			if rw.statusCode >= http.StatusBadRequest {
				result = instrumentation.OAuthResultFailure
			}
			s.metrics.RecordOAuthAuth(r.Context(), result)
		}
	})
}

// responseWriter captures the status code written to the underlying writer.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Shutdown gracefully shuts down the server
func (s *OAuthHTTPServer) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

// GetOAuthHandler returns the OAuth handler for testing or direct access
func (s *OAuthHTTPServer) GetOAuthHandler() *oauth.Handler {
	return s.oauthHandler
}

// validateHTTPSRequirement ensures OAuth 2.1 HTTPS compliance
// Allows HTTP only for loopback addresses (localhost, 127.0.0.1, ::1)
func validateHTTPSRequirement(baseURL string) error {
	if baseURL == "" {
		return fmt.Errorf("base URL cannot be empty")
	}

	// Parse URL to properly validate scheme and host
	u, err := url.Parse(baseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}

	// Allow HTTP only for loopback addresses
	if u.Scheme == "http" {
		host := u.Hostname()
		if host != "localhost" && host != "127.0.0.1" && host != "::1" {
			return fmt.Errorf("OAuth 2.1 requires HTTPS for production (got: %s). Use HTTPS or localhost for development", baseURL)
		}
	} else if u.Scheme != "https" {
		return fmt.Errorf("invalid URL scheme: %s. Must be http (localhost only) or https", u.Scheme)
	}

	return nil
}
