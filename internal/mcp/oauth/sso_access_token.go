package oauth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/satwhiz/inboxtriage/internal/instrumentation"
)

const (
	// SSOAccessTokenHeader is the HTTP header name for forwarded Google access tokens.
	// When SSO token forwarding is enabled, the upstream aggregator forwards the
	// user's Google access token in this header alongside the bearer token in the
	// Authorization header.
	//
	// The bearer token proves identity, while the access token provides Google API
	// access with the required Gmail scopes.
	SSOAccessTokenHeader = "X-Google-Access-Token"

	// SSORefreshTokenHeader is the optional HTTP header name for forwarded Google refresh tokens.
	// If provided, enables automatic token refresh for long-running sessions.
	SSORefreshTokenHeader = "X-Google-Refresh-Token"

	// SSOTokenExpiryHeader is the optional HTTP header name for the access token expiry time.
	// Expected format: RFC3339 (e.g., "2024-01-20T15:04:05Z")
	// If not provided, a default expiry of 1 hour is assumed.
	SSOTokenExpiryHeader = "X-Google-Token-Expiry"

	// defaultAccessTokenExpiry is the default expiry duration for access tokens
	// when no expiry header is provided. Google access tokens typically expire in 1 hour.
	defaultAccessTokenExpiry = 1 * time.Hour
)

// googleAccessTokenKey is the context key for SSO-forwarded Google access tokens.
const googleAccessTokenKey contextKey = "google_access_token"

// ContextWithGoogleAccessToken returns a context carrying a forwarded Google access token.
func ContextWithGoogleAccessToken(ctx context.Context, accessToken string) context.Context {
	return context.WithValue(ctx, googleAccessTokenKey, accessToken)
}

// GetGoogleAccessTokenFromContext retrieves a forwarded Google access token from the context.
func GetGoogleAccessTokenFromContext(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(googleAccessTokenKey).(string)
	return token, ok && token != ""
}

// GoogleTokenSaver stores Google OAuth tokens keyed by user email.
// *Store satisfies this interface.
type GoogleTokenSaver interface {
	SaveGoogleToken(email string, token *oauth2.Token) error
}

// SSOMetricsRecorder is an interface for recording SSO token injection metrics.
// This allows the middleware to record metrics without directly depending on the full Metrics type.
type SSOMetricsRecorder interface {
	RecordSSOTokenInjection(ctx context.Context, result string)
}

// SSOMiddlewareConfig holds configuration for the SSO access token middleware.
type SSOMiddlewareConfig struct {
	// Store is the token store that receives forwarded access tokens
	Store GoogleTokenSaver

	// Logger for audit and debug logging (optional, uses slog.Default if nil)
	Logger *slog.Logger

	// Metrics for recording SSO token injection metrics (optional)
	Metrics SSOMetricsRecorder
}

// SSOAccessTokenMiddleware creates middleware that extracts and stores forwarded Google access tokens.
// This middleware must wrap handlers that are already protected by OAuth validation,
// because it reads the authenticated user from the request context.
//
// When SSO token forwarding is enabled:
//  1. The upstream aggregator authenticates the user and validates the bearer token
//  2. The aggregator forwards the Google access token in X-Google-Access-Token
//  3. This middleware stores the access token for Gmail API calls and injects it into context
//
// The middleware processes the access token only when the user is authenticated
// and the X-Google-Access-Token header is present and non-empty. All other
// requests pass through untouched.
func SSOAccessTokenMiddleware(store GoogleTokenSaver, logger *slog.Logger) func(http.Handler) http.Handler {
	return SSOAccessTokenMiddlewareWithConfig(&SSOMiddlewareConfig{
		Store:  store,
		Logger: logger,
	})
}

// SSOAccessTokenMiddlewareWithConfig creates middleware with full configuration including metrics.
// This is the preferred way to create the middleware when metrics are available.
func SSOAccessTokenMiddlewareWithConfig(config *SSOMiddlewareConfig) func(http.Handler) http.Handler {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	recordMetric := func(ctx context.Context, result string) {
		if config.Metrics != nil {
			config.Metrics.RecordSSOTokenInjection(ctx, result)
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			// The OAuth middleware will have already returned 401 if auth was required,
			// so an unauthenticated request here just passes through.
			userInfo, ok := GetUserFromContext(ctx)
			if !ok || userInfo == nil || userInfo.Email == "" {
				recordMetric(ctx, instrumentation.SSOInjectionResultNoUser)
				next.ServeHTTP(w, r)
				return
			}

			accessToken := r.Header.Get(SSOAccessTokenHeader)
			if accessToken == "" {
				// Normal flow: the user authenticated directly with inboxtriage
				recordMetric(ctx, instrumentation.SSOInjectionResultNoToken)
				next.ServeHTTP(w, r)
				return
			}

			refreshToken := r.Header.Get(SSORefreshTokenHeader)
			expiry := parseTokenExpiry(r.Header.Get(SSOTokenExpiryHeader))

			token := &oauth2.Token{
				AccessToken:  accessToken,
				RefreshToken: refreshToken,
				TokenType:    "Bearer",
				Expiry:       expiry,
			}

			// Store the forwarded access token so Gmail clients created through the
			// token provider reach the user's mailbox.
			storeErr := config.Store.SaveGoogleToken(userInfo.Email, token)
			if storeErr != nil {
				logger.Error("Failed to store forwarded SSO access token",
					"email", hashEmailForLog(userInfo.Email),
					"error", storeErr,
				)
				recordMetric(ctx, instrumentation.SSOInjectionResultStoreFailed)
				// Continue anyway, the token can still be injected into context
			} else {
				logger.Info("Stored forwarded SSO access token",
					"email", hashEmailForLog(userInfo.Email),
					"has_refresh_token", refreshToken != "",
					"expires_in", time.Until(expiry).Round(time.Second).String(),
				)
				recordMetric(ctx, instrumentation.SSOInjectionResultSuccess)
			}

			// Inject the access token into the request context for downstream use,
			// so handlers can read it via GetGoogleAccessTokenFromContext without a
			// store lookup.
			ctx = ContextWithGoogleAccessToken(ctx, accessToken)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// parseTokenExpiry parses the token expiry header value.
// Returns a default expiry of 1 hour from now if the value is empty or invalid.
func parseTokenExpiry(expiryStr string) time.Time {
	if expiryStr == "" {
		return time.Now().Add(defaultAccessTokenExpiry)
	}

	expiry, err := time.Parse(time.RFC3339, expiryStr)
	if err != nil {
		return time.Now().Add(defaultAccessTokenExpiry)
	}

	return expiry
}

// hashEmailForLog returns a partially masked version of the email for logging.
// This prevents PII leakage in logs while still allowing correlation.
// Format: first 2 chars of local part + "***@" + full domain (e.g., "te***@example.com")
func hashEmailForLog(email string) string {
	if email == "" {
		return ""
	}

	// Short emails can't be meaningfully masked
	if len(email) <= 8 {
		return "***"
	}

	localPart, domain, found := strings.Cut(email, "@")
	if !found || localPart == "" || domain == "" {
		return "***"
	}

	if len(localPart) <= 2 {
		return localPart + "***@" + domain
	}
	return localPart[:2] + "***@" + domain
}

// WrapWithSSOAccessToken wraps an HTTP handler with SSO access token middleware.
// This is a convenience function that creates and applies the middleware.
func WrapWithSSOAccessToken(handler http.Handler, store GoogleTokenSaver, logger *slog.Logger) http.Handler {
	return SSOAccessTokenMiddleware(store, logger)(handler)
}

// WrapWithSSOAccessTokenAndMetrics wraps an HTTP handler with SSO access token middleware including metrics.
// This is the preferred way to wrap handlers when metrics are available.
func WrapWithSSOAccessTokenAndMetrics(handler http.Handler, store GoogleTokenSaver, logger *slog.Logger, metrics SSOMetricsRecorder) http.Handler {
	return SSOAccessTokenMiddlewareWithConfig(&SSOMiddlewareConfig{
		Store:   store,
		Logger:  logger,
		Metrics: metrics,
	})(handler)
}
