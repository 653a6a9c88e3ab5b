package google

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const cacheDirName = "inboxtriage"

var accountNameRe = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// validateAccountName rejects account names that could escape the cache
// directory or produce surprising file names.
func validateAccountName(account string) error {
	if account == "" {
		return fmt.Errorf("account name must not be empty")
	}
	if !accountNameRe.MatchString(account) {
		return fmt.Errorf("invalid account name %q: only letters, digits, hyphen and underscore are allowed", account)
	}
	return nil
}

// getTokenFilePath returns the token file location for an account.
func getTokenFilePath(account string) string {
	cacheDir := filepath.Join(userCacheDir(), cacheDirName)
	return filepath.Join(cacheDir, "google-"+account+".token")
}

// HasTokenForAccount checks if a stored OAuth token exists for the account.
func HasTokenForAccount(account string) bool {
	if err := validateAccountName(account); err != nil {
		return false
	}
	_, err := os.ReadFile(getTokenFilePath(account))
	return err == nil
}

// HasToken checks if a stored OAuth token exists for the default account.
func HasToken() bool {
	return HasTokenForAccount("default")
}

// GetAuthURL returns the OAuth URL for user authorization.
func GetAuthURL() string {
	conf := getOAuthConfig()
	return conf.AuthCodeURL("state")
}

// SaveTokenForAccount exchanges an authorization code for tokens and saves
// them for the given account.
func SaveTokenForAccount(ctx context.Context, account string, authCode string) error {
	if err := validateAccountName(account); err != nil {
		return err
	}

	conf := getOAuthConfig()
	t, err := conf.Exchange(ctx, authCode)
	if err != nil {
		return fmt.Errorf("failed to exchange auth code: %w", err)
	}

	tokenFile := getTokenFilePath(account)
	if err := os.MkdirAll(filepath.Dir(tokenFile), 0700); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	tokenData := t.AccessToken + " " + t.RefreshToken
	if err := os.WriteFile(tokenFile, []byte(tokenData), 0600); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}
	return nil
}

// SaveToken exchanges an authorization code and saves the token for the
// default account.
func SaveToken(ctx context.Context, authCode string) error {
	return SaveTokenForAccount(ctx, "default", authCode)
}

// GetOAuthConfig returns the OAuth2 configuration. Client credentials come
// from the environment so the binary ships without embedded secrets.
func GetOAuthConfig() *oauth2.Config {
	return getOAuthConfig()
}

func getOAuthConfig() *oauth2.Config {
	const oob = "urn:ietf:wg:oauth:2.0:oob"
	return &oauth2.Config{
		ClientID:     os.Getenv("INBOXTRIAGE_GOOGLE_CLIENT_ID"),
		ClientSecret: os.Getenv("INBOXTRIAGE_GOOGLE_CLIENT_SECRET"),
		Endpoint:     google.Endpoint,
		RedirectURL:  oob,
		Scopes:       GmailOAuthScopes,
	}
}

// MigrateDefaultToken moves a legacy single-account token file to the
// per-account naming scheme. Idempotent; a missing legacy file is not an
// error.
func MigrateDefaultToken() error {
	cacheDir := filepath.Join(userCacheDir(), cacheDirName)
	oldFile := filepath.Join(cacheDir, "google.token")
	newFile := filepath.Join(cacheDir, "google-default.token")

	if _, err := os.Stat(oldFile); os.IsNotExist(err) {
		return nil
	}
	if _, err := os.Stat(newFile); err == nil {
		// Both exist; keep the per-account file and drop the legacy one.
		return os.Remove(oldFile)
	}
	return os.Rename(oldFile, newFile)
}

// GetTokenSourceForAccount returns an OAuth2 token source backed by the
// stored token for the account.
func GetTokenSourceForAccount(ctx context.Context, account string) (oauth2.TokenSource, error) {
	if err := validateAccountName(account); err != nil {
		return nil, err
	}
	if account == "default" {
		if err := MigrateDefaultToken(); err != nil {
			return nil, fmt.Errorf("failed to migrate legacy token: %w", err)
		}
	}

	conf := getOAuthConfig()

	slurp, err := os.ReadFile(getTokenFilePath(account))
	if err != nil {
		return nil, fmt.Errorf("no valid Google OAuth token found for account %s", account)
	}

	f := strings.Fields(strings.TrimSpace(string(slurp)))
	if len(f) != 2 {
		return nil, fmt.Errorf("invalid token format for account %s", account)
	}

	ts := conf.TokenSource(ctx, &oauth2.Token{
		AccessToken:  f[0],
		TokenType:    "Bearer",
		RefreshToken: f[1],
		Expiry:       time.Unix(1, 0),
	})

	if _, err := ts.Token(); err != nil {
		return nil, fmt.Errorf("cached token for account %s is invalid: %w", account, err)
	}
	return ts, nil
}

// GetTokenSource returns a token source for the default account.
func GetTokenSource(ctx context.Context) (oauth2.TokenSource, error) {
	return GetTokenSourceForAccount(ctx, "default")
}

// NewAuthenticatedClient returns an HTTP client that authenticates with the
// given token source. The client is pinned to HTTP/1.1 to avoid HTTP/2
// protocol errors seen against the Google APIs.
func NewAuthenticatedClient(ctx context.Context, ts oauth2.TokenSource) *http.Client {
	client := oauth2.NewClient(ctx, ts)

	transport := client.Transport.(*oauth2.Transport)
	transport.Base = &http.Transport{
		ForceAttemptHTTP2: false,
	}
	return client
}

// GetAuthenticationErrorMessage returns a user-facing explanation of how to
// authenticate the given account.
func GetAuthenticationErrorMessage(account string) string {
	return fmt.Sprintf("no Google OAuth token found for account %q. "+
		"Run 'inboxtriage auth' to complete the OAuth flow, or authenticate through your MCP client. "+
		"Tokens are stored per account under %s.", account, filepath.Join(userCacheDir(), cacheDirName))
}

func userCacheDir() string {
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(homeDir(), "Library", "Caches")
	case "windows":
		for _, ev := range []string{"TEMP", "TMP"} {
			if v := os.Getenv(ev); v != "" {
				return v
			}
		}
		panic("No Windows TEMP or TMP environment variables found")
	}
	if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" {
		return xdg
	}
	return filepath.Join(homeDir(), ".cache")
}

func homeDir() string {
	if runtime.GOOS == "windows" {
		return os.Getenv("HOMEDRIVE") + os.Getenv("HOMEPATH")
	}
	return os.Getenv("HOME")
}
