package oauth

import "time"

// ProtectedResourceMetadata represents OAuth 2.0 Protected Resource Metadata (RFC 9728)
type ProtectedResourceMetadata struct {
	// Resource is the identifier for the protected resource
	Resource string `json:"resource"`

	// AuthorizationServers lists the authorization servers that can issue tokens for this resource
	AuthorizationServers []string `json:"authorization_servers"`

	// BearerMethodsSupported lists the ways Bearer tokens can be sent (RFC 6750)
	BearerMethodsSupported []string `json:"bearer_methods_supported,omitempty"`

	// ResourceSigningAlgValuesSupported lists supported signing algorithms
	ResourceSigningAlgValuesSupported []string `json:"resource_signing_alg_values_supported,omitempty"`

	// ScopesSupported lists the scopes understood by this resource
	ScopesSupported []string `json:"scopes_supported,omitempty"`
}

// GoogleUserInfo represents the user information from Google's userinfo endpoint
type GoogleUserInfo struct {
	// Sub is the unique Google user ID
	Sub string `json:"sub"`

	// Email is the user's email address
	Email string `json:"email"`

	// EmailVerified indicates if the email is verified
	EmailVerified bool `json:"email_verified"`

	// Name is the user's full name
	Name string `json:"name"`

	// Picture is the URL of the user's profile picture
	Picture string `json:"picture"`

	// GivenName is the user's first name
	GivenName string `json:"given_name"`

	// FamilyName is the user's last name
	FamilyName string `json:"family_name"`

	// Locale is the user's preferred locale
	Locale string `json:"locale"`
}

// ErrorResponse represents an OAuth error response
type ErrorResponse struct {
	// Error is the error code
	Error string `json:"error"`

	// ErrorDescription provides additional information
	ErrorDescription string `json:"error_description,omitempty"`

	// ErrorURI points to error documentation
	ErrorURI string `json:"error_uri,omitempty"`
}

// AuthorizationServerMetadata represents OAuth 2.0 Authorization Server Metadata (RFC 8414)
type AuthorizationServerMetadata struct {
	// Issuer is the authorization server's issuer identifier
	Issuer string `json:"issuer"`

	// AuthorizationEndpoint is the URL of the authorization endpoint
	AuthorizationEndpoint string `json:"authorization_endpoint"`

	// TokenEndpoint is the URL of the token endpoint
	TokenEndpoint string `json:"token_endpoint"`

	// RegistrationEndpoint is the URL of the dynamic client registration endpoint (RFC 7591)
	RegistrationEndpoint string `json:"registration_endpoint,omitempty"`

	// RevocationEndpoint is the URL of the token revocation endpoint (RFC 7009)
	RevocationEndpoint string `json:"revocation_endpoint,omitempty"`

	// ScopesSupported lists the scopes this server supports
	ScopesSupported []string `json:"scopes_supported,omitempty"`

	// ResponseTypesSupported lists supported response_type values
	ResponseTypesSupported []string `json:"response_types_supported"`

	// GrantTypesSupported lists supported grant_type values
	GrantTypesSupported []string `json:"grant_types_supported,omitempty"`

	// TokenEndpointAuthMethodsSupported lists supported client authentication methods
	TokenEndpointAuthMethodsSupported []string `json:"token_endpoint_auth_methods_supported,omitempty"`

	// CodeChallengeMethodsSupported lists supported PKCE methods (RFC 7636)
	CodeChallengeMethodsSupported []string `json:"code_challenge_methods_supported,omitempty"`
}

// TokenResponse represents a successful OAuth token response (RFC 6749 Section 5.1)
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
}

// ClientRegistrationRequest represents a Dynamic Client Registration request (RFC 7591)
type ClientRegistrationRequest struct {
	RedirectURIs            []string `json:"redirect_uris"`
	TokenEndpointAuthMethod string   `json:"token_endpoint_auth_method,omitempty"`
	GrantTypes              []string `json:"grant_types,omitempty"`
	ResponseTypes           []string `json:"response_types,omitempty"`
	ClientName              string   `json:"client_name,omitempty"`
	Scope                   string   `json:"scope,omitempty"`

	// ClientType is "public" or "confidential". Inferred from the auth
	// method when omitted.
	ClientType string `json:"client_type,omitempty"`
}

// ClientRegistrationResponse represents a Dynamic Client Registration response (RFC 7591)
type ClientRegistrationResponse struct {
	ClientID                string   `json:"client_id"`
	ClientSecret            string   `json:"client_secret,omitempty"`
	ClientIDIssuedAt        int64    `json:"client_id_issued_at"`
	ClientSecretExpiresAt   int64    `json:"client_secret_expires_at"`
	ClientType              string   `json:"client_type,omitempty"`
	RedirectURIs            []string `json:"redirect_uris"`
	TokenEndpointAuthMethod string   `json:"token_endpoint_auth_method"`
	GrantTypes              []string `json:"grant_types"`
	ResponseTypes           []string `json:"response_types"`
	ClientName              string   `json:"client_name,omitempty"`
	Scope                   string   `json:"scope,omitempty"`
}

// RegisteredClient holds a dynamically registered OAuth client.
// The client secret is stored only as a bcrypt hash.
type RegisteredClient struct {
	ClientID                string
	ClientSecret            string
	ClientSecretHash        string
	ClientIDIssuedAt        int64
	ClientSecretExpiresAt   int64
	ClientType              string
	RedirectURIs            []string
	TokenEndpointAuthMethod string
	GrantTypes              []string
	ResponseTypes           []string
	ClientName              string
	Scope                   string
}

// AuthorizationState tracks an in-flight authorization request while the
// user authenticates with Google. Keyed by the state parameter we send to
// Google, it links Google's callback back to the original client request.
type AuthorizationState struct {
	// State is the client's original state parameter
	State string

	ClientID    string
	RedirectURI string
	Scope       string

	// PKCE parameters from the client (RFC 7636)
	CodeChallenge       string
	CodeChallengeMethod string

	// GoogleState is the state parameter we generated for the Google redirect
	GoogleState string

	Nonce     string
	CreatedAt int64
	ExpiresAt int64
}

// AuthorizationCode holds a single-use authorization code issued to an MCP
// client after a successful Google login, together with the Google tokens
// obtained during the flow.
type AuthorizationCode struct {
	Code        string
	ClientID    string
	RedirectURI string
	Scope       string

	// PKCE parameters carried over from the authorization request
	CodeChallenge       string
	CodeChallengeMethod string

	// Google tokens from the code exchange with Google
	GoogleAccessToken  string
	GoogleRefreshToken string
	GoogleTokenExpiry  int64

	UserEmail string
	CreatedAt int64
	ExpiresAt int64
	Used      bool
}

// IsExpired reports whether the authorization code is past its expiry.
func (c *AuthorizationCode) IsExpired() bool {
	return time.Now().Unix() > c.ExpiresAt
}
