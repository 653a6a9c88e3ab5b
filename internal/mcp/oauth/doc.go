// Package oauth implements the OAuth 2.1 authorization and resource server
// for the inboxtriage MCP server's HTTP transport.
//
// The server acts as an OAuth proxy in front of Google: MCP clients register
// dynamically (RFC 7591), authorize through the proxy's authorization
// endpoint with PKCE (RFC 7636), and receive inboxtriage access tokens that
// map to stored Google tokens. The resource side validates those tokens on
// every MCP request and refreshes the underlying Google tokens as needed.
//
// Silent re-authentication builds on primitives from
// github.com/giantswarm/mcp-oauth (error classification and callback
// parsing). SSO access token forwarding lets an upstream aggregator hand
// users' Google tokens to the server via request headers.
//
// Security features include per-IP and per-user rate limiting, optional
// AES-256-GCM token encryption at rest, audit logging for authentication
// events, and security headers on all endpoints.
package oauth
