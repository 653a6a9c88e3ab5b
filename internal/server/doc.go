// Package server provides the MCP server context and the OAuth-enabled
// HTTP server for the inboxtriage application.
//
// # Key Components
//
// ServerContext manages Gmail clients and per-account triage services with
// lazy initialization and caching. Clients read file-based tokens for the
// STDIO transport and OAuth-managed tokens for the HTTP transport.
//
// OAuthHTTPServer wraps an MCP server with OAuth 2.1 authentication:
//   - Authorization Server Metadata (RFC 8414)
//   - Protected Resource Metadata (RFC 9728)
//   - Dynamic Client Registration (RFC 7591)
//   - Token Revocation (RFC 7009)
//
// HealthChecker exposes liveness and readiness endpoints backed by the
// server context's shutdown state.
//
// MetricsServer serves Prometheus metrics on a dedicated port, isolated
// from the main application traffic.
//
// # Security Features
//
// The OAuth server includes security-focused defaults:
//   - HTTPS required for production (localhost exempt for development)
//   - PKCE required (OAuth 2.1 compliance)
//   - State parameter required for CSRF protection
//   - Rate limiting per IP and per authenticated user
//   - Optional token encryption at rest (AES-256-GCM)
//   - Security headers on all HTTP responses
//   - Audit logging for authentication events
package server
