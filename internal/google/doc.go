// Package google provides OAuth2 authentication and token management for
// the Gmail API.
//
// Tokens are stored per account so one installation can triage several
// mailboxes. File-based storage serves the CLI and the stdio transport;
// the TokenProvider interface lets the HTTP transport plug in its own
// OAuth-backed token source instead.
package google
