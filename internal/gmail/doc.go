// Package gmail provides the Gmail API surface the triage pipeline needs.
//
// It covers three concerns:
//   - Thread access: list and fetch threads with pagination
//   - Message conversion: turning full-format API threads into the
//     pipeline's message type, including body decoding and date resolution
//   - Label application: resolving or creating the six triage labels and
//     applying them, with an application record that supports undo
//
// Authentication uses the per-account Google OAuth tokens from the google
// package. For HTTP transports the token comes through the OAuth
// middleware; for the CLI and stdio transport it is read from the file
// system cache.
package gmail
