// Package cmd implements the command-line interface for inboxtriage.
//
// This package provides the following commands:
//   - triage: Classify Gmail threads and optionally apply triage labels
//   - setup-labels: Create the triage labels in Gmail
//   - auth: Authorize Gmail access for an account
//   - serve: Start the MCP server to provide tools for AI assistants
//   - version: Display version information
//   - generate-docs: Generate markdown documentation for all MCP tools
//
// The triage command is the default command when no subcommand is specified.
package cmd
