// Package triage_tools provides MCP tools for classifying and labeling
// Gmail threads.
//
// Registered tools:
//   - gmail_list_threads: list threads matching a Gmail search query
//   - triage_thread: classify a single thread, optionally applying its label
//   - triage_inbox: classify all threads matching a query in one run
//   - thread_stats: aggregate statistics over matching threads
//   - gmail_apply_label: apply a triage label to one or more threads
//   - gmail_archive_threads: archive one or more threads
//
// All tools accept an optional account argument for multi-account setups.
// Write operations are disabled when the server runs in read-only mode.
package triage_tools
