package triage_tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/satwhiz/inboxtriage/internal/classify"
	"github.com/satwhiz/inboxtriage/internal/gmail"
	"github.com/satwhiz/inboxtriage/internal/google"
	"github.com/satwhiz/inboxtriage/internal/instrumentation"
	"github.com/satwhiz/inboxtriage/internal/server"
	"github.com/satwhiz/inboxtriage/internal/tools/batch"
	"github.com/satwhiz/inboxtriage/internal/tools/common"
	"github.com/satwhiz/inboxtriage/internal/triage"
)

// RegisterTriageTools registers all triage-related tools with the MCP server
func RegisterTriageTools(s *mcpserver.MCPServer, sc *server.ServerContext, readOnly bool) error {
	// List threads tool
	listThreadsTool := mcp.NewTool("gmail_list_threads",
		mcp.WithDescription("List Gmail threads matching a query"),
		mcp.WithString("account",
			mcp.Description("Account name (default: 'default'). Used to manage multiple Google accounts."),
		),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Gmail search query (e.g., 'in:inbox', 'from:user@example.com')"),
		),
		mcp.WithNumber("maxResults",
			mcp.Description("Maximum number of results to return (default: 10)"),
		),
	)

	s.AddTool(listThreadsTool, common.InstrumentedToolHandlerWithService(
		"gmail_list_threads", instrumentation.ServiceGmail, instrumentation.OperationList, sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleListThreads(ctx, request, sc)
		}))

	// Triage a single thread
	triageThreadTool := mcp.NewTool("triage_thread",
		mcp.WithDescription("Classify a Gmail thread into one of six triage labels (to_do, awaiting_reply, fyi, done, spam, history)"),
		mcp.WithString("account",
			mcp.Description("Account name (default: 'default'). Used to manage multiple Google accounts."),
		),
		mcp.WithString("threadId",
			mcp.Required(),
			mcp.Description("The ID of the thread to classify"),
		),
		mcp.WithBoolean("apply",
			mcp.Description("Apply the resulting Gmail label to the thread (default: false)"),
		),
	)

	s.AddTool(triageThreadTool, common.InstrumentedToolHandler("triage_thread", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleTriageThread(ctx, request, sc, readOnly)
		}))

	// Triage all threads matching a query
	triageInboxTool := mcp.NewTool("triage_inbox",
		mcp.WithDescription("Classify all Gmail threads matching a query and report the label distribution"),
		mcp.WithString("account",
			mcp.Description("Account name (default: 'default'). Used to manage multiple Google accounts."),
		),
		mcp.WithString("query",
			mcp.Description("Gmail search query (default: 'in:inbox')"),
		),
		mcp.WithNumber("maxThreads",
			mcp.Description("Maximum number of threads to triage (default: 50)"),
		),
		mcp.WithBoolean("apply",
			mcp.Description("Apply the resulting Gmail labels to the threads (default: false)"),
		),
	)

	s.AddTool(triageInboxTool, common.InstrumentedToolHandler("triage_inbox", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleTriageInbox(ctx, request, sc, readOnly)
		}))

	// Thread statistics tool
	threadStatsTool := mcp.NewTool("thread_stats",
		mcp.WithDescription("Compute aggregate statistics over Gmail threads matching a query"),
		mcp.WithString("account",
			mcp.Description("Account name (default: 'default'). Used to manage multiple Google accounts."),
		),
		mcp.WithString("query",
			mcp.Description("Gmail search query (default: 'in:inbox')"),
		),
		mcp.WithNumber("maxThreads",
			mcp.Description("Maximum number of threads to inspect (default: 100)"),
		),
	)

	s.AddTool(threadStatsTool, common.InstrumentedToolHandlerWithService(
		"thread_stats", instrumentation.ServiceGmail, instrumentation.OperationList, sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleThreadStats(ctx, request, sc)
		}))

	// Write tools are unavailable in read-only mode
	if readOnly {
		return nil
	}

	// Apply label tool (supports single or multiple threads)
	applyLabelTool := mcp.NewTool("gmail_apply_label",
		mcp.WithDescription("Apply a triage label to one or more Gmail threads, creating the Gmail label if needed"),
		mcp.WithString("account",
			mcp.Description("Account name (default: 'default'). Used to manage multiple Google accounts."),
		),
		mcp.WithString("threadIds",
			mcp.Required(),
			mcp.Description("Thread ID (string) or array of thread IDs to label"),
		),
		mcp.WithString("label",
			mcp.Required(),
			mcp.Description("Triage label: to_do, awaiting_reply, fyi, done, spam, or history"),
		),
	)

	s.AddTool(applyLabelTool, common.InstrumentedToolHandlerWithService(
		"gmail_apply_label", instrumentation.ServiceGmail, instrumentation.OperationModify, sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleApplyLabel(ctx, request, sc)
		}))

	// Archive threads tool (supports single or multiple threads)
	archiveThreadsTool := mcp.NewTool("gmail_archive_threads",
		mcp.WithDescription("Archive one or more Gmail threads by removing them from the inbox"),
		mcp.WithString("account",
			mcp.Description("Account name (default: 'default'). Used to manage multiple Google accounts."),
		),
		mcp.WithString("threadIds",
			mcp.Required(),
			mcp.Description("Thread ID (string) or array of thread IDs to archive"),
		),
	)

	s.AddTool(archiveThreadsTool, common.InstrumentedToolHandlerWithService(
		"gmail_archive_threads", instrumentation.ServiceGmail, instrumentation.OperationModify, sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleArchiveThreads(ctx, request, sc)
		}))

	// Unarchive threads tool (supports single or multiple threads)
	unarchiveThreadsTool := mcp.NewTool("gmail_unarchive_threads",
		mcp.WithDescription("Move one or more archived Gmail threads back to the inbox"),
		mcp.WithString("account",
			mcp.Description("Account name (default: 'default'). Used to manage multiple Google accounts."),
		),
		mcp.WithString("threadIds",
			mcp.Required(),
			mcp.Description("Thread ID (string) or array of thread IDs to move back to the inbox"),
		),
	)

	s.AddTool(unarchiveThreadsTool, common.InstrumentedToolHandlerWithService(
		"gmail_unarchive_threads", instrumentation.ServiceGmail, instrumentation.OperationModify, sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleUnarchiveThreads(ctx, request, sc)
		}))

	// Revert tool: undo labels applied earlier in this server session
	revertTool := mcp.NewTool("triage_revert",
		mcp.WithDescription("Undo the Gmail label applications recorded for an account in this server session, newest first"),
		mcp.WithString("account",
			mcp.Description("Account name (default: 'default'). Used to manage multiple Google accounts."),
		),
	)

	s.AddTool(revertTool, common.InstrumentedToolHandlerWithService(
		"triage_revert", instrumentation.ServiceGmail, instrumentation.OperationModify, sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleTriageRevert(ctx, request, sc)
		}))

	return nil
}

// getClientForAccount returns the Gmail client for the account, creating it
// if a token exists. Returns a tool error result with authorization
// instructions when no token is available.
func getClientForAccount(ctx context.Context, sc *server.ServerContext, account string) (*gmail.Client, *mcp.CallToolResult) {
	client := sc.GmailClientForAccount(account)
	if client != nil {
		return client, nil
	}

	authURL := google.GetAuthURL()
	errorMsg := fmt.Sprintf(`Google OAuth token not found for account "%s". To authorize access:

1. Visit this URL in your browser:
   %s

2. Sign in with your Google account
3. Grant access to Gmail
4. Copy the authorization code

5. Provide the authorization code to your AI agent
   The agent will use the google_save_auth_code tool with account="%s" to complete authentication.

Note: You only need to authorize once. The tokens will be automatically refreshed.`, account, authURL, account)
	return nil, mcp.NewToolResultError(errorMsg)
}

// triageServiceForAccount returns the triage service for the account,
// surfacing authorization instructions when no token is available.
func triageServiceForAccount(ctx context.Context, sc *server.ServerContext, account string) (*triage.Service, *mcp.CallToolResult) {
	if _, errResult := getClientForAccount(ctx, sc, account); errResult != nil {
		return nil, errResult
	}

	svc, err := sc.TriageServiceForAccount(account)
	if err != nil {
		return nil, mcp.NewToolResultError(fmt.Sprintf("Failed to create triage service for account %s: %v", account, err))
	}
	return svc, nil
}

func handleListThreads(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	account := common.GetAccountFromArgs(ctx, args)

	query, ok := args["query"].(string)
	if !ok || query == "" {
		return mcp.NewToolResultError("query is required"), nil
	}

	maxResults := int64(10)
	if maxResultsVal, ok := args["maxResults"].(float64); ok {
		maxResults = int64(maxResultsVal)
	}

	client, errResult := getClientForAccount(ctx, sc, account)
	if errResult != nil {
		return errResult, nil
	}

	threads, err := client.ListThreads(query, maxResults)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list threads: %v", err)), nil
	}

	result := fmt.Sprintf("Found %d threads:\n", len(threads))
	for i, thread := range threads {
		result += fmt.Sprintf("%d. Thread ID: %s (Snippet: %s)\n", i+1, thread.Id, thread.Snippet)
	}

	return mcp.NewToolResultText(result), nil
}

// threadResultView is the JSON shape returned for a classified thread.
type threadResultView struct {
	ThreadID    string  `json:"threadId"`
	Label       string  `json:"label"`
	DisplayName string  `json:"displayName"`
	Confidence  float64 `json:"confidence"`
	Reasoning   string  `json:"reasoning"`
	EmailCount  int     `json:"emailCount"`
	Method      string  `json:"method"`
	Applied     bool    `json:"applied,omitempty"`
	ApplyError  string  `json:"applyError,omitempty"`
	FetchError  string  `json:"fetchError,omitempty"`
}

func viewOf(r triage.ThreadResult) threadResultView {
	return threadResultView{
		ThreadID:    r.Classification.ThreadID,
		Label:       string(r.Classification.Label),
		DisplayName: r.DisplayName,
		Confidence:  r.Classification.Confidence,
		Reasoning:   r.Classification.Reasoning,
		EmailCount:  r.Classification.EmailCount,
		Method:      string(r.Classification.Method),
		Applied:     r.Applied,
		ApplyError:  r.ApplyError,
		FetchError:  r.FetchError,
	}
}

func handleTriageThread(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext, readOnly bool) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	account := common.GetAccountFromArgs(ctx, args)

	threadID, ok := args["threadId"].(string)
	if !ok || threadID == "" {
		return mcp.NewToolResultError("threadId is required"), nil
	}

	apply := false
	if applyVal, ok := args["apply"].(bool); ok {
		apply = applyVal
	}
	if readOnly {
		apply = false
	}

	svc, errResult := triageServiceForAccount(ctx, sc, account)
	if errResult != nil {
		return errResult, nil
	}

	result, err := svc.TriageThread(ctx, threadID, apply)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to triage thread: %v", err)), nil
	}

	jsonBytes, err := json.MarshalIndent(viewOf(result), "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func handleTriageInbox(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext, readOnly bool) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	account := common.GetAccountFromArgs(ctx, args)

	query := triage.DefaultQuery
	if queryVal, ok := args["query"].(string); ok && queryVal != "" {
		query = queryVal
	}

	maxThreads := int64(50)
	if maxVal, ok := args["maxThreads"].(float64); ok {
		maxThreads = int64(maxVal)
	}

	apply := false
	if applyVal, ok := args["apply"].(bool); ok {
		apply = applyVal
	}
	if readOnly {
		apply = false
	}

	svc, errResult := triageServiceForAccount(ctx, sc, account)
	if errResult != nil {
		return errResult, nil
	}

	summary, err := svc.TriageInbox(ctx, query, maxThreads, apply)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to triage inbox: %v", err)), nil
	}

	type summaryView struct {
		Account       string             `json:"account"`
		Query         string             `json:"query"`
		Threads       int                `json:"threads"`
		Messages      int                `json:"messages"`
		Applied       int                `json:"applied"`
		ApplyFailures int                `json:"applyFailures"`
		FetchFailures int                `json:"fetchFailures"`
		ByLabel       map[string]int     `json:"byLabel"`
		Results       []threadResultView `json:"results"`
	}

	view := summaryView{
		Account:       summary.Account,
		Query:         summary.Query,
		Threads:       summary.Threads,
		Messages:      summary.Messages,
		Applied:       summary.Applied,
		ApplyFailures: summary.ApplyFailures,
		FetchFailures: summary.FetchFailures,
		ByLabel:       make(map[string]int, len(summary.ByLabel)),
		Results:       make([]threadResultView, 0, len(summary.Results)),
	}
	for label, count := range summary.ByLabel {
		view.ByLabel[string(label)] = count
	}
	for _, r := range summary.Results {
		view.Results = append(view.Results, viewOf(r))
	}

	jsonBytes, err := json.MarshalIndent(view, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to marshal summary: %v", err)), nil
	}
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func handleThreadStats(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	account := common.GetAccountFromArgs(ctx, args)

	query := triage.DefaultQuery
	if queryVal, ok := args["query"].(string); ok && queryVal != "" {
		query = queryVal
	}

	maxThreads := int64(100)
	if maxVal, ok := args["maxThreads"].(float64); ok {
		maxThreads = int64(maxVal)
	}

	svc, errResult := triageServiceForAccount(ctx, sc, account)
	if errResult != nil {
		return errResult, nil
	}

	stats, infos, err := svc.ThreadStats(ctx, query, maxThreads)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to compute thread stats: %v", err)), nil
	}

	jsonBytes, err := json.MarshalIndent(map[string]interface{}{
		"stats":   stats,
		"threads": infos,
	}, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to marshal stats: %v", err)), nil
	}
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func handleApplyLabel(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	account := common.GetAccountFromArgs(ctx, args)

	threadIDs, err := batch.ParseStringOrArray(args["threadIds"], "threadIds")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	labelArg, ok := args["label"].(string)
	if !ok || labelArg == "" {
		return mcp.NewToolResultError("label is required"), nil
	}
	label := classify.Label(labelArg)
	if !label.IsValid() {
		return mcp.NewToolResultError(fmt.Sprintf("invalid label %q: must be one of to_do, awaiting_reply, fyi, done, spam, history", labelArg)), nil
	}

	svc, errResult := triageServiceForAccount(ctx, sc, account)
	if errResult != nil {
		return errResult, nil
	}

	results := batch.ProcessBatch(threadIDs, func(threadID string) (string, error) {
		if err := svc.ApplyLabel(ctx, threadID, label); err != nil {
			return "", err
		}
		return fmt.Sprintf("Label %s applied to thread %s", label, threadID), nil
	})

	return mcp.NewToolResultText(batch.FormatResults(results)), nil
}

func handleArchiveThreads(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	account := common.GetAccountFromArgs(ctx, args)

	threadIDs, err := batch.ParseStringOrArray(args["threadIds"], "threadIds")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	client, errResult := getClientForAccount(ctx, sc, account)
	if errResult != nil {
		return errResult, nil
	}

	results := batch.ProcessBatch(threadIDs, func(threadID string) (string, error) {
		if err := client.ArchiveThread(threadID); err != nil {
			return "", err
		}
		return fmt.Sprintf("Thread %s archived successfully", threadID), nil
	})

	return mcp.NewToolResultText(batch.FormatResults(results)), nil
}

func handleUnarchiveThreads(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	account := common.GetAccountFromArgs(ctx, args)

	threadIDs, err := batch.ParseStringOrArray(args["threadIds"], "threadIds")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	client, errResult := getClientForAccount(ctx, sc, account)
	if errResult != nil {
		return errResult, nil
	}

	results := batch.ProcessBatch(threadIDs, func(threadID string) (string, error) {
		if err := client.UnarchiveThread(threadID); err != nil {
			return "", err
		}
		return fmt.Sprintf("Thread %s moved back to inbox", threadID), nil
	})

	return mcp.NewToolResultText(batch.FormatResults(results)), nil
}

func handleTriageRevert(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	account := common.GetAccountFromArgs(ctx, args)

	svc, errResult := triageServiceForAccount(ctx, sc, account)
	if errResult != nil {
		return errResult, nil
	}

	recorded := len(svc.AppliedLabels())
	if recorded == 0 {
		return mcp.NewToolResultText("No label applications recorded for this session"), nil
	}

	reverted, err := svc.RevertLabels(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Reverted %d of %d label applications before a failure: %v", reverted, recorded, err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Reverted %d label applications", reverted)), nil
}
