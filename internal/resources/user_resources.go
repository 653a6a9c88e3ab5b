package resources

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/satwhiz/inboxtriage/internal/classify"
	"github.com/satwhiz/inboxtriage/internal/gmail"
	"github.com/satwhiz/inboxtriage/internal/mcp/oauth"
	"github.com/satwhiz/inboxtriage/internal/server"
)

// RegisterUserResources registers session-specific user resources
// These resources provide information about the current authenticated user
// and the triage label taxonomy.
func RegisterUserResources(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	// Register user profile resource
	profileResource := mcp.NewResource(
		"user://profile",
		"Current User Profile",
		mcp.WithResourceDescription("Information about the currently authenticated Google account"),
		mcp.WithMIMEType("application/json"),
	)

	s.AddResource(profileResource, func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return handleUserProfile(ctx, request, sc)
	})

	// Register triage label taxonomy resource
	taxonomyResource := mcp.NewResource(
		"triage://labels",
		"Triage Label Taxonomy",
		mcp.WithResourceDescription("The six triage labels with their Gmail display names and inbox behavior"),
		mcp.WithMIMEType("application/json"),
	)

	s.AddResource(taxonomyResource, func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return handleLabelTaxonomy(ctx, request)
	})

	return nil
}

// extractAccountFromContext extracts the user's email from OAuth context
// Falls back to "default" for STDIO transport or if no OAuth context is available
func extractAccountFromContext(ctx context.Context) string {
	// Try to get user info from OAuth context (HTTP/SSE transport)
	if userInfo, ok := oauth.GetUserFromContext(ctx); ok {
		return userInfo.Email
	}
	// Fallback to default for STDIO transport
	return "default"
}

// handleUserProfile returns information about the current user's profile
func handleUserProfile(ctx context.Context, request mcp.ReadResourceRequest, sc *server.ServerContext) ([]mcp.ResourceContents, error) {
	// Extract account (email) from OAuth context
	account := extractAccountFromContext(ctx)

	gmailClient := sc.GmailClientForAccount(account)
	if gmailClient == nil {
		return nil, fmt.Errorf("no Gmail client available for account: %s", account)
	}

	// Get full user profile from Gmail API
	profile, err := gmailClient.GetProfile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get user profile: %w", err)
	}

	profileData := map[string]interface{}{
		"account":       account,
		"email":         profile.EmailAddress,
		"historyId":     profile.HistoryId,
		"messagesTotal": profile.MessagesTotal,
		"threadsTotal":  profile.ThreadsTotal,
	}

	jsonData, err := json.MarshalIndent(profileData, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal profile data: %w", err)
	}

	return []mcp.ResourceContents{
		&mcp.TextResourceContents{
			URI:      request.Params.URI,
			MIMEType: "application/json",
			Text:     string(jsonData),
		},
	}, nil
}

// handleLabelTaxonomy returns the triage label taxonomy
func handleLabelTaxonomy(_ context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	type labelInfo struct {
		Label        string `json:"label"`
		DisplayName  string `json:"displayName"`
		RemovesInbox bool   `json:"removesFromInbox"`
	}

	labels := make([]labelInfo, 0, len(classify.Labels()))
	for _, label := range classify.Labels() {
		display, err := gmail.LabelDisplayName(label)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve display name: %w", err)
		}
		labels = append(labels, labelInfo{
			Label:        string(label),
			DisplayName:  display,
			RemovesInbox: gmail.InboxRemoval(label),
		})
	}

	jsonData, err := json.MarshalIndent(map[string]interface{}{"labels": labels}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal label taxonomy: %w", err)
	}

	return []mcp.ResourceContents{
		&mcp.TextResourceContents{
			URI:      request.Params.URI,
			MIMEType: "application/json",
			Text:     string(jsonData),
		},
	}, nil
}
