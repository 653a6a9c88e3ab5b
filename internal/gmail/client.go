package gmail

import (
	"context"
	"errors"
	"fmt"

	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/satwhiz/inboxtriage/internal/google"
)

// Client wraps the Gmail Users service for one account.
type Client struct {
	svc     *gmail.UsersService
	account string
}

// Account returns the account name this client is associated with.
func (c *Client) Account() string {
	return c.account
}

// HasTokenForAccountWithProvider checks if a valid OAuth token exists for
// the specified account using the given token provider.
func HasTokenForAccountWithProvider(account string, provider google.TokenProvider) bool {
	if provider == nil {
		return false
	}
	return provider.HasTokenForAccount(account)
}

// HasTokenForAccount checks if a valid OAuth token exists for the specified account.
func HasTokenForAccount(account string) bool {
	return google.HasTokenForAccount(account)
}

// HasToken checks if a valid OAuth token exists for the default account.
func HasToken() bool {
	return google.HasToken()
}

// NewClientForAccountWithProvider creates a Gmail client whose OAuth token
// comes from the given token provider. The stdio transport uses the
// file-based provider; the HTTP transport plugs in the OAuth server's
// token store.
func NewClientForAccountWithProvider(ctx context.Context, account string, tokenProvider google.TokenProvider) (*Client, error) {
	if tokenProvider == nil {
		return nil, fmt.Errorf("token provider cannot be nil")
	}

	token, err := tokenProvider.GetTokenForAccount(ctx, account)
	if err != nil {
		return nil, fmt.Errorf("failed to get Google OAuth token for account %s: %w", account, err)
	}

	conf := google.GetOAuthConfig()
	httpClient := google.NewAuthenticatedClient(ctx, conf.TokenSource(ctx, token))

	svc, err := gmail.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gmail service: %w", err)
	}

	return &Client{
		svc:     svc.Users,
		account: account,
	}, nil
}

// NewClientForAccount creates a Gmail client with OAuth2 authentication for
// a specific account, using the file-based token provider. The token must
// already exist; the auth command creates it.
func NewClientForAccount(ctx context.Context, account string) (*Client, error) {
	return NewClientForAccountWithProvider(ctx, account, google.NewFileTokenProvider())
}

// NewClient creates a Gmail client for the default account.
func NewClient(ctx context.Context) (*Client, error) {
	return NewClientForAccount(ctx, "default")
}

// ForeachThread iterates over all threads matching the query.
func (c *Client) ForeachThread(q string, fn func(*gmail.Thread) error) error {
	pageToken := ""
	for {
		req := c.svc.Threads.List("me").Q(q)
		if pageToken != "" {
			req.PageToken(pageToken)
		}
		res, err := req.Do()
		if err != nil {
			return err
		}
		for _, t := range res.Threads {
			if err := fn(t); err != nil {
				return err
			}
		}
		if res.NextPageToken == "" {
			return nil
		}
		pageToken = res.NextPageToken
	}
}

// GetThread retrieves a full Gmail thread with all its messages.
func (c *Client) GetThread(threadID string) (*gmail.Thread, error) {
	thread, err := c.svc.Threads.Get("me", threadID).Format("full").Do()
	if err != nil {
		return nil, fmt.Errorf("failed to get thread %s: %w", threadID, err)
	}
	return thread, nil
}

// PopulateThread populates t with its full data. t.Id must be set initially.
// Thread listings only carry id, snippet and history id, so a thread needs
// this before its messages can be read.
func (c *Client) PopulateThread(t *gmail.Thread) error {
	tfull, err := c.svc.Threads.Get("me", t.Id).Format("full").Do()
	if err != nil {
		return err
	}
	*t = *tfull
	return nil
}

// errStopIteration terminates a thread iteration early without error.
var errStopIteration = errors.New("stop iteration")

// ListThreads lists threads matching the query, fetching up to maxResults
// threads across multiple API calls if necessary.
func (c *Client) ListThreads(q string, maxResults int64) ([]*gmail.Thread, error) {
	if maxResults <= 0 {
		return nil, nil
	}

	var threads []*gmail.Thread
	err := c.ForeachThread(q, func(t *gmail.Thread) error {
		threads = append(threads, t)
		if int64(len(threads)) >= maxResults {
			return errStopIteration
		}
		return nil
	})
	if err != nil && !errors.Is(err, errStopIteration) {
		return nil, err
	}
	return threads, nil
}

// ModifyThreadLabels adds and removes labels on a thread in one call.
func (c *Client) ModifyThreadLabels(threadID string, add, remove []string) error {
	if threadID == "" {
		return fmt.Errorf("threadID is required")
	}
	_, err := c.svc.Threads.Modify("me", threadID, &gmail.ModifyThreadRequest{
		AddLabelIds:    add,
		RemoveLabelIds: remove,
	}).Do()
	if err != nil {
		return fmt.Errorf("failed to modify labels on thread %s: %w", threadID, err)
	}
	return nil
}

// ArchiveThread archives a thread by removing the INBOX label.
func (c *Client) ArchiveThread(threadID string) error {
	return c.ModifyThreadLabels(threadID, nil, []string{"INBOX"})
}

// UnarchiveThread moves a thread back to the inbox.
func (c *Client) UnarchiveThread(threadID string) error {
	return c.ModifyThreadLabels(threadID, []string{"INBOX"}, nil)
}

// GetProfile returns the Gmail profile for the authenticated user.
func (c *Client) GetProfile(ctx context.Context) (*gmail.Profile, error) {
	profile, err := c.svc.GetProfile("me").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return profile, nil
}

// ListLabels returns all labels defined in the mailbox.
func (c *Client) ListLabels() ([]*gmail.Label, error) {
	res, err := c.svc.Labels.List("me").Do()
	if err != nil {
		return nil, fmt.Errorf("failed to list labels: %w", err)
	}
	return res.Labels, nil
}

// CreateLabel creates a user label with the given display name.
func (c *Client) CreateLabel(name string) (*gmail.Label, error) {
	label, err := c.svc.Labels.Create("me", &gmail.Label{
		Name:                  name,
		LabelListVisibility:   "labelShow",
		MessageListVisibility: "show",
	}).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to create label %q: %w", name, err)
	}
	return label, nil
}
