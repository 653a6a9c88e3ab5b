package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/satwhiz/inboxtriage/internal/google"
)

func newAuthCmd() *cobra.Command {
	var (
		account  string
		authCode string
	)

	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authorize Gmail access for an account",
		Long: `Run the Google OAuth flow for an account and store the resulting token.

Prints the authorization URL, waits for the authorization code, and
exchanges it for a token. The token is stored per account and refreshed
automatically afterwards.

Requires Google OAuth client credentials in the
INBOXTRIAGE_GOOGLE_CLIENT_ID and INBOXTRIAGE_GOOGLE_CLIENT_SECRET
environment variables.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if os.Getenv("INBOXTRIAGE_GOOGLE_CLIENT_ID") == "" || os.Getenv("INBOXTRIAGE_GOOGLE_CLIENT_SECRET") == "" {
				return fmt.Errorf("INBOXTRIAGE_GOOGLE_CLIENT_ID and INBOXTRIAGE_GOOGLE_CLIENT_SECRET environment variables are required")
			}

			ctx := context.Background()

			if google.HasTokenForAccount(account) {
				fmt.Printf("Account %q is already authorized. Continuing will replace the stored token.\n\n", account)
			}

			if authCode == "" {
				fmt.Printf("Visit this URL to authorize Gmail access for account %q:\n\n  %s\n\n", account, google.GetAuthURL())
				fmt.Print("Enter the authorization code: ")

				reader := bufio.NewReader(os.Stdin)
				line, err := reader.ReadString('\n')
				if err != nil {
					return fmt.Errorf("failed to read authorization code: %w", err)
				}
				authCode = strings.TrimSpace(line)
			}
			if authCode == "" {
				return fmt.Errorf("authorization code must not be empty")
			}

			if err := google.SaveTokenForAccount(ctx, account, authCode); err != nil {
				return fmt.Errorf("failed to save token for account %s: %w", account, err)
			}

			fmt.Printf("Authorization successful for account %q. Token saved.\n", account)
			return nil
		},
	}

	cmd.Flags().StringVar(&account, "account", "default", "Google account name to authorize (default: 'default')")
	cmd.Flags().StringVar(&authCode, "code", "", "Authorization code from Google (prompted interactively if omitted)")
	return cmd
}
