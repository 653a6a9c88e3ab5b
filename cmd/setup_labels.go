package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/satwhiz/inboxtriage/internal/classify"
	"github.com/satwhiz/inboxtriage/internal/gmail"
)

func newSetupLabelsCmd() *cobra.Command {
	var account string

	cmd := &cobra.Command{
		Use:   "setup-labels",
		Short: "Create the triage labels in Gmail",
		Long: `Create the six triage labels in the Gmail account if they do not
already exist. Existing labels are reused, so the command is safe to
run repeatedly.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			client, err := gmail.NewClientForAccount(ctx, account)
			if err != nil {
				return fmt.Errorf("failed to create Gmail client for account %s: %w", account, err)
			}

			labeler := gmail.NewLabeler(client)
			ids, err := labeler.EnsureLabels()
			if err != nil {
				return fmt.Errorf("failed to create labels: %w", err)
			}

			for _, label := range classify.Labels() {
				name, err := gmail.LabelDisplayName(label)
				if err != nil {
					return err
				}
				fmt.Printf("%-15s %s (%s)\n", label, name, ids[label])
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&account, "account", "default", "Google account name to use (default: 'default')")
	return cmd
}
