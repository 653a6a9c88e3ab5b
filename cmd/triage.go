package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/satwhiz/inboxtriage/internal/classify"
	"github.com/satwhiz/inboxtriage/internal/gmail"
	"github.com/satwhiz/inboxtriage/internal/instrumentation"
	"github.com/satwhiz/inboxtriage/internal/llm"
	"github.com/satwhiz/inboxtriage/internal/triage"
)

// defaultHistoryDays is the CLI default for the automatic age rule. The
// threshold is configurable because different inboxes tolerate different
// backlog ages.
const defaultHistoryDays = 7

func newTriageCmd() *cobra.Command {
	var (
		account         string
		query           string
		historyDays     int
		maxThreads      int64
		model           string
		apply           bool
		revertOnFailure bool
		workers         int
		debugMode       bool
	)

	cmd := &cobra.Command{
		Use:   "triage",
		Short: "Classify Gmail threads and optionally apply triage labels",
		Long: `Fetch Gmail threads matching a query, classify each one into a triage
label, and print a summary of the results.

Threads older than the history threshold are labeled history without a
model call. All other threads are classified by the language model.

By default the command only reports classifications. Use --apply to
create the triage labels in Gmail and apply them to the threads.

Requires an OpenAI API key in the OPENAI_API_KEY environment variable.
Use OPENAI_BASE_URL to point at a compatible provider.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newCLILogger(debugMode)

			classifier, err := buildClassifier(model, historyDays, workers, logger, nil)
			if err != nil {
				return err
			}

			ctx := context.Background()
			client, err := gmail.NewClientForAccount(ctx, account)
			if err != nil {
				return fmt.Errorf("failed to create Gmail client for account %s: %w", account, err)
			}

			svc, err := triage.NewService(client, classifier, triage.ServiceConfig{
				Workers: workers,
				Logger:  logger,
			})
			if err != nil {
				return err
			}

			summary, err := svc.TriageInbox(ctx, query, maxThreads, apply)
			if err != nil {
				return fmt.Errorf("triage failed: %w", err)
			}

			printSummary(summary)

			if apply && revertOnFailure && summary.ApplyFailures > 0 {
				reverted, err := svc.RevertLabels(ctx)
				if err != nil {
					return fmt.Errorf("revert after %d apply failures stopped early, %d labels undone: %w", summary.ApplyFailures, reverted, err)
				}
				fmt.Printf("Reverted %d labels after %d apply failures\n", reverted, summary.ApplyFailures)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&account, "account", "default", "Google account name to use (default: 'default')")
	cmd.Flags().StringVar(&query, "query", triage.DefaultQuery, "Gmail search query selecting the threads to triage")
	cmd.Flags().IntVar(&historyDays, "history-days", defaultHistoryDays, "Age in days after which threads are labeled history without a model call")
	cmd.Flags().Int64Var(&maxThreads, "max-threads", 50, "Maximum number of threads to triage")
	cmd.Flags().StringVar(&model, "model", "", "Model name for classification (default: "+llm.DefaultModel+"). Can also use INBOXTRIAGE_MODEL env var.")
	cmd.Flags().BoolVar(&apply, "apply", false, "Apply the resulting Gmail labels (default: report only)")
	cmd.Flags().BoolVar(&revertOnFailure, "revert-on-failure", false, "Undo the labels applied in this run when any application fails")
	cmd.Flags().IntVar(&workers, "workers", 4, "Number of threads classified concurrently")
	cmd.Flags().BoolVar(&debugMode, "debug", false, "Enable debug logging")

	return cmd
}

// buildClassifier assembles the model invoker and classifier from flags
// and environment variables. A non-nil metrics recorder adds per-request
// model metrics.
func buildClassifier(model string, historyDays, workers int, logger *slog.Logger, metrics *instrumentation.Metrics) (*classify.Classifier, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY environment variable is required for classification")
	}
	if model == "" {
		model = os.Getenv("INBOXTRIAGE_MODEL")
	}

	openAI, err := llm.NewOpenAI(llm.Config{
		APIKey:  apiKey,
		BaseURL: os.Getenv("OPENAI_BASE_URL"),
		Model:   model,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create model client: %w", err)
	}

	invoker := llm.WithMetrics(openAI, openAI.Model(), metrics)

	classifier, err := classify.NewClassifier(invoker, classify.Config{
		HistoryThresholdDays: historyDays,
		Workers:              workers,
		InvokeTimeout:        30 * time.Second,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create classifier: %w", err)
	}
	return classifier, nil
}

func newCLILogger(debugMode bool) *slog.Logger {
	level := slog.LevelInfo
	if debugMode {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func printSummary(summary *triage.Summary) {
	fmt.Printf("Triaged %d threads (%d messages) in %s\n", summary.Threads, summary.Messages, summary.Duration.Round(time.Millisecond))

	for _, label := range classify.Labels() {
		count := summary.ByLabel[label]
		if count == 0 {
			continue
		}
		fmt.Printf("  %-15s %d\n", label, count)
	}

	for _, r := range summary.Results {
		if r.FetchError != "" {
			fmt.Printf("  %s  fetch failed: %s\n", r.Classification.ThreadID, r.FetchError)
			continue
		}
		marker := " "
		if r.Applied {
			marker = "*"
		}
		fmt.Printf("%s %s  %-15s %.2f  %s\n", marker, r.Classification.ThreadID, r.Classification.Label, r.Classification.Confidence, r.Classification.Reasoning)
		if r.ApplyError != "" {
			fmt.Printf("    apply failed: %s\n", r.ApplyError)
		}
	}

	if summary.FetchFailures > 0 {
		fmt.Printf("Failed to fetch %d threads\n", summary.FetchFailures)
	}
	if summary.Applied > 0 || summary.ApplyFailures > 0 {
		fmt.Printf("Applied %d labels (%d failures)\n", summary.Applied, summary.ApplyFailures)
	}
}
