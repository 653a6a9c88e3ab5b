package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command for the inboxtriage application
var rootCmd = &cobra.Command{
	Use:   "inboxtriage",
	Short: "Classifies Gmail threads into triage labels",
	Long: `inboxtriage reads Gmail threads, classifies each one with a language
model into one of six triage labels (to_do, awaiting_reply, fyi, done,
spam, history), and optionally applies the matching Gmail label.

It can run as:
  - A standalone CLI tool (default)
  - An MCP (Model Context Protocol) server for AI assistants`,
	SilenceUsage: true,
}

// version will be set by main
var version = "dev"

// SetVersion sets the version for the root command
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "inboxtriage version %s\n" .Version}}`)

	// If no subcommand is provided, run the triage command by default
	if len(os.Args) == 1 {
		os.Args = append(os.Args, "triage")
	}

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(newTriageCmd())
	rootCmd.AddCommand(newSetupLabelsCmd())
	rootCmd.AddCommand(newAuthCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newGenerateDocsCmd())
}
