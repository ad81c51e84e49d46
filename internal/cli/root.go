// Package cli provides the command-line interface for repoingest.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/repoingest/internal/client"
	"github.com/raphaelgruber/repoingest/internal/config"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	serverURL string
	jsonOut   bool

	cfg       config.Config
	apiClient *client.Client
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "repoingest",
	Short: "Ingest repositories into a knowledge base",
	Long: `repoingest turns a repository's code, commits, issues and pull requests
into chunked documents, uploads them to object storage and triggers a
knowledge base sync.

Most commands talk to a running repoingest-server. 'chunk' and 'explain'
work locally.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}

		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if serverURL == "" {
			serverURL = cfg.ServerURL
		}
		apiClient = client.New(serverURL)
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "server URL (default $REPOINGEST_URL or http://localhost:8080)")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "print raw JSON")

	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(cancelCmd)
	rootCmd.AddCommand(jobsCmd)
	rootCmd.AddCommand(reposCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(chunkCmd)
	rootCmd.AddCommand(explainCmd)
}
