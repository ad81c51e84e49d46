package cli

import (
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status <job-id>",
	Short: "Show the status of an ingestion job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		job, err := apiClient.GetStatus(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("get job: %w", err)
		}
		if jsonOut {
			return printJSON(job)
		}
		fmt.Print(summary(job))
		return nil
	},
}

var cancelCmd = &cobra.Command{
	Use:   "cancel <job-id>",
	Short: "Cancel a running ingestion job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := apiClient.Cancel(cmd.Context(), args[0]); err != nil {
			return fmt.Errorf("cancel job: %w", err)
		}
		fmt.Printf("Cancellation requested for job %s\n", args[0])
		return nil
	},
}

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "List ingestion jobs",
	Long: `List all ingestion jobs, most recent first.

Examples:
  repoingest jobs
  repoingest jobs --json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		jobs, err := apiClient.ListJobs(cmd.Context())
		if err != nil {
			return fmt.Errorf("list jobs: %w", err)
		}
		if jsonOut {
			return printJSON(jobs)
		}
		if len(jobs) == 0 {
			fmt.Println("No jobs found")
			return nil
		}

		fmt.Printf("%-10s %-12s %-22s %-6s %-9s %s\n", "ID", "STATUS", "STAGE", "DOCS", "STARTED", "REPOSITORY")
		fmt.Println("--------------------------------------------------------------------------------")
		for _, job := range jobs {
			fmt.Printf("%-10s %-12s %-22s %-6d %-9s %s\n",
				job.ID, job.Status, job.Stage(), job.DocumentsProcessed,
				job.CreatedAt.Local().Format(time.TimeOnly), job.RepoURL)
		}
		return nil
	},
}

var reposCmd = &cobra.Command{
	Use:   "repos",
	Short: "List ingested repositories",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		repos, err := apiClient.ListRepositories(cmd.Context())
		if err != nil {
			return fmt.Errorf("list repositories: %w", err)
		}
		if jsonOut {
			return printJSON(repos)
		}
		if len(repos) == 0 {
			fmt.Println("No repositories ingested yet")
			return nil
		}

		fmt.Printf("%-30s %-6s %-10s %s\n", "NAME", "DOCS", "HEAD", "INGESTED")
		fmt.Println("------------------------------------------------------------------")
		for _, r := range repos {
			head := "-"
			if r.LastCommitSHA != nil && len(*r.LastCommitSHA) >= 8 {
				head = (*r.LastCommitSHA)[:8]
			}
			fmt.Printf("%-30s %-6d %-10s %s\n", r.RepoName, r.DocumentCount, head, r.IngestedAt.Local().Format(time.DateTime))
		}
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show server pipeline statistics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		snap, err := apiClient.Stats(cmd.Context())
		if err != nil {
			return fmt.Errorf("get stats: %w", err)
		}
		if jsonOut {
			return printJSON(snap)
		}

		fmt.Printf("Uptime: %s\n", time.Duration(snap.UptimeSeconds*float64(time.Second)).Round(time.Second))
		fmt.Printf("Jobs: %d submitted, %d completed, %d failed\n", snap.JobsSubmitted, snap.JobsCompleted, snap.JobsFailed)
		fmt.Printf("Documents uploaded: %d\n\n", snap.Documents)

		fmt.Printf("%-20s %8s %8s %10s %10s\n", "OPERATION", "COUNT", "ERRORS", "AVG MS", "MAX MS")
		for _, name := range slices.Sorted(maps.Keys(snap.Operations)) {
			op := snap.Operations[name]
			fmt.Printf("%-20s %8d %8d %10.1f %10d\n", name, op.Count, op.Errors, op.AvgTimeMs, op.MaxTimeMs)
		}
		return nil
	},
}

var syncCmd = &cobra.Command{
	Use:   "sync <sync-job-id>",
	Short: "Show the status of a knowledge base sync",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := apiClient.SyncStatus(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("get sync status: %w", err)
		}
		if jsonOut {
			return printJSON(st)
		}
		fmt.Printf("Sync %s: %s\n", st.ID, st.Status)
		for _, r := range st.FailureReasons {
			fmt.Printf("  - %s\n", r)
		}
		return nil
	},
}
