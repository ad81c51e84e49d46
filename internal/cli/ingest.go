package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/raphaelgruber/repoingest/internal/models"
)

var (
	ingestNoCommits bool
	ingestNoIssues  bool
	ingestNoPRs     bool
	ingestMaxCommit int
	ingestMaxIssues int
	ingestMaxPRs    int
	ingestDetach    bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <repo-url>",
	Short: "Ingest a repository",
	Long: `Submit a repository for ingestion and follow its progress.

Examples:
  repoingest ingest https://github.com/owner/repo
  repoingest ingest git@github.com:owner/repo.git --no-issues --max-commits 50
  repoingest ingest https://github.com/owner/repo --detach`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().BoolVar(&ingestNoCommits, "no-commits", false, "skip commit history")
	ingestCmd.Flags().BoolVar(&ingestNoIssues, "no-issues", false, "skip issues")
	ingestCmd.Flags().BoolVar(&ingestNoPRs, "no-prs", false, "skip pull requests")
	ingestCmd.Flags().IntVar(&ingestMaxCommit, "max-commits", models.DefaultMaxCommits, "maximum commits")
	ingestCmd.Flags().IntVar(&ingestMaxIssues, "max-issues", models.DefaultMaxIssues, "maximum issues")
	ingestCmd.Flags().IntVar(&ingestMaxPRs, "max-prs", models.DefaultMaxPRs, "maximum pull requests")
	ingestCmd.Flags().BoolVarP(&ingestDetach, "detach", "d", false, "print the job ID and return immediately")
}

func runIngest(cmd *cobra.Command, args []string) error {
	req := models.NewIngestRequest(args[0])
	req.IncludeCommits = !ingestNoCommits
	req.IncludeIssues = !ingestNoIssues
	req.IncludePRs = !ingestNoPRs
	req.MaxCommits = ingestMaxCommit
	req.MaxIssues = ingestMaxIssues
	req.MaxPRs = ingestMaxPRs

	resp, err := apiClient.Ingest(cmd.Context(), req)
	if err != nil {
		return fmt.Errorf("submit: %w", err)
	}

	if ingestDetach {
		if jsonOut {
			return printJSON(resp)
		}
		fmt.Println(resp.JobID)
		return nil
	}

	if !jsonOut && term.IsTerminal(int(os.Stdout.Fd())) {
		return RunJobProgress(cmd.Context(), apiClient, resp.JobID)
	}
	return followPlain(cmd.Context(), resp.JobID)
}

// followPlain prints one line per stage change for non-interactive output.
func followPlain(ctx context.Context, jobID string) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	lastStage := ""
	job, err := apiClient.Watch(ctx, jobID, func(j models.IngestionJob) error {
		if jsonOut {
			return nil
		}
		if stage := j.Stage(); stage != lastStage {
			fmt.Printf("%s [%s] %s %s\n", time.Now().Format("15:04:05"), j.Status, stage, countsLine(&j))
			lastStage = stage
		}
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			fmt.Fprintf(os.Stderr, "Job %s continues in background.\n", jobID)
			return nil
		}
		return err
	}

	if jsonOut {
		return printJSON(job)
	}
	fmt.Print(summary(job))
	if job.Status == models.JobStatusFailed {
		return jobError(job)
	}
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
