package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/raphaelgruber/repoingest/internal/llm"
	"github.com/raphaelgruber/repoingest/internal/models"
	"github.com/raphaelgruber/repoingest/internal/source"
)

var explainCmd = &cobra.Command{
	Use:   "explain <repo-url-or-path> <commit>",
	Short: "Explain what a commit does using an LLM",
	Long: `Ask the configured LLM for a functional explanation of a commit.
The repository may be a local clone or a URL, which is cloned to a
temporary directory first.

Examples:
  repoingest explain . HEAD
  repoingest explain https://github.com/owner/repo 1a2b3c4d`,
	Args: cobra.ExactArgs(2),
	RunE: runExplain,
}

func runExplain(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	git := source.NewGit()

	wc := &models.WorkingCopy{Dir: args[0]}
	if info, err := os.Stat(args[0]); err != nil || !info.IsDir() {
		dest := filepath.Join(cfg.WorkDir, "repoingest-explain-"+uuid.NewString()[:8])
		wc, err = git.Clone(ctx, models.NormalizeRepoURL(args[0]), dest)
		if err != nil {
			return fmt.Errorf("clone: %w", err)
		}
		defer git.Release(wc)
	}

	commit, err := git.Commit(ctx, wc, args[1])
	if err != nil {
		return fmt.Errorf("resolve commit: %w", err)
	}

	model, err := llm.NewModel(ctx, cfg, nil, nil)
	if err != nil {
		return fmt.Errorf("init model: %w", err)
	}
	exp, err := model.ExplainCommit(ctx, commit)
	if err != nil {
		return err
	}

	if jsonOut {
		return printJSON(exp)
	}
	fmt.Printf("Commit %s by %s (%s)\n\n", commit.ShortSHA(), commit.Author, model.Model())
	fmt.Printf("Summary\n  %s\n\n", exp.Summary)
	fmt.Printf("What changed\n  %s\n\n", exp.WhatChanged)
	if exp.WhyImportant != "" {
		fmt.Printf("Why it matters\n  %s\n\n", exp.WhyImportant)
	}
	if exp.TechnicalDetails != "" {
		fmt.Printf("Technical details\n  %s\n\n", exp.TechnicalDetails)
	}
	if exp.BusinessImpact != "" {
		fmt.Printf("Impact\n  %s\n", exp.BusinessImpact)
	}
	return nil
}
