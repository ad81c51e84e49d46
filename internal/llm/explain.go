package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/raphaelgruber/repoingest/internal/models"
)

// Prompt limits for commit explanations.
const (
	MaxExplainDiff  = 15_000
	MaxExplainFiles = 20
)

// CommitExplanation is a functional description of a commit.
type CommitExplanation struct {
	CommitSHA        string    `json:"commit_sha"`
	Summary          string    `json:"summary"`
	WhatChanged      string    `json:"what_changed"`
	WhyImportant     string    `json:"why_important"`
	TechnicalDetails string    `json:"technical_details"`
	BusinessImpact   string    `json:"business_impact,omitempty"`
	Model            string    `json:"model"`
	GeneratedAt      time.Time `json:"generated_at"`
}

const explainSystemPrompt = `You are a senior engineer reviewing git history. Explain what a commit does functionally, not just which lines changed.
Answer with a single JSON object and nothing else.`

// ExplainCommit asks the model what the commit changes in behavior. A reply
// that is not valid JSON is kept verbatim in WhatChanged.
func (m *Model) ExplainCommit(ctx context.Context, c models.Commit) (*CommitExplanation, error) {
	reply, err := m.GenerateWithSystem(ctx, explainSystemPrompt, buildCommitPrompt(c))
	if err != nil {
		return nil, fmt.Errorf("explain commit %s: %w", c.ShortSHA(), err)
	}

	exp := parseExplanation(reply)
	exp.CommitSHA = c.SHA
	exp.Model = m.modelName
	exp.GeneratedAt = m.now().UTC()
	return exp, nil
}

func buildCommitPrompt(c models.Commit) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Commit: %s\nAuthor: %s\nDate: %s\nMessage: %s\n",
		c.ShortSHA(), c.Author, c.Date.UTC().Format(time.RFC3339), c.Message)

	if len(c.Files) > 0 {
		fmt.Fprintf(&b, "\nFiles changed (%d):\n", len(c.Files))
		for _, f := range c.Files[:min(len(c.Files), MaxExplainFiles)] {
			fmt.Fprintf(&b, "  - %s\n", f)
		}
		if extra := len(c.Files) - MaxExplainFiles; extra > 0 {
			fmt.Fprintf(&b, "  ... and %d more files\n", extra)
		}
	}

	diff := c.Diff
	truncated := false
	if r := []rune(diff); len(r) > MaxExplainDiff {
		diff = string(r[:MaxExplainDiff])
		truncated = true
	}
	b.WriteString("\nGit Diff:\n```\n")
	b.WriteString(diff)
	if truncated {
		b.WriteString("\n\n... (diff truncated)")
	}
	b.WriteString("\n```\n")

	b.WriteString(`
Return a JSON object with these keys:
- summary: one sentence on what the commit does
- what_changed: the behavioral changes, features added, bugs fixed or functionality removed
- why_important: the problem solved or capability enabled
- technical_details: key implementation decisions and how they fit the existing code
- business_impact: user-facing impact, or an empty string
`)
	return b.String()
}

func parseExplanation(reply string) *CommitExplanation {
	clean := strings.TrimSpace(reply)
	clean = strings.TrimPrefix(clean, "```json")
	clean = strings.TrimPrefix(clean, "```")
	clean = strings.TrimSuffix(clean, "```")
	clean = strings.TrimSpace(clean)

	var exp CommitExplanation
	if err := json.Unmarshal([]byte(clean), &exp); err != nil {
		return &CommitExplanation{
			Summary:     "Analysis generated (see details below)",
			WhatChanged: strings.TrimSpace(reply),
		}
	}
	return &exp
}
