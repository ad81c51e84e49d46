package cli

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"charm.land/bubbles/v2/progress"
	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/lipgloss"

	"github.com/raphaelgruber/repoingest/internal/client"
	"github.com/raphaelgruber/repoingest/internal/models"
)

// pipelineStages is the order stages run in, used to draw the progress bar.
var pipelineStages = []string{
	models.StageInitializing,
	models.StageCloning,
	models.StageExtractingCode,
	models.StageExtractingCommits,
	models.StageExtractingIssues,
	models.StageExtractingPRs,
	models.StageProcessingDocuments,
	models.StageUploading,
	models.StageSyncingIndex,
	models.StageCleaningUp,
	models.StageCompleted,
}

// stageFraction maps a stage label to the share of the pipeline done.
func stageFraction(stage string) float64 {
	i := slices.Index(pipelineStages, stage)
	if i < 0 {
		return 0
	}
	return float64(i) / float64(len(pipelineStages)-1)
}

// Theme holds the color scheme for the progress display.
type Theme struct {
	Status  lipgloss.Color
	Success lipgloss.Color
	Error   lipgloss.Color
	Hint    lipgloss.Color
}

var defaultTheme = Theme{
	Status:  lipgloss.Color("#5FAFD7"),
	Success: lipgloss.Color("#00D787"),
	Error:   lipgloss.Color("#FF005F"),
	Hint:    lipgloss.Color("#6C6C6C"),
}

func (t Theme) statusStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Status)
}

func (t Theme) completedStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Success).Bold(true)
}

func (t Theme) errorStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Error).Bold(true)
}

func (t Theme) hintStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Hint).Italic(true)
}

// jobUpdateMsg carries a job snapshot from the watch stream.
type jobUpdateMsg struct {
	job *models.IngestionJob
	err error
}

// progressModel renders stage progress for one job. Updates arrive through
// tea.Program.Send from the watch goroutine.
type progressModel struct {
	jobID    string
	job      *models.IngestionJob
	bar      progress.Model
	theme    Theme
	started  time.Time
	done     bool
	detached bool
	err      error
}

func newProgressModel(jobID string) progressModel {
	return progressModel{
		jobID:   jobID,
		bar:     progress.New(progress.WithDefaultBlend(), progress.WithWidth(40)),
		theme:   defaultTheme,
		started: time.Now(),
	}
}

func (m progressModel) Init() tea.Cmd {
	return m.bar.Init()
}

func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		if s := msg.String(); s == "ctrl+c" || s == "q" {
			m.detached = true
			return m, tea.Quit
		}

	case jobUpdateMsg:
		if msg.err != nil {
			m.err = fmt.Errorf("watch job: %w", msg.err)
			m.done = true
			return m, tea.Quit
		}
		m.job = msg.job
		if m.job.Status.Terminal() {
			m.done = true
			if m.job.Status == models.JobStatusFailed {
				m.err = jobError(m.job)
			}
			return m, tea.Quit
		}

	case progress.FrameMsg:
		var cmd tea.Cmd
		m.bar, cmd = m.bar.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m progressModel) View() tea.View {
	return tea.NewView(m.render())
}

func (m progressModel) render() string {
	switch {
	case m.detached:
		return m.theme.hintStyle().Render(fmt.Sprintf(
			"\nJob %s continues in background.\nUse 'repoingest status %s' to check status.\n", m.jobID, m.jobID))
	case m.done && m.err != nil:
		return m.theme.errorStyle().Render(fmt.Sprintf("\n✗ Job failed: %s\n", m.err))
	case m.done:
		return m.theme.completedStyle().Render("✓ Completed") + "\n\n" + summary(m.job)
	case m.job == nil:
		return fmt.Sprintf("Waiting for job %s...\n", m.jobID)
	}

	stage := m.job.Stage()
	elapsed := time.Since(m.started).Round(time.Second)
	return fmt.Sprintf("%s %s %s (%s)\n%s\n%s\n",
		m.theme.statusStyle().Render("["+string(m.job.Status)+"]"),
		m.bar.ViewAs(stageFraction(stage)),
		stage,
		elapsed,
		countsLine(m.job),
		m.theme.hintStyle().Render("Press q to continue in background"),
	)
}

// RunJobProgress shows live stage progress until the job finishes.
// Detaching with q or Ctrl+C returns nil; a failed job returns its error.
func RunJobProgress(ctx context.Context, c *client.Client, jobID string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(newProgressModel(jobID))
	go func() {
		_, err := c.Watch(ctx, jobID, func(job models.IngestionJob) error {
			p.Send(jobUpdateMsg{job: &job})
			return nil
		})
		if err != nil && ctx.Err() == nil {
			p.Send(jobUpdateMsg{err: err})
		}
	}()

	final, err := p.Run()
	if err != nil {
		return fmt.Errorf("progress UI: %w", err)
	}
	m, ok := final.(progressModel)
	if !ok || m.detached {
		return nil
	}
	return m.err
}

// jobError converts a failed job into an error.
func jobError(job *models.IngestionJob) error {
	if job.ErrorMessage != nil {
		return fmt.Errorf("%s", *job.ErrorMessage)
	}
	return fmt.Errorf("job failed with unknown error")
}

// countsLine renders the extraction counters present in the progress map.
func countsLine(job *models.IngestionJob) string {
	var parts []string
	for _, k := range []string{
		models.ProgressCodeFiles,
		models.ProgressCommits,
		models.ProgressIssues,
		models.ProgressPullRequests,
		models.ProgressTotalDocuments,
	} {
		if v := job.Progress.Get(k); v != nil {
			parts = append(parts, fmt.Sprintf("%s=%v", k, v))
		}
	}
	return strings.Join(parts, " ")
}

// summary renders a finished job for terminal output.
func summary(job *models.IngestionJob) string {
	var b strings.Builder
	fmt.Fprintf(&b, "  Job:         %s\n", job.ID)
	fmt.Fprintf(&b, "  Repository:  %s\n", job.RepoURL)
	fmt.Fprintf(&b, "  Status:      %s\n", job.Status)
	fmt.Fprintf(&b, "  Documents:   %d\n", job.DocumentsProcessed)
	for _, k := range job.Progress.Keys() {
		if k == models.ProgressStage {
			continue
		}
		fmt.Fprintf(&b, "  %-12s %v\n", k+":", job.Progress.Get(k))
	}
	if job.CompletedAt != nil {
		fmt.Fprintf(&b, "  Duration:    %s\n", job.CompletedAt.Sub(job.CreatedAt).Round(time.Second))
	}
	if job.ErrorMessage != nil {
		fmt.Fprintf(&b, "  Error:       %s\n", *job.ErrorMessage)
	}
	return b.String()
}
