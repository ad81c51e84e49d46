package tools

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/raphaelgruber/repoingest/internal/models"
)

// IngestInput defines the input schema for ingest_repository.
type IngestInput struct {
	RepoURL        string `json:"repo_url" jsonschema:"Repository URL, e.g. https://github.com/owner/repo"`
	IncludeCommits *bool  `json:"include_commits,omitempty" jsonschema:"Ingest commit history (default true)"`
	IncludeIssues  *bool  `json:"include_issues,omitempty" jsonschema:"Ingest GitHub issues (default true)"`
	IncludePRs     *bool  `json:"include_prs,omitempty" jsonschema:"Ingest GitHub pull requests (default true)"`
	MaxCommits     int    `json:"max_commits,omitempty" jsonschema:"Maximum commits to ingest (default 100)"`
	MaxIssues      int    `json:"max_issues,omitempty" jsonschema:"Maximum issues to ingest (default 100)"`
	MaxPRs         int    `json:"max_prs,omitempty" jsonschema:"Maximum pull requests to ingest (default 100)"`
}

func (in IngestInput) request() models.IngestRequest {
	req := models.NewIngestRequest(in.RepoURL)
	if in.IncludeCommits != nil {
		req.IncludeCommits = *in.IncludeCommits
	}
	if in.IncludeIssues != nil {
		req.IncludeIssues = *in.IncludeIssues
	}
	if in.IncludePRs != nil {
		req.IncludePRs = *in.IncludePRs
	}
	req.MaxCommits = in.MaxCommits
	req.MaxIssues = in.MaxIssues
	req.MaxPRs = in.MaxPRs
	return req
}

// NewIngestHandler submits an ingestion job and returns its ID.
func NewIngestHandler(deps *Dependencies) mcp.ToolHandlerFor[IngestInput, any] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input IngestInput) (*mcp.CallToolResult, any, error) {
		jobID, err := deps.Service.Submit(ctx, input.request())
		if err != nil {
			deps.logger().Warn("ingest_repository failed", "repo_url", input.RepoURL, "error", err)
			return serviceError(err), nil, nil
		}
		return TextResult(fmt.Sprintf("Ingestion started for %s (%s). Job ID: %s. Poll ingestion_status for progress.",
			models.RepoName(input.RepoURL), models.NormalizeRepoURL(input.RepoURL), jobID)), nil, nil
	}
}

// JobInput identifies a job.
type JobInput struct {
	JobID string `json:"job_id" jsonschema:"Job ID returned by ingest_repository"`
}

// NewStatusHandler returns the current job snapshot.
func NewStatusHandler(deps *Dependencies) mcp.ToolHandlerFor[JobInput, any] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input JobInput) (*mcp.CallToolResult, any, error) {
		if input.JobID == "" {
			return ErrorResult("job_id is required", ""), nil, nil
		}
		job, err := deps.Service.GetStatus(ctx, input.JobID)
		if err != nil {
			return serviceError(err), nil, nil
		}
		return JSONResult(job), nil, nil
	}
}

// NewCancelHandler stops a running job at its next stage boundary.
func NewCancelHandler(deps *Dependencies) mcp.ToolHandlerFor[JobInput, any] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input JobInput) (*mcp.CallToolResult, any, error) {
		if _, err := deps.Service.GetStatus(ctx, input.JobID); err != nil {
			return serviceError(err), nil, nil
		}
		if !deps.Service.Cancel(input.JobID) {
			return ErrorResult(fmt.Sprintf("job %s is not running", input.JobID), "Only PENDING or IN_PROGRESS jobs can be cancelled"), nil, nil
		}
		return TextResult(fmt.Sprintf("Cancellation requested for job %s.", input.JobID)), nil, nil
	}
}

// EmptyInput is used by tools without arguments.
type EmptyInput struct{}

// NewListJobsHandler lists jobs, most recent first.
func NewListJobsHandler(deps *Dependencies) mcp.ToolHandlerFor[EmptyInput, any] {
	return func(ctx context.Context, req *mcp.CallToolRequest, _ EmptyInput) (*mcp.CallToolResult, any, error) {
		jobs, err := deps.Service.ListJobs(ctx)
		if err != nil {
			return serviceError(err), nil, nil
		}
		if len(jobs) == 0 {
			return TextResult("No ingestion jobs."), nil, nil
		}
		return JSONResult(jobs), nil, nil
	}
}

// NewListRepositoriesHandler lists successfully ingested repositories.
func NewListRepositoriesHandler(deps *Dependencies) mcp.ToolHandlerFor[EmptyInput, any] {
	return func(ctx context.Context, req *mcp.CallToolRequest, _ EmptyInput) (*mcp.CallToolResult, any, error) {
		repos, err := deps.Service.ListRepositories(ctx)
		if err != nil {
			return serviceError(err), nil, nil
		}
		if len(repos) == 0 {
			return TextResult("No repositories ingested yet."), nil, nil
		}
		return JSONResult(repos), nil, nil
	}
}
