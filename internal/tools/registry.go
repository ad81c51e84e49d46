package tools

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// RegisterAll registers all tools with the MCP server.
// This is called from main after server creation but before Run().
func RegisterAll(server *mcp.Server, deps *Dependencies) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "ingest_repository",
		Description: "Start ingesting a repository's code, commits, issues and pull requests into the knowledge base. Returns a job ID.",
	}, NewIngestHandler(deps))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "ingestion_status",
		Description: "Get the status, current stage and progress counters of an ingestion job",
	}, NewStatusHandler(deps))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "cancel_ingestion",
		Description: "Cancel a running ingestion job",
	}, NewCancelHandler(deps))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_jobs",
		Description: "List ingestion jobs, most recent first",
	}, NewListJobsHandler(deps))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_repositories",
		Description: "List repositories that were ingested successfully with their document counts",
	}, NewListRepositoriesHandler(deps))
}
