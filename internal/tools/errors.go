package tools

import (
	"encoding/json"
	"errors"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/raphaelgruber/repoingest/internal/service"
	"github.com/raphaelgruber/repoingest/internal/store"
)

// ErrorResult creates a tool error result with optional recovery hint.
// If hint is non-empty, formats as "{msg}. {hint}".
// Returns IsError=true so LLM can see the error and self-correct.
func ErrorResult(msg, hint string) *mcp.CallToolResult {
	text := msg
	if hint != "" {
		text = msg + ". " + hint
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
		IsError: true,
	}
}

// TextResult creates a success result with text content.
func TextResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}

// JSONResult renders v as indented JSON text.
func JSONResult(v any) *mcp.CallToolResult {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return ErrorResult("failed to encode result: "+err.Error(), "")
	}
	return TextResult(string(b))
}

// serviceError maps service errors to tool results with a recovery hint.
func serviceError(err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, service.ErrInvalidRequest):
		return ErrorResult(err.Error(), "Pass an https or git@ URL of a GitHub repository")
	case errors.Is(err, store.ErrNotFound):
		return ErrorResult(err.Error(), "Use list_jobs to find known job IDs")
	case errors.Is(err, service.ErrPoolOverloaded):
		return ErrorResult(err.Error(), "Too many ingestions are running. Retry later")
	default:
		return ErrorResult(err.Error(), "")
	}
}
