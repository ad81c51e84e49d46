package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	maxArgLogLen = 200
	// Tool calls only submit or read jobs, so anything slower is suspect.
	slowRequestThreshold = 250 * time.Millisecond
)

// LoggingMiddleware logs every MCP request with its duration. Tool calls
// are tagged with the tool name; arguments are truncated.
func LoggingMiddleware(logger *slog.Logger) mcp.Middleware {
	return func(next mcp.MethodHandler) mcp.MethodHandler {
		return func(ctx context.Context, method string, req mcp.Request) (mcp.Result, error) {
			start := time.Now()
			result, err := next(ctx, method, req)
			duration := time.Since(start)

			attrs := []any{
				"method", method,
				"duration_ms", duration.Milliseconds(),
			}
			if call, ok := req.(*mcp.CallToolRequest); ok && call.Params != nil {
				attrs = append(attrs, "tool", call.Params.Name)
				if len(call.Params.Arguments) > 0 {
					attrs = append(attrs, "arguments", truncate(string(call.Params.Arguments), maxArgLogLen))
				}
			} else if params := req.GetParams(); params != nil {
				attrs = append(attrs, "params", truncate(fmt.Sprintf("%+v", params), maxArgLogLen))
			}
			if res, ok := result.(*mcp.CallToolResult); ok && res.IsError {
				attrs = append(attrs, "tool_error", true)
			}

			switch {
			case err != nil:
				attrs = append(attrs, "error", err.Error())
				logger.Error("request failed", attrs...)
			case duration > slowRequestThreshold:
				logger.Warn("slow request", attrs...)
			default:
				logger.Debug("request completed", attrs...)
			}
			return result, err
		}
	}
}

// truncate shortens a string to maxLen, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen < 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
