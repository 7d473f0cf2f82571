package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/postvault/internal/content"
	"github.com/dshills/postvault/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams = -32602 // Invalid method parameters
	ErrorCodeInternalError = -32603 // Internal JSON-RPC error
	ErrorCodePostNotFound  = -32001 // No post with the given id
	ErrorCodeEmptyQuery    = -32004 // Query parameter is empty
)

const maxRelated = 20

// handleSearchPosts handles the search_posts tool invocation
func (s *Server) handleSearchPosts(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	query := strings.TrimSpace(getStringDefault(args, "query", ""))
	if query == "" {
		return nil, newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", map[string]interface{}{
			"param":  "query",
			"reason": "missing or empty",
		})
	}

	page := getIntDefault(args, "page", 1)
	if page < 1 {
		return nil, newMCPError(ErrorCodeInvalidParams, "page must be at least 1", map[string]interface{}{
			"param": "page",
			"value": page,
		})
	}

	perPage := getIntDefault(args, "per_page", 0)
	if perPage < 0 {
		return nil, newMCPError(ErrorCodeInvalidParams, "per_page must not be negative", map[string]interface{}{
			"param": "per_page",
			"value": perPage,
		})
	}

	result, err := s.searcher.SearchString(ctx, query, page, perPage)
	if err != nil {
		return nil, s.toolError("search failed", err)
	}

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"query":        query,
		"results":      result.Items,
		"total":        result.Total,
		"current_page": result.CurrentPage,
		"total_pages":  result.TotalPages,
	})), nil
}

// handleGetPost handles the get_post tool invocation
func (s *Server) handleGetPost(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	id, err := requireID(args)
	if err != nil {
		return nil, err
	}

	post, err := s.repo.GetPost(ctx, id)
	if err != nil {
		return nil, s.toolError("failed to get post", err)
	}

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"post": post,
	})), nil
}

// handleListPosts handles the list_posts tool invocation
func (s *Server) handleListPosts(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	// list_posts has no required parameters so a missing arguments object is fine
	args, _ := request.Params.Arguments.(map[string]interface{})

	page := getIntDefault(args, "page", 1)
	if page < 1 {
		return nil, newMCPError(ErrorCodeInvalidParams, "page must be at least 1", map[string]interface{}{
			"param": "page",
			"value": page,
		})
	}

	result, err := s.repo.ListPage(ctx, page, content.PostsPerPage)
	if err != nil {
		return nil, s.toolError("failed to list posts", err)
	}

	summaries := make([]types.Summary, len(result.Items))
	for i := range result.Items {
		summaries[i] = result.Items[i].Summary()
	}

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"posts":        summaries,
		"total":        result.Total,
		"current_page": result.CurrentPage,
		"total_pages":  result.TotalPages,
	})), nil
}

// handleRelatedPosts handles the related_posts tool invocation
func (s *Server) handleRelatedPosts(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	id, err := requireID(args)
	if err != nil {
		return nil, err
	}

	limit := getIntDefault(args, "limit", content.RelatedLimit)
	if limit < 1 || limit > maxRelated {
		return nil, newMCPError(ErrorCodeInvalidParams, fmt.Sprintf("limit must be between 1 and %d", maxRelated), map[string]interface{}{
			"param": "limit",
			"value": limit,
		})
	}

	related, err := s.repo.Related(ctx, id, limit)
	if err != nil {
		return nil, s.toolError("failed to find related posts", err)
	}

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"id":      id,
		"related": related,
	})), nil
}

// Helper functions

func requireID(args map[string]interface{}) (string, error) {
	id, ok := args["id"].(string)
	if !ok || id == "" {
		return "", newMCPError(ErrorCodeInvalidParams, "id parameter is required", map[string]interface{}{
			"param":  "id",
			"reason": "missing or empty",
		})
	}
	return id, nil
}

// toolError maps a content-layer error onto an MCP error code
func (s *Server) toolError(message string, err error) error {
	switch {
	case errors.Is(err, types.ErrValidation):
		return newMCPError(ErrorCodeInvalidParams, message, map[string]interface{}{
			"error": err.Error(),
		})
	case errors.Is(err, types.ErrNotFound):
		return newMCPError(ErrorCodePostNotFound, "post not found", map[string]interface{}{
			"error": err.Error(),
		})
	default:
		s.logger.Error(message, "err", err)
		return newMCPError(ErrorCodeInternalError, message, map[string]interface{}{
			"error": err.Error(),
		})
	}
}

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	// MCP errors are returned as regular errors, the framework handles encoding
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}
