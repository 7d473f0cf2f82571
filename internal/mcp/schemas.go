package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/postvault/internal/content"
	"github.com/dshills/postvault/internal/searcher"
)

// searchPostsTool returns the tool definition for search_posts
func searchPostsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_posts",
		Description: "Full-text search over published posts with optional tag:, type:, from: and to: filters",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Search query, e.g. 'sqlite tag:databases type:link from:2024-01-01'",
				},
				"page": map[string]interface{}{
					"type":        "integer",
					"description": "1-based result page",
					"default":     1,
					"minimum":     1,
				},
				"per_page": map[string]interface{}{
					"type":        "integer",
					"description": "Results per page",
					"default":     searcher.DefaultPerPage,
					"minimum":     1,
					"maximum":     searcher.MaxPerPage,
				},
			},
			Required: []string{"query"},
		},
	}
}

// getPostTool returns the tool definition for get_post
func getPostTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_post",
		Description: "Fetch one post with its commit history and related posts",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"id": map[string]interface{}{
					"type":        "string",
					"description": "Post identifier (URL slug)",
				},
			},
			Required: []string{"id"},
		},
	}
}

// listPostsTool returns the tool definition for list_posts
func listPostsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "list_posts",
		Description: "List posts newest first, one page at a time",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"page": map[string]interface{}{
					"type":        "integer",
					"description": "1-based page",
					"default":     1,
					"minimum":     1,
				},
			},
		},
	}
}

// relatedPostsTool returns the tool definition for related_posts
func relatedPostsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "related_posts",
		Description: "Find the posts closest to a post by embedding distance",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"id": map[string]interface{}{
					"type":        "string",
					"description": "Post identifier",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of related posts (1-20)",
					"default":     content.RelatedLimit,
					"minimum":     1,
					"maximum":     maxRelated,
				},
			},
			Required: []string{"id"},
		},
	}
}
