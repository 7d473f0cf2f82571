// Package mcp implements the Model Context Protocol (MCP) server for postvault.
//
// The server exposes read-only content tools to AI assistants:
//   - search_posts: Search posts with the site's query syntax
//   - get_post: Fetch a post with its commits and related posts
//   - list_posts: Page through posts newest first
//   - related_posts: Find the nearest posts by embedding distance
//
// # Protocol Overview
//
// MCP is a JSON-RPC 2.0 protocol over stdio transport:
//
//	Client → Server: {"method": "tools/call", "params": {...}}
//	Server → Client: {"result": {...}}
//
// Stdout carries protocol messages only, so logs go to stderr.
//
// # Basic Usage
//
//	postvault mcp
//
// # Tool: search_posts
//
//	Request:
//	{
//	  "name": "search_posts",
//	  "arguments": {
//	    "query": "sqlite tag:databases from:2024-01-01",
//	    "page": 1,
//	    "per_page": 10
//	  }
//	}
//
//	Response:
//	{
//	  "query": "sqlite tag:databases from:2024-01-01",
//	  "results": [{"id": "sqlite-swaps", "content_type": "post", "date": "2024-03-10T09:00:00Z"}],
//	  "total": 1,
//	  "current_page": 1,
//	  "total_pages": 1
//	}
//
// # Tool: get_post
//
//	Request:
//	{"name": "get_post", "arguments": {"id": "sqlite-swaps"}}
//
// The response wraps the full post, including commits, last_updated and up to
// three related summaries, under "post".
//
// # Tool: list_posts
//
//	Request:
//	{"name": "list_posts", "arguments": {"page": 2}}
//
// # Tool: related_posts
//
//	Request:
//	{"name": "related_posts", "arguments": {"id": "sqlite-swaps", "limit": 5}}
//
// # Error Codes
//
//	-32602  Invalid parameters
//	-32603  Internal error
//	-32001  Post not found
//	-32004  Empty search query
package mcp
