package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/postvault/internal/content"
	"github.com/dshills/postvault/internal/searcher"
	"github.com/dshills/postvault/internal/storage/storagetest"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	path := storagetest.CreateDatabase(t, filepath.Join(t.TempDir(), "content.db"), storagetest.Sample())
	_, exec := storagetest.Open(t, path, storagetest.Options{})

	logger := storagetest.Logger()
	return NewServer(
		content.NewRepository(exec, logger),
		searcher.New(exec, searcher.Options{Logger: logger}),
		"test",
		logger,
	)
}

func callRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Name = name
	if args != nil {
		req.Params.Arguments = args
	}
	return req
}

// decodeResult unmarshals the single text block of a tool result
func decodeResult(t *testing.T, res *mcp.CallToolResult, v interface{}) {
	t.Helper()
	require.NotNil(t, res)
	require.Len(t, res.Content, 1)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content, got %T", res.Content[0])
	require.NoError(t, json.Unmarshal([]byte(text.Text), v))
}

func requireCode(t *testing.T, err error, code int) {
	t.Helper()
	var mcpErr *MCPError
	require.True(t, errors.As(err, &mcpErr), "expected MCPError, got %v", err)
	assert.Equal(t, code, mcpErr.Code)
}

func TestServer_RegistersTools(t *testing.T) {
	s := newTestServer(t)

	resp := s.mcp.HandleMessage(context.Background(), []byte(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`))
	out, err := json.Marshal(resp)
	require.NoError(t, err)

	for _, name := range []string{"search_posts", "get_post", "list_posts", "related_posts"} {
		assert.Contains(t, string(out), `"`+name+`"`)
	}
}

func TestHandleSearchPosts(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	t.Run("tag filter", func(t *testing.T) {
		res, err := s.handleSearchPosts(ctx, callRequest("search_posts", map[string]interface{}{
			"query": "tag:sqlite",
		}))
		require.NoError(t, err)

		var body struct {
			Results []struct {
				ID string `json:"id"`
			} `json:"results"`
			Total      int `json:"total"`
			TotalPages int `json:"total_pages"`
		}
		decodeResult(t, res, &body)
		assert.Equal(t, 3, body.Total)
		assert.Equal(t, 1, body.TotalPages)
		require.NotEmpty(t, body.Results)
		assert.Equal(t, "sqlite-swaps", body.Results[0].ID)
	})

	t.Run("json numbers for paging", func(t *testing.T) {
		res, err := s.handleSearchPosts(ctx, callRequest("search_posts", map[string]interface{}{
			"query":    "tag:sqlite",
			"page":     float64(2),
			"per_page": float64(2),
		}))
		require.NoError(t, err)

		var body struct {
			Results     []json.RawMessage `json:"results"`
			CurrentPage int               `json:"current_page"`
			TotalPages  int               `json:"total_pages"`
		}
		decodeResult(t, res, &body)
		assert.Len(t, body.Results, 1)
		assert.Equal(t, 2, body.CurrentPage)
		assert.Equal(t, 2, body.TotalPages)
	})

	t.Run("empty query", func(t *testing.T) {
		_, err := s.handleSearchPosts(ctx, callRequest("search_posts", map[string]interface{}{"query": "   "}))
		requireCode(t, err, ErrorCodeEmptyQuery)
	})

	t.Run("bad page", func(t *testing.T) {
		_, err := s.handleSearchPosts(ctx, callRequest("search_posts", map[string]interface{}{
			"query": "sqlite",
			"page":  float64(0),
		}))
		requireCode(t, err, ErrorCodeInvalidParams)
	})

	t.Run("missing arguments", func(t *testing.T) {
		_, err := s.handleSearchPosts(ctx, callRequest("search_posts", nil))
		requireCode(t, err, ErrorCodeInvalidParams)
	})
}

func TestHandleGetPost(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	res, err := s.handleGetPost(ctx, callRequest("get_post", map[string]interface{}{"id": "vector-search"}))
	require.NoError(t, err)

	var body struct {
		Post struct {
			ID      string `json:"id"`
			Title   string `json:"title"`
			Related []struct {
				ID string `json:"id"`
			} `json:"related"`
		} `json:"post"`
	}
	decodeResult(t, res, &body)
	assert.Equal(t, "Vector search with sqlite-vec", body.Post.Title)
	require.NotEmpty(t, body.Post.Related)
	assert.Equal(t, "sqlite-swaps", body.Post.Related[0].ID)

	tests := []struct {
		name string
		args map[string]interface{}
		code int
	}{
		{"missing post", map[string]interface{}{"id": "nope"}, ErrorCodePostNotFound},
		{"special page", map[string]interface{}{"id": "about"}, ErrorCodePostNotFound},
		{"empty id", map[string]interface{}{"id": ""}, ErrorCodeInvalidParams},
		{"id too long", map[string]interface{}{"id": strings.Repeat("x", 300)}, ErrorCodeInvalidParams},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.handleGetPost(ctx, callRequest("get_post", tt.args))
			requireCode(t, err, tt.code)
		})
	}
}

func TestHandleListPosts(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	res, err := s.handleListPosts(ctx, callRequest("list_posts", nil))
	require.NoError(t, err)

	var body struct {
		Posts []struct {
			ID      string `json:"id"`
			Content string `json:"content"`
		} `json:"posts"`
		Total int `json:"total"`
	}
	decodeResult(t, res, &body)
	assert.Equal(t, 5, body.Total)
	require.Len(t, body.Posts, 5)
	assert.Equal(t, "sqlite-swaps", body.Posts[0].ID)
	assert.Empty(t, body.Posts[0].Content, "listings carry summaries only")

	_, err = s.handleListPosts(ctx, callRequest("list_posts", map[string]interface{}{"page": float64(-1)}))
	requireCode(t, err, ErrorCodeInvalidParams)
}

func TestHandleRelatedPosts(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	res, err := s.handleRelatedPosts(ctx, callRequest("related_posts", map[string]interface{}{
		"id":    "sqlite-swaps",
		"limit": float64(2),
	}))
	require.NoError(t, err)

	var body struct {
		Related []struct {
			ID string `json:"id"`
		} `json:"related"`
	}
	decodeResult(t, res, &body)
	require.Len(t, body.Related, 2)
	assert.Equal(t, "vector-search", body.Related[0].ID)
	assert.Equal(t, "good-link", body.Related[1].ID)

	_, err = s.handleRelatedPosts(ctx, callRequest("related_posts", map[string]interface{}{
		"id":    "sqlite-swaps",
		"limit": float64(maxRelated + 1),
	}))
	requireCode(t, err, ErrorCodeInvalidParams)
}
