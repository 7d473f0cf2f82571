// Package types provides shared type definitions for postvault.
//
// This package defines the domain types exchanged between the storage layer,
// the search layer and the HTTP and MCP surfaces.
//
// # Core Types
//
// Post is a single piece of site content. Its ContentType decides which of the
// optional fields are meaningful:
//
//	post := types.Post{
//	    ID:          "hello-world",
//	    ContentType: types.ContentArticle,
//	    Title:       "Hello, world",
//	    Date:        "2024-03-01T09:00:00Z",
//	}
//
// Special content (about and contact pages) shares the posts table but is never
// returned by listings, search, the feed or the sitemap.
//
// Commit is a change-log entry attached to a post through its ordered CommitIDs.
// Summary is the body-less projection used by listings, search and related
// content.
//
// # Errors
//
// Storage and search operations report failures through the sentinels in
// errors.go and callers test them with errors.Is:
//
//	post, err := repo.GetPost(ctx, id)
//	if errors.Is(err, types.ErrNotFound) {
//	    // 404
//	}
//
// ErrPoolExhausted wraps ErrQueryFailed, so code that only cares about "the
// database failed" does not need a separate branch for it.
//
// # Validation
//
// External input is checked before it reaches storage:
//
//	if err := types.ValidateID(id); err != nil {
//	    // errors.Is(err, types.ErrValidation) == true
//	}
package types
