package content

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dshills/postvault/internal/storage"
	"github.com/dshills/postvault/pkg/types"
)

// BulkResolve attaches change-log entries to posts.
//
// Commit ids from every post are read with a single query; no query is made
// when no post references a commit. Each post receives its commits in
// reference order with unknown ids dropped, and LastUpdated is set to the
// date of its first referenced commit when that commit exists.
func (r *Repository) BulkResolve(ctx context.Context, posts []types.Post) ([]types.Post, error) {
	if len(commitIDs(posts)) == 0 {
		return posts, nil
	}
	return storage.Query(ctx, r.runner, func(ctx context.Context, conn *sql.Conn) ([]types.Post, error) {
		return resolveCommits(ctx, conn, posts)
	})
}

func resolveCommits(ctx context.Context, conn *sql.Conn, posts []types.Post) ([]types.Post, error) {
	ids := commitIDs(posts)
	if len(ids) == 0 {
		return posts, nil
	}

	commits, err := queryCommits(ctx, conn, ids)
	if err != nil {
		return nil, err
	}

	for i := range posts {
		p := &posts[i]
		if len(p.CommitIDs) == 0 {
			continue
		}

		resolved := make([]types.Commit, 0, len(p.CommitIDs))
		for _, id := range p.CommitIDs {
			if c, ok := commits[id]; ok {
				resolved = append(resolved, c)
			}
		}
		p.Commits = resolved

		if first, ok := commits[p.CommitIDs[0]]; ok {
			p.LastUpdated = first.Date
		}
	}

	return posts, nil
}

func queryCommits(ctx context.Context, conn *sql.Conn, ids []string) (map[string]types.Commit, error) {
	query := "SELECT " + commitColumns + " FROM commits WHERE id IN (" + placeholders(len(ids)) + ")"

	rows, err := conn.QueryContext(ctx, query, stringArgs(ids)...)
	if err != nil {
		return nil, fmt.Errorf("failed to query commits: %w", err)
	}
	defer func() { _ = rows.Close() }()

	byID := make(map[string]types.Commit, len(ids))
	for rows.Next() {
		c, err := scanCommit(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan commit: %w", err)
		}
		byID[c.ID] = c
	}
	return byID, rows.Err()
}

// commitIDs returns the distinct commit ids referenced by posts in first-seen order
func commitIDs(posts []types.Post) []string {
	seen := make(map[string]struct{})
	var ids []string
	for _, p := range posts {
		for _, id := range p.CommitIDs {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	return ids
}
