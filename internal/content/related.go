package content

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dshills/postvault/internal/storage"
	"github.com/dshills/postvault/pkg/types"
)

// relatedOverfetch is the number of extra neighbours requested so that
// special pages can be dropped without returning fewer than limit posts
const relatedOverfetch = 4

// Related returns up to limit posts whose embeddings are closest to the
// embedding of id, closest first. A post without an embedding has no related
// posts. Special pages are never returned.
func (r *Repository) Related(ctx context.Context, id string, limit int) ([]types.Summary, error) {
	if err := types.ValidateID(id); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return []types.Summary{}, nil
	}

	return storage.Query(ctx, r.runner, func(ctx context.Context, conn *sql.Conn) ([]types.Summary, error) {
		return relatedPosts(ctx, conn, id, limit)
	})
}

// relatedPosts runs the neighbour search and the summary lookup on conn
func relatedPosts(ctx context.Context, conn *sql.Conn, id string, limit int) ([]types.Summary, error) {
	var embedding []byte
	err := conn.QueryRowContext(ctx, "SELECT embedding FROM post_embeddings WHERE id = ?", id).Scan(&embedding)
	if errors.Is(err, sql.ErrNoRows) {
		return []types.Summary{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read embedding for %q: %w", id, err)
	}

	neighbors, err := storage.NearestNeighbors(ctx, conn, embedding, id, limit+relatedOverfetch)
	if err != nil {
		return nil, err
	}
	if len(neighbors) == 0 {
		return []types.Summary{}, nil
	}

	ids := make([]string, len(neighbors))
	for i, n := range neighbors {
		ids[i] = n.ID
	}

	query := "SELECT " + SummaryColumns + " FROM posts WHERE posts.id IN (" + placeholders(len(ids)) + ") AND " + notSpecial

	rows, err := conn.QueryContext(ctx, query, stringArgs(ids)...)
	if err != nil {
		return nil, fmt.Errorf("failed to query related posts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	byID := make(map[string]types.Summary, len(ids))
	for rows.Next() {
		s, err := ScanSummary(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan related post: %w", err)
		}
		byID[s.ID] = s
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate related posts: %w", err)
	}

	// Rank order comes from the neighbour list, not the IN query
	related := make([]types.Summary, 0, limit)
	for _, id := range ids {
		if s, ok := byID[id]; ok {
			related = append(related, s)
			if len(related) == limit {
				break
			}
		}
	}
	return related, nil
}
