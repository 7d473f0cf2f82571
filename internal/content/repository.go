package content

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dshills/postvault/internal/storage"
	"github.com/dshills/postvault/pkg/types"
)

const (
	// RecentLimit is the number of posts on the front page
	RecentLimit = 5
	// PostsPerPage is the page size of the archive listing
	PostsPerPage = 10
	// FeedLimit is the number of posts in the RSS feed
	FeedLimit = 20
	// RelatedLimit is the number of related posts attached to a post
	RelatedLimit = 3
)

// Kind selects which class of rows GetByID may return
type Kind int

const (
	// KindNormal matches every content type except special pages
	KindNormal Kind = iota
	// KindSpecial matches only special pages
	KindSpecial
)

func (k Kind) predicate() string {
	if k == KindSpecial {
		return isSpecial
	}
	return notSpecial
}

// SitemapEntry is the id and date of a listed post
type SitemapEntry struct {
	ID   string
	Date string
}

// Repository reads posts, change-log entries, embeddings and images
type Repository struct {
	runner storage.Runner
	logger *slog.Logger
}

// NewRepository creates a repository that runs its queries through r
func NewRepository(r storage.Runner, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{runner: r, logger: logger}
}

// GetByID returns the unresolved post with id in the given kind class.
// It returns types.ErrNotFound when no row matches.
func (r *Repository) GetByID(ctx context.Context, id string, kind Kind) (types.Post, error) {
	if err := types.ValidateID(id); err != nil {
		return types.Post{}, err
	}

	return storage.Query(ctx, r.runner, func(ctx context.Context, conn *sql.Conn) (types.Post, error) {
		return getByID(ctx, conn, id, kind)
	})
}

// GetPost returns a listed post with its change-log entries and related posts.
// Failing to compute related posts is logged and does not fail the call.
//
// Every read runs on one connection, so the post, its commits and its related
// posts all come from the same database file even across a switch.
func (r *Repository) GetPost(ctx context.Context, id string) (types.Post, error) {
	if err := types.ValidateID(id); err != nil {
		return types.Post{}, err
	}

	return storage.Query(ctx, r.runner, func(ctx context.Context, conn *sql.Conn) (types.Post, error) {
		p, err := getByID(ctx, conn, id, KindNormal)
		if err != nil {
			return types.Post{}, err
		}

		posts, err := resolveCommits(ctx, conn, []types.Post{p})
		if err != nil {
			return types.Post{}, err
		}
		p = posts[0]

		related, err := relatedPosts(ctx, conn, p.ID, RelatedLimit)
		if err != nil {
			r.logger.Error("failed to get related posts", "id", p.ID, "err", err)
		} else if len(related) > 0 {
			p.Related = related
		}
		return p, nil
	})
}

// GetSpecial returns a special page with its change-log entries
func (r *Repository) GetSpecial(ctx context.Context, id string) (types.Post, error) {
	if err := types.ValidateID(id); err != nil {
		return types.Post{}, err
	}

	return storage.Query(ctx, r.runner, func(ctx context.Context, conn *sql.Conn) (types.Post, error) {
		p, err := getByID(ctx, conn, id, KindSpecial)
		if err != nil {
			return types.Post{}, err
		}
		posts, err := resolveCommits(ctx, conn, []types.Post{p})
		if err != nil {
			return types.Post{}, err
		}
		return posts[0], nil
	})
}

// ListRecent returns the newest limit posts, resolved
func (r *Repository) ListRecent(ctx context.Context, limit int) ([]types.Post, error) {
	if limit <= 0 {
		return []types.Post{}, nil
	}

	query := "SELECT " + postColumns + " FROM posts WHERE " + notSpecial +
		" ORDER BY posts.date DESC, posts.id LIMIT ?"

	return storage.Query(ctx, r.runner, func(ctx context.Context, conn *sql.Conn) ([]types.Post, error) {
		posts, err := queryPosts(ctx, conn, query, limit)
		if err != nil {
			return nil, err
		}
		return resolveCommits(ctx, conn, posts)
	})
}

// FeedEntries returns the posts published in the RSS feed
func (r *Repository) FeedEntries(ctx context.Context) ([]types.Post, error) {
	return r.ListRecent(ctx, FeedLimit)
}

// ListPage returns one page of listed posts, newest first. Pages are 1-based;
// a page past the end has no items but still reports the page count.
func (r *Repository) ListPage(ctx context.Context, page, pageSize int) (types.Page[types.Post], error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = PostsPerPage
	}

	countQuery := "SELECT COUNT(*) FROM posts WHERE " + notSpecial
	pageQuery := "SELECT " + postColumns + " FROM posts WHERE " + notSpecial +
		" ORDER BY posts.date DESC, posts.id LIMIT ? OFFSET ?"

	result := types.Page[types.Post]{CurrentPage: page}

	err := r.runner.Run(ctx, func(ctx context.Context, conn *sql.Conn) error {
		if err := conn.QueryRowContext(ctx, countQuery).Scan(&result.Total); err != nil {
			return fmt.Errorf("failed to count posts: %w", err)
		}

		posts, err := queryPosts(ctx, conn, pageQuery, pageSize, (page-1)*pageSize)
		if err != nil {
			return err
		}
		result.Items, err = resolveCommits(ctx, conn, posts)
		return err
	})
	if err != nil {
		return types.Page[types.Post]{}, err
	}

	result.TotalPages = types.TotalPages(result.Total, pageSize)
	return result, nil
}

// SitemapEntries returns the id and date of every listed post, newest first
func (r *Repository) SitemapEntries(ctx context.Context) ([]SitemapEntry, error) {
	query := "SELECT posts.id, posts.date FROM posts WHERE " + notSpecial + " ORDER BY posts.date DESC, posts.id"

	return storage.Query(ctx, r.runner, func(ctx context.Context, conn *sql.Conn) ([]SitemapEntry, error) {
		rows, err := conn.QueryContext(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("failed to list post urls: %w", err)
		}
		defer func() { _ = rows.Close() }()

		entries := []SitemapEntry{}
		for rows.Next() {
			var e SitemapEntry
			if err := rows.Scan(&e.ID, &e.Date); err != nil {
				return nil, fmt.Errorf("failed to scan post url: %w", err)
			}
			entries = append(entries, e)
		}
		return entries, rows.Err()
	})
}

func getByID(ctx context.Context, conn *sql.Conn, id string, kind Kind) (types.Post, error) {
	query := "SELECT " + postColumns + " FROM posts WHERE posts.id = ? AND " + kind.predicate()

	p, err := scanPost(conn.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return types.Post{}, fmt.Errorf("post %q: %w", id, types.ErrNotFound)
	}
	if err != nil {
		return types.Post{}, fmt.Errorf("failed to get post %q: %w", id, err)
	}
	return p, nil
}

func queryPosts(ctx context.Context, conn *sql.Conn, query string, args ...any) ([]types.Post, error) {
	rows, err := conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query posts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	posts := []types.Post{}
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan post: %w", err)
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate posts: %w", err)
	}
	return posts, nil
}
