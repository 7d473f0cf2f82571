package searcher

import (
	"strings"
	"time"

	"github.com/dshills/postvault/internal/content"
	"github.com/dshills/postvault/pkg/types"
)

const tagCondition = "EXISTS (SELECT 1 FROM json_each(CASE WHEN json_valid(posts.tags) " +
	"THEN posts.tags ELSE '[]' END) WHERE value = ?)"

// Plan is a compiled search. The count and page statements share one FROM and
// WHERE clause and one argument list.
type Plan struct {
	from  string
	where string
	order string
	args  []any
}

// Compile builds the SQL for q. Special pages are excluded unless a type
// filter is given, and type filters can only name searchable types.
func Compile(q Query) Plan {
	var (
		conditions []string
		args       []any
		p          Plan
	)

	match := ftsMatch(q.Text)
	if match != "" {
		p.from = "FROM posts INNER JOIN posts_fts ON posts.rowid = posts_fts.rowid"
		p.order = "ORDER BY posts_fts.rank, posts.date DESC, posts.id"
		conditions = append(conditions, "posts_fts MATCH ?")
		args = append(args, match)
	} else {
		p.from = "FROM posts"
		p.order = "ORDER BY posts.date DESC, posts.id"
	}

	for _, tag := range q.Tags {
		conditions = append(conditions, tagCondition)
		args = append(args, tag)
	}

	if q.From != "" {
		conditions = append(conditions, "posts.date >= ?")
		args = append(args, q.From)
	}
	if q.To != "" {
		// Dates carry a time part, so compare against the start of the next day
		if to, err := time.Parse(DateLayout, q.To); err == nil {
			conditions = append(conditions, "posts.date < ?")
			args = append(args, to.AddDate(0, 0, 1).Format(DateLayout))
		}
	}

	if typ := distinctTypes(q.Types); len(typ) > 0 {
		conditions = append(conditions, "posts.content_type IN ("+placeholders(len(typ))+")")
		for _, t := range typ {
			args = append(args, string(t))
		}
	} else {
		conditions = append(conditions, "posts.content_type != 'special'")
	}

	p.where = "WHERE " + strings.Join(conditions, " AND ")
	p.args = args
	return p
}

// CountSQL returns the statement counting every match
func (p Plan) CountSQL() string {
	return "SELECT COUNT(*) " + p.from + " " + p.where
}

// PageSQL returns the statement selecting one page of summaries. It takes
// the arguments returned by PageArgs.
func (p Plan) PageSQL() string {
	return "SELECT " + content.SummaryColumns + " " + p.from + " " + p.where + " " + p.order + " LIMIT ? OFFSET ?"
}

// Args returns a copy of the arguments for CountSQL
func (p Plan) Args() []any {
	return append([]any(nil), p.args...)
}

// PageArgs returns a copy of the arguments for PageSQL
func (p Plan) PageArgs(limit, offset int) []any {
	args := make([]any, 0, len(p.args)+2)
	args = append(args, p.args...)
	return append(args, limit, offset)
}

func distinctTypes(in []types.ContentType) []types.ContentType {
	var out []types.ContentType
	seen := make(map[types.ContentType]bool, len(in))
	for _, t := range in {
		if !t.Searchable() || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

func placeholders(n int) string {
	return strings.Repeat("?, ", n-1) + "?"
}
