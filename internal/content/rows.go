package content

import (
	"database/sql"
	"encoding/json"
	"strings"

	"github.com/dshills/postvault/pkg/types"
)

// Column lists are kept next to the scan functions that consume them
const (
	postColumns = "posts.id, posts.content_type, posts.title, posts.link, posts.via, " +
		"posts.quote_author, posts.date, posts.content, posts.commits, posts.tags"

	// SummaryColumns selects the fields read by ScanSummary
	SummaryColumns = "posts.id, posts.content_type, posts.title, posts.link, posts.via, " +
		"posts.quote_author, posts.date"

	commitColumns = "id, date, subject, body"

	notSpecial = "posts.content_type != 'special'"
	isSpecial  = "posts.content_type = 'special'"
)

// rowScanner is implemented by *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

func scanPost(row rowScanner) (types.Post, error) {
	var (
		p                        types.Post
		contentType              string
		title, link, via, author sql.NullString
		commitsJSON, tagsJSON    sql.NullString
	)

	err := row.Scan(&p.ID, &contentType, &title, &link, &via, &author, &p.Date, &p.Content, &commitsJSON, &tagsJSON)
	if err != nil {
		return types.Post{}, err
	}

	p.ContentType = types.ParseContentType(contentType)
	p.Title = title.String
	p.Link = link.String
	p.Via = via.String
	p.QuoteAuthor = author.String
	p.CommitIDs = decodeList(commitsJSON)
	p.Tags = decodeList(tagsJSON)
	return p, nil
}

// ScanSummary reads one row selected with SummaryColumns
func ScanSummary(row rowScanner) (types.Summary, error) {
	var (
		s                        types.Summary
		contentType              string
		title, link, via, author sql.NullString
	)

	if err := row.Scan(&s.ID, &contentType, &title, &link, &via, &author, &s.Date); err != nil {
		return types.Summary{}, err
	}

	s.ContentType = types.ParseContentType(contentType)
	s.Title = title.String
	s.Link = link.String
	s.Via = via.String
	s.QuoteAuthor = author.String
	return s, nil
}

func scanCommit(row rowScanner) (types.Commit, error) {
	var (
		c    types.Commit
		body sql.NullString
	)
	if err := row.Scan(&c.ID, &c.Date, &c.Subject, &body); err != nil {
		return types.Commit{}, err
	}
	c.Body = body.String
	return c, nil
}

// decodeList parses a JSON string array. Malformed values are treated as absent.
func decodeList(v sql.NullString) []string {
	if !v.Valid || v.String == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(v.String), &out); err != nil {
		return nil
	}
	return out
}

// placeholders returns "?, ?, ?" for n parameters
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?, ", n-1) + "?"
}

func stringArgs(vals []string) []any {
	args := make([]any, len(vals))
	for i, v := range vals {
		args[i] = v
	}
	return args
}
