package searcher

import (
	"strings"
	"time"

	"github.com/dshills/postvault/pkg/types"
)

// DateLayout is the format accepted by from: and to: filters
const DateLayout = "2006-01-02"

// Query is a parsed search string
type Query struct {
	// Text is the free text left after filters were removed, single-spaced
	Text  string
	Tags  []string
	From  string
	To    string
	Types []types.ContentType
}

// Parse splits raw on whitespace and extracts filter tokens:
//
//	tag:<value>                     repeatable
//	from:YYYY-MM-DD, to:YYYY-MM-DD  last one wins
//	type:post|link|quote            repeatable
//
// A token that looks like a filter but has an empty or invalid value is kept
// as free text.
func Parse(raw string) Query {
	var (
		q    Query
		text []string
	)

	for _, tok := range strings.Fields(raw) {
		key, value, ok := strings.Cut(tok, ":")
		if !ok || value == "" {
			text = append(text, tok)
			continue
		}

		switch key {
		case "tag":
			q.Tags = append(q.Tags, value)
		case "from":
			if !validDate(value) {
				text = append(text, tok)
				continue
			}
			q.From = value
		case "to":
			if !validDate(value) {
				text = append(text, tok)
				continue
			}
			q.To = value
		case "type":
			ct := types.ContentType(value)
			if !ct.Searchable() {
				text = append(text, tok)
				continue
			}
			q.Types = append(q.Types, ct)
		default:
			text = append(text, tok)
		}
	}

	q.Text = strings.Join(text, " ")
	return q
}

// IsEmpty reports whether q has neither text nor filters
func (q Query) IsEmpty() bool {
	return q.Text == "" && len(q.Tags) == 0 && q.From == "" && q.To == "" && len(q.Types) == 0
}

func validDate(s string) bool {
	_, err := time.Parse(DateLayout, s)
	return err == nil
}
