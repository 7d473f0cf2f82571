package types

// ContentType is the kind of a post as stored in posts.content_type
type ContentType string

const (
	ContentArticle ContentType = "post"
	ContentLink    ContentType = "link"
	ContentQuote   ContentType = "quote"
	ContentSpecial ContentType = "special" // about, contact
)

// ParseContentType maps a stored content_type value to a ContentType.
// Unknown values are read as articles.
func ParseContentType(s string) ContentType {
	switch ContentType(s) {
	case ContentLink, ContentQuote, ContentSpecial:
		return ContentType(s)
	default:
		return ContentArticle
	}
}

// Searchable reports whether the type can be named in a type: search filter
func (c ContentType) Searchable() bool {
	return c == ContentArticle || c == ContentLink || c == ContentQuote
}

// Post is a single piece of site content
type Post struct {
	ID          string      `json:"id"`
	ContentType ContentType `json:"content_type"`
	Title       string      `json:"title,omitempty"`
	Link        string      `json:"link,omitempty"`
	Via         string      `json:"via,omitempty"`
	QuoteAuthor string      `json:"quote_author,omitempty"`
	Date        string      `json:"date"`
	Content     string      `json:"content"`
	Tags        []string    `json:"tags,omitempty"`

	// CommitIDs is the stored reference list, most recent first
	CommitIDs []string `json:"-"`

	// Derived, never stored
	Commits     []Commit  `json:"commits,omitempty"`
	LastUpdated string    `json:"last_updated,omitempty"`
	Related     []Summary `json:"related,omitempty"`
}

// Summary returns the listing projection of p
func (p *Post) Summary() Summary {
	return Summary{
		ID:          p.ID,
		ContentType: p.ContentType,
		Title:       p.Title,
		Link:        p.Link,
		Via:         p.Via,
		QuoteAuthor: p.QuoteAuthor,
		Date:        p.Date,
	}
}

// Summary is the body-less view of a post used by listings and related content
type Summary struct {
	ID          string      `json:"id"`
	ContentType ContentType `json:"content_type"`
	Title       string      `json:"title,omitempty"`
	Link        string      `json:"link,omitempty"`
	Via         string      `json:"via,omitempty"`
	QuoteAuthor string      `json:"quote_author,omitempty"`
	Date        string      `json:"date"`
}

// Commit is a change-log entry referenced by posts
type Commit struct {
	ID      string `json:"id"`
	Date    string `json:"date"`
	Subject string `json:"subject"`
	Body    string `json:"body,omitempty"`
}

// Page is one page of a paginated listing
type Page[T any] struct {
	Items       []T `json:"items"`
	CurrentPage int `json:"current_page"`
	TotalPages  int `json:"total_pages"`
	Total       int `json:"total"`
}

// TotalPages returns ceil(total / pageSize)
func TotalPages(total, pageSize int) int {
	if pageSize <= 0 || total <= 0 {
		return 0
	}
	return (total + pageSize - 1) / pageSize
}
