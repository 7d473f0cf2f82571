package web

import (
	"encoding/xml"
	"net/http"
	"time"

	"github.com/gorilla/feeds"

	"github.com/dshills/postvault/pkg/types"
)

func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	posts, err := s.repo.FeedEntries(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	rss, err := s.buildFeed(posts).ToRss()
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/rss+xml; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(rss))
}

func (s *Server) buildFeed(posts []types.Post) *feeds.Feed {
	feed := &feeds.Feed{
		Title:       s.site.Title,
		Link:        &feeds.Link{Href: s.site.URL + "/"},
		Description: s.site.Description,
	}

	for _, p := range posts {
		created := parseDate(p.Date)
		if created.After(feed.Created) {
			feed.Created = created
		}

		item := &feeds.Item{
			Id:      s.site.URL + "/post/" + p.ID,
			Title:   feedTitle(p),
			Link:    &feeds.Link{Href: s.site.URL + "/post/" + p.ID},
			Content: p.Content,
			Created: created,
		}
		if p.LastUpdated != "" {
			item.Updated = parseDate(p.LastUpdated)
		}
		if p.ContentType == types.ContentLink && p.Link != "" {
			item.Link = &feeds.Link{Href: p.Link}
		}
		feed.Items = append(feed.Items, item)
	}

	return feed
}

func feedTitle(p types.Post) string {
	switch {
	case p.Title != "":
		return p.Title
	case p.ContentType == types.ContentQuote && p.QuoteAuthor != "":
		return "Quote from " + p.QuoteAuthor
	default:
		return p.ID
	}
}

// parseDate accepts RFC 3339 timestamps and bare dates. Unparseable values
// give the zero time.
func parseDate(s string) time.Time {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

type urlSet struct {
	XMLName xml.Name     `xml:"urlset"`
	Xmlns   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

type sitemapURL struct {
	Loc     string `xml:"loc"`
	LastMod string `xml:"lastmod,omitempty"`
}

func (s *Server) handleSitemap(w http.ResponseWriter, r *http.Request) {
	entries, err := s.repo.SitemapEntries(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	set := urlSet{Xmlns: "http://www.sitemaps.org/schemas/sitemap/0.9"}
	for _, path := range []string{"/", "/posts", "/about", "/contact"} {
		set.URLs = append(set.URLs, sitemapURL{Loc: s.site.URL + path})
	}
	for _, e := range entries {
		u := sitemapURL{Loc: s.site.URL + "/post/" + e.ID}
		if t := parseDate(e.Date); !t.IsZero() {
			u.LastMod = t.Format("2006-01-02")
		}
		set.URLs = append(set.URLs, u)
	}

	out, err := xml.MarshalIndent(set, "", "  ")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(xml.Header))
	_, _ = w.Write(out)
}
