// Package searcher implements post search over the FTS5 index with tag, date
// and type filters.
//
// A search string is parsed into a Query, compiled once into a Plan and then
// run by a Searcher:
//
//	s := searcher.New(exec, searcher.Options{Logger: logger})
//
//	result, err := s.SearchString(ctx, "tag:rust from:2024-01-01 borrow checker", 1, 10)
//	if err != nil {
//	    return err
//	}
//	for _, hit := range result.Items {
//	    fmt.Println(hit.ID, hit.Title)
//	}
//
// # Query Syntax
//
// Whitespace separated tokens are either filters or free text:
//   - tag:<value> keeps posts carrying the tag (repeatable, all must match)
//   - from:YYYY-MM-DD and to:YYYY-MM-DD bound the post date, both inclusive
//   - type:post, type:link, type:quote restrict the content type (repeatable)
//
// Free text is matched against titles and bodies. Each word is quoted before
// it reaches FTS5, so operators in user input are searched literally; a
// trailing * keeps prefix matching. Results with free text are ordered by
// relevance, otherwise newest first. Special pages never match.
//
// # Caching
//
// Pages are cached in an LRU keyed by the pool the query ran against, so a
// database switch naturally misses the cache. InvalidateCache drops everything.
package searcher
