// Package content maps rows of the content database to posts and resolves
// their cross-references.
//
// Every Repository method is a single storage.Runner operation: the row
// lookup, change-log resolution and related-post search of one call share a
// connection, so a call reads one database file even when a switch lands
// while it runs.
//
// Cross-references are resolved in batches: BulkResolve loads the change-log
// entries for any number of posts with a single query, and Related resolves
// nearest-neighbour ids to summaries with one more.
//
// Special pages share the posts table. Listing, feed and sitemap queries
// exclude them in SQL; they are only reachable through GetSpecial.
package content
