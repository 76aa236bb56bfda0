// Package crawler reads a user's threads from a Jcink-style board search.
//
// # Flow
//
// SearchCrawler posts the board's "all posts by user" search. A successful
// search answers with a meta refresh to a results page; the crawler turns
// that into a topic listing and walks it 25 topics at a time. Each page is
// handed to RowParser, which reads every result row into a
// model.ThreadRecord that is already dated, rendered and routed.
//
// Pagination is strictly sequential: the next page is requested only after
// the current one has been parsed and found full, and never past the
// configured page limit.
//
// # Failures
//
// Nothing the board does aborts a crawl. A failed search, a "no matches"
// message, any other board message, or a failed results page each become
// sentinel records alongside whatever was read before.
//
// # Usage
//
//	c, err := crawler.NewSearchCrawler(client, "https://example.jcink.net", opts)
//	if err != nil {
//		return err
//	}
//	result := c.Crawl(ctx)
package crawler
