package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/nao1215/threadtracker/internal/classify"
	"github.com/nao1215/threadtracker/internal/config"
	"github.com/nao1215/threadtracker/internal/dates"
	"github.com/nao1215/threadtracker/internal/model"
	"github.com/nao1215/threadtracker/internal/render"
)

const (
	refreshSelector      = `meta[http-equiv="refresh"]`
	boardMessageSelector = "#board-message .tablefill .postcolor"
	searchTopicsSelector = "#search-topics"

	// noMatchesPhrase is how Jcink says a user has no posts.
	noMatchesPhrase = "we did not find any matches to display"
)

var startIndexPattern = regexp.MustCompile(`&st=\d+`)

// ErrNoSearchTable is recorded as the page failure when a results page has
// no topic table, typically because the board showed a flood control
// notice instead. Pagination stops there and earlier records are kept.
var ErrNoSearchTable = errors.New("results page has no topic table")

// Fetcher is the network boundary the crawler reads the board through.
// *transport.Client implements it.
type Fetcher interface {
	Get(ctx context.Context, rawURL string) (string, error)
	Post(ctx context.Context, rawURL string, form url.Values) (string, error)
}

// CrawlResult is everything one crawl produced.
type CrawlResult struct {
	// Records holds threads and sentinels in the order they were read.
	Records []model.ThreadRecord

	// Pages lists the results pages that were fetched and parsed.
	Pages []model.SearchPage

	// Outcome is how the initial search resolved.
	Outcome model.Outcome

	// BoardMessage is the board's message when the search did not redirect.
	BoardMessage string

	// PageFailure describes a failed or unreadable results page, if any.
	PageFailure string
}

// SearchCrawler runs a user's "all posts" search and walks the topic results.
type SearchCrawler struct {
	fetcher  Fetcher
	base     *url.URL
	opts     config.TrackerOptions
	rows     *RowParser
	router   *classify.Router
	renderer *render.Renderer
	dates    *dates.Normalizer
	logger   *slog.Logger
}

// Option configures a SearchCrawler.
type Option func(*SearchCrawler)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *SearchCrawler) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithNormalizer sets the date normalizer, which also supplies "now" for
// sentinel records.
func WithNormalizer(n *dates.Normalizer) Option {
	return func(c *SearchCrawler) {
		if n != nil {
			c.dates = n
		}
	}
}

// NewSearchCrawler creates a crawler for one user on one board.
// The tracker options are resolved here; opts.UserID must be set.
func NewSearchCrawler(fetcher Fetcher, boardURL string, opts config.TrackerOptions, options ...Option) (*SearchCrawler, error) {
	base, err := url.Parse(boardURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("%w: %q", config.ErrInvalidBoardURL, boardURL)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}
	base.RawQuery = ""
	base.Fragment = ""

	if opts.UserID == "" {
		return nil, config.ErrNoTarget
	}
	resolved, err := opts.Resolve()
	if err != nil {
		return nil, err
	}

	c := &SearchCrawler{
		fetcher:  fetcher,
		base:     base,
		opts:     resolved,
		router:   classify.NewRouter(resolved),
		renderer: render.New(resolved),
		dates:    dates.New(),
		logger:   slog.Default(),
	}
	for _, o := range options {
		o(c)
	}
	c.logger = c.logger.With("user", resolved.UserID)
	c.rows = NewRowParser(resolved, c.dates, c.logger)

	return c, nil
}

// Options returns the resolved tracker options.
func (c *SearchCrawler) Options() config.TrackerOptions {
	return c.opts
}

// SearchURL returns the initial "all posts by user" search URL.
func (c *SearchCrawler) SearchURL() string {
	ref := &url.URL{
		Path: "index.php",
		RawQuery: url.Values{
			"act":  {"Search"},
			"CODE": {"getalluser"},
			"mid":  {c.opts.UserID},
			"type": {"posts"},
		}.Encode(),
	}
	return c.base.ResolveReference(ref).String()
}

// Crawl runs the search and, when the board redirects to results, reads
// pages until one is not full or the page limit is reached. Failures never
// abort the crawl; they become sentinel records.
func (c *SearchCrawler) Crawl(ctx context.Context) CrawlResult {
	result := CrawlResult{Records: make([]model.ThreadRecord, 0)}

	searchURL := c.SearchURL()
	c.logger.Debug("starting search", "url", searchURL)

	body, err := c.fetcher.Post(ctx, searchURL, url.Values{})
	if err != nil {
		c.logger.Warn("search request failed", "url", searchURL, "error", err)
		result.Outcome = model.OutcomeSearchFailed
		result.Records = append(result.Records, c.sentinel(model.KindSearchFailed, render.SearchFailed, false))
		return result
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		c.logger.Warn("search response is not parseable", "error", err)
		result.Outcome = model.OutcomeSearchFailed
		result.Records = append(result.Records, c.sentinel(model.KindSearchFailed, render.SearchFailed, false))
		return result
	}

	resultsURL, ok := c.redirectTarget(doc, searchURL)
	if !ok {
		msg := doc.Find(boardMessageSelector).Text()
		result.BoardMessage = strings.TrimSpace(msg)
		if strings.Contains(msg, noMatchesPhrase) {
			c.logger.Debug("no matches found")
			result.Outcome = model.OutcomeNoResults
			result.Records = append(result.Records,
				c.sentinel(model.KindEmpty, render.Placeholder, false),
				c.sentinel(model.KindEmpty, render.Placeholder, true),
			)
			return result
		}
		c.logger.Warn("board answered with a message", "message", result.BoardMessage)
		result.Outcome = model.OutcomeBoardMessage
		result.Records = append(result.Records, c.sentinel(model.KindBoardMessage, c.renderer.BoardMessage(msg), false))
		return result
	}

	result.Outcome = model.OutcomeResults
	c.paginate(ctx, resultsURL, &result)
	return result
}

// redirectTarget extracts the topic results URL from the meta refresh the
// board answers a successful search with.
func (c *SearchCrawler) redirectTarget(doc *goquery.Document, searchURL string) (string, bool) {
	meta := doc.Find(refreshSelector).First()
	if meta.Length() == 0 {
		return "", false
	}
	content, _ := meta.Attr("content")
	target := strings.TrimSpace(content[strings.Index(content, "=")+1:])
	target = strings.Replace(target, "result_type=posts", "result_type=topics", 1) + "&st=0"

	from, err := url.Parse(searchURL)
	if err != nil {
		return target, true
	}
	return resolve(from, target), true
}

// paginate walks the results pages. The loop stops after a page that is
// not full or once the page counter reaches the limit.
func (c *SearchCrawler) paginate(ctx context.Context, resultsURL string, result *CrawlResult) {
	link := resultsURL
	for page := 0; ; page++ {
		link = withStartIndex(link, model.StartIndex(page))
		c.logger.Debug("fetching results page", "page", page, "url", link)

		body, err := c.fetcher.Get(ctx, link)
		if err != nil {
			c.logger.Warn("results page request failed", "page", page, "url", link, "error", err)
			result.PageFailure = err.Error()
			result.Records = append(result.Records, c.sentinel(model.KindSearchFailed, render.SearchFailed, false))
			return
		}

		doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
		if err != nil {
			c.logger.Warn("results page is not parseable", "page", page, "error", err)
			result.PageFailure = err.Error()
			result.Records = append(result.Records, c.sentinel(model.KindSearchFailed, render.SearchFailed, false))
			return
		}
		if doc.Find(searchTopicsSelector).Length() == 0 {
			c.logger.Warn("stopping pagination", "page", page, "url", link, "error", ErrNoSearchTable)
			result.PageFailure = ErrNoSearchTable.Error()
			return
		}

		pageURL, _ := url.Parse(link)
		records, rowCount := c.rows.Parse(doc, pageURL)
		result.Records = append(result.Records, records...)
		result.Pages = append(result.Pages, model.SearchPage{
			URL:      link,
			Index:    page,
			RowCount: rowCount,
			Records:  len(records),
		})

		if rowCount != model.FullPageRows || page >= c.opts.PageLimit {
			return
		}
	}
}

// sentinel creates a record standing for a pipeline condition. It is
// dated now and routed like a thread from forum "0".
func (c *SearchCrawler) sentinel(kind model.RecordKind, fragment string, archived bool) model.ThreadRecord {
	return model.ThreadRecord{
		Kind:      kind,
		Date:      c.dates.Now(),
		Fragment:  fragment,
		Container: c.router.Route(archived, classify.SentinelForumID),
	}
}

// withStartIndex replaces the first start-index parameter of link.
func withStartIndex(link string, start int) string {
	loc := startIndexPattern.FindStringIndex(link)
	if loc == nil {
		return link
	}
	return link[:loc[0]] + fmt.Sprintf("&st=%d", start) + link[loc[1]:]
}
