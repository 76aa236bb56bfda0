package crawler

import (
	"html"
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

// Selectors and cell positions of the topic results table.
const (
	resultRowsSelector = "#search-topics .tablebasic > tbody > tr"
	titleLinkSelector  = "td:nth-child(2) > a"
	descSelector       = ".desc"
	posterLinkSelector = "a[href*=showuser]"

	iconCell     = 0
	titleCell    = 2
	forumCell    = 3
	lastPostCell = 7
	minCells     = lastPostCell + 1
)

var (
	showForumPattern = regexp.MustCompile(`showforum=([^&]+)&?`)
	showUserPattern  = regexp.MustCompile(`showuser=([^&]+)&?`)
)

// RowParser turns the rows of one results page into thread records.
// Every record is dated, rendered and routed as soon as it is read.
type RowParser struct {
	opts     config.TrackerOptions
	locked   classify.LockedPredicate
	router   *classify.Router
	renderer *render.Renderer
	dates    *dates.Normalizer
	logger   *slog.Logger
}

// NewRowParser creates a RowParser for resolved tracker options.
func NewRowParser(opts config.TrackerOptions, normalizer *dates.Normalizer, logger *slog.Logger) *RowParser {
	if normalizer == nil {
		normalizer = dates.New()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RowParser{
		opts:     opts,
		locked:   classify.NewLockedPredicate(opts.LockedSelector, opts.ArchiveForumIDs),
		router:   classify.NewRouter(opts),
		renderer: render.New(opts),
		dates:    normalizer,
		logger:   logger,
	}
}

// Parse reads every result row of doc. It returns the records produced
// and the number of table rows seen, header included; the row count is
// what decides whether another page is fetched.
//
// Links are resolved against pageURL when it is non-nil.
func (p *RowParser) Parse(doc *goquery.Document, pageURL *url.URL) ([]model.ThreadRecord, int) {
	rows := doc.Find(resultRowsSelector)
	records := make([]model.ThreadRecord, 0, rows.Length())

	rows.Each(func(i int, row *goquery.Selection) {
		if i == 0 {
			return
		}
		rec, ok := p.parseRow(row, pageURL)
		if ok {
			records = append(records, rec)
		}
	})

	return records, rows.Length()
}

// rowView adapts a table row to classify.RowView.
type rowView struct {
	icon    *goquery.Selection
	forumID string
}

func (v rowView) ForumID() string { return v.forumID }

func (v rowView) IconMatches(selector string) bool {
	return v.icon.Find(selector).Length() > 0
}

func (p *RowParser) parseRow(row *goquery.Selection, pageURL *url.URL) (model.ThreadRecord, bool) {
	cells := row.ChildrenFiltered("td")
	if cells.Length() < minCells {
		p.logger.Debug("skipping short row", "cells", cells.Length())
		return model.ThreadRecord{}, false
	}

	forumLink := cells.Eq(forumCell).Find("a").First()
	forumHref, _ := forumLink.Attr("href")
	m := showForumPattern.FindStringSubmatch(forumHref)
	if m == nil {
		p.logger.Debug("skipping row without forum link", "href", forumHref)
		return model.ThreadRecord{}, false
	}
	forumID := m[1]

	if p.opts.Ignores(forumID) {
		return model.ThreadRecord{}, false
	}

	lastPost := cells.Eq(lastPostCell)
	threadHref, _ := lastPost.ChildrenFiltered("a").First().Attr("href")

	locked := p.locked.Locked(rowView{icon: cells.Eq(iconCell), forumID: forumID})

	titleCellSel := cells.Eq(titleCell)
	title := strings.TrimSpace(titleCellSel.Find(titleLinkSelector).First().Text())
	desc := titleCellSel.Find(descSelector).Text()

	posterLink := lastPost.Find(posterLinkSelector).First()
	posterHref, _ := posterLink.Attr("href")
	var posterID string
	if pm := showUserPattern.FindStringSubmatch(posterHref); pm != nil {
		posterID = pm[1]
	}

	var divider string
	if desc != "" && !strings.HasPrefix(desc, p.opts.Divider) {
		divider = p.opts.Divider
	}

	thread := &model.Thread{
		Title:          title,
		Link:           resolve(pageURL, threadHref),
		ForumID:        forumID,
		ForumName:      strings.TrimSpace(forumLink.Text()),
		Description:    desc,
		Divider:        divider,
		LastPosterID:   posterID,
		LastPosterName: strings.TrimSpace(posterLink.Text()),
		PostDate:       rawPostDate(lastPost),
		Status:         classify.Ownership(posterID, p.opts.UserID),
		Locked:         locked,
	}

	date, ok := p.dates.Parse(thread.PostDate)
	if !ok {
		p.logger.Debug("unrecognized post date", "date", thread.PostDate, "thread", thread.Link)
	}

	fragment, err := p.renderer.Thread(*thread)
	if err != nil {
		p.logger.Warn("skipping row that could not be rendered", "thread", thread.Link, "error", err)
		return model.ThreadRecord{}, false
	}

	return model.ThreadRecord{
		Kind:      model.KindThread,
		Date:      date,
		Fragment:  fragment,
		Container: p.router.Route(locked, forumID),
		Thread:    thread,
	}, true
}

// rawPostDate returns the last-post cell's content before its first line
// break, as text. A cell without a line break has no date.
func rawPostDate(cell *goquery.Selection) string {
	inner, err := cell.Html()
	if err != nil {
		return ""
	}
	idx := strings.Index(strings.ToLower(inner), "<br")
	if idx < 0 {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(inner[:idx]))
}

func resolve(base *url.URL, href string) string {
	if base == nil || href == "" {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}
