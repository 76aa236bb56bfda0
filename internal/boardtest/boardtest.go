// Package boardtest serves a minimal Jcink-style board for tests.
//
// It answers the "all posts by user" search with the same meta refresh a
// real board sends and serves topic results 25 to a page in the stock
// results table layout.
package boardtest

import (
	"fmt"
	"html"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
)

// PerPage is the number of topics on a results page.
const PerPage = 25

// Row is one topic in a user's search results.
type Row struct {
	TopicID     int
	Title       string
	Description string
	ForumID     string
	ForumName   string
	PosterID    string
	PosterName  string
	Date        string
	Closed      bool
}

// Board is an in-memory board. Its fields may be changed between requests
// but not while one is being served.
type Board struct {
	// Topics maps user ids to the rows their search returns.
	Topics map[string][]Row

	// Messages maps user ids to a board message shown instead of results.
	Messages map[string]string

	// FailSearch makes the initial search answer 500.
	FailSearch bool

	// FailStart makes the results page with this start index answer 500.
	// Negative disables it.
	FailStart int

	mu       sync.Mutex
	requests []string
}

// New creates an empty board.
func New() *Board {
	return &Board{
		Topics:    make(map[string][]Row),
		Messages:  make(map[string]string),
		FailStart: -1,
	}
}

// Requests returns the method and request URI of every request served.
func (b *Board) Requests() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.requests...)
}

// ResultsRequests returns how many results pages were requested.
func (b *Board) ResultsRequests() int {
	n := 0
	for _, r := range b.Requests() {
		if strings.Contains(r, "CODE=show") {
			n++
		}
	}
	return n
}

// Server starts an httptest server for the board. The caller closes it.
func (b *Board) Server() *httptest.Server {
	return httptest.NewServer(b)
}

// ServeHTTP implements http.Handler.
func (b *Board) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	b.requests = append(b.requests, r.Method+" "+r.URL.RequestURI())
	b.mu.Unlock()

	q := r.URL.Query()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	switch {
	case r.URL.Path != "/index.php" || q.Get("act") != "Search":
		http.NotFound(w, r)

	case q.Get("CODE") == "getalluser":
		if b.FailSearch {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		mid := q.Get("mid")
		if msg, ok := b.Messages[mid]; ok {
			fmt.Fprint(w, MessagePage(msg))
			return
		}
		if len(b.Topics[mid]) == 0 {
			fmt.Fprint(w, NoMatchesPage())
			return
		}
		target := fmt.Sprintf("http://%s/index.php?act=Search&CODE=show&searchid=u%s&search_in=posts&result_type=posts&highlite=", r.Host, mid)
		fmt.Fprint(w, RedirectPage(target))

	case q.Get("CODE") == "show":
		st, _ := strconv.Atoi(q.Get("st"))
		if st == b.FailStart {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		if q.Get("result_type") != "topics" {
			http.Error(w, "expected topic results", http.StatusBadRequest)
			return
		}
		rows := b.Topics[strings.TrimPrefix(q.Get("searchid"), "u")]
		if st > len(rows) {
			st = len(rows)
		}
		end := min(st+PerPage, len(rows))
		fmt.Fprint(w, ResultsPage(rows[st:end]))

	default:
		http.NotFound(w, r)
	}
}

// RedirectPage is the interstitial a board shows after a successful search.
func RedirectPage(target string) string {
	return `<html><head><title>Please wait</title>` +
		`<meta http-equiv="refresh" content="2; url=` + html.EscapeString(target) + `"></head>` +
		`<body><div id="redirectwrap"><h4>Thank you for your search</h4></div></body></html>`
}

// MessagePage is a board message page.
func MessagePage(msg string) string {
	return `<html><body><div id="board-message"><table class="tablefill"><tr><td>` +
		`<div class="postcolor">` + html.EscapeString(msg) + `</div>` +
		`</td></tr></table></div></body></html>`
}

// NoMatchesPage is the message a board shows when the user has no posts.
func NoMatchesPage() string {
	return MessagePage("Sorry, we did not find any matches to display. Please try again with different search terms.")
}

// ResultsPage renders rows as a topic results page with its header row.
func ResultsPage(rows []Row) string {
	var sb strings.Builder
	sb.WriteString(`<html><body><div id="search-topics"><table class="tablebasic" cellspacing="1">`)
	sb.WriteString(`<tr><th></th><th></th><th>Topic Title</th><th>Forum</th><th>Starter</th><th>Replies</th><th>Views</th><th>Last Action</th></tr>`)
	for _, row := range rows {
		sb.WriteString(RowHTML(row))
	}
	sb.WriteString(`</table></div></body></html>`)
	return sb.String()
}

// RowHTML renders one result row.
func RowHTML(row Row) string {
	icon := `<img src="style_images/folder_new.gif" alt="New posts" title="New posts">`
	if row.Closed {
		icon = `<img src="style_images/folder_locked.gif" alt="Closed" title="Closed Thread">`
	}
	topic := fmt.Sprintf("/index.php?showtopic=%d", row.TopicID)

	var desc string
	if row.Description != "" {
		desc = `<span class="desc">` + html.EscapeString(row.Description) + `</span>`
	}

	var poster string
	if row.PosterID != "" {
		poster = ` <b><a href="/index.php?showuser=` + row.PosterID + `">` + html.EscapeString(row.PosterName) + `</a></b>`
	}

	return `<tr>` +
		`<td class="row4" align="center">` + icon + `</td>` +
		`<td class="row2" align="center">&nbsp;</td>` +
		`<td class="row4"><table><tr><td></td><td><a href="` + topic + `">` + html.EscapeString(row.Title) + `</a> ` + desc + `</td></tr></table></td>` +
		`<td class="row2"><a href="/index.php?showforum=` + row.ForumID + `&amp;st=0">` + html.EscapeString(row.ForumName) + `</a></td>` +
		`<td class="row4">starter</td>` +
		`<td class="row2" align="center">1</td>` +
		`<td class="row2" align="center">10</td>` +
		`<td class="row2">` + html.EscapeString(row.Date) + `<br><a href="` + topic + `&amp;view=getlastpost">Last post by:</a>` + poster + `</td>` +
		`</tr>`
}
