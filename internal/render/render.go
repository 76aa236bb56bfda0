package render

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/nao1215/threadtracker/internal/config"
	"github.com/nao1215/threadtracker/internal/model"
)

const (
	// Placeholder fills a container that received no threads.
	Placeholder = `<div class="tracker-item">None</div>`

	// SearchFailed replaces the tracker when the board could not be reached.
	SearchFailed = `<div class="tracker-item">Search Failed</div>`
)

const threadTemplate = `<div class="tracker-item"><b>` +
	`{{if not .Locked}}<span class="status {{.Status}}" aria-described-by="{{.Status}}"><i class="{{.Icon}}"></i></span>` +
	`{{else if .Icon}}<span class="status locked" aria-described-by="Closed Thread"><i class="{{.Icon}}"></i></span>{{end}}` +
	` <a href="{{.Link}}">{{.Title}}</a></b>` +
	`<div class="tracker-details"><span class="tracker-forum">{{.ForumName}}</span> ` +
	`<span class="tracker-desc">{{.Divider}} {{.Description}}</span><br>` +
	`{{if not .Locked}}<span class="tracker-lastpost"><b>Last Post:</b> {{.LastPosterName}} - {{.PostDate}}</span>{{end}}` +
	`</div><hr></div>`

var threadTmpl = template.Must(template.New("thread").Parse(threadTemplate))

// Renderer turns parsed threads into tracker items.
// It holds only the icon classes and is safe for concurrent use.
type Renderer struct {
	owedIcon      string
	completedIcon string
	lockedIcon    string
}

// New creates a Renderer with the icons of resolved tracker options.
func New(opts config.TrackerOptions) *Renderer {
	return &Renderer{
		owedIcon:      opts.OwedIcon(),
		completedIcon: opts.CompletedIcon(),
		lockedIcon:    opts.LockedIcon(),
	}
}

type threadView struct {
	model.Thread
	Icon string
}

// Thread renders one tracker item. Text fields are HTML-escaped and the
// link is sanitized. Locked threads show the locked icon only when one is
// configured and never show the last-post line.
func (r *Renderer) Thread(t model.Thread) (string, error) {
	view := threadView{Thread: t}
	switch {
	case t.Locked:
		view.Icon = r.lockedIcon
	case t.Status == model.StatusCompleted:
		view.Icon = r.completedIcon
	default:
		view.Icon = r.owedIcon
	}

	var buf bytes.Buffer
	if err := threadTmpl.Execute(&buf, view); err != nil {
		return "", fmt.Errorf("failed to render thread %q: %w", t.Link, err)
	}
	return buf.String(), nil
}

// BoardMessage wraps a message the board showed instead of results.
func (r *Renderer) BoardMessage(msg string) string {
	return `<div class="tracker-item">` + template.HTMLEscapeString(msg) + `</div>`
}
