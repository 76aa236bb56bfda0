package report

import (
	"bytes"
	"errors"
	"fmt"
	"html"
	"io"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/nao1215/threadtracker/internal/model"
)

// ErrNoContainer is logged when the host document has no element for a
// container name.
var ErrNoContainer = errors.New("host document has no element for container")

// HTMLWriter inserts each container's fragments into a host document and
// writes the document out. Without a host template a minimal page is built
// with one element per container.
type HTMLWriter struct {
	baseWriter

	template string
	title    string
	logger   *slog.Logger
}

// HTMLWriterOption configures an HTMLWriter.
type HTMLWriterOption func(*HTMLWriter)

// WithHostTemplate sets the host document the fragments are inserted into.
func WithHostTemplate(doc string) HTMLWriterOption {
	return func(w *HTMLWriter) {
		w.template = doc
	}
}

// WithTitle sets the page title of the built-in host document.
func WithTitle(title string) HTMLWriterOption {
	return func(w *HTMLWriter) {
		w.title = title
	}
}

// WithHTMLLogger sets a custom logger.
func WithHTMLLogger(logger *slog.Logger) HTMLWriterOption {
	return func(w *HTMLWriter) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// NewHTMLWriter creates an HTMLWriter that outputs to the given writer.
func NewHTMLWriter(output io.Writer, opts ...HTMLWriterOption) *HTMLWriter {
	w := &HTMLWriter{
		baseWriter: newBaseWriter(output),
		title:      "Thread Tracker",
		logger:     slog.Default(),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write fills the host document with the run's containers and writes it.
func (w *HTMLWriter) Write(run *model.Run) (int, error) {
	doc, err := w.Render(run)
	if err != nil {
		return 0, err
	}
	return io.WriteString(w.output, doc)
}

// Render returns the filled host document.
func (w *HTMLWriter) Render(run *model.Run) (string, error) {
	var containers []model.Container
	if run.Containers != nil {
		containers = run.Containers.Containers()
	}

	host := w.template
	if host == "" {
		host = defaultHost(w.title, containers)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(host))
	if err != nil {
		return "", fmt.Errorf("failed to parse host document: %w", err)
	}

	for _, c := range containers {
		target := doc.Find(c.Name)
		if target.Length() == 0 {
			w.logger.Warn("container not inserted", "container", c.Name, "error", ErrNoContainer)
			continue
		}
		target.AppendHtml(strings.Join(c.Fragments, ""))
	}

	out, err := doc.Html()
	if err != nil {
		return "", fmt.Errorf("failed to render document: %w", err)
	}
	return out, nil
}

// defaultHost builds a page with an element for every container named by
// an id or class selector.
func defaultHost(title string, containers []model.Container) string {
	var b bytes.Buffer
	b.WriteString(`<!DOCTYPE html><html><head><meta charset="utf-8"><title>`)
	b.WriteString(html.EscapeString(title))
	b.WriteString(`</title></head><body>`)
	for _, c := range containers {
		switch {
		case strings.HasPrefix(c.Name, "#"):
			fmt.Fprintf(&b, `<div id="%s"></div>`, html.EscapeString(c.Name[1:]))
		case strings.HasPrefix(c.Name, "."):
			fmt.Fprintf(&b, `<div class="%s"></div>`, html.EscapeString(c.Name[1:]))
		}
	}
	b.WriteString(`</body></html>`)
	return b.String()
}
