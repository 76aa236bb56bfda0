package report

import (
	"io"
	"strconv"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
	"github.com/nao1215/threadtracker/internal/model"
)

// MarkdownWriter outputs runs in Markdown format for sharing and notes.
type MarkdownWriter struct {
	baseWriter

	// timeLayout formats run and post timestamps.
	timeLayout string
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
		timeLayout: "2006-01-02 15:04 MST",
	}
}

// Write outputs the run in Markdown format.
func (w *MarkdownWriter) Write(run *model.Run) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, run)
	w.writeSummary(md, run)
	w.writeContainers(md, run)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the report header with run information.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, run *model.Run) {
	md.H1("Thread Tracker Report")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Board", "`" + run.Board + "`"},
			{"User", "`" + run.UserID + "`"},
			{"Run Date", run.StartedAt.Format(w.timeLayout)},
			{"Pages Read", strconv.Itoa(len(run.Pages))},
			{"Outcome", string(run.Outcome)},
			{"Status", statusText(run)},
		},
	})
	md.PlainText("")
}

// writeSummary writes the status counts, a chart and an alert for the outcome.
func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, run *model.Run) {
	s := run.Summary()

	md.H2("Summary")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Status", "Count"},
		Rows: [][]string{
			{"Owed", strconv.Itoa(s.Owed)},
			{"Completed", strconv.Itoa(s.Completed)},
			{"Locked", strconv.Itoa(s.Locked)},
			{"Undated", strconv.Itoa(s.Undated)},
			{"**Total**", "**" + strconv.Itoa(s.Total()) + "**"},
		},
	})
	md.PlainText("")

	if s.Total() > 0 {
		w.writePieChart(md, s)
	}

	w.writeAlert(md, run, s)
}

// writePieChart writes a mermaid pie chart of thread statuses.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, s model.Summary) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Threads by Status"),
		piechart.WithShowData(true),
	)

	if s.Owed > 0 {
		chart.LabelAndIntValue("Owed", uint64(s.Owed)) //nolint:gosec // counts are never negative
	}
	if s.Completed > 0 {
		chart.LabelAndIntValue("Completed", uint64(s.Completed)) //nolint:gosec // counts are never negative
	}
	if s.Locked > 0 {
		chart.LabelAndIntValue("Locked", uint64(s.Locked)) //nolint:gosec // counts are never negative
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeAlert writes an alert describing how the search went.
func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, run *model.Run, s model.Summary) {
	switch {
	case run.Outcome == model.OutcomeSearchFailed:
		md.Caution("The search request failed. The board may be down or blocking requests.")
	case run.Outcome == model.OutcomeBoardMessage:
		md.Warningf("The board answered with a message instead of results: %s", run.BoardMessage)
	case run.PageFailure != "":
		md.Importantf("A results page could not be read, so the list is incomplete: %s", run.PageFailure)
	case run.Outcome == model.OutcomeNoResults:
		md.Note("The board found no posts by this user.")
	case s.Owed > 0:
		md.Importantf("%d thread(s) are waiting on a reply.", s.Owed)
	default:
		md.Tip("No replies owed.")
	}
	md.PlainText("")
}

// writeContainers writes one thread table per container.
func (w *MarkdownWriter) writeContainers(md *markdown.Markdown, run *model.Run) {
	md.H2("Containers")
	md.PlainText("")

	names, groups := recordsByContainer(run)
	if len(names) == 0 {
		md.PlainText("No containers.")
		md.PlainText("")
		return
	}

	for _, name := range names {
		md.H3("`" + name + "`")
		md.PlainText("")

		records := groups[name]
		if len(records) == 0 {
			md.PlainText("None")
			md.PlainText("")
			continue
		}

		rows := make([][]string, 0, len(records))
		for _, rec := range records {
			rows = append(rows, w.recordRow(rec))
		}
		md.Table(markdown.TableSet{
			Header: []string{"Thread", "Forum", "Last Post", "Date", "Status"},
			Rows:   rows,
		})
		md.PlainText("")
	}
}

func (w *MarkdownWriter) recordRow(rec model.ThreadRecord) []string {
	date := "-"
	if rec.HasDate() {
		date = rec.Date.Format(w.timeLayout)
	}
	if rec.Thread == nil {
		return []string{"-", "-", "-", date, recordStatus(rec)}
	}

	t := rec.Thread
	title := t.Title
	if t.Link != "" {
		title = markdown.Link(t.Title, t.Link)
	}
	return []string{
		title,
		t.ForumName,
		t.LastPosterName + " - " + t.PostDate,
		date,
		recordStatus(rec),
	}
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [threadtracker](https://github.com/nao1215/threadtracker)*")
}
