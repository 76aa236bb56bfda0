package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/nao1215/threadtracker/internal/model"
)

// SimpleWriter outputs a plain text summary of a run for the terminal.
type SimpleWriter struct {
	baseWriter

	// showEmpty controls whether containers with no records are listed.
	showEmpty bool

	// verbose adds forum names and post dates to each thread line.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithShowEmpty configures the writer to show empty containers.
func WithShowEmpty(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showEmpty = show
	}
}

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the run in human-readable format.
func (w *SimpleWriter) Write(run *model.Run) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, run)
	w.writeSummary(&sb, run)
	w.writeContainers(&sb, run)
	w.writeFooter(&sb)

	return io.WriteString(w.output, sb.String())
}

func (w *SimpleWriter) writeHeader(sb *strings.Builder, run *model.Run) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                        THREAD TRACKER REPORT\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "Board:      %s\n", run.Board)
	fmt.Fprintf(sb, "User:       %s\n", run.UserID)
	fmt.Fprintf(sb, "Run Date:   %s\n", run.StartedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(sb, "Pages Read: %d\n", len(run.Pages))
	fmt.Fprintf(sb, "Status:     %s\n", statusText(run))
	if run.BoardMessage != "" && run.Outcome == model.OutcomeBoardMessage {
		fmt.Fprintf(sb, "Message:    %s\n", run.BoardMessage)
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeSummary(sb *strings.Builder, run *model.Run) {
	s := run.Summary()

	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("SUMMARY\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "  OWED:      %d\n", s.Owed)
	fmt.Fprintf(sb, "  COMPLETED: %d\n", s.Completed)
	fmt.Fprintf(sb, "  LOCKED:    %d\n", s.Locked)
	sb.WriteString("\n")
	fmt.Fprintf(sb, "  TOTAL:     %d threads\n", s.Total())
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeContainers(sb *strings.Builder, run *model.Run) {
	names, groups := recordsByContainer(run)

	for _, name := range names {
		records := groups[name]
		if len(records) == 0 && !w.showEmpty {
			continue
		}

		sb.WriteString(strings.Repeat("-", 70))
		sb.WriteString("\n")
		fmt.Fprintf(sb, "%s (%d)\n", name, len(records))
		sb.WriteString(strings.Repeat("-", 70))
		sb.WriteString("\n\n")

		if len(records) == 0 {
			sb.WriteString("  None\n\n")
			continue
		}
		for _, rec := range records {
			w.writeRecord(sb, rec)
		}
		sb.WriteString("\n")
	}
}

func (w *SimpleWriter) writeRecord(sb *strings.Builder, rec model.ThreadRecord) {
	if rec.Thread == nil {
		fmt.Fprintf(sb, "  [%s]\n", recordStatus(rec))
		return
	}

	t := rec.Thread
	fmt.Fprintf(sb, "  [%s] %s\n", statusIndicator(rec), t.Title)
	if t.LastPosterName != "" {
		fmt.Fprintf(sb, "    Last Post: %s\n", t.LastPosterName)
	}
	if w.verbose {
		fmt.Fprintf(sb, "    Forum: %s\n", t.ForumName)
		fmt.Fprintf(sb, "    Date: %s\n", t.PostDate)
		if t.Link != "" {
			fmt.Fprintf(sb, "    Link: %s\n", t.Link)
		}
	}
}

func statusIndicator(rec model.ThreadRecord) string {
	switch recordStatus(rec) {
	case "owed":
		return "!"
	case "completed":
		return "+"
	case "locked":
		return "x"
	default:
		return "?"
	}
}

func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("Report generated by threadtracker\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
}
