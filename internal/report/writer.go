package report

import (
	"io"

	"github.com/nao1215/threadtracker/internal/model"
)

// Writer defines the interface for report output.
type Writer interface {
	// Write outputs the run to the configured destination.
	// Returns the number of bytes written and any error encountered.
	Write(run *model.Run) (int, error)
}

// MultiWriter writes to multiple Writers simultaneously.
// This is useful for outputting to both terminal and file.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the run to all configured Writers.
// Returns the total bytes written across all writers.
// Stops on first error encountered.
func (m *MultiWriter) Write(run *model.Run) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(run)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// recordsByContainer groups the run's records by destination, keeping
// record order inside each group and the board's container order.
func recordsByContainer(run *model.Run) ([]string, map[string][]model.ThreadRecord) {
	groups := make(map[string][]model.ThreadRecord)
	for _, rec := range run.Records {
		groups[rec.Container] = append(groups[rec.Container], rec)
	}

	names := make([]string, 0, len(groups))
	seen := make(map[string]bool)
	if run.Containers != nil {
		for _, c := range run.Containers.Containers() {
			names = append(names, c.Name)
			seen[c.Name] = true
		}
	}
	for _, rec := range run.Records {
		if !seen[rec.Container] {
			names = append(names, rec.Container)
			seen[rec.Container] = true
		}
	}
	return names, groups
}

// statusText describes how a run ended.
func statusText(run *model.Run) string {
	switch {
	case run.TimedOut:
		return "Timed Out (partial results)"
	case run.ErrorMessage != "":
		return "Error - " + run.ErrorMessage
	case run.Outcome == model.OutcomeSearchFailed:
		return "Search Failed"
	case run.PageFailure != "":
		return "Incomplete - " + run.PageFailure
	default:
		return "Complete"
	}
}

// recordStatus labels a record for tables and lists.
func recordStatus(rec model.ThreadRecord) string {
	switch {
	case rec.Thread == nil:
		return string(rec.Kind)
	case rec.Thread.Locked:
		return "locked"
	default:
		return rec.Thread.Status.String()
	}
}
