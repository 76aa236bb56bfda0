// Package report writes tracking runs out in several formats.
//
//   - HTMLWriter: the host document with every container filled in
//   - MarkdownWriter: counts and per-container thread tables
//   - JSONWriter: the run itself, for tool integration
//   - SimpleWriter: a plain text summary for the terminal
//
// Writers implement the Writer interface, allowing them to be used
// interchangeably and composed for multi-format output.
package report
