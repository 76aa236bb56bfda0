// Package database provides SQLite-based storage of tracking history.
//
// HistoryDB keeps every run per board and user: the counts for quick
// listing, the fetched results pages, and the full run as JSON so two runs
// can be compared later. It uses modernc.org/sqlite, a CGO-free driver,
// with WAL journaling.
package database
