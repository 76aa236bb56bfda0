// Package model defines the core data structures used throughout threadtracker.
//
// This package contains the following main types:
//   - Thread: The fields parsed from one row of the search results table
//   - ThreadRecord: One parsed search hit or pipeline sentinel, ready to place
//   - SearchPage: Bookkeeping for one fetched page of search results
//   - Board: The ordered set of named containers that receive fragments
//   - Run: The result of tracking one user on one board
//
// Design decision: We separate models into their own package to avoid circular
// dependencies. The crawler, pipeline, report and database packages all need
// these types, so centralizing them prevents import cycles.
//
// The models are designed to be serializable to JSON for report output and
// database storage.
package model
