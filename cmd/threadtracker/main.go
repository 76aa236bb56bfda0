// Package main provides the entry point for the threadtracker CLI.
//
// threadtracker builds a role-play thread tracker for a Jcink forum user.
// It searches the board for every topic the user posted in, decides
// whose turn each thread is and renders the result into an HTML
// document, Markdown or JSON.
//
// Usage:
//
//	threadtracker track --board https://example.jcink.net 42
//	threadtracker history --board https://example.jcink.net 42
//
// See --help for all available options.
package main

// Board time zones are resolved even where the host has no zoneinfo.
import _ "time/tzdata"

func main() {
	Execute()
}
