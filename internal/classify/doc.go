// Package classify decides where a parsed thread belongs.
//
// Three questions are answered here: whether the tracked user owes a reply
// (Ownership), whether the thread is locked (LockedPredicate), and which
// display container it goes to (Router). None of them touch markup
// directly; predicates see a row through the RowView interface so they
// can be tested without a results page.
package classify
