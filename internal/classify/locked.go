package classify

import "slices"

// RowView is the part of a results row the locked predicates look at.
type RowView interface {
	// ForumID returns the showforum= id of the row's forum.
	ForumID() string

	// IconMatches reports whether any element inside the row's icon cell
	// matches the given CSS selector.
	IconMatches(selector string) bool
}

// LockedPredicate decides whether a row is a locked thread.
type LockedPredicate interface {
	Locked(row RowView) bool
}

// SelectorPredicate reports a row as locked when its icon cell matches
// Selector. An empty selector never matches.
type SelectorPredicate struct {
	Selector string
}

// Locked implements LockedPredicate.
func (p SelectorPredicate) Locked(row RowView) bool {
	if p.Selector == "" {
		return false
	}
	return row.IconMatches(p.Selector)
}

// ForumSetPredicate reports a row as locked when its forum is in the set.
type ForumSetPredicate struct {
	ForumIDs []string
}

// Locked implements LockedPredicate.
func (p ForumSetPredicate) Locked(row RowView) bool {
	return slices.Contains(p.ForumIDs, row.ForumID())
}

// AnyPredicate is the logical OR of its members.
type AnyPredicate []LockedPredicate

// Locked implements LockedPredicate.
func (p AnyPredicate) Locked(row RowView) bool {
	for _, pred := range p {
		if pred != nil && pred.Locked(row) {
			return true
		}
	}
	return false
}

// NewLockedPredicate builds the standard predicate: the icon cell matches
// selector, or the forum is one of archiveForumIDs.
func NewLockedPredicate(selector string, archiveForumIDs []string) LockedPredicate {
	return AnyPredicate{
		SelectorPredicate{Selector: selector},
		ForumSetPredicate{ForumIDs: slices.Clone(archiveForumIDs)},
	}
}
