package model

import (
	"net/url"
	"strings"
)

// Comparison lists how a user's threads changed between two runs.
type Comparison struct {
	// New are threads in the current run that the previous run did not have.
	New []Thread `json:"new"`

	// Finished are threads of the previous run that no longer show up,
	// for example because they were ignored, trashed or fell off the
	// last searched page.
	Finished []Thread `json:"finished"`

	// NowOwed are threads the user had replied to that someone else
	// has posted in since.
	NowOwed []Thread `json:"now_owed"`

	// NewlyLocked are threads that were open and are now locked.
	NewlyLocked []Thread `json:"newly_locked"`
}

// Empty reports whether nothing changed.
func (c Comparison) Empty() bool {
	return len(c.New) == 0 && len(c.Finished) == 0 && len(c.NowOwed) == 0 && len(c.NewlyLocked) == 0
}

// Compare reports the changes from previous to current. Threads are matched
// by topic. A nil previous run makes every current thread new.
func Compare(previous, current *Run) Comparison {
	c := Comparison{
		New:         make([]Thread, 0),
		Finished:    make([]Thread, 0),
		NowOwed:     make([]Thread, 0),
		NewlyLocked: make([]Thread, 0),
	}

	before := make(map[string]Thread)
	if previous != nil {
		for _, t := range previous.Threads() {
			before[t.Key()] = t
		}
	}

	seen := make(map[string]bool)
	if current != nil {
		for _, t := range current.Threads() {
			key := t.Key()
			seen[key] = true

			old, ok := before[key]
			switch {
			case !ok:
				c.New = append(c.New, t)
			case !old.Locked && t.Locked:
				c.NewlyLocked = append(c.NewlyLocked, t)
			case !t.Locked && old.Status == StatusCompleted && t.Status == StatusOwed:
				c.NowOwed = append(c.NowOwed, t)
			}
		}
	}

	if previous != nil {
		for _, t := range previous.Threads() {
			if !seen[t.Key()] {
				c.Finished = append(c.Finished, t)
			}
		}
	}

	return c
}

// Key identifies the thread across runs: its showtopic id when the link
// has one, otherwise the link or title.
func (t Thread) Key() string {
	if u, err := url.Parse(t.Link); err == nil {
		if id := u.Query().Get("showtopic"); id != "" {
			return "topic:" + id
		}
	}
	if t.Link != "" {
		return "link:" + t.Link
	}
	return "title:" + strings.TrimSpace(t.Title)
}
