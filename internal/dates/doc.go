// Package dates turns the post dates shown by a Jcink-style board into
// absolute timestamps.
//
// Boards print recent posts relative to the reader's clock ("Today at 9:41",
// "12 minutes ago") and older posts as a calendar date ("Mar 4 2024, 7:15 PM").
// A Normalizer recognizes these phrasings, resolves the relative ones against
// an injected clock and the board's time zone, and can render a timestamp back
// into the same phrasing.
//
// Strings matching none of the known forms are reported as unrecognized;
// callers keep the record and give it a zero date.
package dates
