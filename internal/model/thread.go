package model

import "time"

// Status is the ownership turn of a thread from the tracked user's side.
type Status string

const (
	// StatusOwed means someone else posted last; the tracked user owes a reply.
	StatusOwed Status = "owed"

	// StatusCompleted means the tracked user posted last.
	StatusCompleted Status = "completed"
)

// String returns the status as it appears in rendered markup.
func (s Status) String() string {
	return string(s)
}

// Thread holds the fields read from one row of the search results table.
// It is what the renderer turns into a tracker item.
type Thread struct {
	// Title is the thread title text.
	Title string `json:"title"`

	// Link is the thread URL taken from the last-post cell.
	Link string `json:"link"`

	// ForumID is the showforum= identifier of the forum holding the thread.
	ForumID string `json:"forum_id"`

	// ForumName is the text of the forum link.
	ForumName string `json:"forum_name"`

	// Description is the thread description, possibly empty.
	Description string `json:"description,omitempty"`

	// Divider is the separator placed between forum name and description.
	// Empty when there is no description or it already starts with the divider.
	Divider string `json:"divider,omitempty"`

	// LastPosterID is the showuser= identifier of the last poster.
	LastPosterID string `json:"last_poster_id"`

	// LastPosterName is the display name of the last poster.
	LastPosterName string `json:"last_poster_name"`

	// PostDate is the raw last-post date text as shown by the board.
	PostDate string `json:"post_date"`

	// Status is owed or completed.
	Status Status `json:"status"`

	// Locked is true when the thread is closed or sits in an archive forum.
	Locked bool `json:"locked"`
}

// RecordKind distinguishes real threads from pipeline sentinels.
type RecordKind string

const (
	// KindThread is a record parsed from a search result row.
	KindThread RecordKind = "thread"

	// KindEmpty is the "None" sentinel emitted when the search found nothing.
	KindEmpty RecordKind = "empty"

	// KindSearchFailed is the sentinel emitted on a transport failure.
	KindSearchFailed RecordKind = "search_failed"

	// KindBoardMessage carries an unrecognized board message verbatim.
	KindBoardMessage RecordKind = "board_message"
)

// ThreadRecord is one entry of a run: a parsed thread or a sentinel.
// Its fragment and container are resolved when the record is created
// and never change afterwards.
type ThreadRecord struct {
	// Kind tells whether this is a thread or which sentinel it is.
	Kind RecordKind `json:"kind"`

	// Date is the normalized post date. The zero value means the board's
	// date text could not be parsed.
	Date time.Time `json:"date"`

	// Fragment is the rendered markup for this record.
	Fragment string `json:"fragment"`

	// Container is the name of the destination container.
	Container string `json:"container"`

	// Thread holds the parsed fields. Nil for sentinels.
	Thread *Thread `json:"thread,omitempty"`
}

// HasDate reports whether the record carries a normalized date.
func (r ThreadRecord) HasDate() bool {
	return !r.Date.IsZero()
}

// IsSentinel reports whether the record stands for a pipeline condition
// rather than a real thread.
func (r ThreadRecord) IsSentinel() bool {
	return r.Kind != KindThread
}

// NewerThan reports whether r sorts before other in a newest-first listing.
// Records without a date are treated as the oldest possible.
func (r ThreadRecord) NewerThan(other ThreadRecord) bool {
	switch {
	case !r.HasDate():
		return false
	case !other.HasDate():
		return true
	default:
		return r.Date.After(other.Date)
	}
}
