package model

import "time"

// Outcome describes how the initial search request resolved.
type Outcome string

const (
	// OutcomeResults means the board redirected to a results page and
	// pagination ran.
	OutcomeResults Outcome = "results"

	// OutcomeNoResults means the board said it found no matches.
	OutcomeNoResults Outcome = "no_results"

	// OutcomeBoardMessage means the board answered with some other message.
	OutcomeBoardMessage Outcome = "board_message"

	// OutcomeSearchFailed means the initial request failed in transport.
	OutcomeSearchFailed Outcome = "search_failed"
)

// Run is the result of tracking one user on one board.
// It is created before the pipeline starts and filled in by its steps.
type Run struct {
	// Board is the base URL of the forum.
	Board string `json:"board"`

	// UserID is the tracked user's showuser= identifier.
	UserID string `json:"user_id"`

	// StartedAt is when the run began.
	StartedAt time.Time `json:"started_at"`

	// FinishedAt is when the last step completed.
	FinishedAt time.Time `json:"finished_at,omitempty"`

	// Outcome is how the initial search resolved.
	Outcome Outcome `json:"outcome,omitempty"`

	// BoardMessage is the board's message text when there was no redirect.
	BoardMessage string `json:"board_message,omitempty"`

	// Pages lists every results page that was fetched and parsed.
	Pages []SearchPage `json:"pages,omitempty"`

	// PageFailure is set when a results page after the first search failed.
	PageFailure string `json:"page_failure,omitempty"`

	// Records holds every record, sentinels included. After the sort step
	// it is ordered newest first.
	Records []ThreadRecord `json:"records"`

	// Containers is the destination document.
	Containers *Board `json:"containers"`

	// Error is the last step error, if any.
	Error error `json:"-"`

	// ErrorMessage is the string form of Error for serialization.
	ErrorMessage string `json:"error,omitempty"`

	// TimedOut is true when the run was cancelled before finishing.
	TimedOut bool `json:"timed_out,omitempty"`

	// PerformedSteps lists the pipeline steps that ran, in order.
	PerformedSteps []string `json:"performed_steps,omitempty"`
}

// NewRun creates an empty run for the given board and user.
func NewRun(board, userID string) *Run {
	return &Run{
		Board:      board,
		UserID:     userID,
		StartedAt:  time.Now(),
		Records:    make([]ThreadRecord, 0),
		Containers: NewBoard(),
	}
}

// Threads returns the parsed threads of the run in record order.
// Sentinels are skipped.
func (r *Run) Threads() []Thread {
	threads := make([]Thread, 0, len(r.Records))
	for _, rec := range r.Records {
		if rec.Thread != nil {
			threads = append(threads, *rec.Thread)
		}
	}
	return threads
}

// Summary counts the records of a run by status.
type Summary struct {
	Owed      int `json:"owed"`
	Completed int `json:"completed"`
	Locked    int `json:"locked"`
	Sentinels int `json:"sentinels"`
	Undated   int `json:"undated"`
}

// Total returns the number of real threads.
func (s Summary) Total() int {
	return s.Owed + s.Completed + s.Locked
}

// Summary tallies the run's records.
// Locked threads are counted as locked only, not as owed or completed.
func (r *Run) Summary() Summary {
	var s Summary
	for _, rec := range r.Records {
		if rec.IsSentinel() || rec.Thread == nil {
			s.Sentinels++
			continue
		}
		if !rec.HasDate() {
			s.Undated++
		}
		switch {
		case rec.Thread.Locked:
			s.Locked++
		case rec.Thread.Status == StatusCompleted:
			s.Completed++
		default:
			s.Owed++
		}
	}
	return s
}
