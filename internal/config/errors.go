package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate() and TrackerOptions.Resolve()
// and can be checked with errors.Is().
var (
	// ErrNoBoard is returned when no board URL is configured.
	ErrNoBoard = errors.New("no board specified: provide --board or set board.url in the config file")

	// ErrInvalidBoardURL is returned when the board URL is not an absolute http(s) URL.
	ErrInvalidBoardURL = errors.New("invalid board URL: must be an absolute http or https URL")

	// ErrNoTarget is returned when no user id is given.
	ErrNoTarget = errors.New("no target specified: provide at least one user id")

	// ErrInvalidUserID is returned when a user id is not a positive integer.
	ErrInvalidUserID = errors.New("invalid user id: must be the numeric id from showuser=")

	// ErrInvalidTimeout is returned when the timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidBatchSize is returned when the batch size is not positive.
	ErrInvalidBatchSize = errors.New("invalid batch size: must be positive")

	// ErrConflictingReportFormats is returned when more than one of --json,
	// --markdown and --text is specified.
	ErrConflictingReportFormats = errors.New("conflicting report formats: use only one of --json, --markdown and --text")

	// ErrInvalidRequestInterval is returned when the request interval is negative.
	ErrInvalidRequestInterval = errors.New("invalid request interval: must be non-negative")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrInvalidTimezone is returned when the timezone is not a known IANA name.
	ErrInvalidTimezone = errors.New("invalid timezone: must be an IANA name such as America/New_York")

	// ErrInvalidPageLimit is returned when the page limit is negative.
	ErrInvalidPageLimit = errors.New("invalid page limit: must be non-negative")

	// ErrInvalidIndicatorIcons is returned when fewer than two icon names
	// survive the format check.
	ErrInvalidIndicatorIcons = errors.New("invalid indicator icons: need an owed and a completed icon made of letters, digits, spaces, '-' or '_'")

	// ErrInvalidRoutingPolicy is returned for an unknown routing policy name.
	ErrInvalidRoutingPolicy = errors.New("invalid routing policy: must be first-entry or full-scan")

	// ErrInvalidContainer is returned when a container entry has no name.
	ErrInvalidContainer = errors.New("invalid container: name must not be empty")
)
