package config

import (
	"fmt"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// DefaultTimeout bounds one whole tracking run, every page included.
	DefaultTimeout = 60 * time.Second

	// DefaultRequestInterval is the minimum spacing between two requests to
	// the same board. Jcink throttles rapid searches, so one request per
	// second keeps the crawl from tripping the flood control.
	DefaultRequestInterval = 1 * time.Second

	// DefaultBatchSize is the number of users tracked concurrently.
	DefaultBatchSize = 4

	// AppName is the application name used for XDG directory paths.
	AppName = "threadtracker"

	// DefaultUserAgent identifies threadtracker in HTTP requests.
	DefaultUserAgent = "threadtracker/1.0 (+https://github.com/nao1215/threadtracker)"

	// DefaultMaxBodySize limits the response body size read per request.
	DefaultMaxBodySize = 5 * 1024 * 1024 // 5MB
)

var userIDPattern = regexp.MustCompile(`^[1-9]\d*$`)

// Config holds all process-level configuration for threadtracker.
// It is populated from CLI flags and the configuration file and passed
// through the application rather than kept in global state.
type Config struct {
	// BoardURL is the base URL of the forum, e.g. "https://example.jcink.net".
	BoardURL string

	// Targets is the list of user ids to track.
	Targets []string

	// Timeout bounds each user's run.
	Timeout time.Duration

	// RequestInterval is the minimum delay between requests to the board.
	RequestInterval time.Duration

	// ProxyAddress is an optional SOCKS5 proxy in "host:port" form.
	ProxyAddress string

	// UserAgent is the User-Agent header sent with every request.
	UserAgent string

	// MaxBodySize is the maximum response body size in bytes.
	// Zero means DefaultMaxBodySize.
	MaxBodySize int64

	// Cookie is sent with every request when set. Guest access is the
	// normal case; this exists for boards that hide the search from guests.
	Cookie string

	// Headers are extra HTTP headers sent with every request.
	Headers map[string]string

	// Charset forces the response encoding, e.g. "windows-1252".
	// Empty means detect it from each response.
	Charset string

	// Timezone is the IANA name of the board's display time zone.
	// Empty means the local zone.
	Timezone string

	// BatchSize is the number of users tracked concurrently.
	BatchSize int

	// PageLimit overrides the tracker page limit when positive.
	PageLimit int

	// Routing overrides the tracker routing policy when set.
	Routing string

	// Verbose enables debug logging.
	Verbose bool

	// ConfigFilePath is the path to the configuration file.
	// If empty, .threadtracker is looked up in the current and home directories.
	ConfigFilePath string

	// File holds the loaded configuration file, if any.
	File *File

	// JSONReport selects JSON output.
	JSONReport bool

	// MarkdownReport selects Markdown output.
	MarkdownReport bool

	// TextReport selects the plain text terminal summary.
	TextReport bool

	// TemplateFile is a host HTML document the containers are filled into.
	// Empty means the built-in document.
	TemplateFile string

	// ReportFile is the output path. Empty means stdout.
	ReportFile string

	// DBDir is the directory holding the history database.
	DBDir string

	// SaveToDB records each run in the history database.
	SaveToDB bool
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		Timeout:         DefaultTimeout,
		RequestInterval: DefaultRequestInterval,
		UserAgent:       DefaultUserAgent,
		MaxBodySize:     DefaultMaxBodySize,
		BatchSize:       DefaultBatchSize,
		DBDir:           XDGDataDir(),
		SaveToDB:        true,
	}
}

// XDGDataDir returns the XDG data directory for threadtracker.
// On Linux: ~/.local/share/threadtracker
// On macOS: ~/Library/Application Support/threadtracker
// On Windows: %LOCALAPPDATA%\threadtracker
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for threadtracker.
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// ApplyFile fills board-level settings that were not set on the command
// line from the configuration file. Values already set win.
func (c *Config) ApplyFile(f *File) {
	if f == nil {
		return
	}
	c.File = f
	b := f.Board

	if c.BoardURL == "" {
		c.BoardURL = b.URL
	}
	if c.Timezone == "" {
		c.Timezone = b.Timezone
	}
	if c.ProxyAddress == "" {
		c.ProxyAddress = b.Proxy
	}
	if c.Charset == "" {
		c.Charset = b.Charset
	}
	if c.Cookie == "" {
		c.Cookie = b.Cookie
	}
	if (c.UserAgent == "" || c.UserAgent == DefaultUserAgent) && b.UserAgent != "" {
		c.UserAgent = b.UserAgent
	}
	if c.RequestInterval == DefaultRequestInterval && b.Interval > 0 {
		c.RequestInterval = b.Interval
	}
	if len(b.Headers) > 0 {
		merged := make(map[string]string, len(b.Headers)+len(c.Headers))
		for k, v := range b.Headers {
			merged[k] = v
		}
		for k, v := range c.Headers {
			merged[k] = v
		}
		c.Headers = merged
	}
	if len(c.Targets) == 0 && len(b.Users) > 0 {
		c.Targets = append([]string(nil), b.Users...)
	}
}

// TrackerOptions returns the unresolved tracker options for userID: the
// file defaults, then the user's overrides, then the command line overrides.
func (c *Config) TrackerOptions(userID string) TrackerOptions {
	var opts TrackerOptions
	if c.File != nil {
		opts = c.File.GetUserOptions(userID)
	}
	opts.UserID = userID
	if c.PageLimit > 0 {
		opts.PageLimit = c.PageLimit
	}
	if c.Routing != "" {
		opts.Routing = RoutingPolicy(c.Routing)
	}
	return opts
}

// Location returns the board's time zone.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTimezone, c.Timezone)
	}
	return loc, nil
}

// Validate checks if the configuration is valid and returns the first
// problem found.
func (c *Config) Validate() error {
	if c.BoardURL == "" {
		return ErrNoBoard
	}
	u, err := url.Parse(c.BoardURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrInvalidBoardURL
	}

	if len(c.Targets) == 0 {
		return ErrNoTarget
	}
	for _, id := range c.Targets {
		if !userIDPattern.MatchString(strings.TrimSpace(id)) {
			return fmt.Errorf("%w: %q", ErrInvalidUserID, id)
		}
	}

	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}
	if formats(c.JSONReport, c.MarkdownReport, c.TextReport) > 1 {
		return ErrConflictingReportFormats
	}
	if c.RequestInterval < 0 {
		return ErrInvalidRequestInterval
	}
	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}
	if c.PageLimit < 0 {
		return ErrInvalidPageLimit
	}
	if _, err := ParseRoutingPolicy(c.Routing); err != nil {
		return err
	}
	if _, err := c.Location(); err != nil {
		return err
	}

	return nil
}

// formats counts the selected report formats.
func formats(selected ...bool) int {
	n := 0
	for _, s := range selected {
		if s {
			n++
		}
	}
	return n
}
