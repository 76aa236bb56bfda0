package config

import (
	"slices"
	"time"
)

// BoardConfig describes the forum being tracked.
type BoardConfig struct {
	// URL is the board's base URL.
	URL string `yaml:"url,omitempty"`

	// Timezone is the IANA name of the zone the board displays dates in.
	Timezone string `yaml:"timezone,omitempty"`

	// Users are the user ids tracked when none are given on the command line.
	Users []string `yaml:"users,omitempty"`

	// Cookie is an HTTP cookie to send with every request.
	// Format: "name=value" or "name1=value1; name2=value2"
	Cookie string `yaml:"cookie,omitempty"`

	// Headers are custom HTTP headers to include in every request.
	Headers map[string]string `yaml:"headers,omitempty"`

	// UserAgent overrides the default User-Agent.
	UserAgent string `yaml:"userAgent,omitempty"`

	// Charset overrides response charset detection.
	Charset string `yaml:"charset,omitempty"`

	// Proxy is an optional SOCKS5 proxy address.
	Proxy string `yaml:"proxy,omitempty"`

	// Interval is the minimum delay between requests, e.g. "2s".
	Interval time.Duration `yaml:"interval,omitempty"`
}

// File represents the structure of the .threadtracker configuration file.
type File struct {
	// Board holds the forum connection settings.
	Board BoardConfig `yaml:"board,omitempty"`

	// Defaults are the tracker options applied to every user.
	Defaults TrackerOptions `yaml:"defaults,omitempty"`

	// Users maps user ids to tracker option overrides.
	Users map[string]TrackerOptions `yaml:"users,omitempty"`
}

// GetUserOptions returns the tracker options for a user id.
// It merges the user-specific overrides onto the defaults. Scalars override
// when non-zero; lists override when present, even if empty.
func (cf *File) GetUserOptions(userID string) TrackerOptions {
	result := cf.Defaults
	result.IndicatorIcons = slices.Clone(result.IndicatorIcons)
	result.ArchiveForumIDs = slices.Clone(result.ArchiveForumIDs)
	result.IgnoreForumIDs = slices.Clone(result.IgnoreForumIDs)
	result.ActiveThreadContainers = slices.Clone(result.ActiveThreadContainers)
	result.ArchivedThreadContainers = slices.Clone(result.ArchivedThreadContainers)

	user, ok := cf.Users[userID]
	if !ok {
		return result
	}

	if user.PageLimit != 0 {
		result.PageLimit = user.PageLimit
	}
	if user.IndicatorIcons != nil {
		result.IndicatorIcons = slices.Clone(user.IndicatorIcons)
	}
	if user.Divider != "" {
		result.Divider = user.Divider
	}
	if user.LockedSelector != "" {
		result.LockedSelector = user.LockedSelector
	}
	if user.ArchiveForumIDs != nil {
		result.ArchiveForumIDs = slices.Clone(user.ArchiveForumIDs)
	}
	if user.ActiveThreadContainers != nil {
		result.ActiveThreadContainers = slices.Clone(user.ActiveThreadContainers)
	}
	if user.ArchivedThreadContainers != nil {
		result.ArchivedThreadContainers = slices.Clone(user.ArchivedThreadContainers)
	}
	if user.IgnoreForumIDs != nil {
		result.IgnoreForumIDs = slices.Clone(user.IgnoreForumIDs)
	}
	if user.Routing != "" {
		result.Routing = user.Routing
	}
	if user.DefaultActiveContainer != "" {
		result.DefaultActiveContainer = user.DefaultActiveContainer
	}
	if user.DefaultArchivedContainer != "" {
		result.DefaultArchivedContainer = user.DefaultArchivedContainer
	}

	return result
}
