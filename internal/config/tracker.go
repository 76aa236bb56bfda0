package config

import (
	"fmt"
	"regexp"
	"slices"
)

// Default tracker option values.
const (
	// DefaultPageLimit is the highest page counter the crawler will reach.
	DefaultPageLimit = 5

	// DefaultDivider separates the forum name from the thread description.
	DefaultDivider = " | "

	// DefaultLockedSelector matches the icon cell of a closed thread on a
	// stock Jcink skin.
	DefaultLockedSelector = "[title*=Closed],[class*=lock],[class*=closed]"

	// DefaultOwedIcon is the icon class used for owed threads.
	DefaultOwedIcon = "default-owed-icon"

	// DefaultCompletedIcon is the icon class used for completed threads.
	DefaultCompletedIcon = "default-completed-icon"

	// DefaultActiveContainer receives active threads no other entry claims.
	DefaultActiveContainer = "#active-threads"

	// DefaultArchivedContainer receives locked threads no other entry claims.
	DefaultArchivedContainer = "#archived-threads"

	// TrashForumID is the forum Jcink uses as its trash can.
	TrashForumID = "2"
)

// RoutingPolicy selects how a thread's container is looked up.
type RoutingPolicy string

const (
	// RoutingFirstEntry looks only at the first configured container.
	// If its forum set does not hold the thread's forum, the default
	// container is used even when a later entry would match.
	RoutingFirstEntry RoutingPolicy = "first-entry"

	// RoutingFullScan walks every configured container in order and
	// falls back to the default only when none match.
	RoutingFullScan RoutingPolicy = "full-scan"
)

// ParseRoutingPolicy converts a policy name into a RoutingPolicy.
// The empty string selects RoutingFirstEntry.
func ParseRoutingPolicy(s string) (RoutingPolicy, error) {
	switch RoutingPolicy(s) {
	case "", RoutingFirstEntry:
		return RoutingFirstEntry, nil
	case RoutingFullScan:
		return RoutingFullScan, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidRoutingPolicy, s)
	}
}

// iconPattern is the format an icon class list must have to be used.
var iconPattern = regexp.MustCompile(`(?i)^[-a-z _\d]+$`)

// ContainerSpec names a destination container and the forums it claims.
type ContainerSpec struct {
	// Name is a CSS selector for the container, usually an id like "#event-threads".
	Name string `yaml:"name" json:"name"`

	// ForumIDs are the showforum= ids routed to this container.
	// An entry without forum ids never matches; it is still backfilled.
	ForumIDs []string `yaml:"forumIDs,omitempty" json:"forum_ids,omitempty"`
}

// Claims reports whether the container's forum set holds forumID.
func (c ContainerSpec) Claims(forumID string) bool {
	return slices.Contains(c.ForumIDs, forumID)
}

// TrackerOptions are the settings for one tracking run.
// A nil slice means "unset" and receives the default on Resolve.
// An explicitly empty ArchiveForumIDs or IgnoreForumIDs means "none".
type TrackerOptions struct {
	// UserID is the tracked user's showuser= id. It is supplied per run.
	UserID string `yaml:"-"`

	// PageLimit bounds the zero-based page counter. Zero means the default.
	PageLimit int `yaml:"pageLimit,omitempty"`

	// IndicatorIcons are the owed, completed and optional locked icon classes.
	IndicatorIcons []string `yaml:"indicatorIcons,omitempty"`

	// Divider is placed between the forum name and the description.
	Divider string `yaml:"divider,omitempty"`

	// LockedSelector is matched against the icon cell to detect closed threads.
	LockedSelector string `yaml:"lockedSelector,omitempty"`

	// ArchiveForumIDs are forums whose threads always count as locked.
	ArchiveForumIDs []string `yaml:"archiveForumIDs"`

	// ActiveThreadContainers route unlocked threads.
	ActiveThreadContainers []ContainerSpec `yaml:"activeThreadContainers,omitempty"`

	// ArchivedThreadContainers route locked threads.
	ArchivedThreadContainers []ContainerSpec `yaml:"archivedThreadContainers,omitempty"`

	// IgnoreForumIDs are forums whose threads are dropped.
	IgnoreForumIDs []string `yaml:"ignoreForumIDs"`

	// Routing selects the container lookup policy.
	Routing RoutingPolicy `yaml:"routing,omitempty"`

	// DefaultActiveContainer is the fallback for unlocked threads.
	DefaultActiveContainer string `yaml:"defaultActiveContainer,omitempty"`

	// DefaultArchivedContainer is the fallback for locked threads.
	DefaultArchivedContainer string `yaml:"defaultArchivedContainer,omitempty"`
}

// Resolve returns a copy of o with every unset option replaced by its
// default and the indicator icons filtered to the allowed format.
func (o TrackerOptions) Resolve() (TrackerOptions, error) {
	r := o

	if r.PageLimit < 0 {
		return TrackerOptions{}, ErrInvalidPageLimit
	}
	if r.PageLimit == 0 {
		r.PageLimit = DefaultPageLimit
	}

	icons, err := FilterIndicatorIcons(o.IndicatorIcons)
	if err != nil {
		return TrackerOptions{}, err
	}
	r.IndicatorIcons = icons

	if r.Divider == "" {
		r.Divider = DefaultDivider
	}
	if r.LockedSelector == "" {
		r.LockedSelector = DefaultLockedSelector
	}

	r.ArchiveForumIDs = cloneOr(o.ArchiveForumIDs, []string{})
	r.IgnoreForumIDs = cloneOr(o.IgnoreForumIDs, []string{TrashForumID})

	policy, err := ParseRoutingPolicy(string(o.Routing))
	if err != nil {
		return TrackerOptions{}, err
	}
	r.Routing = policy

	if r.DefaultActiveContainer == "" {
		r.DefaultActiveContainer = DefaultActiveContainer
	}
	if r.DefaultArchivedContainer == "" {
		r.DefaultArchivedContainer = DefaultArchivedContainer
	}

	r.ActiveThreadContainers, err = resolveContainers(o.ActiveThreadContainers, r.DefaultActiveContainer)
	if err != nil {
		return TrackerOptions{}, err
	}
	r.ArchivedThreadContainers, err = resolveContainers(o.ArchivedThreadContainers, r.DefaultArchivedContainer)
	if err != nil {
		return TrackerOptions{}, err
	}

	return r, nil
}

// OwedIcon returns the icon class for owed threads.
func (o TrackerOptions) OwedIcon() string {
	return o.icon(0)
}

// CompletedIcon returns the icon class for completed threads.
func (o TrackerOptions) CompletedIcon() string {
	return o.icon(1)
}

// LockedIcon returns the icon class for locked threads, or "" if none is configured.
func (o TrackerOptions) LockedIcon() string {
	return o.icon(2)
}

// Ignores reports whether threads from forumID are dropped.
func (o TrackerOptions) Ignores(forumID string) bool {
	return slices.Contains(o.IgnoreForumIDs, forumID)
}

// Archives reports whether threads from forumID always count as locked.
func (o TrackerOptions) Archives(forumID string) bool {
	return slices.Contains(o.ArchiveForumIDs, forumID)
}

// ContainerNames returns every configured active then archived container name.
func (o TrackerOptions) ContainerNames() []string {
	names := make([]string, 0, len(o.ActiveThreadContainers)+len(o.ArchivedThreadContainers))
	for _, c := range o.ActiveThreadContainers {
		names = append(names, c.Name)
	}
	for _, c := range o.ArchivedThreadContainers {
		names = append(names, c.Name)
	}
	return names
}

func (o TrackerOptions) icon(i int) string {
	if i < len(o.IndicatorIcons) {
		return o.IndicatorIcons[i]
	}
	return ""
}

// FilterIndicatorIcons keeps the icon class lists that match the allowed
// format, up to three. With no icons given the two defaults are returned.
// Fewer than two surviving icons is ErrInvalidIndicatorIcons.
func FilterIndicatorIcons(icons []string) ([]string, error) {
	if len(icons) == 0 {
		return []string{DefaultOwedIcon, DefaultCompletedIcon}, nil
	}

	valid := make([]string, 0, 3)
	for _, icon := range icons {
		if iconPattern.MatchString(icon) {
			valid = append(valid, icon)
		}
		if len(valid) == 3 {
			break
		}
	}
	if len(valid) < 2 {
		return nil, fmt.Errorf("%w: %d of %d usable", ErrInvalidIndicatorIcons, len(valid), len(icons))
	}
	return valid, nil
}

func resolveContainers(specs []ContainerSpec, fallback string) ([]ContainerSpec, error) {
	if len(specs) == 0 {
		return []ContainerSpec{{Name: fallback}}, nil
	}
	out := make([]ContainerSpec, 0, len(specs))
	for _, s := range specs {
		if s.Name == "" {
			return nil, ErrInvalidContainer
		}
		out = append(out, ContainerSpec{Name: s.Name, ForumIDs: slices.Clone(s.ForumIDs)})
	}
	return out, nil
}

func cloneOr(s, fallback []string) []string {
	if s == nil {
		return fallback
	}
	return slices.Clone(s)
}
