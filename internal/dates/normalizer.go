package dates

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Form identifies which phrasing a board date string used.
type Form int

const (
	// FormUnknown means the string matched no recognized phrasing.
	FormUnknown Form = iota
	// FormYesterday is "Yesterday at H:MM".
	FormYesterday
	// FormToday is "Today at H:MM".
	FormToday
	// FormSecondsAgo is "<N> seconds ago".
	FormSecondsAgo
	// FormMinutesAgo is "<N> minutes ago".
	FormMinutesAgo
	// FormAbsolute is "<Mon> <DD> <YYYY>, <H:MM AM|PM>".
	FormAbsolute
)

// String returns a short name for the form.
func (f Form) String() string {
	switch f {
	case FormYesterday:
		return "yesterday"
	case FormToday:
		return "today"
	case FormSecondsAgo:
		return "seconds-ago"
	case FormMinutesAgo:
		return "minutes-ago"
	case FormAbsolute:
		return "absolute"
	default:
		return "unknown"
	}
}

var (
	dayAtPattern      = regexp.MustCompile(`^(Yesterday|Today) at (\d{1,2}):(\d{2})(?:\s*([AaPp][Mm]))?`)
	secondsAgoPattern = regexp.MustCompile(`(\d+) seconds? ago`)
	minutesAgoPattern = regexp.MustCompile(`(\d+) minutes? ago`)
	absolutePattern   = regexp.MustCompile(`(\w+) (\d+) (\d+), (\d+):(\d+) ([AP]M)`)
)

var monthAbbrev = map[string]time.Month{
	"Jan": time.January,
	"Feb": time.February,
	"Mar": time.March,
	"Apr": time.April,
	"May": time.May,
	"Jun": time.June,
	"Jul": time.July,
	"Aug": time.August,
	"Sep": time.September,
	"Oct": time.October,
	"Nov": time.November,
	"Dec": time.December,
}

// Normalizer converts board date strings into timestamps.
// It is safe for concurrent use.
type Normalizer struct {
	now func() time.Time
	loc *time.Location
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithClock sets the function used as "now" for relative dates.
func WithClock(now func() time.Time) Option {
	return func(n *Normalizer) {
		if now != nil {
			n.now = now
		}
	}
}

// WithLocation sets the board's time zone. Wall-clock dates are read in it.
func WithLocation(loc *time.Location) Option {
	return func(n *Normalizer) {
		if loc != nil {
			n.loc = loc
		}
	}
}

// New creates a Normalizer using the system clock and local time zone
// unless overridden by options.
func New(opts ...Option) *Normalizer {
	n := &Normalizer{
		now: time.Now,
		loc: time.Local,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Location returns the time zone wall-clock dates are read in.
func (n *Normalizer) Location() *time.Location {
	return n.loc
}

// Now returns the normalizer's current time in its location.
func (n *Normalizer) Now() time.Time {
	return n.now().In(n.loc)
}

// Parse converts raw into a timestamp. The boolean is false when raw
// matches none of the recognized forms.
func (n *Normalizer) Parse(raw string) (time.Time, bool) {
	t, form := n.ParseForm(raw)
	return t, form != FormUnknown
}

// ParseForm converts raw into a timestamp and reports which form matched.
// Forms are tried in a fixed order: yesterday, today, seconds ago,
// minutes ago, absolute. An unrecognized string yields the zero time
// and FormUnknown.
func (n *Normalizer) ParseForm(raw string) (time.Time, Form) {
	s := strings.TrimSpace(raw)
	now := n.Now()

	if m := dayAtPattern.FindStringSubmatch(s); m != nil {
		hour, minute, ok := clock(m[2], m[3], m[4])
		if !ok {
			return time.Time{}, FormUnknown
		}
		offset, form := 0, FormToday
		if m[1] == "Yesterday" {
			offset, form = 1, FormYesterday
		}
		y, mo, d := now.Date()
		return time.Date(y, mo, d-offset, hour, minute, 0, 0, n.loc), form
	}

	if m := secondsAgoPattern.FindStringSubmatch(s); m != nil {
		v, err := strconv.Atoi(m[1])
		if err != nil {
			return time.Time{}, FormUnknown
		}
		return now.Add(-time.Duration(v) * time.Second), FormSecondsAgo
	}

	if m := minutesAgoPattern.FindStringSubmatch(s); m != nil {
		v, err := strconv.Atoi(m[1])
		if err != nil {
			return time.Time{}, FormUnknown
		}
		return now.Add(-time.Duration(v) * time.Minute), FormMinutesAgo
	}

	if m := absolutePattern.FindStringSubmatch(s); m != nil {
		month, ok := monthAbbrev[m[1]]
		if !ok {
			return time.Time{}, FormUnknown
		}
		day, err := strconv.Atoi(m[2])
		if err != nil || day < 1 || day > 31 {
			return time.Time{}, FormUnknown
		}
		year, err := strconv.Atoi(m[3])
		if err != nil {
			return time.Time{}, FormUnknown
		}
		hour, minute, ok := clock(m[4], m[5], m[6])
		if !ok {
			return time.Time{}, FormUnknown
		}
		return time.Date(year, month, day, hour, minute, 0, 0, n.loc), FormAbsolute
	}

	return time.Time{}, FormUnknown
}

// Format renders t in the phrasing the board would use for it right now:
// seconds or minutes ago within the last hour, Today or Yesterday by
// calendar day, and the absolute form otherwise.
func (n *Normalizer) Format(t time.Time) string {
	now := n.Now()
	t = t.In(n.loc)
	age := now.Sub(t)

	switch {
	case age >= 0 && age < time.Minute:
		return n.FormatAs(t, FormSecondsAgo)
	case age >= 0 && age < time.Hour:
		return n.FormatAs(t, FormMinutesAgo)
	case sameDay(t, now):
		return n.FormatAs(t, FormToday)
	case sameDay(t, now.AddDate(0, 0, -1)):
		return n.FormatAs(t, FormYesterday)
	default:
		return n.FormatAs(t, FormAbsolute)
	}
}

// FormatAs renders t in the given phrasing. Relative forms are computed
// against the normalizer's clock. FormUnknown renders the absolute form.
func (n *Normalizer) FormatAs(t time.Time, form Form) string {
	t = t.In(n.loc)
	switch form {
	case FormYesterday:
		return fmt.Sprintf("Yesterday at %d:%02d", t.Hour(), t.Minute())
	case FormToday:
		return fmt.Sprintf("Today at %d:%02d", t.Hour(), t.Minute())
	case FormSecondsAgo:
		return fmt.Sprintf("%d seconds ago", int(n.Now().Sub(t)/time.Second))
	case FormMinutesAgo:
		return fmt.Sprintf("%d minutes ago", int(n.Now().Sub(t)/time.Minute))
	default:
		return t.Format("Jan 2 2006, 3:04 PM")
	}
}

// clock validates an hour and minute pair with an optional AM/PM marker.
// Without a marker the hour is read on a 24-hour clock.
func clock(h, m, meridiem string) (int, int, bool) {
	hour, err := strconv.Atoi(h)
	if err != nil {
		return 0, 0, false
	}
	minute, err := strconv.Atoi(m)
	if err != nil || minute > 59 {
		return 0, 0, false
	}

	switch strings.ToUpper(meridiem) {
	case "":
		if hour > 23 {
			return 0, 0, false
		}
	case "AM":
		if hour < 1 || hour > 12 {
			return 0, 0, false
		}
		if hour == 12 {
			hour = 0
		}
	case "PM":
		if hour < 1 || hour > 12 {
			return 0, 0, false
		}
		if hour != 12 {
			hour += 12
		}
	}
	return hour, minute, true
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
