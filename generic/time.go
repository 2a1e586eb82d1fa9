package generic

import (
	"fmt"
	"strings"
	"time"
)

// =============================================================================
// DAY - A calendar day in the local zone
// =============================================================================

type Day struct {
	Year  int
	Month time.Month
	Day   int
}

// NewDay normalizes out-of-range values the way time.Date does.
func NewDay(year int, month time.Month, day int) Day {
	return dayFromTime(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

// DayOf returns the calendar day of t in loc. A nil loc uses t's own location.
func DayOf(t time.Time, loc *time.Location) Day {
	if loc != nil {
		t = t.In(loc)
	}
	return dayFromTime(t)
}

func ParseDay(s string) (Day, error) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return Day{}, fmt.Errorf("%w: %q", ErrInvalidInstant, s)
	}
	return dayFromTime(t), nil
}

func dayFromTime(t time.Time) Day {
	y, m, d := t.Date()
	return Day{Year: y, Month: m, Day: d}
}

func (d Day) utc() time.Time { return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC) }

// Comparison
func (d Day) Before(o Day) bool        { return d.utc().Before(o.utc()) }
func (d Day) After(o Day) bool         { return d.utc().After(o.utc()) }
func (d Day) Equal(o Day) bool         { return d == o }
func (d Day) BeforeOrEqual(o Day) bool { return !d.After(o) }
func (d Day) IsZero() bool             { return d == (Day{}) }

// Arithmetic
func (d Day) AddDays(n int) Day { return dayFromTime(d.utc().AddDate(0, 0, n)) }

// Start returns local midnight of the day.
func (d Day) Start(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

// At returns the instant at the given local time of day.
func (d Day) At(loc *time.Location, tod TimeOfDay) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return time.Date(d.Year, d.Month, d.Day, tod.Hour(), tod.Minute(), 0, 0, loc)
}

// Span is the [00:00, next 00:00) interval of the day.
func (d Day) Span(loc *time.Location) Interval {
	return Interval{Start: d.Start(loc), End: d.AddDays(1).Start(loc)}
}

func (d Day) String() string   { return d.utc().Format("2006-01-02") }
func (d Day) MonthKey() string { return d.utc().Format("2006-01") }
func (d Day) Label() string    { return d.utc().Format("02 Jan") }

func DaysBetween(from, to Day) int { return int(to.utc().Sub(from.utc()).Hours() / 24) }
func StartOfYear(year int) Day     { return Day{Year: year, Month: time.January, Day: 1} }

// =============================================================================
// TIME OF DAY - Minutes since local midnight
// =============================================================================

type TimeOfDay int

func NewTimeOfDay(hour, minute int) TimeOfDay { return TimeOfDay(hour*60 + minute) }

// TimeOfDayOf returns the local time of day of t in loc.
func TimeOfDayOf(t time.Time, loc *time.Location) TimeOfDay {
	if loc != nil {
		t = t.In(loc)
	}
	return NewTimeOfDay(t.Hour(), t.Minute())
}

// ParseTimeOfDay accepts "HH:MM" and "H:MM".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	var h, m int
	if _, err := fmt.Sscanf(strings.TrimSpace(s), "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("%w: time of day %q", ErrInvalidInstant, s)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("%w: time of day %q out of range", ErrInvalidInstant, s)
	}
	return NewTimeOfDay(h, m), nil
}

func (t TimeOfDay) Hour() int   { return int(t) / 60 }
func (t TimeOfDay) Minute() int { return int(t) % 60 }
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

// InBand reports whether t lies in [start, end] inclusive. A band whose
// start is after its end wraps past midnight.
func (t TimeOfDay) InBand(start, end TimeOfDay) bool {
	if start <= end {
		return t >= start && t <= end
	}
	return t >= start || t <= end
}

// =============================================================================
// INTERVAL - Half-open [Start, End)
// =============================================================================

type Interval struct {
	Start time.Time
	End   time.Time
}

func NewInterval(start, end time.Time) Interval { return Interval{Start: start, End: end} }

// Valid requires both instants and End strictly after Start.
func (i Interval) Valid() bool {
	return !i.Start.IsZero() && !i.End.IsZero() && i.End.After(i.Start)
}

func (i Interval) Duration() time.Duration {
	if !i.Valid() {
		return 0
	}
	return i.End.Sub(i.Start)
}

func (i Interval) Minutes() Minutes { return MinutesOf(i.Duration()) }

// Contains reports whether t is in [Start, End).
func (i Interval) Contains(t time.Time) bool {
	return i.Valid() && !t.Before(i.Start) && t.Before(i.End)
}

// Intersect returns the common part of two intervals.
func (i Interval) Intersect(o Interval) (Interval, bool) {
	if !i.Valid() || !o.Valid() {
		return Interval{}, false
	}
	start, end := i.Start, i.End
	if o.Start.After(start) {
		start = o.Start
	}
	if o.End.Before(end) {
		end = o.End
	}
	out := Interval{Start: start, End: end}
	return out, out.Valid()
}

func (i Interval) Overlaps(o Interval) bool {
	_, ok := i.Intersect(o)
	return ok
}

// Overlap is the length of the intersection; zero when either side is invalid.
func (i Interval) Overlap(o Interval) time.Duration {
	x, ok := i.Intersect(o)
	if !ok {
		return 0
	}
	return x.Duration()
}

func (i Interval) OverlapMinutes(o Interval) Minutes { return MinutesOf(i.Overlap(o)) }

// MinutesBetween is the whole minutes from a to b, or zero when either is
// missing or b is not after a.
func MinutesBetween(a, b time.Time) Minutes {
	return Interval{Start: a, End: b}.Minutes()
}

// =============================================================================
// INSTANT PARSING - ISO-like local timestamps without offset
// =============================================================================

var instantLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// ParseInstant reads a local timestamp in loc. Strings carrying an explicit
// offset (RFC 3339) are accepted and converted to loc. Empty input yields the
// zero time and no error.
func ParseInstant(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range instantLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.In(loc), nil
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidInstant, s)
}

// FormatInstant is the inverse of ParseInstant; zero renders empty.
func FormatInstant(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02T15:04")
}

// LoadZone resolves an IANA zone name, falling back to a fixed offset when
// the zone database is unavailable.
func LoadZone(name string, fallbackOffset time.Duration) *time.Location {
	if loc, err := time.LoadLocation(name); err == nil {
		return loc
	}
	return time.FixedZone(name, int(fallbackOffset/time.Second))
}
