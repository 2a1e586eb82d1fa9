package generic

import "time"

// =============================================================================
// ROLLING WINDOW - Trailing multiples of 24h, not calendar aligned
// =============================================================================

// Trailing returns [anchor - days*24h, anchor].
//
// Examples:
//   - Trailing(anchor, 7):  the rolling week used for cumulative duty
//   - Trailing(anchor, 28): the rolling four weeks used for average hours
func Trailing(anchor time.Time, days int) Interval {
	return Interval{Start: anchor.Add(-time.Duration(days) * 24 * time.Hour), End: anchor}
}

// =============================================================================
// DAY RANGE - Calendar-aligned, inclusive on both ends
// =============================================================================

// DayRange is used for the days-off statistics, which are counted on
// calendar days rather than 24h multiples.
type DayRange struct {
	From Day
	To   Day
}

// TrailingDays returns the n calendar days ending on (and including) last.
func TrailingDays(last Day, n int) DayRange {
	if n < 1 {
		n = 1
	}
	return DayRange{From: last.AddDays(-(n - 1)), To: last}
}

// YearToDate runs from 1 January of d's year through d.
func YearToDate(d Day) DayRange {
	return DayRange{From: StartOfYear(d.Year), To: d}
}

func (r DayRange) Contains(d Day) bool {
	return !d.Before(r.From) && !d.After(r.To)
}

func (r DayRange) Len() int {
	if r.To.Before(r.From) {
		return 0
	}
	return DaysBetween(r.From, r.To) + 1
}

// Days returns every day in the range, oldest first.
func (r DayRange) Days() []Day {
	days := make([]Day, 0, r.Len())
	for d := r.From; d.BeforeOrEqual(r.To); d = d.AddDays(1) {
		days = append(days, d)
	}
	return days
}

// Split cuts the range into consecutive chunks of size days, oldest first.
// A trailing remainder shorter than size is dropped.
func (r DayRange) Split(size int) []DayRange {
	if size < 1 {
		return nil
	}
	var out []DayRange
	for from := r.From; ; from = from.AddDays(size) {
		to := from.AddDays(size - 1)
		if to.After(r.To) {
			break
		}
		out = append(out, DayRange{From: from, To: to})
	}
	return out
}

func (r DayRange) String() string {
	return "[" + r.From.String() + ", " + r.To.String() + "]"
}
