/*
rolling.go - Rolling aggregator

PURPOSE:
  Derives the cumulative picture at an anchor instant from the whole duty
  collection: rolling duty minutes, consecutive duty days and days-off
  statistics. Anchoring at a historical duty reproduces the picture as it
  stood when that duty was flown.

KEY CONCEPTS:
  - Rolling sums use 24h-multiple windows ending at the anchor
  - Day statistics use calendar days in the rules' zone
  - A day is worked, off (no entries at all) or neutral (sick only)

USAGE:
  snap := rules.Rolling(duties, anchor)
  findings := rules.RollingFindings(snap)

SEE ALSO:
  - classify.go: Kind classification and the day calendar
  - cumulative.go: The per-duty cumulative trigger
*/
package duty

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/duty-engine/generic"
)

// Rolling finding keys.
const (
	Key7Day         = "7d"
	KeyAvgWeekly    = "avg-weekly"
	KeyConsecutive  = "consecutive"
	KeyOffIn14      = "off-in-14"
	KeyOffIn28      = "off-in-28"
	KeyAvgOff       = "avg-off-84"
	KeyOffYTD       = "off-ytd"
	KeyDiscretion28 = "discretion-28"
)

// Snapshot is the rolling picture at Anchor. It is never stored.
type Snapshot struct {
	Anchor              time.Time       `json:"anchor"`
	Minutes7            generic.Minutes `json:"minutes7"`
	Minutes28           generic.Minutes `json:"minutes28"`
	AvgWeeklyHours      decimal.Decimal `json:"avgWeeklyHours"`
	ConsecutiveWorkDays int             `json:"consecutiveWorkDays"`
	TwoOffIn14          bool            `json:"twoOffIn14"`
	OffIn28             int             `json:"offIn28"`
	AvgOffPer28         decimal.Decimal `json:"avgOffPer28"`
	Discretion28        int             `json:"discretion28"`
	OffYearToDate       int             `json:"offYearToDate"`
}

// RollingSum sums counted duty minutes clipped to [anchor - days*24h, anchor].
func (r Rules) RollingSum(all []Duty, anchor time.Time, days int) generic.Minutes {
	if anchor.IsZero() {
		return 0
	}
	window := generic.Trailing(anchor, days)
	var total time.Duration
	for _, d := range all {
		if !d.Kind.CountsTowardLimits() {
			continue
		}
		for _, iv := range d.Intervals() {
			total += window.Overlap(iv)
		}
	}
	return generic.MinutesOf(total)
}

// Rolling computes the snapshot at anchor. A zero anchor yields a zero
// snapshot.
func (r Rules) Rolling(all []Duty, anchor time.Time) Snapshot {
	if anchor.IsZero() {
		return Snapshot{AvgWeeklyHours: decimal.Zero, AvgOffPer28: decimal.Zero}
	}
	cal := r.calendar(all)
	today := r.dayOf(anchor)

	m7 := r.RollingSum(all, anchor, 7)
	m28 := r.RollingSum(all, anchor, 28)

	return Snapshot{
		Anchor:              anchor,
		Minutes7:            m7,
		Minutes28:           m28,
		AvgWeeklyHours:      decimal.NewFromInt(int64(m28)).Div(decimal.NewFromInt(4 * 60)).Round(1),
		ConsecutiveWorkDays: r.consecutive(cal, today),
		TwoOffIn14:          twoOffInRow(cal, generic.TrailingDays(today, 14)),
		OffIn28:             offDays(cal, generic.TrailingDays(today, 28)),
		AvgOffPer28:         avgOff(cal, generic.TrailingDays(today, 84)),
		Discretion28:        r.discretionCount(all, anchor),
		OffYearToDate:       offDays(cal, generic.YearToDate(today)),
	}
}

// consecutive walks back from today while days hold a working entry. Days
// holding only neutral entries are skipped without breaking the streak.
func (r Rules) consecutive(cal calendar, today generic.Day) int {
	count := 0
	day := today
	for i := 0; i < r.Cumulative.ConsecutiveScanCap; i, day = i+1, day.AddDays(-1) {
		switch {
		case cal.isWorking(day):
			count++
		case cal.isOff(day):
			return count
		}
	}
	return count
}

func offDays(cal calendar, rng generic.DayRange) int {
	n := 0
	for _, d := range rng.Days() {
		if cal.isOff(d) {
			n++
		}
	}
	return n
}

func twoOffInRow(cal calendar, rng generic.DayRange) bool {
	days := rng.Days()
	for i := 1; i < len(days); i++ {
		if cal.isOff(days[i-1]) && cal.isOff(days[i]) {
			return true
		}
	}
	return false
}

func avgOff(cal calendar, rng generic.DayRange) decimal.Decimal {
	buckets := rng.Split(28)
	if len(buckets) == 0 {
		return decimal.Zero
	}
	sum := 0
	for _, b := range buckets {
		sum += offDays(cal, b)
	}
	return decimal.NewFromInt(int64(sum)).Div(decimal.NewFromInt(int64(len(buckets)))).Round(1)
}

// discretionCount counts counted duties anchored in the trailing 28 days that
// used discretion.
func (r Rules) discretionCount(all []Duty, anchor time.Time) int {
	window := generic.Trailing(anchor, 28)
	loc := r.Location()
	n := 0
	for _, d := range all {
		if !d.Kind.CountsTowardLimits() || d.Discretion.Minutes <= 0 {
			continue
		}
		t := d.Anchor(loc)
		if t.IsZero() || t.Before(window.Start) || t.After(window.End) {
			continue
		}
		n++
	}
	return n
}

// =============================================================================
// ROLLING FINDINGS
// =============================================================================

// RollingFindings grades a snapshot. Order is stable.
func (r Rules) RollingFindings(s Snapshot) generic.Findings {
	c := r.Cumulative
	var fs generic.Findings
	add := func(key string, sev generic.Severity, format string, args ...any) {
		fs = append(fs, generic.Finding{Key: key, Severity: sev, Text: fmt.Sprintf(format, args...)})
	}

	switch {
	case s.Minutes7 >= c.TriggerThreshold:
		add(KeyTrigger, generic.SeverityWarn, "Cumulative trigger reached: %sh in 7 days, %s rest before next duty",
			s.Minutes7.Hours(), hoursLabel(c.TriggerRest))
	case s.Minutes7 >= c.TriggerThreshold-c.TriggerMargin:
		add(KeyTrigger, generic.SeverityWarn, "Approaching cumulative trigger: %sh / %s in 7 days",
			s.Minutes7.Hours(), hoursLabel(c.TriggerThreshold))
	default:
		add(KeyTrigger, generic.SeverityOK, "Cumulative trigger: %sh / %s in 7 days",
			s.Minutes7.Hours(), hoursLabel(c.TriggerThreshold))
	}

	add(Key7Day, generic.ByMargin(s.Minutes7, c.Max7Day, c.Max7DayMargin),
		"7-day duty %sh / max %s", s.Minutes7.Hours(), hoursLabel(c.Max7Day))

	add(KeyAvgWeekly, generic.ByMargin(s.Minutes28, 4*c.AvgWeeklyMax, 4*c.AvgWeeklyMargin),
		"Avg weekly (28d) %sh / max %s", s.AvgWeeklyHours, hoursLabel(c.AvgWeeklyMax))

	consec := generic.SeverityOK
	switch {
	case s.ConsecutiveWorkDays >= c.ConsecutiveHard:
		consec = generic.SeverityBad
	case s.ConsecutiveWorkDays >= c.ConsecutiveSoft:
		consec = generic.SeverityWarn
	}
	add(KeyConsecutive, consec, "Consecutive duty days: %d", s.ConsecutiveWorkDays)

	if s.TwoOffIn14 {
		add(KeyOffIn14, generic.SeverityOK, "2 consecutive days off in last 14")
	} else {
		add(KeyOffIn14, generic.SeverityBad, "No 2 consecutive days off in last 14")
	}

	off28 := generic.SeverityOK
	if s.OffIn28 < c.MinOffIn28 {
		off28 = generic.SeverityBad
	}
	add(KeyOffIn28, off28, "Days off (28d): %d / min %d", s.OffIn28, c.MinOffIn28)

	offSev := generic.SeverityOK
	if s.AvgOffPer28.LessThan(decimal.NewFromInt(int64(c.MinAvgOffPer28))) {
		offSev = generic.SeverityWarn
	}
	add(KeyAvgOff, offSev, "Avg days off per 28d (84d): %s / min %d", s.AvgOffPer28.StringFixed(1), c.MinAvgOffPer28)

	add(KeyOffYTD, generic.SeverityInfo, "Days off this year: %d", s.OffYearToDate)

	if s.Discretion28 > 0 {
		add(KeyDiscretion28, generic.SeverityWarn, "Discretion used (28d): %d", s.Discretion28)
	} else {
		add(KeyDiscretion28, generic.SeverityOK, "Discretion used (28d): 0")
	}
	return fs
}
