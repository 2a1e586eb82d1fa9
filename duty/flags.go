package duty

import (
	"sort"
	"time"

	"github.com/warp/duty-engine/generic"
)

// Flag keys that only appear in flag feeds.
const (
	KeyDisruptive = "disruptive"
)

// MonthFlags groups a feed's flags under a "2006-01" month key.
type MonthFlags struct {
	Month string           `json:"month"`
	Flags generic.Findings `json:"flags"`
}

// FlagsForDuty lists what deserves attention about an assessed duty: every
// non-ok legality badge, its disruptive tags, discretion use, a satisfied
// cumulative trigger, and the non-ok rolling findings at the duty.
func (r Rules) FlagsForDuty(a Assessment) generic.Findings {
	var fs generic.Findings
	for _, b := range a.Legality.Badges {
		switch {
		case (b.Key == KeyTrigger || b.Key == KeyDiscretion) && b.Severity == generic.SeverityOK:
			fs = append(fs, generic.Finding{Key: b.Key, Severity: generic.SeverityInfo, Text: b.Text})
		case b.Severity == generic.SeverityWarn || b.Severity == generic.SeverityBad:
			fs = append(fs, b)
		}
	}
	if a.Disruption.Any() {
		fs = append(fs, generic.Finding{Key: KeyDisruptive, Severity: generic.SeverityInfo, Text: "Disruptive: " + a.Disruption.String()})
	}
	for _, f := range a.RollingFindings.NotOK() {
		if f.Key == KeyTrigger && hasKey(fs, KeyTrigger) {
			continue
		}
		fs = append(fs, f)
	}
	return fs
}

func hasKey(fs generic.Findings, key string) bool {
	_, ok := fs.Get(key)
	return ok
}

// FlagFeed assesses every duty anchored at or after since, newest first, and
// groups their flags by month. Each flag's text is prefixed with the duty's
// "02 Jan:" day label. Months without flags are omitted.
func (r Rules) FlagFeed(all []Duty, since time.Time) []MonthFlags {
	loc := r.Location()
	sorted := SortNewestFirst(all, loc)
	byMonth := make(map[string]generic.Findings)
	for i, d := range sorted {
		at := d.Anchor(loc)
		if at.IsZero() || at.Before(since) {
			continue
		}
		a := r.Assess(all, d, Previous(sorted, i))
		day := r.dayOf(at)
		for _, f := range r.FlagsForDuty(a) {
			f.Text = day.Label() + ": " + f.Text
			byMonth[day.MonthKey()] = append(byMonth[day.MonthKey()], f)
		}
	}

	months := make([]string, 0, len(byMonth))
	for m := range byMonth {
		months = append(months, m)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(months)))

	out := make([]MonthFlags, 0, len(months))
	for _, m := range months {
		out = append(out, MonthFlags{Month: m, Flags: byMonth[m]})
	}
	return out
}

// FeedStart is the first of the month twelve months before now.
func (r Rules) FeedStart(now time.Time) time.Time {
	local := r.local(now)
	return time.Date(local.Year(), local.Month()-12, 1, 0, 0, 0, 0, r.Location())
}
