package duty

import (
	"fmt"
	"time"

	"github.com/warp/duty-engine/generic"
)

// RestRequirement is the minimum rest before a duty and the rule it came from.
type RestRequirement struct {
	Required generic.Minutes
	Basis    string
}

// RestCheck compares the actual rest against the requirement.
type RestCheck struct {
	RestRequirement
	Actual    generic.Minutes
	Shortfall generic.Minutes
	Severity  generic.Severity
}

// RequiredRest resolves the minimum rest before next given the duty before it.
//
// Home base needs the home minimum. Away from base, a rest period overlapping
// the local night window needs the reduced minimum; one that sits entirely in
// daytime on a single calendar day needs the extended minimum; anything else
// needs the standard minimum.
func (r Rules) RequiredRest(prev *Duty, next Duty) RestRequirement {
	rr := r.Rest
	if prev == nil {
		return RestRequirement{Basis: "No previous duty"}
	}
	if next.Location.Normalize() == LocationHome {
		return RestRequirement{Required: rr.Home, Basis: fmt.Sprintf("Home: %s min rest", hoursLabel(rr.Home))}
	}

	off, report := prev.End(), next.Start()
	noNight := RestRequirement{Required: rr.AwayNoLocalNight, Basis: fmt.Sprintf("Away: %s rest (no local night)", hoursLabel(rr.AwayNoLocalNight))}
	if off.IsZero() || report.IsZero() {
		return noNight
	}
	if r.restCoversNight(off, report) {
		return RestRequirement{Required: rr.AwayLocalNight, Basis: fmt.Sprintf("Away: %s incl. local night", hoursLabel(rr.AwayLocalNight))}
	}
	sameDay := r.dayOf(off) == r.dayOf(report)
	if sameDay && r.timeOfDay(off) >= rr.NightEnd && r.timeOfDay(report) <= rr.NightStart {
		return RestRequirement{Required: rr.AwayOutsideNight, Basis: fmt.Sprintf("Away: %s rest (outside local night)", hoursLabel(rr.AwayOutsideNight))}
	}
	return noNight
}

// restCoversNight tests the rest period against the night windows anchored
// on the calendar days of both endpoints.
func (r Rules) restCoversNight(off, report time.Time) bool {
	rest := generic.NewInterval(off, report)
	loc := r.Location()
	start, end := r.Rest.NightStart, r.Rest.NightEnd
	for _, day := range []generic.Day{r.dayOf(off), r.dayOf(report)} {
		var windows []generic.Interval
		if start > end {
			windows = []generic.Interval{
				generic.NewInterval(day.AddDays(-1).At(loc, start), day.At(loc, end)),
				generic.NewInterval(day.At(loc, start), day.AddDays(1).At(loc, end)),
			}
		} else {
			windows = []generic.Interval{generic.NewInterval(day.At(loc, start), day.At(loc, end))}
		}
		for _, w := range windows {
			if rest.Overlaps(w) {
				return true
			}
		}
	}
	return false
}

// CheckRest grades the rest between prev and next. ok is false when either
// endpoint is missing and no rest can be measured.
func (r Rules) CheckRest(prev *Duty, next Duty) (RestCheck, bool) {
	if prev == nil {
		return RestCheck{}, false
	}
	off, report := prev.End(), next.Start()
	if off.IsZero() || report.IsZero() {
		return RestCheck{}, false
	}
	req := r.RequiredRest(prev, next)
	actual := generic.MinutesBetween(off, report)
	short := (req.Required - actual).Max(0)

	sev := generic.SeverityOK
	switch {
	case short >= r.Rest.BadShortfall:
		sev = generic.SeverityBad
	case short > 0:
		sev = generic.SeverityWarn
	}
	return RestCheck{RestRequirement: req, Actual: actual, Shortfall: short, Severity: sev}, true
}

// hoursLabel renders whole hours as "12h" and anything else as h:mm.
func hoursLabel(m generic.Minutes) string {
	if m%60 == 0 {
		return fmt.Sprintf("%dh", int(m)/60)
	}
	return m.HM()
}
