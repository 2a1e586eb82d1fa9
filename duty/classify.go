package duty

import (
	"strings"

	"github.com/warp/duty-engine/generic"
)

// =============================================================================
// KIND CLASSIFICATION
// =============================================================================

// CountsTowardLimits reports whether the kind's minutes enter rolling sums.
// Unknown kinds count.
func (k Kind) CountsTowardLimits() bool {
	switch k {
	case KindFlightWatch, KindHomeReserve, KindSick:
		return false
	case KindFDP, KindStandby:
		return true
	default:
		return true
	}
}

// IsWorkingDay reports whether a day holding this kind is a duty day.
// Unknown kinds are working days.
func (k Kind) IsWorkingDay() bool {
	switch k {
	case KindSick:
		return false
	case KindFDP, KindStandby, KindFlightWatch, KindHomeReserve:
		return true
	default:
		return true
	}
}

// IsNeutral reports whether a day holding only this kind neither counts as a
// duty day nor breaks a streak of them.
func (k Kind) IsNeutral() bool { return k == KindSick }

// =============================================================================
// DAY CALENDAR - Which days hold entries, and of what kind
// =============================================================================

type dayMark struct {
	any     bool
	working bool
}

type calendar map[generic.Day]dayMark

func (r Rules) calendar(all []Duty) calendar {
	loc := r.Location()
	cal := make(calendar)
	for _, d := range all {
		for _, day := range d.Days(loc) {
			m := cal[day]
			m.any = true
			m.working = m.working || d.Kind.IsWorkingDay()
			cal[day] = m
		}
	}
	return cal
}

func (c calendar) isOff(d generic.Day) bool     { return !c[d].any }
func (c calendar) isWorking(d generic.Day) bool { return c[d].working }

// =============================================================================
// DISRUPTIVE DUTIES
// =============================================================================

type Disruption struct {
	EarlyStart bool
	LateFinish bool
	Night      bool
}

func (d Disruption) Any() bool { return d.EarlyStart || d.LateFinish || d.Night }

// Tags returns the display labels of the set categories.
func (d Disruption) Tags() []string {
	var tags []string
	if d.EarlyStart {
		tags = append(tags, "Early start")
	}
	if d.LateFinish {
		tags = append(tags, "Late finish")
	}
	if d.Night {
		tags = append(tags, "Night duty")
	}
	return tags
}

func (d Disruption) String() string { return strings.Join(d.Tags(), ", ") }

// DisruptionOf classifies the FDP of d. Entries without a report/off pair are
// never disruptive.
func (r Rules) DisruptionOf(d Duty) Disruption {
	fdp := d.FlightInterval()
	if !fdp.Valid() {
		return Disruption{}
	}
	dr := r.Disruptive
	return Disruption{
		EarlyStart: r.timeOfDay(fdp.Start).InBand(dr.EarlyStartFrom, dr.EarlyStartTo),
		LateFinish: r.timeOfDay(fdp.End).InBand(dr.LateFinishFrom, dr.LateFinishTo),
		Night:      r.overlapsNightBand(fdp),
	}
}

// overlapsNightBand checks the night band on every local day the FDP touches.
func (r Rules) overlapsNightBand(fdp generic.Interval) bool {
	loc := r.Location()
	from, to := r.Disruptive.NightFrom, r.Disruptive.NightTo
	last := r.dayOf(fdp.End)
	for day := r.dayOf(fdp.Start).AddDays(-1); day.BeforeOrEqual(last); day = day.AddDays(1) {
		end := day.At(loc, to)
		if to <= from {
			end = day.AddDays(1).At(loc, to)
		}
		if fdp.Overlaps(generic.NewInterval(day.At(loc, from), end)) {
			return true
		}
	}
	return false
}
