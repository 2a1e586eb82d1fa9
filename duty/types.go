// Package duty implements flight-time-limitation evaluation for aircrew duties.
// It uses the generic time primitives with the duty record model, the
// regulatory rule set, and the evaluators built on them.
package duty

import (
	"time"

	"github.com/warp/duty-engine/generic"
)

// =============================================================================
// DUTY KIND - Closed set of duty kinds
// =============================================================================

// Kind is the logged type of a duty entry.
type Kind string

const (
	KindFDP         Kind = "FDP"
	KindStandby     Kind = "Standby"
	KindFlightWatch Kind = "Flight Watch"
	KindHomeReserve Kind = "Home Reserve"
	KindSick        Kind = "Sick"
)

// Kinds lists every known kind.
var Kinds = []Kind{KindFDP, KindStandby, KindFlightWatch, KindHomeReserve, KindSick}

// Known reports whether k is one of the declared kinds.
func (k Kind) Known() bool {
	switch k {
	case KindFDP, KindStandby, KindFlightWatch, KindHomeReserve, KindSick:
		return true
	default:
		return false
	}
}

// =============================================================================
// LOCATION / STANDBY TYPE / ORIGIN
// =============================================================================

// Location is where the crew member rests before a duty.
type Location string

const (
	LocationHome Location = "Home"
	LocationAway Location = "Away"
)

// Normalize maps anything other than Away to Home.
func (l Location) Normalize() Location {
	if l == LocationAway {
		return LocationAway
	}
	return LocationHome
}

// StandbyType says where a standby is served.
type StandbyType string

const (
	StandbyHome    StandbyType = "Home"
	StandbyAirport StandbyType = "Airport"
)

// Origin tells recorded duties apart from the ephemeral ones fabricated for
// a what-if simulation. Only OriginRecorded duties are ever persisted.
type Origin int

const (
	OriginRecorded Origin = iota
	OriginDraft
	OriginGhost
)

func (o Origin) String() string {
	switch o {
	case OriginDraft:
		return "draft"
	case OriginGhost:
		return "ghost"
	default:
		return "recorded"
	}
}

func (o Origin) IsEphemeral() bool { return o != OriginRecorded }

// =============================================================================
// DUTY
// =============================================================================

// Standby is a reserve window, optionally ended early by a call-out.
type Standby struct {
	Type   StandbyType
	Start  time.Time
	End    time.Time
	Called bool
	Call   time.Time // zero when the call instant wasn't logged
}

// Discretion records an extension beyond the FDP limit.
type Discretion struct {
	Minutes      generic.Minutes
	Reason       string
	AuthorisedBy string
}

// Duty is one logged event. Report and Off are either both set or both zero.
// Date places entries that carry no times (a sick day) on the calendar.
type Duty struct {
	ID         string
	Origin     Origin
	Kind       Kind
	Date       generic.Day
	Report     time.Time
	Off        time.Time
	Sectors    int
	Location   Location
	Discretion Discretion
	Standby    Standby
	SPS        int // subjective fatigue 1-7, 0 when not given
	Notes      string
}

// FlightInterval is report to off; invalid when either is missing.
func (d Duty) FlightInterval() generic.Interval {
	return generic.NewInterval(d.Report, d.Off)
}

func (d Duty) HasFlight() bool { return d.FlightInterval().Valid() }

// StandbyWindow is the nominal standby window.
func (d Duty) StandbyWindow() generic.Interval {
	return generic.NewInterval(d.Standby.Start, d.Standby.End)
}

func (d Duty) HasStandby() bool { return d.StandbyWindow().Valid() }

// EffectiveStandbyEnd is the window end when not called. When called it is
// the call instant, else the report, else the window end, and never later
// than the window end.
func (d Duty) EffectiveStandbyEnd() time.Time {
	sb := d.Standby
	if !sb.Called {
		return sb.End
	}
	end := sb.End
	switch {
	case !sb.Call.IsZero():
		end = sb.Call
	case !d.Report.IsZero():
		end = d.Report
	}
	if !sb.End.IsZero() && end.After(sb.End) {
		end = sb.End
	}
	return end
}

// EffectiveStandby is standby start to effective end. It is invalid (and so
// contributes zero minutes) when the clipped end is not after the start.
func (d Duty) EffectiveStandby() generic.Interval {
	return generic.NewInterval(d.Standby.Start, d.EffectiveStandbyEnd())
}

func (d Duty) EffectiveStandbyMinutes() generic.Minutes {
	return d.EffectiveStandby().Minutes()
}

// Start is the report instant, else the standby start.
func (d Duty) Start() time.Time {
	if !d.Report.IsZero() {
		return d.Report
	}
	return d.Standby.Start
}

// End is the off instant, else the effective standby end.
func (d Duty) End() time.Time {
	if !d.Off.IsZero() {
		return d.Off
	}
	if d.HasStandby() {
		return d.EffectiveStandbyEnd()
	}
	return time.Time{}
}

// Anchor is the instant the duty sorts and anchors on: Start, falling back to
// local midnight of Date for untimed entries.
func (d Duty) Anchor(loc *time.Location) time.Time {
	if t := d.Start(); !t.IsZero() {
		return t
	}
	if !d.Date.IsZero() {
		return d.Date.Start(loc)
	}
	return time.Time{}
}

// Intervals returns the FDP and effective standby intervals that are valid.
func (d Duty) Intervals() []generic.Interval {
	var out []generic.Interval
	if iv := d.FlightInterval(); iv.Valid() {
		out = append(out, iv)
	}
	if iv := d.EffectiveStandby(); iv.Valid() {
		out = append(out, iv)
	}
	return out
}

// Days returns the calendar days the entry occupies: every day touched by
// its FDP or standby window, else its Date, else the day of its Start.
func (d Duty) Days(loc *time.Location) []generic.Day {
	seen := make(map[generic.Day]bool)
	var days []generic.Day
	add := func(day generic.Day) {
		if !seen[day] {
			seen[day] = true
			days = append(days, day)
		}
	}
	for _, iv := range []generic.Interval{d.FlightInterval(), d.StandbyWindow()} {
		if !iv.Valid() {
			continue
		}
		last := generic.DayOf(iv.End.Add(-time.Nanosecond), loc)
		for day := generic.DayOf(iv.Start, loc); day.BeforeOrEqual(last); day = day.AddDays(1) {
			add(day)
		}
	}
	if len(days) > 0 {
		return days
	}
	switch {
	case !d.Date.IsZero():
		add(d.Date)
	case !d.Start().IsZero():
		add(generic.DayOf(d.Start(), loc))
	}
	return days
}

// =============================================================================
// SHAPE - Which times a duty carries, made explicit
// =============================================================================

// Shape is one of Unscheduled, FlightDuty, StandbyOnly or StandbyCalledOut.
type Shape interface{ isShape() }

// Unscheduled carries no usable times.
type Unscheduled struct{}

// FlightDuty is a report/off pair.
type FlightDuty struct {
	Period generic.Interval
}

// StandbyOnly is a standby window without a resulting FDP.
type StandbyOnly struct {
	Window    generic.Interval
	Effective generic.Interval
	Called    bool
}

// StandbyCalledOut is a standby window that resulted in an FDP.
type StandbyCalledOut struct {
	Window    generic.Interval
	Effective generic.Interval
	Called    bool
	Callout   time.Time
	Flight    FlightDuty
}

func (Unscheduled) isShape()      {}
func (FlightDuty) isShape()       {}
func (StandbyOnly) isShape()      {}
func (StandbyCalledOut) isShape() {}

// Shape resolves the duty's optional time fields into one explicit variant.
func (d Duty) Shape() Shape {
	hasFlight, hasStandby := d.HasFlight(), d.HasStandby()
	switch {
	case hasFlight && hasStandby:
		return StandbyCalledOut{
			Window:    d.StandbyWindow(),
			Effective: d.EffectiveStandby(),
			Called:    d.Standby.Called,
			Callout:   d.EffectiveStandbyEnd(),
			Flight:    FlightDuty{Period: d.FlightInterval()},
		}
	case hasFlight:
		return FlightDuty{Period: d.FlightInterval()}
	case hasStandby:
		return StandbyOnly{
			Window:    d.StandbyWindow(),
			Effective: d.EffectiveStandby(),
			Called:    d.Standby.Called,
		}
	default:
		return Unscheduled{}
	}
}
