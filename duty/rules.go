/*
rules.go - The regulatory rule set

PURPOSE:
  Every limit, threshold and local-time window the evaluators consult lives
  in Rules. The evaluators are methods on Rules, so one immutable value
  carries the whole regulatory context of a computation.

AVAILABLE DEFAULTS:
  DefaultRules(): acclimatised two-pilot FDP table, rest minima, disruptive
  windows and cumulative limits of the operator's manual, zone
  Africa/Johannesburg.

CUSTOMIZATION:
  factory.ParseRules reads the same structure from a JSON document so the
  table can change without a code change.

SEE ALSO:
  - fdp.go: FDP table lookup
  - rest.go: Rest requirement resolver
  - factory/rules.go: JSON rules documents
*/
package duty

import (
	"fmt"
	"time"

	"github.com/warp/duty-engine/generic"
)

const (
	DefaultTimezone = "Africa/Johannesburg"
	defaultOffset   = 2 * time.Hour
	MaxSectors      = 8
)

// =============================================================================
// FDP TABLE
// =============================================================================

// FDPBand holds the limits for report times in [Start, End]. A band with
// Start after End wraps past midnight.
type FDPBand struct {
	Start  generic.TimeOfDay
	End    generic.TimeOfDay
	Limits [MaxSectors]generic.Minutes // index 0 is one sector
}

func (b FDPBand) Label() string { return b.Start.String() + "-" + b.End.String() }

func (b FDPBand) Matches(t generic.TimeOfDay) bool { return t.InBand(b.Start, b.End) }

type FDPTable []FDPBand

// =============================================================================
// RULE GROUPS
// =============================================================================

type RestRules struct {
	Home             generic.Minutes
	AwayLocalNight   generic.Minutes
	AwayNoLocalNight generic.Minutes
	AwayOutsideNight generic.Minutes
	NightStart       generic.TimeOfDay
	NightEnd         generic.TimeOfDay
	BadShortfall     generic.Minutes
}

type DisruptiveRules struct {
	EarlyStartFrom generic.TimeOfDay
	EarlyStartTo   generic.TimeOfDay
	LateFinishFrom generic.TimeOfDay
	LateFinishTo   generic.TimeOfDay
	NightFrom      generic.TimeOfDay
	NightTo        generic.TimeOfDay
}

type StandbyRules struct {
	Cap            generic.Minutes
	Caution        generic.Minutes
	CombinedCap    generic.Minutes
	CombinedMargin generic.Minutes
}

type CumulativeRules struct {
	Max7Day          generic.Minutes
	Max7DayMargin    generic.Minutes
	AvgWeeklyMax     generic.Minutes
	AvgWeeklyMargin  generic.Minutes
	TriggerThreshold generic.Minutes
	TriggerRest      generic.Minutes
	TriggerMargin    generic.Minutes

	ConsecutiveSoft    int
	ConsecutiveHard    int
	ConsecutiveScanCap int

	MinOffIn28     int
	MinAvgOffPer28 int
}

// =============================================================================
// RULES
// =============================================================================

type Rules struct {
	Zone *time.Location

	FDP               FDPTable
	FDPMargin         generic.Minutes
	DiscretionCaution generic.Minutes

	Rest       RestRules
	Disruptive DisruptiveRules
	Standby    StandbyRules
	Cumulative CumulativeRules
}

func hm(s string) generic.Minutes {
	t, err := generic.ParseTimeOfDay(s)
	if err != nil {
		panic(fmt.Sprintf("duty: bad limit literal %q", s))
	}
	return generic.Minutes(t)
}

func limits(vals ...string) [MaxSectors]generic.Minutes {
	var out [MaxSectors]generic.Minutes
	for i := range out {
		out[i] = hm(vals[i])
	}
	return out
}

// DefaultFDPTable is the acclimatised two-pilot table.
func DefaultFDPTable() FDPTable {
	return FDPTable{
		{Start: generic.NewTimeOfDay(5, 0), End: generic.NewTimeOfDay(6, 59),
			Limits: limits("13:00", "12:15", "11:30", "10:45", "10:00", "9:15", "9:00", "9:00")},
		{Start: generic.NewTimeOfDay(7, 0), End: generic.NewTimeOfDay(13, 59),
			Limits: limits("14:00", "13:15", "12:30", "11:45", "11:00", "10:15", "9:30", "9:00")},
		{Start: generic.NewTimeOfDay(14, 0), End: generic.NewTimeOfDay(20, 59),
			Limits: limits("13:00", "12:15", "11:30", "10:45", "10:00", "9:15", "9:00", "9:00")},
		{Start: generic.NewTimeOfDay(21, 0), End: generic.NewTimeOfDay(21, 59),
			Limits: limits("12:00", "11:15", "10:30", "9:45", "9:00", "9:00", "9:00", "9:00")},
		{Start: generic.NewTimeOfDay(22, 0), End: generic.NewTimeOfDay(4, 59),
			Limits: limits("11:00", "10:15", "9:30", "9:00", "9:00", "9:00", "9:00", "9:00")},
	}
}

// DefaultRules returns the operator-manual rule set.
func DefaultRules() Rules {
	return Rules{
		Zone:              generic.LoadZone(DefaultTimezone, defaultOffset),
		FDP:               DefaultFDPTable(),
		FDPMargin:         30,
		DiscretionCaution: 30,
		Rest: RestRules{
			Home:             generic.Hours(12),
			AwayLocalNight:   generic.Hours(10),
			AwayNoLocalNight: generic.Hours(12),
			AwayOutsideNight: generic.Hours(14),
			NightStart:       generic.NewTimeOfDay(22, 0),
			NightEnd:         generic.NewTimeOfDay(6, 0),
			BadShortfall:     60,
		},
		Disruptive: DisruptiveRules{
			EarlyStartFrom: generic.NewTimeOfDay(5, 0),
			EarlyStartTo:   generic.NewTimeOfDay(5, 59),
			LateFinishFrom: generic.NewTimeOfDay(23, 0),
			LateFinishTo:   generic.NewTimeOfDay(1, 59),
			NightFrom:      generic.NewTimeOfDay(2, 0),
			NightTo:        generic.NewTimeOfDay(5, 0),
		},
		Standby: StandbyRules{
			Cap:            generic.Hours(12),
			Caution:        generic.Hours(11),
			CombinedCap:    generic.Hours(20),
			CombinedMargin: 30,
		},
		Cumulative: CumulativeRules{
			Max7Day:            generic.Hours(60),
			Max7DayMargin:      generic.Hours(2),
			AvgWeeklyMax:       generic.Hours(50),
			AvgWeeklyMargin:    generic.Hours(2),
			TriggerThreshold:   generic.Hours(50),
			TriggerRest:        generic.Hours(24),
			TriggerMargin:      generic.Hours(1),
			ConsecutiveSoft:    6,
			ConsecutiveHard:    7,
			ConsecutiveScanCap: 60,
			MinOffIn28:         6,
			MinAvgOffPer28:     8,
		},
	}
}

// Location returns the configured zone, UTC when unset.
func (r Rules) Location() *time.Location {
	if r.Zone == nil {
		return time.UTC
	}
	return r.Zone
}

func (r Rules) local(t time.Time) time.Time { return t.In(r.Location()) }

func (r Rules) dayOf(t time.Time) generic.Day { return generic.DayOf(t, r.Location()) }

func (r Rules) timeOfDay(t time.Time) generic.TimeOfDay {
	return generic.TimeOfDayOf(t, r.Location())
}
