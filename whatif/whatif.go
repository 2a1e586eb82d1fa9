/*
Package whatif evaluates a draft duty before it is logged.

PURPOSE:
  A crew member asks "if I accept this duty, is it legal?". The draft, plus
  optional assumptions about the days before it, are overlaid on the recorded
  duties and run through the same evaluators as any stored duty. Nothing is
  written back: the overlay is a new slice and the recorded one is never
  touched.

KEY CONCEPTS:
  - Assumption: A hypothetical work, standby or off day N days before the draft
  - Ghost:      The ephemeral duty an assumption becomes (duty.OriginGhost)
  - Overlay:    Recorded + ghosts + draft, sorted newest first

USAGE:
  sim := whatif.Simulate(rules, recorded, draft, assumptions)
  sim.Assessment.Legality.Badges  // draft vs. its predecessor in the overlay
  sim.Assessment.Rolling          // anchored at the draft

SEE ALSO:
  - duty/order.go: Newest-first ordering and tie-breaks
  - duty/assess.go: The evaluators the simulation runs
*/
package whatif

import (
	"fmt"

	"github.com/warp/duty-engine/duty"
	"github.com/warp/duty-engine/generic"
)

const DraftID = "draft"

// =============================================================================
// ASSUMPTIONS
// =============================================================================

type AssumptionKind string

const (
	AssumeWork    AssumptionKind = "work"
	AssumeStandby AssumptionKind = "standby"
	AssumeOff     AssumptionKind = "off"
)

type Assumption struct {
	Kind        AssumptionKind
	OffsetDays  int // days before the draft's calendar day, at least 1
	Start       generic.TimeOfDay
	Duration    generic.Minutes
	Sectors     int
	StandbyType duty.StandbyType
	Location    duty.Location
}

func (a Assumption) Validate() error {
	invalid := func(field, reason string) error {
		return generic.NewValidationError(generic.ErrInvalidDuty, "assumptions."+field, reason)
	}
	switch a.Kind {
	case AssumeWork, AssumeStandby, AssumeOff:
	default:
		return invalid("kind", "must be work, standby or off")
	}
	if a.OffsetDays < 1 {
		return invalid("offsetDays", "must be at least 1")
	}
	if a.Kind != AssumeOff && a.Duration <= 0 {
		return invalid("duration", "must be positive")
	}
	if a.Sectors < 0 {
		return invalid("sectors", "must not be negative")
	}
	return nil
}

// =============================================================================
// OVERLAY
// =============================================================================

// Overlay is the simulated duty sequence, newest first.
type Overlay struct {
	Duties []duty.Duty
	Draft  int      // index of the draft in Duties
	Hidden []string // recorded IDs masked by off assumptions
}

func (o Overlay) DraftDuty() duty.Duty { return o.Duties[o.Draft] }

// Previous is the entry immediately older than the draft.
func (o Overlay) Previous() *duty.Duty { return duty.Previous(o.Duties, o.Draft) }

func (o Overlay) Ghosts() []duty.Duty {
	var out []duty.Duty
	for _, d := range o.Duties {
		if d.Origin == duty.OriginGhost {
			out = append(out, d)
		}
	}
	return out
}

// Build places the draft and the ghosts of the assumptions among the recorded
// duties. Assumptions are placed relative to the draft's calendar day; a draft
// without any instant or date gets no ghosts. An off assumption masks every
// recorded entry on its day.
func Build(rules duty.Rules, recorded []duty.Duty, draft duty.Duty, assumptions []Assumption) Overlay {
	loc := rules.Location()

	draft.ID = DraftID
	draft.Origin = duty.OriginDraft
	if draft.Date.IsZero() && !draft.Start().IsZero() {
		draft.Date = generic.DayOf(draft.Start(), loc)
	}

	var ghosts []duty.Duty
	offDays := make(map[generic.Day]bool)
	if !draft.Date.IsZero() {
		for i, a := range assumptions {
			day := draft.Date.AddDays(-a.OffsetDays)
			if a.Kind == AssumeOff {
				offDays[day] = true
				continue
			}
			ghosts = append(ghosts, ghost(fmt.Sprintf("ghost-%d", i+1), day, a, rules))
		}
	}

	merged := make([]duty.Duty, 0, len(recorded)+len(ghosts)+1)
	var hidden []string
	for _, d := range recorded {
		if onAnyDay(d, offDays, rules) {
			hidden = append(hidden, d.ID)
			continue
		}
		merged = append(merged, d)
	}
	merged = append(merged, ghosts...)
	merged = append(merged, draft)

	sorted := duty.SortNewestFirst(merged, loc)
	idx := 0
	for i, d := range sorted {
		if d.Origin == duty.OriginDraft {
			idx = i
			break
		}
	}
	return Overlay{Duties: sorted, Draft: idx, Hidden: hidden}
}

func ghost(id string, day generic.Day, a Assumption, rules duty.Rules) duty.Duty {
	start := day.At(rules.Location(), a.Start)
	end := start.Add(a.Duration.Duration())
	g := duty.Duty{
		ID:       id,
		Origin:   duty.OriginGhost,
		Date:     day,
		Location: a.Location.Normalize(),
	}
	switch a.Kind {
	case AssumeStandby:
		g.Kind = duty.KindStandby
		g.Standby = duty.Standby{Type: a.StandbyType, Start: start, End: end}
	default:
		g.Kind = duty.KindFDP
		g.Report, g.Off = start, end
		g.Sectors = a.Sectors
	}
	return g
}

func onAnyDay(d duty.Duty, days map[generic.Day]bool, rules duty.Rules) bool {
	if len(days) == 0 {
		return false
	}
	for _, day := range d.Days(rules.Location()) {
		if days[day] {
			return true
		}
	}
	return false
}

// =============================================================================
// SIMULATION
// =============================================================================

type Simulation struct {
	Overlay    Overlay
	Assessment duty.Assessment
}

// Simulate builds the overlay and assesses the draft inside it.
func Simulate(rules duty.Rules, recorded []duty.Duty, draft duty.Duty, assumptions []Assumption) Simulation {
	o := Build(rules, recorded, draft, assumptions)
	return Simulation{
		Overlay:    o,
		Assessment: rules.Assess(o.Duties, o.DraftDuty(), o.Previous()),
	}
}
