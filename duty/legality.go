/*
legality.go - Single-duty legality evaluator

PURPOSE:
  Grades one duty against the FDP table, its rest requirement, the standby
  caps and the discretion caution, given the duty immediately before it.

BRANCHES (by Shape):
  1. Non-counting kind, no standby  -> one info "logged" finding
  2. StandbyOnly                    -> standby cap; rest suppressed
  3. FlightDuty / StandbyCalledOut  -> FDP, sectors, rest, standby, discretion
  4. Unscheduled counting kind      -> one info "fdp" finding, nothing to grade

USAGE:
  res := rules.Evaluate(draft, prev)
  if res.Badges.Worst() == generic.SeverityBad { ... }

SEE ALSO:
  - rolling.go: Snapshot findings over the whole collection
  - cumulative.go: Per-duty cumulative trigger
*/
package duty

import (
	"fmt"

	"github.com/warp/duty-engine/generic"
)

// Finding keys emitted by Evaluate.
const (
	KeyLogged     = "logged"
	KeyFDP        = "fdp"
	KeySectors    = "sectors"
	KeyRest       = "rest"
	KeyStandby    = "standby"
	KeyCombined   = "standby+fdp"
	KeyDiscretion = "discretion"
	KeyTrigger    = "trigger"
)

const placeholder = "—"

// Result is the legality of one duty: ordered badges plus advisory notes.
type Result struct {
	Badges generic.Findings `json:"badges"`
	Notes  []string         `json:"notes"`
}

func (r *Result) add(key string, sev generic.Severity, format string, args ...any) {
	r.Badges = append(r.Badges, generic.Finding{Key: key, Severity: sev, Text: fmt.Sprintf(format, args...)})
}

func (r *Result) note(format string, args ...any) {
	r.Notes = append(r.Notes, fmt.Sprintf(format, args...))
}

// Evaluate grades d against prev, the duty immediately before it (nil when
// there is none). It never fails; missing times omit the affected findings.
func (r Rules) Evaluate(d Duty, prev *Duty) Result {
	var res Result
	shape := d.Shape()

	if !d.Kind.CountsTowardLimits() && !d.HasStandby() {
		r.evaluateLogged(&res, d)
		return res
	}

	switch s := shape.(type) {
	case StandbyOnly:
		r.evaluateStandby(&res, s.Effective.Minutes())
		res.note("Rest not evaluated (no FDP).")
	case FlightDuty:
		r.evaluateFlight(&res, d, s, prev)
	case StandbyCalledOut:
		r.evaluateFlight(&res, d, s.Flight, prev)
		sb := s.Effective.Minutes()
		r.evaluateStandby(&res, sb)
		if s.Called {
			total := sb + s.Flight.Period.Minutes()
			sev := generic.ByMargin(total, r.Standby.CombinedCap, r.Standby.CombinedMargin)
			res.add(KeyCombined, sev, "Standby + FDP %s / max %s", total.HM(), r.Standby.CombinedCap.HM())
		}
	case Unscheduled:
		res.add(KeyFDP, generic.SeverityInfo, "No times logged")
	}

	r.evaluateDiscretion(&res, d)
	return res
}

func (r Rules) evaluateLogged(res *Result, d Duty) {
	if m := d.FlightInterval().Minutes(); m > 0 {
		res.add(KeyLogged, generic.SeverityInfo, "%s · %s logged", d.Kind, m.HM())
		return
	}
	res.add(KeyLogged, generic.SeverityInfo, "%s logged", d.Kind)
}

func (r Rules) evaluateStandby(res *Result, m generic.Minutes) {
	sev := generic.SeverityOK
	switch {
	case m > r.Standby.Cap:
		sev = generic.SeverityBad
	case m > r.Standby.Caution:
		sev = generic.SeverityWarn
	}
	res.add(KeyStandby, sev, "Standby %s / max %s", m.HM(), r.Standby.Cap.HM())
}

func (r Rules) evaluateFlight(res *Result, d Duty, f FlightDuty, prev *Duty) {
	actual := f.Period.Minutes()
	limit := r.FDPLimit(f.Period.Start, d.Sectors)
	sev := generic.ByMargin(actual, limit.Max, r.FDPMargin)
	res.add(KeyFDP, sev, "FDP %s / max %s (%s, %d sectors)", actual.HM(), limit.Max.HM(), limit.Band, limit.Sectors)
	if sev == generic.SeverityBad {
		res.note("FDP exceeds limit by %s.", (actual - limit.Max).HM())
	}

	if d.Sectors <= 0 {
		res.add(KeySectors, generic.SeverityWarn, "Sectors: 0")
	} else {
		res.add(KeySectors, generic.SeverityOK, "Sectors: %d", d.Sectors)
	}

	if rc, ok := r.CheckRest(prev, d); ok {
		res.add(KeyRest, rc.Severity, "Rest %s / min %s (%s)", rc.Actual.HM(), rc.Required.HM(), rc.Basis)
		if rc.Shortfall > 0 {
			res.note("Rest short by %s.", rc.Shortfall.HM())
		}
	}
}

func (r Rules) evaluateDiscretion(res *Result, d Duty) {
	m := d.Discretion.Minutes
	if m <= 0 {
		return
	}
	sev := generic.SeverityOK
	if m > r.DiscretionCaution {
		sev = generic.SeverityWarn
	}
	res.add(KeyDiscretion, sev, "Discretion %s used", m.HM())
	res.note("Discretion %s used. Reason: %s. Authorised by: %s.", m.HM(), orPlaceholder(d.Discretion.Reason), orPlaceholder(d.Discretion.AuthorisedBy))
}

func orPlaceholder(s string) string {
	if s == "" {
		return placeholder
	}
	return s
}
