package duty

import "github.com/warp/duty-engine/generic"

// Assessment bundles every evaluator's view of one duty: legality against its
// predecessor, the cumulative trigger, disruptive tags and the rolling
// picture anchored at the duty.
type Assessment struct {
	Duty            Duty
	Previous        *Duty
	Legality        Result
	Trigger         *Trigger
	Disruption      Disruption
	Rolling         Snapshot
	RollingFindings generic.Findings
}

// Assess evaluates d in the context of all. prev is d's predecessor; the
// cumulative trigger finding, when it applies, is appended to the legality
// badges.
func (r Rules) Assess(all []Duty, d Duty, prev *Duty) Assessment {
	a := Assessment{
		Duty:       d,
		Previous:   prev,
		Legality:   r.Evaluate(d, prev),
		Disruption: r.DisruptionOf(d),
	}
	if t, ok := r.CumulativeTrigger(all, d, prev); ok {
		a.Trigger = &t
		a.Legality.Badges = append(a.Legality.Badges, t.Finding)
	}
	a.Rolling = r.Rolling(all, d.Anchor(r.Location()))
	a.RollingFindings = r.RollingFindings(a.Rolling)
	return a
}

// AssessByID locates the duty with the given ID and its predecessor, then
// assesses it. ok is false when no such duty exists.
func (r Rules) AssessByID(all []Duty, id string) (Assessment, bool) {
	d, prev, ok := r.PreviousOf(all, id)
	if !ok {
		return Assessment{}, false
	}
	return r.Assess(all, d, prev), true
}
