package duty

import (
	"fmt"

	"github.com/warp/duty-engine/generic"
)

// Trigger is the cumulative-trigger assessment of one duty.
type Trigger struct {
	Cumulative   generic.Minutes // counted minutes in the 7 days before the previous duty's end
	RequiredRest generic.Minutes
	ActualRest   generic.Minutes
	Finding      generic.Finding
}

// CumulativeTrigger checks whether the week before d's predecessor reached
// the trigger threshold and, if so, whether d was preceded by the extended
// rest. ok is false when the check does not apply: no predecessor, a
// non-counting duty, or a week well under the threshold.
//
// A met requirement yields an ok finding, which flag feeds show as info.
func (r Rules) CumulativeTrigger(all []Duty, d Duty, prev *Duty) (Trigger, bool) {
	if prev == nil || !d.Kind.CountsTowardLimits() {
		return Trigger{}, false
	}
	off := prev.End()
	if off.IsZero() {
		return Trigger{}, false
	}
	c := r.Cumulative
	week := r.RollingSum(all, off, 7)
	t := Trigger{Cumulative: week}

	switch {
	case week >= c.TriggerThreshold:
		t.RequiredRest = c.TriggerRest
		t.ActualRest = generic.MinutesBetween(off, d.Start())
		if t.ActualRest < c.TriggerRest {
			t.Finding = triggerFinding(generic.SeverityBad, "Cumulative trigger: %sh in 7 days needs %s rest, had %s",
				week.Hours(), c.TriggerRest.HM(), t.ActualRest.HM())
		} else {
			t.Finding = triggerFinding(generic.SeverityOK, "Cumulative trigger met: %s rest satisfied (%s)",
				c.TriggerRest.HM(), t.ActualRest.HM())
		}
	case week >= c.TriggerThreshold-c.TriggerMargin:
		t.Finding = triggerFinding(generic.SeverityWarn, "Approaching cumulative trigger: %sh in 7 days", week.Hours())
	default:
		return Trigger{}, false
	}
	return t, true
}

func triggerFinding(sev generic.Severity, format string, args ...any) generic.Finding {
	return generic.Finding{Key: KeyTrigger, Severity: sev, Text: fmt.Sprintf(format, args...)}
}
