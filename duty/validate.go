package duty

import (
	"github.com/warp/duty-engine/generic"
)

// Validate checks a duty before it is stored. The evaluators tolerate
// everything Validate rejects; storage does not.
func Validate(d Duty) error {
	invalid := func(field, reason string) error {
		return generic.NewValidationError(generic.ErrInvalidDuty, field, reason)
	}

	if d.Kind == "" {
		return invalid("kind", "required")
	}
	if d.Report.IsZero() != d.Off.IsZero() {
		return invalid("off", "report and off must be given together")
	}
	if !d.Report.IsZero() && !d.Off.After(d.Report) {
		return invalid("off", "must be after report")
	}
	if d.Sectors < 0 {
		return invalid("sectors", "must not be negative")
	}
	if d.Standby.Start.IsZero() != d.Standby.End.IsZero() {
		return invalid("standby", "start and end must be given together")
	}
	if !d.Standby.Start.IsZero() && !d.Standby.End.After(d.Standby.Start) {
		return invalid("standby.end", "must be after start")
	}
	if d.Standby.Called && d.Standby.Start.IsZero() {
		return invalid("standby.called", "called without a standby window")
	}
	if d.Discretion.Minutes < 0 {
		return invalid("discretion", "must not be negative")
	}
	if d.SPS != 0 && (d.SPS < 1 || d.SPS > 7) {
		return invalid("sps", "must be between 1 and 7")
	}
	if d.Report.IsZero() && d.Standby.Start.IsZero() && d.Date.IsZero() {
		return invalid("date", "untimed entries need a date")
	}
	if d.Origin.IsEphemeral() {
		return invalid("origin", "simulated duties cannot be stored")
	}
	return nil
}
