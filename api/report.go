package api

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/warp/duty-engine/duty"
	"github.com/warp/duty-engine/fatigue"
	"github.com/warp/duty-engine/generic"
)

// LogDocument is a whole log in one JSON file, as read by "dutyengine check".
// Instants use the same local format as the HTTP API.
type LogDocument struct {
	Duties   []DutyRequest    `json:"duties" validate:"dive"`
	Sleep    []SleepRequest   `json:"sleep,omitempty" validate:"dive"`
	Settings *SettingsRequest `json:"settings,omitempty"`
}

// ParseLog reads and validates a LogDocument. Duties and sleep entries get
// positional IDs ("duty-1", "sleep-1").
func ParseLog(r io.Reader, loc *time.Location) ([]duty.Duty, []fatigue.SleepEntry, fatigue.Settings, error) {
	var doc LogDocument
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, nil, fatigue.Settings{}, fmt.Errorf("%w: %v", errMalformedBody, err)
	}
	if err := requestValidator.Struct(&doc); err != nil {
		return nil, nil, fatigue.Settings{}, err
	}

	duties := make([]duty.Duty, 0, len(doc.Duties))
	for i, req := range doc.Duties {
		d, err := req.toDuty(fmt.Sprintf("duty-%d", i+1), loc)
		if err == nil {
			err = duty.Validate(d)
		}
		if err != nil {
			return nil, nil, fatigue.Settings{}, fmt.Errorf("duties[%d]: %w", i, err)
		}
		duties = append(duties, d)
	}

	sleep := make([]fatigue.SleepEntry, 0, len(doc.Sleep))
	for i, req := range doc.Sleep {
		e, err := req.toSleep(fmt.Sprintf("sleep-%d", i+1), loc)
		if err != nil {
			return nil, nil, fatigue.Settings{}, fmt.Errorf("sleep[%d]: %w", i, err)
		}
		sleep = append(sleep, e)
	}

	settings := fatigue.DefaultSettings()
	if doc.Settings != nil {
		settings = doc.Settings.toSettings()
		if err := fatigue.ValidateSettings(settings); err != nil {
			return nil, nil, fatigue.Settings{}, err
		}
	}
	return duties, sleep, settings, nil
}

// CheckReport is the full evaluation of a log: every duty newest first and
// the rolling picture at one instant.
type CheckReport struct {
	At      string             `json:"at"`
	Duties  []LegalityResponse `json:"duties"`
	Rolling RollingResponse    `json:"rolling"`
}

// Worst is the most severe badge or rolling finding in the report.
func (c CheckReport) Worst() generic.Severity {
	worst := c.Rolling.Findings.Worst()
	for _, d := range c.Duties {
		worst = worst.Worse(d.Badges.Worst())
	}
	return worst
}

// BuildCheckReport evaluates every duty against its predecessor, scores
// fatigue where sleep allows, and grades the rolling picture at at.
func BuildCheckReport(rules duty.Rules, duties []duty.Duty, sleep []fatigue.SleepEntry, settings fatigue.Settings, at time.Time) CheckReport {
	loc := rules.Location()
	scorer := fatigue.NewScorer(loc, settings)

	sorted := duty.SortNewestFirst(duties, loc)
	report := CheckReport{
		At:     generic.FormatInstant(at.In(loc)),
		Duties: make([]LegalityResponse, 0, len(sorted)),
	}
	for i, d := range sorted {
		a := rules.Assess(sorted, d, duty.Previous(sorted, i))
		var fa *fatigue.Assessment
		if s, ok := scorer.Assess(sleep, d); ok {
			fa = &s
		}
		report.Duties = append(report.Duties, toLegalityResponse(rules, a, fa))
	}

	snap := rules.Rolling(duties, at)
	report.Rolling = toRollingResponse(snap, rules.RollingFindings(snap), loc)
	return report
}
