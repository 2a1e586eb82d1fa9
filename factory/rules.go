/*
Package factory provides JSON to Go rules conversion.

PURPOSE:
  Converts a JSON rules document into duty.Rules. The FDP table and every
  threshold are data, so an operator-manual revision is a document change,
  not a code change.

JSON SCHEMA:
  {
    "zone": "Africa/Johannesburg",
    "fdp": {
      "margin": "0:30",
      "bands": [
        {"start": "05:00", "end": "06:59",
         "limits": ["13:00","12:15","11:30","10:45","10:00","9:15","9:00","9:00"]}
      ]
    },
    "rest": {"home": "12:00", "away_local_night": "10:00", ...},
    "disruptive": {"early_start": ["05:00","05:59"], ...},
    "standby": {"cap": "12:00", "caution": "11:00", ...},
    "cumulative": {"max_7d": "60:00", "consecutive_hard": 7, ...}
  }

  Durations are "H:MM" (hours may exceed 23). Omitted sections keep the
  defaults of duty.DefaultRules.

USAGE:
  f := factory.NewRulesFactory()
  rules, err := f.ParseRules(jsonString)
  rules, err = f.Default()

SEE ALSO:
  - duty/rules.go: Rules type definition
  - default_rules.json: The embedded acclimatised two-pilot document
*/
package factory

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/warp/duty-engine/duty"
	"github.com/warp/duty-engine/generic"
)

//go:embed default_rules.json
var defaultRulesJSON string

// DefaultRulesJSON returns the embedded default rules document.
func DefaultRulesJSON() string { return defaultRulesJSON }

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// RulesJSON is the JSON representation of a rule set.
type RulesJSON struct {
	Zone       string          `json:"zone,omitempty"`
	FDP        *FDPJSON        `json:"fdp,omitempty"`
	Rest       *RestJSON       `json:"rest,omitempty"`
	Disruptive *DisruptiveJSON `json:"disruptive,omitempty"`
	Standby    *StandbyJSON    `json:"standby,omitempty"`
	Cumulative *CumulativeJSON `json:"cumulative,omitempty"`
}

type FDPJSON struct {
	Margin            string     `json:"margin,omitempty"`
	DiscretionCaution string     `json:"discretion_caution,omitempty"`
	Bands             []BandJSON `json:"bands,omitempty"`
}

// BandJSON is one report-time band with its per-sector limits.
type BandJSON struct {
	Start  string   `json:"start"`
	End    string   `json:"end"`
	Limits []string `json:"limits"`
}

type RestJSON struct {
	Home             string `json:"home,omitempty"`
	AwayLocalNight   string `json:"away_local_night,omitempty"`
	AwayNoLocalNight string `json:"away_no_local_night,omitempty"`
	AwayOutsideNight string `json:"away_outside_night,omitempty"`
	NightStart       string `json:"night_start,omitempty"`
	NightEnd         string `json:"night_end,omitempty"`
	BadShortfall     string `json:"bad_shortfall,omitempty"`
}

// DisruptiveJSON holds [from, to] time-of-day pairs.
type DisruptiveJSON struct {
	EarlyStart []string `json:"early_start,omitempty"`
	LateFinish []string `json:"late_finish,omitempty"`
	Night      []string `json:"night,omitempty"`
}

type StandbyJSON struct {
	Cap            string `json:"cap,omitempty"`
	Caution        string `json:"caution,omitempty"`
	CombinedCap    string `json:"combined_cap,omitempty"`
	CombinedMargin string `json:"combined_margin,omitempty"`
}

type CumulativeJSON struct {
	Max7Day            string `json:"max_7d,omitempty"`
	Max7DayMargin      string `json:"max_7d_margin,omitempty"`
	AvgWeeklyMax       string `json:"avg_weekly_max,omitempty"`
	AvgWeeklyMargin    string `json:"avg_weekly_margin,omitempty"`
	TriggerThreshold   string `json:"trigger_threshold,omitempty"`
	TriggerRest        string `json:"trigger_rest,omitempty"`
	TriggerMargin      string `json:"trigger_margin,omitempty"`
	ConsecutiveSoft    int    `json:"consecutive_soft,omitempty"`
	ConsecutiveHard    int    `json:"consecutive_hard,omitempty"`
	ConsecutiveScanCap int    `json:"consecutive_scan_cap,omitempty"`
	MinOffIn28         int    `json:"min_off_in_28,omitempty"`
	MinAvgOffPer28     int    `json:"min_avg_off_per_28,omitempty"`
}

// =============================================================================
// RULES FACTORY
// =============================================================================

// RulesFactory converts JSON rules documents to duty.Rules.
type RulesFactory struct{}

func NewRulesFactory() *RulesFactory {
	return &RulesFactory{}
}

// Default parses the embedded document.
func (f *RulesFactory) Default() (duty.Rules, error) {
	return f.ParseRules(defaultRulesJSON)
}

// ParseRules parses a JSON string into duty.Rules.
func (f *RulesFactory) ParseRules(jsonStr string) (duty.Rules, error) {
	var rj RulesJSON
	if err := json.Unmarshal([]byte(jsonStr), &rj); err != nil {
		return duty.Rules{}, fmt.Errorf("%w: failed to parse rules JSON: %v", generic.ErrInvalidRules, err)
	}
	return f.FromJSON(rj)
}

// FromJSON overlays rj on duty.DefaultRules.
func (f *RulesFactory) FromJSON(rj RulesJSON) (duty.Rules, error) {
	rules := duty.DefaultRules()
	p := &parser{}

	if rj.Zone != "" {
		loc, err := time.LoadLocation(rj.Zone)
		if err != nil {
			return duty.Rules{}, fmt.Errorf("%w: zone %q: %v", generic.ErrInvalidRules, rj.Zone, err)
		}
		rules.Zone = loc
	}

	if fj := rj.FDP; fj != nil {
		p.minutes(&rules.FDPMargin, "fdp.margin", fj.Margin)
		p.minutes(&rules.DiscretionCaution, "fdp.discretion_caution", fj.DiscretionCaution)
		if len(fj.Bands) > 0 {
			rules.FDP = p.table(fj.Bands)
		}
	}

	if r := rj.Rest; r != nil {
		p.minutes(&rules.Rest.Home, "rest.home", r.Home)
		p.minutes(&rules.Rest.AwayLocalNight, "rest.away_local_night", r.AwayLocalNight)
		p.minutes(&rules.Rest.AwayNoLocalNight, "rest.away_no_local_night", r.AwayNoLocalNight)
		p.minutes(&rules.Rest.AwayOutsideNight, "rest.away_outside_night", r.AwayOutsideNight)
		p.timeOfDay(&rules.Rest.NightStart, "rest.night_start", r.NightStart)
		p.timeOfDay(&rules.Rest.NightEnd, "rest.night_end", r.NightEnd)
		p.minutes(&rules.Rest.BadShortfall, "rest.bad_shortfall", r.BadShortfall)
	}

	if d := rj.Disruptive; d != nil {
		p.band(&rules.Disruptive.EarlyStartFrom, &rules.Disruptive.EarlyStartTo, "disruptive.early_start", d.EarlyStart)
		p.band(&rules.Disruptive.LateFinishFrom, &rules.Disruptive.LateFinishTo, "disruptive.late_finish", d.LateFinish)
		p.band(&rules.Disruptive.NightFrom, &rules.Disruptive.NightTo, "disruptive.night", d.Night)
	}

	if s := rj.Standby; s != nil {
		p.minutes(&rules.Standby.Cap, "standby.cap", s.Cap)
		p.minutes(&rules.Standby.Caution, "standby.caution", s.Caution)
		p.minutes(&rules.Standby.CombinedCap, "standby.combined_cap", s.CombinedCap)
		p.minutes(&rules.Standby.CombinedMargin, "standby.combined_margin", s.CombinedMargin)
	}

	if c := rj.Cumulative; c != nil {
		cr := &rules.Cumulative
		p.minutes(&cr.Max7Day, "cumulative.max_7d", c.Max7Day)
		p.minutes(&cr.Max7DayMargin, "cumulative.max_7d_margin", c.Max7DayMargin)
		p.minutes(&cr.AvgWeeklyMax, "cumulative.avg_weekly_max", c.AvgWeeklyMax)
		p.minutes(&cr.AvgWeeklyMargin, "cumulative.avg_weekly_margin", c.AvgWeeklyMargin)
		p.minutes(&cr.TriggerThreshold, "cumulative.trigger_threshold", c.TriggerThreshold)
		p.minutes(&cr.TriggerRest, "cumulative.trigger_rest", c.TriggerRest)
		p.minutes(&cr.TriggerMargin, "cumulative.trigger_margin", c.TriggerMargin)
		setInt(&cr.ConsecutiveSoft, c.ConsecutiveSoft)
		setInt(&cr.ConsecutiveHard, c.ConsecutiveHard)
		setInt(&cr.ConsecutiveScanCap, c.ConsecutiveScanCap)
		setInt(&cr.MinOffIn28, c.MinOffIn28)
		setInt(&cr.MinAvgOffPer28, c.MinAvgOffPer28)
	}

	if p.err != nil {
		return duty.Rules{}, p.err
	}
	if err := validate(rules); err != nil {
		return duty.Rules{}, err
	}
	return rules, nil
}

// ToJSON converts rules back to their document form.
func (f *RulesFactory) ToJSON(r duty.Rules) RulesJSON {
	hm := func(m generic.Minutes) string { return m.HM() }
	bands := make([]BandJSON, 0, len(r.FDP))
	for _, b := range r.FDP {
		bj := BandJSON{Start: b.Start.String(), End: b.End.String()}
		for _, l := range b.Limits {
			bj.Limits = append(bj.Limits, hm(l))
		}
		bands = append(bands, bj)
	}
	c := r.Cumulative
	return RulesJSON{
		Zone: r.Location().String(),
		FDP:  &FDPJSON{Margin: hm(r.FDPMargin), DiscretionCaution: hm(r.DiscretionCaution), Bands: bands},
		Rest: &RestJSON{
			Home: hm(r.Rest.Home), AwayLocalNight: hm(r.Rest.AwayLocalNight),
			AwayNoLocalNight: hm(r.Rest.AwayNoLocalNight), AwayOutsideNight: hm(r.Rest.AwayOutsideNight),
			NightStart: r.Rest.NightStart.String(), NightEnd: r.Rest.NightEnd.String(),
			BadShortfall: hm(r.Rest.BadShortfall),
		},
		Disruptive: &DisruptiveJSON{
			EarlyStart: []string{r.Disruptive.EarlyStartFrom.String(), r.Disruptive.EarlyStartTo.String()},
			LateFinish: []string{r.Disruptive.LateFinishFrom.String(), r.Disruptive.LateFinishTo.String()},
			Night:      []string{r.Disruptive.NightFrom.String(), r.Disruptive.NightTo.String()},
		},
		Standby: &StandbyJSON{
			Cap: hm(r.Standby.Cap), Caution: hm(r.Standby.Caution),
			CombinedCap: hm(r.Standby.CombinedCap), CombinedMargin: hm(r.Standby.CombinedMargin),
		},
		Cumulative: &CumulativeJSON{
			Max7Day: hm(c.Max7Day), Max7DayMargin: hm(c.Max7DayMargin),
			AvgWeeklyMax: hm(c.AvgWeeklyMax), AvgWeeklyMargin: hm(c.AvgWeeklyMargin),
			TriggerThreshold: hm(c.TriggerThreshold), TriggerRest: hm(c.TriggerRest), TriggerMargin: hm(c.TriggerMargin),
			ConsecutiveSoft: c.ConsecutiveSoft, ConsecutiveHard: c.ConsecutiveHard, ConsecutiveScanCap: c.ConsecutiveScanCap,
			MinOffIn28: c.MinOffIn28, MinAvgOffPer28: c.MinAvgOffPer28,
		},
	}
}

// =============================================================================
// PARSING HELPERS
// =============================================================================

// parser keeps the first error so FromJSON reads as a flat list of fields.
type parser struct {
	err error
}

func (p *parser) fail(field, reason string) {
	if p.err == nil {
		p.err = generic.NewValidationError(generic.ErrInvalidRules, field, reason)
	}
}

// ParseDuration reads "H:MM" where H may exceed 23.
func ParseDuration(s string) (generic.Minutes, error) {
	var h, m int
	if _, err := fmt.Sscanf(strings.TrimSpace(s), "%d:%d", &h, &m); err != nil || h < 0 || m < 0 || m > 59 {
		return 0, fmt.Errorf("%w: duration %q", generic.ErrInvalidRules, s)
	}
	return generic.Minutes(h*60 + m), nil
}

func (p *parser) minutes(dst *generic.Minutes, field, s string) {
	if s == "" {
		return
	}
	m, err := ParseDuration(s)
	if err != nil {
		p.fail(field, "want H:MM")
		return
	}
	*dst = m
}

func (p *parser) timeOfDay(dst *generic.TimeOfDay, field, s string) {
	if s == "" {
		return
	}
	t, err := generic.ParseTimeOfDay(s)
	if err != nil {
		p.fail(field, "want HH:MM")
		return
	}
	*dst = t
}

func (p *parser) band(from, to *generic.TimeOfDay, field string, pair []string) {
	if len(pair) == 0 {
		return
	}
	if len(pair) != 2 {
		p.fail(field, "want [from, to]")
		return
	}
	p.timeOfDay(from, field, pair[0])
	p.timeOfDay(to, field, pair[1])
}

func (p *parser) table(bands []BandJSON) duty.FDPTable {
	table := make(duty.FDPTable, 0, len(bands))
	for i, bj := range bands {
		field := fmt.Sprintf("fdp.bands[%d]", i)
		if len(bj.Limits) != duty.MaxSectors {
			p.fail(field, fmt.Sprintf("want %d limits, got %d", duty.MaxSectors, len(bj.Limits)))
			continue
		}
		var b duty.FDPBand
		p.timeOfDay(&b.Start, field+".start", bj.Start)
		p.timeOfDay(&b.End, field+".end", bj.End)
		for j, l := range bj.Limits {
			p.minutes(&b.Limits[j], fmt.Sprintf("%s.limits[%d]", field, j), l)
		}
		table = append(table, b)
	}
	return table
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func validate(r duty.Rules) error {
	invalid := func(field, reason string) error {
		return generic.NewValidationError(generic.ErrInvalidRules, field, reason)
	}
	for i, b := range r.FDP {
		for j := 1; j < duty.MaxSectors; j++ {
			if b.Limits[j] > b.Limits[j-1] {
				return invalid(fmt.Sprintf("fdp.bands[%d].limits", i), "must not increase with sectors")
			}
		}
	}
	if r.Standby.Caution > r.Standby.Cap {
		return invalid("standby.caution", "must not exceed cap")
	}
	if r.Cumulative.ConsecutiveSoft > r.Cumulative.ConsecutiveHard {
		return invalid("cumulative.consecutive_soft", "must not exceed consecutive_hard")
	}
	return nil
}
