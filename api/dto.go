/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. Instants travel as
  local "2006-01-02T15:04" strings in the configured zone (RFC3339 is also
  accepted on input); durations as minutes.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

TYPES:
  Duty:       DutyRequest, DutyDTO, LegalityResponse
  Rolling:    RollingResponse
  What-if:    WhatIfRequest, AssumptionDTO, WhatIfResponse
  Sleep:      SleepRequest, SleepDTO
  Scenarios:  ScenarioDTO, LoadScenarioRequest

VALIDATION:
  Request types carry validator/v10 tags checked by decodeAndValidate.
  Cross-field rules (report before off, standby ordering) stay in
  duty.Validate and fatigue.ValidateSleep.

SEE ALSO:
  - handlers.go: Uses these types
  - validate.go: Validator setup
*/
package api

import (
	"time"

	"github.com/warp/duty-engine/duty"
	"github.com/warp/duty-engine/fatigue"
	"github.com/warp/duty-engine/generic"
	"github.com/warp/duty-engine/whatif"
)

// =============================================================================
// DUTIES
// =============================================================================

// DutyRequest is the body of POST/PUT /api/duties and the draft of a what-if.
type DutyRequest struct {
	Kind       string          `json:"kind" validate:"required,oneof=FDP Standby 'Flight Watch' 'Home Reserve' Sick"`
	Date       string          `json:"date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Report     string          `json:"report,omitempty"`
	Off        string          `json:"off,omitempty"`
	Sectors    int             `json:"sectors" validate:"gte=0,lte=20"`
	Location   string          `json:"location,omitempty" validate:"omitempty,oneof=Home Away"`
	Discretion *DiscretionDTO  `json:"discretion,omitempty"`
	Standby    *StandbyRequest `json:"standby,omitempty"`
	SPS        int             `json:"sps,omitempty" validate:"omitempty,min=1,max=7"`
	Notes      string          `json:"notes,omitempty" validate:"max=2000"`
}

type DiscretionDTO struct {
	Minutes      int    `json:"minutes" validate:"gte=0"`
	Reason       string `json:"reason,omitempty" validate:"max=500"`
	AuthorisedBy string `json:"authorisedBy,omitempty" validate:"max=200"`
}

type StandbyRequest struct {
	Type   string `json:"type" validate:"required,oneof=Home Airport"`
	Start  string `json:"start" validate:"required"`
	End    string `json:"end" validate:"required"`
	Called bool   `json:"called"`
	Call   string `json:"call,omitempty"`
}

// toDuty parses instants in loc. The result still needs duty.Validate.
func (req DutyRequest) toDuty(id string, loc *time.Location) (duty.Duty, error) {
	d := duty.Duty{
		ID:       id,
		Kind:     duty.Kind(req.Kind),
		Sectors:  req.Sectors,
		Location: duty.Location(req.Location).Normalize(),
		SPS:      req.SPS,
		Notes:    req.Notes,
	}

	var err error
	if req.Date != "" {
		if d.Date, err = generic.ParseDay(req.Date); err != nil {
			return duty.Duty{}, generic.NewValidationError(generic.ErrInvalidDuty, "date", err.Error())
		}
	}
	if d.Report, err = parseField("report", req.Report, loc); err != nil {
		return duty.Duty{}, err
	}
	if d.Off, err = parseField("off", req.Off, loc); err != nil {
		return duty.Duty{}, err
	}
	if req.Discretion != nil {
		d.Discretion = duty.Discretion{
			Minutes:      generic.Minutes(req.Discretion.Minutes),
			Reason:       req.Discretion.Reason,
			AuthorisedBy: req.Discretion.AuthorisedBy,
		}
	}
	if sb := req.Standby; sb != nil {
		d.Standby.Type = duty.StandbyType(sb.Type)
		d.Standby.Called = sb.Called
		if d.Standby.Start, err = parseField("standby.start", sb.Start, loc); err != nil {
			return duty.Duty{}, err
		}
		if d.Standby.End, err = parseField("standby.end", sb.End, loc); err != nil {
			return duty.Duty{}, err
		}
		if d.Standby.Call, err = parseField("standby.call", sb.Call, loc); err != nil {
			return duty.Duty{}, err
		}
	}
	if d.Date.IsZero() && !d.Start().IsZero() {
		d.Date = generic.DayOf(d.Start(), loc)
	}
	return d, nil
}

func parseField(field, value string, loc *time.Location) (time.Time, error) {
	t, err := generic.ParseInstant(value, loc)
	if err != nil {
		return time.Time{}, generic.NewValidationError(generic.ErrInvalidInstant, field, "want YYYY-MM-DDTHH:MM")
	}
	return t, nil
}

// DutyDTO represents a duty in API responses.
type DutyDTO struct {
	ID         string          `json:"id"`
	Origin     string          `json:"origin,omitempty"`
	Kind       string          `json:"kind"`
	Date       string          `json:"date,omitempty"`
	Report     string          `json:"report,omitempty"`
	Off        string          `json:"off,omitempty"`
	Minutes    generic.Minutes `json:"minutes"`
	Duration   string          `json:"duration"`
	Sectors    int             `json:"sectors"`
	Location   string          `json:"location"`
	Discretion *DiscretionDTO  `json:"discretion,omitempty"`
	Standby    *StandbyDTO     `json:"standby,omitempty"`
	SPS        int             `json:"sps,omitempty"`
	Notes      string          `json:"notes,omitempty"`
}

type StandbyDTO struct {
	Type         string `json:"type"`
	Start        string `json:"start"`
	End          string `json:"end"`
	Called       bool   `json:"called"`
	Call         string `json:"call,omitempty"`
	EffectiveEnd string `json:"effectiveEnd"`
}

func toDutyDTO(d duty.Duty, loc *time.Location) DutyDTO {
	in := func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return generic.FormatInstant(t.In(loc))
	}
	span := generic.NewInterval(d.Start(), d.End()).Minutes()
	dto := DutyDTO{
		ID:       d.ID,
		Kind:     string(d.Kind),
		Report:   in(d.Report),
		Off:      in(d.Off),
		Minutes:  span,
		Duration: span.HM(),
		Sectors:  d.Sectors,
		Location: string(d.Location.Normalize()),
		SPS:      d.SPS,
		Notes:    d.Notes,
	}
	if d.Origin.IsEphemeral() {
		dto.Origin = d.Origin.String()
	}
	if !d.Date.IsZero() {
		dto.Date = d.Date.String()
	}
	if d.Discretion.Minutes > 0 || d.Discretion.Reason != "" {
		dto.Discretion = &DiscretionDTO{
			Minutes:      int(d.Discretion.Minutes),
			Reason:       d.Discretion.Reason,
			AuthorisedBy: d.Discretion.AuthorisedBy,
		}
	}
	if d.HasStandby() {
		dto.Standby = &StandbyDTO{
			Type:         string(d.Standby.Type),
			Start:        in(d.Standby.Start),
			End:          in(d.Standby.End),
			Called:       d.Standby.Called,
			Call:         in(d.Standby.Call),
			EffectiveEnd: in(d.EffectiveStandbyEnd()),
		}
	}
	return dto
}

func toDutyDTOs(ds []duty.Duty, loc *time.Location) []DutyDTO {
	out := make([]DutyDTO, len(ds))
	for i, d := range ds {
		out[i] = toDutyDTO(d, loc)
	}
	return out
}

// =============================================================================
// ASSESSMENTS
// =============================================================================

// RollingResponse is the rolling picture at an anchor instant.
type RollingResponse struct {
	Anchor   string           `json:"anchor"`
	Snapshot duty.Snapshot    `json:"snapshot"`
	Findings generic.Findings `json:"findings"`
}

type TriggerDTO struct {
	CumulativeHours string `json:"cumulativeHours"`
	RequiredRest    string `json:"requiredRest"`
	ActualRest      string `json:"actualRest"`
	Severity        string `json:"severity"`
}

type FatigueDTO struct {
	fatigue.Assessment
	Severity string `json:"severity"`
}

// LegalityResponse is everything the engine says about one duty.
type LegalityResponse struct {
	Duty       DutyDTO          `json:"duty"`
	PreviousID string           `json:"previousId,omitempty"`
	Badges     generic.Findings `json:"badges"`
	Notes      []string         `json:"notes"`
	Disruptive []string         `json:"disruptive"`
	Trigger    *TriggerDTO      `json:"trigger,omitempty"`
	Rolling    RollingResponse  `json:"rolling"`
	Flags      generic.Findings `json:"flags"`
	Fatigue    *FatigueDTO      `json:"fatigue,omitempty"`
}

func toLegalityResponse(r duty.Rules, a duty.Assessment, fa *fatigue.Assessment) LegalityResponse {
	loc := r.Location()
	resp := LegalityResponse{
		Duty:       toDutyDTO(a.Duty, loc),
		Badges:     nonNil(a.Legality.Badges),
		Notes:      a.Legality.Notes,
		Disruptive: a.Disruption.Tags(),
		Rolling:    toRollingResponse(a.Rolling, a.RollingFindings, loc),
		Flags:      nonNil(r.FlagsForDuty(a)),
	}
	if resp.Notes == nil {
		resp.Notes = []string{}
	}
	if resp.Disruptive == nil {
		resp.Disruptive = []string{}
	}
	if a.Previous != nil {
		resp.PreviousID = a.Previous.ID
	}
	if t := a.Trigger; t != nil {
		resp.Trigger = &TriggerDTO{
			CumulativeHours: t.Cumulative.Hours().StringFixed(1),
			RequiredRest:    t.RequiredRest.HM(),
			ActualRest:      t.ActualRest.HM(),
			Severity:        string(t.Finding.Severity),
		}
	}
	if fa != nil {
		resp.Fatigue = &FatigueDTO{Assessment: *fa, Severity: string(fa.Band.Severity())}
	}
	return resp
}

func toRollingResponse(s duty.Snapshot, fs generic.Findings, loc *time.Location) RollingResponse {
	anchor := ""
	if !s.Anchor.IsZero() {
		anchor = generic.FormatInstant(s.Anchor.In(loc))
	}
	return RollingResponse{Anchor: anchor, Snapshot: s, Findings: nonNil(fs)}
}

func nonNil(fs generic.Findings) generic.Findings {
	if fs == nil {
		return generic.Findings{}
	}
	return fs
}

// =============================================================================
// WHAT-IF
// =============================================================================

type WhatIfRequest struct {
	Draft       DutyRequest     `json:"draft"`
	Assumptions []AssumptionDTO `json:"assumptions,omitempty" validate:"max=14,dive"`
}

type AssumptionDTO struct {
	Kind        string `json:"kind" validate:"required,oneof=work standby off"`
	OffsetDays  int    `json:"offsetDays" validate:"min=1,max=28"`
	Start       string `json:"start,omitempty" validate:"required_unless=Kind off"`
	Minutes     int    `json:"minutes,omitempty" validate:"required_unless=Kind off,gte=0"`
	Sectors     int    `json:"sectors,omitempty" validate:"gte=0"`
	StandbyType string `json:"standbyType,omitempty" validate:"omitempty,oneof=Home Airport"`
	Location    string `json:"location,omitempty" validate:"omitempty,oneof=Home Away"`
}

func (a AssumptionDTO) toAssumption() (whatif.Assumption, error) {
	out := whatif.Assumption{
		Kind:        whatif.AssumptionKind(a.Kind),
		OffsetDays:  a.OffsetDays,
		Duration:    generic.Minutes(a.Minutes),
		Sectors:     a.Sectors,
		StandbyType: duty.StandbyType(a.StandbyType),
		Location:    duty.Location(a.Location),
	}
	if a.Start != "" {
		tod, err := generic.ParseTimeOfDay(a.Start)
		if err != nil {
			return whatif.Assumption{}, generic.NewValidationError(generic.ErrInvalidDuty, "assumptions.start", "want HH:MM")
		}
		out.Start = tod
	}
	return out, out.Validate()
}

type WhatIfResponse struct {
	LegalityResponse
	Ghosts []DutyDTO `json:"ghosts"`
	Hidden []string  `json:"hidden"`
}

// =============================================================================
// SLEEP / SETTINGS
// =============================================================================

type SleepRequest struct {
	Start   string `json:"start" validate:"required"`
	End     string `json:"end" validate:"required"`
	Type    string `json:"type" validate:"required,oneof=main nap"`
	Quality int    `json:"quality" validate:"min=1,max=5"`
}

type SleepDTO struct {
	ID      string `json:"id"`
	Start   string `json:"start"`
	End     string `json:"end"`
	Type    string `json:"type"`
	Quality int    `json:"quality"`
	Hours   string `json:"hours"`
}

func (req SleepRequest) toSleep(id string, loc *time.Location) (fatigue.SleepEntry, error) {
	e := fatigue.SleepEntry{ID: id, Type: fatigue.SleepType(req.Type), Quality: req.Quality}
	var err error
	if e.Start, err = parseField("start", req.Start, loc); err != nil {
		return fatigue.SleepEntry{}, err
	}
	if e.End, err = parseField("end", req.End, loc); err != nil {
		return fatigue.SleepEntry{}, err
	}
	return e, fatigue.ValidateSleep(e)
}

func toSleepDTO(e fatigue.SleepEntry, loc *time.Location) SleepDTO {
	return SleepDTO{
		ID:      e.ID,
		Start:   generic.FormatInstant(e.Start.In(loc)),
		End:     generic.FormatInstant(e.End.In(loc)),
		Type:    string(e.Type),
		Quality: e.Quality,
		Hours:   e.Interval().Minutes().Hours().StringFixed(1),
	}
}

// SettingsRequest mirrors fatigue.Settings with validation tags.
type SettingsRequest struct {
	Chronotype string `json:"chronotype" validate:"required,oneof=early neutral late"`
	Bands      struct {
		Good     int `json:"good" validate:"min=0,max=100,gtfield=Caution"`
		Caution  int `json:"caution" validate:"min=0,max=100,gtfield=Elevated"`
		Elevated int `json:"elevated" validate:"min=0,max=100"`
	} `json:"bands"`
	Theme string `json:"theme,omitempty" validate:"omitempty,oneof=light dark system"`
}

func (s SettingsRequest) toSettings() fatigue.Settings {
	return fatigue.Settings{
		Chronotype: fatigue.Chronotype(s.Chronotype),
		Bands: fatigue.Bands{
			Good:     s.Bands.Good,
			Caution:  s.Bands.Caution,
			Elevated: s.Bands.Elevated,
		},
		Theme: s.Theme,
	}
}

// =============================================================================
// SCENARIOS / ERRORS
// =============================================================================

type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id" validate:"required"`
}

// ErrorResponse is returned for all errors.
type ErrorResponse struct {
	Error   string            `json:"error"`
	Details string            `json:"details,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}
