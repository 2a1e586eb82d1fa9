/*
Package fatigue implements the advisory fatigue score for a duty.

PURPOSE:
  The score is a heuristic, not a regulatory limit. It combines the sleep
  logged before report, the hours awake at the end of the duty day, exposure
  to the circadian low and the crew member's own rating into one number
  between 0 and 100, labelled with the band thresholds from Settings.

KEY CONCEPTS:
  - SleepEntry:  A logged sleep period (main sleep or nap)
  - Chronotype:  Early / neutral / late; shifts bedtime and the circadian low
  - Settings:    Chronotype plus score band thresholds, one immutable value
  - Scorer:      Zone + Settings; computes inputs, score, band and chips

SEE ALSO:
  - score.go: The scoring formula
  - duty/legality.go: The regulatory side of a duty's assessment
*/
package fatigue

import (
	"context"
	"time"

	"github.com/warp/duty-engine/generic"
)

// =============================================================================
// SLEEP
// =============================================================================

type SleepType string

const (
	SleepMain SleepType = "main"
	SleepNap  SleepType = "nap"
)

type SleepEntry struct {
	ID      string
	Start   time.Time
	End     time.Time
	Type    SleepType
	Quality int // 1-5
}

func (s SleepEntry) Interval() generic.Interval { return generic.NewInterval(s.Start, s.End) }

// ValidateSleep checks an entry before it is stored.
func ValidateSleep(s SleepEntry) error {
	invalid := func(field, reason string) error {
		return generic.NewValidationError(generic.ErrInvalidSleep, field, reason)
	}
	if s.Start.IsZero() || s.End.IsZero() {
		return invalid("start", "start and end are required")
	}
	if !s.End.After(s.Start) {
		return invalid("end", "must be after start")
	}
	if s.Type != SleepMain && s.Type != SleepNap {
		return invalid("type", "must be main or nap")
	}
	if s.Quality < 1 || s.Quality > 5 {
		return invalid("quality", "must be between 1 and 5")
	}
	return nil
}

// =============================================================================
// CHRONOTYPE
// =============================================================================

type Chronotype string

const (
	ChronotypeEarly   Chronotype = "early"
	ChronotypeNeutral Chronotype = "neutral"
	ChronotypeLate    Chronotype = "late"
)

// Shift moves the circadian low: earlier for early types, later for late ones.
func (c Chronotype) Shift() time.Duration {
	switch c {
	case ChronotypeEarly:
		return -30 * time.Minute
	case ChronotypeLate:
		return 30 * time.Minute
	default:
		return 0
	}
}

// Bedtime is the assumed local bedtime.
func (c Chronotype) Bedtime() generic.TimeOfDay {
	switch c {
	case ChronotypeEarly:
		return generic.NewTimeOfDay(21, 30)
	case ChronotypeLate:
		return generic.NewTimeOfDay(23, 30)
	default:
		return generic.NewTimeOfDay(22, 30)
	}
}

func (c Chronotype) Known() bool {
	return c == ChronotypeEarly || c == ChronotypeNeutral || c == ChronotypeLate
}

// =============================================================================
// SETTINGS / BANDS
// =============================================================================

type Band string

const (
	BandGood     Band = "Good"
	BandCaution  Band = "Caution"
	BandElevated Band = "Elevated"
	BandHigh     Band = "High"
)

// Bands are descending score thresholds. A score at or above Good is Good,
// at or above Caution is Caution, at or above Elevated is Elevated, and High
// below that.
type Bands struct {
	Good     int `json:"good"`
	Caution  int `json:"caution"`
	Elevated int `json:"elevated"`
}

func (b Bands) Label(score int) Band {
	switch {
	case score >= b.Good:
		return BandGood
	case score >= b.Caution:
		return BandCaution
	case score >= b.Elevated:
		return BandElevated
	default:
		return BandHigh
	}
}

// Severity maps a band onto the badge vocabulary.
func (b Band) Severity() generic.Severity {
	switch b {
	case BandGood:
		return generic.SeverityOK
	case BandCaution:
		return generic.SeverityWarn
	default:
		return generic.SeverityBad
	}
}

type Settings struct {
	Chronotype Chronotype `json:"chronotype"`
	Bands      Bands      `json:"bands"`
	Theme      string     `json:"theme,omitempty"`
}

func DefaultSettings() Settings {
	return Settings{
		Chronotype: ChronotypeNeutral,
		Bands:      Bands{Good: 80, Caution: 60, Elevated: 45},
	}
}

// ValidateSettings requires a known chronotype and strictly descending bands
// within [0, 100].
func ValidateSettings(s Settings) error {
	invalid := func(field, reason string) error {
		return generic.NewValidationError(generic.ErrInvalidSettings, field, reason)
	}
	if !s.Chronotype.Known() {
		return invalid("chronotype", "must be early, neutral or late")
	}
	b := s.Bands
	if b.Good > 100 || b.Elevated < 0 || !(b.Good > b.Caution && b.Caution > b.Elevated) {
		return invalid("bands", "must descend good > caution > elevated within 0-100")
	}
	return nil
}

// =============================================================================
// STORE
// =============================================================================

// Store persists sleep entries and the settings singleton.
type Store interface {
	SaveSleep(ctx context.Context, s SleepEntry) error
	ListSleep(ctx context.Context) ([]SleepEntry, error)
	DeleteSleep(ctx context.Context, id string) error
	LoadSettings(ctx context.Context) (Settings, error)
	SaveSettings(ctx context.Context, s Settings) error
}
