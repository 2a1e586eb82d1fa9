package fatigue

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/duty-engine/duty"
	"github.com/warp/duty-engine/generic"
)

var (
	defaultWake = generic.NewTimeOfDay(7, 0)
	woclStart   = generic.NewTimeOfDay(2, 0)
	woclEnd     = generic.NewTimeOfDay(6, 0)
)

// Inputs are the measured and estimated quantities the score is built from.
// Hour figures are rounded to one decimal place.
type Inputs struct {
	Sleep24        decimal.Decimal `json:"sleep24"`
	Sleep48        decimal.Decimal `json:"sleep48"`
	LastWake       time.Time       `json:"lastWake"`
	WakeEstimated  bool            `json:"wakeEstimated"`
	AwakeAtReport  decimal.Decimal `json:"awakeAtReport"`
	AwakeAtOff     decimal.Decimal `json:"awakeAtOff"`
	UntilNextSleep decimal.Decimal `json:"untilNextSleep"`
	PeakAwake      decimal.Decimal `json:"peakAwake"`
	WOCL           generic.Minutes `json:"woclMinutes"`
	SPS            int             `json:"sps,omitempty"`
}

// Assessment is the fatigue view of one duty.
type Assessment struct {
	Inputs
	Score int      `json:"score"`
	Band  Band     `json:"band"`
	Chips []string `json:"chips"`
}

type Scorer struct {
	Zone     *time.Location
	Settings Settings
}

func NewScorer(zone *time.Location, settings Settings) Scorer {
	if zone == nil {
		zone = time.UTC
	}
	return Scorer{Zone: zone, Settings: settings}
}

// =============================================================================
// MEASUREMENTS
// =============================================================================

func hours(d time.Duration) decimal.Decimal {
	if d < 0 {
		d = 0
	}
	return decimal.NewFromFloat(d.Hours()).Round(1)
}

// SleepBefore sums sleep overlapping the 24h and 48h before report, and finds
// the last wake at or before report. Without one, wake is estimated at 07:00
// local on the report's day, or the day before if that is after report.
func (s Scorer) SleepBefore(sleep []SleepEntry, report time.Time) (s24, s48 decimal.Decimal, wake time.Time, estimated bool) {
	w24, w48 := generic.Trailing(report, 1), generic.Trailing(report, 2)
	var d24, d48 time.Duration
	for _, e := range sleep {
		iv := e.Interval()
		if !iv.Valid() {
			continue
		}
		d24 += w24.Overlap(iv)
		d48 += w48.Overlap(iv)
		if !e.End.After(report) && e.End.After(wake) {
			wake = e.End
		}
	}
	if wake.IsZero() {
		day := generic.DayOf(report, s.Zone)
		wake = day.At(s.Zone, defaultWake)
		if wake.After(report) {
			wake = day.AddDays(-1).At(s.Zone, defaultWake)
		}
		estimated = true
	}
	return hours(d24), hours(d48), wake, estimated
}

// NextSleep estimates when sleep follows an off: the chronotype's bedtime on
// or after the off.
func (s Scorer) NextSleep(off time.Time) time.Time {
	day := generic.DayOf(off, s.Zone)
	bed := day.At(s.Zone, s.Settings.Chronotype.Bedtime())
	if bed.Before(off) {
		bed = day.AddDays(1).At(s.Zone, s.Settings.Chronotype.Bedtime())
	}
	return bed
}

// WOCLOverlap is the duty's overlap with the chronotype-shifted circadian low,
// checked on the local days of both report and off.
func (s Scorer) WOCLOverlap(report, off time.Time) generic.Minutes {
	period := generic.NewInterval(report, off)
	if !period.Valid() {
		return 0
	}
	shift := s.Settings.Chronotype.Shift()
	seen := make(map[generic.Day]bool)
	var total time.Duration
	for _, day := range []generic.Day{generic.DayOf(report, s.Zone), generic.DayOf(off, s.Zone)} {
		if seen[day] {
			continue
		}
		seen[day] = true
		band := generic.NewInterval(day.At(s.Zone, woclStart).Add(shift), day.At(s.Zone, woclEnd).Add(shift))
		total += period.Overlap(band)
	}
	return generic.MinutesOf(total)
}

// Measure gathers the inputs for a duty running from report to off.
func (s Scorer) Measure(sleep []SleepEntry, report, off time.Time, sps int) Inputs {
	s24, s48, wake, est := s.SleepBefore(sleep, report)
	next := s.NextSleep(off)
	in := Inputs{
		Sleep24:        s24,
		Sleep48:        s48,
		LastWake:       wake,
		WakeEstimated:  est,
		AwakeAtReport:  hours(report.Sub(wake)),
		AwakeAtOff:     hours(off.Sub(wake)),
		UntilNextSleep: hours(next.Sub(off)),
		PeakAwake:      hours(next.Sub(wake)),
		WOCL:           s.WOCLOverlap(report, off),
	}
	if sps >= 1 && sps <= 7 {
		in.SPS = sps
	}
	return in
}

// =============================================================================
// SCORE
// =============================================================================

var (
	hundred = decimal.NewFromInt(100)
	dec     = decimal.NewFromInt
)

// Score applies the formula to in and clamps to [0, 100].
//
//	100
//	- 6 per hour of sleep under 7 in the last 24h
//	- 2 per hour of sleep under 14 in the last 48h
//	- 3 / 5 / 7 per hour awake beyond 12 / 16 / 18, cumulatively
//	- 0.4 per minute of circadian-low overlap, up to 60 minutes
//	- 4 per point of subjective rating above 3 (credit below 3)
func Score(in Inputs) int {
	score := hundred
	sub := func(d decimal.Decimal) { score = score.Sub(d) }

	if in.Sleep24.LessThan(dec(7)) {
		sub(dec(7).Sub(in.Sleep24).Mul(dec(6)))
	}
	if in.Sleep48.LessThan(dec(14)) {
		sub(dec(14).Sub(in.Sleep48).Mul(dec(2)))
	}
	for _, p := range []struct{ over, rate int64 }{{12, 3}, {16, 5}, {18, 7}} {
		if in.PeakAwake.GreaterThan(dec(p.over)) {
			sub(in.PeakAwake.Sub(dec(p.over)).Mul(dec(p.rate)))
		}
	}
	wocl := in.WOCL.Min(60)
	sub(dec(int64(wocl)).Mul(decimal.RequireFromString("0.4")))
	if in.SPS >= 1 && in.SPS <= 7 {
		sub(dec(int64(in.SPS - 3)).Mul(dec(4)))
	}

	n := score.Round(0).IntPart()
	switch {
	case n < 0:
		return 0
	case n > 100:
		return 100
	default:
		return int(n)
	}
}

// =============================================================================
// ASSESSMENT
// =============================================================================

// Assess scores a duty. ok is false when the duty has no start or end to
// score against.
func (s Scorer) Assess(sleep []SleepEntry, d duty.Duty) (Assessment, bool) {
	report, off := d.Start(), d.End()
	if !generic.NewInterval(report, off).Valid() {
		return Assessment{}, false
	}
	in := s.Measure(sleep, report, off, d.SPS)
	score := Score(in)
	return Assessment{
		Inputs: in,
		Score:  score,
		Band:   s.Settings.Bands.Label(score),
		Chips:  chips(in),
	}, true
}

func chips(in Inputs) []string {
	awake := fmt.Sprintf("Awake at peak: %sh", in.PeakAwake.StringFixed(1))
	if in.WakeEstimated {
		awake += " (est.)"
	}
	out := []string{
		fmt.Sprintf("Sleep 24h: %sh", in.Sleep24.StringFixed(1)),
		fmt.Sprintf("Sleep 48h: %sh", in.Sleep48.StringFixed(1)),
		awake,
	}
	if in.WOCL > 0 {
		out = append(out, fmt.Sprintf("WOCL overlap: %s", in.WOCL.HM()))
	}
	if in.SPS > 0 {
		out = append(out, fmt.Sprintf("SPS: %d", in.SPS))
	}
	return out
}
