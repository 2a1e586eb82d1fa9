/*
Package generic provides the domain-agnostic building blocks of the duty engine.

PURPOSE:
  This package contains the time arithmetic and result vocabulary shared by
  every evaluator. Whether checking a flight duty period against its limit,
  summing duty minutes over a rolling week, or overlapping sleep with a
  circadian band, the same primitives are used.

KEY CONCEPTS IN THIS FILE (types.go):
  - Minutes:  Whole minutes, the unit every limit and sum is expressed in
  - Severity: ok / warn / bad for badges, plus info for flags and notes
  - Finding:  A keyed, severity-tagged, human-readable result

DESIGN PRINCIPLES:
  1. Purity: Nothing here performs I/O or holds mutable state
  2. Degrade, don't fail: invalid instants contribute zero, never an error
  3. Precision: Hour figures use decimal.Decimal rounded to one place

USAGE:
  m := generic.MinutesOf(report.Sub(prevOff))
  f := generic.Finding{Key: "rest", Severity: generic.SeverityOK, Text: "Rest " + m.HM()}

SEE ALSO:
  - time.go: Day, TimeOfDay, Interval
  - window.go: Rolling windows and calendar day ranges
  - errors.go: Sentinel and structured errors for the outer layers
*/
package generic

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MINUTES - The unit of every limit, rest requirement and rolling sum
// =============================================================================

type Minutes int

func MinutesOf(d time.Duration) Minutes { return Minutes(d / time.Minute) }
func Hours(h int) Minutes               { return Minutes(h * 60) }

func (m Minutes) Duration() time.Duration { return time.Duration(m) * time.Minute }
func (m Minutes) IsPositive() bool        { return m > 0 }

func (m Minutes) Min(o Minutes) Minutes {
	if m < o {
		return m
	}
	return o
}

func (m Minutes) Max(o Minutes) Minutes {
	if m > o {
		return m
	}
	return o
}

// HM formats as h:mm. Negative values render as 0:00.
func (m Minutes) HM() string {
	if m < 0 {
		m = 0
	}
	return fmt.Sprintf("%d:%02d", int(m)/60, int(m)%60)
}

// Hours returns the value in hours rounded to one decimal place.
func (m Minutes) Hours() decimal.Decimal {
	return decimal.NewFromInt(int64(m)).Div(decimal.NewFromInt(60)).Round(1)
}

// =============================================================================
// SEVERITY
// =============================================================================

type Severity string

const (
	SeverityOK   Severity = "ok"
	SeverityWarn Severity = "warn"
	SeverityBad  Severity = "bad"
	SeverityInfo Severity = "info" // flags and notes that are not pass/fail
)

// Rank orders severities for comparison: info < ok < warn < bad.
func (s Severity) Rank() int {
	switch s {
	case SeverityOK:
		return 1
	case SeverityWarn:
		return 2
	case SeverityBad:
		return 3
	default:
		return 0
	}
}

// Worse returns the more severe of s and o.
func (s Severity) Worse(o Severity) Severity {
	if o.Rank() > s.Rank() {
		return o
	}
	return s
}

// ByMargin grades a value against a cap: bad above the cap, warn once the
// value is within margin of it, ok otherwise.
func ByMargin(value, cap, margin Minutes) Severity {
	switch {
	case value > cap:
		return SeverityBad
	case value >= cap-margin:
		return SeverityWarn
	default:
		return SeverityOK
	}
}

// =============================================================================
// FINDING - Badge or flag
// =============================================================================

// Finding is a pure output. It carries no identity and is recomputed on
// every call.
type Finding struct {
	Key      string   `json:"key"`
	Severity Severity `json:"severity"`
	Text     string   `json:"text"`
}

type Findings []Finding

// Get returns the first finding with the given key.
func (fs Findings) Get(key string) (Finding, bool) {
	for _, f := range fs {
		if f.Key == key {
			return f, true
		}
	}
	return Finding{}, false
}

// Worst returns the highest severity present, or info for an empty list.
func (fs Findings) Worst() Severity {
	worst := SeverityInfo
	for _, f := range fs {
		worst = worst.Worse(f.Severity)
	}
	return worst
}

// NotOK keeps warn and bad findings.
func (fs Findings) NotOK() Findings {
	var out Findings
	for _, f := range fs {
		if f.Severity == SeverityWarn || f.Severity == SeverityBad {
			out = append(out, f)
		}
	}
	return out
}
