package duty

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/duty-engine/generic"
)

// QuickStats summarises the whole log. Zero averages mean nothing to average.
type QuickStats struct {
	AvgDutyLength       generic.Minutes `json:"avgDutyLength"`
	AvgSectors          decimal.Decimal `json:"avgSectors"`
	CommonReportWindow  string          `json:"commonReportWindow"`
	DisruptiveThisMonth int             `json:"disruptiveThisMonth"`
	WithDiscretion      int             `json:"withDiscretion"`
	AirportStandbyCalls int             `json:"airportStandbyCalls"`
	AwayThisMonth       int             `json:"awayThisMonth"`
	Standby             *StandbyStats   `json:"standby,omitempty"`
}

// StandbyStats is present only when the log holds standby windows.
type StandbyStats struct {
	Count            int             `json:"count"`
	UsedPct          int             `json:"usedPct"`
	AvgCalloutNotice generic.Minutes `json:"avgCalloutNotice"`
}

// QuickStats computes the summary with "this month" taken from now.
func (r Rules) QuickStats(all []Duty, now time.Time) QuickStats {
	month := r.dayOf(now).MonthKey()
	var (
		qs                       QuickStats
		fdpTotal, fdpCount       generic.Minutes
		sectorTotal              int
		windows                  = make(map[string]int)
		sbCount, sbCalled        int
		noticeTotal, noticeCount generic.Minutes
	)

	for _, d := range all {
		at := d.Anchor(r.Location())
		inMonth := !at.IsZero() && r.dayOf(at).MonthKey() == month

		if fdp := d.FlightInterval(); fdp.Valid() && d.Kind.CountsTowardLimits() {
			fdpTotal += fdp.Minutes()
			fdpCount++
			sectorTotal += d.Sectors
			windows[r.FDPLimit(fdp.Start, d.Sectors).Band]++
			if inMonth && r.DisruptionOf(d).Any() {
				qs.DisruptiveThisMonth++
			}
		}
		if d.Discretion.Minutes > 0 {
			qs.WithDiscretion++
		}
		if inMonth && d.Location == LocationAway {
			qs.AwayThisMonth++
		}
		if d.HasStandby() {
			sbCount++
			if d.Standby.Called {
				sbCalled++
				if d.Standby.Type == StandbyAirport {
					qs.AirportStandbyCalls++
				}
				if notice := generic.MinutesBetween(d.Standby.Call, d.Report); notice > 0 {
					noticeTotal += notice
					noticeCount++
				}
			}
		}
	}

	if fdpCount > 0 {
		qs.AvgDutyLength = fdpTotal / fdpCount
		qs.AvgSectors = decimal.NewFromInt(int64(sectorTotal)).Div(decimal.NewFromInt(int64(fdpCount))).Round(2)
	} else {
		qs.AvgSectors = decimal.Zero
	}
	qs.CommonReportWindow = mostCommon(windows)

	if sbCount > 0 {
		sb := &StandbyStats{Count: sbCount, UsedPct: sbCalled * 100 / sbCount}
		if noticeCount > 0 {
			sb.AvgCalloutNotice = noticeTotal / noticeCount
		}
		qs.Standby = sb
	}
	return qs
}

// mostCommon returns the key with the highest count, ties going to the
// lexically smallest key.
func mostCommon(counts map[string]int) string {
	best, bestN := "", 0
	for k, n := range counts {
		if n > bestN || (n == bestN && k < best) {
			best, bestN = k, n
		}
	}
	return best
}
