package duty

import (
	"time"

	"github.com/warp/duty-engine/generic"
)

// Limit is the maximum FDP for a report time and sector count.
type Limit struct {
	Max     generic.Minutes
	Band    string
	Sectors int // clamped to [1, MaxSectors]
}

func clampSectors(n int) int {
	switch {
	case n < 1:
		return 1
	case n > MaxSectors:
		return MaxSectors
	default:
		return n
	}
}

// Lookup finds the band containing the report time of day. Sector counts are
// clamped to the table's columns. When no band matches, the most restrictive
// limit in that column is returned under the band label "-".
func (t FDPTable) Lookup(report generic.TimeOfDay, sectors int) Limit {
	s := clampSectors(sectors)
	for _, b := range t {
		if b.Matches(report) {
			return Limit{Max: b.Limits[s-1], Band: b.Label(), Sectors: s}
		}
	}
	var least generic.Minutes
	for i, b := range t {
		if i == 0 || b.Limits[s-1] < least {
			least = b.Limits[s-1]
		}
	}
	return Limit{Max: least, Band: "-", Sectors: s}
}

// FDPLimit looks up the limit for a report instant in the rules' zone.
func (r Rules) FDPLimit(report time.Time, sectors int) Limit {
	return r.FDP.Lookup(r.timeOfDay(report), sectors)
}
