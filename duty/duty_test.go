package duty_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/duty-engine/duty"
	"github.com/warp/duty-engine/generic"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

var sast = time.FixedZone("SAST", 2*60*60)

func testRules() duty.Rules {
	r := duty.DefaultRules()
	r.Zone = sast
	return r
}

func at(day, hour, minute int) time.Time {
	return time.Date(2025, time.March, day, hour, minute, 0, 0, sast)
}

func fdp(id string, report, off time.Time, sectors int) duty.Duty {
	return duty.Duty{ID: id, Kind: duty.KindFDP, Report: report, Off: off, Sectors: sectors, Location: duty.LocationHome}
}

func badge(t *testing.T, res duty.Result, key string) generic.Finding {
	t.Helper()
	f, ok := res.Badges.Get(key)
	require.True(t, ok, "expected %q badge in %v", key, res.Badges)
	return f
}

// =============================================================================
// FDP TABLE
// =============================================================================

func TestFDPLimit_BandWrapsPastMidnight(t *testing.T) {
	// GIVEN: A report at 23:30 local
	// WHEN: Looking up the limit
	// THEN: The 22:00-04:59 band matches, not "no match"

	rules := testRules()
	limit := rules.FDPLimit(at(10, 23, 30), 1)

	assert.Equal(t, "22:00-04:59", limit.Band)
	assert.Equal(t, generic.Minutes(11*60), limit.Max)

	early := rules.FDPLimit(at(10, 3, 15), 3)
	assert.Equal(t, "22:00-04:59", early.Band)
	assert.Equal(t, generic.Minutes(9*60+30), early.Max)
}

func TestFDPLimit_SectorsClamped(t *testing.T) {
	rules := testRules()
	report := at(10, 8, 0)

	zero := rules.FDPLimit(report, 0)
	one := rules.FDPLimit(report, 1)
	nine := rules.FDPLimit(report, 9)
	eight := rules.FDPLimit(report, 8)

	assert.Equal(t, one.Max, zero.Max, "0 sectors uses the 1-sector column")
	assert.Equal(t, 1, zero.Sectors)
	assert.Equal(t, eight.Max, nine.Max, "9 sectors uses the 8-sector column")
	assert.Equal(t, duty.MaxSectors, nine.Sectors)
	assert.Equal(t, generic.Minutes(14*60), one.Max)
	assert.Equal(t, generic.Minutes(9*60), eight.Max)
}

func TestFDPTable_NoMatchFallsBackToMostRestrictive(t *testing.T) {
	table := duty.FDPTable{duty.DefaultFDPTable()[1]} // 07:00-13:59 only
	limit := table.Lookup(generic.NewTimeOfDay(3, 0), 2)

	assert.Equal(t, "-", limit.Band)
	assert.Equal(t, generic.Minutes(13*60+15), limit.Max)
}

// =============================================================================
// REST REQUIREMENT
// =============================================================================

func TestRequiredRest_HomeIgnoresPreviousLocation(t *testing.T) {
	rules := testRules()
	prev := fdp("a", at(9, 8, 0), at(9, 18, 0), 2)
	prev.Location = duty.LocationAway
	next := fdp("b", at(10, 8, 0), at(10, 16, 0), 2)

	req := rules.RequiredRest(&prev, next)

	assert.Equal(t, generic.Hours(12), req.Required)
	assert.Equal(t, "Home: 12h min rest", req.Basis)
}

func TestRequiredRest_Away(t *testing.T) {
	rules := testRules()

	tests := []struct {
		name     string
		off      time.Time
		report   time.Time
		required generic.Minutes
		basis    string
	}{
		{"overnight rest includes local night", at(9, 20, 0), at(10, 8, 0), generic.Hours(10), "Away: 10h incl. local night"},
		{"daytime rest on one day", at(10, 7, 0), at(10, 21, 30), generic.Hours(14), "Away: 14h rest (outside local night)"},
		{"rest ending at 22:00 does not touch the night", at(10, 6, 0), at(10, 22, 0), generic.Hours(14), "Away: 14h rest (outside local night)"},
		{"rest starting just before 06:00 overlaps the night", at(10, 5, 30), at(10, 18, 0), generic.Hours(10), "Away: 10h incl. local night"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prev := fdp("prev", tt.off.Add(-8*time.Hour), tt.off, 1)
			next := fdp("next", tt.report, tt.report.Add(6*time.Hour), 1)
			next.Location = duty.LocationAway

			req := rules.RequiredRest(&prev, next)
			assert.Equal(t, tt.required, req.Required)
			assert.Equal(t, tt.basis, req.Basis)
		})
	}
}

func TestRequiredRest_NoPreviousIsZero(t *testing.T) {
	rules := testRules()
	req := rules.RequiredRest(nil, fdp("a", at(10, 8, 0), at(10, 16, 0), 1))
	assert.Zero(t, req.Required)
}

func TestCheckRest_SeverityMonotoneInRest(t *testing.T) {
	// GIVEN: A fixed previous off
	// WHEN: The next report moves later in 15 minute steps
	// THEN: Rest severity never gets worse

	rules := testRules()
	prev := fdp("prev", at(9, 8, 0), at(9, 19, 0), 2)

	lastRank := generic.SeverityBad.Rank() + 1
	for step := 0; step <= 24; step++ {
		report := at(9, 19, 0).Add(9*time.Hour + time.Duration(step)*15*time.Minute)
		next := fdp("next", report, report.Add(8*time.Hour), 2)

		rc, ok := rules.CheckRest(&prev, next)
		require.True(t, ok)
		assert.LessOrEqual(t, rc.Severity.Rank(), lastRank, "report %s", report)
		lastRank = rc.Severity.Rank()
	}
	assert.Equal(t, generic.SeverityOK.Rank(), lastRank)
}

func TestCheckRest_Severity(t *testing.T) {
	rules := testRules()
	prev := fdp("prev", at(9, 8, 0), at(9, 19, 0), 2)

	tests := []struct {
		name   string
		report time.Time
		want   generic.Severity
	}{
		{"exactly 12h", at(10, 7, 0), generic.SeverityOK},
		{"short by 59 minutes", at(10, 6, 1), generic.SeverityWarn},
		{"short by 60 minutes", at(10, 6, 0), generic.SeverityBad},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rc, ok := rules.CheckRest(&prev, fdp("next", tt.report, tt.report.Add(8*time.Hour), 2))
			require.True(t, ok)
			assert.Equal(t, tt.want, rc.Severity)
		})
	}
}

// =============================================================================
// CLASSIFIER
// =============================================================================

func TestKind_Classification(t *testing.T) {
	tests := []struct {
		kind    duty.Kind
		counts  bool
		working bool
	}{
		{duty.KindFDP, true, true},
		{duty.KindStandby, true, true},
		{duty.KindFlightWatch, false, true},
		{duty.KindHomeReserve, false, true},
		{duty.KindSick, false, false},
		{duty.Kind("Positioning"), true, true},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			assert.Equal(t, tt.counts, tt.kind.CountsTowardLimits())
			assert.Equal(t, tt.working, tt.kind.IsWorkingDay())
		})
	}
}

func TestEffectiveStandby(t *testing.T) {
	base := duty.Duty{ID: "sb", Kind: duty.KindStandby, Standby: duty.Standby{
		Type: duty.StandbyHome, Start: at(10, 6, 0), End: at(10, 18, 0),
	}}

	t.Run("not called uses the full window", func(t *testing.T) {
		assert.Equal(t, generic.Hours(12), base.EffectiveStandbyMinutes())
	})

	t.Run("called clips at the call instant", func(t *testing.T) {
		d := base
		d.Standby.Called = true
		d.Standby.Call = at(10, 9, 30)
		assert.Equal(t, generic.Minutes(210), d.EffectiveStandbyMinutes())
	})

	t.Run("called without call instant clips at report", func(t *testing.T) {
		d := base
		d.Standby.Called = true
		d.Report, d.Off = at(10, 11, 0), at(10, 19, 0)
		assert.Equal(t, generic.Hours(5), d.EffectiveStandbyMinutes())
	})

	t.Run("never later than the window end", func(t *testing.T) {
		d := base
		d.Standby.Called = true
		d.Standby.Call = at(10, 20, 0)
		assert.Equal(t, generic.Hours(12), d.EffectiveStandbyMinutes())
	})

	t.Run("call before start is zero", func(t *testing.T) {
		d := base
		d.Standby.Called = true
		d.Standby.Call = at(10, 5, 0)
		assert.Zero(t, d.EffectiveStandbyMinutes())
	})
}

func TestShape(t *testing.T) {
	flight := fdp("f", at(10, 8, 0), at(10, 16, 0), 2)
	assert.IsType(t, duty.FlightDuty{}, flight.Shape())

	sb := duty.Duty{Kind: duty.KindStandby, Standby: duty.Standby{Start: at(10, 6, 0), End: at(10, 18, 0)}}
	assert.IsType(t, duty.StandbyOnly{}, sb.Shape())

	called := sb
	called.Standby.Called = true
	called.Report, called.Off = at(10, 9, 0), at(10, 17, 0)
	shape, ok := called.Shape().(duty.StandbyCalledOut)
	require.True(t, ok)
	assert.Equal(t, at(10, 9, 0), shape.Callout)

	assert.IsType(t, duty.Unscheduled{}, duty.Duty{Kind: duty.KindSick, Date: generic.NewDay(2025, 3, 10)}.Shape())
}

func TestDisruptionOf(t *testing.T) {
	rules := testRules()

	early := rules.DisruptionOf(fdp("a", at(10, 5, 30), at(10, 14, 0), 2))
	assert.True(t, early.EarlyStart)
	assert.False(t, early.LateFinish)
	assert.False(t, early.Night)

	late := rules.DisruptionOf(fdp("b", at(10, 14, 0), at(10, 23, 30), 2))
	assert.True(t, late.LateFinish)
	assert.Equal(t, []string{"Late finish"}, late.Tags())

	night := rules.DisruptionOf(fdp("c", at(10, 22, 0), at(11, 6, 0), 1))
	assert.True(t, night.Night)
	assert.True(t, night.Any())

	day := rules.DisruptionOf(fdp("d", at(10, 8, 0), at(10, 16, 0), 2))
	assert.False(t, day.Any())
	assert.Empty(t, day.Tags())
}

func TestDisruptionOf_UsesConfiguredBands(t *testing.T) {
	// GIVEN: Rules whose early-start band is widened to 05:00-06:59
	rules := testRules()
	rules.Disruptive.EarlyStartTo = generic.NewTimeOfDay(6, 59)

	// WHEN: Classifying a 06:30 report
	got := rules.DisruptionOf(fdp("a", at(10, 6, 30), at(10, 14, 0), 2))

	// THEN: It is an early start under the widened band but not the default one
	assert.True(t, got.EarlyStart)
	assert.False(t, testRules().DisruptionOf(fdp("a", at(10, 6, 30), at(10, 14, 0), 2)).EarlyStart)
}
