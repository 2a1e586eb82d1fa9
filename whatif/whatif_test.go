package whatif_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/duty-engine/duty"
	"github.com/warp/duty-engine/generic"
	"github.com/warp/duty-engine/whatif"
)

var sast = time.FixedZone("SAST", 2*60*60)

func at(day, hour, minute int) time.Time {
	return time.Date(2025, time.March, day, hour, minute, 0, 0, sast)
}

func testRules() duty.Rules {
	r := duty.DefaultRules()
	r.Zone = sast
	return r
}

func fdp(id string, report, off time.Time) duty.Duty {
	return duty.Duty{ID: id, Kind: duty.KindFDP, Report: report, Off: off, Sectors: 2, Location: duty.LocationHome}
}

func recorded() []duty.Duty {
	return []duty.Duty{
		fdp("r1", at(7, 8, 0), at(7, 16, 0)),
		fdp("r2", at(9, 14, 0), at(9, 23, 0)),
	}
}

func TestSimulate_DraftAgainstRecordedPredecessor(t *testing.T) {
	// GIVEN: A recorded duty off at 23:00
	// WHEN: Simulating a draft reporting 08:00 the next morning
	// THEN: The predecessor is the recorded duty and rest is 9h, short by 3h

	rules := testRules()
	draft := fdp("", at(10, 8, 0), at(10, 16, 0))

	sim := whatif.Simulate(rules, recorded(), draft, nil)

	require.NotNil(t, sim.Overlay.Previous())
	assert.Equal(t, "r2", sim.Overlay.Previous().ID)
	assert.Equal(t, whatif.DraftID, sim.Overlay.DraftDuty().ID)

	rest, ok := sim.Assessment.Legality.Badges.Get(duty.KeyRest)
	require.True(t, ok)
	assert.Equal(t, generic.SeverityBad, rest.Severity)
	assert.Equal(t, at(10, 8, 0), sim.Assessment.Rolling.Anchor)
}

func TestSimulate_DraftWinsTies(t *testing.T) {
	rules := testRules()
	same := fdp("same", at(10, 8, 0), at(10, 12, 0))
	draft := fdp("", at(10, 8, 0), at(10, 16, 0))

	o := whatif.Build(rules, []duty.Duty{same}, draft, nil)

	assert.Equal(t, 0, o.Draft)
	require.NotNil(t, o.Previous())
	assert.Equal(t, "same", o.Previous().ID)
}

func TestSimulate_GhostBecomesPredecessor(t *testing.T) {
	rules := testRules()
	draft := fdp("", at(12, 8, 0), at(12, 16, 0))
	draft.Location = duty.LocationAway
	assumptions := []whatif.Assumption{
		{Kind: whatif.AssumeWork, OffsetDays: 1, Start: generic.NewTimeOfDay(20, 0), Duration: generic.Hours(4), Sectors: 1, Location: duty.LocationAway},
	}

	sim := whatif.Simulate(rules, recorded(), draft, assumptions)

	ghosts := sim.Overlay.Ghosts()
	require.Len(t, ghosts, 1)
	assert.Equal(t, at(11, 20, 0), ghosts[0].Report)
	assert.Equal(t, at(12, 0, 0), ghosts[0].Off)

	prev := sim.Overlay.Previous()
	require.NotNil(t, prev)
	assert.Equal(t, duty.OriginGhost, prev.Origin)

	rest, ok := sim.Assessment.Legality.Badges.Get(duty.KeyRest)
	require.True(t, ok)
	assert.Contains(t, rest.Text, "Away: 10h incl. local night")
	assert.Equal(t, generic.SeverityBad, rest.Severity, "8h against 10h")
}

func TestSimulate_StandbyGhost(t *testing.T) {
	rules := testRules()
	draft := fdp("", at(12, 8, 0), at(12, 16, 0))
	assumptions := []whatif.Assumption{
		{Kind: whatif.AssumeStandby, OffsetDays: 2, Start: generic.NewTimeOfDay(6, 0), Duration: generic.Hours(12), StandbyType: duty.StandbyHome},
	}

	sim := whatif.Simulate(rules, nil, draft, assumptions)

	ghosts := sim.Overlay.Ghosts()
	require.Len(t, ghosts, 1)
	assert.Equal(t, duty.KindStandby, ghosts[0].Kind)
	assert.Equal(t, generic.Hours(12), sim.Assessment.Rolling.Minutes7, "standby ghost counts before the draft report")
}

func TestSimulate_OffAssumptionMasksRecordedDay(t *testing.T) {
	rules := testRules()
	draft := fdp("", at(10, 8, 0), at(10, 16, 0))
	assumptions := []whatif.Assumption{{Kind: whatif.AssumeOff, OffsetDays: 1}}

	sim := whatif.Simulate(rules, recorded(), draft, assumptions)

	assert.Equal(t, []string{"r2"}, sim.Overlay.Hidden)
	assert.Empty(t, sim.Overlay.Ghosts())
	require.NotNil(t, sim.Overlay.Previous())
	assert.Equal(t, "r1", sim.Overlay.Previous().ID)
}

func TestSimulate_DoesNotMutateRecorded(t *testing.T) {
	// GIVEN: A recorded collection and a snapshot of it
	// WHEN: Simulating with ghosts and an off day
	// THEN: The collection is unchanged and later evaluations never see ghosts

	rules := testRules()
	rec := recorded()
	before := make([]duty.Duty, len(rec))
	copy(before, rec)
	rollingBefore := rules.Rolling(rec, at(10, 8, 0))

	_ = whatif.Simulate(rules, rec, fdp("", at(10, 8, 0), at(10, 16, 0)), []whatif.Assumption{
		{Kind: whatif.AssumeWork, OffsetDays: 2, Start: generic.NewTimeOfDay(9, 0), Duration: generic.Hours(10), Sectors: 4},
		{Kind: whatif.AssumeOff, OffsetDays: 1},
	})

	assert.Equal(t, before, rec)
	for _, d := range rec {
		assert.Equal(t, duty.OriginRecorded, d.Origin)
	}
	assert.Equal(t, rollingBefore, rules.Rolling(rec, at(10, 8, 0)))
}

func TestAssumption_Validate(t *testing.T) {
	ok := whatif.Assumption{Kind: whatif.AssumeWork, OffsetDays: 1, Duration: 60}
	require.NoError(t, ok.Validate())

	assert.Error(t, whatif.Assumption{Kind: "nap", OffsetDays: 1, Duration: 60}.Validate())
	assert.Error(t, whatif.Assumption{Kind: whatif.AssumeWork, OffsetDays: 0, Duration: 60}.Validate())
	assert.Error(t, whatif.Assumption{Kind: whatif.AssumeWork, OffsetDays: 1}.Validate())
	assert.NoError(t, whatif.Assumption{Kind: whatif.AssumeOff, OffsetDays: 3}.Validate())
}
