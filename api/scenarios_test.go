/*
scenarios_test.go - Tests for demo scenarios

PURPOSE:
	Every scenario loads cleanly through the API, replaces whatever was
	there before and shows the behaviour it is named after.
*/
package api

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/duty-engine/duty"
	"github.com/warp/duty-engine/generic"
)

func TestScenario_AllScenariosLoadWithoutError(t *testing.T) {
	// GIVEN: All available scenarios
	// WHEN: Loading each scenario
	// THEN: None should error and each leaves duties behind

	for _, sc := range scenarios {
		t.Run(sc.ID, func(t *testing.T) {
			s := newTestServer(t)

			rec := s.do(t, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: sc.ID})
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			duties, err := s.store.ListDuties(context.Background())
			require.NoError(t, err)
			assert.NotEmpty(t, duties)

			rec = s.do(t, http.MethodGet, "/api/scenarios/current", nil)
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, sc, decode[ScenarioDTO](t, rec))
		})
	}
}

func TestScenario_EveryDefinitionHasALoader(t *testing.T) {
	require.Len(t, loaders, len(scenarios))
	for _, sc := range scenarios {
		assert.Contains(t, loaders, sc.ID)
	}
}

func TestScenario_LoadReplacesPreviousData(t *testing.T) {
	// GIVEN: A duty recorded by hand
	s := newTestServer(t)
	manual := s.createDuty(t, DutyRequest{Kind: "Sick", Date: "2025-03-01"})

	// WHEN: Loading a scenario
	rec := s.do(t, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "clean-week"})
	require.Equal(t, http.StatusOK, rec.Code)

	// THEN: The manual duty is gone
	rec = s.do(t, http.MethodGet, "/api/duties/"+manual.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// WHEN: Resetting
	rec = s.do(t, http.MethodPost, "/api/scenarios/reset", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// THEN: Nothing is left and no scenario is current
	duties, err := s.store.ListDuties(context.Background())
	require.NoError(t, err)
	assert.Empty(t, duties)
	rec = s.do(t, http.MethodGet, "/api/scenarios/current", nil)
	assert.JSONEq(t, `null`, rec.Body.String())
}

func TestScenario_Unknown(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "nope"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/scenarios/load", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScenario_ShortRestIsBad(t *testing.T) {
	// GIVEN: The short-rest scenario
	s := newTestServer(t)
	rec := s.do(t, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "short-rest"})
	require.Equal(t, http.StatusOK, rec.Code)

	// WHEN: Listing duties
	rec = s.do(t, http.MethodGet, "/api/duties", nil)
	items := decode[[]DutyListItemDTO](t, rec)

	// THEN: The latest (06:00 report after a 23:30 finish) is bad
	require.Len(t, items, 3)
	assert.Equal(t, "2025-03-19T06:00", items[0].Report)
	assert.Equal(t, string(generic.SeverityBad), items[0].Status)
}

func TestScenario_StandbyHeavyCombinedCap(t *testing.T) {
	// GIVEN: A home standby from 04:00 called out for an 11:00-23:30 FDP
	s := newTestServer(t)
	rec := s.do(t, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "standby-heavy"})
	require.Equal(t, http.StatusOK, rec.Code)

	// WHEN: Assessing it
	all, err := s.store.ListDuties(context.Background())
	require.NoError(t, err)
	var called duty.Duty
	for _, d := range all {
		if d.Standby.Called {
			called = d
		}
	}
	require.NotEmpty(t, called.ID)

	rec = s.do(t, http.MethodGet, "/api/duties/"+called.ID+"/legality", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[LegalityResponse](t, rec)

	// THEN: The combined standby + FDP check is present
	_, ok := resp.Badges.Get(duty.KeyCombined)
	assert.True(t, ok)
}

func TestScenario_SickDayKeepsStreak(t *testing.T) {
	// GIVEN: Two duties, a sick day and two more duties ending yesterday
	s := newTestServer(t)
	rec := s.do(t, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "sick-and-tired"})
	require.Equal(t, http.StatusOK, rec.Code)

	// WHEN: Reading the rolling picture yesterday evening
	rec = s.do(t, http.MethodGet, "/api/rolling?at=2025-03-19T23:59", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// THEN: The sick day neither counts nor breaks the run
	assert.Equal(t, 4, decode[RollingResponse](t, rec).Snapshot.ConsecutiveWorkDays)
}
