/*
handlers_test.go - HTTP tests for the API handlers

Tests for:
- Duty CRUD and request validation
- Legality, rolling, flags and stats endpoints
- What-if simulation leaving the store untouched
- Sleep, settings and rules endpoints
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/duty-engine/duty"
	"github.com/warp/duty-engine/fatigue"
	"github.com/warp/duty-engine/generic"
	"github.com/warp/duty-engine/store/memory"
)

var sast = time.FixedZone("SAST", 2*60*60)

// testNow is Thursday 20 March 2025, midday.
var testNow = time.Date(2025, time.March, 20, 12, 0, 0, 0, sast)

type testServer struct {
	h      *Handler
	store  *memory.Store
	router http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store := memory.New()
	rules := duty.DefaultRules()
	rules.Zone = sast

	h, err := NewHandler(store, rules, WithClock(func() time.Time { return testNow }))
	require.NoError(t, err)

	return &testServer{
		h:      h,
		store:  store,
		router: NewRouter(h, RouterConfig{MetricsEnabled: true, Monitor: NewRollingMonitor(h, 0)}),
	}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rdr = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		rdr = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rdr)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func (s *testServer) createDuty(t *testing.T, req DutyRequest) DutyDTO {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/duties", req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[DutyDTO](t, rec)
}

func badgeOf(t *testing.T, fs generic.Findings, key string) generic.Finding {
	t.Helper()
	f, ok := fs.Get(key)
	require.True(t, ok, "no %q finding in %v", key, fs)
	return f
}

// =============================================================================
// DUTIES
// =============================================================================

func TestNewHandler_RequiresStore(t *testing.T) {
	_, err := NewHandler(nil, duty.DefaultRules())
	assert.ErrorIs(t, err, generic.ErrStoreRequired)
}

func TestDuties_CreateGetUpdateDelete(t *testing.T) {
	// GIVEN: An empty store
	s := newTestServer(t)

	// WHEN: Creating a Home FDP
	created := s.createDuty(t, DutyRequest{
		Kind: "FDP", Report: "2025-03-10T07:00", Off: "2025-03-10T19:00", Sectors: 2,
	})

	// THEN: It gets an ID, a date from its report and a 12h duration
	require.NotEmpty(t, created.ID)
	assert.Equal(t, "2025-03-10", created.Date)
	assert.Equal(t, "2025-03-10T07:00", created.Report)
	assert.Equal(t, "12:00", created.Duration)
	assert.Equal(t, "Home", created.Location)

	rec := s.do(t, http.MethodGet, "/api/duties/"+created.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, created, decode[DutyDTO](t, rec))

	// WHEN: Replacing it with a longer duty
	rec = s.do(t, http.MethodPut, "/api/duties/"+created.ID, DutyRequest{
		Kind: "FDP", Report: "2025-03-10T07:00", Off: "2025-03-10T21:00", Sectors: 2,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "14:00", decode[DutyDTO](t, rec).Duration)

	// WHEN: Deleting it
	rec = s.do(t, http.MethodDelete, "/api/duties/"+created.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	// THEN: It is gone
	rec = s.do(t, http.MethodGet, "/api/duties/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = s.do(t, http.MethodDelete, "/api/duties/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDuties_UpdateUnknownIsNotFound(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodPut, "/api/duties/nope", DutyRequest{Kind: "Sick", Date: "2025-03-10"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDuties_ListIsNewestFirstWithStatus(t *testing.T) {
	// GIVEN: A late finish followed by an early report (6h30 rest at home)
	s := newTestServer(t)
	first := s.createDuty(t, DutyRequest{Kind: "FDP", Report: "2025-03-10T14:30", Off: "2025-03-10T23:30", Sectors: 3})
	second := s.createDuty(t, DutyRequest{Kind: "FDP", Report: "2025-03-11T06:00", Off: "2025-03-11T16:00", Sectors: 4})

	// WHEN: Listing
	rec := s.do(t, http.MethodGet, "/api/duties", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	items := decode[[]DutyListItemDTO](t, rec)

	// THEN: The newer duty is first and carries the bad rest status
	require.Len(t, items, 2)
	assert.Equal(t, second.ID, items[0].ID)
	assert.Equal(t, "bad", items[0].Status)
	assert.Equal(t, first.ID, items[1].ID)
	assert.Equal(t, "ok", items[1].Status)
}

func TestDuties_Validation(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name  string
		body  any
		field string
	}{
		{"unknown kind", DutyRequest{Kind: "Bogus", Date: "2025-03-10"}, "kind"},
		{"missing kind", DutyRequest{Date: "2025-03-10"}, "kind"},
		{"bad date", DutyRequest{Kind: "Sick", Date: "10/03/2025"}, "date"},
		{"bad location", DutyRequest{Kind: "Sick", Date: "2025-03-10", Location: "Moon"}, "location"},
		{"sps out of range", DutyRequest{Kind: "FDP", Report: "2025-03-10T07:00", Off: "2025-03-10T09:00", SPS: 9}, "sps"},
		{"standby without type", DutyRequest{Kind: "Standby", Standby: &StandbyRequest{Start: "2025-03-10T06:00", End: "2025-03-10T18:00"}}, "standby.type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, "/api/duties", tt.body)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			resp := decode[ErrorResponse](t, rec)
			assert.Contains(t, resp.Fields, tt.field)
		})
	}

	t.Run("off before report", func(t *testing.T) {
		rec := s.do(t, http.MethodPost, "/api/duties", DutyRequest{Kind: "FDP", Report: "2025-03-10T19:00", Off: "2025-03-10T07:00"})
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, decode[ErrorResponse](t, rec).Details, "off")
	})

	t.Run("unreadable instant", func(t *testing.T) {
		rec := s.do(t, http.MethodPost, "/api/duties", DutyRequest{Kind: "FDP", Report: "tomorrow", Off: "2025-03-10T07:00"})
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, decode[ErrorResponse](t, rec).Details, "report")
	})

	t.Run("malformed body", func(t *testing.T) {
		rec := s.do(t, http.MethodPost, "/api/duties", `{"kind": `)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	duties, err := s.store.ListDuties(context.Background())
	require.NoError(t, err)
	assert.Empty(t, duties)
}

// =============================================================================
// ASSESSMENTS
// =============================================================================

func TestLegality_ShortRestAfterLateFinish(t *testing.T) {
	// GIVEN: Off at 23:30, next report 06:00 at home
	s := newTestServer(t)
	first := s.createDuty(t, DutyRequest{Kind: "FDP", Report: "2025-03-10T14:30", Off: "2025-03-10T23:30", Sectors: 3})
	second := s.createDuty(t, DutyRequest{Kind: "FDP", Report: "2025-03-11T06:00", Off: "2025-03-11T16:00", Sectors: 4})

	// WHEN: Asking for the second duty's legality
	rec := s.do(t, http.MethodGet, "/api/duties/"+second.ID+"/legality", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[LegalityResponse](t, rec)

	// THEN: Rest is bad against the previous duty, the FDP itself is fine
	assert.Equal(t, first.ID, resp.PreviousID)
	assert.Equal(t, generic.SeverityBad, badgeOf(t, resp.Badges, duty.KeyRest).Severity)
	assert.Equal(t, generic.SeverityOK, badgeOf(t, resp.Badges, duty.KeyFDP).Severity)
	assert.Contains(t, resp.Notes, "Rest short by 5:30.")

	// AND: The flags repeat the bad rest, and the rolling picture is anchored at the duty
	assert.Equal(t, generic.SeverityBad, badgeOf(t, resp.Flags, duty.KeyRest).Severity)
	assert.Equal(t, "2025-03-11T06:00", resp.Rolling.Anchor)
	assert.Equal(t, generic.Minutes(9*60), resp.Rolling.Snapshot.Minutes7)

	// AND: A fatigue score is attached
	require.NotNil(t, resp.Fatigue)
	assert.NotEmpty(t, resp.Fatigue.Chips)
}

func TestLegality_UnknownDuty(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/api/duties/missing/legality", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLegality_UntimedSickDayHasNoFatigue(t *testing.T) {
	s := newTestServer(t)
	sick := s.createDuty(t, DutyRequest{Kind: "Sick", Date: "2025-03-12"})

	rec := s.do(t, http.MethodGet, "/api/duties/"+sick.ID+"/legality", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[LegalityResponse](t, rec)

	assert.Nil(t, resp.Fatigue)
	assert.Equal(t, generic.SeverityInfo, badgeOf(t, resp.Badges, duty.KeyLogged).Severity)
}

func TestRolling_ConsecutiveRunFromScenario(t *testing.T) {
	// GIVEN: The long-run scenario (eight working days ending yesterday)
	s := newTestServer(t)
	rec := s.do(t, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "long-run"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// WHEN: Reading the rolling picture at the end of the last duty day
	rec = s.do(t, http.MethodGet, "/api/rolling?at=2025-03-19T18:00", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[RollingResponse](t, rec)

	// THEN: Eight consecutive days is bad
	assert.Equal(t, 8, resp.Snapshot.ConsecutiveWorkDays)
	assert.Equal(t, generic.SeverityBad, badgeOf(t, resp.Findings, duty.KeyConsecutive).Severity)
	assert.Equal(t, generic.Minutes(7*8*60), resp.Snapshot.Minutes7)

	// WHEN: Reading it today, which is a day off
	rec = s.do(t, http.MethodGet, "/api/rolling", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// THEN: The streak is broken by today
	assert.Equal(t, 0, decode[RollingResponse](t, rec).Snapshot.ConsecutiveWorkDays)
}

func TestRolling_RejectsBadInstant(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/api/rolling?at=yesterday", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFlagsAndStats(t *testing.T) {
	// GIVEN: A bad-rest pair this month
	s := newTestServer(t)
	s.createDuty(t, DutyRequest{Kind: "FDP", Report: "2025-03-10T14:30", Off: "2025-03-10T23:30", Sectors: 3})
	s.createDuty(t, DutyRequest{Kind: "FDP", Report: "2025-03-11T06:00", Off: "2025-03-11T16:00", Sectors: 4})

	// WHEN: Reading the flag feed
	rec := s.do(t, http.MethodGet, "/api/flags", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	feed := decode[[]duty.MonthFlags](t, rec)

	// THEN: March carries the rest flag prefixed with its day
	require.NotEmpty(t, feed)
	assert.Equal(t, "2025-03", feed[0].Month)
	rest := badgeOf(t, feed[0].Flags, duty.KeyRest)
	assert.Contains(t, rest.Text, "11 Mar:")

	// WHEN: Reading the stats
	rec = s.do(t, http.MethodGet, "/api/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode[duty.QuickStats](t, rec)

	// THEN: Averages cover both FDPs
	assert.Equal(t, generic.Minutes(570), stats.AvgDutyLength)
	assert.Equal(t, "3.5", stats.AvgSectors.String())
}

func TestFlags_EmptyStoreIsEmptyList(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/api/flags", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

// =============================================================================
// WHAT-IF
// =============================================================================

func TestWhatIf_DraftIsNotStored(t *testing.T) {
	// GIVEN: A late finish on the 10th
	s := newTestServer(t)
	late := s.createDuty(t, DutyRequest{Kind: "FDP", Report: "2025-03-10T14:30", Off: "2025-03-10T23:30", Sectors: 3})

	// WHEN: Simulating an early report the next morning
	rec := s.do(t, http.MethodPost, "/api/whatif", WhatIfRequest{
		Draft: DutyRequest{Kind: "FDP", Report: "2025-03-11T06:00", Off: "2025-03-11T16:00", Sectors: 4},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[WhatIfResponse](t, rec)

	// THEN: The draft is graded against the recorded duty
	assert.Equal(t, "draft", resp.Duty.Origin)
	assert.Equal(t, late.ID, resp.PreviousID)
	assert.Equal(t, generic.SeverityBad, badgeOf(t, resp.Badges, duty.KeyRest).Severity)
	assert.Empty(t, resp.Ghosts)
	assert.Empty(t, resp.Hidden)

	// AND: Nothing was written
	duties, err := s.store.ListDuties(context.Background())
	require.NoError(t, err)
	assert.Len(t, duties, 1)
}

func TestWhatIf_Assumptions(t *testing.T) {
	s := newTestServer(t)
	late := s.createDuty(t, DutyRequest{Kind: "FDP", Report: "2025-03-10T14:30", Off: "2025-03-10T23:30", Sectors: 3})
	draft := DutyRequest{Kind: "FDP", Report: "2025-03-11T06:00", Off: "2025-03-11T16:00", Sectors: 4}

	t.Run("off day hides the recorded duty", func(t *testing.T) {
		rec := s.do(t, http.MethodPost, "/api/whatif", WhatIfRequest{
			Draft:       draft,
			Assumptions: []AssumptionDTO{{Kind: "off", OffsetDays: 1}},
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		resp := decode[WhatIfResponse](t, rec)

		assert.Equal(t, []string{late.ID}, resp.Hidden)
		assert.Empty(t, resp.PreviousID)
		_, hasRest := resp.Badges.Get(duty.KeyRest)
		assert.False(t, hasRest)
	})

	t.Run("work ghost two days before", func(t *testing.T) {
		rec := s.do(t, http.MethodPost, "/api/whatif", WhatIfRequest{
			Draft:       draft,
			Assumptions: []AssumptionDTO{{Kind: "work", OffsetDays: 2, Start: "08:00", Minutes: 600, Sectors: 2}},
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		resp := decode[WhatIfResponse](t, rec)

		require.Len(t, resp.Ghosts, 1)
		assert.Equal(t, "ghost", resp.Ghosts[0].Origin)
		assert.Equal(t, "2025-03-09T08:00", resp.Ghosts[0].Report)
		assert.Equal(t, late.ID, resp.PreviousID)
	})

	t.Run("invalid assumption", func(t *testing.T) {
		rec := s.do(t, http.MethodPost, "/api/whatif", WhatIfRequest{
			Draft:       draft,
			Assumptions: []AssumptionDTO{{Kind: "work", OffsetDays: 0}},
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

// =============================================================================
// SLEEP / SETTINGS / RULES
// =============================================================================

func TestSleep_CreateListDelete(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/sleep", SleepRequest{
		Start: "2025-03-10T22:00", End: "2025-03-11T06:00", Type: "main", Quality: 4,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[SleepDTO](t, rec)
	assert.Equal(t, "8.0", created.Hours)

	rec = s.do(t, http.MethodGet, "/api/sleep", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]SleepDTO](t, rec), 1)

	rec = s.do(t, http.MethodDelete, "/api/sleep/"+created.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = s.do(t, http.MethodDelete, "/api/sleep/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSleep_Validation(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/sleep", SleepRequest{
		Start: "2025-03-10T22:00", End: "2025-03-11T06:00", Type: "main", Quality: 9,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/sleep", SleepRequest{
		Start: "2025-03-11T06:00", End: "2025-03-10T22:00", Type: "nap", Quality: 3,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSettings_DefaultsThenUpdate(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/settings", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, fatigue.DefaultSettings(), decode[fatigue.Settings](t, rec))

	body := `{"chronotype":"late","bands":{"good":85,"caution":65,"elevated":40},"theme":"dark"}`
	rec = s.do(t, http.MethodPut, "/api/settings", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	saved, err := s.store.LoadSettings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, fatigue.ChronotypeLate, saved.Chronotype)
	assert.Equal(t, 65, saved.Bands.Caution)

	// Bands out of order
	rec = s.do(t, http.MethodPut, "/api/settings", `{"chronotype":"late","bands":{"good":50,"caution":65,"elevated":40}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRules_ReturnsActiveDocument(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/api/rules", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Contains(t, doc, "fdp")
	assert.Contains(t, doc, "rest")
}

// =============================================================================
// HEALTH / METRICS / MONITOR
// =============================================================================

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)
	created := s.createDuty(t, DutyRequest{Kind: "FDP", Report: "2025-03-10T07:00", Off: "2025-03-10T19:00", Sectors: 2})
	s.do(t, http.MethodGet, "/api/duties/"+created.ID+"/legality", nil)

	rec := s.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `dutyengine_engine_evaluations_total{operation="legality"} 1`)
	assert.Contains(t, body, `route="/api/duties/{id}/legality"`)
}

func TestMonitor_ReportsChangesOnce(t *testing.T) {
	// GIVEN: The long-run scenario and a monitor that is not scheduled
	s := newTestServer(t)
	rec := s.do(t, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "long-run"})
	require.Equal(t, http.StatusOK, rec.Code)
	m := NewRollingMonitor(s.h, 0)

	// WHEN: Checking twice
	first, err := m.Check(context.Background())
	require.NoError(t, err)
	second, err := m.Check(context.Background())
	require.NoError(t, err)

	// THEN: Every key is new on the first run and nothing changed on the second
	assert.Len(t, first.Changed, len(first.Findings))
	assert.Empty(t, second.Changed)
	assert.Equal(t, "2025-03-20T12:00", second.At)

	last, ok := m.Last()
	require.True(t, ok)
	assert.Equal(t, second, last)
}

func TestMonitor_EndpointRunsOnDemand(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/api/monitor", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	run := decode[MonitorRun](t, rec)
	assert.NotEmpty(t, run.Findings)
}
