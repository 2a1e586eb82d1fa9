/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built rosters that populate the store with realistic
	duties and sleep for demos. Each scenario exercises a specific part of
	the engine (rest, standby caps, consecutive days, fatigue).

AVAILABLE SCENARIOS:

	clean-week:       A legal week of day flying with proper rest
	short-rest:       Late finish followed by an early report with short rest
	standby-heavy:    Home and airport standby, one long call-out
	long-run:         Eight consecutive working days
	sick-and-tired:   A sick day inside a run, little sleep before a night duty

HOW SCENARIOS WORK:
 1. Reset store (clear duties, sleep, settings)
 2. Build the roster relative to today in the rules zone
 3. Save every duty and sleep entry

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "short-rest"}

ADDING NEW SCENARIOS:
 1. Add to 'scenarios' slice with ID, name, description
 2. Add a loader to 'loaders'

NOTE:

	Scenarios reset the store. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: Handler and Store
*/
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/warp/duty-engine/duty"
	"github.com/warp/duty-engine/fatigue"
	"github.com/warp/duty-engine/generic"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "clean-week",
		Name:        "Clean Week",
		Description: "Five day duties with home rest and two days off",
	},
	{
		ID:          "short-rest",
		Name:        "Short Rest",
		Description: "Late finish at home followed by an early report the next morning",
	},
	{
		ID:          "standby-heavy",
		Name:        "Standby Heavy",
		Description: "Home and airport standby with a call-out that runs past the combined cap",
	},
	{
		ID:          "long-run",
		Name:        "Long Run",
		Description: "Eight consecutive working days with no day off",
	},
	{
		ID:          "sick-and-tired",
		Name:        "Sick and Tired",
		Description: "A sick day inside a run and short sleep before a night duty",
	},
}

type loader func(b *roster)

var loaders = map[string]loader{
	"clean-week":     loadCleanWeek,
	"short-rest":     loadShortRest,
	"standby-heavy":  loadStandbyHeavy,
	"long-run":       loadLongRun,
	"sick-and-tired": loadSickAndTired,
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	if current == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, ScenarioDTO{ID: current, Name: current})
}

// LoadScenario resets the store and seeds a predefined roster.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, statusFor(err), "Invalid request body", err)
		return
	}
	load, ok := loaders[req.ScenarioID]
	if !ok {
		writeError(w, http.StatusNotFound, "Unknown scenario",
			fmt.Errorf("%w: %s", generic.ErrScenarioNotFound, req.ScenarioID))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	ctx := r.Context()
	if err := h.Store.Reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset store", err)
		return
	}
	h.currentScenario = ""

	b := newRoster(req.ScenarioID, generic.DayOf(h.now(), h.loc()), h.loc())
	load(b)
	if err := b.save(ctx, h.Store); err != nil {
		h.Log.WithError(err).WithField("scenario", req.ScenarioID).Error("load scenario")
		writeError(w, http.StatusInternalServerError, "Failed to load scenario", err)
		return
	}

	h.currentScenario = req.ScenarioID
	h.Log.WithFields(logrus.Fields{
		"scenario": req.ScenarioID,
		"duties":   len(b.duties),
		"sleep":    len(b.sleep),
	}).Info("scenario loaded")

	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "loaded",
		"scenario": req.ScenarioID,
		"duties":   len(b.duties),
	})
}

// ResetDatabase clears every duty, sleep entry and setting.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.Store.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset store", err)
		return
	}
	h.currentScenario = ""
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// =============================================================================
// ROSTER BUILDER
// =============================================================================

// roster collects duties placed relative to today. Day offsets are negative
// for the past.
type roster struct {
	prefix string
	today  generic.Day
	loc    *time.Location
	duties []duty.Duty
	sleep  []fatigue.SleepEntry
}

func newRoster(prefix string, today generic.Day, loc *time.Location) *roster {
	return &roster{prefix: prefix, today: today, loc: loc}
}

func (b *roster) id(kind string) string {
	return fmt.Sprintf("%s-%s-%d", b.prefix, kind, len(b.duties)+len(b.sleep)+1)
}

func (b *roster) at(offset int, hhmm string) time.Time {
	tod, err := generic.ParseTimeOfDay(hhmm)
	if err != nil {
		panic(err)
	}
	return b.today.AddDays(offset).At(b.loc, tod)
}

// fdp adds a flight duty reporting on today+offset.
func (b *roster) fdp(offset int, report string, length generic.Minutes, sectors int, where duty.Location) *duty.Duty {
	start := b.at(offset, report)
	b.duties = append(b.duties, duty.Duty{
		ID:       b.id("fdp"),
		Kind:     duty.KindFDP,
		Date:     b.today.AddDays(offset),
		Report:   start,
		Off:      start.Add(length.Duration()),
		Sectors:  sectors,
		Location: where,
	})
	return &b.duties[len(b.duties)-1]
}

func (b *roster) standby(offset int, typ duty.StandbyType, from string, length generic.Minutes) *duty.Duty {
	start := b.at(offset, from)
	b.duties = append(b.duties, duty.Duty{
		ID:       b.id("sby"),
		Kind:     duty.KindStandby,
		Date:     b.today.AddDays(offset),
		Location: duty.LocationHome,
		Standby: duty.Standby{
			Type:  typ,
			Start: start,
			End:   start.Add(length.Duration()),
		},
	})
	return &b.duties[len(b.duties)-1]
}

func (b *roster) sick(offset int) {
	b.duties = append(b.duties, duty.Duty{
		ID:       b.id("sick"),
		Kind:     duty.KindSick,
		Date:     b.today.AddDays(offset),
		Location: duty.LocationHome,
	})
}

func (b *roster) slept(offset int, from string, length generic.Minutes, quality int) {
	typ := fatigue.SleepMain
	if length < generic.Hours(3) {
		typ = fatigue.SleepNap
	}
	start := b.at(offset, from)
	b.sleep = append(b.sleep, fatigue.SleepEntry{
		ID:      b.id("sleep"),
		Start:   start,
		End:     start.Add(length.Duration()),
		Type:    typ,
		Quality: quality,
	})
}

func (b *roster) save(ctx context.Context, store Store) error {
	for _, d := range b.duties {
		if err := store.SaveDuty(ctx, d); err != nil {
			return fmt.Errorf("save duty %s: %w", d.ID, err)
		}
	}
	for _, s := range b.sleep {
		if err := store.SaveSleep(ctx, s); err != nil {
			return fmt.Errorf("save sleep %s: %w", s.ID, err)
		}
	}
	return nil
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func loadCleanWeek(b *roster) {
	// Monday to Friday day flying, weekend off
	for day := -6; day <= -2; day++ {
		b.fdp(day, "07:00", generic.Hours(9), 2, duty.LocationHome)
		b.slept(day-1, "22:00", generic.Hours(8), 4)
	}
}

func loadShortRest(b *roster) {
	b.fdp(-3, "08:00", generic.Hours(8), 2, duty.LocationHome)
	// 23:30 finish, next report 06:00: 6h30 against 12h at home
	b.fdp(-2, "14:30", generic.Hours(9), 3, duty.LocationHome)
	b.fdp(-1, "06:00", generic.Hours(10), 4, duty.LocationHome)
	b.slept(-1, "00:30", generic.Hours(4), 2)
}

func loadStandbyHeavy(b *roster) {
	b.standby(-5, duty.StandbyHome, "06:00", generic.Hours(12))
	b.standby(-4, duty.StandbyAirport, "05:00", generic.Hours(6))

	sb := b.standby(-2, duty.StandbyHome, "04:00", generic.Hours(12))
	sb.Standby.Called = true
	sb.Standby.Call = b.at(-2, "09:00")
	sb.Report = b.at(-2, "11:00")
	sb.Off = b.at(-2, "23:30")
	sb.Sectors = 4
}

func loadLongRun(b *roster) {
	for day := -8; day <= -1; day++ {
		b.fdp(day, "07:30", generic.Hours(8), 2, duty.LocationHome)
	}
}

func loadSickAndTired(b *roster) {
	b.fdp(-5, "06:00", generic.Hours(9), 2, duty.LocationHome)
	b.fdp(-4, "06:00", generic.Hours(9), 2, duty.LocationHome)
	b.sick(-3)
	b.fdp(-2, "07:00", generic.Hours(8), 2, duty.LocationAway)

	night := b.fdp(-1, "22:00", generic.Hours(9), 2, duty.LocationAway)
	night.SPS = 6
	b.slept(-2, "23:00", generic.Hours(4), 2)
	b.slept(-1, "13:00", generic.Minutes(90), 3)
}
