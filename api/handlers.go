/*
handlers.go - HTTP API handlers for the duty compliance engine

PURPOSE:
  Exposes the engine via REST API. Handlers load the recorded duties from
  the store, hand them to duty.Rules, fatigue.Scorer or whatif.Simulate and
  serialize the results. Nothing the engine computes is ever stored.

ENDPOINTS:
  Duties:
    GET    /api/duties                 List duties, newest first, with worst badge
    POST   /api/duties                 Create duty
    GET    /api/duties/{id}            Get duty
    PUT    /api/duties/{id}            Replace duty
    DELETE /api/duties/{id}            Delete duty
    GET    /api/duties/{id}/legality   Legality, rolling picture, flags, fatigue

  Aggregates:
    GET    /api/rolling?at=            Rolling snapshot at an instant (default now)
    GET    /api/flags?at=              Flag feed for the 12 months before at
    GET    /api/stats?at=              Quick statistics
    POST   /api/whatif                 Simulate a draft duty with assumptions

  Sleep and settings:
    GET/POST /api/sleep, DELETE /api/sleep/{id}
    GET/PUT  /api/settings
    GET      /api/rules                The active rules document

  Scenarios:
    GET    /api/scenarios              List demo scenarios
    POST   /api/scenarios/load         Load a demo scenario

REQUEST FLOW:
  1. Decode and validate the body (validate.go)
  2. Load duties / sleep / settings from the store
  3. Call the engine
  4. Serialize response, record metrics

ERROR HANDLING:
  - 400: Validation errors, unreadable instants, malformed bodies
  - 404: Unknown duty, sleep entry or scenario
  - 500: Store failures

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/warp/duty-engine/duty"
	"github.com/warp/duty-engine/factory"
	"github.com/warp/duty-engine/fatigue"
	"github.com/warp/duty-engine/generic"
	"github.com/warp/duty-engine/logger"
	"github.com/warp/duty-engine/metrics"
	"github.com/warp/duty-engine/whatif"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Store is everything the handlers persist. store/sqlite and store/memory
// both satisfy it.
type Store interface {
	duty.Store
	fatigue.Store
	Reset(ctx context.Context) error
	Ping(ctx context.Context) error
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store   Store
	Rules   duty.Rules
	Log     *logrus.Logger
	Metrics *metrics.Manager

	now func() time.Time

	mu              sync.Mutex
	currentScenario string
}

type Option func(*Handler)

func WithLogger(l *logrus.Logger) Option { return func(h *Handler) { h.Log = l } }

func WithMetrics(m *metrics.Manager) Option { return func(h *Handler) { h.Metrics = m } }

// WithClock fixes "now" for requests that don't pass ?at=.
func WithClock(now func() time.Time) Option { return func(h *Handler) { h.now = now } }

// NewHandler creates a handler over store evaluating with rules.
func NewHandler(store Store, rules duty.Rules, opts ...Option) (*Handler, error) {
	if store == nil {
		return nil, generic.ErrStoreRequired
	}
	h := &Handler{Store: store, Rules: rules, now: time.Now}
	for _, opt := range opts {
		opt(h)
	}
	if h.Log == nil {
		h.Log = logrus.New()
		h.Log.SetOutput(io.Discard)
	}
	if h.Metrics == nil {
		h.Metrics = metrics.NewManager()
	}
	return h, nil
}

func (h *Handler) loc() *time.Location { return h.Rules.Location() }

func (h *Handler) listDuties(ctx context.Context) ([]duty.Duty, error) {
	all, err := h.Store.ListDuties(ctx)
	if err != nil {
		h.Metrics.RecordStoreError("list_duties")
		return nil, err
	}
	h.Metrics.SetDutiesStored(len(all))
	return all, nil
}

// at reads ?at= as a local instant, defaulting to now.
func (h *Handler) at(r *http.Request) (time.Time, error) {
	raw := r.URL.Query().Get("at")
	if raw == "" {
		return h.now().In(h.loc()), nil
	}
	return parseField("at", raw, h.loc())
}

func (h *Handler) scorer(ctx context.Context) (fatigue.Scorer, []fatigue.SleepEntry, error) {
	settings, err := h.Store.LoadSettings(ctx)
	if err != nil {
		h.Metrics.RecordStoreError("load_settings")
		return fatigue.Scorer{}, nil, err
	}
	sleep, err := h.Store.ListSleep(ctx)
	if err != nil {
		h.Metrics.RecordStoreError("list_sleep")
		return fatigue.Scorer{}, nil, err
	}
	return fatigue.NewScorer(h.loc(), settings), sleep, nil
}

func (h *Handler) recordFindings(fs generic.Findings) {
	for _, f := range fs {
		h.Metrics.RecordFinding(f.Key, string(f.Severity))
	}
}

// =============================================================================
// DUTY HANDLERS
// =============================================================================

// DutyListItemDTO is a duty with the worst severity of its badges.
type DutyListItemDTO struct {
	DutyDTO
	Status string `json:"status"`
}

// ListDuties returns all duties, newest first.
func (h *Handler) ListDuties(w http.ResponseWriter, r *http.Request) {
	all, err := h.listDuties(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list duties", err)
		return
	}

	sorted := duty.SortNewestFirst(all, h.loc())
	items := make([]DutyListItemDTO, len(sorted))
	for i, d := range sorted {
		res := h.Rules.Evaluate(d, duty.Previous(sorted, i))
		items[i] = DutyListItemDTO{DutyDTO: toDutyDTO(d, h.loc()), Status: string(res.Badges.Worst())}
	}
	writeJSON(w, http.StatusOK, items)
}

// GetDuty returns a single duty.
func (h *Handler) GetDuty(w http.ResponseWriter, r *http.Request) {
	d, err := h.Store.GetDuty(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, statusFor(err), "Failed to get duty", err)
		return
	}
	writeJSON(w, http.StatusOK, toDutyDTO(*d, h.loc()))
}

// CreateDuty validates and stores a new duty under a fresh ID.
func (h *Handler) CreateDuty(w http.ResponseWriter, r *http.Request) {
	h.saveDuty(w, r, uuid.NewString(), http.StatusCreated)
}

// UpdateDuty replaces an existing duty.
func (h *Handler) UpdateDuty(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.Store.GetDuty(r.Context(), id); err != nil {
		writeError(w, statusFor(err), "Failed to get duty", err)
		return
	}
	h.saveDuty(w, r, id, http.StatusOK)
}

func (h *Handler) saveDuty(w http.ResponseWriter, r *http.Request, id string, status int) {
	var req DutyRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, statusFor(err), "Invalid duty", err)
		return
	}
	d, err := req.toDuty(id, h.loc())
	if err == nil {
		err = duty.Validate(d)
	}
	if err != nil {
		writeError(w, statusFor(err), "Invalid duty", err)
		return
	}
	if err := h.Store.SaveDuty(r.Context(), d); err != nil {
		h.Metrics.RecordStoreError("save_duty")
		logger.WithContext(r.Context(), h.Log).WithError(err).Error("save duty")
		writeError(w, statusFor(err), "Failed to save duty", err)
		return
	}
	writeJSON(w, status, toDutyDTO(d, h.loc()))
}

// DeleteDuty removes a duty.
func (h *Handler) DeleteDuty(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.DeleteDuty(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, statusFor(err), "Failed to delete duty", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetLegality assesses a stored duty against its predecessor and the
// rolling picture anchored at it, plus its fatigue score.
func (h *Handler) GetLegality(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	all, err := h.listDuties(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list duties", err)
		return
	}

	id := chi.URLParam(r, "id")
	a, ok := h.Rules.AssessByID(all, id)
	if !ok {
		writeError(w, http.StatusNotFound, "Duty not found", generic.ErrDutyNotFound)
		return
	}
	h.Metrics.RecordEvaluation("legality")
	h.recordFindings(a.Legality.Badges)

	fa, err := h.fatigueFor(ctx, a.Duty)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to score fatigue", err)
		return
	}
	writeJSON(w, http.StatusOK, toLegalityResponse(h.Rules, a, fa))
}

func (h *Handler) fatigueFor(ctx context.Context, d duty.Duty) (*fatigue.Assessment, error) {
	scorer, sleep, err := h.scorer(ctx)
	if err != nil {
		return nil, err
	}
	fa, ok := scorer.Assess(sleep, d)
	if !ok {
		return nil, nil
	}
	h.Metrics.ObserveFatigueScore(fa.Score)
	return &fa, nil
}

// =============================================================================
// AGGREGATE HANDLERS
// =============================================================================

// GetRolling returns the rolling snapshot at ?at= (default now).
func (h *Handler) GetRolling(w http.ResponseWriter, r *http.Request) {
	at, err := h.at(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid instant", err)
		return
	}
	all, err := h.listDuties(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list duties", err)
		return
	}

	snap := h.Rules.Rolling(all, at)
	findings := h.Rules.RollingFindings(snap)
	h.Metrics.RecordEvaluation("rolling")
	h.recordFindings(findings)
	writeJSON(w, http.StatusOK, toRollingResponse(snap, findings, h.loc()))
}

// GetFlags returns the monthly flag feed for the 12 months before ?at=.
func (h *Handler) GetFlags(w http.ResponseWriter, r *http.Request) {
	at, err := h.at(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid instant", err)
		return
	}
	all, err := h.listDuties(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list duties", err)
		return
	}

	feed := h.Rules.FlagFeed(all, h.Rules.FeedStart(at))
	if feed == nil {
		feed = []duty.MonthFlags{}
	}
	h.Metrics.RecordEvaluation("flags")
	writeJSON(w, http.StatusOK, feed)
}

// GetStats returns quick statistics relative to ?at=.
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	at, err := h.at(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid instant", err)
		return
	}
	all, err := h.listDuties(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list duties", err)
		return
	}
	h.Metrics.RecordEvaluation("stats")
	writeJSON(w, http.StatusOK, h.Rules.QuickStats(all, at))
}

// WhatIf simulates a draft duty. Nothing is written.
func (h *Handler) WhatIf(w http.ResponseWriter, r *http.Request) {
	var req WhatIfRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, statusFor(err), "Invalid what-if request", err)
		return
	}

	draft, err := req.Draft.toDuty("", h.loc())
	if err == nil {
		err = duty.Validate(draft)
	}
	if err != nil {
		writeError(w, statusFor(err), "Invalid draft", err)
		return
	}
	assumptions := make([]whatif.Assumption, 0, len(req.Assumptions))
	for _, a := range req.Assumptions {
		as, err := a.toAssumption()
		if err != nil {
			writeError(w, statusFor(err), "Invalid assumption", err)
			return
		}
		assumptions = append(assumptions, as)
	}

	ctx := r.Context()
	recorded, err := h.listDuties(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list duties", err)
		return
	}

	sim := whatif.Simulate(h.Rules, recorded, draft, assumptions)
	h.Metrics.RecordEvaluation("whatif")

	fa, err := h.fatigueFor(ctx, sim.Overlay.DraftDuty())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to score fatigue", err)
		return
	}

	resp := WhatIfResponse{
		LegalityResponse: toLegalityResponse(h.Rules, sim.Assessment, fa),
		Ghosts:           toDutyDTOs(sim.Overlay.Ghosts(), h.loc()),
		Hidden:           sim.Overlay.Hidden,
	}
	if resp.Hidden == nil {
		resp.Hidden = []string{}
	}
	writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// SLEEP / SETTINGS / RULES
// =============================================================================

func (h *Handler) ListSleep(w http.ResponseWriter, r *http.Request) {
	entries, err := h.Store.ListSleep(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list sleep", err)
		return
	}
	out := make([]SleepDTO, len(entries))
	for i, e := range entries {
		out[i] = toSleepDTO(e, h.loc())
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) CreateSleep(w http.ResponseWriter, r *http.Request) {
	var req SleepRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, statusFor(err), "Invalid sleep entry", err)
		return
	}
	e, err := req.toSleep(uuid.NewString(), h.loc())
	if err != nil {
		writeError(w, statusFor(err), "Invalid sleep entry", err)
		return
	}
	if err := h.Store.SaveSleep(r.Context(), e); err != nil {
		writeError(w, statusFor(err), "Failed to save sleep entry", err)
		return
	}
	writeJSON(w, http.StatusCreated, toSleepDTO(e, h.loc()))
}

func (h *Handler) DeleteSleep(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.DeleteSleep(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, statusFor(err), "Failed to delete sleep entry", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	s, err := h.Store.LoadSettings(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load settings", err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req SettingsRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, statusFor(err), "Invalid settings", err)
		return
	}
	s := req.toSettings()
	if err := h.Store.SaveSettings(r.Context(), s); err != nil {
		writeError(w, statusFor(err), "Failed to save settings", err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// GetRules returns the active rules as a rules document.
func (h *Handler) GetRules(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, factory.NewRulesFactory().ToJSON(h.Rules))
}

// Health reports whether the store answers.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Ping(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "Store unavailable", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
		if fe, ok := err.(fieldErrors); ok {
			resp.Fields = fe
		}
	}
	writeJSON(w, status, resp)
}
