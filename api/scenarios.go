/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	programs for demos. Each scenario imports one or more program templates
	relative to today, generates their schedules, and replays a few clicks
	so the UI has history to show.

AVAILABLE SCENARIOS:

	knee-rehab:        Active program, on-plan history, sessions + follow-up tasks
	late-session:      A session redeemed late with open followers (drift prompt)
	closed-program:    Completed program whose schedule is read-only
	recent-change:     An item edited just now, picked up by recent regeneration

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Import program templates via factory
 3. Generate schedules (full regeneration)
 4. Replay state changes through the service

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "late-session"}

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: error mapping and JSON helpers
  - factory/program.go: Program JSON definitions
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/myowjaYOY/program-tracker-sub004/factory"
	"github.com/myowjaYOY/program-tracker-sub004/schedule"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "knee-rehab",
		Name:        "Knee Rehabilitation",
		Description: "Weekly physiotherapy with session notes, first sessions done on plan",
	},
	{
		ID:          "late-session",
		Name:        "Late Session",
		Description: "Second session happened three days late; later sessions still open",
	},
	{
		ID:          "closed-program",
		Name:        "Closed Program",
		Description: "Completed program: history is kept, every edit is rejected",
	},
	{
		ID:          "recent-change",
		Name:        "Recent Change",
		Description: "An item was just added and has no schedule until a recent regeneration",
	},
}

var scenarioLoaders = map[string]func(*Handler, context.Context) error{
	"knee-rehab":     (*Handler).loadKneeRehabScenario,
	"late-session":   (*Handler).loadLateSessionScenario,
	"closed-program": (*Handler).loadClosedProgramScenario,
	"recent-change":  (*Handler).loadRecentChangeScenario,
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

	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, nil)
}

// LoadScenario resets the database and loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	load, ok := scenarioLoaders[req.ScenarioID]
	if !ok {
		writeError(w, http.StatusBadRequest, "Unknown scenario", fmt.Errorf("scenario %q does not exist", req.ScenarioID))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	ctx := r.Context()
	if err := h.Store.Reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.currentScenario = ""

	if err := load(h, ctx); err != nil {
		h.Log.Error().Err(err).Str("scenario", req.ScenarioID).Msg("scenario load failed")
		writeError(w, http.StatusInternalServerError, "Failed to load scenario", err)
		return
	}
	h.currentScenario = req.ScenarioID

	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// ResetDatabase clears all data.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.Store.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.currentScenario = ""
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func (h *Handler) loadKneeRehabScenario(ctx context.Context) error {
	today := h.Service.Today()
	pj := kneeRehabTemplate("knee-rehab", today.AddDays(-17))
	if err := h.importAndGenerate(ctx, pj); err != nil {
		return err
	}

	// Sessions 1 and 2 happened on plan; the notes for session 1 went out.
	for _, k := range []schedule.InstanceKey{
		{Kind: schedule.KindItem, Series: "knee-rehab-physio", Number: 1},
		{Kind: schedule.KindItem, Series: "knee-rehab-physio", Number: 2},
		{Kind: schedule.KindTask, Series: "knee-rehab-physio-notes", Number: 1},
	} {
		if err := h.redeemOnPlan(ctx, k); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) loadLateSessionScenario(ctx context.Context) error {
	today := h.Service.Today()
	pj := kneeRehabTemplate("late-rehab", today.AddDays(-20))
	if err := h.importAndGenerate(ctx, pj); err != nil {
		return err
	}

	first := schedule.InstanceKey{Kind: schedule.KindItem, Series: "late-rehab-physio", Number: 1}
	if err := h.redeemOnPlan(ctx, first); err != nil {
		return err
	}

	// Session 2 happened three days after its planned date. The cascade is
	// left to the user: the drift check on it reports open followers.
	second := first
	second.Number = 2
	inst, err := h.Service.Store.GetInstance(ctx, second)
	if err != nil {
		return err
	}
	late := inst.PlannedDate.AddDays(3)
	_, err = h.Service.Toggle(ctx, schedule.ToggleRequest{Key: second, ExpectedVersion: inst.Version, ActualDate: &late})
	return err
}

func (h *Handler) loadClosedProgramScenario(ctx context.Context) error {
	today := h.Service.Today()
	pj := kneeRehabTemplate("closed-rehab", today.AddDays(-70))
	if err := h.importAndGenerate(ctx, pj); err != nil {
		return err
	}

	insts, err := h.Service.Instances(ctx, "closed-rehab", schedule.KindItem)
	if err != nil {
		return err
	}
	for _, inst := range insts {
		req := schedule.ToggleRequest{Key: inst.Key, ExpectedVersion: inst.Version, ActualDate: inst.PlannedDate.Ptr()}
		if inst.Key.Number == 3 && inst.Key.Series == "closed-rehab-physio" {
			req.Direction = schedule.Backward // pending -> missed
		}
		if _, err := h.Service.Toggle(ctx, req); err != nil {
			return err
		}
	}

	_, err = h.Service.SetStatus(ctx, "closed-rehab", schedule.StatusCompleted)
	return err
}

func (h *Handler) loadRecentChangeScenario(ctx context.Context) error {
	today := h.Service.Today()
	pj := kneeRehabTemplate("recent-rehab", today.AddDays(-7))
	if err := h.importAndGenerate(ctx, pj); err != nil {
		return err
	}

	// Added after the last regeneration: no instances until a "recent" run.
	item := schedule.ProgramItem{
		ID:          "recent-rehab-hydro",
		ProgramID:   "recent-rehab",
		Name:        "Hydrotherapy",
		RepeatCount: 4,
		OffsetDays:  7,
		SpacingDays: 7,
		Active:      true,
		UpdatedAt:   h.Service.Clock.Now().UTC(),
	}
	return h.Service.Store.SaveItem(ctx, item)
}

// =============================================================================
// HELPERS
// =============================================================================

// kneeRehabTemplate is an 8-week physiotherapy course with session notes
// and two specialist follow-ups. IDs are prefixed with id.
func kneeRehabTemplate(id string, start schedule.Date) factory.ProgramJSON {
	return factory.ProgramJSON{
		ID:        id,
		Name:      "Knee rehabilitation",
		StartDate: start.String(),
		Status:    string(schedule.StatusActive),
		Items: []factory.ItemJSON{
			{
				ID:          id + "-physio",
				Name:        "Physiotherapy session",
				RepeatCount: 8,
				OffsetDays:  3,
				SpacingDays: 7,
				Tasks: []factory.TaskJSON{
					{ID: id + "-physio-notes", Name: "Send session notes", DelayDays: 1},
				},
			},
			{
				ID:          id + "-consult",
				Name:        "Orthopaedic follow-up",
				RepeatCount: 2,
				OffsetDays:  28,
				SpacingDays: 28,
			},
		},
	}
}

func (h *Handler) importAndGenerate(ctx context.Context, pj factory.ProgramJSON) error {
	tpl, err := h.Factory.FromJSON(pj)
	if err != nil {
		return err
	}
	if err := h.Factory.Import(ctx, h.Service.Store, tpl, h.Service.Clock.Now()); err != nil {
		return err
	}
	_, err = h.Service.Regenerate(ctx, tpl.Program.ID, schedule.ModeFull)
	return err
}

func (h *Handler) redeemOnPlan(ctx context.Context, key schedule.InstanceKey) error {
	inst, err := h.Service.Store.GetInstance(ctx, key)
	if err != nil {
		return err
	}
	_, err = h.Service.Toggle(ctx, schedule.ToggleRequest{Key: key, ExpectedVersion: inst.Version, ActualDate: inst.PlannedDate.Ptr()})
	return err
}
