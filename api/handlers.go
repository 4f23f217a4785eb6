/*
handlers.go - HTTP API handlers for the program schedule engine

PURPOSE:
  Exposes the schedule engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to schedule.Service.

ENDPOINTS:
  Programs:
    GET    /api/programs                       List programs
    POST   /api/programs                       Import a program template
    GET    /api/programs/{id}                  Program with items
    PUT    /api/programs/{id}/status           Change program status
    GET    /api/programs/{id}/instances        Instances (?kind=item|task)
    GET    /api/programs/{id}/summary          Counts and adherence (?kind=)
    POST   /api/programs/{id}/regenerate       Full or recent regeneration

  Instances ({kind} is item or task, {series} the item or task ID):
    POST   /api/instances/{kind}/{series}/{number}/drift    Drift check
    POST   /api/instances/{kind}/{series}/{number}/toggle   Step state
    POST   /api/instances/{kind}/{series}/{number}/cascade  Re-date followers

  Scenarios:
    GET    /api/scenarios              List demo scenarios
    POST   /api/scenarios/load         Load a demo scenario
    POST   /api/scenarios/reset        Clear the database

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input           (code "validation")
  - 404: Resource not found                         (code "not_found")
  - 409: Program is read-only                       (code "read_only")
  - 409: Stale version, retry with fresh state      (code "conflict")
  - 500: Anything else, details only in the log     (code "internal_error")
  A regeneration with failed items answers 200 and lists the failures.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/myowjaYOY/program-tracker-sub004/factory"
	"github.com/myowjaYOY/program-tracker-sub004/schedule"
	"github.com/myowjaYOY/program-tracker-sub004/store/sqlite"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service *schedule.Service
	Store   *sqlite.Store
	Factory *factory.ProgramFactory
	Log     zerolog.Logger

	mu              sync.Mutex
	currentScenario string
}

// NewHandler creates a handler whose service runs on store.
func NewHandler(store *sqlite.Store, svc *schedule.Service, log zerolog.Logger) *Handler {
	return &Handler{
		Service: svc,
		Store:   store,
		Factory: factory.NewProgramFactory(),
		Log:     log,
	}
}

// =============================================================================
// PROGRAM HANDLERS
// =============================================================================

// ListPrograms returns all programs.
func (h *Handler) ListPrograms(w http.ResponseWriter, r *http.Request) {
	programs, err := h.Service.Store.ListPrograms(r.Context())
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	dtos := make([]ProgramDTO, len(programs))
	for i, p := range programs {
		dtos[i] = toProgramDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateProgram imports a program template and generates its schedule.
// POST /api/programs
func (h *Handler) CreateProgram(w http.ResponseWriter, r *http.Request) {
	var pj factory.ProgramJSON
	if err := json.NewDecoder(r.Body).Decode(&pj); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	tpl, err := h.Factory.FromJSON(pj)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	ctx := r.Context()
	if err := h.Factory.Import(ctx, h.Service.Store, tpl, h.Service.Clock.Now()); err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	var resp CreateProgramResponse
	if tpl.Program.Status.CanRegenerate() {
		res, err := h.Service.Regenerate(ctx, tpl.Program.ID, schedule.ModeFull)
		if err != nil && !errors.Is(err, schedule.ErrPartialFailure) {
			h.writeDomainError(w, r, err)
			return
		}
		dto := toRegenerationDTO(res)
		resp.Regeneration = &dto
	}

	detail, err := h.programDetail(r, tpl.Program.ID)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	resp.Program = detail
	writeJSON(w, http.StatusCreated, resp)
}

// GetProgram returns a program with its items.
// GET /api/programs/{id}
func (h *Handler) GetProgram(w http.ResponseWriter, r *http.Request) {
	detail, err := h.programDetail(r, schedule.ProgramID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (h *Handler) programDetail(r *http.Request, id schedule.ProgramID) (ProgramDetailDTO, error) {
	ctx := r.Context()
	p, err := h.Service.Store.GetProgram(ctx, id)
	if err != nil {
		return ProgramDetailDTO{}, err
	}
	items, err := h.Service.Store.ListItems(ctx, id)
	if err != nil {
		return ProgramDetailDTO{}, err
	}

	detail := ProgramDetailDTO{ProgramDTO: toProgramDTO(p), Items: make([]ItemDTO, len(items))}
	for i, it := range items {
		detail.Items[i] = toItemDTO(it)
	}
	return detail, nil
}

// SetProgramStatus changes a program's status.
// PUT /api/programs/{id}/status
func (h *Handler) SetProgramStatus(w http.ResponseWriter, r *http.Request) {
	var req SetStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	status, err := schedule.ParseProgramStatus(req.Status)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	p, err := h.Service.SetStatus(r.Context(), schedule.ProgramID(chi.URLParam(r, "id")), status)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProgramDTO(p))
}

// ListInstances returns a program's instances sorted by planned date.
// GET /api/programs/{id}/instances?kind=item|task
func (h *Handler) ListInstances(w http.ResponseWriter, r *http.Request) {
	kind, err := schedule.ParseKind(r.URL.Query().Get("kind"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	insts, err := h.Service.Instances(r.Context(), schedule.ProgramID(chi.URLParam(r, "id")), kind)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	dtos := make([]InstanceDTO, len(insts))
	for i, inst := range insts {
		dtos[i] = toInstanceDTO(inst)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetSummary returns completion counts and adherence.
// GET /api/programs/{id}/summary?kind=item|task
func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	kind, err := schedule.ParseKind(r.URL.Query().Get("kind"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	sum, err := h.Service.Summary(r.Context(), schedule.ProgramID(chi.URLParam(r, "id")), kind)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSummaryDTO(sum))
}

// Regenerate runs a full or recent regeneration.
// POST /api/programs/{id}/regenerate
func (h *Handler) Regenerate(w http.ResponseWriter, r *http.Request) {
	var req RegenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	mode, err := schedule.ParseMode(req.Mode)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	res, err := h.Service.Regenerate(r.Context(), schedule.ProgramID(chi.URLParam(r, "id")), mode)
	if err != nil && !errors.Is(err, schedule.ErrPartialFailure) {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRegenerationDTO(res))
}

// =============================================================================
// INSTANCE HANDLERS
// =============================================================================

// CheckDrift reports whether a proposed redeem needs the adjustment prompt.
// POST /api/instances/{kind}/{series}/{number}/drift
func (h *Handler) CheckDrift(w http.ResponseWriter, r *http.Request) {
	key, err := instanceKey(r)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	var req DriftRequest
	if err := decodeOptional(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	proposed := schedule.StateRedeemed
	if req.ProposedState != "" {
		if proposed, err = schedule.ParseState(req.ProposedState); err != nil {
			h.writeDomainError(w, r, err)
			return
		}
	}
	actual, err := optionalDate("actual_date", req.ActualDate)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	res, err := h.Service.CheckDrift(r.Context(), key, proposed, actual)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toDriftDTO(res))
}

// ToggleInstance steps an instance's state, optionally cascading drift.
// POST /api/instances/{kind}/{series}/{number}/toggle
func (h *Handler) ToggleInstance(w http.ResponseWriter, r *http.Request) {
	key, err := instanceKey(r)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	var req ToggleRequest
	if err := decodeOptional(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	treq := schedule.ToggleRequest{
		Key:             key,
		ExpectedVersion: req.ExpectedVersion,
		Cascade:         req.Cascade,
	}
	if treq.Direction, err = schedule.ParseDirection(req.Direction); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	if treq.Variant, err = schedule.ParseVariant(req.Variant); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	if treq.ActualDate, err = optionalDate("actual_date", req.ActualDate); err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	res, err := h.Service.Toggle(r.Context(), treq)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ToggleResponse{
		Instance:      toInstanceDTO(res.Instance),
		PreviousState: string(res.Previous),
		Drift:         toDriftDTO(res.Drift),
		Shifted:       toShiftDTOs(res.Shifts),
	})
}

// ApplyCascade re-dates the open followers of an instance.
// POST /api/instances/{kind}/{series}/{number}/cascade
func (h *Handler) ApplyCascade(w http.ResponseWriter, r *http.Request) {
	key, err := instanceKey(r)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	var req CascadeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	actual, err := schedule.ParseDate(req.ActualDate)
	if err != nil {
		h.writeDomainError(w, r, &schedule.ValidationError{Field: "actual_date", Reason: err.Error()})
		return
	}

	res, err := h.Service.ApplyCascade(r.Context(), key, actual)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, CascadeResponse{Anchor: res.Anchor.String(), Shifted: toShiftDTOs(res.Shifted)})
}

// =============================================================================
// HELPERS
// =============================================================================

func instanceKey(r *http.Request) (schedule.InstanceKey, error) {
	kind, err := schedule.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		return schedule.InstanceKey{}, err
	}
	n, err := strconv.Atoi(chi.URLParam(r, "number"))
	if err != nil || n < 1 {
		return schedule.InstanceKey{}, &schedule.ValidationError{
			Field:  "number",
			Reason: fmt.Sprintf("instance number must be a positive integer, got %q", chi.URLParam(r, "number")),
		}
	}
	return schedule.InstanceKey{Kind: kind, Series: schedule.SeriesID(chi.URLParam(r, "series")), Number: n}, nil
}

func optionalDate(field, s string) (*schedule.Date, error) {
	if s == "" {
		return nil, nil
	}
	d, err := schedule.ParseDate(s)
	if err != nil {
		return nil, &schedule.ValidationError{Field: field, Reason: err.Error()}
	}
	return &d, nil
}

// decodeOptional decodes a JSON body, treating an empty body as {}.
func decodeOptional(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps engine errors onto HTTP statuses. Unknown errors
// are logged and reported without detail.
func (h *Handler) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		ro     *schedule.ReadOnlyViolation
		conf   *schedule.ConflictError
		exists *schedule.AlreadyExistsError
	)
	switch {
	case errors.Is(err, schedule.ErrValidation):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "validation"})
	case errors.Is(err, schedule.ErrNotFound):
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: err.Error(), Code: "not_found"})
	case errors.As(err, &ro):
		writeJSON(w, http.StatusConflict, ErrorResponse{
			Error:   err.Error(),
			Code:    "read_only",
			Details: map[string]string{"program_id": string(ro.ProgramID), "status": string(ro.Status)},
		})
	case errors.As(err, &exists):
		writeJSON(w, http.StatusConflict, ErrorResponse{
			Error:   err.Error(),
			Code:    "already_exists",
			Details: map[string]string{"resource": exists.Resource, "id": exists.ID},
		})
	case errors.As(err, &conf):
		writeJSON(w, http.StatusConflict, ErrorResponse{
			Error:   err.Error(),
			Code:    "conflict",
			Details: map[string]int{"expected_version": conf.ExpectedVersion, "actual_version": conf.ActualVersion},
		})
	default:
		h.Log.Error().Err(err).
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("path", r.URL.Path).
			Msg("request failed")
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "internal error", Code: "internal_error"})
	}
}
