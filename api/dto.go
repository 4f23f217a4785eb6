/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication, decoupling the
  schedule engine's types from the wire contract. Dates are YYYY-MM-DD.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

TYPES:
  Programs:   ProgramDTO, ProgramDetailDTO, ItemDTO, CreateProgramResponse,
              SetStatusRequest
  Instances:  InstanceDTO
  Actions:    DriftRequest, DriftDTO, ToggleRequest, ToggleResponse,
              CascadeRequest, CascadeResponse
  Regenerate: RegenerateRequest, RegenerationDTO
  Summary:    SummaryDTO
  Scenarios:  ScenarioDTO, LoadScenarioRequest

SEE ALSO:
  - handlers.go: Uses these types
  - factory/program.go: ProgramJSON (program creation body)
*/
package api

import (
	"time"

	"github.com/myowjaYOY/program-tracker-sub004/schedule"
)

// =============================================================================
// PROGRAMS
// =============================================================================

type ProgramDTO struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	StartDate string    `json:"start_date"`
	Status    string    `json:"status"`
	ReadOnly  bool      `json:"read_only"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type ProgramDetailDTO struct {
	ProgramDTO
	Items []ItemDTO `json:"items"`
}

type ItemDTO struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	RepeatCount int       `json:"repeat_count"`
	OffsetDays  int       `json:"offset_days"`
	SpacingDays int       `json:"spacing_days"`
	Active      bool      `json:"active"`
	Tasks       []TaskDTO `json:"tasks"`
}

type TaskDTO struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	DelayDays int    `json:"delay_days"`
}

// CreateProgramResponse is returned when a template is imported. The
// schedule is generated right away unless the status forbids it.
type CreateProgramResponse struct {
	Program      ProgramDetailDTO `json:"program"`
	Regeneration *RegenerationDTO `json:"regeneration,omitempty"`
}

type SetStatusRequest struct {
	Status string `json:"status"`
}

// =============================================================================
// INSTANCES
// =============================================================================

type InstanceDTO struct {
	ID             string    `json:"id"`
	Kind           string    `json:"kind"`
	SeriesID       string    `json:"series_id"`
	ItemID         string    `json:"item_id"`
	InstanceNumber int       `json:"instance_number"`
	PlannedDate    string    `json:"planned_date"`
	State          string    `json:"state"`
	CompletedOn    *string   `json:"completed_on,omitempty"`
	Version        int       `json:"version"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// DriftRequest asks whether moving to ProposedState on ActualDate needs
// the adjustment prompt.
type DriftRequest struct {
	ProposedState string `json:"proposed_state"`
	ActualDate    string `json:"actual_date,omitempty"` // default today
}

type DriftDTO struct {
	NeedsPrompt     bool   `json:"needs_prompt"`
	FutureOpenCount int    `json:"future_open_count"`
	Reason          string `json:"reason"`
	InstanceNumber  int    `json:"instance_number"`
	SpacingDays     int    `json:"spacing_days"`
	PlannedDate     string `json:"planned_date"`
	ActualDate      string `json:"actual_date"`
	OffsetDays      int    `json:"offset_days"`
}

type ToggleRequest struct {
	Direction       string `json:"direction,omitempty"` // forward (default) or backward
	Variant         string `json:"variant,omitempty"`   // tri_state (default) or pending_missed
	ExpectedVersion int    `json:"expected_version"` // required, the version last read
	ActualDate      string `json:"actual_date,omitempty"`
	Cascade         bool   `json:"cascade,omitempty"`
}

type ShiftDTO struct {
	InstanceNumber int    `json:"instance_number"`
	From           string `json:"from"`
	To             string `json:"to"`
}

type ToggleResponse struct {
	Instance      InstanceDTO `json:"instance"`
	PreviousState string      `json:"previous_state"`
	Drift         DriftDTO    `json:"drift"`
	Shifted       []ShiftDTO  `json:"shifted"`
}

type CascadeRequest struct {
	ActualDate string `json:"actual_date"`
}

type CascadeResponse struct {
	Anchor  string     `json:"anchor"`
	Shifted []ShiftDTO `json:"shifted"`
}

// =============================================================================
// REGENERATION
// =============================================================================

type RegenerateRequest struct {
	Mode string `json:"mode"` // full or recent
}

type ItemFailureDTO struct {
	ItemID string `json:"item_id"`
	Name   string `json:"name"`
	Error  string `json:"error"`
}

type RegenerationDTO struct {
	ProgramID        string           `json:"program_id"`
	Mode             string           `json:"mode"`
	ItemsProcessed   int              `json:"items_processed"`
	InstancesCreated int              `json:"instances_created"`
	InstancesUpdated int              `json:"instances_updated"`
	InstancesRemoved int              `json:"instances_removed"`
	Failures         []ItemFailureDTO `json:"failures"`
}

// =============================================================================
// SUMMARY
// =============================================================================

type SummaryDTO struct {
	ProgramID string  `json:"program_id"`
	Kind      string  `json:"kind"`
	Total     int     `json:"total"`
	Pending   int     `json:"pending"`
	Redeemed  int     `json:"redeemed"`
	Missed    int     `json:"missed"`
	Adherence string  `json:"adherence"` // decimal string, e.g. "0.6667"
	NextDue   *string `json:"next_due,omitempty"`
}

// =============================================================================
// SCENARIOS
// =============================================================================

type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toProgramDTO(p schedule.Program) ProgramDTO {
	return ProgramDTO{
		ID:        string(p.ID),
		Name:      p.Name,
		StartDate: p.StartDate.String(),
		Status:    string(p.Status),
		ReadOnly:  !p.Status.IsMutable(),
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

func toItemDTO(it schedule.ProgramItem) ItemDTO {
	dto := ItemDTO{
		ID:          string(it.ID),
		Name:        it.Name,
		RepeatCount: it.RepeatCount,
		OffsetDays:  it.OffsetDays,
		SpacingDays: it.SpacingDays,
		Active:      it.Active,
		Tasks:       make([]TaskDTO, len(it.Tasks)),
	}
	for i, t := range it.Tasks {
		dto.Tasks[i] = TaskDTO{ID: string(t.ID), Name: t.Name, DelayDays: t.DelayDays}
	}
	return dto
}

func toInstanceDTO(inst schedule.Instance) InstanceDTO {
	dto := InstanceDTO{
		ID:             inst.ID,
		Kind:           string(inst.Key.Kind),
		SeriesID:       string(inst.Key.Series),
		ItemID:         string(inst.ItemID),
		InstanceNumber: inst.Key.Number,
		PlannedDate:    inst.PlannedDate.String(),
		State:          string(inst.State),
		Version:        inst.Version,
		UpdatedAt:      inst.UpdatedAt,
	}
	if inst.CompletedOn != nil {
		s := inst.CompletedOn.String()
		dto.CompletedOn = &s
	}
	return dto
}

func toDriftDTO(d schedule.DriftResult) DriftDTO {
	return DriftDTO{
		NeedsPrompt:     d.NeedsPrompt,
		FutureOpenCount: d.FutureOpenCount,
		Reason:          string(d.Reason),
		InstanceNumber:  d.Number,
		SpacingDays:     d.SpacingDays,
		PlannedDate:     d.PlannedDate.String(),
		ActualDate:      d.ActualDate.String(),
		OffsetDays:      d.OffsetDays,
	}
}

func toShiftDTOs(shifts []schedule.Shift) []ShiftDTO {
	out := make([]ShiftDTO, len(shifts))
	for i, s := range shifts {
		out[i] = ShiftDTO{InstanceNumber: s.Key.Number, From: s.From.String(), To: s.To.String()}
	}
	return out
}

func toRegenerationDTO(res schedule.RegenerationResult) RegenerationDTO {
	dto := RegenerationDTO{
		ProgramID:        string(res.ProgramID),
		Mode:             string(res.Mode),
		ItemsProcessed:   res.ItemsProcessed,
		InstancesCreated: res.InstancesCreated,
		InstancesUpdated: res.InstancesUpdated,
		InstancesRemoved: res.InstancesRemoved,
		Failures:         make([]ItemFailureDTO, len(res.Failures)),
	}
	for i, f := range res.Failures {
		dto.Failures[i] = ItemFailureDTO{ItemID: string(f.ItemID), Name: f.Name, Error: f.Err.Error()}
	}
	return dto
}

func toSummaryDTO(s schedule.Summary) SummaryDTO {
	dto := SummaryDTO{
		ProgramID: string(s.ProgramID),
		Kind:      string(s.Kind),
		Total:     s.Total,
		Pending:   s.Pending,
		Redeemed:  s.Redeemed,
		Missed:    s.Missed,
		Adherence: s.Adherence.StringFixed(4),
	}
	if s.NextDue != nil {
		d := s.NextDue.String()
		dto.NextDue = &d
	}
	return dto
}
