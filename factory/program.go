/*
Package factory provides JSON to Go program template conversion.

PURPOSE:
  Converts JSON program definitions into schedule.Program and
  schedule.ProgramItem values and imports them into a store. Programs can
  be set up from a file or an admin tool without code changes.

JSON SCHEMA:
  {
    "id": "rehab-knee",
    "name": "Knee rehabilitation",
    "start_date": "2024-01-01",
    "status": "active",
    "items": [
      {
        "id": "physio",
        "name": "Physiotherapy session",
        "repeat_count": 5,
        "offset_days": 10,
        "spacing_days": 7,
        "tasks": [
          {"id": "physio-notes", "name": "Send session notes", "delay_days": 1}
        ]
      }
    ]
  }

KEY FEATURES:
  - Validates recurrence parameters before anything is written
  - Sets sensible defaults (status "active", items active, random IDs)
  - Round-trips: ToJSON(FromJSON(x)) describes the same program

USAGE:
  f := factory.NewProgramFactory()
  tpl, err := f.ParseProgram(jsonString)
  if err != nil { ... }
  err = f.Import(ctx, store, tpl, time.Now())

SEE ALSO:
  - schedule/types.go: Program and ProgramItem
  - api/scenarios.go: demo programs built from templates
*/
package factory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/myowjaYOY/program-tracker-sub004/schedule"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// ProgramJSON is the JSON representation of a program template.
type ProgramJSON struct {
	ID        string     `json:"id,omitempty"`
	Name      string     `json:"name"`
	StartDate string     `json:"start_date"`
	Status    string     `json:"status,omitempty"` // default "active"
	Items     []ItemJSON `json:"items"`
}

// ItemJSON represents one recurring item.
type ItemJSON struct {
	ID          string     `json:"id,omitempty"`
	Name        string     `json:"name"`
	RepeatCount int        `json:"repeat_count"`
	OffsetDays  int        `json:"offset_days,omitempty"`
	SpacingDays int        `json:"spacing_days,omitempty"`
	Active      *bool      `json:"active,omitempty"` // default true
	Tasks       []TaskJSON `json:"tasks,omitempty"`
}

// TaskJSON represents a task attached to an item.
type TaskJSON struct {
	ID        string `json:"id,omitempty"`
	Name      string `json:"name"`
	DelayDays int    `json:"delay_days,omitempty"`
}

// Template is a parsed program, ready to import.
type Template struct {
	Program schedule.Program
	Items   []schedule.ProgramItem
}

// =============================================================================
// PROGRAM FACTORY
// =============================================================================

// ProgramFactory converts JSON programs to Go structs.
type ProgramFactory struct {
	// NewID generates IDs for entries that do not carry one.
	NewID func() string
}

// NewProgramFactory creates a new program factory.
func NewProgramFactory() *ProgramFactory {
	return &ProgramFactory{NewID: uuid.NewString}
}

// ParseProgram parses a JSON string into a Template.
func (f *ProgramFactory) ParseProgram(jsonStr string) (Template, error) {
	var pj ProgramJSON
	if err := json.Unmarshal([]byte(jsonStr), &pj); err != nil {
		return Template{}, fmt.Errorf("failed to parse program JSON: %w", err)
	}
	return f.FromJSON(pj)
}

// FromJSON converts ProgramJSON to a Template.
func (f *ProgramFactory) FromJSON(pj ProgramJSON) (Template, error) {
	if pj.Name == "" {
		return Template{}, &schedule.ValidationError{Field: "name", Reason: "program name is required"}
	}

	start, err := schedule.ParseDate(pj.StartDate)
	if err != nil {
		return Template{}, &schedule.ValidationError{Field: "start_date", Reason: err.Error()}
	}

	status := schedule.StatusActive
	if pj.Status != "" {
		if status, err = schedule.ParseProgramStatus(pj.Status); err != nil {
			return Template{}, err
		}
	}

	tpl := Template{
		Program: schedule.Program{
			ID:        schedule.ProgramID(f.idOr(pj.ID)),
			Name:      pj.Name,
			StartDate: start,
			Status:    status,
		},
	}

	seenItems := make(map[schedule.ItemID]bool)
	seenTasks := make(map[schedule.TaskID]bool)
	for _, ij := range pj.Items {
		item, err := f.parseItem(tpl.Program, ij)
		if err != nil {
			return Template{}, err
		}
		if seenItems[item.ID] {
			return Template{}, &schedule.ValidationError{Field: "item_id", Reason: fmt.Sprintf("duplicate item id %q", item.ID)}
		}
		seenItems[item.ID] = true
		for _, t := range item.Tasks {
			if seenTasks[t.ID] {
				return Template{}, &schedule.ValidationError{Field: "task_id", Reason: fmt.Sprintf("duplicate task id %q", t.ID)}
			}
			seenTasks[t.ID] = true
		}
		tpl.Items = append(tpl.Items, item)
	}

	return tpl, nil
}

func (f *ProgramFactory) parseItem(p schedule.Program, ij ItemJSON) (schedule.ProgramItem, error) {
	item := schedule.ProgramItem{
		ID:          schedule.ItemID(f.idOr(ij.ID)),
		ProgramID:   p.ID,
		Name:        ij.Name,
		RepeatCount: ij.RepeatCount,
		OffsetDays:  ij.OffsetDays,
		SpacingDays: ij.SpacingDays,
		Active:      true,
	}
	if ij.Active != nil {
		item.Active = *ij.Active
	}
	for _, tj := range ij.Tasks {
		item.Tasks = append(item.Tasks, schedule.ItemTask{
			ID:        schedule.TaskID(f.idOr(tj.ID)),
			ItemID:    item.ID,
			Name:      tj.Name,
			DelayDays: tj.DelayDays,
		})
	}

	// Inactive items are never generated, so bad parameters are tolerated.
	if item.Active {
		if err := schedule.ItemSeries(p, item).Validate(); err != nil {
			return schedule.ProgramItem{}, err
		}
	}
	return item, nil
}

func (f *ProgramFactory) idOr(id string) string {
	if id != "" {
		return id
	}
	if f.NewID == nil {
		return uuid.NewString()
	}
	return f.NewID()
}

// ToJSON converts a program and its items to ProgramJSON.
func (f *ProgramFactory) ToJSON(p schedule.Program, items []schedule.ProgramItem) ProgramJSON {
	pj := ProgramJSON{
		ID:        string(p.ID),
		Name:      p.Name,
		StartDate: p.StartDate.String(),
		Status:    string(p.Status),
	}
	for _, it := range items {
		active := it.Active
		ij := ItemJSON{
			ID:          string(it.ID),
			Name:        it.Name,
			RepeatCount: it.RepeatCount,
			OffsetDays:  it.OffsetDays,
			SpacingDays: it.SpacingDays,
			Active:      &active,
		}
		for _, t := range it.Tasks {
			ij.Tasks = append(ij.Tasks, TaskJSON{ID: string(t.ID), Name: t.Name, DelayDays: t.DelayDays})
		}
		pj.Items = append(pj.Items, ij)
	}
	return pj
}

// =============================================================================
// IMPORT
// =============================================================================

// Import writes the program and all of its items in one transaction.
// Timestamps are stamped with now. An existing program ID is rejected with
// *schedule.AlreadyExistsError; status changes go through the service.
func (f *ProgramFactory) Import(ctx context.Context, store schedule.TxStore, tpl Template, now time.Time) error {
	now = now.UTC()
	return store.WithTx(ctx, func(st schedule.Store) error {
		p := tpl.Program
		if _, err := st.GetProgram(ctx, p.ID); err == nil {
			return &schedule.AlreadyExistsError{Resource: "program", ID: string(p.ID)}
		} else if !schedule.IsNotFound(err) {
			return err
		}
		p.CreatedAt, p.UpdatedAt = now, now
		if err := st.SaveProgram(ctx, p); err != nil {
			return err
		}
		for _, it := range tpl.Items {
			it.CreatedAt, it.UpdatedAt = now, now
			if err := st.SaveItem(ctx, it); err != nil {
				return err
			}
		}
		return nil
	})
}
