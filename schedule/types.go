/*
Package schedule provides the recurring program schedule engine.

PURPOSE:
  A program (a course of therapy, a coaching plan) is made of items that
  recur: "5 sessions, starting 10 days in, every 7 days". This package
  expands those recurrence parameters into dated instances, tracks each
  instance through its completion lifecycle, and keeps the remaining
  schedule consistent when reality drifts from the plan.

KEY CONCEPTS IN THIS FILE (types.go):
  - Program: start date + status; the status gates every mutation
  - ProgramItem: recurrence parameters (repeat count, offset, spacing)
  - ItemTask: a task attached to an item, due some days after each instance
  - Series: one recurring sequence (an item, or one task of an item)
  - Instance: one dated occurrence, identified by (kind, series, number)

INVARIANTS:
  1. Identity: (kind, series, number) is unique and stable across
     regeneration of other instances
  2. Resolved history: redeemed/missed instances are never re-dated by a
     cascade
  3. Gating: nothing is written while the program status forbids it

SEE ALSO:
  - state.go:      completion state machine
  - generator.go:  expanding a series into instances
  - drift.go:      deciding whether a completion date disagrees with the plan
  - cascade.go:    shifting still-open instances after an accepted drift
  - regenerate.go: program-wide regeneration runs
*/
package schedule

import (
	"fmt"
	"strings"
	"time"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type ProgramID string
type ItemID string
type TaskID string

// SeriesID is an ItemID for item series and a TaskID for task series.
type SeriesID string

// Kind distinguishes item schedules from task schedules.
type Kind string

const (
	KindItem Kind = "item"
	KindTask Kind = "task"
)

func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindItem, "":
		return KindItem, nil
	case KindTask:
		return KindTask, nil
	}
	return "", &ValidationError{Field: "kind", Reason: fmt.Sprintf("unknown kind %q", s)}
}

// =============================================================================
// PROGRAM
// =============================================================================

type ProgramStatus string

const (
	StatusQuote     ProgramStatus = "quote"
	StatusActive    ProgramStatus = "active"
	StatusPaused    ProgramStatus = "paused"
	StatusCompleted ProgramStatus = "completed"
	StatusCancelled ProgramStatus = "cancelled"
)

// ParseProgramStatus accepts any casing ("Active", "ACTIVE", "active").
func ParseProgramStatus(s string) (ProgramStatus, error) {
	st := ProgramStatus(strings.ToLower(strings.TrimSpace(s)))
	switch st {
	case StatusQuote, StatusActive, StatusPaused, StatusCompleted, StatusCancelled:
		return st, nil
	}
	return "", &ValidationError{Field: "status", Reason: fmt.Sprintf("unknown program status %q", s)}
}

// IsMutable reports whether instances may be toggled or re-dated.
// Only an active program accepts edits.
func (s ProgramStatus) IsMutable() bool { return s == StatusActive }

// CanRegenerate reports whether a regeneration run may write.
// Closed programs (completed, cancelled) are frozen.
func (s ProgramStatus) CanRegenerate() bool {
	return s != StatusCompleted && s != StatusCancelled
}

type Program struct {
	ID        ProgramID
	Name      string
	StartDate Date
	Status    ProgramStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// =============================================================================
// PROGRAM ITEMS
// =============================================================================

type ProgramItem struct {
	ID          ItemID
	ProgramID   ProgramID
	Name        string
	RepeatCount int
	OffsetDays  int // days after program start; may be negative
	SpacingDays int // days between repeats
	Active      bool
	Tasks       []ItemTask
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ChangedSince reports whether the item was created or modified at or after t.
func (it ProgramItem) ChangedSince(t time.Time) bool {
	return !it.CreatedAt.Before(t) || !it.UpdatedAt.Before(t)
}

// ItemTask is follow-up work due DelayDays after each instance of its item.
type ItemTask struct {
	ID        TaskID
	ItemID    ItemID
	Name      string
	DelayDays int
}

// =============================================================================
// SERIES - One recurring sequence
// =============================================================================

type SeriesKey struct {
	Kind Kind
	ID   SeriesID
}

func (k SeriesKey) String() string { return string(k.Kind) + "/" + string(k.ID) }

// Series is the recurrence a generator expands: Count instances,
// the first on Anchor, each following one SpacingDays later.
type Series struct {
	Key         SeriesKey
	ProgramID   ProgramID
	ItemID      ItemID
	Anchor      Date
	Count       int
	SpacingDays int
}

// PlannedDate is the freshly generated date of instance n (1-based).
func (s Series) PlannedDate(n int) Date {
	return s.Anchor.AddDays((n - 1) * s.SpacingDays)
}

func (s Series) Validate() error {
	if s.Count <= 0 {
		return &ValidationError{Series: s.Key, Field: "repeat_count", Reason: fmt.Sprintf("must be positive, got %d", s.Count)}
	}
	if s.SpacingDays < 0 {
		return &ValidationError{Series: s.Key, Field: "spacing_days", Reason: fmt.Sprintf("must not be negative, got %d", s.SpacingDays)}
	}
	return nil
}

// ItemSeries returns the series of the item itself.
func ItemSeries(p Program, it ProgramItem) Series {
	return Series{
		Key:         SeriesKey{Kind: KindItem, ID: SeriesID(it.ID)},
		ProgramID:   p.ID,
		ItemID:      it.ID,
		Anchor:      p.StartDate.AddDays(it.OffsetDays),
		Count:       it.RepeatCount,
		SpacingDays: it.SpacingDays,
	}
}

// TaskSeries returns the series of one task: the item's schedule
// shifted by the task delay.
func TaskSeries(p Program, it ProgramItem, task ItemTask) Series {
	s := ItemSeries(p, it)
	s.Key = SeriesKey{Kind: KindTask, ID: SeriesID(task.ID)}
	s.Anchor = s.Anchor.AddDays(task.DelayDays)
	return s
}

// SeriesFor returns the item series followed by one series per task.
func SeriesFor(p Program, it ProgramItem) []Series {
	out := make([]Series, 0, 1+len(it.Tasks))
	out = append(out, ItemSeries(p, it))
	for _, t := range it.Tasks {
		out = append(out, TaskSeries(p, it, t))
	}
	return out
}

// =============================================================================
// INSTANCE - One dated occurrence
// =============================================================================

type InstanceKey struct {
	Kind   Kind
	Series SeriesID
	Number int
}

func (k InstanceKey) SeriesKey() SeriesKey { return SeriesKey{Kind: k.Kind, ID: k.Series} }

func (k InstanceKey) String() string {
	return fmt.Sprintf("%s/%s#%d", k.Kind, k.Series, k.Number)
}

// Instance is a schedule instance (KindItem) or a task schedule instance
// (KindTask). For tasks PlannedDate is the due date.
type Instance struct {
	ID          string
	Key         InstanceKey
	ProgramID   ProgramID
	ItemID      ItemID
	PlannedDate Date
	State       State
	CompletedOn *Date
	Version     int // bumped by the store on every write
	UpdatedAt   time.Time
}
