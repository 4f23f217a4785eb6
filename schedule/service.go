/*
service.go - Transactional operations on a program's schedule

PURPOSE:
  Service binds the pure components (state machine, generator, drift
  detector, cascade planner) to a TxStore. Every mutation:
    1. opens a store transaction
    2. re-reads the program and checks its status inside that transaction
    3. writes all of its rows or none of them

OPERATIONS:
  Instances     list a program's instances sorted by planned date
  CheckDrift    advisory drift decision for a proposed redeem
  Toggle        one click on an instance (optionally cascading drift)
  ApplyCascade  re-date still-open followers after an accepted drift
  Regenerate    program-wide generation run (regenerate.go)
  SetStatus     change a program's status
  Summary       counts and adherence

SEE ALSO:
  - store.go: TxStore contract
  - regenerate.go: full and recent regeneration
*/
package schedule

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// DefaultRecentWindow is how far back "recent" regeneration looks for
// created or modified items.
const DefaultRecentWindow = 30 * time.Minute

type Service struct {
	Store        TxStore
	Clock        Clock
	Location     *time.Location // derives "today"; nil means UTC
	RecentWindow time.Duration
	Log          zerolog.Logger

	locks programLocks
}

func NewService(store TxStore) *Service {
	return &Service{
		Store:        store,
		Clock:        SystemClock{},
		Location:     time.UTC,
		RecentWindow: DefaultRecentWindow,
		Log:          zerolog.Nop(),
	}
}

// Today is the current calendar day in the service's location.
func (s *Service) Today() Date { return Today(s.Clock, s.Location) }

func (s *Service) now() time.Time { return s.Clock.Now().UTC() }

// =============================================================================
// READS
// =============================================================================

// Instances returns the program's instances of one kind, sorted by planned date.
func (s *Service) Instances(ctx context.Context, programID ProgramID, kind Kind) ([]Instance, error) {
	if _, err := s.Store.GetProgram(ctx, programID); err != nil {
		return nil, err
	}
	insts, err := s.Store.ListProgramInstances(ctx, programID, kind)
	if err != nil {
		return nil, err
	}
	SortByPlannedDate(insts)
	return insts, nil
}

func (s *Service) Summary(ctx context.Context, programID ProgramID, kind Kind) (Summary, error) {
	insts, err := s.Instances(ctx, programID, kind)
	if err != nil {
		return Summary{}, err
	}
	return Summarize(programID, kind, insts), nil
}

// CheckDrift reports whether redeeming key on actual (nil = today) needs an
// adjustment prompt. It writes nothing.
func (s *Service) CheckDrift(ctx context.Context, key InstanceKey, proposed State, actual *Date) (DriftResult, error) {
	inst, err := s.Store.GetInstance(ctx, key)
	if err != nil {
		return DriftResult{}, err
	}
	_, series, err := resolveSeries(ctx, s.Store, inst)
	if err != nil {
		return DriftResult{}, err
	}
	siblings, err := s.Store.ListInstances(ctx, key.SeriesKey())
	if err != nil {
		return DriftResult{}, err
	}
	return CheckDrift(inst, siblings, series.SpacingDays, proposed, actual, s.Today()), nil
}

// =============================================================================
// TOGGLE
// =============================================================================

type ToggleRequest struct {
	Key       InstanceKey
	Direction Direction
	Variant   Variant

	// ExpectedVersion is the version the caller last saw. It is required:
	// a repeated click from the same observed state fails with a conflict
	// instead of stepping twice.
	ExpectedVersion int

	// ActualDate is when a redeemed instance really happened (nil = today).
	ActualDate *Date

	// Cascade re-dates open followers in the same transaction when the
	// toggle redeems with drift.
	Cascade bool
}

type ToggleResult struct {
	Instance Instance
	Previous State
	Drift    DriftResult
	Shifts   []Shift
}

func (s *Service) Toggle(ctx context.Context, req ToggleRequest) (ToggleResult, error) {
	if req.ExpectedVersion <= 0 {
		return ToggleResult{}, &ValidationError{Field: "expected_version", Reason: "the last observed instance version is required"}
	}

	var res ToggleResult
	today := s.Today()

	err := s.Store.WithTx(ctx, func(st Store) error {
		inst, err := st.GetInstance(ctx, req.Key)
		if err != nil {
			return err
		}
		program, series, err := resolveSeries(ctx, st, inst)
		if err != nil {
			return err
		}
		if err := requireMutable(program, "update completion state"); err != nil {
			return err
		}
		if req.ExpectedVersion != inst.Version {
			return &ConflictError{Key: inst.Key, ExpectedVersion: req.ExpectedVersion, ActualVersion: inst.Version}
		}

		siblings, err := st.ListInstances(ctx, req.Key.SeriesKey())
		if err != nil {
			return err
		}

		next := inst.State.Step(req.Direction, req.Variant)
		res.Previous = inst.State
		res.Drift = CheckDrift(inst, siblings, series.SpacingDays, next, req.ActualDate, today)

		inst.State = next
		inst.CompletedOn = nil
		if next == StateRedeemed {
			inst.CompletedOn = res.Drift.ActualDate.Ptr()
		}
		inst.UpdatedAt = s.now()

		updated, err := st.UpdateInstance(ctx, inst)
		if err != nil {
			return err
		}
		res.Instance = updated

		if req.Cascade && res.Drift.NeedsPrompt {
			res.Shifts, err = s.cascade(ctx, st, siblings, inst.Key.Number, res.Drift.ActualDate, series.SpacingDays)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return ToggleResult{}, err
	}

	s.Log.Info().
		Str("instance", req.Key.String()).
		Str("from", string(res.Previous)).
		Str("to", string(res.Instance.State)).
		Int("shifted", len(res.Shifts)).
		Msg("instance toggled")
	return res, nil
}

// =============================================================================
// CASCADE
// =============================================================================

type CascadeResult struct {
	Anchor  InstanceKey
	Shifted []Shift
}

// ApplyCascade re-dates every pending follower of anchor from actual using
// the series spacing. Either every eligible follower moves or none does.
func (s *Service) ApplyCascade(ctx context.Context, anchor InstanceKey, actual Date) (CascadeResult, error) {
	res := CascadeResult{Anchor: anchor}

	err := s.Store.WithTx(ctx, func(st Store) error {
		inst, err := st.GetInstance(ctx, anchor)
		if err != nil {
			return err
		}
		program, series, err := resolveSeries(ctx, st, inst)
		if err != nil {
			return err
		}
		if err := requireMutable(program, "cascade schedule dates"); err != nil {
			return err
		}
		siblings, err := st.ListInstances(ctx, anchor.SeriesKey())
		if err != nil {
			return err
		}
		res.Shifted, err = s.cascade(ctx, st, siblings, anchor.Number, actual, series.SpacingDays)
		return err
	})
	if err != nil {
		return CascadeResult{}, err
	}

	s.Log.Info().
		Str("anchor", anchor.String()).
		Str("actual", actual.String()).
		Int("shifted", len(res.Shifted)).
		Msg("cascade applied")
	return res, nil
}

func (s *Service) cascade(ctx context.Context, st Store, siblings []Instance, anchor int, actual Date, spacing int) ([]Shift, error) {
	shifts := PlanCascade(siblings, anchor, actual, spacing)
	if len(shifts) == 0 {
		return nil, nil
	}

	byNumber := make(map[int]Instance, len(siblings))
	for _, sib := range siblings {
		byNumber[sib.Key.Number] = sib
	}

	now := s.now()
	for _, sh := range shifts {
		inst := byNumber[sh.Key.Number]
		inst.PlannedDate = sh.To
		inst.UpdatedAt = now
		if _, err := st.UpdateInstance(ctx, inst); err != nil {
			return nil, err
		}
	}
	return shifts, nil
}

// =============================================================================
// PROGRAM STATUS
// =============================================================================

func (s *Service) SetStatus(ctx context.Context, id ProgramID, status ProgramStatus) (Program, error) {
	var out Program
	err := s.Store.WithTx(ctx, func(st Store) error {
		p, err := st.GetProgram(ctx, id)
		if err != nil {
			return err
		}
		p.Status = status
		p.UpdatedAt = s.now()
		if err := st.SaveProgram(ctx, p); err != nil {
			return err
		}
		out = p
		return nil
	})
	if err != nil {
		return Program{}, err
	}
	s.Log.Info().Str("program", string(id)).Str("status", string(status)).Msg("program status changed")
	return out, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func requireMutable(p Program, action string) error {
	if !p.Status.IsMutable() {
		return &ReadOnlyViolation{ProgramID: p.ID, Status: p.Status, Action: action}
	}
	return nil
}

// resolveSeries loads the program and the recurrence inst belongs to.
func resolveSeries(ctx context.Context, st TemplateProvider, inst Instance) (Program, Series, error) {
	program, err := st.GetProgram(ctx, inst.ProgramID)
	if err != nil {
		return Program{}, Series{}, err
	}
	items, err := st.ListItems(ctx, inst.ProgramID)
	if err != nil {
		return Program{}, Series{}, err
	}
	for _, it := range items {
		if it.ID != inst.ItemID {
			continue
		}
		if inst.Key.Kind == KindItem {
			return program, ItemSeries(program, it), nil
		}
		for _, t := range it.Tasks {
			if SeriesID(t.ID) == inst.Key.Series {
				return program, TaskSeries(program, it, t), nil
			}
		}
		return Program{}, Series{}, &NotFoundError{Resource: "task", ID: string(inst.Key.Series)}
	}
	return Program{}, Series{}, &NotFoundError{Resource: "item", ID: string(inst.ItemID)}
}
