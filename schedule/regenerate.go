package schedule

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

// =============================================================================
// REGENERATION CONTROLLER
// =============================================================================

type Mode string

const (
	// ModeFull recomputes every instance of every active item. Cascade
	// adjustments are discarded; completion state is kept by number.
	ModeFull Mode = "full"
	// ModeRecent only adds missing instances for items created or modified
	// within the recency window. Existing instances are not touched.
	ModeRecent Mode = "recent"
)

func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeFull, ModeRecent:
		return m, nil
	}
	return "", &ValidationError{Field: "mode", Reason: fmt.Sprintf("unknown regeneration mode %q", s)}
}

func (m Mode) target() Target {
	if m == ModeRecent {
		return TargetMissing
	}
	return TargetAll
}

type RegenerationResult struct {
	ProgramID        ProgramID
	Mode             Mode
	ItemsProcessed   int
	InstancesCreated int
	InstancesUpdated int
	InstancesRemoved int
	Failures         []ItemFailure
}

// Regenerate runs a generation pass over the program's items.
//
// Each item is written in its own transaction (the item series and all of
// its task series together). A failing item is reported in
// RegenerationResult.Failures and the call returns a *PartialFailureError
// next to the populated result; the other items stay committed. Runs for
// the same program are serialized.
func (s *Service) Regenerate(ctx context.Context, programID ProgramID, mode Mode) (RegenerationResult, error) {
	res := RegenerationResult{ProgramID: programID, Mode: mode}
	if _, err := ParseMode(string(mode)); err != nil {
		return res, err
	}

	unlock := s.locks.lock(programID)
	defer unlock()

	program, err := s.Store.GetProgram(ctx, programID)
	if err != nil {
		return res, err
	}
	if !program.Status.CanRegenerate() {
		return res, &ReadOnlyViolation{ProgramID: programID, Status: program.Status, Action: "regenerate schedule"}
	}

	items, err := s.Store.ListItems(ctx, programID)
	if err != nil {
		return res, err
	}

	now := s.now()
	log := s.Log.With().Str("program", string(programID)).Str("mode", string(mode)).Logger()
	start := time.Now()

	for _, it := range s.selectItems(items, mode, now) {
		created, updated, removed, err := s.regenerateItem(ctx, programID, it, mode.target(), now)
		if err != nil {
			// A status change mid-run freezes the rest of the program too.
			if errors.Is(err, ErrReadOnly) || ctx.Err() != nil {
				return res, err
			}
			log.Warn().Err(err).Str("item", string(it.ID)).Msg("item regeneration failed")
			res.Failures = append(res.Failures, ItemFailure{ItemID: it.ID, Name: it.Name, Err: err})
			continue
		}
		res.ItemsProcessed++
		res.InstancesCreated += created
		res.InstancesUpdated += updated
		res.InstancesRemoved += removed
	}

	log.Info().
		Int("items", res.ItemsProcessed).
		Int("created", res.InstancesCreated).
		Int("updated", res.InstancesUpdated).
		Int("removed", res.InstancesRemoved).
		Int("failed", len(res.Failures)).
		Dur("took", time.Since(start)).
		Msg("schedule regenerated")

	if len(res.Failures) > 0 {
		return res, &PartialFailureError{ProgramID: programID, Failures: res.Failures}
	}
	return res, nil
}

func (s *Service) selectItems(items []ProgramItem, mode Mode, now time.Time) []ProgramItem {
	window := s.RecentWindow
	if window <= 0 {
		window = DefaultRecentWindow
	}
	since := now.Add(-window)

	var out []ProgramItem
	for _, it := range items {
		if !it.Active {
			continue
		}
		if mode == ModeRecent && !it.ChangedSince(since) {
			continue
		}
		out = append(out, it)
	}
	return out
}

func (s *Service) regenerateItem(ctx context.Context, programID ProgramID, it ProgramItem, target Target, now time.Time) (created, updated, removed int, err error) {
	policy := ConflictRedate
	if target == TargetMissing {
		policy = ConflictKeep
	}

	err = s.Store.WithTx(ctx, func(st Store) error {
		created, updated, removed = 0, 0, 0

		program, err := st.GetProgram(ctx, programID)
		if err != nil {
			return err
		}
		if !program.Status.CanRegenerate() {
			return &ReadOnlyViolation{ProgramID: programID, Status: program.Status, Action: "regenerate schedule"}
		}

		for _, series := range SeriesFor(program, it) {
			existing, err := st.ListInstances(ctx, series.Key)
			if err != nil {
				return err
			}
			plan, err := Generate(series, existing, target, now)
			if err != nil {
				return err
			}
			if plan.Empty() {
				continue
			}
			if err := st.UpsertInstances(ctx, plan.Writes(), policy); err != nil {
				return err
			}
			if err := st.DeleteInstances(ctx, plan.Removed); err != nil {
				return err
			}
			created += len(plan.Created)
			updated += len(plan.Updated)
			removed += len(plan.Removed)
		}

		if target == TargetAll {
			n, err := dropRetiredTasks(ctx, st, programID, it)
			if err != nil {
				return err
			}
			removed += n
		}
		return nil
	})
	return created, updated, removed, err
}

// dropRetiredTasks deletes the task instances of it whose task is no
// longer attached to the item.
func dropRetiredTasks(ctx context.Context, st Store, programID ProgramID, it ProgramItem) (int, error) {
	attached := make(map[SeriesID]bool, len(it.Tasks))
	for _, t := range it.Tasks {
		attached[SeriesID(t.ID)] = true
	}

	insts, err := st.ListProgramInstances(ctx, programID, KindTask)
	if err != nil {
		return 0, err
	}
	var retired []InstanceKey
	for _, inst := range insts {
		if inst.ItemID == it.ID && !attached[inst.Key.Series] {
			retired = append(retired, inst.Key)
		}
	}
	if len(retired) == 0 {
		return 0, nil
	}
	return len(retired), st.DeleteInstances(ctx, retired)
}

// =============================================================================
// PROGRAM LOCKS
// =============================================================================

// programLocks hands out one mutex per program. Entries are dropped when
// the last holder releases them.
type programLocks struct {
	mu sync.Mutex
	m  map[ProgramID]*programLock
}

type programLock struct {
	sync.Mutex
	refs int
}

func (l *programLocks) lock(id ProgramID) (unlock func()) {
	l.mu.Lock()
	if l.m == nil {
		l.m = make(map[ProgramID]*programLock)
	}
	pl, ok := l.m[id]
	if !ok {
		pl = &programLock{}
		l.m[id] = pl
	}
	pl.refs++
	l.mu.Unlock()

	pl.Lock()
	return func() {
		pl.Unlock()
		l.mu.Lock()
		pl.refs--
		if pl.refs == 0 {
			delete(l.m, id)
		}
		l.mu.Unlock()
	}
}
