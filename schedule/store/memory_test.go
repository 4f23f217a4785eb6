package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/myowjaYOY/program-tracker-sub004/schedule"
	"github.com/myowjaYOY/program-tracker-sub004/schedule/store"
)

var now = time.Date(2024, 1, 20, 12, 0, 0, 0, time.UTC)

func seeded(t *testing.T) *store.Memory {
	t.Helper()
	ctx := context.Background()
	m := store.NewMemory()
	require.NoError(t, m.SaveProgram(ctx, schedule.Program{ID: "p1", StartDate: schedule.MustParseDate("2024-01-01"), Status: schedule.StatusActive}))
	require.NoError(t, m.SaveItem(ctx, schedule.ProgramItem{
		ID: "physio", ProgramID: "p1", RepeatCount: 3, SpacingDays: 7, Active: true,
		Tasks:     []schedule.ItemTask{{ID: "notes", DelayDays: 1}},
		CreatedAt: now, UpdatedAt: now,
	}))
	return m
}

func instance(n int, planned string) schedule.Instance {
	return schedule.Instance{
		ID:          planned,
		Key:         schedule.InstanceKey{Kind: schedule.KindItem, Series: "physio", Number: n},
		ProgramID:   "p1",
		ItemID:      "physio",
		PlannedDate: schedule.MustParseDate(planned),
		State:       schedule.StatePending,
	}
}

func TestMemory_SaveItemStampsTasks(t *testing.T) {
	m := seeded(t)
	items, err := m.ListItems(context.Background(), "p1")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, schedule.ItemID("physio"), items[0].Tasks[0].ItemID)

	// Returned task slices are copies.
	items[0].Tasks[0].DelayDays = 99
	again, err := m.ListItems(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, 1, again[0].Tasks[0].DelayDays)

	err = m.SaveItem(context.Background(), schedule.ProgramItem{ID: "x", ProgramID: "ghost"})
	assert.True(t, schedule.IsNotFound(err))
}

func TestMemory_UpsertPolicies(t *testing.T) {
	m := seeded(t)
	ctx := context.Background()

	require.NoError(t, m.UpsertInstances(ctx, []schedule.Instance{instance(1, "2024-01-11")}, schedule.ConflictKeep))
	cur, err := m.GetInstance(ctx, instance(1, "2024-01-11").Key)
	require.NoError(t, err)
	assert.Equal(t, 1, cur.Version)

	cur.State = schedule.StateRedeemed
	_, err = m.UpdateInstance(ctx, cur)
	require.NoError(t, err)

	require.NoError(t, m.UpsertInstances(ctx, []schedule.Instance{instance(1, "2024-01-15")}, schedule.ConflictKeep))
	kept, _ := m.GetInstance(ctx, cur.Key)
	assert.Equal(t, "2024-01-11", kept.PlannedDate.String())

	require.NoError(t, m.UpsertInstances(ctx, []schedule.Instance{instance(1, "2024-01-15")}, schedule.ConflictRedate))
	redated, _ := m.GetInstance(ctx, cur.Key)
	assert.Equal(t, "2024-01-15", redated.PlannedDate.String())
	assert.Equal(t, schedule.StateRedeemed, redated.State)
	assert.Equal(t, 3, redated.Version)
	assert.Equal(t, "2024-01-11", redated.ID)
}

func TestMemory_UpdateInstanceConflict(t *testing.T) {
	m := seeded(t)
	ctx := context.Background()
	require.NoError(t, m.UpsertInstances(ctx, []schedule.Instance{instance(1, "2024-01-11")}, schedule.ConflictKeep))

	stale := instance(1, "2024-01-11")
	stale.Version = 5
	_, err := m.UpdateInstance(ctx, stale)

	var ce *schedule.ConflictError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, 1, ce.ActualVersion)

	_, err = m.UpdateInstance(ctx, instance(2, "2024-01-18"))
	assert.True(t, schedule.IsNotFound(err))
}

func TestMemory_WithTxRollsBack(t *testing.T) {
	// GIVEN: A transaction that writes and then fails
	// WHEN: WithTx returns
	// THEN: No write is visible

	m := seeded(t)
	ctx := context.Background()

	err := m.WithTx(ctx, func(st schedule.Store) error {
		if err := st.UpsertInstances(ctx, []schedule.Instance{instance(1, "2024-01-11")}, schedule.ConflictKeep); err != nil {
			return err
		}
		if err := st.SaveProgram(ctx, schedule.Program{ID: "p2"}); err != nil {
			return err
		}
		return errors.New("abort")
	})
	require.Error(t, err)

	insts, err := m.ListProgramInstances(ctx, "p1", schedule.KindItem)
	require.NoError(t, err)
	assert.Empty(t, insts)
	_, err = m.GetProgram(ctx, "p2")
	assert.True(t, schedule.IsNotFound(err))
}

func TestMemory_DeleteAndReset(t *testing.T) {
	m := seeded(t)
	ctx := context.Background()
	require.NoError(t, m.UpsertInstances(ctx, []schedule.Instance{instance(2, "2024-01-18"), instance(1, "2024-01-11")}, schedule.ConflictKeep))

	series, err := m.ListInstances(ctx, schedule.SeriesKey{Kind: schedule.KindItem, ID: "physio"})
	require.NoError(t, err)
	require.Len(t, series, 2)
	assert.Equal(t, 1, series[0].Key.Number)

	require.NoError(t, m.DeleteInstances(ctx, []schedule.InstanceKey{series[0].Key}))
	series, err = m.ListInstances(ctx, schedule.SeriesKey{Kind: schedule.KindItem, ID: "physio"})
	require.NoError(t, err)
	assert.Len(t, series, 1)

	require.NoError(t, m.Reset(ctx))
	programs, err := m.ListPrograms(ctx)
	require.NoError(t, err)
	assert.Empty(t, programs)
}

func TestMemory_SaveItemRejectsForeignIDs(t *testing.T) {
	// GIVEN: Program p1 owning item physio with task notes
	// WHEN: Program p2 saves an item reusing either ID
	// THEN: ValidationError and p1's item is untouched

	m := seeded(t)
	ctx := context.Background()
	require.NoError(t, m.SaveProgram(ctx, schedule.Program{ID: "p2", StartDate: schedule.MustParseDate("2024-02-01"), Status: schedule.StatusActive}))

	err := m.SaveItem(ctx, schedule.ProgramItem{ID: "physio", ProgramID: "p2", RepeatCount: 1, Active: true})
	var ve *schedule.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "item_id", ve.Field)

	err = m.SaveItem(ctx, schedule.ProgramItem{
		ID: "consult", ProgramID: "p2", RepeatCount: 1, Active: true,
		Tasks: []schedule.ItemTask{{ID: "notes", DelayDays: 2}},
	})
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "task_id", ve.Field)

	items, err := m.ListItems(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 3, items[0].RepeatCount)
	assert.Equal(t, 1, items[0].Tasks[0].DelayDays)

	other, err := m.ListItems(ctx, "p2")
	require.NoError(t, err)
	assert.Empty(t, other)
}
