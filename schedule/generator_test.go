package schedule_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/myowjaYOY/program-tracker-sub004/schedule"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

var genNow = time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

func date(s string) schedule.Date { return schedule.MustParseDate(s) }

func physioSeries(count int) schedule.Series {
	p := schedule.Program{ID: "p1", StartDate: date("2024-01-01"), Status: schedule.StatusActive}
	it := schedule.ProgramItem{ID: "physio", ProgramID: "p1", RepeatCount: count, OffsetDays: 10, SpacingDays: 7}
	return schedule.ItemSeries(p, it)
}

func dates(insts []schedule.Instance) []string {
	out := make([]string, len(insts))
	for i, inst := range insts {
		out[i] = inst.PlannedDate.String()
	}
	return out
}

func numbers(keys []schedule.InstanceKey) []int {
	out := make([]int, len(keys))
	for i, k := range keys {
		out[i] = k.Number
	}
	return out
}

// =============================================================================
// TESTS
// =============================================================================

func TestGenerate_FromScratch(t *testing.T) {
	// GIVEN: Start 2024-01-01, 5 repeats, offset 10, spacing 7
	// WHEN: Generating with nothing stored
	// THEN: 01-11, 01-18, 01-25, 02-01, 02-08, all pending, numbered 1..5

	plan, err := schedule.Generate(physioSeries(5), nil, schedule.TargetAll, genNow)
	require.NoError(t, err)

	require.Len(t, plan.Created, 5)
	assert.Equal(t, []string{"2024-01-11", "2024-01-18", "2024-01-25", "2024-02-01", "2024-02-08"}, dates(plan.Created))
	ids := map[string]bool{}
	for i, inst := range plan.Created {
		assert.Equal(t, i+1, inst.Key.Number)
		assert.Equal(t, schedule.StatePending, inst.State)
		assert.Equal(t, schedule.ProgramID("p1"), inst.ProgramID)
		assert.NotEmpty(t, inst.ID)
		ids[inst.ID] = true
	}
	assert.Len(t, ids, 5, "row ids are unique")
	assert.Empty(t, plan.Updated)
	assert.Empty(t, plan.Removed)
}

func TestGenerate_SingleRepeatIgnoresSpacing(t *testing.T) {
	s := physioSeries(1)
	s.SpacingDays = 0
	plan, err := schedule.Generate(s, nil, schedule.TargetAll, genNow)
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-01-11"}, dates(plan.Created))
}

func TestGenerate_NegativeOffset(t *testing.T) {
	p := schedule.Program{ID: "p1", StartDate: date("2024-01-01")}
	it := schedule.ProgramItem{ID: "intake", RepeatCount: 1, OffsetDays: -3}
	plan, err := schedule.Generate(schedule.ItemSeries(p, it), nil, schedule.TargetAll, genNow)
	require.NoError(t, err)
	assert.Equal(t, []string{"2023-12-29"}, dates(plan.Created))
}

func TestGenerate_RejectsBadParameters(t *testing.T) {
	for _, tc := range []struct {
		name  string
		count int
		space int
		field string
	}{
		{"zero repeats", 0, 7, "repeat_count"},
		{"negative repeats", -1, 7, "repeat_count"},
		{"negative spacing", 3, -1, "spacing_days"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			s := physioSeries(tc.count)
			s.SpacingDays = tc.space
			_, err := schedule.Generate(s, nil, schedule.TargetAll, genNow)

			var ve *schedule.ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, tc.field, ve.Field)
			assert.Equal(t, s.Key, ve.Series)
		})
	}
}

func TestGenerate_MissingOnlyFillsGaps(t *testing.T) {
	// GIVEN: Instances 1 and 3 exist, 3 re-dated by a cascade
	// WHEN: Generating with TargetMissing
	// THEN: Only 2, 4, 5 are created and nothing existing is touched

	s := physioSeries(5)
	existing := []schedule.Instance{
		{Key: schedule.InstanceKey{Kind: schedule.KindItem, Series: "physio", Number: 1}, PlannedDate: date("2024-01-11"), State: schedule.StateRedeemed},
		{Key: schedule.InstanceKey{Kind: schedule.KindItem, Series: "physio", Number: 3}, PlannedDate: date("2024-01-27")},
	}

	plan, err := schedule.Generate(s, existing, schedule.TargetMissing, genNow)
	require.NoError(t, err)

	var created []int
	for _, c := range plan.Created {
		created = append(created, c.Key.Number)
	}
	assert.Equal(t, []int{2, 4, 5}, created)
	assert.Empty(t, plan.Updated)
	assert.Equal(t, 2, plan.Unchanged)
	assert.Empty(t, plan.Removed)
}

func TestGenerate_FullResetsDatesKeepsState(t *testing.T) {
	// GIVEN: Instance 2 redeemed and re-dated, instances 6 and 7 beyond a
	//        reduced repeat count
	// WHEN: Generating with TargetAll
	// THEN: 2 gets its formula date back with state and completion kept,
	//       6 and 7 are removed

	s := physioSeries(5)
	completed := date("2024-01-20")
	key := func(n int) schedule.InstanceKey {
		return schedule.InstanceKey{Kind: schedule.KindItem, Series: "physio", Number: n}
	}
	existing := []schedule.Instance{
		{Key: key(7), PlannedDate: date("2024-02-22")},
		{Key: key(1), PlannedDate: date("2024-01-11")},
		{Key: key(2), PlannedDate: date("2024-01-20"), State: schedule.StateRedeemed, CompletedOn: &completed},
		{Key: key(6), PlannedDate: date("2024-02-15")},
	}

	plan, err := schedule.Generate(s, existing, schedule.TargetAll, genNow)
	require.NoError(t, err)

	require.Len(t, plan.Updated, 1)
	upd := plan.Updated[0]
	assert.Equal(t, 2, upd.Key.Number)
	assert.Equal(t, "2024-01-18", upd.PlannedDate.String())
	assert.Equal(t, schedule.StateRedeemed, upd.State)
	assert.Equal(t, &completed, upd.CompletedOn)

	assert.Len(t, plan.Created, 3)
	assert.Equal(t, 1, plan.Unchanged)
	assert.Equal(t, []int{6, 7}, numbers(plan.Removed))
	assert.Len(t, plan.Writes(), 4)
}

func TestGenerate_RerunIsNoop(t *testing.T) {
	s := physioSeries(5)
	first, err := schedule.Generate(s, nil, schedule.TargetAll, genNow)
	require.NoError(t, err)

	for _, target := range []schedule.Target{schedule.TargetAll, schedule.TargetMissing} {
		again, err := schedule.Generate(s, first.Created, target, genNow)
		require.NoError(t, err)
		assert.True(t, again.Empty())
		assert.Equal(t, 5, again.Unchanged)
	}
}

func TestTaskSeries_ShiftsByDelay(t *testing.T) {
	p := schedule.Program{ID: "p1", StartDate: date("2024-01-01")}
	it := schedule.ProgramItem{
		ID: "physio", RepeatCount: 3, OffsetDays: 10, SpacingDays: 7,
		Tasks: []schedule.ItemTask{{ID: "notes", DelayDays: 1}, {ID: "prep", DelayDays: -2}},
	}

	all := schedule.SeriesFor(p, it)
	require.Len(t, all, 3)
	assert.Equal(t, schedule.SeriesKey{Kind: schedule.KindItem, ID: "physio"}, all[0].Key)

	notes, err := schedule.Generate(all[1], nil, schedule.TargetAll, genNow)
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-01-12", "2024-01-19", "2024-01-26"}, dates(notes.Created))
	assert.Equal(t, schedule.KindTask, notes.Created[0].Key.Kind)
	assert.Equal(t, schedule.ItemID("physio"), notes.Created[0].ItemID)

	prep, err := schedule.Generate(all[2], nil, schedule.TargetAll, genNow)
	require.NoError(t, err)
	assert.Equal(t, "2024-01-09", prep.Created[0].PlannedDate.String())
}
