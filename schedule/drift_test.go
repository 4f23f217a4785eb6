package schedule_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/myowjaYOY/program-tracker-sub004/schedule"
)

// fiveWeekly returns instances 1..5 planned weekly from 2024-01-11, all pending.
func fiveWeekly() []schedule.Instance {
	out := make([]schedule.Instance, 5)
	for i := range out {
		out[i] = schedule.Instance{
			Key:         schedule.InstanceKey{Kind: schedule.KindItem, Series: "physio", Number: i + 1},
			PlannedDate: date("2024-01-11").AddDays(7 * i),
			State:       schedule.StatePending,
			Version:     1,
		}
	}
	return out
}

func TestCheckDrift_LateRedeemWithOpenFollowers(t *testing.T) {
	// GIVEN: Instance 2 planned 2024-01-18, instances 3..5 pending
	// WHEN: Proposing redeemed on 2024-01-21
	// THEN: Prompt with 3 open followers and a +3 day offset

	insts := fiveWeekly()
	actual := date("2024-01-21")
	res := schedule.CheckDrift(insts[1], insts, 7, schedule.StateRedeemed, &actual, date("2024-02-01"))

	assert.True(t, res.NeedsPrompt)
	assert.Equal(t, schedule.DriftDetected, res.Reason)
	assert.Equal(t, 3, res.FutureOpenCount)
	assert.Equal(t, 2, res.Number)
	assert.Equal(t, 7, res.SpacingDays)
	assert.Equal(t, 3, res.OffsetDays)
	assert.Equal(t, "2024-01-18", res.PlannedDate.String())
	assert.Equal(t, "2024-01-21", res.ActualDate.String())
}

func TestCheckDrift_EarlyRedeem(t *testing.T) {
	insts := fiveWeekly()
	actual := date("2024-01-16")
	res := schedule.CheckDrift(insts[1], insts, 7, schedule.StateRedeemed, &actual, actual)
	assert.True(t, res.NeedsPrompt)
	assert.Equal(t, -2, res.OffsetDays)
}

func TestCheckDrift_DefaultsToToday(t *testing.T) {
	insts := fiveWeekly()
	res := schedule.CheckDrift(insts[0], insts, 7, schedule.StateRedeemed, nil, date("2024-01-13"))
	assert.Equal(t, "2024-01-13", res.ActualDate.String())
	assert.True(t, res.NeedsPrompt)
	assert.Equal(t, 4, res.FutureOpenCount)
}

func TestCheckDrift_NoPrompt(t *testing.T) {
	today := date("2024-01-21")

	t.Run("not redeeming", func(t *testing.T) {
		insts := fiveWeekly()
		res := schedule.CheckDrift(insts[1], insts, 7, schedule.StateMissed, &today, today)
		assert.False(t, res.NeedsPrompt)
		assert.Equal(t, schedule.DriftNotRedeeming, res.Reason)
	})

	t.Run("already redeemed", func(t *testing.T) {
		insts := fiveWeekly()
		insts[1].State = schedule.StateRedeemed
		res := schedule.CheckDrift(insts[1], insts, 7, schedule.StateRedeemed, &today, today)
		assert.False(t, res.NeedsPrompt)
		assert.Equal(t, schedule.DriftAlreadyRedeemed, res.Reason)
	})

	t.Run("on plan", func(t *testing.T) {
		insts := fiveWeekly()
		onPlan := insts[1].PlannedDate
		res := schedule.CheckDrift(insts[1], insts, 7, schedule.StateRedeemed, &onPlan, today)
		assert.False(t, res.NeedsPrompt)
		assert.Equal(t, schedule.DriftOnPlan, res.Reason)
	})

	t.Run("last instance", func(t *testing.T) {
		insts := fiveWeekly()
		res := schedule.CheckDrift(insts[4], insts, 7, schedule.StateRedeemed, &today, today)
		assert.False(t, res.NeedsPrompt)
		assert.Equal(t, schedule.DriftNoOpenFollowers, res.Reason)
	})

	t.Run("followers all resolved", func(t *testing.T) {
		insts := fiveWeekly()
		for i := 2; i < 5; i++ {
			insts[i].State = schedule.StateMissed
		}
		res := schedule.CheckDrift(insts[1], insts, 7, schedule.StateRedeemed, &today, today)
		assert.False(t, res.NeedsPrompt)
		assert.Equal(t, 0, res.FutureOpenCount)
	})
}

func TestCheckDrift_CountsOnlyPendingFollowers(t *testing.T) {
	insts := fiveWeekly()
	insts[3].State = schedule.StateRedeemed
	insts[0].State = schedule.StateMissed

	actual := date("2024-01-21")
	res := schedule.CheckDrift(insts[1], insts, 7, schedule.StateRedeemed, &actual, actual)
	assert.Equal(t, 2, res.FutureOpenCount)
}

func TestCheckDrift_DoesNotMutate(t *testing.T) {
	insts := fiveWeekly()
	before := fiveWeekly()
	actual := date("2024-01-21")
	schedule.CheckDrift(insts[1], insts, 7, schedule.StateRedeemed, &actual, actual)
	assert.Equal(t, before, insts)
}
