package schedule_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/myowjaYOY/program-tracker-sub004/schedule"
)

func TestNext_TriState(t *testing.T) {
	v := schedule.VariantTriState
	assert.Equal(t, schedule.StateRedeemed, schedule.Next(schedule.StatePending, v))
	assert.Equal(t, schedule.StateMissed, schedule.Next(schedule.StateRedeemed, v))
	assert.Equal(t, schedule.StatePending, schedule.Next(schedule.StateMissed, v))
}

func TestPrevious_TriState(t *testing.T) {
	v := schedule.VariantTriState
	assert.Equal(t, schedule.StateMissed, schedule.Previous(schedule.StatePending, v))
	assert.Equal(t, schedule.StateRedeemed, schedule.Previous(schedule.StateMissed, v))
	assert.Equal(t, schedule.StatePending, schedule.Previous(schedule.StateRedeemed, v))
}

func TestPendingMissedVariant(t *testing.T) {
	v := schedule.VariantPendingMissed
	assert.Equal(t, schedule.StateMissed, schedule.Next(schedule.StatePending, v))
	assert.Equal(t, schedule.StatePending, schedule.Next(schedule.StateMissed, v))
	assert.Equal(t, schedule.StateMissed, schedule.Previous(schedule.StatePending, v))

	// Redeemed is outside this variant and falls back to pending.
	assert.Equal(t, schedule.StatePending, schedule.Next(schedule.StateRedeemed, v))
}

func TestStateCycle_ReturnsToStart(t *testing.T) {
	// GIVEN: Any state in either variant
	// WHEN: Stepping forward through the cycle length, or forward then backward
	// THEN: The state comes back to where it started

	variants := map[schedule.Variant][]schedule.State{
		schedule.VariantTriState:      {schedule.StatePending, schedule.StateRedeemed, schedule.StateMissed},
		schedule.VariantPendingMissed: {schedule.StatePending, schedule.StateMissed},
	}
	for v, states := range variants {
		for _, s := range states {
			cur := s
			for range states {
				cur = cur.Step(schedule.Forward, v)
			}
			assert.Equal(t, s, cur, "forward cycle from %s", s)

			assert.Equal(t, s, s.Step(schedule.Forward, v).Step(schedule.Backward, v))
			assert.Equal(t, s, s.Step(schedule.Backward, v).Step(schedule.Forward, v))
		}
	}
}

func TestParseState(t *testing.T) {
	st, err := schedule.ParseState(" Redeemed ")
	require.NoError(t, err)
	assert.Equal(t, schedule.StateRedeemed, st)

	for _, bad := range []string{"", "done", "null"} {
		_, err := schedule.ParseState(bad)
		assert.True(t, errors.Is(err, schedule.ErrValidation), bad)
	}
}

func TestParseDirectionAndVariant(t *testing.T) {
	d, err := schedule.ParseDirection("")
	require.NoError(t, err)
	assert.Equal(t, schedule.Forward, d)

	d, err = schedule.ParseDirection("backward")
	require.NoError(t, err)
	assert.Equal(t, schedule.Backward, d)

	_, err = schedule.ParseDirection("up")
	assert.Error(t, err)

	v, err := schedule.ParseVariant("pending_missed")
	require.NoError(t, err)
	assert.Equal(t, schedule.VariantPendingMissed, v)

	_, err = schedule.ParseVariant("quad")
	assert.Error(t, err)
}

func TestIsResolved(t *testing.T) {
	assert.False(t, schedule.StatePending.IsResolved())
	assert.True(t, schedule.StateRedeemed.IsResolved())
	assert.True(t, schedule.StateMissed.IsResolved())
}
