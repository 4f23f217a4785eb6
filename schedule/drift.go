package schedule

// =============================================================================
// DRIFT DETECTOR
// =============================================================================

// DriftReason explains a drift decision.
type DriftReason string

const (
	DriftNotRedeeming    DriftReason = "not_redeeming"     // proposed state is not redeemed
	DriftAlreadyRedeemed DriftReason = "already_redeemed"  // re-confirming is a no-op
	DriftOnPlan          DriftReason = "on_plan"           // actual date equals planned date
	DriftNoOpenFollowers DriftReason = "no_open_followers" // nothing downstream to shift
	DriftDetected        DriftReason = "drift"
)

// DriftResult is the advisory input for the adjustment dialog.
type DriftResult struct {
	NeedsPrompt     bool
	FutureOpenCount int
	Reason          DriftReason

	Key         InstanceKey
	Number      int
	SpacingDays int
	PlannedDate Date
	ActualDate  Date
	OffsetDays  int // ActualDate - PlannedDate
}

// CheckDrift decides whether redeeming inst on actual disagrees with the
// plan and whether any later instance of the same series is still open.
//
// siblings are the instances of inst's series; inst itself may be among
// them. A nil actual means today. CheckDrift never mutates its inputs.
func CheckDrift(inst Instance, siblings []Instance, spacingDays int, proposed State, actual *Date, today Date) DriftResult {
	res := DriftResult{
		Key:         inst.Key,
		Number:      inst.Key.Number,
		SpacingDays: spacingDays,
		PlannedDate: inst.PlannedDate,
		ActualDate:  today,
	}
	if actual != nil && !actual.IsZero() {
		res.ActualDate = *actual
	}
	res.OffsetDays = DaysBetween(res.PlannedDate, res.ActualDate)

	if proposed != StateRedeemed {
		res.Reason = DriftNotRedeeming
		return res
	}
	if inst.State == StateRedeemed {
		res.Reason = DriftAlreadyRedeemed
		return res
	}
	if res.ActualDate.Equal(res.PlannedDate) {
		res.Reason = DriftOnPlan
		return res
	}

	res.FutureOpenCount = countOpenAfter(siblings, inst.Key.Number)
	if res.FutureOpenCount == 0 {
		res.Reason = DriftNoOpenFollowers
		return res
	}

	res.NeedsPrompt = true
	res.Reason = DriftDetected
	return res
}

func countOpenAfter(siblings []Instance, number int) int {
	n := 0
	for _, s := range siblings {
		if s.Key.Number > number && s.State == StatePending {
			n++
		}
	}
	return n
}
