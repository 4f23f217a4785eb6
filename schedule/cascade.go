package schedule

import "sort"

// =============================================================================
// CASCADE ADJUSTER
// =============================================================================

// Shift is one planned-date move made by a cascade.
type Shift struct {
	Key  InstanceKey
	From Date
	To   Date
}

// PlanCascade re-dates the still-open followers of the anchor instance.
//
// Instance anchor+k gets actual + k*spacing when it is pending. Resolved
// instances are history and never move, and no instance changes number.
// Instances already on their target date produce no Shift. The result is
// ordered by number.
func PlanCascade(siblings []Instance, anchor int, actual Date, spacingDays int) []Shift {
	var shifts []Shift
	for _, s := range siblings {
		if s.Key.Number <= anchor || s.State != StatePending {
			continue
		}
		to := actual.AddDays((s.Key.Number - anchor) * spacingDays)
		if to.Equal(s.PlannedDate) {
			continue
		}
		shifts = append(shifts, Shift{Key: s.Key, From: s.PlannedDate, To: to})
	}
	sort.Slice(shifts, func(i, j int) bool { return shifts[i].Key.Number < shifts[j].Key.Number })
	return shifts
}
