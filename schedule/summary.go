package schedule

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Summary counts a program's instances by state.
type Summary struct {
	ProgramID ProgramID
	Kind      Kind
	Total     int
	Pending   int
	Redeemed  int
	Missed    int

	// Adherence is Redeemed / (Redeemed + Missed), rounded to 4 places.
	// Zero when nothing is resolved yet.
	Adherence decimal.Decimal

	// NextDue is the earliest planned date among pending instances.
	NextDue *Date
}

func Summarize(programID ProgramID, kind Kind, instances []Instance) Summary {
	s := Summary{ProgramID: programID, Kind: kind, Total: len(instances), Adherence: decimal.Zero}
	for _, inst := range instances {
		switch inst.State {
		case StateRedeemed:
			s.Redeemed++
		case StateMissed:
			s.Missed++
		default:
			s.Pending++
			if s.NextDue == nil || inst.PlannedDate.Before(*s.NextDue) {
				s.NextDue = inst.PlannedDate.Ptr()
			}
		}
	}

	if resolved := s.Redeemed + s.Missed; resolved > 0 {
		s.Adherence = decimal.NewFromInt(int64(s.Redeemed)).
			Div(decimal.NewFromInt(int64(resolved))).
			Round(4)
	}
	return s
}

// SortByPlannedDate orders instances for display: planned date, then kind,
// series and number.
func SortByPlannedDate(instances []Instance) {
	sort.SliceStable(instances, func(i, j int) bool {
		a, b := instances[i], instances[j]
		if !a.PlannedDate.Equal(b.PlannedDate) {
			return a.PlannedDate.Before(b.PlannedDate)
		}
		if a.Key.Kind != b.Key.Kind {
			return a.Key.Kind < b.Key.Kind
		}
		if a.Key.Series != b.Key.Series {
			return a.Key.Series < b.Key.Series
		}
		return a.Key.Number < b.Key.Number
	})
}
