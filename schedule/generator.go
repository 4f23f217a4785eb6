package schedule

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// SCHEDULE GENERATOR
// =============================================================================

// Target selects which instance numbers a generation run (re)computes.
type Target int

const (
	// TargetAll recomputes 1..Count and removes numbers beyond Count.
	TargetAll Target = iota
	// TargetMissing creates only the numbers that do not exist yet.
	TargetMissing
)

// Plan is the outcome of expanding one series against its stored instances.
// Nothing outside Created, Updated and Removed may be written.
type Plan struct {
	Series    SeriesKey
	Created   []Instance
	Updated   []Instance
	Unchanged int
	Removed   []InstanceKey
}

// Writes returns the instances to upsert.
func (p Plan) Writes() []Instance {
	out := make([]Instance, 0, len(p.Created)+len(p.Updated))
	out = append(out, p.Created...)
	return append(out, p.Updated...)
}

func (p Plan) Empty() bool {
	return len(p.Created) == 0 && len(p.Updated) == 0 && len(p.Removed) == 0
}

// Generate expands series into dated instances.
//
// existing holds the stored instances of the same series (any order).
// Targeted instances that already exist keep their state and completion
// date; only their planned date is reset to the formula. now stamps the
// rows that will be written.
func Generate(series Series, existing []Instance, target Target, now time.Time) (Plan, error) {
	if err := series.Validate(); err != nil {
		return Plan{}, err
	}

	byNumber := make(map[int]Instance, len(existing))
	for _, inst := range existing {
		byNumber[inst.Key.Number] = inst
	}

	plan := Plan{Series: series.Key}
	for n := 1; n <= series.Count; n++ {
		planned := series.PlannedDate(n)
		cur, ok := byNumber[n]

		if !ok {
			plan.Created = append(plan.Created, Instance{
				ID:          uuid.NewString(),
				Key:         InstanceKey{Kind: series.Key.Kind, Series: series.Key.ID, Number: n},
				ProgramID:   series.ProgramID,
				ItemID:      series.ItemID,
				PlannedDate: planned,
				State:       StatePending,
				UpdatedAt:   now,
			})
			continue
		}

		if target == TargetMissing || cur.PlannedDate.Equal(planned) {
			plan.Unchanged++
			continue
		}

		cur.PlannedDate = planned
		cur.UpdatedAt = now
		plan.Updated = append(plan.Updated, cur)
	}

	if target == TargetAll {
		for _, inst := range existing {
			if inst.Key.Number > series.Count {
				plan.Removed = append(plan.Removed, inst.Key)
			}
		}
		sort.Slice(plan.Removed, func(i, j int) bool {
			return plan.Removed[i].Number < plan.Removed[j].Number
		})
	}

	return plan, nil
}
