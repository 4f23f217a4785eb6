package schedule

import (
	"fmt"
	"strings"
)

// =============================================================================
// COMPLETION STATE MACHINE
// =============================================================================

// State is the completion state of an instance.
type State string

const (
	StatePending  State = "pending"  // not resolved yet
	StateRedeemed State = "redeemed" // happened
	StateMissed   State = "missed"   // did not happen
)

// IsResolved reports whether the instance is history (redeemed or missed).
func (s State) IsResolved() bool { return s == StateRedeemed || s == StateMissed }

func ParseState(s string) (State, error) {
	switch st := State(strings.ToLower(strings.TrimSpace(s))); st {
	case StatePending, StateRedeemed, StateMissed:
		return st, nil
	}
	return "", &ValidationError{Field: "state", Reason: fmt.Sprintf("unknown state %q", s)}
}

// Direction is the way a click cycles the state.
type Direction int

const (
	Forward  Direction = iota // plain click
	Backward                  // modifier click
)

func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "forward", "next":
		return Forward, nil
	case "backward", "previous", "back":
		return Backward, nil
	}
	return Forward, &ValidationError{Field: "direction", Reason: fmt.Sprintf("unknown direction %q", s)}
}

// Variant selects the set of states a context cycles through.
type Variant int

const (
	// VariantTriState cycles pending -> redeemed -> missed -> pending.
	VariantTriState Variant = iota
	// VariantPendingMissed cycles pending <-> missed, for contexts where
	// "redeemed" is not a meaningful outcome.
	VariantPendingMissed
)

func ParseVariant(s string) (Variant, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "tri", "tristate", "tri_state":
		return VariantTriState, nil
	case "pending_missed", "two_state", "binary":
		return VariantPendingMissed, nil
	}
	return VariantTriState, &ValidationError{Field: "variant", Reason: fmt.Sprintf("unknown variant %q", s)}
}

var (
	triForward = map[State]State{
		StatePending:  StateRedeemed,
		StateRedeemed: StateMissed,
		StateMissed:   StatePending,
	}
	triBackward = map[State]State{
		StatePending:  StateMissed,
		StateMissed:   StateRedeemed,
		StateRedeemed: StatePending,
	}
	pairCycle = map[State]State{
		StatePending: StateMissed,
		StateMissed:  StatePending,
	}
)

// Next returns the state after a forward click.
// A state outside the variant steps to pending.
func Next(s State, v Variant) State {
	table := triForward
	if v == VariantPendingMissed {
		table = pairCycle
	}
	if next, ok := table[s]; ok {
		return next
	}
	return StatePending
}

// Previous returns the state after a backward click. It is the exact
// inverse of Next.
func Previous(s State, v Variant) State {
	table := triBackward
	if v == VariantPendingMissed {
		table = pairCycle
	}
	if prev, ok := table[s]; ok {
		return prev
	}
	return StatePending
}

// Step applies one click in direction d.
func (s State) Step(d Direction, v Variant) State {
	if d == Backward {
		return Previous(s, v)
	}
	return Next(s, v)
}
