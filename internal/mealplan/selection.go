package mealplan

import "fmt"

// Variant names which branch of an Options slot is shown.
type Variant string

const (
	Main        Variant = "main"
	Alternative Variant = "alternative"
)

// Flip returns the other variant. Anything but Alternative flips to it.
func (v Variant) Flip() Variant {
	if v == Alternative {
		return Main
	}
	return Alternative
}

// SelectionState records the chosen variant per day key and slot.
type SelectionState map[string]map[Slot]Variant

// Initialize returns a state with every canonical slot of days 1..planDays
// set to Main.
func Initialize(planDays int) (SelectionState, error) {
	if planDays < 1 {
		return nil, &ValidationError{Field: "plan_days", Reason: fmt.Sprintf("must be at least 1, got %d", planDays)}
	}
	state := make(SelectionState, planDays)
	for day := 1; day <= planDays; day++ {
		slots := make(map[Slot]Variant, len(Slots))
		for _, s := range Slots {
			slots[s] = Main
		}
		state[DayKey(day)] = slots
	}
	return state, nil
}

// Selected returns the variant chosen for day/slot, Main when unset.
func (s SelectionState) Selected(day int, slot Slot) Variant {
	if v, ok := s[DayKey(day)][slot]; ok {
		return v
	}
	return Main
}

// Clone returns a deep copy of s.
func (s SelectionState) Clone() SelectionState {
	out := make(SelectionState, len(s))
	for day, slots := range s {
		cp := make(map[Slot]Variant, len(slots))
		for slot, v := range slots {
			cp[slot] = v
		}
		out[day] = cp
	}
	return out
}

// Toggle returns a copy of state with day/slot flipped between Main and
// Alternative. No other entry changes and state itself is left untouched.
// An unset entry counts as Main.
func Toggle(state SelectionState, day int, slot Slot) SelectionState {
	next := state.Clone()
	key := DayKey(day)
	slots, ok := next[key]
	if !ok {
		slots = make(map[Slot]Variant, 1)
		next[key] = slots
	}
	slots[slot] = state.Selected(day, slot).Flip()
	return next
}

// Resolve returns the dish to show for day/slot: the entry itself for
// single-variant meals, or the selected branch of an Options entry.
func Resolve(plan MealPlan, state SelectionState, day int, slot Slot) (Dish, error) {
	dayPlan, ok := plan.Day(day)
	if !ok {
		return nil, &NotFoundError{Day: day}
	}
	entry, ok := dayPlan[slot]
	if !ok || entry == nil {
		return nil, &NotFoundError{Day: day, Slot: slot}
	}

	switch e := entry.(type) {
	case Options:
		if state.Selected(day, slot) == Alternative {
			return e.Alternative, nil
		}
		return e.Main, nil
	case Dish:
		return e, nil
	}
	return nil, fmt.Errorf("unsupported meal entry %T", entry)
}
