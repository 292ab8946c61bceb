package mealplan

import "fmt"

// NotFoundError is returned when a day or slot is absent from a plan.
type NotFoundError struct {
	Day  int
	Slot Slot
}

func (e *NotFoundError) Error() string {
	if e.Slot == "" {
		return fmt.Sprintf("meal plan has no %s", DayKey(e.Day))
	}
	return fmt.Sprintf("meal plan has no %s for %s", e.Slot, DayKey(e.Day))
}

// ValidationError reports invalid input rejected before any state is built.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
